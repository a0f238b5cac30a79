package prover

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/storage"
	"github.com/colorfulnotion/nftrollup/trie"
	"github.com/colorfulnotion/nftrollup/types"
	"github.com/stretchr/testify/require"
)

func testParams(t *testing.T) rollup.Params {
	t.Helper()
	c := config.Default()
	c.TreeHeight = 6
	c.Supply = 40
	c.BatchSize = 2
	p, err := rollup.NewParams(c)
	require.NoError(t, err)
	return p
}

// buildBatches mints n assets from genesis and returns the built batches.
func buildBatches(t *testing.T, p rollup.Params, n int) []*rollup.Batch {
	t.Helper()
	store, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	full, err := trie.NewSparseMerkleTree(p.Height, p.Hasher, store, nil)
	require.NoError(t, err)

	actions := make([]types.Action, n)
	for i := range actions {
		a, err := types.NewAsset(fmt.Sprintf("nft %d", i), common.GetDevAccount(i))
		require.NoError(t, err)
		actions[i] = types.MintAction(a)
	}
	state := p.Genesis()
	tree, err := rollup.WorkingTree(p, full, state, actions)
	require.NoError(t, err)
	batches, err := rollup.NewBatchBuilder(p).BuildBatches(state, actions, tree)
	require.NoError(t, err)
	return batches
}

func proveAll(t *testing.T, pr Prover, batches []*rollup.Batch) []*Proof {
	t.Helper()
	proofs := make([]*Proof, len(batches))
	for i, b := range batches {
		proof, err := pr.Prove(context.Background(), b.Transition, b.Actions)
		require.NoError(t, err)
		require.True(t, pr.Verify(proof))
		proofs[i] = proof
	}
	return proofs
}

func TestProveAndVerify(t *testing.T) {
	p := testParams(t)
	batches := buildBatches(t, p, 3)
	pr := NewReplayProver(p, []byte("key"))
	proofs := proveAll(t, pr, batches)
	require.Len(t, proofs, 2)

	forged := *proofs[0]
	forged.Statement.Target.CurrentIndex++
	require.False(t, pr.Verify(&forged))

	other := NewReplayProver(p, []byte("another key"))
	require.False(t, other.Verify(proofs[0]))
}

func TestProveRejectsWrongTarget(t *testing.T) {
	p := testParams(t)
	b := buildBatches(t, p, 2)[0]
	pr := NewReplayProver(p, []byte("key"))

	claim := b.Transition
	claim.Target.CurrentIndex = 7
	_, err := pr.Prove(context.Background(), claim, b.Actions)
	require.True(t, errors.Is(err, rolluperrors.ErrPProveFailed))
	require.True(t, errors.Is(err, rolluperrors.ErrBTargetMismatch))
}

func TestProveHonoursCancellation(t *testing.T) {
	p := testParams(t)
	b := buildBatches(t, p, 1)[0]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewReplayProver(p, nil).Prove(ctx, b.Transition, b.Actions)
	require.True(t, errors.Is(err, context.Canceled))
}

func TestMergeAssociativity(t *testing.T) {
	p := testParams(t)
	batches := buildBatches(t, p, 6)
	pr := NewReplayProver(p, []byte("key"))
	m := NewMerger(pr)
	ctx := context.Background()
	proofs := proveAll(t, pr, batches)
	require.Len(t, proofs, 3)

	p12, err := m.Merge(ctx, proofs[0], proofs[1])
	require.NoError(t, err)
	left, err := m.Merge(ctx, p12, proofs[2])
	require.NoError(t, err)

	p23, err := m.Merge(ctx, proofs[1], proofs[2])
	require.NoError(t, err)
	right, err := m.Merge(ctx, proofs[0], p23)
	require.NoError(t, err)

	require.Equal(t, left.Statement, right.Statement)
	require.Equal(t, batches[0].Transition.Source, left.Statement.Source)
	require.Equal(t, batches[2].Transition.Target, left.Statement.Target)
	require.True(t, pr.Verify(left))
	require.True(t, pr.Verify(right))
	require.Equal(t, 3, left.Batches)
}

func TestFoldLeftAndMergeTreeAgree(t *testing.T) {
	p := testParams(t)
	batches := buildBatches(t, p, 13)
	pr := NewReplayProver(p, []byte("key"))
	m := NewMerger(pr)
	ctx := context.Background()
	proofs := proveAll(t, pr, batches)
	require.Len(t, proofs, 7)

	folded, err := m.MergeAll(ctx, config.MergeFold, proofs)
	require.NoError(t, err)
	treed, err := m.MergeAll(ctx, config.MergeTree, proofs)
	require.NoError(t, err)
	require.Equal(t, folded.Statement, treed.Statement)
	require.Equal(t, 7, treed.Batches)

	single, err := m.MergeTree(ctx, proofs[:1])
	require.NoError(t, err)
	require.Same(t, proofs[0], single)

	rendered := RenderMergeTree(treed)
	require.Contains(t, rendered, "(7 batches)")
	require.Contains(t, rendered, "(1 batches)")
}

func TestMergeChainMismatch(t *testing.T) {
	p := testParams(t)
	batches := buildBatches(t, p, 6)
	pr := NewReplayProver(p, []byte("key"))
	m := NewMerger(pr)
	proofs := proveAll(t, pr, batches)

	_, err := m.Merge(context.Background(), proofs[0], proofs[2])
	require.True(t, errors.Is(err, rolluperrors.ErrPChainMismatch))

	// the engine refuses on its own as well
	_, err = pr.Merge(context.Background(), proofs[1], proofs[0])
	require.True(t, errors.Is(err, rolluperrors.ErrPChainMismatch))

	_, err = m.FoldLeft(context.Background(), []*Proof{proofs[0], proofs[2], proofs[1]})
	require.True(t, errors.Is(err, rolluperrors.ErrPChainMismatch))

	_, err = m.FoldLeft(context.Background(), nil)
	require.True(t, errors.Is(err, rolluperrors.ErrPNoProofs))
}

func TestMergeRejectsInvalidProof(t *testing.T) {
	p := testParams(t)
	batches := buildBatches(t, p, 4)
	pr := NewReplayProver(p, []byte("key"))
	proofs := proveAll(t, pr, batches)

	forged := *proofs[0]
	forged.Digest = common.Blake2Hash([]byte("forged"))
	_, err := NewMerger(pr).Merge(context.Background(), &forged, proofs[1])
	require.True(t, errors.Is(err, rolluperrors.ErrPInvalidProof))
}
