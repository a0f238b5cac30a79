package anchor

import (
	"context"
	"errors"
	"testing"

	"github.com/colorfulnotion/nftrollup/actionlog"
	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/prover"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/storage"
	"github.com/colorfulnotion/nftrollup/trie"
	"github.com/colorfulnotion/nftrollup/types"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	p      rollup.Params
	store  *storage.PersistenceStore
	log    *actionlog.ActionLog
	prover *prover.ReplayProver
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := config.Default()
	c.TreeHeight = 5
	c.Supply = 2
	c.BatchSize = 4
	p, err := rollup.NewParams(c)
	require.NoError(t, err)
	store, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	alog, err := actionlog.Open(store, c.MaxActionsPerCall)
	require.NoError(t, err)
	pr := prover.NewReplayProver(p, []byte("anchor test"))
	ledger, err := Open(p, alog, pr, store)
	require.NoError(t, err)
	return &fixture{p: p, store: store, log: alog, prover: pr, ledger: ledger}
}

// prove builds and proves one batch over every pending action.
func (f *fixture) prove(t *testing.T) *prover.Proof {
	t.Helper()
	state := f.ledger.State()
	actions, err := f.ledger.GetActions(state.ActionsCursor, common.Hash{})
	require.NoError(t, err)

	full, err := trie.NewSparseMerkleTree(f.p.Height, f.p.Hasher, mustMemStore(t), nil)
	require.NoError(t, err)
	require.Equal(t, state.Commitment, full.Root(), "fixture only proves from genesis")
	tree, err := rollup.WorkingTree(f.p, full, state, actions)
	require.NoError(t, err)
	batch, err := rollup.NewBatchBuilder(f.p).BuildBatch(state, actions, tree)
	require.NoError(t, err)
	proof, err := f.prover.Prove(context.Background(), batch.Transition, batch.Actions)
	require.NoError(t, err)
	return proof
}

func mustMemStore(t *testing.T) *storage.PersistenceStore {
	store, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newAsset(t *testing.T, content string) types.Asset {
	a, err := types.NewAsset(content, common.GetDevAccount(0))
	require.NoError(t, err)
	return a
}

func TestDispatchPreconditions(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, DefaultName, f.ledger.Name())
	require.Equal(t, DefaultSymbol, f.ledger.Symbol())

	a := newAsset(t, "a")
	_, err := f.ledger.Mint(a.AssignID(3))
	require.True(t, errors.Is(err, rolluperrors.ErrAMintAssigned))

	_, err = f.ledger.Dispatch(types.TransferAction(a, a.Hash(f.p.Hasher)))
	require.True(t, errors.Is(err, rolluperrors.ErrATransferUnassigned))

	_, err = f.ledger.Transfer(a.AssignID(1), common.GetDevAccount(0), common.GetDevAccount(0))
	require.True(t, errors.Is(err, rolluperrors.ErrATransferSameOwner))

	_, err = f.ledger.Dispatch(types.DummyAction())
	require.True(t, errors.Is(err, rolluperrors.ErrADummyDispatch))
	require.Equal(t, 0, f.log.Len())

	cursor, err := f.ledger.Mint(a)
	require.NoError(t, err)
	require.Equal(t, cursor, f.ledger.ActionsCursor())

	_, err = f.ledger.Transfer(a.AssignID(1), common.GetDevAccount(0), common.GetDevAccount(1))
	require.NoError(t, err)
	actions, err := f.ledger.GetActions(types.EmptyActionsCursor, common.Hash{})
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, common.GetDevAccount(1), actions[1].Asset.Owner)
	require.Equal(t, a.AssignID(1).Hash(f.p.Hasher), actions[1].OriginalLeafHash)
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	genesis := f.ledger.State()
	require.True(t, f.ledger.CanMint())

	feed, cancel := f.ledger.Subscribe()
	defer cancel()

	for _, c := range []string{"x", "y", "z"} {
		_, err := f.ledger.Mint(newAsset(t, c))
		require.NoError(t, err)
	}
	proof := f.prove(t)
	require.NoError(t, f.ledger.Commit(context.Background(), proof))

	state := f.ledger.State()
	require.Equal(t, proof.Statement.Target, state)
	require.Equal(t, uint64(2), state.CurrentIndex)
	require.False(t, f.ledger.CanMint())
	require.Equal(t, state, <-feed)

	// the same proof no longer starts from the anchored state
	err := f.ledger.Commit(context.Background(), proof)
	require.True(t, errors.Is(err, rolluperrors.ErrPSourceMismatch))

	// state survives a reopen
	reopened, err := Open(f.p, f.log, f.prover, f.store)
	require.NoError(t, err)
	require.Equal(t, state, reopened.State())
	require.NotEqual(t, genesis, reopened.State())
}

func TestCommitRejectsUnverifiedProof(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Mint(newAsset(t, "x"))
	require.NoError(t, err)
	proof := f.prove(t)

	forged := *proof
	forged.Statement.Target.CurrentIndex = 2
	err = f.ledger.Commit(context.Background(), &forged)
	require.True(t, errors.Is(err, rolluperrors.ErrPInvalidProof))

	other := prover.NewReplayProver(f.p, []byte("someone else"))
	l := New(f.p, f.log, other)
	err = l.Commit(context.Background(), proof)
	require.True(t, errors.Is(err, rolluperrors.ErrPInvalidProof))
	require.Equal(t, f.p.Genesis(), l.State())
}
