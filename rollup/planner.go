package rollup

import (
	"fmt"
	"sort"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/trie"
	"github.com/colorfulnotion/nftrollup/types"
)

// WitnessSource serves leaf witnesses against its current root.
// trie.SparseMerkleTree and indexer.Indexer implement it.
type WitnessSource interface {
	Root() common.Hash
	Prove(index uint64) (types.MerkleWitness, error)
}

// PlanIndices lists every leaf a run of actions starting at state can touch,
// the sentinel included. It depends on CurrentIndex and the action ids only,
// never on the tree, so it can be computed before any witness is fetched.
func PlanIndices(p Params, state types.LedgerState, actions []types.Action) []uint64 {
	seen := map[uint64]struct{}{types.DummyAssetID: {}}
	cur := state
	for _, a := range actions {
		index, ok := CandidateIndex(p, cur, a)
		if ok {
			seen[index] = struct{}{}
			if a.IsMint() {
				cur.CurrentIndex = index
			}
		}
	}
	out := make([]uint64, 0, len(seen))
	for index := range seen {
		out = append(out, index)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CollectWitnesses fetches every planned witness from src while its root is
// still state.Commitment and assembles them into a partial tree. Nothing is
// mutated until all of them are in hand.
func CollectWitnesses(p Params, src WitnessSource, state types.LedgerState, indices []uint64) (*trie.PartialTree, error) {
	if root := src.Root(); root != state.Commitment {
		return nil, fmt.Errorf("%w: source at %s, state at %s", rolluperrors.ErrLStaleWitness, common.Str(root), common.Str(state.Commitment))
	}
	tree := trie.NewPartialTree(p.Height, p.Hasher, state.Commitment)
	for _, index := range indices {
		w, err := src.Prove(index)
		if err != nil {
			return nil, fmt.Errorf("witness %d: %w", index, err)
		}
		if err := tree.AddBranch(w); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

// WorkingTree plans and collects in one call.
func WorkingTree(p Params, src WitnessSource, state types.LedgerState, actions []types.Action) (*trie.PartialTree, error) {
	return CollectWitnesses(p, src, state, PlanIndices(p, state, actions))
}

// Step applies action to state using tree as witness source, then writes the
// new leaf into tree. It returns the witness the transition consumed.
func Step(p Params, tree *trie.PartialTree, state types.LedgerState, action types.Action) (Result, types.MerkleWitness, error) {
	if tree.Root() != state.Commitment {
		return Result{}, types.MerkleWitness{}, fmt.Errorf("%w: tree at %s, state at %s", rolluperrors.ErrLStaleWitness, common.Str(tree.Root()), common.Str(state.Commitment))
	}
	w, err := tree.Prove(WitnessIndex(p, state, action))
	if err != nil {
		return Result{}, types.MerkleWitness{}, err
	}
	res, err := Transition(p, state, action, w)
	if err != nil {
		return Result{}, types.MerkleWitness{}, err
	}
	if res.Outcome.Written() {
		root, err := tree.Update(res.Index, res.Leaf)
		if err != nil {
			return Result{}, types.MerkleWitness{}, err
		}
		if root != res.State.Commitment {
			return Result{}, types.MerkleWitness{}, fmt.Errorf("%w: index %d", rolluperrors.ErrBRootMismatch, res.Index)
		}
	}
	return res, w, nil
}
