// Package rollup holds the ledger transition function and batch construction.
package rollup

import (
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
)

// Outcome is what one action did to the ledger. Every outcome but Minted and
// Transferred leaves the leaves and the index untouched.
type Outcome uint8

const (
	OutcomePadding Outcome = iota
	OutcomeMinted
	OutcomeTransferred
	OutcomeSupplyExhausted
	OutcomeStaleTransfer
	OutcomeInvalidIndex
)

func (o Outcome) String() string {
	switch o {
	case OutcomePadding:
		return "padding"
	case OutcomeMinted:
		return "minted"
	case OutcomeTransferred:
		return "transferred"
	case OutcomeSupplyExhausted:
		return "supply_exhausted"
	case OutcomeStaleTransfer:
		return "stale_transfer"
	case OutcomeInvalidIndex:
		return "invalid_index"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Written reports whether the outcome changes a leaf.
func (o Outcome) Written() bool {
	return o == OutcomeMinted || o == OutcomeTransferred
}

// Result of applying one action.
type Result struct {
	State   types.LedgerState
	Outcome Outcome
	Index   uint64
	Leaf    common.Hash
}

// CandidateIndex is the leaf an action would write to. ok is false when the
// action is a no-op whatever the tree holds.
func CandidateIndex(p Params, state types.LedgerState, action types.Action) (index uint64, ok bool) {
	switch action.Kind {
	case types.ActionMint:
		if state.CurrentIndex < p.Supply {
			return state.CurrentIndex + 1, true
		}
	case types.ActionTransfer:
		id := action.Asset.ID
		if id != types.DummyAssetID && id < p.Capacity() {
			return id, true
		}
	}
	return types.DummyAssetID, false
}

// WitnessIndex is the leaf whose witness Transition expects for action.
// No-ops without a candidate are evaluated against the sentinel leaf.
func WitnessIndex(p Params, state types.LedgerState, action types.Action) uint64 {
	index, _ := CandidateIndex(p, state, action)
	return index
}

// Transition applies one action to state. It is pure: the witness must open
// to state.Commitment at WitnessIndex, and the new root is derived from it.
// A malformed witness is an error, a rejected action is a no-op Outcome.
func Transition(p Params, state types.LedgerState, action types.Action, witness types.MerkleWitness) (Result, error) {
	if witness.Height() != p.Height {
		return Result{}, fmt.Errorf("%w: path %d, height %d", rolluperrors.ErrLWitnessShape, witness.Height(), p.Height)
	}
	index, ok := CandidateIndex(p, state, action)
	if witness.Index != index {
		return Result{}, fmt.Errorf("%w: %s wants %d, witness for %d", rolluperrors.ErrLWitnessIndex, action.Kind, index, witness.Index)
	}
	if witness.Root(p.Hasher) != state.Commitment {
		return Result{}, fmt.Errorf("%w: index %d against %s", rolluperrors.ErrLStaleWitness, index, common.Str(state.Commitment))
	}

	if action.IsDummy() {
		// padding does not fold into the cursor
		return Result{State: state, Outcome: OutcomePadding}, nil
	}

	next := types.LedgerState{
		Commitment:    state.Commitment,
		CurrentIndex:  state.CurrentIndex,
		ActionsCursor: types.FoldCursor(state.ActionsCursor, action),
	}

	switch action.Kind {
	case types.ActionMint:
		if !ok {
			return Result{State: next, Outcome: OutcomeSupplyExhausted}, nil
		}
		leaf := action.Asset.AssignID(index).Hash(p.Hasher)
		next.Commitment = witness.ComputeRoot(p.Hasher, leaf)
		next.CurrentIndex = index
		return Result{State: next, Outcome: OutcomeMinted, Index: index, Leaf: leaf}, nil

	case types.ActionTransfer:
		if !ok {
			return Result{State: next, Outcome: OutcomeInvalidIndex}, nil
		}
		// an empty claimed leaf would let a transfer write an unminted slot
		if action.OriginalLeafHash == (common.Hash{}) || witness.LeafHash != action.OriginalLeafHash {
			return Result{State: next, Outcome: OutcomeStaleTransfer, Index: index}, nil
		}
		leaf := action.Asset.Hash(p.Hasher)
		next.Commitment = witness.ComputeRoot(p.Hasher, leaf)
		return Result{State: next, Outcome: OutcomeTransferred, Index: index, Leaf: leaf}, nil

	default:
		return Result{}, fmt.Errorf("unknown action kind %d", action.Kind)
	}
}
