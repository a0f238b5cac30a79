package rollup

import (
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/trie"
	"github.com/colorfulnotion/nftrollup/types"
)

// Batch is one provable unit: the claimed transition plus the private input
// the prover replays, and what each action did.
type Batch struct {
	Transition types.StateTransition `json:"transition"`
	Actions    types.ActionBatch     `json:"actions"`
	Outcomes   []Outcome             `json:"outcomes"`
}

// Real is the number of non-padding actions in the batch.
func (b *Batch) Real() int {
	return b.Actions.RealActions()
}

type BatchBuilder struct {
	params Params
}

func NewBatchBuilder(p Params) *BatchBuilder {
	return &BatchBuilder{params: p}
}

// BuildBatch applies up to BatchSize actions to state in order, taking every
// witness from tree before the leaf it opens is written. tree must be at
// state.Commitment and is left at the batch target. Trailing slots are padded
// with dummy actions sharing one witness of the sentinel leaf.
func (b *BatchBuilder) BuildBatch(state types.LedgerState, actions []types.Action, tree *trie.PartialTree) (*Batch, error) {
	p := b.params
	if len(actions) > p.BatchSize {
		return nil, fmt.Errorf("%w: %d > %d", rolluperrors.ErrBBatchTooLarge, len(actions), p.BatchSize)
	}

	batch := &Batch{
		Actions:  types.ActionBatch{Entries: make([]types.BatchEntry, 0, p.BatchSize)},
		Outcomes: make([]Outcome, 0, p.BatchSize),
	}
	cur := state
	for i, a := range actions {
		if a.IsDummy() {
			return nil, fmt.Errorf("%w: position %d", rolluperrors.ErrADummyDispatch, i)
		}
		res, w, err := Step(p, tree, cur, a)
		if err != nil {
			return nil, fmt.Errorf("action %d (%s): %w", i, a, err)
		}
		batch.Actions.Entries = append(batch.Actions.Entries, types.BatchEntry{Action: a, Witness: w})
		batch.Outcomes = append(batch.Outcomes, res.Outcome)
		actionsApplied.WithLabelValues(res.Outcome.String()).Inc()
		if !res.Outcome.Written() {
			log.Debug(log.BatchMonitoring, "action is a no-op", "action", a.String(), "outcome", res.Outcome.String())
		}
		cur = res.State
	}

	if pad := p.BatchSize - len(actions); pad > 0 {
		placeholder, err := tree.Prove(types.DummyAssetID)
		if err != nil {
			return nil, fmt.Errorf("placeholder witness: %w", err)
		}
		for i := 0; i < pad; i++ {
			batch.Actions.Entries = append(batch.Actions.Entries, types.BatchEntry{Action: types.DummyAction(), Witness: placeholder})
			batch.Outcomes = append(batch.Outcomes, OutcomePadding)
		}
	}

	batch.Transition = types.StateTransition{Source: state, Target: cur}
	batchesBuilt.Inc()
	batchFill.Observe(float64(len(actions)))
	log.Debug(log.BatchMonitoring, "batch built", "real", len(actions), "padding", p.BatchSize-len(actions),
		"source", common.Str(state.Commitment), "target", common.Str(cur.Commitment), "index", cur.CurrentIndex)
	return batch, nil
}

// BuildBatches splits actions into consecutive batches over one working
// tree, each batch starting where the previous one ended.
func (b *BatchBuilder) BuildBatches(state types.LedgerState, actions []types.Action, tree *trie.PartialTree) ([]*Batch, error) {
	size := b.params.BatchSize
	batches := make([]*Batch, 0, (len(actions)+size-1)/size)
	cur := state
	for start := 0; start < len(actions); start += size {
		end := start + size
		if end > len(actions) {
			end = len(actions)
		}
		batch, err := b.BuildBatch(cur, actions[start:end], tree)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", len(batches), err)
		}
		batches = append(batches, batch)
		cur = batch.Transition.Target
	}
	return batches, nil
}

// Replay re-executes a built batch from its source using only the recorded
// witnesses, the way a prover checks it.
func Replay(p Params, source types.LedgerState, batch types.ActionBatch) (types.LedgerState, []Outcome, error) {
	if batch.Len() != p.BatchSize {
		return types.LedgerState{}, nil, fmt.Errorf("%w: %d entries, batch size %d", rolluperrors.ErrBBatchShape, batch.Len(), p.BatchSize)
	}
	cur := source
	outcomes := make([]Outcome, 0, batch.Len())
	padding := false
	for i, e := range batch.Entries {
		if e.Action.IsDummy() {
			padding = true
		} else if padding {
			return types.LedgerState{}, nil, fmt.Errorf("%w: action after padding at %d", rolluperrors.ErrBBatchShape, i)
		}
		res, err := Transition(p, cur, e.Action, e.Witness)
		if err != nil {
			return types.LedgerState{}, nil, fmt.Errorf("entry %d: %w", i, err)
		}
		outcomes = append(outcomes, res.Outcome)
		cur = res.State
	}
	return cur, outcomes, nil
}
