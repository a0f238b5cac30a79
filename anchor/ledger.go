// Package anchor simulates the contract that anchors the ledger state: it
// accepts dispatched actions and replaces its state only for a verified proof
// that starts from it.
package anchor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/colorfulnotion/nftrollup/actionlog"
	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/prover"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/storage"
	"github.com/colorfulnotion/nftrollup/types"
)

const (
	DefaultName   = "NftRollupGenesis"
	DefaultSymbol = "NRG"
)

var stateKey = []byte("anchor/state")

// Verifier is the part of a prover the anchor needs.
type Verifier interface {
	Verify(proof *prover.Proof) bool
}

type Ledger struct {
	mu       sync.RWMutex
	params   rollup.Params
	actions  *actionlog.ActionLog
	verifier Verifier
	store    *storage.PersistenceStore
	state    types.LedgerState

	name   string
	symbol string

	subMu sync.Mutex
	subs  map[int]chan types.LedgerState
	next  int
}

// New anchors genesis state in memory.
func New(p rollup.Params, actions *actionlog.ActionLog, verifier Verifier) *Ledger {
	return &Ledger{
		params:   p,
		actions:  actions,
		verifier: verifier,
		state:    p.Genesis(),
		name:     DefaultName,
		symbol:   DefaultSymbol,
		subs:     make(map[int]chan types.LedgerState),
	}
}

// Open is New with the anchored state persisted in store.
func Open(p rollup.Params, actions *actionlog.ActionLog, verifier Verifier, store *storage.PersistenceStore) (*Ledger, error) {
	l := New(p, actions, verifier)
	l.store = store
	raw, ok, err := store.Get(stateKey)
	if err != nil {
		return nil, fmt.Errorf("load anchored state: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &l.state); err != nil {
			return nil, fmt.Errorf("decode anchored state: %w", err)
		}
		if !actions.Contains(l.state.ActionsCursor) {
			return nil, fmt.Errorf("%w: anchored cursor %s", rolluperrors.ErrAUnknownCursor, common.Str(l.state.ActionsCursor))
		}
	}
	log.Info(log.AnchorMonitoring, "ledger anchored", "state", l.state.String())
	return l, nil
}

func (l *Ledger) Name() string   { return l.name }
func (l *Ledger) Symbol() string { return l.symbol }

// State is the anchored ledger state.
func (l *Ledger) State() types.LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanMint reports whether the anchored state still has supply left. Mints
// queued behind it may still run out.
func (l *Ledger) CanMint() bool {
	return l.State().CurrentIndex < l.params.Supply
}

// Mint queues an unassigned asset for minting.
func (l *Ledger) Mint(asset types.Asset) (common.Hash, error) {
	return l.Dispatch(types.MintAction(asset))
}

// Transfer queues moving asset, as currently stored, from sender to receiver.
func (l *Ledger) Transfer(asset types.Asset, sender, receiver common.Address) (common.Hash, error) {
	if sender == receiver {
		return common.Hash{}, fmt.Errorf("%w: %s", rolluperrors.ErrATransferSameOwner, receiver.Hex())
	}
	original := asset.Hash(l.params.Hasher)
	return l.Dispatch(types.TransferAction(asset.ChangeOwner(receiver), original))
}

// Dispatch checks the per-kind preconditions and appends action to the log.
func (l *Ledger) Dispatch(action types.Action) (common.Hash, error) {
	switch action.Kind {
	case types.ActionMint:
		if action.Asset.IsAssigned() {
			return common.Hash{}, fmt.Errorf("%w: id %d", rolluperrors.ErrAMintAssigned, action.Asset.ID)
		}
	case types.ActionTransfer:
		if !action.Asset.IsAssigned() {
			return common.Hash{}, rolluperrors.ErrATransferUnassigned
		}
	default:
		return common.Hash{}, rolluperrors.ErrADummyDispatch
	}
	return l.actions.Append(action)
}

// GetActions returns the actions after from up to to, capped per call.
func (l *Ledger) GetActions(from, to common.Hash) ([]types.Action, error) {
	return l.actions.PendingActions(from, to)
}

// ActionsCursor is the head of the action log, which can run ahead of the
// anchored state.
func (l *Ledger) ActionsCursor() common.Hash {
	return l.actions.Cursor()
}

// Commit re-verifies proof and replaces the anchored state with its target,
// provided it starts from the anchored state.
func (l *Ledger) Commit(ctx context.Context, proof *prover.Proof) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.verifier.Verify(proof) {
		return fmt.Errorf("%w: %s", rolluperrors.ErrPInvalidProof, proof)
	}
	target := proof.Statement.Target
	if !l.actions.Contains(target.ActionsCursor) {
		return fmt.Errorf("%w: target cursor %s", rolluperrors.ErrAUnknownCursor, common.Str(target.ActionsCursor))
	}

	l.mu.Lock()
	if !proof.Statement.Source.Equal(l.state) {
		current := l.state
		l.mu.Unlock()
		return fmt.Errorf("%w: proof from %s, anchored %s", rolluperrors.ErrPSourceMismatch, proof.Statement.Source, current)
	}
	if l.store != nil {
		raw, err := json.Marshal(target)
		if err != nil {
			l.mu.Unlock()
			return err
		}
		if err := l.store.Put(stateKey, raw); err != nil {
			l.mu.Unlock()
			return fmt.Errorf("persist anchored state: %w", err)
		}
	}
	l.state = target
	l.mu.Unlock()

	log.Info(log.AnchorMonitoring, "state committed", "index", target.CurrentIndex,
		"root", common.Str(target.Commitment), "batches", proof.Batches)
	l.publish(target)
	return nil
}

// Subscribe returns a channel receiving every committed state. Slow readers
// miss states rather than block commits.
func (l *Ledger) Subscribe() (<-chan types.LedgerState, func()) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	id := l.next
	l.next++
	ch := make(chan types.LedgerState, 16)
	l.subs[id] = ch
	return ch, func() {
		l.subMu.Lock()
		defer l.subMu.Unlock()
		if c, ok := l.subs[id]; ok {
			delete(l.subs, id)
			close(c)
		}
	}
}

func (l *Ledger) publish(s types.LedgerState) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for id, ch := range l.subs {
		select {
		case ch <- s:
		default:
			log.Warn(log.AnchorMonitoring, "subscriber lagging, state dropped", "subscriber", id)
		}
	}
}
