// Package actionlog is the append-only log of dispatched ledger actions,
// addressed by the running fold-hash of everything dispatched so far.
package actionlog

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/storage"
	"github.com/colorfulnotion/nftrollup/types"
)

// entryPrefix namespaces persisted actions: entryPrefix | position (big endian) -> rlp(action)
var entryPrefix = []byte("act/")

// Entry is one dispatched action and the cursor reached after folding it.
type Entry struct {
	Position uint64       `json:"position"`
	Action   types.Action `json:"action"`
	Cursor   common.Hash  `json:"cursor"`
}

// ActionLog assigns positions to dispatched actions and folds them into the
// actions cursor. Safe for concurrent use.
type ActionLog struct {
	mu      sync.RWMutex
	entries []Entry
	// cursor -> number of actions folded to reach it
	positions  map[common.Hash]uint64
	maxPerCall int

	store *storage.PersistenceStore
}

// New returns an in-memory log. maxPerCall caps every range query.
func New(maxPerCall int) *ActionLog {
	return &ActionLog{
		positions:  map[common.Hash]uint64{types.EmptyActionsCursor: 0},
		maxPerCall: maxPerCall,
	}
}

// Open returns a log persisted in store, replaying any actions already there.
func Open(store *storage.PersistenceStore, maxPerCall int) (*ActionLog, error) {
	l := New(maxPerCall)
	l.store = store

	pairs, err := store.GetWithPrefix(entryPrefix)
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	for i, kv := range pairs {
		pos := binary.BigEndian.Uint64(kv[0][len(entryPrefix):])
		if pos != uint64(i) {
			return nil, fmt.Errorf("%w: expected position %d, found %d", rolluperrors.ErrACorruptEntry, i, pos)
		}
		a, err := types.DecodeAction(kv[1])
		if err != nil {
			return nil, fmt.Errorf("%w: position %d: %v", rolluperrors.ErrACorruptEntry, pos, err)
		}
		l.appendLocked(a)
	}
	log.Info(log.ActionLogMonitoring, "action log opened", "actions", len(l.entries), "cursor", common.Str(l.cursorLocked()))
	return l, nil
}

// Append dispatches a at the next position and returns the new cursor.
// Padding actions are rejected, they only ever exist inside a batch.
func (l *ActionLog) Append(a types.Action) (common.Hash, error) {
	if a.IsDummy() {
		return common.Hash{}, rolluperrors.ErrADummyDispatch
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.store != nil {
		key := make([]byte, len(entryPrefix)+8)
		copy(key, entryPrefix)
		binary.BigEndian.PutUint64(key[len(entryPrefix):], uint64(len(l.entries)))
		if err := l.store.Put(key, a.Encode()); err != nil {
			return common.Hash{}, fmt.Errorf("persist action %d: %w", len(l.entries), err)
		}
	}
	e := l.appendLocked(a)
	log.Debug(log.ActionLogMonitoring, "action dispatched", "position", e.Position, "action", a.String(), "cursor", common.Str(e.Cursor))
	return e.Cursor, nil
}

func (l *ActionLog) appendLocked(a types.Action) Entry {
	e := Entry{
		Position: uint64(len(l.entries)),
		Action:   a,
		Cursor:   types.FoldCursor(l.cursorLocked(), a),
	}
	l.entries = append(l.entries, e)
	l.positions[e.Cursor] = uint64(len(l.entries))
	return e
}

// Cursor is the fold of every action dispatched so far.
func (l *ActionLog) Cursor() common.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cursorLocked()
}

func (l *ActionLog) cursorLocked() common.Hash {
	if len(l.entries) == 0 {
		return types.EmptyActionsCursor
	}
	return l.entries[len(l.entries)-1].Cursor
}

func (l *ActionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// MaxPerCall is the range query cap.
func (l *ActionLog) MaxPerCall() int {
	return l.maxPerCall
}

// Contains reports whether cursor was reached at some point of the log.
func (l *ActionLog) Contains(cursor common.Hash) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[cursor]
	return ok
}

// Entries returns the entries dispatched strictly after from, up to and
// including the one that reaches to. A zero to means the head of the log.
// At most MaxPerCall entries are returned, callers drain the rest by asking
// again from the last returned cursor.
func (l *ActionLog) Entries(from, to common.Hash) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start, ok := l.positions[from]
	if !ok {
		return nil, fmt.Errorf("%w: from %s", rolluperrors.ErrAUnknownCursor, common.Str(from))
	}
	end := uint64(len(l.entries))
	if to != (common.Hash{}) {
		if end, ok = l.positions[to]; !ok {
			return nil, fmt.Errorf("%w: to %s", rolluperrors.ErrAUnknownCursor, common.Str(to))
		}
	}
	if end < start {
		return nil, fmt.Errorf("%w: %d > %d", rolluperrors.ErrACursorOrder, start, end)
	}
	if l.maxPerCall > 0 && end-start > uint64(l.maxPerCall) {
		log.Trace(log.ActionLogMonitoring, "range truncated", "requested", end-start, "cap", l.maxPerCall)
		end = start + uint64(l.maxPerCall)
	}
	out := make([]Entry, end-start)
	copy(out, l.entries[start:end])
	return out, nil
}

// PendingActions is Entries without the per-entry cursors.
func (l *ActionLog) PendingActions(from, to common.Hash) ([]types.Action, error) {
	entries, err := l.Entries(from, to)
	if err != nil {
		return nil, err
	}
	actions := make([]types.Action, len(entries))
	for i, e := range entries {
		actions[i] = e.Action
	}
	return actions, nil
}
