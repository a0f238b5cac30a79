// Package indexer keeps an off-chain mirror of the ledger by replaying the
// action log with the same transition function the prover checks.
package indexer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/storage"
	"github.com/colorfulnotion/nftrollup/trie"
	"github.com/colorfulnotion/nftrollup/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	nodePrefix  = []byte("idx/n/")
	assetPrefix = []byte("idx/a/")
	stateKey    = []byte("idx/state")
)

var tracer = otel.Tracer("nftrollup/indexer")

// ActionSource serves ranges of the action log.
type ActionSource interface {
	GetActions(from, to common.Hash) ([]types.Action, error)
}

// Indexer owns its mirror tree and asset records, nothing is shared with the
// anchored ledger. Reads are safe during Sync.
type Indexer struct {
	mu     sync.RWMutex
	params rollup.Params
	store  *storage.PersistenceStore
	tree   *trie.SparseMerkleTree
	assets *lru.Cache[uint64, types.Asset]
	state  types.LedgerState

	halted error
	closed bool
}

// Open loads the mirror persisted in store, or starts from genesis.
func Open(p rollup.Params, store *storage.PersistenceStore, cacheSize int) (*Indexer, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[uint64, types.Asset](cacheSize)
	if err != nil {
		return nil, err
	}
	tree, err := trie.NewSparseMerkleTree(p.Height, p.Hasher, store, nodePrefix)
	if err != nil {
		return nil, err
	}
	ix := &Indexer{
		params: p,
		store:  store,
		tree:   tree,
		assets: cache,
		state:  p.Genesis(),
	}
	raw, ok, err := store.Get(stateKey)
	if err != nil {
		return nil, fmt.Errorf("load indexer state: %w", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &ix.state); err != nil {
			return nil, fmt.Errorf("decode indexer state: %w", err)
		}
	}
	if ix.state.Commitment != tree.Root() {
		return nil, fmt.Errorf("%w: stored state %s, mirror root %s", rolluperrors.ErrIRootDivergence,
			common.Str(ix.state.Commitment), common.Str(tree.Root()))
	}
	log.Info(log.IndexerMonitoring, "indexer opened", "state", ix.state.String())
	return ix, nil
}

// Close stops serving. The store belongs to the caller.
func (ix *Indexer) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.closed = true
	ix.assets.Purge()
	return nil
}

// State is the last state the mirror reached.
func (ix *Indexer) State() types.LedgerState {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.state
}

func (ix *Indexer) Root() common.Hash {
	return ix.tree.Root()
}

func (ix *Indexer) Hasher() types.Hasher {
	return ix.params.Hasher
}

// Halted returns the consistency failure that stopped the indexer, if any.
func (ix *Indexer) Halted() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.halted
}

// Prove serves a witness against the mirror root.
func (ix *Indexer) Prove(index uint64) (types.MerkleWitness, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return types.MerkleWitness{}, rolluperrors.ErrIClosed
	}
	if index >= ix.params.Capacity() {
		return types.MerkleWitness{}, fmt.Errorf("%w: %d", rolluperrors.ErrLWitnessIndex, index)
	}
	return ix.tree.Prove(index)
}

// GetAsset returns the asset record stored at index.
func (ix *Indexer) GetAsset(index uint64) (types.Asset, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return types.Asset{}, rolluperrors.ErrIClosed
	}
	if index == types.DummyAssetID || index >= ix.params.Capacity() {
		return types.Asset{}, fmt.Errorf("%w: %d", rolluperrors.ErrIAssetNotFound, index)
	}
	if a, ok := ix.assets.Get(index); ok {
		cacheHits.Inc()
		return a, nil
	}
	cacheMisses.Inc()
	raw, ok, err := ix.store.Get(assetKey(index))
	if err != nil {
		return types.Asset{}, err
	}
	if !ok {
		return types.Asset{}, fmt.Errorf("%w: %d", rolluperrors.ErrIAssetNotFound, index)
	}
	a, err := types.DecodeAsset(raw)
	if err != nil {
		return types.Asset{}, err
	}
	ix.assets.Add(index, a)
	return a, nil
}

// Sync replays every action between the mirror cursor and target's cursor,
// then checks the mirror against target. Actions are pulled in capped
// chunks; each chunk collects all its witnesses before mutating anything.
func (ix *Indexer) Sync(ctx context.Context, src ActionSource, target types.LedgerState) (types.LedgerState, error) {
	ctx, span := tracer.Start(ctx, "indexer.Sync")
	defer span.End()
	start := time.Now()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return types.LedgerState{}, rolluperrors.ErrIClosed
	}
	if ix.halted != nil {
		return types.LedgerState{}, fmt.Errorf("%w: %w", rolluperrors.ErrIHalted, ix.halted)
	}

	applied := 0
	for ix.state.ActionsCursor != target.ActionsCursor {
		if err := ctx.Err(); err != nil {
			return ix.state, err
		}
		actions, err := src.GetActions(ix.state.ActionsCursor, target.ActionsCursor)
		if err != nil {
			return ix.state, fmt.Errorf("%w: %v", rolluperrors.ErrICursorMismatch, err)
		}
		if len(actions) == 0 {
			return ix.state, fmt.Errorf("%w: no actions lead from %s to %s", rolluperrors.ErrICursorMismatch,
				common.Str(ix.state.ActionsCursor), common.Str(target.ActionsCursor))
		}
		if err := ix.applyLocked(actions); err != nil {
			return ix.state, err
		}
		applied += len(actions)
	}
	span.SetAttributes(attribute.Int("actions", applied), attribute.Int64("index", int64(ix.state.CurrentIndex)))
	syncDuration.Observe(time.Since(start).Seconds())
	actionsReplayed.Add(float64(applied))

	if err := ix.checkLocked(target); err != nil {
		return ix.state, err
	}
	if applied > 0 {
		log.Info(log.IndexerMonitoring, "indexer synced", "actions", applied, "index", ix.state.CurrentIndex,
			"root", common.Str(ix.state.Commitment))
	}
	return ix.state, nil
}

// applyLocked runs one chunk through a partial tree frozen at the mirror
// root, then writes the touched leaves into the mirror.
func (ix *Indexer) applyLocked(actions []types.Action) error {
	p := ix.params
	tree, err := rollup.WorkingTree(p, ix.tree, ix.state, actions)
	if err != nil {
		return err
	}

	type write struct {
		index uint64
		leaf  common.Hash
		asset types.Asset
	}
	var writes []write
	cur := ix.state
	for i, a := range actions {
		res, _, err := rollup.Step(p, tree, cur, a)
		if err != nil {
			return fmt.Errorf("replay action %d (%s): %w", i, a, err)
		}
		switch res.Outcome {
		case rollup.OutcomeMinted:
			writes = append(writes, write{res.Index, res.Leaf, a.Asset.AssignID(res.Index)})
		case rollup.OutcomeTransferred:
			writes = append(writes, write{res.Index, res.Leaf, a.Asset})
		default:
			log.Debug(log.IndexerMonitoring, "replayed no-op", "action", a.String(), "outcome", res.Outcome.String())
		}
		cur = res.State
	}

	assetPairs := make([][2][]byte, 0, len(writes))
	for _, w := range writes {
		if _, err := ix.tree.Update(w.index, w.leaf); err != nil {
			return fmt.Errorf("mirror update %d: %w", w.index, err)
		}
		assetPairs = append(assetPairs, [2][]byte{assetKey(w.index), w.asset.Encode()})
		ix.assets.Add(w.index, w.asset)
	}
	if root := ix.tree.Root(); root != cur.Commitment {
		return fmt.Errorf("%w: mirror root %s, replayed %s", rolluperrors.ErrBRootMismatch, common.Str(root), common.Str(cur.Commitment))
	}
	raw, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	assetPairs = append(assetPairs, [2][]byte{stateKey, raw})
	if err := ix.store.PutBatch(assetPairs); err != nil {
		return fmt.Errorf("persist indexer chunk: %w", err)
	}
	ix.state = cur
	return nil
}

// CheckConsistency compares the mirror with a proof-committed state over the
// same action range. A mismatch halts the indexer for good.
func (ix *Indexer) CheckConsistency(committed types.LedgerState) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.checkLocked(committed)
}

func (ix *Indexer) checkLocked(committed types.LedgerState) error {
	if ix.halted != nil {
		return fmt.Errorf("%w: %w", rolluperrors.ErrIHalted, ix.halted)
	}
	if ix.state.ActionsCursor != committed.ActionsCursor {
		return fmt.Errorf("%w: mirror at %s, committed at %s", rolluperrors.ErrICursorMismatch,
			common.Str(ix.state.ActionsCursor), common.Str(committed.ActionsCursor))
	}
	if ix.state.Equal(committed) {
		return nil
	}
	report := DiffStates(committed, ix.state)
	ix.halted = fmt.Errorf("%w: committed %s, mirror %s", rolluperrors.ErrIRootDivergence, committed, ix.state)
	divergences.Inc()
	log.Error(log.IndexerMonitoring, "indexer diverged from committed state", "committed", committed.String(),
		"mirror", ix.state.String(), "diff", report)
	return ix.halted
}

func assetKey(index uint64) []byte {
	key := make([]byte, len(assetPrefix)+8)
	copy(key, assetPrefix)
	binary.BigEndian.PutUint64(key[len(assetPrefix):], index)
	return key
}
