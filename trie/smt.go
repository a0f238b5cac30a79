package trie

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
)

const (
	// MaxTreeHeight keeps every leaf index representable in a uint64.
	MaxTreeHeight = 63
)

// NodeStore is the key-value backend of a SparseMerkleTree.
// storage.PersistenceStore satisfies it.
type NodeStore interface {
	Get(key []byte) ([]byte, bool, error)
	PutBatch(pairs [][2][]byte) error
}

// SparseMerkleTree is a fixed-height binary Merkle tree whose untouched
// subtrees hash to the precomputed zero hash of their level. Only nodes that
// differ from the zero hash are stored.
type SparseMerkleTree struct {
	mu sync.RWMutex

	height int
	hasher types.Hasher
	zero   []common.Hash

	store  NodeStore
	prefix []byte
	root   common.Hash
}

// NewSparseMerkleTree opens a tree over store. Keys are namespaced by prefix,
// an existing root under the same prefix is picked up.
func NewSparseMerkleTree(height int, hasher types.Hasher, store NodeStore, prefix []byte) (*SparseMerkleTree, error) {
	if height < 1 || height > MaxTreeHeight {
		return nil, fmt.Errorf("%w: got %d", rolluperrors.ErrCTreeHeight, height)
	}
	t := &SparseMerkleTree{
		height: height,
		hasher: hasher,
		zero:   ZeroHashes(hasher, height),
		store:  store,
		prefix: append([]byte(nil), prefix...),
	}
	t.root = t.zero[height]

	raw, ok, err := store.Get(t.rootKey())
	if err != nil {
		return nil, fmt.Errorf("load root: %w", err)
	}
	if ok {
		if len(raw) != common.HashLength {
			return nil, fmt.Errorf("%w: root is %d bytes", rolluperrors.ErrLCorruptNode, len(raw))
		}
		t.root = common.BytesToHash(raw)
	}
	return t, nil
}

func (t *SparseMerkleTree) Height() int {
	return t.height
}

// Capacity is the number of leaves, index 0 included.
func (t *SparseMerkleTree) Capacity() uint64 {
	return uint64(1) << t.height
}

func (t *SparseMerkleTree) Hasher() types.Hasher {
	return t.hasher
}

func (t *SparseMerkleTree) Root() common.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Get returns the leaf hash at index. The bool is false for an unwritten leaf.
func (t *SparseMerkleTree) Get(index uint64) (common.Hash, bool, error) {
	t.checkIndex(index)
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.node(0, index)
}

// Prove returns the witness of index against the current root.
func (t *SparseMerkleTree) Prove(index uint64) (types.MerkleWitness, error) {
	t.checkIndex(index)
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, _, err := t.node(0, index)
	if err != nil {
		return types.MerkleWitness{}, err
	}
	w := types.MerkleWitness{
		Index:    index,
		LeafHash: leaf,
		Siblings: make([]common.Hash, t.height),
	}
	current := index
	for level := 0; level < t.height; level++ {
		sibling, _, err := t.node(level, current^1)
		if err != nil {
			return types.MerkleWitness{}, err
		}
		w.Siblings[level] = sibling
		current >>= 1
	}
	return w, nil
}

// Update writes leaf at index and returns the new root.
func (t *SparseMerkleTree) Update(index uint64, leaf common.Hash) (common.Hash, error) {
	w, err := t.Prove(index)
	if err != nil {
		return common.Hash{}, err
	}
	return t.UpdateWithWitness(w, leaf)
}

// UpdateWithWitness writes leaf at w.Index, trusting w for the sibling path.
// The witness must open to the current root.
func (t *SparseMerkleTree) UpdateWithWitness(w types.MerkleWitness, leaf common.Hash) (common.Hash, error) {
	t.checkIndex(w.Index)
	if w.Height() != t.height {
		return common.Hash{}, fmt.Errorf("%w: path %d, height %d", rolluperrors.ErrLWitnessShape, w.Height(), t.height)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if w.Root(t.hasher) != t.root {
		return common.Hash{}, fmt.Errorf("%w: index %d", rolluperrors.ErrLStaleWitness, w.Index)
	}

	pairs := make([][2][]byte, 0, t.height+2)
	current := leaf
	index := w.Index
	for level := 0; level < t.height; level++ {
		pairs = append(pairs, [2][]byte{t.nodeKey(level, index), current.Bytes()})
		if index&1 == 0 {
			current = t.hasher.Node(current, w.Siblings[level])
		} else {
			current = t.hasher.Node(w.Siblings[level], current)
		}
		index >>= 1
	}
	pairs = append(pairs, [2][]byte{t.rootKey(), current.Bytes()})

	if err := t.store.PutBatch(pairs); err != nil {
		return common.Hash{}, fmt.Errorf("write path of %d: %w", w.Index, err)
	}
	t.root = current
	return current, nil
}

// checkIndex panics on an index outside the tree, callers validate first.
func (t *SparseMerkleTree) checkIndex(index uint64) {
	if index >= t.Capacity() {
		panic(fmt.Sprintf("%v: index %d outside a height %d tree", rolluperrors.ErrLWitnessIndex, index, t.height))
	}
}

func (t *SparseMerkleTree) node(level int, index uint64) (common.Hash, bool, error) {
	raw, ok, err := t.store.Get(t.nodeKey(level, index))
	if err != nil {
		return common.Hash{}, false, err
	}
	if !ok {
		return t.zero[level], false, nil
	}
	if len(raw) != common.HashLength {
		return common.Hash{}, false, fmt.Errorf("%w: node (%d,%d) is %d bytes", rolluperrors.ErrLCorruptNode, level, index, len(raw))
	}
	return common.BytesToHash(raw), true, nil
}

// nodeKey is prefix | level | index (big endian).
func (t *SparseMerkleTree) nodeKey(level int, index uint64) []byte {
	key := make([]byte, len(t.prefix)+9)
	copy(key, t.prefix)
	key[len(t.prefix)] = byte(level)
	binary.BigEndian.PutUint64(key[len(t.prefix)+1:], index)
	return key
}

func (t *SparseMerkleTree) rootKey() []byte {
	return append(append([]byte(nil), t.prefix...), []byte("root")...)
}
