package trie

import (
	"fmt"
	"sort"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
)

type nodeRef struct {
	level int
	index uint64
}

// PartialTree is the deep subtree of a sparse Merkle tree spanned by a set of
// witnesses collected against one root. Every branch added is fully known, so
// tracked leaves can be proven and updated repeatedly without going back to
// the full tree. Not safe for concurrent use.
type PartialTree struct {
	height int
	hasher types.Hasher
	root   common.Hash
	nodes  map[nodeRef]common.Hash
}

func NewPartialTree(height int, hasher types.Hasher, root common.Hash) *PartialTree {
	return &PartialTree{
		height: height,
		hasher: hasher,
		root:   root,
		nodes:  make(map[nodeRef]common.Hash),
	}
}

// PartialTreeFromWitnesses builds a partial tree over root from ws.
func PartialTreeFromWitnesses(height int, hasher types.Hasher, root common.Hash, ws []types.MerkleWitness) (*PartialTree, error) {
	p := NewPartialTree(height, hasher, root)
	for _, w := range ws {
		if err := p.AddBranch(w); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *PartialTree) Height() int {
	return p.height
}

func (p *PartialTree) Hasher() types.Hasher {
	return p.hasher
}

func (p *PartialTree) Root() common.Hash {
	return p.root
}

// AddBranch merges the path of w. The witness must open to the current root.
func (p *PartialTree) AddBranch(w types.MerkleWitness) error {
	if w.Height() != p.height {
		return fmt.Errorf("%w: path %d, height %d", rolluperrors.ErrLWitnessShape, w.Height(), p.height)
	}
	if w.Index >= uint64(1)<<p.height {
		return fmt.Errorf("%w: index %d", rolluperrors.ErrLWitnessIndex, w.Index)
	}
	if w.Root(p.hasher) != p.root {
		return fmt.Errorf("%w: index %d", rolluperrors.ErrLStaleWitness, w.Index)
	}

	updates := make(map[nodeRef]common.Hash, 2*p.height+1)
	current := w.LeafHash
	index := w.Index
	for level := 0; level < p.height; level++ {
		updates[nodeRef{level, index}] = current
		updates[nodeRef{level, index ^ 1}] = w.Siblings[level]
		if index&1 == 0 {
			current = p.hasher.Node(current, w.Siblings[level])
		} else {
			current = p.hasher.Node(w.Siblings[level], current)
		}
		index >>= 1
	}
	for ref, h := range updates {
		if known, ok := p.nodes[ref]; ok && known != h {
			return fmt.Errorf("%w: node (%d,%d)", rolluperrors.ErrLBranchConflict, ref.level, ref.index)
		}
	}
	for ref, h := range updates {
		p.nodes[ref] = h
	}
	return nil
}

// Tracked reports whether index can be proven. Besides the collected
// indices this includes their level 0 siblings, which share the same path.
func (p *PartialTree) Tracked(index uint64) bool {
	_, ok := p.nodes[nodeRef{0, index}]
	return ok
}

// Indices lists the tracked leaf indices in ascending order.
func (p *PartialTree) Indices() []uint64 {
	var out []uint64
	for ref := range p.nodes {
		if ref.level == 0 {
			out = append(out, ref.index)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns the current leaf hash at a tracked index.
func (p *PartialTree) Get(index uint64) (common.Hash, error) {
	if !p.Tracked(index) {
		return common.Hash{}, fmt.Errorf("%w: %d", rolluperrors.ErrLUntrackedIndex, index)
	}
	return p.nodes[nodeRef{0, index}], nil
}

// Prove returns the witness of a tracked index against the current root.
func (p *PartialTree) Prove(index uint64) (types.MerkleWitness, error) {
	if !p.Tracked(index) {
		return types.MerkleWitness{}, fmt.Errorf("%w: %d", rolluperrors.ErrLUntrackedIndex, index)
	}
	w := types.MerkleWitness{
		Index:    index,
		LeafHash: p.nodes[nodeRef{0, index}],
		Siblings: make([]common.Hash, p.height),
	}
	current := index
	for level := 0; level < p.height; level++ {
		w.Siblings[level] = p.nodes[nodeRef{level, current ^ 1}]
		current >>= 1
	}
	return w, nil
}

// Update writes leaf at a tracked index and returns the new root.
func (p *PartialTree) Update(index uint64, leaf common.Hash) (common.Hash, error) {
	w, err := p.Prove(index)
	if err != nil {
		return common.Hash{}, err
	}
	current := leaf
	idx := index
	for level := 0; level < p.height; level++ {
		p.nodes[nodeRef{level, idx}] = current
		if idx&1 == 0 {
			current = p.hasher.Node(current, w.Siblings[level])
		} else {
			current = p.hasher.Node(w.Siblings[level], current)
		}
		idx >>= 1
	}
	p.root = current
	return current, nil
}

// Clone returns an independent copy.
func (p *PartialTree) Clone() *PartialTree {
	c := NewPartialTree(p.height, p.hasher, p.root)
	for ref, h := range p.nodes {
		c.nodes[ref] = h
	}
	return c
}
