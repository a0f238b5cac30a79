package types

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
)

// MerkleWitness opens one leaf of a sparse Merkle tree.
// Siblings[0] is the sibling at the leaf level, the last entry sits below the root.
type MerkleWitness struct {
	Index    uint64        `json:"index"`
	LeafHash common.Hash   `json:"leafHash"`
	Siblings []common.Hash `json:"siblings"`
}

// Height is the tree height the witness was produced for.
func (w MerkleWitness) Height() int {
	return len(w.Siblings)
}

// ComputeRoot folds leaf up the sibling path.
func (w MerkleWitness) ComputeRoot(h Hasher, leaf common.Hash) common.Hash {
	current := leaf
	index := w.Index
	for _, sibling := range w.Siblings {
		if index&1 == 0 {
			current = h.Node(current, sibling)
		} else {
			current = h.Node(sibling, current)
		}
		index >>= 1
	}
	return current
}

// Root is the root the witness opens to with its own leaf value.
func (w MerkleWitness) Root(h Hasher) common.Hash {
	return w.ComputeRoot(h, w.LeafHash)
}

// Verify reports whether leaf sits at w.Index under root.
func (w MerkleWitness) Verify(h Hasher, root common.Hash, leaf common.Hash) bool {
	return w.ComputeRoot(h, leaf) == root
}

func (w MerkleWitness) Clone() MerkleWitness {
	siblings := make([]common.Hash, len(w.Siblings))
	copy(siblings, w.Siblings)
	return MerkleWitness{Index: w.Index, LeafHash: w.LeafHash, Siblings: siblings}
}

// Serialize encodes a witness for transmission.
// Format: [index:8][leaf:32][path_len:2][path_hashes:32*len]
func (w MerkleWitness) Serialize() []byte {
	buf := make([]byte, 42+len(w.Siblings)*32)
	binary.BigEndian.PutUint64(buf[0:8], w.Index)
	copy(buf[8:40], w.LeafHash[:])
	binary.BigEndian.PutUint16(buf[40:42], uint16(len(w.Siblings)))

	offset := 42
	for _, hash := range w.Siblings {
		copy(buf[offset:offset+32], hash[:])
		offset += 32
	}
	return buf
}

// DeserializeWitness decodes a witness produced by Serialize.
func DeserializeWitness(data []byte) (MerkleWitness, error) {
	if len(data) < 42 {
		return MerkleWitness{}, fmt.Errorf("witness data too short: %d bytes", len(data))
	}

	pathLen := binary.BigEndian.Uint16(data[40:42])
	if len(data) != 42+int(pathLen)*32 {
		return MerkleWitness{}, fmt.Errorf("witness data length mismatch: expected %d, got %d",
			42+int(pathLen)*32, len(data))
	}

	w := MerkleWitness{
		Index:    binary.BigEndian.Uint64(data[0:8]),
		LeafHash: common.BytesToHash(data[8:40]),
		Siblings: make([]common.Hash, pathLen),
	}
	offset := 42
	for i := 0; i < int(pathLen); i++ {
		copy(w.Siblings[i][:], data[offset:offset+32])
		offset += 32
	}
	return w, nil
}
