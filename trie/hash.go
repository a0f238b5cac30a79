package trie

import (
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// NewHasher returns the hasher for a scheme name (types.Blake2b, types.Keccak, types.MiMC).
func NewHasher(scheme string) (types.Hasher, error) {
	switch scheme {
	case types.Blake2b, "":
		return blake2bHasher{}, nil
	case types.Keccak:
		return keccakHasher{}, nil
	case types.MiMC:
		return mimcHasher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", rolluperrors.ErrCHashScheme, scheme)
	}
}

// blake2bHasher hashes with $leaf / $node domain prefixes.
type blake2bHasher struct{}

func (blake2bHasher) Name() string { return types.Blake2b }

func (blake2bHasher) Leaf(data []byte) common.Hash {
	return common.BytesToHash(computeLeaf(data))
}

func (blake2bHasher) Node(left, right common.Hash) common.Hash {
	combined := make([]byte, 64)
	copy(combined[:32], left[:])
	copy(combined[32:], right[:])
	return common.BytesToHash(computeNode(combined))
}

type keccakHasher struct{}

func (keccakHasher) Name() string { return types.Keccak }

func (keccakHasher) Leaf(data []byte) common.Hash {
	return common.Hash(crypto.Keccak256Hash(data))
}

func (keccakHasher) Node(left, right common.Hash) common.Hash {
	return common.Hash(crypto.Keccak256Hash(left[:], right[:]))
}

// mimcHasher keeps the whole tree inside the bn254 scalar field.
type mimcHasher struct{}

func (mimcHasher) Name() string { return types.MiMC }

func (mimcHasher) Leaf(data []byte) common.Hash {
	return common.MiMCHashBytes(data)
}

func (mimcHasher) Node(left, right common.Hash) common.Hash {
	return common.MiMCHash(left, right)
}

// computeNode hashes the data with $node using Blake2b-256
func computeNode(data []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("node"))
	h.Write(data)
	return h.Sum(nil)
}

// computeLeaf hashes the data with $leaf using Blake2b-256
func computeLeaf(data []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("leaf"))
	h.Write(data)
	return h.Sum(nil)
}

// ZeroHashes returns the empty subtree hash for every level, index 0 is the
// empty leaf and index height is the empty root.
func ZeroHashes(h types.Hasher, height int) []common.Hash {
	zero := make([]common.Hash, height+1)
	for i := 1; i <= height; i++ {
		zero[i] = h.Node(zero[i-1], zero[i-1])
	}
	return zero
}

// EmptyRoot is the root of a tree with no leaves written.
func EmptyRoot(h types.Hasher, height int) common.Hash {
	return ZeroHashes(h, height)[height]
}
