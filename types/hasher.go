package types

import "github.com/colorfulnotion/nftrollup/common"

// Hash schemes understood by trie.NewHasher.
const (
	Blake2b = "blake2b"
	Keccak  = "keccak"
	MiMC    = "mimc"
)

// Hasher is the pair of compression functions a ledger is built with.
// Leaf hashes asset records, Node combines two children.
type Hasher interface {
	Name() string
	Leaf(data []byte) common.Hash
	Node(left, right common.Hash) common.Hash
}
