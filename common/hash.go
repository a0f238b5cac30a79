package common

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// computeHash computes the BLAKE2b hash of the given data
func ComputeHash(data []byte) []byte {
	hash := blake2b.Sum256(data)
	return hash[:]
}

func Uint64ToBytes(val uint64) []byte {
	bytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(bytes, val)
	return bytes
}

func Blake2Hash(data []byte) Hash {
	return BytesToHash(ComputeHash(data))
}

func Keccak256(data []byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(data)
	h := hash.Sum(nil)
	return BytesToHash(h)
}

// KeyedBlake2Hash is BLAKE2b-256 in keyed (MAC) mode. Keys longer than 64 bytes are hashed first.
func KeyedBlake2Hash(key []byte, data ...[]byte) Hash {
	if len(key) > blake2b.Size {
		k := blake2b.Sum512(key)
		key = k[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// only reachable with an oversized key, handled above
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	return BytesToHash(h.Sum(nil))
}
