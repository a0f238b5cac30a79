package common

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// ToFieldElement reduces an arbitrary 32-byte word into the bn254 scalar field.
func ToFieldElement(h Hash) Hash {
	var e fr.Element
	e.SetBytes(h[:])
	return Hash(e.Bytes())
}

// MiMCHash hashes a sequence of words with MiMC over bn254. Every word is
// reduced into the scalar field first so the sponge never sees a
// non-canonical block.
func MiMCHash(words ...Hash) Hash {
	h := mimc.NewMiMC()
	for _, w := range words {
		b := ToFieldElement(w)
		h.Write(b[:])
	}
	return BytesToHash(h.Sum(nil))
}

// MiMCHashBytes splits data into 32-byte words (zero padded) and hashes them with MiMC.
func MiMCHashBytes(data []byte) Hash {
	words := make([]Hash, 0, len(data)/fr.Bytes+1)
	for i := 0; i < len(data); i += fr.Bytes {
		end := i + fr.Bytes
		if end > len(data) {
			end = len(data)
		}
		var w Hash
		copy(w[:], data[i:end])
		words = append(words, w)
	}
	// length suffix keeps trailing zero bytes distinguishable
	words = append(words, BytesToHash(Uint64ToBytes(uint64(len(data)))))
	return MiMCHash(words...)
}
