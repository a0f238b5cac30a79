package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashJSON(t *testing.T) {
	h := Blake2Hash([]byte("nftrollup"))
	raw, err := json.Marshal(h)
	require.NoError(t, err)
	require.Equal(t, `"`+h.Hex()+`"`, string(raw))

	var back Hash
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, h, back)
	require.Len(t, Str(h), 10)
}

func TestAddressJSON(t *testing.T) {
	a := GetDevAccount(2)
	require.True(t, IsHexAddress(a.Hex()))
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var back Address
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, a, back)
	require.Equal(t, GetDevAccount(0), GetDevAccount(5))
}

func TestKeyedBlake2Hash(t *testing.T) {
	k1 := KeyedBlake2Hash([]byte("key-1"), []byte("a"), []byte("b"))
	require.Equal(t, k1, KeyedBlake2Hash([]byte("key-1"), []byte("ab")))
	require.NotEqual(t, k1, KeyedBlake2Hash([]byte("key-2"), []byte("ab")))

	long := make([]byte, 100)
	require.NotPanics(t, func() { KeyedBlake2Hash(long, []byte("x")) })
	require.NotEqual(t, Blake2Hash([]byte("x")), Keccak256([]byte("x")))
}

func TestMiMCHash(t *testing.T) {
	a := Blake2Hash([]byte("a"))
	b := Blake2Hash([]byte("b"))
	require.Equal(t, MiMCHash(a, b), MiMCHash(a, b))
	require.NotEqual(t, MiMCHash(a, b), MiMCHash(b, a))

	// words above the field modulus are reduced, not rejected
	var max Hash
	for i := range max {
		max[i] = 0xff
	}
	require.NotPanics(t, func() { MiMCHash(max) })
	require.Equal(t, MiMCHash(max), MiMCHash(ToFieldElement(max)))

	require.NotEqual(t, MiMCHashBytes([]byte{1}), MiMCHashBytes([]byte{1, 0}))
	require.Equal(t, FromHex(Bytes2Hex([]byte{1, 2, 3})), []byte{1, 2, 3})
}
