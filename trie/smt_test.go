package trie

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/colorfulnotion/nftrollup/types"
	"github.com/stretchr/testify/require"
)

type memStore map[string][]byte

func (m memStore) Get(key []byte) ([]byte, bool, error) {
	v, ok := m[string(key)]
	return v, ok, nil
}

func (m memStore) PutBatch(pairs [][2][]byte) error {
	for _, kv := range pairs {
		m[string(kv[0])] = append([]byte(nil), kv[1]...)
	}
	return nil
}

func leafOf(i int) common.Hash {
	return common.Blake2Hash([]byte{byte(i), 0xaa})
}

func newTestTree(t *testing.T, scheme string, height int) *SparseMerkleTree {
	t.Helper()
	h, err := NewHasher(scheme)
	require.NoError(t, err)
	tree, err := NewSparseMerkleTree(height, h, memStore{}, []byte("n"))
	require.NoError(t, err)
	return tree
}

func TestEmptyTreeRoot(t *testing.T) {
	for _, scheme := range []string{types.Blake2b, types.Keccak, types.MiMC} {
		tree := newTestTree(t, scheme, 8)
		require.Equal(t, EmptyRoot(tree.Hasher(), 8), tree.Root(), scheme)

		w, err := tree.Prove(5)
		require.NoError(t, err)
		require.Equal(t, common.Hash{}, w.LeafHash)
		require.True(t, w.Verify(tree.Hasher(), tree.Root(), common.Hash{}))
	}
}

func TestUnknownHashScheme(t *testing.T) {
	_, err := NewHasher("sha1")
	require.True(t, errors.Is(err, rolluperrors.ErrCHashScheme))
}

func TestUpdateAndProve(t *testing.T) {
	for _, scheme := range []string{types.Blake2b, types.Keccak, types.MiMC} {
		tree := newTestTree(t, scheme, 6)
		for i := 1; i <= 10; i++ {
			before := tree.Root()
			root, err := tree.Update(uint64(i), leafOf(i))
			require.NoError(t, err)
			require.NotEqual(t, before, root)
			require.Equal(t, root, tree.Root())
		}
		for i := 1; i <= 10; i++ {
			leaf, ok, err := tree.Get(uint64(i))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, leafOf(i), leaf)

			w, err := tree.Prove(uint64(i))
			require.NoError(t, err)
			require.Equal(t, tree.Root(), w.Root(tree.Hasher()), "scheme %s index %d", scheme, i)
		}
		_, ok, err := tree.Get(42)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestRootIndependentOfInsertOrder(t *testing.T) {
	a := newTestTree(t, types.Blake2b, 10)
	b := newTestTree(t, types.Blake2b, 10)
	idx := []uint64{3, 900, 17, 1, 512}
	for i, index := range idx {
		_, err := a.Update(index, leafOf(i))
		require.NoError(t, err)
	}
	for i := len(idx) - 1; i >= 0; i-- {
		_, err := b.Update(idx[i], leafOf(i))
		require.NoError(t, err)
	}
	require.Equal(t, a.Root(), b.Root())
}

func TestUpdateWithStaleWitness(t *testing.T) {
	tree := newTestTree(t, types.Blake2b, 4)
	w, err := tree.Prove(2)
	require.NoError(t, err)

	_, err = tree.Update(3, leafOf(3))
	require.NoError(t, err)

	_, err = tree.UpdateWithWitness(w, leafOf(2))
	require.True(t, errors.Is(err, rolluperrors.ErrLStaleWitness))

	short := w.Clone()
	short.Siblings = short.Siblings[:2]
	_, err = tree.UpdateWithWitness(short, leafOf(2))
	require.True(t, errors.Is(err, rolluperrors.ErrLWitnessShape))
}

func TestIndexOutOfRange(t *testing.T) {
	tree := newTestTree(t, types.Blake2b, 4)
	require.Equal(t, uint64(16), tree.Capacity())
	require.Panics(t, func() { tree.Prove(16) })
	require.Panics(t, func() { tree.Update(99, leafOf(1)) })
	require.NotPanics(t, func() { tree.Prove(15) })
}

func TestTreeReopensFromStore(t *testing.T) {
	h, err := NewHasher(types.Blake2b)
	require.NoError(t, err)
	store := memStore{}
	tree, err := NewSparseMerkleTree(8, h, store, []byte("n"))
	require.NoError(t, err)
	_, err = tree.Update(7, leafOf(7))
	require.NoError(t, err)

	reopened, err := NewSparseMerkleTree(8, h, store, []byte("n"))
	require.NoError(t, err)
	require.Equal(t, tree.Root(), reopened.Root())

	// another prefix is another tree
	other, err := NewSparseMerkleTree(8, h, store, []byte("m"))
	require.NoError(t, err)
	require.Equal(t, EmptyRoot(h, 8), other.Root())
}

func TestInvalidHeight(t *testing.T) {
	h, _ := NewHasher(types.Blake2b)
	_, err := NewSparseMerkleTree(0, h, memStore{}, nil)
	require.True(t, errors.Is(err, rolluperrors.ErrCTreeHeight))
	_, err = NewSparseMerkleTree(64, h, memStore{}, nil)
	require.True(t, errors.Is(err, rolluperrors.ErrCTreeHeight))
}
