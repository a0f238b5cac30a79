package rollup

import (
	"fmt"

	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/trie"
	"github.com/colorfulnotion/nftrollup/types"
)

// Params fixes the shape every party of one ledger must agree on.
type Params struct {
	Height    int
	Supply    uint64
	BatchSize int
	Hasher    types.Hasher
}

func NewParams(cfg config.Config) (Params, error) {
	if err := cfg.Validate(); err != nil {
		return Params{}, err
	}
	hasher, err := trie.NewHasher(cfg.HashScheme)
	if err != nil {
		return Params{}, err
	}
	return Params{
		Height:    cfg.TreeHeight,
		Supply:    cfg.Supply,
		BatchSize: cfg.BatchSize,
		Hasher:    hasher,
	}, nil
}

// Genesis is the state of an empty ledger.
func (p Params) Genesis() types.LedgerState {
	return types.LedgerState{
		Commitment:    trie.EmptyRoot(p.Hasher, p.Height),
		CurrentIndex:  0,
		ActionsCursor: types.EmptyActionsCursor,
	}
}

func (p Params) Capacity() uint64 {
	return uint64(1) << p.Height
}

func (p Params) String() string {
	return fmt.Sprintf("height=%d supply=%d batch=%d hash=%s", p.Height, p.Supply, p.BatchSize, p.Hasher.Name())
}
