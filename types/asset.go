package types

import (
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	// MaxContentLength is the number of 32-byte words an asset carries.
	MaxContentLength = 8

	// DummyAssetID is the sentinel leaf index. It is never written.
	DummyAssetID uint64 = 0
)

// Asset is the NFT record stored (by hash) at a ledger leaf.
type Asset struct {
	ID      uint64                        `json:"id"`
	Content [MaxContentLength]common.Hash `json:"content"`
	Owner   common.Address                `json:"owner"`
}

// NewAsset packs content into the asset's content words. The asset is unassigned.
func NewAsset(content string, owner common.Address) (Asset, error) {
	raw := []byte(content)
	if len(raw) > MaxContentLength*32 {
		return Asset{}, fmt.Errorf("asset content is %d bytes, limit is %d", len(raw), MaxContentLength*32)
	}
	a := Asset{Owner: owner}
	for i := 0; i < len(raw); i += 32 {
		end := i + 32
		if end > len(raw) {
			end = len(raw)
		}
		copy(a.Content[i/32][:], raw[i:end])
	}
	return a, nil
}

// ContentString reverses NewAsset, trailing zero bytes are dropped.
func (a Asset) ContentString() string {
	buf := make([]byte, 0, MaxContentLength*32)
	for _, w := range a.Content {
		buf = append(buf, w[:]...)
	}
	end := len(buf)
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	return string(buf[:end])
}

func (a Asset) IsAssigned() bool {
	return a.ID != DummyAssetID
}

// AssignID returns a copy of the asset carrying id.
func (a Asset) AssignID(id uint64) Asset {
	a.ID = id
	return a
}

// ChangeOwner returns a copy of the asset owned by owner.
func (a Asset) ChangeOwner(owner common.Address) Asset {
	a.Owner = owner
	return a
}

func (a Asset) Encode() []byte {
	b, err := rlp.EncodeToBytes(&a)
	if err != nil {
		// fixed-size struct of integers and byte arrays always encodes
		panic(fmt.Sprintf("asset encode: %v", err))
	}
	return b
}

func DecodeAsset(data []byte) (Asset, error) {
	var a Asset
	if err := rlp.DecodeBytes(data, &a); err != nil {
		return Asset{}, fmt.Errorf("decode asset: %w", err)
	}
	return a, nil
}

// Hash is the leaf value stored for this asset.
func (a Asset) Hash(h Hasher) common.Hash {
	return h.Leaf(a.Encode())
}
