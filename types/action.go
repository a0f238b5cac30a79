package types

import (
	"fmt"

	"github.com/colorfulnotion/nftrollup/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// ActionKind is the discriminant of Action.
type ActionKind uint8

const (
	// ActionDummy is batch padding, it never reaches the action log.
	ActionDummy ActionKind = iota
	ActionMint
	ActionTransfer
)

func (k ActionKind) String() string {
	switch k {
	case ActionDummy:
		return "Dummy"
	case ActionMint:
		return "Mint"
	case ActionTransfer:
		return "Transfer"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Action is a requested ledger mutation.
//
// For a mint, Asset is unassigned and OriginalLeafHash is empty. For a
// transfer, Asset carries its existing id and the new owner while
// OriginalLeafHash is the leaf hash the sender saw before the transfer.
type Action struct {
	Kind             ActionKind  `json:"kind"`
	Asset            Asset       `json:"asset"`
	OriginalLeafHash common.Hash `json:"originalLeafHash"`
}

func MintAction(asset Asset) Action {
	return Action{Kind: ActionMint, Asset: asset}
}

func TransferAction(asset Asset, originalLeafHash common.Hash) Action {
	return Action{Kind: ActionTransfer, Asset: asset, OriginalLeafHash: originalLeafHash}
}

func DummyAction() Action {
	return Action{Kind: ActionDummy}
}

func (a Action) IsMint() bool     { return a.Kind == ActionMint }
func (a Action) IsTransfer() bool { return a.Kind == ActionTransfer }
func (a Action) IsDummy() bool    { return a.Kind == ActionDummy }

func (a Action) Encode() []byte {
	b, err := rlp.EncodeToBytes(&a)
	if err != nil {
		panic(fmt.Sprintf("action encode: %v", err))
	}
	return b
}

func DecodeAction(data []byte) (Action, error) {
	var a Action
	if err := rlp.DecodeBytes(data, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	if a.Kind > ActionTransfer {
		return Action{}, fmt.Errorf("decode action: unknown kind %d", a.Kind)
	}
	return a, nil
}

// EventHash is the per-action hash folded into the actions cursor.
func (a Action) EventHash() common.Hash {
	return common.MiMCHashBytes(a.Encode())
}

func (a Action) String() string {
	switch a.Kind {
	case ActionTransfer:
		return fmt.Sprintf("Transfer{id=%d owner=%s orig=%s}", a.Asset.ID, a.Asset.Owner.Hex(), common.Str(a.OriginalLeafHash))
	case ActionMint:
		return fmt.Sprintf("Mint{owner=%s}", a.Asset.Owner.Hex())
	default:
		return a.Kind.String()
	}
}

// EmptyActionsCursor is the cursor of a log with no actions.
var EmptyActionsCursor = common.MiMCHashBytes([]byte("nftrollup/actions/empty"))

// FoldCursor folds one action into a running actions cursor.
func FoldCursor(prev common.Hash, a Action) common.Hash {
	return common.MiMCHash(prev, a.EventHash())
}
