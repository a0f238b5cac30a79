package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/colorfulnotion/nftrollup/anchor"
	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/indexer"
	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/node"
	"github.com/colorfulnotion/nftrollup/prover"
	"github.com/colorfulnotion/nftrollup/types"
)

// NFTRPCHandler serves ledger queries and dispatches actions. Reads of
// assets and witnesses go to the indexer, state and actions to the anchor.
type NFTRPCHandler struct {
	ledger   *anchor.Ledger
	indexer  *indexer.Indexer
	pipeline *node.Pipeline
}

// NewNFTRPCHandler creates a handler. pipeline may be nil, in which case
// nft_rollup is refused.
func NewNFTRPCHandler(ledger *anchor.Ledger, ix *indexer.Indexer, pipeline *node.Pipeline) *NFTRPCHandler {
	return &NFTRPCHandler{ledger: ledger, indexer: ix, pipeline: pipeline}
}

func marshalResult(v interface{}, res *string) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %v", err)
	}
	*res = string(jsonBytes)
	return nil
}

func parseIndex(s string) (uint64, error) {
	index, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid asset index %q: %v", s, err)
	}
	return index, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// GetState returns the anchored and indexed states.
//
// Request: {"jsonrpc":"2.0","id":1,"method":"nft_getState","params":[]}
func (h *NFTRPCHandler) GetState(req []string, res *string) error {
	info := map[string]interface{}{
		"name":        h.ledger.Name(),
		"symbol":      h.ledger.Symbol(),
		"anchored":    h.ledger.State(),
		"indexed":     h.indexer.State(),
		"actionsHead": h.ledger.ActionsCursor(),
		"canMint":     h.ledger.CanMint(),
	}
	if err := h.indexer.Halted(); err != nil {
		info["halted"] = err.Error()
	}
	return marshalResult(info, res)
}

// GetAsset returns the indexed asset at a leaf index.
//
// Request: {"jsonrpc":"2.0","id":1,"method":"nft_getAsset","params":["3"]}
func (h *NFTRPCHandler) GetAsset(req []string, res *string) error {
	if len(req) != 1 {
		return fmt.Errorf("nft_getAsset expects [index]")
	}
	index, err := parseIndex(req[0])
	if err != nil {
		return err
	}
	asset, err := h.indexer.GetAsset(index)
	if err != nil {
		return err
	}
	return marshalResult(map[string]interface{}{
		"asset":    asset,
		"content":  asset.ContentString(),
		"leafHash": asset.Hash(h.indexer.Hasher()),
	}, res)
}

// GetWitness returns the Merkle opening of a leaf against the indexed root,
// also in its compact binary form.
//
// Request: {"jsonrpc":"2.0","id":1,"method":"nft_getWitness","params":["3"]}
func (h *NFTRPCHandler) GetWitness(req []string, res *string) error {
	if len(req) != 1 {
		return fmt.Errorf("nft_getWitness expects [index]")
	}
	index, err := parseIndex(req[0])
	if err != nil {
		return err
	}
	w, err := h.indexer.Prove(index)
	if err != nil {
		return err
	}
	return marshalResult(map[string]interface{}{
		"witness": w,
		"raw":     common.Bytes2Hex(w.Serialize()),
	}, res)
}

// GetActions returns logged actions after from, up to to (head when omitted).
//
// Request: {"jsonrpc":"2.0","id":1,"method":"nft_getActions","params":["0x..."]}
func (h *NFTRPCHandler) GetActions(req []string, res *string) error {
	if len(req) < 1 || len(req) > 2 {
		return fmt.Errorf("nft_getActions expects [from, to?]")
	}
	from := common.HexToHash(req[0])
	var to common.Hash
	if len(req) == 2 {
		to = common.HexToHash(req[1])
	}
	actions, err := h.ledger.GetActions(from, to)
	if err != nil {
		return err
	}
	if actions == nil {
		actions = []types.Action{}
	}
	return marshalResult(actions, res)
}

// Mint queues a mint of content owned by owner and returns the new log head.
//
// Request: {"jsonrpc":"2.0","id":1,"method":"nft_mint","params":["my nft","0xf39F..."]}
func (h *NFTRPCHandler) Mint(req []string, res *string) error {
	if len(req) != 2 {
		return fmt.Errorf("nft_mint expects [content, owner]")
	}
	owner, err := parseAddress(req[1])
	if err != nil {
		return err
	}
	asset, err := types.NewAsset(req[0], owner)
	if err != nil {
		return err
	}
	cursor, err := h.ledger.Mint(asset)
	if err != nil {
		return err
	}
	log.Debug(log.RPCMonitoring, "nft_mint", "owner", owner.Hex(), "cursor", common.Str(cursor))
	return marshalResult(cursor, res)
}

// Transfer queues moving the indexed asset at index to receiver.
//
// Request: {"jsonrpc":"2.0","id":1,"method":"nft_transfer","params":["3","0x7099..."]}
func (h *NFTRPCHandler) Transfer(req []string, res *string) error {
	if len(req) != 2 {
		return fmt.Errorf("nft_transfer expects [index, receiver]")
	}
	index, err := parseIndex(req[0])
	if err != nil {
		return err
	}
	receiver, err := parseAddress(req[1])
	if err != nil {
		return err
	}
	asset, err := h.indexer.GetAsset(index)
	if err != nil {
		return err
	}
	cursor, err := h.ledger.Transfer(asset, asset.Owner, receiver)
	if err != nil {
		return err
	}
	log.Debug(log.RPCMonitoring, "nft_transfer", "index", index, "receiver", receiver.Hex(), "cursor", common.Str(cursor))
	return marshalResult(cursor, res)
}

// Rollup runs the pipeline once and returns its report with the merge tree.
//
// Request: {"jsonrpc":"2.0","id":1,"method":"nft_rollup","params":[]}
func (h *NFTRPCHandler) Rollup(ctx context.Context, req []string, res *string) error {
	if h.pipeline == nil {
		return fmt.Errorf("nft_rollup is disabled on this server")
	}
	report, err := h.pipeline.RunOnce(ctx)
	if err != nil {
		return err
	}
	if report == nil {
		return marshalResult(map[string]interface{}{"pending": 0}, res)
	}
	return marshalResult(map[string]interface{}{
		"report":    report,
		"mergeTree": prover.RenderMergeTree(report.Proof),
	}, res)
}
