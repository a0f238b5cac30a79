package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/colorfulnotion/nftrollup/actionlog"
	"github.com/colorfulnotion/nftrollup/anchor"
	"github.com/colorfulnotion/nftrollup/common"
	"github.com/colorfulnotion/nftrollup/config"
	"github.com/colorfulnotion/nftrollup/indexer"
	"github.com/colorfulnotion/nftrollup/node"
	"github.com/colorfulnotion/nftrollup/prover"
	"github.com/colorfulnotion/nftrollup/rollup"
	"github.com/colorfulnotion/nftrollup/storage"
	"github.com/colorfulnotion/nftrollup/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

type testServer struct {
	ledger *anchor.Ledger
	ts     *httptest.Server
	srv    *NFTHTTPServer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	c := config.Default()
	c.TreeHeight = 6
	c.Supply = 10
	c.BatchSize = 2
	p, err := rollup.NewParams(c)
	require.NoError(t, err)
	store, err := storage.NewMemoryPersistenceStore()
	require.NoError(t, err)

	pr := prover.NewReplayProver(p, []byte("rpc test"))
	ledger := anchor.New(p, actionlog.New(c.MaxActionsPerCall), pr)
	ix, err := indexer.Open(p, store, 8)
	require.NoError(t, err)
	pipeline := node.NewPipeline(p, c, ledger, ix, pr)

	states, cancel := ledger.Subscribe()
	hub := NewHub(context.Background())
	hub.Run(states)
	srv := NewNFTHTTPServer(NewNFTRPCHandler(ledger, ix, pipeline), hub)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		require.NoError(t, srv.Shutdown(context.Background()))
		cancel()
		store.Close()
	})
	return &testServer{ledger: ledger, ts: ts, srv: srv}
}

func (s *testServer) call(t *testing.T, method string, params ...interface{}) rpcResponse {
	t.Helper()
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)
	resp, err := http.Post(s.ts.URL, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *testServer) ok(t *testing.T, method string, params ...interface{}) json.RawMessage {
	t.Helper()
	out := s.call(t, method, params...)
	require.Nil(t, out.Error, "%s: %+v", method, out.Error)
	return out.Result
}

func TestMintRollupQuery(t *testing.T) {
	s := newTestServer(t)
	owner := common.GetDevAccount(1)

	s.ok(t, "nft_mint", "first", owner.Hex())
	s.ok(t, "nft_mint", "second", owner.Hex())
	s.ok(t, "nft_mint", "third", owner.Hex())

	var rolled struct {
		Report    node.Report `json:"report"`
		MergeTree string      `json:"mergeTree"`
	}
	require.NoError(t, json.Unmarshal(s.ok(t, "nft_rollup"), &rolled))
	require.Equal(t, 3, rolled.Report.Actions)
	require.Equal(t, 2, rolled.Report.Batches)
	require.Contains(t, rolled.MergeTree, "(2 batches)")

	var asset struct {
		Asset   types.Asset `json:"asset"`
		Content string      `json:"content"`
	}
	require.NoError(t, json.Unmarshal(s.ok(t, "nft_getAsset", "2"), &asset))
	require.Equal(t, uint64(2), asset.Asset.ID)
	require.Equal(t, "second", asset.Content)
	require.Equal(t, owner, asset.Asset.Owner)

	var opened struct {
		Witness types.MerkleWitness `json:"witness"`
		Raw     string              `json:"raw"`
	}
	require.NoError(t, json.Unmarshal(s.ok(t, "nft_getWitness", "2"), &opened))
	require.Equal(t, s.ledger.State().Commitment, opened.Witness.Root(rollupHasher(t)))
	decoded, err := types.DeserializeWitness(common.FromHex(opened.Raw))
	require.NoError(t, err)
	require.Equal(t, opened.Witness, decoded)

	receiver := common.GetDevAccount(2)
	s.ok(t, "nft_transfer", "2", receiver.Hex())
	s.ok(t, "nft_rollup")
	require.NoError(t, json.Unmarshal(s.ok(t, "nft_getAsset", "2"), &asset))
	require.Equal(t, receiver, asset.Asset.Owner)

	var state map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(s.ok(t, "nft_getState"), &state))
	require.JSONEq(t, string(state["anchored"]), string(state["indexed"]))
	require.Equal(t, `"NRG"`, string(state["symbol"]))

	var actions []types.Action
	require.NoError(t, json.Unmarshal(s.ok(t, "nft_getActions", types.EmptyActionsCursor.Hex()), &actions))
	require.Len(t, actions, 4)

	var pending map[string]int
	require.NoError(t, json.Unmarshal(s.ok(t, "nft_rollup"), &pending))
	require.Equal(t, 0, pending["pending"])
}

func rollupHasher(t *testing.T) types.Hasher {
	t.Helper()
	c := config.Default()
	c.TreeHeight = 6
	c.Supply = 10
	p, err := rollup.NewParams(c)
	require.NoError(t, err)
	return p.Hasher
}

func TestRPCErrors(t *testing.T) {
	s := newTestServer(t)

	out := s.call(t, "nft_mint", "x", "not-an-address")
	require.NotNil(t, out.Error)
	require.Contains(t, out.Error.Message, "invalid address")

	out = s.call(t, "nft_getAsset", "7")
	require.NotNil(t, out.Error)
	require.Equal(t, "I3_AssetNotFound", out.Error.Data)

	out = s.call(t, "nft_transfer", "1", common.GetDevAccount(0).Hex())
	require.NotNil(t, out.Error)

	out = s.call(t, "nft_nope")
	require.NotNil(t, out.Error)
	require.Contains(t, out.Error.Message, "unknown method")

	resp, err := http.Get(s.ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.ok(t, "nft_mint", "m", common.GetDevAccount(0).Hex())
	s.ok(t, "nft_rollup")

	resp, err := http.Get(s.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "nftrollup_pipeline_commits_total")
}

func TestStateFeed(t *testing.T) {
	s := newTestServer(t)
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.srv.hub.Clients() == 1 }, 5*time.Second, 5*time.Millisecond)

	s.ok(t, "nft_mint", "fed", common.GetDevAccount(0).Hex())
	s.ok(t, "nft_rollup")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var update StateUpdate
	require.NoError(t, json.Unmarshal(msg, &update))
	require.Equal(t, "nft_stateCommitted", update.Method)
	require.Equal(t, s.ledger.State(), update.State)
}
