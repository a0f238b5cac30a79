// Package rpc exposes the ledger over JSON-RPC, Prometheus metrics and a
// websocket feed of committed states.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/rolluperrors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NFTHTTPServer wraps the RPC handler and provides HTTP server functionality
type NFTHTTPServer struct {
	handler *NFTRPCHandler
	hub     *Hub
	srv     *http.Server
}

// NewNFTHTTPServer creates a server. hub may be nil to disable /ws.
func NewNFTHTTPServer(handler *NFTRPCHandler, hub *Hub) *NFTHTTPServer {
	return &NFTHTTPServer{
		handler: handler,
		hub:     hub,
	}
}

// Handler routes JSON-RPC on /, metrics on /metrics and the feed on /ws.
func (s *NFTHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleJSONRPC)
	mux.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		mux.HandleFunc("/ws", s.hub.serveWs)
	}
	return mux
}

// Start starts the RPC server on the specified port
func (s *NFTHTTPServer) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.srv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	log.Info(log.RPCMonitoring, "NFT RPC server started", "port", port, "address", fmt.Sprintf("http://localhost:%d", port))

	go func() {
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(log.RPCMonitoring, "NFT RPC server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and closes the feed.
func (s *NFTHTTPServer) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      interface{}   `json:"id"`
}

// handleJSONRPC handles incoming JSON-RPC requests
func (s *NFTHTTPServer) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON-RPC request", http.StatusBadRequest)
		return
	}

	// Convert params to string array
	var stringParams []string
	for _, param := range req.Params {
		switch v := param.(type) {
		case string:
			stringParams = append(stringParams, v)
		case map[string]interface{}, []interface{}:
			jsonBytes, err := json.Marshal(v)
			if err != nil {
				http.Error(w, "Failed to marshal param", http.StatusBadRequest)
				return
			}
			stringParams = append(stringParams, string(jsonBytes))
		default:
			stringParams = append(stringParams, fmt.Sprintf("%v", v))
		}
	}

	var result string
	var err error

	switch req.Method {
	case "nft_getState":
		err = s.handler.GetState(stringParams, &result)
	case "nft_getAsset":
		err = s.handler.GetAsset(stringParams, &result)
	case "nft_getWitness":
		err = s.handler.GetWitness(stringParams, &result)
	case "nft_getActions":
		err = s.handler.GetActions(stringParams, &result)
	case "nft_mint":
		err = s.handler.Mint(stringParams, &result)
	case "nft_transfer":
		err = s.handler.Transfer(stringParams, &result)
	case "nft_rollup":
		err = s.handler.Rollup(r.Context(), stringParams, &result)
	default:
		err = fmt.Errorf("unknown method: %s", req.Method)
	}

	var response map[string]interface{}
	if err != nil {
		log.Debug(log.RPCMonitoring, "rpc error", "method", req.Method, "err", err)
		rpcErr := map[string]interface{}{
			"code":    -32603,
			"message": err.Error(),
		}
		if name := rolluperrors.GetErrorCodeWithName(err); name != "" {
			rpcErr["data"] = name
		}
		response = map[string]interface{}{
			"jsonrpc": "2.0",
			"error":   rpcErr,
			"id":      req.ID,
		}
	} else {
		var resultValue interface{}
		if err := json.Unmarshal([]byte(result), &resultValue); err != nil {
			resultValue = result
		}
		response = map[string]interface{}{
			"jsonrpc": "2.0",
			"result":  resultValue,
			"id":      req.ID,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
