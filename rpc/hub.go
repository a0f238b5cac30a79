package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/colorfulnotion/nftrollup/log"
	"github.com/colorfulnotion/nftrollup/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StateUpdate is pushed to feed clients for every committed state.
type StateUpdate struct {
	Method string            `json:"method"`
	State  types.LedgerState `json:"state"`
}

// Hub fans committed states out to websocket clients.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	count      atomic.Int64
}

func NewHub(ctx context.Context) *Hub {
	cctx, cancel := context.WithCancel(ctx)
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
		ctx:        cctx,
		cancel:     cancel,
	}
}

// Run serves clients until Close. states is usually an anchor subscription.
func (h *Hub) Run(states <-chan types.LedgerState) {
	h.wg.Add(1)
	go h.forward(states)
	h.wg.Add(1)
	go h.run()
}

func (h *Hub) forward(states <-chan types.LedgerState) {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			data, err := json.Marshal(StateUpdate{Method: "nft_stateCommitted", State: s})
			if err != nil {
				log.Warn(log.RPCMonitoring, "state update marshal", "err", err)
				continue
			}
			select {
			case h.broadcast <- data:
			case <-h.ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			for client := range h.clients {
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
		h.count.Store(int64(len(h.clients)))
	}
}

// Clients is the number of connected feed clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Close disconnects every client and waits for the pumps to exit.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump only keeps the connection alive, clients have nothing to say.
func (c *Client) readPump() {
	defer c.hub.wg.Done()
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug(log.RPCMonitoring, "feed client closed", "err", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.wg.Done()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn(log.RPCMonitoring, "feed upgrade failed", "err", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.wg.Add(2)
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		h.wg.Add(-2)
		return
	}
	go client.writePump()
	go client.readPump()
}
