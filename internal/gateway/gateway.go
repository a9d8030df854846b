// Package gateway is a minimal WebSocket fan-out: it subscribes to one
// room's onSync batches and pushes each as a JSON text frame to every
// connected client. There is no auth, no schema validation, and no
// per-client subscription filtering: all of that is out of scope for
// this demonstrator, which exists only to prove Attach really does
// drive a transport, not to be a hardened gateway in its own right.
package gateway

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/odin-rooms/roomsync/internal/roommetrics"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Client is one connected WebSocket peer.
type Client struct {
	id   int64
	conn net.Conn
	send chan []byte
}

// Hub fans a room's sync batches out to every connected Client.
type Hub struct {
	logger    zerolog.Logger
	clientSeq int64

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub returns an empty Hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*Client]struct{})}
}

// ServeHTTP upgrades r to a WebSocket connection and registers the new
// Client, unless accept rejects it (e.g. roomguard.Guard.ShouldAcceptConnection
// returned false for the caller).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, accept func() (bool, string)) {
	if accept != nil {
		// accept (roomguard.Guard.ShouldAcceptConnection) already records
		// ConnectionsRejected under a stable reason label; its returned
		// reason string is a human-readable message, not fit for a metric
		// label, so it is only used for the HTTP response / log line here.
		if ok, reason := accept(); !ok {
			h.logger.Warn().Str("reason", reason).Msg("gateway connection rejected")
			http.Error(w, "server overloaded", http.StatusServiceUnavailable)
			return
		}
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		roommetrics.ConnectionsRejected.WithLabelValues("upgrade_failed").Inc()
		return
	}

	client := &Client{
		id:   atomic.AddInt64(&h.clientSeq, 1),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	roommetrics.ConnectionsTotal.Inc()
	roommetrics.ConnectionsActive.Inc()
	h.logger.Info().Int64("client_id", client.id).Msg("gateway client connected")

	go h.writePump(client)
	go h.readPump(client)
}

// Broadcast delivers data to every connected client's send buffer,
// non-blocking: a client slow enough to have a full buffer is dropped
// rather than allowed to back-pressure the whole room.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropSlow(c)
		}
	}
}

// dropSlow unregisters c and closes its send channel and connection. The
// caller must hold h.mu.
func (h *Hub) dropSlow(c *Client) {
	delete(h.clients, c)
	roommetrics.ConnectionsActive.Dec()
	roommetrics.GatewaySlowClientsDropped.Inc()
	h.logger.Warn().Int64("client_id", c.id).Msg("dropping slow gateway client")
	close(c.send)
	c.conn.Close()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		roommetrics.ConnectionsActive.Dec()
	}
	c.conn.Close()
}

// ActiveClients reports the current connected-client count.
func (h *Hub) ActiveClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) readPump(c *Client) {
	defer h.remove(c)

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, op, err := wsutil.ReadClientData(c.conn)
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if op == ws.OpClose {
			return
		}
		// No inbound client protocol is defined: anything a client sends
		// is read and discarded, keeping the read deadline alive, and
		// nothing else.
	}
}

func (h *Hub) writePump(c *Client) {
	writer := bufio.NewWriter(c.conn)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(writer, ws.OpText, message); err != nil {
				return
			}
			if err := writer.Flush(); err != nil {
				return
			}
			roommetrics.GatewayMessagesSent.Inc()
			roommetrics.GatewayBytesSent.Add(float64(len(message)))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
