package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/swaplabs/swapd/pkg/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled by the main server
		return true
	},
}

// Hub fans engine events out to connected WebSocket consumers. Relayers and
// indexers subscribe to channels; delivery is best-effort, consumers must
// tolerate duplicates and re-ordering across independent orders.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Infow("ws_client_connected", "id", c.id, "total", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Infow("ws_client_disconnected", "id", c.id, "total", n)
}

// BroadcastToChannel sends a message to all clients subscribed to a channel.
// Clients with a full send buffer are skipped, never blocked on.
func (h *Hub) BroadcastToChannel(channel string, data interface{}) {
	message, err := json.Marshal(data)
	if err != nil {
		h.log.Errorw("ws_marshal_failed", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.isSubscribed(channel) {
			continue
		}
		select {
		case c.send <- message:
		default:
		}
	}
}

// Broadcaster adapts the hub to the engine's event sink. Order events go to
// the "orders" channel and a per-maker channel; metering events to
// "metering". This is the EventLog's outward transport; the engine itself
// never reads from it.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster { return &Broadcaster{hub: hub} }

func (b *Broadcaster) Append(ev events.Event) {
	msg := WSMessage{Type: ev.Kind(), Data: ev}

	var maker common.Address
	switch e := ev.(type) {
	case events.OrderCreated:
		maker = e.Maker
	case events.OrderFilled:
		maker = e.Maker
	case events.OrderCancelled:
		maker = e.Maker
	default:
		b.hub.BroadcastToChannel("metering", msg)
		return
	}

	b.hub.BroadcastToChannel("orders", msg)
	b.hub.BroadcastToChannel("orders:"+maker.Hex(), msg)
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subsMu sync.RWMutex
	subs   map[string]struct{}
}

func (c *client) isSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	_, ok := c.subs[channel]
	return ok
}

func (c *client) subscribe(channel string) {
	c.subsMu.Lock()
	c.subs[channel] = struct{}{}
	c.subsMu.Unlock()
}

func (c *client) unsubscribe(channel string) {
	c.subsMu.Lock()
	delete(c.subs, channel)
	c.subsMu.Unlock()
}

// readPump consumes subscription requests until the connection drops.
func (c *client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}

		switch req.Op {
		case "subscribe":
			for _, ch := range req.Channels {
				c.subscribe(ch)
			}
		case "unsubscribe":
			for _, ch := range req.Channels {
				c.unsubscribe(ch)
			}
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorw("ws_upgrade_failed", "err", err)
		return
	}

	c := &client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
		id:   conn.RemoteAddr().String(),
		subs: make(map[string]struct{}),
	}

	s.hub.add(c)

	go c.writePump()
	go c.readPump()
}
