package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/oppa-kitchen/storefront/internal/auth"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the cart token is the access check
	},
}

// Client represents a single WebSocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	cartID uuid.UUID
	send   chan []byte
}

// ReadPump only detects disconnects; observers never send messages.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket error", zap.String("cart_id", c.cartID.String()), zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One event per frame so clients can parse each message as JSON.
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

// SnapshotFunc delivers the event a new observer receives first. The
// client is already registered when it runs, so deliver must be called while
// no mutation of the cart can commit; updates then follow the snapshot.
type SnapshotFunc func(ctx context.Context, cartID uuid.UUID, deliver func(Event)) error

// Handler serves WS /ws/cart?token=<cart token>.
type Handler struct {
	hub      *Hub
	secret   string
	snapshot SnapshotFunc
	log      *zap.Logger
}

func NewHandler(hub *Hub, secret string, snapshot SnapshotFunc, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{hub: hub, secret: secret, snapshot: snapshot, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateCartToken(h.secret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	// Register before the snapshot so no committed change falls between
	// the two. Events queue in send until the pumps start.
	client := &Client{
		hub:    h.hub,
		cartID: claims.CartID,
		send:   make(chan []byte, 256),
	}
	if !h.hub.add(client) {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	if h.snapshot != nil {
		err := h.snapshot(r.Context(), claims.CartID, func(ev Event) {
			h.hub.sendTo(client, ev)
		})
		if err != nil {
			h.hub.drop(client)
			h.log.Error("load cart for ws", zap.String("cart_id", claims.CartID.String()), zap.Error(err))
			http.Error(w, "cart unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.drop(client)
		h.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	client.conn = conn

	go client.WritePump()
	go client.ReadPump()
}

func marshalEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
