package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const EventCartUpdated = "cart.updated"

// cartEvent routes an event to the observers of one cart, or to a single
// observer when Client is set.
type cartEvent struct {
	CartID uuid.UUID
	Client *Client
	Event  Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by cart ID
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *cartEvent

	// Closed when Run returns
	done chan struct{}

	mu  sync.RWMutex
	log *zap.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *cartEvent, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is done, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for cartID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, cartID)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.cartID] == nil {
				h.rooms[client.cartID] = make(map[*Client]bool)
			}
			h.rooms[client.cartID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.log.Error("marshal ws event", zap.String("type", event.Event.Type), zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.CartID] {
				if event.Client != nil && event.Client != client {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove requires h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.cartID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.cartID)
	}
}

// add registers client. It reports false once Run has returned.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// drop unregisters client and closes its send channel.
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// sendTo queues event for client alone. Unlike BroadcastToCart it waits for
// queue space, so the event keeps its place relative to later broadcasts.
func (h *Hub) sendTo(client *Client, event Event) {
	select {
	case h.broadcast <- &cartEvent{CartID: client.cartID, Client: client, Event: event}:
	case <-h.done:
	}
}

// BroadcastToCart queues event for every observer of cartID. It never
// blocks; when the queue is full the event is dropped.
func (h *Hub) BroadcastToCart(cartID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &cartEvent{CartID: cartID, Event: event}:
	default:
		h.log.Warn("ws broadcast queue full, dropping event",
			zap.String("cart_id", cartID.String()),
			zap.String("type", event.Type))
	}
}

// Observers returns the number of clients watching cartID.
func (h *Hub) Observers(cartID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[cartID])
}

// NewEvent marshals payload into an Event.
func NewEvent(eventType string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: b}, nil
}
