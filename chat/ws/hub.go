package ws

import (
	"encoding/json"
	"sync"

	"campus-taskhub/backend/pkg/logger"
	"campus-taskhub/backend/pkg/metrics"
)

// Hub tracks connected clients and their room subscriptions and fans
// messages out to everyone subscribed to a room. Delivery is best effort:
// a slow client is dropped, never waited on.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomEvent

	log *logger.Logger
}

type roomEvent struct {
	roomID  string
	payload []byte
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomEvent, 256),
		log:        log,
	}
}

// Run processes registration and broadcast events until the process exits
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.WebsocketConnections.Inc()
			h.log.Debug("client registered", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeClientLocked(client)
				close(client.send)
				metrics.WebsocketConnections.Dec()
				h.log.Debug("client unregistered", "user_id", client.userID)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[event.roomID] {
				select {
				case client.send <- event.payload:
				default:
					h.removeClientLocked(client)
					close(client.send)
					metrics.WebsocketConnections.Dec()
					h.log.Warn("client dropped due to blocked channel", "user_id", client.userID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a payload for everyone subscribed to the room. It never
// blocks the caller; when the queue is full the event is dropped.
func (h *Hub) Broadcast(roomID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal broadcast payload", "room_id", roomID, "error", err.Error())
		return
	}

	select {
	case h.broadcast <- roomEvent{roomID: roomID, payload: data}:
	default:
		h.log.Warn("broadcast queue full, dropping event", "room_id", roomID)
	}
}

func (h *Hub) join(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) leave(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(client, roomID)
}

// removeClientLocked drops the client from every room. Caller holds h.mu.
func (h *Hub) removeClientLocked(client *Client) {
	delete(h.clients, client)
	for roomID := range client.rooms {
		h.removeFromRoomLocked(client, roomID)
	}
}

func (h *Hub) removeFromRoomLocked(client *Client, roomID string) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}
