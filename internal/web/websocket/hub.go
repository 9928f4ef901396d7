// Package websocket provides live delivery: a hub of authenticated
// connections grouped into channel rooms, receiving message.created
// broadcasts and per-user notification.created nudges.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradefloor/tradefloor/internal/domain"
	"github.com/tradefloor/tradefloor/internal/metrics"
)

// Hub maintains the set of active clients and routes events to them
type Hub struct {
	// Registered clients
	clients   map[*Client]bool
	clientsMu sync.RWMutex

	// Connections per user, for direct notification delivery
	users map[uuid.UUID]map[*Client]bool

	// Rooms keyed "channel:<uuid>"
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Broadcast messages to specific room
	roomBroadcast chan *RoomMessage

	// Messages for every connection of one user
	direct chan *DirectMessage

	// Message handlers
	handlers   map[string]MessageHandler
	handlersMu sync.RWMutex

	// Authentication handler
	authHandler AuthHandler

	// Channel visibility checks for join_channel
	access AccessChecker

	// Shutdown channel
	shutdown chan struct{}

	// Wait group for graceful shutdown
	wg sync.WaitGroup

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc
}

// Message represents a WebSocket message
type Message struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Payload interface{}     `json:"-"`
}

// RoomMessage represents a message to be broadcast to a specific room
type RoomMessage struct {
	Room    string
	Message *Message
}

// DirectMessage targets every connection of one user
type DirectMessage struct {
	UserID  uuid.UUID
	Message *Message
}

// MessageHandler is a function that handles incoming messages
type MessageHandler func(ctx context.Context, client *Client, message *Message) error

// AuthHandler resolves an upgrade token into a user id
type AuthHandler func(ctx context.Context, token string) (userID uuid.UUID, err error)

// AccessChecker answers channel visibility for join requests
type AccessChecker interface {
	CanView(ctx context.Context, userID, channelID uuid.UUID) (bool, error)
}

// RoomForChannel names the room carrying a channel's events
func RoomForChannel(channelID uuid.UUID) string {
	return "channel:" + channelID.String()
}

// NewHub creates a new Hub instance
func NewHub(ctx context.Context, access AccessChecker) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)

	h := &Hub{
		clients:       make(map[*Client]bool),
		users:         make(map[uuid.UUID]map[*Client]bool),
		rooms:         make(map[string]map[*Client]bool),
		register:      make(chan *Client, 256),
		unregister:    make(chan *Client, 256),
		roomBroadcast: make(chan *RoomMessage, 1024),
		direct:        make(chan *DirectMessage, 1024),
		handlers:      make(map[string]MessageHandler),
		access:        access,
		shutdown:      make(chan struct{}),
		ctx:           hubCtx,
		cancel:        cancel,
	}
	RegisterDefaultHandlers(h)
	return h
}

// RegisterHandler registers a message handler for a specific message type
func (h *Hub) RegisterHandler(messageType string, handler MessageHandler) {
	h.handlersMu.Lock()
	defer h.handlersMu.Unlock()
	h.handlers[messageType] = handler
}

// SetAuthHandler sets the authentication handler
func (h *Hub) SetAuthHandler(handler AuthHandler) {
	h.authHandler = handler
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()

	// Start cleanup ticker
	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.cleanup()
			return

		case <-h.shutdown:
			h.cleanup()
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			if h.users[client.UserID] == nil {
				h.users[client.UserID] = make(map[*Client]bool)
			}
			h.users[client.UserID][client] = true
			h.clientsMu.Unlock()
			metrics.WSConnectionOpened()
			log.Printf("Client registered: %s user=%s (total: %d)", client.ID, client.UserID, h.ClientCount())

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				if conns, ok := h.users[client.UserID]; ok {
					delete(conns, client)
					if len(conns) == 0 {
						delete(h.users, client.UserID)
					}
				}
				client.closed.Store(true)
				close(client.send)
				metrics.WSConnectionClosed()
			}
			h.clientsMu.Unlock()

			// Remove from all rooms
			h.roomsMu.Lock()
			for roomName, clients := range h.rooms {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, roomName)
					}
				}
			}
			h.roomsMu.Unlock()

			log.Printf("Client unregistered: %s (total: %d)", client.ID, h.ClientCount())

		case roomMsg := <-h.roomBroadcast:
			h.broadcastToRoom(roomMsg.Room, roomMsg.Message)

		case dm := <-h.direct:
			h.sendToUser(dm.UserID, dm.Message)

		case <-cleanupTicker.C:
			h.cleanupStaleConnections()
		}
	}
}

// BroadcastMessage sends message.created to the message's channel room.
func (h *Hub) BroadcastMessage(m *domain.Message) {
	h.BroadcastToRoom(RoomForChannel(m.ChannelID), &Message{
		Type:    EventMessageCreated,
		Payload: m,
	})
}

// NotifyUsers sends notification.created to every connection of each
// recipient, whether or not they joined the channel's room.
func (h *Hub) NotifyUsers(userIDs []uuid.UUID, m *domain.Message) {
	payload := map[string]string{
		"message_id": m.ID.String(),
		"channel_id": m.ChannelID.String(),
	}
	for _, userID := range userIDs {
		h.SendToUser(userID, &Message{
			Type:    EventNotificationCreated,
			Payload: payload,
		})
	}
}

// BroadcastToRoom sends a message to all clients in a specific room
func (h *Hub) BroadcastToRoom(room string, message *Message) {
	select {
	case h.roomBroadcast <- &RoomMessage{Room: room, Message: message}:
	case <-h.ctx.Done():
		log.Printf("Hub context done, cannot broadcast to room")
	default:
		log.Printf("Room broadcast channel full, message dropped")
	}
}

// SendToUser sends a message to every connection of one user
func (h *Hub) SendToUser(userID uuid.UUID, message *Message) {
	select {
	case h.direct <- &DirectMessage{UserID: userID, Message: message}:
	case <-h.ctx.Done():
		log.Printf("Hub context done, cannot send to user")
	default:
		log.Printf("Direct channel full, message dropped")
	}
}

// broadcastToRoom sends a message to all clients in a specific room
func (h *Hub) broadcastToRoom(room string, message *Message) {
	data, err := marshalMessage(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.roomsMu.RLock()
	clientMap, ok := h.rooms[room]
	if !ok {
		h.roomsMu.RUnlock()
		return
	}

	// Copy client pointers while holding lock
	clientList := make([]*Client, 0, len(clientMap))
	for client := range clientMap {
		clientList = append(clientList, client)
	}
	h.roomsMu.RUnlock()

	// Now iterate over the copy without holding lock
	for _, client := range clientList {
		select {
		case client.send <- data:
		default:
			log.Printf("Skipping client %s in room %s: send channel full", client.ID, room)
		}
	}
}

// sendToUser delivers a message to every live connection of one user
func (h *Hub) sendToUser(userID uuid.UUID, message *Message) {
	data, err := marshalMessage(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	h.clientsMu.RLock()
	conns, ok := h.users[userID]
	if !ok {
		h.clientsMu.RUnlock()
		return
	}
	clientList := make([]*Client, 0, len(conns))
	for client := range conns {
		clientList = append(clientList, client)
	}
	h.clientsMu.RUnlock()

	for _, client := range clientList {
		select {
		case client.send <- data:
		default:
			log.Printf("Skipping client %s: send channel full", client.ID)
		}
	}
}

// JoinRoom adds a client to a room
func (h *Hub) JoinRoom(client *Client, room string) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true

	log.Printf("Client %s joined room %s", client.ID, room)
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
		log.Printf("Client %s left room %s", client.ID, room)
	}
}

// InRoom reports whether a client has joined a room
func (h *Hub) InRoom(client *Client, room string) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return h.rooms[room][client]
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of active rooms
func (h *Hub) RoomCount() int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms)
}

// UserConnectionCount returns how many connections a user has open
func (h *Hub) UserConnectionCount(userID uuid.UUID) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.users[userID])
}

// HandleMessage processes an incoming message from a client
func (h *Hub) HandleMessage(ctx context.Context, client *Client, data []byte) error {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return err
	}

	h.handlersMu.RLock()
	handler, ok := h.handlers[message.Type]
	h.handlersMu.RUnlock()

	if !ok {
		log.Printf("No handler registered for message type: %s", message.Type)
		return nil
	}

	return handler(ctx, client, &message)
}

// cleanup closes all client connections and cleans up resources
func (h *Hub) cleanup() {
	log.Printf("Hub shutting down, disconnecting %d clients", h.ClientCount())

	h.clientsMu.Lock()
	for client := range h.clients {
		client.closed.Store(true)
		// Don't close send channel here - let WritePump handle it via context
		if client.conn != nil {
			client.conn.Close()
		}
		metrics.WSConnectionClosed()
	}
	h.clients = make(map[*Client]bool)
	h.users = make(map[uuid.UUID]map[*Client]bool)
	h.clientsMu.Unlock()

	h.roomsMu.Lock()
	h.rooms = make(map[string]map[*Client]bool)
	h.roomsMu.Unlock()
}

// cleanupStaleConnections removes clients that haven't sent a heartbeat recently
func (h *Hub) cleanupStaleConnections() {
	h.clientsMu.RLock()
	staleClients := make([]*Client, 0)

	for client := range h.clients {
		if time.Since(client.GetLastHeartbeat()) > 90*time.Second {
			staleClients = append(staleClients, client)
		}
	}
	h.clientsMu.RUnlock()

	for _, client := range staleClients {
		log.Printf("Removing stale client: %s", client.ID)
		h.unregister <- client
	}
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	log.Printf("Hub shutdown initiated")
	h.cancel()
	close(h.shutdown)
	h.wg.Wait()
	log.Printf("Hub shutdown complete")
}
