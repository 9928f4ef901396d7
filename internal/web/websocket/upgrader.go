package websocket

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds WebSocket configuration
type Config struct {
	// Buffer sizes
	ReadBufferSize  int
	WriteBufferSize int

	// Origin check function
	CheckOrigin func(r *http.Request) bool

	// Authentication token extraction
	TokenExtractor func(r *http.Request) string

	// Enable compression
	EnableCompression bool
}

// DefaultConfig returns default WebSocket configuration
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development
			// In production, implement proper origin checking
			return true
		},
		TokenExtractor: func(r *http.Request) string {
			// Browsers cannot set headers on WebSocket upgrades, so the
			// token usually arrives as a query parameter
			token := r.URL.Query().Get("token")
			if token != "" {
				return token
			}

			auth := r.Header.Get("Authorization")
			return strings.TrimPrefix(auth, "Bearer ")
		},
		EnableCompression: false,
	}
}

// Upgrader upgrades HTTP connections to WebSocket
type Upgrader struct {
	config   *Config
	upgrader *websocket.Upgrader
	hub      *Hub
}

// NewUpgrader creates a new Upgrader
func NewUpgrader(config *Config, hub *Hub) *Upgrader {
	if config == nil {
		config = DefaultConfig()
	}

	upgrader := &websocket.Upgrader{
		ReadBufferSize:    config.ReadBufferSize,
		WriteBufferSize:   config.WriteBufferSize,
		CheckOrigin:       config.CheckOrigin,
		EnableCompression: config.EnableCompression,
	}

	return &Upgrader{
		config:   config,
		upgrader: upgrader,
		hub:      hub,
	}
}

// ServeHTTP handles WebSocket upgrade requests. Connections without a
// valid token are rejected before the upgrade so the client sees a
// plain 401 instead of an immediate close.
func (u *Upgrader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if u.hub.authHandler == nil {
		log.Printf("WebSocket upgrade rejected: no auth handler configured")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	token := u.config.TokenExtractor(r)
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID, err := u.hub.authHandler(r.Context(), token)
	if err != nil {
		log.Printf("WebSocket authentication failed: %v", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID, userID, conn, u.hub)

	// Register client with hub
	u.hub.register <- client

	// Start client goroutines
	go client.WritePump()
	go client.ReadPump()

	log.Printf("WebSocket connection established: %s user=%s", clientID, userID)
}

// Handler returns an http.HandlerFunc for WebSocket upgrade
func (u *Upgrader) Handler() http.HandlerFunc {
	return u.ServeHTTP
}
