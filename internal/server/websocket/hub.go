package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lumenlearn/pvs/internal/domain"
	"github.com/lumenlearn/pvs/pkg/config"
)

// StatusUpdate is the event pushed to dashboard clients on every payment
// state change.
type StatusUpdate struct {
	Type      string    `json:"type"`
	PaymentID string    `json:"payment_id"`
	TxRef     string    `json:"tx_ref"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// wsClient wraps a connection with a write lock. Verification passes run
// concurrently and gorilla/websocket allows at most one concurrent writer
// per connection, so every write goes through send.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(update StatusUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(update)
}

type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*wsClient]bool
	logger   zerolog.Logger
}

func NewHub(cfg config.WebSocketConfig, logger zerolog.Logger) *Hub {
	readBuffer := cfg.ReadBufferSize
	if readBuffer == 0 {
		readBuffer = 1024
	}
	writeBuffer := cfg.WriteBufferSize
	if writeBuffer == 0 {
		writeBuffer = 1024
	}

	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				return !cfg.CheckOrigin || r.Header.Get("Origin") == ""
			},
		},
		clients: make(map[*wsClient]bool),
		logger:  logger.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := &wsClient{conn: conn}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Websocket client connected")

	go h.readLoop(client)
}

func (h *Hub) readLoop(client *wsClient) {
	defer h.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	client.conn.Close()
}

// BroadcastPayment pushes a payment's current status to every connected
// client. Safe to call from concurrent verification passes; slow or broken
// clients are dropped.
func (h *Hub) BroadcastPayment(p domain.Payment) {
	update := StatusUpdate{
		Type:      "payment_status",
		PaymentID: p.ID,
		TxRef:     p.TxRef,
		Status:    string(p.Status),
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.send(update); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to write to websocket client, dropping")
			h.remove(client)
		}
	}
}
