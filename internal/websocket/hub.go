package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tabviz/internal/infrastructure"
	"tabviz/pkg/contracts/events"
)

const (
	// broadcastBuffer bounds the hub queue; Broadcast drops when it is full
	broadcastBuffer = 256

	// sendBuffer bounds each client's outbound queue
	sendBuffer = 64

	metricsInterval = 30 * time.Second
)

// Hub maintains the set of active clients and fans dataset events out to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	// Counters
	totalConnections int64
	messagesSent     int64
	droppedMessages  int64

	// Control
	quit    chan struct{}
	running bool
}

// HubStats is a point-in-time view of the hub counters
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	DroppedMessages  int64 `json:"dropped_messages"`
	QueueDepth       int   `json:"queue_depth"`
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
	}
}

// Start starts the hub loop and periodic metrics reporting. Calling it
// twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
	go h.reportMetrics()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "client_closed")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	GetOTelMetrics().RecordConnection(ctx, count)

	welcome, err := h.encode(events.MessageTypeConnect, map[string]interface{}{
		"client_id": client.id,
		"message":   "Connected to tabviz",
	})
	if err != nil {
		return
	}
	select {
	case client.send <- welcome:
	default:
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	ctx := client.context()
	h.logger.InfoContext(ctx, "client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason))

	GetOTelMetrics().RecordDisconnection(ctx, time.Since(client.connectedAt), reason, count)
}

// fanOut delivers one message to every client. A client whose queue is full
// is disconnected rather than allowed to stall the others.
func (h *Hub) fanOut(message []byte) {
	var slow []*Client
	delivered := int64(0)

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	total := len(h.clients)
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("client send queue full, disconnecting",
			slog.String("client_id", client.id))
		h.removeClient(client, "slow_consumer")
	}

	h.mu.Lock()
	h.messagesSent += delivered
	h.mu.Unlock()

	GetOTelMetrics().RecordBroadcast(context.Background(), total, len(slow))
}

// Broadcast queues a dataset event for every connected client. It never
// blocks: when the queue is full the event is dropped and counted.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	message, err := h.encode(events.MessageType(eventType), data)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.mu.Lock()
		h.droppedMessages++
		h.mu.Unlock()

		h.logger.Warn("broadcast queue full, event dropped",
			slog.String("event_type", eventType))
		GetOTelMetrics().RecordDroppedMessage(context.Background(), eventType, "queue_full")
	}
}

func (h *Hub) encode(messageType events.MessageType, data interface{}) ([]byte, error) {
	b, err := json.Marshal(events.NewMessage(messageType, data))
	if err != nil {
		h.logger.Error("failed to marshal websocket message",
			slog.String("type", string(messageType)),
			slog.String("error", err.Error()))
		return nil, err
	}
	return b, nil
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		DroppedMessages:  h.droppedMessages,
		QueueDepth:       len(h.broadcast),
	}
}

// Stop closes every client connection and ends the hub loop
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			stats := h.Stats()
			GetOTelMetrics().RecordQueueDepth(context.Background(), stats.QueueDepth)
			h.logger.Debug("websocket hub metrics",
				slog.Int("active_clients", stats.ActiveClients),
				slog.Int64("total_connections", stats.TotalConnections),
				slog.Int64("messages_sent", stats.MessagesSent),
				slog.Int64("dropped_messages", stats.DroppedMessages),
				slog.Int("queue_depth", stats.QueueDepth),
			)
		}
	}
}
