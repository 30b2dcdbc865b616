package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tabviz/internal/infrastructure"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10 // must stay below pongWait

	// peers have nothing to say beyond keepalives
	maxMessageSize = 512
)

// Connection is the part of a gorilla connection the client uses
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}

type gorillaConn struct {
	*websocket.Conn
}

func (c gorillaConn) RemoteAddr() string {
	if addr := c.Conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// WrapConn adapts a gorilla connection to Connection
func WrapConn(conn *websocket.Conn) Connection {
	return gorillaConn{Conn: conn}
}

// Client is one subscriber to dataset events. The hub fills send; the
// write pump drains it.
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time
	logger      *slog.Logger

	messagesSent     int64
	messagesReceived int64
}

// NewClient creates a client for conn. traceID is the request ID of the
// upgrade request and may be empty.
func NewClient(hub *Hub, conn Connection, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump consumes inbound frames until the peer goes away, then
// unregisters. Peers only send pongs and keepalives; payloads are counted
// and discarded.
func (c *Client) ReadPump() {
	ctx := c.context()
	defer func() {
		c.logger.InfoContext(ctx, "websocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int64("messages_received", c.messagesReceived))
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) }
	c.conn.SetReadLimit(maxMessageSize)
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WarnContext(ctx, "unexpected websocket close", slog.String("error", err.Error()))
				GetOTelMetrics().RecordConnectionError(ctx, "unexpected_close")
			}
			return
		}
		c.messagesReceived++
		GetOTelMetrics().RecordMessage(ctx, "inbound", len(message))
		_ = extend()
	}
}

// WritePump forwards queued events and keeps the connection alive with
// pings. It owns every write to the connection.
func (c *Client) WritePump() {
	ctx := c.context()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.logger.DebugContext(ctx, "websocket write pump stopped",
			slog.Int64("messages_sent", c.messagesSent))
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.frame(websocket.CloseMessage, nil)
				return
			}
			if err := c.deliver(ctx, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.frame(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(ctx, "failed to send ping", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (c *Client) frame(kind int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}

func (c *Client) deliver(ctx context.Context, message []byte) error {
	if err := c.frame(websocket.TextMessage, message); err != nil {
		c.logger.WarnContext(ctx, "error writing websocket message", slog.String("error", err.Error()))
		GetOTelMetrics().RecordConnectionError(ctx, "write")
		return err
	}
	c.messagesSent++
	GetOTelMetrics().RecordMessage(ctx, "outbound", len(message))
	return nil
}
