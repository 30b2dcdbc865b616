// Package events contains the event contracts pushed to WebSocket clients
// when the current dataset changes.
package events

import (
	"time"

	"github.com/google/uuid"
)

// MessageType names a WebSocket message
type MessageType string

const (
	MessageTypeDatasetLoaded  MessageType = "dataset:loaded"
	MessageTypeDatasetUpdated MessageType = "dataset:updated"
	MessageTypeDatasetFailed  MessageType = "dataset:failed"

	// MessageTypeConnect greets a client right after the upgrade
	MessageTypeConnect MessageType = "connect"
)

// BaseMessage carries the envelope fields shared by every message
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage is the JSON frame sent to clients
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// NewMessage stamps data with a fresh id and the current UTC time
func NewMessage(t MessageType, data interface{}) WebSocketMessage {
	return WebSocketMessage{
		BaseMessage: BaseMessage{ID: uuid.NewString(), Type: t, Timestamp: time.Now().UTC()},
		Data:        data,
	}
}

// DatasetEvent describes a published snapshot. Origin is one of path,
// upload, watch or cast.
type DatasetEvent struct {
	SnapshotID string    `json:"snapshot_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Source     string    `json:"source"`
	Origin     string    `json:"origin"`
	Rows       int       `json:"rows"`
	Columns    int       `json:"columns"`
	Warnings   int       `json:"warnings"`
	Messages   []string  `json:"messages,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// DatasetFailure describes a load that published nothing
type DatasetFailure struct {
	Source string `json:"source"`
	Origin string `json:"origin"`
	Error  string `json:"error"`
}
