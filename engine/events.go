package engine

import (
	"time"

	"github.com/cyberorg/sparagliding-meshmap/store"
	"github.com/cyberorg/sparagliding-meshmap/telemetry"
)

const (
	EventNodeUpdated EventType = iota + 1
	EventTextMessage
	EventPosition
	EventTelemetry
	EventNodeStatus
	EventMessagingConnected
	EventMessagingDisconnected
	EventRetentionPurged
)

var eventNames = map[EventType]string{
	EventNodeUpdated:           "node",
	EventTextMessage:           "message",
	EventPosition:              "position",
	EventTelemetry:             "telemetry",
	EventNodeStatus:            "status",
	EventMessagingConnected:    "messaging",
	EventMessagingDisconnected: "messaging",
	EventRetentionPurged:       "retention",
}

// Name is the SSE event name of t.
func (t EventType) Name() string {
	if n, ok := eventNames[t]; ok {
		return n
	}
	return "unknown"
}

// --- Event payloads ---

type NodeUpdatedEvent struct {
	Node *store.Node `json:"node"`
}

type TextMessageEvent struct {
	Message *store.TextMessage `json:"message"`
}

type PositionEvent struct {
	Position *store.Position `json:"position"`
}

type TelemetryEvent struct {
	Metric *telemetry.Metric `json:"metric"`
}

type NodeStatusEvent struct {
	NodeID    uint32    `json:"node_id"`
	NodeIDHex string    `json:"node_id_hex"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ConnectionEvent struct {
	Connected bool   `json:"connected"`
	Detail    string `json:"detail"`
}

type RetentionEvent struct {
	Cutoff  time.Time        `json:"cutoff"`
	Deleted map[string]int64 `json:"deleted"`
}
