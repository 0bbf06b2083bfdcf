package types

import (
	"encoding/json"
	"time"
)

// ProcessSpec is the ingest payload for registering a process.
type ProcessSpec struct {
	PID  int     `json:"pid" validate:"required,gte=1"`
	Name string  `json:"name" validate:"required"`
	Type *string `json:"type"`
}

// EventSpec is the ingest payload for creating an IPC event. Timestamp is
// optional and defaults to the ingestion instant.
type EventSpec struct {
	Timestamp   *time.Time     `json:"timestamp"`
	SourcePID   int            `json:"sourcePid" validate:"required,gte=1"`
	TargetPID   int            `json:"targetPid" validate:"required,gte=1"`
	SourceName  *string        `json:"sourceName"`
	TargetName  *string        `json:"targetName"`
	MessageType MessageType    `json:"messageType" validate:"required,oneof=SHARED_MEMORY PIPE SOCKET MESSAGE_QUEUE SIGNAL REQUEST RESPONSE NOTIFICATION"`
	Status      Status         `json:"status" validate:"required,oneof=SUCCESS ERROR PENDING"`
	Size        *int64         `json:"size"`
	Data        map[string]any `json:"data"`
}

// EventFilter carries independently optional criteria for querying events.
// Supplied criteria are ANDed; time bounds are inclusive.
type EventFilter struct {
	PID         *int
	MessageType *MessageType
	Status      *Status
	Start       *time.Time
	End         *time.Time
}

// Envelope is the outbound real-time message frame.
// Recognized types: initial_data, new_event, new_process, stats_update,
// events_cleared.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Inbound is the client-to-server real-time frame. Data stays raw until the
// type is known; only create_event is acted on.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
