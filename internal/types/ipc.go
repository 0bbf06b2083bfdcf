package types

import "time"

// MessageType classifies the IPC mechanism an event claims to describe.
type MessageType string

const (
	MessageSharedMemory MessageType = "SHARED_MEMORY"
	MessagePipe         MessageType = "PIPE"
	MessageSocket       MessageType = "SOCKET"
	MessageQueue        MessageType = "MESSAGE_QUEUE"
	MessageSignal       MessageType = "SIGNAL"
	MessageRequest      MessageType = "REQUEST"
	MessageResponse     MessageType = "RESPONSE"
	MessageNotification MessageType = "NOTIFICATION"
)

// Valid reports whether the message type belongs to the fixed vocabulary.
func (m MessageType) Valid() bool {
	switch m {
	case MessageSharedMemory, MessagePipe, MessageSocket, MessageQueue,
		MessageSignal, MessageRequest, MessageResponse, MessageNotification:
		return true
	}
	return false
}

// Status is the outcome recorded for an IPC event.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusError   Status = "ERROR"
	StatusPending Status = "PENDING"
)

// Valid reports whether the status belongs to the fixed vocabulary.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusError, StatusPending:
		return true
	}
	return false
}

// Process is a registered process record. ID is the store-assigned surrogate
// id; PID is the external process identifier, unique within the store.
type Process struct {
	ID           int64     `json:"id"`
	PID          int       `json:"pid"`
	Name         string    `json:"name"`
	Type         *string   `json:"type"`
	StartTime    time.Time `json:"startTime"`
	MessageCount int       `json:"messageCount"`
}

// IpcEvent is an externally supplied record describing a claimed communication
// between two processes. Immutable once stored.
type IpcEvent struct {
	ID          int64          `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	SourcePID   int            `json:"sourcePid"`
	TargetPID   int            `json:"targetPid"`
	SourceName  *string        `json:"sourceName"`
	TargetName  *string        `json:"targetName"`
	MessageType MessageType    `json:"messageType"`
	Status      Status         `json:"status"`
	Size        *int64         `json:"size"`
	Data        map[string]any `json:"data"`
}

// Stats is the aggregate payload computed on demand from the store.
type Stats struct {
	TotalMessages   int       `json:"totalMessages"`
	ActiveProcesses int       `json:"activeProcesses"`
	AvgResponseTime float64   `json:"avgResponseTime"`
	TopProcesses    []Process `json:"topProcesses"`
}

// Snapshot is the full-state payload sent to a newly connected observer.
type Snapshot struct {
	Processes []Process  `json:"processes"`
	Events    []IpcEvent `json:"events"`
	Stats     Stats      `json:"stats"`
}
