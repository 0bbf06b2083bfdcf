// Package ws implements the broadcast hub: the registry of connected
// observers, the snapshot sent on join, and the fan-out of committed
// mutations and refreshed aggregates.
package ws

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"ipcscope/internal/config"
	"ipcscope/internal/logging"
	"ipcscope/internal/monitoring"
	"ipcscope/internal/stats"
	"ipcscope/internal/store"
	"ipcscope/internal/types"
)

// Message type values of the outbound envelope.
const (
	TypeInitialData   = "initial_data"
	TypeNewEvent      = "new_event"
	TypeNewProcess    = "new_process"
	TypeStatsUpdate   = "stats_update"
	TypeEventsCleared = "events_cleared"
	TypeCreateEvent   = "create_event"
)

// EventCreator accepts inbound event submissions from observers. Implemented
// by the ingest gateway.
type EventCreator interface {
	CreateEvent(spec types.EventSpec) (types.IpcEvent, error)
}

// Hub maintains the observer set. Registration takes the write lock and
// enqueues the snapshot before releasing it, so no fan-out can reach a new
// observer ahead of its initial_data message.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	store   *store.Store
	stats   *stats.Engine
	creator EventCreator
	logger  *logging.Logger
	metrics *monitoring.Metrics

	sendBuffer     int
	snapshotEvents int
	topN           int
}

// NewHub creates a hub reading snapshot state from the given store and stats
// engine.
func NewHub(st *store.Store, eng *stats.Engine, logger *logging.Logger, cfg config.BroadcastConfig) *Hub {
	return &Hub{
		clients:        make(map[*Client]struct{}),
		store:          st,
		stats:          eng,
		logger:         logger,
		sendBuffer:     cfg.SendBuffer,
		snapshotEvents: cfg.SnapshotEvents,
		topN:           cfg.TopProcesses,
	}
}

// WithMetrics attaches a metrics collector.
func (h *Hub) WithMetrics(m *monitoring.Metrics) *Hub {
	h.metrics = m
	return h
}

// SetCreator binds the inbound create_event path to the ingest gateway.
// Bound once at server construction, before any connection is accepted.
func (h *Hub) SetCreator(c EventCreator) {
	h.creator = c
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishProcess fans out a committed process registration followed by the
// refreshed aggregates.
func (h *Hub) PublishProcess(p types.Process, st types.Stats) {
	h.publish(TypeNewProcess, p)
	h.publish(TypeStatsUpdate, st)
}

// PublishEvent fans out a committed event insert followed by the refreshed
// aggregates.
func (h *Hub) PublishEvent(ev types.IpcEvent, st types.Stats) {
	h.publish(TypeNewEvent, ev)
	h.publish(TypeStatsUpdate, st)
}

// PublishCleared fans out the clear notification followed by the zeroed
// aggregates.
func (h *Hub) PublishCleared(st types.Stats) {
	h.publish(TypeEventsCleared, map[string]any{"cleared": true})
	h.publish(TypeStatsUpdate, st)
}

// Close disconnects every observer. Used on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
}

// register adds an observer, then assembles and enqueues its snapshot while
// still holding the write lock. A commit racing with the join blocks in
// publish until registration finishes, so its record lands in the snapshot,
// as an increment behind it, or both; never in neither.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	payload, err := sonic.Marshal(types.Envelope{Type: TypeInitialData, Data: h.assembleSnapshot()})
	if err == nil {
		c.enqueue(payload)
	} else {
		h.logger.Error("failed to encode snapshot", zap.Error(err))
	}
	c.setState(StateOpen)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		if err == nil {
			h.metrics.RecordWSMessage("out", TypeInitialData)
		}
	}
	h.logger.Info("observer connected", zap.String("conn_id", c.ID))
}

// unregister removes an observer from the fan-out set. Idempotent.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if !present {
		return
	}
	c.shutdown()
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	h.logger.Info("observer disconnected", zap.String("conn_id", c.ID))
}

// publish encodes the envelope once and enqueues it to every open observer.
// Slow observers drop the message rather than blocking the commit turn.
func (h *Hub) publish(msgType string, data any) {
	payload, err := sonic.Marshal(types.Envelope{Type: msgType, Data: data})
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.String("type", msgType), zap.Error(err))
		return
	}

	h.mu.RLock()
	for c := range h.clients {
		c.enqueue(payload)
	}
	h.mu.RUnlock()

	if h.metrics != nil {
		h.metrics.RecordBroadcast(msgType)
		h.metrics.RecordWSMessage("out", msgType)
	}
}

// assembleSnapshot builds the full-state payload for a newly joined
// observer: all processes, the most recent events, current stats.
func (h *Hub) assembleSnapshot() types.Snapshot {
	events, _ := h.store.ListEvents(h.snapshotEvents, 0)
	return types.Snapshot{
		Processes: h.store.ListProcesses(),
		Events:    events,
		Stats:     h.stats.Snapshot(time.Now(), h.topN),
	}
}
