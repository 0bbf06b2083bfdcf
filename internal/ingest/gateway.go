// Package ingest is the single normalization and validation path through
// which new processes and events enter the store, used identically by the
// REST handlers and the real-time inbound channel.
package ingest

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ipcscope/internal/errs"
	"ipcscope/internal/logging"
	"ipcscope/internal/monitoring"
	"ipcscope/internal/stats"
	"ipcscope/internal/store"
	"ipcscope/internal/types"
)

// Publisher receives committed mutations for fan-out. The store write always
// completes before any Publish call, so observers never see a notification
// for a record that is not yet present.
type Publisher interface {
	PublishProcess(p types.Process, stats types.Stats)
	PublishEvent(ev types.IpcEvent, stats types.Stats)
	PublishCleared(stats types.Stats)
}

// Gateway validates payloads, applies defaults, writes through the store and
// triggers broadcast. Commits are serialized under one mutex so each
// mutation and its refreshed aggregates are enqueued as one turn.
type Gateway struct {
	mu       sync.Mutex
	store    *store.Store
	stats    *stats.Engine
	pub      Publisher
	validate *validator.Validate
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	topN     int
}

// New creates a gateway. pub may be nil for callers that do not fan out
// (tests, batch loads).
func New(st *store.Store, eng *stats.Engine, pub Publisher, logger *logging.Logger, topN int) *Gateway {
	return &Gateway{
		store:    st,
		stats:    eng,
		pub:      pub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		topN:     topN,
	}
}

// WithMetrics attaches a metrics collector.
func (g *Gateway) WithMetrics(m *monitoring.Metrics) *Gateway {
	g.metrics = m
	return g
}

// RegisterProcess validates and stores a new process record, then publishes
// it with refreshed aggregates. Fails with ErrDuplicatePID on a pid conflict.
func (g *Gateway) RegisterProcess(spec types.ProcessSpec) (types.Process, error) {
	if err := g.check(spec); err != nil {
		return types.Process{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.store.RegisterProcess(spec)
	if err != nil {
		return types.Process{}, err
	}
	if g.metrics != nil {
		g.metrics.RecordProcessRegistered()
	}
	g.logger.Info("process registered",
		zap.Int64("id", p.ID),
		zap.Int("pid", p.PID),
		zap.String("name", p.Name),
	)

	if g.pub != nil {
		g.pub.PublishProcess(p, g.snapshot())
	}
	return p, nil
}

// CreateEvent validates and stores a new IPC event, then publishes it with
// refreshed aggregates. The timestamp defaults to the ingestion instant.
func (g *Gateway) CreateEvent(spec types.EventSpec) (types.IpcEvent, error) {
	if err := g.check(spec); err != nil {
		return types.IpcEvent{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ev := g.store.InsertEvent(spec)
	if g.metrics != nil {
		g.metrics.RecordEventIngested(string(ev.MessageType), string(ev.Status), g.store.TotalEventCount())
	}
	g.logger.Debug("event ingested",
		zap.Int64("id", ev.ID),
		zap.Int("source_pid", ev.SourcePID),
		zap.Int("target_pid", ev.TargetPID),
		zap.String("message_type", string(ev.MessageType)),
	)

	if g.pub != nil {
		g.pub.PublishEvent(ev, g.snapshot())
	}
	return ev, nil
}

// Clear atomically removes all events, resets message counts and publishes a
// clear notification followed by zeroed aggregates.
func (g *Gateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.store.Clear()
	if g.metrics != nil {
		g.metrics.RecordClear()
	}
	g.logger.Info("event store cleared")

	if g.pub != nil {
		g.pub.PublishCleared(g.snapshot())
	}
}

// snapshot recomputes aggregates; called with the commit lock held so the
// published stats always reflect the mutation that precedes them.
func (g *Gateway) snapshot() types.Stats {
	return g.stats.Snapshot(time.Now(), g.topN)
}

// check runs struct validation and converts failures into the shared
// ValidationError naming each offending field.
func (g *Gateway) check(payload any) error {
	err := g.validate.Struct(payload)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &errs.ValidationError{}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &errs.ValidationError{Fields: fields}
}
