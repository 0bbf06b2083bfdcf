// Package sim feeds the pipeline with randomized sample traffic through the
// public ingest contract. It stands in for real instrumentation when
// demonstrating the debugger.
package sim

import (
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"ipcscope/internal/errs"
	"ipcscope/internal/logging"
	"ipcscope/internal/types"
)

// Ingestor is the slice of the gateway the generator drives.
type Ingestor interface {
	RegisterProcess(spec types.ProcessSpec) (types.Process, error)
	CreateEvent(spec types.EventSpec) (types.IpcEvent, error)
}

var sampleProcesses = []struct {
	pid   int
	name  string
	ptype string
}{
	{1001, "browser", "ui"},
	{1002, "renderer", "ui"},
	{1003, "gpu-process", "worker"},
	{1004, "network-service", "daemon"},
	{1005, "audio-service", "daemon"},
	{1006, "cache-manager", "worker"},
}

var messageTypes = []types.MessageType{
	types.MessageSharedMemory,
	types.MessagePipe,
	types.MessageSocket,
	types.MessageQueue,
	types.MessageSignal,
	types.MessageRequest,
	types.MessageResponse,
	types.MessageNotification,
}

// Generator emits one randomized event per tick.
type Generator struct {
	ingest   Ingestor
	logger   *logging.Logger
	interval time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a generator bound to the ingest gateway.
func New(ing Ingestor, logger *logging.Logger, interval time.Duration) *Generator {
	return &Generator{
		ingest:   ing,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start registers the sample processes and begins emitting events in the
// background.
func (g *Generator) Start() {
	for _, sp := range sampleProcesses {
		ptype := sp.ptype
		_, err := g.ingest.RegisterProcess(types.ProcessSpec{
			PID:  sp.pid,
			Name: sp.name,
			Type: &ptype,
		})
		if err != nil && !errors.Is(err, errs.ErrDuplicatePID) {
			g.logger.Warn("failed to register sample process",
				zap.String("name", sp.name), zap.Error(err))
		}
	}

	g.wg.Add(1)
	go g.run()
	g.logger.Info("sample traffic generator started",
		zap.Duration("interval", g.interval))
}

// Stop halts emission and waits for the worker to exit.
func (g *Generator) Stop() {
	close(g.stop)
	g.wg.Wait()
}

func (g *Generator) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.emit()
		}
	}
}

func (g *Generator) emit() {
	src := sampleProcesses[rand.IntN(len(sampleProcesses))]
	tgt := sampleProcesses[rand.IntN(len(sampleProcesses))]
	for tgt.pid == src.pid {
		tgt = sampleProcesses[rand.IntN(len(sampleProcesses))]
	}

	status := types.StatusSuccess
	switch rand.IntN(10) {
	case 0:
		status = types.StatusError
	case 1:
		status = types.StatusPending
	}

	size := int64(rand.IntN(16 * 1024))
	srcName, tgtName := src.name, tgt.name
	spec := types.EventSpec{
		SourcePID:   src.pid,
		TargetPID:   tgt.pid,
		SourceName:  &srcName,
		TargetName:  &tgtName,
		MessageType: messageTypes[rand.IntN(len(messageTypes))],
		Status:      status,
		Size:        &size,
	}

	if _, err := g.ingest.CreateEvent(spec); err != nil {
		g.logger.Warn("failed to emit sample event", zap.Error(err))
		return
	}

	// Answer requests shortly after, so response-time stats have pairs.
	if spec.MessageType == types.MessageRequest {
		reply := types.EventSpec{
			SourcePID:   tgt.pid,
			TargetPID:   src.pid,
			SourceName:  &tgtName,
			TargetName:  &srcName,
			MessageType: types.MessageResponse,
			Status:      types.StatusSuccess,
		}
		if _, err := g.ingest.CreateEvent(reply); err != nil {
			g.logger.Warn("failed to emit sample response", zap.Error(err))
		}
	}
}
