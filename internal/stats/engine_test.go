package stats

import (
	"testing"
	"time"

	"ipcscope/internal/store"
	"ipcscope/internal/types"
)

func insertAt(s *store.Store, src, tgt int, mt types.MessageType, ts time.Time) {
	s.InsertEvent(types.EventSpec{
		Timestamp:   &ts,
		SourcePID:   src,
		TargetPID:   tgt,
		MessageType: mt,
		Status:      types.StatusSuccess,
	})
}

func TestActiveProcessCount(t *testing.T) {
	s := store.New()
	e := New(s)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	insertAt(s, 100, 200, types.MessagePipe, now.Add(-10*time.Minute))
	insertAt(s, 300, 200, types.MessageSocket, now.Add(-59*time.Minute))

	if got := e.ActiveProcessCount(now); got != 3 {
		t.Errorf("expected 3 active pids, got %d", got)
	}
}

func TestActiveProcessCountExcludesStaleEvents(t *testing.T) {
	s := store.New()
	e := New(s)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// The only event for pids 100/200 is older than the window.
	insertAt(s, 100, 200, types.MessagePipe, now.Add(-2*time.Hour))

	if got := e.ActiveProcessCount(now); got != 0 {
		t.Errorf("expected 0 active pids, got %d", got)
	}
}

func TestAverageResponseTime(t *testing.T) {
	s := store.New()
	e := New(s)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Two completed exchanges: 250ms and 750ms.
	insertAt(s, 100, 200, types.MessageRequest, base)
	insertAt(s, 200, 100, types.MessageResponse, base.Add(250*time.Millisecond))
	insertAt(s, 100, 200, types.MessageRequest, base.Add(time.Second))
	insertAt(s, 200, 100, types.MessageResponse, base.Add(time.Second+750*time.Millisecond))

	if got := e.AverageResponseTime(); got != 500 {
		t.Errorf("expected 500ms average, got %v", got)
	}
}

func TestAverageResponseTimeIgnoresUnmatched(t *testing.T) {
	s := store.New()
	e := New(s)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// A response with no mirrored request, and a request never answered.
	insertAt(s, 200, 100, types.MessageResponse, base)
	insertAt(s, 100, 200, types.MessageRequest, base.Add(time.Second))

	if got := e.AverageResponseTime(); got != 0 {
		t.Errorf("expected 0 with no completed pair, got %v", got)
	}
}

func TestAverageResponseTimeConsumesRequestOnce(t *testing.T) {
	s := store.New()
	e := New(s)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	insertAt(s, 100, 200, types.MessageRequest, base)
	insertAt(s, 200, 100, types.MessageResponse, base.Add(100*time.Millisecond))
	// Second response finds no open request and is ignored.
	insertAt(s, 200, 100, types.MessageResponse, base.Add(10*time.Second))

	if got := e.AverageResponseTime(); got != 100 {
		t.Errorf("expected 100ms, got %v", got)
	}
}

func TestSnapshot(t *testing.T) {
	s := store.New()
	e := New(s)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.RegisterProcess(types.ProcessSpec{PID: 100, Name: "alpha"})
	s.RegisterProcess(types.ProcessSpec{PID: 200, Name: "beta"})
	insertAt(s, 100, 200, types.MessagePipe, now.Add(-time.Minute))
	insertAt(s, 100, 200, types.MessagePipe, now.Add(-time.Minute))

	snap := e.Snapshot(now, 1)
	if snap.TotalMessages != 2 {
		t.Errorf("expected 2 total messages, got %d", snap.TotalMessages)
	}
	if snap.ActiveProcesses != 2 {
		t.Errorf("expected 2 active processes, got %d", snap.ActiveProcesses)
	}
	if len(snap.TopProcesses) != 1 || snap.TopProcesses[0].PID != 100 {
		t.Errorf("expected pid 100 on top, got %+v", snap.TopProcesses)
	}
}
