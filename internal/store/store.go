// Package store owns the authoritative in-memory collections of processes
// and IPC events. All reads and writes of entity state pass through it.
package store

import (
	"sort"
	"sync"
	"time"

	"ipcscope/internal/errs"
	"ipcscope/internal/types"
)

// Store holds both collections behind one lock. Surrogate ids are monotonic
// and never reused; cleared state keeps process records but zeroes counts.
type Store struct {
	mu            sync.RWMutex
	processes     []*types.Process
	procByID      map[int64]*types.Process
	procByPID     map[int]*types.Process
	events        []*types.IpcEvent
	nextProcessID int64
	nextEventID   int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		procByID:  make(map[int64]*types.Process),
		procByPID: make(map[int]*types.Process),
	}
}

// RegisterProcess assigns a surrogate id, stamps the registration instant and
// stores the record. Registration fails on a pid conflict.
func (s *Store) RegisterProcess(spec types.ProcessSpec) (types.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.procByPID[spec.PID]; exists {
		return types.Process{}, errs.ErrDuplicatePID
	}

	s.nextProcessID++
	p := &types.Process{
		ID:        s.nextProcessID,
		PID:       spec.PID,
		Name:      spec.Name,
		Type:      spec.Type,
		StartTime: time.Now(),
	}
	s.processes = append(s.processes, p)
	s.procByID[p.ID] = p
	s.procByPID[p.PID] = p
	return *p, nil
}

// InsertEvent assigns a surrogate id, defaults the timestamp to now when
// absent, stores the record and increments the source process's message
// count. An unregistered source pid is a no-op, not an error.
func (s *Store) InsertEvent(spec types.EventSpec) types.IpcEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := time.Now()
	if spec.Timestamp != nil {
		ts = *spec.Timestamp
	}

	s.nextEventID++
	ev := &types.IpcEvent{
		ID:          s.nextEventID,
		Timestamp:   ts,
		SourcePID:   spec.SourcePID,
		TargetPID:   spec.TargetPID,
		SourceName:  spec.SourceName,
		TargetName:  spec.TargetName,
		MessageType: spec.MessageType,
		Status:      spec.Status,
		Size:        spec.Size,
		Data:        spec.Data,
	}
	s.events = append(s.events, ev)

	if src, ok := s.procByPID[ev.SourcePID]; ok {
		src.MessageCount++
	}
	return *ev
}

// ListProcesses returns an unordered snapshot of all process records.
func (s *Store) ListProcesses() []types.Process {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Process, 0, len(s.processes))
	for _, p := range s.processes {
		out = append(out, *p)
	}
	return out
}

// GetProcess looks a process up by surrogate id.
func (s *Store) GetProcess(id int64) (types.Process, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.procByID[id]
	if !ok {
		return types.Process{}, false
	}
	return *p, true
}

// GetProcessByPID looks a process up by external pid.
func (s *Store) GetProcessByPID(pid int) (types.Process, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.procByPID[pid]
	if !ok {
		return types.Process{}, false
	}
	return *p, true
}

// TopProcesses returns up to n processes sorted by message count descending,
// ties broken by insertion order.
func (s *Store) TopProcesses(n int) []types.Process {
	out := s.ListProcesses()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MessageCount > out[j].MessageCount
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ListEvents returns one page of events sorted by timestamp descending and
// the total event count. Offsets past the end yield an empty page.
func (s *Store) ListEvents(limit, offset int) ([]types.IpcEvent, int) {
	all := s.eventsDescending()
	total := len(all)

	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []types.IpcEvent{}, total
	}
	end := total
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total
}

// EventsForPID returns events where the process participates as source or
// target, sorted by timestamp descending.
func (s *Store) EventsForPID(pid int) []types.IpcEvent {
	return s.FilterEvents(types.EventFilter{PID: &pid})
}

// FilterEvents returns events matching all supplied criteria, sorted by
// timestamp descending.
func (s *Store) FilterEvents(f types.EventFilter) []types.IpcEvent {
	all := s.eventsDescending()
	out := make([]types.IpcEvent, 0, len(all))
	for _, ev := range all {
		if f.PID != nil && ev.SourcePID != *f.PID && ev.TargetPID != *f.PID {
			continue
		}
		if f.MessageType != nil && ev.MessageType != *f.MessageType {
			continue
		}
		if f.Status != nil && ev.Status != *f.Status {
			continue
		}
		if f.Start != nil && ev.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && ev.Timestamp.After(*f.End) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// SnapshotEvents returns all events in insertion order.
func (s *Store) SnapshotEvents() []types.IpcEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.IpcEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, *ev)
	}
	return out
}

// Clear removes all events and resets every message count in one critical
// section, so no reader observes a partially cleared state.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	for _, p := range s.processes {
		p.MessageCount = 0
	}
}

// TotalEventCount returns the number of stored events.
func (s *Store) TotalEventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// eventsDescending snapshots all events sorted newest-first. The stable sort
// keeps insertion order among equal timestamps.
func (s *Store) eventsDescending() []types.IpcEvent {
	out := s.SnapshotEvents()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
