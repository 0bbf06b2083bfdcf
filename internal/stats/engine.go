// Package stats derives aggregate metrics from the store's current contents.
// The engine holds no state of its own; every figure is recomputed from a
// store snapshot at the moment it is requested.
package stats

import (
	"sort"
	"time"

	"ipcscope/internal/store"
	"ipcscope/internal/types"
)

// ActiveWindow is the trailing window used for the active-process count.
const ActiveWindow = time.Hour

// Engine computes aggregates over a store.
type Engine struct {
	store *store.Store
}

// New creates an engine bound to a store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// ActiveProcessCount counts distinct pids appearing as source or target in
// events whose timestamp falls within the trailing window ending at now.
func (e *Engine) ActiveProcessCount(now time.Time) int {
	cutoff := now.Add(-ActiveWindow)
	seen := make(map[int]struct{})
	for _, ev := range e.store.SnapshotEvents() {
		if ev.Timestamp.Before(cutoff) || ev.Timestamp.After(now) {
			continue
		}
		seen[ev.SourcePID] = struct{}{}
		seen[ev.TargetPID] = struct{}{}
	}
	return len(seen)
}

// AverageResponseTime correlates REQUEST events with RESPONSE events flowing
// the opposite direction between the same pid pair and averages the elapsed
// time in milliseconds. Each REQUEST is consumed by at most one RESPONSE.
// Returns 0 when no pair has completed.
func (e *Engine) AverageResponseTime() float64 {
	events := e.store.SnapshotEvents()
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	type pair struct{ src, tgt int }
	pending := make(map[pair][]time.Time)

	var total time.Duration
	var matched int
	for _, ev := range events {
		switch ev.MessageType {
		case types.MessageRequest:
			k := pair{ev.SourcePID, ev.TargetPID}
			pending[k] = append(pending[k], ev.Timestamp)
		case types.MessageResponse:
			// A response from B to A answers the latest open request
			// from A to B.
			k := pair{ev.TargetPID, ev.SourcePID}
			open := pending[k]
			if len(open) == 0 {
				continue
			}
			reqTS := open[len(open)-1]
			pending[k] = open[:len(open)-1]
			if d := ev.Timestamp.Sub(reqTS); d >= 0 {
				total += d
				matched++
			}
		}
	}

	if matched == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(matched)
}

// TopProcesses delegates to the store's sorted slice.
func (e *Engine) TopProcesses(n int) []types.Process {
	return e.store.TopProcesses(n)
}

// Snapshot assembles the aggregate payload broadcast to observers and served
// on the stats endpoint.
func (e *Engine) Snapshot(now time.Time, topN int) types.Stats {
	return types.Stats{
		TotalMessages:   e.store.TotalEventCount(),
		ActiveProcesses: e.ActiveProcessCount(now),
		AvgResponseTime: e.AverageResponseTime(),
		TopProcesses:    e.TopProcesses(topN),
	}
}
