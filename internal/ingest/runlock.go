package ingest

import (
	"sync"
	"time"
)

// RunSnapshot describes an in-flight run.
type RunSnapshot struct {
	RunID     string    `json:"runId"`
	Trigger   string    `json:"trigger"`
	StartedAt time.Time `json:"startedAt"`
}

// runLock serializes ingestion runs within the process. A second trigger
// while a run is active is rejected, not queued.
type runLock struct {
	mu      sync.Mutex
	active  bool
	current RunSnapshot
}

// Acquire claims the lock. Returns false when a run is already active.
func (l *runLock) Acquire(trigger string, startedAt time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return false
	}
	l.active = true
	l.current = RunSnapshot{Trigger: trigger, StartedAt: startedAt}
	return true
}

// SetRunID attaches the persisted run id once the ledger row exists.
func (l *runLock) SetRunID(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		l.current.RunID = runID
	}
}

// Snapshot returns the active run, or nil when idle.
func (l *runLock) Snapshot() *RunSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return nil
	}
	snap := l.current
	return &snap
}

func (l *runLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
	l.current = RunSnapshot{}
}
