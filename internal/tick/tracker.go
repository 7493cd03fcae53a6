package tick

import (
	"sync"
	"time"
)

// ackTracker records TickAck arrivals so stage exchanges (which only know
// instance ids) can wait for specific instances without each subscribing to
// the shared coord.tick.done subject themselves.
type ackTracker struct {
	mu      sync.Mutex
	acked   map[string]uint64 // instanceID -> highest tickID acked
	waiters map[string][]chan struct{}
}

func newAckTracker() *ackTracker {
	return &ackTracker{
		acked:   make(map[string]uint64),
		waiters: make(map[string][]chan struct{}),
	}
}

func (t *ackTracker) record(instanceID string, tickID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.acked[instanceID]; !ok || cur < tickID {
		t.acked[instanceID] = tickID
	}
	for _, ch := range t.waiters[instanceID] {
		close(ch)
	}
	delete(t.waiters, instanceID)
}

// waitFor blocks until instanceID has acked tickID or the deadline elapses,
// returning whether the ack was observed in time.
func (t *ackTracker) waitFor(instanceID string, tickID uint64, deadline time.Duration) bool {
	timeout := time.After(deadline)
	for {
		t.mu.Lock()
		if acked, ok := t.acked[instanceID]; ok && acked >= tickID {
			t.mu.Unlock()
			return true
		}
		ch := make(chan struct{})
		t.waiters[instanceID] = append(t.waiters[instanceID], ch)
		t.mu.Unlock()

		select {
		case <-ch:
		case <-timeout:
			return false
		}
	}
}

// healthView aggregates the most recent heartbeat per instance for the
// coordinator's health/status surface.
type healthView struct {
	mu         sync.Mutex
	heartbeats map[string]heartbeatRecord
}

type heartbeatRecord struct {
	System   string
	Load     float64
	LastSeen time.Time
}

func newHealthView() *healthView {
	return &healthView{heartbeats: make(map[string]heartbeatRecord)}
}

func (h *healthView) record(instanceID, system string, load float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heartbeats[instanceID] = heartbeatRecord{System: system, Load: load, LastSeen: time.Now()}
}

// Snapshot returns a copy of the current heartbeat table for reporting.
func (h *healthView) Snapshot() map[string]heartbeatRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]heartbeatRecord, len(h.heartbeats))
	for k, v := range h.heartbeats {
		out[k] = v
	}
	return out
}
