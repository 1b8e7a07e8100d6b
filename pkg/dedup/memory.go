// Package dedup detects redeliveries of Socket Mode envelopes. Slack redelivers
// envelopes that aren't acknowledged in time, so a slow acknowledgement may
// result in duplicate processing of the same envelope without this.
package dedup

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultTTL = 10 * time.Minute
)

// Memory is an in-process store of recently seen envelope IDs. It is suitable
// only for single-instance deployments. IDs are forgotten after a TTL.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	seen   map[string]time.Time
	nextGC time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, seen: map[string]time.Time{}}
}

// Seen records the given envelope ID, and reports whether it
// was already recorded (and hasn't expired yet) before this call.
func (m *Memory) Seen(_ context.Context, envelopeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.gc(now)

	if exp, ok := m.seen[envelopeID]; ok && now.Before(exp) {
		return true, nil
	}
	m.seen[envelopeID] = now.Add(m.ttl)
	return false, nil
}

// Len returns the number of recorded IDs, including expired ones
// that weren't garbage-collected yet.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// gc removes expired IDs, at most once per TTL.
func (m *Memory) gc(now time.Time) {
	if now.Before(m.nextGC) {
		return
	}
	m.nextGC = now.Add(m.ttl)

	for id, exp := range m.seen {
		if !now.Before(exp) {
			delete(m.seen, id)
		}
	}
}
