package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"tunepilot/internal/storage"
)

// Stats accumulates aggregate counters. Counters only ever grow; concurrent
// increments are atomic.
type Stats struct {
	totalPlays atomic.Int64
	totalUsers atomic.Int64
	startedAt  time.Time

	mu   sync.Mutex
	seen map[int64]struct{}
}

func NewStats() *Stats {
	return &Stats{
		startedAt: time.Now(),
		seen:      make(map[int64]struct{}),
	}
}

// Load seeds the counters from a persisted record. Persisted values never
// lower a counter.
func (s *Stats) Load(rec storage.StatsRecord) {
	raise(&s.totalPlays, rec.TotalPlays)
	raise(&s.totalUsers, rec.TotalUsers)
}

func (s *Stats) RecordPlay() {
	s.totalPlays.Add(1)
}

// RecordUser counts a user once per process lifetime.
func (s *Stats) RecordUser(userID int64) {
	s.mu.Lock()
	_, known := s.seen[userID]
	if !known {
		s.seen[userID] = struct{}{}
	}
	s.mu.Unlock()

	if !known {
		s.totalUsers.Add(1)
	}
}

func (s *Stats) TotalPlays() int64 { return s.totalPlays.Load() }
func (s *Stats) TotalUsers() int64 { return s.totalUsers.Load() }

func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// Record returns the persistable shape of the counters.
func (s *Stats) Record() storage.StatsRecord {
	return storage.StatsRecord{
		TotalPlays: s.totalPlays.Load(),
		TotalUsers: s.totalUsers.Load(),
	}
}

// raise lifts an atomic counter to at least v without ever lowering it.
func raise(c *atomic.Int64, v int64) {
	for {
		cur := c.Load()
		if cur >= v || c.CompareAndSwap(cur, v) {
			return
		}
	}
}
