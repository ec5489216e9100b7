package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Signups          map[string]uint64
	Logins           map[string]uint64
	TokenValidations map[string]uint64
	RateLimited      map[string]uint64
	AuditEvents      map[string]uint64
	HashCount        uint64
	HashTotalNs      int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu               sync.Mutex
	signups          map[string]uint64
	logins           map[string]uint64
	tokenValidations map[string]uint64
	rateLimited      map[string]uint64
	auditEvents      map[string]uint64

	hashCount   uint64
	hashTotalNs int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		signups:          make(map[string]uint64),
		logins:           make(map[string]uint64),
		tokenValidations: make(map[string]uint64),
		rateLimited:      make(map[string]uint64),
		auditEvents:      make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Signups:          maps.Clone(m.signups),
		Logins:           maps.Clone(m.logins),
		TokenValidations: maps.Clone(m.tokenValidations),
		RateLimited:      maps.Clone(m.rateLimited),
		AuditEvents:      maps.Clone(m.auditEvents),
		HashCount:        atomic.LoadUint64(&m.hashCount),
		HashTotalNs:      atomic.LoadInt64(&m.hashTotalNs),
	}
}

// IncSignup counts a signup attempt by outcome.
func (m *InMemoryRecorder) IncSignup(status string) {
	m.inc(m.signups, status)
}

// IncLogin counts a login attempt by outcome.
func (m *InMemoryRecorder) IncLogin(status string) {
	m.inc(m.logins, status)
}

// IncTokenValidation counts a bearer token check by outcome.
func (m *InMemoryRecorder) IncTokenValidation(status string) {
	m.inc(m.tokenValidations, status)
}

// ObserveHashDuration records hashing time.
func (m *InMemoryRecorder) ObserveHashDuration(_ string, duration time.Duration) {
	atomic.AddUint64(&m.hashCount, 1)
	atomic.AddInt64(&m.hashTotalNs, duration.Nanoseconds())
}

// IncRateLimited counts a rejected request.
func (m *InMemoryRecorder) IncRateLimited(route string) {
	m.inc(m.rateLimited, route)
}

// IncAuditEvent counts an audit publish by outcome.
func (m *InMemoryRecorder) IncAuditEvent(status string) {
	m.inc(m.auditEvents, status)
}

func (m *InMemoryRecorder) inc(counter map[string]uint64, label string) {
	m.mu.Lock()
	counter[label]++
	m.mu.Unlock()
}
