package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// AuthAttemptKey labels an authentication counter.
type AuthAttemptKey struct {
	Method  string
	Outcome string
}

// AuthAttemptCount is one labelled authentication counter.
type AuthAttemptCount struct {
	AuthAttemptKey
	Count uint64
}

// Snapshot captures current in-memory counters.
type Snapshot struct {
	AuthAttempts        []AuthAttemptCount
	AuthDurationCount   uint64
	AuthDurationTotalNs int64
	APIKeyCacheHits     uint64
	APIKeyCacheMisses   uint64
	TokensIssued        uint64
	AuditPublished      uint64
	AuditDropped        uint64
}

// InMemoryRecorder stores metrics in memory.
type InMemoryRecorder struct {
	mu           sync.Mutex
	authAttempts map[AuthAttemptKey]uint64

	authDurationCount   uint64
	authDurationTotalNs int64
	apiKeyCacheHits     uint64
	apiKeyCacheMisses   uint64
	tokensIssued        uint64
	auditPublished      uint64
	auditDropped        uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{authAttempts: make(map[AuthAttemptKey]uint64)}
}

// Snapshot returns a copy of the counters. Attempts are sorted by method then outcome.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	attempts := make([]AuthAttemptCount, 0, len(m.authAttempts))
	for k, v := range m.authAttempts {
		attempts = append(attempts, AuthAttemptCount{AuthAttemptKey: k, Count: v})
	}
	m.mu.Unlock()

	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].Method != attempts[j].Method {
			return attempts[i].Method < attempts[j].Method
		}
		return attempts[i].Outcome < attempts[j].Outcome
	})

	return Snapshot{
		AuthAttempts:        attempts,
		AuthDurationCount:   atomic.LoadUint64(&m.authDurationCount),
		AuthDurationTotalNs: atomic.LoadInt64(&m.authDurationTotalNs),
		APIKeyCacheHits:     atomic.LoadUint64(&m.apiKeyCacheHits),
		APIKeyCacheMisses:   atomic.LoadUint64(&m.apiKeyCacheMisses),
		TokensIssued:        atomic.LoadUint64(&m.tokensIssued),
		AuditPublished:      atomic.LoadUint64(&m.auditPublished),
		AuditDropped:        atomic.LoadUint64(&m.auditDropped),
	}
}

// AuthAttempts returns the counter for one method/outcome pair.
func (m *InMemoryRecorder) AuthAttempts(method, outcome string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authAttempts[AuthAttemptKey{Method: method, Outcome: outcome}]
}

// IncAuthAttempt increments the labelled attempt counter.
func (m *InMemoryRecorder) IncAuthAttempt(method, outcome string) {
	m.mu.Lock()
	m.authAttempts[AuthAttemptKey{Method: method, Outcome: outcome}]++
	m.mu.Unlock()
}

// ObserveAuthDuration records resolution latency.
func (m *InMemoryRecorder) ObserveAuthDuration(duration time.Duration) {
	atomic.AddUint64(&m.authDurationCount, 1)
	atomic.AddInt64(&m.authDurationTotalNs, duration.Nanoseconds())
}

// IncAPIKeyCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncAPIKeyCacheHit() {
	atomic.AddUint64(&m.apiKeyCacheHits, 1)
}

// IncAPIKeyCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncAPIKeyCacheMiss() {
	atomic.AddUint64(&m.apiKeyCacheMisses, 1)
}

// IncTokenIssued increments issued token counter.
func (m *InMemoryRecorder) IncTokenIssued() {
	atomic.AddUint64(&m.tokensIssued, 1)
}

// IncAuditEventPublished counts audit stream writes by outcome.
func (m *InMemoryRecorder) IncAuditEventPublished(outcome string) {
	if outcome == OutcomeDropped {
		atomic.AddUint64(&m.auditDropped, 1)
		return
	}
	atomic.AddUint64(&m.auditPublished, 1)
}
