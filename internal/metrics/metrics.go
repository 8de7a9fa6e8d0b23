// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Authentication outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeDropped  = "dropped"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Authentication metrics; method is "jwt", "api_key" or "auth_token".
	IncAuthAttempt(method, outcome string)
	ObserveAuthDuration(duration time.Duration)

	// API key identity cache
	IncAPIKeyCacheHit()
	IncAPIKeyCacheMiss()

	// Token issuance
	IncTokenIssued()

	// Audit stream; outcome is "success" or "dropped".
	IncAuditEventPublished(outcome string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
