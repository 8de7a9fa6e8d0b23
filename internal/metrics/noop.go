package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncAuthAttempt is a no-op.
func (n *NoopRecorder) IncAuthAttempt(method, outcome string) {}

// ObserveAuthDuration is a no-op.
func (n *NoopRecorder) ObserveAuthDuration(duration time.Duration) {}

// IncAPIKeyCacheHit is a no-op.
func (n *NoopRecorder) IncAPIKeyCacheHit() {}

// IncAPIKeyCacheMiss is a no-op.
func (n *NoopRecorder) IncAPIKeyCacheMiss() {}

// IncTokenIssued is a no-op.
func (n *NoopRecorder) IncTokenIssued() {}

// IncAuditEventPublished does nothing.
func (n *NoopRecorder) IncAuditEventPublished(outcome string) {}
