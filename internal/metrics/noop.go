package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSignup is a no-op.
func (n *NoopRecorder) IncSignup(status string) {}

// IncLogin is a no-op.
func (n *NoopRecorder) IncLogin(status string) {}

// IncTokenValidation is a no-op.
func (n *NoopRecorder) IncTokenValidation(status string) {}

// ObserveHashDuration is a no-op.
func (n *NoopRecorder) ObserveHashDuration(op string, duration time.Duration) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited(route string) {}

// IncAuditEvent does nothing.
func (n *NoopRecorder) IncAuditEvent(status string) {}
