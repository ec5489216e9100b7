// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels shared by all recorders.
const (
	StatusSuccess            = "success"
	StatusInvalidInput       = "invalid_input"
	StatusUsernameTaken      = "username_taken"
	StatusInvalidCredentials = "invalid_credentials"
	StatusInvalidToken       = "invalid_token"
	StatusExpiredToken       = "expired_token"
	StatusError              = "error"
)

// Hash operations observed by ObserveHashDuration.
const (
	HashOpHash   = "hash"
	HashOpVerify = "verify"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account flow metrics
	IncSignup(status string)
	IncLogin(status string)
	IncTokenValidation(status string)

	// Password hashing cost
	ObserveHashDuration(op string, duration time.Duration)

	// Requests rejected by the per-IP limiter
	IncRateLimited(route string)

	// Audit stream publishing ("success" or "dropped")
	IncAuditEvent(status string)
}
