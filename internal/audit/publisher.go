// Package audit publishes account events to a Redis stream.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/internal/metrics"
)

const (
	// StreamKey is the Redis stream for auth events.
	StreamKey = "stream:auth_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// Event types.
const (
	EventSignup = "signup"
	EventLogin  = "login"
)

// Event is the compact record written to the stream.
type Event struct {
	Type        string `json:"e"`
	Outcome     string `json:"o"` // one of the metrics.Status* labels
	Username    string `json:"u,omitempty"`
	VisitorHash string `json:"vh"`
	UserAgent   string `json:"ua,omitempty"`
	RequestID   string `json:"rid,omitempty"`
	OccurredAt  int64  `json:"t"` // Unix milliseconds
}

// NewEvent builds an Event from request data. The username is kept only for
// successful outcomes, since failed attempts often carry mistyped passwords.
func NewEvent(eventType, outcome, username, ip, userAgent, requestID string, at time.Time) Event {
	e := Event{
		Type:        eventType,
		Outcome:     outcome,
		VisitorHash: VisitorHash(ip, at),
		UserAgent:   TruncateUserAgent(userAgent),
		RequestID:   requestID,
		OccurredAt:  at.UnixMilli(),
	}
	if outcome == metrics.StatusSuccess {
		e.Username = username
	}
	return e
}

// Publisher appends auth events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	wg      sync.WaitGroup
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "audit.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	if err := ValidateEvent(event); err != nil {
		return "", fmt.Errorf("invalid event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned.
func (p *Publisher) PublishAsync(event Event) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish auth event",
				"event", event.Type,
				"request_id", event.RequestID,
				"error", err,
			)
			p.metrics.IncAuditEvent("dropped")
			return
		}

		p.logger.Debug("auth event published",
			"event", event.Type,
			"stream_id", streamID,
		)
		p.metrics.IncAuditEvent(metrics.StatusSuccess)
	}()
}

// Wait blocks until in-flight publishes finish or ctx is done.
func (p *Publisher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// VisitorHash creates a privacy-safe client identifier.
// Uses SHA256(IP + daily_salt) truncated to 16 hex chars, so attempts from one
// address group together within a UTC day regardless of user agent.
func VisitorHash(ip string, at time.Time) string {
	// Daily salt rotates at midnight UTC
	dailySalt := fmt.Sprintf("authgate:%s", at.UTC().Format("2006-01-02"))

	hash := sha256.Sum256([]byte(ip + dailySalt))
	return hex.EncodeToString(hash[:])[:visitorHashLength]
}

// TruncateUserAgent truncates user agent to max 500 bytes.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxMetaLength {
		return ua[:maxMetaLength]
	}
	return ua
}
