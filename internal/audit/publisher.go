// Package audit records security-relevant authentication events on a Redis stream.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/l3agi/l3server/internal/metrics"
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
	EventSignIn        = "sign_in"
	EventAPIKeyCreated = "api_key_created"
	EventAPIKeyRevoked = "api_key_revoked"
	EventAPIKeyRotated = "api_key_rotated"
	EventTokenIssued   = "token_issued"
)

// Event is the compact payload written to the stream. It never carries
// credentials, only identifiers.
type Event struct {
	Type       string `json:"type"`
	UserID     string `json:"uid,omitempty"`
	AccountID  string `json:"aid,omitempty"`
	KeyID      string `json:"kid,omitempty"`
	Subject    string `json:"sub,omitempty"`
	RequestID  string `json:"rid,omitempty"`
	ClientHash string `json:"ch,omitempty"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// Publisher appends auth events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new audit event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With(slog.String("component", "audit.publisher")),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	if event.OccurredAt == 0 {
		event.OccurredAt = time.Now().UnixMilli()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    event.Type,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// PublishAsync publishes without blocking the caller. Failures are logged
// and counted, never returned.
func (p *Publisher) PublishAsync(ctx context.Context, event Event) {
	if event.OccurredAt == 0 {
		event.OccurredAt = time.Now().UnixMilli()
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(pubCtx, event)
		if err != nil {
			p.logger.Warn("failed to publish audit event",
				slog.String("type", event.Type),
				slog.String("error", err.Error()),
			)
			p.metrics.IncAuditEventPublished(metrics.OutcomeDropped)
			return
		}

		p.logger.Debug("audit event published",
			slog.String("type", event.Type),
			slog.String("stream_id", streamID),
		)
		p.metrics.IncAuditEventPublished(metrics.OutcomeSuccess)
	}()
}

// ClientHash derives a privacy-safe client identifier from IP and
// User-Agent. The salt rotates daily (UTC) so hashes cannot be joined
// across days.
func ClientHash(ip, userAgent string, at time.Time) string {
	if ip == "" && userAgent == "" {
		return ""
	}
	salt := "l3server:" + at.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(ip + "|" + userAgent + "|" + salt))
	return hex.EncodeToString(sum[:])[:16]
}

// Decode parses the payload field of a stream entry.
func Decode(values map[string]interface{}) (*Event, error) {
	raw, ok := values["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("missing payload field")
	}
	var event Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &event, nil
}
