//go:build integration

package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/l3agi/l3server/internal/metrics"
	"github.com/l3agi/l3server/internal/testutil"
)

func newTestPublisher(t *testing.T) (context.Context, *redis.Client, *Publisher, *metrics.InMemoryRecorder) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	opts, err := redis.ParseURL(testutil.RequireEnv(t, "TEST_REDIS_URL"))
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Del(ctx, StreamKey).Err(); err != nil {
		t.Fatalf("reset stream: %v", err)
	}

	rec := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ctx, client, NewPublisher(client, logger, rec), rec
}

func TestIntegrationPublisher_Publish(t *testing.T) {
	ctx, client, pub, _ := newTestPublisher(t)

	id, err := pub.Publish(ctx, Event{Type: EventAPIKeyCreated, KeyID: "01HX", UserID: "u1"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	entries, err := client.XRange(ctx, StreamKey, id, id).Result()
	if err != nil || len(entries) != 1 {
		t.Fatalf("XRange = %v, %v", entries, err)
	}
	if entries[0].Values["type"] != EventAPIKeyCreated {
		t.Errorf("type field = %v", entries[0].Values["type"])
	}

	event, err := Decode(entries[0].Values)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if event.KeyID != "01HX" || event.OccurredAt == 0 {
		t.Errorf("decoded event = %+v", event)
	}
}

func TestIntegrationPublisher_PublishAsync(t *testing.T) {
	ctx, client, pub, rec := newTestPublisher(t)

	pub.PublishAsync(ctx, Event{Type: EventSignIn, UserID: "u1"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec.Snapshot().AuditPublished == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	n, err := client.XLen(ctx, StreamKey).Result()
	if err != nil {
		t.Fatalf("XLen failed: %v", err)
	}
	if n != 1 {
		t.Errorf("stream length = %d, want 1", n)
	}
}
