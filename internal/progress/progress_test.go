package progress

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"landcrawler/internal/config"
)

func TestNewWithoutRedisURLHasNoClient(t *testing.T) {
	c, err := New(config.RedisConfig{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.client != nil {
		t.Fatalf("expected no redis client when URL is empty")
	}
}

func TestPublishAndSnapshotWithoutRedis(t *testing.T) {
	c, _ := New(config.RedisConfig{}, 0)
	jobID := uuid.New()

	if _, ok := c.Snapshot(jobID); ok {
		t.Fatalf("expected no snapshot before any publish")
	}

	c.Publish(context.Background(), jobID, map[string]any{"fetched": 1}, "started")
	ev, ok := c.Snapshot(jobID)
	if !ok {
		t.Fatalf("expected snapshot after publish")
	}
	if ev.Seq != 1 {
		t.Fatalf("expected first sequence number 1, got %d", ev.Seq)
	}

	c.Publish(context.Background(), jobID, map[string]any{"fetched": 2}, "still going")
	ev2, _ := c.Snapshot(jobID)
	if ev2.Seq != 2 {
		t.Fatalf("expected sequence to advance monotonically, got %d", ev2.Seq)
	}
}

func TestSubscribeWithoutRedisFails(t *testing.T) {
	c, _ := New(config.RedisConfig{}, 0)
	if _, err := c.Subscribe(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error subscribing without a redis backend")
	}
}
