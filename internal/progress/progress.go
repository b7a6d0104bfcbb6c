// Package progress publishes job progress events for live observers
// while keeping the latest snapshot per job in memory so a late subscriber
// (or one that reconnects) can catch up without replaying history.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"landcrawler/internal/config"
)

// defaultPublishInterval is used when config.Scheduler.ProgressPublishMs
// is left at zero.
const defaultPublishInterval = 250 * time.Millisecond

// Event is one progress update for a running job.
type Event struct {
	JobID    uuid.UUID      `json:"jobId"`
	Seq      uint64         `json:"seq"`
	Counters map[string]any `json:"counters"`
	Message  string         `json:"message"`
}

func channelName(jobID uuid.UUID) string {
	return fmt.Sprintf("landcrawler:job:%s:progress", jobID)
}

// Channel fans progress events out over Redis pub/sub and keeps the
// latest snapshot per job in memory for synchronous reads by callers
// that don't want to subscribe (e.g. a status poll endpoint).
type Channel struct {
	client          *redis.Client
	clock           clock.Clock
	publishInterval time.Duration

	mu       sync.RWMutex
	seq      map[uuid.UUID]*uint64
	snapshot map[uuid.UUID]Event
	lastSent map[uuid.UUID]time.Time
}

// New builds a Channel. When cfg.URL is empty, publishing becomes a
// local-only no-op: snapshots still work, live fan-out does not.
// publishInterval is the scheduler's configured progressPublishMs; a
// non-positive value falls back to defaultPublishInterval.
func New(cfg config.RedisConfig, publishInterval time.Duration) (*Channel, error) {
	if publishInterval <= 0 {
		publishInterval = defaultPublishInterval
	}
	c := &Channel{
		clock:           clock.New(),
		publishInterval: publishInterval,
		seq:             make(map[uuid.UUID]*uint64),
		snapshot:        make(map[uuid.UUID]Event),
		lastSent:        make(map[uuid.UUID]time.Time),
	}
	if cfg.URL == "" {
		return c, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c.client = redis.NewClient(opts)
	return c, nil
}

func (c *Channel) nextSeq(jobID uuid.UUID) uint64 {
	c.mu.Lock()
	counter, ok := c.seq[jobID]
	if !ok {
		counter = new(uint64)
		c.seq[jobID] = counter
	}
	c.mu.Unlock()
	return atomic.AddUint64(counter, 1)
}

// Publish records a progress update. The in-memory snapshot (read back
// by Snapshot) is updated on every call, so callers should invoke this
// at least once per completed expression. The live Redis fan-out is
// rate-limited to publishInterval per jobID; calls that land inside
// the window still advance the snapshot and sequence number but are
// not broadcast. Publish failures (e.g. Redis unreachable) are
// swallowed: progress is observability, never a condition a job run
// should fail on.
func (c *Channel) Publish(ctx context.Context, jobID uuid.UUID, counters map[string]any, message string) {
	ev := Event{JobID: jobID, Seq: c.nextSeq(jobID), Counters: counters, Message: message}

	now := c.clock.Now()
	c.mu.Lock()
	c.snapshot[jobID] = ev
	last, sentBefore := c.lastSent[jobID]
	throttled := sentBefore && now.Sub(last) < c.publishInterval
	if !throttled {
		c.lastSent[jobID] = now
	}
	c.mu.Unlock()

	if c.client == nil || throttled {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	go c.client.Publish(ctx, channelName(jobID), payload)
}

// Snapshot returns the most recently published event for jobID, or
// false if nothing has been published yet this process's lifetime.
func (c *Channel) Snapshot(jobID uuid.UUID) (Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ev, ok := c.snapshot[jobID]
	return ev, ok
}

// Subscribe returns a channel of events for jobID. The caller must
// drain it (or cancel ctx) to let the subscription's goroutine exit.
func (c *Channel) Subscribe(ctx context.Context, jobID uuid.UUID) (<-chan Event, error) {
	if c.client == nil {
		return nil, fmt.Errorf("progress channel has no redis backend configured")
	}
	sub := c.client.Subscribe(ctx, channelName(jobID))
	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the underlying Redis client, if any.
func (c *Channel) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
