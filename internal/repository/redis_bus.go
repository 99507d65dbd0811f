package repository

import (
	"context"
	"time"

	drepo "FeedRelay/internal/domain/repository"
	"FeedRelay/pkg/async"

	"github.com/redis/go-redis/v9"
)

// RedisBus appends records to one Redis stream per topic. Entries carry the
// ordering key and the payload; a single writer keeps per-stream order.
type RedisBus struct {
	client *redis.Client
	maxLen int64
	q      *batchQueue
}

// RedisBusOption configures RedisBus.
type RedisBusOption func(*redisBusConfig)

type redisBusConfig struct {
	maxLen    int64
	queueSize int
	batchSize int
	linger    time.Duration
	timeout   time.Duration
}

// WithStreamMaxLen caps each stream (approximate trimming). Zero disables.
func WithStreamMaxLen(n int64) RedisBusOption {
	return func(c *redisBusConfig) { c.maxLen = n }
}

// WithRedisQueue sets buffer capacity, pipeline batch size and linger.
func WithRedisQueue(capacity, batch int, linger time.Duration) RedisBusOption {
	return func(c *redisBusConfig) {
		c.queueSize, c.batchSize, c.linger = capacity, batch, linger
	}
}

// NewRedisBus creates a stream-backed bus over client.
func NewRedisBus(client *redis.Client, opts ...RedisBusOption) drepo.Bus {
	cfg := &redisBusConfig{maxLen: 100000}
	for _, opt := range opts {
		opt(cfg)
	}
	b := &RedisBus{client: client, maxLen: cfg.maxLen}
	b.q = newBatchQueue(cfg.queueSize, cfg.batchSize, cfg.linger, cfg.timeout, b.flush)
	return b
}

func (b *RedisBus) Publish(topic, orderingKey string, data []byte) *async.Result {
	return b.q.enqueue(topic, orderingKey, data)
}

func (b *RedisBus) flush(ctx context.Context, batch []*busMessage) {
	pipe := b.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(batch))
	for i, m := range batch {
		args := &redis.XAddArgs{
			Stream: m.topic,
			Values: map[string]interface{}{"key": m.key, "data": m.data},
		}
		if b.maxLen > 0 {
			args.MaxLen = b.maxLen
			args.Approx = true
		}
		cmds[i] = pipe.XAdd(ctx, args)
	}
	// per-command errors are read below
	_, _ = pipe.Exec(ctx)
	for i, cmd := range cmds {
		id, err := cmd.Result()
		batch[i].res.Complete(id, err)
	}
}

// Close flushes buffered entries and closes the client.
func (b *RedisBus) Close() error {
	b.q.close()
	return b.client.Close()
}
