package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"FeedRelay/pkg/async"
)

var (
	// ErrQueueFull is reported when a bus buffer has no room; the record is
	// dropped rather than blocking the feed loop.
	ErrQueueFull = errors.New("bus queue full")
	ErrBusClosed = errors.New("bus closed")
)

type busMessage struct {
	topic string
	key   string
	data  []byte
	at    time.Time
	res   *async.Result
}

type flushFunc func(ctx context.Context, batch []*busMessage)

// batchQueue buffers messages and hands them to flush in batches of up to
// size, or every linger, from a single worker goroutine. flush must complete
// every message's result.
type batchQueue struct {
	mu      sync.RWMutex
	closed  bool
	ch      chan *busMessage
	size    int
	linger  time.Duration
	timeout time.Duration
	flush   flushFunc
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newBatchQueue(capacity, size int, linger, timeout time.Duration, flush flushFunc) *batchQueue {
	if capacity <= 0 {
		capacity = 10000
	}
	if size <= 0 {
		size = 500
	}
	if linger <= 0 {
		linger = 100 * time.Millisecond
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	q := &batchQueue{
		ch:      make(chan *busMessage, capacity),
		size:    size,
		linger:  linger,
		timeout: timeout,
		flush:   flush,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go q.run()
	return q
}

// enqueue never blocks.
func (q *batchQueue) enqueue(topic, key string, data []byte) *async.Result {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return async.Failed(ErrBusClosed)
	}
	m := &busMessage{topic: topic, key: key, data: data, at: time.Now(), res: async.New()}
	select {
	case q.ch <- m:
		return m.res
	default:
		return async.Failed(ErrQueueFull)
	}
}

func (q *batchQueue) run() {
	defer close(q.doneCh)
	ticker := time.NewTicker(q.linger)
	defer ticker.Stop()

	batch := make([]*busMessage, 0, q.size)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		q.flush(ctx, batch)
		cancel()
		batch = make([]*busMessage, 0, q.size)
	}

	for {
		select {
		case m := <-q.ch:
			batch = append(batch, m)
			if len(batch) >= q.size {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-q.stopCh:
			for {
				select {
				case m := <-q.ch:
					batch = append(batch, m)
					if len(batch) >= q.size {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// close stops accepting messages, flushes what is buffered and waits.
func (q *batchQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.doneCh
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.stopCh)
	<-q.doneCh
}
