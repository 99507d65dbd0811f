package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchQueueFlushesBySizeInOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]string
	)
	q := newBatchQueue(10, 2, time.Hour, time.Second, func(_ context.Context, batch []*busMessage) {
		keys := make([]string, 0, len(batch))
		for _, m := range batch {
			keys = append(keys, m.key)
			m.res.Complete(m.topic, nil)
		}
		mu.Lock()
		batches = append(batches, keys)
		mu.Unlock()
	})

	r1 := q.enqueue("t", "a", nil)
	r2 := q.enqueue("t", "b", nil)
	r3 := q.enqueue("t", "c", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := r2.Wait(ctx)
	require.NoError(t, err)
	_, err = r1.Wait(ctx)
	require.NoError(t, err)

	q.close()
	_, err = r3.Wait(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batches)
}

func TestBatchQueueRejectsWhenFullOrClosed(t *testing.T) {
	block := make(chan struct{})
	q := newBatchQueue(1, 1, time.Hour, time.Second, func(_ context.Context, batch []*busMessage) {
		<-block
		for _, m := range batch {
			m.res.Complete("", nil)
		}
	})

	first := q.enqueue("t", "a", nil)
	// wait until the worker holds the first message in flush
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, time.Millisecond)
	q.enqueue("t", "b", nil)

	full := q.enqueue("t", "c", nil)
	_, err := full.Wait(context.Background())
	assert.ErrorIs(t, err, ErrQueueFull)

	close(block)
	_, err = first.Wait(context.Background())
	require.NoError(t, err)

	q.close()
	_, err = q.enqueue("t", "d", nil).Wait(context.Background())
	assert.ErrorIs(t, err, ErrBusClosed)
}
