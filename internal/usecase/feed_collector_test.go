package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"FeedRelay/internal/domain/models"
	mid "FeedRelay/internal/middleware"
	"FeedRelay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStream serves one batch of events per Read, then closes the
// channels so the collector has to reconnect for the next batch.
type scriptedStream struct {
	mu         sync.Mutex
	batches    [][]models.MarketEvent
	reconnects atomic.Int32
	closed     atomic.Bool
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) IsConnected() bool               { return !s.closed.Load() }
func (s *scriptedStream) Close() error                    { s.closed.Store(true); return nil }

func (s *scriptedStream) Reconnect(context.Context) error {
	s.reconnects.Add(1)
	return nil
}

func (s *scriptedStream) Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error) {
	events := make(chan models.MarketEvent, 16)
	errs := make(chan error, 1)

	s.mu.Lock()
	var batch []models.MarketEvent
	if len(s.batches) > 0 {
		batch, s.batches = s.batches[0], s.batches[1:]
	}
	s.mu.Unlock()

	if batch == nil {
		// nothing left: stay open until cancelled
		go func() {
			<-ctx.Done()
			close(events)
		}()
		return events, errs
	}
	for _, ev := range batch {
		events <- ev
	}
	close(events)
	return events, errs
}

type countingHandler struct{ n atomic.Int32 }

func (h *countingHandler) Handle(context.Context, models.MarketEvent) error {
	h.n.Add(1)
	return nil
}

func trade(sym string) models.MarketEvent {
	return &models.TradeUpdate{Exchange: "binance", Symbol: sym, ReceiptTime: receipt}
}

func TestFeedCollectorDrainsAndReconnects(t *testing.T) {
	stream := &scriptedStream{batches: [][]models.MarketEvent{
		{trade("BTC-USDT"), trade("ETH-USDT")},
		{trade("BTC-USDT")},
	}}
	h := &countingHandler{}
	m := newFakeMetrics()
	pipe := mid.NewEventPipeline(h, m, logger.Nop())
	c := NewFeedCollector(stream, pipe, m, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, func() bool { return h.n.Load() == 3 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return stream.reconnects.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
	require.NoError(t, c.Shutdown(context.Background()))
	assert.False(t, c.IsConnected())
}
