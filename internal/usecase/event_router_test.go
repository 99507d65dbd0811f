package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"FeedRelay/internal/domain/models"
	"FeedRelay/pkg/async"
	"FeedRelay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	datatype string
	rec      models.Record
}

type fakePublisher struct {
	out []published
	err error
}

func (p *fakePublisher) Publish(exchange, datatype string, rec models.Record) (*async.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.out = append(p.out, published{exchange: exchange, datatype: datatype, rec: rec})
	return async.Completed("", nil), nil
}

func (p *fakePublisher) count(datatype string) int {
	n := 0
	for _, o := range p.out {
		if o.datatype == datatype {
			n++
		}
	}
	return n
}

type fakeMetrics struct {
	mu      sync.Mutex
	dropped int
	errors  map[string]int
	factors map[bool]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, factors: map[bool]int{}}
}

func (m *fakeMetrics) RecordPublished(string)         {}
func (m *fakeMetrics) RecordPublishError(string)      {}
func (m *fakeMetrics) RecordMidPrice(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)  {}

func (m *fakeMetrics) RecordDeltasDropped(_ string, n int) {
	m.mu.Lock()
	m.dropped += n
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordFactor(_ string, emitted bool) {
	m.mu.Lock()
	m.factors[emitted]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func newRouter(pub *fakePublisher, clock *manualClock) (*EventRouter, *fakeMetrics) {
	m := newFakeMetrics()
	th := NewFactorThrottle(WithClock(clock.Now))
	return NewEventRouter(pub, th, NewMemoryFactorStore(), m, logger.Nop()), m
}

func TestRouterBookSnapshotPublishesLevelsAndFactor(t *testing.T) {
	pub := &fakePublisher{}
	clock := &manualClock{t: time.Unix(100, 0)}
	r, m := newRouter(pub, clock)

	err := r.Handle(context.Background(), &models.BookUpdate{Book: snapshotBook(), ReceiptTime: receipt})
	require.NoError(t, err)

	assert.Equal(t, 4, pub.count(models.DatatypeL2))
	assert.Equal(t, 1, pub.count(models.DatatypeFactors))
	for _, o := range pub.out {
		assert.Equal(t, "binance", o.exchange)
	}
	assert.Equal(t, 1, m.factors[true])

	f, ok := r.factors.Get("binance", "BTC-USDT")
	require.True(t, ok)
	assert.True(t, f.MidPrice.Equal(dec("101.5")))
}

func TestRouterThrottlesFactorsButNotLevels(t *testing.T) {
	pub := &fakePublisher{}
	clock := &manualClock{t: time.Unix(100, 0)}
	r, m := newRouter(pub, clock)
	ev := &models.BookUpdate{Book: snapshotBook(), ReceiptTime: receipt}

	require.NoError(t, r.Handle(context.Background(), ev))
	clock.Advance(300 * time.Millisecond)
	require.NoError(t, r.Handle(context.Background(), ev))

	assert.Equal(t, 8, pub.count(models.DatatypeL2))
	assert.Equal(t, 1, pub.count(models.DatatypeFactors))
	assert.Equal(t, 1, m.factors[false])
}

func TestRouterDeltaCountsDroppedInsertions(t *testing.T) {
	pub := &fakePublisher{}
	r, m := newRouter(pub, &manualClock{t: time.Unix(0, 0)})

	book := snapshotBook()
	book.Timestamp = &eventAt
	book.Delta = &models.BookDelta{Bids: []models.PriceLevel{models.Level(50, 1), models.Level(101, 3)}}

	require.NoError(t, r.Handle(context.Background(), &models.BookUpdate{Book: book, ReceiptTime: receipt}))
	assert.Equal(t, 1, pub.count(models.DatatypeL2))
	assert.Equal(t, 1, m.dropped)
}

func TestRouterDeltaWithoutTimestampSkipsLevelsKeepsFactor(t *testing.T) {
	pub := &fakePublisher{}
	r, m := newRouter(pub, &manualClock{t: time.Unix(0, 0)})

	book := snapshotBook()
	book.Delta = &models.BookDelta{Bids: []models.PriceLevel{models.Level(101, 3)}}

	require.NoError(t, r.Handle(context.Background(), &models.BookUpdate{Book: book, ReceiptTime: receipt}))
	assert.Equal(t, 0, pub.count(models.DatatypeL2))
	assert.Equal(t, 1, pub.count(models.DatatypeFactors))
	assert.Equal(t, 1, m.errors["missing_event_ts"])
}

func TestRouterTickerAndTrade(t *testing.T) {
	pub := &fakePublisher{}
	r, _ := newRouter(pub, &manualClock{t: time.Unix(0, 0)})
	ctx := context.Background()

	require.NoError(t, r.Handle(ctx, &models.TickerUpdate{Exchange: "OKX", Symbol: "ETH-USDT", Bid: decPtr("1"), ReceiptTime: receipt}))
	require.NoError(t, r.Handle(ctx, &models.TradeUpdate{Exchange: "okx", Symbol: "ETH-USDT", Side: "buy", Price: dec("1"), Amount: dec("2"), ReceiptTime: receipt}))

	require.Len(t, pub.out, 2)
	assert.Equal(t, models.DatatypeTicker, pub.out[0].datatype)
	assert.Equal(t, "okx", pub.out[0].exchange)
	assert.IsType(t, &models.TickerRecord{}, pub.out[0].rec)
	assert.Equal(t, models.DatatypeTrades, pub.out[1].datatype)
	assert.IsType(t, &models.TradeRecord{}, pub.out[1].rec)
}

func TestRouterSurfacesPublisherConfigErrors(t *testing.T) {
	cfgErr := errors.New("invalid exchange")
	pub := &fakePublisher{err: cfgErr}
	r, m := newRouter(pub, &manualClock{t: time.Unix(0, 0)})

	err := r.Handle(context.Background(), &models.TradeUpdate{Exchange: "nope", Symbol: "X", ReceiptTime: receipt})
	assert.ErrorIs(t, err, cfgErr)
	assert.Equal(t, 1, m.errors["route"])
}

type otherEvent struct{ models.TradeUpdate }

func (otherEvent) Kind() models.EventKind { return "other" }

func TestRouterRejectsUnknownEvents(t *testing.T) {
	r, _ := newRouter(&fakePublisher{}, &manualClock{t: time.Unix(0, 0)})
	err := r.Handle(context.Background(), &otherEvent{})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}
