package repository

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"FeedRelay/internal/domain/models"
	"FeedRelay/pkg/async"
	"FeedRelay/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	topic string
	key   string
	data  []byte
}

type fakeBus struct {
	mu   sync.Mutex
	sent []sentMessage
	res  func() *async.Result
}

func (b *fakeBus) Publish(topic, key string, data []byte) *async.Result {
	b.mu.Lock()
	b.sent = append(b.sent, sentMessage{topic: topic, key: key, data: data})
	b.mu.Unlock()
	if b.res != nil {
		return b.res()
	}
	return async.Completed("ok", nil)
}

func (b *fakeBus) Close() error { return nil }

type fakeMetrics struct {
	mu            sync.Mutex
	published     map[string]int
	publishErrors map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{published: map[string]int{}, publishErrors: map[string]int{}}
}

func (m *fakeMetrics) RecordPublished(topic string) {
	m.mu.Lock()
	m.published[topic]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordPublishError(topic string) {
	m.mu.Lock()
	m.publishErrors[topic]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordDeltasDropped(string, int) {}
func (m *fakeMetrics) RecordFactor(string, bool)       {}
func (m *fakeMetrics) RecordMidPrice(string, float64)  {}
func (m *fakeMetrics) RecordError(string)              {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}

var ingest = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func newGateway(bus *fakeBus, m *fakeMetrics) *PublishGateway {
	return NewPublishGateway(bus, m, logger.Nop(),
		WithGatewayClock(func() time.Time { return ingest }),
	)
}

func tradeRecord() *models.TradeRecord {
	return &models.TradeRecord{
		Exchange: "binance",
		Symbol:   "BTC-USDT",
		Side:     "buy",
		Price:    decimal.RequireFromString("64000.5"),
		Amount:   decimal.RequireFromString("0.25"),
		EventTs:  models.TS(ingest.Add(-time.Second)),
	}
}

func TestPublishRoutesByExchangeAndDatatype(t *testing.T) {
	bus := &fakeBus{}
	m := newFakeMetrics()
	g := newGateway(bus, m)

	res, err := g.Publish("binance", models.DatatypeTrades, tradeRecord())
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, bus.sent, 1)
	sent := bus.sent[0]
	assert.Equal(t, "crypto.binance.trades", sent.topic)
	assert.Equal(t, "BTC-USDT", sent.key)
	assert.Equal(t, 1, m.published["crypto.binance.trades"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(sent.data, &payload))
	assert.Equal(t, "2024-05-01T08:00:00.000000+00:00", payload["ingest_ts"])
	assert.Equal(t, 64000.5, payload["price"])
	assert.Equal(t, "buy", payload["side"])
}

func TestPublishUnknownExchangeFailsWithoutBus(t *testing.T) {
	bus := &fakeBus{}
	g := newGateway(bus, newFakeMetrics())

	res, err := g.Publish("unknown_exchange", models.DatatypeTrades, tradeRecord())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidExchange)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "unknown_exchange", cfgErr.Value)
	assert.Empty(t, bus.sent)
}

func TestPublishUnknownDatatypeFailsWithoutBus(t *testing.T) {
	bus := &fakeBus{}
	g := newGateway(bus, newFakeMetrics())

	_, err := g.Publish("okx", "candles", tradeRecord())
	assert.ErrorIs(t, err, ErrInvalidDatatype)
	assert.Empty(t, bus.sent)
}

func TestPublishFailureIsCountedNotReturned(t *testing.T) {
	pending := async.New()
	bus := &fakeBus{res: func() *async.Result { return pending }}
	m := newFakeMetrics()
	g := newGateway(bus, m)

	res, err := g.Publish("binance", models.DatatypeTrades, tradeRecord())
	require.NoError(t, err)
	assert.Equal(t, 0, m.publishErrors["crypto.binance.trades"])

	pending.Complete("", errors.New("broker unavailable"))
	<-res.Done()
	assert.Equal(t, 1, m.publishErrors["crypto.binance.trades"])
}

func TestGatewayOptions(t *testing.T) {
	g := NewPublishGateway(&fakeBus{}, newFakeMetrics(), logger.Nop(),
		WithTopicPrefix("md"),
		WithExchanges([]string{" Binance ", "Bybit"}),
		WithDatatypes([]string{"l2"}),
	)
	assert.Equal(t, "md.bybit.l2", g.Topic("bybit", "l2"))
	assert.NoError(t, g.Validate("bybit", "l2"))
	assert.ErrorIs(t, g.Validate("okx", "l2"), ErrInvalidExchange)
	assert.ErrorIs(t, g.Validate("binance", "ticker"), ErrInvalidDatatype)
}
