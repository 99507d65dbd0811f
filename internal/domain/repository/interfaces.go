package repository

import (
	"context"

	"FeedRelay/internal/domain/models"
	"FeedRelay/pkg/async"
)

// MarketStream is a feed source that delivers structured market events.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Bus is the message bus. Publish must not block on network I/O; delivery is
// reported through the returned Result.
type Bus interface {
	Publish(topic, orderingKey string, data []byte) *async.Result
	Close() error
}

// Publisher routes canonical records to the bus by exchange and data type.
type Publisher interface {
	Publish(exchange, datatype string, rec models.Record) (*async.Result, error)
}

// FactorStore keeps the most recent factor snapshot per exchange and symbol.
type FactorStore interface {
	Put(f *models.FactorSnapshot)
	Get(exchange, symbol string) (*models.FactorSnapshot, bool)
	List() []*models.FactorSnapshot
}

type Metrics interface {
	RecordPublished(topic string)
	RecordPublishError(topic string)
	RecordDeltasDropped(symbol string, n int)
	RecordFactor(symbol string, emitted bool)
	RecordMidPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
