package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"FeedRelay/internal/domain/models"
	drepo "FeedRelay/internal/domain/repository"
	"FeedRelay/pkg/logger"
)

// ErrUnknownEvent is returned for event types the router does not handle.
var ErrUnknownEvent = errors.New("unknown market event")

// EventRouter turns one market event into canonical records and hands them to
// the publisher. It is driven by a single sequential event stream.
type EventRouter struct {
	pub      drepo.Publisher
	throttle *FactorThrottle
	factors  drepo.FactorStore
	metrics  drepo.Metrics
	log      *logger.Logger
}

// NewEventRouter creates a router. factors may be nil.
func NewEventRouter(
	pub drepo.Publisher,
	throttle *FactorThrottle,
	factors drepo.FactorStore,
	metrics drepo.Metrics,
	log *logger.Logger,
) *EventRouter {
	if throttle == nil {
		throttle = NewFactorThrottle()
	}
	return &EventRouter{pub: pub, throttle: throttle, factors: factors, metrics: metrics, log: log}
}

// Throttle exposes the factor throttle, mainly so tests can reset it.
func (r *EventRouter) Throttle() *FactorThrottle { return r.throttle }

// Handle routes one event. Configuration errors from the publisher are
// returned; publish delivery failures are only logged by the publisher.
func (r *EventRouter) Handle(ctx context.Context, ev models.MarketEvent) error {
	start := time.Now()
	var err error
	switch e := ev.(type) {
	case *models.BookUpdate:
		err = r.handleBook(e)
	case *models.TickerUpdate:
		err = r.publish(e.Exchange, models.DatatypeTicker, BuildTicker(e, e.ReceiptTime))
	case *models.TradeUpdate:
		err = r.publish(e.Exchange, models.DatatypeTrades, BuildTrade(e, e.ReceiptTime))
	default:
		err = fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	if err != nil {
		r.metrics.RecordError("route")
		return err
	}
	r.metrics.RecordLatency("route_"+string(ev.Kind()), time.Since(start).Seconds())
	return nil
}

func (r *EventRouter) handleBook(e *models.BookUpdate) error {
	book := e.Book
	res, err := NormalizeBook(book, e.ReceiptTime)
	if err != nil {
		if errors.Is(err, ErrMissingEventTime) {
			// Upstream defect; skip the levels but still consider a factor.
			r.metrics.RecordError("missing_event_ts")
			r.log.Warn("book delta without event timestamp",
				logger.String("exchange", book.Exchange),
				logger.String("symbol", book.Symbol),
			)
		} else {
			return fmt.Errorf("normalize book: %w", err)
		}
	}
	if res.Dropped > 0 {
		r.metrics.RecordDeltasDropped(book.Symbol, res.Dropped)
	}
	for _, u := range res.Updates {
		if err := r.publish(book.Exchange, models.DatatypeL2, u); err != nil {
			return err
		}
	}

	f, ok := r.throttle.MaybeEmit(book, e.ReceiptTime)
	if book.Bids.Len() > 0 && book.Asks.Len() > 0 {
		r.metrics.RecordFactor(book.Symbol, ok)
	}
	if !ok {
		return nil
	}
	if r.factors != nil {
		r.factors.Put(f)
	}
	mid, _ := f.MidPrice.Float64()
	r.metrics.RecordMidPrice(book.Symbol, mid)
	return r.publish(book.Exchange, models.DatatypeFactors, f)
}

func (r *EventRouter) publish(exchange, datatype string, rec models.Record) error {
	if _, err := r.pub.Publish(strings.ToLower(exchange), datatype, rec); err != nil {
		return fmt.Errorf("publish %s: %w", datatype, err)
	}
	return nil
}
