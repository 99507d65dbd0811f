package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"FeedRelay/internal/domain/models"
	domrepo "FeedRelay/internal/domain/repository"
	"FeedRelay/pkg/logger"
)

// Handler is the minimal event handler the pipeline needs.
type Handler interface {
	Handle(ctx context.Context, ev models.MarketEvent) error
}

// ErrInvalidEvent wraps events rejected before routing.
var ErrInvalidEvent = errors.New("invalid market event")

// EventPipeline sits between the feed and the router. It validates events,
// isolates handler panics and records per-event latency so one bad message
// never stops the feed loop.
type EventPipeline struct {
	next    Handler
	metrics domrepo.Metrics
	log     *logger.Logger
	// optional transform applied after validation
	transform func(models.MarketEvent) models.MarketEvent
}

type PipelineOption func(*EventPipeline)

// WithTransform sets a hook that may rewrite an event before routing.
func WithTransform(fn func(models.MarketEvent) models.MarketEvent) PipelineOption {
	return func(p *EventPipeline) { p.transform = fn }
}

// NewEventPipeline creates a new pipeline in front of next.
func NewEventPipeline(next Handler, metrics domrepo.Metrics, log *logger.Logger, opts ...PipelineOption) *EventPipeline {
	p := &EventPipeline{next: next, metrics: metrics, log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates and forwards ev. Panics in the handler are recovered and
// reported as errors.
func (p *EventPipeline) Process(ctx context.Context, ev models.MarketEvent) (err error) {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		p.log.Warn("dropping invalid event", logger.Error(err))
		return err
	}
	if p.transform != nil {
		ev = p.transform(ev)
		if err := validateEvent(ev); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	p.log.Debug("event received",
		logger.String("kind", string(ev.Kind())),
		logger.String("exchange", ev.Venue()),
		logger.String("symbol", ev.Instrument()),
		logger.String("receipt_ts", models.TS(ev.Received()).String()),
	)

	defer func() {
		if r := recover(); r != nil {
			p.metrics.RecordError("pipeline_panic")
			p.log.Error("handler panic",
				logger.Any("panic", r),
				logger.String("kind", string(ev.Kind())),
				logger.String("symbol", ev.Instrument()),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if err := p.next.Handle(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_handle")
		p.log.Error("event handling failed",
			logger.String("kind", string(ev.Kind())),
			logger.String("exchange", ev.Venue()),
			logger.String("symbol", ev.Instrument()),
			logger.Error(err),
		)
		return err
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateEvent(ev models.MarketEvent) error {
	if ev == nil {
		return fmt.Errorf("%w: nil", ErrInvalidEvent)
	}
	if b, ok := ev.(*models.BookUpdate); ok && (b == nil || b.Book == nil) {
		return fmt.Errorf("%w: book update without book", ErrInvalidEvent)
	}
	if ev.Venue() == "" {
		return fmt.Errorf("%w: exchange empty", ErrInvalidEvent)
	}
	if ev.Instrument() == "" {
		return fmt.Errorf("%w: symbol empty", ErrInvalidEvent)
	}
	if ev.Received().IsZero() {
		return fmt.Errorf("%w: receipt time missing", ErrInvalidEvent)
	}
	return nil
}
