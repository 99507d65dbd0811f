package usecase

import (
	"context"
	"errors"

	"FeedRelay/internal/domain/models"
	drepo "FeedRelay/internal/domain/repository"
	mid "FeedRelay/internal/middleware"
	"FeedRelay/pkg/logger"
)

var errStreamClosed = errors.New("feed stream closed")

// FeedCollector drains a market stream one event at a time into the event
// pipeline, reconnecting when the stream fails.
type FeedCollector struct {
	stream  drepo.MarketStream
	pipe    *mid.EventPipeline
	metrics drepo.Metrics
	log     *logger.Logger
	done    chan struct{}
}

// NewFeedCollector creates a new FeedCollector instance.
func NewFeedCollector(stream drepo.MarketStream, pipe *mid.EventPipeline, metrics drepo.Metrics, log *logger.Logger) *FeedCollector {
	return &FeedCollector{stream: stream, pipe: pipe, metrics: metrics, log: log, done: make(chan struct{})}
}

// IsConnected returns true if the market stream is connected.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects and subscribes, then consumes in the background until ctx
// is cancelled.
func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	go c.run(ctx)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *FeedCollector) Done() <-chan struct{} { return c.done }

func (c *FeedCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		evCh, errCh := c.stream.Read(ctx)
		err := c.consume(ctx, evCh, errCh)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.log.Warn("feed stream interrupted, reconnecting", logger.Error(err))
		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.log.Error("feed reconnect failed", logger.Error(rerr))
		}
	}
}

func (c *FeedCollector) consume(ctx context.Context, evCh <-chan models.MarketEvent, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return err
			}
		case ev, ok := <-evCh:
			if !ok {
				return errStreamClosed
			}
			if ev == nil {
				continue
			}
			// errors are logged and counted by the pipeline
			_ = c.pipe.Process(ctx, ev)
		}
	}
}

// Shutdown closes the stream.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
