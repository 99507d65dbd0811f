package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"FeedRelay/internal/domain/models"
	drepo "FeedRelay/internal/domain/repository"
	"FeedRelay/pkg/async"
	"FeedRelay/pkg/logger"
)

var (
	ErrInvalidExchange = errors.New("invalid exchange")
	ErrInvalidDatatype = errors.New("invalid datatype")
)

// DefaultTopicPrefix is the namespace of every topic.
const DefaultTopicPrefix = "crypto"

// DefaultExchanges is the allow-list used when none is configured.
var DefaultExchanges = []string{"binance", "okx"}

// ConfigError reports a routing key outside its allow-list. It is a
// programming or configuration defect, never retried.
type ConfigError struct {
	Value   string
	Allowed []string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %q, must be one of [%s]", e.Err, e.Value, strings.Join(e.Allowed, ", "))
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PublishGateway validates routing keys, stamps ingest time, serializes
// records and hands them to the bus keyed by symbol.
type PublishGateway struct {
	bus       drepo.Bus
	metrics   drepo.Metrics
	log       *logger.Logger
	prefix    string
	exchanges []string
	datatypes []string
	now       func() time.Time
}

// GatewayOption configures PublishGateway.
type GatewayOption func(*PublishGateway)

// WithTopicPrefix sets the topic namespace.
func WithTopicPrefix(prefix string) GatewayOption {
	return func(g *PublishGateway) {
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// WithExchanges sets the exchange allow-list.
func WithExchanges(exchanges []string) GatewayOption {
	return func(g *PublishGateway) {
		if len(exchanges) > 0 {
			g.exchanges = lowerAll(exchanges)
		}
	}
}

// WithDatatypes sets the datatype allow-list.
func WithDatatypes(datatypes []string) GatewayOption {
	return func(g *PublishGateway) {
		if len(datatypes) > 0 {
			g.datatypes = lowerAll(datatypes)
		}
	}
}

// WithGatewayClock replaces the wall clock used for ingest_ts.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *PublishGateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewPublishGateway creates a gateway in front of bus.
func NewPublishGateway(bus drepo.Bus, metrics drepo.Metrics, log *logger.Logger, opts ...GatewayOption) *PublishGateway {
	g := &PublishGateway{
		bus:       bus,
		metrics:   metrics,
		log:       log,
		prefix:    DefaultTopicPrefix,
		exchanges: DefaultExchanges,
		datatypes: models.Datatypes,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Topic returns "<prefix>.<exchange>.<datatype>".
func (g *PublishGateway) Topic(exchange, datatype string) string {
	return g.prefix + "." + exchange + "." + datatype
}

// Validate checks exchange and datatype against the allow-lists.
func (g *PublishGateway) Validate(exchange, datatype string) error {
	if !slices.Contains(g.exchanges, exchange) {
		return &ConfigError{Value: exchange, Allowed: g.exchanges, Err: ErrInvalidExchange}
	}
	if !slices.Contains(g.datatypes, datatype) {
		return &ConfigError{Value: datatype, Allowed: g.datatypes, Err: ErrInvalidDatatype}
	}
	return nil
}

// Publish hands rec to the bus and returns immediately. Invalid routing keys
// fail synchronously before the bus is touched. Delivery failures are logged
// from the result's completion callback and never retried.
func (g *PublishGateway) Publish(exchange, datatype string, rec models.Record) (*async.Result, error) {
	if err := g.Validate(exchange, datatype); err != nil {
		return nil, err
	}
	topic := g.Topic(exchange, datatype)

	rec.StampIngest(g.now())
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", datatype, err)
	}

	key := rec.OrderingKey()
	res := g.bus.Publish(topic, key, data)
	g.metrics.RecordPublished(topic)
	res.OnDone(func(_ string, err error) {
		if err == nil {
			return
		}
		g.metrics.RecordPublishError(topic)
		g.log.Error("publishing failed",
			logger.String("topic", topic),
			logger.String("key", key),
			logger.Int("bytes", len(data)),
			logger.Error(err),
		)
	})
	return res, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
