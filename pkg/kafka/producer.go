package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"FeedRelay/pkg/async"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Producer wraps a Kafka writer and exposes non-blocking publishes whose
// outcome is delivered through an async.Result.
type Producer struct {
	writer *kafka.Writer
	comp   string
	async  bool
}

// NewProducer creates a new Kafka producer.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := &ProducerConfig{
		RequiredAcks: -1,
		Compression:  "gzip",
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		BatchSize:    2500,
		BatchBytes:   1048576,
		BatchTimeout: 100 * time.Millisecond,
		Async:        true,
		HashByKey:    true,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  parseCompression(cfg.Compression),
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.BatchTimeout,
		Async:        cfg.Async,
	}
	if cfg.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: cfg.ClientID}
	}

	p := &Producer{writer: writer, comp: cfg.Compression, async: cfg.Async}
	if cfg.Async {
		writer.Completion = p.complete
	}

	initProducerMetricsOnce()
	return p, nil
}

// PublishAsync enqueues one message and returns without waiting for the
// broker. key selects the partition, so messages sharing a key stay ordered.
func (p *Producer) PublishAsync(topic string, key, value []byte) *async.Result {
	res := async.New()
	msg := kafka.Message{
		Topic:      topic,
		Key:        key,
		Value:      value,
		Time:       time.Now(),
		WriterData: res,
	}

	if !p.async {
		go func() {
			err := p.writer.WriteMessages(context.Background(), msg)
			observeProducerMetrics(topic, p.comp, int64(len(value)), 1, time.Since(msg.Time), err)
			res.Complete("", err)
		}()
		return res
	}

	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		observeProducerMetrics(topic, p.comp, int64(len(value)), 1, 0, err)
		res.Complete("", err)
	}
	return res
}

// complete is the writer's completion hook in async mode.
func (p *Producer) complete(messages []kafka.Message, err error) {
	for _, m := range messages {
		observeProducerMetrics(m.Topic, p.comp, int64(len(m.Value)), 1, time.Since(m.Time), err)
		res, ok := m.WriterData.(*async.Result)
		if !ok {
			continue
		}
		id := ""
		if err == nil {
			id = strconv.Itoa(m.Partition) + ":" + strconv.FormatInt(m.Offset, 10)
		}
		res.Complete(id, err)
	}
}

// Close flushes pending messages and closes the producer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func parseCompression(s string) kafka.Compression {
	switch s {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return kafka.Compression(0)
	default:
		return kafka.Gzip
	}
}

var (
	producerMsgsTotal   *prometheus.CounterVec
	producerErrsTotal   *prometheus.CounterVec
	producerBytesTotal  *prometheus.CounterVec
	producerLatencyHist *prometheus.HistogramVec
	producerOnce        = make(chan struct{}, 1)
)

func initProducerMetricsOnce() {
	select {
	case producerOnce <- struct{}{}:
		producerMsgsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_kafka_producer_messages_total",
				Help: "Total messages published to Kafka",
			},
			[]string{"topic", "compression", "result"},
		)
		producerErrsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_kafka_producer_errors_total",
				Help: "Total producer errors",
			},
			[]string{"topic"},
		)
		producerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_kafka_producer_bytes_total",
				Help: "Total payload bytes published",
			},
			[]string{"topic", "compression"},
		)
		producerLatencyHist = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedrelay_kafka_producer_delivery_seconds",
				Help:    "Time from enqueue to broker acknowledgement",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		)
	default:
		// already initialized
	}
}

func observeProducerMetrics(topic, comp string, bytes int64, count int, dur time.Duration, err error) {
	if producerMsgsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		producerErrsTotal.WithLabelValues(topic).Inc()
	}
	producerMsgsTotal.WithLabelValues(topic, comp, result).Add(float64(count))
	producerBytesTotal.WithLabelValues(topic, comp).Add(float64(bytes))
	producerLatencyHist.WithLabelValues(topic).Observe(dur.Seconds())
}
