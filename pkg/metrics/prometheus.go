package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	published     *prometheus.CounterVec
	publishErrors *prometheus.CounterVec
	deltasDropped *prometheus.CounterVec
	factors       *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	midPrice      *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a Prometheus recorder registered on the default registerer.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg. Collectors that are
// already registered are reused.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		published: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_records_published_total",
				Help: "Records handed to the bus",
			},
			[]string{"topic"},
		)),
		publishErrors: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_publish_errors_total",
				Help: "Records the bus reported as failed",
			},
			[]string{"topic"},
		)),
		deltasDropped: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_l2_deltas_dropped_total",
				Help: "Delta insertions dropped because the price is not resident in the book",
			},
			[]string{"symbol"},
		)),
		factors: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_factor_snapshots_total",
				Help: "Factor snapshot candidates by outcome",
			},
			[]string{"symbol", "result"},
		)),
		errorsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedrelay_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		)),
		midPrice: register(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "feedrelay_mid_price",
				Help: "Last emitted mid price for a symbol",
			},
			[]string{"symbol"},
		)),
		latency: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedrelay_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"operation"},
		)),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (r *Recorder) RecordPublished(topic string) {
	r.published.WithLabelValues(topic).Inc()
}

func (r *Recorder) RecordPublishError(topic string) {
	r.publishErrors.WithLabelValues(topic).Inc()
}

func (r *Recorder) RecordDeltasDropped(symbol string, n int) {
	r.deltasDropped.WithLabelValues(symbol).Add(float64(n))
}

func (r *Recorder) RecordFactor(symbol string, emitted bool) {
	result := "throttled"
	if emitted {
		result = "emitted"
	}
	r.factors.WithLabelValues(symbol, result).Inc()
}

func (r *Recorder) RecordMidPrice(symbol string, price float64) {
	r.midPrice.WithLabelValues(symbol).Set(price)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
