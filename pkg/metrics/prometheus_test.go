package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordPublished("crypto.binance.l2")
	r.RecordPublished("crypto.binance.l2")
	r.RecordDeltasDropped("BTC-USDT", 3)
	r.RecordFactor("BTC-USDT", true)
	r.RecordFactor("BTC-USDT", false)
	r.RecordMidPrice("BTC-USDT", 101.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.published.WithLabelValues("crypto.binance.l2")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.deltasDropped.WithLabelValues("BTC-USDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.factors.WithLabelValues("BTC-USDT", "emitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.factors.WithLabelValues("BTC-USDT", "throttled")))
	assert.Equal(t, 101.5, testutil.ToFloat64(r.midPrice.WithLabelValues("BTC-USDT")))
}

func TestRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewWithRegisterer(reg)
	b := NewWithRegisterer(reg)

	a.RecordError("route")
	b.RecordError("route")
	assert.Equal(t, 2.0, testutil.ToFloat64(b.errorsTotal.WithLabelValues("route")))
}
