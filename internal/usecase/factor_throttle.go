package usecase

import (
	"strings"
	"sync"
	"time"

	"FeedRelay/internal/domain/models"

	"github.com/shopspring/decimal"
)

const (
	// DefaultFactorWindow is the minimum spacing between two factor snapshots
	// of the same symbol.
	DefaultFactorWindow = time.Second
	imbalanceDepth      = 5
)

var two = decimal.NewFromInt(2)

// FactorThrottle emits at most one factor snapshot per symbol per window,
// measured on the processing clock rather than exchange time.
type FactorThrottle struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   map[string]time.Time
}

// ThrottleOption configures FactorThrottle.
type ThrottleOption func(*FactorThrottle)

// WithWindow sets the throttle window.
func WithWindow(d time.Duration) ThrottleOption {
	return func(t *FactorThrottle) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) ThrottleOption {
	return func(t *FactorThrottle) {
		if now != nil {
			t.now = now
		}
	}
}

// NewFactorThrottle creates a throttle with a 1s window on time.Now.
func NewFactorThrottle(opts ...ThrottleOption) *FactorThrottle {
	t := &FactorThrottle{
		window: DefaultFactorWindow,
		now:    time.Now,
		last:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Window returns the configured window.
func (t *FactorThrottle) Window() time.Duration { return t.window }

// MaybeEmit returns a factor snapshot when the book has both sides and the
// symbol's window has elapsed. The first snapshot per symbol always passes.
func (t *FactorThrottle) MaybeEmit(view *models.OrderBookView, receipt time.Time) (*models.FactorSnapshot, bool) {
	if view.Bids.Len() == 0 || view.Asks.Len() == 0 {
		return nil, false
	}
	key := throttleKey(view)
	now := t.now()

	t.mu.Lock()
	last, seen := t.last[key]
	if seen && now.Sub(last) < t.window {
		t.mu.Unlock()
		return nil, false
	}
	t.last[key] = now
	t.mu.Unlock()

	return ComputeFactor(view, receipt)
}

// Reset forgets every symbol's last emission.
func (t *FactorThrottle) Reset() {
	t.mu.Lock()
	t.last = make(map[string]time.Time)
	t.mu.Unlock()
}

func throttleKey(view *models.OrderBookView) string {
	return strings.ToLower(view.Exchange) + ":" + view.Symbol
}

// ComputeFactor derives mid price, spread and 5-level volume imbalance from
// the book without any throttling. It returns false if either side is empty.
func ComputeFactor(view *models.OrderBookView, receipt time.Time) (*models.FactorSnapshot, bool) {
	bestBid, ok := view.Bids.Last()
	if !ok {
		return nil, false
	}
	bestAsk, ok := view.Asks.First()
	if !ok {
		return nil, false
	}

	bidVol := depthVolume(view.Bids.Descend)
	askVol := depthVolume(view.Asks.Ascend)

	eventTs := models.TS(receipt)
	if view.Timestamp != nil {
		eventTs = models.TS(*view.Timestamp)
	}
	return &models.FactorSnapshot{
		Exchange:   strings.ToLower(view.Exchange),
		Symbol:     view.Symbol,
		MidPrice:   bestBid.Price.Add(bestAsk.Price).Div(two),
		Spread:     bestAsk.Price.Sub(bestBid.Price),
		Imbalance5: Imbalance(bidVol, askVol),
		BestBid:    bestBid.Price,
		BestAsk:    bestAsk.Price,
		Checksum:   view.Checksum,
		EventTs:    eventTs,
		ReceiptTs:  models.TS(receipt),
	}, true
}

// Imbalance is (bid-ask)/(bid+ask), or zero when both volumes are zero.
func Imbalance(bidVol, askVol decimal.Decimal) decimal.Decimal {
	total := bidVol.Add(askVol)
	if !total.IsPositive() {
		return decimal.Zero
	}
	return bidVol.Sub(askVol).Div(total)
}

// depthVolume sums the amounts of the first imbalanceDepth levels walked from
// the best price outward.
func depthVolume(walk func(func(models.PriceLevel) bool)) decimal.Decimal {
	sum := decimal.Zero
	n := 0
	walk(func(l models.PriceLevel) bool {
		sum = sum.Add(l.Amount)
		n++
		return n < imbalanceDepth
	})
	return sum
}
