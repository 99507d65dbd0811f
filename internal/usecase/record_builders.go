package usecase

import (
	"fmt"
	"strings"
	"time"

	"FeedRelay/internal/domain/models"

	"github.com/shopspring/decimal"
)

// priceAccessor yields an optional price from a ticker.
type priceAccessor func(*models.TickerUpdate) *decimal.Decimal

// lastPriceChain is evaluated in order; the first present value wins.
var lastPriceChain = []priceAccessor{
	func(t *models.TickerUpdate) *decimal.Decimal { return t.Last },
	rawPrice("last"),
	rawPrice("lastPrice"),
	rawPrice("c"),
}

// BuildTicker maps a ticker event to its canonical record.
func BuildTicker(t *models.TickerUpdate, receipt time.Time) *models.TickerRecord {
	return &models.TickerRecord{
		Exchange:  strings.ToLower(t.Exchange),
		Symbol:    t.Symbol,
		Bid:       t.Bid,
		Ask:       t.Ask,
		Last:      firstPrice(t, lastPriceChain),
		EventTs:   eventTime(t.Timestamp, receipt),
		ReceiptTs: models.TS(receipt),
	}
}

// BuildTrade maps a trade event to its canonical record.
func BuildTrade(t *models.TradeUpdate, receipt time.Time) *models.TradeRecord {
	return &models.TradeRecord{
		Exchange:  strings.ToLower(t.Exchange),
		Symbol:    t.Symbol,
		Side:      strings.ToLower(t.Side),
		Price:     t.Price,
		Amount:    t.Amount,
		EventTs:   eventTime(t.Timestamp, receipt),
		ReceiptTs: models.TS(receipt),
	}
}

func firstPrice(t *models.TickerUpdate, chain []priceAccessor) *decimal.Decimal {
	for _, get := range chain {
		if v := get(t); v != nil {
			return v
		}
	}
	return nil
}

// rawPrice reads key from the raw exchange payload. Strings and JSON numbers
// are accepted; anything unparseable counts as absent.
func rawPrice(key string) priceAccessor {
	return func(t *models.TickerUpdate) *decimal.Decimal {
		if t.Raw == nil {
			return nil
		}
		v, ok := t.Raw[key]
		if !ok || v == nil {
			return nil
		}
		var (
			d   decimal.Decimal
			err error
		)
		switch x := v.(type) {
		case string:
			d, err = decimal.NewFromString(x)
		case float64:
			d = decimal.NewFromFloat(x)
		case decimal.Decimal:
			d = x
		case fmt.Stringer:
			d, err = decimal.NewFromString(x.String())
		default:
			return nil
		}
		if err != nil {
			return nil
		}
		return &d
	}
}

func eventTime(ts *time.Time, receipt time.Time) models.Timestamp {
	if ts != nil {
		return models.TS(*ts)
	}
	return models.TS(receipt)
}
