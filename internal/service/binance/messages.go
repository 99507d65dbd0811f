package binance

import (
	"encoding/json"
	"fmt"
	"time"

	"FeedRelay/internal/domain/models"

	"github.com/shopspring/decimal"
)

const (
	eventDepth  = "depthUpdate"
	eventTicker = "24hrTicker"
	eventTrade  = "trade"
)

type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// eventHeader peeks at the event type. Binance reuses letters in both cases
// for different fields, and encoding/json matches keys case-insensitively, so
// every struct below declares both spellings.
type eventHeader struct {
	Type      string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
}

type depthUpdate struct {
	Type          string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

type tradeMessage struct {
	Type         string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
	Ignore       bool   `json:"M"`
}

type depthSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func parseLevels(raw [][]string) ([]models.PriceLevel, error) {
	out := make([]models.PriceLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("malformed level %v", pair)
		}
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, fmt.Errorf("level price %q: %w", pair[0], err)
		}
		amount, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, fmt.Errorf("level amount %q: %w", pair[1], err)
		}
		out = append(out, models.PriceLevel{Price: price, Amount: amount})
	}
	return out, nil
}

func millis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func decimalField(raw map[string]any, key string) *decimal.Decimal {
	s, ok := raw[key].(string)
	if !ok || s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func int64Field(raw map[string]any, key string) int64 {
	n, ok := raw[key].(json.Number)
	if !ok {
		return 0
	}
	v, _ := n.Int64()
	return v
}
