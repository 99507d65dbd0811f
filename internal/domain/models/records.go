package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Downstream consumers expect JSON numbers, not quoted decimals.
	decimal.MarshalJSONWithoutQuotes = true
}

// TimestampLayout is the ISO-8601 UTC shape written on every record.
const TimestampLayout = "2006-01-02T15:04:05.000000-07:00"

// Timestamp marshals as an ISO-8601 UTC string.
type Timestamp time.Time

// TS converts t to a UTC Timestamp.
func TS(t time.Time) Timestamp { return Timestamp(t.UTC()) }

func (t Timestamp) Time() time.Time { return time.Time(t) }

func (t Timestamp) String() string { return time.Time(t).UTC().Format(TimestampLayout) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := time.Parse(TimestampLayout, s)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
	}
	*t = TS(parsed)
	return nil
}

// Record is a canonical payload ready for the publish gateway.
type Record interface {
	// OrderingKey is the instrument symbol; the bus keeps per-key order.
	OrderingKey() string
	// StampIngest records the publish-time wall clock.
	StampIngest(t time.Time)
}

// Level update types.
const (
	LevelTypeSnapshot = "snapshot"
	LevelTypeDelta    = "delta"
)

// LevelUpdate is one price level of one side of a book, from a snapshot or a
// delta. A zero amount on a delta removes the level.
type LevelUpdate struct {
	Type       string          `json:"type"`
	Exchange   string          `json:"exchange"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Checksum   *string         `json:"checksum"`
	SeqID      *int64          `json:"seq_id"`
	IsSnapshot bool            `json:"is_snapshot"`
	EventTs    Timestamp       `json:"event_ts"`
	ReceiptTs  Timestamp       `json:"receipt_ts"`
	IngestTs   *Timestamp      `json:"ingest_ts"`
}

func (r *LevelUpdate) OrderingKey() string     { return r.Symbol }
func (r *LevelUpdate) StampIngest(t time.Time) { ts := TS(t); r.IngestTs = &ts }

// FactorSnapshot is the throttled top-of-book summary.
type FactorSnapshot struct {
	Exchange   string          `json:"exchange"`
	Symbol     string          `json:"symbol"`
	MidPrice   decimal.Decimal `json:"mid_price"`
	Spread     decimal.Decimal `json:"spread"`
	Imbalance5 decimal.Decimal `json:"imbalance_5"`
	BestBid    decimal.Decimal `json:"best_bid"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	Checksum   *string         `json:"checksum"`
	EventTs    Timestamp       `json:"event_ts"`
	ReceiptTs  Timestamp       `json:"receipt_ts"`
	IngestTs   *Timestamp      `json:"ingest_ts"`
}

func (r *FactorSnapshot) OrderingKey() string     { return r.Symbol }
func (r *FactorSnapshot) StampIngest(t time.Time) { ts := TS(t); r.IngestTs = &ts }

// TickerRecord is the canonical ticker. Missing prices marshal as null.
type TickerRecord struct {
	Exchange  string           `json:"exchange"`
	Symbol    string           `json:"symbol"`
	Bid       *decimal.Decimal `json:"bid"`
	Ask       *decimal.Decimal `json:"ask"`
	Last      *decimal.Decimal `json:"last"`
	EventTs   Timestamp        `json:"event_ts"`
	ReceiptTs Timestamp        `json:"receipt_ts"`
	IngestTs  *Timestamp       `json:"ingest_ts"`
}

func (r *TickerRecord) OrderingKey() string     { return r.Symbol }
func (r *TickerRecord) StampIngest(t time.Time) { ts := TS(t); r.IngestTs = &ts }

// TradeRecord is the canonical trade.
type TradeRecord struct {
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	EventTs   Timestamp       `json:"event_ts"`
	ReceiptTs Timestamp       `json:"receipt_ts"`
	IngestTs  *Timestamp      `json:"ingest_ts"`
}

func (r *TradeRecord) OrderingKey() string     { return r.Symbol }
func (r *TradeRecord) StampIngest(t time.Time) { ts := TS(t); r.IngestTs = &ts }
