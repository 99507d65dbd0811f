package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind tags the market event variants.
type EventKind string

const (
	KindBook   EventKind = "book"
	KindTicker EventKind = "ticker"
	KindTrade  EventKind = "trade"
)

// MarketEvent is one normalizable event delivered by a feed, stamped with the
// local receipt time.
type MarketEvent interface {
	Kind() EventKind
	Venue() string
	Instrument() string
	Received() time.Time
}

// BookUpdate carries a book view after a snapshot or incremental update.
type BookUpdate struct {
	Book        *OrderBookView
	ReceiptTime time.Time
}

func (e *BookUpdate) Kind() EventKind     { return KindBook }
func (e *BookUpdate) Venue() string       { return e.Book.Exchange }
func (e *BookUpdate) Instrument() string  { return e.Book.Symbol }
func (e *BookUpdate) Received() time.Time { return e.ReceiptTime }

// TickerUpdate is a top-of-book ticker. Raw keeps the exchange payload fields
// for values the feed did not map explicitly.
type TickerUpdate struct {
	Exchange    string
	Symbol      string
	Bid         *decimal.Decimal
	Ask         *decimal.Decimal
	Last        *decimal.Decimal
	Raw         map[string]any
	Timestamp   *time.Time
	ReceiptTime time.Time
}

func (e *TickerUpdate) Kind() EventKind     { return KindTicker }
func (e *TickerUpdate) Venue() string       { return e.Exchange }
func (e *TickerUpdate) Instrument() string  { return e.Symbol }
func (e *TickerUpdate) Received() time.Time { return e.ReceiptTime }

// TradeUpdate is a single public trade.
type TradeUpdate struct {
	Exchange    string
	Symbol      string
	Side        string
	Price       decimal.Decimal
	Amount      decimal.Decimal
	ID          string
	Timestamp   *time.Time
	ReceiptTime time.Time
}

func (e *TradeUpdate) Kind() EventKind     { return KindTrade }
func (e *TradeUpdate) Venue() string       { return e.Exchange }
func (e *TradeUpdate) Instrument() string  { return e.Symbol }
func (e *TradeUpdate) Received() time.Time { return e.ReceiptTime }
