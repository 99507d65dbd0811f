package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// Side labels one half of an order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// PriceLevel is a single resting price and amount.
type PriceLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// Level is a shorthand constructor used by feeds and tests.
func Level(price, amount float64) PriceLevel {
	return PriceLevel{Price: decimal.NewFromFloat(price), Amount: decimal.NewFromFloat(amount)}
}

// BookSide is an ordered price -> amount map. Iteration is always ascending by
// price, so the best bid is the last entry and the best ask is the first.
type BookSide struct {
	tree *btree.BTreeG[PriceLevel]
}

func byPrice(a, b PriceLevel) bool { return a.Price.LessThan(b.Price) }

// NewBookSide builds a side from levels. Zero amounts are skipped.
func NewBookSide(levels ...PriceLevel) *BookSide {
	s := &BookSide{tree: btree.NewBTreeG(byPrice)}
	for _, l := range levels {
		s.Set(l.Price, l.Amount)
	}
	return s
}

// Set stores amount at price; a zero amount removes the level.
func (s *BookSide) Set(price, amount decimal.Decimal) {
	if amount.IsZero() {
		s.tree.Delete(PriceLevel{Price: price})
		return
	}
	s.tree.Set(PriceLevel{Price: price, Amount: amount})
}

// Get returns the resting amount at price.
func (s *BookSide) Get(price decimal.Decimal) (decimal.Decimal, bool) {
	if s == nil {
		return decimal.Zero, false
	}
	l, ok := s.tree.Get(PriceLevel{Price: price})
	return l.Amount, ok
}

// Has reports whether price is resident on this side.
func (s *BookSide) Has(price decimal.Decimal) bool {
	_, ok := s.Get(price)
	return ok
}

func (s *BookSide) Len() int {
	if s == nil {
		return 0
	}
	return s.tree.Len()
}

// Ascend walks levels from the lowest price up until fn returns false.
func (s *BookSide) Ascend(fn func(PriceLevel) bool) {
	if s == nil {
		return
	}
	s.tree.Scan(fn)
}

// Descend walks levels from the highest price down until fn returns false.
func (s *BookSide) Descend(fn func(PriceLevel) bool) {
	if s == nil {
		return
	}
	s.tree.Reverse(fn)
}

// First returns the lowest-priced level.
func (s *BookSide) First() (PriceLevel, bool) {
	if s == nil {
		return PriceLevel{}, false
	}
	return s.tree.Min()
}

// Last returns the highest-priced level.
func (s *BookSide) Last() (PriceLevel, bool) {
	if s == nil {
		return PriceLevel{}, false
	}
	return s.tree.Max()
}

// KeepHighest drops the lowest levels until at most n remain (bid truncation).
func (s *BookSide) KeepHighest(n int) {
	for s.tree.Len() > n {
		s.tree.PopMin()
	}
}

// KeepLowest drops the highest levels until at most n remain (ask truncation).
func (s *BookSide) KeepLowest(n int) {
	for s.tree.Len() > n {
		s.tree.PopMax()
	}
}

// Copy returns an independent copy of the side.
func (s *BookSide) Copy() *BookSide {
	if s == nil {
		return NewBookSide()
	}
	return &BookSide{tree: s.tree.Copy()}
}

// Levels returns all levels in ascending price order.
func (s *BookSide) Levels() []PriceLevel {
	out := make([]PriceLevel, 0, s.Len())
	s.Ascend(func(l PriceLevel) bool {
		out = append(out, l)
		return true
	})
	return out
}

// BookDelta holds the incremental change since the last published state, per
// side, in the order the exchange reported it.
type BookDelta struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// OrderBookView is a consistent read-only view of a locally reconstructed book
// as handed over by the feed layer.
type OrderBookView struct {
	Exchange       string
	Symbol         string
	Bids           *BookSide
	Asks           *BookSide
	Timestamp      *time.Time
	SequenceNumber *int64
	Checksum       *string
	Delta          *BookDelta
}

// Side returns the bid or ask half of the view.
func (v *OrderBookView) Side(side Side) *BookSide {
	if side == SideBid {
		return v.Bids
	}
	return v.Asks
}
