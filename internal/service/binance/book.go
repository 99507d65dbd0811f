package binance

import (
	"errors"
	"fmt"

	"FeedRelay/internal/domain/models"
)

var errSequenceGap = errors.New("depth update sequence gap")

// localBook rebuilds one symbol's book from a REST snapshot plus diff events.
type localBook struct {
	bids         *models.BookSide
	asks         *models.BookSide
	lastUpdateID int64
	depth        int
}

func newLocalBook(depth int) *localBook {
	return &localBook{bids: models.NewBookSide(), asks: models.NewBookSide(), depth: depth}
}

func (b *localBook) reset(snap *depthSnapshot) error {
	bids, err := parseLevels(snap.Bids)
	if err != nil {
		return err
	}
	asks, err := parseLevels(snap.Asks)
	if err != nil {
		return err
	}
	b.bids = models.NewBookSide(bids...)
	b.asks = models.NewBookSide(asks...)
	b.lastUpdateID = snap.LastUpdateID
	b.truncate()
	return nil
}

// apply folds a diff into the book. It reports false for diffs already
// covered by the snapshot and errSequenceGap when updates were missed.
func (b *localBook) apply(u *depthUpdate) (*models.BookDelta, bool, error) {
	if u.FinalUpdateID <= b.lastUpdateID {
		return nil, false, nil
	}
	if u.FirstUpdateID > b.lastUpdateID+1 {
		return nil, false, fmt.Errorf("%w: have %d, next starts at %d", errSequenceGap, b.lastUpdateID, u.FirstUpdateID)
	}
	bids, err := parseLevels(u.Bids)
	if err != nil {
		return nil, false, err
	}
	asks, err := parseLevels(u.Asks)
	if err != nil {
		return nil, false, err
	}
	for _, l := range bids {
		b.bids.Set(l.Price, l.Amount)
	}
	for _, l := range asks {
		b.asks.Set(l.Price, l.Amount)
	}
	b.lastUpdateID = u.FinalUpdateID
	b.truncate()
	return &models.BookDelta{Bids: bids, Asks: asks}, true, nil
}

func (b *localBook) truncate() {
	if b.depth <= 0 {
		return
	}
	b.bids.KeepHighest(b.depth)
	b.asks.KeepLowest(b.depth)
}

// view returns an immutable copy of the book for downstream consumers.
func (b *localBook) view(symbol string) *models.OrderBookView {
	seq := b.lastUpdateID
	return &models.OrderBookView{
		Exchange:       Exchange,
		Symbol:         symbol,
		Bids:           b.bids.Copy(),
		Asks:           b.asks.Copy(),
		SequenceNumber: &seq,
	}
}
