package usecase

import (
	"errors"
	"strings"
	"time"

	"FeedRelay/internal/domain/models"
)

// ErrMissingEventTime means the feed handed over a delta without an exchange
// timestamp.
var ErrMissingEventTime = errors.New("book delta has no event timestamp")

// NormalizeResult is the output of NormalizeBook.
type NormalizeResult struct {
	Updates []*models.LevelUpdate
	// Dropped counts delta insertions skipped because the price is not
	// resident in the book.
	Dropped int
}

// NormalizeBook turns a book view into canonical level updates.
//
// With a delta present only the delta is emitted, minus insertions at prices
// that are not resident in the book. Removals are always forwarded so a
// mirrored book downstream stays consistent. Without a delta the whole
// resident book is emitted as a snapshot.
func NormalizeBook(view *models.OrderBookView, receipt time.Time) (NormalizeResult, error) {
	if view.Delta != nil {
		return normalizeDelta(view, receipt)
	}
	return normalizeSnapshot(view, receipt), nil
}

func normalizeDelta(view *models.OrderBookView, receipt time.Time) (NormalizeResult, error) {
	if view.Timestamp == nil {
		return NormalizeResult{}, ErrMissingEventTime
	}
	var res NormalizeResult
	base := levelBase(view, models.LevelTypeDelta, models.TS(*view.Timestamp), receipt)

	emit := func(side models.Side, levels []models.PriceLevel) {
		resident := view.Side(side)
		for _, l := range levels {
			if l.Amount.IsPositive() && !resident.Has(l.Price) {
				res.Dropped++
				continue
			}
			u := base
			u.Side, u.Price, u.Amount = side, l.Price, l.Amount
			res.Updates = append(res.Updates, &u)
		}
	}
	emit(models.SideBid, view.Delta.Bids)
	emit(models.SideAsk, view.Delta.Asks)
	return res, nil
}

func normalizeSnapshot(view *models.OrderBookView, receipt time.Time) NormalizeResult {
	eventTs := models.TS(receipt)
	if view.Timestamp != nil {
		eventTs = models.TS(*view.Timestamp)
	}
	base := levelBase(view, models.LevelTypeSnapshot, eventTs, receipt)
	base.IsSnapshot = true

	res := NormalizeResult{Updates: make([]*models.LevelUpdate, 0, view.Bids.Len()+view.Asks.Len())}
	for _, side := range []models.Side{models.SideBid, models.SideAsk} {
		view.Side(side).Ascend(func(l models.PriceLevel) bool {
			u := base
			u.Side, u.Price, u.Amount = side, l.Price, l.Amount
			res.Updates = append(res.Updates, &u)
			return true
		})
	}
	return res
}

func levelBase(view *models.OrderBookView, typ string, eventTs models.Timestamp, receipt time.Time) models.LevelUpdate {
	return models.LevelUpdate{
		Type:      typ,
		Exchange:  strings.ToLower(view.Exchange),
		Symbol:    view.Symbol,
		Checksum:  view.Checksum,
		SeqID:     view.SequenceNumber,
		EventTs:   eventTs,
		ReceiptTs: models.TS(receipt),
	}
}
