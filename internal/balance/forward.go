package balance

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/runbal/internal/model"
)

// IntegrateForward builds the forward segment of a consumer's timeline: the
// anchor row followed by every transaction dated on or after the anchor, in
// ascending date order (same-date rows keep input order), each carrying the
// balance after it was applied.
//
// txns must all belong to the anchor's consumer.
func IntegrateForward(a model.Anchor, txns []model.SignedTransaction) []model.BalanceEvent {
	after := make([]model.SignedTransaction, 0, len(txns))
	for _, t := range txns {
		if !t.PostedDate.Before(a.StartDate) {
			after = append(after, t)
		}
	}
	slices.SortFunc(after, func(x, y model.SignedTransaction) int {
		if c := x.PostedDate.Compare(y.PostedDate); c != 0 {
			return c
		}
		return cmp.Compare(x.Seq, y.Seq)
	})

	events := make([]model.BalanceEvent, 0, len(after)+1)
	events = append(events, a.Event())

	running := a.StartBalance
	for _, t := range after {
		running = running.Add(t.SignedAmount)
		events = append(events, eventFor(t, running))
	}
	return events
}

func eventFor(t model.SignedTransaction, running decimal.Decimal) model.BalanceEvent {
	return model.BalanceEvent{
		ConsumerID:     t.ConsumerID,
		PostedDate:     t.PostedDate,
		SignedAmount:   t.SignedAmount,
		RunningBalance: running,
		Category:       t.Category,
		Direction:      t.Direction,
	}
}
