package balance

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/runbal/internal/model"
)

// IntegrateBackward builds the backward segment of a consumer's timeline:
// every transaction dated strictly before the anchor, followed by the anchor
// row, in ascending date order.
//
// Balances are accumulated walking away from the anchor: transactions are
// visited most recent first (same-date rows in input order) and each row's
// balance is the anchor balance plus the running sum of signed amounts from
// the anchor back to and including that row. Read in that descending order,
// consecutive rows satisfy rb[i] = rb[i+1] - sa[i+1]. The segment is returned
// as the exact reverse of the visiting order so the recurrence also holds
// between same-date rows.
func IntegrateBackward(a model.Anchor, txns []model.SignedTransaction) []model.BalanceEvent {
	before := make([]model.SignedTransaction, 0, len(txns))
	for _, t := range txns {
		if t.PostedDate.Before(a.StartDate) {
			before = append(before, t)
		}
	}
	slices.SortFunc(before, func(x, y model.SignedTransaction) int {
		if c := y.PostedDate.Compare(x.PostedDate); c != 0 {
			return c
		}
		return cmp.Compare(x.Seq, y.Seq)
	})

	events := make([]model.BalanceEvent, len(before), len(before)+1)
	cum := decimal.Zero
	for i, t := range before {
		cum = cum.Add(t.SignedAmount)
		events[len(before)-1-i] = eventFor(t, a.StartBalance.Add(cum))
	}
	return append(events, a.Event())
}
