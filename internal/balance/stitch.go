package balance

import (
	"slices"

	"github.com/cleared-dev/runbal/internal/model"
)

// Segments holds the three views of one consumer's reconstructed history.
type Segments struct {
	ConsumerID string
	Backward   []model.BalanceEvent // earlier transactions, then the anchor
	Forward    []model.BalanceEvent // the anchor, then later transactions
	Full       []model.BalanceEvent // both, with a single anchor row

	// ZeroOnAnchorDate counts zero-amount transactions posted at the anchor
	// date. They are left out so the anchor stays the only zero row there.
	ZeroOnAnchorDate int
}

// Stitch merges a backward and a forward segment into one timeline. Both
// segments carry the anchor as their boundary; the backward copy is dropped
// so the anchor appears once. The sort is stable, so the anchor stays ahead
// of transactions posted on the anchor date.
func Stitch(backward, forward []model.BalanceEvent) []model.BalanceEvent {
	full := make([]model.BalanceEvent, 0, len(backward)+len(forward))
	for _, e := range backward {
		if !e.Anchor {
			full = append(full, e)
		}
	}
	full = append(full, forward...)
	slices.SortStableFunc(full, func(x, y model.BalanceEvent) int {
		return x.PostedDate.Compare(y.PostedDate)
	})
	return full
}

// Reconstruct runs both integrators for one consumer and stitches the result.
func Reconstruct(a model.Anchor, txns []model.SignedTransaction) Segments {
	txns, zeros := dropZeroOnAnchorDate(a, txns)
	backward := IntegrateBackward(a, txns)
	forward := IntegrateForward(a, txns)
	return Segments{
		ConsumerID:       a.ConsumerID,
		Backward:         backward,
		Forward:          forward,
		Full:             Stitch(backward, forward),
		ZeroOnAnchorDate: zeros,
	}
}

// dropZeroOnAnchorDate removes zero-amount transactions posted at exactly the
// anchor date. They cannot move the balance and would otherwise be
// indistinguishable from the anchor row. txns is not modified.
func dropZeroOnAnchorDate(a model.Anchor, txns []model.SignedTransaction) ([]model.SignedTransaction, int) {
	n := 0
	for _, t := range txns {
		if t.SignedAmount.IsZero() && t.PostedDate.Equal(a.StartDate) {
			n++
		}
	}
	if n == 0 {
		return txns, 0
	}
	kept := make([]model.SignedTransaction, 0, len(txns)-n)
	for _, t := range txns {
		if !(t.SignedAmount.IsZero() && t.PostedDate.Equal(a.StartDate)) {
			kept = append(kept, t)
		}
	}
	return kept, n
}
