package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceEvent is one row of a reconstructed timeline.
type BalanceEvent struct {
	ConsumerID     string
	PostedDate     time.Time
	SignedAmount   decimal.Decimal
	RunningBalance decimal.Decimal
	Category       string
	Direction      Direction // empty on the anchor row

	// Anchor marks the synthetic snapshot row. It is not written to the
	// output tables; readers recognise the anchor by its empty direction.
	Anchor bool
}

// Timeline is the ordered sequence of events for one consumer.
type Timeline struct {
	ConsumerID string
	Events     []BalanceEvent
}

// AnchorCount returns the number of anchor rows in t.
func (t Timeline) AnchorCount() int {
	n := 0
	for _, e := range t.Events {
		if e.Anchor {
			n++
		}
	}
	return n
}
