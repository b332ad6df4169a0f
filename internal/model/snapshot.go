package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawSnapshot is a balance-snapshots row as read from disk.
type RawSnapshot struct {
	Row        int
	ConsumerID string
	Date       string
	Balance    string
}

// BalanceSnapshot is the balance of one account (or, after aggregation, of
// all accounts) for a consumer on a date.
type BalanceSnapshot struct {
	ConsumerID string
	Date       time.Time
	Balance    decimal.Decimal
}

// Anchor is the earliest aggregated snapshot for a consumer. Every balance in
// the consumer's timeline is derived from it.
type Anchor struct {
	ConsumerID   string
	StartDate    time.Time
	StartBalance decimal.Decimal
}

// Event returns the synthetic timeline row that represents the anchor.
func (a Anchor) Event() BalanceEvent {
	return BalanceEvent{
		ConsumerID:     a.ConsumerID,
		PostedDate:     a.StartDate,
		SignedAmount:   decimal.Zero,
		RunningBalance: a.StartBalance,
		Anchor:         true,
	}
}
