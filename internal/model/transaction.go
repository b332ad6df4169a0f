package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the credit/debit flag carried by every ledger row.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// RawTransaction is a transactions-table row as read from disk, before any
// parsing. Row is the 1-based data row number in the source table.
type RawTransaction struct {
	Row        int
	ConsumerID string
	PostedDate string
	Amount     string
	Direction  string
	Category   string
}

// Transaction is a parsed ledger row. Amount is unsigned; Direction carries
// the sign.
type Transaction struct {
	ConsumerID string
	PostedDate time.Time
	Amount     decimal.Decimal
	Direction  Direction
	Category   string
}

// SignedTransaction is a Transaction with its signed delta resolved.
// Seq is the position of the row in the normalized input and breaks
// same-date ties.
type SignedTransaction struct {
	Transaction
	SignedAmount decimal.Decimal
	Seq          int
}
