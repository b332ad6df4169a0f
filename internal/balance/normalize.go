package balance

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/runbal/internal/model"
)

// Sign returns the signed delta of t: inflows are positive, outflows negative.
func Sign(t model.Transaction) decimal.Decimal {
	if t.Direction == model.DirectionCredit {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Normalize parses raw transaction rows and resolves their signed amounts.
// It does not filter by date or consumer. Rows with a missing consumer, a
// malformed date, a missing, non-finite, non-numeric or negative amount, or a
// direction other than CREDIT/DEBIT are excluded and reported.
//
// Seq on the returned rows is the index within the returned slice.
func Normalize(raw []model.RawTransaction) ([]model.SignedTransaction, []DataIntegrityError) {
	var (
		out  []model.SignedTransaction
		errs []DataIntegrityError
	)
	for _, r := range raw {
		fail := func(field, value, reason string) {
			errs = append(errs, DataIntegrityError{
				Table:      TableTransactions,
				Row:        r.Row,
				ConsumerID: r.ConsumerID,
				Field:      field,
				Value:      value,
				Reason:     reason,
			})
		}

		if strings.TrimSpace(r.ConsumerID) == "" {
			fail("consumer_id", r.ConsumerID, "missing consumer id")
			continue
		}

		posted, err := model.ParseDate(r.PostedDate)
		if err != nil {
			fail("posted_date", r.PostedDate, err.Error())
			continue
		}

		amount, reason := parseAmount(r.Amount)
		if reason != "" {
			fail("amount", r.Amount, reason)
			continue
		}
		if amount.IsNegative() {
			fail("amount", r.Amount, "negative amount")
			continue
		}

		dir := model.Direction(strings.ToUpper(strings.TrimSpace(r.Direction)))
		if !dir.Valid() {
			fail("credit_or_debit", r.Direction, "unknown direction")
			continue
		}

		txn := model.Transaction{
			ConsumerID: r.ConsumerID,
			PostedDate: posted,
			Amount:     amount,
			Direction:  dir,
			Category:   r.Category,
		}
		out = append(out, model.SignedTransaction{
			Transaction:  txn,
			SignedAmount: Sign(txn),
			Seq:          len(out),
		})
	}
	return out, errs
}

// DedupeTransactions drops rows identical to an earlier row in every input
// column. It returns the kept rows in input order and the number dropped.
func DedupeTransactions(raw []model.RawTransaction) ([]model.RawTransaction, int) {
	type key struct {
		consumer, posted, amount, direction, category string
	}

	seen := make(map[key]bool, len(raw))
	out := make([]model.RawTransaction, 0, len(raw))
	for _, r := range raw {
		k := key{r.ConsumerID, r.PostedDate, r.Amount, r.Direction, r.Category}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out, len(raw) - len(out)
}
