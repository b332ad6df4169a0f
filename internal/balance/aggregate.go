package balance

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/runbal/internal/model"
)

// MissingPolicy decides what happens to a snapshot row whose balance is blank.
type MissingPolicy string

const (
	// MissingExclude drops the row and reports it.
	MissingExclude MissingPolicy = "exclude"
	// MissingZero treats the blank balance as zero.
	MissingZero MissingPolicy = "zero"
)

// Valid reports whether p is a known policy.
func (p MissingPolicy) Valid() bool {
	return p == MissingExclude || p == MissingZero
}

// ParseSnapshots converts raw snapshot rows. Rows with a missing consumer, an
// unparseable date or a non-numeric balance are returned as integrity errors.
func ParseSnapshots(raw []model.RawSnapshot, policy MissingPolicy) ([]model.BalanceSnapshot, []DataIntegrityError) {
	var (
		snaps []model.BalanceSnapshot
		errs  []DataIntegrityError
	)
	for _, r := range raw {
		fail := func(field, value, reason string) {
			errs = append(errs, DataIntegrityError{
				Table:      TableSnapshots,
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

		date, err := model.ParseDate(r.Date)
		if err != nil {
			fail("balance_date", r.Date, err.Error())
			continue
		}

		amount, reason := parseAmount(r.Balance)
		switch {
		case reason == reasonMissing && policy == MissingZero:
			amount = decimal.Zero
		case reason != "":
			fail("balance", r.Balance, reason)
			continue
		}

		snaps = append(snaps, model.BalanceSnapshot{
			ConsumerID: r.ConsumerID,
			Date:       date,
			Balance:    amount,
		})
	}
	return snaps, errs
}

// AggregateSnapshots sums balances that share a (consumer, date) pair, so
// several accounts reported on the same day become one consumer total. The
// result is ordered by consumer, then date.
func AggregateSnapshots(snaps []model.BalanceSnapshot) []model.BalanceSnapshot {
	type key struct {
		consumer string
		unix     int64
		nano     int
	}

	totals := make(map[key]int, len(snaps))
	var out []model.BalanceSnapshot
	for _, s := range snaps {
		k := key{s.ConsumerID, s.Date.Unix(), s.Date.Nanosecond()}
		if i, ok := totals[k]; ok {
			out[i].Balance = out[i].Balance.Add(s.Balance)
			continue
		}
		totals[k] = len(out)
		out = append(out, s)
	}

	slices.SortFunc(out, func(a, b model.BalanceSnapshot) int {
		if c := cmp.Compare(a.ConsumerID, b.ConsumerID); c != 0 {
			return c
		}
		return a.Date.Compare(b.Date)
	})
	return out
}

const (
	reasonMissing    = "missing amount"
	reasonNonFinite  = "non-finite amount"
	reasonNotNumeric = "not a number"
)

// parseAmount parses a decimal amount, returning a non-empty reason when the
// value cannot be used.
func parseAmount(s string) (decimal.Decimal, string) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return decimal.Zero, reasonMissing
	}
	switch strings.ToLower(strings.TrimLeft(s, "+-")) {
	case "nan":
		return decimal.Zero, reasonMissing
	case "inf", "infinity":
		return decimal.Zero, reasonNonFinite
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Sprintf("%s: %v", reasonNotNumeric, err)
	}
	return d, ""
}
