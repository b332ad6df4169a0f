package balance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/runbal/internal/model"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func anchor(id string, day time.Time, bal string) model.Anchor {
	return model.Anchor{ConsumerID: id, StartDate: day, StartBalance: dec(bal)}
}

// signed builds normalized transactions in argument order.
func signed(txns ...model.Transaction) []model.SignedTransaction {
	out := make([]model.SignedTransaction, len(txns))
	for i, t := range txns {
		out[i] = model.SignedTransaction{Transaction: t, SignedAmount: Sign(t), Seq: i}
	}
	return out
}

func credit(id string, day time.Time, amount, category string) model.Transaction {
	return model.Transaction{ConsumerID: id, PostedDate: day, Amount: dec(amount), Direction: model.DirectionCredit, Category: category}
}

func debit(id string, day time.Time, amount, category string) model.Transaction {
	return model.Transaction{ConsumerID: id, PostedDate: day, Amount: dec(amount), Direction: model.DirectionDebit, Category: category}
}

func balances(events []model.BalanceEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.RunningBalance.String()
	}
	return out
}

func days(events []model.BalanceEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.PostedDate.Format(model.DateFormat)
	}
	return out
}
