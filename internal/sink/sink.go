package sink

import (
	"github.com/cleared-dev/runbal/internal/model"
)

// Output table names.
const (
	TableForward  = "forward_running_balance"
	TableBackward = "backward_running_balance"
	TableFull     = "full_running_balance"
)

// Header is the column layout shared by every output table.
const Header = "consumer_id,posted_date,signed_amount,running_balance,category,credit_or_debit"

// Writer persists output tables. WriteTable replaces any previous contents of
// the named table and returns where it was written.
type Writer interface {
	Format() string
	WriteTable(name string, events []model.BalanceEvent) (string, error)
}
