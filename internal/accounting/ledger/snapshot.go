package ledger

import (
	"time"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// Snapshot is a single fetch of the chart of accounts and both raw line
// sources. Every statement of one request is derived from the same Snapshot.
type Snapshot struct {
	CompanyID    int64
	Accounts     []shared.Account
	Journal      []shared.LedgerLine
	Transactions []shared.LedgerLine
	Statuses     []shared.LineStatus
	FetchedAt    time.Time
}

// Lines returns deduplicated lines inside the window with an accepted status,
// plus the number of lines dropped for a missing date.
func (s Snapshot) Lines(w shared.Window) ([]shared.LedgerLine, int) {
	return Filter(Dedup(s.Journal, s.Transactions), w, s.Statuses)
}

// TrialBalance aggregates the snapshot over the window.
func (a *Aggregator) TrialBalance(s Snapshot, w shared.Window) (TrialBalance, error) {
	return a.Aggregate(Input{
		CompanyID:    s.CompanyID,
		Window:       w,
		Accounts:     s.Accounts,
		Journal:      s.Journal,
		Transactions: s.Transactions,
		Statuses:     s.Statuses,
	})
}
