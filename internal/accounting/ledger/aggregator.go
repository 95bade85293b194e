// Package ledger merges the two raw ledger sources and aggregates them into
// trial balance rows.
package ledger

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/classify"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// Row is a single trial balance row. Balance is signed on the natural side of
// the account: a positive asset balance is a debit balance.
type Row struct {
	AccountID int64
	Code      string
	Name      string
	Type      shared.AccountType
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Balance   decimal.Decimal
	Pinned    bool
}

// TrialBalance is the aggregated snapshot for one company and window.
type TrialBalance struct {
	CompanyID int64
	Window    shared.Window
	// Rows is the presented row list: suppressed rows removed, pinned rows kept.
	Rows []Row
	// Raw holds one row per classified account, nothing suppressed.
	Raw         []Row
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
	LineCount   int
	Warnings    []shared.Warning
}

// Find returns the presented row with the given code.
func (tb TrialBalance) Find(code string) (Row, bool) {
	for _, row := range tb.Rows {
		if row.Code == code {
			return row, true
		}
	}
	return Row{}, false
}

// ByType returns presented rows of the given type in code order.
func (tb TrialBalance) ByType(t shared.AccountType) []Row {
	var out []Row
	for _, row := range tb.Rows {
		if row.Type == t {
			out = append(out, row)
		}
	}
	return out
}

// Input carries everything needed to aggregate one trial balance.
type Input struct {
	CompanyID    int64
	Window       shared.Window
	Accounts     []shared.Account
	Journal      []shared.LedgerLine
	Transactions []shared.LedgerLine
	// Statuses limits which line statuses are aggregated. Empty means posted only.
	Statuses []shared.LineStatus
}

// Aggregator turns ledger lines into trial balances.
type Aggregator struct {
	policy policy.Policy
	pinned map[string]struct{}
}

// NewAggregator constructs an Aggregator for the policy.
func NewAggregator(p policy.Policy) *Aggregator {
	return &Aggregator{policy: p, pinned: p.PinnedCodes()}
}

// Aggregate deduplicates, filters and sums the input lines per account.
func (a *Aggregator) Aggregate(in Input) (TrialBalance, error) {
	if in.CompanyID <= 0 {
		return TrialBalance{}, shared.ErrCompanyRequired
	}
	if err := in.Window.Validate(); err != nil {
		return TrialBalance{}, err
	}

	merged := Dedup(in.Journal, in.Transactions)
	included, nullDates := Filter(merged, in.Window, in.Statuses)

	tb := TrialBalance{
		CompanyID:   in.CompanyID,
		Window:      in.Window,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		LineCount:   len(included),
	}
	if nullDates > 0 {
		tb.Warnings = append(tb.Warnings, shared.Warning{
			Kind:    shared.WarningDataQuality,
			Code:    shared.WarnNullDate,
			Message: fmt.Sprintf("%d ledger lines without a date were excluded", nullDates),
			Count:   nullDates,
		})
	}

	sums := SumByAccount(included)
	known := make(map[int64]struct{}, len(in.Accounts))
	for _, acc := range in.Accounts {
		known[acc.ID] = struct{}{}
		s := sums[acc.ID]
		row := Row{
			AccountID: acc.ID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Debit:     s.Debit,
			Credit:    s.Credit,
			Balance:   SignedBalance(acc.Type, s.Debit, s.Credit),
		}
		_, row.Pinned = a.pinned[acc.Code]
		tb.Raw = append(tb.Raw, row)
	}

	orphans := 0
	for _, line := range included {
		tb.TotalDebit = tb.TotalDebit.Add(line.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(line.Credit)
		if _, ok := known[line.AccountID]; !ok {
			orphans++
		}
	}
	if orphans > 0 {
		tb.Warnings = append(tb.Warnings, shared.Warning{
			Kind:    shared.WarningDataQuality,
			Code:    shared.WarnOrphanLine,
			Message: fmt.Sprintf("%d ledger lines reference unknown accounts", orphans),
			Count:   orphans,
		})
	}

	sortRows(tb.Raw)
	for _, row := range tb.Raw {
		if row.Type == shared.AccountTypeOther && shared.Significant(row.Balance) {
			id := row.AccountID
			tb.Warnings = append(tb.Warnings, shared.Warning{
				Kind:      shared.WarningDataQuality,
				Code:      shared.WarnUnclassified,
				Message:   fmt.Sprintf("%s (%s) has a balance of %s but no recognised type and is left out of every statement", row.Name, row.Code, row.Balance.StringFixed(2)),
				AccountID: &id,
			})
		}
	}
	for _, row := range tb.Raw {
		if a.keep(row) {
			tb.Rows = append(tb.Rows, row)
		}
	}
	return tb, nil
}

func (a *Aggregator) keep(row Row) bool {
	if row.Pinned {
		return true
	}
	if classify.NameHas(row.Name, "inventory") && row.Code != a.policy.PrimaryInventoryCode {
		return false
	}
	return shared.Significant(row.Balance)
}

// Dedup merges both sources. Transaction-derived lines whose transaction id also
// appears in the journal source are dropped; lines without an id are always kept.
func Dedup(journal, transactions []shared.LedgerLine) []shared.LedgerLine {
	seen := make(map[string]struct{}, len(journal))
	out := make([]shared.LedgerLine, 0, len(journal)+len(transactions))
	for _, line := range journal {
		line.Origin = shared.OriginJournal
		if id := txKey(line); id != "" {
			seen[id] = struct{}{}
		}
		out = append(out, line)
	}
	for _, line := range transactions {
		line.Origin = shared.OriginTransaction
		if id := txKey(line); id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
		}
		out = append(out, line)
	}
	return out
}

func txKey(line shared.LedgerLine) string {
	if line.TransactionID == uuid.Nil {
		return ""
	}
	return line.TransactionID.String()
}

// Filter keeps lines inside the window with an accepted status. Lines without a
// date are dropped and counted.
func Filter(lines []shared.LedgerLine, w shared.Window, statuses []shared.LineStatus) ([]shared.LedgerLine, int) {
	accept := statusSet(statuses)
	out := make([]shared.LedgerLine, 0, len(lines))
	nullDates := 0
	for _, line := range lines {
		if _, ok := accept[line.Status]; !ok {
			continue
		}
		if line.Date == nil {
			nullDates++
			continue
		}
		if !w.Contains(*line.Date) {
			continue
		}
		out = append(out, line)
	}
	return out, nullDates
}

func statusSet(statuses []shared.LineStatus) map[shared.LineStatus]struct{} {
	if len(statuses) == 0 {
		statuses = []shared.LineStatus{shared.LineStatusPosted}
	}
	set := make(map[shared.LineStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

// Sums holds debit and credit totals for one account.
type Sums struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// SumByAccount totals debits and credits per account id.
func SumByAccount(lines []shared.LedgerLine) map[int64]Sums {
	out := make(map[int64]Sums)
	for _, line := range lines {
		s := out[line.AccountID]
		s.Debit = s.Debit.Add(line.Debit)
		s.Credit = s.Credit.Add(line.Credit)
		out[line.AccountID] = s
	}
	return out
}

// SignedBalance returns the balance on the natural side of the account type.
func SignedBalance(t shared.AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if t.NaturalSide() == shared.SideDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Code != rows[j].Code {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].AccountID < rows[j].AccountID
	})
}
