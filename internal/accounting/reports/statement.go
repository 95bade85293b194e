package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/classify"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// LineKind enumerates statement line roles.
type LineKind string

const (
	KindHeader       LineKind = "header"
	KindSubheader    LineKind = "subheader"
	KindItem         LineKind = "item"
	KindSubtotal     LineKind = "subtotal"
	KindTotal        LineKind = "total"
	KindFinal        LineKind = "final"
	KindSpacer       LineKind = "spacer"
	KindBalanceCheck LineKind = "balance_check"
)

// ItemClass tags item lines with the nature of the amount.
type ItemClass string

const (
	ClassAsset     ItemClass = "asset"
	ClassLiability ItemClass = "liability"
	ClassEquity    ItemClass = "equity"
	ClassIncome    ItemClass = "income"
	ClassExpense   ItemClass = "expense"
)

// Line is a single statement row handed to presentation.
type Line struct {
	Kind      LineKind        `json:"kind"`
	Class     ItemClass       `json:"class,omitempty"`
	Label     string          `json:"label,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	AccountID *int64          `json:"account_id,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// StatementType names the produced statement.
type StatementType string

const (
	TypeTrialBalance    StatementType = "trial_balance"
	TypeIncomeStatement StatementType = "income_statement"
	TypeBalanceSheet    StatementType = "balance_sheet"
	TypeCashFlow        StatementType = "cash_flow"
)

// Statement is an ordered list of lines plus non-fatal findings.
type Statement struct {
	Type      StatementType    `json:"type"`
	CompanyID int64            `json:"company_id"`
	Lines     []Line           `json:"lines"`
	Warnings  []shared.Warning `json:"warnings,omitempty"`
}

// Builder produces statements under one policy.
type Builder struct {
	policy     policy.Policy
	classifier classify.Classifier
	linkage    classify.AssetLinkage
}

// NewBuilder constructs a Builder. A nil linkage falls back to name matching.
func NewBuilder(p policy.Policy, linkage classify.AssetLinkage) *Builder {
	if linkage == nil {
		linkage = classify.NameLinkage{}
	}
	return &Builder{policy: p, classifier: classify.New(p), linkage: linkage}
}

type lineWriter struct {
	lines []Line
}

func (w *lineWriter) add(kind LineKind, label string, amount decimal.Decimal) {
	w.lines = append(w.lines, Line{Kind: kind, Label: label, Amount: amount})
}

func (w *lineWriter) header(label string)    { w.add(KindHeader, label, decimal.Zero) }
func (w *lineWriter) subheader(label string) { w.add(KindSubheader, label, decimal.Zero) }
func (w *lineWriter) spacer()                { w.add(KindSpacer, "", decimal.Zero) }

func (w *lineWriter) subtotal(label string, amount decimal.Decimal) {
	w.add(KindSubtotal, label, amount)
}

func (w *lineWriter) total(label string, amount decimal.Decimal) { w.add(KindTotal, label, amount) }
func (w *lineWriter) final(label string, amount decimal.Decimal) { w.add(KindFinal, label, amount) }

// item appends an item line when the amount is at least one cent.
func (w *lineWriter) item(class ItemClass, label string, amount decimal.Decimal, row *ledger.Row) {
	if !shared.Significant(amount) {
		return
	}
	w.itemAlways(class, label, amount, row)
}

func (w *lineWriter) itemAlways(class ItemClass, label string, amount decimal.Decimal, row *ledger.Row) {
	ln := Line{Kind: KindItem, Class: class, Label: label, Amount: amount}
	if row != nil && row.AccountID != 0 {
		id := row.AccountID
		ln.AccountID = &id
		ln.Code = row.Code
	}
	w.lines = append(w.lines, ln)
}

// finish rounds every amount to two decimals. Totals were computed unrounded.
func (w *lineWriter) finish() []Line {
	out := make([]Line, len(w.lines))
	for i, ln := range w.lines {
		ln.Amount = ln.Amount.Round(2)
		out[i] = ln
	}
	return out
}

// roundTotals rounds exported totals once they are no longer used in arithmetic.
func roundTotals(totals ...*decimal.Decimal) {
	for _, t := range totals {
		*t = t.Round(2)
	}
}

type pinnedRow struct {
	pin   policy.Pin
	row   ledger.Row
	found bool
}

// amount applies the pin sign to the row balance.
func (p pinnedRow) amount() decimal.Decimal {
	if p.pin.Negate {
		return p.row.Balance.Neg()
	}
	return p.row.Balance
}

func (p pinnedRow) label() string {
	if p.found && p.row.Name != "" {
		return p.row.Name
	}
	return p.pin.Label
}

// orderRows splits rows into the section's pinned rows, in pin order, and the
// remaining rows in code order. Missing pins are returned with found=false.
func orderRows(pins []policy.Pin, rows []ledger.Row) ([]pinnedRow, []ledger.Row) {
	byCode := make(map[string]int, len(rows))
	for i, row := range rows {
		if _, dup := byCode[row.Code]; !dup {
			byCode[row.Code] = i
		}
	}
	used := make(map[int]struct{}, len(pins))
	pinned := make([]pinnedRow, 0, len(pins))
	for _, pin := range pins {
		idx, ok := byCode[pin.Code]
		if !ok {
			pinned = append(pinned, pinnedRow{pin: pin, row: ledger.Row{Code: pin.Code, Balance: decimal.Zero}})
			continue
		}
		used[idx] = struct{}{}
		pinned = append(pinned, pinnedRow{pin: pin, row: rows[idx], found: true})
	}
	rest := make([]ledger.Row, 0, len(rows))
	for i, row := range rows {
		if _, ok := used[i]; ok {
			continue
		}
		rest = append(rest, row)
	}
	return pinned, rest
}

func sumBalances(rows []ledger.Row) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Balance)
	}
	return total
}

func rowRef(row ledger.Row) *ledger.Row {
	return &row
}
