package reports

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// ValidatorTolerance is the largest raw debit/credit difference still treated as balanced.
var ValidatorTolerance = decimal.RequireFromString("0.01")

// IntegrityResult is the raw double-entry check over the included lines.
type IntegrityResult struct {
	CompanyID   int64           `json:"company_id"`
	IsBalanced  bool            `json:"is_balanced"`
	Difference  decimal.Decimal `json:"difference"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	LineCount   int             `json:"line_count"`
}

// CheckIntegrity sums every line. Difference is Σdebit − Σcredit.
func CheckIntegrity(companyID int64, lines []shared.LedgerLine) IntegrityResult {
	res := IntegrityResult{CompanyID: companyID, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, LineCount: len(lines)}
	for _, line := range lines {
		res.TotalDebit = res.TotalDebit.Add(line.Debit)
		res.TotalCredit = res.TotalCredit.Add(line.Credit)
	}
	res.Difference = res.TotalDebit.Sub(res.TotalCredit)
	res.IsBalanced = res.Difference.Abs().LessThan(ValidatorTolerance)
	roundTotals(&res.TotalDebit, &res.TotalCredit, &res.Difference)
	return res
}

// Warning returns the imbalance warning for an unbalanced result.
func (r IntegrityResult) Warning() (shared.Warning, bool) {
	if r.IsBalanced {
		return shared.Warning{}, false
	}
	return shared.Warning{
		Kind:    shared.WarningImbalance,
		Code:    shared.WarnRawImbalance,
		Message: fmt.Sprintf("posted debits and credits differ by %s across %d lines", r.Difference.StringFixed(2), r.LineCount),
	}, true
}

// Reconciliation places the balance sheet plug next to the raw validator result.
type Reconciliation struct {
	Plug          decimal.Decimal `json:"plug"`
	RawDifference decimal.Decimal `json:"raw_difference"`
	// Disagree is set when the balance sheet reads balanced while the raw
	// postings are not.
	Disagree bool `json:"disagree"`
}

// Reconcile compares a balance sheet with the raw check over the same lines.
func Reconcile(bs BalanceSheet, raw IntegrityResult) (Reconciliation, []shared.Warning) {
	rec := Reconciliation{
		Plug:          bs.Plug.Round(2),
		RawDifference: raw.Difference.Round(2),
		Disagree:      bs.Check.IsBalanced && !raw.IsBalanced,
	}
	if !rec.Disagree {
		return rec, nil
	}
	return rec, []shared.Warning{{
		Kind: shared.WarningImbalance,
		Code: shared.WarnPlugDisagreement,
		Message: fmt.Sprintf("balance sheet reads balanced with an equity adjustment of %s, but posted lines are off by %s",
			rec.Plug.StringFixed(2), rec.RawDifference.StringFixed(2)),
	}}
}
