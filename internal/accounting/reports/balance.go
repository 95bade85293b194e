package reports

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/classify"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// Balance sheet labels.
const (
	LabelOpeningNBV        = "Fixed Assets b/f (NBV)"
	LabelVATReceivable     = "VAT Receivable"
	LabelVATPayable        = "VAT Payable"
	LabelBankOverdraft     = "Bank Overdraft"
	LabelRetainedAdjusted  = "Retained Earnings (adjusted)"
	LabelTotalLiabEquity   = "Total Liabilities and Equity"
	LabelBalanceCheck      = "Balance Check"
	OpeningNBVDescTag      = "[opening]"
	nonCurrentLiabKeywords = "long term"
)

// BalanceCheckResult compares both sides of the accounting equation.
type BalanceCheckResult struct {
	TotalAssets         decimal.Decimal `json:"total_assets"`
	TotalLiabPlusEquity decimal.Decimal `json:"total_liab_plus_equity"`
	Difference          decimal.Decimal `json:"difference"`
	IsBalanced          bool            `json:"is_balanced"`
}

// CheckBalance evaluates the equation with the 0.1 tolerance.
func CheckBalance(assets, liabPlusEquity decimal.Decimal) BalanceCheckResult {
	diff := assets.Sub(liabPlusEquity)
	return BalanceCheckResult{
		TotalAssets:         assets,
		TotalLiabPlusEquity: liabPlusEquity,
		Difference:          diff,
		IsBalanced:          diff.Abs().LessThanOrEqual(shared.BalanceTolerance),
	}
}

// BalanceSheet is the statement of financial position at the window end.
type BalanceSheet struct {
	Statement
	TotalNonCurrentAssets      decimal.Decimal    `json:"total_non_current_assets"`
	TotalCurrentAssets         decimal.Decimal    `json:"total_current_assets"`
	TotalAssets                decimal.Decimal    `json:"total_assets"`
	TotalNonCurrentLiabilities decimal.Decimal    `json:"total_non_current_liabilities"`
	TotalCurrentLiabilities    decimal.Decimal    `json:"total_current_liabilities"`
	TotalLiabilities           decimal.Decimal    `json:"total_liabilities"`
	RawEquity                  decimal.Decimal    `json:"raw_equity"`
	Plug                       decimal.Decimal    `json:"plug"`
	TotalEquity                decimal.Decimal    `json:"total_equity"`
	Check                      BalanceCheckResult `json:"check"`
}

// BuildBalanceSheet derives the balance sheet from a cumulative trial balance.
// openingNBV is the externally supplied NBV of assets carried from earlier records.
func (b *Builder) BuildBalanceSheet(tb ledger.TrialBalance, openingNBV decimal.Decimal) BalanceSheet {
	out := BalanceSheet{Statement: Statement{Type: TypeBalanceSheet, CompanyID: tb.CompanyID}}
	w := &lineWriter{}

	var nonCurrent, current, accumulated, vatAssets []ledger.Row
	for _, row := range tb.ByType(shared.AccountTypeAsset) {
		switch {
		case classify.NameHas(row.Name, "accumulated"):
			accumulated = append(accumulated, row)
		case classify.CodeNumber(row.Code) >= b.policy.FixedAssetThreshold:
			nonCurrent = append(nonCurrent, row)
		case isVAT(row.Name):
			vatAssets = append(vatAssets, row)
		case b.policy.IsExcludedCurrentAsset(row.Code):
		default:
			current = append(current, row)
		}
	}

	w.header("Assets")
	w.subheader("Non-current Assets")
	nbvTotal, warnings := b.netBookValues(w, nonCurrent, accumulated)
	out.Warnings = append(out.Warnings, warnings...)
	if shared.Significant(openingNBV) {
		nbvTotal = nbvTotal.Add(openingNBV)
		w.item(ClassAsset, LabelOpeningNBV, openingNBV, nil)
	}
	out.TotalNonCurrentAssets = nbvTotal
	w.subtotal("Total Non-current Assets", out.TotalNonCurrentAssets)

	w.subheader("Current Assets")
	overdraft := decimal.Zero
	currentTotal := decimal.Zero
	pinned, rest := orderRows(b.policy.PinsFor(policy.SectionCurrentAssets), current)
	ordered := make([]ledger.Row, 0, len(current))
	for _, p := range pinned {
		if p.found {
			ordered = append(ordered, p.row)
		}
	}
	ordered = append(ordered, rest...)
	for _, row := range ordered {
		if row.Balance.IsNegative() && classify.NameHas(row.Name, "bank", "cash") {
			overdraft = overdraft.Add(row.Balance.Neg())
			continue
		}
		currentTotal = currentTotal.Add(row.Balance)
		w.item(ClassAsset, row.Name, row.Balance, rowRef(row))
	}
	vatReceivable := sumBalances(vatAssets)
	if vatReceivable.IsNegative() {
		out.Warnings = append(out.Warnings, shared.Warning{
			Kind:    shared.WarningDataQuality,
			Code:    shared.WarnNegativeVAT,
			Message: fmt.Sprintf("VAT receivable aggregate %s is negative and was not presented", vatReceivable.StringFixed(2)),
		})
	} else {
		currentTotal = currentTotal.Add(vatReceivable)
		w.item(ClassAsset, LabelVATReceivable, vatReceivable, nil)
	}
	out.TotalCurrentAssets = currentTotal
	w.subtotal("Total Current Assets", out.TotalCurrentAssets)
	out.TotalAssets = out.TotalNonCurrentAssets.Add(out.TotalCurrentAssets)
	w.total("Total Assets", out.TotalAssets)
	w.spacer()

	var nonCurrentLiab, currentLiab, vatLiab []ledger.Row
	for _, row := range tb.ByType(shared.AccountTypeLiability) {
		switch {
		case isVAT(row.Name):
			vatLiab = append(vatLiab, row)
		case b.policy.IsExcludedLiability(row.Code):
		case classify.CodeNumber(row.Code) >= b.policy.NonCurrentLiabilityThreshold,
			classify.NameHas(row.Name, nonCurrentLiabKeywords, "long-term", "mortgage"):
			nonCurrentLiab = append(nonCurrentLiab, row)
		default:
			currentLiab = append(currentLiab, row)
		}
	}

	w.header("Liabilities")
	w.subheader("Non-current Liabilities")
	out.TotalNonCurrentLiabilities = decimal.Zero
	for _, row := range nonCurrentLiab {
		out.TotalNonCurrentLiabilities = out.TotalNonCurrentLiabilities.Add(row.Balance)
		w.item(ClassLiability, row.Name, row.Balance, rowRef(row))
	}
	w.subtotal("Total Non-current Liabilities", out.TotalNonCurrentLiabilities)

	w.subheader("Current Liabilities")
	out.TotalCurrentLiabilities = decimal.Zero
	for _, row := range currentLiab {
		out.TotalCurrentLiabilities = out.TotalCurrentLiabilities.Add(row.Balance)
		w.item(ClassLiability, row.Name, row.Balance, rowRef(row))
	}
	vatPayable := sumBalances(vatLiab)
	if shared.Significant(vatPayable) {
		out.TotalCurrentLiabilities = out.TotalCurrentLiabilities.Add(vatPayable)
		w.item(ClassLiability, LabelVATPayable, vatPayable, nil)
	}
	if overdraft.GreaterThan(shared.SuppressionThreshold) {
		out.TotalCurrentLiabilities = out.TotalCurrentLiabilities.Add(overdraft)
		w.item(ClassLiability, LabelBankOverdraft, overdraft, nil)
	}
	w.subtotal("Total Current Liabilities", out.TotalCurrentLiabilities)
	out.TotalLiabilities = out.TotalNonCurrentLiabilities.Add(out.TotalCurrentLiabilities)
	w.total("Total Liabilities", out.TotalLiabilities)
	w.spacer()

	w.header("Equity")
	out.RawEquity = decimal.Zero
	for _, row := range tb.ByType(shared.AccountTypeEquity) {
		out.RawEquity = out.RawEquity.Add(row.Balance)
		w.item(ClassEquity, row.Name, row.Balance, rowRef(row))
	}
	out.Plug = decimal.Zero
	plug := out.TotalAssets.Sub(out.TotalLiabilities.Add(out.RawEquity))
	if plug.Abs().GreaterThan(shared.SuppressionThreshold) {
		out.Plug = plug
		w.itemAlways(ClassEquity, LabelRetainedAdjusted, plug, nil)
	}
	out.TotalEquity = out.RawEquity.Add(out.Plug)
	w.total("Total Equity", out.TotalEquity)
	w.spacer()

	liabPlusEquity := out.TotalLiabilities.Add(out.TotalEquity)
	w.final(LabelTotalLiabEquity, liabPlusEquity)
	out.Check = CheckBalance(out.TotalAssets, liabPlusEquity)
	w.add(KindBalanceCheck, LabelBalanceCheck, out.Check.Difference)

	out.Lines = w.finish()
	roundTotals(&out.TotalNonCurrentAssets, &out.TotalCurrentAssets, &out.TotalAssets,
		&out.TotalNonCurrentLiabilities, &out.TotalCurrentLiabilities, &out.TotalLiabilities,
		&out.RawEquity, &out.Plug, &out.TotalEquity,
		&out.Check.TotalAssets, &out.Check.TotalLiabPlusEquity, &out.Check.Difference)
	return out
}

// netBookValues writes one NBV line per fixed asset and returns their total.
// Accumulated depreciation rows that no asset claims produce a warning.
func (b *Builder) netBookValues(w *lineWriter, assets, accumulated []ledger.Row) (decimal.Decimal, []shared.Warning) {
	candidates := make([]classify.Contra, 0, len(accumulated))
	contraAmount := make(map[int64]decimal.Decimal, len(accumulated))
	for _, row := range accumulated {
		candidates = append(candidates, classify.Contra{AccountID: row.AccountID, Code: row.Code, Name: row.Name})
		// Accumulated depreciation carries a credit balance on a debit-normal account.
		contraAmount[row.AccountID] = row.Balance.Neg()
	}

	matched := make(map[int64]struct{}, len(accumulated))
	total := decimal.Zero
	for _, asset := range assets {
		depreciation := decimal.Zero
		for _, c := range b.linkage.ContraFor(asset.AccountID, asset.Name, candidates) {
			depreciation = depreciation.Add(contraAmount[c.AccountID])
			matched[c.AccountID] = struct{}{}
		}
		nbv := asset.Balance.Sub(depreciation)
		if nbv.IsNegative() {
			nbv = decimal.Zero
		}
		total = total.Add(nbv)
		w.item(ClassAsset, asset.Name, nbv, rowRef(asset))
	}

	var warnings []shared.Warning
	for _, row := range accumulated {
		if _, ok := matched[row.AccountID]; ok || !shared.Significant(row.Balance) {
			continue
		}
		id := row.AccountID
		warnings = append(warnings, shared.Warning{
			Kind:      shared.WarningDataQuality,
			Code:      shared.WarnUnmatchedContra,
			Message:   fmt.Sprintf("%s (%s) is not linked to any fixed asset", row.Name, row.Code),
			AccountID: &id,
		})
	}
	return total, warnings
}

// isVAT matches "vat" as a whole word so names like "Private" stay out.
func isVAT(name string) bool {
	for _, tok := range strings.Fields(classify.NormalizeName(name)) {
		if tok == "vat" {
			return true
		}
	}
	return false
}
