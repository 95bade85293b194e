package reports

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// GroupKey returns the key used for grouping trial balance rows.
func GroupKey(code string) string {
	if idx := strings.Index(code, "."); idx > 0 {
		return code[:idx]
	}
	if len(code) >= 2 {
		return code[:2]
	}
	return code
}

// TrialBalanceAccount represents a row inside a trial balance group.
// Opening and Closing are signed on the account's natural side.
type TrialBalanceAccount struct {
	AccountID int64              `json:"account_id"`
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	Type      shared.AccountType `json:"type"`
	Opening   decimal.Decimal    `json:"opening"`
	Debit     decimal.Decimal    `json:"debit"`
	Credit    decimal.Decimal    `json:"credit"`
	Closing   decimal.Decimal    `json:"closing"`
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key      string                `json:"key"`
	Accounts []TrialBalanceAccount `json:"accounts"`
	Debit    decimal.Decimal       `json:"debit"`
	Credit   decimal.Decimal       `json:"credit"`
}

// TrialBalanceView is the raw trial balance handed to presentation.
type TrialBalanceView struct {
	Type        StatementType       `json:"type"`
	CompanyID   int64               `json:"company_id"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
	Difference  decimal.Decimal     `json:"difference"`
	IsBalanced  bool                `json:"is_balanced"`
	Warnings    []shared.Warning    `json:"warnings,omitempty"`
}

// BuildTrialBalance converts period rows into grouped trial balance data.
// opening is the cumulative balance up to the day before the period and may be
// nil, in which case every opening balance is zero. Nothing is suppressed
// except accounts with no opening balance and no movement.
func BuildTrialBalance(period ledger.TrialBalance, opening *ledger.TrialBalance) TrialBalanceView {
	openings := make(map[int64]decimal.Decimal)
	if opening != nil {
		for _, row := range opening.Raw {
			openings[row.AccountID] = row.Balance
		}
	}

	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, row := range period.Raw {
		open := openings[row.AccountID]
		if !shared.Significant(open) && !shared.Significant(row.Debit) && !shared.Significant(row.Credit) {
			continue
		}
		key := GroupKey(row.Code)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Accounts = append(grp.Accounts, TrialBalanceAccount{
			AccountID: row.AccountID,
			Code:      row.Code,
			Name:      row.Name,
			Type:      row.Type,
			Opening:   open.Round(2),
			Debit:     row.Debit.Round(2),
			Credit:    row.Credit.Round(2),
			Closing:   open.Add(row.Balance).Round(2),
		})
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	sort.Strings(keys)
	result := TrialBalanceView{
		Type:        TypeTrialBalance,
		CompanyID:   period.CompanyID,
		TotalDebit:  period.TotalDebit,
		TotalCredit: period.TotalCredit,
		Warnings:    period.Warnings,
	}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		grp.Debit = grp.Debit.Round(2)
		grp.Credit = grp.Credit.Round(2)
		result.Groups = append(result.Groups, *grp)
	}
	result.Difference = result.TotalDebit.Sub(result.TotalCredit)
	result.IsBalanced = !shared.Significant(result.Difference)
	result.TotalDebit = result.TotalDebit.Round(2)
	result.TotalCredit = result.TotalCredit.Round(2)
	result.Difference = result.Difference.Round(2)
	return result
}
