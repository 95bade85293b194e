package reports

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// Income statement labels.
const (
	LabelEstimatedCostOfSales = "Cost of Sales (estimated)"
	LabelNetProfit            = "Net Profit/(Loss)"
)

// IncomeStatement is the profit and loss statement for a period.
type IncomeStatement struct {
	Statement
	TotalRevenue           decimal.Decimal `json:"total_revenue"`
	TotalCostOfSales       decimal.Decimal `json:"total_cost_of_sales"`
	GrossProfit            decimal.Decimal `json:"gross_profit"`
	TotalOperatingExpenses decimal.Decimal `json:"total_operating_expenses"`
	NetProfit              decimal.Decimal `json:"net_profit"`
	UsedFallbackCOGS       bool            `json:"used_fallback_cogs"`
}

// BuildIncomeStatement derives the income statement from a period trial
// balance. The estimate is only used when no real cost-of-sales rows exist.
func (b *Builder) BuildIncomeStatement(tb ledger.TrialBalance, estimate decimal.Decimal) IncomeStatement {
	cogsPins := b.policy.PinsFor(policy.SectionCostOfSales)
	cogsPinned := make(map[string]struct{}, len(cogsPins))
	for _, pin := range cogsPins {
		cogsPinned[pin.Code] = struct{}{}
	}

	var revenue, cogsRows, opex []ledger.Row
	for _, row := range tb.Rows {
		_, pinnedToCOGS := cogsPinned[row.Code]
		switch row.Type {
		case shared.AccountTypeRevenue:
			if pinnedToCOGS {
				cogsRows = append(cogsRows, row)
				continue
			}
			revenue = append(revenue, row)
		case shared.AccountTypeExpense:
			if pinnedToCOGS || b.classifier.IsCostOfSales(row.Code, row.Name) {
				cogsRows = append(cogsRows, row)
				continue
			}
			opex = append(opex, row)
		}
	}

	out := IncomeStatement{Statement: Statement{Type: TypeIncomeStatement, CompanyID: tb.CompanyID}}
	w := &lineWriter{}

	w.header("Revenue")
	pinned, rest := orderRows(b.policy.PinsFor(policy.SectionRevenue), revenue)
	out.TotalRevenue = decimal.Zero
	for _, p := range pinned {
		if !p.found {
			continue
		}
		out.TotalRevenue = out.TotalRevenue.Add(p.row.Balance)
		w.item(ClassIncome, p.label(), p.row.Balance, rowRef(p.row))
	}
	for _, row := range rest {
		out.TotalRevenue = out.TotalRevenue.Add(row.Balance)
		w.item(ClassIncome, row.Name, row.Balance, rowRef(row))
	}
	w.subtotal("Total Revenue", out.TotalRevenue)
	w.spacer()

	w.header("Cost of Sales")
	out.TotalCostOfSales = decimal.Zero
	if hasRealCOGS(cogsRows) {
		pinned, rest := orderRows(cogsPins, cogsRows)
		for _, p := range pinned {
			amount := p.amount()
			out.TotalCostOfSales = out.TotalCostOfSales.Add(amount)
			if p.pin.Always {
				w.itemAlways(ClassExpense, p.label(), amount, pinRef(p))
			} else {
				w.item(ClassExpense, p.label(), amount, pinRef(p))
			}
		}
		for _, row := range rest {
			out.TotalCostOfSales = out.TotalCostOfSales.Add(row.Balance)
			w.item(ClassExpense, row.Name, row.Balance, rowRef(row))
		}
	} else {
		out.UsedFallbackCOGS = true
		out.TotalCostOfSales = estimate
		w.itemAlways(ClassExpense, LabelEstimatedCostOfSales, estimate, nil)
	}
	w.subtotal("Total Cost of Sales", out.TotalCostOfSales)
	out.GrossProfit = out.TotalRevenue.Sub(out.TotalCostOfSales)
	w.total("Gross Profit", out.GrossProfit)
	w.spacer()

	w.header("Operating Expenses")
	pinned, rest = orderRows(b.policy.PinsFor(policy.SectionOperatingExpenses), opex)
	out.TotalOperatingExpenses = decimal.Zero
	for _, p := range pinned {
		if !p.found {
			continue
		}
		out.TotalOperatingExpenses = out.TotalOperatingExpenses.Add(p.row.Balance)
		w.item(ClassExpense, p.label(), p.row.Balance, rowRef(p.row))
	}
	for _, row := range rest {
		out.TotalOperatingExpenses = out.TotalOperatingExpenses.Add(row.Balance)
		w.item(ClassExpense, row.Name, row.Balance, rowRef(row))
	}
	w.subtotal("Total Operating Expenses", out.TotalOperatingExpenses)
	w.spacer()

	out.NetProfit = out.TotalRevenue.Sub(out.TotalCostOfSales).Sub(out.TotalOperatingExpenses)
	w.final(LabelNetProfit, out.NetProfit)

	out.Lines = w.finish()
	roundTotals(&out.TotalRevenue, &out.TotalCostOfSales, &out.GrossProfit, &out.TotalOperatingExpenses, &out.NetProfit)
	return out
}

// hasRealCOGS reports whether any cost-of-sales row carries a balance.
func hasRealCOGS(rows []ledger.Row) bool {
	for _, row := range rows {
		if shared.Significant(row.Balance) {
			return true
		}
	}
	return false
}

func pinRef(p pinnedRow) *ledger.Row {
	if !p.found {
		return nil
	}
	return rowRef(p.row)
}
