package reports

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/classify"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// CashFlowSource records which strategy produced a cash flow statement.
type CashFlowSource string

const (
	CashFlowFromAggregate CashFlowSource = "aggregate"
	CashFlowComputed      CashFlowSource = "computed"
)

// CashFlowAggregate is a precomputed cash flow summary supplied by the database.
// Investing is an outflow when positive.
type CashFlowAggregate struct {
	Operating   decimal.Decimal `json:"operating"`
	Investing   decimal.Decimal `json:"investing"`
	Financing   decimal.Decimal `json:"financing"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
	ClosingCash decimal.Decimal `json:"closing_cash"`
}

// CashFlow is the cash flow statement for a period.
type CashFlow struct {
	Statement
	Source      CashFlowSource  `json:"source"`
	Operating   decimal.Decimal `json:"operating"`
	Investing   decimal.Decimal `json:"investing"`
	Financing   decimal.Decimal `json:"financing"`
	NetChange   decimal.Decimal `json:"net_change"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
	ClosingCash decimal.Decimal `json:"closing_cash"`
	// Reclassified is the loan-financed acquisition amount moved from
	// operating to financing.
	Reclassified decimal.Decimal `json:"reclassified"`
}

var (
	receivableKeywords = []string{"receivable", "debtor"}
	payableKeywords    = []string{"payable", "creditor"}
	investmentKeywords = []string{"investment", "equipment", "property", "vehicle", "machinery", "furniture", "intangible", "software", "goodwill"}
	loanKeywords       = []string{"loan", "borrowing", "mortgage", "debenture"}
	capitalKeywords    = []string{"capital", "share"}
	cashKeywords       = []string{"bank", "cash"}
)

// BuildCashFlow formats the aggregate when one is supplied and otherwise
// computes the statement from the snapshot lines.
func (b *Builder) BuildCashFlow(s ledger.Snapshot, w shared.Window, agg *CashFlowAggregate) CashFlow {
	if agg != nil {
		return b.cashFlowFromAggregate(s.CompanyID, *agg)
	}
	return b.computeCashFlow(s, w)
}

func (b *Builder) cashFlowFromAggregate(companyID int64, agg CashFlowAggregate) CashFlow {
	out := CashFlow{
		Statement:    Statement{Type: TypeCashFlow, CompanyID: companyID},
		Source:       CashFlowFromAggregate,
		Operating:    agg.Operating,
		Investing:    agg.Investing,
		Financing:    agg.Financing,
		OpeningCash:  agg.OpeningCash,
		ClosingCash:  agg.ClosingCash,
		Reclassified: decimal.Zero,
	}
	out.NetChange = agg.Operating.Sub(agg.Investing).Add(agg.Financing)
	if diff := agg.OpeningCash.Add(out.NetChange).Sub(agg.ClosingCash); diff.Abs().GreaterThan(shared.BalanceTolerance) {
		out.Warnings = append(out.Warnings, shared.Warning{
			Kind:    shared.WarningDataQuality,
			Code:    shared.WarnCashMismatch,
			Message: fmt.Sprintf("closing cash differs from opening cash plus net change by %s", diff.StringFixed(2)),
		})
	}

	w := &lineWriter{}
	w.header("Operating Activities")
	w.item(ClassIncome, "Net cash from operating activities", agg.Operating, nil)
	w.subtotal("Net Cash from Operating Activities", agg.Operating)
	w.spacer()
	w.header("Investing Activities")
	w.item(ClassExpense, "Net cash used in investing activities", agg.Investing.Neg(), nil)
	w.subtotal("Net Cash from Investing Activities", agg.Investing.Neg())
	w.spacer()
	w.header("Financing Activities")
	w.item(ClassIncome, "Net cash from financing activities", agg.Financing, nil)
	w.subtotal("Net Cash from Financing Activities", agg.Financing)
	w.spacer()
	b.writeCashSummary(w, out)
	out.Lines = w.finish()
	out.roundTotals()
	return out
}

// cashMovements holds per-account period movements split by heuristic bucket.
type cashMovements struct {
	income       decimal.Decimal
	expense      decimal.Decimal
	depreciation decimal.Decimal
	receivables  decimal.Decimal
	payables     decimal.Decimal
	investing    decimal.Decimal
	financing    decimal.Decimal
}

func (b *Builder) computeCashFlow(s ledger.Snapshot, w shared.Window) CashFlow {
	out := CashFlow{
		Statement:    Statement{Type: TypeCashFlow, CompanyID: s.CompanyID},
		Source:       CashFlowComputed,
		Reclassified: decimal.Zero,
	}
	accounts := make(map[int64]shared.Account, len(s.Accounts))
	for _, acc := range s.Accounts {
		accounts[acc.ID] = acc
	}

	period, _ := s.Lines(w)
	m := cashMovements{
		income: decimal.Zero, expense: decimal.Zero, depreciation: decimal.Zero,
		receivables: decimal.Zero, payables: decimal.Zero,
		investing: decimal.Zero, financing: decimal.Zero,
	}
	for id, sums := range ledger.SumByAccount(period) {
		acc, ok := accounts[id]
		if !ok {
			continue
		}
		b.bucket(&m, acc, sums)
	}

	out.Operating = m.income.Sub(m.expense).Add(m.depreciation).Sub(m.receivables).Add(m.payables)
	out.Investing = m.investing
	out.Financing = m.financing
	out.OpeningCash = b.openingCash(s, w, accounts)

	if b.policy.ReclassifyFinancedPurchases {
		out.Reclassified = b.financedAcquisitions(period, accounts)
		out.Operating = out.Operating.Sub(out.Reclassified)
		out.Financing = out.Financing.Add(out.Reclassified)
	}
	out.NetChange = out.Operating.Sub(out.Investing).Add(out.Financing)
	out.ClosingCash = out.OpeningCash.Add(out.NetChange)

	lw := &lineWriter{}
	lw.header("Operating Activities")
	lw.item(ClassIncome, "Net income", m.income.Sub(m.expense), nil)
	lw.item(ClassIncome, "Add back depreciation", m.depreciation, nil)
	lw.item(ClassAsset, "(Increase)/decrease in receivables", m.receivables.Neg(), nil)
	lw.item(ClassLiability, "Increase/(decrease) in payables", m.payables, nil)
	lw.item(ClassLiability, "Loan-financed asset acquisitions", out.Reclassified.Neg(), nil)
	lw.subtotal("Net Cash from Operating Activities", out.Operating)
	lw.spacer()
	lw.header("Investing Activities")
	lw.item(ClassAsset, "Purchase of fixed and investment assets", out.Investing.Neg(), nil)
	lw.subtotal("Net Cash from Investing Activities", out.Investing.Neg())
	lw.spacer()
	lw.header("Financing Activities")
	lw.item(ClassLiability, "Loans and capital raised", m.financing, nil)
	lw.item(ClassLiability, "Loan-financed asset acquisitions", out.Reclassified, nil)
	lw.subtotal("Net Cash from Financing Activities", out.Financing)
	lw.spacer()
	b.writeCashSummary(lw, out)
	out.Lines = lw.finish()
	out.roundTotals()
	return out
}

func (cf *CashFlow) roundTotals() {
	roundTotals(&cf.Operating, &cf.Investing, &cf.Financing, &cf.NetChange,
		&cf.OpeningCash, &cf.ClosingCash, &cf.Reclassified)
}

func (b *Builder) writeCashSummary(w *lineWriter, cf CashFlow) {
	w.total("Net Increase/(Decrease) in Cash", cf.NetChange)
	w.itemAlways(ClassAsset, "Cash at beginning of period", cf.OpeningCash, nil)
	w.final("Cash at end of period", cf.ClosingCash)
}

func (b *Builder) bucket(m *cashMovements, acc shared.Account, sums ledger.Sums) {
	movement := ledger.SignedBalance(acc.Type, sums.Debit, sums.Credit)
	switch acc.Type {
	case shared.AccountTypeRevenue:
		m.income = m.income.Add(movement)
	case shared.AccountTypeExpense:
		m.expense = m.expense.Add(movement)
		if classify.NameHas(acc.Name, "depreciation", "amortisation", "amortization") {
			m.depreciation = m.depreciation.Add(movement)
		}
	case shared.AccountTypeAsset:
		switch {
		case classify.NameHas(acc.Name, receivableKeywords...):
			m.receivables = m.receivables.Add(movement)
		case b.isInvestmentAsset(acc):
			m.investing = m.investing.Add(movement)
		}
	case shared.AccountTypeLiability:
		switch {
		case classify.NameHas(acc.Name, loanKeywords...):
			m.financing = m.financing.Add(movement)
		case classify.NameHas(acc.Name, payableKeywords...):
			m.payables = m.payables.Add(movement)
		}
	case shared.AccountTypeEquity:
		if classify.NameHas(acc.Name, capitalKeywords...) {
			m.financing = m.financing.Add(movement)
		}
	}
}

// isInvestmentAsset matches gross fixed or investment assets. Accumulated
// depreciation is a non-cash movement and never counts.
func (b *Builder) isInvestmentAsset(acc shared.Account) bool {
	if classify.NameHas(acc.Name, "accumulated") {
		return false
	}
	return b.classifier.IsFixedAsset(acc.Code, acc.Type) || classify.NameHas(acc.Name, investmentKeywords...)
}

// openingCash sums bank and cash movements dated before the window start.
func (b *Builder) openingCash(s ledger.Snapshot, w shared.Window, accounts map[int64]shared.Account) decimal.Decimal {
	total := decimal.Zero
	if w.Cumulative {
		return total
	}
	prior, _ := s.Lines(shared.CumulativeTo(w.Start.AddDate(0, 0, -1)))
	for id, sums := range ledger.SumByAccount(prior) {
		acc, ok := accounts[id]
		if !ok || acc.Type != shared.AccountTypeAsset || !classify.NameHas(acc.Name, cashKeywords...) {
			continue
		}
		total = total.Add(sums.Debit.Sub(sums.Credit))
	}
	return total
}

// financedAcquisitions totals, per transaction, the amount where a loan-like
// liability is credited while a fixed or intangible asset is debited.
func (b *Builder) financedAcquisitions(lines []shared.LedgerLine, accounts map[int64]shared.Account) decimal.Decimal {
	type legs struct {
		loanCredit decimal.Decimal
		assetDebit decimal.Decimal
	}
	byTx := make(map[uuid.UUID]*legs)
	order := make([]uuid.UUID, 0)
	for _, line := range lines {
		if line.TransactionID == uuid.Nil {
			continue
		}
		acc, ok := accounts[line.AccountID]
		if !ok {
			continue
		}
		l := byTx[line.TransactionID]
		if l == nil {
			l = &legs{loanCredit: decimal.Zero, assetDebit: decimal.Zero}
			byTx[line.TransactionID] = l
			order = append(order, line.TransactionID)
		}
		switch {
		case acc.Type == shared.AccountTypeLiability && classify.NameHas(acc.Name, loanKeywords...):
			l.loanCredit = l.loanCredit.Add(line.Credit.Sub(line.Debit))
		case acc.Type == shared.AccountTypeAsset && b.isInvestmentAsset(acc):
			l.assetDebit = l.assetDebit.Add(line.Debit.Sub(line.Credit))
		}
	}

	total := decimal.Zero
	for _, id := range order {
		l := byTx[id]
		if !l.loanCredit.IsPositive() || !l.assetDebit.IsPositive() {
			continue
		}
		total = total.Add(decimal.Min(l.loanCredit, l.assetDebit))
	}
	return total
}
