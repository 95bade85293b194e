package reports

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/classify"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
	_ "github.com/odyssey-erp/ledger-engine/testing"
)

var (
	dec15 = time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)
	dec31 = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	jan1  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jan15 = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	jan31 = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	january = shared.PeriodWindow(jan1, jan31)
	toDate  = shared.CumulativeTo(jan31)
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func post(account int64, debit, credit string, date time.Time, tx uuid.UUID) shared.LedgerLine {
	return shared.LedgerLine{
		AccountID:     account,
		Debit:         d(debit),
		Credit:        d(credit),
		Date:          &date,
		Status:        shared.LineStatusPosted,
		TransactionID: tx,
	}
}

// entry posts in mid January without a transaction id.
func entry(account int64, debit, credit string) shared.LedgerLine {
	return post(account, debit, credit, jan15, uuid.Nil)
}

func acct(id int64, code, name string, t shared.AccountType) shared.Account {
	return shared.Account{ID: id, CompanyID: 1, Code: code, Name: name, Type: t, IsActive: true}
}

func snapshot(accounts []shared.Account, lines ...shared.LedgerLine) ledger.Snapshot {
	return ledger.Snapshot{CompanyID: 1, Accounts: accounts, Journal: lines}
}

func trialBalance(t *testing.T, s ledger.Snapshot, w shared.Window) ledger.TrialBalance {
	t.Helper()
	tb, err := ledger.NewAggregator(policy.Default()).TrialBalance(s, w)
	if err != nil {
		t.Fatalf("trial balance: %v", err)
	}
	return tb
}

func builder() *Builder {
	return NewBuilder(policy.Default(), nil)
}

func findLine(lines []Line, label string) (Line, int) {
	for i, ln := range lines {
		if ln.Label == label {
			return ln, i
		}
	}
	return Line{}, -1
}

func countLabel(lines []Line, label string) int {
	n := 0
	for _, ln := range lines {
		if ln.Label == label {
			n++
		}
	}
	return n
}

func requireAmount(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("%s: expected %s got %s", what, want, got)
	}
}

func requireLine(t *testing.T, lines []Line, label, want string) Line {
	t.Helper()
	ln, idx := findLine(lines, label)
	if idx < 0 {
		t.Fatalf("expected line %q in %+v", label, lines)
	}
	requireAmount(t, label, ln.Amount, want)
	return ln
}

func TestScenarioBNetBookValue(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1600", "Vehicles", shared.AccountTypeAsset),
		acct(2, "1610", "Accumulated Depreciation – Vehicles", shared.AccountTypeAsset),
		acct(3, "3000", "Share Capital", shared.AccountTypeEquity),
	},
		entry(1, "10000", "0"),
		entry(2, "0", "4000"),
		entry(3, "0", "6000"),
	)
	bs := builder().BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)

	ln := requireLine(t, bs.Lines, "Vehicles", "6000")
	if ln.AccountID == nil || *ln.AccountID != 1 {
		t.Fatalf("expected drill-down to account 1, got %v", ln.AccountID)
	}
	requireAmount(t, "non-current", bs.TotalNonCurrentAssets, "6000")
	if _, idx := findLine(bs.Lines, "Accumulated Depreciation – Vehicles"); idx >= 0 {
		t.Fatalf("accumulated depreciation must not be presented as an asset")
	}
	if len(bs.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", bs.Warnings)
	}
	requireAmount(t, "plug", bs.Plug, "0")
	if !bs.Check.IsBalanced {
		t.Fatalf("expected balanced sheet: %+v", bs.Check)
	}
}

func TestNetBookValueFloorsAtZero(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1600", "Vehicles", shared.AccountTypeAsset),
		acct(2, "1610", "Accumulated Depreciation - Vehicles", shared.AccountTypeAsset),
	},
		entry(1, "1000", "0"),
		entry(2, "0", "1500"),
	)
	bs := builder().BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)
	requireAmount(t, "non-current", bs.TotalNonCurrentAssets, "0")
	for _, ln := range bs.Lines {
		if ln.Kind == KindItem && ln.Class == ClassAsset && ln.Amount.IsNegative() {
			t.Fatalf("negative asset line %+v", ln)
		}
	}
}

func TestUnmatchedContraWarns(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1600", "Vehicles", shared.AccountTypeAsset),
		acct(2, "1710", "Accumulated Depreciation - Buildings", shared.AccountTypeAsset),
	},
		entry(1, "1000", "0"),
		entry(2, "0", "300"),
	)
	bs := builder().BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)
	requireLine(t, bs.Lines, "Vehicles", "1000")
	if len(bs.Warnings) != 1 || bs.Warnings[0].Code != shared.WarnUnmatchedContra {
		t.Fatalf("expected unmatched contra warning, got %+v", bs.Warnings)
	}
	if bs.Warnings[0].AccountID == nil || *bs.Warnings[0].AccountID != 2 {
		t.Fatalf("warning must reference the contra account")
	}
}

func TestExplicitLinkageReplacesNameMatching(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1600", "Vehicles", shared.AccountTypeAsset),
		acct(2, "1610", "Accumulated Depreciation - Fleet", shared.AccountTypeAsset),
	},
		entry(1, "10000", "0"),
		entry(2, "0", "4000"),
	)
	b := NewBuilder(policy.Default(), classify.ExplicitLinkage{1: {2}})
	bs := b.BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)
	requireLine(t, bs.Lines, "Vehicles", "6000")
	if len(bs.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", bs.Warnings)
	}
}

func TestOpeningNetBookValueAdded(t *testing.T) {
	s := snapshot([]shared.Account{acct(1, "1600", "Vehicles", shared.AccountTypeAsset)}, entry(1, "100", "0"))
	bs := builder().BuildBalanceSheet(trialBalance(t, s, toDate), d("250"))
	requireLine(t, bs.Lines, LabelOpeningNBV, "250")
	requireAmount(t, "non-current", bs.TotalNonCurrentAssets, "350")
}

func TestScenarioCFallbackCostOfSales(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1100", "Bank", shared.AccountTypeAsset),
		acct(2, "4000", "Sales", shared.AccountTypeRevenue),
		acct(3, "5220", "Loss on Sale of Assets", shared.AccountTypeExpense),
	},
		entry(1, "5000", "0"),
		entry(2, "0", "5000"),
	)
	is := builder().BuildIncomeStatement(trialBalance(t, s, january), d("1200"))

	if !is.UsedFallbackCOGS {
		t.Fatalf("expected fallback cost of sales")
	}
	if n := countLabel(is.Lines, LabelEstimatedCostOfSales); n != 1 {
		t.Fatalf("expected exactly one estimated line, got %d", n)
	}
	requireLine(t, is.Lines, LabelEstimatedCostOfSales, "1200")
	requireAmount(t, "revenue", is.TotalRevenue, "5000")
	requireAmount(t, "gross profit", is.GrossProfit, "3800")
	requireAmount(t, "net profit", is.NetProfit, "3800")
	if _, idx := findLine(is.Lines, "Loss on Sale of Assets"); idx >= 0 {
		t.Fatalf("pinned disposal lines belong to real cost of sales only")
	}
}

func TestIncomeStatementRealCOGSAndPins(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "4000", "Sales", shared.AccountTypeRevenue),
		acct(2, "4100", "Service Income", shared.AccountTypeRevenue),
		acct(3, "4200", "Other Gains", shared.AccountTypeRevenue),
		acct(4, "5000", "Cost of Goods Sold", shared.AccountTypeExpense),
		acct(5, "5210", "Gain on Sale of Assets", shared.AccountTypeRevenue),
		acct(6, "5220", "Loss on Sale of Assets", shared.AccountTypeExpense),
		acct(7, "6000", "Rent", shared.AccountTypeExpense),
		acct(8, "6900", "Impairment Loss", shared.AccountTypeExpense),
	},
		entry(1, "0", "1000"),
		entry(2, "0", "300"),
		entry(3, "0", "50"),
		entry(4, "700", "0"),
		entry(5, "0", "100"),
		entry(7, "200", "0"),
		entry(8, "40", "0"),
	)
	is := builder().BuildIncomeStatement(trialBalance(t, s, january), d("1200"))

	if is.UsedFallbackCOGS {
		t.Fatalf("estimate must not be used alongside real cost of sales")
	}
	if _, idx := findLine(is.Lines, LabelEstimatedCostOfSales); idx >= 0 {
		t.Fatalf("unexpected estimated line")
	}
	requireAmount(t, "revenue", is.TotalRevenue, "1350")
	requireAmount(t, "cost of sales", is.TotalCostOfSales, "600")
	requireAmount(t, "gross profit", is.GrossProfit, "750")
	requireAmount(t, "opex", is.TotalOperatingExpenses, "240")
	requireAmount(t, "net profit", is.NetProfit, "510")

	requireLine(t, is.Lines, "Gain on Sale of Assets", "-100")
	requireLine(t, is.Lines, "Loss on Sale of Assets", "0")

	order := []string{
		"Sales", "Other Gains", "Service Income",
		"Gain on Sale of Assets", "Loss on Sale of Assets", "Cost of Goods Sold",
		"Impairment Loss", "Rent",
	}
	prev := -1
	for _, label := range order {
		_, idx := findLine(is.Lines, label)
		if idx <= prev {
			t.Fatalf("line %q out of order (index %d after %d)", label, idx, prev)
		}
		prev = idx
	}
	last := is.Lines[len(is.Lines)-1]
	if last.Kind != KindFinal || last.Label != LabelNetProfit {
		t.Fatalf("expected final net profit line, got %+v", last)
	}
}

func TestScenarioDEquityPlug(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1100", "Bank", shared.AccountTypeAsset),
		acct(2, "2000", "Accounts Payable", shared.AccountTypeLiability),
		acct(3, "3000", "Share Capital", shared.AccountTypeEquity),
	},
		entry(1, "9000", "0"),
		entry(2, "0", "2000"),
		entry(3, "0", "6000"),
	)
	bs := builder().BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)

	requireAmount(t, "assets", bs.TotalAssets, "9000")
	requireAmount(t, "liabilities", bs.TotalLiabilities, "2000")
	requireAmount(t, "raw equity", bs.RawEquity, "6000")
	requireAmount(t, "plug", bs.Plug, "1000")
	requireAmount(t, "equity", bs.TotalEquity, "7000")
	requireLine(t, bs.Lines, LabelRetainedAdjusted, "1000")
	if !bs.Check.IsBalanced {
		t.Fatalf("expected balanced check: %+v", bs.Check)
	}
	last := bs.Lines[len(bs.Lines)-1]
	if last.Kind != KindBalanceCheck {
		t.Fatalf("expected trailing balance check line, got %+v", last)
	}

	lines, _ := s.Lines(toDate)
	raw := CheckIntegrity(1, lines)
	if raw.IsBalanced {
		t.Fatalf("raw postings are unbalanced by 1000")
	}
	requireAmount(t, "raw difference", raw.Difference, "1000")
	rec, warnings := Reconcile(bs, raw)
	if !rec.Disagree {
		t.Fatalf("expected disagreement between plug and raw check")
	}
	if len(warnings) != 1 || warnings[0].Code != shared.WarnPlugDisagreement {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
}

func TestBalanceSheetOverdraftVATAndExclusions(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1100", "Bank", shared.AccountTypeAsset),
		acct(2, "1200", "Accounts Receivable", shared.AccountTypeAsset),
		acct(3, "1400", "VAT Input", shared.AccountTypeAsset),
		acct(4, "1150", "Clearing", shared.AccountTypeAsset),
		acct(5, "2100", "VAT Output", shared.AccountTypeLiability),
		acct(6, "2600", "Bank Loan", shared.AccountTypeLiability),
		acct(7, "2300", "Mortgage Payable", shared.AccountTypeLiability),
		acct(8, "2150", "Payroll Clearing", shared.AccountTypeLiability),
		acct(9, "2000", "Accounts Payable", shared.AccountTypeLiability),
		acct(10, "3000", "Share Capital", shared.AccountTypeEquity),
	},
		entry(1, "0", "500"),
		entry(2, "800", "0"),
		entry(3, "200", "0"),
		entry(4, "70", "0"),
		entry(5, "0", "300"),
		entry(6, "0", "1000"),
		entry(7, "0", "400"),
		entry(8, "0", "90"),
		entry(9, "0", "100"),
		entry(10, "0", "50"),
	)
	bs := builder().BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)

	requireAmount(t, "current assets", bs.TotalCurrentAssets, "1000")
	requireAmount(t, "non-current liabilities", bs.TotalNonCurrentLiabilities, "1400")
	requireAmount(t, "current liabilities", bs.TotalCurrentLiabilities, "900")
	requireLine(t, bs.Lines, LabelVATReceivable, "200")
	requireLine(t, bs.Lines, LabelVATPayable, "300")
	overdraft := requireLine(t, bs.Lines, LabelBankOverdraft, "500")
	if overdraft.Class != ClassLiability {
		t.Fatalf("overdraft must be a liability, got %s", overdraft.Class)
	}
	for _, label := range []string{"Bank", "Clearing", "Payroll Clearing", "VAT Input", "VAT Output"} {
		if _, idx := findLine(bs.Lines, label); idx >= 0 {
			t.Fatalf("line %q should not be presented", label)
		}
	}
	requireAmount(t, "plug", bs.Plug, "-1350")
	if !bs.Check.IsBalanced {
		t.Fatalf("expected balanced check: %+v", bs.Check)
	}
}

func TestNegativeVATReceivableWarns(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1200", "Accounts Receivable", shared.AccountTypeAsset),
		acct(2, "1400", "VAT Input", shared.AccountTypeAsset),
	},
		entry(1, "100", "0"),
		entry(2, "0", "50"),
	)
	bs := builder().BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)
	if _, idx := findLine(bs.Lines, LabelVATReceivable); idx >= 0 {
		t.Fatalf("negative VAT receivable must not be presented")
	}
	requireAmount(t, "current assets", bs.TotalCurrentAssets, "100")
	if len(bs.Warnings) != 1 || bs.Warnings[0].Code != shared.WarnNegativeVAT {
		t.Fatalf("expected negative VAT warning, got %+v", bs.Warnings)
	}
}

func TestBalanceSheetEquationAfterPlug(t *testing.T) {
	accounts := []shared.Account{
		acct(1, "1100", "Bank", shared.AccountTypeAsset),
		acct(2, "1300", "Inventory", shared.AccountTypeAsset),
		acct(3, "1600", "Plant", shared.AccountTypeAsset),
		acct(4, "1610", "Accumulated Depreciation Plant", shared.AccountTypeAsset),
		acct(5, "2000", "Trade Payables", shared.AccountTypeLiability),
		acct(6, "2700", "Long Term Loan", shared.AccountTypeLiability),
		acct(7, "3000", "Owner Capital", shared.AccountTypeEquity),
		acct(8, "4000", "Sales", shared.AccountTypeRevenue),
	}
	cases := map[string][]shared.LedgerLine{
		"balanced": {
			entry(1, "1000", "0"), entry(7, "0", "1000"),
			entry(3, "5000", "0"), entry(6, "0", "5000"),
		},
		"unbalanced": {
			entry(1, "123.45", "0"), entry(2, "77.77", "0"), entry(5, "0", "10.01"),
		},
		"floored nbv": {
			entry(3, "100", "0"), entry(4, "0", "900"), entry(8, "0", "33.333"),
		},
		"overdrawn": {
			entry(1, "0", "250.5"), entry(5, "250.5", "0"), entry(7, "0", "12"),
		},
	}
	for name, lines := range cases {
		t.Run(name, func(t *testing.T) {
			bs := builder().BuildBalanceSheet(trialBalance(t, snapshot(accounts, lines...), toDate), decimal.Zero)
			if !bs.Check.IsBalanced {
				t.Fatalf("equation does not hold: %+v", bs.Check)
			}
		})
	}
}

func TestTotalsRoundedLikeTheirLines(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "4000", "Sales", shared.AccountTypeRevenue),
		acct(2, "4100", "Services", shared.AccountTypeRevenue),
		acct(3, "4300", "Consulting", shared.AccountTypeRevenue),
		acct(4, "1100", "Bank", shared.AccountTypeAsset),
		acct(5, "3000", "Share Capital", shared.AccountTypeEquity),
	},
		entry(1, "0", "0.334"),
		entry(2, "0", "0.334"),
		entry(3, "0", "0.334"),
		entry(4, "100.006", "0"),
		entry(5, "0", "99.004"),
	)
	b := builder()

	is := b.BuildIncomeStatement(trialBalance(t, s, january), decimal.Zero)
	requireLine(t, is.Lines, "Sales", "0.33")
	for label, total := range map[string]decimal.Decimal{
		"Total Revenue": is.TotalRevenue,
		"Gross Profit":  is.GrossProfit,
		LabelNetProfit:  is.NetProfit,
	} {
		requireLine(t, is.Lines, label, total.String())
		requireAmount(t, label, total, "1")
	}

	bs := b.BuildBalanceSheet(trialBalance(t, s, toDate), decimal.Zero)
	requireAmount(t, "total assets", bs.TotalAssets, "100.01")
	requireAmount(t, "plug", bs.Plug, "1")
	requireAmount(t, "check difference", bs.Check.Difference, "0")
	for label, total := range map[string]decimal.Decimal{
		"Total Current Assets": bs.TotalCurrentAssets,
		"Total Assets":         bs.TotalAssets,
		LabelRetainedAdjusted:  bs.Plug,
		"Total Equity":         bs.TotalEquity,
		LabelTotalLiabEquity:   bs.Check.TotalLiabPlusEquity,
		LabelBalanceCheck:      bs.Check.Difference,
	} {
		requireLine(t, bs.Lines, label, total.String())
	}

	cf := b.BuildCashFlow(s, january, nil)
	requireAmount(t, "closing cash", cf.ClosingCash, "100.01")
	for label, total := range map[string]decimal.Decimal{
		"Net Cash from Operating Activities": cf.Operating,
		"Net Cash from Financing Activities": cf.Financing,
		"Net Increase/(Decrease) in Cash":    cf.NetChange,
		"Cash at end of period":              cf.ClosingCash,
	} {
		requireLine(t, cf.Lines, label, total.String())
	}
}

func TestCashFlowPrefersAggregate(t *testing.T) {
	agg := &CashFlowAggregate{
		Operating:   d("500"),
		Investing:   d("200"),
		Financing:   d("100"),
		OpeningCash: d("1000"),
		ClosingCash: d("1400"),
	}
	cf := builder().BuildCashFlow(snapshot(nil), january, agg)
	if cf.Source != CashFlowFromAggregate {
		t.Fatalf("expected aggregate source, got %s", cf.Source)
	}
	requireAmount(t, "net change", cf.NetChange, "400")
	requireLine(t, cf.Lines, "Cash at end of period", "1400")
	if len(cf.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", cf.Warnings)
	}

	agg.ClosingCash = d("1500")
	cf = builder().BuildCashFlow(snapshot(nil), january, agg)
	if len(cf.Warnings) != 1 || cf.Warnings[0].Code != shared.WarnCashMismatch {
		t.Fatalf("expected mismatch warning, got %+v", cf.Warnings)
	}
}

func cashFlowFixture() ledger.Snapshot {
	accounts := []shared.Account{
		acct(1, "1100", "Bank", shared.AccountTypeAsset),
		acct(2, "1200", "Accounts Receivable", shared.AccountTypeAsset),
		acct(3, "1600", "Equipment", shared.AccountTypeAsset),
		acct(4, "2000", "Accounts Payable", shared.AccountTypeLiability),
		acct(5, "2600", "Bank Loan", shared.AccountTypeLiability),
		acct(6, "3000", "Share Capital", shared.AccountTypeEquity),
		acct(7, "4000", "Sales", shared.AccountTypeRevenue),
		acct(8, "6000", "Rent", shared.AccountTypeExpense),
		acct(9, "6100", "Depreciation Expense", shared.AccountTypeExpense),
		acct(10, "1610", "Accumulated Depreciation - Equipment", shared.AccountTypeAsset),
	}
	tx := func() uuid.UUID { return uuid.New() }
	opening, sale, receipt, rent, depreciation, purchase, raise := tx(), tx(), tx(), tx(), tx(), tx(), tx()
	return snapshot(accounts,
		post(1, "1000", "0", dec15, opening), post(6, "0", "1000", dec15, opening),
		post(2, "600", "0", jan15, sale), post(7, "0", "600", jan15, sale),
		post(1, "400", "0", jan15, receipt), post(2, "0", "400", jan15, receipt),
		post(8, "150", "0", jan15, rent), post(4, "0", "150", jan15, rent),
		post(9, "50", "0", jan15, depreciation), post(10, "0", "50", jan15, depreciation),
		post(3, "2000", "0", jan15, purchase), post(5, "0", "2000", jan15, purchase),
		post(1, "500", "0", jan15, raise), post(6, "0", "500", jan15, raise),
	)
}

func TestCashFlowFallbackWithReclassification(t *testing.T) {
	cf := builder().BuildCashFlow(cashFlowFixture(), january, nil)
	if cf.Source != CashFlowComputed {
		t.Fatalf("expected computed source, got %s", cf.Source)
	}
	requireAmount(t, "opening", cf.OpeningCash, "1000")
	requireAmount(t, "reclassified", cf.Reclassified, "2000")
	requireAmount(t, "operating", cf.Operating, "-1600")
	requireAmount(t, "investing", cf.Investing, "2000")
	requireAmount(t, "financing", cf.Financing, "4500")
	requireAmount(t, "net change", cf.NetChange, "900")
	requireAmount(t, "closing", cf.ClosingCash, "1900")
}

func TestCashFlowFallbackWithoutReclassification(t *testing.T) {
	p := policy.Default()
	p.ReclassifyFinancedPurchases = false
	cf := NewBuilder(p, nil).BuildCashFlow(cashFlowFixture(), january, nil)
	requireAmount(t, "reclassified", cf.Reclassified, "0")
	requireAmount(t, "operating", cf.Operating, "400")
	requireAmount(t, "financing", cf.Financing, "2500")
	// Reclassification never changes the net movement in cash.
	requireAmount(t, "net change", cf.NetChange, "900")
	requireAmount(t, "closing", cf.ClosingCash, "1900")
}

func TestCheckIntegrity(t *testing.T) {
	balanced := CheckIntegrity(1, []shared.LedgerLine{entry(1, "10.005", "0"), entry(2, "0", "10")})
	if !balanced.IsBalanced {
		t.Fatalf("half-cent difference should be within tolerance: %+v", balanced)
	}
	if _, ok := balanced.Warning(); ok {
		t.Fatalf("balanced result must not warn")
	}

	off := CheckIntegrity(1, []shared.LedgerLine{entry(1, "100", "0"), entry(2, "0", "220")})
	if off.IsBalanced || off.LineCount != 2 {
		t.Fatalf("unexpected result: %+v", off)
	}
	requireAmount(t, "difference", off.Difference, "-120")
	w, ok := off.Warning()
	if !ok || w.Kind != shared.WarningImbalance || w.Code != shared.WarnRawImbalance {
		t.Fatalf("expected imbalance warning, got %+v", w)
	}
}

func TestBuildTrialBalanceView(t *testing.T) {
	s := snapshot([]shared.Account{
		acct(1, "1000", "Cash", shared.AccountTypeAsset),
		acct(2, "1001", "Bank", shared.AccountTypeAsset),
		acct(3, "2000", "Accounts Payable", shared.AccountTypeLiability),
		acct(4, "3000", "Dormant Reserve", shared.AccountTypeEquity),
	},
		post(1, "1000", "0", dec15, uuid.Nil),
		post(2, "500", "0", dec15, uuid.Nil),
		entry(1, "200", "150"),
		entry(2, "100", "50"),
		entry(3, "10", "400"),
	)
	period := trialBalance(t, s, january)
	opening := trialBalance(t, s, shared.CumulativeTo(dec31))

	tb := BuildTrialBalance(period, &opening)
	if len(tb.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(tb.Groups))
	}
	requireAmount(t, "total debit", tb.TotalDebit, "310")
	requireAmount(t, "total credit", tb.TotalCredit, "600")
	requireAmount(t, "difference", tb.Difference, "-290")
	if tb.IsBalanced {
		t.Fatalf("expected unbalanced period")
	}
	cash := tb.Groups[0].Accounts[0]
	if cash.Code != "1000" {
		t.Fatalf("unexpected first account %s", cash.Code)
	}
	requireAmount(t, "cash opening", cash.Opening, "1000")
	requireAmount(t, "cash closing", cash.Closing, "1050")
	payables := tb.Groups[1].Accounts[0]
	requireAmount(t, "payables closing", payables.Closing, "390")
}
