package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/classify"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/cogs"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/ledger"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/policy"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// RepositoryPort abstracts the consistent read of required ledger data.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository lists the chart of accounts and both raw line sources. Lines are
// returned up to end inclusive, plus every line without a date.
type TxRepository interface {
	ListAccounts(ctx context.Context, companyID int64) ([]shared.AccountRecord, error)
	ListJournalLines(ctx context.Context, companyID int64, end time.Time) ([]shared.LedgerLine, error)
	ListTransactionLines(ctx context.Context, companyID int64, end time.Time) ([]shared.LedgerLine, error)
}

// CashFlowSource supplies the precomputed cash flow aggregate. A nil aggregate
// with a nil error means the aggregate is not available for the company.
type CashFlowSource interface {
	CashFlowAggregate(ctx context.Context, companyID int64, start, end time.Time) (*reports.CashFlowAggregate, error)
}

// FixedAssetSource supplies the NBV of opening fixed asset records.
type FixedAssetSource interface {
	OpeningNBV(ctx context.Context, companyID int64, end time.Time) (decimal.Decimal, error)
}

// CatalogSource supplies the item cost catalog.
type CatalogSource interface {
	ItemCatalog(ctx context.Context, companyID int64) ([]cogs.CatalogItem, error)
}

// InvoiceSource supplies sales invoices billed around the period.
type InvoiceSource interface {
	ListInvoices(ctx context.Context, companyID int64, start, end time.Time) ([]cogs.Invoice, error)
}

// ContraLinkSource supplies stored asset to accumulated depreciation links.
// An empty mapping means the company has none and names are matched instead.
type ContraLinkSource interface {
	ContraLinks(ctx context.Context, companyID int64) (classify.ExplicitLinkage, error)
}

// Sources groups the optional collaborators. Nil members are skipped.
type Sources struct {
	CashFlow    CashFlowSource
	FixedAssets FixedAssetSource
	Catalog     CatalogSource
	Invoices    InvoiceSource
	ContraLinks ContraLinkSource
}

// MetricsRecorder receives engine instrumentation.
type MetricsRecorder interface {
	ObserveBuild(statement string, d time.Duration)
	AddWarnings(warnings []shared.Warning)
	RecordImbalance(companyID int64)
}

// StatementRequest identifies one reporting request.
type StatementRequest struct {
	CompanyID int64
	Start     time.Time
	End       time.Time
	Statuses  []shared.LineStatus
}

// Window returns the period window of the request.
func (r StatementRequest) Window() shared.Window {
	return shared.PeriodWindow(r.Start, r.End)
}

// Validate checks the request bounds.
func (r StatementRequest) Validate() error {
	if r.CompanyID <= 0 {
		return shared.ErrCompanyRequired
	}
	return r.Window().Validate()
}

// StatementPackage holds every statement derived from one snapshot.
type StatementPackage struct {
	CompanyID       int64                    `json:"company_id"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	GeneratedAt     time.Time                `json:"generated_at"`
	TrialBalance    reports.TrialBalanceView `json:"trial_balance"`
	IncomeStatement reports.IncomeStatement  `json:"income_statement"`
	BalanceSheet    reports.BalanceSheet     `json:"balance_sheet"`
	CashFlow        reports.CashFlow         `json:"cash_flow"`
	Integrity       reports.IntegrityResult  `json:"integrity"`
	Reconciliation  reports.Reconciliation   `json:"reconciliation"`
	Warnings        []shared.Warning         `json:"warnings,omitempty"`
}

// Service derives financial statements from ledger data.
type Service struct {
	repo       RepositoryPort
	sources    Sources
	policy     policy.Policy
	aggregator *ledger.Aggregator
	builder    *reports.Builder
	metrics    MetricsRecorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the statement service.
func NewService(repo RepositoryPort, sources Sources, p policy.Policy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		sources:    sources,
		policy:     p,
		aggregator: ledger.NewAggregator(p),
		builder:    reports.NewBuilder(p, nil),
		logger:     logger,
		now:        time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithMetrics attaches an instrumentation sink.
func (s *Service) WithMetrics(m MetricsRecorder) {
	s.metrics = m
}

// optionalData is what the optional collaborators returned for one request.
type optionalData struct {
	aggregate  *reports.CashFlowAggregate
	openingNBV decimal.Decimal
	catalog    []cogs.CatalogItem
	invoices   []cogs.Invoice
	links      classify.ExplicitLinkage
	warnings   []shared.Warning
}

// Statements fetches once and derives every statement from the same snapshot.
func (s *Service) Statements(ctx context.Context, req StatementRequest) (StatementPackage, error) {
	if err := req.Validate(); err != nil {
		return StatementPackage{}, err
	}
	snap, opt, err := s.fetch(ctx, req)
	if err != nil {
		return StatementPackage{}, err
	}

	period := req.Window()
	periodTB, err := s.aggregator.TrialBalance(snap, period)
	if err != nil {
		return StatementPackage{}, err
	}
	cumulativeTB, err := s.aggregator.TrialBalance(snap, shared.CumulativeTo(req.End))
	if err != nil {
		return StatementPackage{}, err
	}
	openingTB, err := s.aggregator.TrialBalance(snap, shared.CumulativeTo(req.Start.AddDate(0, 0, -1)))
	if err != nil {
		return StatementPackage{}, err
	}
	estimate := cogs.NewEstimator(opt.catalog).Estimate(opt.invoices, period)

	pkg := StatementPackage{
		CompanyID:   req.CompanyID,
		Start:       req.Start,
		End:         req.End,
		GeneratedAt: snap.FetchedAt,
	}
	builder := s.builder
	if len(opt.links) > 0 {
		builder = reports.NewBuilder(s.policy, opt.links)
	}
	// Builders are pure and cannot fail.
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		defer s.observe("trial_balance", time.Now())
		pkg.TrialBalance = reports.BuildTrialBalance(periodTB, &openingTB)
	}()
	go func() {
		defer wg.Done()
		defer s.observe("income_statement", time.Now())
		pkg.IncomeStatement = builder.BuildIncomeStatement(periodTB, estimate.Amount)
	}()
	go func() {
		defer wg.Done()
		defer s.observe("balance_sheet", time.Now())
		pkg.BalanceSheet = builder.BuildBalanceSheet(cumulativeTB, opt.openingNBV)
	}()
	go func() {
		defer wg.Done()
		defer s.observe("cash_flow", time.Now())
		pkg.CashFlow = builder.BuildCashFlow(snap, period, opt.aggregate)
	}()
	wg.Wait()

	periodLines, _ := snap.Lines(period)
	pkg.Integrity = reports.CheckIntegrity(req.CompanyID, periodLines)
	cumulativeLines, _ := snap.Lines(shared.CumulativeTo(req.End))
	rec, recWarnings := reports.Reconcile(pkg.BalanceSheet, reports.CheckIntegrity(req.CompanyID, cumulativeLines))
	pkg.Reconciliation = rec

	pkg.Warnings = append(pkg.Warnings, opt.warnings...)
	pkg.Warnings = append(pkg.Warnings, periodTB.Warnings...)
	if pkg.IncomeStatement.UsedFallbackCOGS {
		pkg.Warnings = append(pkg.Warnings, estimate.Warnings...)
	}
	pkg.Warnings = append(pkg.Warnings, pkg.BalanceSheet.Warnings...)
	pkg.Warnings = append(pkg.Warnings, pkg.CashFlow.Warnings...)
	if w, ok := pkg.Integrity.Warning(); ok {
		pkg.Warnings = append(pkg.Warnings, w)
	}
	pkg.Warnings = append(pkg.Warnings, recWarnings...)

	if !pkg.Integrity.IsBalanced || rec.Disagree {
		s.logger.Warn("ledger imbalance detected",
			slog.Int64("company_id", req.CompanyID),
			slog.String("raw_difference", pkg.Integrity.Difference.StringFixed(2)),
			slog.String("plug", rec.Plug.StringFixed(2)),
			slog.Bool("plug_disagrees", rec.Disagree),
		)
		if s.metrics != nil {
			s.metrics.RecordImbalance(req.CompanyID)
		}
	}
	if s.metrics != nil {
		s.metrics.AddWarnings(pkg.Warnings)
	}
	s.logger.Info("statements built",
		slog.Int64("company_id", req.CompanyID),
		slog.String("start", req.Start.Format(time.DateOnly)),
		slog.String("end", req.End.Format(time.DateOnly)),
		slog.Int("lines", periodTB.LineCount),
		slog.Int("warnings", len(pkg.Warnings)),
		slog.String("cash_flow_source", string(pkg.CashFlow.Source)),
	)
	return pkg, nil
}

// Validate runs the raw debit/credit check over the period lines. An imbalance
// is reported in the result, never as an error.
func (s *Service) Validate(ctx context.Context, companyID int64, start, end time.Time) (reports.IntegrityResult, error) {
	req := StatementRequest{CompanyID: companyID, Start: start, End: end}
	if err := req.Validate(); err != nil {
		return reports.IntegrityResult{}, err
	}
	snap, err := s.Snapshot(ctx, req)
	if err != nil {
		return reports.IntegrityResult{}, err
	}
	lines, _ := snap.Lines(req.Window())
	res := reports.CheckIntegrity(companyID, lines)
	if !res.IsBalanced {
		s.logger.Warn("raw ledger imbalance",
			slog.Int64("company_id", companyID),
			slog.String("difference", res.Difference.StringFixed(2)),
			slog.Int("lines", res.LineCount),
		)
		if s.metrics != nil {
			s.metrics.RecordImbalance(companyID)
		}
	}
	return res, nil
}

// Snapshot reads the chart of accounts and both line sources in one consistent read.
func (s *Service) Snapshot(ctx context.Context, req StatementRequest) (ledger.Snapshot, error) {
	if s.repo == nil {
		return ledger.Snapshot{}, fmt.Errorf("%w: repository not configured", shared.ErrSourceUnavailable)
	}
	snap := ledger.Snapshot{CompanyID: req.CompanyID, Statuses: req.Statuses}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		records, err := tx.ListAccounts(ctx, req.CompanyID)
		if err != nil {
			return fmt.Errorf("%w: accounts: %w", shared.ErrSourceUnavailable, err)
		}
		snap.Accounts = classify.ClassifyAll(records)
		if snap.Journal, err = tx.ListJournalLines(ctx, req.CompanyID, req.End); err != nil {
			return fmt.Errorf("%w: general ledger: %w", shared.ErrSourceUnavailable, err)
		}
		if snap.Transactions, err = tx.ListTransactionLines(ctx, req.CompanyID, req.End); err != nil {
			return fmt.Errorf("%w: transaction entries: %w", shared.ErrSourceUnavailable, err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, shared.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", shared.ErrSourceUnavailable, err)
		}
		return ledger.Snapshot{}, err
	}
	snap.FetchedAt = s.now()
	return snap, nil
}

// fetch reads the required snapshot and every optional collaborator concurrently.
// Optional failures degrade to empty values plus a warning.
func (s *Service) fetch(ctx context.Context, req StatementRequest) (ledger.Snapshot, optionalData, error) {
	g, gctx := errgroup.WithContext(ctx)
	var snap ledger.Snapshot
	var cashErr, assetErr, catalogErr, invoiceErr, linkErr error
	opt := optionalData{openingNBV: decimal.Zero}
	g.Go(func() error {
		var err error
		snap, err = s.Snapshot(gctx, req)
		return err
	})
	if src := s.sources.CashFlow; src != nil {
		g.Go(func() error {
			opt.aggregate, cashErr = src.CashFlowAggregate(gctx, req.CompanyID, req.Start, req.End)
			return nil
		})
	}
	if src := s.sources.FixedAssets; src != nil {
		g.Go(func() error {
			opt.openingNBV, assetErr = src.OpeningNBV(gctx, req.CompanyID, req.End)
			return nil
		})
	}
	if src := s.sources.Catalog; src != nil {
		g.Go(func() error {
			opt.catalog, catalogErr = src.ItemCatalog(gctx, req.CompanyID)
			return nil
		})
	}
	if src := s.sources.Invoices; src != nil {
		g.Go(func() error {
			opt.invoices, invoiceErr = src.ListInvoices(gctx, req.CompanyID, req.Start, req.End)
			return nil
		})
	}
	if src := s.sources.ContraLinks; src != nil {
		g.Go(func() error {
			opt.links, linkErr = src.ContraLinks(gctx, req.CompanyID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ledger.Snapshot{}, optionalData{}, err
	}
	if err := ctx.Err(); err != nil {
		return ledger.Snapshot{}, optionalData{}, err
	}

	if cashErr != nil {
		opt.aggregate = nil
		opt.warnings = append(opt.warnings, s.degraded(req.CompanyID, "cash flow aggregate", cashErr))
	}
	if assetErr != nil {
		opt.openingNBV = decimal.Zero
		opt.warnings = append(opt.warnings, s.degraded(req.CompanyID, "opening fixed assets", assetErr))
	}
	if catalogErr != nil {
		opt.catalog = nil
		opt.warnings = append(opt.warnings, s.degraded(req.CompanyID, "item catalog", catalogErr))
	}
	if invoiceErr != nil {
		opt.invoices = nil
		opt.warnings = append(opt.warnings, s.degraded(req.CompanyID, "invoices", invoiceErr))
	}
	if linkErr != nil {
		opt.links = nil
		opt.warnings = append(opt.warnings, s.degraded(req.CompanyID, "contra links", linkErr))
	}
	return snap, opt, nil
}

func (s *Service) degraded(companyID int64, source string, err error) shared.Warning {
	s.logger.Warn("optional source unavailable",
		slog.Int64("company_id", companyID),
		slog.String("source", source),
		slog.Any("error", err),
	)
	return shared.Warning{
		Kind:    shared.WarningDegraded,
		Code:    shared.WarnCollaboratorFailed,
		Message: fmt.Sprintf("%s unavailable: %v", source, err),
	}
}

func (s *Service) observe(statement string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveBuild(statement, time.Since(start))
	}
}
