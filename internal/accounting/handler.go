package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
	"github.com/odyssey-erp/ledger-engine/internal/platform/httpx"
)

const requestTimeout = 30 * time.Second

// StatementService is the contract the handler depends on.
type StatementService interface {
	Statements(ctx context.Context, req StatementRequest) (StatementPackage, error)
	Validate(ctx context.Context, companyID int64, start, end time.Time) (reports.IntegrityResult, error)
}

// IntegrityScheduler enqueues a background integrity check.
type IntegrityScheduler interface {
	EnqueueIntegrity(ctx context.Context, companyID int64, start, end time.Time) (string, error)
}

// Handler wires finance report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   StatementService
	scheduler IntegrityScheduler
	validator *validator.Validate
	rateLimit func(http.Handler) http.Handler
}

// NewHandler builds a Handler instance. scheduler may be nil.
func NewHandler(logger *slog.Logger, service StatementService, scheduler IntegrityScheduler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)
	return &Handler{
		logger:    logger,
		service:   service,
		scheduler: scheduler,
		validator: validator.New(),
		rateLimit: limiter,
	}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.Get("/finance/reports/statements", h.handleStatements)
		r.Get("/finance/reports/trial-balance", h.handleTrialBalance)
		r.Get("/finance/reports/pl", h.handleIncomeStatement)
		r.Get("/finance/reports/bs", h.handleBalanceSheet)
		r.Get("/finance/reports/cf", h.handleCashFlow)
		r.Get("/finance/reports/integrity", h.handleIntegrity)
		r.Post("/finance/reports/integrity/jobs", h.handleEnqueueIntegrity)
	})
}

type reportQuery struct {
	CompanyID int64    `validate:"required,gt=0"`
	Start     string   `validate:"required,datetime=2006-01-02"`
	End       string   `validate:"required,datetime=2006-01-02"`
	Statuses  []string `validate:"dive,oneof=posted approved pending"`
}

func (h *Handler) parseRequest(r *http.Request) (StatementRequest, error) {
	q := r.URL.Query()
	companyID, err := strconv.ParseInt(strings.TrimSpace(q.Get("company_id")), 10, 64)
	if err != nil && q.Get("company_id") != "" {
		return StatementRequest{}, fmt.Errorf("%w: company_id must be numeric", httpx.ErrValidation)
	}
	query := reportQuery{
		CompanyID: companyID,
		Start:     strings.TrimSpace(q.Get("start")),
		End:       strings.TrimSpace(q.Get("end")),
	}
	for _, raw := range strings.Split(q.Get("status"), ",") {
		if status := strings.ToLower(strings.TrimSpace(raw)); status != "" {
			query.Statuses = append(query.Statuses, status)
		}
	}
	if err := h.validator.Struct(query); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			sort.Strings(msgs)
			return StatementRequest{}, fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(msgs, "; "))
		}
		return StatementRequest{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	start, _ := time.Parse(time.DateOnly, query.Start)
	end, _ := time.Parse(time.DateOnly, query.End)
	req := StatementRequest{CompanyID: query.CompanyID, Start: start, End: end}
	for _, s := range query.Statuses {
		req.Statuses = append(req.Statuses, shared.LineStatus(s))
	}
	if err := req.Validate(); err != nil {
		return StatementRequest{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return req, nil
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (StatementPackage, bool) {
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return StatementPackage{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	pkg, err := h.service.Statements(ctx, req)
	if err != nil {
		h.respondServiceError(w, "build statements", err)
		return StatementPackage{}, false
	}
	return pkg, true
}

func (h *Handler) handleStatements(w http.ResponseWriter, r *http.Request) {
	if pkg, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, pkg)
	}
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	if pkg, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, pkg.TrialBalance)
	}
}

func (h *Handler) handleIncomeStatement(w http.ResponseWriter, r *http.Request) {
	if pkg, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, pkg.IncomeStatement)
	}
}

func (h *Handler) handleBalanceSheet(w http.ResponseWriter, r *http.Request) {
	if pkg, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, balanceSheetResponse{
			Statement:      pkg.BalanceSheet,
			Reconciliation: pkg.Reconciliation,
			Integrity:      pkg.Integrity,
		})
	}
}

// balanceSheetResponse shows the plug next to the raw postings check.
type balanceSheetResponse struct {
	Statement      reports.BalanceSheet    `json:"statement"`
	Reconciliation reports.Reconciliation  `json:"reconciliation"`
	Integrity      reports.IntegrityResult `json:"integrity"`
}

func (h *Handler) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	if pkg, ok := h.load(w, r); ok {
		httpx.JSON(w, http.StatusOK, pkg.CashFlow)
	}
}

func (h *Handler) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	res, err := h.service.Validate(ctx, req.CompanyID, req.Start, req.End)
	if err != nil {
		h.respondServiceError(w, "validate ledger", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleEnqueueIntegrity(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue not configured")
		return
	}
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := h.scheduler.EnqueueIntegrity(r.Context(), req.CompanyID, req.Start, req.End)
	if err != nil {
		h.respondServiceError(w, "enqueue integrity", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrCompanyRequired), errors.Is(err, shared.ErrInvalidWindow):
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
	case errors.Is(err, shared.ErrSourceUnavailable):
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: ledger data could not be read", httpx.ErrUnavailable))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func rateLimitKey(r *http.Request) (string, error) {
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
