package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-engine/internal/accounting"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-engine/internal/observability"
	"github.com/odyssey-erp/ledger-engine/jobs"
)

type emptyStatements struct{}

func (emptyStatements) Statements(_ context.Context, req accounting.StatementRequest) (accounting.StatementPackage, error) {
	return accounting.StatementPackage{CompanyID: req.CompanyID}, nil
}

func (emptyStatements) Validate(_ context.Context, companyID int64, _, _ time.Time) (reports.IntegrityResult, error) {
	return reports.IntegrityResult{CompanyID: companyID, IsBalanced: true}, nil
}

func newTestRouter() (http.Handler, *observability.Metrics) {
	metrics := observability.NewMetrics()
	return NewRouter(RouterParams{
		Config:            &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second},
		AccountingHandler: accounting.NewHandler(nil, emptyStatements{}, nil),
		JobHandler:        jobs.NewHandler(nil, nil),
		Metrics:           metrics,
	}), metrics
}

func TestRouterServesReportsWithSecureHeaders(t *testing.T) {
	router, _ := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/finance/reports/integrity?company_id=3&start=2025-01-01&end=2025-01-31", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.Contains(t, rec.Body.String(), `"company_id":3`)
}

func TestRouterExposesHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `ledger_http_requests_total{code="200",route="/healthz"} 1`), rec.Body.String())
}

func TestRouterNotFoundIsProblemJSON(t *testing.T) {
	router, _ := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounting/journals", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":404`)
}
