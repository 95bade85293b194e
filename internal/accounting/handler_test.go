package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/reports"
	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

type fakeStatementService struct {
	pkg       StatementPackage
	integrity reports.IntegrityResult
	err       error
	lastReq   StatementRequest
	calls     int
}

func (f *fakeStatementService) Statements(_ context.Context, req StatementRequest) (StatementPackage, error) {
	f.calls++
	f.lastReq = req
	return f.pkg, f.err
}

func (f *fakeStatementService) Validate(_ context.Context, companyID int64, start, end time.Time) (reports.IntegrityResult, error) {
	f.calls++
	f.lastReq = StatementRequest{CompanyID: companyID, Start: start, End: end}
	return f.integrity, f.err
}

type fakeScheduler struct {
	companyID int64
	err       error
}

func (f *fakeScheduler) EnqueueIntegrity(_ context.Context, companyID int64, _, _ time.Time) (string, error) {
	f.companyID = companyID
	return "task-1", f.err
}

func newTestRouter(svc StatementService, scheduler IntegrityScheduler) http.Handler {
	r := chi.NewRouter()
	NewHandler(nil, svc, scheduler).MountRoutes(r)
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandlerRejectsBadQueries(t *testing.T) {
	svc := &fakeStatementService{}
	router := newTestRouter(svc, nil)

	cases := map[string]string{
		"missing company":  "/finance/reports/pl?start=2025-01-01&end=2025-01-31",
		"non numeric":      "/finance/reports/pl?company_id=abc&start=2025-01-01&end=2025-01-31",
		"bad date":         "/finance/reports/pl?company_id=7&start=01/01/2025&end=2025-01-31",
		"inverted window":  "/finance/reports/pl?company_id=7&start=2025-02-01&end=2025-01-31",
		"unknown status":   "/finance/reports/pl?company_id=7&start=2025-01-01&end=2025-01-31&status=void",
		"integrity no end": "/finance/reports/integrity?company_id=7&start=2025-01-01",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serve(router, http.MethodGet, target)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
	require.Zero(t, svc.calls)
}

func TestHandlerParsesStatusFilter(t *testing.T) {
	svc := &fakeStatementService{}
	router := newTestRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/finance/reports/trial-balance?company_id=7&start=2025-01-01&end=2025-01-31&status=Posted,%20approved")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(7), svc.lastReq.CompanyID)
	require.Equal(t, []shared.LineStatus{shared.LineStatusPosted, shared.LineStatusApproved}, svc.lastReq.Statuses)
	require.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), svc.lastReq.End)
}

func TestHandlerBalanceSheetCarriesReconciliation(t *testing.T) {
	svc := &fakeStatementService{pkg: StatementPackage{
		CompanyID:      7,
		Reconciliation: reports.Reconciliation{Plug: d("120"), RawDifference: d("120"), Disagree: true},
		Integrity:      reports.IntegrityResult{CompanyID: 7, Difference: d("120"), LineCount: 2},
	}}
	router := newTestRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/finance/reports/bs?company_id=7&start=2025-01-01&end=2025-01-31")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body struct {
		Reconciliation struct {
			Plug     string `json:"plug"`
			Disagree bool   `json:"disagree"`
		} `json:"reconciliation"`
		Integrity struct {
			LineCount int `json:"line_count"`
		} `json:"integrity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "120", body.Reconciliation.Plug)
	require.True(t, body.Reconciliation.Disagree)
	require.Equal(t, 2, body.Integrity.LineCount)
}

func TestHandlerMapsSourceFailureToUnavailable(t *testing.T) {
	svc := &fakeStatementService{err: fmt.Errorf("%w: dial tcp: refused", shared.ErrSourceUnavailable)}
	router := newTestRouter(svc, nil)

	for _, path := range []string{"statements", "pl", "cf", "integrity"} {
		rec := serve(router, http.MethodGet, "/finance/reports/"+path+"?company_id=7&start=2025-01-01&end=2025-01-31")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		require.NotContains(t, rec.Body.String(), "dial tcp")
	}
}

func TestHandlerHidesUnexpectedErrors(t *testing.T) {
	svc := &fakeStatementService{err: errors.New("boom")}
	router := newTestRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/finance/reports/statements?company_id=7&start=2025-01-01&end=2025-01-31")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestHandlerEnqueueIntegrity(t *testing.T) {
	target := "/finance/reports/integrity/jobs?company_id=7&start=2025-01-01&end=2025-01-31"

	rec := serve(newTestRouter(&fakeStatementService{}, nil), http.MethodPost, target)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	scheduler := &fakeScheduler{}
	rec = serve(newTestRouter(&fakeStatementService{}, scheduler), http.MethodPost, target)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.JSONEq(t, `{"task_id":"task-1"}`, rec.Body.String())
	require.Equal(t, int64(7), scheduler.companyID)
}
