package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsRecordsEngineActivity(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveBuild("balance_sheet", 20*time.Millisecond)
	metrics.AddWarnings([]shared.Warning{
		{Code: shared.WarnUnmatchedContra},
		{Code: shared.WarnUnmatchedContra},
		{Code: shared.WarnNegativeVAT},
	})
	metrics.RecordImbalance(7)

	body := scrape(t, metrics)
	for _, want := range []string{
		`ledger_statement_build_seconds_count{statement="balance_sheet"} 1`,
		`ledger_warnings_total{code="` + shared.WarnUnmatchedContra + `"} 2`,
		`ledger_warnings_total{code="` + shared.WarnNegativeVAT + `"} 1`,
		`ledger_raw_imbalances_total{company="7"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics, got: %s", want, body)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveBuild("cash_flow", time.Second)
	metrics.AddWarnings([]shared.Warning{{Code: "x"}})
	metrics.RecordImbalance(1)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/finance/reports/bs")

	req := httptest.NewRequest(http.MethodGet, "/finance/reports/bs", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "ledger_http_requests_total{code=\"418\",route=\"/finance/reports/bs\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "ledger_http_request_duration_seconds_bucket{route=\"/finance/reports/bs\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}
