package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/ledger-engine/internal/accounting/shared"
)

// Metrics mengumpulkan metrik Prometheus untuk HTTP dan mesin laporan.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	buildDuration   *prometheus.HistogramVec
	warnings        *prometheus.CounterVec
	imbalances      *prometheus.CounterVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	builds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_statement_build_seconds",
		Help:    "Durasi penyusunan laporan per jenis laporan.",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"statement"})
	warnings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_warnings_total",
		Help: "Peringatan yang dihasilkan saat menyusun laporan, per kode.",
	}, []string{"code"})
	imbalances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_raw_imbalances_total",
		Help: "Jumlah pemeriksaan buku besar yang tidak seimbang, per perusahaan.",
	}, []string{"company"})
	registry.MustRegister(requests, duration, builds, warnings, imbalances)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		buildDuration:   builds,
		warnings:        warnings,
		imbalances:      imbalances,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveBuild mencatat durasi penyusunan satu laporan.
func (m *Metrics) ObserveBuild(statement string, d time.Duration) {
	if m == nil {
		return
	}
	m.buildDuration.WithLabelValues(statement).Observe(d.Seconds())
}

// AddWarnings menghitung peringatan berdasarkan kodenya.
func (m *Metrics) AddWarnings(ws []shared.Warning) {
	if m == nil {
		return
	}
	for _, w := range ws {
		m.warnings.WithLabelValues(w.Code).Inc()
	}
}

// RecordImbalance menandai buku besar perusahaan yang tidak seimbang.
func (m *Metrics) RecordImbalance(companyID int64) {
	if m == nil {
		return
	}
	m.imbalances.WithLabelValues(strconv.FormatInt(companyID, 10)).Inc()
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
