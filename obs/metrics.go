package obs

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/pallet"
)

// =============================================================================
// HTTP METRICS
// =============================================================================

// StatusRecorder wraps ResponseWriter to capture status code and bytes written.
type StatusRecorder struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (sr *StatusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *StatusRecorder) Write(p []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(p)
	sr.bytesWritten += int64(n)
	return n, err
}

func (sr *StatusRecorder) Status() int         { return sr.status }
func (sr *StatusRecorder) BytesWritten() int64 { return sr.bytesWritten }

// HTTPMetrics groups the request collectors.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
}

// NewHTTPMetrics registers request collectors on reg (default registerer
// when nil).
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
	}
	m.ReqTotal = register(reg, m.ReqTotal)
	m.ReqDur = register(reg, m.ReqDur)
	return m
}

// Middleware counts and times requests by matched route.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := routePattern(r)
		m.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		m.ReqDur.WithLabelValues(r.Method, route).Observe(float64(time.Since(start)) / float64(time.Millisecond))
	})
}

// =============================================================================
// LEDGER METRICS
// =============================================================================

// LedgerMetrics exposes the state of the warehouse as gauges. It implements
// pallet.Observer.
type LedgerMetrics struct {
	EquivalentStock  *prometheus.GaugeVec // by class: normal|frozen
	ProjectedStorage prometheus.Gauge
	Issues           *prometheus.GaugeVec // by kind
	RecalcDuration   prometheus.Histogram
	Reports          *prometheus.CounterVec // by result: found|fallback|not_found
	LastRefresh      prometheus.Gauge
}

// NewLedgerMetrics registers ledger collectors on reg.
func NewLedgerMetrics(namespace string, reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &LedgerMetrics{
		EquivalentStock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "equivalent_stock_pallets",
			Help:      "Equivalent pallets in stock at the reference day.",
		}, []string{"class"}),
		ProjectedStorage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "projected_storage_cost",
			Help:      "Storage cost projected for the rest of the current month.",
		}),
		Issues: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "aggregation_issues",
			Help:      "Records skipped or clamped in the last aggregation pass.",
		}, []string{"kind"}),
		RecalcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregation_duration_ms",
			Help:      "Duration of a full aggregation pass in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 1000},
		}),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_reports_total",
			Help:      "Document reports built, by match result.",
		}, []string{"result"}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last scheduled recalculation.",
		}),
	}
	m.EquivalentStock = register(reg, m.EquivalentStock)
	m.ProjectedStorage = register(reg, m.ProjectedStorage)
	m.Issues = register(reg, m.Issues)
	m.RecalcDuration = register(reg, m.RecalcDuration)
	m.Reports = register(reg, m.Reports)
	m.LastRefresh = register(reg, m.LastRefresh)
	return m
}

// ObserveSummaries records the issue counts and pass duration.
func (m *LedgerMetrics) ObserveSummaries(s pallet.Summaries, took time.Duration) {
	counts := map[pallet.IssueKind]int{
		pallet.IssueInvalidDate:   0,
		pallet.IssueOverDepletion: 0,
	}
	for _, is := range s.Issues {
		counts[is.Kind]++
	}
	for kind, n := range counts {
		m.Issues.WithLabelValues(string(kind)).Set(float64(n))
	}
	m.RecalcDuration.Observe(float64(took) / float64(time.Millisecond))
}

// ObserveReport counts one report lookup.
func (m *LedgerMetrics) ObserveReport(found, fallback bool) {
	result := "not_found"
	switch {
	case found && fallback:
		result = "fallback"
	case found:
		result = "found"
	}
	m.Reports.WithLabelValues(result).Inc()
}

// SetStock publishes the current stock and projection.
func (m *LedgerMetrics) SetStock(d pallet.StorageDetails, projected decimal.Decimal, at time.Time) {
	m.EquivalentStock.WithLabelValues("normal").Set(float64(d.EquivalentNormal))
	m.EquivalentStock.WithLabelValues("frozen").Set(float64(d.EquivalentFrozen))
	m.ProjectedStorage.Set(projected.InexactFloat64())
	m.LastRefresh.Set(float64(at.Unix()))
}

var _ pallet.Observer = (*LedgerMetrics)(nil)

// register registers c, reusing an identical collector already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(fmt.Errorf("register collector: %w", err))
	}
	return c
}
