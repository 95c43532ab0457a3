/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     One zerolog line per request (obs.RequestLogger)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Request count and latency by route (optional)
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/summaries/*      Monthly summaries and XLSX export
  /api/storage/*        Storage details, projection, per-record lines
  /api/months/*         Documents and records of a month
  /api/reports/*        Document report and PDF export
  /api/documents/*      Document registry
  /api/records/*        Imports and exits
  /api/rates            Tariff
  /api/scenarios/*      Demo scenarios
  /api/reset            Store reset (dev only)
  /metrics              Prometheus

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/warp/pallet-ledger/obs"
)

// RouterConfig carries the optional pieces of the router.
type RouterConfig struct {
	AllowedOrigins []string
	Logger         zerolog.Logger
	HTTPMetrics    *obs.HTTPMetrics // nil disables request metrics
	MetricsHandler http.Handler     // mounted at /metrics when set
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(middleware.Recoverer)
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: !slices.Contains(origins, "*"),
	}))

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/summaries", func(r chi.Router) {
			r.Get("/", h.GetSummaries)
			r.Get("/export.xlsx", h.ExportSummaries)
		})

		r.Route("/storage/{month}", func(r chi.Router) {
			r.Get("/details", h.GetStorageDetails)
			r.Get("/projection", h.GetProjection)
			r.Get("/records", h.GetStorageLines)
		})

		r.Route("/months/{month}", func(r chi.Router) {
			r.Get("/documents", h.GetMonthDocuments)
			r.Get("/records", h.GetMonthRecords)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.GetReport)
			r.Get("/export.pdf", h.ExportReport)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", h.ListDocuments)
			r.Post("/", h.CreateDocument)
		})

		r.Route("/records", func(r chi.Router) {
			r.Post("/", h.ImportRecords)
			r.Post("/{id}/exits", h.AppendExit)
		})

		r.Get("/rates", h.GetRates)
		r.Put("/rates", h.UpdateRates)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		r.Delete("/reset", h.ResetDatabase)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Pallet Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Pallet Ledger API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/summaries">/api/summaries</a> - Monthly entry, exit and storage costs</li>
<li><a href="/api/documents">/api/documents</a> - Documents</li>
<li><a href="/api/rates">/api/rates</a> - Tariff</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`))
	})

	return r
}
