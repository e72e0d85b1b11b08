/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Instrument: Prometheus RPS/latency/in-flight
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/shipments/*   Shipments, intake, rollups
  /api/lots/*        Lots, loss, sales
  /api/sales/*       Payments, reversal
  /api/clients/*     Client registry and projections
  /api/entries       Journal queries and manual entries
  /api/transfers     Currency transfers
  /api/admin/*       Rates, full recompute
  /metrics           Prometheus scrape endpoint
  /healthz           Liveness probe

SECURITY NOTE:
  No authentication middleware. All endpoints are public; deploy behind
  an authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/timber-ledger/obs"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(obs.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Shipment routes
		r.Route("/shipments", func(r chi.Router) {
			r.Get("/", h.ListShipments)
			r.Post("/", h.CreateShipment)
			r.Get("/{id}", h.GetShipment)
			r.Get("/{id}/lots", h.ListShipmentLots)
			r.Get("/{id}/sales", h.ListShipmentSales)
			r.Post("/{id}/lots", h.Intake)
			r.Post("/{id}/close", h.CloseShipment)
			r.Post("/{id}/reopen", h.ReopenShipment)
		})

		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Get("/{id}", h.GetLot)
			r.Post("/{id}/loss", h.RecordLoss)
			r.Get("/{id}/sales", h.ListLotSales)
			r.Post("/{id}/sales", h.Sell)
			r.Delete("/{id}", h.DeleteLot)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Get("/{id}", h.GetSale)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Delete("/{id}", h.DeleteSale)
		})

		// Client routes
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Put("/{id}", h.UpdateClient)
			r.Get("/{id}/sales", h.ListClientSales)
		})

		// Journal routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.CreateEntry)
			r.Delete("/{id}", h.VoidEntry)
		})
		r.Get("/balance", h.GetBalance)

		// Transfer routes
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", h.ListTransfers)
			r.Post("/", h.CreateTransfer)
			r.Delete("/{id}", h.VoidTransfer)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Put("/rates", h.SaveRate)
			r.Post("/recompute", h.RecomputeAll)
		})

		// Demo scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Operational endpoints
	r.Handle("/metrics", obs.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
