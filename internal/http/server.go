package http

import (
	"context"
	"net/http"
	"sync"

	"tripledger/internal/analytics"
	"tripledger/internal/log"
	"tripledger/internal/rates"
	"tripledger/internal/services"
	"tripledger/internal/settings"
	"tripledger/internal/storage"
	"tripledger/internal/tripctx"
)

// Server exposes the JSON API over an embedded http.Server.
type Server struct {
	http.Server

	store     *storage.Store
	resolver  *tripctx.Resolver
	trips     *services.TripService
	expenses  *services.ExpenseService
	analytics *analytics.Service
	rates     *rates.Service
	settings  *settings.Service

	// providerFactory builds a rate provider by settings name, used when
	// the provider is switched at runtime.
	providerFactory func(name string) rates.Provider

	rateLimiter  *rateLimiter
	logger       *log.Logger
	shutdownOnce sync.Once
}

// Deps carries the collaborators the server needs.
type Deps struct {
	Store           *storage.Store
	Resolver        *tripctx.Resolver
	Trips           *services.TripService
	Expenses        *services.ExpenseService
	Analytics       *analytics.Service
	Rates           *rates.Service
	Settings        *settings.Service
	ProviderFactory func(name string) rates.Provider
	Logger          *log.Logger
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:           deps.Store,
		resolver:        deps.Resolver,
		trips:           deps.Trips,
		expenses:        deps.Expenses,
		analytics:       deps.Analytics,
		rates:           deps.Rates,
		settings:        deps.Settings,
		providerFactory: deps.ProviderFactory,
		rateLimiter:     newRateLimiter(120),
		logger:          logger,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/expenses", s.withCommon(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses", s.withCommon(s.handleListExpenses))
	mux.HandleFunc("GET /api/expenses/{id}", s.withCommon(s.handleGetExpense))
	mux.HandleFunc("PATCH /api/expenses/{id}", s.withCommon(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.withCommon(s.handleDeleteExpense))

	mux.HandleFunc("POST /api/trips", s.withCommon(s.handleCreateTrip))
	mux.HandleFunc("GET /api/trips", s.withCommon(s.handleListTrips))
	mux.HandleFunc("GET /api/trips/active", s.withCommon(s.handleActiveTrip))
	mux.HandleFunc("GET /api/trips/{id}", s.withCommon(s.handleGetTrip))
	mux.HandleFunc("PATCH /api/trips/{id}", s.withCommon(s.handleUpdateTrip))
	mux.HandleFunc("POST /api/trips/{id}/activate", s.withCommon(s.handleActivateTrip))
	mux.HandleFunc("POST /api/trips/{id}/archive", s.withCommon(s.handleArchiveTrip))
	mux.HandleFunc("POST /api/trips/{id}/unarchive", s.withCommon(s.handleUnarchiveTrip))
	mux.HandleFunc("POST /api/trips/{id}/reset", s.withCommon(s.handleResetTrip))
	mux.HandleFunc("POST /api/reset", s.withCommon(s.handleResetAll))

	mux.HandleFunc("GET /api/budgets", s.withCommon(s.handleListBudgets))
	mux.HandleFunc("PUT /api/budgets/{currency}", s.withCommon(s.handleSetBudget))
	mux.HandleFunc("GET /api/forex", s.withCommon(s.handleListForexCards))
	mux.HandleFunc("PUT /api/forex/{currency}", s.withCommon(s.handleLoadForexCard))

	mux.HandleFunc("GET /api/rates", s.withCommon(s.handleGetRates))
	mux.HandleFunc("PUT /api/rates/overrides/{currency}", s.withCommon(s.handleSetOverride))
	mux.HandleFunc("DELETE /api/rates/overrides/{currency}", s.withCommon(s.handleClearOverride))

	mux.HandleFunc("GET /api/analytics/summary", s.withCommon(s.handleSummary))
	mux.HandleFunc("GET /api/analytics/trend", s.withCommon(s.handleTrend))
	mux.HandleFunc("GET /api/analytics/by-currency", s.withCommon(s.handleByCurrency))
	mux.HandleFunc("GET /api/analytics/by-category", s.withCommon(s.handleByCategory))
	mux.HandleFunc("GET /api/analytics/alerts", s.withCommon(s.handleAlerts))

	mux.HandleFunc("GET /api/settings", s.withCommon(s.handleGetSettings))
	mux.HandleFunc("PATCH /api/settings", s.withCommon(s.handleUpdateSettings))

	return s
}

// Shutdown stops the rate limiter cleanup and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady verifies the store answers before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.ErrorContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
