package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tripledger/internal/analytics"
	"tripledger/internal/log"
	"tripledger/internal/rates"
	"tripledger/internal/services"
	"tripledger/internal/settings"
	"tripledger/internal/storage"
	"tripledger/internal/tripctx"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	resolver := tripctx.NewResolver(store, slogger)
	settingsSvc := settings.New(store)
	rateSvc := rates.NewService(rates.NewProvider(settings.ProviderStatic, "", nil, slogger),
		func(context.Context) time.Duration { return time.Hour }, slogger)
	expenses := services.NewExpenseService(store, resolver, rateSvc, settingsSvc, nil, slogger)
	trips := services.NewTripService(store, resolver, settingsSvc, slogger)
	analyticsSvc := analytics.New(store, settingsSvc, slogger)

	srv := NewServer(":0", Deps{
		Store:     store,
		Resolver:  resolver,
		Trips:     trips,
		Expenses:  expenses,
		Analytics: analyticsSvc,
		Rates:     rateSvc,
		Settings:  settingsSvc,
		ProviderFactory: func(name string) rates.Provider {
			return rates.NewProvider(name, "", nil, slogger)
		},
		Logger: logger,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 && rr.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	}
	return rr, decoded
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr, _ := doJSON(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
	}
}

func TestExpenseLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr, created := doJSON(t, srv, http.MethodPost, "/api/expenses", map[string]any{
		"amount":   50,
		"currency": "SGD",
		"category": "food",
		"date":     "2026-03-02",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	if created["payment_method"] != "cash" {
		t.Errorf("payment_method = %v, want cash default", created["payment_method"])
	}
	if created["inr_equivalent"] != 3100.0 {
		t.Errorf("inr_equivalent = %v, want 3100", created["inr_equivalent"])
	}
	id := int64(created["id"].(float64))

	rr, got := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/expenses/%d", id), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	if got["currency"] != "SGD" {
		t.Errorf("currency = %v, want SGD", got["currency"])
	}

	rr, updated := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/expenses/%d", id), map[string]any{
		"amount": 80,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}
	if updated["amount"] != 80.0 {
		t.Errorf("amount = %v, want 80", updated["amount"])
	}

	rr, list := doJSON(t, srv, http.MethodGet, "/api/expenses", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	if list["count"] != 1.0 {
		t.Errorf("count = %v, want 1", list["count"])
	}

	// A trip_id scope that does not own the expense yields not-found.
	rr, _ = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/expenses/%d?trip_id=999", id), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete with wrong trip status = %d, want 404", rr.Code)
	}

	rr, _ = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", id), nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr, _ = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/expenses/%d", id), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rr.Code)
	}
}

func TestExpenseValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{
			name:       "negative amount",
			body:       map[string]any{"amount": -5, "currency": "SGD", "category": "food"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unsupported currency",
			body:       map[string]any{"amount": 5, "currency": "USD", "category": "food"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "forex with home currency",
			body:       map[string]any{"amount": 5, "currency": "INR", "category": "food", "payment_method": "forex"},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown field",
			body:       map[string]any{"amount": 5, "currency": "SGD", "category": "food", "extra": true},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := doJSON(t, srv, http.MethodPost, "/api/expenses", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestTripLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr, created := doJSON(t, srv, http.MethodPost, "/api/trips", map[string]any{
		"name":       "Singapore 2026",
		"start_date": "2026-03-01",
		"end_date":   "2026-03-10",
		"currencies": []string{"INR", "SGD"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	id := int64(created["id"].(float64))

	rr, active := doJSON(t, srv, http.MethodGet, "/api/trips/active", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("active status = %d", rr.Code)
	}
	if int64(active["id"].(float64)) != id {
		t.Errorf("active id = %v, want %d", active["id"], id)
	}

	// The active trip cannot be archived.
	rr, _ = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/trips/%d/archive", id), nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("archive active status = %d, want 422", rr.Code)
	}

	rr, list := doJSON(t, srv, http.MethodGet, "/api/trips", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	if list["count"].(float64) < 2 {
		t.Errorf("count = %v, want at least 2 (bootstrap + created)", list["count"])
	}

	rr, updated := doJSON(t, srv, http.MethodPatch, fmt.Sprintf("/api/trips/%d", id), map[string]any{
		"name": "Singapore & Malaysia 2026",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
	}
	if updated["name"] != "Singapore & Malaysia 2026" {
		t.Errorf("name = %v", updated["name"])
	}
}

func TestBudgetAndForexEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rr, budget := doJSON(t, srv, http.MethodPut, "/api/budgets/SGD", map[string]any{"amount": 500})
	if rr.Code != http.StatusOK {
		t.Fatalf("set budget status = %d, body %s", rr.Code, rr.Body.String())
	}
	if budget["max_amount"] != 500.0 {
		t.Errorf("max_amount = %v, want 500", budget["max_amount"])
	}

	rr, _ = doJSON(t, srv, http.MethodPut, "/api/budgets/USD", map[string]any{"amount": 500})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unsupported currency status = %d, want 422", rr.Code)
	}

	rr, card := doJSON(t, srv, http.MethodPut, "/api/forex/SGD", map[string]any{"amount": 300})
	if rr.Code != http.StatusOK {
		t.Fatalf("load forex status = %d, body %s", rr.Code, rr.Body.String())
	}
	if card["loaded_amount"] != 300.0 {
		t.Errorf("loaded_amount = %v, want 300", card["loaded_amount"])
	}

	// Forex cards exist only for forex-eligible currencies.
	rr, _ = doJSON(t, srv, http.MethodPut, "/api/forex/INR", map[string]any{"amount": 100})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("forex INR status = %d, want 422", rr.Code)
	}

	rr, budgets := doJSON(t, srv, http.MethodGet, "/api/budgets", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list budgets status = %d", rr.Code)
	}
	if len(budgets["budgets"].([]any)) != 1 {
		t.Errorf("budgets = %v, want one entry", budgets["budgets"])
	}
}

func TestAnalyticsSummary(t *testing.T) {
	srv := newTestServer(t)

	for _, body := range []map[string]any{
		{"amount": 10, "currency": "SGD", "category": "food", "date": "2026-03-01"},
		{"amount": 200, "currency": "INR", "category": "transport", "date": "2026-03-02"},
	} {
		rr, _ := doJSON(t, srv, http.MethodPost, "/api/expenses", body)
		if rr.Code != http.StatusCreated {
			t.Fatalf("seed expense status = %d, body %s", rr.Code, rr.Body.String())
		}
	}

	rr, summary := doJSON(t, srv, http.MethodGet, "/api/analytics/summary", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("summary status = %d, body %s", rr.Code, rr.Body.String())
	}
	if summary["total_inr_spent"] != 820.0 {
		t.Errorf("total_inr_spent = %v, want 820", summary["total_inr_spent"])
	}
	if len(summary["by_currency"].([]any)) != 2 {
		t.Errorf("by_currency = %v, want two entries", summary["by_currency"])
	}

	rr, trend := doJSON(t, srv, http.MethodGet, "/api/analytics/trend", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("trend status = %d", rr.Code)
	}
	points := trend["trend"].([]any)
	if len(points) != 2 {
		t.Fatalf("trend points = %d, want 2", len(points))
	}
	last := points[1].(map[string]any)
	if last["cumulative"] != 820.0 {
		t.Errorf("cumulative = %v, want 820", last["cumulative"])
	}

	// Date bounds narrow the curve to the requested window.
	rr, trend = doJSON(t, srv, http.MethodGet, "/api/analytics/trend?from=2026-03-02", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("windowed trend status = %d", rr.Code)
	}
	points = trend["trend"].([]any)
	if len(points) != 1 || points[0].(map[string]any)["cumulative"] != 200.0 {
		t.Errorf("windowed trend = %v, want single 200 point", points)
	}
}

func TestSettingsAndRates(t *testing.T) {
	srv := newTestServer(t)

	rr, doc := doJSON(t, srv, http.MethodGet, "/api/settings", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get settings status = %d", rr.Code)
	}
	if doc["rate_provider"] != settings.ProviderStatic {
		t.Errorf("rate_provider = %v, want static default", doc["rate_provider"])
	}

	rr, doc = doJSON(t, srv, http.MethodPatch, "/api/settings", map[string]any{
		"budget_warn_percent":   70,
		"budget_danger_percent": 85,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch settings status = %d, body %s", rr.Code, rr.Body.String())
	}
	if doc["budget_warn_percent"] != 70.0 {
		t.Errorf("budget_warn_percent = %v, want 70", doc["budget_warn_percent"])
	}

	// Warn at or above danger is rejected.
	rr, _ = doJSON(t, srv, http.MethodPatch, "/api/settings", map[string]any{
		"budget_warn_percent": 95,
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid thresholds status = %d, want 422", rr.Code)
	}

	rr, rateDoc := doJSON(t, srv, http.MethodGet, "/api/rates", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get rates status = %d", rr.Code)
	}
	if rateDoc["rates"].(map[string]any)["SGD"] != 62.0 {
		t.Errorf("SGD rate = %v, want 62", rateDoc["rates"].(map[string]any)["SGD"])
	}

	rr, override := doJSON(t, srv, http.MethodPut, "/api/rates/overrides/SGD", map[string]any{"rate": 63.5})
	if rr.Code != http.StatusOK {
		t.Fatalf("set override status = %d, body %s", rr.Code, rr.Body.String())
	}
	if override["rate"] != 63.5 {
		t.Errorf("override rate = %v, want 63.5", override["rate"])
	}

	rr, _ = doJSON(t, srv, http.MethodDelete, "/api/rates/overrides/SGD", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("clear override status = %d, want 204", rr.Code)
	}
	rr, _ = doJSON(t, srv, http.MethodDelete, "/api/rates/overrides/SGD", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("clear missing override status = %d, want 404", rr.Code)
	}

	// Switching the provider swaps the live rate source.
	rr, doc = doJSON(t, srv, http.MethodPatch, "/api/settings", map[string]any{
		"rate_provider": settings.ProviderPlaceholder,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("switch provider status = %d, body %s", rr.Code, rr.Body.String())
	}
	rr, rateDoc = doJSON(t, srv, http.MethodGet, "/api/rates", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get rates status = %d", rr.Code)
	}
	if rateDoc["provider"] != settings.ProviderPlaceholder {
		t.Errorf("provider = %v, want placeholder", rateDoc["provider"])
	}
	if rateDoc["rates"].(map[string]any)["SGD"] != 61.5 {
		t.Errorf("SGD rate after switch = %v, want 61.5", rateDoc["rates"].(map[string]any)["SGD"])
	}
}
