package http

import (
	"net/http"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	trip, err := s.resolver.Trip(r.Context(), tripID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	summary, err := s.analytics.Summarize(r.Context(), trip)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewSummary(summary)).Write(w)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	window, err := parseDateRange(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	points, err := s.analytics.Trend(r.Context(), tripID, window)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"trip_id": tripID,
		"trend":   viewTrend(points),
	}).Write(w)
}

func (s *Server) handleByCurrency(w http.ResponseWriter, r *http.Request) {
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	window, err := parseDateRange(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	shares, err := s.analytics.CurrencyBreakdown(r.Context(), tripID, window)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"trip_id":     tripID,
		"by_currency": viewCurrencyShares(shares),
	}).Write(w)
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	window, err := parseDateRange(r.URL.Query())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sums, err := s.analytics.CategoryBreakdown(r.Context(), tripID, window)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"trip_id":     tripID,
		"by_category": viewCategoryShares(sums),
	}).Write(w)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	alerts, err := s.analytics.Alerts(r.Context(), tripID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"trip_id": tripID,
		"alerts":  alerts,
	}).Write(w)
}
