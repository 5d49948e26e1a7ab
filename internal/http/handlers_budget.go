package http

import (
	"net/http"
	"strings"
)

// resolveTripID maps the optional trip_id query parameter to a concrete
// trip, falling back to the active trip.
func (s *Server) resolveTripID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	explicit, resp := queryTripID(r.URL.Query())
	if resp != nil {
		resp.Write(w)
		return 0, false
	}
	tripID, err := s.resolver.Resolve(r.Context(), explicit)
	if err != nil {
		writeDomainError(w, r, err)
		return 0, false
	}
	return tripID, true
}

type amountPayload struct {
	Amount *float64 `json:"amount"`
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(r.PathValue("currency"))
	var payload amountPayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	if payload.Amount == nil {
		BadRequestError("amount is required").Write(w)
		return
	}
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	budget, err := s.store.SetBudgetMax(r.Context(), tripID, currency, *payload.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewBudget(budget)).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	budgets, err := s.store.ListBudgets(r.Context(), tripID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"trip_id": tripID,
		"budgets": viewBudgets(budgets),
	}).Write(w)
}

func (s *Server) handleLoadForexCard(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(r.PathValue("currency"))
	var payload amountPayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	if payload.Amount == nil {
		BadRequestError("amount is required").Write(w)
		return
	}
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	card, err := s.store.SetForexCardLoaded(r.Context(), tripID, currency, *payload.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewForexCard(card)).Write(w)
}

func (s *Server) handleListForexCards(w http.ResponseWriter, r *http.Request) {
	tripID, ok := s.resolveTripID(w, r)
	if !ok {
		return
	}
	cards, err := s.store.ListForexCards(r.Context(), tripID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"trip_id":     tripID,
		"forex_cards": viewForexCards(cards),
	}).Write(w)
}
