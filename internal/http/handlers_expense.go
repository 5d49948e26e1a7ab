package http

import (
	"net/http"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var payload expensePayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	in, err := payload.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var tripID int64
	if payload.TripID != nil {
		tripID = *payload.TripID
	}

	exp, err := s.expenses.Create(r.Context(), tripID, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(viewExpense(exp)).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, resp := pathID(r, "id")
	if resp != nil {
		resp.Write(w)
		return
	}
	exp, err := s.expenses.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewExpense(exp)).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	tripID, resp := queryTripID(r.URL.Query())
	if resp != nil {
		resp.Write(w)
		return
	}
	filter, err := parseExpenseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	expenses, err := s.expenses.List(r.Context(), tripID, filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"expenses": viewExpenses(expenses),
		"count":    len(expenses),
	}).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, resp := pathID(r, "id")
	if resp != nil {
		resp.Write(w)
		return
	}
	var payload expensePayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	upd, err := payload.toUpdate()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	tripID, resp := queryTripID(r.URL.Query())
	if resp != nil {
		resp.Write(w)
		return
	}
	exp, err := s.expenses.Update(r.Context(), id, tripID, upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewExpense(exp)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, resp := pathID(r, "id")
	if resp != nil {
		resp.Write(w)
		return
	}
	tripID, resp := queryTripID(r.URL.Query())
	if resp != nil {
		resp.Write(w)
		return
	}
	if err := s.expenses.Delete(r.Context(), id, tripID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
