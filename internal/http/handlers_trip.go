package http

import (
	"context"
	"net/http"

	"tripledger/internal/core"
)

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var payload tripPayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	in, err := payload.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	makeActive := payload.MakeActive == nil || *payload.MakeActive

	trip, err := s.trips.Create(r.Context(), in, makeActive)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(viewTrip(trip)).Write(w)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	var status core.TripStatus
	if v := r.URL.Query().Get("status"); v != "" {
		status = core.TripStatus(v)
		if !status.Valid() {
			BadRequestError("invalid status '" + v + "'").Write(w)
			return
		}
	}
	trips, err := s.trips.List(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"trips": viewTrips(trips),
		"count": len(trips),
	}).Write(w)
}

func (s *Server) handleActiveTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := s.trips.Active(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewTrip(trip)).Write(w)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	id, resp := pathID(r, "id")
	if resp != nil {
		resp.Write(w)
		return
	}
	trip, err := s.trips.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewTrip(trip)).Write(w)
}

func (s *Server) handleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, resp := pathID(r, "id")
	if resp != nil {
		resp.Write(w)
		return
	}
	var payload tripPayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	upd, err := payload.toUpdate()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	trip, err := s.trips.Update(r.Context(), id, upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewTrip(trip)).Write(w)
}

func (s *Server) handleActivateTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.SetActive)
}

func (s *Server) handleArchiveTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Archive)
}

func (s *Server) handleUnarchiveTrip(w http.ResponseWriter, r *http.Request) {
	s.tripTransition(w, r, s.trips.Unarchive)
}

// tripTransition runs a single-trip lifecycle operation identified by the
// path id.
func (s *Server) tripTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (core.Trip, error)) {
	id, resp := pathID(r, "id")
	if resp != nil {
		resp.Write(w)
		return
	}
	trip, err := op(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewTrip(trip)).Write(w)
}

func (s *Server) handleResetTrip(w http.ResponseWriter, r *http.Request) {
	id, resp := pathID(r, "id")
	if resp != nil {
		resp.Write(w)
		return
	}
	if err := s.trips.Reset(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{"reset": true, "trip_id": id}).Write(w)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	trip, err := s.trips.ResetAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewTrip(trip)).Write(w)
}
