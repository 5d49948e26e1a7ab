package services

import (
	"context"
	"log/slog"

	"tripledger/internal/core"
	"tripledger/internal/settings"
	"tripledger/internal/storage"
	"tripledger/internal/tripctx"
)

// TripService wraps trip lifecycle operations, keeping the trip-context
// caches coherent across mutations.
type TripService struct {
	store    *storage.Store
	resolver *tripctx.Resolver
	settings *settings.Service
	logger   *slog.Logger
}

func NewTripService(store *storage.Store, resolver *tripctx.Resolver, settingsSvc *settings.Service, logger *slog.Logger) *TripService {
	return &TripService{store: store, resolver: resolver, settings: settingsSvc, logger: logger}
}

// Create adds a trip, filling in the configured default currency list when
// the input carries none.
func (s *TripService) Create(ctx context.Context, in storage.TripInput, makeActive bool) (core.Trip, error) {
	if len(in.Currencies) == 0 {
		in.Currencies = s.settings.DefaultTripCurrencies(ctx)
	}

	trip, err := s.store.CreateTrip(ctx, in, makeActive)
	if err != nil {
		return core.Trip{}, err
	}
	if makeActive {
		s.resolver.Clear()
	}
	s.logger.InfoContext(ctx, "trip created", "trip_id", trip.ID, "name", trip.Name, "active", makeActive)
	return trip, nil
}

func (s *TripService) Get(ctx context.Context, id int64) (core.Trip, error) {
	return s.resolver.Trip(ctx, id)
}

func (s *TripService) Active(ctx context.Context) (core.Trip, error) {
	return s.resolver.ActiveTrip(ctx)
}

func (s *TripService) List(ctx context.Context, status core.TripStatus) ([]core.Trip, error) {
	return s.store.ListTrips(ctx, status)
}

func (s *TripService) Update(ctx context.Context, id int64, upd storage.TripUpdate) (core.Trip, error) {
	trip, err := s.store.UpdateTrip(ctx, id, upd)
	if err != nil {
		return core.Trip{}, err
	}
	s.resolver.Clear()
	return trip, nil
}

func (s *TripService) Archive(ctx context.Context, id int64) (core.Trip, error) {
	trip, err := s.store.ArchiveTrip(ctx, id)
	if err != nil {
		return core.Trip{}, err
	}
	s.resolver.Clear()
	s.logger.InfoContext(ctx, "trip archived", "trip_id", id)
	return trip, nil
}

func (s *TripService) Unarchive(ctx context.Context, id int64) (core.Trip, error) {
	trip, err := s.store.UnarchiveTrip(ctx, id)
	if err != nil {
		return core.Trip{}, err
	}
	s.resolver.Clear()
	s.logger.InfoContext(ctx, "trip unarchived", "trip_id", id)
	return trip, nil
}

func (s *TripService) SetActive(ctx context.Context, id int64) (core.Trip, error) {
	return s.resolver.SetActive(ctx, id)
}

// Reset wipes one trip's ledger rows while keeping the trip itself.
func (s *TripService) Reset(ctx context.Context, id int64) error {
	if err := s.store.ResetTrip(ctx, id); err != nil {
		return err
	}
	s.resolver.Clear()
	s.logger.InfoContext(ctx, "trip ledger reset", "trip_id", id)
	return nil
}

// ResetAll wipes every trip and starts over with a fresh default trip,
// preserving settings.
func (s *TripService) ResetAll(ctx context.Context) (core.Trip, error) {
	newID, err := s.store.WipeAll(ctx)
	if err != nil {
		return core.Trip{}, err
	}
	s.resolver.Clear()
	s.logger.InfoContext(ctx, "all trips wiped", "new_trip_id", newID)
	return s.store.GetTrip(ctx, newID)
}
