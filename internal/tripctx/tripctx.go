// Package tripctx resolves which trip an operation targets and keeps the
// answer cached so every expense write does not re-run the fallback chain.
package tripctx

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"tripledger/internal/cache"
	"tripledger/internal/core"
	"tripledger/internal/storage"
)

const (
	activeIDKey  = "active"
	idCacheTTL   = 30 * time.Second
	tripCacheTTL = time.Minute
)

// Resolver answers "which trip" with two small caches: one for the active
// trip id, one for trip records. Mutations that can move the active pointer
// or change trip rows must call Clear.
type Resolver struct {
	store  *storage.Store
	logger *slog.Logger

	idCache   *cache.LRUCache[int64]
	tripCache *cache.LRUCache[core.Trip]
}

func NewResolver(store *storage.Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:     store,
		logger:    logger,
		idCache:   cache.NewLRUCache[int64](1, idCacheTTL),
		tripCache: cache.NewLRUCache[core.Trip](16, tripCacheTTL),
	}
}

// RegisterCaches attaches both caches to a cleanup manager.
func (r *Resolver) RegisterCaches(m *cache.Manager) {
	m.Register(r.idCache)
	m.Register(r.tripCache)
}

// Resolve maps an optional explicit trip id to the target trip id. Explicit
// ids bypass the cache entirely.
func (r *Resolver) Resolve(ctx context.Context, explicit int64) (int64, error) {
	if explicit > 0 {
		return explicit, nil
	}
	if id, ok := r.idCache.Get(activeIDKey); ok {
		return id, nil
	}

	id, err := r.store.ResolveTripID(ctx, 0)
	if err != nil {
		return 0, err
	}
	r.idCache.Set(activeIDKey, id)
	return id, nil
}

// Trip loads a trip record through the cache.
func (r *Resolver) Trip(ctx context.Context, id int64) (core.Trip, error) {
	key := strconv.FormatInt(id, 10)
	if t, ok := r.tripCache.Get(key); ok {
		return t, nil
	}

	t, err := r.store.GetTrip(ctx, id)
	if err != nil {
		return core.Trip{}, err
	}
	r.tripCache.Set(key, t)
	return t, nil
}

// ActiveTrip resolves and loads the active trip.
func (r *Resolver) ActiveTrip(ctx context.Context) (core.Trip, error) {
	id, err := r.Resolve(ctx, 0)
	if err != nil {
		return core.Trip{}, err
	}
	return r.Trip(ctx, id)
}

// SetActive moves the active pointer and writes the result through both
// caches so the next resolve sees the change without a round trip.
func (r *Resolver) SetActive(ctx context.Context, id int64) (core.Trip, error) {
	trip, err := r.store.SetActiveTrip(ctx, id)
	if err != nil {
		return core.Trip{}, err
	}
	r.idCache.Set(activeIDKey, trip.ID)
	r.tripCache.Set(strconv.FormatInt(trip.ID, 10), trip)
	r.logger.InfoContext(ctx, "active trip switched", "trip_id", trip.ID, "name", trip.Name)
	return trip, nil
}

// Clear drops all cached context. Call after any mutation that may touch
// trip rows or the active pointer.
func (r *Resolver) Clear() {
	r.idCache.Purge()
	r.tripCache.Purge()
}
