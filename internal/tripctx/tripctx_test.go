package tripctx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

func newTestResolver(t *testing.T) (*Resolver, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "tripctx.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(store, logger), store
}

func TestResolveExplicitBypassesCache(t *testing.T) {
	r, _ := newTestResolver(t)
	if got, err := r.Resolve(context.Background(), 42); err != nil || got != 42 {
		t.Errorf("Resolve(42) = %d, %v; want passthrough", got, err)
	}
}

func TestResolveCachesActiveID(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	first, err := r.Resolve(ctx, 0)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// Move the pointer behind the resolver's back; the cached id keeps
	// answering until cleared.
	trip, err := store.CreateTrip(ctx, storage.TripInput{Name: "Elsewhere"}, true)
	if err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}
	if got, _ := r.Resolve(ctx, 0); got != first {
		t.Errorf("cached resolve = %d, want stale %d", got, first)
	}

	r.Clear()
	if got, _ := r.Resolve(ctx, 0); got != trip.ID {
		t.Errorf("resolve after clear = %d, want %d", got, trip.ID)
	}
}

func TestSetActiveWritesThrough(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, 0); err != nil {
		t.Fatalf("warm resolve error = %v", err)
	}
	trip, err := store.CreateTrip(ctx, storage.TripInput{Name: "Next"}, false)
	if err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}

	if _, err := r.SetActive(ctx, trip.ID); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if got, _ := r.Resolve(ctx, 0); got != trip.ID {
		t.Errorf("resolve after SetActive = %d, want %d", got, trip.ID)
	}
	active, err := r.ActiveTrip(ctx)
	if err != nil || active.ID != trip.ID {
		t.Errorf("ActiveTrip() = %+v, %v; want id %d", active, err, trip.ID)
	}
}

func TestTripRecordCache(t *testing.T) {
	r, store := newTestResolver(t)
	ctx := context.Background()

	trip, err := store.CreateTrip(ctx, storage.TripInput{Name: "Cached"}, false)
	if err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}
	if _, err := r.Trip(ctx, trip.ID); err != nil {
		t.Fatalf("Trip() error = %v", err)
	}

	name := "Renamed"
	if _, err := store.UpdateTrip(ctx, trip.ID, storage.TripUpdate{Name: &name}); err != nil {
		t.Fatalf("UpdateTrip() error = %v", err)
	}
	if got, _ := r.Trip(ctx, trip.ID); got.Name != "Cached" {
		t.Errorf("cached trip name = %q, want stale Cached", got.Name)
	}
	r.Clear()
	if got, _ := r.Trip(ctx, trip.ID); got.Name != "Renamed" {
		t.Errorf("trip name after clear = %q, want Renamed", got.Name)
	}

	if _, err := r.Trip(ctx, 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Trip(999) error = %v, want ErrNotFound", err)
	}
}
