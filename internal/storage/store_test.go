package storage

import (
	"context"
	"path/filepath"
	"testing"

	"tripledger/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustResolveTrip(t *testing.T, s *Store) int64 {
	t.Helper()
	id, err := s.ResolveTripID(context.Background(), 0)
	if err != nil {
		t.Fatalf("ResolveTripID() error = %v", err)
	}
	return id
}

func mustInsertExpense(t *testing.T, s *Store, tripID int64, in core.ExpenseInput, rate float64) core.Expense {
	t.Helper()
	e, err := s.InsertExpenseWithBudget(context.Background(), tripID, in, rate, BudgetPolicy{AutoCreate: true})
	if err != nil {
		t.Fatalf("InsertExpenseWithBudget() error = %v", err)
	}
	return e
}

func TestMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetMeta(ctx, "missing"); err != nil || ok {
		t.Fatalf("GetMeta(missing) = ok %v, err %v; want absent", ok, err)
	}
	if err := s.SetMeta(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetMeta() error = %v", err)
	}
	if err := s.SetMeta(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetMeta() overwrite error = %v", err)
	}
	got, ok, err := s.GetMeta(ctx, "k")
	if err != nil || !ok || got != "v2" {
		t.Fatalf("GetMeta(k) = %q, %v, %v; want v2", got, ok, err)
	}
	if err := s.DeleteMeta(ctx, "k"); err != nil {
		t.Fatalf("DeleteMeta() error = %v", err)
	}
	if _, ok, _ := s.GetMeta(ctx, "k"); ok {
		t.Fatal("GetMeta(k) after delete still present")
	}
}
