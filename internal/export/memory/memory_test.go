package memory

import (
	"context"
	"testing"

	"tripledger/internal/core"
)

func TestAppendRemove(t *testing.T) {
	s := New()
	ctx := context.Background()
	trip := core.Trip{ID: 1, Name: "Test"}

	ref, err := s.Append(ctx, trip, core.Expense{ID: 10, Amount: 5, Currency: "SGD"})
	if err != nil || ref == "" {
		t.Fatalf("Append() = %q, %v", ref, err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	// Re-appending the same id overwrites instead of duplicating.
	if _, err := s.Append(ctx, trip, core.Expense{ID: 10, Amount: 7, Currency: "SGD"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() after overwrite = %d, want 1", s.Len())
	}
	if e, ok := s.Expense(10); !ok || e.Amount != 7 {
		t.Errorf("Expense(10) = %+v, %v; want amount 7", e, ok)
	}

	if err := s.Remove(ctx, 10); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() after remove = %d, want 0", s.Len())
	}
	if err := s.Remove(ctx, 999); err != nil {
		t.Errorf("Remove(unknown) error = %v, want nil", err)
	}
}
