// Package memory is an in-memory ledger mirror used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tripledger/internal/core"
)

type row struct {
	trip    core.Trip
	expense core.Expense
}

type Store struct {
	mu   sync.Mutex
	rows map[int64]row
	seq  int
}

func New() *Store {
	return &Store{rows: make(map[int64]row)}
}

// Append stores the expense row keyed by expense id and returns a synthetic
// row reference. Re-appending an id overwrites the previous row, matching
// update semantics.
func (s *Store) Append(_ context.Context, trip core.Trip, e core.Expense) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[e.ID] = row{trip: trip, expense: e}
	s.seq++
	return fmt.Sprintf("mem:%d", s.seq), nil
}

// Remove drops the row for an expense id. Unknown ids are a no-op.
func (s *Store) Remove(_ context.Context, expenseID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, expenseID)
	return nil
}

// Expense returns the mirrored expense for an id.
func (s *Store) Expense(id int64) (core.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[id]
	return r.expense, ok
}

// Len reports how many rows are mirrored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
