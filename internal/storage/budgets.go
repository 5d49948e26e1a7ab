package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tripledger/internal/core"
)

func scanBudget(row interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b       core.Budget
		updated string
	)
	err := row.Scan(&b.TripID, &b.Currency, &b.MaxAmount, &b.SpentAmount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}
	b.UpdatedAt = parseTimestamp(updated)
	return b, nil
}

// SetBudgetMax upserts the cap for a (trip, currency) budget. Spent totals
// survive a cap change; max 0 removes the cap without deleting history.
func (s *Store) SetBudgetMax(ctx context.Context, tripID int64, currency string, maxAmount float64) (core.Budget, error) {
	currency = strings.ToUpper(currency)
	if !core.SupportedCurrency(currency) {
		return core.Budget{}, core.ErrUnsupportedCurrency
	}
	if maxAmount < 0 {
		return core.Budget{}, core.ErrNegativeAmount
	}

	var budget core.Budget
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrip(ctx, tx, tripID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budgets (trip_id, currency, max_amount, spent_amount) VALUES (?, ?, ?, 0)
			ON CONFLICT(trip_id, currency) DO UPDATE SET max_amount = excluded.max_amount, updated_at = `+utcNow,
			tripID, currency, core.Round2(maxAmount))
		if err != nil {
			return fmt.Errorf("set budget: %w", err)
		}
		budget, err = getBudget(ctx, tx, tripID, currency)
		return err
	})
	if err != nil {
		return core.Budget{}, err
	}
	return budget, nil
}

func getBudget(ctx context.Context, q dbtx, tripID int64, currency string) (core.Budget, error) {
	return scanBudget(q.QueryRowContext(ctx, `
		SELECT trip_id, currency, max_amount, spent_amount, updated_at
		FROM budgets WHERE trip_id = ? AND currency = ?`,
		tripID, strings.ToUpper(currency)))
}

func (s *Store) GetBudget(ctx context.Context, tripID int64, currency string) (core.Budget, error) {
	return getBudget(ctx, s.db, tripID, currency)
}

// ListBudgets returns a trip's budgets ordered by currency code.
func (s *Store) ListBudgets(ctx context.Context, tripID int64) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trip_id, currency, max_amount, spent_amount, updated_at
		FROM budgets WHERE trip_id = ? ORDER BY currency`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}
