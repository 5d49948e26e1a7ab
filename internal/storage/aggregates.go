package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tripledger/internal/core"
)

// DateRange bounds an aggregate read to an inclusive date window. Zero
// dates leave that side open.
type DateRange struct {
	From core.Date
	To   core.Date
}

func (r DateRange) clause() (string, []any) {
	var (
		cond string
		args []any
	)
	if !r.From.IsZero() {
		cond += " AND date >= ?"
		args = append(args, r.From.String())
	}
	if !r.To.IsZero() {
		cond += " AND date <= ?"
		args = append(args, r.To.String())
	}
	return cond, args
}

// DailyTotal is one calendar day's home-currency spend.
type DailyTotal struct {
	Date  core.Date
	Total float64
}

// CurrencySum aggregates a single currency's spend within a trip.
type CurrencySum struct {
	Currency string
	Total    float64
	HomeSum  float64
	Count    int
}

// CategorySum aggregates a single category's home-currency spend within a
// trip. Percent is the share of the trip's total home spend, 0 when the
// trip has no spend.
type CategorySum struct {
	Category string
	HomeSum  float64
	Count    int
	Percent  float64
}

// DailyTotals returns per-day home-currency totals for a trip, earliest day
// first. Days with no expenses are absent.
func (s *Store) DailyTotals(ctx context.Context, tripID int64, window DateRange) ([]DailyTotal, error) {
	cond, condArgs := window.clause()
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, SUM(inr_equivalent) FROM expenses
		WHERE trip_id = ?`+cond+` GROUP BY date ORDER BY date ASC`,
		append([]any{tripID}, condArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var totals []DailyTotal
	for rows.Next() {
		var (
			dateRaw string
			total   float64
		)
		if err := rows.Scan(&dateRaw, &total); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		d, err := core.ParseDate(dateRaw)
		if err != nil {
			return nil, fmt.Errorf("daily total date %q: %w", dateRaw, err)
		}
		totals = append(totals, DailyTotal{Date: d, Total: core.Round2(total)})
	}
	return totals, rows.Err()
}

// SumsByCurrency returns per-currency totals for a trip, largest home spend
// first.
func (s *Store) SumsByCurrency(ctx context.Context, tripID int64, window DateRange) ([]CurrencySum, error) {
	cond, condArgs := window.clause()
	rows, err := s.db.QueryContext(ctx, `
		SELECT currency, SUM(amount), SUM(inr_equivalent), COUNT(*) FROM expenses
		WHERE trip_id = ?`+cond+` GROUP BY currency ORDER BY SUM(inr_equivalent) DESC`,
		append([]any{tripID}, condArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("sums by currency: %w", err)
	}
	defer rows.Close()

	var sums []CurrencySum
	for rows.Next() {
		var c CurrencySum
		if err := rows.Scan(&c.Currency, &c.Total, &c.HomeSum, &c.Count); err != nil {
			return nil, fmt.Errorf("scan currency sum: %w", err)
		}
		c.Total = core.Round2(c.Total)
		c.HomeSum = core.Round2(c.HomeSum)
		sums = append(sums, c)
	}
	return sums, rows.Err()
}

// SumsByCategory returns one entry per supported category, including
// zero-spend categories, with each entry's share of total home spend.
func (s *Store) SumsByCategory(ctx context.Context, tripID int64, window DateRange) ([]CategorySum, error) {
	cond, condArgs := window.clause()
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(inr_equivalent), COUNT(*) FROM expenses
		WHERE trip_id = ?`+cond+` GROUP BY category`,
		append([]any{tripID}, condArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("sums by category: %w", err)
	}
	defer rows.Close()

	byCategory := make(map[string]CategorySum)
	var grandTotal float64
	for rows.Next() {
		var c CategorySum
		if err := rows.Scan(&c.Category, &c.HomeSum, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		c.HomeSum = core.Round2(c.HomeSum)
		grandTotal += c.HomeSum
		byCategory[c.Category] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Every known category appears, spent or not, so charts render a
	// stable shape.
	sums := make([]CategorySum, 0, len(core.Categories()))
	for _, cat := range core.Categories() {
		c, ok := byCategory[cat]
		if !ok {
			c = CategorySum{Category: cat}
		}
		if grandTotal > 0 {
			c.Percent = core.Round2(c.HomeSum / grandTotal * 100)
		}
		sums = append(sums, c)
	}
	return sums, nil
}

// TotalHomeSpent returns the trip's total home-currency spend.
func (s *Store) TotalHomeSpent(ctx context.Context, tripID int64, window DateRange) (float64, error) {
	cond, condArgs := window.clause()
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT SUM(inr_equivalent) FROM expenses WHERE trip_id = ?"+cond,
		append([]any{tripID}, condArgs...)...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total home spent: %w", err)
	}
	return core.Round2(total.Float64), nil
}

// EarliestExpenseDate returns the first expense date for a trip, or
// core.ErrNotFound when the trip has no expenses.
func (s *Store) EarliestExpenseDate(ctx context.Context, tripID int64) (core.Date, error) {
	var dateRaw sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(date) FROM expenses WHERE trip_id = ?", tripID).Scan(&dateRaw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !dateRaw.Valid) {
		return core.Date{}, core.ErrNotFound
	}
	if err != nil {
		return core.Date{}, fmt.Errorf("earliest expense date: %w", err)
	}
	return core.ParseDate(dateRaw.String)
}
