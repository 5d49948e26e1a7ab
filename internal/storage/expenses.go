package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tripledger/internal/core"
)

// BudgetPolicy controls how expense mutations touch budget rows. It is
// resolved from settings by the caller so this package stays free of
// settings lookups.
type BudgetPolicy struct {
	// AutoCreate makes the first expense in a currency create an uncapped
	// budget row (or one capped per DefaultCaps).
	AutoCreate bool
	// EnforceCap rejects mutations that would push spent past a non-zero cap.
	EnforceCap bool
	// DefaultCaps seeds max_amount for auto-created budgets, keyed by
	// currency code.
	DefaultCaps map[string]float64
}

const expenseColumns = "id, trip_id, amount, currency, category, description, date, payment_method, inr_equivalent, exchange_rate, created_at, updated_at"

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e                  core.Expense
		description        sql.NullString
		dateRaw            string
		payment            string
		createdAt, updated string
	)
	err := row.Scan(&e.ID, &e.TripID, &e.Amount, &e.Currency, &e.Category, &description,
		&dateRaw, &payment, &e.HomeEquivalent, &e.ExchangeRate, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Description = description.String
	e.PaymentMethod = core.PaymentMethod(payment)
	if d, err := core.ParseDate(dateRaw); err == nil {
		e.Date = d
	}
	e.CreatedAt = parseTimestamp(createdAt)
	e.UpdatedAt = parseTimestamp(updated)
	return e, nil
}

func getExpense(ctx context.Context, q dbtx, id int64) (core.Expense, error) {
	return scanExpense(q.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
}

func (s *Store) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return getExpense(ctx, s.db, id)
}

// adjustBudget applies a signed spent delta to the (trip, currency) budget
// row, creating it per policy when absent. The cap is only enforced for
// increases; decreases clamp spent at zero.
func adjustBudget(ctx context.Context, tx *sql.Tx, tripID int64, currency string, delta float64, policy BudgetPolicy) error {
	if core.Negligible(delta) {
		return nil
	}

	var maxAmount, spent float64
	err := tx.QueryRowContext(ctx,
		"SELECT max_amount, spent_amount FROM budgets WHERE trip_id = ? AND currency = ?",
		tripID, currency).Scan(&maxAmount, &spent)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if delta < 0 {
			return nil
		}
		if !policy.AutoCreate {
			return fmt.Errorf("no budget for %s: %w", currency, core.ErrBudgetMissing)
		}
		maxAmount = policy.DefaultCaps[currency]
		if policy.EnforceCap && maxAmount > 0 && delta > maxAmount+core.Epsilon {
			return fmt.Errorf("%s budget cap %.2f: %w", currency, maxAmount, core.ErrBudgetCapExceeded)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO budgets (trip_id, currency, max_amount, spent_amount)
			VALUES (?, ?, ?, ?)`,
			tripID, currency, maxAmount, core.Round2(delta))
		if err != nil {
			return fmt.Errorf("create budget: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load budget: %w", err)
	}

	newSpent := spent + delta
	if delta > 0 && policy.EnforceCap && maxAmount > 0 && newSpent > maxAmount+core.Epsilon {
		return fmt.Errorf("%s budget cap %.2f: %w", currency, maxAmount, core.ErrBudgetCapExceeded)
	}
	if newSpent < 0 {
		newSpent = 0
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE budgets SET spent_amount = ?, updated_at = `+utcNow+`
		WHERE trip_id = ? AND currency = ?`,
		core.Round2(newSpent), tripID, currency)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return nil
}

// adjustForex mirrors a spent delta onto the (trip, currency) forex card,
// creating an unloaded card on first forex spend. Spent clamps at zero.
func adjustForex(ctx context.Context, tx *sql.Tx, tripID int64, currency string, delta float64) error {
	if core.Negligible(delta) {
		return nil
	}

	var spent float64
	err := tx.QueryRowContext(ctx,
		"SELECT spent_amount FROM forex_cards WHERE trip_id = ? AND currency = ?",
		tripID, currency).Scan(&spent)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if delta < 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO forex_cards (trip_id, currency, loaded_amount, spent_amount)
			VALUES (?, ?, 0, ?)`,
			tripID, currency, core.Round2(delta))
		if err != nil {
			return fmt.Errorf("create forex card: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load forex card: %w", err)
	}

	newSpent := spent + delta
	if newSpent < 0 {
		newSpent = 0
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE forex_cards SET spent_amount = ?, updated_at = `+utcNow+`
		WHERE trip_id = ? AND currency = ?`,
		core.Round2(newSpent), tripID, currency)
	if err != nil {
		return fmt.Errorf("update forex card: %w", err)
	}
	return nil
}

// InsertExpenseWithBudget records an expense and its budget and forex card
// effects in one transaction. rate is the home-currency conversion rate in
// force at insert time; it is stored on the row so later edits stay
// consistent with what was originally charged.
func (s *Store) InsertExpenseWithBudget(ctx context.Context, tripID int64, in core.ExpenseInput, rate float64, policy BudgetPolicy) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	currency := strings.ToUpper(in.Currency)
	homeEq := core.Round2(in.Amount * rate)

	var expense core.Expense
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrip(ctx, tx, tripID); err != nil {
			return err
		}
		if err := adjustBudget(ctx, tx, tripID, currency, in.Amount, policy); err != nil {
			return err
		}
		if in.PaymentMethod == core.PaymentForex {
			if err := adjustForex(ctx, tx, tripID, currency, in.Amount); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO expenses (trip_id, amount, currency, category, description, date, payment_method, inr_equivalent, exchange_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tripID, in.Amount, currency, in.Category, in.Description,
			in.Date.String(), string(in.PaymentMethod), homeEq, rate)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("expense id: %w", err)
		}
		expense, err = getExpense(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	return expense, nil
}

// ExpenseUpdate holds optional patch fields for an expense; nil pointers
// leave the stored value in place.
type ExpenseUpdate struct {
	Amount        *float64
	Currency      *string
	Category      *string
	Description   *string
	Date          *core.Date
	PaymentMethod *core.PaymentMethod
}

func (u ExpenseUpdate) empty() bool {
	return u.Amount == nil && u.Currency == nil && u.Category == nil &&
		u.Description == nil && u.Date == nil && u.PaymentMethod == nil
}

// UpdateExpenseWithBudget patches an expense and rebalances the budget and
// forex mirrors for the old and new (currency, payment) pair. rate supplies
// the conversion rate for a changed currency; nil keeps the stored rate, so
// amount-only edits reprice against the original rate. A non-zero tripID
// scopes the edit to that trip; an expense on another trip is not found.
func (s *Store) UpdateExpenseWithBudget(ctx context.Context, id, tripID int64, upd ExpenseUpdate, rate *float64, policy BudgetPolicy) (core.Expense, error) {
	if upd.empty() {
		return core.Expense{}, core.ErrNoFieldsToUpdate
	}

	var expense core.Expense
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getExpense(ctx, tx, id)
		if err != nil {
			return err
		}
		if tripID != 0 && old.TripID != tripID {
			return core.ErrNotFound
		}

		merged := core.ExpenseInput{
			Amount:        old.Amount,
			Currency:      old.Currency,
			Category:      old.Category,
			Description:   old.Description,
			Date:          old.Date,
			PaymentMethod: old.PaymentMethod,
		}
		if upd.Amount != nil {
			merged.Amount = *upd.Amount
		}
		if upd.Currency != nil {
			merged.Currency = strings.ToUpper(*upd.Currency)
		}
		if upd.Category != nil {
			merged.Category = *upd.Category
		}
		if upd.Description != nil {
			merged.Description = *upd.Description
		}
		if upd.Date != nil {
			merged.Date = *upd.Date
		}
		if upd.PaymentMethod != nil {
			merged.PaymentMethod = *upd.PaymentMethod
		}
		if err := merged.Validate(); err != nil {
			return err
		}

		usedRate := old.ExchangeRate
		if rate != nil {
			usedRate = *rate
		}
		homeEq := core.Round2(merged.Amount * usedRate)

		// Budget rebalance: a same-currency edit applies the net delta so
		// clamped history is not disturbed; a currency change releases the
		// old amount and charges the new currency.
		if merged.Currency == old.Currency {
			if err := adjustBudget(ctx, tx, old.TripID, old.Currency, merged.Amount-old.Amount, policy); err != nil {
				return err
			}
		} else {
			if err := adjustBudget(ctx, tx, old.TripID, old.Currency, -old.Amount, policy); err != nil {
				return err
			}
			if err := adjustBudget(ctx, tx, old.TripID, merged.Currency, merged.Amount, policy); err != nil {
				return err
			}
		}

		// Forex mirror follows the payment method transition.
		oldForex := old.PaymentMethod == core.PaymentForex
		newForex := merged.PaymentMethod == core.PaymentForex
		switch {
		case oldForex && newForex && merged.Currency == old.Currency:
			if err := adjustForex(ctx, tx, old.TripID, old.Currency, merged.Amount-old.Amount); err != nil {
				return err
			}
		case oldForex && newForex:
			if err := adjustForex(ctx, tx, old.TripID, old.Currency, -old.Amount); err != nil {
				return err
			}
			if err := adjustForex(ctx, tx, old.TripID, merged.Currency, merged.Amount); err != nil {
				return err
			}
		case oldForex:
			if err := adjustForex(ctx, tx, old.TripID, old.Currency, -old.Amount); err != nil {
				return err
			}
		case newForex:
			if err := adjustForex(ctx, tx, old.TripID, merged.Currency, merged.Amount); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE expenses SET
				amount = ?, currency = ?, category = ?, description = ?, date = ?,
				payment_method = ?, inr_equivalent = ?, exchange_rate = ?,
				updated_at = `+utcNow+`
			WHERE id = ?`,
			merged.Amount, merged.Currency, merged.Category, merged.Description,
			merged.Date.String(), string(merged.PaymentMethod), homeEq, usedRate, id)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		expense, err = getExpense(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}
	return expense, nil
}

// DeleteExpenseWithBudget removes an expense and releases its budget and
// forex card spend in one transaction. A non-zero tripID scopes the delete
// to that trip.
func (s *Store) DeleteExpenseWithBudget(ctx context.Context, id, tripID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getExpense(ctx, tx, id)
		if err != nil {
			return err
		}
		if tripID != 0 && old.TripID != tripID {
			return core.ErrNotFound
		}
		if err := adjustBudget(ctx, tx, old.TripID, old.Currency, -old.Amount, BudgetPolicy{}); err != nil {
			return err
		}
		if old.PaymentMethod == core.PaymentForex {
			if err := adjustForex(ctx, tx, old.TripID, old.Currency, -old.Amount); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		return nil
	})
}

// ExpenseFilter narrows ListExpenses; zero values match everything.
type ExpenseFilter struct {
	Currency      string
	Category      string
	PaymentMethod core.PaymentMethod
	From          core.Date
	To            core.Date
	Limit         int
	Offset        int
}

// ListExpenses returns a trip's expenses newest first, filtered.
func (s *Store) ListExpenses(ctx context.Context, tripID int64, f ExpenseFilter) ([]core.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE trip_id = ?"
	args := []any{tripID}

	if f.Currency != "" {
		query += " AND currency = ?"
		args = append(args, strings.ToUpper(f.Currency))
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.PaymentMethod != "" {
		query += " AND payment_method = ?"
		args = append(args, string(f.PaymentMethod))
	}
	if !f.From.IsZero() {
		query += " AND date >= ?"
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		query += " AND date <= ?"
		args = append(args, f.To.String())
	}
	query += " ORDER BY date DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}
