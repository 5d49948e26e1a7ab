package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tripledger/internal/core"
)

// activeTripKey is the metadata pointer naming the currently active trip.
const activeTripKey = "active_trip_id"

const tripColumns = "id, name, start_date, end_date, status, currencies, created_at, updated_at"

func scanTrip(row interface{ Scan(...any) error }) (core.Trip, error) {
	var (
		t                  core.Trip
		startRaw, endRaw   sql.NullString
		currenciesRaw      sql.NullString
		createdAt, updated string
		status             string
	)
	err := row.Scan(&t.ID, &t.Name, &startRaw, &endRaw, &status, &currenciesRaw, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Trip{}, core.ErrNotFound
	}
	if err != nil {
		return core.Trip{}, fmt.Errorf("scan trip: %w", err)
	}

	t.Status = core.TripStatus(status)
	if startRaw.Valid && startRaw.String != "" {
		if d, err := core.ParseDate(startRaw.String); err == nil {
			t.StartDate = d
		}
	}
	if endRaw.Valid && endRaw.String != "" {
		if d, err := core.ParseDate(endRaw.String); err == nil {
			t.EndDate = d
		}
	}
	if currenciesRaw.Valid && currenciesRaw.String != "" {
		if err := json.Unmarshal([]byte(currenciesRaw.String), &t.Currencies); err != nil {
			return core.Trip{}, fmt.Errorf("decode trip currencies: %w", err)
		}
	}
	if len(t.Currencies) == 0 {
		t.Currencies = append([]string(nil), core.DefaultCurrencies...)
	}
	t.CreatedAt = parseTimestamp(createdAt)
	t.UpdatedAt = parseTimestamp(updated)
	return t, nil
}

func getTrip(ctx context.Context, q dbtx, id int64) (core.Trip, error) {
	return scanTrip(q.QueryRowContext(ctx, "SELECT "+tripColumns+" FROM trips WHERE id = ?", id))
}

func (s *Store) GetTrip(ctx context.Context, id int64) (core.Trip, error) {
	return getTrip(ctx, s.db, id)
}

// TripInput carries the fields accepted when creating a trip.
type TripInput struct {
	Name       string
	StartDate  core.Date
	EndDate    core.Date
	Currencies []string
}

func (in TripInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return core.ErrEmptyName
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return core.ErrInvalidDateRange
	}
	return nil
}

// CreateTrip inserts a new active trip. When makeActive is set the active
// pointer moves to the new trip in the same transaction.
func (s *Store) CreateTrip(ctx context.Context, in TripInput, makeActive bool) (core.Trip, error) {
	if err := in.validate(); err != nil {
		return core.Trip{}, err
	}

	currencies := in.Currencies
	if len(currencies) == 0 {
		currencies = core.DefaultCurrencies
	}
	normalized, err := core.NormalizeCurrencies(currencies)
	if err != nil {
		return core.Trip{}, err
	}
	currenciesJSON, err := json.Marshal(normalized)
	if err != nil {
		return core.Trip{}, fmt.Errorf("encode currencies: %w", err)
	}

	var trip core.Trip
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO trips (name, start_date, end_date, status, currencies)
			VALUES (?, ?, ?, 'active', ?)`,
			strings.TrimSpace(in.Name), nullDate(in.StartDate), nullDate(in.EndDate), string(currenciesJSON))
		if err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("trip id: %w", err)
		}
		if makeActive {
			if err := setMeta(ctx, tx, activeTripKey, strconv.FormatInt(id, 10)); err != nil {
				return err
			}
		}
		trip, err = getTrip(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Trip{}, err
	}
	return trip, nil
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// ListTrips returns all trips newest-updated first, optionally filtered by
// status.
func (s *Store) ListTrips(ctx context.Context, status core.TripStatus) ([]core.Trip, error) {
	query := "SELECT " + tripColumns + " FROM trips"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY updated_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []core.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// TripUpdate holds optional patch fields; nil pointers leave the column
// untouched.
type TripUpdate struct {
	Name       *string
	StartDate  *core.Date
	EndDate    *core.Date
	Currencies []string
}

// UpdateTrip patches the provided fields and bumps updated_at. The merged
// date range is validated against the stored row.
func (s *Store) UpdateTrip(ctx context.Context, id int64, upd TripUpdate) (core.Trip, error) {
	if upd.Name == nil && upd.StartDate == nil && upd.EndDate == nil && upd.Currencies == nil {
		return core.Trip{}, core.ErrNoFieldsToUpdate
	}

	var trip core.Trip
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTrip(ctx, tx, id)
		if err != nil {
			return err
		}

		sets := []string{"updated_at = " + utcNow}
		var args []any
		start, end := current.StartDate, current.EndDate

		if upd.Name != nil {
			if strings.TrimSpace(*upd.Name) == "" {
				return core.ErrEmptyName
			}
			sets = append(sets, "name = ?")
			args = append(args, strings.TrimSpace(*upd.Name))
		}
		if upd.StartDate != nil {
			start = *upd.StartDate
			sets = append(sets, "start_date = ?")
			args = append(args, nullDate(start))
		}
		if upd.EndDate != nil {
			end = *upd.EndDate
			sets = append(sets, "end_date = ?")
			args = append(args, nullDate(end))
		}
		if !start.IsZero() && !end.IsZero() && end.Before(start) {
			return core.ErrInvalidDateRange
		}
		if upd.Currencies != nil {
			normalized, err := core.NormalizeCurrencies(upd.Currencies)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(normalized)
			if err != nil {
				return fmt.Errorf("encode currencies: %w", err)
			}
			sets = append(sets, "currencies = ?")
			args = append(args, string(raw))
		}

		args = append(args, id)
		if _, err := tx.ExecContext(ctx,
			"UPDATE trips SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return fmt.Errorf("update trip: %w", err)
		}
		trip, err = getTrip(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Trip{}, err
	}
	return trip, nil
}

// ArchiveTrip marks a trip archived. The active trip cannot be archived
// while the pointer still names it.
func (s *Store) ArchiveTrip(ctx context.Context, id int64) (core.Trip, error) {
	var trip core.Trip
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTrip(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == core.StatusArchived {
			return core.ErrTripArchived
		}
		if active, ok, err := getMeta(ctx, tx, activeTripKey); err != nil {
			return err
		} else if ok && active == strconv.FormatInt(id, 10) {
			return fmt.Errorf("trip %d is the active trip: %w", id, core.ErrValidation)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE trips SET status = 'archived', updated_at = "+utcNow+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("archive trip: %w", err)
		}
		trip, err = getTrip(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Trip{}, err
	}
	return trip, nil
}

// UnarchiveTrip returns an archived trip to active status.
func (s *Store) UnarchiveTrip(ctx context.Context, id int64) (core.Trip, error) {
	var trip core.Trip
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTrip(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != core.StatusArchived {
			return core.ErrTripNotArchived
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE trips SET status = 'active', updated_at = "+utcNow+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("unarchive trip: %w", err)
		}
		trip, err = getTrip(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Trip{}, err
	}
	return trip, nil
}

// SetActiveTrip moves the active pointer to the given trip. Archived trips
// cannot be activated. The target's updated_at is bumped so it wins future
// pointer recovery.
func (s *Store) SetActiveTrip(ctx context.Context, id int64) (core.Trip, error) {
	var trip core.Trip
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTrip(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == core.StatusArchived {
			return core.ErrTripArchived
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE trips SET updated_at = "+utcNow+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("touch trip: %w", err)
		}
		if err := setMeta(ctx, tx, activeTripKey, strconv.FormatInt(id, 10)); err != nil {
			return err
		}
		trip, err = getTrip(ctx, tx, id)
		return err
	})
	if err != nil {
		return core.Trip{}, err
	}
	return trip, nil
}

// ResolveTripID maps an optional explicit trip id to the trip every
// trip-scoped operation should target. Explicit ids pass through verbatim.
// Otherwise the metadata pointer is consulted; a missing or dangling pointer
// falls back to the most recently updated active trip, then to the earliest
// created trip of any status, repairing the pointer along the way. With no
// trips at all the database is unusable and ErrNoTrips is returned.
func (s *Store) ResolveTripID(ctx context.Context, explicit int64) (int64, error) {
	if explicit > 0 {
		return explicit, nil
	}

	var resolved int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if raw, ok, err := getMeta(ctx, tx, activeTripKey); err != nil {
			return err
		} else if ok {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				if _, err := getTrip(ctx, tx, id); err == nil {
					resolved = id
					return nil
				} else if !errors.Is(err, core.ErrNotFound) {
					return err
				}
			}
		}

		// Pointer missing or dangling: prefer the freshest active trip,
		// highest id breaking timestamp ties.
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM trips WHERE status = 'active'
			ORDER BY updated_at DESC, id DESC LIMIT 1`).Scan(&resolved)
		if errors.Is(err, sql.ErrNoRows) {
			err = tx.QueryRowContext(ctx,
				"SELECT id FROM trips ORDER BY created_at ASC, id ASC LIMIT 1").Scan(&resolved)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrNoTrips
		}
		if err != nil {
			return fmt.Errorf("recover active trip: %w", err)
		}
		return setMeta(ctx, tx, activeTripKey, strconv.FormatInt(resolved, 10))
	})
	if err != nil {
		return 0, err
	}
	return resolved, nil
}

// GetActiveTrip resolves and loads the active trip in one call.
func (s *Store) GetActiveTrip(ctx context.Context) (core.Trip, error) {
	id, err := s.ResolveTripID(ctx, 0)
	if err != nil {
		return core.Trip{}, err
	}
	return s.GetTrip(ctx, id)
}

// ResetTrip deletes all expenses, budgets and forex cards belonging to one
// trip. The trip row itself survives.
func (s *Store) ResetTrip(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrip(ctx, tx, id); err != nil {
			return err
		}
		for _, table := range []string{"expenses", "budgets", "forex_cards"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE trip_id = ?", id); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		// The trip survives but loses its date range.
		if _, err := tx.ExecContext(ctx,
			"UPDATE trips SET start_date = NULL, end_date = NULL, updated_at = "+utcNow+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("reset trip dates: %w", err)
		}
		return nil
	})
}

// settingsKeys are the metadata entries that survive a full wipe.
var settingsKeys = []string{
	"rate_provider",
	"rate_cache_ttl_seconds",
	"budget_warn_percent",
	"budget_danger_percent",
	"forex_low_balance_percent",
	"budget_enforce_cap",
	"budget_auto_create",
	"default_budget_amounts",
	"default_currencies",
	"ui_theme",
	"ui_date_format",
}

// WipeAll deletes every trip and its ledger rows, preserving settings
// metadata, then bootstraps a fresh active "Default Trip" and returns its id.
func (s *Store) WipeAll(ctx context.Context) (int64, error) {
	var newID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"expenses", "budgets", "forex_cards", "trips"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("wipe %s: %w", table, err)
			}
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(settingsKeys)), ",")
		args := make([]any, len(settingsKeys))
		for i, k := range settingsKeys {
			args[i] = k
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM metadata WHERE key NOT IN ("+placeholders+")", args...); err != nil {
			return fmt.Errorf("wipe metadata: %w", err)
		}

		raw, err := json.Marshal(core.DefaultCurrencies)
		if err != nil {
			return fmt.Errorf("encode currencies: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO trips (name, status, currencies) VALUES ('Default Trip', 'active', ?)`,
			string(raw))
		if err != nil {
			return fmt.Errorf("bootstrap trip: %w", err)
		}
		newID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("trip id: %w", err)
		}
		return setMeta(ctx, tx, activeTripKey, strconv.FormatInt(newID, 10))
	})
	if err != nil {
		return 0, err
	}
	return newID, nil
}
