package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tripledger/internal/core"
)

func scanForexCard(row interface{ Scan(...any) error }) (core.ForexCard, error) {
	var (
		f       core.ForexCard
		updated string
	)
	err := row.Scan(&f.TripID, &f.Currency, &f.LoadedAmount, &f.SpentAmount, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ForexCard{}, core.ErrNotFound
	}
	if err != nil {
		return core.ForexCard{}, fmt.Errorf("scan forex card: %w", err)
	}
	f.UpdatedAt = parseTimestamp(updated)
	return f, nil
}

// SetForexCardLoaded upserts the loaded balance for a (trip, currency)
// forex card. Only forex-eligible currencies carry cards; loading a
// negative amount is rejected. Spent history survives a reload.
func (s *Store) SetForexCardLoaded(ctx context.Context, tripID int64, currency string, loaded float64) (core.ForexCard, error) {
	currency = strings.ToUpper(currency)
	if !core.ForexCurrency(currency) {
		return core.ForexCard{}, core.ErrForexCurrencyOnly
	}
	if loaded < 0 {
		return core.ForexCard{}, core.ErrNegativeAmount
	}

	var card core.ForexCard
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTrip(ctx, tx, tripID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forex_cards (trip_id, currency, loaded_amount, spent_amount) VALUES (?, ?, ?, 0)
			ON CONFLICT(trip_id, currency) DO UPDATE SET loaded_amount = excluded.loaded_amount, updated_at = `+utcNow,
			tripID, currency, core.Round2(loaded))
		if err != nil {
			return fmt.Errorf("set forex card: %w", err)
		}
		card, err = getForexCard(ctx, tx, tripID, currency)
		return err
	})
	if err != nil {
		return core.ForexCard{}, err
	}
	return card, nil
}

func getForexCard(ctx context.Context, q dbtx, tripID int64, currency string) (core.ForexCard, error) {
	return scanForexCard(q.QueryRowContext(ctx, `
		SELECT trip_id, currency, loaded_amount, spent_amount, updated_at
		FROM forex_cards WHERE trip_id = ? AND currency = ?`,
		tripID, strings.ToUpper(currency)))
}

func (s *Store) GetForexCard(ctx context.Context, tripID int64, currency string) (core.ForexCard, error) {
	return getForexCard(ctx, s.db, tripID, currency)
}

// ListForexCards returns a trip's forex cards ordered by currency code.
func (s *Store) ListForexCards(ctx context.Context, tripID int64) ([]core.ForexCard, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trip_id, currency, loaded_amount, spent_amount, updated_at
		FROM forex_cards WHERE trip_id = ? ORDER BY currency`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list forex cards: %w", err)
	}
	defer rows.Close()

	var cards []core.ForexCard
	for rows.Next() {
		f, err := scanForexCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, f)
	}
	return cards, rows.Err()
}
