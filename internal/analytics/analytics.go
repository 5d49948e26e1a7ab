// Package analytics derives spending insight from the ledger: daily
// averages, remaining run-rates, breakdowns and threshold alerts. All
// money figures are home-currency equivalents rounded to two decimals.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tripledger/internal/core"
	"tripledger/internal/settings"
	"tripledger/internal/storage"
)

type Service struct {
	store    *storage.Store
	settings *settings.Service
	logger   *slog.Logger
}

func New(store *storage.Store, settings *settings.Service, logger *slog.Logger) *Service {
	return &Service{store: store, settings: settings, logger: logger}
}

// AverageDailySpend returns home spend through asOf divided by the
// inclusive day count from the first expense through asOf. Trip dates do
// not shape the window. A zero asOf means today; a trip with no expenses,
// or none on or before asOf, averages zero.
func (s *Service) AverageDailySpend(ctx context.Context, tripID int64, asOf core.Date) (float64, error) {
	if asOf.IsZero() {
		asOf = core.Today()
	}

	earliest, err := s.store.EarliestExpenseDate(ctx, tripID)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if earliest.After(asOf) {
		return 0, nil
	}

	total, err := s.store.TotalHomeSpent(ctx, tripID, storage.DateRange{To: asOf})
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	days := earliest.DaysUntil(asOf)
	if days < 1 {
		days = 1
	}
	return core.Round2(total / float64(days)), nil
}

// RemainingDailyBudget spreads the unspent home-currency budget over the
// days left from asOf through the trip end, inclusive. A zero asOf means
// today. Without an end date, past it, or without a home budget row the
// result is zero. Foreign-currency budgets do not contribute.
func (s *Service) RemainingDailyBudget(ctx context.Context, trip core.Trip, asOf core.Date) (float64, error) {
	if asOf.IsZero() {
		asOf = core.Today()
	}
	if trip.EndDate.IsZero() || trip.EndDate.Before(asOf) {
		return 0, nil
	}

	budget, err := s.store.GetBudget(ctx, trip.ID, core.HomeCurrency)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	remaining := budget.Remaining()
	if remaining <= 0 {
		return 0, nil
	}

	days := asOf.DaysUntil(trip.EndDate)
	if days < 1 {
		days = 1
	}
	return core.Round2(remaining / float64(days)), nil
}

// TrendPoint is one day of the cumulative spend curve.
type TrendPoint struct {
	Date       core.Date
	Total      float64
	Cumulative float64
}

// Trend returns per-day totals with a running cumulative sum, earliest day
// first. Days with no spend are omitted; the window narrows the curve to an
// inclusive date range.
func (s *Service) Trend(ctx context.Context, tripID int64, window storage.DateRange) ([]TrendPoint, error) {
	totals, err := s.store.DailyTotals(ctx, tripID, window)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(totals))
	var running float64
	for _, d := range totals {
		running += d.Total
		points = append(points, TrendPoint{
			Date:       d.Date,
			Total:      d.Total,
			Cumulative: core.Round2(running),
		})
	}
	return points, nil
}

// CurrencyShare extends a currency sum with its slice of total home spend.
type CurrencyShare struct {
	storage.CurrencySum
	Percent float64
}

// CurrencyBreakdown returns per-currency spend with home-spend shares,
// optionally narrowed to an inclusive date range.
func (s *Service) CurrencyBreakdown(ctx context.Context, tripID int64, window storage.DateRange) ([]CurrencyShare, error) {
	sums, err := s.store.SumsByCurrency(ctx, tripID, window)
	if err != nil {
		return nil, err
	}

	var grand float64
	for _, c := range sums {
		grand += c.HomeSum
	}
	shares := make([]CurrencyShare, 0, len(sums))
	for _, c := range sums {
		share := CurrencyShare{CurrencySum: c}
		if grand > 0 {
			share.Percent = core.Round2(c.HomeSum / grand * 100)
		}
		shares = append(shares, share)
	}
	return shares, nil
}

// CategoryBreakdown returns per-category spend, one entry for every known
// category, optionally narrowed to an inclusive date range.
func (s *Service) CategoryBreakdown(ctx context.Context, tripID int64, window storage.DateRange) ([]storage.CategorySum, error) {
	return s.store.SumsByCategory(ctx, tripID, window)
}

// StatusLevel grades budget consumption against the warn and danger
// thresholds.
type StatusLevel string

const (
	StatusOK      StatusLevel = "ok"
	StatusWarning StatusLevel = "warning"
	StatusDanger  StatusLevel = "danger"
)

// BudgetLevel grades one budget. Uncapped budgets are always ok; hitting a
// threshold exactly counts as crossing it.
func BudgetLevel(b core.Budget, t settings.Thresholds) StatusLevel {
	if b.MaxAmount <= 0 {
		return StatusOK
	}
	pct := b.PercentUsed()
	switch {
	case pct >= float64(t.DangerPercent):
		return StatusDanger
	case pct >= float64(t.WarnPercent):
		return StatusWarning
	default:
		return StatusOK
	}
}

// Alert flags a budget or forex card needing attention.
type Alert struct {
	Kind     string  `json:"kind"`
	Currency string  `json:"currency"`
	Message  string  `json:"message"`
	Percent  float64 `json:"percent"`
}

const (
	AlertBudgetWarning = "budget_warning"
	AlertBudgetDanger  = "budget_danger"
	AlertForexLow      = "forex_low_balance"
)

// Alerts evaluates every budget and forex card of a trip against the
// configured thresholds.
func (s *Service) Alerts(ctx context.Context, tripID int64) ([]Alert, error) {
	thresholds := s.settings.Thresholds(ctx)

	budgets, err := s.store.ListBudgets(ctx, tripID)
	if err != nil {
		return nil, err
	}
	alerts := []Alert{}
	for _, b := range budgets {
		switch BudgetLevel(b, thresholds) {
		case StatusDanger:
			alerts = append(alerts, Alert{
				Kind:     AlertBudgetDanger,
				Currency: b.Currency,
				Message:  fmt.Sprintf("%s budget at %.2f%% of %.2f", b.Currency, b.PercentUsed(), b.MaxAmount),
				Percent:  b.PercentUsed(),
			})
		case StatusWarning:
			alerts = append(alerts, Alert{
				Kind:     AlertBudgetWarning,
				Currency: b.Currency,
				Message:  fmt.Sprintf("%s budget at %.2f%% of %.2f", b.Currency, b.PercentUsed(), b.MaxAmount),
				Percent:  b.PercentUsed(),
			})
		}
	}

	cards, err := s.store.ListForexCards(ctx, tripID)
	if err != nil {
		return nil, err
	}
	for _, f := range cards {
		if !f.LowBalance(thresholds.ForexLowPercent) {
			continue
		}
		remainingPct := core.Round2(f.Remaining() / f.LoadedAmount * 100)
		alerts = append(alerts, Alert{
			Kind:     AlertForexLow,
			Currency: f.Currency,
			Message:  fmt.Sprintf("%s forex card down to %.2f%% of loaded funds", f.Currency, remainingPct),
			Percent:  remainingPct,
		})
	}
	return alerts, nil
}

// Summary is the dashboard payload for one trip.
type Summary struct {
	Trip            core.Trip
	TotalHomeSpent  float64
	AverageDaily    float64
	RemainingDaily  float64
	Budgets         []core.Budget
	ForexCards      []core.ForexCard
	ByCurrency      []CurrencyShare
	ByCategory      []storage.CategorySum
	Alerts          []Alert
}

// Summarize assembles the full dashboard view for a trip.
func (s *Service) Summarize(ctx context.Context, trip core.Trip) (Summary, error) {
	out := Summary{Trip: trip}

	var err error
	if out.TotalHomeSpent, err = s.store.TotalHomeSpent(ctx, trip.ID, storage.DateRange{}); err != nil {
		return Summary{}, err
	}
	if out.AverageDaily, err = s.AverageDailySpend(ctx, trip.ID, core.Date{}); err != nil {
		return Summary{}, err
	}
	if out.RemainingDaily, err = s.RemainingDailyBudget(ctx, trip, core.Date{}); err != nil {
		return Summary{}, err
	}
	if out.Budgets, err = s.store.ListBudgets(ctx, trip.ID); err != nil {
		return Summary{}, err
	}
	if out.ForexCards, err = s.store.ListForexCards(ctx, trip.ID); err != nil {
		return Summary{}, err
	}
	if out.ByCurrency, err = s.CurrencyBreakdown(ctx, trip.ID, storage.DateRange{}); err != nil {
		return Summary{}, err
	}
	if out.ByCategory, err = s.CategoryBreakdown(ctx, trip.ID, storage.DateRange{}); err != nil {
		return Summary{}, err
	}
	if out.Alerts, err = s.Alerts(ctx, trip.ID); err != nil {
		return Summary{}, err
	}
	return out, nil
}
