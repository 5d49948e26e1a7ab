package analytics

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"tripledger/internal/core"
	"tripledger/internal/settings"
	"tripledger/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "analytics.db"))
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, settings.New(store), logger), store
}

func activateTrip(t *testing.T, store *storage.Store, in storage.TripInput) core.Trip {
	t.Helper()
	trip, err := store.CreateTrip(context.Background(), in, true)
	if err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}
	return trip
}

func insertINR(t *testing.T, store *storage.Store, tripID int64, amount float64, date core.Date) {
	t.Helper()
	_, err := store.InsertExpenseWithBudget(context.Background(), tripID, core.ExpenseInput{
		Amount: amount, Currency: "INR", Category: "food",
		Date: date, PaymentMethod: core.PaymentCash,
	}, 1.0, storage.BudgetPolicy{AutoCreate: true})
	if err != nil {
		t.Fatalf("InsertExpenseWithBudget() error = %v", err)
	}
}

func TestAverageDailySpend(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	today := core.Today()

	// The window opens at the first expense, not the trip start: the trip
	// began nine days ago but spending started four days ago, so 500 is
	// spread over five days, not ten.
	trip := activateTrip(t, store, storage.TripInput{
		Name:      "Elapsed",
		StartDate: today.AddDays(-9),
		EndDate:   today.AddDays(10),
	})
	insertINR(t, store, trip.ID, 300, today.AddDays(-4))
	insertINR(t, store, trip.ID, 200, today)

	got, err := svc.AverageDailySpend(ctx, trip.ID, core.Date{})
	if err != nil {
		t.Fatalf("AverageDailySpend() error = %v", err)
	}
	if got != 100 {
		t.Errorf("average = %v, want 100 (500 over 5 days)", got)
	}
}

func TestAverageDailySpendAsOf(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	today := core.Today()

	trip := activateTrip(t, store, storage.TripInput{Name: "AsOf"})
	insertINR(t, store, trip.ID, 90, today.AddDays(-2))
	insertINR(t, store, trip.ID, 300, today)

	// An earlier as-of date excludes later spend from both sides of the
	// division.
	got, err := svc.AverageDailySpend(ctx, trip.ID, today.AddDays(-1))
	if err != nil {
		t.Fatalf("AverageDailySpend() error = %v", err)
	}
	if got != 45 {
		t.Errorf("average as of yesterday = %v, want 45 (90 over 2 days)", got)
	}

	// An as-of date before the first expense yields zero.
	if got, err := svc.AverageDailySpend(ctx, trip.ID, today.AddDays(-5)); err != nil || got != 0 {
		t.Errorf("average before first expense = %v, %v; want 0", got, err)
	}
}

func TestAverageDailySpendNoExpenses(t *testing.T) {
	svc, store := newTestService(t)

	trip := activateTrip(t, store, storage.TripInput{Name: "Empty"})
	if got, err := svc.AverageDailySpend(context.Background(), trip.ID, core.Date{}); err != nil || got != 0 {
		t.Errorf("empty trip average = %v, %v; want 0", got, err)
	}
}

func TestRemainingDailyBudget(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	today := core.Today()

	// Four days left including today; 600 of the INR 1000 cap unspent.
	trip := activateTrip(t, store, storage.TripInput{
		Name:      "Remaining",
		StartDate: today.AddDays(-2),
		EndDate:   today.AddDays(3),
	})
	if _, err := store.SetBudgetMax(ctx, trip.ID, "INR", 1000); err != nil {
		t.Fatalf("SetBudgetMax() error = %v", err)
	}
	insertINR(t, store, trip.ID, 400, today.AddDays(-1))

	// A foreign-currency budget must not leak into the home run-rate.
	if _, err := store.SetBudgetMax(ctx, trip.ID, "SGD", 100); err != nil {
		t.Fatalf("SetBudgetMax(SGD) error = %v", err)
	}

	got, err := svc.RemainingDailyBudget(ctx, trip, core.Date{})
	if err != nil {
		t.Fatalf("RemainingDailyBudget() error = %v", err)
	}
	if got != 150 {
		t.Errorf("remaining daily = %v, want 150 (600 over 4 days)", got)
	}
}

func TestRemainingDailyBudgetEdgeCases(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	today := core.Today()

	open := activateTrip(t, store, storage.TripInput{Name: "Open-ended"})
	if got, err := svc.RemainingDailyBudget(ctx, open, core.Date{}); err != nil || got != 0 {
		t.Errorf("remaining daily without end date = %v, %v; want 0", got, err)
	}

	past := activateTrip(t, store, storage.TripInput{
		Name:      "Finished",
		StartDate: today.AddDays(-10),
		EndDate:   today.AddDays(-5),
	})
	if got, err := svc.RemainingDailyBudget(ctx, past, core.Date{}); err != nil || got != 0 {
		t.Errorf("remaining daily past end = %v, %v; want 0", got, err)
	}

	// No home-currency budget row means no run-rate, even with a foreign
	// budget in place.
	unbudgeted := activateTrip(t, store, storage.TripInput{
		Name:      "Unbudgeted",
		StartDate: today,
		EndDate:   today.AddDays(5),
	})
	if _, err := store.SetBudgetMax(ctx, unbudgeted.ID, "MYR", 500); err != nil {
		t.Fatalf("SetBudgetMax() error = %v", err)
	}
	if got, err := svc.RemainingDailyBudget(ctx, unbudgeted, core.Date{}); err != nil || got != 0 {
		t.Errorf("remaining daily without home budget = %v, %v; want 0", got, err)
	}
}

func TestTrendCumulative(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	today := core.Today()

	trip := activateTrip(t, store, storage.TripInput{Name: "Trend"})
	insertINR(t, store, trip.ID, 100.5, today.AddDays(-2))
	insertINR(t, store, trip.ID, 50.25, today.AddDays(-1))
	insertINR(t, store, trip.ID, 10, today)

	points, err := svc.Trend(ctx, trip.ID, storage.DateRange{})
	if err != nil {
		t.Fatalf("Trend() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("trend points = %d, want 3", len(points))
	}
	wantCumulative := []float64{100.5, 150.75, 160.75}
	for i, w := range wantCumulative {
		if points[i].Cumulative != w {
			t.Errorf("points[%d].Cumulative = %v, want %v", i, points[i].Cumulative, w)
		}
	}

	// A window restarts the cumulative sum at its first included day.
	windowed, err := svc.Trend(ctx, trip.ID, storage.DateRange{From: today.AddDays(-1)})
	if err != nil {
		t.Fatalf("Trend() windowed error = %v", err)
	}
	if len(windowed) != 2 || windowed[1].Cumulative != 60.25 {
		t.Errorf("windowed trend = %+v, want 2 points ending at 60.25", windowed)
	}
}

func TestBudgetLevelBoundaries(t *testing.T) {
	thresholds := settings.Thresholds{WarnPercent: 80, DangerPercent: 90, ForexLowPercent: 20}

	tests := []struct {
		name   string
		budget core.Budget
		want   StatusLevel
	}{
		{"uncapped", core.Budget{MaxAmount: 0, SpentAmount: 9999}, StatusOK},
		{"below warn", core.Budget{MaxAmount: 100, SpentAmount: 79.99}, StatusOK},
		{"exactly warn", core.Budget{MaxAmount: 100, SpentAmount: 80}, StatusWarning},
		{"between", core.Budget{MaxAmount: 100, SpentAmount: 85}, StatusWarning},
		{"exactly danger", core.Budget{MaxAmount: 100, SpentAmount: 90}, StatusDanger},
		{"over cap", core.Budget{MaxAmount: 100, SpentAmount: 120}, StatusDanger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BudgetLevel(tt.budget, thresholds); got != tt.want {
				t.Errorf("BudgetLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlerts(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	today := core.Today()

	trip := activateTrip(t, store, storage.TripInput{Name: "Alerting"})
	if _, err := store.SetBudgetMax(ctx, trip.ID, "INR", 100); err != nil {
		t.Fatalf("SetBudgetMax() error = %v", err)
	}
	insertINR(t, store, trip.ID, 92, today)

	if _, err := store.SetForexCardLoaded(ctx, trip.ID, "SGD", 100); err != nil {
		t.Fatalf("SetForexCardLoaded() error = %v", err)
	}
	if _, err := store.InsertExpenseWithBudget(ctx, trip.ID, core.ExpenseInput{
		Amount: 85, Currency: "SGD", Category: "shopping",
		Date: today, PaymentMethod: core.PaymentForex,
	}, 62.0, storage.BudgetPolicy{AutoCreate: true}); err != nil {
		t.Fatalf("forex expense error = %v", err)
	}

	alerts, err := svc.Alerts(ctx, trip.ID)
	if err != nil {
		t.Fatalf("Alerts() error = %v", err)
	}

	kinds := map[string]bool{}
	for _, a := range alerts {
		kinds[a.Kind] = true
	}
	if !kinds[AlertBudgetDanger] {
		t.Errorf("alerts = %+v, want budget_danger for INR at 92%%", alerts)
	}
	if !kinds[AlertForexLow] {
		t.Errorf("alerts = %+v, want forex_low_balance for SGD at 15%% remaining", alerts)
	}
}

func TestSummarize(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	today := core.Today()

	trip := activateTrip(t, store, storage.TripInput{
		Name:      "Dashboard",
		StartDate: today.AddDays(-1),
		EndDate:   today.AddDays(1),
	})
	insertINR(t, store, trip.ID, 100, today)

	sum, err := svc.Summarize(ctx, trip)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if sum.TotalHomeSpent != 100 {
		t.Errorf("total = %v, want 100", sum.TotalHomeSpent)
	}
	// All spend landed today, so the average window is that single day.
	if sum.AverageDaily != 100 {
		t.Errorf("average daily = %v, want 100 (100 over 1 day)", sum.AverageDaily)
	}
	if len(sum.ByCategory) != len(core.Categories()) {
		t.Errorf("category entries = %d, want %d", len(sum.ByCategory), len(core.Categories()))
	}
	if len(sum.Budgets) != 1 {
		t.Errorf("budgets = %d, want 1", len(sum.Budgets))
	}
}
