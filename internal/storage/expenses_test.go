package storage

import (
	"context"
	"errors"
	"math"
	"testing"

	"tripledger/internal/core"
)

func sgdExpense(amount float64, payment core.PaymentMethod) core.ExpenseInput {
	return core.ExpenseInput{
		Amount:        amount,
		Currency:      "SGD",
		Category:      "food",
		Description:   "hawker centre",
		Date:          core.NewDate(2026, 3, 2),
		PaymentMethod: payment,
	}
}

func assertBudgetSpent(t *testing.T, s *Store, tripID int64, currency string, want float64) {
	t.Helper()
	b, err := s.GetBudget(context.Background(), tripID, currency)
	if err != nil {
		t.Fatalf("GetBudget(%s) error = %v", currency, err)
	}
	if math.Abs(b.SpentAmount-want) > core.Epsilon {
		t.Errorf("%s budget spent = %v, want %v", currency, b.SpentAmount, want)
	}
}

func assertForexSpent(t *testing.T, s *Store, tripID int64, currency string, want float64) {
	t.Helper()
	f, err := s.GetForexCard(context.Background(), tripID, currency)
	if err != nil {
		t.Fatalf("GetForexCard(%s) error = %v", currency, err)
	}
	if math.Abs(f.SpentAmount-want) > core.Epsilon {
		t.Errorf("%s forex spent = %v, want %v", currency, f.SpentAmount, want)
	}
}

func TestInsertExpenseLedgerEffects(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)

	e := mustInsertExpense(t, s, tripID, sgdExpense(100, core.PaymentForex), 62.0)
	if e.HomeEquivalent != 6200 {
		t.Errorf("home equivalent = %v, want 6200", e.HomeEquivalent)
	}
	if e.ExchangeRate != 62.0 {
		t.Errorf("stored rate = %v, want 62", e.ExchangeRate)
	}
	assertBudgetSpent(t, s, tripID, "SGD", 100)
	assertForexSpent(t, s, tripID, "SGD", 100)

	// A cash expense touches the budget but never the forex card.
	mustInsertExpense(t, s, tripID, core.ExpenseInput{
		Amount: 40, Currency: "SGD", Category: "transport",
		Date: core.NewDate(2026, 3, 3), PaymentMethod: core.PaymentCash,
	}, 62.0)
	assertBudgetSpent(t, s, tripID, "SGD", 140)
	assertForexSpent(t, s, tripID, "SGD", 100)
}

func TestInsertExpenseValidation(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()
	policy := BudgetPolicy{AutoCreate: true}

	tests := []struct {
		name    string
		input   core.ExpenseInput
		wantErr error
	}{
		{"zero amount", core.ExpenseInput{
			Amount: 0, Currency: "SGD", Category: "food",
			Date: core.NewDate(2026, 3, 2), PaymentMethod: core.PaymentCash,
		}, core.ErrInvalidAmount},
		{"unknown currency", core.ExpenseInput{
			Amount: 10, Currency: "USD", Category: "food",
			Date: core.NewDate(2026, 3, 2), PaymentMethod: core.PaymentCash,
		}, core.ErrUnsupportedCurrency},
		{"forex in home currency", core.ExpenseInput{
			Amount: 10, Currency: "INR", Category: "food",
			Date: core.NewDate(2026, 3, 2), PaymentMethod: core.PaymentForex,
		}, core.ErrForexCurrencyOnly},
		{"future date", core.ExpenseInput{
			Amount: 10, Currency: "SGD", Category: "food",
			Date: core.NewDate(2030, 1, 1), PaymentMethod: core.PaymentCash,
		}, core.ErrFutureDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.InsertExpenseWithBudget(ctx, tripID, tt.input, 62.0, policy); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := s.InsertExpenseWithBudget(ctx, 999, sgdExpense(10, core.PaymentCash), 62.0, policy); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("unknown trip error = %v, want ErrNotFound", err)
	}
}

func TestUpdateExpenseAmountRepricesAtStoredRate(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()
	policy := BudgetPolicy{AutoCreate: true}

	e := mustInsertExpense(t, s, tripID, sgdExpense(100, core.PaymentForex), 62.0)

	amount := 150.0
	updated, err := s.UpdateExpenseWithBudget(ctx, e.ID, 0, ExpenseUpdate{Amount: &amount}, nil, policy)
	if err != nil {
		t.Fatalf("UpdateExpenseWithBudget() error = %v", err)
	}
	if updated.HomeEquivalent != 9300 {
		t.Errorf("home equivalent = %v, want 9300 (150 at stored rate 62)", updated.HomeEquivalent)
	}
	assertBudgetSpent(t, s, tripID, "SGD", 150)
	assertForexSpent(t, s, tripID, "SGD", 150)
}

func TestUpdateExpenseCurrencyAndPaymentTransitions(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()
	policy := BudgetPolicy{AutoCreate: true}

	e := mustInsertExpense(t, s, tripID, sgdExpense(100, core.PaymentForex), 62.0)

	// forex SGD -> forex MYR: old card releases, new card charges, and the
	// new currency needs its own rate.
	currency := "MYR"
	rate := 18.0
	updated, err := s.UpdateExpenseWithBudget(ctx, e.ID, 0, ExpenseUpdate{Currency: &currency}, &rate, policy)
	if err != nil {
		t.Fatalf("currency change error = %v", err)
	}
	if updated.HomeEquivalent != 1800 {
		t.Errorf("home equivalent = %v, want 1800", updated.HomeEquivalent)
	}
	assertBudgetSpent(t, s, tripID, "SGD", 0)
	assertBudgetSpent(t, s, tripID, "MYR", 100)
	assertForexSpent(t, s, tripID, "SGD", 0)
	assertForexSpent(t, s, tripID, "MYR", 100)

	// forex -> cash releases the card but keeps the budget charge.
	cash := core.PaymentCash
	if _, err := s.UpdateExpenseWithBudget(ctx, e.ID, 0, ExpenseUpdate{PaymentMethod: &cash}, nil, policy); err != nil {
		t.Fatalf("payment change error = %v", err)
	}
	assertBudgetSpent(t, s, tripID, "MYR", 100)
	assertForexSpent(t, s, tripID, "MYR", 0)

	// cash -> forex charges the card again.
	forex := core.PaymentForex
	if _, err := s.UpdateExpenseWithBudget(ctx, e.ID, 0, ExpenseUpdate{PaymentMethod: &forex}, nil, policy); err != nil {
		t.Fatalf("payment change error = %v", err)
	}
	assertForexSpent(t, s, tripID, "MYR", 100)
}

func TestDeleteExpenseReleasesSpend(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	e := mustInsertExpense(t, s, tripID, sgdExpense(100, core.PaymentForex), 62.0)
	if err := s.DeleteExpenseWithBudget(ctx, e.ID, 0); err != nil {
		t.Fatalf("DeleteExpenseWithBudget() error = %v", err)
	}
	assertBudgetSpent(t, s, tripID, "SGD", 0)
	assertForexSpent(t, s, tripID, "SGD", 0)

	if _, err := s.GetExpense(ctx, e.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetExpense() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteExpenseWithBudget(ctx, e.ID, 0); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("double delete error = %v, want ErrNotFound", err)
	}
}

func TestExpenseMutationsScopedToTrip(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	other, err := s.CreateTrip(ctx, TripInput{Name: "Other"}, false)
	if err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}

	e := mustInsertExpense(t, s, tripID, sgdExpense(100, core.PaymentForex), 62.0)

	// A trip scope that does not own the expense hides it entirely.
	amount := 50.0
	if _, err := s.UpdateExpenseWithBudget(ctx, e.ID, other.ID, ExpenseUpdate{Amount: &amount}, nil, BudgetPolicy{AutoCreate: true}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("update with wrong trip error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteExpenseWithBudget(ctx, e.ID, other.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("delete with wrong trip error = %v, want ErrNotFound", err)
	}
	assertBudgetSpent(t, s, tripID, "SGD", 100)

	// The owning trip passes the scope check.
	if _, err := s.UpdateExpenseWithBudget(ctx, e.ID, tripID, ExpenseUpdate{Amount: &amount}, nil, BudgetPolicy{AutoCreate: true}); err != nil {
		t.Fatalf("scoped update error = %v", err)
	}
	if err := s.DeleteExpenseWithBudget(ctx, e.ID, tripID); err != nil {
		t.Fatalf("scoped delete error = %v", err)
	}
}

func TestBudgetSumInvariant(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	inputs := []core.ExpenseInput{
		sgdExpense(12.5, core.PaymentForex),
		sgdExpense(30, core.PaymentCash),
		sgdExpense(7.25, core.PaymentCard),
	}
	var ids []int64
	for _, in := range inputs {
		ids = append(ids, mustInsertExpense(t, s, tripID, in, 62.0).ID)
	}

	if err := s.DeleteExpenseWithBudget(ctx, ids[1], 0); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	amount := 20.0
	if _, err := s.UpdateExpenseWithBudget(ctx, ids[0], 0, ExpenseUpdate{Amount: &amount}, nil, BudgetPolicy{AutoCreate: true}); err != nil {
		t.Fatalf("update error = %v", err)
	}

	// spent must equal the sum of surviving expense amounts.
	expenses, err := s.ListExpenses(ctx, tripID, ExpenseFilter{Currency: "SGD"})
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	var sum float64
	for _, e := range expenses {
		sum += e.Amount
	}
	assertBudgetSpent(t, s, tripID, "SGD", core.Round2(sum))
}

func TestEnforceCapRollsBackWholeInsert(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	if _, err := s.SetBudgetMax(ctx, tripID, "SGD", 100); err != nil {
		t.Fatalf("SetBudgetMax() error = %v", err)
	}
	policy := BudgetPolicy{AutoCreate: true, EnforceCap: true}

	if _, err := s.InsertExpenseWithBudget(ctx, tripID, sgdExpense(80, core.PaymentForex), 62.0, policy); err != nil {
		t.Fatalf("within-cap insert error = %v", err)
	}
	if _, err := s.InsertExpenseWithBudget(ctx, tripID, sgdExpense(30, core.PaymentForex), 62.0, policy); !errors.Is(err, core.ErrBudgetCapExceeded) {
		t.Fatalf("over-cap insert error = %v, want ErrBudgetCapExceeded", err)
	}

	// The rejected expense must leave no trace anywhere.
	expenses, err := s.ListExpenses(ctx, tripID, ExpenseFilter{})
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(expenses) != 1 {
		t.Errorf("expenses = %d, want 1", len(expenses))
	}
	assertBudgetSpent(t, s, tripID, "SGD", 80)
	assertForexSpent(t, s, tripID, "SGD", 80)
}

func TestBudgetMissingWithoutAutoCreate(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	_, err := s.InsertExpenseWithBudget(ctx, tripID, sgdExpense(10, core.PaymentCash), 62.0, BudgetPolicy{AutoCreate: false})
	if !errors.Is(err, core.ErrBudgetMissing) {
		t.Fatalf("error = %v, want ErrBudgetMissing", err)
	}
}

func TestListExpensesFilters(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	seed := []core.ExpenseInput{
		{Amount: 10, Currency: "SGD", Category: "food", Date: core.NewDate(2026, 3, 1), PaymentMethod: core.PaymentCash},
		{Amount: 20, Currency: "MYR", Category: "transport", Date: core.NewDate(2026, 3, 2), PaymentMethod: core.PaymentForex},
		{Amount: 30, Currency: "SGD", Category: "food", Date: core.NewDate(2026, 3, 3), PaymentMethod: core.PaymentCard},
	}
	for _, in := range seed {
		mustInsertExpense(t, s, tripID, in, 50.0)
	}

	tests := []struct {
		name   string
		filter ExpenseFilter
		want   int
	}{
		{"all", ExpenseFilter{}, 3},
		{"by currency", ExpenseFilter{Currency: "sgd"}, 2},
		{"by category", ExpenseFilter{Category: "transport"}, 1},
		{"by payment", ExpenseFilter{PaymentMethod: core.PaymentCard}, 1},
		{"date window", ExpenseFilter{From: core.NewDate(2026, 3, 2), To: core.NewDate(2026, 3, 3)}, 2},
		{"limit", ExpenseFilter{Limit: 2}, 2},
		{"limit offset", ExpenseFilter{Limit: 2, Offset: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListExpenses(ctx, tripID, tt.filter)
			if err != nil {
				t.Fatalf("ListExpenses() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}

	// Newest first.
	all, _ := s.ListExpenses(ctx, tripID, ExpenseFilter{})
	if all[0].Date.String() != "2026-03-03" {
		t.Errorf("first expense date = %s, want 2026-03-03", all[0].Date)
	}
}

func TestSetForexCardLoadedValidation(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	if _, err := s.SetForexCardLoaded(ctx, tripID, "INR", 100); !errors.Is(err, core.ErrForexCurrencyOnly) {
		t.Errorf("INR card error = %v, want ErrForexCurrencyOnly", err)
	}
	if _, err := s.SetForexCardLoaded(ctx, tripID, "SGD", -5); !errors.Is(err, core.ErrNegativeAmount) {
		t.Errorf("negative load error = %v, want ErrNegativeAmount", err)
	}

	card, err := s.SetForexCardLoaded(ctx, tripID, "sgd", 500)
	if err != nil {
		t.Fatalf("SetForexCardLoaded() error = %v", err)
	}
	if card.Currency != "SGD" || card.LoadedAmount != 500 {
		t.Errorf("card = %+v, want SGD loaded 500", card)
	}

	// Reload keeps spent.
	mustInsertExpense(t, s, tripID, sgdExpense(50, core.PaymentForex), 62.0)
	card, err = s.SetForexCardLoaded(ctx, tripID, "SGD", 800)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if card.LoadedAmount != 800 || card.SpentAmount != 50 {
		t.Errorf("card after reload = %+v, want loaded 800 spent 50", card)
	}
}

func TestSetBudgetMaxKeepsSpent(t *testing.T) {
	s := newTestStore(t)
	tripID := mustResolveTrip(t, s)
	ctx := context.Background()

	mustInsertExpense(t, s, tripID, sgdExpense(60, core.PaymentCash), 62.0)
	b, err := s.SetBudgetMax(ctx, tripID, "SGD", 1000)
	if err != nil {
		t.Fatalf("SetBudgetMax() error = %v", err)
	}
	if b.MaxAmount != 1000 || b.SpentAmount != 60 {
		t.Errorf("budget = %+v, want max 1000 spent 60", b)
	}

	if _, err := s.SetBudgetMax(ctx, tripID, "SGD", -1); !errors.Is(err, core.ErrNegativeAmount) {
		t.Errorf("negative cap error = %v, want ErrNegativeAmount", err)
	}
	if _, err := s.SetBudgetMax(ctx, tripID, "USD", 10); !errors.Is(err, core.ErrUnsupportedCurrency) {
		t.Errorf("unknown currency error = %v, want ErrUnsupportedCurrency", err)
	}
}
