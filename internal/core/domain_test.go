package core

import (
	"errors"
	"testing"
)

func validInput() ExpenseInput {
	return ExpenseInput{
		Amount:        200,
		Currency:      "SGD",
		Category:      "food",
		Date:          Today(),
		PaymentMethod: PaymentCash,
	}
}

func TestExpenseInputValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ExpenseInput)
		want   error
	}{
		{"valid", func(e *ExpenseInput) {}, nil},
		{"zero amount", func(e *ExpenseInput) { e.Amount = 0 }, ErrInvalidAmount},
		{"negative amount", func(e *ExpenseInput) { e.Amount = -5 }, ErrInvalidAmount},
		{"unknown currency", func(e *ExpenseInput) { e.Currency = "USD" }, ErrUnsupportedCurrency},
		{"unknown category", func(e *ExpenseInput) { e.Category = "gadgets" }, ErrUnsupportedCategory},
		{"unknown payment", func(e *ExpenseInput) { e.PaymentMethod = "cheque" }, ErrUnsupportedPayment},
		{"zero date", func(e *ExpenseInput) { e.Date = Date{} }, ErrInvalidDate},
		{"future date", func(e *ExpenseInput) { e.Date = Date{Time: Today().AddDate(0, 0, 2)} }, ErrFutureDate},
		{"forex home currency", func(e *ExpenseInput) {
			e.Currency = "INR"
			e.PaymentMethod = PaymentForex
		}, ErrForexCurrencyOnly},
		{"forex eligible currency ok", func(e *ExpenseInput) {
			e.Currency = "MYR"
			e.PaymentMethod = PaymentForex
		}, nil},
	}
	for _, tc := range cases {
		in := validInput()
		tc.mutate(&in)
		err := in.Validate()
		if !errors.Is(err, tc.want) && !(tc.want == nil && err == nil) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestDateDaysUntil(t *testing.T) {
	d := NewDate(2026, 3, 10)
	cases := []struct {
		end  Date
		want int
	}{
		{NewDate(2026, 3, 10), 1}, // same day is inclusive
		{NewDate(2026, 3, 13), 4},
		{NewDate(2026, 3, 9), 0}, // past end clamps to zero
	}
	for _, tc := range cases {
		if got := d.DaysUntil(tc.end); got != tc.want {
			t.Fatalf("DaysUntil(%s) = %d, want %d", tc.end, got, tc.want)
		}
	}
}

func TestForexCardLowBalance(t *testing.T) {
	card := ForexCard{LoadedAmount: 1000, SpentAmount: 700}
	if card.LowBalance(20) {
		t.Fatalf("30%% remaining should not be low at 20%% threshold")
	}
	card.SpentAmount = 810
	if !card.LowBalance(20) {
		t.Fatalf("19%% remaining should be low at 20%% threshold")
	}
	empty := ForexCard{}
	if empty.LowBalance(20) {
		t.Fatal("unloaded card must never be low")
	}
}

func TestNormalizeCurrencies(t *testing.T) {
	got, err := NormalizeCurrencies([]string{" inr", "SGD", "sgd", "", "MYR"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"INR", "SGD", "MYR"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if _, err := NormalizeCurrencies([]string{"", "  "}); !errors.Is(err, ErrEmptyCurrencies) {
		t.Fatalf("expected ErrEmptyCurrencies, got %v", err)
	}
}
