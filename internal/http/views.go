// View structs shape domain types for the JSON API. Dates render as
// ISO days, timestamps as RFC 3339.

package http

import (
	"time"

	"tripledger/internal/analytics"
	"tripledger/internal/core"
	"tripledger/internal/rates"
	"tripledger/internal/storage"
)

type tripView struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Status     string   `json:"status"`
	Currencies []string `json:"currencies"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func viewTrip(t core.Trip) tripView {
	v := tripView{
		ID:         t.ID,
		Name:       t.Name,
		Status:     string(t.Status),
		Currencies: t.Currencies,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  t.UpdatedAt.Format(time.RFC3339),
	}
	if !t.StartDate.IsZero() {
		v.StartDate = t.StartDate.String()
	}
	if !t.EndDate.IsZero() {
		v.EndDate = t.EndDate.String()
	}
	return v
}

func viewTrips(trips []core.Trip) []tripView {
	out := make([]tripView, 0, len(trips))
	for _, t := range trips {
		out = append(out, viewTrip(t))
	}
	return out
}

type expenseView struct {
	ID            int64   `json:"id"`
	TripID        int64   `json:"trip_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Category      string  `json:"category"`
	Description   string  `json:"description,omitempty"`
	Date          string  `json:"date"`
	PaymentMethod string  `json:"payment_method"`
	INREquivalent float64 `json:"inr_equivalent"`
	ExchangeRate  float64 `json:"exchange_rate"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func viewExpense(e core.Expense) expenseView {
	return expenseView{
		ID:            e.ID,
		TripID:        e.TripID,
		Amount:        e.Amount,
		Currency:      e.Currency,
		Category:      e.Category,
		Description:   e.Description,
		Date:          e.Date.String(),
		PaymentMethod: string(e.PaymentMethod),
		INREquivalent: e.HomeEquivalent,
		ExchangeRate:  e.ExchangeRate,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     e.UpdatedAt.Format(time.RFC3339),
	}
}

func viewExpenses(expenses []core.Expense) []expenseView {
	out := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, viewExpense(e))
	}
	return out
}

type budgetView struct {
	Currency    string  `json:"currency"`
	MaxAmount   float64 `json:"max_amount"`
	SpentAmount float64 `json:"spent_amount"`
	Remaining   float64 `json:"remaining"`
	PercentUsed float64 `json:"percent_used"`
}

func viewBudget(b core.Budget) budgetView {
	return budgetView{
		Currency:    b.Currency,
		MaxAmount:   b.MaxAmount,
		SpentAmount: b.SpentAmount,
		Remaining:   b.Remaining(),
		PercentUsed: b.PercentUsed(),
	}
}

func viewBudgets(budgets []core.Budget) []budgetView {
	out := make([]budgetView, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, viewBudget(b))
	}
	return out
}

type forexCardView struct {
	Currency     string  `json:"currency"`
	LoadedAmount float64 `json:"loaded_amount"`
	SpentAmount  float64 `json:"spent_amount"`
	Remaining    float64 `json:"remaining"`
}

func viewForexCard(f core.ForexCard) forexCardView {
	return forexCardView{
		Currency:     f.Currency,
		LoadedAmount: f.LoadedAmount,
		SpentAmount:  f.SpentAmount,
		Remaining:    f.Remaining(),
	}
}

func viewForexCards(cards []core.ForexCard) []forexCardView {
	out := make([]forexCardView, 0, len(cards))
	for _, f := range cards {
		out = append(out, viewForexCard(f))
	}
	return out
}

type trendPointView struct {
	Date       string  `json:"date"`
	Total      float64 `json:"total"`
	Cumulative float64 `json:"cumulative"`
}

func viewTrend(points []analytics.TrendPoint) []trendPointView {
	out := make([]trendPointView, 0, len(points))
	for _, p := range points {
		out = append(out, trendPointView{
			Date:       p.Date.String(),
			Total:      p.Total,
			Cumulative: p.Cumulative,
		})
	}
	return out
}

type currencyShareView struct {
	Currency string  `json:"currency"`
	Total    float64 `json:"total"`
	INRTotal float64 `json:"inr_total"`
	Count    int     `json:"count"`
	Percent  float64 `json:"percent"`
}

func viewCurrencyShares(shares []analytics.CurrencyShare) []currencyShareView {
	out := make([]currencyShareView, 0, len(shares))
	for _, s := range shares {
		out = append(out, currencyShareView{
			Currency: s.Currency,
			Total:    s.Total,
			INRTotal: s.HomeSum,
			Count:    s.Count,
			Percent:  s.Percent,
		})
	}
	return out
}

type categoryShareView struct {
	Category string  `json:"category"`
	INRTotal float64 `json:"inr_total"`
	Count    int     `json:"count"`
	Percent  float64 `json:"percent"`
}

func viewCategoryShares(sums []storage.CategorySum) []categoryShareView {
	out := make([]categoryShareView, 0, len(sums))
	for _, c := range sums {
		out = append(out, categoryShareView{
			Category: c.Category,
			INRTotal: c.HomeSum,
			Count:    c.Count,
			Percent:  c.Percent,
		})
	}
	return out
}

type summaryView struct {
	Trip           tripView            `json:"trip"`
	TotalINRSpent  float64             `json:"total_inr_spent"`
	AverageDaily   float64             `json:"average_daily"`
	RemainingDaily float64             `json:"remaining_daily"`
	Budgets        []budgetView        `json:"budgets"`
	ForexCards     []forexCardView     `json:"forex_cards"`
	ByCurrency     []currencyShareView `json:"by_currency"`
	ByCategory     []categoryShareView `json:"by_category"`
	Alerts         []analytics.Alert   `json:"alerts"`
}

func viewSummary(s analytics.Summary) summaryView {
	return summaryView{
		Trip:           viewTrip(s.Trip),
		TotalINRSpent:  s.TotalHomeSpent,
		AverageDaily:   s.AverageDaily,
		RemainingDaily: s.RemainingDaily,
		Budgets:        viewBudgets(s.Budgets),
		ForexCards:     viewForexCards(s.ForexCards),
		ByCurrency:     viewCurrencyShares(s.ByCurrency),
		ByCategory:     viewCategoryShares(s.ByCategory),
		Alerts:         s.Alerts,
	}
}

type overrideView struct {
	Currency  string  `json:"currency"`
	Rate      float64 `json:"rate"`
	ExpiresAt string  `json:"expires_at"`
}

func viewOverride(o rates.Override) overrideView {
	return overrideView{
		Currency:  o.Currency,
		Rate:      o.Rate,
		ExpiresAt: o.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func viewOverrides(overrides []rates.Override) []overrideView {
	out := make([]overrideView, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, viewOverride(o))
	}
	return out
}
