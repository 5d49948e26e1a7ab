package core

import (
	"strings"
	"time"
)

const (
	// HomeCurrency is the base reporting currency; its rate is always 1.0.
	HomeCurrency = "INR"

	StatusActive   TripStatus = "active"
	StatusArchived TripStatus = "archived"

	PaymentCash  PaymentMethod = "cash"
	PaymentForex PaymentMethod = "forex"
	PaymentCard  PaymentMethod = "card"
)

// DefaultCurrencies is the global fallback list seeded during migration and
// used when a trip carries no currency list of its own.
var DefaultCurrencies = []string{"INR", "SGD", "MYR"}

var (
	supportedCurrencies = map[string]bool{"INR": true, "SGD": true, "MYR": true}

	// forexCurrencies is the subset of supported currencies for which a
	// prepaid forex card can be tracked. The home currency is never forex.
	forexCurrencies = map[string]bool{"SGD": true, "MYR": true}

	// orderedCategories fixes the presentation order for breakdowns.
	orderedCategories = []string{"food", "transport", "accommodation", "activities", "shopping", "misc"}

	supportedCategories = map[string]bool{
		"food":          true,
		"transport":     true,
		"accommodation": true,
		"activities":    true,
		"shopping":      true,
		"misc":          true,
	}
)

// Categories returns the supported expense categories in display order.
func Categories() []string {
	return append([]string(nil), orderedCategories...)
}

type (
	TripStatus    string
	PaymentMethod string

	// Trip scopes expenses, budgets and forex cards to a bounded travel
	// period. Exactly one trip is "active" via the metadata pointer.
	Trip struct {
		ID         int64
		Name       string
		StartDate  Date // zero when unset
		EndDate    Date // zero when unset
		Status     TripStatus
		Currencies []string
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	Expense struct {
		ID             int64
		TripID         int64
		Amount         float64
		Currency       string
		Category       string
		Description    string
		Date           Date
		PaymentMethod  PaymentMethod
		HomeEquivalent float64
		ExchangeRate   float64
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// Budget tracks a per-(trip,currency) spending cap and running spent
	// total. MaxAmount 0 means uncapped.
	Budget struct {
		TripID      int64
		Currency    string
		MaxAmount   float64
		SpentAmount float64
		UpdatedAt   time.Time
	}

	// ForexCard tracks prepaid card funds for a forex-eligible currency.
	ForexCard struct {
		TripID       int64
		Currency     string
		LoadedAmount float64
		SpentAmount  float64
		UpdatedAt    time.Time
	}

	// Date is a calendar day without a time component.
	Date struct {
		time.Time
	}
)

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses an ISO YYYY-MM-DD value.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// DaysUntil returns the inclusive day count from d through end, or 0 when
// end precedes d.
func (d Date) DaysUntil(end Date) int {
	diff := int(end.Sub(d.Time).Hours()/24) + 1
	if diff < 0 {
		return 0
	}
	return diff
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// SupportedCurrency reports whether c is in the global currency set.
func SupportedCurrency(c string) bool {
	return supportedCurrencies[strings.ToUpper(c)]
}

// ForexCurrency reports whether a forex card can be tracked for c.
func ForexCurrency(c string) bool {
	return forexCurrencies[strings.ToUpper(c)]
}

func SupportedCategory(c string) bool {
	return supportedCategories[c]
}

func (s TripStatus) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentForex || m == PaymentCard
}

// Remaining returns the uncommitted budget amount, floored at zero.
func (b Budget) Remaining() float64 {
	if r := b.MaxAmount - b.SpentAmount; r > 0 {
		return r
	}
	return 0
}

// PercentUsed returns spent as a percentage of the cap, 0 when uncapped.
func (b Budget) PercentUsed() float64 {
	if b.MaxAmount <= 0 {
		return 0
	}
	return Round2(b.SpentAmount / b.MaxAmount * 100)
}

// Remaining returns unspent card funds, floored at zero.
func (f ForexCard) Remaining() float64 {
	if r := f.LoadedAmount - f.SpentAmount; r > 0 {
		return r
	}
	return 0
}

// LowBalance reports whether remaining funds fall strictly below
// thresholdPct percent of the loaded amount. An unloaded card is never low.
func (f ForexCard) LowBalance(thresholdPct int) bool {
	if f.LoadedAmount <= 0 {
		return false
	}
	return f.Remaining()/f.LoadedAmount < float64(thresholdPct)/100.0
}

// ExpenseInput is the validated inbound payload for creating an expense.
type ExpenseInput struct {
	Amount        float64
	Currency      string
	Category      string
	Description   string
	Date          Date
	PaymentMethod PaymentMethod
}

// Validate enforces field-level rules plus the cross-field constraint that
// payment_method=forex requires a forex-eligible currency.
func (e ExpenseInput) Validate() error {
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !SupportedCurrency(e.Currency) {
		return ErrUnsupportedCurrency
	}
	if !SupportedCategory(e.Category) {
		return ErrUnsupportedCategory
	}
	if !e.PaymentMethod.Valid() {
		return ErrUnsupportedPayment
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if e.Date.After(Today()) {
		return ErrFutureDate
	}
	if e.PaymentMethod == PaymentForex && !ForexCurrency(e.Currency) {
		return ErrForexCurrencyOnly
	}
	return nil
}

// NormalizeCurrencies uppercases and de-duplicates a currency list,
// preserving order. Returns ErrEmptyCurrencies when nothing survives.
func NormalizeCurrencies(currencies []string) ([]string, error) {
	seen := make(map[string]bool, len(currencies))
	out := make([]string, 0, len(currencies))
	for _, c := range currencies {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, ErrEmptyCurrencies
	}
	return out, nil
}
