package core

import "errors"

// Error taxonomy. Validation errors are detected before any mutation and
// never touch the store; ErrNotFound covers missing rows and trip
// mismatches; ErrNoTrips is fatal and unreachable after bootstrap.
var (
	ErrNotFound = errors.New("not found")
	ErrNoTrips  = errors.New("no trips configured")

	ErrValidation          = errors.New("validation failed")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidDate         = errors.New("invalid date")
	ErrFutureDate          = errors.New("date cannot be in the future")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrUnsupportedCategory = errors.New("unsupported category")
	ErrUnsupportedPayment  = errors.New("unsupported payment method")
	ErrForexCurrencyOnly   = errors.New("forex payment requires a forex-eligible currency")
	ErrEmptyCurrencies     = errors.New("currencies list cannot be empty")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrInvalidStatus       = errors.New("invalid trip status")
	ErrInvalidDateRange    = errors.New("end date cannot be before start date")
	ErrNoFieldsToUpdate    = errors.New("at least one field must be provided")

	ErrBudgetCapExceeded = errors.New("budget cap exceeded")
	ErrBudgetMissing     = errors.New("budget not configured for currency")
	ErrNegativeAmount    = errors.New("amount cannot be negative")
	ErrTripArchived      = errors.New("trip is archived")
	ErrTripNotArchived   = errors.New("trip is not archived")
)

// IsValidation reports whether err belongs to the caller-correctable
// validation/business-rule class of the taxonomy.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrValidation, ErrInvalidAmount, ErrInvalidDate, ErrFutureDate,
		ErrUnsupportedCurrency, ErrUnsupportedCategory, ErrUnsupportedPayment,
		ErrForexCurrencyOnly, ErrEmptyCurrencies, ErrEmptyName,
		ErrInvalidStatus, ErrInvalidDateRange, ErrNoFieldsToUpdate,
		ErrBudgetCapExceeded, ErrBudgetMissing, ErrNegativeAmount,
		ErrTripArchived, ErrTripNotArchived,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
