// Utilities for parsing and validating request data. They consolidate
// JSON body decoding, path/query parameter extraction and input
// sanitization shared by the handlers.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// decodeJSON reads a JSON body into dst, rejecting unknown fields and
// oversized payloads. Returns an error response builder on failure.
func decodeJSON(r *http.Request, dst any) *ResponseBuilder {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return BadRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}

// pathID extracts a positive integer id from the named path segment.
func pathID(r *http.Request, name string) (int64, *ResponseBuilder) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequestError("invalid " + name + " '" + raw + "'")
	}
	return id, nil
}

// queryTripID reads the optional trip_id query parameter. Zero means
// "resolve the active trip".
func queryTripID(query url.Values) (int64, *ResponseBuilder) {
	raw := strings.TrimSpace(query.Get("trip_id"))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequestError("invalid trip_id '" + raw + "'")
	}
	return id, nil
}

// sanitizeInput trims whitespace and strips control characters except
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// expensePayload is the inbound JSON shape for expense creation and
// updates. Pointer fields distinguish "absent" from "zero" on updates.
type expensePayload struct {
	TripID        *int64   `json:"trip_id"`
	Amount        *float64 `json:"amount"`
	Currency      *string  `json:"currency"`
	Category      *string  `json:"category"`
	Description   *string  `json:"description"`
	Date          *string  `json:"date"`
	PaymentMethod *string  `json:"payment_method"`
}

// toInput converts a creation payload, applying defaults for omitted
// fields the same way the original manual flow did: today's date and
// cash payment.
func (p expensePayload) toInput() (core.ExpenseInput, error) {
	in := core.ExpenseInput{
		Date:          core.Today(),
		PaymentMethod: core.PaymentCash,
	}
	if p.Amount != nil {
		in.Amount = *p.Amount
	}
	if p.Currency != nil {
		in.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
	}
	if p.Category != nil {
		in.Category = strings.ToLower(strings.TrimSpace(*p.Category))
	}
	if p.Description != nil {
		in.Description = sanitizeInput(*p.Description)
	}
	if p.Date != nil && strings.TrimSpace(*p.Date) != "" {
		d, err := core.ParseDate(strings.TrimSpace(*p.Date))
		if err != nil {
			return core.ExpenseInput{}, err
		}
		in.Date = d
	}
	if p.PaymentMethod != nil {
		in.PaymentMethod = core.PaymentMethod(strings.ToLower(strings.TrimSpace(*p.PaymentMethod)))
	}
	return in, nil
}

// toUpdate converts an update payload, carrying only the fields present.
func (p expensePayload) toUpdate() (storage.ExpenseUpdate, error) {
	var upd storage.ExpenseUpdate
	upd.Amount = p.Amount
	if p.Currency != nil {
		c := strings.ToUpper(strings.TrimSpace(*p.Currency))
		upd.Currency = &c
	}
	if p.Category != nil {
		c := strings.ToLower(strings.TrimSpace(*p.Category))
		upd.Category = &c
	}
	if p.Description != nil {
		d := sanitizeInput(*p.Description)
		upd.Description = &d
	}
	if p.Date != nil {
		d, err := core.ParseDate(strings.TrimSpace(*p.Date))
		if err != nil {
			return storage.ExpenseUpdate{}, err
		}
		upd.Date = &d
	}
	if p.PaymentMethod != nil {
		m := core.PaymentMethod(strings.ToLower(strings.TrimSpace(*p.PaymentMethod)))
		upd.PaymentMethod = &m
	}
	return upd, nil
}

// parseDateRange reads the optional from/to query parameters bounding an
// aggregate read.
func parseDateRange(query url.Values) (storage.DateRange, error) {
	var window storage.DateRange
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return storage.DateRange{}, err
		}
		window.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return storage.DateRange{}, err
		}
		window.To = d
	}
	return window, nil
}

// parseExpenseFilter builds a list filter from query parameters.
func parseExpenseFilter(query url.Values) (storage.ExpenseFilter, error) {
	var f storage.ExpenseFilter
	f.Currency = strings.ToUpper(strings.TrimSpace(query.Get("currency")))
	f.Category = strings.ToLower(strings.TrimSpace(query.Get("category")))
	if v := strings.TrimSpace(query.Get("payment_method")); v != "" {
		m := core.PaymentMethod(strings.ToLower(v))
		if !m.Valid() {
			return f, core.ErrUnsupportedPayment
		}
		f.PaymentMethod = m
	}
	if v := strings.TrimSpace(query.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.From = d
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.To = d
	}
	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	if v := strings.TrimSpace(query.Get("offset")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("invalid offset")
		}
		f.Offset = n
	}
	return f, nil
}

// tripPayload is the inbound JSON shape for trip creation and updates.
type tripPayload struct {
	Name       *string  `json:"name"`
	StartDate  *string  `json:"start_date"`
	EndDate    *string  `json:"end_date"`
	Currencies []string `json:"currencies"`
	MakeActive *bool    `json:"make_active"`
}

func (p tripPayload) toInput() (storage.TripInput, error) {
	var in storage.TripInput
	if p.Name != nil {
		in.Name = sanitizeInput(*p.Name)
	}
	in.Currencies = p.Currencies
	if p.StartDate != nil && strings.TrimSpace(*p.StartDate) != "" {
		d, err := core.ParseDate(strings.TrimSpace(*p.StartDate))
		if err != nil {
			return storage.TripInput{}, err
		}
		in.StartDate = d
	}
	if p.EndDate != nil && strings.TrimSpace(*p.EndDate) != "" {
		d, err := core.ParseDate(strings.TrimSpace(*p.EndDate))
		if err != nil {
			return storage.TripInput{}, err
		}
		in.EndDate = d
	}
	return in, nil
}

func (p tripPayload) toUpdate() (storage.TripUpdate, error) {
	var upd storage.TripUpdate
	if p.Name != nil {
		n := sanitizeInput(*p.Name)
		upd.Name = &n
	}
	upd.Currencies = p.Currencies
	if p.StartDate != nil {
		d, err := core.ParseDate(strings.TrimSpace(*p.StartDate))
		if err != nil {
			return storage.TripUpdate{}, err
		}
		upd.StartDate = &d
	}
	if p.EndDate != nil {
		d, err := core.ParseDate(strings.TrimSpace(*p.EndDate))
		if err != nil {
			return storage.TripUpdate{}, err
		}
		upd.EndDate = &d
	}
	return upd, nil
}
