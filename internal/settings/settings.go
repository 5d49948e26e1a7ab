// Package settings exposes typed, validated accessors over the metadata
// key/value table. Values are stored as strings; defaults apply whenever a
// key is absent or unparsable so a half-configured database stays usable.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

const (
	keyRateProvider     = "rate_provider"
	keyRateCacheTTL     = "rate_cache_ttl_seconds"
	keyWarnPercent      = "budget_warn_percent"
	keyDangerPercent    = "budget_danger_percent"
	keyForexLowPercent  = "forex_low_balance_percent"
	keyEnforceCap       = "budget_enforce_cap"
	keyAutoCreate       = "budget_auto_create"
	keyDefaultBudgets   = "default_budget_amounts"
	keyDefaultCurrency  = "default_currencies"
	keyUITheme          = "ui_theme"
	keyUIDateFormat     = "ui_date_format"
)

const (
	ProviderStatic      = "static"
	ProviderPlaceholder = "external-placeholder"
	ProviderHTTP        = "external-http"
)

const (
	DefaultRateProvider  = ProviderStatic
	DefaultCacheTTL      = 3600
	MinCacheTTL          = 60
	MaxCacheTTL          = 86400
	DefaultWarnPercent   = 80
	DefaultDangerPercent = 90
	DefaultForexLow      = 20
)

var validProviders = map[string]bool{
	ProviderStatic:      true,
	ProviderPlaceholder: true,
	ProviderHTTP:        true,
}

// Service reads and writes settings through the store's metadata table.
type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

func (s *Service) intOr(ctx context.Context, key string, def int) int {
	raw, ok, err := s.store.GetMeta(ctx, key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func (s *Service) boolOr(ctx context.Context, key string, def bool) bool {
	raw, ok, err := s.store.GetMeta(ctx, key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// RateProvider returns the configured provider name, falling back to the
// static provider for unknown values.
func (s *Service) RateProvider(ctx context.Context) string {
	raw, ok, err := s.store.GetMeta(ctx, keyRateProvider)
	if err != nil || !ok || !validProviders[raw] {
		return DefaultRateProvider
	}
	return raw
}

func (s *Service) SetRateProvider(ctx context.Context, provider string) error {
	if !validProviders[provider] {
		return fmt.Errorf("unknown rate provider %q: %w", provider, core.ErrValidation)
	}
	return s.store.SetMeta(ctx, keyRateProvider, provider)
}

// RateCacheTTL returns the rate cache lifetime in seconds, clamped into the
// allowed range.
func (s *Service) RateCacheTTL(ctx context.Context) int {
	ttl := s.intOr(ctx, keyRateCacheTTL, DefaultCacheTTL)
	if ttl < MinCacheTTL || ttl > MaxCacheTTL {
		return DefaultCacheTTL
	}
	return ttl
}

func (s *Service) SetRateCacheTTL(ctx context.Context, seconds int) error {
	if seconds < MinCacheTTL || seconds > MaxCacheTTL {
		return fmt.Errorf("cache ttl %d out of range [%d, %d]: %w",
			seconds, MinCacheTTL, MaxCacheTTL, core.ErrValidation)
	}
	return s.store.SetMeta(ctx, keyRateCacheTTL, strconv.Itoa(seconds))
}

// Thresholds bundle the alerting percentages.
type Thresholds struct {
	WarnPercent     int
	DangerPercent   int
	ForexLowPercent int
}

func (s *Service) Thresholds(ctx context.Context) Thresholds {
	t := Thresholds{
		WarnPercent:     s.intOr(ctx, keyWarnPercent, DefaultWarnPercent),
		DangerPercent:   s.intOr(ctx, keyDangerPercent, DefaultDangerPercent),
		ForexLowPercent: s.intOr(ctx, keyForexLowPercent, DefaultForexLow),
	}
	// Stored values that break the invariants revert wholesale to defaults.
	if !t.valid() {
		return Thresholds{DefaultWarnPercent, DefaultDangerPercent, DefaultForexLow}
	}
	return t
}

func (t Thresholds) valid() bool {
	inRange := func(n int) bool { return n >= 1 && n <= 99 }
	return inRange(t.WarnPercent) && inRange(t.DangerPercent) && inRange(t.ForexLowPercent) &&
		t.WarnPercent < t.DangerPercent
}

func (s *Service) SetThresholds(ctx context.Context, t Thresholds) error {
	if !t.valid() {
		return fmt.Errorf("thresholds must be 1-99 with warn below danger: %w", core.ErrValidation)
	}
	for key, val := range map[string]int{
		keyWarnPercent:     t.WarnPercent,
		keyDangerPercent:   t.DangerPercent,
		keyForexLowPercent: t.ForexLowPercent,
	} {
		if err := s.store.SetMeta(ctx, key, strconv.Itoa(val)); err != nil {
			return err
		}
	}
	return nil
}

// BudgetPolicy assembles the storage-layer policy from settings. Cap
// enforcement is opt-in; auto-created budgets are the default behavior.
func (s *Service) BudgetPolicy(ctx context.Context) storage.BudgetPolicy {
	return storage.BudgetPolicy{
		AutoCreate:  s.boolOr(ctx, keyAutoCreate, true),
		EnforceCap:  s.boolOr(ctx, keyEnforceCap, false),
		DefaultCaps: s.DefaultBudgetAmounts(ctx),
	}
}

func (s *Service) SetBudgetAutoCreate(ctx context.Context, on bool) error {
	return s.store.SetMeta(ctx, keyAutoCreate, strconv.FormatBool(on))
}

func (s *Service) SetBudgetEnforceCap(ctx context.Context, on bool) error {
	return s.store.SetMeta(ctx, keyEnforceCap, strconv.FormatBool(on))
}

// DefaultBudgetAmounts returns the per-currency caps seeded onto
// auto-created budgets. Absent or malformed data yields an empty map.
func (s *Service) DefaultBudgetAmounts(ctx context.Context) map[string]float64 {
	raw, ok, err := s.store.GetMeta(ctx, keyDefaultBudgets)
	if err != nil || !ok {
		return map[string]float64{}
	}
	caps := map[string]float64{}
	if err := json.Unmarshal([]byte(raw), &caps); err != nil {
		return map[string]float64{}
	}
	return caps
}

func (s *Service) SetDefaultBudgetAmounts(ctx context.Context, caps map[string]float64) error {
	for currency, amount := range caps {
		if !core.SupportedCurrency(currency) {
			return fmt.Errorf("default budget for %q: %w", currency, core.ErrUnsupportedCurrency)
		}
		if amount < 0 {
			return fmt.Errorf("default budget for %s: %w", currency, core.ErrNegativeAmount)
		}
	}
	raw, err := json.Marshal(caps)
	if err != nil {
		return fmt.Errorf("encode default budgets: %w", err)
	}
	return s.store.SetMeta(ctx, keyDefaultBudgets, string(raw))
}

// DefaultTripCurrencies returns the currency list applied to new trips that
// do not specify their own.
func (s *Service) DefaultTripCurrencies(ctx context.Context) []string {
	raw, ok, err := s.store.GetMeta(ctx, keyDefaultCurrency)
	if err != nil || !ok {
		return core.DefaultCurrencies
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil || len(list) == 0 {
		return core.DefaultCurrencies
	}
	normalized, err := core.NormalizeCurrencies(list)
	if err != nil {
		return core.DefaultCurrencies
	}
	return normalized
}

func (s *Service) SetDefaultTripCurrencies(ctx context.Context, list []string) error {
	normalized, err := core.NormalizeCurrencies(list)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("encode currencies: %w", err)
	}
	return s.store.SetMeta(ctx, keyDefaultCurrency, string(raw))
}

// UIPreferences are free-form display hints persisted for clients.
type UIPreferences struct {
	Theme      string
	DateFormat string
}

func (s *Service) UIPreferences(ctx context.Context) UIPreferences {
	p := UIPreferences{Theme: "light", DateFormat: "2006-01-02"}
	if raw, ok, err := s.store.GetMeta(ctx, keyUITheme); err == nil && ok {
		p.Theme = raw
	}
	if raw, ok, err := s.store.GetMeta(ctx, keyUIDateFormat); err == nil && ok {
		p.DateFormat = raw
	}
	return p
}

func (s *Service) SetUIPreferences(ctx context.Context, p UIPreferences) error {
	if p.Theme != "" {
		if err := s.store.SetMeta(ctx, keyUITheme, p.Theme); err != nil {
			return err
		}
	}
	if p.DateFormat != "" {
		if err := s.store.SetMeta(ctx, keyUIDateFormat, p.DateFormat); err != nil {
			return err
		}
	}
	return nil
}
