package http

import (
	"net/http"
	"strings"
	"time"

	"tripledger/internal/core"
	"tripledger/internal/log"
	"tripledger/internal/rates"
	"tripledger/internal/settings"
)

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	rateMap := make(map[string]float64)
	for _, currency := range core.DefaultCurrencies {
		rateMap[currency] = s.rates.Rate(r.Context(), currency)
	}
	NewResponse().JSON(map[string]any{
		"provider":  s.rates.ProviderName(),
		"base":      core.HomeCurrency,
		"rates":     rateMap,
		"overrides": viewOverrides(s.rates.ListOverrides()),
	}).Write(w)
}

type overridePayload struct {
	Rate       *float64 `json:"rate"`
	TTLSeconds *int     `json:"ttl_seconds"`
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(r.PathValue("currency"))
	var payload overridePayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	if payload.Rate == nil {
		BadRequestError("rate is required").Write(w)
		return
	}
	ttl := rates.DefaultOverrideTTL
	if payload.TTLSeconds != nil {
		ttl = time.Duration(*payload.TTLSeconds) * time.Second
	}
	override, err := s.rates.SetOverride(r.Context(), currency, *payload.Rate, ttl)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	NewResponse().JSON(viewOverride(override)).Write(w)
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	currency := strings.ToUpper(r.PathValue("currency"))
	if !s.rates.ClearOverride(currency) {
		NotFoundError("no override for " + currency).Write(w)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// settingsView is the full settings document returned by the API.
type settingsView struct {
	RateProvider         string             `json:"rate_provider"`
	RateCacheTTLSeconds  int                `json:"rate_cache_ttl_seconds"`
	BudgetWarnPercent    int                `json:"budget_warn_percent"`
	BudgetDangerPercent  int                `json:"budget_danger_percent"`
	ForexLowPercent      int                `json:"forex_low_balance_percent"`
	BudgetAutoCreate     bool               `json:"budget_auto_create"`
	BudgetEnforceCap     bool               `json:"budget_enforce_cap"`
	DefaultBudgetAmounts map[string]float64 `json:"default_budget_amounts"`
	DefaultCurrencies    []string           `json:"default_currencies"`
	UITheme              string             `json:"ui_theme"`
	UIDateFormat         string             `json:"ui_date_format"`
}

func (s *Server) settingsDocument(r *http.Request) settingsView {
	ctx := r.Context()
	thresholds := s.settings.Thresholds(ctx)
	policy := s.settings.BudgetPolicy(ctx)
	prefs := s.settings.UIPreferences(ctx)
	return settingsView{
		RateProvider:         s.settings.RateProvider(ctx),
		RateCacheTTLSeconds:  s.settings.RateCacheTTL(ctx),
		BudgetWarnPercent:    thresholds.WarnPercent,
		BudgetDangerPercent:  thresholds.DangerPercent,
		ForexLowPercent:      thresholds.ForexLowPercent,
		BudgetAutoCreate:     policy.AutoCreate,
		BudgetEnforceCap:     policy.EnforceCap,
		DefaultBudgetAmounts: policy.DefaultCaps,
		DefaultCurrencies:    s.settings.DefaultTripCurrencies(ctx),
		UITheme:              prefs.Theme,
		UIDateFormat:         prefs.DateFormat,
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.settingsDocument(r)).Write(w)
}

type settingsPayload struct {
	RateProvider         *string            `json:"rate_provider"`
	RateCacheTTLSeconds  *int               `json:"rate_cache_ttl_seconds"`
	BudgetWarnPercent    *int               `json:"budget_warn_percent"`
	BudgetDangerPercent  *int               `json:"budget_danger_percent"`
	ForexLowPercent      *int               `json:"forex_low_balance_percent"`
	BudgetAutoCreate     *bool              `json:"budget_auto_create"`
	BudgetEnforceCap     *bool              `json:"budget_enforce_cap"`
	DefaultBudgetAmounts map[string]float64 `json:"default_budget_amounts"`
	DefaultCurrencies    []string           `json:"default_currencies"`
	UITheme              *string            `json:"ui_theme"`
	UIDateFormat         *string            `json:"ui_date_format"`
}

// handleUpdateSettings patches the provided keys. A provider change also
// swaps the live rate provider and purges cached rates.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if resp := decodeJSON(r, &payload); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	if payload.RateProvider != nil {
		name := strings.TrimSpace(*payload.RateProvider)
		if err := s.settings.SetRateProvider(ctx, name); err != nil {
			writeDomainError(w, r, err)
			return
		}
		if s.providerFactory != nil {
			s.rates.SwitchProvider(s.providerFactory(name))
			log.FromContext(ctx).InfoContext(ctx, "Rate provider switched", log.FieldProvider, name)
		}
	}
	if payload.RateCacheTTLSeconds != nil {
		if err := s.settings.SetRateCacheTTL(ctx, *payload.RateCacheTTLSeconds); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if payload.BudgetWarnPercent != nil || payload.BudgetDangerPercent != nil || payload.ForexLowPercent != nil {
		merged := s.settings.Thresholds(ctx)
		if payload.BudgetWarnPercent != nil {
			merged.WarnPercent = *payload.BudgetWarnPercent
		}
		if payload.BudgetDangerPercent != nil {
			merged.DangerPercent = *payload.BudgetDangerPercent
		}
		if payload.ForexLowPercent != nil {
			merged.ForexLowPercent = *payload.ForexLowPercent
		}
		if err := s.settings.SetThresholds(ctx, merged); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if payload.BudgetAutoCreate != nil {
		if err := s.settings.SetBudgetAutoCreate(ctx, *payload.BudgetAutoCreate); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if payload.BudgetEnforceCap != nil {
		if err := s.settings.SetBudgetEnforceCap(ctx, *payload.BudgetEnforceCap); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if payload.DefaultBudgetAmounts != nil {
		if err := s.settings.SetDefaultBudgetAmounts(ctx, payload.DefaultBudgetAmounts); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if payload.DefaultCurrencies != nil {
		if err := s.settings.SetDefaultTripCurrencies(ctx, payload.DefaultCurrencies); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}
	if payload.UITheme != nil || payload.UIDateFormat != nil {
		prefs := settings.UIPreferences{}
		if payload.UITheme != nil {
			prefs.Theme = *payload.UITheme
		}
		if payload.UIDateFormat != nil {
			prefs.DateFormat = *payload.UIDateFormat
		}
		if err := s.settings.SetUIPreferences(ctx, prefs); err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	NewResponse().JSON(s.settingsDocument(r)).Write(w)
}
