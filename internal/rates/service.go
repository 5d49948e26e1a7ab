package rates

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tripledger/internal/cache"
	"tripledger/internal/core"
)

const (
	// DefaultOverrideTTL is what callers pass when no TTL was requested.
	DefaultOverrideTTL = 15 * time.Minute
	// MaxOverrideTTL bounds how long a manual rate can pin conversions.
	MaxOverrideTTL = 24 * time.Hour

	cacheMaxEntries = 64
)

// Override is a manually pinned rate with an expiry.
type Override struct {
	Currency  string
	Rate      float64
	ExpiresAt time.Time
}

// Service resolves rates through, in order: manual overrides, the TTL
// cache, then the provider. Concurrent misses for one currency collapse
// into a single provider call. Resolution never returns an error for a
// supported currency; providers degrade internally instead.
type Service struct {
	logger *slog.Logger

	mu        sync.RWMutex
	provider  Provider
	overrides map[string]Override

	rateCache *cache.LRUCache[float64]
	cacheTTL  func(ctx context.Context) time.Duration
	group     singleflight.Group

	now func() time.Time
}

// NewService builds the rate service. cacheTTL is consulted per fetch so
// settings changes take effect without a restart.
func NewService(provider Provider, cacheTTL func(ctx context.Context) time.Duration, logger *slog.Logger) *Service {
	return &Service{
		logger:    logger,
		provider:  provider,
		overrides: make(map[string]Override),
		rateCache: cache.NewLRUCache[float64](cacheMaxEntries, time.Hour),
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

// RegisterCache attaches the internal rate cache to a cleanup manager.
func (s *Service) RegisterCache(m *cache.Manager) {
	m.Register(s.rateCache)
}

// SwitchProvider swaps the provider and drops all cached rates so the new
// source is visible immediately. Overrides survive the switch.
func (s *Service) SwitchProvider(provider Provider) {
	s.mu.Lock()
	s.provider = provider
	s.mu.Unlock()
	s.rateCache.Purge()
}

func (s *Service) ProviderName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider.Name()
}

// Rate resolves the home-currency rate for a currency. The home currency is
// always 1.0; unsupported currencies resolve to 1.0 with a warning rather
// than failing the caller's write.
func (s *Service) Rate(ctx context.Context, currency string) float64 {
	currency = strings.ToUpper(currency)
	if currency == core.HomeCurrency {
		return 1.0
	}
	if !core.SupportedCurrency(currency) {
		s.logger.WarnContext(ctx, "rate requested for unsupported currency", "currency", currency)
		return 1.0
	}

	if ov, ok := s.activeOverride(currency); ok {
		return ov.Rate
	}

	if rate, ok := s.rateCache.Get(currency); ok {
		return rate
	}

	// Collapse concurrent misses into one provider call per currency.
	v, _, _ := s.group.Do(currency, func() (any, error) {
		s.mu.RLock()
		provider := s.provider
		s.mu.RUnlock()

		rate, err := provider.Rate(ctx, currency)
		if err != nil || rate <= 0 {
			s.logger.WarnContext(ctx, "provider rate unavailable, using static fallback",
				"currency", currency, "provider", provider.Name(), "error", err)
			rate, _ = staticProvider{}.Rate(ctx, currency)
		}
		s.rateCache.SetWithTTL(currency, rate, s.cacheTTL(ctx))
		return rate, nil
	})
	return v.(float64)
}

// ComputeHome converts an amount into the home currency, returning the
// rounded equivalent and the rate used.
func (s *Service) ComputeHome(ctx context.Context, amount float64, currency string) (float64, float64) {
	rate := s.Rate(ctx, currency)
	return core.Round2(amount * rate), rate
}

// SetOverride pins a manual rate for a currency. ttl must be strictly
// positive and at most the maximum; callers wanting the default pass
// DefaultOverrideTTL. Overrides beat both the cache and the provider until
// they lapse.
func (s *Service) SetOverride(ctx context.Context, currency string, rate float64, ttl time.Duration) (Override, error) {
	currency = strings.ToUpper(currency)
	if !core.SupportedCurrency(currency) {
		return Override{}, core.ErrUnsupportedCurrency
	}
	if currency == core.HomeCurrency {
		return Override{}, fmt.Errorf("home currency rate is fixed at 1.0: %w", core.ErrValidation)
	}
	if rate <= 0 {
		return Override{}, fmt.Errorf("override rate must be positive: %w", core.ErrValidation)
	}
	if ttl <= 0 || ttl > MaxOverrideTTL {
		return Override{}, fmt.Errorf("override ttl must be positive and at most %s: %w", MaxOverrideTTL, core.ErrValidation)
	}

	ov := Override{Currency: currency, Rate: rate, ExpiresAt: s.now().Add(ttl)}
	s.mu.Lock()
	s.overrides[currency] = ov
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "rate override set",
		"currency", currency, "rate", rate, "expires_at", ov.ExpiresAt.Format(time.RFC3339))
	return ov, nil
}

// ClearOverride removes a manual rate, reporting whether one was active.
func (s *Service) ClearOverride(currency string) bool {
	currency = strings.ToUpper(currency)
	s.mu.Lock()
	defer s.mu.Unlock()

	ov, ok := s.overrides[currency]
	if !ok {
		return false
	}
	delete(s.overrides, currency)
	return !s.now().After(ov.ExpiresAt)
}

// ListOverrides returns the active overrides sorted by currency, dropping
// any that have lapsed.
func (s *Service) ListOverrides() []Override {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]Override, 0, len(s.overrides))
	for currency, ov := range s.overrides {
		if now.After(ov.ExpiresAt) {
			delete(s.overrides, currency)
			continue
		}
		out = append(out, ov)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// activeOverride returns the override for a currency, lazily purging it
// when expired.
func (s *Service) activeOverride(currency string) (Override, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ov, ok := s.overrides[currency]
	if !ok {
		return Override{}, false
	}
	if s.now().After(ov.ExpiresAt) {
		delete(s.overrides, currency)
		return Override{}, false
	}
	return ov, true
}
