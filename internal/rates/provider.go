// Package rates resolves currency conversion rates into the home currency.
// A provider supplies raw rates; the service layers caching and manual
// overrides on top.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"tripledger/internal/core"
	"tripledger/internal/settings"
)

// Provider returns the multiplier converting one unit of the given currency
// into the home currency.
type Provider interface {
	Rate(ctx context.Context, currency string) (float64, error)
	Name() string
}

// staticRates are the built-in fallback rates. Every provider ultimately
// degrades to these so rate resolution never fails an expense write.
var staticRates = map[string]float64{
	core.HomeCurrency: 1.0,
	"SGD":             62.0,
	"MYR":             18.0,
}

// placeholderRates simulate an external feed with slightly different values
// so provider switches are observable without network access.
var placeholderRates = map[string]float64{
	core.HomeCurrency: 1.0,
	"SGD":             61.5,
	"MYR":             18.2,
}

type staticProvider struct{}

func (staticProvider) Name() string { return settings.ProviderStatic }

func (staticProvider) Rate(_ context.Context, currency string) (float64, error) {
	if r, ok := staticRates[strings.ToUpper(currency)]; ok {
		return r, nil
	}
	return 1.0, nil
}

type placeholderProvider struct{}

func (placeholderProvider) Name() string { return settings.ProviderPlaceholder }

func (placeholderProvider) Rate(_ context.Context, currency string) (float64, error) {
	if r, ok := placeholderRates[strings.ToUpper(currency)]; ok {
		return r, nil
	}
	return 1.0, nil
}

// httpProvider fetches a rate table from a JSON endpoint. Responses are
// held for refreshInterval; when a refresh fails the static fallback serves
// for retryWindow before another fetch is attempted.
type httpProvider struct {
	url    string
	client *http.Client
	logger *slog.Logger

	refreshInterval time.Duration
	retryWindow     time.Duration

	mu            sync.Mutex
	rates         map[string]float64
	fetchedAt     time.Time
	lastFailureAt time.Time
}

const (
	httpRefreshInterval = 30 * time.Minute
	httpRetryWindow     = 5 * time.Minute
	httpFetchTimeout    = 10 * time.Second
	httpFetchRetries    = 2
)

// NewHTTPProvider builds the external-http provider against the given
// endpoint. The endpoint must answer GET with a body like
// {"rates": {"SGD": 61.8, "MYR": 18.1}}, quoted in home currency.
func NewHTTPProvider(url string, client *http.Client, logger *slog.Logger) Provider {
	if client == nil {
		client = &http.Client{Timeout: httpFetchTimeout}
	}
	return &httpProvider{
		url:             url,
		client:          client,
		logger:          logger,
		refreshInterval: httpRefreshInterval,
		retryWindow:     httpRetryWindow,
	}
}

func (p *httpProvider) Name() string { return settings.ProviderHTTP }

func (p *httpProvider) Rate(ctx context.Context, currency string) (float64, error) {
	currency = strings.ToUpper(currency)
	if currency == core.HomeCurrency {
		return 1.0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rates == nil || time.Since(p.fetchedAt) > p.refreshInterval {
		// A recent failed refresh holds the static fallback until the
		// retry window lapses; it is not re-attempted per call.
		if !p.lastFailureAt.IsZero() && time.Since(p.lastFailureAt) < p.retryWindow {
			return staticProvider{}.Rate(ctx, currency)
		}
		if err := p.refreshLocked(ctx); err != nil {
			p.lastFailureAt = time.Now()
			p.logger.WarnContext(ctx, "rate refresh failed, using static fallback",
				"error", err, "retry_in", p.retryWindow.String())
			return staticProvider{}.Rate(ctx, currency)
		}
		p.lastFailureAt = time.Time{}
	}

	if r, ok := p.rates[currency]; ok && r > 0 {
		return r, nil
	}
	return staticProvider{}.Rate(ctx, currency)
}

func (p *httpProvider) refreshLocked(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= httpFetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		table, err := p.fetch(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		p.rates = table
		p.fetchedAt = time.Now()
		return nil
	}
	return lastErr
}

func (p *httpProvider) fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rate response: %w", err)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("rate response carried no rates")
	}

	table := make(map[string]float64, len(body.Rates)+1)
	table[core.HomeCurrency] = 1.0
	for c, r := range body.Rates {
		table[strings.ToUpper(c)] = r
	}
	return table, nil
}

// NewProvider maps a validated provider name from settings to an
// implementation. Unknown names fall back to the static provider.
func NewProvider(name, httpURL string, client *http.Client, logger *slog.Logger) Provider {
	switch name {
	case settings.ProviderPlaceholder:
		return placeholderProvider{}
	case settings.ProviderHTTP:
		if httpURL != "" {
			return NewHTTPProvider(httpURL, client, logger)
		}
		logger.Warn("external-http provider selected without endpoint, using static rates")
		return staticProvider{}
	default:
		return staticProvider{}
	}
}
