package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// HTTPProviderConfig holds configuration for the HTTP bars provider
type HTTPProviderConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
}

// DefaultHTTPProviderConfig returns recommended defaults
func DefaultHTTPProviderConfig(baseURL, apiKey string) HTTPProviderConfig {
	return HTTPProviderConfig{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		Timeout:           30 * time.Second,
		MaxRetries:        5,
		RequestsPerSecond: 10.0,
	}
}

// HTTPProvider fetches bars from a JSON bars API with retries and client-side
// rate limiting.
type HTTPProvider struct {
	cfg     HTTPProviderConfig
	client  *retryablehttp.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewHTTPProvider creates an HTTP bars provider.
func NewHTTPProvider(cfg HTTPProviderConfig, logger *logrus.Logger) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http provider requires a base URL")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10.0
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.CheckRetry = barsRetryPolicy()
	retryClient.Logger = nil

	return &HTTPProvider{
		cfg:     cfg,
		client:  retryClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}, nil
}

// Name returns the name of the provider
func (p *HTTPProvider) Name() string {
	return "http"
}

// Bars fetches daily bars for the symbol within [start, end).
func (p *HTTPProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bars?%s", p.cfg.BaseURL, url.Values{
		"symbol": {symbol},
		"start":  {start.Format("2006-01-02")},
		"end":    {end.Format("2006-01-02")},
	}.Encode())

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeNetworkError, "failed to build request", err)
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeNetworkError, "bars request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewProviderError(p.Name(), ErrCodeNotFound, fmt.Sprintf("no data for symbol %s", symbol), nil)
	case resp.StatusCode >= 500:
		return nil, NewProviderError(p.Name(), ErrCodeServerError, fmt.Sprintf("server returned %d", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var payload struct {
		Bars []Bar `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, NewProviderError(p.Name(), ErrCodeInvalidData, "failed to decode bars payload", err)
	}

	bars := payload.Bars
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	p.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Fetched bars from HTTP provider")
	return bars, nil
}

// barsRetryPolicy retries network errors, rate limiting and server errors.
func barsRetryPolicy() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, err
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return true, nil
		}
		return false, nil
	}
}
