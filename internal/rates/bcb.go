package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Default settings for the central bank time-series API.
const (
	DefaultBCBBaseURL = "https://api.bcb.gov.br/dados/serie"
	// SelicMonthlySeries is the SGS code of the monthly accumulated Selic rate.
	SelicMonthlySeries = 4390
	bcbDateLayout      = "02/01/2006"
	bcbSource          = "bcb-sgs"
)

// BCBConfig holds settings for the central bank client.
type BCBConfig struct {
	BaseURL           string
	SeriesCode        int
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerSecond float64
	Burst             int
	Retry             common.RetryOptions
}

// DefaultBCBConfig returns production defaults.
func DefaultBCBConfig() BCBConfig {
	return BCBConfig{
		BaseURL:           DefaultBCBBaseURL,
		SeriesCode:        SelicMonthlySeries,
		Timeout:           30 * time.Second,
		CacheTTL:          12 * time.Hour,
		RequestsPerSecond: 2,
		Burst:             1,
		Retry:             common.DefaultRetryOptions(),
	}
}

// BCBClient fetches monthly reference rates from the central bank SGS API.
type BCBClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *gocache.Cache
	config     BCBConfig
}

type sgsPoint struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}

// NewBCBClient creates a client with its own limiter and response cache.
func NewBCBClient(config BCBConfig) *BCBClient {
	defaults := DefaultBCBConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.SeriesCode == 0 {
		config.SeriesCode = defaults.SeriesCode
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}

	return &BCBClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		cache:      gocache.New(config.CacheTTL, 2*config.CacheTTL),
	}
}

// FetchMonthlyRates returns the published monthly rates between start and end, inclusive.
func (c *BCBClient) FetchMonthlyRates(ctx context.Context, start, end time.Time) ([]model.MonthlyRate, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", common.ErrInvalidDateRange,
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	u, err := c.seriesURL(start, end)
	if err != nil {
		return nil, err
	}

	if cached, found := c.cache.Get(u); found {
		slog.Debug("Using cached reference rates", "url", u)
		return cached.([]model.MonthlyRate), nil
	}

	var points []sgsPoint
	err = common.WithRetry(ctx, func() error {
		var fetchErr error
		points, fetchErr = c.fetch(ctx, u)
		return fetchErr
	}, c.config.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch series %d: %w", c.config.SeriesCode, err)
	}

	monthly := make([]model.MonthlyRate, 0, len(points))
	for _, p := range points {
		month, parseErr := time.Parse(bcbDateLayout, strings.TrimSpace(p.Date))
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse date %q: %w", p.Date, parseErr)
		}
		value, parseErr := decimal.NewFromString(strings.TrimSpace(p.Value))
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse rate %q for %s: %w", p.Value, p.Date, parseErr)
		}
		monthly = append(monthly, model.MonthlyRate{
			Month:       model.MonthStart(month),
			RatePercent: value,
			Source:      bcbSource,
		})
	}

	c.cache.SetDefault(u, monthly)

	slog.Info("Fetched reference rates",
		"series", c.config.SeriesCode,
		"months", len(monthly),
		"start", start.Format("2006-01"),
		"end", end.Format("2006-01"))

	return monthly, nil
}

func (c *BCBClient) seriesURL(start, end time.Time) (string, error) {
	base := fmt.Sprintf("%s/bcdata.sgs.%d/dados", strings.TrimRight(c.config.BaseURL, "/"), c.config.SeriesCode)
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	q := u.Query()
	q.Set("formato", "json")
	q.Set("dataInicial", start.Format(bcbDateLayout))
	q.Set("dataFinal", end.Format(bcbDateLayout))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (c *BCBClient) fetch(ctx context.Context, u string) ([]sgsPoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &common.RetryableError{Err: err, Retryable: false}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err), Retryable: false}
	}
	req.Header.Set("Accept", "application/json")

	slog.Debug("Requesting reference rates", "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRateSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, common.ErrRateLimit
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", common.ErrRateSourceUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("rate API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Retryable: false,
		}
	}

	var points []sgsPoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to decode response: %w", err), Retryable: false}
	}

	return points, nil
}
