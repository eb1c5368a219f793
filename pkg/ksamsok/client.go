// Package ksamsok provides a client for the K-samsök (Swedish open cultural
// heritage) record API at kulturarvsdata.se.
package ksamsok

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fornlamningar/fornlamningar-engine/pkg/apperrors"
	"github.com/fornlamningar/fornlamningar-engine/pkg/logging"
	"github.com/fornlamningar/fornlamningar-engine/pkg/retry"
)

// DefaultBaseURL is the public K-samsök host.
const DefaultBaseURL = "https://kulturarvsdata.se"

// DefaultTimeout is the maximum time to wait for one response.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL   string
	RateLimit float64 // requests per second; 0 disables limiting
	Timeout   time.Duration
	UserAgent string
	Retry     *retry.Config // nil uses retry.DefaultConfig
}

// StatusError is returned for non-200 responses other than 404.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("k-samsök returned status %d: %s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the status is worth another attempt.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client fetches archaeological site records ("lämningar") by UUID.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      *retry.Config
	logger     *zap.Logger
}

// NewClient creates a new K-samsök client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		limiter:    limiter,
		retry:      cfg.Retry,
		logger:     logger.Named("ksamsok"),
	}, nil
}

// GetSite fetches and parses the record for one site.
// A missing record returns an error wrapping apperrors.ErrNotFound.
func (c *Client) GetSite(ctx context.Context, siteUUID string) (*Site, error) {
	endpoint, err := buildURL(c.baseURL, "raa", "lamning", siteUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	body, err := retry.DoIfRetryableWithResult(ctx, c.retry, func() ([]byte, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}

	site, err := ParseSite(body)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", siteUUID, err)
	}
	return site, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, retry.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("Fetching site record", zap.String("url", endpoint))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to call k-samsök: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, retry.Permanent(fmt.Errorf("site record %s: %w", path.Base(endpoint), apperrors.ErrNotFound))
	default:
		c.logger.Warn("k-samsök returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("url", endpoint))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: logging.TruncateString(string(body), 200)}
	}
}

// buildURL constructs a URL by parsing the base and joining path segments.
func buildURL(baseURL string, pathSegments ...string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	segments := append([]string{u.Path}, pathSegments...)
	u.Path = path.Join(segments...)

	return u.String(), nil
}
