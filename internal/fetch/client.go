// Package fetch implements the provider chain-fetch collaborator consumed by
// the symbol cache. Authentication beyond the bearer token and transport
// tuning live here; nothing downstream depends on provider details.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/OUgly/GEXCalculator/internal/chain"
)

// expiryHorizon bounds the fetched chain to near-dated expiries, which is
// where gamma exposure concentrates.
const expiryHorizon = 45 * 24 * time.Hour

// Client fetches option chains over HTTP with rate limiting and retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewClient builds a chain client. ratePerSec caps request rate against the
// provider; retries use exponential backoff starting at retryDelay.
func NewClient(baseURL, token string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:    100,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		now:        time.Now,
		logger:     logger,
	}
}

// Fetch pulls the chain for symbol and parses it into a snapshot.
func (c *Client) Fetch(ctx context.Context, symbol string) (*chain.Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	now := c.now()
	params := url.Values{
		"symbol":       {symbol},
		"contractType": {"ALL"},
		"fromDate":     {now.Format("2006-01-02")},
		"toDate":       {now.Add(expiryHorizon).Format("2006-01-02")},
	}
	reqURL := fmt.Sprintf("%s/marketdata/v1/chains?%s", c.baseURL, params.Encode())
	c.logger.Debug("fetching chain", zap.String("symbol", symbol), zap.String("url", reqURL))

	body, err := c.getWithRetry(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	snap, err := chain.Parse(body, now)
	if err != nil {
		return nil, fmt.Errorf("provider payload for %s: %w", symbol, err)
	}
	return snap, nil
}

func (c *Client) getWithRetry(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, ErrAuthFailed
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
