// Package marketdata fetches daily price bars from the market-data proxy.
package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bobmcallan/dodgy-dave/internal/common"
	"github.com/bobmcallan/dodgy-dave/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is requests per second against the proxy.
	DefaultRateLimit = 5

	maxBodyBytes = 1 << 20
)

// Client talks to the market-data proxy:
// GET {base}?ticker=T&startDate=YYYY-MM-DD&endDate=YYYY-MM-DD.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *common.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP timeout on the default client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit sets requests per second; the burst equals the rate.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the proxy at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchAll requests every ticker concurrently and returns the raw bodies in
// the order of tickers. The first failure cancels the outstanding requests and
// the whole call fails; bodies that did arrive are discarded.
func (c *Client) FetchAll(ctx context.Context, tickers []string, dates models.DateRange) ([]string, error) {
	bodies := make([]string, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	for i, ticker := range tickers {
		g.Go(func() error {
			body, err := c.Fetch(gctx, ticker, dates)
			if err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return bodies, nil
}

// Fetch requests the bars for one ticker and returns the body as text.
func (c *Client) Fetch(ctx context.Context, ticker string, dates models.DateRange) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", models.NewError(models.KindFetchFailed, ticker, err, "rate limiter")
	}

	reqURL, err := c.requestURL(ticker, dates)
	if err != nil {
		return "", models.NewError(models.KindFetchFailed, ticker, err, "build request url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", models.NewError(models.KindFetchFailed, ticker, err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	if c.logger != nil {
		c.logger.Debug().
			Str("ticker", ticker).
			Str("start_date", dates.StartDate).
			Str("end_date", dates.EndDate).
			Msg("market data request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", models.NewError(models.KindFetchFailed, ticker, err, "failed to reach market data proxy")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", models.NewError(models.KindFetchFailed, ticker, err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", models.NewError(models.KindFetchFailed, ticker, nil, "proxy returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return string(body), nil
}

func (c *Client) requestURL(ticker string, dates models.DateRange) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", c.baseURL, err)
	}
	q := u.Query()
	q.Set("ticker", ticker)
	q.Set("startDate", dates.StartDate)
	q.Set("endDate", dates.EndDate)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
