// Package exchange hosts connectors for centralized venues.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"longbtc-go/internal/market"
	"longbtc-go/internal/metrics"
)

const (
	// DefaultBaseURL is the public Binance spot REST endpoint.
	DefaultBaseURL = "https://api.binance.com"

	defaultPageLimit  = 1000
	defaultRPS        = 2.5
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
	maxBackoff        = 30 * time.Second
	userAgent         = "longbtc-go/1.0"
)

// ErrStatus is wrapped by errors for non-200 responses.
var ErrStatus = errors.New("unexpected status")

// Client downloads historical klines from Binance's REST API.
type Client struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        zerolog.Logger
	pageLimit  int
	maxRetries int
	backoff    time.Duration
}

// Option configures Client construction parameters.
type Option func(*Client)

// WithBaseURL points the client at another host, such as a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithPageLimit sets the klines requested per page (Binance caps it at 1000).
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetries sets how many times a failed page is retried and the initial backoff.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// NewClient builds a rate-limited client guarded by a circuit breaker that
// opens after three consecutive failed requests.
func NewClient(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		http:       &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRPS), 1),
		log:        log,
		pageLimit:  defaultPageLimit,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "binance-klines",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return c
}

// Klines returns every bar of symbol at interval whose open time lies in
// [from, to), walking forward page by page from the last open time seen.
func (c *Client) Klines(ctx context.Context, symbol, interval string, from, to time.Time) ([]market.Bar, error) {
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("symbol and interval are required")
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("empty range %s to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}

	var bars []market.Bar
	start := from.UnixMilli()
	end := to.UnixMilli() - 1
	for start <= end {
		page, err := c.page(ctx, symbol, interval, start, end)
		if err != nil {
			return bars, err
		}
		if len(page) == 0 {
			break
		}
		bars = append(bars, page...)
		c.log.Debug().Str("symbol", symbol).Int("page", len(page)).Int("total", len(bars)).
			Time("last", page[len(page)-1].Time).Msg("fetched klines page")
		next := page[len(page)-1].Time.UnixMilli() + 1
		if len(page) < c.pageLimit || next <= start {
			break
		}
		start = next
	}
	return bars, nil
}

func (c *Client) page(ctx context.Context, symbol, interval string, start, end int64) ([]market.Bar, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, symbol, interval, start, end)
		})
		if err == nil {
			metrics.KlineRequests.WithLabelValues("ok").Inc()
			return out.([]market.Bar), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.KlineRequests.WithLabelValues("rejected").Inc()
			return nil, fmt.Errorf("klines %s: %w", symbol, err)
		}
		metrics.KlineRequests.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("klines %s after %d attempts: %w", symbol, attempt+1, err)
		}
		c.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("klines request failed, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

func (c *Client) fetch(ctx context.Context, symbol, interval string, start, end int64) ([]market.Bar, error) {
	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(start, 10))
	q.Set("endTime", strconv.FormatInt(end, 10))
	q.Set("limit", strconv.Itoa(c.pageLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	bars := make([]market.Bar, 0, len(rows))
	for i, row := range rows {
		bar, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// parseKline reads [openTime, open, high, low, close, volume, closeTime, ...].
func parseKline(row []json.RawMessage) (market.Bar, error) {
	if len(row) < 6 {
		return market.Bar{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return market.Bar{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		var raw string
		if err := json.Unmarshal(row[i+1], &raw); err != nil {
			return market.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return market.Bar{
		Time:   time.UnixMilli(openTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
