package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/lox/laundrydesk/internal/httputil"
	"github.com/lox/laundrydesk/internal/logging"
	"github.com/lox/laundrydesk/internal/metrics"
)

// ErrNotConfigured is returned when no project URL or key was supplied.
var ErrNotConfigured = errors.New("supabase url and key are required")

// Query describes a PostgREST select against one table.
type Query struct {
	Select string // column list, may embed related tables
	Order  string
	Desc   bool
	Limit  int
	Eq     map[string]string
}

func (q Query) values() url.Values {
	v := url.Values{}
	sel := q.Select
	if sel == "" {
		sel = "*"
	}
	v.Set("select", sel)
	if q.Order != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		v.Set("order", q.Order+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	for col, val := range q.Eq {
		v.Set(col, "eq."+val)
	}
	return v
}

// StatusError is a non-2xx response from the table API.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// Client reads tables through the Supabase REST endpoint. Transient failures
// are retried with exponential backoff and repeated failures open a circuit
// breaker so callers fail fast while the project is down.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	maxElapsed time.Duration
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxElapsed bounds the total time spent retrying one request.
func WithMaxElapsed(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

func New(baseURL, key string, opts ...Option) (*Client, error) {
	if baseURL == "" || key == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		key:        key,
		httpClient: httputil.NewClient(),
		maxElapsed: 30 * time.Second,
		log:        logging.Component("supabase"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "supabase",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Status < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return c, nil
}

// Select runs q against table and decodes the JSON array into dst.
func (c *Client) Select(ctx context.Context, table string, q Query, dst any) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(table), q.values().Encode())

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, endpoint)
	})
	metrics.SupabaseLatency.WithLabelValues(table).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SupabaseCallsTotal.WithLabelValues(table, "error").Inc()
		return fmt.Errorf("select %s: %w", table, err)
	}
	metrics.SupabaseCallsTotal.WithLabelValues(table, "ok").Inc()

	if err := json.Unmarshal(result.([]byte), dst); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", httputil.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{Status: resp.StatusCode, Body: string(b)}
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(&StatusError{Status: resp.StatusCode, Body: string(b)})
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	notify := func(err error, next time.Duration) {
		c.log.Debug().Err(err).Dur("retry_in", next).Msg("retrying request")
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}
