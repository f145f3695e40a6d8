// Package calcom adapts the upstream scheduling service's legacy (v1) and
// current (v2) HTTP APIs to the calendar.Client contract.
package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tanpawarit/chative-booking/pkg/calendar"
	logx "github.com/tanpawarit/chative-booking/pkg/logger"
)

const (
	apiVersionSlots      = "2024-09-04"
	apiVersionBookings   = "2024-08-13"
	apiVersionEventTypes = "2024-06-14"

	maxResponseSizeBytes = 2 << 20
)

var (
	defaultPrimaryBackoff = []time.Duration{800 * time.Millisecond, 1600 * time.Millisecond}
	defaultBookingRetry   = time.Second
)

var _ calendar.Client = (*Client)(nil)
var _ calendar.AvailabilityChecker = (*Client)(nil)

var errClosed = errors.New("calendar adapter is closed")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithPrimaryBackoff sets the delays between legacy endpoint attempts.
// The number of attempts is len(delays)+1.
func WithPrimaryBackoff(delays ...time.Duration) Option {
	return func(c *Client) {
		c.primaryBackoff = append([]time.Duration(nil), delays...)
	}
}

func WithBookingRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.bookingRetry = d
	}
}

// Client is safe for concurrent use.
type Client struct {
	cfg        Config
	loc        *time.Location
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      Sleeper
	logger     zerolog.Logger

	primaryBackoff []time.Duration
	bookingRetry   time.Duration

	duration  atomic.Int64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.normalized()
	if cfg.APIKey == "" {
		return nil, errors.New("calcom api key is required")
	}
	for _, raw := range []string{cfg.V1BaseURL, cfg.V2BaseURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return nil, fmt.Errorf("invalid calcom base url %q: %w", raw, err)
		}
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid calcom time zone %q: %w", cfg.TimeZone, err)
	}

	c := &Client{
		cfg: cfg,
		loc: loc,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		sleep:          sleepContext,
		logger:         logx.Component("calcom"),
		primaryBackoff: defaultPrimaryBackoff,
		bookingRetry:   defaultBookingRetry,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	c.duration.Store(int64(cfg.DefaultDuration))

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func MustNew(cfg Config, opts ...Option) *Client {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		panic(err)
	}
	return client
}

// Location is the adapter's configured local time zone.
func (c *Client) Location() *time.Location { return c.loc }

// DurationMinutes is the appointment length learned by Initialize.
func (c *Client) DurationMinutes() int { return int(c.duration.Load()) }

// Initialize reads the event type's length. Unusable metadata falls back to
// the configured default; only repeated server or transport failures are
// reported, as calendar.AdapterInitError.
func (c *Client) Initialize(ctx context.Context) error {
	if c.cfg.EventTypeID == "" {
		return nil
	}

	endpoint := c.cfg.V2BaseURL + "/event-types/" + url.PathEscape(c.cfg.EventTypeID)
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		resp, err := c.do(ctx, http.MethodGet, endpoint, c.v2Headers(apiVersionEventTypes), nil)
		switch {
		case err != nil:
			lastErr = err
		case resp.status >= http.StatusInternalServerError:
			lastErr = resp.asError()
		case resp.status >= http.StatusBadRequest:
			c.logger.Warn().Int("status", resp.status).Int("default_minutes", c.cfg.DefaultDuration).
				Msg("event type metadata rejected, using default duration")
			return nil
		default:
			minutes, ok := parseEventLength(resp.body)
			if !ok {
				c.logger.Warn().Int("default_minutes", c.cfg.DefaultDuration).
					Msg("event type metadata has no usable length, using default duration")
				return nil
			}
			c.duration.Store(int64(minutes))
			c.logger.Debug().Int("minutes", minutes).Msg("event type duration loaded")
			return nil
		}

		c.logger.Warn().Err(lastErr).Int("attempt", attempt).Msg("event type metadata fetch failed")
		if attempt < 2 && len(c.primaryBackoff) > 0 {
			if err := c.sleep(ctx, c.primaryBackoff[0]); err != nil {
				lastErr = err
				break
			}
		}
	}
	return &calendar.AdapterInitError{Err: lastErr}
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.httpClient.CloseIdleConnections()
	})
	return nil
}

type response struct {
	status int
	body   []byte
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http status=%d body=%s", e.status, e.body)
}

func (r *response) asError() error {
	return &statusError{status: r.status, body: truncate(string(r.body), 512)}
}

func (c *Client) do(ctx context.Context, method, endpoint string, headers map[string]string, body []byte) (*response, error) {
	if c.closed.Load() {
		return nil, errClosed
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("request_id", requestID).Str("method", method).
			Str("path", req.URL.Path).Msg("upstream request failed")
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug().Str("request_id", requestID).Str("method", method).Str("path", req.URL.Path).
		Int("status", resp.StatusCode).Dur("elapsed", time.Since(started)).Msg("upstream request")

	return &response{status: resp.StatusCode, body: raw}, nil
}

func (c *Client) v2Headers(version string) map[string]string {
	return map[string]string{
		"Authorization":   "Bearer " + c.cfg.APIKey,
		"cal-api-version": version,
	}
}

// retryable reports whether an upstream failure is transient: a 5xx status
// or a request timeout.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= http.StatusInternalServerError
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseEventLength(body []byte) (int, bool) {
	var payload struct {
		Data struct {
			LengthInMinutes json.Number `json:"lengthInMinutes"`
			Length          json.Number `json:"length"`
		} `json:"data"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return 0, false
	}
	for _, raw := range []json.Number{payload.Data.LengthInMinutes, payload.Data.Length} {
		if raw == "" {
			continue
		}
		n, err := raw.Int64()
		if err == nil && n > 0 {
			return int(n), true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
