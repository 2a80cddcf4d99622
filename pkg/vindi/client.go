package vindi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const maxErrorBody = 64 * 1024

var _ subscription.BillingGateway = (*Client)(nil)

// Client talks to the Vindi API. It is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL *url.URL
	timeout time.Duration

	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	gate    *rateGate
	breaker *breaker
	plans   *expirable.LRU[string, int64]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock sets the time source used for rate limiting and the breaker.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Client from cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PlanCacheSize <= 0 {
		cfg.PlanCacheSize = 128
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: base,
		timeout: cfg.Timeout,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("vindi"))
	c.gate = &rateGate{threshold: cfg.RateLimitThreshold, now: c.now}
	c.breaker = newBreaker(cfg.BreakerFailures, cfg.BreakerRecovery, c.now)
	c.plans = expirable.NewLRU[string, int64](cfg.PlanCacheSize, nil, cfg.PlanCacheTTL)

	return c, nil
}

// CircuitState reports the breaker state.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.current()
}

// request describes a single API call.
type request struct {
	op     string
	method string
	path   string
	query  string // value of the "query" search parameter
	body   any
}

// do performs req and decodes a successful response body into out. Provider
// failures are returned as *subscription.GatewayError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	if d := c.gate.delay(); d > 0 {
		c.metrics.throttle()
		c.logger.DebugContext(ctx, "waiting for gateway rate limit reset",
			slog.String("op", req.op),
			logger.Duration(d),
		)
	}
	if err := c.gate.wait(ctx); err != nil {
		return &subscription.GatewayError{Op: req.op, Err: err}
	}
	if !c.breaker.allow() {
		c.metrics.reject()
		return &subscription.GatewayError{Op: req.op, Err: ErrCircuitOpen}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return &subscription.GatewayError{Op: req.op, Err: err}
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.failure()
		c.metrics.request(req.op, "error", c.now().Sub(start).Seconds())
		c.logger.WarnContext(ctx, "gateway request failed",
			slog.String("op", req.op),
			logger.Error(err),
		)
		return &subscription.GatewayError{Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.request(req.op, statusClass(resp.StatusCode), c.now().Sub(start).Seconds())
	if d := c.observeRateLimit(resp.Header); d > 0 {
		c.logger.InfoContext(ctx, "gateway rate limit nearly exhausted",
			slog.String("op", req.op),
			logger.Duration(d),
		)
	}

	if resp.StatusCode >= 500 {
		c.breaker.failure()
	} else {
		c.breaker.success()
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(req.op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &subscription.GatewayError{
			Op:         req.op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.path, "/")
	if req.query != "" {
		u.RawQuery = url.Values{"query": {req.query}}.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	httpReq.SetBasicAuth(c.apiKey, "")
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

// observeRateLimit feeds the budget headers to the gate and returns the
// resulting delay for the next request.
func (c *Client) observeRateLimit(h http.Header) time.Duration {
	c.gate.observe(h)
	return c.gate.delay()
}

func (c *Client) decodeError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	ge := &subscription.GatewayError{Op: op, StatusCode: resp.StatusCode}
	var body apiErrors
	if err := json.Unmarshal(raw, &body); err == nil {
		ge.Message = body.message()
	}
	if ge.Message == "" {
		ge.Message = http.StatusText(resp.StatusCode)
	}
	return ge
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
