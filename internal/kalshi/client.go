package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/MaxGoetzmann/jalshi/internal/metrics"
	"github.com/MaxGoetzmann/jalshi/internal/ratelimit"
	"github.com/MaxGoetzmann/jalshi/internal/risk"
)

// Trade API roots per venue tier. Development and demo both use the demo
// exchange; only production handles real money.
const (
	ProductionBaseURL = "https://api.elections.kalshi.com/trade-api/v2"
	DemoBaseURL       = "https://demo-api.kalshi.co/trade-api/v2"
)

// BaseURLFor maps an environment tier onto the venue API root.
func BaseURLFor(env risk.Environment) string {
	if env == risk.EnvProduction {
		return ProductionBaseURL
	}
	return DemoBaseURL
}

// authMode selects how a request proves itself: regular calls attach the
// short-lived session token, the login bootstrap carries an RSA signature.
type authMode int

const (
	authSession authMode = iota
	authSigned
)

// Config tunes the transport. Zero values pick the defaults below.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	SessionMargin time.Duration // refresh this long before token expiry
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DemoBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = 5 * time.Second
	}
	if c.SessionMargin == 0 {
		c.SessionMargin = 30 * time.Second
	}
	return c
}

// Client talks to the venue. Safe for concurrent use: the session cache,
// the singleflight group, and the rate limiter all carry their own locks.
type Client struct {
	cfg        Config
	http       *http.Client
	signer     *Signer
	limiter    *ratelimit.Bucket
	session    sessionCache
	flight     singleflight.Group
	signPrefix string
	log        zerolog.Logger
}

// NewClient wires a venue client over the given signer and rate limiter.
func NewClient(cfg Config, signer *Signer, limiter *ratelimit.Bucket, log zerolog.Logger) *Client {
	cfg = cfg.withDefaults()
	prefix := ""
	if u, err := url.Parse(cfg.BaseURL); err == nil {
		prefix = u.Path
	}
	c := &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.Timeout},
		signer:     signer,
		limiter:    limiter,
		signPrefix: prefix,
		log:        log,
	}
	c.session.now = time.Now
	return c
}

// Login exchanges the RSA signature for a short-lived session token. It
// does not cache the result; sessionToken owns the cache.
func (c *Client) Login(ctx context.Context) (Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/login", nil, nil, &s, authSigned); err != nil {
		return Session{}, err
	}
	return s, nil
}

// GetExchangeStatus reports whether the venue is accepting trades.
func (c *Client) GetExchangeStatus(ctx context.Context) (ExchangeStatus, error) {
	var s ExchangeStatus
	if err := c.do(ctx, http.MethodGet, "/exchange/status", nil, nil, &s, authSession); err != nil {
		return ExchangeStatus{}, err
	}
	return s, nil
}

// GetBalance returns the account balance in cents.
func (c *Client) GetBalance(ctx context.Context) (Balance, error) {
	var b Balance
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, &b, authSession); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// GetPositions returns open market positions.
func (c *Client) GetPositions(ctx context.Context) ([]MarketPosition, error) {
	var resp positionsResponse
	if err := c.do(ctx, http.MethodGet, "/portfolio/positions", nil, nil, &resp, authSession); err != nil {
		return nil, err
	}
	return resp.MarketPositions, nil
}

// GetMarkets lists markets, optionally filtered to one series.
func (c *Client) GetMarkets(ctx context.Context, series string) ([]Market, error) {
	q := url.Values{"limit": {"100"}}
	if series != "" {
		q.Set("series_ticker", series)
	}
	var resp marketsResponse
	if err := c.do(ctx, http.MethodGet, "/markets", q, nil, &resp, authSession); err != nil {
		return nil, err
	}
	return resp.Markets, nil
}

// GetMarket fetches one market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (Market, error) {
	var resp marketResponse
	if err := c.do(ctx, http.MethodGet, "/markets/"+ticker, nil, nil, &resp, authSession); err != nil {
		return Market{}, err
	}
	return resp.Market, nil
}

// GetOrderbook fetches resting bids for one market.
func (c *Client) GetOrderbook(ctx context.Context, ticker string, depth int) (Orderbook, error) {
	if depth <= 0 {
		depth = 10
	}
	q := url.Values{"depth": {fmt.Sprint(depth)}}
	var resp orderbookResponse
	if err := c.do(ctx, http.MethodGet, "/markets/"+ticker+"/orderbook", q, nil, &resp, authSession); err != nil {
		return Orderbook{}, err
	}
	return resp.Orderbook, nil
}

// CreateOrder places an order. A missing client order ID is filled with a
// fresh UUIDv4 so the venue can deduplicate resubmissions.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	if req.Type == "" {
		req.Type = "limit"
	}
	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/portfolio/orders", nil, req, &resp, authSession); err != nil {
		return Order{}, err
	}
	return resp.Order, nil
}

// CancelOrder cancels a resting order by venue order ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (Order, error) {
	var resp orderResponse
	if err := c.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil, &resp, authSession); err != nil {
		return Order{}, err
	}
	return resp.Order, nil
}

// do runs one venue call to completion: classify, refresh, retry. Every
// attempt pays the rate limiter before dispatch, so retries are never
// free. The reactive auth refresh happens at most once per call and its
// retry does not count against the attempt budget.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, mode authMode) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("kalshi: encode %s %s body: %w", method, path, err)
		}
		payload = b
	}

	authRetried := false
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; {
		var token string
		if mode == authSession {
			tok, err := c.sessionToken(ctx)
			if err != nil {
				return err
			}
			token = tok
		}
		if err := c.limiter.Acquire(ctx, 1); err != nil {
			return err
		}

		status, respBody, err := c.send(ctx, method, path, query, payload, token, mode)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Transport-level failures (timeouts, resets) are transient.
			metrics.TransportAttemptsTotal.WithLabelValues(string(ClassRetryable)).Inc()
			c.log.Warn().Err(err).Str("method", method).Str("path", path).Int("attempt", attempt).Msg("venue call failed")
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			attempt++
			if attempt < c.cfg.MaxAttempts {
				if err := sleepCtx(ctx, c.backoffDelay(attempt)); err != nil {
					return err
				}
			}
			continue
		}

		class := classifyStatus(status)
		metrics.TransportAttemptsTotal.WithLabelValues(string(class)).Inc()
		switch class {
		case ClassSuccess:
			if out != nil {
				if err := json.Unmarshal(respBody, out); err != nil {
					return &APIError{Status: status, Class: ClassFatal, Body: fmt.Sprintf("malformed response: %v", err)}
				}
			}
			return nil
		case ClassAuth:
			if mode == authSigned || authRetried {
				return fmt.Errorf("%w: status %d: %s", ErrAuthDeclined, status, snippet(string(respBody)))
			}
			authRetried = true
			c.session.clear()
			if _, err := c.refreshSession(ctx, refreshReactive); err != nil {
				return err
			}
		case ClassRetryable:
			c.log.Warn().Int("status", status).Str("method", method).Str("path", path).Int("attempt", attempt).Msg("venue call retryable")
			lastErr = &APIError{Status: status, Class: class, Body: string(respBody)}
			attempt++
			if attempt < c.cfg.MaxAttempts {
				if err := sleepCtx(ctx, c.backoffDelay(attempt)); err != nil {
					return err
				}
			}
		default:
			return &APIError{Status: status, Class: ClassFatal, Body: string(respBody)}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.cfg.MaxAttempts, lastErr)
}

// send performs a single HTTP attempt and returns the raw status and body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string, mode authMode) (int, []byte, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("kalshi: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mode == authSigned {
		// The signature covers the path only, never the query string.
		hdrs, err := c.signer.Headers(method, c.signPrefix+path)
		if err != nil {
			return 0, nil, err
		}
		for k, v := range hdrs {
			req.Header.Set(k, v)
		}
	} else {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// backoffDelay grows exponentially from the base, capped, with uniform
// jitter so concurrent retriers spread out.
func (c *Client) backoffDelay(attempt int) time.Duration {
	d := c.cfg.BackoffBase
	if attempt > 30 {
		d = c.cfg.BackoffCap
	} else if attempt > 0 {
		d = c.cfg.BackoffBase << uint(attempt)
		if d > c.cfg.BackoffCap || d < c.cfg.BackoffBase {
			d = c.cfg.BackoffCap
		}
	}
	return d + time.Duration(rand.Int63n(int64(d)/2+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
