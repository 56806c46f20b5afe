package kalshi

import (
	"context"
	"sync"
	"time"

	"github.com/MaxGoetzmann/jalshi/internal/metrics"
)

// Refresh trigger kinds, used as metrics labels.
const (
	refreshProactive = "proactive"
	refreshReactive  = "reactive"
)

// sessionCache holds the current short-lived token. Reads treat a token
// inside the expiry margin as already stale so callers refresh before the
// venue starts rejecting it.
type sessionCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func (c *sessionCache) get(margin time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Add(margin).Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *sessionCache) set(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = s.Token
	c.expiresAt = s.ExpiresAt
}

func (c *sessionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

// sessionToken returns a token comfortably inside its lifetime, logging in
// proactively when the cached one is missing or about to expire.
func (c *Client) sessionToken(ctx context.Context) (string, error) {
	if tok, ok := c.session.get(c.cfg.SessionMargin); ok {
		return tok, nil
	}
	return c.refreshSession(ctx, refreshProactive)
}

// refreshSession runs one login process-wide no matter how many callers
// need it at once; everyone shares the single result.
func (c *Client) refreshSession(ctx context.Context, kind string) (string, error) {
	v, err, _ := c.flight.Do("session", func() (any, error) {
		sess, err := c.Login(ctx)
		if err != nil {
			return nil, err
		}
		c.session.set(sess)
		metrics.SessionRefreshesTotal.WithLabelValues(kind).Inc()
		c.log.Debug().Str("kind", kind).Time("expires_at", sess.ExpiresAt).Msg("session refreshed")
		return sess.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
