package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MaxGoetzmann/jalshi/internal/kalshi"
)

// MarketSource lists the venue's markets for one series.
type MarketSource interface {
	GetMarkets(ctx context.Context, series string) ([]kalshi.Market, error)
}

// MarketDiscovery keeps the quote poller pointed at the active contract: the
// open market in the configured series that expires soonest. Short-lived
// contracts roll over every few minutes, so discovery re-resolves on an
// interval and whenever the trader asks after a settlement.
type MarketDiscovery struct {
	log      zerolog.Logger
	source   MarketSource
	poller   *QuotePoller
	series   string
	interval time.Duration

	mu      sync.Mutex
	current string
}

// NewMarketDiscovery constructs a discovery service; returns nil when the
// poller is absent or no series is configured.
func NewMarketDiscovery(log zerolog.Logger, source MarketSource, poller *QuotePoller, series string, interval time.Duration) *MarketDiscovery {
	series = strings.TrimSpace(series)
	if poller == nil || series == "" {
		return nil
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &MarketDiscovery{
		log:      log,
		source:   source,
		poller:   poller,
		series:   series,
		interval: interval,
	}
}

// Start launches the discovery loop in a goroutine.
func (d *MarketDiscovery) Start(ctx context.Context) {
	if d == nil {
		return
	}
	go d.loop(ctx)
}

func (d *MarketDiscovery) loop(ctx context.Context) {
	if err := d.Refresh(ctx); err != nil {
		d.log.Warn().Err(err).Msg("market discovery refresh failed")
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				d.log.Warn().Err(err).Msg("market discovery refresh failed")
			}
		}
	}
}

// Refresh performs a single discovery cycle, retargeting the poller when the
// active contract changed.
func (d *MarketDiscovery) Refresh(ctx context.Context) error {
	if d == nil {
		return nil
	}
	markets, err := d.source.GetMarkets(ctx, d.series)
	if err != nil {
		return err
	}
	picked, ok := nearestExpiry(markets, time.Now())
	if !ok {
		return fmt.Errorf("no open market in series %s", d.series)
	}

	d.mu.Lock()
	changed := picked.Ticker != d.current
	d.current = picked.Ticker
	d.mu.Unlock()

	if changed {
		d.log.Info().
			Str("ticker", picked.Ticker).
			Time("close", picked.CloseTime).
			Msg("selected market")
		d.poller.SetTicker(picked.Ticker)
	}
	return nil
}

// Current returns the last resolved ticker, empty before the first refresh.
func (d *MarketDiscovery) Current() string {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// nearestExpiry picks the tradable market closing soonest after now.
func nearestExpiry(markets []kalshi.Market, now time.Time) (kalshi.Market, bool) {
	var best kalshi.Market
	found := false
	for _, m := range markets {
		if !tradable(m, now) {
			continue
		}
		if !found || m.CloseTime.Before(best.CloseTime) {
			best, found = m, true
		}
	}
	return best, found
}

func tradable(m kalshi.Market, now time.Time) bool {
	if m.Result != "" {
		return false
	}
	if m.Status != "active" && m.Status != "open" {
		return false
	}
	return m.CloseTime.After(now)
}
