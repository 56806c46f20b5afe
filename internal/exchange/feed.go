// Package exchange hosts the market data plumbing: the spot reference
// websocket, the venue quote poller, and contract discovery.
package exchange

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/MaxGoetzmann/jalshi/internal/metrics"
)

// SpotFeed tracks the underlying's spot price from a Binance bookTicker
// stream, keeping a bounded history (oldest first) for strategies.
type SpotFeed struct {
	symbol    string
	streamURL string
	log       zerolog.Logger

	mu      sync.RWMutex
	history []float64
	max     int
}

// SpotOption configures SpotFeed construction parameters.
type SpotOption func(*SpotFeed)

const defaultStreamURL = "wss://stream.binance.com:9443/ws"

// WithStreamURL overrides the websocket endpoint, mainly for tests.
func WithStreamURL(u string) SpotOption {
	return func(f *SpotFeed) {
		if u != "" {
			f.streamURL = strings.TrimSuffix(u, "/")
		}
	}
}

// NewSpotFeed constructs a feed for one spot symbol retaining up to max
// recent prices.
func NewSpotFeed(symbol string, max int, log zerolog.Logger, opts ...SpotOption) *SpotFeed {
	if max < 2 {
		max = 2
	}
	f := &SpotFeed{
		symbol:    strings.ToLower(strings.TrimSpace(symbol)),
		streamURL: defaultStreamURL,
		log:       log,
		history:   make([]float64, 0, max),
		max:       max,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Symbol returns the tracked spot symbol in upper case.
func (f *SpotFeed) Symbol() string { return strings.ToUpper(f.symbol) }

// Record appends one observed price, evicting the oldest beyond capacity.
// Non-positive prices are ignored.
func (f *SpotFeed) Record(price float64) {
	if price <= 0 {
		return
	}
	f.mu.Lock()
	if len(f.history) == f.max {
		copy(f.history, f.history[1:])
		f.history[len(f.history)-1] = price
	} else {
		f.history = append(f.history, price)
	}
	f.mu.Unlock()
	metrics.SpotPrice.WithLabelValues(f.Symbol()).Set(price)
}

// Snapshot copies the recorded prices, oldest first.
func (f *SpotFeed) Snapshot() []float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]float64, len(f.history))
	copy(out, f.history)
	return out
}

// Last returns the most recent price; false when nothing has arrived yet.
func (f *SpotFeed) Last() (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.history) == 0 {
		return 0, false
	}
	return f.history[len(f.history)-1], true
}

// Len reports how many prices are currently retained.
func (f *SpotFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.history)
}
