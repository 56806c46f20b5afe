package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MaxGoetzmann/jalshi/internal/metrics"
)

// State is the circuit breaker admission state.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker halts new orders once realized losses inside one calendar day
// exceed the configured limit. Gains never offset losses, and an open
// breaker stays open until the day rolls over; there is no half-open
// probing state.
type Breaker struct {
	mu       sync.Mutex
	limitUSD decimal.Decimal
	lossUSD  decimal.Decimal
	state    State
	day      string
	now      func() time.Time
	loc      *time.Location
	log      zerolog.Logger
}

// BreakerOption customizes a Breaker.
type BreakerOption func(*Breaker)

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

// WithLocation sets the timezone whose calendar days bound the loss
// window. The default is UTC.
func WithLocation(loc *time.Location) BreakerOption {
	return func(b *Breaker) { b.loc = loc }
}

// NewBreaker returns a closed breaker with an empty loss window.
func NewBreaker(limitUSD decimal.Decimal, log zerolog.Logger, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		limitUSD: limitUSD,
		now:      time.Now,
		loc:      time.UTC,
		log:      log,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.day = b.today()
	b.publish()
	return b
}

func (b *Breaker) today() string {
	return b.now().In(b.loc).Format("2006-01-02")
}

// roll resets the window when the calendar day has changed. Callers must
// hold mu.
func (b *Breaker) roll() {
	day := b.today()
	if day == b.day {
		return
	}
	if b.state == Open {
		b.log.Info().Str("day", day).Msg("loss window rolled over, breaker reset")
	}
	b.day = day
	b.lossUSD = decimal.Zero
	b.state = Closed
	b.publish()
}

// publish mirrors the breaker state into the metrics gauges. Callers must
// hold mu (or be the constructor).
func (b *Breaker) publish() {
	metrics.BreakerState.Set(float64(b.state))
	loss, _ := b.lossUSD.Float64()
	metrics.BreakerLossUSD.Set(loss)
}

// ReportOutcome feeds one realized profit or loss into the window and
// returns the post-update state. Only losses accumulate; the breaker trips
// when the total strictly exceeds the limit. Settlements landing while the
// breaker is already open still count toward the window.
func (b *Breaker) ReportOutcome(pnlUSD decimal.Decimal) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	if pnlUSD.Sign() >= 0 {
		return b.state
	}
	b.lossUSD = b.lossUSD.Add(pnlUSD.Neg())
	if b.state == Closed && b.lossUSD.GreaterThan(b.limitUSD) {
		b.state = Open
		b.log.Error().
			Str("loss_usd", b.lossUSD.String()).
			Str("limit_usd", b.limitUSD.String()).
			Msg("daily loss limit breached, halting new orders")
	}
	b.publish()
	return b.state
}

// CurrentState returns the admission state after applying any pending
// day rollover.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.state
}

// WindowLoss returns the loss accumulated in the current window.
func (b *Breaker) WindowLoss() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll()
	return b.lossUSD
}
