package strategy

import (
	"fmt"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// Trend follows short-horizon spot momentum: spot trending up while the yes
// ask is still cheap buys yes, spot trending down while the ask is rich sells.
type Trend struct {
	thresholdPct float64
	cheapCents   int
	richCents    int
	confidence   float64
	fairOffset   int
}

// NewTrend builds the momentum strategy, falling back to conservative
// defaults for unset knobs.
func NewTrend(params Params) *Trend {
	t := &Trend{
		thresholdPct: params.TrendThresholdPct,
		cheapCents:   params.CheapYesAskCents,
		richCents:    params.RichYesAskCents,
		confidence:   params.Confidence,
		fairOffset:   params.FairOffsetCents,
	}
	if t.thresholdPct <= 0 {
		t.thresholdPct = 0.5
	}
	if t.cheapCents <= 0 {
		t.cheapCents = 55
	}
	if t.richCents <= 0 {
		t.richCents = 45
	}
	if t.confidence <= 0 {
		t.confidence = 0.6
	}
	if t.fairOffset <= 0 {
		t.fairOffset = 10
	}
	return t
}

// Name returns the configured identifier for logging.
func (t *Trend) Name() string { return "trend" }

// Analyze compares percent change across the spot window with the yes ask.
func (t *Trend) Analyze(history []float64, quote signal.MarketQuote) signal.Signal {
	if len(history) < 2 {
		return hold("not enough price data", quote.Ts)
	}
	earliest, latest := history[0], history[len(history)-1]
	if earliest <= 0 {
		return hold("no usable spot anchor", quote.Ts)
	}
	if quote.YesAsk <= 0 || quote.YesAsk >= 100 {
		return hold("no usable yes ask", quote.Ts)
	}

	pctChange := (latest - earliest) / earliest * 100

	switch {
	case pctChange > t.thresholdPct && quote.YesAsk < t.cheapCents:
		return signal.Signal{
			Direction:      signal.Buy,
			Confidence:     t.confidence,
			Reason:         fmt.Sprintf("spot up %.2f%%, yes ask %dc looks cheap", pctChange, quote.YesAsk),
			FairPriceCents: quote.YesAsk + t.fairOffset,
			Ts:             quote.Ts,
		}
	case pctChange < -t.thresholdPct && quote.YesAsk > t.richCents:
		return signal.Signal{
			Direction:      signal.Sell,
			Confidence:     t.confidence,
			Reason:         fmt.Sprintf("spot down %.2f%%, yes ask %dc looks rich", pctChange, quote.YesAsk),
			FairPriceCents: quote.YesAsk - t.fairOffset,
			Ts:             quote.Ts,
		}
	default:
		return hold(fmt.Sprintf("no edge: spot change %.2f%%, yes ask %dc", pctChange, quote.YesAsk), quote.Ts)
	}
}
