// Package strategy turns spot history and market quotes into trade intents.
package strategy

import (
	"fmt"
	"math"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// OBI trades order-book imbalance: resting yes bids versus no bids in the
// latest quote snapshot. Heavier yes interest buys yes, heavier no interest
// buys no.
type OBI struct {
	threshold float64
}

// NewOBI builds an imbalance strategy using the configured trigger threshold.
func NewOBI(params Params) *OBI {
	threshold := params.OBIThreshold
	if threshold <= 0 {
		threshold = 0.2
	}
	return &OBI{threshold: threshold}
}

// Name returns the identifier for the strategy implementation.
func (s *OBI) Name() string { return "obi" }

// Analyze derives a direction from the imbalance between resting volumes.
// Spot history is ignored; the book speaks for itself here.
func (s *OBI) Analyze(_ []float64, quote signal.MarketQuote) signal.Signal {
	yesVol := float64(quote.YesBidQty)
	noVol := float64(quote.NoBidQty)
	total := yesVol + noVol
	if total <= 0 {
		return hold("no book depth", quote.Ts)
	}

	imbalance := clamp((yesVol-noVol)/total, -1, 1)
	if math.Abs(imbalance) < s.threshold {
		return hold(fmt.Sprintf("book balanced: imbalance %.2f", imbalance), quote.Ts)
	}

	confidence := clamp(0.5+math.Abs(imbalance)/2, 0, 1)
	fair := (quote.YesBid + quote.YesAsk) / 2
	if imbalance > 0 {
		if quote.YesAsk <= 0 || quote.YesAsk >= 100 {
			return hold("no usable yes ask", quote.Ts)
		}
		return signal.Signal{
			Direction:      signal.Buy,
			Confidence:     confidence,
			Reason:         fmt.Sprintf("book leans yes: imbalance %.2f (yes %d, no %d)", imbalance, quote.YesBidQty, quote.NoBidQty),
			FairPriceCents: fair,
			Ts:             quote.Ts,
		}
	}

	if quote.NoAsk <= 0 || quote.NoAsk >= 100 {
		return hold("no usable no ask", quote.Ts)
	}
	return signal.Signal{
		Direction:      signal.Sell,
		Confidence:     confidence,
		Reason:         fmt.Sprintf("book leans no: imbalance %.2f (yes %d, no %d)", imbalance, quote.YesBidQty, quote.NoBidQty),
		FairPriceCents: fair,
		Ts:             quote.Ts,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
