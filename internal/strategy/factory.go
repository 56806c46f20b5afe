package strategy

import (
	"strings"
	"time"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// Strategy defines behaviour shared by strategy implementations fed by the
// trade loop. Implementations must be pure: no I/O, no shared mutation.
type Strategy interface {
	Analyze(history []float64, quote signal.MarketQuote) signal.Signal
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	TrendThresholdPct float64
	CheapYesAskCents  int
	RichYesAskCents   int
	Confidence        float64
	FairOffsetCents   int
	OBIThreshold      float64
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) Strategy {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "obi", "imbalance":
		return NewOBI(params)
	default:
		return NewTrend(params)
	}
}

func hold(reason string, ts time.Time) signal.Signal {
	return signal.Signal{Direction: signal.Hold, Confidence: 0.5, Reason: reason, Ts: ts}
}
