package strategy

import (
	"testing"
	"time"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

func testQuote(yesAsk int) signal.MarketQuote {
	return signal.MarketQuote{
		Ticker: "KXBTCD-25AUG2517-T64250",
		YesBid: yesAsk - 3,
		YesAsk: yesAsk,
		NoBid:  100 - yesAsk,
		NoAsk:  100 - yesAsk + 3,
		Ts:     time.Now().UTC(),
	}
}

func TestTrendBuysCheapYesInUptrend(t *testing.T) {
	strat := NewTrend(Params{})
	history := []float64{64000, 64200, 64600}

	sig := strat.Analyze(history, testQuote(47))
	if sig.Direction != signal.Buy {
		t.Fatalf("direction = %s, want BUY (%s)", sig.Direction, sig.Reason)
	}
	if sig.Confidence != 0.6 {
		t.Fatalf("confidence = %.2f, want 0.6", sig.Confidence)
	}
	if sig.FairPriceCents != 57 {
		t.Fatalf("fair price = %d, want 57", sig.FairPriceCents)
	}
}

func TestTrendSellsRichYesInDowntrend(t *testing.T) {
	strat := NewTrend(Params{})
	history := []float64{64600, 64400, 64000}

	sig := strat.Analyze(history, testQuote(52))
	if sig.Direction != signal.Sell {
		t.Fatalf("direction = %s, want SELL (%s)", sig.Direction, sig.Reason)
	}
	if sig.FairPriceCents != 42 {
		t.Fatalf("fair price = %d, want 42", sig.FairPriceCents)
	}
}

func TestTrendHoldsWithoutEdge(t *testing.T) {
	strat := NewTrend(Params{})

	flat := []float64{64000, 64010}
	if sig := strat.Analyze(flat, testQuote(47)); sig.Direction != signal.Hold {
		t.Fatalf("flat spot should hold, got %s", sig.Direction)
	}

	// Uptrend but the yes ask is no longer cheap.
	up := []float64{64000, 64600}
	if sig := strat.Analyze(up, testQuote(60)); sig.Direction != signal.Hold {
		t.Fatalf("rich ask should hold, got %s", sig.Direction)
	}
}

func TestTrendHoldsOnShortHistory(t *testing.T) {
	strat := NewTrend(Params{})
	if sig := strat.Analyze([]float64{64000}, testQuote(47)); sig.Direction != signal.Hold {
		t.Fatalf("single sample should hold, got %s", sig.Direction)
	}
	if sig := strat.Analyze(nil, testQuote(47)); sig.Direction != signal.Hold {
		t.Fatalf("empty history should hold, got %s", sig.Direction)
	}
}

func TestTrendHoldsOnMissingAsk(t *testing.T) {
	strat := NewTrend(Params{})
	quote := testQuote(47)
	quote.YesAsk = 0
	if sig := strat.Analyze([]float64{64000, 64600}, quote); sig.Direction != signal.Hold {
		t.Fatalf("missing ask should hold, got %s", sig.Direction)
	}
}

func TestTrendThresholdIsExclusive(t *testing.T) {
	strat := NewTrend(Params{})
	// Exactly +0.5% must not trigger.
	history := []float64{64000, 64320}
	if sig := strat.Analyze(history, testQuote(47)); sig.Direction != signal.Hold {
		t.Fatalf("change at the threshold should hold, got %s", sig.Direction)
	}
}

func TestBuildSelectsStrategy(t *testing.T) {
	if got := Build("obi", Params{}).Name(); got != "obi" {
		t.Fatalf("Build(obi) = %s", got)
	}
	if got := Build("trend", Params{}).Name(); got != "trend" {
		t.Fatalf("Build(trend) = %s", got)
	}
	if got := Build("  TREND  ", Params{}).Name(); got != "trend" {
		t.Fatalf("Build is not case-insensitive: %s", got)
	}
}
