package strategy

import (
	"testing"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

func depthQuote(yesQty, noQty int) signal.MarketQuote {
	quote := testQuote(47)
	quote.YesBidQty = yesQty
	quote.NoBidQty = noQty
	return quote
}

func TestOBIBuysOnYesHeavyBook(t *testing.T) {
	strat := NewOBI(Params{})

	sig := strat.Analyze(nil, depthQuote(300, 100))
	if sig.Direction != signal.Buy {
		t.Fatalf("direction = %s, want BUY (%s)", sig.Direction, sig.Reason)
	}
	if sig.Confidence < 0.55 {
		t.Fatalf("confidence = %.2f, want >= 0.55", sig.Confidence)
	}
}

func TestOBISellsOnNoHeavyBook(t *testing.T) {
	strat := NewOBI(Params{})

	sig := strat.Analyze(nil, depthQuote(100, 300))
	if sig.Direction != signal.Sell {
		t.Fatalf("direction = %s, want SELL (%s)", sig.Direction, sig.Reason)
	}
}

func TestOBIHoldsOnBalancedBook(t *testing.T) {
	strat := NewOBI(Params{})
	if sig := strat.Analyze(nil, depthQuote(100, 100)); sig.Direction != signal.Hold {
		t.Fatalf("balanced book should hold, got %s", sig.Direction)
	}

	// Just under the default 0.2 trigger.
	if sig := strat.Analyze(nil, depthQuote(115, 100)); sig.Direction != signal.Hold {
		t.Fatalf("mild imbalance should hold, got %s", sig.Direction)
	}
}

func TestOBIHoldsOnEmptyBook(t *testing.T) {
	strat := NewOBI(Params{})
	if sig := strat.Analyze(nil, depthQuote(0, 0)); sig.Direction != signal.Hold {
		t.Fatalf("empty book should hold, got %s", sig.Direction)
	}
}

func TestOBIHoldsWhenAskMissing(t *testing.T) {
	strat := NewOBI(Params{})
	quote := depthQuote(300, 100)
	quote.YesAsk = 0
	if sig := strat.Analyze(nil, quote); sig.Direction != signal.Hold {
		t.Fatalf("missing yes ask should hold, got %s", sig.Direction)
	}
}
