// Package integration wires real components end to end against a stubbed
// venue: discovery picks the market, the poller quotes it, a strategy
// signals, and the engine trades through the full guardrail pipeline.
package integration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MaxGoetzmann/jalshi/internal/exchange"
	"github.com/MaxGoetzmann/jalshi/internal/execution"
	"github.com/MaxGoetzmann/jalshi/internal/journal"
	"github.com/MaxGoetzmann/jalshi/internal/kalshi"
	"github.com/MaxGoetzmann/jalshi/internal/paper"
	"github.com/MaxGoetzmann/jalshi/internal/ratelimit"
	"github.com/MaxGoetzmann/jalshi/internal/risk"
	"github.com/MaxGoetzmann/jalshi/internal/signal"
	"github.com/MaxGoetzmann/jalshi/internal/strategy"
)

const flowTicker = "KXBTCD-25AUG2517-T64250"

// venue is a minimal trade API stub with a mutable market.
type venue struct {
	mu     sync.Mutex
	market kalshi.Market
	book   kalshi.Orderbook
	orders []kalshi.OrderRequest
}

func (v *venue) finalize(result string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.market.Status = "finalized"
	v.market.Result = result
}

func (v *venue) orderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.orders)
}

func (v *venue) lastOrder() kalshi.OrderRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.orders[len(v.orders)-1]
}

func (v *venue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case r.URL.Path == "/login":
		_ = json.NewEncoder(w).Encode(kalshi.Session{
			Token:     "session-token",
			ExpiresAt: time.Now().Add(time.Hour),
		})
	case r.URL.Path == "/markets":
		_ = json.NewEncoder(w).Encode(map[string]any{"markets": []kalshi.Market{v.market}})
	case strings.HasSuffix(r.URL.Path, "/orderbook"):
		_ = json.NewEncoder(w).Encode(map[string]any{"orderbook": v.book})
	case strings.HasPrefix(r.URL.Path, "/markets/"):
		_ = json.NewEncoder(w).Encode(map[string]any{"market": v.market})
	case r.URL.Path == "/portfolio/orders" && r.Method == http.MethodPost:
		var req kalshi.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		v.orders = append(v.orders, req)
		_ = json.NewEncoder(w).Encode(map[string]any{"order": kalshi.Order{
			OrderID:       "ord-flow-1",
			ClientOrderID: req.ClientOrderID,
			Ticker:        req.Ticker,
			Status:        "resting",
		}})
	default:
		http.NotFound(w, r)
	}
}

func newVenueClient(t *testing.T, v *venue) *kalshi.Client {
	t.Helper()
	srv := httptest.NewServer(v)
	t.Cleanup(srv.Close)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	signer, err := kalshi.NewSigner("flow-key", pemBytes)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	cfg := kalshi.Config{
		BaseURL:     srv.URL,
		Timeout:     2 * time.Second,
		BackoffBase: time.Millisecond,
		BackoffCap:  4 * time.Millisecond,
	}
	return kalshi.NewClient(cfg, signer, ratelimit.NewBucket(200, 2000), zerolog.Nop())
}

func activeMarket() kalshi.Market {
	return kalshi.Market{
		Ticker:      flowTicker,
		Status:      "active",
		YesBid:      44,
		YesAsk:      47,
		NoBid:       53,
		NoAsk:       56,
		FloorStrike: decimal.NewFromInt(64250),
		CloseTime:   time.Now().Add(45 * time.Minute),
	}
}

func climbingSpot(n int) *exchange.SpotFeed {
	spot := exchange.NewSpotFeed("btcusdt", 120, zerolog.Nop())
	for i := 0; i < n; i++ {
		spot.Record(64000 + float64(i)*40)
	}
	return spot
}

func TestDryRunFlowTradesAndTrips(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v := &venue{
		market: activeMarket(),
		book:   kalshi.Orderbook{Yes: [][2]int{{44, 150}}, No: [][2]int{{53, 90}}},
	}
	client := newVenueClient(t, v)

	poller := exchange.NewQuotePoller(client, 10*time.Millisecond, zerolog.Nop())
	disc := exchange.NewMarketDiscovery(zerolog.Nop(), client, poller, "KXBTCD", time.Minute)
	if err := disc.Refresh(ctx); err != nil {
		t.Fatalf("discovery refresh: %v", err)
	}
	if got := disc.Current(); got != flowTicker {
		t.Fatalf("discovery picked %q", got)
	}

	spot := climbingSpot(20)
	runtime := strategy.NewRuntime(strategy.Build("trend", strategy.Params{}), 200*time.Millisecond, zerolog.Nop())

	account := paper.NewAccount(decimal.NewFromInt(1000))
	ledger := paper.NewLedger(64)
	breaker := risk.NewBreaker(decimal.NewFromInt(5), zerolog.Nop())
	engine := execution.NewEngine(
		execution.Config{
			Policy: risk.Policy{
				MaxOrderUSD:       decimal.NewFromInt(10),
				DailyLossLimitUSD: decimal.NewFromInt(5),
				DryRun:            true,
				Environment:       risk.EnvDevelopment,
			},
			DefaultOrderUSD: decimal.NewFromInt(10),
			MinConfidence:   0.55,
		},
		breaker, zerolog.Nop(),
		execution.WithAccount(account),
		execution.WithFillRecorder(ledger),
	)

	journalPath := filepath.Join(t.TempDir(), "outcomes.jsonl")
	recorder, err := journal.NewRecorder(journalPath, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	go func() { _ = poller.Run(ctx) }()

	var quote signal.MarketQuote
	select {
	case quote = <-poller.Quotes():
	case <-ctx.Done():
		t.Fatal("timed out waiting for a quote")
	}
	if quote.YesAsk != 47 {
		t.Fatalf("expected yes ask 47 from the book, got %d", quote.YesAsk)
	}

	sig := runtime.Analyze(spot.Snapshot(), quote)
	if sig.Direction != signal.Buy {
		t.Fatalf("expected a buy off the uptrend, got %+v", sig)
	}

	outcome := engine.Execute(ctx, sig, quote)
	if !outcome.Accepted {
		t.Fatalf("expected an accepted dry-run fill, got %+v", outcome)
	}
	if outcome.SimulatedFillPriceCents != 47 || outcome.Contracts != 21 {
		t.Fatalf("unexpected fill: %+v", outcome)
	}
	if v.orderCount() != 0 {
		t.Fatal("dry run must never reach the venue's order endpoint")
	}
	recorder.RecordOutcome(outcome)

	if got := account.CashUSD(); !got.Equal(decimal.RequireFromString("990.13")) {
		t.Fatalf("expected cash 990.13 after the fill, got %s", got)
	}

	// The market resolves no, so the yes position forfeits its cost and the
	// realized loss blows through the 5 dollar daily limit.
	v.finalize("no")
	var result exchange.MarketResult
	select {
	case result = <-poller.Settled():
	case <-ctx.Done():
		t.Fatal("timed out waiting for settlement")
	}

	settlement, ok := account.Settle(result.Ticker, result.Result)
	if !ok {
		t.Fatal("expected an open position to settle")
	}
	if !settlement.PnLUSD.Equal(decimal.RequireFromString("-9.87")) {
		t.Fatalf("expected pnl -9.87, got %s", settlement.PnLUSD)
	}
	recorder.RecordSettlement(settlement)

	if state := engine.ReportSettlement(settlement.PnLUSD); state != risk.Open {
		t.Fatalf("expected the breaker to trip, got %v", state)
	}

	after := engine.Execute(ctx, sig, quote)
	if after.Accepted || after.RejectionReason != risk.ReasonCircuitBreakerOpen {
		t.Fatalf("expected a breaker rejection, got %+v", after)
	}
	recorder.RecordOutcome(after)

	if err := recorder.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	entries, err := journal.Tail(journalPath, 10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 journal entries, got %d", len(entries))
	}
	if entries[1].Kind != "settlement" || entries[1].Settlement == nil {
		t.Fatalf("expected the middle entry to be the settlement, got %+v", entries[1])
	}
}

func TestLiveFlowSubmitsVenueOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v := &venue{
		market: activeMarket(),
		book:   kalshi.Orderbook{Yes: [][2]int{{44, 150}}, No: [][2]int{{53, 90}}},
	}
	client := newVenueClient(t, v)

	breaker := risk.NewBreaker(decimal.NewFromInt(50), zerolog.Nop())
	engine := execution.NewEngine(
		execution.Config{
			Policy: risk.Policy{
				MaxOrderUSD:         decimal.NewFromInt(10),
				DailyLossLimitUSD:   decimal.NewFromInt(50),
				Environment:         risk.EnvProduction,
				ProductionConfirmed: true,
			},
			DefaultOrderUSD: decimal.NewFromInt(10),
			MinConfidence:   0.55,
		},
		breaker, zerolog.Nop(),
		execution.WithVenue(client),
	)

	spot := climbingSpot(20)
	runtime := strategy.NewRuntime(strategy.Build("trend", strategy.Params{}), 200*time.Millisecond, zerolog.Nop())

	poller := exchange.NewQuotePoller(client, 10*time.Millisecond, zerolog.Nop())
	if err := poller.Poll(ctx, flowTicker, time.Now()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	quote := <-poller.Quotes()

	sig := runtime.Analyze(spot.Snapshot(), quote)
	outcome := engine.Execute(ctx, sig, quote)
	if !outcome.Accepted || outcome.OrderID != "ord-flow-1" {
		t.Fatalf("expected a live submission, got %+v", outcome)
	}

	if v.orderCount() != 1 {
		t.Fatalf("expected exactly one venue order, got %d", v.orderCount())
	}
	req := v.lastOrder()
	if req.Ticker != flowTicker || req.Side != "yes" || req.Action != "buy" || req.Type != "limit" {
		t.Fatalf("unexpected order request: %+v", req)
	}
	if req.Count != 21 || req.YesPrice != 47 || req.NoPrice != 0 {
		t.Fatalf("unexpected order pricing: %+v", req)
	}
	if req.ClientOrderID == "" {
		t.Fatal("expected a client order id for venue deduplication")
	}
}
