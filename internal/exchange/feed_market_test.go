package exchange

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MaxGoetzmann/jalshi/internal/kalshi"
	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

const pollTicker = "KXBTCD-25AUG2517-T64250"

type fakeQuoteSource struct {
	mu        sync.Mutex
	market    kalshi.Market
	book      kalshi.Orderbook
	marketErr error
	bookErr   error
	polls     int
}

func (s *fakeQuoteSource) GetMarket(ctx context.Context, ticker string) (kalshi.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.marketErr != nil {
		return kalshi.Market{}, s.marketErr
	}
	return s.market, nil
}

func (s *fakeQuoteSource) GetOrderbook(ctx context.Context, ticker string, depth int) (kalshi.Orderbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bookErr != nil {
		return kalshi.Orderbook{}, s.bookErr
	}
	return s.book, nil
}

func (s *fakeQuoteSource) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func activeMarket() kalshi.Market {
	return kalshi.Market{
		Ticker:      pollTicker,
		Status:      "active",
		YesBid:      44,
		YesAsk:      47,
		NoBid:       53,
		NoAsk:       56,
		FloorStrike: decimal.NewFromInt(64250),
		CloseTime:   time.Now().Add(30 * time.Minute),
	}
}

func receiveQuote(t *testing.T, p *QuotePoller) signal.MarketQuote {
	t.Helper()
	select {
	case q := <-p.Quotes():
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a quote")
		return signal.MarketQuote{}
	}
}

func TestPollDerivesQuoteFromOrderbook(t *testing.T) {
	source := &fakeQuoteSource{
		market: activeMarket(),
		book: kalshi.Orderbook{
			Yes: [][2]int{{40, 50}, {45, 120}},
			No:  [][2]int{{52, 200}},
		},
	}
	poller := NewQuotePoller(source, time.Second, zerolog.Nop())

	ts := time.Now()
	if err := poller.Poll(context.Background(), pollTicker, ts); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}

	q := receiveQuote(t, poller)
	if q.Ticker != pollTicker || !q.Ts.Equal(ts) {
		t.Fatalf("unexpected quote identity: %+v", q)
	}
	if q.YesBid != 45 || q.YesBidQty != 120 {
		t.Fatalf("expected yes bid 45x120, got %dx%d", q.YesBid, q.YesBidQty)
	}
	if q.NoAsk != 55 || q.NoAskQty != 120 {
		t.Fatalf("expected no ask 55x120, got %dx%d", q.NoAsk, q.NoAskQty)
	}
	if q.NoBid != 52 || q.NoBidQty != 200 {
		t.Fatalf("expected no bid 52x200, got %dx%d", q.NoBid, q.NoBidQty)
	}
	if q.YesAsk != 48 || q.YesAskQty != 200 {
		t.Fatalf("expected yes ask 48x200, got %dx%d", q.YesAsk, q.YesAskQty)
	}
	if q.StrikePrice.IntPart() != 64250 {
		t.Fatalf("expected strike 64250, got %s", q.StrikePrice)
	}
	if q.ExpiryMinutes < 29 || q.ExpiryMinutes > 31 {
		t.Fatalf("expected roughly 30 minutes to expiry, got %v", q.ExpiryMinutes)
	}
}

func TestPollFallsBackToMarketQuote(t *testing.T) {
	source := &fakeQuoteSource{
		market:  activeMarket(),
		bookErr: errors.New("orderbook down"),
	}
	poller := NewQuotePoller(source, time.Second, zerolog.Nop())

	if err := poller.Poll(context.Background(), pollTicker, time.Now()); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}

	q := receiveQuote(t, poller)
	if q.YesBid != 44 || q.YesAsk != 47 || q.NoBid != 53 || q.NoAsk != 56 {
		t.Fatalf("expected the market endpoint quote, got %+v", q)
	}
	if q.YesBidQty != 0 || q.NoBidQty != 0 {
		t.Fatalf("expected zero depth without an orderbook, got %+v", q)
	}
}

func TestPollAnnouncesFinalizedMarket(t *testing.T) {
	market := activeMarket()
	market.Status = "finalized"
	market.Result = "yes"
	source := &fakeQuoteSource{market: market}
	poller := NewQuotePoller(source, time.Second, zerolog.Nop())

	ts := time.Now()
	if err := poller.Poll(context.Background(), pollTicker, ts); err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}

	select {
	case res := <-poller.Settled():
		if res.Ticker != pollTicker || res.Result != signal.Yes || !res.Ts.Equal(ts) {
			t.Fatalf("unexpected settlement: %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for settlement")
	}

	select {
	case q := <-poller.Quotes():
		t.Fatalf("finalized market must not quote, got %+v", q)
	default:
	}
}

func TestPollReturnsSourceError(t *testing.T) {
	source := &fakeQuoteSource{marketErr: errors.New("venue down")}
	poller := NewQuotePoller(source, time.Second, zerolog.Nop())

	if err := poller.Poll(context.Background(), pollTicker, time.Now()); err == nil {
		t.Fatal("expected the source error to propagate")
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	poller := NewQuotePoller(&fakeQuoteSource{}, time.Second, zerolog.Nop())

	total := quoteBufferSize + 2
	for i := 1; i <= total; i++ {
		publish(poller.quotes, signal.MarketQuote{YesAsk: i})
	}

	if got := len(poller.quotes); got != quoteBufferSize {
		t.Fatalf("expected a full buffer of %d, got %d", quoteBufferSize, got)
	}
	first := <-poller.quotes
	if first.YesAsk != 3 {
		t.Fatalf("expected the two oldest quotes dropped, first survivor is %d", first.YesAsk)
	}
}

func TestRunPollsOnlyWithATicker(t *testing.T) {
	source := &fakeQuoteSource{market: activeMarket()}
	poller := NewQuotePoller(source, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- poller.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	if n := source.pollCount(); n != 0 {
		t.Fatalf("expected no polls before a ticker is set, got %d", n)
	}

	poller.SetTicker(pollTicker)
	q := receiveQuote(t, poller)
	if q.Ticker != pollTicker {
		t.Fatalf("unexpected ticker %s", q.Ticker)
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
