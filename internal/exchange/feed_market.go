package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MaxGoetzmann/jalshi/internal/kalshi"
	"github.com/MaxGoetzmann/jalshi/internal/metrics"
	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// QuoteSource is the slice of the venue client the poller depends on.
type QuoteSource interface {
	GetMarket(ctx context.Context, ticker string) (kalshi.Market, error)
	GetOrderbook(ctx context.Context, ticker string, depth int) (kalshi.Orderbook, error)
}

// MarketResult announces a finalized contract so open positions can settle.
type MarketResult struct {
	Ticker string
	Result signal.ContractSide
	Ts     time.Time
}

const (
	orderbookDepth   = 1
	quoteBufferSize  = 16
	resultBufferSize = 4
)

// QuotePoller turns the venue's market and orderbook endpoints into a stream
// of MarketQuotes for the active ticker. Slow consumers lose the oldest
// quotes rather than stalling the poll loop.
type QuotePoller struct {
	source   QuoteSource
	interval time.Duration
	log      zerolog.Logger

	mu     sync.RWMutex
	ticker string

	quotes  chan signal.MarketQuote
	settled chan MarketResult
}

// NewQuotePoller constructs a poller; the ticker is assigned later via
// SetTicker, typically by market discovery.
func NewQuotePoller(source QuoteSource, interval time.Duration, log zerolog.Logger) *QuotePoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &QuotePoller{
		source:   source,
		interval: interval,
		log:      log,
		quotes:   make(chan signal.MarketQuote, quoteBufferSize),
		settled:  make(chan MarketResult, resultBufferSize),
	}
}

// Quotes is the stream of polled quotes.
func (p *QuotePoller) Quotes() <-chan signal.MarketQuote { return p.quotes }

// Settled is the stream of finalized-market notifications.
func (p *QuotePoller) Settled() <-chan MarketResult { return p.settled }

// SetTicker switches the polled contract. Empty pauses polling.
func (p *QuotePoller) SetTicker(ticker string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ticker == p.ticker {
		return
	}
	p.log.Info().Str("from", p.ticker).Str("to", ticker).Msg("switching polled market")
	p.ticker = ticker
}

func (p *QuotePoller) currentTicker() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticker
}

// Run polls on the configured interval until the context is canceled.
func (p *QuotePoller) Run(ctx context.Context) error {
	tick := time.NewTicker(p.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-tick.C:
			ticker := p.currentTicker()
			if ticker == "" {
				continue
			}
			if err := p.Poll(ctx, ticker, ts); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				p.log.Warn().Err(err).Str("ticker", ticker).Msg("quote poll failed")
			}
		}
	}
}

// Poll performs one quote cycle for the given ticker. A finalized market
// produces a settlement notification instead of a quote.
func (p *QuotePoller) Poll(ctx context.Context, ticker string, ts time.Time) error {
	market, err := p.source.GetMarket(ctx, ticker)
	if err != nil {
		return err
	}

	if result := contractResult(market.Result); result != "" {
		p.log.Info().Str("ticker", ticker).Str("result", string(result)).Msg("market finalized")
		publish(p.settled, MarketResult{Ticker: ticker, Result: result, Ts: ts})
		return nil
	}

	quote := signal.MarketQuote{
		Ticker:        ticker,
		YesBid:        market.YesBid,
		YesAsk:        market.YesAsk,
		NoBid:         market.NoBid,
		NoAsk:         market.NoAsk,
		StrikePrice:   market.FloorStrike,
		ExpiryMinutes: time.Until(market.CloseTime).Minutes(),
		Ts:            ts,
	}

	book, err := p.source.GetOrderbook(ctx, ticker, orderbookDepth)
	if err != nil {
		p.log.Debug().Err(err).Str("ticker", ticker).Msg("orderbook unavailable, using market quote")
	} else {
		applyOrderbook(&quote, book)
	}

	publish(p.quotes, quote)
	metrics.QuotesTotal.WithLabelValues(ticker).Inc()
	return nil
}

// applyOrderbook overlays resting bid data onto the quote. The venue lists
// bids only: a yes bid at p is the same liquidity as a no ask at 100-p, so
// each side's ask comes from the other side's best bid.
func applyOrderbook(q *signal.MarketQuote, book kalshi.Orderbook) {
	if px, qty := book.BestYesBid(); px > 0 {
		q.YesBid, q.YesBidQty = px, qty
		q.NoAsk, q.NoAskQty = 100-px, qty
	}
	if px, qty := book.BestNoBid(); px > 0 {
		q.NoBid, q.NoBidQty = px, qty
		q.YesAsk, q.YesAskQty = 100-px, qty
	}
}

// contractResult maps the venue's result field onto a contract side; empty
// means the market has not resolved.
func contractResult(result string) signal.ContractSide {
	switch result {
	case "yes":
		return signal.Yes
	case "no":
		return signal.No
	default:
		return ""
	}
}

// publish delivers v, dropping the oldest buffered element when full.
func publish[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
