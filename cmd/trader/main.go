// Binary trader runs the guardrail trading loop for one contract series:
// spot and quote feeds in, strategy signals through the execution
// pipeline, outcomes journaled, settlements reported to the breaker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/MaxGoetzmann/jalshi/internal/config"
	"github.com/MaxGoetzmann/jalshi/internal/exchange"
	"github.com/MaxGoetzmann/jalshi/internal/execution"
	"github.com/MaxGoetzmann/jalshi/internal/journal"
	"github.com/MaxGoetzmann/jalshi/internal/kalshi"
	"github.com/MaxGoetzmann/jalshi/internal/metrics"
	"github.com/MaxGoetzmann/jalshi/internal/paper"
	"github.com/MaxGoetzmann/jalshi/internal/ratelimit"
	"github.com/MaxGoetzmann/jalshi/internal/risk"
	sig "github.com/MaxGoetzmann/jalshi/internal/signal"
	"github.com/MaxGoetzmann/jalshi/internal/strategy"
	"github.com/MaxGoetzmann/jalshi/internal/util"
)

const confirmTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.App.LogLevel)

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("trader stopped")
	}
	log.Info().Msg("shut down cleanly")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	policy, err := cfg.Guardrail.Policy()
	if err != nil {
		return err
	}
	location, err := cfg.Guardrail.Location()
	if err != nil {
		return err
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	limiter := ratelimit.NewBucket(cfg.Limiter.Capacity, cfg.Limiter.PerSecond)
	transportCfg := kalshi.Config{
		BaseURL:       kalshi.BaseURLFor(policy.Environment),
		Timeout:       cfg.Transport.Timeout(),
		MaxAttempts:   cfg.Transport.MaxAttempts,
		BackoffBase:   cfg.Transport.BackoffBase(),
		BackoffCap:    cfg.Transport.BackoffCap(),
		SessionMargin: cfg.Transport.SessionMargin(),
	}

	readSigner, err := kalshi.LoadSigner(kalshi.TierReadOnly)
	if err != nil {
		return fmt.Errorf("read-only credentials: %w", err)
	}
	readClient := kalshi.NewClient(transportCfg, readSigner, limiter, util.Component(log, "venue-read"))

	account := paper.NewAccount(decimal.NewFromFloat(cfg.Paper.StartingCashUSD))
	ledger := paper.NewLedger(cfg.Paper.LedgerSize)
	opts := []execution.Option{
		execution.WithAccount(account),
		execution.WithFillRecorder(ledger),
	}

	live := policy.LiveAuthorized()
	if live {
		writeSigner, err := kalshi.LoadSigner(kalshi.TierWrite)
		if err != nil {
			return fmt.Errorf("write credentials: %w", err)
		}
		writeClient := kalshi.NewClient(transportCfg, writeSigner, limiter, util.Component(log, "venue-write"))
		opts = append(opts, execution.WithVenue(writeClient))
		log.Warn().Msg("live trading enabled: orders will reach the venue")
	}
	if cfg.Guardrail.RequireConfirmation {
		opts = append(opts, execution.WithConfirmer(util.NewPrompt(os.Stdin, os.Stdout, confirmTimeout)))
	}

	breaker := risk.NewBreaker(
		policy.DailyLossLimitUSD,
		util.Component(log, "breaker"),
		risk.WithLocation(location),
	)
	engine := execution.NewEngine(
		execution.Config{
			Policy:          policy,
			DefaultOrderUSD: decimal.NewFromFloat(cfg.Guardrail.DefaultOrderUSD),
			MinConfidence:   cfg.Guardrail.MinConfidence,
		},
		breaker,
		util.Component(log, "engine"),
		opts...,
	)

	recorder, err := journal.NewRecorder(cfg.App.JournalPath, util.Component(log, "journal"))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer recorder.Close()

	spot := exchange.NewSpotFeed(cfg.Market.SpotSymbol, cfg.Market.HistorySize, util.Component(log, "spot"))
	poller := exchange.NewQuotePoller(readClient, cfg.Market.PollInterval(), util.Component(log, "poller"))
	discovery := exchange.NewMarketDiscovery(
		util.Component(log, "discovery"),
		readClient, poller,
		cfg.Market.Series,
		cfg.Market.DiscoveryRefresh(),
	)

	runtime := strategy.NewRuntime(
		strategy.Build(cfg.Strategy.Mode, strategy.Params{
			TrendThresholdPct: cfg.Strategy.Params.TrendThresholdPct,
			CheapYesAskCents:  cfg.Strategy.Params.CheapYesAskCents,
			RichYesAskCents:   cfg.Strategy.Params.RichYesAskCents,
			Confidence:        cfg.Strategy.Params.Confidence,
			FairOffsetCents:   cfg.Strategy.Params.FairOffsetCents,
			OBIThreshold:      cfg.Strategy.Params.OBIThreshold,
		}),
		cfg.Strategy.Params.AnalysisTimeout(),
		util.Component(log, "strategy"),
	)

	t := &trader{
		log:       util.Component(log, "trader"),
		spot:      spot,
		poller:    poller,
		discovery: discovery,
		strategy:  runtime,
		engine:    engine,
		account:   account,
		recorder:  recorder,
		live:      live,
	}

	log.Info().
		Str("series", cfg.Market.Series).
		Str("strategy", runtime.Name()).
		Bool("dry_run", policy.DryRun).
		Bool("live", live).
		Msg("trader started")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return spot.Run(ctx) })
	group.Go(func() error { return poller.Run(ctx) })
	group.Go(func() error { return t.loop(ctx) })
	discovery.Start(ctx)

	return group.Wait()
}

// trader owns the per-quote decision cycle and the settlement handling.
type trader struct {
	log       zerolog.Logger
	spot      *exchange.SpotFeed
	poller    *exchange.QuotePoller
	discovery *exchange.MarketDiscovery
	strategy  *strategy.Runtime
	engine    *execution.Engine
	account   *paper.Account
	recorder  *journal.Recorder
	live      bool
}

func (t *trader) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case quote := <-t.poller.Quotes():
			t.onQuote(ctx, quote)
		case result := <-t.poller.Settled():
			t.onSettled(ctx, result)
		}
	}
}

func (t *trader) onQuote(ctx context.Context, quote sig.MarketQuote) {
	s := t.strategy.Analyze(t.spot.Snapshot(), quote)
	outcome := t.engine.Execute(ctx, s, quote)

	// Holds and low-confidence signals produce no order attempt; keep the
	// journal to attempts and their verdicts.
	if outcome.RejectionReason == execution.ReasonNoAction || outcome.RejectionReason == execution.ReasonLowConfidence {
		t.log.Debug().
			Str("ticker", quote.Ticker).
			Str("direction", string(s.Direction)).
			Str("reason", s.Reason).
			Msg("no action")
		return
	}
	t.recorder.RecordOutcome(outcome)

	if t.live && outcome.Accepted && outcome.OrderID != "" {
		t.shadowFill(outcome)
	}
}

// shadowFill mirrors a live submission into the paper account at the limit
// price so settlements can feed realized P&L back to the breaker.
func (t *trader) shadowFill(outcome execution.Outcome) {
	err := t.account.Apply(paper.Fill{
		Ticker:     outcome.Ticker,
		Side:       outcome.Side,
		PriceCents: outcome.LimitPriceCents,
		Contracts:  outcome.Contracts,
		Ts:         outcome.Ts,
	})
	if err != nil {
		t.log.Warn().Err(err).Str("order_id", outcome.OrderID).Msg("shadow fill rejected")
	}
}

func (t *trader) onSettled(ctx context.Context, result exchange.MarketResult) {
	settlement, ok := t.account.Settle(result.Ticker, result.Result)
	if ok {
		t.recorder.RecordSettlement(settlement)
		state := t.engine.ReportSettlement(settlement.PnLUSD)
		t.log.Info().
			Str("ticker", settlement.Ticker).
			Str("result", string(settlement.Result)).
			Str("pnl_usd", settlement.PnLUSD.String()).
			Str("cash_usd", t.account.CashUSD().String()).
			Msg("position settled")
		if state == risk.Open {
			t.log.Warn().Msg("daily loss limit reached, trading halted for the day")
		}
	}

	// Roll to the next contract right away instead of waiting out the
	// discovery interval.
	if err := t.discovery.Refresh(ctx); err != nil {
		t.log.Warn().Err(err).Msg("market rollover failed")
	}
}
