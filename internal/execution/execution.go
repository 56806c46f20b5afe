// Package execution runs trade signals through the guardrail pipeline and
// turns them into venue orders, simulated fills, or definite rejections.
package execution

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MaxGoetzmann/jalshi/internal/kalshi"
	"github.com/MaxGoetzmann/jalshi/internal/metrics"
	"github.com/MaxGoetzmann/jalshi/internal/paper"
	"github.com/MaxGoetzmann/jalshi/internal/risk"
	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// VenueClient is the slice of the venue API the engine needs for live orders.
type VenueClient interface {
	CreateOrder(ctx context.Context, req kalshi.OrderRequest) (kalshi.Order, error)
}

// Config carries the engine's immutable policy and sizing knobs.
type Config struct {
	Policy          risk.Policy
	DefaultOrderUSD decimal.Decimal
	MinConfidence   float64
}

// Engine owns one pipeline instance. Shared collaborators (breaker, paper
// account, venue client) carry their own synchronization, so concurrent
// Execute calls are safe.
type Engine struct {
	cfg       Config
	breaker   *risk.Breaker
	venue     VenueClient
	confirmer risk.Confirmer
	account   *paper.Account
	fills     paper.FillRecorder
	log       zerolog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithVenue wires the live order client. Without it live submissions fail.
func WithVenue(venue VenueClient) Option {
	return func(e *Engine) { e.venue = venue }
}

// WithConfirmer wires the interactive confirmation collaborator.
func WithConfirmer(confirmer risk.Confirmer) Option {
	return func(e *Engine) { e.confirmer = confirmer }
}

// WithAccount wires the paper account receiving simulated fills.
func WithAccount(account *paper.Account) Option {
	return func(e *Engine) { e.account = account }
}

// WithFillRecorder wires a recorder notified of every simulated fill.
func WithFillRecorder(recorder paper.FillRecorder) Option {
	return func(e *Engine) { e.fills = recorder }
}

// NewEngine builds the pipeline around a policy and its circuit breaker.
func NewEngine(cfg Config, breaker *risk.Breaker, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, breaker: breaker, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one signal through gating, sizing, policy, and placement.
// It always returns a definite Outcome; failures surface as rejection
// reasons, never as panics or lost orders.
func (e *Engine) Execute(ctx context.Context, sig signal.Signal, quote signal.MarketQuote) Outcome {
	outcome := Outcome{Ticker: quote.Ticker, Ts: time.Now().UTC()}

	// Hold and low-confidence signals stop here, before the breaker,
	// limiter, confirmer, or transport are ever consulted.
	if sig.Direction != signal.Buy && sig.Direction != signal.Sell {
		return e.rejected(outcome, ReasonNoAction)
	}
	if e.cfg.MinConfidence > 0 && sig.Confidence < e.cfg.MinConfidence {
		return e.rejected(outcome, ReasonLowConfidence)
	}

	order, ok := e.deriveOrder(sig, quote)
	outcome.Side = order.Side
	outcome.LimitPriceCents = order.LimitPriceCents
	outcome.Contracts = order.Contracts
	if !ok {
		return e.rejected(outcome, ReasonNoAction)
	}

	decision := risk.Evaluate(order, e.cfg.Policy, e.breaker.CurrentState(), e.confirmer)
	if !decision.Allowed {
		return e.rejected(outcome, decision.Reason)
	}

	if order.Mode == signal.ModeDryRun {
		return e.fillSimulated(order, outcome)
	}
	return e.submitLive(ctx, order, outcome)
}

// deriveOrder maps a directional signal onto the venue's yes/no contract
// space: Buy takes the yes side, Sell the no side, both as limit buys at the
// side's current ask. Stake is the default order size capped by policy, in
// whole contracts.
func (e *Engine) deriveOrder(sig signal.Signal, quote signal.MarketQuote) (signal.CandidateOrder, bool) {
	side := signal.Yes
	if sig.Direction == signal.Sell {
		side = signal.No
	}
	order := signal.CandidateOrder{
		Ticker:          quote.Ticker,
		Side:            side,
		LimitPriceCents: quote.AskCents(side),
		Mode:            signal.ModeDryRun,
	}
	if !e.cfg.Policy.DryRun {
		order.Mode = signal.ModeLive
	}
	if order.LimitPriceCents <= 0 || order.LimitPriceCents >= 100 {
		return order, false
	}

	size := e.cfg.DefaultOrderUSD
	if size.GreaterThan(e.cfg.Policy.MaxOrderUSD) {
		size = e.cfg.Policy.MaxOrderUSD
	}
	order.SizeUSD = size
	cents := size.Mul(decimal.NewFromInt(100))
	order.Contracts = int(cents.Div(decimal.NewFromInt(int64(order.LimitPriceCents))).IntPart())
	if order.Contracts <= 0 {
		return order, false
	}
	return order, true
}

func (e *Engine) fillSimulated(order signal.CandidateOrder, outcome Outcome) Outcome {
	fill := paper.Fill{
		Ticker:     order.Ticker,
		Side:       order.Side,
		PriceCents: order.LimitPriceCents,
		Contracts:  order.Contracts,
		Ts:         outcome.Ts,
	}
	if e.account != nil {
		if err := e.account.Apply(fill); err != nil {
			e.log.Warn().Err(err).Str("ticker", order.Ticker).Msg("paper account declined fill")
			return e.rejected(outcome, ReasonExecutionFailed)
		}
	}
	if e.fills != nil {
		e.fills.Record(fill)
	}

	outcome.Accepted = true
	outcome.SimulatedFillPriceCents = order.LimitPriceCents
	metrics.OutcomesTotal.WithLabelValues("accepted").Inc()
	e.log.Info().
		Str("ticker", order.Ticker).
		Str("side", string(order.Side)).
		Int("contracts", order.Contracts).
		Int("px", order.LimitPriceCents).
		Msg("simulated fill")
	return outcome
}

func (e *Engine) submitLive(ctx context.Context, order signal.CandidateOrder, outcome Outcome) Outcome {
	if e.venue == nil {
		e.log.Error().Str("ticker", order.Ticker).Msg("live order with no venue client wired")
		return e.rejected(outcome, ReasonExecutionFailed)
	}

	req := kalshi.OrderRequest{
		Ticker: order.Ticker,
		Side:   string(order.Side),
		Action: "buy",
		Count:  order.Contracts,
		Type:   "limit",
	}
	if order.Side == signal.Yes {
		req.YesPrice = order.LimitPriceCents
	} else {
		req.NoPrice = order.LimitPriceCents
	}

	placed, err := e.venue.CreateOrder(ctx, req)
	if err != nil {
		e.log.Error().Err(err).Str("ticker", order.Ticker).Msg("order submission failed")
		return e.rejected(outcome, ReasonExecutionFailed)
	}

	outcome.Accepted = true
	outcome.OrderID = placed.OrderID
	metrics.OutcomesTotal.WithLabelValues("accepted").Inc()
	metrics.OrdersTotal.WithLabelValues(order.Ticker, string(order.Side)).Inc()
	e.log.Info().
		Str("ticker", order.Ticker).
		Str("side", string(order.Side)).
		Int("contracts", order.Contracts).
		Int("px", order.LimitPriceCents).
		Str("order_id", placed.OrderID).
		Msg("order placed")
	return outcome
}

func (e *Engine) rejected(outcome Outcome, reason risk.Reason) Outcome {
	outcome.Accepted = false
	outcome.RejectionReason = reason
	metrics.OutcomesTotal.WithLabelValues("rejected").Inc()
	metrics.RejectionsTotal.WithLabelValues(string(reason)).Inc()
	e.log.Debug().
		Str("ticker", outcome.Ticker).
		Str("reason", string(reason)).
		Msg("order not placed")
	return outcome
}

// ReportSettlement routes realized P&L into the circuit breaker and returns
// the post-update state. Dry-run settlements travel the same path live ones
// do, so paper sessions exercise the breaker without financial effect.
func (e *Engine) ReportSettlement(pnlUSD decimal.Decimal) risk.State {
	state := e.breaker.ReportOutcome(pnlUSD)
	if state == risk.Open {
		e.log.Warn().Str("pnl_usd", pnlUSD.String()).Msg("settlement reported with breaker open")
	}
	return state
}
