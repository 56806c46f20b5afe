// Package signal standardizes payloads shared between market data feeds,
// strategies, and the execution pipeline.
package signal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction expresses the trade intent emitted by a strategy.
type Direction string

const (
	// Buy means the YES contract looks underpriced.
	Buy Direction = "BUY"
	// Sell means the YES contract looks overpriced, so take the NO side.
	Sell Direction = "SELL"
	// Hold is the safe default: no edge, do nothing.
	Hold Direction = "HOLD"
)

// ContractSide names the two legs of a binary contract using venue spelling.
type ContractSide string

const (
	Yes ContractSide = "yes"
	No  ContractSide = "no"
)

// Opposite returns the other leg of the contract.
func (s ContractSide) Opposite() ContractSide {
	if s == Yes {
		return No
	}
	return Yes
}

// OrderMode gates whether a candidate order may leave the process.
type OrderMode string

const (
	ModeDryRun OrderMode = "dry_run"
	ModeLive   OrderMode = "live"
)

// Signal is the immutable output of one strategy analysis pass.
// FairPriceCents is optional; zero means the strategy offered no estimate.
type Signal struct {
	Direction      Direction
	Confidence     float64 // 0..1
	Reason         string
	FairPriceCents int
	Ts             time.Time
}

// MarketQuote is a point-in-time snapshot of a binary contract's top of book.
// Prices are integer cents in 1..99. Depth quantities are zero when the
// source did not provide an orderbook.
type MarketQuote struct {
	Ticker        string
	YesBid        int
	YesAsk        int
	NoBid         int
	NoAsk         int
	YesBidQty     int
	YesAskQty     int
	NoBidQty      int
	NoAskQty      int
	StrikePrice   decimal.Decimal
	ExpiryMinutes float64
	Ts            time.Time
}

// AskCents returns the best ask for the requested side.
func (q MarketQuote) AskCents(side ContractSide) int {
	if side == Yes {
		return q.YesAsk
	}
	return q.NoAsk
}

// CandidateOrder is derived by the pipeline from a Signal plus a MarketQuote;
// strategies never construct one. SizeUSD is already capped to the per-order
// limit, and Contracts is the whole-contract count at the limit price.
type CandidateOrder struct {
	Ticker          string
	Side            ContractSide
	LimitPriceCents int
	SizeUSD         decimal.Decimal
	Contracts       int
	Mode            OrderMode
}
