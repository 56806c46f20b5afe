// Package paper simulates fills and settlement against a virtual account so
// dry-run sessions produce a realistic cash and PnL trail.
package paper

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MaxGoetzmann/jalshi/internal/signal"
)

// Fill is one simulated execution applied to the account.
type Fill struct {
	Ticker     string              `json:"ticker"`
	Side       signal.ContractSide `json:"side"`
	PriceCents int                 `json:"priceCents"`
	Contracts  int                 `json:"contracts"`
	Ts         time.Time           `json:"ts"`
}

// FillRecorder captures simulated fills for later inspection.
type FillRecorder interface {
	Record(Fill)
}

// Settlement describes the cash effect of one market resolving.
type Settlement struct {
	Ticker    string              `json:"ticker"`
	Result    signal.ContractSide `json:"result"`
	Contracts int                 `json:"contracts"`
	PayoutUSD decimal.Decimal     `json:"payoutUsd"`
	PnLUSD    decimal.Decimal     `json:"pnlUsd"`
	Ts        time.Time           `json:"ts"`
}

type positionKey struct {
	ticker string
	side   signal.ContractSide
}

// lot aggregates contracts bought on one side of one market. Cost is kept in
// integer cents so settlement math stays exact.
type lot struct {
	contracts int
	costCents int64
}

// Account tracks virtual cash, realized PnL, and open contract lots while
// trading in dry-run mode. All USD amounts are decimals.
type Account struct {
	mu          sync.Mutex
	startingUSD decimal.Decimal
	cashUSD     decimal.Decimal
	realizedUSD decimal.Decimal
	positions   map[positionKey]lot
}

// PositionSnapshot exposes a read-only view of a single open lot.
type PositionSnapshot struct {
	Ticker    string
	Side      signal.ContractSide
	Contracts int
	CostUSD   decimal.Decimal
}

// Snapshot is a point-in-time copy of the account state. Equity values open
// lots at cost, so equity always equals starting cash plus realized PnL.
type Snapshot struct {
	CashUSD     decimal.Decimal
	RealizedUSD decimal.Decimal
	EquityUSD   decimal.Decimal
	Positions   []PositionSnapshot
}

// NewAccount constructs an account funded with starting cash.
func NewAccount(startingUSD decimal.Decimal) *Account {
	return &Account{
		startingUSD: startingUSD,
		cashUSD:     startingUSD,
		positions:   make(map[positionKey]lot),
	}
}

func centsUSD(cents int64) decimal.Decimal { return decimal.New(cents, -2) }

// StartingUSD returns the initial bankroll.
func (a *Account) StartingUSD() decimal.Decimal { return a.startingUSD }

// Apply debits cash for a fill and opens or extends the matching lot.
func (a *Account) Apply(fill Fill) error {
	if fill.Contracts <= 0 {
		return errors.New("contracts must be positive")
	}
	if fill.PriceCents <= 0 || fill.PriceCents >= 100 {
		return errors.New("price must be inside (0,100) cents")
	}
	if fill.Side != signal.Yes && fill.Side != signal.No {
		return errors.New("unknown contract side")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	costCents := int64(fill.PriceCents) * int64(fill.Contracts)
	cost := centsUSD(costCents)
	if cost.GreaterThan(a.cashUSD) {
		return errors.New("insufficient cash for fill")
	}

	key := positionKey{ticker: fill.Ticker, side: fill.Side}
	held := a.positions[key]
	held.contracts += fill.Contracts
	held.costCents += costCents
	a.positions[key] = held
	a.cashUSD = a.cashUSD.Sub(cost)
	return nil
}

// Settle resolves every lot held on the given market. Contracts on the
// winning side pay out 100 cents each, the losing side pays nothing. The
// second return is false when no lot was open for the ticker.
func (a *Account) Settle(ticker string, result signal.ContractSide) (Settlement, bool) {
	if result != signal.Yes && result != signal.No {
		return Settlement{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var contracts int
	var payoutCents, pnlCents int64
	for _, side := range []signal.ContractSide{signal.Yes, signal.No} {
		key := positionKey{ticker: ticker, side: side}
		held, ok := a.positions[key]
		if !ok {
			continue
		}
		delete(a.positions, key)
		contracts += held.contracts
		if side == result {
			won := int64(held.contracts) * 100
			payoutCents += won
			pnlCents += won - held.costCents
		} else {
			pnlCents -= held.costCents
		}
	}
	if contracts == 0 {
		return Settlement{}, false
	}

	payout := centsUSD(payoutCents)
	pnl := centsUSD(pnlCents)
	a.cashUSD = a.cashUSD.Add(payout)
	a.realizedUSD = a.realizedUSD.Add(pnl)
	return Settlement{
		Ticker:    ticker,
		Result:    result,
		Contracts: contracts,
		PayoutUSD: payout,
		PnLUSD:    pnl,
		Ts:        time.Now().UTC(),
	}, true
}

// Snapshot returns a copy of balances and open lots sorted by ticker and side.
func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make([]PositionSnapshot, 0, len(a.positions))
	equity := a.cashUSD
	for key, held := range a.positions {
		cost := centsUSD(held.costCents)
		positions = append(positions, PositionSnapshot{
			Ticker:    key.ticker,
			Side:      key.side,
			Contracts: held.contracts,
			CostUSD:   cost,
		})
		equity = equity.Add(cost)
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Ticker != positions[j].Ticker {
			return positions[i].Ticker < positions[j].Ticker
		}
		return positions[i].Side < positions[j].Side
	})

	return Snapshot{
		CashUSD:     a.cashUSD,
		RealizedUSD: a.realizedUSD,
		EquityUSD:   equity,
		Positions:   positions,
	}
}

// CashUSD reports free cash available for new fills.
func (a *Account) CashUSD() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cashUSD
}

// RealizedUSD returns total settled profit and loss.
func (a *Account) RealizedUSD() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedUSD
}

// OpenContracts returns the contract count held on one side of a market.
func (a *Account) OpenContracts(ticker string, side signal.ContractSide) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[positionKey{ticker: ticker, side: side}].contracts
}
