// Package kalshi is the authenticated client for the venue's trade API:
// request signing, session refresh, response classification, and retries,
// with every attempt paying the shared rate limiter.
package kalshi

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is the short-lived credential returned by Login and attached to
// every regular request.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Market is the venue's view of one binary contract. Prices are integer
// cents in 1..99.
type Market struct {
	Ticker      string          `json:"ticker"`
	EventTicker string          `json:"event_ticker"`
	Status      string          `json:"status"`
	Result      string          `json:"result"`
	YesBid      int             `json:"yes_bid"`
	YesAsk      int             `json:"yes_ask"`
	NoBid       int             `json:"no_bid"`
	NoAsk       int             `json:"no_ask"`
	FloorStrike decimal.Decimal `json:"floor_strike"`
	CloseTime   time.Time       `json:"close_time"`
}

// Orderbook carries resting bids per side as [price, quantity] levels.
// The venue only lists bids: the ask for one side is the complement of
// the best bid on the other.
type Orderbook struct {
	Yes [][2]int `json:"yes"`
	No  [][2]int `json:"no"`
}

// bestBid returns the highest-priced level, or zeros for an empty side.
func bestBid(levels [][2]int) (price, qty int) {
	for _, lvl := range levels {
		if lvl[0] > price {
			price, qty = lvl[0], lvl[1]
		}
	}
	return price, qty
}

// BestYesBid returns the best resting yes bid and its quantity.
func (ob Orderbook) BestYesBid() (price, qty int) { return bestBid(ob.Yes) }

// BestNoBid returns the best resting no bid and its quantity.
func (ob Orderbook) BestNoBid() (price, qty int) { return bestBid(ob.No) }

// Balance is the account's available balance in cents.
type Balance struct {
	Balance int64 `json:"balance"`
}

// MarketPosition is one open position. Position is signed contract count,
// positive for yes.
type MarketPosition struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"`
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnl    int64  `json:"realized_pnl"`
	TotalTraded    int64  `json:"total_traded"`
}

// ExchangeStatus reports venue availability.
type ExchangeStatus struct {
	ExchangeActive bool `json:"exchange_active"`
	TradingActive  bool `json:"trading_active"`
}

// OrderRequest creates one order. Exactly one of YesPrice/NoPrice is set,
// matching Side.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
}

// Order is the venue's record of a placed order.
type Order struct {
	OrderID       string `json:"order_id"`
	ClientOrderID string `json:"client_order_id"`
	Ticker        string `json:"ticker"`
	Status        string `json:"status"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price"`
	NoPrice       int    `json:"no_price"`
}

// Response envelopes.

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

type marketResponse struct {
	Market Market `json:"market"`
}

type orderbookResponse struct {
	Orderbook Orderbook `json:"orderbook"`
}

type positionsResponse struct {
	MarketPositions []MarketPosition `json:"market_positions"`
}

type orderResponse struct {
	Order Order `json:"order"`
}
