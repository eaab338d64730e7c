// Package broker defines the external collaborators the risk engine depends
// on. Everything trade-affecting flows through these interfaces so the engine
// can be exercised against the in-memory sim in tests.
package broker

import (
	"context"
	"time"

	"github.com/optryx/riskgate/market"
)

// Broker is the order-routing collaborator.
type Broker interface {
	GetOpenPositions(ctx context.Context) ([]market.Position, error)
	GetAccountEquity(ctx context.Context) (float64, error)
	PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, symbol string, qty float64) (CloseResult, error)
	CancelOpenOrders(ctx context.Context, symbol string) error
}

// MarketData supplies bars, quotes and volatility context.
type MarketData interface {
	DailyBars(ctx context.Context, symbol string, days int) ([]market.Candle, error)
	OptionQuote(ctx context.Context, contract string) (Quote, error)
	IVRank(ctx context.Context, underlying string) (float64, error)
}

// Agent supplies a conviction score for a position or signal. The engine
// treats this purely as one input; an agent opinion never bypasses the gate
// or the risk evaluators.
type Agent interface {
	Conviction(ctx context.Context, symbol string) (int, error)
}

// RegimeSource reports the prevailing broad-market trend. The upstream system
// derived this from a scaled volatility proxy; here it is pluggable so the
// approximation can be swapped out.
type RegimeSource interface {
	MarketTrend(ctx context.Context) (market.Trend, error)
}

// OrderStatus is the lifecycle state of a placed order.
type OrderStatus string

const (
	StatusFilled      OrderStatus = "filled"
	StatusPending     OrderStatus = "pending"
	StatusCancelled   OrderStatus = "cancelled"
	StatusRejected    OrderStatus = "rejected"
	StatusUnconfirmed OrderStatus = "unconfirmed"
)

// OrderType distinguishes resting limit orders from market orders. The safety
// gate rejects market entries outright.
type OrderType string

const (
	Limit  OrderType = "limit"
	Market OrderType = "market"
)

// LimitOrderRequest describes an entry order.
type LimitOrderRequest struct {
	Symbol     string
	Qty        float64
	LimitPrice float64
	Type       OrderType
}

// OrderResult reports the outcome of an order placement.
type OrderResult struct {
	OrderID   string
	Status    OrderStatus
	FillPrice float64
	FilledAt  time.Time
}

// CloseResult reports the outcome of closing a position, including the
// realized P/L the gate needs for circuit-breaker accounting.
type CloseResult struct {
	OrderID     string
	Status      OrderStatus
	FillPrice   float64
	Qty         float64
	RealizedPnL float64
	PnLPct      float64
}

// Quote is a live bid/ask snapshot for an option contract.
type Quote struct {
	Bid float64
	Ask float64
}

// SpreadPct returns the bid-ask spread as a fraction of the mid price.
func (q Quote) SpreadPct() float64 {
	mid := (q.Bid + q.Ask) / 2
	if mid <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / mid
}
