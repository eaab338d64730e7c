// Package sim is an in-memory implementation of the broker collaborator
// interfaces, used by tests and the demo run mode. All state is guarded by a
// single mutex; behavior knobs (fill status, forced errors) are plain fields
// set before use.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/market"
)

// Sim implements broker.Broker, broker.MarketData, broker.Agent and
// broker.RegimeSource against in-memory fixtures.
type Sim struct {
	mu sync.Mutex

	equity      float64
	positions   map[string]market.Position
	bars        map[string][]market.Candle
	quotes      map[string]broker.Quote
	ivRanks     map[string]float64
	convictions map[string]int
	trend       market.Trend

	// CloseStatus is the status reported by ClosePosition. Defaults to
	// filled; set to pending/unconfirmed to exercise the poll path.
	CloseStatus broker.OrderStatus
	// FailCloses makes the next N ClosePosition calls error.
	FailCloses int

	orderSeq int
	closed   []string
}

// New returns an empty sim with the given account equity.
func New(equity float64) *Sim {
	return &Sim{
		equity:      equity,
		positions:   make(map[string]market.Position),
		bars:        make(map[string][]market.Candle),
		quotes:      make(map[string]broker.Quote),
		ivRanks:     make(map[string]float64),
		convictions: make(map[string]int),
		trend:       market.Sideways,
		CloseStatus: broker.StatusFilled,
	}
}

// AddPosition registers an open position.
func (s *Sim) AddPosition(p market.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[p.Symbol] = p
}

// SetBars installs the daily bar history for a symbol.
func (s *Sim) SetBars(symbol string, bars []market.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = bars
}

// SetQuote installs a live option quote.
func (s *Sim) SetQuote(contract string, q broker.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[contract] = q
}

// SetIVRank installs the implied-volatility rank for an underlying.
func (s *Sim) SetIVRank(underlying string, rank float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ivRanks[underlying] = rank
}

// SetConviction installs the agent conviction for a symbol.
func (s *Sim) SetConviction(symbol string, c int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convictions[symbol] = c
}

// SetTrend installs the broad-market trend.
func (s *Sim) SetTrend(t market.Trend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trend = t
}

// Closed returns the symbols closed so far, in order.
func (s *Sim) Closed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.closed))
	copy(out, s.closed)
	return out
}

func (s *Sim) GetOpenPositions(ctx context.Context) ([]market.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s *Sim) GetAccountEquity(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.equity, nil
}

func (s *Sim) PlaceLimitOrder(ctx context.Context, req broker.LimitOrderRequest) (broker.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSeq++
	s.positions[req.Symbol] = market.Position{
		Symbol:       req.Symbol,
		Qty:          req.Qty,
		EntryPrice:   req.LimitPrice,
		CurrentPrice: req.LimitPrice,
	}
	return broker.OrderResult{
		OrderID:   fmt.Sprintf("sim-%d", s.orderSeq),
		Status:    broker.StatusFilled,
		FillPrice: req.LimitPrice,
	}, nil
}

func (s *Sim) ClosePosition(ctx context.Context, symbol string, qty float64) (broker.CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCloses > 0 {
		s.FailCloses--
		return broker.CloseResult{}, fmt.Errorf("sim: close %s unavailable", symbol)
	}
	p, ok := s.positions[symbol]
	if !ok {
		return broker.CloseResult{}, fmt.Errorf("sim: no open position %s", symbol)
	}

	s.orderSeq++
	res := broker.CloseResult{
		OrderID:     fmt.Sprintf("sim-%d", s.orderSeq),
		Status:      s.CloseStatus,
		FillPrice:   p.CurrentPrice,
		Qty:         qty,
		RealizedPnL: (p.CurrentPrice - p.EntryPrice) * p.Qty,
		PnLPct:      p.PnLPct(),
	}
	// Pending closes still remove the position, so position-list polling
	// observes the fill.
	delete(s.positions, symbol)
	s.closed = append(s.closed, symbol)
	return res, nil
}

func (s *Sim) CancelOpenOrders(ctx context.Context, symbol string) error { return nil }

func (s *Sim) DailyBars(ctx context.Context, symbol string, days int) ([]market.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars, ok := s.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("sim: no bars for %s", symbol)
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	out := make([]market.Candle, len(bars))
	copy(out, bars)
	return out, nil
}

func (s *Sim) OptionQuote(ctx context.Context, contract string) (broker.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[contract]
	if !ok {
		return broker.Quote{}, fmt.Errorf("sim: no quote for %s", contract)
	}
	return q, nil
}

func (s *Sim) IVRank(ctx context.Context, underlying string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rank, ok := s.ivRanks[underlying]
	if !ok {
		return 0, fmt.Errorf("sim: no IV rank for %s", underlying)
	}
	return rank, nil
}

func (s *Sim) Conviction(ctx context.Context, symbol string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convictions[symbol]
	if !ok {
		return 0, fmt.Errorf("sim: no conviction for %s", symbol)
	}
	return c, nil
}

func (s *Sim) MarketTrend(ctx context.Context) (market.Trend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trend, nil
}
