// Package gate wraps every trade-affecting action in deterministic pre and
// post checks. It is the only writer of the execution state's trade counters,
// which is what makes the daily limits enforceable no matter how many call
// sites attempt to trade.
package gate

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/metrics"
	"github.com/optryx/riskgate/notify"
	"github.com/optryx/riskgate/state"
)

// Action identifies a gated action kind.
type Action string

const (
	PlaceOrder    Action = "place_order"
	ClosePosition Action = "close_position"
	ExecuteRoll   Action = "execute_roll"
)

// tradeAffecting reports whether the action consumes or releases risk.
func tradeAffecting(a Action) bool {
	switch a {
	case PlaceOrder, ClosePosition, ExecuteRoll:
		return true
	}
	return false
}

// Verdict is the outcome of a pre-check. Denials are expected values, not
// errors; the reason names the limit, the current value and the threshold.
type Verdict struct {
	Allowed bool
	Reason  string
}

func deny(label, format string, args ...any) Verdict {
	metrics.Denials.WithLabelValues(label).Inc()
	return Verdict{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Params carries the per-action inputs a pre-check needs. Fields irrelevant
// to the action kind stay zero.
type Params struct {
	Symbol       string
	Underlying   string
	SpreadPct    float64
	EarningsDate time.Time // zero when no earnings are scheduled
	OrderType    broker.OrderType
}

// Result carries the observed outcome handed to the post-check.
type Result struct {
	Status      broker.OrderStatus
	FillPrice   float64
	RealizedPnL float64
	PnLPct      float64
}

// Gate enforces the hard safety limits.
type Gate struct {
	log    *zap.Logger
	cfg    config.SafetyConfig
	st     *state.State
	notify notify.Notifier
	now    func() time.Time

	mu     sync.Mutex
	shadow bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(g *Gate) { g.now = now } }

// New builds a Gate over the authoritative execution state.
func New(log *zap.Logger, cfg config.SafetyConfig, st *state.State, n notify.Notifier, opts ...Option) *Gate {
	g := &Gate{
		log:    log,
		cfg:    cfg,
		st:     st,
		notify: n,
		now:    time.Now,
		shadow: cfg.ShadowMode,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ShadowMode reports whether the gate is blocking all real execution.
func (g *Gate) ShadowMode() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shadow
}

// SetShadowMode flips shadow mode at runtime.
func (g *Gate) SetShadowMode(enabled bool) {
	g.mu.Lock()
	g.shadow = enabled
	g.mu.Unlock()
	g.log.Info("shadow mode toggled", zap.Bool("enabled", enabled))
}

// PreCheck validates an action before it reaches the broker. It never mutates
// trade counters; that happens only in PostCheck against an observed fill.
func (g *Gate) PreCheck(action Action, p Params) Verdict {
	v := g.preCheck(action, p)
	result := "allowed"
	if !v.Allowed {
		result = "denied"
		g.log.Warn("action denied",
			zap.String("action", string(action)),
			zap.String("symbol", p.Symbol),
			zap.String("reason", v.Reason))
	}
	metrics.PreChecks.WithLabelValues(string(action), result).Inc()
	return v
}

func (g *Gate) preCheck(action Action, p Params) Verdict {
	g.st.ResetDaily()

	if g.ShadowMode() && tradeAffecting(action) {
		return deny("shadow_mode", "SHADOW MODE: %s blocked. Would have executed: %s", action, p.Symbol)
	}

	if tradeAffecting(action) {
		if !g.st.CheckCircuitBreaker() {
			metrics.BreakerOpen.Set(1)
			until, _ := g.st.BreakerUntil()
			return deny("circuit_breaker", "circuit breaker open until %s", until.Format(time.RFC3339))
		}
		metrics.BreakerOpen.Set(0)
	}

	switch action {
	case PlaceOrder:
		return g.checkPlaceOrder(p)
	case ClosePosition:
		return g.checkClosePosition(p)
	case ExecuteRoll:
		return g.checkExecuteRoll()
	}

	// Non-trade-affecting actions pass through.
	return Verdict{Allowed: true}
}

func (g *Gate) checkPlaceOrder(p Params) Verdict {
	if n := g.st.ExecutionsToday(); n >= g.cfg.MaxExecutionsPerDay {
		return deny("daily_limit", "daily execution limit reached: %d of %d used", n, g.cfg.MaxExecutionsPerDay)
	}
	if n := g.st.PositionsCount(); n >= g.cfg.MaxPositions {
		return deny("max_positions", "maximum positions reached: %d of %d open", n, g.cfg.MaxPositions)
	}
	if p.SpreadPct > g.cfg.MaxSpreadPct {
		return deny("spread", "spread too wide: %.1f%% > %.1f%% max", p.SpreadPct*100, g.cfg.MaxSpreadPct*100)
	}
	if !p.EarningsDate.IsZero() {
		days := market.DaysBetween(g.now(), p.EarningsDate)
		if days >= 0 && days <= g.cfg.EarningsBlackoutDays {
			return deny("earnings_blackout", "earnings blackout: %d days to earnings (blackout %d)", days, g.cfg.EarningsBlackoutDays)
		}
	}
	if p.OrderType != broker.Limit {
		return deny("market_order", "market orders not allowed for entries (use limit)")
	}
	return Verdict{Allowed: true}
}

func (g *Gate) checkClosePosition(p Params) Verdict {
	// Exits are never hard-blocked. A wide spread is worth knowing about but
	// must not trap us in a position.
	if p.SpreadPct > g.cfg.ExitSpreadWarnPct {
		g.log.Warn("wide spread on exit",
			zap.String("symbol", p.Symbol),
			zap.Float64("spread_pct", p.SpreadPct))
	}
	return Verdict{Allowed: true}
}

func (g *Gate) checkExecuteRoll() Verdict {
	// Rolls consume a daily execution slot.
	if n := g.st.ExecutionsToday(); n >= g.cfg.MaxExecutionsPerDay {
		return deny("daily_limit", "daily execution limit reached: %d of %d used", n, g.cfg.MaxExecutionsPerDay)
	}
	return Verdict{Allowed: true}
}

// PostCheck observes an action's result and updates the execution state.
// Counters move only on confirmed fills, in the order fills are observed.
func (g *Gate) PostCheck(action Action, p Params, r Result) {
	switch action {
	case PlaceOrder, ExecuteRoll:
		if r.Status != broker.StatusFilled {
			return
		}
		g.st.RecordExecution()
		if action == PlaceOrder {
			g.st.AddPosition()
		}
		g.log.Info("entry filled",
			zap.String("symbol", p.Symbol),
			zap.Float64("fill_price", r.FillPrice),
			zap.Int("executions_today", g.st.ExecutionsToday()))
		g.notify.Send(fmt.Sprintf("ENTRY | %s filled at $%.2f (executions today: %d/%d)",
			p.Symbol, r.FillPrice, g.st.ExecutionsToday(), g.cfg.MaxExecutionsPerDay))

	case ClosePosition:
		if r.Status != broker.StatusFilled {
			return
		}
		g.st.RemovePosition()
		if r.RealizedPnL < 0 {
			g.st.RecordLoss(-r.RealizedPnL)
		} else {
			g.st.RecordWin(r.RealizedPnL)
		}
		g.log.Info("position closed",
			zap.String("symbol", p.Symbol),
			zap.Float64("realized_pnl", r.RealizedPnL),
			zap.Float64("pnl_pct", r.PnLPct))
		g.notify.Send(fmt.Sprintf("EXIT | %s P/L $%.2f (%+.1f%%)", p.Symbol, r.RealizedPnL, r.PnLPct*100))
	}
}

// SyncPositions overwrites the tracked position count from a fresh broker
// position list.
func (g *Gate) SyncPositions(positions []market.Position) {
	g.st.SetPositionsCount(len(positions))
}

// Snapshot is the reporting view exposed to callers and the status command.
type Snapshot struct {
	state.Snapshot
	ShadowMode bool `json:"shadow_mode"`
}

// Snapshot returns the current execution state for reporting.
func (g *Gate) Snapshot() Snapshot {
	return Snapshot{
		Snapshot:   g.st.Snapshot(g.cfg.MaxExecutionsPerDay),
		ShadowMode: g.ShadowMode(),
	}
}
