package gate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/notify"
	"github.com/optryx/riskgate/state"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	loc, _ := time.LoadLocation(market.Exchange)
	return &clock{t: time.Date(2026, 3, 10, 11, 0, 0, 0, loc)}
}

func newGate(c *clock) (*Gate, *state.State) {
	cfg := config.Default().Safety
	st := state.New(zap.NewNop(), cfg.ConsecutiveLossLimit, cfg.DailyLossLimit,
		cfg.CircuitBreakerDuration, state.WithClock(c.now))
	return New(zap.NewNop(), cfg, st, notify.Nop{}, WithClock(c.now)), st
}

func entryParams() Params {
	return Params{Symbol: "SPY260410C00600000", Underlying: "SPY", SpreadPct: 0.05, OrderType: broker.Limit}
}

func fill(pnl float64) Result {
	return Result{Status: broker.StatusFilled, FillPrice: 1.50, RealizedPnL: pnl}
}

func TestEntryAllowedThenDailyLimit(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, _ := newGate(c)

	for i := 0; i < 3; i++ {
		v := g.PreCheck(PlaceOrder, entryParams())
		require.True(t, v.Allowed, "entry %d should pass, got: %s", i+1, v.Reason)
		g.PostCheck(PlaceOrder, entryParams(), fill(0))
	}

	v := g.PreCheck(PlaceOrder, entryParams())
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "3")
	assert.Contains(t, v.Reason, "daily execution limit")
}

func TestDailyLimitResetsNextDay(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, st := newGate(c)

	for i := 0; i < 3; i++ {
		g.PostCheck(PlaceOrder, entryParams(), fill(0))
	}
	st.SetPositionsCount(0) // position slots are not what we are testing
	require.False(t, g.PreCheck(PlaceOrder, entryParams()).Allowed)

	c.advance(24 * time.Hour)
	assert.True(t, g.PreCheck(PlaceOrder, entryParams()).Allowed)
}

func TestMaxPositionsDenied(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, st := newGate(c)
	st.SetPositionsCount(4)

	v := g.PreCheck(PlaceOrder, entryParams())
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "maximum positions")
}

func TestMarketOrderAlwaysDenied(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, _ := newGate(c)

	p := entryParams()
	p.OrderType = broker.Market
	v := g.PreCheck(PlaceOrder, p)
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "market orders not allowed")
}

func TestSpreadTooWideDenied(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, _ := newGate(c)

	p := entryParams()
	p.SpreadPct = 0.20
	v := g.PreCheck(PlaceOrder, p)
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "spread too wide")
}

func TestEarningsBlackout(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, _ := newGate(c)

	p := entryParams()
	p.EarningsDate = c.t.AddDate(0, 0, 1)
	v := g.PreCheck(PlaceOrder, p)
	assert.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "earnings blackout")

	// Earnings beyond the blackout window are fine.
	p.EarningsDate = c.t.AddDate(0, 0, 5)
	assert.True(t, g.PreCheck(PlaceOrder, p).Allowed)

	// Earnings already past are fine too.
	p.EarningsDate = c.t.AddDate(0, 0, -1)
	assert.True(t, g.PreCheck(PlaceOrder, p).Allowed)
}

func TestEarningsBlackoutAcrossSpringForward(t *testing.T) {
	t.Parallel()

	// Friday before the 2026-03-08 DST change. Earnings the following Monday
	// sit 3 calendar days out, outside the 2-day blackout, even though only
	// 71 wall-clock hours separate the two midnights.
	loc, _ := time.LoadLocation(market.Exchange)
	c := &clock{t: time.Date(2026, 3, 6, 11, 0, 0, 0, loc)}
	g, _ := newGate(c)

	p := entryParams()
	p.EarningsDate = time.Date(2026, 3, 9, 16, 0, 0, 0, loc)
	assert.True(t, g.PreCheck(PlaceOrder, p).Allowed)
}

func TestExitNeverHardBlocked(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, _ := newGate(c)

	// Absurd spread: still allowed, only warned.
	v := g.PreCheck(ClosePosition, Params{Symbol: "SPY", SpreadPct: 0.90})
	assert.True(t, v.Allowed)
}

func TestCircuitBreakerBlocksEntriesNotChecks(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, _ := newGate(c)

	// Three consecutive losing closes trip the breaker regardless of size.
	for i := 0; i < 2; i++ {
		g.PostCheck(ClosePosition, Params{Symbol: "SPY"}, fill(-100))
	}
	// Prior cumulative daily P/L -200, third losing close of $50.
	g.PostCheck(ClosePosition, Params{Symbol: "SPY"}, fill(-50))

	v := g.PreCheck(PlaceOrder, entryParams())
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reason, "circuit breaker open until")

	// Rolls are blocked too.
	assert.False(t, g.PreCheck(ExecuteRoll, Params{Symbol: "SPY"}).Allowed)

	// After the breaker window elapses, trading resumes.
	c.advance(61 * time.Minute)
	assert.True(t, g.PreCheck(PlaceOrder, entryParams()).Allowed)
}

func TestShadowModeBlocksTradeActions(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, st := newGate(c)
	g.SetShadowMode(true)

	for _, action := range []Action{PlaceOrder, ClosePosition, ExecuteRoll} {
		v := g.PreCheck(action, entryParams())
		assert.False(t, v.Allowed, "%s must be blocked in shadow mode", action)
		assert.True(t, strings.HasPrefix(v.Reason, "SHADOW MODE"), v.Reason)
	}

	// No state mutation happened.
	assert.Equal(t, 0, st.ExecutionsToday())

	g.SetShadowMode(false)
	assert.True(t, g.PreCheck(PlaceOrder, entryParams()).Allowed)
}

func TestPostCheckIgnoresUnfilled(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, st := newGate(c)

	g.PostCheck(PlaceOrder, entryParams(), Result{Status: broker.StatusUnconfirmed})
	g.PostCheck(PlaceOrder, entryParams(), Result{Status: broker.StatusRejected})
	assert.Equal(t, 0, st.ExecutionsToday())
	assert.Equal(t, 0, st.PositionsCount())
}

func TestPostCheckRoutesPnL(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, st := newGate(c)
	st.SetPositionsCount(2)

	g.PostCheck(ClosePosition, Params{Symbol: "SPY"}, fill(250))
	g.PostCheck(ClosePosition, Params{Symbol: "QQQ"}, fill(-100))

	snap := g.Snapshot()
	assert.Equal(t, 0, snap.PositionsCount)
	assert.InDelta(t, 150.0, snap.DailyPnL, 1e-9)
	assert.Equal(t, 1, snap.ConsecutiveLosses)
}

func TestRollConsumesExecutionSlot(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, st := newGate(c)

	g.PostCheck(ExecuteRoll, Params{Symbol: "SPY"}, fill(0))
	assert.Equal(t, 1, st.ExecutionsToday())
	// A roll does not add a position.
	assert.Equal(t, 0, st.PositionsCount())
}

func TestSnapshotReportsRemaining(t *testing.T) {
	t.Parallel()

	c := newClock()
	g, _ := newGate(c)
	g.PostCheck(PlaceOrder, entryParams(), fill(0))

	snap := g.Snapshot()
	assert.Equal(t, 1, snap.ExecutionsToday)
	assert.Equal(t, 2, snap.ExecutionsRemaining)
	assert.False(t, snap.ShadowMode)
}
