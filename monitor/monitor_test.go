package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/broker/sim"
	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/gate"
	"github.com/optryx/riskgate/journal"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/notify"
	"github.com/optryx/riskgate/risk"
	"github.com/optryx/riskgate/state"
)

// memJournal captures journal writes in memory.
type memJournal struct {
	mu     sync.Mutex
	trades []journal.TradeRecord
	checks []journal.PositionCheck
	poor   []journal.PoorSignal
}

func (m *memJournal) RecordTrade(t journal.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, t)
	return nil
}
func (m *memJournal) RecordPositionCheck(c journal.PositionCheck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks = append(m.checks, c)
	return nil
}
func (m *memJournal) RecordPoorSignal(p journal.PoorSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poor = append(m.poor, p)
	return nil
}
func (m *memJournal) RecordEquity(journal.EquitySnapshot) error { return nil }
func (m *memJournal) Close() error                              { return nil }

// memNotifier captures alerts.
type memNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *memNotifier) Send(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
}

func (n *memNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// Tuesday 15:00 ET, inside market hours.
var marketOpen = time.Date(2026, 3, 3, 20, 0, 0, 0, time.UTC)

// reversalBars builds a history scoring 8: bearish cross, weak close and
// distribution volume on the final red bar.
func reversalBars() []market.Candle {
	bars := steadyBars(30, 100, 1e6)
	for i := 23; i < 30; i++ {
		bars[i].Open = 91
		bars[i].Close = 90.5
		bars[i].High = 92
		bars[i].Low = 90.2
	}
	bars[29].Volume = 2e6 // distribution on the final red bar
	return bars
}

type fixture struct {
	mon *Monitor
	sim *sim.Sim
	jnl *memJournal
	not *memNotifier
	st  *state.State
}

func newFixture(t *testing.T, mcfg config.MonitorConfig, opts ...Option) *fixture {
	t.Helper()
	log := zap.NewNop()
	clock := func() time.Time { return marketOpen }

	st := state.New(log, 3, 1000, time.Hour, state.WithClock(clock))
	g := gate.New(log, config.Default().Safety, st, notify.Nop{}, gate.WithClock(clock))
	s := sim.New(100000)
	jnl := &memJournal{}
	not := &memNotifier{}

	mcfg.LockPath = filepath.Join(t.TempDir(), "monitor.lock")
	mcfg.ProtectiveBackoff = time.Millisecond
	mcfg.OrderPollWindow = 50 * time.Millisecond
	if mcfg.ProtectiveRetries == 0 {
		mcfg.ProtectiveRetries = 3
	}
	if mcfg.BarsLookbackDays == 0 {
		mcfg.BarsLookbackDays = 30
	}

	mon := New(log, mcfg, g, s, s, jnl, not, st, append([]Option{WithClock(clock)}, opts...)...)
	return &fixture{mon: mon, sim: s, jnl: jnl, not: not, st: st}
}

func baseCfg() config.MonitorConfig {
	cfg := config.Default().Monitor
	cfg.AutoCloseThreshold = 5
	cfg.AlertThreshold = 3
	cfg.MinHoldDays = 2
	cfg.MaxAutoExitsPerDay = 5
	return cfg
}

func TestRunPassAutoCloses(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))

	assert.Equal(t, []string{"NVDA"}, f.sim.Closed())
	assert.Equal(t, Closed, f.mon.StatusOf("NVDA"))
	assert.Equal(t, 1, f.st.AutoExitsToday())

	require.Len(t, f.jnl.checks, 1)
	assert.GreaterOrEqual(t, f.jnl.checks[0].Score, 5)
	assert.True(t, f.jnl.checks[0].AlertSent)

	require.Len(t, f.jnl.trades, 1)
	assert.Equal(t, "NVDA", f.jnl.trades[0].Symbol)
	assert.InDelta(t, -95, f.jnl.trades[0].RealizedPL, 0.1)
	assert.Contains(t, f.jnl.trades[0].Reason, "auto_reversal_score_")

	require.Len(t, f.jnl.poor, 1)
	assert.Equal(t, "NVDA", f.jnl.poor[0].Symbol)
	assert.Contains(t, f.jnl.poor[0].Notes, "auto_reversal_score_")
	assert.Contains(t, f.jnl.poor[0].ReversalSignals, "distribution_volume")
	assert.InDelta(t, -0.095, f.jnl.poor[0].PnLPct, 0.001)

	// Realized loss flowed through the gate into daily P/L.
	snap := f.st.Snapshot(3)
	assert.InDelta(t, -95, snap.DailyPnL, 0.1)
	assert.Equal(t, 0, snap.PositionsCount)
}

func TestAutoCloseDropsThesis(t *testing.T) {
	t.Parallel()

	store, err := risk.NewThesisStore(filepath.Join(t.TempDir(), "theses.json"))
	require.NoError(t, err)
	require.NoError(t, store.Put("NVDA", risk.Thesis{
		OriginalTrend:      market.Bullish,
		OriginalConviction: 80,
		EntryPrice:         100,
		EntryDate:          marketOpen.Add(-5 * 24 * time.Hour),
	}))

	f := newFixture(t, baseCfg(), WithThesisStore(store))
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Equal(t, []string{"NVDA"}, f.sim.Closed())

	// The thesis is one-per-open-position; closing the position drops it.
	_, ok := store.Get("NVDA")
	assert.False(t, ok)
}

func TestMinHoldExemption(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-20 * time.Hour), // held < 2 days
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))

	assert.Empty(t, f.sim.Closed())
	assert.Equal(t, Alerted, f.mon.StatusOf("NVDA"))
	assert.Equal(t, 1, f.not.count())

	// Same trading day: the alert is not repeated.
	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Equal(t, 1, f.not.count())
	require.Len(t, f.jnl.checks, 2)
	assert.False(t, f.jnl.checks[1].AlertSent)
}

func TestDailyAutoExitCap(t *testing.T) {
	t.Parallel()
	cfg := baseCfg()
	cfg.MaxAutoExitsPerDay = 1
	f := newFixture(t, cfg)

	f.st.RecordAutoExit() // cap already consumed
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))

	assert.Empty(t, f.sim.Closed())
	assert.Equal(t, 1, f.st.AutoExitsToday())
	assert.Equal(t, 1, f.not.count())
}

func TestAutoCloseDisabled(t *testing.T) {
	t.Parallel()
	cfg := baseCfg()
	cfg.AutoCloseEnabled = false
	f := newFixture(t, cfg)
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Empty(t, f.sim.Closed())
	assert.Equal(t, Alerted, f.mon.StatusOf("NVDA"))
}

func TestAlertThreshold(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	bars := steadyBars(30, 100, 1e6)
	// Bearish cross plus weak close scores 5 with the threshold at 5; use a
	// cross-only shape for a 3.
	for i := 23; i < 30; i++ {
		bars[i].Open = 90.5
		bars[i].Close = 91.5 // green, mid-range
		bars[i].High = 92
		bars[i].Low = 90
	}
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 91.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", bars)

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Empty(t, f.sim.Closed())
	assert.Equal(t, Alerted, f.mon.StatusOf("NVDA"))
	assert.Equal(t, 1, f.not.count())
	require.Len(t, f.jnl.checks, 1)
	assert.Equal(t, 3, f.jnl.checks[0].Score)
}

func TestSkipOutsideMarketHours(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	saturday := time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC)
	f.mon.now = func() time.Time { return saturday }
	f.sim.AddPosition(market.Position{Symbol: "NVDA", Qty: 10, EntryPrice: 100, CurrentPrice: 90})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Empty(t, f.jnl.checks)

	// Forced passes run regardless.
	require.NoError(t, f.mon.RunPass(context.Background(), true))
	assert.Len(t, f.jnl.checks, 1)
}

func TestScanLockSkips(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	f.sim.AddPosition(market.Position{Symbol: "NVDA", Qty: 10, EntryPrice: 100, CurrentPrice: 90})
	f.sim.SetBars("NVDA", reversalBars())

	lock, err := os.OpenFile(f.mon.cfg.LockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	defer os.Remove(lock.Name())

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Empty(t, f.jnl.checks)
}

func TestCloseRetries(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	f.sim.FailCloses = 2 // two failures, third attempt succeeds
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Equal(t, []string{"NVDA"}, f.sim.Closed())
}

func TestUnprotectedAfterRetryExhaustion(t *testing.T) {
	t.Parallel()
	cfg := baseCfg()
	cfg.ProtectiveRetries = 2
	f := newFixture(t, cfg)
	f.sim.FailCloses = 5
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Empty(t, f.sim.Closed())
	assert.Equal(t, 0, f.st.AutoExitsToday())

	found := false
	for _, msg := range f.not.sent {
		if strings.HasPrefix(msg, "UNPROTECTED") {
			found = true
		}
	}
	assert.True(t, found, "expected an UNPROTECTED alert")
}

func TestPendingCloseConfirmedByPolling(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	f.sim.CloseStatus = broker.StatusPending
	f.sim.AddPosition(market.Position{
		Symbol:       "NVDA",
		Qty:          10,
		EntryPrice:   100,
		CurrentPrice: 90.5,
		EntryTime:    marketOpen.Add(-5 * 24 * time.Hour),
	})
	f.sim.SetBars("NVDA", reversalBars())

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	// The symbol vanished from the position list, so the poll confirms the
	// close and the gate's post-check runs.
	assert.Equal(t, Closed, f.mon.StatusOf("NVDA"))
	assert.Equal(t, 1, f.st.AutoExitsToday())
}

func TestInsufficientHistorySkipsPosition(t *testing.T) {
	t.Parallel()
	f := newFixture(t, baseCfg())
	f.sim.AddPosition(market.Position{Symbol: "NVDA", Qty: 10, EntryPrice: 100, CurrentPrice: 90})
	f.sim.SetBars("NVDA", steadyBars(10, 100, 1e6))

	require.NoError(t, f.mon.RunPass(context.Background(), false))
	assert.Empty(t, f.jnl.checks)
	assert.Empty(t, f.sim.Closed())
}
