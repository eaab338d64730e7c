package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optryx/riskgate/broker"
	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/gate"
	"github.com/optryx/riskgate/journal"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/metrics"
	"github.com/optryx/riskgate/notify"
	"github.com/optryx/riskgate/pkg/id"
	"github.com/optryx/riskgate/state"
)

// Status is a position's place in the reversal state machine. Transitions
// only move forward; a closed position's entry is discarded.
type Status string

const (
	Healthy     Status = "HEALTHY"
	Alerted     Status = "ALERT"
	AutoClosing Status = "AUTO_CLOSING"
	Closed      Status = "CLOSED"
)

// Monitor drives the periodic reversal pass over open positions.
type Monitor struct {
	log    *zap.Logger
	cfg    config.MonitorConfig
	gate   *gate.Gate
	broker broker.Broker
	data   broker.MarketData
	jnl    journal.Journal
	notify notify.Notifier
	st     *state.State
	now    func() time.Time

	// entrySignals resolves the signals that recommended a position, for
	// poor-signal journaling. Optional.
	entrySignals func(symbol string) []string

	// theses, when set, has its record for a symbol removed once that
	// position is auto-closed.
	theses ThesisDeleter

	status    map[string]Status
	lastAlert map[string]time.Time
}

// ThesisDeleter removes the recorded thesis for a position. The store keeps
// one thesis per open position, so a closed position's record is deleted.
type ThesisDeleter interface {
	Delete(symbol string) error
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// WithEntrySignals wires a lookup from symbol to the entry signals recorded
// when the position was opened.
func WithEntrySignals(fn func(symbol string) []string) Option {
	return func(m *Monitor) { m.entrySignals = fn }
}

// WithThesisStore wires the store whose thesis records are dropped when the
// monitor closes the corresponding position.
func WithThesisStore(d ThesisDeleter) Option {
	return func(m *Monitor) { m.theses = d }
}

// New builds a Monitor. The gate is the only path by which the monitor may
// close a position.
func New(log *zap.Logger, cfg config.MonitorConfig, g *gate.Gate, bk broker.Broker,
	md broker.MarketData, jnl journal.Journal, n notify.Notifier, st *state.State, opts ...Option) *Monitor {
	m := &Monitor{
		log:       log,
		cfg:       cfg,
		gate:      g,
		broker:    bk,
		data:      md,
		jnl:       jnl,
		notify:    n,
		st:        st,
		now:       time.Now,
		status:    make(map[string]Status),
		lastAlert: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StatusOf reports the tracked state for a symbol, Healthy when untracked.
func (m *Monitor) StatusOf(symbol string) Status {
	if s, ok := m.status[symbol]; ok {
		return s
	}
	return Healthy
}

// RunPass executes one monitoring cycle over every open position. Outside
// market hours the pass is skipped unless forced. Overlapping invocations
// skip via the scan lock rather than queue.
func (m *Monitor) RunPass(ctx context.Context, force bool) error {
	now := m.now()
	if !force && !market.MarketHours(now) {
		m.log.Debug("outside market hours, skipping pass")
		return nil
	}

	lock, err := acquireScanLock(m.cfg.LockPath)
	if err != nil {
		m.log.Info("scan already in progress, skipping", zap.Error(err))
		return nil
	}
	defer releaseScanLock(lock)

	positions, err := m.broker.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	m.gate.SyncPositions(positions)
	m.prune(positions)

	for _, pos := range positions {
		m.checkPosition(ctx, pos)
	}
	return nil
}

// prune discards tracking for symbols that are no longer open.
func (m *Monitor) prune(positions []market.Position) {
	open := make(map[string]bool, len(positions))
	for _, p := range positions {
		open[p.Symbol] = true
	}
	for sym := range m.status {
		if !open[sym] {
			delete(m.status, sym)
			delete(m.lastAlert, sym)
			metrics.ReversalScore.DeleteLabelValues(sym)
		}
	}
}

func (m *Monitor) checkPosition(ctx context.Context, pos market.Position) {
	now := m.now()
	underlying := pos.Underlying()

	bars, err := m.data.DailyBars(ctx, underlying, m.cfg.BarsLookbackDays)
	if err != nil {
		m.log.Warn("bars fetch failed", zap.String("symbol", pos.Symbol), zap.Error(err))
		return
	}
	if len(bars) < MinBars {
		m.log.Warn("insufficient bar history",
			zap.String("symbol", pos.Symbol),
			zap.Int("bars", len(bars)),
			zap.Int("need", MinBars))
		return
	}
	market.SortCandles(bars)

	res := Score(bars)
	metrics.ReversalScore.WithLabelValues(pos.Symbol).Set(float64(res.Score))

	alertSent := false
	switch {
	case res.Score >= m.cfg.AutoCloseThreshold:
		alertSent = m.handleAutoClose(ctx, pos, res, now)
	case res.Score >= m.cfg.AlertThreshold:
		m.status[pos.Symbol] = Alerted
		alertSent = m.alertOnce(pos, res, now, "warning",
			fmt.Sprintf("REVERSAL ALERT | %s score %d/%d [%s] P/L %+.1f%%",
				pos.Symbol, res.Score, MaxScore, strings.Join(res.Signals, ", "), pos.PnLPct()*100))
	default:
		m.status[pos.Symbol] = Healthy
	}

	if err := m.jnl.RecordPositionCheck(journal.PositionCheck{
		ID:        id.New(),
		CheckTime: now,
		Symbol:    pos.Symbol,
		Score:     res.Score,
		Signals:   res.Signals,
		Details:   res.Details,
		PnLPct:    pos.PnLPct(),
		AlertSent: alertSent,
	}); err != nil {
		m.log.Warn("position check journaling failed", zap.String("symbol", pos.Symbol), zap.Error(err))
	}
}

// handleAutoClose applies the exemptions and, when none hold, closes the
// position through the gate. Returns whether an alert went out.
func (m *Monitor) handleAutoClose(ctx context.Context, pos market.Position, res Result, now time.Time) bool {
	signals := strings.Join(res.Signals, ", ")

	if !m.cfg.AutoCloseEnabled {
		m.status[pos.Symbol] = Alerted
		return m.alertOnce(pos, res, now, "critical",
			fmt.Sprintf("REVERSAL CRITICAL | %s score %d/%d [%s] - auto-close disabled, manual review needed",
				pos.Symbol, res.Score, MaxScore, signals))
	}
	if held := pos.DaysHeld(now); held < m.cfg.MinHoldDays {
		// Day-one volatility is normal; alert but do not fight it.
		m.status[pos.Symbol] = Alerted
		return m.alertOnce(pos, res, now, "critical",
			fmt.Sprintf("REVERSAL CRITICAL | %s score %d/%d [%s] - held %dd < %dd min, auto-close deferred",
				pos.Symbol, res.Score, MaxScore, signals, held, m.cfg.MinHoldDays))
	}
	if n := m.st.AutoExitsToday(); n >= m.cfg.MaxAutoExitsPerDay {
		m.status[pos.Symbol] = Alerted
		return m.alertOnce(pos, res, now, "critical",
			fmt.Sprintf("REVERSAL CRITICAL | %s score %d/%d [%s] - daily auto-exit cap %d reached",
				pos.Symbol, res.Score, MaxScore, signals, m.cfg.MaxAutoExitsPerDay))
	}

	m.status[pos.Symbol] = AutoClosing
	m.autoClose(ctx, pos, res)
	return true
}

// autoClose closes one position through the gate. Another pass or operator
// may have closed it already, so the broker list is re-checked first.
func (m *Monitor) autoClose(ctx context.Context, pos market.Position, res Result) {
	fresh, err := m.broker.GetOpenPositions(ctx)
	if err != nil {
		m.log.Error("position re-verify failed, not closing", zap.String("symbol", pos.Symbol), zap.Error(err))
		return
	}
	found := false
	for _, p := range fresh {
		if p.Symbol == pos.Symbol {
			found = true
			break
		}
	}
	if !found {
		m.log.Info("position already closed elsewhere", zap.String("symbol", pos.Symbol))
		m.status[pos.Symbol] = Closed
		return
	}

	var spread float64
	if pos.IsOption() {
		if q, err := m.data.OptionQuote(ctx, pos.Symbol); err == nil {
			spread = q.SpreadPct()
		}
	}

	reason := fmt.Sprintf("auto_reversal_score_%d", res.Score)
	params := gate.Params{Symbol: pos.Symbol, Underlying: pos.Underlying(), SpreadPct: spread}

	if v := m.gate.PreCheck(gate.ClosePosition, params); !v.Allowed {
		m.log.Warn("auto-close denied", zap.String("symbol", pos.Symbol), zap.String("reason", v.Reason))
		m.notify.Send(fmt.Sprintf("AUTO-CLOSE BLOCKED | %s: %s", pos.Symbol, v.Reason))
		return
	}

	cr, err := m.closeWithRetry(ctx, pos)
	if err != nil {
		metrics.Alerts.WithLabelValues("critical").Inc()
		m.notify.Send(fmt.Sprintf("UNPROTECTED | %s close failed after %d attempts: %v - manual intervention required",
			pos.Symbol, m.cfg.ProtectiveRetries, err))
		return
	}

	status := cr.Status
	if status == broker.StatusPending || status == broker.StatusUnconfirmed {
		status = m.confirmClose(ctx, pos.Symbol)
	}
	if status != broker.StatusFilled {
		m.log.Warn("close not confirmed within poll window",
			zap.String("symbol", pos.Symbol), zap.String("status", string(status)))
		m.notify.Send(fmt.Sprintf("UNCONFIRMED | %s close order %s status %s, verify manually",
			pos.Symbol, cr.OrderID, status))
		return
	}

	m.gate.PostCheck(gate.ClosePosition, params, gate.Result{
		Status:      broker.StatusFilled,
		FillPrice:   cr.FillPrice,
		RealizedPnL: cr.RealizedPnL,
		PnLPct:      cr.PnLPct,
	})
	m.st.RecordAutoExit()
	m.status[pos.Symbol] = Closed
	metrics.AutoCloses.Inc()
	metrics.Alerts.WithLabelValues("critical").Inc()

	if m.theses != nil {
		if err := m.theses.Delete(pos.Symbol); err != nil {
			m.log.Warn("thesis cleanup failed", zap.String("symbol", pos.Symbol), zap.Error(err))
		}
	}

	m.log.Info("position auto-closed",
		zap.String("symbol", pos.Symbol),
		zap.String("reason", reason),
		zap.Strings("signals", res.Signals),
		zap.Float64("pnl_pct", cr.PnLPct))
	m.notify.Send(fmt.Sprintf("AUTO-CLOSE | %s score %d/%d [%s] P/L %+.1f%%",
		pos.Symbol, res.Score, MaxScore, strings.Join(res.Signals, ", "), cr.PnLPct*100))

	var entrySignals []string
	if m.entrySignals != nil {
		entrySignals = m.entrySignals(pos.Symbol)
	}
	if err := m.jnl.RecordTrade(journal.TradeRecord{
		TradeID:      id.New(),
		Symbol:       pos.Symbol,
		Qty:          pos.Qty,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    cr.FillPrice,
		OpenTime:     pos.EntryTime,
		CloseTime:    m.now(),
		RealizedPL:   cr.RealizedPnL,
		Reason:       reason,
		EntrySignals: entrySignals,
	}); err != nil {
		m.log.Warn("trade journaling failed", zap.String("symbol", pos.Symbol), zap.Error(err))
	}
	if err := m.jnl.RecordPoorSignal(journal.PoorSignal{
		ID:              id.New(),
		Symbol:          pos.Symbol,
		EntrySignals:    entrySignals,
		ReversalScore:   res.Score,
		ReversalSignals: res.Signals,
		PnLPct:          cr.PnLPct,
		Notes:           reason,
		RecordedAt:      m.now(),
	}); err != nil {
		m.log.Warn("poor signal journaling failed", zap.String("symbol", pos.Symbol), zap.Error(err))
	}
}

// closeWithRetry issues the close with bounded retries. An unprotected
// position is worse than a duplicate close order, so this is the one place
// trade-affecting calls are retried automatically.
func (m *Monitor) closeWithRetry(ctx context.Context, pos market.Position) (broker.CloseResult, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.ProtectiveRetries; attempt++ {
		cr, err := m.broker.ClosePosition(ctx, pos.Symbol, pos.Qty)
		if err == nil && cr.Status != broker.StatusRejected {
			return cr, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("close rejected (order %s)", cr.OrderID)
		} else {
			lastErr = err
		}
		m.log.Warn("close attempt failed",
			zap.String("symbol", pos.Symbol),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt < m.cfg.ProtectiveRetries {
			select {
			case <-ctx.Done():
				return broker.CloseResult{}, ctx.Err()
			case <-time.After(m.cfg.ProtectiveBackoff):
			}
		}
	}
	return broker.CloseResult{}, lastErr
}

// confirmClose polls the broker position list until the symbol disappears or
// the poll window elapses. Absence is the fill signal; anything else stays
// unconfirmed and is surfaced rather than retried.
func (m *Monitor) confirmClose(ctx context.Context, symbol string) broker.OrderStatus {
	deadline := m.now().Add(m.cfg.OrderPollWindow)
	for m.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return broker.StatusUnconfirmed
		case <-time.After(m.cfg.ProtectiveBackoff):
		}
		positions, err := m.broker.GetOpenPositions(ctx)
		if err != nil {
			continue
		}
		gone := true
		for _, p := range positions {
			if p.Symbol == symbol {
				gone = false
				break
			}
		}
		if gone {
			return broker.StatusFilled
		}
	}
	return broker.StatusUnconfirmed
}

// alertOnce sends an alert at most once per trading day per symbol.
func (m *Monitor) alertOnce(pos market.Position, res Result, now time.Time, severity, text string) bool {
	if last, ok := m.lastAlert[pos.Symbol]; ok && market.SameTradingDay(last, now) {
		return false
	}
	m.lastAlert[pos.Symbol] = now
	metrics.Alerts.WithLabelValues(severity).Inc()
	m.log.Warn("reversal alert",
		zap.String("symbol", pos.Symbol),
		zap.Int("score", res.Score),
		zap.Strings("signals", res.Signals))
	m.notify.Send(text)
	return true
}
