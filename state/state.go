// Package state holds the authoritative execution counters and the circuit
// breaker. It is the single source of truth for how much trading has already
// happened today and whether trading is currently paused. Only the safety
// gate mutates the trade counters.
package state

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/optryx/riskgate/market"
)

// State tracks daily execution counters and circuit-breaker status. It is
// created at process start, loaded from a persisted snapshot when one exists,
// and never deleted, only reset.
type State struct {
	mu  sync.Mutex
	log *zap.Logger

	// Breaker trip conditions.
	consecutiveLossLimit int
	dailyLossLimit       float64
	breakerDuration      time.Duration

	store *Store           // nil disables persistence
	now   func() time.Time // injectable clock

	executionsToday   int
	lastExecutionDate time.Time // zero means no execution recorded yet
	dailyPnL          float64
	consecutiveLosses int
	positionsCount    int
	autoExitsToday    int

	breakerOpen  bool
	breakerUntil time.Time
}

// Snapshot is the reporting view of the execution state.
type Snapshot struct {
	ExecutionsToday     int     `json:"executions_today"`
	ExecutionsRemaining int     `json:"executions_remaining"`
	PositionsCount      int     `json:"positions_count"`
	DailyPnL            float64 `json:"daily_pnl"`
	ConsecutiveLosses   int     `json:"consecutive_losses"`
	CircuitBreakerOpen  bool    `json:"circuit_breaker_open"`
	CircuitBreakerUntil string  `json:"circuit_breaker_until,omitempty"`
	AutoExitsToday      int     `json:"auto_exits_today"`
}

// Option configures a State.
type Option func(*State)

// WithStore enables best-effort persistence after every mutation.
func WithStore(s *Store) Option { return func(st *State) { st.store = s } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(st *State) { st.now = now } }

// New builds a State with the given breaker trip conditions. With a store
// attached, the persisted snapshot is restored before first use.
func New(log *zap.Logger, consecutiveLossLimit int, dailyLossLimit float64, breakerDuration time.Duration, opts ...Option) *State {
	s := &State{
		log:                  log,
		consecutiveLossLimit: consecutiveLossLimit,
		dailyLossLimit:       dailyLossLimit,
		breakerDuration:      breakerDuration,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store != nil {
		if snap, err := s.store.Load(); err != nil {
			// Unparseable or missing snapshot: start fresh for today rather
			// than crash. Downstream hard limits still bound the damage.
			s.log.Warn("execution state snapshot unusable, starting fresh", zap.Error(err))
		} else {
			s.restore(snap)
		}
	}
	return s
}

func (s *State) restore(snap persistedState) {
	s.executionsToday = snap.ExecutionsToday
	s.dailyPnL = snap.DailyPnL
	s.consecutiveLosses = snap.ConsecutiveLosses
	s.positionsCount = snap.PositionsCount
	s.autoExitsToday = snap.AutoExitsToday
	s.breakerOpen = snap.BreakerOpen
	if snap.LastExecutionDate != "" {
		if t, err := time.Parse(time.RFC3339, snap.LastExecutionDate); err == nil {
			s.lastExecutionDate = t
		}
	}
	if snap.BreakerUntil != "" {
		if t, err := time.Parse(time.RFC3339, snap.BreakerUntil); err == nil {
			s.breakerUntil = t
		}
	}
}

// ResetDaily zeroes executionsToday and dailyPnL exactly once when the
// exchange-local calendar date has advanced past lastExecutionDate. It is
// idempotent and must be called before any read of the daily fields.
func (s *State) ResetDaily() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()
}

func (s *State) resetDailyLocked() {
	now := s.now()
	if !s.lastExecutionDate.IsZero() && market.SameTradingDay(s.lastExecutionDate, now) {
		return
	}
	// A zero date (fresh state, or a close-only process that never records
	// an entry) is stale by definition and anchors to today's date here, so
	// the daily fields roll over even when RecordExecution never runs.
	s.executionsToday = 0
	s.dailyPnL = 0
	s.autoExitsToday = 0
	s.lastExecutionDate = market.TradingDate(now)
	s.log.Info("daily execution counters reset",
		zap.String("trading_date", market.TradingDate(now).Format("2006-01-02")))
	s.persistLocked()
}

// RecordExecution counts one consumed execution slot for today.
func (s *State) RecordExecution() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()
	s.executionsToday++
	s.lastExecutionDate = market.TradingDate(s.now())
	s.persistLocked()
}

// RecordLoss applies a realized loss and increments the consecutive-loss
// streak, opening the circuit breaker when a trip condition is met.
func (s *State) RecordLoss(amount float64) {
	if amount < 0 {
		amount = -amount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()
	s.dailyPnL -= amount
	s.consecutiveLosses++
	if s.consecutiveLosses >= s.consecutiveLossLimit || s.dailyPnL <= -s.dailyLossLimit {
		s.openBreakerLocked(s.breakerDuration)
	}
	s.persistLocked()
}

// RecordWin applies a realized gain and resets the consecutive-loss streak.
func (s *State) RecordWin(amount float64) {
	if amount < 0 {
		amount = -amount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()
	s.dailyPnL += amount
	s.consecutiveLosses = 0
	s.persistLocked()
}

// OpenCircuitBreaker pauses trading for the given duration.
func (s *State) OpenCircuitBreaker(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openBreakerLocked(d)
	s.persistLocked()
}

func (s *State) openBreakerLocked(d time.Duration) {
	s.breakerOpen = true
	s.breakerUntil = s.now().Add(d)
	s.log.Warn("circuit breaker opened",
		zap.Time("until", s.breakerUntil),
		zap.Int("consecutive_losses", s.consecutiveLosses),
		zap.Float64("daily_pnl", s.dailyPnL))
}

// CheckCircuitBreaker reports whether trading is allowed. An expired breaker
// is closed by exactly the call that observes the expiry.
func (s *State) CheckCircuitBreaker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.breakerOpen {
		return true
	}
	if !s.now().Before(s.breakerUntil) {
		s.breakerOpen = false
		s.breakerUntil = time.Time{}
		s.log.Info("circuit breaker closed, trading resumed")
		s.persistLocked()
		return true
	}
	return false
}

// BreakerUntil returns the resume timestamp while the breaker is open.
func (s *State) BreakerUntil() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.breakerUntil, s.breakerOpen
}

// ExecutionsToday returns today's consumed execution count after applying the
// daily reset.
func (s *State) ExecutionsToday() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()
	return s.executionsToday
}

// PositionsCount returns the tracked open-position count.
func (s *State) PositionsCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionsCount
}

// SetPositionsCount overwrites the position count from a fresh broker query.
func (s *State) SetPositionsCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.positionsCount = n
	s.persistLocked()
}

// AddPosition increments the open-position count.
func (s *State) AddPosition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positionsCount++
	s.persistLocked()
}

// RemovePosition decrements the open-position count, floored at zero.
func (s *State) RemovePosition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.positionsCount > 0 {
		s.positionsCount--
	}
	s.persistLocked()
}

// RecordAutoExit counts one monitor-driven auto close for today and returns
// the new total.
func (s *State) RecordAutoExit() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()
	s.autoExitsToday++
	s.persistLocked()
	return s.autoExitsToday
}

// AutoExitsToday returns today's auto-close count.
func (s *State) AutoExitsToday() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()
	return s.autoExitsToday
}

// Snapshot returns the reporting view. maxExecutions caps the remaining count.
func (s *State) Snapshot(maxExecutions int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetDailyLocked()

	remaining := maxExecutions - s.executionsToday
	if remaining < 0 {
		remaining = 0
	}
	snap := Snapshot{
		ExecutionsToday:     s.executionsToday,
		ExecutionsRemaining: remaining,
		PositionsCount:      s.positionsCount,
		DailyPnL:            s.dailyPnL,
		ConsecutiveLosses:   s.consecutiveLosses,
		CircuitBreakerOpen:  s.breakerOpen,
		AutoExitsToday:      s.autoExitsToday,
	}
	if s.breakerOpen {
		snap.CircuitBreakerUntil = s.breakerUntil.Format(time.RFC3339)
	}
	return snap
}

// persistLocked writes the snapshot best-effort. A failed write is logged and
// never propagated; the breaker is re-derived from the next loss/win event.
func (s *State) persistLocked() {
	if s.store == nil {
		return
	}
	snap := persistedState{
		ExecutionsToday:   s.executionsToday,
		DailyPnL:          s.dailyPnL,
		ConsecutiveLosses: s.consecutiveLosses,
		PositionsCount:    s.positionsCount,
		AutoExitsToday:    s.autoExitsToday,
		BreakerOpen:       s.breakerOpen,
	}
	if !s.lastExecutionDate.IsZero() {
		snap.LastExecutionDate = s.lastExecutionDate.Format(time.RFC3339)
	}
	if !s.breakerUntil.IsZero() {
		snap.BreakerUntil = s.breakerUntil.Format(time.RFC3339)
	}
	if err := s.store.Save(snap); err != nil {
		s.log.Error("persist execution state", zap.Error(err))
	}
}
