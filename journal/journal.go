// Package journal persists trade outcomes, per-cycle reversal checks, and
// poor-signal samples for the downstream pattern review loop.
package journal

import "time"

// TradeRecord is a completed round trip.
type TradeRecord struct {
	TradeID      string
	Symbol       string
	Qty          float64
	EntryPrice   float64
	ExitPrice    float64
	OpenTime     time.Time
	CloseTime    time.Time
	RealizedPL   float64
	Reason       string
	EntrySignals []string
}

// PositionCheck is one monitoring cycle's reversal result for a position.
type PositionCheck struct {
	ID        string
	CheckTime time.Time
	Symbol    string
	Score     int
	Signals   []string
	Details   map[string]float64
	PnLPct    float64
	AlertSent bool
}

// PoorSignal is a reversal-triggered close recorded for learning: the entry
// signals that recommended the trade, the reversal signals that killed it,
// and the resulting P/L.
type PoorSignal struct {
	ID              string
	Symbol          string
	EntrySignals    []string
	ReversalScore   int
	ReversalSignals []string
	PnLPct          float64
	Notes           string
	RecordedAt      time.Time
}

// EquitySnapshot is a periodic account equity sample.
type EquitySnapshot struct {
	Time   time.Time
	Equity float64
}

// Journal is the persistence boundary for engine history.
type Journal interface {
	RecordTrade(TradeRecord) error
	RecordPositionCheck(PositionCheck) error
	RecordPoorSignal(PoorSignal) error
	RecordEquity(EquitySnapshot) error
	Close() error
}
