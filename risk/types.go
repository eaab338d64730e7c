// Package risk scores portfolio-level risk from position Greeks and
// concentration, and evaluates proposed entries and exits against it. This is
// the soft, risk-quality layer on top of the gate's hard limits; it is
// independent of any agent recommendation, though the agent's conviction
// score is one input.
package risk

import (
	"time"

	"github.com/optryx/riskgate/market"
)

// Level buckets the aggregate risk score.
type Level string

const (
	Healthy  Level = "healthy"
	Cautious Level = "cautious"
	Elevated Level = "elevated"
	Critical Level = "critical"
)

// Urgency ranks how quickly an exit should happen.
type Urgency int

const (
	Low Urgency = iota
	Medium
	High
	CriticalUrgency
)

func (u Urgency) String() string {
	switch u {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case CriticalUrgency:
		return "critical"
	}
	return "unknown"
}

// Portfolio is the current portfolio risk state. It is recomputed fresh on
// every check and replaced, never mutated in place.
type Portfolio struct {
	NetDelta   float64
	TotalGamma float64
	DailyTheta float64
	TotalVega  float64

	SectorExposure     map[string]float64
	UnderlyingExposure map[string]float64

	Equity       float64
	OptionsValue float64

	RiskScore       int // 0-100
	RiskCapacityPct float64
	RiskLevel       Level
	CanAddPositions bool

	// Carried from config at computation time so the exit evaluator can
	// apply the same per-underlying cap the score was built against.
	maxSingleUnderlyingPct float64
}

// Greeks is the aggregated Greeks input from the positions source.
type Greeks struct {
	NetDelta   float64
	TotalGamma float64
	DailyTheta float64
	TotalVega  float64
}

// Signal is a candidate entry under evaluation.
type Signal struct {
	Symbol     string // underlying
	OptionType market.OptionType
	Premium    float64 // per contract, cents
	DTE        int
	IVRank     float64 // negative when unknown
	Conviction int     // 0-100
	Sector     string
}

// EntryVerdict is the outcome of an entry evaluation.
type EntryVerdict struct {
	Allowed            bool
	Reasons            []string
	RiskScoreImpact    int
	ConvictionRequired int
	Warnings           []string
}

// ExitVerdict is the outcome of an exit evaluation.
type ExitVerdict struct {
	ShouldExit        bool
	Urgency           Urgency
	Reasons           []string
	ThesisValid       bool
	ConvictionCurrent int
}

// Thesis records the rationale a position was entered under. Created at
// entry, read-only afterwards except for conviction refresh, destroyed when
// the position closes.
type Thesis struct {
	OriginalTrend      market.Trend `json:"original_trend"`
	OriginalConviction int          `json:"original_conviction"`
	EntryPrice         float64      `json:"entry_price"`
	EntryDate          time.Time    `json:"entry_date"`
	Catalyst           string       `json:"catalyst,omitempty"`
	CatalystDate       time.Time    `json:"catalyst_date,omitempty"`
}
