package risk

import (
	"fmt"

	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/market"
)

// EvaluateEntry decides whether a candidate position should be entered on
// risk grounds. It layers on top of the safety gate; both must pass before
// any order is placed.
func EvaluateEntry(sig Signal, p Portfolio, trend market.Trend, cfg config.RiskConfig) EntryVerdict {
	v := EntryVerdict{Allowed: true}

	// Risk capacity, with an exceptional-conviction override.
	if p.RiskCapacityPct < cfg.MinRiskCapacityPct {
		if sig.Conviction >= cfg.ExceptionalConvictionThreshold {
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"low risk capacity (%.0f%%) but exceptional conviction (%d%%), allowing",
				p.RiskCapacityPct*100, sig.Conviction))
		} else {
			v.Allowed = false
			v.Reasons = append(v.Reasons, fmt.Sprintf(
				"insufficient risk capacity: %.0f%% < %.0f%% required",
				p.RiskCapacityPct*100, cfg.MinRiskCapacityPct*100))
		}
	}

	// Conviction floor, raised when the portfolio is already cautious.
	minConviction := cfg.MinConvictionForEntry
	if p.RiskLevel == Cautious {
		minConviction = min(95, minConviction+10)
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"risk level cautious, conviction requirement raised to %d%%", minConviction))
	}
	if sig.Conviction < minConviction {
		v.Allowed = false
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"conviction too low: %d%% < %d%% required", sig.Conviction, minConviction))
	}
	v.ConvictionRequired = minConviction

	// Concentration: deny once existing exposure reaches 80% of the cap.
	if current := p.UnderlyingExposure[sig.Symbol]; current > 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"already exposed to %s: $%.0f", sig.Symbol, current))
		if current >= p.Equity*cfg.MaxSingleUnderlyingPct*0.8 {
			v.Allowed = false
			v.Reasons = append(v.Reasons, fmt.Sprintf(
				"would exceed concentration limit for %s", sig.Symbol))
		}
	}

	// Trend alignment: counter-trend entries need exceptional conviction.
	if cfg.RequireTrendAlignment && trend != market.Sideways && !market.Aligned(trend, sig.OptionType) {
		if sig.Conviction >= cfg.ExceptionalConvictionThreshold {
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"counter-trend (%s in %s market) but exceptional conviction, allowing",
				sig.OptionType, trend))
		} else {
			v.Allowed = false
			v.Reasons = append(v.Reasons, fmt.Sprintf(
				"counter-trend: %s in %s market", sig.OptionType, trend))
		}
	}

	if sig.DTE < cfg.MinDTEForEntry {
		v.Allowed = false
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"DTE too short: %d < %d minimum", sig.DTE, cfg.MinDTEForEntry))
	}

	if sig.IVRank >= 0 && sig.IVRank > cfg.MaxIVRankForEntry {
		v.Allowed = false
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"IV rank too high: %.0f%% > %.0f%% (expensive premium)",
			sig.IVRank, cfg.MaxIVRankForEntry))
	}

	if sig.Premium > cfg.MaxPremiumPerContract {
		v.Allowed = false
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"premium too high: $%.2f > $%.2f (liquidity risk)",
			sig.Premium/100, cfg.MaxPremiumPerContract/100))
	}

	v.RiskScoreImpact = EstimateImpact(sig.Premium, sig.DTE, p)
	return v
}
