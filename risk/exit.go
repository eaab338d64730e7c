package risk

import (
	"fmt"
	"time"

	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/market"
)

// ExitInput bundles the per-position inputs to an exit evaluation.
type ExitInput struct {
	Position          market.Position
	CurrentPnLPct     float64 // e.g. 0.25 for +25%
	CurrentConviction int
	Thesis            Thesis
	MarketTrend       market.Trend
	Portfolio         Portfolio
	Now               time.Time
}

// EvaluateExit decides whether an open position should be closed. Hard
// profit/loss triggers short-circuit; every other rule accumulates reasons,
// and an invalidated thesis is never silently held.
func EvaluateExit(in ExitInput, cfg config.ExitConfig) ExitVerdict {
	v := ExitVerdict{ThesisValid: true, ConvictionCurrent: in.CurrentConviction, Urgency: Low}

	dte := in.Position.DTE(in.Now)
	target := profitTarget(cfg, dte)

	// Hard triggers return immediately.
	if in.CurrentPnLPct >= target {
		v.ShouldExit = true
		v.Urgency = High
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"profit target reached: %+.0f%% >= +%.0f%%", in.CurrentPnLPct*100, target*100))
		return v
	}
	if in.CurrentPnLPct <= -cfg.StopLossPct {
		v.ShouldExit = true
		v.Urgency = CriticalUrgency
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"stop loss triggered: %+.0f%% <= -%.0f%%", in.CurrentPnLPct*100, cfg.StopLossPct*100))
		return v
	}

	// Thesis validation.
	if cfg.ExitOnThesisInvalidation {
		alignedAtEntry := market.Aligned(in.Thesis.OriginalTrend, in.Position.OptionType)
		alignedNow := market.Aligned(in.MarketTrend, in.Position.OptionType)

		if alignedAtEntry && !alignedNow {
			v.ThesisValid = false
			v.Urgency = maxUrgency(v.Urgency, High)
			v.Reasons = append(v.Reasons, fmt.Sprintf(
				"thesis invalidated: trend was %s, now %s", in.Thesis.OriginalTrend, in.MarketTrend))
		}

		if !in.Thesis.CatalystDate.IsZero() && in.Now.After(in.Thesis.CatalystDate) {
			v.Reasons = append(v.Reasons, fmt.Sprintf(
				"catalyst passed: %s on %s", in.Thesis.Catalyst, in.Thesis.CatalystDate.Format("2006-01-02")))
			if in.CurrentPnLPct <= 0 {
				v.ThesisValid = false
				v.Urgency = maxUrgency(v.Urgency, Medium)
			}
		}
	}

	// Conviction decay.
	if in.CurrentConviction < cfg.ConvictionExitThreshold {
		v.ShouldExit = true
		v.Urgency = maxUrgency(v.Urgency, Medium)
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"conviction dropped: %d%% < %d%% threshold", in.CurrentConviction, cfg.ConvictionExitThreshold))
	} else if in.CurrentConviction < cfg.ConvictionHoldThreshold {
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"conviction weakening: %d%% (hold threshold: %d%%)", in.CurrentConviction, cfg.ConvictionHoldThreshold))
	}

	// Gamma/expiration risk: theta and gamma acceleration near expiry
	// outweigh the thesis unless the position is already well in profit.
	if cfg.ExitOnGammaRisk && dte <= cfg.GammaRiskDTEThreshold && in.CurrentPnLPct < 0.20 {
		v.ShouldExit = true
		v.Urgency = maxUrgency(v.Urgency, High)
		v.Reasons = append(v.Reasons, fmt.Sprintf(
			"gamma risk: DTE=%d with only %+.0f%% profit", dte, in.CurrentPnLPct*100))
	}

	// Concentration breach flags but does not force an exit by itself.
	if cfg.ExitOnConcentrationBreach && in.Portfolio.Equity > 0 {
		underlying := in.Position.Underlying()
		exposurePct := in.Portfolio.UnderlyingExposure[underlying] / in.Portfolio.Equity
		if exposurePct > in.Portfolio.concentrationCap()*1.1 {
			v.Urgency = maxUrgency(v.Urgency, Medium)
			v.Reasons = append(v.Reasons, fmt.Sprintf(
				"concentration breach: %s at %.0f%% of portfolio", underlying, exposurePct*100))
		}
	}

	// An invalidated thesis always forces an exit at no less than medium
	// urgency.
	if !v.ThesisValid && !v.ShouldExit {
		v.ShouldExit = true
		v.Urgency = maxUrgency(v.Urgency, Medium)
		v.Reasons = append(v.Reasons, "thesis no longer valid, exiting")
	}

	return v
}

// profitTarget picks the DTE-tiered target when configured, else the base.
func profitTarget(cfg config.ExitConfig, dte int) float64 {
	target := cfg.ProfitTargetPct
	if len(cfg.ProfitTargetsByDTE) == 0 {
		return target
	}
	bestMin := -1
	for minDTE, t := range cfg.ProfitTargetsByDTE {
		if dte >= minDTE && minDTE > bestMin {
			bestMin = minDTE
			target = t
		}
	}
	return target
}

func maxUrgency(a, b Urgency) Urgency {
	if a > b {
		return a
	}
	return b
}

// concentrationCap returns the per-underlying share of equity used for the
// breach check. Portfolio carries no config, so derive it from the same
// fraction the score was built against when available.
func (p Portfolio) concentrationCap() float64 {
	// The breach rule fires at 110% of the configured cap; Portfolio stores
	// exposures, the cap itself lives in config. Default to 25% when the
	// caller built the Portfolio by hand.
	if p.maxSingleUnderlyingPct > 0 {
		return p.maxSingleUnderlyingPct
	}
	return 0.25
}
