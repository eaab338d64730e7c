package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/market"
)

func exitCfg() config.ExitConfig { return config.Default().Exit }

func exitNow() time.Time {
	loc, _ := time.LoadLocation(market.Exchange)
	return time.Date(2026, 3, 10, 12, 0, 0, 0, loc)
}

func callPosition(dte int) market.Position {
	now := exitNow()
	return market.Position{
		Symbol:     "SPY260410C00600000",
		OptionType: market.Call,
		EntryPrice: 4.00,
		Expiration: now.AddDate(0, 0, dte),
		EntryTime:  now.AddDate(0, 0, -5),
	}
}

func baseInput(dte int, pnlPct float64) ExitInput {
	return ExitInput{
		Position:          callPosition(dte),
		CurrentPnLPct:     pnlPct,
		CurrentConviction: 75,
		Thesis: Thesis{
			OriginalTrend:      market.Bullish,
			OriginalConviction: 80,
			EntryPrice:         4.00,
			EntryDate:          exitNow().AddDate(0, 0, -5),
		},
		MarketTrend: market.Bullish,
		Portfolio:   healthyPortfolio(),
		Now:         exitNow(),
	}
}

func TestProfitTargetShortCircuits(t *testing.T) {
	t.Parallel()

	// DTE 30 uses the top tier (50%).
	v := EvaluateExit(baseInput(30, 0.55), exitCfg())
	require.True(t, v.ShouldExit)
	assert.Equal(t, High, v.Urgency)
	assert.Contains(t, v.Reasons[0], "profit target")
	assert.Len(t, v.Reasons, 1) // short-circuit: nothing else evaluated
}

func TestTieredProfitTargetByDTE(t *testing.T) {
	t.Parallel()

	// +35% is under the 50% tier for DTE 30 but over the 30% tier for DTE 5.
	v := EvaluateExit(baseInput(30, 0.35), exitCfg())
	assert.False(t, v.ShouldExit)

	v = EvaluateExit(baseInput(5, 0.35), exitCfg())
	require.True(t, v.ShouldExit)
	assert.Contains(t, v.Reasons[0], "profit target")
}

func TestStopLossIsCritical(t *testing.T) {
	t.Parallel()

	v := EvaluateExit(baseInput(30, -0.55), exitCfg())
	require.True(t, v.ShouldExit)
	assert.Equal(t, CriticalUrgency, v.Urgency)
	assert.Contains(t, v.Reasons[0], "stop loss")
}

func TestThesisInvalidationForcesExit(t *testing.T) {
	t.Parallel()

	in := baseInput(30, 0.05)
	in.MarketTrend = market.Bearish // call was trend-aligned at entry, now is not

	v := EvaluateExit(in, exitCfg())
	require.False(t, v.ThesisValid)
	assert.True(t, v.ShouldExit)
	assert.GreaterOrEqual(t, v.Urgency, Medium)
}

func TestCatalystPassedWithLossInvalidates(t *testing.T) {
	t.Parallel()

	in := baseInput(30, -0.10)
	in.Thesis.Catalyst = "earnings"
	in.Thesis.CatalystDate = exitNow().AddDate(0, 0, -1)

	v := EvaluateExit(in, exitCfg())
	assert.False(t, v.ThesisValid)
	assert.True(t, v.ShouldExit)

	// Same passed catalyst with a profit: noted but thesis holds.
	in = baseInput(30, 0.10)
	in.Thesis.Catalyst = "earnings"
	in.Thesis.CatalystDate = exitNow().AddDate(0, 0, -1)

	v = EvaluateExit(in, exitCfg())
	assert.True(t, v.ThesisValid)
	assert.False(t, v.ShouldExit)
	assert.Contains(t, v.Reasons[0], "catalyst passed")
}

func TestConvictionDecay(t *testing.T) {
	t.Parallel()

	// Below the hard exit floor: forced exit at medium urgency.
	in := baseInput(30, 0.05)
	in.CurrentConviction = 35
	v := EvaluateExit(in, exitCfg())
	require.True(t, v.ShouldExit)
	assert.Equal(t, Medium, v.Urgency)
	assert.Equal(t, 35, v.ConvictionCurrent)

	// Between hold and exit floors: reason logged, no forced exit.
	in.CurrentConviction = 50
	v = EvaluateExit(in, exitCfg())
	assert.False(t, v.ShouldExit)
	require.NotEmpty(t, v.Reasons)
	assert.Contains(t, v.Reasons[0], "conviction weakening")
}

func TestGammaRiskNearExpiry(t *testing.T) {
	t.Parallel()

	// The spec scenario: DTE 3, P/L -10%, otherwise unremarkable.
	v := EvaluateExit(baseInput(3, -0.10), exitCfg())
	require.True(t, v.ShouldExit)
	assert.Equal(t, High, v.Urgency)
	assert.Contains(t, v.Reasons[len(v.Reasons)-1], "gamma risk")

	// Well in profit near expiry the rule does not fire; the tiered profit
	// target catches it first anyway.
	v = EvaluateExit(baseInput(3, 0.35), exitCfg())
	assert.Contains(t, v.Reasons[0], "profit target")
}

func TestConcentrationBreachFlagsOnly(t *testing.T) {
	t.Parallel()

	in := baseInput(30, 0.05)
	in.Portfolio.UnderlyingExposure["SPY"] = 30_000 // 30% > 110% of the 25% cap

	v := EvaluateExit(in, exitCfg())
	assert.False(t, v.ShouldExit)
	assert.Equal(t, Medium, v.Urgency)
	require.NotEmpty(t, v.Reasons)
	assert.Contains(t, v.Reasons[0], "concentration breach")
}

func TestHealthyPositionHolds(t *testing.T) {
	t.Parallel()

	v := EvaluateExit(baseInput(30, 0.10), exitCfg())
	assert.False(t, v.ShouldExit)
	assert.True(t, v.ThesisValid)
	assert.Equal(t, Low, v.Urgency)
	assert.Empty(t, v.Reasons)
}
