package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optryx/riskgate/market"
)

func healthyPortfolio() Portfolio {
	return Portfolio{
		Equity:             100_000,
		UnderlyingExposure: map[string]float64{},
		RiskScore:          10,
		RiskCapacityPct:    0.9,
		RiskLevel:          Healthy,
		CanAddPositions:    true,
	}
}

func goodSignal() Signal {
	return Signal{
		Symbol:     "NVDA",
		OptionType: market.Call,
		Premium:    300,
		DTE:        21,
		IVRank:     40,
		Conviction: 80,
	}
}

func TestEntryAllowedOnCleanSignal(t *testing.T) {
	t.Parallel()

	v := EvaluateEntry(goodSignal(), healthyPortfolio(), market.Bullish, riskCfg())
	assert.True(t, v.Allowed, "reasons: %v", v.Reasons)
	assert.Empty(t, v.Reasons)
	assert.Equal(t, 70, v.ConvictionRequired)
}

func TestEntryDeniedOnLowCapacity(t *testing.T) {
	t.Parallel()

	p := healthyPortfolio()
	p.RiskCapacityPct = 0.2

	v := EvaluateEntry(goodSignal(), p, market.Bullish, riskCfg())
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reasons[0], "insufficient risk capacity")
}

func TestExceptionalConvictionOverridesCapacity(t *testing.T) {
	t.Parallel()

	p := healthyPortfolio()
	p.RiskCapacityPct = 0.2

	sig := goodSignal()
	sig.Conviction = 92

	v := EvaluateEntry(sig, p, market.Bullish, riskCfg())
	assert.True(t, v.Allowed, "reasons: %v", v.Reasons)
	require.NotEmpty(t, v.Warnings)
	assert.Contains(t, v.Warnings[0], "exceptional conviction")
}

func TestConvictionFloorRaisedWhenCautious(t *testing.T) {
	t.Parallel()

	p := healthyPortfolio()
	p.RiskLevel = Cautious

	sig := goodSignal()
	sig.Conviction = 75 // clears the base floor of 70 but not the raised 80

	v := EvaluateEntry(sig, p, market.Bullish, riskCfg())
	assert.False(t, v.Allowed)
	assert.Equal(t, 80, v.ConvictionRequired)
}

func TestConcentrationDeniedAt80PctOfCap(t *testing.T) {
	t.Parallel()

	p := healthyPortfolio()
	// Cap is 25% of 100k = 25k; 80% of that is 20k.
	p.UnderlyingExposure["NVDA"] = 20_000

	v := EvaluateEntry(goodSignal(), p, market.Bullish, riskCfg())
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reasons[0], "concentration limit")

	// Below the 80% line: allowed with a warning.
	p.UnderlyingExposure["NVDA"] = 10_000
	v = EvaluateEntry(goodSignal(), p, market.Bullish, riskCfg())
	assert.True(t, v.Allowed)
	require.NotEmpty(t, v.Warnings)
	assert.Contains(t, v.Warnings[0], "already exposed")
}

func TestCounterTrendDenied(t *testing.T) {
	t.Parallel()

	v := EvaluateEntry(goodSignal(), healthyPortfolio(), market.Bearish, riskCfg())
	require.False(t, v.Allowed)
	assert.Contains(t, v.Reasons[0], "counter-trend")

	// Sideways regime imposes no alignment requirement.
	v = EvaluateEntry(goodSignal(), healthyPortfolio(), market.Sideways, riskCfg())
	assert.True(t, v.Allowed)

	// Exceptional conviction clears a counter-trend entry.
	sig := goodSignal()
	sig.Conviction = 95
	v = EvaluateEntry(sig, healthyPortfolio(), market.Bearish, riskCfg())
	assert.True(t, v.Allowed)
}

func TestEntryLiquidityChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Signal)
		want   string
	}{
		{"short dte", func(s *Signal) { s.DTE = 3 }, "DTE too short"},
		{"high iv rank", func(s *Signal) { s.IVRank = 95 }, "IV rank too high"},
		{"expensive premium", func(s *Signal) { s.Premium = 900 }, "premium too high"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sig := goodSignal()
			tt.mutate(&sig)
			v := EvaluateEntry(sig, healthyPortfolio(), market.Bullish, riskCfg())
			require.False(t, v.Allowed)
			assert.Contains(t, v.Reasons[0], tt.want)
		})
	}

	// Unknown IV rank (negative sentinel) is not a denial.
	sig := goodSignal()
	sig.IVRank = -1
	assert.True(t, EvaluateEntry(sig, healthyPortfolio(), market.Bullish, riskCfg()).Allowed)
}

func TestImpactComputedEvenWhenDenied(t *testing.T) {
	t.Parallel()

	sig := goodSignal()
	sig.Conviction = 10
	sig.DTE = 10

	v := EvaluateEntry(sig, healthyPortfolio(), market.Bullish, riskCfg())
	assert.False(t, v.Allowed)
	assert.Equal(t, 3, v.RiskScoreImpact) // DTE 10 penalty
}
