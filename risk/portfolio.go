package risk

import (
	"math"

	"github.com/optryx/riskgate/config"
	"github.com/optryx/riskgate/market"
	"github.com/optryx/riskgate/metrics"
)

// AggregateGreeks sums per-position Greeks into the portfolio totals
// CalculatePortfolio expects.
func AggregateGreeks(positions []market.Position) Greeks {
	var g Greeks
	for _, p := range positions {
		g.NetDelta += p.Delta
		g.TotalGamma += p.Gamma
		g.DailyTheta += p.Theta
		g.TotalVega += p.Vega
	}
	return g
}

// CalculatePortfolio converts raw position Greeks and exposures into a single
// comparable risk score. Called fresh on every decision; results are never
// cached across cycles.
func CalculatePortfolio(positions []market.Position, greeks Greeks, equity float64, cfg config.RiskConfig) Portfolio {
	p := Portfolio{
		Equity:             equity,
		SectorExposure:     map[string]float64{},
		UnderlyingExposure: map[string]float64{},
		RiskLevel:          Healthy,
		RiskCapacityPct:    1.0,
		CanAddPositions:    true,

		maxSingleUnderlyingPct: cfg.MaxSingleUnderlyingPct,
	}

	if len(positions) == 0 {
		return p
	}

	p.NetDelta = math.Abs(greeks.NetDelta)
	p.TotalGamma = math.Abs(greeks.TotalGamma)
	p.DailyTheta = math.Abs(greeks.DailyTheta)
	p.TotalVega = math.Abs(greeks.TotalVega)

	for _, pos := range positions {
		mv := math.Abs(pos.MarketValue)
		p.OptionsValue += mv
		p.UnderlyingExposure[pos.Underlying()] += mv
	}

	// Normalize to an equity/100k basis. A non-positive equity must not
	// divide by zero; floor the denominator instead.
	equity100k := math.Max(equity/100_000, 0.1)

	score := 0
	score += subScore(p.NetDelta/equity100k, cfg.MaxPortfolioDeltaPer100K)
	score += subScore(p.TotalGamma/equity100k, cfg.MaxPortfolioGammaPer100K)

	thetaPct := 0.0
	if equity > 0 {
		thetaPct = p.DailyTheta / equity
	}
	score += subScore(thetaPct, cfg.MaxPortfolioThetaDailyPct)

	maxUnderlyingPct := 0.0
	if equity > 0 {
		for _, value := range p.UnderlyingExposure {
			maxUnderlyingPct = math.Max(maxUnderlyingPct, value/equity)
		}
	}
	score += subScore(maxUnderlyingPct, cfg.MaxSingleUnderlyingPct)

	if score > 100 {
		score = 100
	}
	p.RiskScore = score
	metrics.RiskScore.Set(float64(score))

	switch {
	case score <= cfg.HealthyScore:
		p.RiskLevel = Healthy
		p.CanAddPositions = true
	case score <= cfg.CautiousScore:
		p.RiskLevel = Cautious
		p.CanAddPositions = true
	case score <= cfg.ElevatedScore:
		p.RiskLevel = Elevated
		p.CanAddPositions = false
	default:
		p.RiskLevel = Critical
		p.CanAddPositions = false
	}

	p.RiskCapacityPct = math.Max(0, 1.0-float64(score)/100)
	return p
}

// subScore maps a normalized metric against its limit onto 0-25 points.
func subScore(value, limit float64) int {
	if limit <= 0 {
		return 0
	}
	s := int(25 * (value / limit))
	if s > 25 {
		s = 25
	}
	if s < 0 {
		s = 0
	}
	return s
}

// EstimateImpact estimates how much a candidate trade would raise the
// portfolio risk score (0-20), for display even when the entry is denied.
func EstimateImpact(premium float64, dte int, p Portfolio) int {
	impact := 0

	// premium is cents per share; one contract covers 100 shares, so the
	// contract cost in dollars equals the premium figure.
	positionValue := premium
	if p.Equity > 0 {
		impact += int(positionValue / p.Equity * 100) // 1% of equity = 1 point
	}

	switch {
	case dte < 7:
		impact += 5
	case dte < 14:
		impact += 3
	case dte < 21:
		impact += 1
	}

	if impact > 20 {
		impact = 20
	}
	return impact
}
