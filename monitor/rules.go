// Package monitor scores open positions for momentum reversal and closes the
// worst offenders automatically. Scoring is pure; everything stateful lives
// in the Monitor pass driver.
package monitor

import (
	"github.com/optryx/riskgate/indicators"
	"github.com/optryx/riskgate/market"
)

// MinBars is the shortest usable bar history. The 20-day averages need a full
// window plus the current bar.
const MinBars = 21

// MaxScore is the sum of all rule weights.
const MaxScore = 13

// Result is one scoring pass over a position's bar history.
type Result struct {
	Score   int
	Signals []string
	Details map[string]float64
}

// rule inspects the bar history (ascending time) and returns the points
// awarded plus a signal label. Zero points means the rule did not fire.
// Rules record their inputs into details for the audit trail either way.
type rule func(bars []market.Candle, details map[string]float64) (int, string)

var rules = []rule{
	smaBearishCross,
	weakClose,
	distributionVolume,
	rsiBreakdown,
	failedBreakout,
}

// Score runs every reversal rule over the bars and sums the triggered
// weights. Bars must be ascending by time with at least MinBars entries;
// rules that cannot compute on the given history simply do not fire.
func Score(bars []market.Candle) Result {
	res := Result{Details: make(map[string]float64)}
	for _, r := range rules {
		points, label := r(bars, res.Details)
		if points > 0 {
			res.Score += points
			res.Signals = append(res.Signals, label)
		}
	}
	if res.Score > MaxScore {
		res.Score = MaxScore
	}
	return res
}

// smaBearishCross awards 3 points when the 7-day SMA sits below the 20-day.
func smaBearishCross(bars []market.Candle, details map[string]float64) (int, string) {
	fast, err := indicators.SMA(bars, 7)
	if err != nil {
		return 0, ""
	}
	slow, err := indicators.SMA(bars, 20)
	if err != nil {
		return 0, ""
	}
	details["sma_7"] = fast
	details["sma_20"] = slow
	if fast < slow {
		return 3, "sma_bearish_cross"
	}
	return 0, ""
}

// weakClose awards 2 points when the latest close sits in the lower 30% of
// the day's range.
func weakClose(bars []market.Candle, details map[string]float64) (int, string) {
	last := bars[len(bars)-1]
	pos := last.ClosePosition()
	details["close_position"] = pos
	if pos < 0.30 {
		return 2, "weak_close"
	}
	return 0, ""
}

// distributionVolume awards 3 points for a red day on volume above 1.5x the
// trailing 20-day average.
func distributionVolume(bars []market.Candle, details map[string]float64) (int, string) {
	avg, err := indicators.AvgVolume(bars, 20)
	if err != nil || avg <= 0 {
		return 0, ""
	}
	last := bars[len(bars)-1]
	details["volume"] = last.Volume
	details["avg_volume_20"] = avg
	if last.Red() && last.Volume > 1.5*avg {
		return 3, "distribution_volume"
	}
	return 0, ""
}

// rsiBreakdown awards 2 points when RSI(14) was above 70 on the prior bar
// and has fallen below 60 on the current one.
func rsiBreakdown(bars []market.Candle, details map[string]float64) (int, string) {
	closes := market.Closes(bars)
	prev := indicators.RSI(closes[:len(closes)-1], 14)
	curr := indicators.RSI(closes, 14)
	details["rsi_prev"] = prev
	details["rsi"] = curr
	if prev > 70 && curr < 60 {
		return 2, "rsi_breakdown"
	}
	return 0, ""
}

// failedBreakout awards 3 points when the current bar pokes above the prior
// 5-day high but still closes red.
func failedBreakout(bars []market.Candle, details map[string]float64) (int, string) {
	high, err := indicators.HighestHigh(bars, 5)
	if err != nil {
		return 0, ""
	}
	last := bars[len(bars)-1]
	details["prior_5d_high"] = high
	if last.High > high && last.Red() {
		return 3, "failed_breakout"
	}
	return 0, ""
}
