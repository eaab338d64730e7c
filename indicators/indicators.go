// Package indicators provides the technical analysis primitives used by the
// reversal monitor. All functions are pure and operate on closed daily bars.
package indicators

import (
	"fmt"

	"github.com/optryx/riskgate/market"
)

// SMA calculates the Simple Moving Average of closes over the given period,
// ending at the most recent candle.
func SMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period, len(candles))
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// AvgVolume calculates the mean volume over the period ending one bar before
// the most recent candle, so the current bar can be compared against its own
// trailing average.
func AvgVolume(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period+1, len(candles))
	}

	sum := 0.0
	for i := len(candles) - period - 1; i < len(candles)-1; i++ {
		sum += candles[i].Volume
	}
	return sum / float64(period), nil
}

// HighestHigh returns the maximum high over the period ending one bar before
// the most recent candle (the prior N-day high).
func HighestHigh(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(candles) < period+1 {
		return 0, fmt.Errorf("not enough candles: need %d, got %d", period+1, len(candles))
	}

	high := candles[len(candles)-period-1].High
	for i := len(candles) - period; i < len(candles)-1; i++ {
		if candles[i].High > high {
			high = candles[i].High
		}
	}
	return high, nil
}

// RSI calculates the Relative Strength Index over the given period using a
// simple average of the trailing gains and losses. Series shorter than
// period+1 report the neutral value 50.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50.0
	}

	gains := make([]float64, 0, len(closes)-1)
	losses := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for _, g := range gains[len(gains)-period:] {
		avgGain += g
	}
	for _, l := range losses[len(losses)-period:] {
		avgLoss += l
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
