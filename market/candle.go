package market

import (
	"sort"
	"time"
)

// Candle represents one daily OHLCV bar.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	time.Time
	Volume float64
}

// Red reports whether the bar closed below its open.
func (c Candle) Red() bool { return c.Close < c.Open }

// Range returns the high-low span of the bar.
func (c Candle) Range() float64 { return c.High - c.Low }

// ClosePosition returns where the close sits inside the day's range,
// 0 at the low and 1 at the high. A zero-range bar reports 0.5.
func (c Candle) ClosePosition() float64 {
	r := c.Range()
	if r <= 0 {
		return 0.5
	}
	return (c.Close - c.Low) / r
}

// SortCandles orders bars oldest first. Data providers do not all agree on
// ordering, and every indicator here assumes ascending time.
func SortCandles(candles []Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Before(candles[j].Time)
	})
}

// Closes extracts the close series from a candle slice.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
