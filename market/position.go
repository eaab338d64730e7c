package market

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Trend is the prevailing market regime for an underlying or the broad market.
type Trend string

const (
	Bullish  Trend = "bullish"
	Bearish  Trend = "bearish"
	Sideways Trend = "sideways"
)

// OptionType is the contract right.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Position is an open holding as reported by the broker. Equity positions
// carry a bare symbol; options carry an OCC contract symbol.
type Position struct {
	Symbol       string
	Qty          float64
	EntryPrice   float64
	CurrentPrice float64
	MarketValue  float64
	EntryTime    time.Time

	// Options fields; zero-valued for plain equity.
	OptionType OptionType
	Strike     float64
	Expiration time.Time

	// Greeks as reported per position.
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// IsOption reports whether the position is an option contract. OCC symbols
// embed the expiry date, so any digit marks the symbol as a contract.
func (p Position) IsOption() bool {
	return strings.ContainsFunc(p.Symbol, unicode.IsDigit)
}

// Underlying strips the OCC date/strike suffix, recovering the underlying
// ticker. Plain equity symbols come back unchanged.
func (p Position) Underlying() string { return Underlying(p.Symbol) }

// DTE returns calendar days until expiration, measured in exchange-local
// dates. Non-options report 0.
func (p Position) DTE(now time.Time) int {
	if p.Expiration.IsZero() {
		return 0
	}
	return DaysBetween(now, p.Expiration)
}

// PnLPct is the unrealized return relative to entry, e.g. 0.25 for +25%.
func (p Position) PnLPct() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice
}

// DaysHeld returns whole calendar days since entry.
func (p Position) DaysHeld(now time.Time) int {
	if p.EntryTime.IsZero() {
		return 0
	}
	return DaysBetween(p.EntryTime, now)
}

// Underlying recovers the underlying ticker from an OCC option symbol like
// SPY260106C00695000. Symbols six characters or shorter pass through as-is.
func Underlying(symbol string) string {
	if len(symbol) <= 6 && !strings.ContainsFunc(symbol, unicode.IsDigit) {
		return symbol
	}
	i := strings.IndexFunc(symbol, unicode.IsDigit)
	if i <= 0 {
		return symbol
	}
	return symbol[:i]
}

// ParseOCC splits an OCC contract symbol into underlying, expiration,
// option type, and strike. It returns ok=false for non-contract symbols.
func ParseOCC(symbol string) (underlying string, exp time.Time, typ OptionType, strike float64, ok bool) {
	i := strings.IndexFunc(symbol, unicode.IsDigit)
	if i <= 0 || len(symbol)-i != 15 {
		return "", time.Time{}, "", 0, false
	}
	underlying = symbol[:i]
	rest := symbol[i:]

	t, err := time.ParseInLocation("060102", rest[:6], exchangeLoc)
	if err != nil {
		return "", time.Time{}, "", 0, false
	}
	switch rest[6] {
	case 'C':
		typ = Call
	case 'P':
		typ = Put
	default:
		return "", time.Time{}, "", 0, false
	}
	milli, err := strconv.ParseInt(rest[7:], 10, 64)
	if err != nil {
		return "", time.Time{}, "", 0, false
	}
	return underlying, t, typ, float64(milli) / 1000, true
}

// Aligned reports whether an option type is on the right side of a trend:
// calls in a bullish regime, puts in a bearish one.
func Aligned(trend Trend, typ OptionType) bool {
	return (trend == Bullish && typ == Call) || (trend == Bearish && typ == Put)
}
