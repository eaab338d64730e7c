package market

import "time"

// Exchange is the trading calendar timezone. Daily counters reset on the
// exchange-local date change, never the host's local or UTC date.
const Exchange = "America/New_York"

var exchangeLoc = mustLoad(Exchange)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExchangeNow returns the current time projected into the exchange timezone.
func ExchangeNow() time.Time { return time.Now().In(exchangeLoc) }

// TradingDate returns the exchange-local calendar date for t, truncated to
// midnight in the exchange timezone.
func TradingDate(t time.Time) time.Time {
	y, m, d := t.In(exchangeLoc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, exchangeLoc)
}

// DaysBetween returns the number of calendar days from a to b, measured on
// exchange-local dates. The count is derived from the date components alone,
// so DST transitions (23- and 25-hour days) never skew it. b before a yields
// a negative count.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.In(exchangeLoc).Date()
	by, bm, bd := b.In(exchangeLoc).Date()
	au := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bu := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

// SameTradingDay reports whether a and b fall on the same exchange-local date.
func SameTradingDay(a, b time.Time) bool {
	return TradingDate(a).Equal(TradingDate(b))
}

// MarketHours reports whether t is inside regular US equity trading hours,
// Monday through Friday 9:30-16:00 exchange time.
func MarketHours(t time.Time) bool {
	et := t.In(exchangeLoc)
	wd := et.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	h, m := et.Hour(), et.Minute()
	if h < 9 || h >= 16 {
		return false
	}
	if h == 9 && m < 30 {
		return false
	}
	return true
}
