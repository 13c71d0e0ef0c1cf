package market

import "time"

// Eastern is the exchange time zone. Falls back to a fixed EST offset
// when the zoneinfo database is unavailable, same as the old feed code.
var Eastern = loadEastern()

func loadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

const (
	// OpeningRangeWidth is the width of the first session bar.
	OpeningRangeWidth = 5 * time.Minute
)

// SessionOpen returns 09:30 local on the given trading day.
func SessionOpen(day time.Time) time.Time {
	y, m, d := day.In(Eastern).Date()
	return time.Date(y, m, d, 9, 30, 0, 0, Eastern)
}

// OpeningRangeEnd returns 09:35 local, the first poll instant at which
// the opening-range bar is complete.
func OpeningRangeEnd(day time.Time) time.Time {
	return SessionOpen(day).Add(OpeningRangeWidth)
}

// SessionClose returns 16:00 local on the given trading day.
func SessionClose(day time.Time) time.Time {
	y, m, d := day.In(Eastern).Date()
	return time.Date(y, m, d, 16, 0, 0, 0, Eastern)
}

// Midnight truncates t to the trading date in exchange time.
func Midnight(t time.Time) time.Time {
	y, m, d := t.In(Eastern).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Eastern)
}
