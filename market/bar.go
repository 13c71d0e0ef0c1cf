package market

import (
	"errors"
	"time"
)

// Bar represents one OHLCV candlestick. Bars are immutable once loaded.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// ErrNoBars is returned when a symbol-day has no intraday bars.
var ErrNoBars = errors.New("market: no bars")

// OpeningRange is derived from the first regular-session bar
// (09:30 ET, 5-minute width).
type OpeningRange struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Direction returns +1 for a bullish opening bar, -1 for bearish and
// 0 for a doji. A doji excludes the symbol from trading that day.
func (or OpeningRange) Direction() int {
	switch {
	case or.Close > or.Open:
		return +1
	case or.Close < or.Open:
		return -1
	}
	return 0
}

// SessionBarsPerDay is the number of 5-minute bars in a 6.5 hour
// regular session, used to extrapolate opening volume to a full-day
// equivalent when computing relative volume.
const SessionBarsPerDay = 78

// SplitOpeningRange extracts the opening-range bar from an ordered
// symbol-day series and returns the remaining bars. The series must
// start at the regular-session open.
func SplitOpeningRange(bars []Bar) (OpeningRange, []Bar, error) {
	if len(bars) == 0 {
		return OpeningRange{}, nil, ErrNoBars
	}
	first := bars[0]
	or := OpeningRange{
		Open:   first.Open,
		High:   first.High,
		Low:    first.Low,
		Close:  first.Close,
		Volume: first.Volume,
	}
	return or, bars[1:], nil
}

// TotalVolume sums bar volume over a series.
func TotalVolume(bars []Bar) float64 {
	var v float64
	for _, b := range bars {
		v += b.Volume
	}
	return v
}
