package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpeningRangeDirection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		or   OpeningRange
		want int
	}{
		{"bullish", OpeningRange{Open: 10.00, Close: 10.10}, +1},
		{"bearish", OpeningRange{Open: 10.00, Close: 9.90}, -1},
		{"doji", OpeningRange{Open: 10.00, Close: 10.00}, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.or.Direction())
		})
	}
}

func TestSplitOpeningRange(t *testing.T) {
	t.Parallel()

	open := time.Date(2024, 3, 8, 9, 30, 0, 0, Eastern)
	bars := []Bar{
		{Time: open, Open: 10.00, High: 10.20, Low: 9.95, Close: 10.10, Volume: 100000},
		{Time: open.Add(5 * time.Minute), Open: 10.10, High: 10.25, Low: 10.05, Close: 10.15, Volume: 50000},
	}

	or, rest, err := SplitOpeningRange(bars)
	require.NoError(t, err)

	assert.Equal(t, 10.20, or.High)
	assert.Equal(t, 9.95, or.Low)
	assert.Equal(t, float64(100000), or.Volume)
	require.Len(t, rest, 1)
	assert.Equal(t, 10.25, rest[0].High)
}

func TestSplitOpeningRangeEmpty(t *testing.T) {
	t.Parallel()

	_, _, err := SplitOpeningRange(nil)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestSessionTimes(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 8, 0, 0, 0, 0, Eastern)

	assert.Equal(t, 9, SessionOpen(day).Hour())
	assert.Equal(t, 30, SessionOpen(day).Minute())
	assert.Equal(t, 35, OpeningRangeEnd(day).Minute())
	assert.Equal(t, 16, SessionClose(day).Hour())
}
