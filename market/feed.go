package market

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// BarProvider supplies bar series for the simulator, the backtest loop
// and the live session's refinement step. Implementations must return
// bars in ascending time order.
type BarProvider interface {
	// IntradayBars returns the 5-minute regular-session bars for one
	// symbol-day, starting at the opening bar.
	IntradayBars(ctx context.Context, symbol string, date time.Time) ([]Bar, error)

	// DailyBars returns up to n trailing daily bars ending the day
	// before date, newest last. Used for ATR and volume averages.
	DailyBars(ctx context.Context, symbol string, date time.Time, n int) ([]Bar, error)
}

// FileProvider reads bar series from a directory tree:
//
//	<dir>/<SYMBOL>/<YYYY-MM-DD>.csv   intraday 5-minute bars
//	<dir>/<SYMBOL>/daily.csv          trailing daily bars
//
// Either file may carry a .xz suffix, in which case it is decompressed
// on the fly. Lines are "time,open,high,low,close,volume" with the time
// column in RFC3339 (intraday) or YYYY-MM-DD (daily). Header lines and
// unparseable lines are skipped and counted, never fatal.
type FileProvider struct {
	Dir string

	badLines int
}

func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{Dir: dir}
}

// BadLines reports how many malformed lines were skipped so far.
func (p *FileProvider) BadLines() int { return p.badLines }

func (p *FileProvider) IntradayBars(ctx context.Context, symbol string, date time.Time) ([]Bar, error) {
	name := filepath.Join(p.Dir, strings.ToUpper(symbol), date.Format("2006-01-02")+".csv")
	bars, err := p.readBars(name, parseBarTime)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoBars, symbol, date.Format("2006-01-02"))
	}
	return bars, nil
}

func (p *FileProvider) DailyBars(ctx context.Context, symbol string, date time.Time, n int) ([]Bar, error) {
	name := filepath.Join(p.Dir, strings.ToUpper(symbol), "daily.csv")
	bars, err := p.readBars(name, parseDailyTime)
	if err != nil {
		return nil, err
	}

	// Keep only days strictly before the requested date.
	cut := Midnight(date)
	out := bars[:0:0]
	for _, b := range bars {
		if b.Time.Before(cut) {
			out = append(out, b)
		}
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (p *FileProvider) readBars(name string, parseTime func(string) (time.Time, error)) ([]Bar, error) {
	r, closer, err := openMaybeCompressed(name)
	if err != nil {
		return nil, err
	}
	defer closer()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var bars []Bar
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(strings.ToLower(line), "time,") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			p.badLines++
			continue
		}
		ts, err := parseTime(parts[0])
		if err != nil {
			p.badLines++
			continue
		}
		var v [5]float64
		ok := true
		for i := 0; i < 5; i++ {
			v[i], err = strconv.ParseFloat(strings.TrimSpace(parts[i+1]), 64)
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			p.badLines++
			continue
		}
		bars = append(bars, Bar{Time: ts, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// openMaybeCompressed opens name, or name+".xz" with transparent
// decompression when the plain file does not exist.
func openMaybeCompressed(name string) (io.Reader, func() error, error) {
	if f, err := os.Open(name); err == nil {
		return f, f.Close, nil
	}
	f, err := os.Open(name + ".xz")
	if err != nil {
		return nil, nil, err
	}
	xr, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open %s.xz: %w", name, err)
	}
	return xr, f.Close, nil
}

func parseBarTime(s string) (time.Time, error) {
	return time.ParseInLocation(time.RFC3339, strings.TrimSpace(s), Eastern)
}

func parseDailyTime(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", strings.TrimSpace(s), Eastern)
}
