package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// CSVBars reads bar rows:
//
//	time,instrument,open,high,low,close[,volume]
//
// where time is RFC3339, RFC3339Nano or unix milliseconds.
//
// It optionally filters bars to [From, To) if provided.
// Header row ("time,...") is allowed.
// Empty/short rows are skipped.
type CSVBars struct {
	c    io.Closer
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
	line     int
}

func OpenCSV(path string, from, to time.Time) (*CSVBars, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newCSVBars(f, f, from, to), nil
}

// NewCSV reads from r; Close is a no-op.
func NewCSV(r io.Reader, from, to time.Time) *CSVBars {
	return newCSVBars(r, nil, from, to)
}

func newCSVBars(r io.Reader, c io.Closer, from, to time.Time) *CSVBars {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return &CSVBars{c: c, r: cr, from: from, to: to}
}

func (f *CSVBars) Close() error {
	if f.c != nil {
		return f.c.Close()
	}
	return nil
}

func (f *CSVBars) Next() (market.Bar, bool, error) {
	for {
		row, err := f.r.Read()
		if err == io.EOF {
			return market.Bar{}, false, nil
		}
		if err != nil {
			return market.Bar{}, false, err
		}
		f.line++
		if len(row) == 0 {
			continue
		}

		// Allow a single header row
		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		b, ok, err := parseBarRow(row)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("line %d: %w", f.line, err)
		}
		if !ok {
			continue
		}
		if !inRange(b.Time, f.from, f.to) {
			continue
		}
		return b, true, nil
	}
}

func parseBarRow(row []string) (market.Bar, bool, error) {
	// Need at least: time,instrument,open,high,low,close
	if len(row) < 6 {
		return market.Bar{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return market.Bar{}, false, nil
	}
	t, err := ParseTime(ts)
	if err != nil {
		return market.Bar{}, false, err
	}

	inst := strings.TrimSpace(row[1])
	if inst == "" {
		return market.Bar{}, false, nil
	}

	var v [5]float64
	n := 4
	if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
		n = 5
	}
	names := [5]string{"open", "high", "low", "close", "volume"}
	for i := 0; i < n; i++ {
		s := strings.TrimSpace(row[2+i])
		v[i], err = strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Bar{}, false, fmt.Errorf("bad %s %q: %w", names[i], s, err)
		}
	}

	b := market.Bar{
		Instrument: inst,
		Time:       t,
		Open:       v[0],
		High:       v[1],
		Low:        v[2],
		Close:      v[3],
		Volume:     v[4],
	}
	if err := b.Validate(); err != nil {
		return market.Bar{}, false, err
	}
	return b, true, nil
}

// ParseTime accepts RFC3339, RFC3339Nano or integer unix milliseconds.
func ParseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
		}
		t = t2
	}
	return t.UTC(), nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// WriteCSV writes bars in the format CSVBars reads.
func WriteCSV(w io.Writer, bars []market.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "instrument", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, b := range bars {
		row := []string{
			b.Time.UTC().Format(time.RFC3339Nano),
			b.Instrument,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
