package sentiment

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// Wildcard readings apply to every instrument without its own series.
const Wildcard = "*"

type Reading struct {
	Instrument string
	Time       time.Time
	Score      float64
}

// Series is a time-indexed set of readings per instrument. Lookups return
// the latest reading at or before asOf, flagged stale once it is older
// than MaxAge.
type Series struct {
	MaxAge time.Duration

	mu       sync.RWMutex
	readings map[string][]Reading
}

func NewSeries(maxAge time.Duration) *Series {
	return &Series{MaxAge: maxAge, readings: map[string][]Reading{}}
}

// Add inserts a reading keeping each instrument's series sorted. A reading
// with the same instrument and time replaces the earlier one.
func (s *Series) Add(r Reading) {
	if r.Instrument == "" {
		r.Instrument = Wildcard
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rs := s.readings[r.Instrument]
	i := sort.Search(len(rs), func(i int) bool { return !rs[i].Time.Before(r.Time) })
	if i < len(rs) && rs[i].Time.Equal(r.Time) {
		rs[i] = r
		return
	}
	rs = append(rs, Reading{})
	copy(rs[i+1:], rs[i:])
	rs[i] = r
	s.readings[r.Instrument] = rs
}

func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rs := range s.readings {
		n += len(rs)
	}
	return n
}

func (s *Series) ScoreFor(instrument string, asOf time.Time) (market.Sentiment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := latest(s.readings[instrument], asOf)
	if !ok {
		r, ok = latest(s.readings[Wildcard], asOf)
	}
	if !ok {
		return market.Sentiment{}, fmt.Errorf("%s at %s: %w", instrument, asOf.Format(time.RFC3339), ErrUnavailable)
	}

	return market.Sentiment{
		Score: r.Score,
		Time:  r.Time,
		Stale: s.MaxAge > 0 && asOf.Sub(r.Time) > s.MaxAge,
	}, nil
}

func latest(rs []Reading, asOf time.Time) (Reading, bool) {
	i := sort.Search(len(rs), func(i int) bool { return rs[i].Time.After(asOf) })
	if i == 0 {
		return Reading{}, false
	}
	return rs[i-1], true
}

// LoadCSV reads rows of
//
//	time,instrument,score
//
// with an optional header. An empty instrument or "*" applies to all.
func LoadCSV(path string, maxAge time.Duration) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadCSV(f, maxAge)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func ReadCSV(r io.Reader, maxAge time.Duration) (*Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	s := NewSeries(maxAge)
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) < 3 {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}

		ts, err := parseTime(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad score %q: %w", line, row[2], err)
		}
		if score < -1 || score > 1 {
			return nil, fmt.Errorf("line %d: score %.4f outside [-1,1]", line, score)
		}
		s.Add(Reading{Instrument: strings.TrimSpace(row[1]), Time: ts, Score: score})
	}
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", s, err)
	}
	return t.UTC(), nil
}
