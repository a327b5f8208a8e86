// Package feed supplies closed bars to the replay engine, from CSV files,
// in-memory slices, or a live exchange stream.
package feed

import (
	"sort"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// Source yields bars in the order they should be replayed. Next returns
// ok=false at the end of the data.
type Source interface {
	Next() (market.Bar, bool, error)
	Close() error
}

// Slice replays bars held in memory.
type Slice struct {
	bars []market.Bar
	i    int
}

func NewSlice(bars []market.Bar) *Slice {
	return &Slice{bars: bars}
}

func (s *Slice) Next() (market.Bar, bool, error) {
	if s.i >= len(s.bars) {
		return market.Bar{}, false, nil
	}
	b := s.bars[s.i]
	s.i++
	return b, true, nil
}

func (s *Slice) Close() error { return nil }

// ReadAll drains a source.
func ReadAll(src Source) ([]market.Bar, error) {
	var out []market.Bar
	for {
		b, ok, err := src.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, b)
	}
}

// SortBars orders bars by time, then instrument. Bars already in that order
// keep their relative position.
func SortBars(bars []market.Bar) {
	sort.SliceStable(bars, func(i, j int) bool {
		if !bars[i].Time.Equal(bars[j].Time) {
			return bars[i].Time.Before(bars[j].Time)
		}
		return bars[i].Instrument < bars[j].Instrument
	})
}
