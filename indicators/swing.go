package indicators

import "github.com/dumbCodesOnly/SigV0.01/market"

// SwingTracker finds swing highs/lows: a bar whose high (low) is the extreme of
// the window bars on either side. A swing is only confirmed once window later
// bars have closed, so the reported levels never depend on future data.
type SwingTracker struct {
	window int
	highs  []float64
	lows   []float64

	lastHigh float64
	lastLow  float64
}

func NewSwingTracker(window int) *SwingTracker {
	return &SwingTracker{window: window}
}

func (s *SwingTracker) Update(b market.Bar) {
	size := 2*s.window + 1
	s.highs = append(s.highs, b.High)
	s.lows = append(s.lows, b.Low)
	if len(s.highs) > size {
		s.highs = s.highs[1:]
		s.lows = s.lows[1:]
	}
	if len(s.highs) < size {
		return
	}

	mid := s.window
	if isMax(s.highs, mid) {
		s.lastHigh = s.highs[mid]
	}
	if isMin(s.lows, mid) {
		s.lastLow = s.lows[mid]
	}
}

// High returns the most recent confirmed swing high, 0 if none yet.
func (s *SwingTracker) High() float64 { return s.lastHigh }

// Low returns the most recent confirmed swing low, 0 if none yet.
func (s *SwingTracker) Low() float64 { return s.lastLow }

func isMax(xs []float64, i int) bool {
	for _, x := range xs {
		if x > xs[i] {
			return false
		}
	}
	return true
}

func isMin(xs []float64, i int) bool {
	for _, x := range xs {
		if x < xs[i] {
			return false
		}
	}
	return true
}
