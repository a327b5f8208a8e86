package indicators

import (
	"math"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// ATR is the Wilder-smoothed average true range. The first bar only
// provides the previous close, so period+1 bars are needed.
type ATR struct {
	s         smoother
	prevClose float64
	hasPrev   bool
}

func NewATR(period int) *ATR {
	return &ATR{s: wilderSmoother(period)}
}

func (a *ATR) Update(b market.Bar) {
	if a.hasPrev {
		a.s.push(trueRange(b, a.prevClose))
	}
	a.prevClose = b.Close
	a.hasPrev = true
}

func (a *ATR) Ready() bool    { return a.s.ready() }
func (a *ATR) Value() float64 { return a.s.value() }

func trueRange(b market.Bar, prevClose float64) float64 {
	return math.Max(b.High-b.Low, math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
}
