package indicators

import "github.com/dumbCodesOnly/SigV0.01/market"

// EMA is an exponential moving average of closes, seeded with the SMA of
// the first period closes.
type EMA struct {
	s smoother
}

func NewEMA(period int) *EMA {
	return &EMA{s: emaSmoother(period)}
}

func (e *EMA) Update(b market.Bar) { e.s.push(b.Close) }
func (e *EMA) Ready() bool         { return e.s.ready() }
func (e *EMA) Value() float64      { return e.s.value() }
