package indicators

import "github.com/dumbCodesOnly/SigV0.01/market"

// RSI is the relative strength index with Wilder's smoothing of gains and
// losses. A window with no movement reads 50.
type RSI struct {
	gain, loss smoother
	prevClose  float64
	hasPrev    bool
}

func NewRSI(period int) *RSI {
	return &RSI{gain: wilderSmoother(period), loss: wilderSmoother(period)}
}

func (r *RSI) Update(b market.Bar) {
	if r.hasPrev {
		change := b.Close - r.prevClose
		r.gain.push(max(change, 0))
		r.loss.push(max(-change, 0))
	}
	r.prevClose = b.Close
	r.hasPrev = true
}

func (r *RSI) Ready() bool { return r.gain.ready() }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	g, l := r.gain.value(), r.loss.value()
	switch {
	case l == 0 && g == 0:
		return 50
	case l == 0:
		return 100
	}
	return 100 - 100/(1+g/l)
}
