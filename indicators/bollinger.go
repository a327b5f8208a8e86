package indicators

import (
	"math"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// Bollinger tracks Bollinger Bands (SMA ± k population standard deviations).
type Bollinger struct {
	period int
	k      float64
	closes []float64
}

func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{period: period, k: k, closes: make([]float64, 0, period)}
}

func (b *Bollinger) Update(bar market.Bar) {
	b.closes = append(b.closes, bar.Close)
	if len(b.closes) > b.period {
		b.closes = b.closes[1:]
	}
}

func (b *Bollinger) Ready() bool {
	return len(b.closes) >= b.period
}

// Bands returns middle, upper and lower bands. All zero until Ready.
func (b *Bollinger) Bands() (middle, upper, lower float64) {
	if !b.Ready() {
		return 0, 0, 0
	}

	sum := 0.0
	for _, c := range b.closes {
		sum += c
	}
	middle = sum / float64(len(b.closes))

	variance := 0.0
	for _, c := range b.closes {
		d := c - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(len(b.closes)))

	return middle, middle + b.k*sd, middle - b.k*sd
}

// Value is the band width, so Bollinger satisfies Indicator.
func (b *Bollinger) Value() float64 {
	return b.Width()
}

// Width returns (upper-lower)/middle*100, the band width in percent of the middle band.
func (b *Bollinger) Width() float64 {
	middle, upper, lower := b.Bands()
	if middle == 0 {
		return 0
	}
	return (upper - lower) / middle * 100
}

// rankWindow keeps the last n values and reports the percentile rank of the newest one.
type rankWindow struct {
	n    int
	vals []float64
}

func newRankWindow(n int) *rankWindow {
	return &rankWindow{n: n, vals: make([]float64, 0, n)}
}

func (w *rankWindow) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.n {
		w.vals = w.vals[1:]
	}
}

// rank is the fraction of window values <= the newest value, in (0,1].
func (w *rankWindow) rank() float64 {
	if len(w.vals) == 0 {
		return 0
	}
	last := w.vals[len(w.vals)-1]
	le := 0
	for _, v := range w.vals {
		if v <= last {
			le++
		}
	}
	return float64(le) / float64(len(w.vals))
}
