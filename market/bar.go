package market

import (
	"fmt"
	"math"
	"time"
)

// Bar is a closed OHLCV bar for one instrument.
// Bars are immutable once closed and arrive in strictly increasing Time order.
type Bar struct {
	Instrument string
	Time       time.Time

	Open  float64
	High  float64
	Low   float64
	Close float64

	Volume float64 // optional
}

// Touches reports whether price lies inside the bar's high/low range.
func (b Bar) Touches(price float64) bool {
	return b.Low <= price && price <= b.High
}

// Validate checks OHLC consistency.
func (b Bar) Validate() error {
	if b.Time.IsZero() {
		return fmt.Errorf("bar: zero time")
	}
	for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s: non-finite price %v", b.Time.Format(time.RFC3339), v)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("bar %s: high %.6f below low %.6f", b.Time.Format(time.RFC3339), b.High, b.Low)
	}
	if b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("bar %s: open/close outside high/low range", b.Time.Format(time.RFC3339))
	}
	return nil
}
