package market

import "time"

// IndicatorSnapshot is the fixed-shape indicator record for one closed bar.
// It is produced by an indicator provider and read-only to everything else.
type IndicatorSnapshot struct {
	Instrument string
	Time       time.Time

	EMAFast float64
	EMASlow float64
	RSI     float64
	ATR     float64

	BollingerUpper float64
	BollingerLower float64
	BollingerWidth float64 // (upper-lower)/middle*100

	// WidthRank is the percentile rank in [0,1] of BollingerWidth within the
	// provider's lookback window.
	WidthRank float64

	// Values from the previous bar, used by the squeeze-breakout setup.
	PriorUpper     float64
	PriorLower     float64
	PriorWidthRank float64

	// Nearest confirmed swing points strictly before this bar. 0 means none.
	SwingHigh float64
	SwingLow  float64

	// Prices of the bar the snapshot was computed on.
	Close float64
	High  float64
	Low   float64
}

// Trend derives the TrendState for this snapshot.
func (s IndicatorSnapshot) Trend() TrendState {
	return TrendOf(s.EMAFast, s.EMASlow)
}

// HasPrior reports whether the previous bar's band values are present.
func (s IndicatorSnapshot) HasPrior() bool {
	return s.PriorUpper > 0 && s.PriorLower > 0
}

// Sentiment is a scalar score in [-1, 1] as reported by a sentiment provider.
type Sentiment struct {
	Score float64
	Time  time.Time // as-of time of the underlying observation
	Stale bool
}

// Clamped returns the score limited to [-1, 1].
func (s Sentiment) Clamped() float64 {
	switch {
	case s.Score > 1:
		return 1
	case s.Score < -1:
		return -1
	}
	return s.Score
}
