package signals

import (
	"math"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// Setup is the technical pattern that produced a candidate.
type Setup string

const (
	Pullback Setup = "pullback"
	Breakout Setup = "breakout"
)

// TakeProfit is a concrete target price with the size fraction closed there.
type TakeProfit struct {
	Price    float64
	Fraction float64
}

// Candidate is a qualified trading signal. It is never modified after
// Evaluate returns it.
type Candidate struct {
	Instrument string
	Direction  market.Direction
	Setup      Setup

	Entry       float64
	StopLoss    float64
	TakeProfits []TakeProfit

	Confidence     float64
	TechnicalScore float64
	SentimentScore float64
	Sentiment      float64
	Stale          bool

	ATR       float64
	CreatedAt time.Time
	Reasons   []string
}

// Risk is the initial stop distance (1R) in price units.
func (c Candidate) Risk() float64 {
	return math.Abs(c.Entry - c.StopLoss)
}

// TargetFractions sums the size fractions of all take-profits.
func (c Candidate) TargetFractions() float64 {
	sum := 0.0
	for _, tp := range c.TakeProfits {
		sum += tp.Fraction
	}
	return sum
}

// DiscardReason explains why Evaluate produced no candidate.
type DiscardReason string

const (
	Kept          DiscardReason = ""
	OpenPosition  DiscardReason = "open_position"
	NoSetup       DiscardReason = "no_setup"
	RSIFilter     DiscardReason = "rsi_filter"
	SentimentGate DiscardReason = "sentiment_gate"
	LowConfidence DiscardReason = "low_confidence"
)

// Decision is the outcome of one qualification pass.
type Decision struct {
	Candidate *Candidate
	Discard   DiscardReason

	// Set when a setup fired, even if the candidate was later discarded.
	Setup      Setup
	Direction  market.Direction
	Confidence float64
	Stale      bool
}

// Accepted reports whether a candidate was produced.
func (d Decision) Accepted() bool {
	return d.Candidate != nil
}

// SetupFired reports whether a technical setup was found on the bar.
func (d Decision) SetupFired() bool {
	return d.Setup != ""
}
