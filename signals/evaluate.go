package signals

import (
	"fmt"
	"math"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// Evaluate qualifies one closed bar. It is a pure function of its inputs:
// identical arguments always produce an identical Decision.
//
// Setups are tested in fixed priority order, breakout first, so a bar that
// satisfies both is always a breakout.
func Evaluate(cfg Config, snap market.IndicatorSnapshot, sent market.Sentiment, trend market.TrendState, hasOpenPosition bool) Decision {
	if hasOpenPosition {
		return Decision{Discard: OpenPosition}
	}

	setup, dir, tech, ok := detect(cfg, snap, trend)
	if !ok {
		return Decision{Discard: NoSetup}
	}

	d := Decision{Setup: setup, Direction: dir, Stale: sent.Stale}

	if !rsiAllows(cfg, dir, snap.RSI) {
		d.Discard = RSIFilter
		return d
	}

	score := sent.Clamped()
	if !sent.Stale && !sentimentAllows(cfg, dir, score) {
		d.Discard = SentimentGate
		return d
	}

	sentScore := clamp01(math.Abs(score))
	confidence := clamp01(cfg.TechnicalWeight*tech + cfg.SentimentWeight*sentScore)

	// The floor is applied before the stale discount: staleness lowers the
	// reported confidence but never discards a candidate on its own.
	if confidence < cfg.MinConfidence {
		d.Confidence = confidence
		d.Discard = LowConfidence
		return d
	}
	if sent.Stale {
		confidence = clamp01(confidence * cfg.StaleDiscount)
	}
	d.Confidence = confidence

	entry := snap.Close
	stop := stopLoss(cfg, dir, entry, snap)

	c := &Candidate{
		Instrument:     snap.Instrument,
		Direction:      dir,
		Setup:          setup,
		Entry:          entry,
		StopLoss:       stop,
		TakeProfits:    takeProfits(cfg.Targets, dir, entry, stop),
		Confidence:     confidence,
		TechnicalScore: tech,
		SentimentScore: sentScore,
		Sentiment:      score,
		Stale:          sent.Stale,
		ATR:            snap.ATR,
		CreatedAt:      snap.Time,
		Reasons:        reasons(setup, dir, trend, snap, score, sent.Stale),
	}
	d.Candidate = c
	return d
}

func detect(cfg Config, snap market.IndicatorSnapshot, trend market.TrendState) (Setup, market.Direction, float64, bool) {
	if dir, score, ok := breakout(cfg, snap); ok {
		return Breakout, dir, score, true
	}
	if dir, score, ok := pullback(cfg, snap, trend); ok {
		return Pullback, dir, score, true
	}
	return "", 0, 0, false
}

// breakout: the prior bar was in a squeeze (its band width ranked at or below
// SqueezePercentile) and this bar closed outside the prior band.
func breakout(cfg Config, snap market.IndicatorSnapshot) (market.Direction, float64, bool) {
	if !snap.HasPrior() || snap.ATR <= 0 {
		return 0, 0, false
	}
	if snap.PriorWidthRank <= 0 || snap.PriorWidthRank > cfg.SqueezePercentile {
		return 0, 0, false
	}
	switch {
	case snap.Close > snap.PriorUpper:
		return market.Long, clamp01((snap.Close - snap.PriorUpper) / snap.ATR), true
	case snap.Close < snap.PriorLower:
		return market.Short, clamp01((snap.PriorLower - snap.Close) / snap.ATR), true
	}
	return 0, 0, false
}

// pullback: price within PullbackATR ATRs of the fast EMA, trading with the trend.
// The score is 1 on the EMA and falls to 0 at the edge of the band.
func pullback(cfg Config, snap market.IndicatorSnapshot, trend market.TrendState) (market.Direction, float64, bool) {
	if snap.ATR <= 0 || snap.EMAFast <= 0 {
		return 0, 0, false
	}
	band := snap.ATR * cfg.PullbackATR
	dist := math.Abs(snap.Close - snap.EMAFast)
	if dist > band {
		return 0, 0, false
	}

	var dir market.Direction
	switch trend {
	case market.Up:
		dir = market.Long
	case market.Down:
		dir = market.Short
	default:
		return 0, 0, false
	}
	return dir, clamp01(1 - dist/band), true
}

func rsiAllows(cfg Config, dir market.Direction, rsi float64) bool {
	if cfg.RSILongMin == 0 && cfg.RSIShortMax == 0 {
		return true
	}
	if dir == market.Long {
		return rsi >= cfg.RSILongMin
	}
	return rsi <= cfg.RSIShortMax
}

func sentimentAllows(cfg Config, dir market.Direction, score float64) bool {
	if dir == market.Long {
		return score >= cfg.SentimentThreshold
	}
	return score <= -cfg.SentimentThreshold
}

func stopLoss(cfg Config, dir market.Direction, entry float64, snap market.IndicatorSnapshot) float64 {
	atrStop := entry - dir.Sign()*snap.ATR*cfg.StopATR

	swingStop, haveSwing := 0.0, false
	switch dir {
	case market.Long:
		if snap.SwingLow > 0 && snap.SwingLow < entry {
			swingStop, haveSwing = snap.SwingLow*(1-cfg.SwingBuffer), true
		}
	case market.Short:
		if snap.SwingHigh > entry {
			swingStop, haveSwing = snap.SwingHigh*(1+cfg.SwingBuffer), true
		}
	}

	switch cfg.StopPolicy {
	case StopSwing:
		if haveSwing {
			return swingStop
		}
	case StopWidest:
		if haveSwing {
			if dir == market.Long {
				return math.Min(atrStop, swingStop)
			}
			return math.Max(atrStop, swingStop)
		}
	}
	return atrStop
}

func takeProfits(targets []Target, dir market.Direction, entry, stop float64) []TakeProfit {
	risk := math.Abs(entry - stop)
	out := make([]TakeProfit, 0, len(targets))
	for _, t := range targets {
		out = append(out, TakeProfit{
			Price:    entry + dir.Sign()*risk*t.RMultiple,
			Fraction: t.Fraction,
		})
	}
	return out
}

func reasons(setup Setup, dir market.Direction, trend market.TrendState, snap market.IndicatorSnapshot, score float64, stale bool) []string {
	var out []string
	switch setup {
	case Breakout:
		if dir == market.Long {
			out = append(out, "squeeze breakout above prior upper band")
		} else {
			out = append(out, "squeeze breakout below prior lower band")
		}
	case Pullback:
		out = append(out, fmt.Sprintf("pullback to fast EMA in %s trend", trend))
	}
	out = append(out, fmt.Sprintf("RSI %.1f", snap.RSI))
	label := SentimentLabel(score)
	if stale {
		label += " (stale)"
	}
	return append(out, label)
}

// SentimentLabel describes a sentiment score in words.
func SentimentLabel(score float64) string {
	switch {
	case score >= 0.5:
		return "Very Positive Sentiment"
	case score >= 0.2:
		return "Positive Sentiment"
	case score > -0.2:
		return "Neutral Sentiment"
	case score > -0.5:
		return "Negative Sentiment"
	}
	return "Very Negative Sentiment"
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
