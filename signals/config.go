package signals

import "fmt"

// StopPolicy selects how the initial stop-loss is placed.
type StopPolicy string

const (
	// StopATR places the stop StopATR ATRs away from entry.
	StopATR StopPolicy = "atr"
	// StopSwing places the stop beyond the nearest prior swing point,
	// falling back to StopATR when no swing sits on the correct side of entry.
	StopSwing StopPolicy = "swing"
	// StopWidest uses whichever of the two is farther from entry.
	StopWidest StopPolicy = "widest"
)

// Target is one rung of the take-profit ladder: a risk multiple and the
// fraction of the original size closed there.
type Target struct {
	RMultiple float64 `json:"r" yaml:"r"`
	Fraction  float64 `json:"fraction" yaml:"fraction"`
}

// Config holds qualification parameters. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	TechnicalWeight float64 `json:"technical_weight" yaml:"technical_weight"`
	SentimentWeight float64 `json:"sentiment_weight" yaml:"sentiment_weight"`
	MinConfidence   float64 `json:"min_confidence" yaml:"min_confidence"`

	SentimentThreshold float64 `json:"sentiment_threshold" yaml:"sentiment_threshold"`
	StaleDiscount      float64 `json:"stale_discount" yaml:"stale_discount"`

	PullbackATR       float64 `json:"pullback_atr" yaml:"pullback_atr"`
	SqueezePercentile float64 `json:"squeeze_percentile" yaml:"squeeze_percentile"`

	// RSI filter; both zero disables it.
	RSILongMin  float64 `json:"rsi_long_min" yaml:"rsi_long_min"`
	RSIShortMax float64 `json:"rsi_short_max" yaml:"rsi_short_max"`

	StopPolicy  StopPolicy `json:"stop_policy" yaml:"stop_policy"`
	StopATR     float64    `json:"stop_atr" yaml:"stop_atr"`
	SwingBuffer float64    `json:"swing_buffer" yaml:"swing_buffer"` // fraction of price, 0.002 = 0.2%

	Targets []Target `json:"targets" yaml:"targets"`
}

func DefaultConfig() Config {
	return Config{
		TechnicalWeight:    0.6,
		SentimentWeight:    0.4,
		MinConfidence:      0.6,
		SentimentThreshold: 0.2,
		StaleDiscount:      0.7,
		PullbackATR:        1.0,
		SqueezePercentile:  0.2,
		RSILongMin:         50,
		RSIShortMax:        50,
		StopPolicy:         StopWidest,
		StopATR:            2.0,
		SwingBuffer:        0.002,
		Targets: []Target{
			{RMultiple: 1.0, Fraction: 0.5},
			{RMultiple: 1.5, Fraction: 0.3},
			{RMultiple: 2.5, Fraction: 0.2},
		},
	}
}

func (c Config) Validate() error {
	if c.TechnicalWeight < 0 || c.SentimentWeight < 0 || c.TechnicalWeight+c.SentimentWeight <= 0 {
		return fmt.Errorf("signal: weights must be non-negative with a positive sum")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("signal: min_confidence must be between 0 and 1")
	}
	if c.SentimentThreshold < 0 || c.SentimentThreshold > 1 {
		return fmt.Errorf("signal: sentiment_threshold must be between 0 and 1")
	}
	if c.StaleDiscount <= 0 || c.StaleDiscount > 1 {
		return fmt.Errorf("signal: stale_discount must be in (0,1]")
	}
	if c.PullbackATR <= 0 {
		return fmt.Errorf("signal: pullback_atr must be positive")
	}
	if c.SqueezePercentile <= 0 || c.SqueezePercentile > 1 {
		return fmt.Errorf("signal: squeeze_percentile must be in (0,1]")
	}
	switch c.StopPolicy {
	case StopATR, StopSwing, StopWidest:
	default:
		return fmt.Errorf("signal: unknown stop_policy %q", c.StopPolicy)
	}
	if c.StopATR <= 0 {
		return fmt.Errorf("signal: stop_atr must be positive")
	}
	if c.SwingBuffer < 0 || c.SwingBuffer >= 1 {
		return fmt.Errorf("signal: swing_buffer must be in [0,1)")
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("signal: at least one target is required")
	}
	sum := 0.0
	prev := 0.0
	for i, t := range c.Targets {
		if t.RMultiple <= prev {
			return fmt.Errorf("signal: target %d r multiple %.2f must increase", i+1, t.RMultiple)
		}
		if t.Fraction <= 0 {
			return fmt.Errorf("signal: target %d fraction must be positive", i+1)
		}
		prev = t.RMultiple
		sum += t.Fraction
	}
	if sum > 1+1e-9 {
		return fmt.Errorf("signal: target fractions sum to %.3f (> 1)", sum)
	}
	return nil
}
