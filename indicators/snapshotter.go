package indicators

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// ErrUnavailable is returned when no snapshot exists for the requested bar,
// either because the bar was never observed or the indicators are warming up.
var ErrUnavailable = errors.New("indicator snapshot unavailable")

// Config holds indicator periods for a Snapshotter.
type Config struct {
	EMAFast       int     `json:"ema_fast" yaml:"ema_fast"`
	EMASlow       int     `json:"ema_slow" yaml:"ema_slow"`
	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	ATRPeriod     int     `json:"atr_period" yaml:"atr_period"`
	BBPeriod      int     `json:"bb_period" yaml:"bb_period"`
	BBStdDev      float64 `json:"bb_std" yaml:"bb_std"`
	WidthLookback int     `json:"width_lookback" yaml:"width_lookback"`
	SwingWindow   int     `json:"swing_window" yaml:"swing_window"`
}

// DefaultConfig mirrors the periods the signal rules were tuned with.
func DefaultConfig() Config {
	return Config{
		EMAFast:       50,
		EMASlow:       200,
		RSIPeriod:     14,
		ATRPeriod:     14,
		BBPeriod:      20,
		BBStdDev:      2.0,
		WidthLookback: 120,
		SwingWindow:   5,
	}
}

func (c Config) Validate() error {
	if c.EMAFast <= 0 || c.EMASlow <= 0 {
		return fmt.Errorf("indicators: ema periods must be positive")
	}
	if c.EMAFast >= c.EMASlow {
		return fmt.Errorf("indicators: ema_fast must be < ema_slow")
	}
	if c.RSIPeriod <= 0 || c.ATRPeriod <= 0 || c.BBPeriod <= 0 {
		return fmt.Errorf("indicators: rsi/atr/bb periods must be positive")
	}
	if c.BBStdDev <= 0 {
		return fmt.Errorf("indicators: bb_std must be positive")
	}
	if c.WidthLookback <= 1 {
		return fmt.Errorf("indicators: width_lookback must be > 1")
	}
	if c.SwingWindow <= 0 {
		return fmt.Errorf("indicators: swing_window must be positive")
	}
	return nil
}

// Snapshotter is an indicator source that is handed closed bars one at a time
// through Observe and only ever answers for bars it has already seen. Each
// instrument has its own lane; lanes for different instruments may be driven
// from different goroutines.
type Snapshotter struct {
	cfg Config

	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	fast   *EMA
	slow   *EMA
	rsi    *RSI
	atr    *ATR
	bb     *Bollinger
	widths *rankWindow
	swings *SwingTracker

	last     market.IndicatorSnapshot
	lastTime time.Time
	ready    bool

	priorUpper, priorLower, priorRank float64
}

func NewSnapshotter(cfg Config) *Snapshotter {
	return &Snapshotter{cfg: cfg, lanes: make(map[string]*lane)}
}

func (s *Snapshotter) lane(instrument string) *lane {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lanes[instrument]
	if !ok {
		l = &lane{
			fast:   NewEMA(s.cfg.EMAFast),
			slow:   NewEMA(s.cfg.EMASlow),
			rsi:    NewRSI(s.cfg.RSIPeriod),
			atr:    NewATR(s.cfg.ATRPeriod),
			bb:     NewBollinger(s.cfg.BBPeriod, s.cfg.BBStdDev),
			widths: newRankWindow(s.cfg.WidthLookback),
			swings: NewSwingTracker(s.cfg.SwingWindow),
		}
		s.lanes[instrument] = l
	}
	return l
}

// Observe consumes the next closed bar for b.Instrument. Bars must arrive in
// strictly increasing time order per instrument.
func (s *Snapshotter) Observe(b market.Bar) error {
	l := s.lane(b.Instrument)
	if !l.lastTime.IsZero() && !b.Time.After(l.lastTime) {
		return fmt.Errorf("indicators: %s bar %s not after %s",
			b.Instrument, b.Time.Format(time.RFC3339), l.lastTime.Format(time.RFC3339))
	}

	// Swing levels are read before this bar is added so they stay strictly prior.
	swingHigh, swingLow := l.swings.High(), l.swings.Low()

	l.fast.Update(b)
	l.slow.Update(b)
	l.rsi.Update(b)
	l.atr.Update(b)
	l.bb.Update(b)
	l.swings.Update(b)

	var upper, lower, width, rank float64
	if l.bb.Ready() {
		_, upper, lower = l.bb.Bands()
		width = l.bb.Width()
		l.widths.push(width)
		rank = l.widths.rank()
	}

	l.ready = l.fast.Ready() && l.slow.Ready() && l.rsi.Ready() && l.atr.Ready() && l.bb.Ready()
	l.last = market.IndicatorSnapshot{
		Instrument:     b.Instrument,
		Time:           b.Time,
		EMAFast:        l.fast.Value(),
		EMASlow:        l.slow.Value(),
		RSI:            l.rsi.Value(),
		ATR:            l.atr.Value(),
		BollingerUpper: upper,
		BollingerLower: lower,
		BollingerWidth: width,
		WidthRank:      rank,
		PriorUpper:     l.priorUpper,
		PriorLower:     l.priorLower,
		PriorWidthRank: l.priorRank,
		SwingHigh:      swingHigh,
		SwingLow:       swingLow,
		Close:          b.Close,
		High:           b.High,
		Low:            b.Low,
	}
	l.lastTime = b.Time
	l.priorUpper, l.priorLower, l.priorRank = upper, lower, rank
	return nil
}

// SnapshotFor returns the snapshot computed for exactly barTime.
func (s *Snapshotter) SnapshotFor(instrument string, barTime time.Time) (market.IndicatorSnapshot, error) {
	l := s.lane(instrument)
	if l.lastTime.IsZero() || !l.lastTime.Equal(barTime) {
		return market.IndicatorSnapshot{}, fmt.Errorf("%w: %s has no bar at %s",
			ErrUnavailable, instrument, barTime.Format(time.RFC3339))
	}
	if !l.ready {
		return market.IndicatorSnapshot{}, fmt.Errorf("%w: %s warming up", ErrUnavailable, instrument)
	}
	return l.last, nil
}
