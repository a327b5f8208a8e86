package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bar(i int, o, h, l, c float64) market.Bar {
	return market.Bar{
		Instrument: "BTCUSDT",
		Time:       t0.Add(time.Duration(i) * time.Hour),
		Open:       o,
		High:       h,
		Low:        l,
		Close:      c,
	}
}

func TestRSI(t *testing.T) {
	t.Parallel()

	t.Run("all gains", func(t *testing.T) {
		r := NewRSI(3)
		for i, c := range []float64{1, 2, 3, 4} {
			r.Update(bar(i, c, c, c, c))
		}
		require.True(t, r.Ready())
		assert.Equal(t, 100.0, r.Value())
	})

	t.Run("balanced", func(t *testing.T) {
		r := NewRSI(2)
		for i, c := range []float64{10, 11, 10} {
			r.Update(bar(i, c, c, c, c))
		}
		require.True(t, r.Ready())
		assert.InDelta(t, 50.0, r.Value(), 1e-9)
	})

	t.Run("flat", func(t *testing.T) {
		r := NewRSI(2)
		for i := 0; i < 3; i++ {
			r.Update(bar(i, 5, 5, 5, 5))
		}
		assert.Equal(t, 50.0, r.Value())
	})
}

func TestBollinger(t *testing.T) {
	t.Parallel()

	b := NewBollinger(3, 2)
	assert.False(t, b.Ready())

	for i, c := range []float64{1, 2, 3} {
		b.Update(bar(i, c, c, c, c))
	}
	require.True(t, b.Ready())

	sd := math.Sqrt(2.0 / 3.0)
	middle, upper, lower := b.Bands()
	assert.InDelta(t, 2.0, middle, 1e-9)
	assert.InDelta(t, 2+2*sd, upper, 1e-9)
	assert.InDelta(t, 2-2*sd, lower, 1e-9)
	assert.InDelta(t, 4*sd/2*100, b.Width(), 1e-9)
	assert.Equal(t, b.Width(), b.Value())
}

func TestRankWindow(t *testing.T) {
	t.Parallel()

	w := newRankWindow(4)
	for _, v := range []float64{5, 4, 3, 2, 1} {
		w.push(v)
	}
	// window is 4,3,2,1 and newest is the smallest
	assert.InDelta(t, 0.25, w.rank(), 1e-9)

	w.push(10)
	assert.InDelta(t, 1.0, w.rank(), 1e-9)
}

func TestSwingTracker(t *testing.T) {
	t.Parallel()

	s := NewSwingTracker(1)
	s.Update(bar(0, 1, 1, 0.5, 1))
	s.Update(bar(1, 3, 3, 2.5, 3))
	assert.Zero(t, s.High(), "swing needs a later bar to confirm")

	s.Update(bar(2, 2, 2, 0.2, 2))
	assert.Equal(t, 3.0, s.High())

	s.Update(bar(3, 4, 4, 1, 4))
	assert.Equal(t, 0.2, s.Low())
}

func smallConfig() Config {
	return Config{
		EMAFast:       2,
		EMASlow:       3,
		RSIPeriod:     2,
		ATRPeriod:     2,
		BBPeriod:      3,
		BBStdDev:      2,
		WidthLookback: 5,
		SwingWindow:   1,
	}
}

func TestSnapshotterWarmupAndExactTime(t *testing.T) {
	t.Parallel()

	s := NewSnapshotter(smallConfig())

	require.NoError(t, s.Observe(bar(0, 100, 101, 99, 100)))
	_, err := s.SnapshotFor("BTCUSDT", bar(0, 0, 0, 0, 0).Time)
	assert.ErrorIs(t, err, ErrUnavailable)

	prices := []float64{101, 103, 102, 104, 106}
	for i, c := range prices {
		require.NoError(t, s.Observe(bar(i+1, c-1, c+1, c-2, c)))
	}

	last := bar(len(prices), 0, 0, 0, 0).Time
	snap, err := s.SnapshotFor("BTCUSDT", last)
	require.NoError(t, err)
	assert.Equal(t, last, snap.Time)
	assert.Equal(t, 106.0, snap.Close)
	assert.Greater(t, snap.ATR, 0.0)
	assert.Greater(t, snap.BollingerUpper, snap.BollingerLower)
	assert.Equal(t, market.Up, snap.Trend())

	// never answers for a bar it has not seen
	_, err = s.SnapshotFor("BTCUSDT", last.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = s.SnapshotFor("ETHUSDT", last)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSnapshotterPriorBands(t *testing.T) {
	t.Parallel()

	s := NewSnapshotter(smallConfig())
	closes := []float64{100, 101, 102, 101, 103, 104}

	var prev market.IndicatorSnapshot
	for i, c := range closes {
		b := bar(i, c, c+1, c-1, c)
		require.NoError(t, s.Observe(b))
		snap, err := s.SnapshotFor("BTCUSDT", b.Time)
		if err != nil {
			continue
		}
		if prev.BollingerUpper != 0 {
			assert.Equal(t, prev.BollingerUpper, snap.PriorUpper)
			assert.Equal(t, prev.BollingerLower, snap.PriorLower)
			assert.Equal(t, prev.WidthRank, snap.PriorWidthRank)
		}
		prev = snap
	}
	assert.NotZero(t, prev.PriorUpper)
}

func TestSnapshotterRejectsOutOfOrder(t *testing.T) {
	t.Parallel()

	s := NewSnapshotter(smallConfig())
	require.NoError(t, s.Observe(bar(1, 1, 1, 1, 1)))
	assert.Error(t, s.Observe(bar(1, 1, 1, 1, 1)))
	assert.Error(t, s.Observe(bar(0, 1, 1, 1, 1)))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.EMAFast = 300
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.WidthLookback = 1
	assert.Error(t, bad.Validate())
}
