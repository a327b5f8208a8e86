package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

func closes(cs ...float64) []market.Bar {
	bars := make([]market.Bar, len(cs))
	for i, c := range cs {
		bars[i] = bar(i, c, c, c, c)
	}
	return bars
}

func TestSmoother(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		s      smoother
		inputs []float64
		want   float64
	}{
		// seed = mean(2,4,6) = 4, then 4 + 0.5*(8-4)
		{"ema seed then step", emaSmoother(3), []float64{2, 4, 6, 8}, 6},
		// seed = 3, then 3 + (9-3)/3
		{"wilder seed then step", wilderSmoother(3), []float64{2, 3, 4, 9}, 5},
		{"seed only", wilderSmoother(2), []float64{1, 3}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.s
			for i, x := range tt.inputs {
				assert.Equal(t, i >= s.n, s.ready(), "ready before input %d", i)
				s.push(x)
			}
			require.True(t, s.ready())
			assert.InDelta(t, tt.want, s.value(), 1e-12)
		})
	}

	var zero smoother
	zero.push(1)
	assert.False(t, zero.ready())
	assert.Zero(t, zero.value())
}

func TestEMA(t *testing.T) {
	t.Parallel()

	e := NewEMA(3)
	v, err := Last(e, closes(10, 11, 12))
	require.NoError(t, err)
	assert.InDelta(t, 11.0, v, 1e-12)

	e.Update(bar(3, 15, 15, 15, 15))
	assert.InDelta(t, 13.0, e.Value(), 1e-12)

	_, err = Last(NewEMA(5), closes(1, 2))
	assert.Error(t, err)
}

func TestATR(t *testing.T) {
	t.Parallel()

	bars := []market.Bar{
		{High: 10, Low: 8, Close: 9},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 11, Low: 9, Close: 10},
		{High: 12, Low: 10, Close: 11},
		{High: 13, Low: 11, Close: 12},
	}

	a := NewATR(3)
	for _, b := range bars[:3] {
		a.Update(b)
	}
	assert.False(t, a.Ready(), "first bar only seeds the previous close")
	assert.Zero(t, a.Value())

	v, err := Last(a, bars[3:])
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestTrueRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bar  market.Bar
		prev float64
		want float64
	}{
		{"inside range", market.Bar{High: 110, Low: 100}, 104, 10},
		{"gap up", market.Bar{High: 110, Low: 106}, 100, 10},
		{"gap down", market.Bar{High: 95, Low: 92}, 100, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trueRange(tt.bar, tt.prev))
		})
	}
}

func TestIndicatorsSatisfyInterface(t *testing.T) {
	t.Parallel()

	inds := map[string]Indicator{
		"ema":       NewEMA(3),
		"atr":       NewATR(3),
		"rsi":       NewRSI(3),
		"bollinger": NewBollinger(3, 2),
	}
	bars := closes(1, 2, 3, 2, 3, 4)
	for name, ind := range inds {
		v, err := Last(ind, bars)
		require.NoError(t, err, name)
		assert.GreaterOrEqual(t, v, 0.0, name)
	}
}
