package market

import (
	"fmt"
	"strings"
)

// Direction: +1 long, -1 short
type Direction int8

const (
	Long  Direction = +1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return fmt.Sprintf("direction(%d)", int8(d))
}

// Sign returns +1 for long and -1 for short as a float multiplier.
func (d Direction) Sign() float64 {
	return float64(d)
}

// ParseDirection accepts "long"/"short" (case-insensitive) and "buy"/"sell".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// TrendState is derived from the fast/slow EMA relationship on every bar.
type TrendState int8

const (
	Flat TrendState = iota
	Up
	Down
)

func (t TrendState) String() string {
	switch t {
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return "flat"
}

// TrendOf derives the trend from the EMA pair. Equal (or unset) EMAs give Flat.
func TrendOf(emaFast, emaSlow float64) TrendState {
	switch {
	case emaFast == 0 || emaSlow == 0:
		return Flat
	case emaFast > emaSlow:
		return Up
	case emaFast < emaSlow:
		return Down
	}
	return Flat
}
