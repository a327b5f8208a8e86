package risk

import "github.com/dumbCodesOnly/SigV0.01/market"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// RMultiple expresses the move from entry to exit in units of the initial
// stop distance, signed by direction.
func RMultiple(dir market.Direction, entry, stop, exit float64) float64 {
	risk := abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return dir.Sign() * (exit - entry) / risk
}
