// Package indicators provides streaming technical indicators and a causal
// snapshot provider built on top of them.
package indicators

import (
	"fmt"

	"github.com/dumbCodesOnly/SigV0.01/market"
)

// Indicator consumes closed bars one at a time. Value is 0 until Ready.
type Indicator interface {
	Update(b market.Bar)
	Ready() bool
	Value() float64
}

// Last feeds bars through ind in order and returns its final value.
func Last(ind Indicator, bars []market.Bar) (float64, error) {
	for _, b := range bars {
		ind.Update(b)
	}
	if !ind.Ready() {
		return 0, fmt.Errorf("indicators: %d bars are not enough to warm up", len(bars))
	}
	return ind.Value(), nil
}
