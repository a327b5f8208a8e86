package risk

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

// ErrInvalidSignal matches any *ValidationError via errors.Is.
var ErrInvalidSignal = errors.New("invalid signal")

type Violation struct {
	Code string
	Msg  string
}

// ValidationError lists everything wrong with a candidate signal. A candidate
// that fails validation never becomes a position.
type ValidationError struct {
	Instrument string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Code+": "+v.Msg)
	}
	return fmt.Sprintf("invalid signal for %s: %s", e.Instrument, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidSignal
}

// Has reports whether a violation with the given code was recorded.
func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(code, msg string) {
	e.Violations = append(e.Violations, Violation{Code: code, Msg: msg})
}

// Validate checks a candidate before acceptance.
func Validate(c signals.Candidate) error {
	e := &ValidationError{Instrument: c.Instrument}

	if c.Direction != market.Long && c.Direction != market.Short {
		e.add("BAD_DIRECTION", fmt.Sprintf("direction %d is neither long nor short", c.Direction))
		return e
	}
	if !(c.Entry > 0) || math.IsInf(c.Entry, 0) {
		e.add("BAD_ENTRY", fmt.Sprintf("entry %.6f must be a positive price", c.Entry))
		return e
	}

	dir := c.Direction.Sign()
	if !(dir*(c.Entry-c.StopLoss) > 0) {
		e.add("NON_POSITIVE_STOP_DISTANCE",
			fmt.Sprintf("stop %.6f is not on the losing side of entry %.6f", c.StopLoss, c.Entry))
	}

	if len(c.TakeProfits) == 0 {
		e.add("EMPTY_TARGETS", "at least one take-profit is required")
	}

	sum := 0.0
	for i, tp := range c.TakeProfits {
		if !(dir*(tp.Price-c.Entry) > 0) {
			e.add("TARGET_WRONG_SIDE",
				fmt.Sprintf("target %d price %.6f is not beyond entry %.6f", i+1, tp.Price, c.Entry))
		}
		if i > 0 && !(dir*(tp.Price-c.TakeProfits[i-1].Price) > 0) {
			e.add("NON_MONOTONIC_TARGETS",
				fmt.Sprintf("target %d price %.6f does not extend target %d", i+1, tp.Price, i))
		}
		if !(tp.Fraction > 0) || tp.Fraction > 1 {
			e.add("BAD_FRACTION", fmt.Sprintf("target %d fraction %.4f outside (0,1]", i+1, tp.Fraction))
		}
		sum += tp.Fraction
	}
	if sum > 1+sizeEpsilon {
		e.add("FRACTIONS_EXCEED_ONE", fmt.Sprintf("target fractions sum to %.4f", sum))
	}

	if c.Confidence < 0 || c.Confidence > 1 || math.IsNaN(c.Confidence) {
		e.add("BAD_CONFIDENCE", fmt.Sprintf("confidence %.4f outside [0,1]", c.Confidence))
	}

	if len(e.Violations) > 0 {
		return e
	}
	return nil
}
