package replay

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrOutOfOrder is returned when a bar is not strictly after the previous
	// bar for its instrument. It ends the run.
	ErrOutOfOrder = errors.New("bar out of order")

	// ErrNoPosition is returned by Cancel when the instrument is flat.
	ErrNoPosition = errors.New("no open position")
)

// CausalityViolation reports data timestamped after the bar being
// processed. It is fatal: results produced after one cannot be trusted.
type CausalityViolation struct {
	Instrument string
	BarTime    time.Time
	Source     string // "indicators" or "sentiment"
	DataTime   time.Time
}

func (e *CausalityViolation) Error() string {
	return fmt.Sprintf("causality violation: %s %s data at %s is after bar %s",
		e.Instrument, e.Source, e.DataTime.Format(time.RFC3339Nano), e.BarTime.Format(time.RFC3339Nano))
}
