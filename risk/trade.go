package risk

import (
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

// Trade is the summary of a closed (or, at the end of a run, still open) position.
type Trade struct {
	ID         string
	Instrument string
	Direction  market.Direction
	Setup      signals.Setup
	Confidence float64
	Stale      bool

	Entry     float64
	StopLoss  float64
	FinalStop float64

	CreatedAt time.Time
	OpenedAt  time.Time
	ClosedAt  time.Time

	State       State
	CloseReason CloseReason
	Filled      bool
	TargetsHit  int
	Exits       []Exit

	// Realized R-multiple over all exits.
	R float64

	// Set for positions still running when a replay ended; R then includes
	// the remaining size marked at the last close.
	OpenAtEnd bool
}

// Trade snapshots the position.
func (p *Position) Trade() Trade {
	t := Trade{
		ID:          p.ID,
		Instrument:  p.Instrument,
		Direction:   p.Direction,
		Setup:       p.Setup,
		Confidence:  p.Confidence,
		Stale:       p.Stale,
		Entry:       p.Entry,
		StopLoss:    p.OriginalStop,
		FinalStop:   p.CurrentStop,
		CreatedAt:   p.CreatedAt,
		OpenedAt:    p.OpenedAt,
		ClosedAt:    p.ClosedAt,
		State:       p.State,
		CloseReason: p.CloseReason,
		Filled:      p.Filled(),
		TargetsHit:  len(p.TargetsHit),
		Exits:       append([]Exit(nil), p.Exits...),
		R:           p.RealizedR(),
	}
	if p.State != Closed {
		t.OpenAtEnd = true
		t.ClosedAt = p.lastTime
		t.R += p.UnrealizedR(p.lastClose)
	}
	return t
}

// Win, Loss and Breakeven classify a trade by its R with a small tolerance.
func (t Trade) Win() bool       { return t.R > breakevenBand }
func (t Trade) Loss() bool      { return t.R < -breakevenBand }
func (t Trade) Breakeven() bool { return !t.Win() && !t.Loss() }

const breakevenBand = 1e-6
