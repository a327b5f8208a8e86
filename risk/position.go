package risk

import (
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

// sizeEpsilon absorbs float drift when summing target fractions.
const sizeEpsilon = 1e-9

// Exit is a fill that reduced the position.
type Exit struct {
	Time     time.Time
	Kind     EventKind
	Target   int
	Price    float64
	Fraction float64
}

// Position tracks one accepted signal through its lifecycle. It is owned by
// a single Machine caller and is not safe for concurrent use.
type Position struct {
	ID         string
	Instrument string
	Direction  market.Direction
	Setup      signals.Setup
	Confidence float64
	Stale      bool

	Entry        float64
	OriginalStop float64
	CurrentStop  float64
	TakeProfits  []signals.TakeProfit
	ATR          float64

	// Remaining size as a fraction of the original.
	Remaining  float64
	TargetsHit []int // 0-based indices in the order they were hit

	State       State
	CloseReason CloseReason

	CreatedAt time.Time
	OpenedAt  time.Time
	ClosedAt  time.Time

	BarsPending int
	Exits       []Exit

	lastTime  time.Time
	lastClose float64
	seq       int
}

// Risk is the initial stop distance.
func (p *Position) Risk() float64 {
	return abs(p.Entry - p.OriginalStop)
}

func (p *Position) IsClosed() bool {
	return p.State == Closed
}

// Filled reports whether the entry ever traded.
func (p *Position) Filled() bool {
	return !p.OpenedAt.IsZero()
}

// RealizedR sums the R-multiple of every exit weighted by its fraction.
func (p *Position) RealizedR() float64 {
	r := 0.0
	for _, x := range p.Exits {
		r += x.Fraction * RMultiple(p.Direction, p.Entry, p.OriginalStop, x.Price)
	}
	return r
}

// UnrealizedR marks the remaining size at the given price.
func (p *Position) UnrealizedR(price float64) float64 {
	if !p.State.Filled() {
		return 0
	}
	return p.Remaining * RMultiple(p.Direction, p.Entry, p.OriginalStop, price)
}

func (p *Position) targetHit(i int) bool {
	for _, h := range p.TargetsHit {
		if h == i {
			return true
		}
	}
	return false
}

func (p *Position) event(kind EventKind, t time.Time, price float64) Event {
	e := Event{
		PositionID: p.ID,
		Instrument: p.Instrument,
		Seq:        p.seq,
		Time:       t,
		Kind:       kind,
		Price:      price,
		State:      p.State,
		Stop:       p.CurrentStop,
		Remaining:  p.Remaining,
		Confidence: p.Confidence,
		Stale:      p.Stale,
	}
	p.seq++
	return e
}

// tighten moves the stop only toward the favorable side.
func (p *Position) tighten(stop float64) bool {
	if p.Direction.Sign()*(stop-p.CurrentStop) <= 0 {
		return false
	}
	p.CurrentStop = stop
	return true
}

func (p *Position) close(reason CloseReason, t time.Time) {
	p.State = Closed
	p.CloseReason = reason
	p.ClosedAt = t
}
