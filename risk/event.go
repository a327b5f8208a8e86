package risk

import "time"

type EventKind string

const (
	EventAccepted        EventKind = "accepted"
	EventRejected        EventKind = "rejected"
	EventDiscarded       EventKind = "discarded"
	EventSkipped         EventKind = "skipped"
	EventFilled          EventKind = "filled"
	EventTakeProfit      EventKind = "take_profit"
	EventTrailingStarted EventKind = "trailing_started"
	EventStopMoved       EventKind = "stop_moved"
	EventStopHit         EventKind = "stop_hit"
	EventTargetsHit      EventKind = "targets_hit"
	EventCancelled       EventKind = "cancelled"
	EventExpired         EventKind = "expired"
)

// Terminal reports whether the event closes its position.
func (k EventKind) Terminal() bool {
	switch k {
	case EventStopHit, EventTargetsHit, EventCancelled, EventExpired:
		return true
	}
	return false
}

// Event is one entry in the append-only lifecycle log. PositionID and Seq
// together identify it; Seq counts from 0 per position.
//
// Qualification outcomes that never produce a position (discarded, skipped,
// rejected) carry the derived ID the position would have had.
type Event struct {
	PositionID string
	Instrument string
	Seq        int
	Time       time.Time
	Kind       EventKind

	Price     float64
	State     State
	Target    int     // 1-based take-profit index, 0 when not applicable
	Fraction  float64 // size fraction closed by this event
	Stop      float64 // stop in force after the event
	Remaining float64

	Confidence float64
	Stale      bool
	Reason     string
}

// Sink receives lifecycle events. Delivery is at-least-once: consumers
// should treat (PositionID, Seq) as an idempotency key.
type Sink interface {
	Emit(Event) error
}

// TradeRecorder is implemented by sinks that also store trade summaries.
type TradeRecorder interface {
	RecordTrade(Trade) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event) error

func (f SinkFunc) Emit(e Event) error { return f(e) }
