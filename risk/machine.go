package risk

import (
	"errors"
	"fmt"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/pkg/id"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

var ErrPositionClosed = errors.New("position already closed")

// Machine drives positions through their lifecycle. It holds only the
// policy; all mutable state lives in the Position.
type Machine struct {
	policy Policy
}

func NewMachine(p Policy) (*Machine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Machine{policy: p}, nil
}

func (m *Machine) Policy() Policy { return m.policy }

// PositionID derives the stable identifier for a signal on instrument at t.
func PositionID(instrument string, t time.Time) string {
	return id.Derive(instrument, t)
}

// Accept validates the candidate and opens a pending position for it.
// On failure the returned event has kind rejected and the error is a
// *ValidationError.
func (m *Machine) Accept(c signals.Candidate) (*Position, Event, error) {
	pid := PositionID(c.Instrument, c.CreatedAt)
	if err := Validate(c); err != nil {
		return nil, Event{
			PositionID: pid,
			Instrument: c.Instrument,
			Time:       c.CreatedAt,
			Kind:       EventRejected,
			Price:      c.Entry,
			Confidence: c.Confidence,
			Stale:      c.Stale,
			Reason:     err.Error(),
		}, err
	}

	p := &Position{
		ID:           pid,
		Instrument:   c.Instrument,
		Direction:    c.Direction,
		Setup:        c.Setup,
		Confidence:   c.Confidence,
		Stale:        c.Stale,
		Entry:        c.Entry,
		OriginalStop: c.StopLoss,
		CurrentStop:  c.StopLoss,
		TakeProfits:  append([]signals.TakeProfit(nil), c.TakeProfits...),
		ATR:          c.ATR,
		Remaining:    1,
		State:        Pending,
		CreatedAt:    c.CreatedAt,
		lastTime:     c.CreatedAt,
		lastClose:    c.Entry,
	}
	ev := p.event(EventAccepted, c.CreatedAt, c.Entry)
	ev.Reason = string(c.Setup)
	return p, ev, nil
}

// Step advances the position by one closed bar. atr is the current ATR for
// trailing; pass 0 when unavailable and the trailing stop holds.
//
// Bars at or before the signal bar, or not after the last bar stepped, are
// ignored. A signal never fills on the bar that produced it.
func (m *Machine) Step(p *Position, bar market.Bar, atr float64) []Event {
	if p.State == Closed || !bar.Time.After(p.lastTime) {
		return nil
	}
	p.lastTime = bar.Time
	p.lastClose = bar.Close

	if p.State == Pending {
		return m.stepPending(p, bar)
	}

	var events []Event
	if m.policy.SameBar == StopFirst && m.stopReached(p, bar) {
		return append(events, m.stopOut(p, bar))
	}

	events = append(events, m.takeProfits(p, bar)...)
	if p.State == Closed {
		return events
	}

	if m.policy.SameBar == TargetFirst && m.stopReached(p, bar) {
		return append(events, m.stopOut(p, bar))
	}

	return append(events, m.trail(p, bar, atr)...)
}

// On the fill bar only the stop is tested: the intrabar path between the
// entry touch and any target is unknown.
func (m *Machine) stepPending(p *Position, bar market.Bar) []Event {
	if bar.Touches(p.Entry) {
		p.State = Open
		p.OpenedAt = bar.Time
		events := []Event{p.event(EventFilled, bar.Time, p.Entry)}
		if m.stopReached(p, bar) {
			events = append(events, m.stopOut(p, bar))
		}
		return events
	}

	p.BarsPending++
	if m.policy.PendingExpiryBars > 0 && p.BarsPending >= m.policy.PendingExpiryBars {
		p.close(Expired, bar.Time)
		ev := p.event(EventExpired, bar.Time, bar.Close)
		ev.Reason = fmt.Sprintf("unfilled after %d bars", p.BarsPending)
		return []Event{ev}
	}
	return nil
}

func (m *Machine) stopReached(p *Position, bar market.Bar) bool {
	if p.Direction == market.Long {
		return bar.Low <= p.CurrentStop
	}
	return bar.High >= p.CurrentStop
}

func targetReached(p *Position, bar market.Bar, price float64) bool {
	if p.Direction == market.Long {
		return bar.High >= price
	}
	return bar.Low <= price
}

// stopOut closes the remaining size at the stop. Remaining is left as it
// was so the event records how much size the stop took.
func (m *Machine) stopOut(p *Position, bar market.Bar) Event {
	frac := p.Remaining
	p.Exits = append(p.Exits, Exit{
		Time:     bar.Time,
		Kind:     EventStopHit,
		Price:    p.CurrentStop,
		Fraction: frac,
	})
	p.close(StopHit, bar.Time)
	ev := p.event(EventStopHit, bar.Time, p.CurrentStop)
	ev.Fraction = frac
	return ev
}

// takeProfits fills targets in index order; a target is never taken
// before the ones nearer to entry.
func (m *Machine) takeProfits(p *Position, bar market.Bar) []Event {
	var events []Event
	for i, tp := range p.TakeProfits {
		if p.targetHit(i) {
			continue
		}
		if !targetReached(p, bar, tp.Price) {
			break
		}

		p.TargetsHit = append(p.TargetsHit, i)
		p.Remaining -= tp.Fraction
		if p.Remaining < sizeEpsilon {
			p.Remaining = 0
		}
		p.Exits = append(p.Exits, Exit{
			Time:     bar.Time,
			Kind:     EventTakeProfit,
			Target:   i + 1,
			Price:    tp.Price,
			Fraction: tp.Fraction,
		})

		if p.Remaining == 0 {
			p.close(AllTargetsHit, bar.Time)
			ev := p.event(EventTargetsHit, bar.Time, tp.Price)
			ev.Target = i + 1
			ev.Fraction = tp.Fraction
			return append(events, ev)
		}

		m.afterTarget(p)
		ev := p.event(EventTakeProfit, bar.Time, tp.Price)
		ev.Target = i + 1
		ev.Fraction = tp.Fraction
		events = append(events, ev)
	}
	return events
}

func (m *Machine) afterTarget(p *Position) {
	hits := len(p.TargetsHit)
	be := m.policy.BreakevenAfterTP
	switch {
	case p.State == Trailing:
		// keep trailing
	case be > 0 && hits >= be:
		p.tighten(p.Entry)
		p.State = BreakevenArmed
	default:
		p.State = PartiallyClosed
	}
}

func (m *Machine) trail(p *Position, bar market.Bar, atr float64) []Event {
	tr := m.policy.Trailing
	if !tr.Enabled || atr <= 0 {
		return nil
	}

	var events []Event
	dir := p.Direction.Sign()
	if p.State == BreakevenArmed {
		trigger := p.TakeProfits[0].Price + dir*tr.ActivationATR*atr
		if dir*(bar.Close-trigger) < 0 {
			return nil
		}
		p.State = Trailing
		events = append(events, p.event(EventTrailingStarted, bar.Time, bar.Close))
	}
	if p.State != Trailing {
		return events
	}

	if p.tighten(bar.Close - dir*tr.TrailATR*atr) {
		events = append(events, p.event(EventStopMoved, bar.Time, p.CurrentStop))
	}
	return events
}

// Cancel closes the position on external request. The remaining size, if
// filled, exits at price; a non-positive price uses the last seen close.
func (m *Machine) Cancel(p *Position, t time.Time, price float64, reason string) (Event, error) {
	if p.State == Closed {
		return Event{}, fmt.Errorf("cancel %s: %w", p.ID, ErrPositionClosed)
	}
	if price <= 0 {
		price = p.lastClose
	}

	frac := 0.0
	if p.State.Filled() {
		frac = p.Remaining
		p.Exits = append(p.Exits, Exit{
			Time:     t,
			Kind:     EventCancelled,
			Price:    price,
			Fraction: frac,
		})
	}
	p.lastTime = t
	p.close(ExternalCancel, t)
	ev := p.event(EventCancelled, t, price)
	ev.Fraction = frac
	ev.Reason = reason
	return ev, nil
}
