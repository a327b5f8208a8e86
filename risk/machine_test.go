package risk

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(n int) time.Time { return t0.Add(time.Duration(n) * time.Hour) }

func bar(n int, low, high, close float64) market.Bar {
	return market.Bar{Instrument: "BTCUSDT", Time: at(n), Open: close, High: high, Low: low, Close: close}
}

func longCandidate() signals.Candidate {
	return signals.Candidate{
		Instrument: "BTCUSDT",
		Direction:  market.Long,
		Setup:      signals.Pullback,
		Entry:      100,
		StopLoss:   95,
		TakeProfits: []signals.TakeProfit{
			{Price: 105, Fraction: 0.5},
			{Price: 110, Fraction: 0.5},
		},
		Confidence: 0.7,
		CreatedAt:  t0,
	}
}

func noTrail() Policy {
	p := DefaultPolicy()
	p.Trailing.Enabled = false
	return p
}

func newMachine(t *testing.T, p Policy) *Machine {
	t.Helper()
	m, err := NewMachine(p)
	require.NoError(t, err)
	return m
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestMachine_BreakevenThenStopFirst(t *testing.T) {
	t.Parallel()
	m := newMachine(t, noTrail())

	p, ev, err := m.Accept(longCandidate())
	require.NoError(t, err)
	assert.Equal(t, EventAccepted, ev.Kind)
	assert.Equal(t, 0, ev.Seq)
	assert.Equal(t, Pending, p.State)

	got := m.Step(p, bar(1, 99, 101, 100.5), 0)
	assert.Equal(t, []EventKind{EventFilled}, kinds(got))
	assert.Equal(t, Open, p.State)

	got = m.Step(p, bar(2, 100.5, 105.5, 105), 0)
	require.Equal(t, []EventKind{EventTakeProfit}, kinds(got))
	assert.Equal(t, 1, got[0].Target)
	assert.Equal(t, BreakevenArmed, p.State)
	assert.InDelta(t, 100.0, p.CurrentStop, 1e-12)
	assert.InDelta(t, 0.5, p.Remaining, 1e-12)

	// Range spans both TP2 and the breakeven stop: the stop wins.
	got = m.Step(p, bar(3, 94, 110.5, 101), 0)
	require.Equal(t, []EventKind{EventStopHit}, kinds(got))
	assert.InDelta(t, 100.0, got[0].Price, 1e-12)
	assert.InDelta(t, 0.5, got[0].Remaining, 1e-12)
	assert.Equal(t, Closed, p.State)
	assert.Equal(t, StopHit, p.CloseReason)

	tr := p.Trade()
	assert.InDelta(t, 0.5, tr.R, 1e-12)
	assert.True(t, tr.Win())
	assert.False(t, tr.OpenAtEnd)
	assert.Equal(t, 1, tr.TargetsHit)

	assert.Empty(t, m.Step(p, bar(4, 90, 120, 100), 0), "closed positions ignore bars")
}

func TestMachine_TargetFirst(t *testing.T) {
	t.Parallel()
	pol := noTrail()
	pol.SameBar = TargetFirst
	m := newMachine(t, pol)

	p, _, err := m.Accept(longCandidate())
	require.NoError(t, err)
	m.Step(p, bar(1, 99, 101, 100.5), 0)
	m.Step(p, bar(2, 100.5, 105.5, 105), 0)

	got := m.Step(p, bar(3, 94, 110.5, 101), 0)
	require.Equal(t, []EventKind{EventTargetsHit}, kinds(got))
	assert.Equal(t, AllTargetsHit, p.CloseReason)
	assert.InDelta(t, 0, p.Remaining, 1e-12)
	assert.InDelta(t, 1.5, p.Trade().R, 1e-12)
}

func TestMachine_Trailing(t *testing.T) {
	t.Parallel()
	pol := DefaultPolicy()
	pol.Trailing = TrailingPolicy{Enabled: true, ActivationATR: 1, TrailATR: 2}
	m := newMachine(t, pol)

	p, _, err := m.Accept(longCandidate())
	require.NoError(t, err)
	m.Step(p, bar(1, 99, 101, 100.5), 1)
	m.Step(p, bar(2, 100.5, 105.5, 105), 1)
	require.Equal(t, BreakevenArmed, p.State)

	got := m.Step(p, bar(3, 106, 107.5, 107), 1)
	assert.Equal(t, []EventKind{EventTrailingStarted, EventStopMoved}, kinds(got))
	assert.Equal(t, Trailing, p.State)
	assert.InDelta(t, 105.0, p.CurrentStop, 1e-12)

	got = m.Step(p, bar(4, 106, 107, 106.5), 1)
	assert.Empty(t, got, "trailing stop never loosens")
	assert.InDelta(t, 105.0, p.CurrentStop, 1e-12)

	m.Step(p, bar(5, 107, 109, 108.5), 1)
	assert.InDelta(t, 106.5, p.CurrentStop, 1e-12)

	got = m.Step(p, bar(6, 106, 108, 106.2), 1)
	require.Equal(t, []EventKind{EventStopHit}, kinds(got))
	assert.InDelta(t, 0.5+0.5*1.3, p.Trade().R, 1e-9)
}

func TestMachine_TrailingHoldsWithoutATR(t *testing.T) {
	t.Parallel()
	m := newMachine(t, DefaultPolicy())

	p, _, err := m.Accept(longCandidate())
	require.NoError(t, err)
	m.Step(p, bar(1, 99, 101, 100.5), 0)
	m.Step(p, bar(2, 100.5, 105.5, 105), 0)
	assert.Empty(t, m.Step(p, bar(3, 106, 109, 108.5), 0))
	assert.Equal(t, BreakevenArmed, p.State)
}

func TestMachine_Short(t *testing.T) {
	t.Parallel()
	m := newMachine(t, noTrail())

	c := longCandidate()
	c.Direction = market.Short
	c.StopLoss = 105
	c.TakeProfits = []signals.TakeProfit{{Price: 95, Fraction: 1}}

	p, _, err := m.Accept(c)
	require.NoError(t, err)
	m.Step(p, bar(1, 99.5, 100.5, 100), 0)
	got := m.Step(p, bar(2, 94.5, 99, 95.5), 0)
	require.Equal(t, []EventKind{EventTargetsHit}, kinds(got))
	assert.InDelta(t, 1.0, p.Trade().R, 1e-12)
}

func TestMachine_FillBar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bar   market.Bar
		want  []EventKind
		state State
	}{
		{"stop on fill bar", bar(1, 94, 101, 96), []EventKind{EventFilled, EventStopHit}, Closed},
		{"target ignored on fill bar", bar(1, 99, 111, 110), []EventKind{EventFilled}, Open},
		{"not touched", bar(1, 101, 102, 101.5), nil, Pending},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newMachine(t, noTrail())
			p, _, err := m.Accept(longCandidate())
			require.NoError(t, err)

			got := m.Step(p, tt.bar, 0)
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, kinds(got))
			}
			assert.Equal(t, tt.state, p.State)
		})
	}
}

func TestMachine_IgnoresSignalBar(t *testing.T) {
	t.Parallel()
	m := newMachine(t, noTrail())
	p, _, err := m.Accept(longCandidate())
	require.NoError(t, err)

	assert.Empty(t, m.Step(p, bar(0, 90, 110, 100), 0))
	assert.Equal(t, Pending, p.State)

	m.Step(p, bar(2, 99, 101, 100), 0)
	assert.Empty(t, m.Step(p, bar(1, 90, 110, 100), 0), "stale bar")
}

func TestMachine_PendingExpiry(t *testing.T) {
	t.Parallel()
	pol := noTrail()
	pol.PendingExpiryBars = 2
	m := newMachine(t, pol)

	p, _, err := m.Accept(longCandidate())
	require.NoError(t, err)
	assert.Empty(t, m.Step(p, bar(1, 101, 102, 101.5), 0))

	got := m.Step(p, bar(2, 101, 103, 102), 0)
	require.Equal(t, []EventKind{EventExpired}, kinds(got))
	assert.Equal(t, Expired, p.CloseReason)

	tr := p.Trade()
	assert.False(t, tr.Filled)
	assert.Zero(t, tr.R)
	assert.True(t, tr.Breakeven())
}

func TestMachine_Cancel(t *testing.T) {
	t.Parallel()
	m := newMachine(t, noTrail())

	pending, _, err := m.Accept(longCandidate())
	require.NoError(t, err)
	ev, err := m.Cancel(pending, at(1), 0, "operator")
	require.NoError(t, err)
	assert.Equal(t, EventCancelled, ev.Kind)
	assert.Equal(t, "operator", ev.Reason)
	assert.Zero(t, ev.Fraction)
	assert.Empty(t, pending.Exits)
	assert.Equal(t, ExternalCancel, pending.CloseReason)

	filled, _, err := m.Accept(longCandidate())
	require.NoError(t, err)
	m.Step(filled, bar(1, 99, 101, 100.5), 0)
	ev, err = m.Cancel(filled, at(2), 102, "shutdown")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ev.Fraction, 1e-12)
	assert.InDelta(t, 0.4, filled.Trade().R, 1e-12)

	_, err = m.Cancel(filled, at(3), 102, "again")
	assert.True(t, errors.Is(err, ErrPositionClosed))
}

func TestMachine_OpenAtEnd(t *testing.T) {
	t.Parallel()
	m := newMachine(t, noTrail())
	p, _, err := m.Accept(longCandidate())
	require.NoError(t, err)
	m.Step(p, bar(1, 99, 102.5, 102), 0)

	tr := p.Trade()
	assert.True(t, tr.OpenAtEnd)
	assert.Equal(t, at(1), tr.ClosedAt)
	assert.InDelta(t, 0.4, tr.R, 1e-12)
}

func TestMachine_EventSequence(t *testing.T) {
	t.Parallel()
	m := newMachine(t, noTrail())
	p, first, err := m.Accept(longCandidate())
	require.NoError(t, err)

	all := []Event{first}
	all = append(all, m.Step(p, bar(1, 99, 101, 100.5), 0)...)
	all = append(all, m.Step(p, bar(2, 100.5, 105.5, 105), 0)...)
	all = append(all, m.Step(p, bar(3, 104, 111, 110), 0)...)

	for i, e := range all {
		assert.Equal(t, i, e.Seq)
		assert.Equal(t, p.ID, e.PositionID)
	}
	assert.True(t, all[len(all)-1].Kind.Terminal())
}

func TestMachine_Invariants(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))

	for _, pol := range []Policy{DefaultPolicy(), noTrail(), {SameBar: TargetFirst}} {
		m := newMachine(t, pol)
		for run := 0; run < 50; run++ {
			c := longCandidate()
			if run%2 == 1 {
				c.Direction = market.Short
				c.StopLoss = 105
				c.TakeProfits = []signals.TakeProfit{{Price: 95, Fraction: 0.5}, {Price: 90, Fraction: 0.3}, {Price: 85, Fraction: 0.2}}
			}
			p, _, err := m.Accept(c)
			require.NoError(t, err)

			price := 100.0
			prevStop := p.CurrentStop
			prevRemaining := p.Remaining
			for i := 1; i <= 200 && !p.IsClosed(); i++ {
				next := price + rng.NormFloat64()*1.5
				low, high := price, next
				if low > high {
					low, high = high, low
				}
				low -= rng.Float64()
				high += rng.Float64()
				m.Step(p, bar(i, low, high, next), 1+rng.Float64())
				price = next

				dir := p.Direction.Sign()
				assert.GreaterOrEqual(t, dir*(p.CurrentStop-prevStop), 0.0, "stop loosened")
				assert.LessOrEqual(t, p.Remaining, prevRemaining+1e-12, "size grew")
				prevStop, prevRemaining = p.CurrentStop, p.Remaining
			}

			if p.IsClosed() && p.Filled() {
				sum := 0.0
				for _, x := range p.Exits {
					sum += x.Fraction
				}
				assert.InDelta(t, 1.0, sum, 1e-9, "exit fractions")
			}
			for i := 1; i < len(p.TargetsHit); i++ {
				assert.Greater(t, p.TargetsHit[i], p.TargetsHit[i-1])
			}
		}
	}
}

func TestMachine_AcceptRejects(t *testing.T) {
	t.Parallel()
	m := newMachine(t, noTrail())

	c := longCandidate()
	c.StopLoss = 101
	p, ev, err := m.Accept(c)
	assert.Nil(t, p)
	assert.Equal(t, EventRejected, ev.Kind)
	assert.NotEmpty(t, ev.PositionID)
	assert.True(t, errors.Is(err, ErrInvalidSignal))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Has("NON_POSITIVE_STOP_DISTANCE"))
}

func TestPositionID_Deterministic(t *testing.T) {
	t.Parallel()
	assert.Equal(t, PositionID("BTCUSDT", t0), PositionID("BTCUSDT", t0))
	assert.NotEqual(t, PositionID("BTCUSDT", t0), PositionID("ETHUSDT", t0))
	assert.NotEqual(t, PositionID("BTCUSDT", t0), PositionID("BTCUSDT", at(1)))
}

func TestNewMachine_BadPolicy(t *testing.T) {
	t.Parallel()
	_, err := NewMachine(Policy{SameBar: "coin_flip"})
	assert.Error(t, err)
}
