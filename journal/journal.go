// Package journal stores and forwards position lifecycle events.
package journal

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dumbCodesOnly/SigV0.01/risk"
)

// Journal is a sink that also keeps trade summaries and must be closed.
type Journal interface {
	risk.Sink
	risk.TradeRecorder
	Close() error
}

// Memory keeps everything in process. Duplicate (PositionID, Seq) pairs
// are dropped so redelivery is harmless.
type Memory struct {
	mu     sync.Mutex
	seen   map[eventKey]bool
	events []risk.Event
	trades map[string]int
	order  []risk.Trade
}

type eventKey struct {
	id  string
	seq int
}

func NewMemory() *Memory {
	return &Memory{seen: map[eventKey]bool{}, trades: map[string]int{}}
}

func (m *Memory) Emit(e risk.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := eventKey{e.PositionID, e.Seq}
	if m.seen[k] {
		return nil
	}
	m.seen[k] = true
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) RecordTrade(t risk.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.trades[t.ID]; ok {
		m.order[i] = t
		return nil
	}
	m.trades[t.ID] = len(m.order)
	m.order = append(m.order, t)
	return nil
}

func (m *Memory) Events() []risk.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]risk.Event(nil), m.events...)
}

func (m *Memory) Trades() []risk.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]risk.Trade(nil), m.order...)
}

func (m *Memory) Close() error { return nil }

// Multi fans out to several sinks. Every sink sees every event even when
// an earlier one fails; the errors are joined.
type Multi []risk.Sink

func (ms Multi) Emit(e risk.Event) error {
	var errs []error
	for _, s := range ms {
		if err := s.Emit(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ms Multi) RecordTrade(t risk.Trade) error {
	var errs []error
	for _, s := range ms {
		if rec, ok := s.(risk.TradeRecorder); ok {
			if err := rec.RecordTrade(t); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (ms Multi) Close() error {
	var errs []error
	for _, s := range ms {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to a zerolog logger. Position milestones log at
// info, qualification noise at debug.
type LogSink struct {
	Log zerolog.Logger
}

func (l LogSink) Emit(e risk.Event) error {
	ev := l.Log.Debug()
	switch e.Kind {
	case risk.EventSkipped, risk.EventDiscarded:
	case risk.EventRejected:
		ev = l.Log.Warn()
	default:
		ev = l.Log.Info()
	}
	ev.Str("id", e.PositionID).
		Str("instrument", e.Instrument).
		Int("seq", e.Seq).
		Time("bar", e.Time).
		Float64("price", e.Price).
		Str("state", string(e.State)).
		Float64("stop", e.Stop).
		Float64("remaining", e.Remaining).
		Bool("stale", e.Stale).
		Str("reason", e.Reason).
		Msg(string(e.Kind))
	return nil
}

func (l LogSink) RecordTrade(t risk.Trade) error {
	l.Log.Info().
		Str("id", t.ID).
		Str("instrument", t.Instrument).
		Str("direction", t.Direction.String()).
		Str("reason", string(t.CloseReason)).
		Int("targets_hit", t.TargetsHit).
		Float64("r", t.R).
		Msg("trade closed")
	return nil
}
