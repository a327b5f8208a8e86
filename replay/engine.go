// Package replay drives bars through signal qualification and the position
// state machine. Historical and live runs share the same per-bar Step.
package replay

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/risk"
	"github.com/dumbCodesOnly/SigV0.01/sentiment"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

// IndicatorSource answers with the snapshot computed for a closed bar.
type IndicatorSource interface {
	SnapshotFor(instrument string, barTime time.Time) (market.IndicatorSnapshot, error)
}

// BarObserver is implemented by sources that build their state from the
// bars themselves. The engine hands them each bar before asking for its
// snapshot.
type BarObserver interface {
	Observe(market.Bar) error
}

type Options struct {
	Signal     signals.Config
	Policy     risk.Policy
	Indicators IndicatorSource
	Sentiment  sentiment.Source

	// Optional.
	Sink          risk.Sink
	Logger        *zerolog.Logger
	OnTradeClosed func(risk.Trade)
}

// Counts tallies what the engine has seen.
type Counts struct {
	Bars      int64
	Accepted  int64
	Rejected  int64
	Discarded int64
	Skipped   int64
	Closed    int64
}

// Engine owns one book per instrument. Step may be called concurrently for
// different instruments, never for the same one.
type Engine struct {
	cfg     signals.Config
	machine *risk.Machine
	ind     IndicatorSource
	obs     BarObserver
	sent    sentiment.Source
	sink    risk.Sink
	onTrade func(risk.Trade)
	log     zerolog.Logger

	mu     sync.Mutex
	books  map[string]*book
	trades []risk.Trade

	sinkMu sync.Mutex

	bars, accepted, rejected, discarded, skipped, closed atomic.Int64
}

type book struct {
	instrument string
	last       time.Time
	pos        *risk.Position
}

func New(opts Options) (*Engine, error) {
	if err := opts.Signal.Validate(); err != nil {
		return nil, err
	}
	m, err := risk.NewMachine(opts.Policy)
	if err != nil {
		return nil, err
	}
	if opts.Indicators == nil {
		return nil, fmt.Errorf("replay: indicator source is required")
	}
	if opts.Sentiment == nil {
		return nil, fmt.Errorf("replay: sentiment source is required")
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "replay").Logger()
	}

	e := &Engine{
		cfg:     opts.Signal,
		machine: m,
		ind:     opts.Indicators,
		sent:    opts.Sentiment,
		sink:    opts.Sink,
		onTrade: opts.OnTradeClosed,
		log:     log,
		books:   make(map[string]*book),
	}
	e.obs, _ = opts.Indicators.(BarObserver)
	return e, nil
}

func (e *Engine) book(instrument string) *book {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[instrument]
	if !ok {
		b = &book{instrument: instrument}
		e.books[instrument] = b
	}
	return b
}

// Step processes one closed bar: qualification first when the instrument is
// flat, otherwise the state machine for the position held before the bar.
// Errors are fatal to the run; everything recoverable becomes an event.
func (e *Engine) Step(bar market.Bar) error {
	b := e.book(bar.Instrument)
	if !b.last.IsZero() && !bar.Time.After(b.last) {
		return fmt.Errorf("%s bar %s not after %s: %w",
			bar.Instrument, bar.Time.Format(time.RFC3339), b.last.Format(time.RFC3339), ErrOutOfOrder)
	}
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("%s: %w", bar.Instrument, err)
	}
	b.last = bar.Time
	e.bars.Add(1)

	if e.obs != nil {
		if err := e.obs.Observe(bar); err != nil {
			return fmt.Errorf("observe %s: %w", bar.Instrument, err)
		}
	}

	snap, snapErr := e.ind.SnapshotFor(bar.Instrument, bar.Time)
	if snapErr == nil && snap.Time.After(bar.Time) {
		return e.violation(bar, "indicators", snap.Time)
	}

	if b.pos == nil {
		return e.qualify(b, bar, snap, snapErr)
	}

	atr := 0.0
	if snapErr == nil {
		atr = snap.ATR
	}
	for _, ev := range e.machine.Step(b.pos, bar, atr) {
		e.emit(ev)
	}
	if b.pos.IsClosed() {
		e.recordTrade(b)
	}
	return nil
}

func (e *Engine) violation(bar market.Bar, source string, at time.Time) error {
	err := &CausalityViolation{Instrument: bar.Instrument, BarTime: bar.Time, Source: source, DataTime: at}
	e.log.Error().Err(err).Msg("future data offered to engine")
	return err
}

func (e *Engine) qualify(b *book, bar market.Bar, snap market.IndicatorSnapshot, snapErr error) error {
	if snapErr != nil {
		e.skip(bar, "indicators", snapErr)
		return nil
	}

	sent, err := e.sent.ScoreFor(bar.Instrument, bar.Time)
	if err != nil {
		e.skip(bar, "sentiment", err)
		return nil
	}
	if sent.Time.After(bar.Time) {
		return e.violation(bar, "sentiment", sent.Time)
	}
	if sent.Stale {
		e.log.Debug().Str("instrument", bar.Instrument).Time("as_of", sent.Time).Msg("sentiment stale")
	}

	trend := market.TrendOf(snap.EMAFast, snap.EMASlow)
	d := signals.Evaluate(e.cfg, snap, sent, trend, false)
	if !d.Accepted() {
		if d.SetupFired() {
			e.discarded.Add(1)
			e.emit(risk.Event{
				PositionID: risk.PositionID(bar.Instrument, bar.Time),
				Instrument: bar.Instrument,
				Time:       bar.Time,
				Kind:       risk.EventDiscarded,
				Price:      bar.Close,
				Confidence: d.Confidence,
				Stale:      d.Stale,
				Reason:     fmt.Sprintf("%s %s: %s", d.Setup, d.Direction, d.Discard),
			})
		}
		return nil
	}

	pos, ev, err := e.machine.Accept(*d.Candidate)
	e.emit(ev)
	if err != nil {
		e.rejected.Add(1)
		e.log.Warn().Err(err).Str("instrument", bar.Instrument).Msg("signal rejected")
		return nil
	}

	e.accepted.Add(1)
	b.pos = pos
	e.log.Info().
		Str("instrument", pos.Instrument).
		Str("id", pos.ID).
		Str("direction", pos.Direction.String()).
		Str("setup", string(pos.Setup)).
		Float64("entry", pos.Entry).
		Float64("stop", pos.OriginalStop).
		Float64("confidence", pos.Confidence).
		Bool("stale", pos.Stale).
		Msg("signal accepted")
	return nil
}

func (e *Engine) skip(bar market.Bar, source string, err error) {
	e.skipped.Add(1)
	e.log.Debug().Err(err).Str("instrument", bar.Instrument).Str("source", source).Msg("qualification skipped")
	e.emit(risk.Event{
		PositionID: risk.PositionID(bar.Instrument, bar.Time),
		Instrument: bar.Instrument,
		Time:       bar.Time,
		Kind:       risk.EventSkipped,
		Price:      bar.Close,
		Reason:     source + " unavailable: " + err.Error(),
	})
}

func (e *Engine) emit(ev risk.Event) {
	if e.sink == nil {
		return
	}
	e.sinkMu.Lock()
	err := e.sink.Emit(ev)
	e.sinkMu.Unlock()
	if err != nil {
		e.log.Warn().Err(err).Str("id", ev.PositionID).Str("kind", string(ev.Kind)).Msg("sink emit failed")
	}
}

func (e *Engine) recordTrade(b *book) {
	t := b.pos.Trade()
	b.pos = nil
	e.closed.Add(1)

	e.mu.Lock()
	e.trades = append(e.trades, t)
	e.mu.Unlock()

	if rec, ok := e.sink.(risk.TradeRecorder); ok {
		e.sinkMu.Lock()
		err := rec.RecordTrade(t)
		e.sinkMu.Unlock()
		if err != nil {
			e.log.Warn().Err(err).Str("id", t.ID).Msg("trade record failed")
		}
	}

	e.log.Info().
		Str("instrument", t.Instrument).
		Str("id", t.ID).
		Str("reason", string(t.CloseReason)).
		Float64("r", t.R).
		Msg("position closed")

	if e.onTrade != nil {
		e.onTrade(t)
	}
}

// Cancel closes the instrument's position at its last close.
func (e *Engine) Cancel(instrument, reason string) error {
	e.mu.Lock()
	b, ok := e.books[instrument]
	e.mu.Unlock()
	if !ok || b.pos == nil {
		return fmt.Errorf("cancel %s: %w", instrument, ErrNoPosition)
	}

	ev, err := e.machine.Cancel(b.pos, b.last, 0, reason)
	if err != nil {
		return err
	}
	e.emit(ev)
	e.recordTrade(b)
	return nil
}

// CancelAll cancels every open position, in instrument order.
func (e *Engine) CancelAll(reason string) error {
	var errs []error
	for _, inst := range e.Instruments() {
		err := e.Cancel(inst, reason)
		if err != nil && !errors.Is(err, ErrNoPosition) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Instruments lists every instrument seen, sorted.
func (e *Engine) Instruments() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.books))
	for inst := range e.books {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// Trades returns closed trades ordered by close time, then ID.
func (e *Engine) Trades() []risk.Trade {
	e.mu.Lock()
	out := append([]risk.Trade(nil), e.trades...)
	e.mu.Unlock()
	backtest.SortTrades(out)
	return out
}

// Open returns snapshots of positions still running, flagged OpenAtEnd.
// Call it only while no Step is in flight.
func (e *Engine) Open() []risk.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []risk.Trade
	for _, b := range e.books {
		if b.pos != nil {
			out = append(out, b.pos.Trade())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasPosition reports whether the instrument currently holds a position.
func (e *Engine) HasPosition(instrument string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[instrument]
	return ok && b.pos != nil
}

// Result aggregates closed trades; open positions are only counted.
func (e *Engine) Result(acct backtest.Account) backtest.Result {
	return backtest.Aggregate(append(e.Trades(), e.Open()...), acct)
}

func (e *Engine) Counts() Counts {
	return Counts{
		Bars:      e.bars.Load(),
		Accepted:  e.accepted.Load(),
		Rejected:  e.rejected.Load(),
		Discarded: e.discarded.Load(),
		Skipped:   e.skipped.Load(),
		Closed:    e.closed.Load(),
	}
}
