package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/risk"
)

var (
	eventHeader = []string{"position_id", "seq", "instrument", "time", "kind", "price", "state", "target", "fraction", "stop", "remaining", "confidence", "stale", "reason"}
	tradeHeader = []string{"id", "instrument", "direction", "setup", "confidence", "stale", "entry", "stop_loss", "final_stop", "opened_at", "closed_at", "close_reason", "filled", "targets_hit", "r", "exits"}
)

// CSV appends events and trades to two files. Rows are flushed per write.
type CSV struct {
	mu     sync.Mutex
	events *csv.Writer
	trades *csv.Writer
	ef, tf *os.File
}

func NewCSV(eventsPath, tradesPath string) (*CSV, error) {
	ef, err := os.Create(eventsPath)
	if err != nil {
		return nil, err
	}
	tf, err := os.Create(tradesPath)
	if err != nil {
		_ = ef.Close()
		return nil, err
	}

	j := &CSV{events: csv.NewWriter(ef), trades: csv.NewWriter(tf), ef: ef, tf: tf}
	if err := j.write(j.events, eventHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	if err := j.write(j.trades, tradeHeader); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSV) write(w *csv.Writer, row []string) error {
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSV) Emit(e risk.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.write(j.events, []string{
		e.PositionID,
		strconv.Itoa(e.Seq),
		e.Instrument,
		e.Time.UTC().Format(time.RFC3339),
		string(e.Kind),
		f(e.Price),
		string(e.State),
		strconv.Itoa(e.Target),
		f(e.Fraction),
		f(e.Stop),
		f(e.Remaining),
		f(e.Confidence),
		strconv.FormatBool(e.Stale),
		e.Reason,
	})
}

func (j *CSV) RecordTrade(t risk.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.write(j.trades, []string{
		t.ID,
		t.Instrument,
		t.Direction.String(),
		string(t.Setup),
		f(t.Confidence),
		strconv.FormatBool(t.Stale),
		f(t.Entry),
		f(t.StopLoss),
		f(t.FinalStop),
		ts(t.OpenedAt),
		ts(t.ClosedAt),
		string(t.CloseReason),
		strconv.FormatBool(t.Filled),
		strconv.Itoa(t.TargetsHit),
		f(t.R),
		formatExits(t.Exits),
	})
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.events.Flush()
	j.trades.Flush()
	if err := j.events.Error(); err != nil {
		return err
	}
	if err := j.trades.Error(); err != nil {
		return err
	}
	if err := j.ef.Close(); err != nil {
		return err
	}
	return j.tf.Close()
}

// formatExits renders exits as "kind@price*fraction" joined by ';'.
func formatExits(xs []risk.Exit) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, fmt.Sprintf("%s@%s*%s", x.Kind, f(x.Price), strconv.FormatFloat(x.Fraction, 'f', -1, 64)))
	}
	return strings.Join(parts, ";")
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
