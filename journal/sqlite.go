package journal

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/risk"
)

// SQLite persists events, trades and run reports. Events are keyed by
// (position_id, seq) and inserted with OR IGNORE, so replaying a run into
// the same database does not duplicate them.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Emit(e risk.Event) error {
	_, err := j.db.Exec(`
		INSERT OR IGNORE INTO events
		(position_id, seq, instrument, time, kind, price, state, target, fraction, stop, remaining, confidence, stale, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.PositionID, e.Seq, e.Instrument, e.Time, string(e.Kind), e.Price, string(e.State),
		e.Target, e.Fraction, e.Stop, e.Remaining, e.Confidence, e.Stale, e.Reason,
	)
	return err
}

func (j *SQLite) RecordTrade(t risk.Trade) error {
	exits, err := json.Marshal(t.Exits)
	if err != nil {
		return err
	}
	_, err = j.db.Exec(`
		INSERT OR REPLACE INTO trades
		(id, instrument, direction, setup, confidence, stale, entry, stop_loss, final_stop,
		 created_at, opened_at, closed_at, state, close_reason, filled, targets_hit, r, open_at_end, exits)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Instrument, int(t.Direction), string(t.Setup), t.Confidence, t.Stale,
		t.Entry, t.StopLoss, t.FinalStop, t.CreatedAt, t.OpenedAt, t.ClosedAt,
		string(t.State), string(t.CloseReason), t.Filled, t.TargetsHit, t.R, t.OpenAtEnd, string(exits),
	)
	return err
}

// RecordRun stores a finished run; the full report is kept as YAML.
func (j *SQLite) RecordRun(rep backtest.Report) error {
	var buf bytes.Buffer
	if err := backtest.WriteYAML(&buf, rep); err != nil {
		return err
	}
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs (run_id, created, dataset, trades, total_r, report)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Created, rep.Dataset, rep.Result.TradeCount, rep.Result.TotalR, buf.String(),
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
