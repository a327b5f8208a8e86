package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/risk"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

var ErrNotFound = errors.New("not found")

const eventColumns = `position_id, seq, instrument, time, kind, price, state, target, fraction, stop, remaining, confidence, stale, reason`

// ListEvents returns the events of one position in sequence order, or all
// events by time when positionID is empty.
func (j *SQLite) ListEvents(positionID string) ([]risk.Event, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if positionID == "" {
		rows, err = j.db.Query(`SELECT ` + eventColumns + ` FROM events ORDER BY time ASC, position_id ASC, seq ASC`)
	} else {
		rows, err = j.db.Query(`SELECT `+eventColumns+` FROM events WHERE position_id = ? ORDER BY seq ASC`, positionID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []risk.Event
	for rows.Next() {
		var (
			e           risk.Event
			kind, state string
		)
		if err := rows.Scan(
			&e.PositionID, &e.Seq, &e.Instrument, &e.Time, &kind, &e.Price, &state,
			&e.Target, &e.Fraction, &e.Stop, &e.Remaining, &e.Confidence, &e.Stale, &e.Reason,
		); err != nil {
			return nil, err
		}
		e.Kind = risk.EventKind(kind)
		e.State = risk.State(state)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const tradeColumns = `id, instrument, direction, setup, confidence, stale, entry, stop_loss, final_stop,
	created_at, opened_at, closed_at, state, close_reason, filled, targets_hit, r, open_at_end, exits`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (risk.Trade, error) {
	var (
		t                           risk.Trade
		dir                         int
		setup, state, reason, exits string
	)
	if err := s.Scan(
		&t.ID, &t.Instrument, &dir, &setup, &t.Confidence, &t.Stale, &t.Entry, &t.StopLoss, &t.FinalStop,
		&t.CreatedAt, &t.OpenedAt, &t.ClosedAt, &state, &reason, &t.Filled, &t.TargetsHit, &t.R, &t.OpenAtEnd, &exits,
	); err != nil {
		return risk.Trade{}, err
	}
	t.Direction = market.Direction(dir)
	t.Setup = signals.Setup(setup)
	t.State = risk.State(state)
	t.CloseReason = risk.CloseReason(reason)
	if err := json.Unmarshal([]byte(exits), &t.Exits); err != nil {
		return risk.Trade{}, fmt.Errorf("trade %s exits: %w", t.ID, err)
	}
	return t, nil
}

// GetTrade returns a single trade by position ID.
func (j *SQLite) GetTrade(id string) (risk.Trade, error) {
	t, err := scanTrade(j.db.QueryRow(`SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return risk.Trade{}, fmt.Errorf("trade %q: %w", id, ErrNotFound)
		}
		return risk.Trade{}, err
	}
	return t, nil
}

// ListTrades returns all trades ordered by close time, then ID.
func (j *SQLite) ListTrades() ([]risk.Trade, error) {
	rows, err := j.db.Query(`SELECT ` + tradeColumns + ` FROM trades ORDER BY closed_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []risk.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRun loads a stored run report.
func (j *SQLite) GetRun(runID string) (backtest.Report, error) {
	var doc string
	err := j.db.QueryRow(`SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return backtest.Report{}, fmt.Errorf("run %q: %w", runID, ErrNotFound)
		}
		return backtest.Report{}, err
	}
	var rep backtest.Report
	if err := yaml.Unmarshal([]byte(doc), &rep); err != nil {
		return backtest.Report{}, fmt.Errorf("run %q: %w", runID, err)
	}
	return rep, nil
}

// ListRuns returns run IDs newest first.
func (j *SQLite) ListRuns() ([]string, error) {
	rows, err := j.db.Query(`SELECT run_id FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
