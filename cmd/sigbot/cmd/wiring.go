package cmd

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dumbCodesOnly/SigV0.01/config"
	"github.com/dumbCodesOnly/SigV0.01/journal"
	"github.com/dumbCodesOnly/SigV0.01/risk"
	"github.com/dumbCodesOnly/SigV0.01/sentiment"
)

func buildSentiment(sc config.SentimentConfig) (sentiment.Source, error) {
	if sc.File == "" {
		return sentiment.Static{Score: sc.Score}, nil
	}
	maxAge, err := sc.ParseMaxAge()
	if err != nil {
		return nil, err
	}
	s, err := sentiment.LoadCSV(sc.File, maxAge)
	if err != nil {
		return nil, fmt.Errorf("sentiment: %w", err)
	}
	return s, nil
}

// openJournal builds the sink set for a run. The SQLite journal, when
// configured, is also returned so the caller can store the run report.
func openJournal(jc config.JournalConfig, log zerolog.Logger) (journal.Multi, *journal.SQLite, error) {
	sinks := journal.Multi{journal.LogSink{Log: log}}

	switch jc.Type {
	case "", "none":
		return sinks, nil, nil
	case "csv":
		j, err := journal.NewCSV(jc.EventsFile, jc.TradesFile)
		if err != nil {
			return nil, nil, fmt.Errorf("open csv journal: %w", err)
		}
		return append(sinks, j), nil, nil
	case "sqlite":
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		return append(sinks, j), j, nil
	}
	return nil, nil, fmt.Errorf("unknown journal type %q", jc.Type)
}

// sizingLog logs a suggested position size for every accepted signal.
type sizingLog struct {
	log  zerolog.Logger
	acct config.AccountConfig
}

func (s sizingLog) size(e risk.Event) risk.Result {
	return risk.Calculate(risk.Inputs{
		Equity:         s.acct.StartBalance,
		RiskPct:        s.acct.RiskPct,
		EntryPrice:     e.Price,
		StopPrice:      e.Stop,
		MaxNotionalPct: s.acct.MaxNotionalPct,
	})
}

func (s sizingLog) Emit(e risk.Event) error {
	if e.Kind != risk.EventAccepted {
		return nil
	}
	r := s.size(e)
	s.log.Info().
		Str("id", e.PositionID).
		Str("instrument", e.Instrument).
		Float64("units", r.Units).
		Float64("risk_amount", r.RiskAmount).
		Float64("notional", r.Notional).
		Bool("capped", r.Capped).
		Msg("position size")
	return nil
}
