package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/config"
	"github.com/dumbCodesOnly/SigV0.01/feed"
	"github.com/dumbCodesOnly/SigV0.01/indicators"
	"github.com/dumbCodesOnly/SigV0.01/journal"
	"github.com/dumbCodesOnly/SigV0.01/pkg/id"
	"github.com/dumbCodesOnly/SigV0.01/replay"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical bars through the signal engine",
	Long: `Backtest replays a bar CSV (time,instrument,open,high,low,close[,volume])
through indicator snapshots, signal qualification and the position state
machine, then prints the aggregate statistics.

Examples:
  sigbot backtest --bars data/btc_1h.csv --sentiment 0.3
  sigbot backtest --bars data/btc_1h.csv --sentiment-file data/sentiment.csv --db run.sqlite --org run.org`,
	RunE: runBacktest,
}

type backtestOptions struct {
	Bars          string
	From, To      string
	Sentiment     float64
	SentimentSet  bool
	SentimentFile string
	DBPath        string
	EventsPath    string
	TradesPath    string
	OrgPath       string
	Workers       int
}

var btOpts backtestOptions

func init() {
	rootCmd.AddCommand(backtestCmd)

	f := backtestCmd.Flags()
	f.StringVarP(&btOpts.Bars, "bars", "b", "", "path to bar CSV (required)")
	f.StringVar(&btOpts.From, "from", "", "first bar time to replay (RFC3339 or unix ms)")
	f.StringVar(&btOpts.To, "to", "", "last bar time to replay (RFC3339 or unix ms)")
	f.Float64Var(&btOpts.Sentiment, "sentiment", 0, "static sentiment score in [-1,1]")
	f.StringVar(&btOpts.SentimentFile, "sentiment-file", "", "sentiment CSV (time,instrument,score)")
	f.StringVarP(&btOpts.DBPath, "db", "d", "", "SQLite journal path")
	f.StringVar(&btOpts.EventsPath, "events", "", "CSV event log path (with --trades)")
	f.StringVar(&btOpts.TradesPath, "trades", "", "CSV trade log path (with --events)")
	f.StringVar(&btOpts.OrgPath, "org", "", "write an Org-mode report to this path")
	f.IntVarP(&btOpts.Workers, "workers", "w", 1, "instrument-partitioned workers")

	backtestCmd.MarkFlagRequired("bars")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	btOpts.SentimentSet = cmd.Flags().Changed("sentiment")
	if err := btOpts.apply(cfg); err != nil {
		return err
	}
	_, err = backtestRun(cmd.Context(), cmd.OutOrStdout(), cfg, btOpts, newLogger(cfg))
	return err
}

// apply folds command-line overrides into cfg.
func (o backtestOptions) apply(cfg *config.Config) error {
	if o.SentimentSet && o.SentimentFile != "" {
		return fmt.Errorf("use either --sentiment or --sentiment-file")
	}
	if o.SentimentSet {
		cfg.Sentiment.Score = o.Sentiment
		cfg.Sentiment.File = ""
	}
	if o.SentimentFile != "" {
		cfg.Sentiment.File = o.SentimentFile
	}

	csvSet := o.EventsPath != "" || o.TradesPath != ""
	if csvSet && o.DBPath != "" {
		return fmt.Errorf("use either --db or --events/--trades")
	}
	if o.DBPath != "" {
		cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: o.DBPath}
	}
	if csvSet {
		cfg.Journal = config.JournalConfig{Type: "csv", EventsFile: o.EventsPath, TradesFile: o.TradesPath}
	}
	return cfg.Validate()
}

func backtestRun(ctx context.Context, w io.Writer, cfg *config.Config, o backtestOptions, log zerolog.Logger) (backtest.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var from, to time.Time
	var err error
	if o.From != "" {
		if from, err = feed.ParseTime(o.From); err != nil {
			return backtest.Report{}, fmt.Errorf("--from: %w", err)
		}
	}
	if o.To != "" {
		if to, err = feed.ParseTime(o.To); err != nil {
			return backtest.Report{}, fmt.Errorf("--to: %w", err)
		}
	}

	src, err := feed.OpenCSV(o.Bars, from, to)
	if err != nil {
		return backtest.Report{}, fmt.Errorf("open bars: %w", err)
	}
	defer src.Close()

	sent, err := buildSentiment(cfg.Sentiment)
	if err != nil {
		return backtest.Report{}, err
	}

	sinks, db, err := openJournal(cfg.Journal, log)
	if err != nil {
		return backtest.Report{}, err
	}
	defer sinks.Close()

	eng, err := replay.New(replay.Options{
		Signal:     cfg.Signal,
		Policy:     cfg.Risk,
		Indicators: indicators.NewSnapshotter(cfg.Indicators),
		Sentiment:  sent,
		Sink:       sinks,
		Logger:     &log,
	})
	if err != nil {
		return backtest.Report{}, err
	}

	start := time.Now()
	if err := eng.RunParallel(ctx, src, o.Workers); err != nil {
		return backtest.Report{}, fmt.Errorf("replay: %w", err)
	}

	open := eng.Open()
	for _, t := range open {
		if err := sinks.RecordTrade(t); err != nil {
			log.Warn().Err(err).Str("id", t.ID).Msg("record open trade")
		}
	}

	counts := eng.Counts()
	rep := backtest.Report{
		RunID:       id.New(),
		Created:     time.Now().UTC(),
		Dataset:     filepath.Base(o.Bars),
		Instruments: eng.Instruments(),
		Bars:        int(counts.Bars),
		Account:     cfg.Account.Account,
		Result:      eng.Result(cfg.Account.Account),
		OrgPath:     o.OrgPath,
		Notes: []string{
			fmt.Sprintf("accepted=%d rejected=%d discarded=%d skipped=%d",
				counts.Accepted, counts.Rejected, counts.Discarded, counts.Skipped),
			fmt.Sprintf("same_bar=%s breakeven_after_tp=%d trailing=%t",
				cfg.Risk.SameBar, cfg.Risk.BreakevenAfterTP, cfg.Risk.Trailing.Enabled),
		},
	}
	log.Info().
		Str("run_id", rep.RunID).
		Int("bars", rep.Bars).
		Int("trades", rep.Result.TradeCount).
		Dur("elapsed", time.Since(start)).
		Msg("backtest complete")

	if o.OrgPath != "" {
		run := journal.OrgRun{Report: rep, Trades: append(eng.Trades(), open...)}
		if err := journal.WriteOrg(o.OrgPath, run); err != nil {
			return rep, fmt.Errorf("write org: %w", err)
		}
	}
	if db != nil {
		if err := db.RecordRun(rep); err != nil {
			return rep, fmt.Errorf("record run: %w", err)
		}
	}

	backtest.Print(w, rep)
	return rep, nil
}
