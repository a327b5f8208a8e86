package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/config"
	"github.com/dumbCodesOnly/SigV0.01/feed"
	"github.com/dumbCodesOnly/SigV0.01/indicators"
	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/metrics"
	"github.com/dumbCodesOnly/SigV0.01/replay"
	"github.com/dumbCodesOnly/SigV0.01/risk"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run the engine on a live kline feed",
	Long: `Live subscribes to closed klines over a websocket and runs every bar through
the same engine used by backtest. Ctrl-C stops at the next bar boundary and
prints the running statistics.

Example:
  sigbot live --symbols btcusdt,ethusdt --interval 1h --metrics :9090`,
	RunE: runLive,
}

var (
	liveURL      string
	liveSymbols  []string
	liveInterval string
	liveMetrics  string
	liveDBPath   string
	liveCancel   bool
)

func init() {
	rootCmd.AddCommand(liveCmd)

	liveCmd.Flags().StringVar(&liveURL, "url", "", "websocket base URL (overrides config)")
	liveCmd.Flags().StringSliceVar(&liveSymbols, "symbols", nil, "symbols to subscribe to (overrides config)")
	liveCmd.Flags().StringVar(&liveInterval, "interval", "", "kline interval, e.g. 1h (overrides config)")
	liveCmd.Flags().StringVar(&liveMetrics, "metrics", "", "serve Prometheus metrics on this address")
	liveCmd.Flags().StringVarP(&liveDBPath, "db", "d", "", "SQLite journal path")
	liveCmd.Flags().BoolVar(&liveCancel, "cancel-on-exit", false, "cancel open positions on shutdown")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if liveURL != "" {
		cfg.Live.URL = liveURL
	}
	if len(liveSymbols) > 0 {
		cfg.Live.Symbols = liveSymbols
	}
	if liveInterval != "" {
		cfg.Live.Interval = liveInterval
	}
	if liveMetrics != "" {
		cfg.Metrics.Addr = liveMetrics
	}
	if liveDBPath != "" {
		cfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: liveDBPath}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg)
	f := feed.NewBinance(cfg.Live.Symbols, cfg.Live.Interval, log)
	f.URL = cfg.Live.URL

	return liveRun(ctx, cmd.OutOrStdout(), cfg, f, log)
}

// barFeed is what live mode needs from a streaming source.
type barFeed interface {
	Run(ctx context.Context, out chan<- market.Bar) error
}

func liveRun(ctx context.Context, w io.Writer, cfg *config.Config, f barFeed, log zerolog.Logger) error {
	sent, err := buildSentiment(cfg.Sentiment)
	if err != nil {
		return err
	}

	sinks, _, err := openJournal(cfg.Journal, log)
	if err != nil {
		return err
	}
	defer sinks.Close()
	sinks = append(sinks, sizingLog{log: log, acct: cfg.Account})

	if cfg.Metrics.Addr != "" {
		ms := metrics.NewSink()
		sinks = append(sinks, ms)
		srv := metrics.Serve(cfg.Metrics.Addr, ms)
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	var eng *replay.Engine
	eng, err = replay.New(replay.Options{
		Signal:     cfg.Signal,
		Policy:     cfg.Risk,
		Indicators: indicators.NewSnapshotter(cfg.Indicators),
		Sentiment:  sent,
		Sink:       sinks,
		Logger:     &log,
		OnTradeClosed: func(t risk.Trade) {
			res := backtest.Aggregate(eng.Trades(), cfg.Account.Account)
			log.Info().
				Str("id", t.ID).
				Float64("r", t.R).
				Int("trades", res.TradeCount).
				Float64("win_rate", res.WinRate).
				Float64("total_r", res.TotalR).
				Float64("balance", res.EndBalance).
				Msg("running stats")
		},
	})
	if err != nil {
		return err
	}

	bars := make(chan market.Bar, 64)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(bars)
		return f.Run(gctx, bars)
	})
	g.Go(func() error {
		return eng.Live(gctx, bars)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("live: %w", err)
	}

	if liveCancel {
		if err := eng.CancelAll("shutdown"); err != nil {
			log.Warn().Err(err).Msg("cancel on exit")
		}
	}

	res := eng.Result(cfg.Account.Account)
	fmt.Fprintf(w, "Bars: %d  Trades: %d  Open: %d  Total R: %.2f  Win rate: %.1f%%\n",
		eng.Counts().Bars, res.TradeCount, res.OpenAtEnd, res.TotalR, res.WinRate*100)
	return nil
}
