package cmd

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumbCodesOnly/SigV0.01/config"
	"github.com/dumbCodesOnly/SigV0.01/feed"
	"github.com/dumbCodesOnly/SigV0.01/indicators"
	"github.com/dumbCodesOnly/SigV0.01/journal"
	"github.com/dumbCodesOnly/SigV0.01/market"
	"github.com/dumbCodesOnly/SigV0.01/risk"
	"github.com/dumbCodesOnly/SigV0.01/sentiment"
)

// waveBars is a rising series with a slow oscillation, enough to warm up
// short indicator periods and produce pullbacks.
func waveBars(n int) []market.Bar {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	prev := 100.0
	for i := range bars {
		c := 100 + 0.15*float64(i) + 4*math.Sin(float64(i)/6)
		hi := math.Max(prev, c) + 0.6
		lo := math.Min(prev, c) - 0.6
		bars[i] = market.Bar{
			Instrument: "BTCUSDT",
			Time:       start.Add(time.Duration(i) * time.Hour),
			Open:       prev,
			High:       hi,
			Low:        lo,
			Close:      c,
			Volume:     10,
		}
		prev = c
	}
	return bars
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Indicators = indicators.Config{
		EMAFast:       5,
		EMASlow:       20,
		RSIPeriod:     7,
		ATRPeriod:     7,
		BBPeriod:      10,
		BBStdDev:      2,
		WidthLookback: 20,
		SwingWindow:   2,
	}
	cfg.Signal.MinConfidence = 0.3
	cfg.Sentiment.Score = 0.5
	return cfg
}

func writeBars(t *testing.T, dir string, bars []market.Bar) string {
	t.Helper()
	path := filepath.Join(dir, "bars.csv")
	var buf bytes.Buffer
	require.NoError(t, feed.WriteCSV(&buf, bars))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func closedOnly(ts []risk.Trade) []risk.Trade {
	var out []risk.Trade
	for _, t := range ts {
		if !t.OpenAtEnd {
			out = append(out, t)
		}
	}
	return out
}

type sliceFeed struct{ bars []market.Bar }

func (f sliceFeed) Run(ctx context.Context, out chan<- market.Bar) error {
	for _, b := range f.bars {
		select {
		case out <- b:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func TestBacktestRun_StoresRunAndOrg(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	bars := waveBars(300)

	cfg := testConfig()
	opts := backtestOptions{
		Bars:    writeBars(t, dir, bars),
		DBPath:  filepath.Join(dir, "run.sqlite"),
		OrgPath: filepath.Join(dir, "run.org"),
		Workers: 2,
	}
	require.NoError(t, opts.apply(cfg))

	var out bytes.Buffer
	rep, err := backtestRun(context.Background(), &out, cfg, opts, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, len(bars), rep.Bars)
	assert.Equal(t, []string{"BTCUSDT"}, rep.Instruments)
	assert.Equal(t, "bars.csv", rep.Dataset)
	assert.Contains(t, out.String(), rep.RunID)

	org, err := os.ReadFile(opts.OrgPath)
	require.NoError(t, err)
	assert.Contains(t, string(org), rep.RunID)

	db, err := journal.NewSQLite(opts.DBPath)
	require.NoError(t, err)
	defer db.Close()

	stored, err := db.GetRun(rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Result.TradeCount, stored.Result.TradeCount)
	assert.InDelta(t, rep.Result.TotalR, stored.Result.TotalR, 1e-9)

	trades, err := db.ListTrades()
	require.NoError(t, err)
	assert.Equal(t, rep.Result.TradeCount+rep.Result.Unfilled, len(closedOnly(trades)))
	assert.Equal(t, rep.Result.OpenAtEnd, len(trades)-len(closedOnly(trades)))
}

func TestLiveRun_MatchesBacktest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	bars := waveBars(300)

	btCfg := testConfig()
	btOpts := backtestOptions{Bars: writeBars(t, dir, bars), DBPath: filepath.Join(dir, "bt.sqlite")}
	require.NoError(t, btOpts.apply(btCfg))
	_, err := backtestRun(context.Background(), &bytes.Buffer{}, btCfg, btOpts, zerolog.Nop())
	require.NoError(t, err)

	liveCfg := testConfig()
	liveCfg.Journal = config.JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "live.sqlite")}
	var out bytes.Buffer
	require.NoError(t, liveRun(context.Background(), &out, liveCfg, sliceFeed{bars: bars}, zerolog.Nop()))
	assert.Contains(t, out.String(), "Bars: 300")

	read := func(path string) ([]risk.Trade, []risk.Event) {
		db, err := journal.NewSQLite(path)
		require.NoError(t, err)
		defer db.Close()
		trades, err := db.ListTrades()
		require.NoError(t, err)
		events, err := db.ListEvents("")
		require.NoError(t, err)
		return closedOnly(trades), events
	}
	btTrades, btEvents := read(btOpts.DBPath)
	liveTrades, liveEvents := read(liveCfg.Journal.DBPath)

	assert.Equal(t, btTrades, liveTrades)
	assert.Equal(t, btEvents, liveEvents)
}

func TestLiveRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, liveRun(ctx, &out, testConfig(), sliceFeed{bars: waveBars(10)}, zerolog.Nop()))
	assert.Contains(t, out.String(), "Trades: 0")
}

func TestBacktestOptions_Apply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    backtestOptions
		wantErr string
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "static sentiment",
			opts: backtestOptions{Sentiment: -0.4, SentimentSet: true},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, -0.4, cfg.Sentiment.Score)
				assert.Empty(t, cfg.Sentiment.File)
			},
		},
		{
			name: "csv journal",
			opts: backtestOptions{EventsPath: "e.csv", TradesPath: "t.csv"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "csv", cfg.Journal.Type)
			},
		},
		{
			name:    "both sentiment sources",
			opts:    backtestOptions{SentimentSet: true, SentimentFile: "s.csv"},
			wantErr: "--sentiment-file",
		},
		{
			name:    "both journals",
			opts:    backtestOptions{DBPath: "x.sqlite", EventsPath: "e.csv", TradesPath: "t.csv"},
			wantErr: "--db",
		},
		{
			name:    "csv journal missing trades",
			opts:    backtestOptions{EventsPath: "e.csv"},
			wantErr: "csv journal requires",
		},
		{
			name:    "sentiment out of range",
			opts:    backtestOptions{Sentiment: 3, SentimentSet: true},
			wantErr: "sentiment.score",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			err := tt.opts.apply(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestBuildSentiment(t *testing.T) {
	t.Parallel()

	src, err := buildSentiment(config.SentimentConfig{Score: 0.25})
	require.NoError(t, err)
	s, err := src.ScoreFor("BTCUSDT", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.25, s.Score)

	path := filepath.Join(t.TempDir(), "sent.csv")
	data := "time,instrument,score\n2024-03-01T00:00:00Z,*,-0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	src, err = buildSentiment(config.SentimentConfig{File: path, MaxAge: "1h"})
	require.NoError(t, err)
	s, err = src.ScoreFor("ETHUSDT", time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, -0.5, s.Score)
	assert.True(t, s.Stale)

	_, err = src.ScoreFor("ETHUSDT", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, sentiment.ErrUnavailable)

	_, err = buildSentiment(config.SentimentConfig{File: filepath.Join(t.TempDir(), "missing.csv")})
	assert.Error(t, err)
}

func TestOpenJournal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	sinks, db, err := openJournal(config.JournalConfig{Type: "none"}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.Len(t, sinks, 1)

	sinks, db, err = openJournal(config.JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "j.sqlite")}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.Len(t, sinks, 2)
	assert.NoError(t, sinks.Close())

	sinks, _, err = openJournal(config.JournalConfig{
		Type:       "csv",
		EventsFile: filepath.Join(dir, "events.csv"),
		TradesFile: filepath.Join(dir, "trades.csv"),
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, sinks, 2)
	assert.NoError(t, sinks.Close())

	_, _, err = openJournal(config.JournalConfig{Type: "kafka"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSizingLog(t *testing.T) {
	t.Parallel()

	s := sizingLog{log: zerolog.Nop(), acct: config.AccountConfig{MaxNotionalPct: 1}}
	s.acct.StartBalance = 10000
	s.acct.RiskPct = 0.01

	r := s.size(risk.Event{Kind: risk.EventAccepted, Price: 100, Stop: 98})
	assert.InDelta(t, 50.0, r.Units, 1e-9)
	assert.False(t, r.Capped)

	r = s.size(risk.Event{Kind: risk.EventAccepted, Price: 100, Stop: 99.9})
	assert.InDelta(t, 100.0, r.Units, 1e-9)
	assert.True(t, r.Capped)

	assert.NoError(t, s.Emit(risk.Event{Kind: risk.EventFilled}))
}
