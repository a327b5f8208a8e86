package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dumbCodesOnly/SigV0.01/config"
	"github.com/dumbCodesOnly/SigV0.01/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "sigbot",
	Short: "Signal qualification and position lifecycle engine",
	Long: `Sigbot qualifies trade signals from indicators and sentiment and manages each
accepted signal through a risk state machine (partial targets, breakeven,
trailing stops).

It provides tools for:
  - Backtesting on historical bar CSV files
  - Running the same engine live on a kline websocket feed
  - Journaling lifecycle events to SQLite or CSV
  - Reporting stored runs`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	envFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "optional dotenv file with SIGBOT_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
}

// loadConfig reads the config file if one was given, applies environment
// overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		cfg, err = config.LoadFromFile(cfgFile)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.Log.Console {
		return logger.Console(cfg.Log.Level, os.Stderr)
	}
	return logger.New(cfg.Log.Level, os.Stderr)
}
