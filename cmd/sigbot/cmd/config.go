package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dumbCodesOnly/SigV0.01/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage sigbot configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  sigbot config init --output sigbot.yaml
  sigbot config validate --file sigbot.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "sigbot.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(w, "\nEdit the file and run with:")
	fmt.Fprintf(w, "  sigbot backtest --config %s --bars bars.csv\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(w, "  Account: $%.2f (Risk: %.1f%%)\n", cfg.Account.StartBalance, cfg.Account.RiskPct*100)
	fmt.Fprintf(w, "  Signal: min confidence %.2f, stop policy %s, %d targets\n",
		cfg.Signal.MinConfidence, cfg.Signal.StopPolicy, len(cfg.Signal.Targets))
	fmt.Fprintf(w, "  Risk: same bar %s, breakeven after TP%d, trailing %t\n",
		cfg.Risk.SameBar, cfg.Risk.BreakevenAfterTP, cfg.Risk.Trailing.Enabled)
	fmt.Fprintf(w, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}
