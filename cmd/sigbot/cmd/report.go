package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show stored runs, trades and position events",
	Long: `Report reads a SQLite journal written by backtest or live.

Without arguments it lists the stored runs. With a run ID it prints that
run's report.

Examples:
  sigbot report --db run.sqlite
  sigbot report --db run.sqlite 01J9Z6V6J6Q4...
  sigbot report --db run.sqlite --trades
  sigbot report --db run.sqlite --position <position-id>`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var (
	reportDBPath   string
	reportTrades   bool
	reportPosition string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportDBPath, "db", "d", "./sigbot.sqlite", "path to SQLite journal DB")
	reportCmd.Flags().BoolVar(&reportTrades, "trades", false, "list every stored trade")
	reportCmd.Flags().StringVar(&reportPosition, "position", "", "list the lifecycle events of one position")
}

func runReport(cmd *cobra.Command, args []string) error {
	j, err := journal.NewSQLite(reportDBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer j.Close()

	w := cmd.OutOrStdout()
	switch {
	case reportPosition != "":
		return printEvents(w, j, reportPosition)
	case reportTrades:
		return printTrades(w, j)
	case len(args) == 1:
		rep, err := j.GetRun(args[0])
		if err != nil {
			return err
		}
		backtest.Print(w, rep)
		return nil
	}

	ids, err := j.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(w, "no runs stored")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(w, id)
	}
	return nil
}

func printTrades(w io.Writer, j *journal.SQLite) error {
	trades, err := j.ListTrades()
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tINSTRUMENT\tDIR\tSETUP\tCLOSED\tREASON\tTPS\tR")
	for _, t := range trades {
		reason := string(t.CloseReason)
		if t.OpenAtEnd {
			reason = "open"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%.2f\n",
			t.ID, t.Instrument, t.Direction, t.Setup, t.ClosedAt.Format(time.RFC3339), reason, t.TargetsHit, t.R)
	}
	return tw.Flush()
}

func printEvents(w io.Writer, j *journal.SQLite, positionID string) error {
	events, err := j.ListEvents(positionID)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("position %q: %w", positionID, journal.ErrNotFound)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tKIND\tSTATE\tPRICE\tSTOP\tREMAINING\tREASON")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.5f\t%.5f\t%.2f\t%s\n",
			e.Seq, e.Time.Format(time.RFC3339), e.Kind, e.State, e.Price, e.Stop, e.Remaining, e.Reason)
	}
	return tw.Flush()
}
