package backtest

import (
	"fmt"
	"io"
	"math"
	"time"

	"gopkg.in/yaml.v3"
)

// Report is a finished run with the metadata needed to print or archive it.
type Report struct {
	RunID       string    `yaml:"run_id"`
	Created     time.Time `yaml:"created"`
	Dataset     string    `yaml:"dataset"`
	Instruments []string  `yaml:"instruments"`
	Bars        int       `yaml:"bars"`

	Account Account `yaml:"account"`
	Result  Result  `yaml:"result"`

	// Path of the Org report, if one was written.
	OrgPath string   `yaml:"org_path,omitempty"`
	Notes   []string `yaml:"notes,omitempty"`
}

func formatFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

func Print(w io.Writer, rep Report) {
	r := rep.Result
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintf(w, "Run ID:        %s\n", rep.RunID)
	fmt.Fprintf(w, "Created:       %s\n", rep.Created.Format(time.RFC3339))
	if rep.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", rep.Dataset)
	}
	fmt.Fprintf(w, "Instruments:   %v\n", rep.Instruments)
	fmt.Fprintf(w, "Bars:          %d\n", rep.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	if r.TradeCount > 0 {
		fmt.Fprintf(w, "Start:         %s\n", r.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", r.End.Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "(no closed trades)")
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", r.TradeCount)
	fmt.Fprintf(w, "Wins:          %d\n", r.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", r.Losses)
	fmt.Fprintf(w, "Breakevens:    %d\n", r.Breakevens)
	if r.Cancelled > 0 {
		fmt.Fprintf(w, "Cancelled:     %d\n", r.Cancelled)
	}
	if r.Unfilled > 0 {
		fmt.Fprintf(w, "Unfilled:      %d\n", r.Unfilled)
	}
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", r.WinRate*100)
	fmt.Fprintf(w, "Avg R:         %.3f\n", r.AverageRMultiple)
	fmt.Fprintf(w, "Avg Win R:     %.3f\n", r.AvgWinR)
	fmt.Fprintf(w, "Avg Loss R:    %.3f\n", r.AvgLossR)
	fmt.Fprintf(w, "Total R:       %.3f\n", r.TotalR)
	fmt.Fprintf(w, "Profit Factor: %s\n", formatFactor(r.ProfitFactor))
	fmt.Fprintf(w, "Max DD (R):    %.3f\n", r.MaxDrawdown)
	fmt.Fprintf(w, "Sharpe/trade:  %.3f\n", r.Sharpe)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Risk per Trade: %.2f%%\n", rep.Account.RiskPct*100)
	fmt.Fprintf(w, "Start Balance: %.2f\n", r.StartBalance)
	fmt.Fprintf(w, "End Balance:   %.2f\n", r.EndBalance)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", r.NetPL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", r.ReturnPct)
	if r.MaxDrawdownPct > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", r.MaxDrawdownPct)
	}

	if r.OpenAtEnd > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Open at end:   %d (excluded)\n", r.OpenAtEnd)
	}

	if rep.OrgPath != "" {
		fmt.Fprintf(w, "Org Report:    %s\n", rep.OrgPath)
	}

	if len(rep.Notes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Observations")
		fmt.Fprintln(w, "--------------------------------------------------")
		for _, note := range rep.Notes {
			fmt.Fprintf(w, "- %s\n", note)
		}
	}

	fmt.Fprintln(w)
}

// WriteYAML dumps the report for other tools.
func WriteYAML(w io.Writer, rep Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
