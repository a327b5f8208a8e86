package journal

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"text/template"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/risk"
)

// OrgRun is what the Org template renders.
type OrgRun struct {
	backtest.Report
	Trades []risk.Trade
}

var orgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
	"factor": func(x float64) string {
		if math.IsInf(x, 1) {
			return "inf"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"short": func(id string) string {
		if len(id) > 8 {
			return id[:8]
		}
		return id
	},
}

// RenderOrg returns the Org-mode report for a run.
func RenderOrg(run OrgRun) (string, error) {
	t, err := template.New("run").Funcs(orgFuncs).Parse(RunOrgTemplate)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, run); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteOrg renders the report to path.
func WriteOrg(path string, run OrgRun) error {
	s, err := RenderOrg(run)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const RunOrgTemplate = `
* BACKTEST: {{range $i, $s := .Instruments}}{{if $i}}, {{end}}{{$s}}{{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:BARS:        {{.Bars}}
:START_BAL:   {{printf "%.2f" .Result.StartBalance}}
:END_BAL:     {{printf "%.2f" .Result.EndBalance}}
:NET_PL:      {{printf "%.2f" .Result.NetPL}}
:RETURN_PCT:  {{printf "%.2f" .Result.ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .Result.MaxDrawdownPct}}
:TRADES:      {{.Result.TradeCount}}
:WINS:        {{.Result.Wins}}
:LOSSES:      {{.Result.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .Result.WinRate)}}
:PROFIT_FAC:  {{factor .Result.ProfitFactor}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Total R:          *{{printf "%.3f" .Result.TotalR}}*
- Average R:        *{{printf "%.3f" .Result.AverageRMultiple}}*
- Max Drawdown (R): *{{printf "%.3f" .Result.MaxDrawdown}}*
- Win Rate:         *{{printf "%.2f" (mul100 .Result.WinRate)}}%*
- Profit Factor:    *{{factor .Result.ProfitFactor}}*
- Risk per Trade:   *{{printf "%.2f" (mul100 .Account.RiskPct)}}%*

** Trade Distribution
| Outcome    | Count |
|------------+-------|
| Wins       | {{.Result.Wins}} |
| Losses     | {{.Result.Losses}} |
| Breakevens | {{.Result.Breakevens}} |
| Open (end) | {{.Result.OpenAtEnd}} |
| Total      | {{.Result.TradeCount}} |

{{- if .Trades }}

** Trades
| ID | Instrument | Dir | Setup | Entry | Stop | Closed | Reason | R |
|----+------------+-----+-------+-------+------+--------+--------+---|
{{- range .Trades }}
| {{short .ID}} | {{.Instrument}} | {{.Direction}} | {{.Setup}} | {{printf "%.4f" .Entry}} | {{printf "%.4f" .StopLoss}} | {{.ClosedAt.Format "2006-01-02 15:04"}} | {{.CloseReason}} | {{printf "%.2f" .R}} |
{{- end }}
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
