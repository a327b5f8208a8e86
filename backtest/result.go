// Package backtest turns closed trades into performance statistics.
package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/dumbCodesOnly/SigV0.01/risk"
)

// Account describes the notional account used for the equity curve. Every
// trade risks RiskPct of the balance at the time it closes.
type Account struct {
	StartBalance float64 `json:"start_balance" yaml:"start_balance"`
	RiskPct      float64 `json:"risk_pct" yaml:"risk_pct"`
}

func DefaultAccount() Account {
	return Account{StartBalance: 10000, RiskPct: 0.01}
}

// Result summarizes a run. R values are in units of each trade's initial
// risk; balances follow the fixed-fractional equity curve.
type Result struct {
	TradeCount int `json:"trade_count" yaml:"trade_count"`
	Wins       int `json:"wins" yaml:"wins"`
	Losses     int `json:"losses" yaml:"losses"`
	Breakevens int `json:"breakevens" yaml:"breakevens"`
	Cancelled  int `json:"cancelled" yaml:"cancelled"`
	Unfilled   int `json:"unfilled" yaml:"unfilled"`

	WinRate          float64 `json:"win_rate" yaml:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor" yaml:"profit_factor"`
	AverageRMultiple float64 `json:"average_r_multiple" yaml:"average_r_multiple"`
	TotalR           float64 `json:"total_r" yaml:"total_r"`
	AvgWinR          float64 `json:"avg_win_r" yaml:"avg_win_r"`
	AvgLossR         float64 `json:"avg_loss_r" yaml:"avg_loss_r"`
	Expectancy       float64 `json:"expectancy" yaml:"expectancy"`
	MaxDrawdown      float64 `json:"max_drawdown" yaml:"max_drawdown"`
	Sharpe           float64 `json:"sharpe" yaml:"sharpe"`

	StartBalance   float64 `json:"start_balance" yaml:"start_balance"`
	EndBalance     float64 `json:"end_balance" yaml:"end_balance"`
	NetPL          float64 `json:"net_pl" yaml:"net_pl"`
	ReturnPct      float64 `json:"return_pct" yaml:"return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`

	// Positions still running when the data ended. Not part of the statistics.
	OpenAtEnd int `json:"open_at_end" yaml:"open_at_end"`

	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Point is one step of the equity curve.
type Point struct {
	Time    time.Time
	TradeID string
	R       float64 // cumulative
	Balance float64
}

// SortTrades orders trades by close time, then ID.
func SortTrades(trades []risk.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].ClosedAt.Equal(trades[j].ClosedAt) {
			return trades[i].ClosedAt.Before(trades[j].ClosedAt)
		}
		return trades[i].ID < trades[j].ID
	})
}

// filled returns the closed trades that ever entered the market, in close order.
func filled(trades []risk.Trade) []risk.Trade {
	out := make([]risk.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Filled && !t.OpenAtEnd {
			out = append(out, t)
		}
	}
	SortTrades(out)
	return out
}

// EquityCurve compounds each filled trade's R at the account's risk per trade.
func EquityCurve(trades []risk.Trade, acct Account) []Point {
	ts := filled(trades)
	pts := make([]Point, 0, len(ts))
	bal := acct.StartBalance
	cum := 0.0
	for _, t := range ts {
		cum += t.R
		bal += bal * acct.RiskPct * t.R
		pts = append(pts, Point{Time: t.ClosedAt, TradeID: t.ID, R: cum, Balance: bal})
	}
	return pts
}

// Aggregate computes statistics over closed trades. Trades flagged
// OpenAtEnd are counted separately and excluded from every other field.
func Aggregate(trades []risk.Trade, acct Account) Result {
	r := Result{StartBalance: acct.StartBalance, EndBalance: acct.StartBalance}

	for _, t := range trades {
		switch {
		case t.OpenAtEnd:
			r.OpenAtEnd++
		case !t.Filled:
			r.Unfilled++
		}
	}

	ts := filled(trades)
	r.TradeCount = len(ts)
	if len(ts) == 0 {
		return r
	}
	r.Start = ts[0].OpenedAt
	r.End = ts[len(ts)-1].ClosedAt

	var grossWin, grossLoss float64
	rs := make([]float64, 0, len(ts))
	for _, t := range ts {
		if t.OpenedAt.Before(r.Start) {
			r.Start = t.OpenedAt
		}
		if t.CloseReason == risk.ExternalCancel {
			r.Cancelled++
		}
		switch {
		case t.Win():
			r.Wins++
			grossWin += t.R
		case t.Loss():
			r.Losses++
			grossLoss += -t.R
		default:
			r.Breakevens++
		}
		r.TotalR += t.R
		rs = append(rs, t.R)
	}

	n := float64(len(ts))
	r.WinRate = float64(r.Wins) / n
	r.AverageRMultiple = r.TotalR / n
	r.Expectancy = r.AverageRMultiple
	if r.Wins > 0 {
		r.AvgWinR = grossWin / float64(r.Wins)
	}
	if r.Losses > 0 {
		r.AvgLossR = -grossLoss / float64(r.Losses)
	}
	switch {
	case grossLoss > 0:
		r.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		r.ProfitFactor = math.Inf(1)
	}
	r.Sharpe = sharpe(rs)

	// Drawdown in R over the cumulative curve, and in percent over balance.
	peakR, peakBal := 0.0, acct.StartBalance
	for _, p := range EquityCurve(ts, acct) {
		peakR = math.Max(peakR, p.R)
		r.MaxDrawdown = math.Max(r.MaxDrawdown, peakR-p.R)
		peakBal = math.Max(peakBal, p.Balance)
		if peakBal > 0 {
			r.MaxDrawdownPct = math.Max(r.MaxDrawdownPct, (peakBal-p.Balance)/peakBal*100)
		}
		r.EndBalance = p.Balance
	}
	r.NetPL = r.EndBalance - r.StartBalance
	if r.StartBalance > 0 {
		r.ReturnPct = r.NetPL / r.StartBalance * 100
	}
	return r
}

// sharpe is the per-trade mean R over its sample standard deviation.
func sharpe(rs []float64) float64 {
	if len(rs) < 2 {
		return 0
	}
	mean := 0.0
	for _, x := range rs {
		mean += x
	}
	mean /= float64(len(rs))

	ss := 0.0
	for _, x := range rs {
		ss += (x - mean) * (x - mean)
	}
	sd := math.Sqrt(ss / float64(len(rs)-1))
	if sd == 0 {
		return 0
	}
	return mean / sd
}
