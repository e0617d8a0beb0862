// Package report renders run summaries as CLI tables.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/drift"
	"github.com/raykavin/marketcascade/internal/metrics"
	"github.com/samber/lo"
)

// Performance prints the backtest summary block.
func Performance(w io.Writer, perf metrics.Performance) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)

	rows := [][]string{
		{"Initial equity", fmt.Sprintf("%.2f USDT", perf.InitialEquity)},
		{"Final equity", fmt.Sprintf("%.2f USDT", perf.FinalEquity)},
		{"Total return", fmt.Sprintf("%.2f%%", perf.TotalReturn*100)},
		{"Trades", fmt.Sprintf("%d", perf.TotalTrades)},
		{"Win rate", fmt.Sprintf("%.1f%%", perf.WinRate*100)},
		{"Profit factor", formatRatio(perf.ProfitFactor)},
		{"Sharpe", fmt.Sprintf("%.2f", perf.SharpeRatio)},
		{"Sortino", fmt.Sprintf("%.2f", perf.SortinoRatio)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", perf.MaxDrawdown*100)},
		{"Funding paid", fmt.Sprintf("%.2f USDT", perf.TotalFundingPaid)},
	}
	table.AppendBulk(rows)
	table.Render()
}

// Trades prints the per-symbol trade breakdown.
func Trades(w io.Writer, trades []core.Trade) {
	bySymbol := lo.GroupBy(trades, func(t core.Trade) string { return t.Symbol })
	symbols := lo.Keys(bySymbol)
	sort.Strings(symbols)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Trades", "Wins", "Losses", "PnL (USDT)", "Avg PnL %"})
	table.SetBorder(false)

	for _, sym := range symbols {
		ts := bySymbol[sym]
		wins := lo.CountBy(ts, func(t core.Trade) bool { return t.PnL > 0 })
		losses := lo.CountBy(ts, func(t core.Trade) bool { return t.PnL < 0 })
		pnl := lo.SumBy(ts, func(t core.Trade) float64 { return t.PnL })
		avgPct := lo.SumBy(ts, func(t core.Trade) float64 { return t.PnLPercent }) / float64(len(ts))

		table.Append([]string{
			sym,
			fmt.Sprintf("%d", len(ts)),
			fmt.Sprintf("%d", wins),
			fmt.Sprintf("%d", losses),
			fmt.Sprintf("%.2f", pnl),
			fmt.Sprintf("%.2f%%", avgPct*100),
		})
	}
	table.Render()
}

// Drift prints the execution-drift comparison.
func Drift(w io.Writer, rep drift.Report) {
	fmt.Fprintf(w, "pairs: %d  avg drift: %.4f%%  max: %.4f%%  above %.2f%%: %d\n",
		rep.TotalPairs, rep.AvgDrift, rep.MaxDrift, rep.Threshold, rep.CountExceeding)

	if len(rep.PerSymbol) == 0 {
		return
	}
	symbols := lo.Keys(rep.PerSymbol)
	sort.Strings(symbols)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "Pairs", "Avg drift %"})
	table.SetBorder(false)
	for _, sym := range symbols {
		stats := rep.PerSymbol[sym]
		table.Append([]string{sym, fmt.Sprintf("%d", stats.Count), fmt.Sprintf("%.4f", stats.AvgDrift)})
	}
	table.Render()
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
