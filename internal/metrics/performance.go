// Package metrics computes backtest performance statistics and exports
// operational prometheus counters for the live/paper loops.
package metrics

import (
	"math"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time   int64
	Equity float64
}

// Performance is the summary statistic block computed over a finished run.
type Performance struct {
	InitialEquity float64
	FinalEquity   float64
	TotalReturn   float64

	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64

	ProfitFactor float64
	SharpeRatio  float64
	SortinoRatio float64
	MaxDrawdown  float64

	TotalFundingPaid float64
}

// Compute derives the performance block from the closed trades and the
// equity curve. Force-exit trades count toward P&L but are excluded from
// the win/loss statistics since their exit price may be notional.
func Compute(trades []core.Trade, curve []EquityPoint, initial float64, fundingPaid map[string]float64) Performance {
	perf := Performance{InitialEquity: initial, FinalEquity: initial}
	if len(curve) > 0 {
		perf.FinalEquity = curve[len(curve)-1].Equity
	}
	if initial > 0 {
		perf.TotalReturn = (perf.FinalEquity - initial) / initial
	}

	scored := lo.Filter(trades, func(t core.Trade, _ int) bool {
		return !t.ExitReason.IsForceExit()
	})
	perf.TotalTrades = len(trades)

	var grossProfit, grossLoss float64
	for _, t := range scored {
		if t.PnL > 0 {
			perf.Wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			perf.Losses++
			grossLoss += -t.PnL
		}
	}
	if n := perf.Wins + perf.Losses; n > 0 {
		perf.WinRate = float64(perf.Wins) / float64(n)
	}
	if grossLoss > 0 {
		perf.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		perf.ProfitFactor = math.Inf(1)
	}

	perf.SharpeRatio = sharpe(curve)
	perf.SortinoRatio = sortino(curve)
	perf.MaxDrawdown = maxDrawdown(curve)

	for _, paid := range fundingPaid {
		perf.TotalFundingPaid += paid
	}

	return perf
}

func curveReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (curve[i].Equity-prev)/prev)
	}
	return out
}

func sharpe(curve []EquityPoint) float64 {
	returns := curveReturns(curve)
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(float64(len(returns)))
}

func sortino(curve []EquityPoint) float64 {
	returns := curveReturns(curve)
	if len(returns) < 2 {
		return 0
	}
	mean := stat.Mean(returns, nil)

	var downSum float64
	var downs int
	for _, r := range returns {
		if r < 0 {
			downSum += r * r
			downs++
		}
	}
	if downs == 0 {
		return 0
	}
	downDev := math.Sqrt(downSum / float64(downs))
	if downDev == 0 {
		return 0
	}
	return mean / downDev * math.Sqrt(float64(len(returns)))
}

func maxDrawdown(curve []EquityPoint) float64 {
	var peak, maxDD float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}
