// Package drift pairs paper and live trades for the same signals and
// reports how far their effective fill slippage diverged.
package drift

import (
	"math"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/samber/lo"
)

// PairWindowMs is the maximum entry-time distance for two trades to be
// considered the same signal.
const PairWindowMs int64 = 60_000

// DefaultThresholdPercent flags pairs whose drift exceeds this value.
const DefaultThresholdPercent = 0.5

// Config carries the per-scenario slippage fractions used to reconstruct
// the signal price behind each fill, and the reporting threshold.
type Config struct {
	PaperSlippage    float64
	LiveSlippage     float64
	ThresholdPercent float64
}

// Pair is one matched paper/live trade couple.
type Pair struct {
	Symbol       string
	Side         core.TradeSide
	Paper        core.Trade
	Live         core.Trade
	DriftPercent float64
}

// SymbolStats aggregates drift per symbol.
type SymbolStats struct {
	Count    int
	AvgDrift float64
}

// Report is the full drift summary.
type Report struct {
	TotalPairs     int
	AvgDrift       float64
	MaxDrift       float64
	CountExceeding int
	Threshold      float64
	Pairs          []Pair
	PerSymbol      map[string]SymbolStats
}

// Analyze matches paper trades to live trades on (symbol, side) with entry
// times within PairWindowMs, then compares their slippage ratios. Each
// live trade is consumed by at most one pair. Force-exit trades are
// skipped: their exit price may be notional.
func Analyze(paperTrades, liveTrades []core.Trade, cfg Config) Report {
	threshold := cfg.ThresholdPercent
	if threshold <= 0 {
		threshold = DefaultThresholdPercent
	}
	report := Report{Threshold: threshold, PerSymbol: make(map[string]SymbolStats)}

	usable := func(t core.Trade, _ int) bool { return !t.ExitReason.IsForceExit() }
	paper := lo.Filter(paperTrades, usable)
	live := lo.Filter(liveTrades, usable)

	consumed := make([]bool, len(live))
	var driftSum float64
	symbolSums := make(map[string]float64)

	for _, p := range paper {
		matched := -1
		for i, l := range live {
			if consumed[i] || l.Symbol != p.Symbol || l.Side != p.Side {
				continue
			}
			if abs64(l.EntryTime-p.EntryTime) > PairWindowMs {
				continue
			}
			matched = i
			break
		}
		if matched < 0 {
			continue
		}
		consumed[matched] = true
		l := live[matched]

		isLong := p.Side == core.TradeSideSell || p.Side == core.TradeSideBuy
		d := math.Abs(slippageRatio(p.EntryPrice, cfg.PaperSlippage, isLong) -
			slippageRatio(l.EntryPrice, cfg.LiveSlippage, isLong))

		pair := Pair{Symbol: p.Symbol, Side: p.Side, Paper: p, Live: l, DriftPercent: d}
		report.Pairs = append(report.Pairs, pair)
		report.TotalPairs++
		driftSum += d
		symbolSums[p.Symbol] += d
		stats := report.PerSymbol[p.Symbol]
		stats.Count++
		report.PerSymbol[p.Symbol] = stats
		if d > report.MaxDrift {
			report.MaxDrift = d
		}
		if d > threshold {
			report.CountExceeding++
		}
	}

	if report.TotalPairs > 0 {
		report.AvgDrift = driftSum / float64(report.TotalPairs)
	}
	for sym, stats := range report.PerSymbol {
		stats.AvgDrift = symbolSums[sym] / float64(stats.Count)
		report.PerSymbol[sym] = stats
	}
	return report
}

// slippageRatio reconstructs the pre-slippage signal price behind a fill
// and returns the slippage as a percent of it. Long entries fill above the
// signal price, short entries below.
func slippageRatio(fillPrice, slippageFraction float64, isLong bool) float64 {
	slipPerUnit := fillPrice * slippageFraction
	var signalPrice float64
	if isLong {
		signalPrice = fillPrice - slipPerUnit
	} else {
		signalPrice = fillPrice + slipPerUnit
	}
	if signalPrice == 0 {
		return 0
	}
	return (fillPrice - signalPrice) / signalPrice * 100
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
