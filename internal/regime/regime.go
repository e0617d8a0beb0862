// Package regime classifies market state from ADX, Bollinger-width
// percentile and recent price structure, producing the signal filter the
// engine applies before entries.
package regime

import (
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/indicator"
)

const (
	structureWindow = 10
	narrowWidth     = 0.3
	breakoutExpand  = 1.3
	adxTrending     = 25.0
	adxRanging      = 20.0

	bbPeriod    = 20
	bbDeviation = 2.0
	adxPeriod   = 14
)

// Classify labels the market state for the given candle window. Windows
// shorter than the Bollinger period plus the structure window fall back to a
// flat transition label so callers never need a special case.
func Classify(klines core.Series) core.RegimeAnalysis {
	n := len(klines)
	if n < bbPeriod+structureWindow {
		return core.RegimeAnalysis{
			Regime:       core.RegimeTransition,
			Confidence:   0,
			Structure:    core.StructureFlat,
			SignalFilter: core.FilterAll,
		}
	}

	closes := klines.Closes()
	highs := klines.Highs()
	lows := klines.Lows()

	widths := indicator.BBWidthSeries(closes, bbPeriod, bbDeviation)
	width := widths[n-1]
	widthAgo := widths[n-1-structureWindow]
	pct := indicator.Percentile(widths, width)

	adx := indicator.ADX(highs, lows, closes, adxPeriod)[n-1]
	plusDI := indicator.PlusDI(highs, lows, closes, adxPeriod)[n-1]
	minusDI := indicator.MinusDI(highs, lows, closes, adxPeriod)[n-1]

	structure := classifyStructure(highs, lows)

	out := core.RegimeAnalysis{
		ADX:               adx,
		BBWidth:           width,
		BBWidthPercentile: pct,
		Structure:         structure,
	}

	switch {
	case widthAgo > 0 && widthAgo < narrowWidth && width > widthAgo*breakoutExpand:
		if plusDI > minusDI {
			out.Regime = core.RegimeBreakoutUp
		} else {
			out.Regime = core.RegimeBreakoutDown
		}
		out.SignalFilter = core.FilterBreakout
		out.Confidence = 55

	case adx > adxTrending:
		out.SignalFilter = core.FilterTrendOnly
		switch {
		case plusDI > minusDI && structure == core.StructureHigherHighs:
			out.Regime = core.RegimeTrendingBull
			out.Confidence = min95(60 + 1.5*(adx-adxTrending))
		case minusDI > plusDI && structure == core.StructureLowerLows:
			out.Regime = core.RegimeTrendingBear
			out.Confidence = min95(60 + 1.5*(adx-adxTrending))
		case plusDI > minusDI:
			out.Regime = core.RegimeTrendingBull
			out.Confidence = 45
		default:
			out.Regime = core.RegimeTrendingBear
			out.Confidence = 45
		}

	case adx < adxRanging:
		if pct < 25 {
			out.Regime = core.RegimeRangingTight
			out.SignalFilter = core.FilterBreakout
			out.Confidence = 75
		} else {
			out.Regime = core.RegimeRangingWide
			out.SignalFilter = core.FilterReversalOnly
			out.Confidence = 65
		}

	default:
		out.Regime = core.RegimeTransition
		out.SignalFilter = core.FilterReducedSize
		out.Confidence = 45 + (adx - adxRanging)
	}

	if structureMismatch(out.Regime, structure) {
		out.Confidence -= 20
		if out.Confidence < 0 {
			out.Confidence = 0
		}
	}

	return out
}

// ShouldAllowSignal gates a signal class by the active filter. Breakout
// watch admits exits only; every other filter is advisory and handled by
// the engine (size reduction, override merge).
func ShouldAllowSignal(analysis core.RegimeAnalysis, signal core.SignalType) bool {
	if analysis.SignalFilter == core.FilterBreakout {
		return signal.IsExit()
	}
	return true
}

func classifyStructure(highs, lows []float64) core.Structure {
	n := len(highs)
	if n < structureWindow*2 {
		return core.StructureFlat
	}

	recentHigh := maxOf(highs[n-structureWindow:])
	priorHigh := maxOf(highs[n-structureWindow*2 : n-structureWindow])
	recentLow := minOf(lows[n-structureWindow:])
	priorLow := minOf(lows[n-structureWindow*2 : n-structureWindow])

	switch {
	case recentHigh == priorHigh && recentLow == priorLow:
		return core.StructureFlat
	case recentHigh > priorHigh && recentLow >= priorLow:
		return core.StructureHigherHighs
	case recentLow < priorLow && recentHigh <= priorHigh:
		return core.StructureLowerLows
	default:
		return core.StructureMixed
	}
}

func structureMismatch(regime core.Regime, structure core.Structure) bool {
	switch regime {
	case core.RegimeTrendingBull, core.RegimeBreakoutUp:
		return structure == core.StructureLowerLows
	case core.RegimeTrendingBear, core.RegimeBreakoutDown:
		return structure == core.StructureHigherHighs
	default:
		return false
	}
}

func min95(v float64) float64 {
	if v > 95 {
		return 95
	}
	return v
}

func maxOf(vs []float64) float64 {
	out := vs[0]
	for _, v := range vs[1:] {
		if v > out {
			out = v
		}
	}
	return out
}

func minOf(vs []float64) float64 {
	out := vs[0]
	for _, v := range vs[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
