// Package risk implements the entry/exit gating cascade: the risk-reward
// filter, correlation gate and portfolio heat, the protection manager,
// break-even and custom stop resolution, the confirm-exit hook, Kelly
// sizing and the ROI table.
package risk

import (
	"math"

	"github.com/raykavin/marketcascade/internal/core"
)

// DefaultRRLookback is the support/resistance window when none is given.
const DefaultRRLookback = 20

// rrMinCandles is the floor below which the check is skipped entirely.
const rrMinCandles = 5

// RRResult carries the computed ratio and the pass/fail verdict.
type RRResult struct {
	Ratio      float64
	Support    float64
	Resistance float64
	Passed     bool
}

// CheckRiskReward computes prospective reward over risk against the
// support/resistance of the last lookback candles. A configured minimum of
// zero disables the filter; fewer than five candles skip it.
func CheckRiskReward(klines core.Series, signal core.SignalType, price, minRR float64, lookback int) RRResult {
	if minRR == 0 {
		return RRResult{Ratio: math.Inf(1), Passed: true}
	}
	if lookback <= 0 {
		lookback = DefaultRRLookback
	}
	if len(klines) < rrMinCandles {
		return RRResult{Ratio: math.Inf(1), Passed: true}
	}

	window := klines
	if len(window) > lookback {
		window = window[len(window)-lookback:]
	}

	support := window[0].Low
	resistance := window[0].High
	for _, c := range window[1:] {
		if c.Low < support {
			support = c.Low
		}
		if c.High > resistance {
			resistance = c.High
		}
	}

	return checkRR(signal, price, support, resistance, minRR)
}

// CheckRiskRewardWithPivots is the variant used when an external pivot
// supplies support and resistance directly.
func CheckRiskRewardWithPivots(signal core.SignalType, price, support, resistance, minRR float64) RRResult {
	if minRR == 0 {
		return RRResult{Ratio: math.Inf(1), Passed: true}
	}
	return checkRR(signal, price, support, resistance, minRR)
}

func checkRR(signal core.SignalType, price, support, resistance, minRR float64) RRResult {
	out := RRResult{Support: support, Resistance: resistance}

	var reward, riskAmt float64
	switch signal {
	case core.SignalBuy:
		reward = resistance - price
		riskAmt = price - support
	case core.SignalShort:
		reward = price - support
		riskAmt = resistance - price
	default:
		out.Ratio = math.Inf(1)
		out.Passed = true
		return out
	}

	if riskAmt <= 0 {
		out.Ratio = math.Inf(1)
		out.Passed = true
		return out
	}

	out.Ratio = reward / riskAmt
	out.Passed = out.Ratio >= minRR
	return out
}
