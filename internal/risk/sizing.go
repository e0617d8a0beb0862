package risk

import "github.com/raykavin/marketcascade/internal/core"

// KellyFraction sizes a position from the historical win rate and payoff
// ratio: f = w - (1-w)/r, clamped to [0, maxFraction]. With no history or
// a non-positive payoff ratio it returns the fallback fraction.
func KellyFraction(trades []core.TradeRecord, fallback, maxFraction float64) float64 {
	if len(trades) == 0 {
		return fallback
	}

	var wins, losses int
	var winSum, lossSum float64
	for _, t := range trades {
		if t.PnlRatio > 0 {
			wins++
			winSum += t.PnlRatio
		} else if t.PnlRatio < 0 {
			losses++
			lossSum += -t.PnlRatio
		}
	}
	if wins == 0 || losses == 0 {
		return fallback
	}

	w := float64(wins) / float64(wins+losses)
	avgWin := winSum / float64(wins)
	avgLoss := lossSum / float64(losses)
	if avgLoss == 0 {
		return fallback
	}
	r := avgWin / avgLoss
	if r <= 0 {
		return fallback
	}

	f := w - (1-w)/r
	if f < 0 {
		return 0
	}
	if maxFraction > 0 && f > maxFraction {
		return maxFraction
	}
	return f
}

// ROITarget resolves the minimal-ROI table for the given hold duration:
// among keys not exceeding holdMs, the largest key's threshold applies.
// Returns the threshold and true, or false when no key matched.
func ROITarget(table map[int64]float64, holdMs int64) (float64, bool) {
	var bestKey int64 = -1
	var threshold float64
	for key, value := range table {
		if key <= holdMs && key > bestKey {
			bestKey = key
			threshold = value
		}
	}
	if bestKey < 0 {
		return 0, false
	}
	return threshold, true
}

// ROIExitTriggered reports whether the position's profit at mark meets the
// ROI-table threshold for its current hold duration.
func ROIExitTriggered(pos *core.Position, mark float64, table map[int64]float64, nowMs int64) bool {
	if len(table) == 0 {
		return false
	}
	threshold, ok := ROITarget(table, pos.HoldDurationMs(nowMs))
	if !ok {
		return false
	}
	return pos.ProfitRatio(mark) >= threshold
}
