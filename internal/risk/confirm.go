package risk

import (
	"math"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/strategy"
)

// DefaultMaxExitDeviation is the flash-crash bound on stop-loss exits when
// the config leaves max_exit_price_deviation unset.
const DefaultMaxExitDeviation = 0.15

// ConfirmResult is the confirm-exit verdict with a structured reason when
// rejected.
type ConfirmResult struct {
	Confirmed bool
	Reason    string
}

// ShouldConfirmExit decides whether a proposed exit proceeds. Force exits
// always confirm. A strategy implementing ConfirmExit is authoritative for
// everything else. The default policy rejects a stop-loss whose profit
// ratio exceeds maxDeviation in magnitude: a move that large usually means
// the book is gone and the fill would be much worse than the stop.
func ShouldConfirmExit(pos *core.Position, reason core.ExitReason, profitRatio, maxDeviation float64, strat strategy.Strategy, ctx *strategy.Context) ConfirmResult {
	if reason.IsForceExit() {
		return ConfirmResult{Confirmed: true}
	}

	if confirmer, ok := strat.(strategy.ExitConfirmer); ok {
		if confirmer.ConfirmExit(pos, reason, ctx) {
			return ConfirmResult{Confirmed: true}
		}
		return ConfirmResult{Reason: "strategy_rejected"}
	}

	if maxDeviation <= 0 {
		maxDeviation = DefaultMaxExitDeviation
	}
	if reason == core.ExitStopLoss && math.Abs(profitRatio) > maxDeviation {
		return ConfirmResult{Reason: "flash_crash_protection"}
	}

	return ConfirmResult{Confirmed: true}
}

// RejectionLog records the last exit rejection per symbol so callers can
// throttle repeated exit attempts.
type RejectionLog map[string]int64

// Record stamps a rejection for symbol at nowMs.
func (l RejectionLog) Record(symbol string, nowMs int64) { l[symbol] = nowMs }

// IsExitRejectionCoolingDown reports whether the last rejection for symbol
// happened within cooldownMs of nowMs.
func IsExitRejectionCoolingDown(symbol string, nowMs, cooldownMs int64, log RejectionLog) bool {
	last, ok := log[symbol]
	if !ok {
		return false
	}
	return nowMs-last < cooldownMs
}
