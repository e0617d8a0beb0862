package risk

import (
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/strategy"
)

// ResolveNewStopLoss produces the next stop price for an open position:
// the strategy's custom stop takes precedence, otherwise the break-even
// rule applies once its profit threshold is reached. The candidate is
// clamped to the hard floor implied by stop_loss_percent and only adopted
// when strictly more favourable than the current stop, so stops never walk
// backwards. Returns the new stop and whether it changed.
func ResolveNewStopLoss(pos *core.Position, mark float64, riskCfg core.RiskConfig, strat strategy.Strategy, ctx *strategy.Context) (float64, bool) {
	current := pos.StopLoss

	candidate, ok := customOrBreakEven(pos, mark, riskCfg, strat, ctx)
	if !ok {
		return current, false
	}

	candidate = clampToHardFloor(pos, candidate, riskCfg.StopLossPercent)

	switch pos.Side {
	case core.SideLong:
		if candidate > current {
			return candidate, true
		}
	case core.SideShort:
		if candidate < current {
			return candidate, true
		}
	}
	return current, false
}

func customOrBreakEven(pos *core.Position, mark float64, riskCfg core.RiskConfig, strat strategy.Strategy, ctx *strategy.Context) (float64, bool) {
	if custom, ok := strat.(strategy.CustomStoplosser); ok {
		if stop, has := custom.CustomStoploss(pos, ctx); has {
			return stop, true
		}
	}

	if riskCfg.BreakEvenProfit > 0 && pos.ProfitRatio(mark) >= riskCfg.BreakEvenProfit {
		switch pos.Side {
		case core.SideLong:
			return pos.EntryPrice * (1 + riskCfg.BreakEvenStop), true
		case core.SideShort:
			return pos.EntryPrice * (1 - riskCfg.BreakEvenStop), true
		}
	}
	return 0, false
}

// clampToHardFloor bounds the candidate by the original protective stop so
// no custom stop can widen the worst-case loss.
func clampToHardFloor(pos *core.Position, candidate, stopLossPercent float64) float64 {
	if stopLossPercent <= 0 {
		return candidate
	}
	switch pos.Side {
	case core.SideLong:
		floor := pos.EntryPrice * (1 - stopLossPercent/100)
		if candidate < floor {
			return floor
		}
	case core.SideShort:
		ceil := pos.EntryPrice * (1 + stopLossPercent/100)
		if candidate > ceil {
			return ceil
		}
	}
	return candidate
}

// UpdateTrailingStop advances the position's trailing stop from the
// candle's high/low water marks. Activation honours the classic
// activation/callback pair plus the positive-offset variant: once profit
// reaches trailing_stop_positive_offset the callback widens to
// trailing_stop_positive, and trailing_only_offset_is_reached suppresses
// all trailing until the offset is met. Returns true when the stop price
// moved.
func UpdateTrailingStop(pos *core.Position, high, low float64, riskCfg core.RiskConfig) bool {
	ts := riskCfg.TrailingStop
	if !ts.Enabled && riskCfg.TrailingStopPositive == 0 {
		return false
	}

	best := high
	if pos.Side == core.SideShort {
		best = low
	}
	profit := pos.ProfitRatio(best)

	offsetMet := riskCfg.TrailingStopPositiveOffset > 0 && profit >= riskCfg.TrailingStopPositiveOffset
	if riskCfg.TrailingOnlyOffsetIsReached && !offsetMet {
		return false
	}

	callback := ts.CallbackPercent / 100
	activation := ts.ActivationPercent / 100
	if offsetMet && riskCfg.TrailingStopPositive > 0 {
		callback = riskCfg.TrailingStopPositive
	}
	if callback <= 0 {
		return false
	}

	if pos.TrailingStop == nil {
		if activation > 0 && profit < activation && !offsetMet {
			return false
		}
		pos.TrailingStop = &core.TrailingStop{Active: true}
		pos.TrailingStopActivated = true
		if pos.Side == core.SideLong {
			pos.TrailingStop.HighestPrice = best
		} else {
			pos.TrailingStop.LowestPrice = best
		}
	}

	moved := false
	switch pos.Side {
	case core.SideLong:
		if high > pos.TrailingStop.HighestPrice {
			pos.TrailingStop.HighestPrice = high
		}
		stop := pos.TrailingStop.HighestPrice * (1 - callback)
		if stop > pos.TrailingStop.StopPrice {
			pos.TrailingStop.StopPrice = stop
			moved = true
		}
	case core.SideShort:
		if pos.TrailingStop.LowestPrice == 0 || low < pos.TrailingStop.LowestPrice {
			pos.TrailingStop.LowestPrice = low
		}
		stop := pos.TrailingStop.LowestPrice * (1 + callback)
		if pos.TrailingStop.StopPrice == 0 || stop < pos.TrailingStop.StopPrice {
			pos.TrailingStop.StopPrice = stop
			moved = true
		}
	}
	return moved
}
