package risk

import "github.com/raykavin/marketcascade/internal/core"

// ExitDecision names the rule that fired and the price it fired at.
type ExitDecision struct {
	Reason core.ExitReason
	Price  float64
}

// CheckExit evaluates the intra-candle exit priority for one position
// against one candle. The ordering is pessimistic: the stop loss is
// checked before any profit-taking rule, so a candle that straddles both
// closes at the stop. With intracandle disabled every trigger is tested
// against the close only. The first matched rule wins; staged take-profit
// ties break in stage enumeration order.
func CheckExit(pos *core.Position, candle core.Candle, riskCfg core.RiskConfig, nowMs int64, intracandle bool) (ExitDecision, bool) {
	high, low := candle.High, candle.Low
	if !intracandle {
		high, low = candle.Close, candle.Close
	}

	if pos.Side == core.SideLong {
		return checkExitLong(pos, high, low, candle.Close, riskCfg, nowMs)
	}
	return checkExitShort(pos, high, low, candle.Close, riskCfg, nowMs)
}

func checkExitLong(pos *core.Position, high, low, close float64, riskCfg core.RiskConfig, nowMs int64) (ExitDecision, bool) {
	if pos.StopLoss > 0 && low <= pos.StopLoss {
		return ExitDecision{Reason: core.ExitStopLoss, Price: pos.StopLoss}, true
	}

	if len(riskCfg.MinimalROI) > 0 {
		if threshold, ok := ROITarget(riskCfg.MinimalROI, pos.HoldDurationMs(nowMs)); ok {
			trigger := pos.EntryPrice * (1 + threshold)
			if high >= trigger {
				price := trigger
				if trigger <= low {
					price = close
				}
				return ExitDecision{Reason: core.ExitROITable, Price: price}, true
			}
		}
	}

	if pos.TakeProfit > 0 && high >= pos.TakeProfit {
		return ExitDecision{Reason: core.ExitTakeProfit, Price: pos.TakeProfit}, true
	}

	for _, stage := range riskCfg.TakeProfitStages {
		trigger := pos.EntryPrice * (1 + stage.AtPercent/100)
		if high >= trigger {
			return ExitDecision{Reason: core.ExitStagedTP, Price: trigger}, true
		}
	}

	if ts := pos.TrailingStop; ts != nil && ts.Active && ts.StopPrice > 0 && low <= ts.StopPrice {
		return ExitDecision{Reason: core.ExitTrailingStop, Price: ts.StopPrice}, true
	}

	if timeStopTriggered(pos, close, riskCfg, nowMs) {
		return ExitDecision{Reason: core.ExitTimeStop, Price: close}, true
	}

	return ExitDecision{}, false
}

func checkExitShort(pos *core.Position, high, low, close float64, riskCfg core.RiskConfig, nowMs int64) (ExitDecision, bool) {
	if pos.StopLoss > 0 && high >= pos.StopLoss {
		return ExitDecision{Reason: core.ExitStopLoss, Price: pos.StopLoss}, true
	}

	if len(riskCfg.MinimalROI) > 0 {
		if threshold, ok := ROITarget(riskCfg.MinimalROI, pos.HoldDurationMs(nowMs)); ok {
			trigger := pos.EntryPrice * (1 - threshold)
			if low <= trigger {
				price := trigger
				if trigger >= high {
					price = close
				}
				return ExitDecision{Reason: core.ExitROITable, Price: price}, true
			}
		}
	}

	if pos.TakeProfit > 0 && low <= pos.TakeProfit {
		return ExitDecision{Reason: core.ExitTakeProfit, Price: pos.TakeProfit}, true
	}

	for _, stage := range riskCfg.TakeProfitStages {
		trigger := pos.EntryPrice * (1 - stage.AtPercent/100)
		if low <= trigger {
			return ExitDecision{Reason: core.ExitStagedTP, Price: trigger}, true
		}
	}

	if ts := pos.TrailingStop; ts != nil && ts.Active && ts.StopPrice > 0 && high >= ts.StopPrice {
		return ExitDecision{Reason: core.ExitTrailingStop, Price: ts.StopPrice}, true
	}

	if timeStopTriggered(pos, close, riskCfg, nowMs) {
		return ExitDecision{Reason: core.ExitTimeStop, Price: close}, true
	}

	return ExitDecision{}, false
}

// timeStopTriggered fires only on stale positions that are not in profit;
// a winner is left to the profit-taking rules.
func timeStopTriggered(pos *core.Position, close float64, riskCfg core.RiskConfig, nowMs int64) bool {
	if riskCfg.TimeStopHours <= 0 {
		return false
	}
	holdMs := pos.HoldDurationMs(nowMs)
	return holdMs >= int64(riskCfg.TimeStopHours*3600000) && pos.ProfitRatio(close) <= 0
}
