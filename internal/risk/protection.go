package risk

import (
	"fmt"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/samber/lo"
)

// ProtectionVerdict is the outcome of the protection cascade. The first
// failing rule wins and carries a human-readable reason.
type ProtectionVerdict struct {
	Allowed bool
	Rule    string
	Reason  string
}

func allow() ProtectionVerdict { return ProtectionVerdict{Allowed: true} }

func block(rule, format string, args ...any) ProtectionVerdict {
	return ProtectionVerdict{Rule: rule, Reason: fmt.Sprintf(format, args...)}
}

// CheckProtections runs the four gates in fixed order over the recent
// closed-trade records: cooldown, stoploss guard, max drawdown, low-profit
// pairs. Windows are expressed in candles of the active timeframe.
func CheckProtections(cfg core.ProtectionsConfig, symbol string, trades []core.TradeRecord, nowMs, candleMs int64) ProtectionVerdict {
	if candleMs <= 0 {
		return allow()
	}

	if cfg.Cooldown.Enabled {
		if v := checkCooldown(cfg.Cooldown, symbol, trades, nowMs, candleMs); !v.Allowed {
			return v
		}
	}
	if cfg.StoplossGuard.Enabled {
		if v := checkStoplossGuard(cfg.StoplossGuard, symbol, trades, nowMs, candleMs); !v.Allowed {
			return v
		}
	}
	if cfg.MaxDrawdown.Enabled {
		if v := checkMaxDrawdown(cfg.MaxDrawdown, trades, nowMs, candleMs); !v.Allowed {
			return v
		}
	}
	if cfg.LowProfitPairs.Enabled {
		if v := checkLowProfitPairs(cfg.LowProfitPairs, symbol, trades, nowMs, candleMs); !v.Allowed {
			return v
		}
	}
	return allow()
}

// checkCooldown blocks a symbol that has any stop-loss trade inside the
// stop-duration window.
func checkCooldown(rule core.ProtectionRule, symbol string, trades []core.TradeRecord, nowMs, candleMs int64) ProtectionVerdict {
	window := int64(rule.StopDurationCandles) * candleMs
	if window <= 0 {
		window = int64(rule.LookbackPeriodCandles) * candleMs
	}
	cutoff := nowMs - window

	for _, t := range trades {
		if t.Symbol == symbol && t.WasStopLoss && t.ClosedAt >= cutoff {
			return block("CooldownPeriod",
				"cooldown active for %s: stop-loss %d candles ago", symbol, (nowMs-t.ClosedAt)/candleMs)
		}
	}
	return allow()
}

// checkStoplossGuard blocks when too many stop-loss exits accumulated in
// the lookback window, either for this pair only or globally.
func checkStoplossGuard(rule core.ProtectionRule, symbol string, trades []core.TradeRecord, nowMs, candleMs int64) ProtectionVerdict {
	cutoff := nowMs - int64(rule.LookbackPeriodCandles)*candleMs

	count := lo.CountBy(trades, func(t core.TradeRecord) bool {
		if !t.WasStopLoss || t.ClosedAt < cutoff {
			return false
		}
		return !rule.OnlyPerPair || t.Symbol == symbol
	})

	if rule.TradeLimit > 0 && count >= rule.TradeLimit {
		return block("StoplossGuard",
			"%d stop-loss trades in last %d candles (limit %d)", count, rule.LookbackPeriodCandles, rule.TradeLimit)
	}
	return allow()
}

// checkMaxDrawdown blocks globally when the summed pnl ratio of the window
// is at or below the allowed (negative) drawdown.
func checkMaxDrawdown(rule core.ProtectionRule, trades []core.TradeRecord, nowMs, candleMs int64) ProtectionVerdict {
	cutoff := nowMs - int64(rule.LookbackPeriodCandles)*candleMs

	window := lo.Filter(trades, func(t core.TradeRecord, _ int) bool {
		return t.ClosedAt >= cutoff
	})
	if len(window) < rule.TradeLimit {
		return allow()
	}

	total := lo.SumBy(window, func(t core.TradeRecord) float64 { return t.PnlRatio })
	if total <= rule.MaxAllowedDrawdown {
		return block("MaxDrawdownProtection",
			"drawdown %.4f over %d trades exceeds %.4f", total, len(window), rule.MaxAllowedDrawdown)
	}
	return allow()
}

// checkLowProfitPairs blocks a pair whose mean pnl ratio over the window
// stays under the required profit.
func checkLowProfitPairs(rule core.ProtectionRule, symbol string, trades []core.TradeRecord, nowMs, candleMs int64) ProtectionVerdict {
	cutoff := nowMs - int64(rule.LookbackPeriodCandles)*candleMs

	window := lo.Filter(trades, func(t core.TradeRecord, _ int) bool {
		return t.Symbol == symbol && t.ClosedAt >= cutoff
	})
	if len(window) < rule.TradeLimit {
		return allow()
	}

	mean := lo.SumBy(window, func(t core.TradeRecord) float64 { return t.PnlRatio }) / float64(len(window))
	if mean < rule.RequiredProfit {
		return block("LowProfitPairs",
			"%s mean pnl %.4f below required %.4f over %d trades", symbol, mean, rule.RequiredProfit, len(window))
	}
	return allow()
}
