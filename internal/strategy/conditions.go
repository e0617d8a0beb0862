package strategy

import "github.com/raykavin/marketcascade/internal/core"

// Condition is one named boolean predicate over the indicator snapshot.
type Condition func(ind *core.Indicators, cfg *core.Config) bool

// conditions is the catalogue the default rule evaluator resolves signal
// condition names against. Unknown names evaluate to false so a typo in
// config can never fire a signal.
var conditions = map[string]Condition{
	"ma_bullish": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.MAShort > ind.MALong
	},
	"ma_bearish": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.MAShort < ind.MALong
	},
	"ma_golden_cross": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.HasPrev && ind.PrevMAShort <= ind.PrevMALong && ind.MAShort > ind.MALong
	},
	"ma_death_cross": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.HasPrev && ind.PrevMAShort >= ind.PrevMALong && ind.MAShort < ind.MALong
	},
	"rsi_oversold": func(ind *core.Indicators, cfg *core.Config) bool {
		return ind.Rsi < cfg.Strategy.RSI.Oversold
	},
	"rsi_overbought": func(ind *core.Indicators, cfg *core.Config) bool {
		return ind.Rsi > cfg.Strategy.RSI.Overbought
	},
	"macd_golden_cross": func(ind *core.Indicators, _ *core.Config) bool {
		m := ind.MACD
		return m != nil && m.PrevMACD <= m.PrevSignal && m.MACD > m.Signal
	},
	"macd_death_cross": func(ind *core.Indicators, _ *core.Config) bool {
		m := ind.MACD
		return m != nil && m.PrevMACD >= m.PrevSignal && m.MACD < m.Signal
	},
	"macd_bullish": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.MACD != nil && ind.MACD.Histogram > 0
	},
	"macd_bearish": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.MACD != nil && ind.MACD.Histogram < 0
	},
	"volume_surge": func(ind *core.Indicators, cfg *core.Config) bool {
		return ind.AvgVolume > 0 && ind.Volume/ind.AvgVolume >= cfg.Strategy.Volume.SurgeRatio
	},
	"volume_low": func(ind *core.Indicators, cfg *core.Config) bool {
		return ind.AvgVolume > 0 && ind.Volume/ind.AvgVolume <= cfg.Strategy.Volume.LowRatio
	},
	"cvd_positive": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.CVD > 0
	},
	"cvd_negative": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.CVD < 0
	},
	"funding_positive": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.FundingRate > 0
	},
	"funding_negative": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.FundingRate < 0
	},
	"price_above_ma_long": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.Price > ind.MALong
	},
	"price_below_ma_long": func(ind *core.Indicators, _ *core.Config) bool {
		return ind.Price < ind.MALong
	},
}

// evalAll reports whether every named condition holds. An empty name list
// never fires.
func evalAll(names []string, ind *core.Indicators, cfg *core.Config) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		cond, ok := conditions[name]
		if !ok || !cond(ind, cfg) {
			return false
		}
	}
	return true
}
