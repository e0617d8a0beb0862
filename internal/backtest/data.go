package backtest

import (
	"sort"

	"github.com/raykavin/marketcascade/internal/core"
)

// tickUnion returns the sorted union of open times present across all
// symbols, each timestamp once.
func tickUnion(candles map[string]core.Series) []int64 {
	seen := make(map[int64]struct{})
	for _, series := range candles {
		for _, c := range series {
			seen[c.OpenTime] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// candleAt finds the candle with the given open time via binary search.
func candleAt(series core.Series, t int64) (core.Candle, bool) {
	idx := sort.Search(len(series), func(i int) bool { return series[i].OpenTime >= t })
	if idx < len(series) && series[idx].OpenTime == t {
		return series[idx], true
	}
	return core.Candle{}, false
}

// pushCapped appends a candle and trims the window to maxLen.
func pushCapped(window core.Series, c core.Candle, maxLen int) core.Series {
	window = append(window, c)
	if maxLen > 0 && len(window) > maxLen {
		window = window[len(window)-maxLen:]
	}
	return window
}

// candleDuration derives the candle interval from the first symbol series
// with at least two candles.
func candleDuration(candles map[string]core.Series) int64 {
	for _, series := range candles {
		if len(series) >= 2 {
			return series[1].OpenTime - series[0].OpenTime
		}
	}
	return 0
}

// defaultWarmup sizes the warmup window from the configured indicator
// periods, with a floor wide enough for the regime classifier.
func defaultWarmup(cfg core.StrategyConfig) int {
	warmup := cfg.MA.Long + 1
	if cfg.RSI.Period+1 > warmup {
		warmup = cfg.RSI.Period + 1
	}
	if cfg.MACD.Enabled {
		if need := cfg.MACD.Slow + cfg.MACD.Signal + 1; need > warmup {
			warmup = need
		}
	}
	const regimeFloor = 30
	if warmup < regimeFloor {
		warmup = regimeFloor
	}
	return warmup
}
