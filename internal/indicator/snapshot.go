package indicator

import (
	"math"

	"github.com/raykavin/marketcascade/internal/core"
)

const (
	adxPeriod       = 14
	bbPeriod        = 20
	bbDeviation     = 2.0
	volumeAvgPeriod = 20
)

// Snapshot computes a full indicator snapshot at the last candle of the
// window, or nil when the window is too short for the configured periods.
// The candle series is never mutated.
func Snapshot(klines core.Series, cfg core.StrategyConfig) *core.Indicators {
	n := len(klines)
	need := cfg.MA.Long + 1
	if cfg.RSI.Period+1 > need {
		need = cfg.RSI.Period + 1
	}
	if cfg.MACD.Enabled {
		if macdNeed := cfg.MACD.Slow + cfg.MACD.Signal + 1; macdNeed > need {
			need = macdNeed
		}
	}
	if n < need {
		return nil
	}

	closes := klines.Closes()
	opens := klines.Opens()
	highs := klines.Highs()
	lows := klines.Lows()
	volumes := klines.Volumes()
	last, _ := klines.Last()

	maShort := EMA(closes, cfg.MA.Short)
	maLong := EMA(closes, cfg.MA.Long)
	rsi := RSI(closes, cfg.RSI.Period)

	ind := &core.Indicators{
		Symbol:    last.Symbol,
		MAShort:   maShort[n-1],
		MALong:    maLong[n-1],
		Rsi:       rsi[n-1],
		Price:     last.Close,
		Volume:    last.Volume,
		AvgVolume: AvgVolume(volumes, volumeAvgPeriod),
	}
	if math.IsNaN(ind.MAShort) || math.IsNaN(ind.MALong) || math.IsNaN(ind.Rsi) {
		return nil
	}

	if n >= 2 {
		ind.PrevMAShort = maShort[n-2]
		ind.PrevMALong = maLong[n-2]
		ind.PrevRsi = rsi[n-2]
		ind.HasPrev = true
	}

	if cfg.MACD.Enabled {
		macd, signal, hist := MACD(closes, cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal)
		ind.MACD = &core.MACDSnapshot{
			MACD:       macd[n-1],
			Signal:     signal[n-1],
			Histogram:  hist[n-1],
			PrevMACD:   macd[n-2],
			PrevSignal: signal[n-2],
		}
	}

	if n > adxPeriod*2 {
		ind.ADX = ADX(highs, lows, closes, adxPeriod)[n-1]
		ind.PlusDI = PlusDI(highs, lows, closes, adxPeriod)[n-1]
		ind.MinusDI = MinusDI(highs, lows, closes, adxPeriod)[n-1]
	}

	if n >= bbPeriod {
		widths := BBWidthSeries(closes, bbPeriod, bbDeviation)
		ind.BBWidth = widths[n-1]
		ind.BBWidthPercentile = Percentile(widths, ind.BBWidth)
	}

	ind.CVD = CVD(opens, closes, volumes)

	return ind
}
