// Package indicator wraps the talib kernel with the handful of derived
// measures the signal engine needs: moving-average snapshots, Wilder RSI,
// MACD with previous values, ADX with directional indexes, Bollinger width
// and its historical percentile, cumulative volume delta and volume ratio.
package indicator

import "github.com/markcheno/go-talib"

// Moving averages and oscillators delegate to talib; these thin wrappers
// keep call sites free of the talib import.

// SMA calculates Simple Moving Average.
func SMA(input []float64, period int) []float64 {
	return talib.Sma(input, period)
}

// EMA calculates Exponential Moving Average.
func EMA(input []float64, period int) []float64 {
	return talib.Ema(input, period)
}

// RSI calculates the Relative Strength Index with Wilder smoothing.
func RSI(input []float64, period int) []float64 {
	return talib.Rsi(input, period)
}

// MACD calculates MACD line, signal line and histogram.
func MACD(input []float64, fast, slow, signal int) ([]float64, []float64, []float64) {
	return talib.Macd(input, fast, slow, signal)
}

// ADX calculates the Average Directional Movement Index (Wilder).
func ADX(high, low, close []float64, period int) []float64 {
	return talib.Adx(high, low, close, period)
}

// PlusDI calculates the Plus Directional Indicator.
func PlusDI(high, low, close []float64, period int) []float64 {
	return talib.PlusDI(high, low, close, period)
}

// MinusDI calculates the Minus Directional Indicator.
func MinusDI(high, low, close []float64, period int) []float64 {
	return talib.MinusDI(high, low, close, period)
}

// ATR calculates the Average True Range.
func ATR(high, low, close []float64, period int) []float64 {
	return talib.Atr(high, low, close, period)
}

// BB calculates Bollinger Bands with stdDev*deviation bands around an SMA.
func BB(input []float64, period int, deviation float64) (upper, middle, lower []float64) {
	return talib.BBands(input, period, deviation, deviation, talib.SMA)
}

// BBWidthSeries returns (upper-lower)/middle for each sample where the
// middle band is non-zero; leading warmup samples are zero.
func BBWidthSeries(closes []float64, period int, deviation float64) []float64 {
	upper, middle, lower := BB(closes, period, deviation)
	width := make([]float64, len(closes))
	for i := range closes {
		if middle[i] != 0 {
			width[i] = (upper[i] - lower[i]) / middle[i]
		}
	}
	return width
}

// Percentile returns the percentile rank (0-100) of value within the
// non-zero samples of series.
func Percentile(series []float64, value float64) float64 {
	var total, below int
	for _, v := range series {
		if v == 0 {
			continue
		}
		total++
		if v < value {
			below++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(below) / float64(total) * 100
}

// CVD is the cumulative volume delta: the sum of sign(close-open)*volume
// over the window.
func CVD(opens, closes, volumes []float64) float64 {
	var cvd float64
	for i := range closes {
		switch {
		case closes[i] > opens[i]:
			cvd += volumes[i]
		case closes[i] < opens[i]:
			cvd -= volumes[i]
		}
	}
	return cvd
}

// VolumeRatio returns current volume over the SMA of the prior period
// volumes, exclusive of the current sample. Zero when there is not enough
// history or the average is zero.
func VolumeRatio(volumes []float64, period int) float64 {
	n := len(volumes)
	if n < period+1 || period <= 0 {
		return 0
	}
	var sum float64
	for _, v := range volumes[n-1-period : n-1] {
		sum += v
	}
	avg := sum / float64(period)
	if avg == 0 {
		return 0
	}
	return volumes[n-1] / avg
}

// AvgVolume returns the SMA of the prior period volumes, exclusive of the
// current sample.
func AvgVolume(volumes []float64, period int) float64 {
	n := len(volumes)
	if n < period+1 || period <= 0 {
		return 0
	}
	var sum float64
	for _, v := range volumes[n-1-period : n-1] {
		sum += v
	}
	return sum / float64(period)
}
