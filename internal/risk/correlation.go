package risk

import (
	"math"

	"github.com/raykavin/marketcascade/internal/core"
	"gonum.org/v1/gonum/stat"
)

// CorrelationWindow is the number of trailing candles correlated.
const CorrelationWindow = 60

// correlationScale is the size multiplier applied by the binary gate when
// a held symbol correlates above threshold.
const correlationScale = 0.5

// Returns converts a candle series into simple per-candle returns.
func Returns(klines core.Series) []float64 {
	if len(klines) < 2 {
		return nil
	}
	out := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		prev := klines[i-1].Close
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (klines[i].Close-prev)/prev)
	}
	return out
}

// Correlation computes the Pearson correlation of the two symbols' simple
// returns over the trailing CorrelationWindow candles. Returns 0 when
// either series is too short.
func Correlation(a, b core.Series) float64 {
	ra, rb := Returns(tail(a, CorrelationWindow+1)), Returns(tail(b, CorrelationWindow+1))
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	if n < 2 {
		return 0
	}
	ra, rb = ra[len(ra)-n:], rb[len(rb)-n:]

	corr := stat.Correlation(ra, rb, nil)
	if math.IsNaN(corr) {
		return 0
	}
	return corr
}

// BinaryGate applies the simple correlation gate: if any held symbol
// correlates with the candidate at or above threshold, the position size
// multiplier is halved. Returns the multiplier and the offending symbol.
func BinaryGate(candidate core.Series, held map[string]core.Series, threshold float64) (float64, string) {
	for sym, series := range held {
		if corr := Correlation(candidate, series); math.Abs(corr) >= threshold {
			return correlationScale, sym
		}
	}
	return 1.0, ""
}

func tail(s core.Series, n int) core.Series {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
