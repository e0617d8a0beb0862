package account

import (
	"sort"

	"github.com/raykavin/marketcascade/internal/core"
)

// fundingIntervalMs is the fixed 8-hour settlement cadence; boundaries
// fall on 00:00/08:00/16:00 UTC.
const fundingIntervalMs int64 = 8 * 60 * 60 * 1000

// Settlements enumerates the funding settlement timestamps in (fromMs,
// toMs], oldest first.
func Settlements(fromMs, toMs int64) []int64 {
	if toMs <= fromMs {
		return nil
	}
	first := (fromMs/fundingIntervalMs + 1) * fundingIntervalMs
	var out []int64
	for t := first; t <= toMs; t += fundingIntervalMs {
		out = append(out, t)
	}
	return out
}

// RateAt resolves the funding rate effective at settlement time t: the
// most recent history point at or before t, else the uniform average, else
// zero. History must be sorted ascending by Ts.
func RateAt(history []core.FundingPoint, t int64, avgPer8h float64) float64 {
	if len(history) == 0 {
		return avgPer8h
	}
	idx := sort.Search(len(history), func(i int) bool { return history[i].Ts > t })
	if idx == 0 {
		return avgPer8h
	}
	return history[idx-1].Rate
}

// AccrueFunding settles every funding boundary the position crossed since
// its last settlement. Longs pay a positive rate, shorts receive it; the
// cash flow hits the free balance and the per-symbol funding totals.
func (m *Manager) AccrueFunding(symbol string, mark float64, nowMs int64, history []core.FundingPoint, avgPer8h float64) {
	pos, ok := m.acc.Positions[symbol]
	if !ok {
		return
	}

	for _, t := range Settlements(pos.LastFundingTs, nowMs) {
		rate := RateAt(history, t, avgPer8h)
		if rate == 0 {
			pos.LastFundingTs = t
			continue
		}
		notional := pos.Quantity * mark
		cashFlow := -rate * notional
		if pos.Side == core.SideShort {
			cashFlow = rate * notional
		}
		m.ApplyFunding(symbol, cashFlow)
		pos.LastFundingTs = t
	}
}
