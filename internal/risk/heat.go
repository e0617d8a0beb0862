package risk

import (
	"fmt"
	"math"

	"github.com/raykavin/marketcascade/internal/core"
)

// DefaultMaxHeat blocks an entry when the correlation-weighted heat of the
// held portfolio reaches this level.
const DefaultMaxHeat = 0.85

// HeldPosition is the slice of portfolio state the heat calculation needs.
type HeldPosition struct {
	Symbol string
	Side   core.Side
	Weight float64 // position cost / account equity
	Klines core.Series
}

// HeatResult reports the weighted heat verdict for a candidate entry.
type HeatResult struct {
	Heat           float64
	Blocked        bool
	SizeMultiplier float64
	Reason         string
}

// PortfolioHeat computes correlation-weighted heat for a candidate entry:
// each held position contributes |rho|*weight when its side matches the
// candidate and -|rho|*weight when opposite (a hedge cools the book). Heat
// at or above maxHeat blocks; otherwise the size multiplier is 1-heat,
// floored at zero.
func PortfolioHeat(candidate core.Series, candidateSide core.Side, held []HeldPosition, maxHeat float64) HeatResult {
	if maxHeat <= 0 {
		maxHeat = DefaultMaxHeat
	}

	var heat float64
	for _, pos := range held {
		corr := math.Abs(Correlation(candidate, pos.Klines))
		if pos.Side == candidateSide {
			heat += corr * pos.Weight
		} else {
			heat -= corr * pos.Weight
		}
	}

	if heat >= maxHeat {
		return HeatResult{
			Heat:    heat,
			Blocked: true,
			Reason:  fmt.Sprintf("portfolio heat %.2f >= max %.2f", heat, maxHeat),
		}
	}

	mult := 1 - heat
	if mult < 0 {
		mult = 0
	}
	return HeatResult{Heat: heat, SizeMultiplier: mult}
}

// ExposureSummary aggregates the account's directional exposure.
type ExposureSummary struct {
	LongRatio      float64
	ShortRatio     float64
	GrossRatio     float64
	NetRatio       float64
	AvgAbsCorr     float64
	PositionCount  int
}

// Exposure summarises long/short/gross/net exposure as fractions of equity
// and, for two or more positions, the average pairwise absolute return
// correlation.
func Exposure(positions []HeldPosition, equity float64) ExposureSummary {
	out := ExposureSummary{PositionCount: len(positions)}
	if equity <= 0 {
		return out
	}

	for _, pos := range positions {
		switch pos.Side {
		case core.SideLong:
			out.LongRatio += pos.Weight
		case core.SideShort:
			out.ShortRatio += pos.Weight
		}
	}
	out.GrossRatio = out.LongRatio + out.ShortRatio
	out.NetRatio = out.LongRatio - out.ShortRatio

	if len(positions) >= 2 {
		var sum float64
		var pairs int
		for i := 0; i < len(positions); i++ {
			for j := i + 1; j < len(positions); j++ {
				sum += math.Abs(Correlation(positions[i].Klines, positions[j].Klines))
				pairs++
			}
		}
		if pairs > 0 {
			out.AvgAbsCorr = sum / float64(pairs)
		}
	}

	return out
}
