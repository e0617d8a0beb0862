package risk

import (
	"testing"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/stretchr/testify/require"
)

func wideCandle(high, low, close float64) core.Candle {
	return core.Candle{OpenTime: 0, Open: close, High: high, Low: low, Close: close, Volume: 1}
}

func TestCheckExitPriority(t *testing.T) {
	riskCfg := core.RiskConfig{StopLossPercent: 5, TakeProfitPercent: 10}

	t.Run("stop loss beats take profit inside one candle", func(t *testing.T) {
		pos := longPosition(100, 95, 110)
		// The candle straddles both triggers; the pessimistic ordering
		// must close at the stop.
		decision, fired := CheckExit(pos, wideCandle(112, 94, 100), riskCfg, 0, true)
		require.True(t, fired)
		require.Equal(t, core.ExitStopLoss, decision.Reason)
		require.Equal(t, 95.0, decision.Price)
	})

	t.Run("take profit fires when the stop is safe", func(t *testing.T) {
		pos := longPosition(100, 95, 110)
		decision, fired := CheckExit(pos, wideCandle(112, 99, 111), riskCfg, 0, true)
		require.True(t, fired)
		require.Equal(t, core.ExitTakeProfit, decision.Reason)
		require.Equal(t, 110.0, decision.Price)
	})

	t.Run("short stop checks the high", func(t *testing.T) {
		pos := shortPosition(100, 105, 90)
		decision, fired := CheckExit(pos, wideCandle(106, 89, 100), riskCfg, 0, true)
		require.True(t, fired)
		require.Equal(t, core.ExitStopLoss, decision.Reason)
		require.Equal(t, 105.0, decision.Price)
	})

	t.Run("intracandle disabled tests the close only", func(t *testing.T) {
		pos := longPosition(100, 95, 110)
		_, fired := CheckExit(pos, wideCandle(112, 94, 100), riskCfg, 0, false)
		require.False(t, fired)

		decision, fired := CheckExit(pos, wideCandle(112, 94, 93), riskCfg, 0, false)
		require.True(t, fired)
		require.Equal(t, core.ExitStopLoss, decision.Reason)
	})

	t.Run("roi table beats fixed take profit", func(t *testing.T) {
		cfg := riskCfg
		cfg.MinimalROI = map[int64]float64{0: 0.04}
		pos := longPosition(100, 95, 110)
		decision, fired := CheckExit(pos, wideCandle(108, 99, 107), cfg, 1, true)
		require.True(t, fired)
		require.Equal(t, core.ExitROITable, decision.Reason)
		require.InDelta(t, 104.0, decision.Price, 1e-9)
	})

	t.Run("roi exit clamps to close when the candle gapped past it", func(t *testing.T) {
		cfg := riskCfg
		cfg.MinimalROI = map[int64]float64{0: 0.04}
		pos := longPosition(100, 95, 200)
		// Entire candle above the 104 trigger.
		decision, fired := CheckExit(pos, wideCandle(110, 106, 108), cfg, 1, true)
		require.True(t, fired)
		require.Equal(t, core.ExitROITable, decision.Reason)
		require.Equal(t, 108.0, decision.Price)
	})

	t.Run("staged take profits fire in enumeration order", func(t *testing.T) {
		cfg := core.RiskConfig{
			StopLossPercent:  5,
			TakeProfitStages: []core.TakeProfitStage{{AtPercent: 3}, {AtPercent: 6}},
		}
		pos := longPosition(100, 95, 0)
		decision, fired := CheckExit(pos, wideCandle(107, 99, 106), cfg, 0, true)
		require.True(t, fired)
		require.Equal(t, core.ExitStagedTP, decision.Reason)
		require.InDelta(t, 103.0, decision.Price, 1e-9)
	})

	t.Run("trailing stop fires at its tracked price", func(t *testing.T) {
		pos := longPosition(100, 95, 0)
		pos.TrailingStop = &core.TrailingStop{Active: true, HighestPrice: 108, StopPrice: 106.9}
		decision, fired := CheckExit(pos, wideCandle(107, 106, 106.5), core.RiskConfig{StopLossPercent: 5}, 0, true)
		require.True(t, fired)
		require.Equal(t, core.ExitTrailingStop, decision.Reason)
		require.Equal(t, 106.9, decision.Price)
	})

	t.Run("time stop only fires on stale losers", func(t *testing.T) {
		cfg := core.RiskConfig{TimeStopHours: 2}
		pos := longPosition(100, 0, 0)
		pos.EntryTime = 0

		// In profit: no time stop.
		_, fired := CheckExit(pos, wideCandle(103, 101, 102), cfg, 3*3_600_000, true)
		require.False(t, fired)

		// Underwater past the deadline: close at market.
		decision, fired := CheckExit(pos, wideCandle(100, 98, 99), cfg, 3*3_600_000, true)
		require.True(t, fired)
		require.Equal(t, core.ExitTimeStop, decision.Reason)
		require.Equal(t, 99.0, decision.Price)

		// Underwater but too young.
		_, fired = CheckExit(pos, wideCandle(100, 98, 99), cfg, 1*3_600_000, true)
		require.False(t, fired)
	})
}

func TestStopMonotonicityAcrossTicks(t *testing.T) {
	riskCfg := core.RiskConfig{
		StopLossPercent: 5,
		BreakEvenProfit: 0.02,
		BreakEvenStop:   0.001,
		TrailingStop:    core.TrailingStopConfig{Enabled: true, ActivationPercent: 3, CallbackPercent: 1},
	}
	pos := longPosition(100, 95, 200)
	prevStop := pos.StopLoss

	marks := []float64{101, 103, 102, 105, 104, 108}
	for _, mark := range marks {
		if stop, changed := ResolveNewStopLoss(pos, mark, riskCfg, &stubStop{}, nil); changed {
			pos.StopLoss = stop
		}
		require.GreaterOrEqual(t, pos.StopLoss, prevStop, "stop walked backwards at mark %.0f", mark)
		prevStop = pos.StopLoss

		// Hard floor holds at every step.
		require.GreaterOrEqual(t, pos.StopLoss, 95.0)
	}
}
