package risk

import (
	"testing"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/stretchr/testify/require"
)

// stubStop is a strategy with a fixed custom-stop answer.
type stubStop struct {
	stop float64
	has  bool
}

func (s *stubStop) ID() string                                  { return "stub-stop" }
func (s *stubStop) PopulateSignal(*strategy.Context) core.SignalType { return core.SignalNone }
func (s *stubStop) CustomStoploss(*core.Position, *strategy.Context) (float64, bool) {
	return s.stop, s.has
}

func longPosition(entry, stop, tp float64) *core.Position {
	return &core.Position{
		Symbol: "BTCUSDT", Side: core.SideLong,
		EntryPrice: entry, Quantity: 1, Cost: entry,
		StopLoss: stop, TakeProfit: tp,
	}
}

func shortPosition(entry, stop, tp float64) *core.Position {
	return &core.Position{
		Symbol: "BTCUSDT", Side: core.SideShort,
		EntryPrice: entry, Quantity: 1, Cost: entry, MarginUsdt: entry,
		StopLoss: stop, TakeProfit: tp,
	}
}

func TestResolveNewStopLoss(t *testing.T) {
	riskCfg := core.RiskConfig{
		StopLossPercent: 5,
		BreakEvenProfit: 0.02,
		BreakEvenStop:   0.001,
	}
	noOpinion := &stubStop{}

	t.Run("break-even raises the stop once profit is reached", func(t *testing.T) {
		pos := longPosition(100, 95, 110)
		stop, changed := ResolveNewStopLoss(pos, 103, riskCfg, noOpinion, nil)
		require.True(t, changed)
		require.InDelta(t, 100.1, stop, 1e-9)
	})

	t.Run("no break-even below the profit threshold", func(t *testing.T) {
		pos := longPosition(100, 95, 110)
		_, changed := ResolveNewStopLoss(pos, 101, riskCfg, noOpinion, nil)
		require.False(t, changed)
	})

	t.Run("custom stop takes precedence", func(t *testing.T) {
		pos := longPosition(100, 95, 110)
		stop, changed := ResolveNewStopLoss(pos, 103, riskCfg, &stubStop{stop: 99, has: true}, nil)
		require.True(t, changed)
		require.Equal(t, 99.0, stop)
	})

	t.Run("hard floor clamps a reckless custom stop", func(t *testing.T) {
		pos := longPosition(100, 96, 110)
		stop, changed := ResolveNewStopLoss(pos, 103, riskCfg, &stubStop{stop: 80, has: true}, nil)
		// floor is 95; current stop 96 is already above it, so no change.
		require.False(t, changed)
		require.Equal(t, 96.0, stop)

		pos = longPosition(100, 94, 110)
		stop, changed = ResolveNewStopLoss(pos, 103, riskCfg, &stubStop{stop: 80, has: true}, nil)
		require.True(t, changed)
		require.InDelta(t, 95.0, stop, 1e-9)
	})

	t.Run("stops never walk backwards", func(t *testing.T) {
		pos := longPosition(100, 99, 110)
		_, changed := ResolveNewStopLoss(pos, 103, riskCfg, &stubStop{stop: 97, has: true}, nil)
		require.False(t, changed)

		short := shortPosition(100, 101, 90)
		_, changed = ResolveNewStopLoss(short, 97, riskCfg, &stubStop{stop: 103, has: true}, nil)
		require.False(t, changed)
	})

	t.Run("short hard ceiling", func(t *testing.T) {
		short := shortPosition(100, 106, 90)
		stop, changed := ResolveNewStopLoss(short, 97, riskCfg, &stubStop{stop: 120, has: true}, nil)
		require.True(t, changed)
		require.InDelta(t, 105.0, stop, 1e-9)
	})
}

func TestUpdateTrailingStop(t *testing.T) {
	riskCfg := core.RiskConfig{
		TrailingStop: core.TrailingStopConfig{Enabled: true, ActivationPercent: 2, CallbackPercent: 1},
	}

	t.Run("no trailing before activation", func(t *testing.T) {
		pos := longPosition(100, 95, 120)
		require.False(t, UpdateTrailingStop(pos, 101, 100, riskCfg))
		require.Nil(t, pos.TrailingStop)
	})

	t.Run("long tracks the high-water mark", func(t *testing.T) {
		pos := longPosition(100, 95, 120)
		require.True(t, UpdateTrailingStop(pos, 103, 101, riskCfg))
		require.NotNil(t, pos.TrailingStop)
		require.InDelta(t, 103*0.99, pos.TrailingStop.StopPrice, 1e-9)

		// A higher high raises the stop; a lower high never lowers it.
		require.True(t, UpdateTrailingStop(pos, 105, 102, riskCfg))
		require.InDelta(t, 105*0.99, pos.TrailingStop.StopPrice, 1e-9)
		require.False(t, UpdateTrailingStop(pos, 104, 102, riskCfg))
		require.InDelta(t, 105*0.99, pos.TrailingStop.StopPrice, 1e-9)
	})

	t.Run("positive offset widens the callback", func(t *testing.T) {
		cfg := core.RiskConfig{
			TrailingStop:               core.TrailingStopConfig{Enabled: true, ActivationPercent: 1, CallbackPercent: 0.5},
			TrailingStopPositive:       0.02,
			TrailingStopPositiveOffset: 0.03,
		}
		pos := longPosition(100, 95, 130)
		// Above the offset: callback becomes 2%.
		require.True(t, UpdateTrailingStop(pos, 110, 105, cfg))
		require.InDelta(t, 110*0.98, pos.TrailingStop.StopPrice, 1e-9)
	})

	t.Run("offset-only mode suppresses early trailing", func(t *testing.T) {
		cfg := core.RiskConfig{
			TrailingStop:                core.TrailingStopConfig{Enabled: true, ActivationPercent: 1, CallbackPercent: 0.5},
			TrailingStopPositive:        0.02,
			TrailingStopPositiveOffset:  0.05,
			TrailingOnlyOffsetIsReached: true,
		}
		pos := longPosition(100, 95, 130)
		require.False(t, UpdateTrailingStop(pos, 102, 101, cfg))
		require.Nil(t, pos.TrailingStop)
	})

	t.Run("short tracks the low-water mark", func(t *testing.T) {
		pos := shortPosition(100, 105, 80)
		require.True(t, UpdateTrailingStop(pos, 98, 96, riskCfg))
		require.InDelta(t, 96*1.01, pos.TrailingStop.StopPrice, 1e-9)

		require.True(t, UpdateTrailingStop(pos, 95, 94, riskCfg))
		require.InDelta(t, 94*1.01, pos.TrailingStop.StopPrice, 1e-9)
	})
}
