package strategy

import (
	"testing"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/stretchr/testify/require"
)

func bullishContext(posSide core.Side) *Context {
	return &Context{
		Symbol: "BTCUSDT",
		Indicators: &core.Indicators{
			MAShort: 110, MALong: 100,
			Rsi:   25,
			Price: 110, Volume: 2000, AvgVolume: 1000,
		},
		Config: &core.Config{
			Strategy: core.StrategyConfig{
				RSI:    core.RSIConfig{Oversold: 30, Overbought: 70},
				Volume: core.VolumeConfig{SurgeRatio: 1.5},
			},
			Signals: core.SignalsConfig{
				Buy:   []string{"ma_bullish", "rsi_oversold"},
				Sell:  []string{"ma_bearish"},
				Short: []string{"ma_bearish", "rsi_overbought"},
				Cover: []string{"ma_bullish"},
			},
		},
		PositionSide: posSide,
	}
}

func TestDefaultPositionAwareness(t *testing.T) {
	strat := NewDefault()

	t.Run("flat account can buy", func(t *testing.T) {
		require.Equal(t, core.SignalBuy, strat.PopulateSignal(bullishContext("")))
	})

	t.Run("long position never buys or shorts", func(t *testing.T) {
		// Same bullish conditions, but only sell rules are evaluated.
		require.Equal(t, core.SignalNone, strat.PopulateSignal(bullishContext(core.SideLong)))
	})

	t.Run("short position only covers", func(t *testing.T) {
		require.Equal(t, core.SignalCover, strat.PopulateSignal(bullishContext(core.SideShort)))
	})

	t.Run("flat account never sells or covers", func(t *testing.T) {
		ctx := bullishContext("")
		// Make buy and short impossible; sell conditions hold but must not
		// fire without a position.
		ctx.Indicators.MAShort = 90
		ctx.Indicators.Rsi = 50
		require.Equal(t, core.SignalNone, strat.PopulateSignal(ctx))
	})
}

func TestDefaultConditions(t *testing.T) {
	strat := NewDefault()

	t.Run("all conditions must hold", func(t *testing.T) {
		ctx := bullishContext("")
		ctx.Indicators.Rsi = 50 // not oversold
		require.Equal(t, core.SignalNone, strat.PopulateSignal(ctx))
	})

	t.Run("unknown condition never fires", func(t *testing.T) {
		ctx := bullishContext("")
		ctx.Config.Signals.Buy = []string{"ma_bullish", "no_such_condition"}
		require.Equal(t, core.SignalNone, strat.PopulateSignal(ctx))
	})

	t.Run("empty condition list never fires", func(t *testing.T) {
		ctx := bullishContext("")
		ctx.Config.Signals.Buy = nil
		ctx.Config.Signals.Short = nil
		require.Equal(t, core.SignalNone, strat.PopulateSignal(ctx))
	})

	t.Run("macd golden cross", func(t *testing.T) {
		ctx := bullishContext("")
		ctx.Config.Signals.Buy = []string{"macd_golden_cross"}
		ctx.Indicators.MACD = &core.MACDSnapshot{PrevMACD: -1, PrevSignal: 0, MACD: 1, Signal: 0.5}
		require.Equal(t, core.SignalBuy, strat.PopulateSignal(ctx))

		ctx.Indicators.MACD.PrevMACD = 1 // already above: no cross
		require.Equal(t, core.SignalNone, strat.PopulateSignal(ctx))
	})
}
