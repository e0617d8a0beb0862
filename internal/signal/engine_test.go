package signal

import (
	"testing"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/stretchr/testify/require"
)

const hourMs = int64(3_600_000)

func engineConfig() *core.Config {
	return &core.Config{
		Timeframe:  "1h",
		StrategyID: "default",
		Strategy: core.StrategyConfig{
			MA:  core.MAConfig{Short: 5, Long: 10},
			RSI: core.RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		},
		Signals: core.SignalsConfig{
			Buy:   []string{"ma_bullish"},
			Short: []string{"ma_bearish"},
		},
		Risk: core.RiskConfig{
			StopLossPercent:   5,
			TakeProfitPercent: 10,
			PositionRatio:     0.1,
		},
	}
}

func newEngine(t *testing.T, cfg *core.Config) *Engine {
	t.Helper()
	registry := strategy.NewRegistry()
	registry.Register(strategy.NewEnsemble(registry))
	engine, err := New(registry, cfg, logger.Nop())
	require.NoError(t, err)
	return engine
}

func seq(closes []float64) core.Series {
	series := make(core.Series, len(closes))
	prev := closes[0]
	for i, close := range closes {
		high, low := prev, close
		if close > high {
			high, low = close, prev
		}
		series[i] = core.Candle{
			Symbol:   "BTCUSDT",
			OpenTime: int64(i) * hourMs,
			Open:     prev, High: high, Low: low, Close: close,
			Volume: 1000,
		}
		prev = close
	}
	return series
}

func bullishKlines() core.Series {
	closes := make([]float64, 17)
	for i := 0; i < 16; i++ {
		closes[i] = 95
	}
	closes[16] = 100
	return seq(closes)
}

func TestProcessSignal(t *testing.T) {
	cfg := engineConfig()
	engine := newEngine(t, cfg)

	t.Run("insufficient data rejects", func(t *testing.T) {
		result := engine.ProcessSignal(Request{
			Symbol: "BTCUSDT", Klines: seq([]float64{100, 101}), Config: cfg,
		})
		require.True(t, result.Rejected)
		require.Equal(t, "insufficient data", result.RejectionReason)
	})

	t.Run("bullish window emits buy", func(t *testing.T) {
		result := engine.ProcessSignal(Request{Symbol: "BTCUSDT", Klines: bullishKlines(), Config: cfg})
		require.False(t, result.Rejected)
		require.Equal(t, core.SignalBuy, result.Signal)
		require.Equal(t, cfg.Risk.PositionRatio, result.EffectivePositionRatio)
	})

	t.Run("exits bypass the filter chain", func(t *testing.T) {
		bearCfg := engineConfig()
		bearCfg.Signals.Sell = []string{"ma_bearish"}
		bearCfg.Risk.MinRR = 100 // would reject any entry
		bearEngine := newEngine(t, bearCfg)

		closes := make([]float64, 17)
		for i := 0; i < 16; i++ {
			closes[i] = 100
		}
		closes[16] = 95
		result := bearEngine.ProcessSignal(Request{
			Symbol:       "BTCUSDT",
			Klines:       seq(closes),
			Config:       bearCfg,
			PositionSide: core.SideLong,
		})
		require.False(t, result.Rejected)
		require.Equal(t, core.SignalSell, result.Signal)
	})

	t.Run("external scalars are injected", func(t *testing.T) {
		result := engine.ProcessSignal(Request{
			Symbol:   "BTCUSDT",
			Klines:   bullishKlines(),
			Config:   cfg,
			External: core.ExternalContext{FundingRate: -0.0001, BtcDominance: 52},
		})
		require.Equal(t, -0.0001, result.Indicators.FundingRate)
		require.Equal(t, 52.0, result.Indicators.BtcDominance)
	})
}

func TestProcessSignalIdempotence(t *testing.T) {
	cfg := engineConfig()
	engine := newEngine(t, cfg)
	req := Request{Symbol: "BTCUSDT", Klines: bullishKlines(), Config: cfg}

	first := engine.ProcessSignal(req)
	second := engine.ProcessSignal(req)

	require.Equal(t, first.Signal, second.Signal)
	require.Equal(t, first.Rejected, second.Rejected)
	require.Equal(t, first.EffectivePositionRatio, second.EffectivePositionRatio)
	require.Equal(t, first.Indicators.MAShort, second.Indicators.MAShort)
	require.Equal(t, first.Indicators.Rsi, second.Indicators.Rsi)
}

func TestProcessSignalRiskReward(t *testing.T) {
	cfg := engineConfig()
	cfg.Risk.MinRR = 5
	engine := newEngine(t, cfg)

	// Price near the top of the window: reward is tiny relative to risk.
	result := engine.ProcessSignal(Request{Symbol: "BTCUSDT", Klines: bullishKlines(), Config: cfg})
	require.True(t, result.Rejected)
	require.Contains(t, result.RejectionReason, "risk-reward")
}

func TestProcessSignalCooldown(t *testing.T) {
	cfg := engineConfig()
	cfg.Protections = core.ProtectionsConfig{
		Cooldown: core.ProtectionRule{Enabled: true, StopDurationCandles: 10},
	}
	engine := newEngine(t, cfg)

	now := int64(200) * hourMs
	recent := []core.TradeRecord{{
		Symbol: "BTCUSDT", ClosedAt: now - 2*hourMs, PnlRatio: -0.05, WasStopLoss: true,
	}}

	result := engine.ProcessSignal(Request{
		Symbol:       "BTCUSDT",
		Klines:       bullishKlines(),
		Config:       cfg,
		RecentTrades: recent,
		NowMs:        now,
		CandleMs:     hourMs,
	})
	require.True(t, result.Rejected)
	require.Contains(t, result.RejectionReason, "CooldownPeriod")

	// The same history leaves other pairs unaffected.
	ethKlines := bullishKlines()
	for i := range ethKlines {
		ethKlines[i].Symbol = "ETHUSDT"
	}
	result = engine.ProcessSignal(Request{
		Symbol:       "ETHUSDT",
		Klines:       ethKlines,
		Config:       cfg,
		RecentTrades: recent,
		NowMs:        now,
		CandleMs:     hourMs,
	})
	require.False(t, result.Rejected)
}

func TestProcessSignalCorrelationGate(t *testing.T) {
	cfg := engineConfig()
	cfg.Risk.CorrelationFilter = core.CorrelationFilterConfig{Enabled: true, Threshold: 0.8}
	engine := newEngine(t, cfg)

	klines := bullishKlines()
	result := engine.ProcessSignal(Request{
		Symbol:     "BTCUSDT",
		Klines:     klines,
		Config:     cfg,
		HeldKlines: map[string]core.Series{"ETHUSDT": klines},
	})
	require.False(t, result.Rejected)
	require.Equal(t, core.SignalBuy, result.Signal)
	require.InDelta(t, cfg.Risk.PositionRatio*0.5, result.EffectivePositionRatio, 1e-9)
}

func TestNewRejectsUnknownStrategy(t *testing.T) {
	cfg := engineConfig()
	cfg.StrategyID = "no-such-strategy"
	registry := strategy.NewRegistry()
	_, err := New(registry, cfg, logger.Nop())
	require.ErrorIs(t, err, core.ErrInvalidConfig)
}
