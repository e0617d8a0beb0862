package metrics

import (
	"math"
	"testing"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/stretchr/testify/require"
)

func TestComputePerformance(t *testing.T) {
	t.Run("flat curve has zero sharpe", func(t *testing.T) {
		curve := []EquityPoint{{0, 10_000}, {1, 10_000}, {2, 10_000}}
		perf := Compute(nil, curve, 10_000, nil)
		require.Equal(t, 0.0, perf.SharpeRatio)
		require.Equal(t, 0.0, perf.TotalReturn)
		require.Equal(t, 0.0, perf.MaxDrawdown)
	})

	t.Run("win rate excludes force exits", func(t *testing.T) {
		trades := []core.Trade{
			{PnL: 10, ExitReason: core.ExitTakeProfit},
			{PnL: -5, ExitReason: core.ExitStopLoss},
			{PnL: -100, ExitReason: core.ExitForceExitTimeout},
		}
		perf := Compute(trades, nil, 10_000, nil)
		require.Equal(t, 3, perf.TotalTrades)
		require.Equal(t, 1, perf.Wins)
		require.Equal(t, 1, perf.Losses)
		require.Equal(t, 0.5, perf.WinRate)
		require.Equal(t, 2.0, perf.ProfitFactor)
	})

	t.Run("profit factor without losses is infinite", func(t *testing.T) {
		trades := []core.Trade{{PnL: 10, ExitReason: core.ExitTakeProfit}}
		perf := Compute(trades, nil, 10_000, nil)
		require.True(t, math.IsInf(perf.ProfitFactor, 1))
	})

	t.Run("max drawdown from peak", func(t *testing.T) {
		curve := []EquityPoint{{0, 10_000}, {1, 12_000}, {2, 9_000}, {3, 11_000}}
		perf := Compute(nil, curve, 10_000, nil)
		require.InDelta(t, 0.25, perf.MaxDrawdown, 1e-9)
	})

	t.Run("funding totals aggregate per symbol", func(t *testing.T) {
		perf := Compute(nil, nil, 10_000, map[string]float64{"BTCUSDT": 1.5, "ETHUSDT": -0.5})
		require.InDelta(t, 1.0, perf.TotalFundingPaid, 1e-9)
	})
}
