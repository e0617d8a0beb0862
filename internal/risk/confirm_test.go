package risk

import (
	"testing"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/stretchr/testify/require"
)

// vetoStrategy always rejects exits.
type vetoStrategy struct{}

func (vetoStrategy) ID() string                                  { return "veto" }
func (vetoStrategy) PopulateSignal(*strategy.Context) core.SignalType { return core.SignalNone }
func (vetoStrategy) ConfirmExit(*core.Position, core.ExitReason, *strategy.Context) bool {
	return false
}

func TestShouldConfirmExit(t *testing.T) {
	pos := longPosition(50_000, 48_000, 60_000)

	t.Run("flash crash stop loss is rejected", func(t *testing.T) {
		// Entry 50000, mark 42000: profit ratio -0.16 beyond the 0.15 bound.
		result := ShouldConfirmExit(pos, core.ExitStopLoss, -0.16, 0.15, nil, nil)
		require.False(t, result.Confirmed)
		require.Equal(t, "flash_crash_protection", result.Reason)
	})

	t.Run("ordinary stop loss confirms", func(t *testing.T) {
		result := ShouldConfirmExit(pos, core.ExitStopLoss, -0.04, 0.15, nil, nil)
		require.True(t, result.Confirmed)
	})

	t.Run("force exits always bypass", func(t *testing.T) {
		for _, reason := range []core.ExitReason{core.ExitForceExit, core.ExitForceExitTimeout, core.ExitForceExitManual} {
			result := ShouldConfirmExit(pos, reason, -0.5, 0.15, vetoStrategy{}, nil)
			require.True(t, result.Confirmed, "reason %s", reason)
		}
	})

	t.Run("strategy veto is authoritative", func(t *testing.T) {
		result := ShouldConfirmExit(pos, core.ExitTakeProfit, 0.05, 0.15, vetoStrategy{}, nil)
		require.False(t, result.Confirmed)
		require.Equal(t, "strategy_rejected", result.Reason)
	})

	t.Run("zero deviation falls back to the default bound", func(t *testing.T) {
		result := ShouldConfirmExit(pos, core.ExitStopLoss, -0.16, 0, nil, nil)
		require.False(t, result.Confirmed)
	})
}

func TestExitRejectionCooldown(t *testing.T) {
	log := make(RejectionLog)
	log.Record("BTCUSDT", 1_000_000)

	require.True(t, IsExitRejectionCoolingDown("BTCUSDT", 1_030_000, 60_000, log))
	require.False(t, IsExitRejectionCoolingDown("BTCUSDT", 1_070_000, 60_000, log))
	require.False(t, IsExitRejectionCoolingDown("ETHUSDT", 1_030_000, 60_000, log))
}
