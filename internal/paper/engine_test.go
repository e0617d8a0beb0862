package paper

import (
	"testing"

	"github.com/raykavin/marketcascade/internal/account"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/stretchr/testify/require"
)

func testConfig() *core.Config {
	return &core.Config{
		Strategy: core.StrategyConfig{
			MA:  core.MAConfig{Short: 5, Long: 10},
			RSI: core.RSIConfig{Period: 14, Oversold: 30, Overbought: 70},
		},
		Risk: core.RiskConfig{
			StopLossPercent:   5,
			TakeProfitPercent: 10,
		},
		Execution: core.ExecutionConfig{MaxExitPriceDeviation: 0.15},
	}
}

func newTestEngine(feeRate, slippage, spreadBps float64) (*Engine, *account.Manager) {
	acc := core.NewAccount("paper-test", 10_000)
	mgr := account.NewManager(acc, feeRate, slippage, spreadBps, nil, logger.Nop())
	return New(mgr, testConfig(), strategy.NewDefault(), nil, logger.Nop()), mgr
}

func candle(high, low, close float64) core.Candle {
	return core.Candle{Symbol: "BTCUSDT", Open: close, High: high, Low: low, Close: close, Volume: 1}
}

func TestPaperExitCascade(t *testing.T) {
	t.Run("stop loss beats take profit inside one candle", func(t *testing.T) {
		engine, mgr := newTestEngine(0, 0, 0)
		_, err := engine.Enter("BTCUSDT", core.SideLong, 1000, 100, 0, testConfig().Risk, "default", nil)
		require.NoError(t, err)

		engine.OnCandle("BTCUSDT", nil, candle(112, 94, 100), 1000)

		require.False(t, mgr.Account().HasPosition("BTCUSDT"))
		require.Len(t, mgr.Account().Trades, 1)
		trade := mgr.Account().Trades[0]
		require.Equal(t, core.ExitStopLoss, trade.ExitReason)
		require.InDelta(t, 95.0, trade.ExitPrice, 1e-9)
	})

	t.Run("flash crash stop is vetoed and the position survives", func(t *testing.T) {
		engine, mgr := newTestEngine(0, 0, 0)
		_, err := engine.Enter("BTCUSDT", core.SideLong, 1000, 100, 0, testConfig().Risk, "default", nil)
		require.NoError(t, err)

		// A 20% crash through the stop: exit price 95 but the close shows
		// the real damage, so the confirm hook rejects the fill.
		engine.OnCandle("BTCUSDT", nil, candle(100, 79, 80), 1000)

		require.True(t, mgr.Account().HasPosition("BTCUSDT"))
		require.Empty(t, mgr.Account().Trades)
	})
}

func TestPaperForceExit(t *testing.T) {
	t.Run("third exit timeout forces the close", func(t *testing.T) {
		engine, mgr := newTestEngine(0, 0, 0)
		_, err := engine.Enter("BTCUSDT", core.SideLong, 1000, 100, 0, testConfig().Risk, "default", nil)
		require.NoError(t, err)

		engine.RecordExitTimeout("BTCUSDT", 99, 1000)
		engine.RecordExitTimeout("BTCUSDT", 99, 2000)
		require.True(t, mgr.Account().HasPosition("BTCUSDT"))

		engine.RecordExitTimeout("BTCUSDT", 99, 3000)
		require.False(t, mgr.Account().HasPosition("BTCUSDT"))
		require.Len(t, mgr.Account().Trades, 1)
		require.Equal(t, core.ExitForceExitTimeout, mgr.Account().Trades[0].ExitReason)
	})

	t.Run("force exit bypasses the flash-crash veto", func(t *testing.T) {
		engine, mgr := newTestEngine(0, 0, 0)
		_, err := engine.Enter("BTCUSDT", core.SideLong, 1000, 100, 0, testConfig().Risk, "default", nil)
		require.NoError(t, err)

		// 30% underwater would veto a stop-loss exit; force exit ignores it.
		engine.ForceExit("BTCUSDT", 70, core.ExitForceExitManual, 1000)
		require.False(t, mgr.Account().HasPosition("BTCUSDT"))
	})
}

// TestPaperBacktestParity drives the paper engine and the shared account
// arithmetic with the same fills the backtest would produce and asserts
// identical numbers.
func TestPaperBacktestParity(t *testing.T) {
	const feeRate, slippage, spreadBps = 0.001, 0.0005, 10.0

	paperEngine, paperMgr := newTestEngine(feeRate, slippage, spreadBps)
	backtestAcc := core.NewAccount("backtest", 10_000)
	backtestMgr := account.NewManager(backtestAcc, feeRate, slippage, spreadBps, nil, logger.Nop())

	riskCfg := testConfig().Risk

	_, err := paperEngine.Enter("BTCUSDT", core.SideLong, 1000, 100, 0, riskCfg, "default", nil)
	require.NoError(t, err)
	_, err = backtestMgr.Open("BTCUSDT", core.SideLong, 1000, 100, 0, riskCfg, "default", nil)
	require.NoError(t, err)

	paperPos := paperMgr.Account().Positions["BTCUSDT"]
	backtestPos := backtestAcc.Positions["BTCUSDT"]
	require.Equal(t, backtestPos.EntryPrice, paperPos.EntryPrice)
	require.Equal(t, backtestPos.Quantity, paperPos.Quantity)
	require.Equal(t, backtestPos.StopLoss, paperPos.StopLoss)

	// Same benign candle closes both by signal at the same price.
	paperEngine.ExitBySignal("BTCUSDT", 104, 1000, nil)
	_, err = backtestMgr.Close("BTCUSDT", 104, core.ExitSignal, 1000)
	require.NoError(t, err)

	require.Len(t, paperMgr.Account().Trades, 1)
	require.Equal(t, backtestAcc.Trades[0].ExitPrice, paperMgr.Account().Trades[0].ExitPrice)
	require.Equal(t, backtestAcc.Trades[0].PnL, paperMgr.Account().Trades[0].PnL)
	require.Equal(t, backtestAcc.Usdt, paperMgr.Account().Usdt)
}
