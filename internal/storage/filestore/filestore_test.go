package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/stretchr/testify/require"
)

func TestScenarioRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	acc := core.NewAccount("round-trip", 10_000)
	acc.Usdt = 9_000
	acc.Positions["BTCUSDT"] = &core.Position{
		Symbol: "BTCUSDT", Side: core.SideLong,
		EntryPrice: 100, EntryTime: 1_000_000, Quantity: 10, Cost: 1000,
		StopLoss: 95, TakeProfit: 110,
	}
	acc.Trades = append(acc.Trades, core.Trade{
		Symbol: "ETHUSDT", Side: core.TradeSideSell,
		EntryTime: 1, ExitTime: 2, EntryPrice: 10, ExitPrice: 11,
		Quantity: 1, Cost: 10, Proceeds: 11, PnL: 1, PnLPercent: 0.1,
		ExitReason: core.ExitTakeProfit,
	})
	acc.FundingPaidBySymbol["BTCUSDT"] = 1.25

	require.NoError(t, store.Save(acc))

	loaded, err := store.Load("round-trip")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 9_000.0, loaded.Usdt)
	require.Len(t, loaded.Positions, 1)
	require.Equal(t, core.SideLong, loaded.Positions["BTCUSDT"].Side)
	require.Len(t, loaded.Trades, 1)
	require.Equal(t, core.ExitTakeProfit, loaded.Trades[0].ExitReason)
	require.Equal(t, 1.25, loaded.FundingPaidBySymbol["BTCUSDT"])
}

func TestScenarioMissing(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.Load("never-saved")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestAppendJSONL(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, store.AppendJSONL("trades", map[string]any{"symbol": "BTCUSDT"}))
	require.NoError(t, store.AppendJSONL("trades", map[string]any{"symbol": "ETHUSDT"}))

	data, err := os.ReadFile(filepath.Join(dir, "logs", "trades.jsonl"))
	require.NoError(t, err)
	require.Contains(t, string(data), "BTCUSDT")
	require.Contains(t, string(data), "ETHUSDT")
}

func TestKlineCache(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	klines := core.Series{{Symbol: "BTCUSDT", OpenTime: 1, Open: 1, High: 2, Low: 1, Close: 2}}

	t.Run("historical ranges cache and load", func(t *testing.T) {
		require.NoError(t, store.SaveKlines("BTCUSDT", "1h", "2024-01-01", "2024-01-31", klines))
		loaded, ok := store.LoadKlines("BTCUSDT", "1h", "2024-01-01", "2024-01-31")
		require.True(t, ok)
		require.Len(t, loaded, 1)
	})

	t.Run("the current day is never cached", func(t *testing.T) {
		today := "9999-01-01" // a range ending in the future
		require.NoError(t, store.SaveKlines("BTCUSDT", "1h", "2024-01-01", today, klines))
		_, ok := store.LoadKlines("BTCUSDT", "1h", "2024-01-01", today)
		require.False(t, ok)
	})
}
