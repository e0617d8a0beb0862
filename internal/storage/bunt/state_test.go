package bunt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedState(t *testing.T) {
	store, err := FromMemory()
	require.NoError(t, err)
	defer store.Close()

	state := store.Scope("trend", "BTCUSDT")

	t.Run("missing keys return the default", func(t *testing.T) {
		require.Equal(t, 42, state.Get("missing", 42))
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, state.Set("last_signal", "buy"))
		require.Equal(t, "buy", state.Get("last_signal", ""))
	})

	t.Run("delete removes the key", func(t *testing.T) {
		require.NoError(t, state.Set("temp", 1.0))
		require.NoError(t, state.Delete("temp"))
		require.Equal(t, "gone", state.Get("temp", "gone"))
	})

	t.Run("snapshot reflects the full map", func(t *testing.T) {
		snap := state.Snapshot()
		require.Contains(t, snap, "last_signal")
		require.NotContains(t, snap, "temp")
	})

	t.Run("scopes are isolated", func(t *testing.T) {
		other := store.Scope("trend", "ETHUSDT")
		require.Equal(t, "none", other.Get("last_signal", "none"))
	})
}
