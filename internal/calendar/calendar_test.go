package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fomc() Event {
	return Event{
		ID: "fomc-1", Name: "FOMC Rate Decision",
		Date: "2024-03-20", Time: "18:00",
		Impact: "high", Category: "monetary",
	}
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestEvaluatePhases(t *testing.T) {
	events := []Event{fomc()}

	cases := []struct {
		name string
		now  time.Time
		phase Phase
		mult  float64
	}{
		{"a week before", at("2024-03-13 18:00"), PhaseNone, 1.0},
		{"pre window opens 24h out", at("2024-03-19 18:30"), PhasePre, 0.5},
		{"pre window closes 2h out", at("2024-03-20 15:59"), PhasePre, 0.5},
		{"during starts 2h before", at("2024-03-20 16:30"), PhaseDuring, 0.0},
		{"during ends 2h after", at("2024-03-20 20:00"), PhaseDuring, 0.0},
		{"post runs to 6h after", at("2024-03-20 22:00"), PhasePost, 0.7},
		{"gone after 6h", at("2024-03-21 01:00"), PhaseNone, 1.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := Evaluate(events, tc.now)
			require.Equal(t, tc.phase, state.Phase)
			require.Equal(t, tc.mult, state.PositionRatioMultiplier)
		})
	}
}

func TestEvaluatePriority(t *testing.T) {
	// One event in its pre window, another in its during window: during
	// outranks pre.
	pre := fomc()
	during := Event{ID: "cpi-1", Name: "CPI", Date: "2024-03-19", Time: "19:00"}

	state := Evaluate([]Event{pre, during}, at("2024-03-19 18:30"))
	require.Equal(t, PhaseDuring, state.Phase)
	require.Equal(t, 0.0, state.PositionRatioMultiplier)
	require.Equal(t, "cpi-1", state.Event.ID)
}

func TestEventDefaults(t *testing.T) {
	t.Run("missing time defaults to midnight", func(t *testing.T) {
		evt := Event{ID: "x", Date: "2024-03-20"}
		instant, err := evt.At()
		require.NoError(t, err)
		require.Equal(t, at("2024-03-20 00:00"), instant)
	})

	t.Run("unparseable events are skipped", func(t *testing.T) {
		bad := Event{ID: "bad", Date: "not-a-date"}
		state := Evaluate([]Event{bad}, at("2024-03-20 12:00"))
		require.Equal(t, PhaseNone, state.Phase)
	})
}
