// Package calendar evaluates the economic-event risk windows that
// throttle position sizing around scheduled macro events.
package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Phase is the position of now relative to one event's risk windows.
type Phase string

const (
	PhasePre    Phase = "pre"
	PhaseDuring Phase = "during"
	PhasePost   Phase = "post"
	PhaseNone   Phase = "none"
)

// Window boundaries relative to the event time.
const (
	preStart    = -24 * time.Hour
	preEnd      = -2 * time.Hour
	duringEnd   = 2 * time.Hour
	postEnd     = 6 * time.Hour
)

// Multipliers applied to the position ratio per phase.
const (
	MultiplierPre    = 0.5
	MultiplierDuring = 0.0
	MultiplierPost   = 0.7
	MultiplierNone   = 1.0
)

// Event is one scheduled economic event.
type Event struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Date     string `json:"date"` // YYYY-MM-DD
	Time     string `json:"time"` // HH:MM UTC, empty means 00:00
	Impact   string `json:"impact"`
	Category string `json:"category"`
}

// At returns the event instant in UTC.
func (e Event) At() (time.Time, error) {
	clock := e.Time
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.Parse("2006-01-02 15:04", e.Date+" "+clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event %q time: %w", e.ID, err)
	}
	return t.UTC(), nil
}

// RiskState is the aggregate verdict over all active events.
type RiskState struct {
	Phase                   Phase
	PositionRatioMultiplier float64
	ExpiresAt               time.Time
	Event                   *Event
}

// phasePriority orders overlapping phases: during > pre > post.
func phasePriority(p Phase) int {
	switch p {
	case PhaseDuring:
		return 3
	case PhasePre:
		return 2
	case PhasePost:
		return 1
	default:
		return 0
	}
}

// phaseOf places now relative to one event instant.
func phaseOf(evt, now time.Time) (Phase, time.Time) {
	switch {
	case now.Before(evt.Add(preStart)):
		return PhaseNone, time.Time{}
	case now.Before(evt.Add(preEnd)):
		return PhasePre, evt.Add(preEnd)
	case !now.After(evt.Add(duringEnd)):
		return PhaseDuring, evt.Add(duringEnd)
	case !now.After(evt.Add(postEnd)):
		return PhasePost, evt.Add(postEnd)
	default:
		return PhaseNone, time.Time{}
	}
}

// Evaluate returns the highest-priority risk state among all events at
// now. Events with unparseable times are skipped.
func Evaluate(events []Event, now time.Time) RiskState {
	best := RiskState{Phase: PhaseNone, PositionRatioMultiplier: MultiplierNone}

	for i := range events {
		at, err := events[i].At()
		if err != nil {
			continue
		}
		phase, expires := phaseOf(at, now)
		if phasePriority(phase) <= phasePriority(best.Phase) {
			continue
		}
		best = RiskState{
			Phase:     phase,
			ExpiresAt: expires,
			Event:     &events[i],
		}
		switch phase {
		case PhasePre:
			best.PositionRatioMultiplier = MultiplierPre
		case PhaseDuring:
			best.PositionRatioMultiplier = MultiplierDuring
		case PhasePost:
			best.PositionRatioMultiplier = MultiplierPost
		}
	}
	return best
}

// LoadFile reads a JSON array of events.
func LoadFile(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event calendar: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse event calendar: %w", err)
	}
	return events, nil
}
