// Package strategy defines the pluggable strategy surface: a minimal
// Strategy interface, optional capability interfaces callers probe with
// type assertions, a process-wide registry, the default YAML rule
// evaluator and the ensemble voter.
package strategy

import (
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
)

// StateStore is per-strategy, per-symbol scratch storage with atomic
// mutation semantics. Corrupt or missing underlying state reads as empty.
type StateStore interface {
	Get(key string, def any) any
	Set(key string, value any) error
	Delete(key string) error
	Snapshot() map[string]any
}

// Context is the read-only view a strategy receives on every evaluation.
// Strategies must not mutate Klines or Indicators.
type Context struct {
	Symbol     string
	Klines     core.Series
	Indicators *core.Indicators
	Config     *core.Config

	// PositionSide is the side of the currently open position for Symbol,
	// or empty when flat.
	PositionSide core.Side

	State StateStore
	Log   logger.Logger
}

// Strategy is the minimal capability every plugin implements.
type Strategy interface {
	ID() string
	PopulateSignal(ctx *Context) core.SignalType
}

// CustomStoplosser lets a strategy propose a replacement stop price. The
// second return is false when the strategy has no opinion this tick.
type CustomStoplosser interface {
	CustomStoploss(pos *core.Position, ctx *Context) (float64, bool)
}

// Exiter lets a strategy demand an exit ahead of the engine's own rules.
type Exiter interface {
	ShouldExit(pos *core.Position, ctx *Context) (core.ExitReason, bool)
}

// ExitConfirmer lets a strategy veto a proposed exit. Its answer is
// authoritative for every reason except the force-exit family.
type ExitConfirmer interface {
	ConfirmExit(pos *core.Position, reason core.ExitReason, ctx *Context) bool
}

// TradeClosedHook is notified after a position is closed and the trade
// recorded.
type TradeClosedHook interface {
	OnTradeClosed(trade core.Trade, ctx *Context)
}
