package strategy

import "github.com/raykavin/marketcascade/internal/core"

// Default is the built-in rule evaluator: each signal class fires when all
// of its configured conditions hold, evaluated position-aware so a single
// tick yields at most one actionable signal.
type Default struct{}

// NewDefault returns the built-in "default" strategy.
func NewDefault() *Default { return &Default{} }

func (*Default) ID() string { return "default" }

// PopulateSignal evaluates the configured condition lists in
// position-aware order: flat accounts check buy before short, a long
// position checks only sell, a short position checks only cover.
func (*Default) PopulateSignal(ctx *Context) core.SignalType {
	ind := ctx.Indicators
	cfg := ctx.Config
	if ind == nil || cfg == nil {
		return core.SignalNone
	}

	switch ctx.PositionSide {
	case core.SideLong:
		if evalAll(cfg.Signals.Sell, ind, cfg) {
			return core.SignalSell
		}
	case core.SideShort:
		if evalAll(cfg.Signals.Cover, ind, cfg) {
			return core.SignalCover
		}
	default:
		if evalAll(cfg.Signals.Buy, ind, cfg) {
			return core.SignalBuy
		}
		if evalAll(cfg.Signals.Short, ind, cfg) {
			return core.SignalShort
		}
	}
	return core.SignalNone
}
