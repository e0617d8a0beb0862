// Package paper mirrors the live executor's exit-decision logic against
// an in-memory account with scoped persistence, so paper fills and
// backtest fills agree bit-for-bit under equal fees, slippage and spread.
package paper

import (
	"fmt"

	"github.com/raykavin/marketcascade/internal/account"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/indicator"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/metrics"
	"github.com/raykavin/marketcascade/internal/risk"
	"github.com/raykavin/marketcascade/internal/strategy"
)

// maxExitTimeouts matches the live executor's escalation threshold.
const maxExitTimeouts = 3

// Engine applies decisions to a paper account.
type Engine struct {
	mgr      *account.Manager
	cfg      *core.Config
	strat    strategy.Strategy
	notifier core.Notifier
	log      logger.Logger
}

// New builds a paper engine over an account manager.
func New(mgr *account.Manager, cfg *core.Config, strat strategy.Strategy, notifier core.Notifier, log logger.Logger) *Engine {
	if notifier == nil {
		notifier = core.NoopNotifier{}
	}
	return &Engine{mgr: mgr, cfg: cfg, strat: strat, notifier: notifier, log: log}
}

// Account exposes the underlying account.
func (e *Engine) Account() *core.Account { return e.mgr.Account() }

// Enter opens a paper position at the candle close through the shared fill
// model.
func (e *Engine) Enter(symbol string, side core.Side, sizeUsdt, close float64, nowMs int64, riskCfg core.RiskConfig, strategyID string, conditions []string) (*core.Position, error) {
	pos, err := e.mgr.Open(symbol, side, sizeUsdt, close, nowMs, riskCfg, strategyID, conditions)
	if err != nil {
		return nil, err
	}
	e.notifier.Notify(fmt.Sprintf("[paper] opened %s %s at %.4f", side, symbol, pos.EntryPrice))
	return pos, nil
}

// OnCandle runs the exit cascade for one open position against a fresh
// candle: strategy exit hook, trailing-stop advance, stop resolution, then
// the same intra-candle priority the backtest uses.
func (e *Engine) OnCandle(symbol string, window core.Series, c core.Candle, nowMs int64) {
	acc := e.mgr.Account()
	pos, ok := acc.Positions[symbol]
	if !ok {
		return
	}
	riskCfg := e.cfg.Risk

	if e.cfg.Futures {
		e.mgr.AccrueFunding(symbol, c.Close, nowMs, nil, e.cfg.AvgFundingRatePer8h)
	}

	ctx := &strategy.Context{
		Symbol:       symbol,
		Klines:       window,
		Indicators:   indicator.Snapshot(window, e.cfg.Strategy),
		Config:       e.cfg,
		PositionSide: pos.Side,
		Log:          e.log,
	}

	if exiter, ok := e.strat.(strategy.Exiter); ok {
		if reason, fire := exiter.ShouldExit(pos, ctx); fire {
			if e.confirmAndClose(pos, c.Close, c.Close, reason, nowMs, ctx, false) {
				return
			}
		}
	}

	risk.UpdateTrailingStop(pos, c.High, c.Low, riskCfg)

	if newStop, changed := risk.ResolveNewStopLoss(pos, c.Close, riskCfg, e.strat, ctx); changed {
		pos.StopLoss = newStop
	}

	if decision, fire := risk.CheckExit(pos, c, riskCfg, nowMs, true); fire {
		e.confirmAndClose(pos, decision.Price, c.Close, decision.Reason, nowMs, ctx, true)
	}
}

// ExitBySignal closes the position at the candle close with reason signal,
// subject to the confirm hook.
func (e *Engine) ExitBySignal(symbol string, close float64, nowMs int64, ctx *strategy.Context) {
	pos, ok := e.mgr.Account().Positions[symbol]
	if !ok {
		return
	}
	e.confirmAndClose(pos, close, close, core.ExitSignal, nowMs, ctx, false)
}

// RecordExitTimeout advances the position's exit-timeout counter,
// mirroring the live escalation: the third consecutive timeout forces the
// exit at the last known price.
func (e *Engine) RecordExitTimeout(symbol string, lastClose float64, nowMs int64) {
	pos, ok := e.mgr.Account().Positions[symbol]
	if !ok {
		return
	}
	pos.ExitTimeoutCount++
	if pos.ExitTimeoutCount >= maxExitTimeouts {
		e.ForceExit(symbol, lastClose, core.ExitForceExitTimeout, nowMs)
	}
}

// ForceExit removes the position unconditionally, bypassing the confirm
// hook, and records the trade with the force reason.
func (e *Engine) ForceExit(symbol string, lastClose float64, reason core.ExitReason, nowMs int64) {
	pos, ok := e.mgr.Account().Positions[symbol]
	if !ok {
		return
	}

	trade, err := e.mgr.Close(symbol, lastClose, reason, nowMs)
	if err != nil {
		e.log.WithError(err).WithField("symbol", symbol).Error("paper force-exit failed")
		return
	}
	metrics.ForceExits.WithLabelValues(symbol, string(reason)).Inc()
	e.notifier.Notify(fmt.Sprintf("[paper] force exit %s %s (%s)", pos.Side, symbol, reason))
	e.notifier.OnTrade(trade)
}

func (e *Engine) confirmAndClose(pos *core.Position, price, mark float64, reason core.ExitReason, nowMs int64, ctx *strategy.Context, exact bool) bool {
	profit := pos.ProfitRatio(mark)
	verdict := risk.ShouldConfirmExit(pos, reason, profit, e.cfg.Execution.MaxExitPriceDeviation, e.strat, ctx)
	if !verdict.Confirmed {
		e.log.WithFields(map[string]any{
			"symbol": pos.Symbol, "reason": reason, "veto": verdict.Reason,
		}).Debug("paper exit vetoed")
		return false
	}

	var trade core.Trade
	var err error
	if exact {
		trade, err = e.mgr.CloseAt(pos.Symbol, price, reason, nowMs)
	} else {
		trade, err = e.mgr.Close(pos.Symbol, price, reason, nowMs)
	}
	if err != nil {
		e.log.WithError(err).WithField("symbol", pos.Symbol).Warn("paper close failed")
		return false
	}

	metrics.TradesClosed.WithLabelValues(pos.Symbol, string(reason)).Inc()
	if hook, ok := e.strat.(strategy.TradeClosedHook); ok {
		hook.OnTradeClosed(trade, ctx)
	}
	e.notifier.OnTrade(trade)
	return true
}
