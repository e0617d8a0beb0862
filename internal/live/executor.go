// Package live wraps broker calls in the execution state machine: entries
// with native stop-loss placement, stop synchronization, order-timeout
// escalation and the force-exit recovery path.
package live

import (
	"context"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/raykavin/marketcascade/internal/account"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/indicator"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/metrics"
	"github.com/raykavin/marketcascade/internal/risk"
	"github.com/raykavin/marketcascade/internal/strategy"
)

// maxExitTimeouts is the consecutive exit-order timeout count that
// triggers a force exit.
const maxExitTimeouts = 3

// brokerCallTimeout bounds every broker request.
const brokerCallTimeout = 30 * time.Second

// orderKind distinguishes entry from exit orders in the timeout sweep.
type orderKind int

const (
	kindEntry orderKind = iota
	kindExit
)

// pendingOrder is an order awaiting a terminal broker status.
type pendingOrder struct {
	orderID  string
	symbol   string
	kind     orderKind
	placedAt int64
}

// Executor drives a live scenario account against a broker. All mutation
// happens on the monitor's dispatch goroutine; the executor itself holds
// no locks.
type Executor struct {
	broker   core.Broker
	mgr      *account.Manager
	cfg      *core.Config
	notifier core.Notifier
	log      logger.Logger

	pending    []pendingOrder
	strat      strategy.Strategy
	Rejections risk.RejectionLog

	// nowFn is swapped in tests.
	nowFn func() int64
}

// NewExecutor builds a live executor over the given account manager.
func NewExecutor(broker core.Broker, mgr *account.Manager, cfg *core.Config, strat strategy.Strategy, notifier core.Notifier, log logger.Logger) *Executor {
	if notifier == nil {
		notifier = core.NoopNotifier{}
	}
	return &Executor{
		broker:     broker,
		mgr:        mgr,
		cfg:        cfg,
		strat:      strat,
		notifier:   notifier,
		log:        log,
		Rejections: make(risk.RejectionLog),
		nowFn:      func() int64 { return time.Now().UTC().UnixMilli() },
	}
}

// Account exposes the underlying account.
func (e *Executor) Account() *core.Account { return e.mgr.Account() }

// callCtx returns a bounded context for one broker call.
func callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), brokerCallTimeout)
}

// retryBackoff is the shared policy for transient broker failures.
func retryBackoff() *backoff.Backoff {
	return &backoff.Backoff{Min: 500 * time.Millisecond, Max: 5 * time.Second, Factor: 2, Jitter: true}
}

// Enter opens a position with a market order and immediately places the
// exchange-native protective stop. lastClose sizes the base quantity for
// short entries. A failed entry discards the would-be position; a failed
// stop placement leaves the position unprotected until the next tick
// retries it.
func (e *Executor) Enter(symbol string, side core.Side, sizeUsdt, lastClose float64, riskCfg core.RiskConfig, strategyID string, conditions []string) (*core.Position, error) {
	ctx, cancel := callCtx()
	defer cancel()

	var order *core.Order
	var err error
	if side == core.SideLong {
		order, err = e.broker.MarketBuy(ctx, symbol, sizeUsdt)
	} else {
		if lastClose <= 0 {
			return nil, fmt.Errorf("cannot size short entry for %s without a reference price", symbol)
		}
		order, err = e.broker.MarketSell(ctx, symbol, sizeUsdt/lastClose)
	}
	if err != nil || order == nil {
		e.log.WithError(err).WithField("symbol", symbol).Warn("entry order failed")
		return nil, err
	}

	if order.Status != core.OrderStatusFilled {
		e.pending = append(e.pending, pendingOrder{
			orderID: order.ID, symbol: symbol, kind: kindEntry, placedAt: e.nowFn(),
		})
		return nil, nil
	}

	fill := order.AvgFillPrice()
	pos, err := e.mgr.Open(symbol, side, sizeUsdt, fill, e.nowFn(), riskCfg, strategyID, conditions)
	if err != nil {
		return nil, err
	}

	e.placeNativeStop(pos)
	e.notifier.Notify(fmt.Sprintf("opened %s %s at %.4f", side, symbol, pos.EntryPrice))
	return pos, nil
}

// placeNativeStop places the exchange-side stop for an open position and
// records its order id on the position.
func (e *Executor) placeNativeStop(pos *core.Position) {
	if pos.StopLoss <= 0 {
		return
	}
	id := e.PlaceExchangeStopLoss(pos.Symbol, pos.Side, pos.Quantity, pos.StopLoss)
	if id != "" {
		pos.ExchangeSlOrderID = id
		pos.ExchangeSlPrice = pos.StopLoss
	}
}

// PlaceExchangeStopLoss maps the position side to the closing broker side
// (long -> SELL, short -> BUY) and places a stop-market order. Returns the
// broker order id, or empty on failure; it never returns an error to the
// decision layer.
func (e *Executor) PlaceExchangeStopLoss(symbol string, side core.Side, qty, stopPrice float64) string {
	brokerSide := "SELL"
	if side == core.SideShort {
		brokerSide = "BUY"
	}

	b := retryBackoff()
	for attempt := 0; attempt < 3; attempt++ {
		ctx, cancel := callCtx()
		order, err := e.broker.PlaceStopLossOrder(ctx, symbol, brokerSide, qty, stopPrice)
		cancel()
		if err == nil && order != nil {
			return order.ID
		}
		e.log.WithError(err).WithFields(map[string]any{
			"symbol": symbol, "stop": stopPrice,
		}).Warn("stop-loss placement failed")
		time.Sleep(b.Duration())
	}
	return ""
}

// CancelExchangeStopLoss cancels a native stop. Failures (including
// order-already-gone) are logged and swallowed.
func (e *Executor) CancelExchangeStopLoss(symbol, orderID string) {
	if orderID == "" {
		return
	}
	ctx, cancel := callCtx()
	defer cancel()
	if err := e.broker.CancelOrder(ctx, symbol, orderID); err != nil {
		e.log.WithError(err).WithFields(map[string]any{
			"symbol": symbol, "order_id": orderID,
		}).Warn("stop-loss cancel failed")
	}
}

// SyncExchangeStopLosses polls every position's native stop order. A
// filled stop closes the position locally at the broker's fill price; an
// unexpectedly cancelled stop is logged and the position kept for the next
// tick to re-protect; errors never propagate.
func (e *Executor) SyncExchangeStopLosses() {
	acc := e.mgr.Account()
	for _, sym := range sortedSymbols(acc.Positions) {
		pos := acc.Positions[sym]
		if pos.ExchangeSlOrderID == "" {
			e.placeNativeStop(pos)
			continue
		}

		ctx, cancel := callCtx()
		order, err := e.broker.GetOrder(ctx, sym, pos.ExchangeSlOrderID)
		cancel()
		if err != nil || order == nil {
			e.log.WithError(err).WithField("symbol", sym).Warn("stop-loss status fetch failed")
			continue
		}

		switch order.Status {
		case core.OrderStatusFilled:
			fill := order.AvgFillPrice()
			if fill == 0 {
				fill = pos.ExchangeSlPrice
			}
			trade, err := e.mgr.CloseAt(sym, fill, core.ExitStopLoss, e.nowFn())
			if err != nil {
				e.log.WithError(err).WithField("symbol", sym).Error("local close after stop fill failed")
				continue
			}
			metrics.TradesClosed.WithLabelValues(sym, string(core.ExitStopLoss)).Inc()
			e.notifier.OnTrade(trade)

		case core.OrderStatusCanceled:
			e.log.WithFields(map[string]any{
				"symbol": sym, "order_id": pos.ExchangeSlOrderID,
			}).Warn("native stop cancelled while position open; keeping position")
			pos.ExchangeSlOrderID = ""
			pos.ExchangeSlPrice = 0
		}
	}
}

// ExitBySignal places the closing market order for a signal-driven exit
// and tracks it for timeout escalation if it does not fill immediately.
func (e *Executor) ExitBySignal(symbol string, reason core.ExitReason) {
	acc := e.mgr.Account()
	pos, ok := acc.Positions[symbol]
	if !ok {
		return
	}

	e.CancelExchangeStopLoss(symbol, pos.ExchangeSlOrderID)
	pos.ExchangeSlOrderID = ""

	ctx, cancel := callCtx()
	defer cancel()

	var order *core.Order
	var err error
	if pos.Side == core.SideLong {
		order, err = e.broker.MarketSell(ctx, symbol, pos.Quantity)
	} else {
		order, err = e.broker.MarketBuyByQty(ctx, symbol, pos.Quantity)
	}
	if err != nil || order == nil {
		e.log.WithError(err).WithField("symbol", symbol).Warn("exit order failed")
		return
	}

	if order.Status != core.OrderStatusFilled {
		e.pending = append(e.pending, pendingOrder{
			orderID: order.ID, symbol: symbol, kind: kindExit, placedAt: e.nowFn(),
		})
		return
	}

	trade, err := e.mgr.CloseAt(symbol, order.AvgFillPrice(), reason, e.nowFn())
	if err != nil {
		e.log.WithError(err).WithField("symbol", symbol).Error("local close after exit fill failed")
		return
	}
	metrics.TradesClosed.WithLabelValues(symbol, string(reason)).Inc()
	e.notifier.OnTrade(trade)
}

// CheckOrderTimeouts sweeps pending orders. Timed-out entries are
// cancelled and discarded. Timed-out exits are cancelled and advance the
// position's timeout counter; the third consecutive timeout issues a
// force exit.
func (e *Executor) CheckOrderTimeouts() {
	timeoutMs := int64(e.cfg.Execution.LimitOrderTimeoutSecs) * 1000
	if timeoutMs <= 0 {
		timeoutMs = 60_000
	}
	now := e.nowFn()

	var keep []pendingOrder
	for _, po := range e.pending {
		if now-po.placedAt < timeoutMs {
			if e.resolvePending(po) {
				continue
			}
			keep = append(keep, po)
			continue
		}

		ctx, cancel := callCtx()
		if err := e.broker.CancelOrder(ctx, po.symbol, po.orderID); err != nil {
			e.log.WithError(err).WithField("symbol", po.symbol).Warn("timed-out order cancel failed")
		}
		cancel()

		switch po.kind {
		case kindEntry:
			metrics.OrderTimeouts.WithLabelValues(po.symbol, "entry").Inc()
			e.log.WithField("symbol", po.symbol).Warn("entry order timed out; discarding")

		case kindExit:
			metrics.OrderTimeouts.WithLabelValues(po.symbol, "exit").Inc()
			pos, ok := e.mgr.Account().Positions[po.symbol]
			if !ok {
				continue
			}
			pos.ExitTimeoutCount++
			e.log.WithFields(map[string]any{
				"symbol": po.symbol, "count": pos.ExitTimeoutCount,
			}).Warn("exit order timed out")
			if pos.ExitTimeoutCount >= maxExitTimeouts {
				e.ForceExit(po.symbol, core.ExitForceExitTimeout)
			}
		}
	}
	e.pending = keep
}

// resolvePending checks a still-young pending order for a terminal status
// and settles it. Returns true when the order left the pending set.
func (e *Executor) resolvePending(po pendingOrder) bool {
	ctx, cancel := callCtx()
	order, err := e.broker.GetOrder(ctx, po.symbol, po.orderID)
	cancel()
	if err != nil || order == nil {
		return false
	}

	switch order.Status {
	case core.OrderStatusFilled:
		if po.kind == kindExit {
			if _, ok := e.mgr.Account().Positions[po.symbol]; ok {
				trade, err := e.mgr.CloseAt(po.symbol, order.AvgFillPrice(), core.ExitSignal, e.nowFn())
				if err == nil {
					metrics.TradesClosed.WithLabelValues(po.symbol, string(core.ExitSignal)).Inc()
					e.notifier.OnTrade(trade)
				}
			}
		}
		return true
	case core.OrderStatusCanceled, core.OrderStatusRejected, core.OrderStatusExpired:
		return true
	}
	return false
}

// ForceExit unconditionally closes a position: best-effort cancel of the
// native stop, a closing market order, then local removal regardless of
// execution success so local and broker state cannot desynchronize. The
// trade is recorded with the force reason; when the market order failed
// or reported no fill price, the exit price is the position's entry price
// (the executor keeps no last mark), so the trade is notional.
func (e *Executor) ForceExit(symbol string, reason core.ExitReason) {
	acc := e.mgr.Account()
	pos, ok := acc.Positions[symbol]
	if !ok {
		return
	}

	e.CancelExchangeStopLoss(symbol, pos.ExchangeSlOrderID)

	ctx, cancel := callCtx()
	defer cancel()

	exitPrice := pos.EntryPrice
	var order *core.Order
	var err error
	if pos.Side == core.SideLong {
		order, err = e.broker.MarketSell(ctx, symbol, pos.Quantity)
	} else {
		order, err = e.broker.MarketBuyByQty(ctx, symbol, pos.Quantity)
	}
	if err != nil || order == nil {
		e.log.WithError(err).WithField("symbol", symbol).Error("force-exit market order failed; removing position anyway")
	} else if fill := order.AvgFillPrice(); fill > 0 {
		exitPrice = fill
	}

	trade, cerr := e.mgr.RemovePosition(symbol, exitPrice, reason, e.nowFn())
	if cerr != nil {
		e.log.WithError(cerr).WithField("symbol", symbol).Error("force-exit local removal failed")
		return
	}

	metrics.ForceExits.WithLabelValues(symbol, string(reason)).Inc()
	e.notifier.Notify(fmt.Sprintf("force exit %s (%s) at %.4f", symbol, reason, exitPrice))
	e.notifier.OnTrade(trade)
}

// OnCandle runs the exit cascade for one open position against a fresh
// candle: strategy exit hook, trailing-stop advance, stop resolution with
// native-stop re-placement, then the intra-candle priority rules. Exits
// found locally route through the confirm hook and the closing market
// order; the native stop on the exchange remains the backstop for moves
// between ticks.
func (e *Executor) OnCandle(symbol string, window core.Series, c core.Candle, nowMs int64) {
	acc := e.mgr.Account()
	pos, ok := acc.Positions[symbol]
	if !ok {
		return
	}
	riskCfg := e.cfg.Risk

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
			if e.confirmedExit(pos, c.Close, reason, nowMs, ctx) {
				return
			}
		}
	}

	risk.UpdateTrailingStop(pos, c.High, c.Low, riskCfg)

	if newStop, changed := risk.ResolveNewStopLoss(pos, c.Close, riskCfg, e.strat, ctx); changed {
		e.SyncStopPrice(symbol, newStop)
	}

	if decision, fire := risk.CheckExit(pos, c, riskCfg, nowMs, false); fire {
		e.confirmedExit(pos, c.Close, decision.Reason, nowMs, ctx)
	}
}

// confirmedExit routes a proposed exit through the confirm hook; a veto is
// recorded in the rejection log so callers can throttle retries.
func (e *Executor) confirmedExit(pos *core.Position, close float64, reason core.ExitReason, nowMs int64, ctx *strategy.Context) bool {
	profit := pos.ProfitRatio(close)
	verdict := risk.ShouldConfirmExit(pos, reason, profit, e.cfg.Execution.MaxExitPriceDeviation, e.strat, ctx)
	if !verdict.Confirmed {
		e.Rejections.Record(pos.Symbol, nowMs)
		e.log.WithFields(map[string]any{
			"symbol": pos.Symbol, "reason": reason, "veto": verdict.Reason,
		}).Debug("live exit vetoed")
		return false
	}
	e.ExitBySignal(pos.Symbol, reason)
	return true
}

// SyncStopPrice re-places the native stop when the locally resolved stop
// moved (break-even or custom stop).
func (e *Executor) SyncStopPrice(symbol string, newStop float64) {
	pos, ok := e.mgr.Account().Positions[symbol]
	if !ok || newStop == pos.ExchangeSlPrice {
		return
	}
	e.CancelExchangeStopLoss(symbol, pos.ExchangeSlOrderID)
	pos.ExchangeSlOrderID = ""
	pos.StopLoss = newStop
	e.placeNativeStop(pos)
}
