// Package monitor periodically drives the signal engine per symbol
// against live candles and applies the resulting decisions through either
// the paper engine or the live executor. All account mutation happens on
// the monitor's own goroutine, one symbol at a time, preserving a total
// order over the shared account.
package monitor

import (
	"context"
	"time"

	"github.com/StudioSol/set"
	"github.com/raykavin/marketcascade/internal/calendar"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/metrics"
	"github.com/raykavin/marketcascade/internal/signal"
	"github.com/raykavin/marketcascade/internal/strategy"
)

// Driver abstracts the execution side (paper or live) the monitor applies
// decisions through.
type Driver interface {
	Account() *core.Account

	// HandleCandle runs the exit cascade for an open position.
	HandleCandle(symbol string, window core.Series, c core.Candle, nowMs int64)

	// Enter opens a position sized in USDT at the last close.
	Enter(symbol string, side core.Side, sizeUsdt, lastClose float64, nowMs int64, riskCfg core.RiskConfig, strategyID string, conditions []string) error

	// ExitBySignal closes an open position on a signal exit.
	ExitBySignal(symbol string, close float64, nowMs int64)

	// Housekeep runs per-tick maintenance (order timeouts, stop sync).
	Housekeep()
}

// ExternalProvider supplies the external scalars injected into the
// indicator snapshot. Nil means all-zero.
type ExternalProvider interface {
	Context(symbol string) core.ExternalContext
}

// Monitor owns the tick loop.
type Monitor struct {
	cfg      *core.Config
	feeder   core.Feeder
	engine   *signal.Engine
	driver   Driver
	external ExternalProvider
	events   []calendar.Event
	states   StateProvider
	log      logger.Logger

	symbols  *set.LinkedHashSetString
	interval time.Duration
	candleMs int64
	warmup   int

	windows map[string]core.Series
}

// New builds a monitor over the given symbols. interval is the candle
// duration of the configured timeframe.
func New(cfg *core.Config, feeder core.Feeder, engine *signal.Engine, driver Driver, interval time.Duration, warmup int, log logger.Logger, symbols ...string) *Monitor {
	symSet := set.NewLinkedHashSetString()
	for _, sym := range symbols {
		symSet.Add(sym)
	}
	return &Monitor{
		cfg:      cfg,
		feeder:   feeder,
		engine:   engine,
		driver:   driver,
		log:      log,
		symbols:  symSet,
		interval: interval,
		candleMs: interval.Milliseconds(),
		warmup:   warmup,
		windows:  make(map[string]core.Series),
	}
}

// StateProvider hands out the scoped strategy state store per symbol.
type StateProvider func(strategyID, symbol string) strategy.StateStore

// SetExternalProvider wires an optional external-context source.
func (m *Monitor) SetExternalProvider(p ExternalProvider) { m.external = p }

// SetStateProvider wires the per-strategy, per-symbol state store.
func (m *Monitor) SetStateProvider(p StateProvider) { m.states = p }

// SetEvents installs the economic-event calendar.
func (m *Monitor) SetEvents(events []calendar.Event) { m.events = events }

// Run ticks until the context is cancelled. The first tick fires
// immediately.
func (m *Monitor) Run(ctx context.Context) {
	m.log.WithField("interval", m.interval.String()).Info("monitor started")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick processes every symbol sequentially: housekeeping first, then
// exits, then entries, mirroring the backtest's intra-tick ordering.
func (m *Monitor) tick(ctx context.Context) {
	now := time.Now().UTC().UnixMilli()

	m.driver.Housekeep()

	for sym := range m.symbols.Iter() {
		if err := m.refresh(ctx, sym); err != nil {
			m.log.WithError(err).WithField("symbol", sym).Warn("candle fetch failed")
			continue
		}
		window := m.windows[sym]
		if last, ok := window.Last(); ok && m.driver.Account().HasPosition(sym) {
			m.driver.HandleCandle(sym, window, last, now)
		}
	}

	for sym := range m.symbols.Iter() {
		m.processSymbol(sym, now)
	}

	acc := m.driver.Account()
	marks := make(map[string]float64, m.symbols.Length())
	for sym, window := range m.windows {
		if last, ok := window.Last(); ok {
			marks[sym] = last.Close
		}
	}
	metrics.AccountEquity.WithLabelValues(acc.ScenarioID).Set(acc.Equity(marks))
	metrics.OpenPositions.WithLabelValues(acc.ScenarioID).Set(float64(len(acc.Positions)))
}

func (m *Monitor) refresh(ctx context.Context, symbol string) error {
	klines, err := m.feeder.GetKlines(ctx, symbol, m.cfg.Timeframe, m.warmup*2)
	if err != nil {
		return err
	}
	m.windows[symbol] = klines
	return nil
}

func (m *Monitor) processSymbol(symbol string, nowMs int64) {
	window := m.windows[symbol]
	last, ok := window.Last()
	if !ok || len(window) < m.warmup {
		return
	}
	acc := m.driver.Account()

	var posSide core.Side
	if pos, held := acc.Positions[symbol]; held {
		posSide = pos.Side
	}

	held := make(map[string]core.Series)
	for heldSym := range acc.Positions {
		if heldSym != symbol {
			held[heldSym] = m.windows[heldSym]
		}
	}

	var external core.ExternalContext
	if m.external != nil {
		external = m.external.Context(symbol)
	}

	var state strategy.StateStore
	if m.states != nil {
		state = m.states(m.cfg.StrategyID, symbol)
	}

	result := m.engine.ProcessSignal(signal.Request{
		Symbol:       symbol,
		Klines:       window,
		Config:       m.cfg,
		External:     external,
		PositionSide: posSide,
		HeldKlines:   held,
		RecentTrades: acc.RecentTradeRecords(),
		NowMs:        nowMs,
		CandleMs:     m.candleMs,
		State:        state,
	})

	metrics.SignalsProcessed.WithLabelValues(symbol, string(result.Signal)).Inc()
	if result.Rejected {
		metrics.SignalsRejected.WithLabelValues(symbol).Inc()
		m.log.WithFields(map[string]any{
			"symbol": symbol, "reason": result.RejectionReason,
		}).Debug("signal rejected")
		return
	}

	switch result.Signal {
	case core.SignalSell, core.SignalCover:
		m.driver.ExitBySignal(symbol, last.Close, nowMs)

	case core.SignalBuy, core.SignalShort:
		m.enter(symbol, last.Close, nowMs, result)
	}
}

func (m *Monitor) enter(symbol string, close float64, nowMs int64, result core.EngineResult) {
	acc := m.driver.Account()
	if acc.HasPosition(symbol) {
		return
	}
	riskCfg := result.EffectiveRisk
	if riskCfg.MaxPositions > 0 && len(acc.Positions) >= riskCfg.MaxPositions {
		return
	}

	ratio := result.EffectivePositionRatio
	if len(m.events) > 0 {
		state := calendar.Evaluate(m.events, core.TimeFromMillis(nowMs))
		if state.PositionRatioMultiplier == 0 {
			m.log.WithFields(map[string]any{
				"symbol": symbol, "phase": state.Phase,
			}).Info("entry suppressed by event calendar")
			return
		}
		ratio *= state.PositionRatioMultiplier
	}

	marks := map[string]float64{symbol: close}
	size := acc.Equity(marks) * ratio
	if size > acc.Usdt {
		size = acc.Usdt
	}
	if size < m.cfg.Execution.MinOrderUsdt || size <= 0 {
		return
	}

	side := core.SideLong
	if result.Signal == core.SignalShort {
		side = core.SideShort
	}

	if err := m.driver.Enter(symbol, side, size, close, nowMs, riskCfg, m.cfg.StrategyID, nil); err != nil {
		m.log.WithError(err).WithField("symbol", symbol).Warn("entry failed")
	}
}
