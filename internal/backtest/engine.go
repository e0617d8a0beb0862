// Package backtest implements the multi-symbol, shared-account simulator:
// a deterministic single-goroutine loop over the sorted union of candle
// timestamps with intra-candle exit priority, funding accrual and the full
// signal pipeline on entries.
package backtest

import (
	"fmt"
	"sort"

	"github.com/raykavin/marketcascade/internal/account"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/indicator"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/metrics"
	"github.com/raykavin/marketcascade/internal/risk"
	"github.com/raykavin/marketcascade/internal/signal"
	"github.com/raykavin/marketcascade/internal/strategy"
)

// Input is the full data set a run consumes.
type Input struct {
	// Candles holds the complete per-symbol history, ascending by open
	// time, one candle per open time.
	Candles map[string]core.Series

	// HigherTF optionally holds a higher-timeframe series per symbol for
	// the multi-timeframe entry filter.
	HigherTF map[string]core.Series

	// Funding optionally holds exact per-symbol funding-rate history.
	Funding map[string][]core.FundingPoint

	// Warmup is the candle count required before signals are evaluated.
	// Zero derives it from the strategy config.
	Warmup int

	// Intracandle enables high/low exit triggering; disabled, every exit
	// rule tests the close only.
	Intracandle bool
}

// Result is the outcome of one run.
type Result struct {
	Account     *core.Account
	Trades      []core.Trade
	EquityCurve []metrics.EquityPoint
	Performance metrics.Performance
}

// Engine wires the signal pipeline into the simulator loop.
type Engine struct {
	cfg      *core.Config
	registry *strategy.Registry
	sig      *signal.Engine
	log      logger.Logger

	// Progress, when set, is invoked once per processed tick.
	Progress func(done, total int)
}

// New constructs a backtest engine; the strategy id is validated here so a
// bad config aborts before any data is touched.
func New(cfg *core.Config, registry *strategy.Registry, log logger.Logger) (*Engine, error) {
	sig, err := signal.New(registry, cfg, log)
	if err != nil {
		return nil, err
	}
	if cfg.Execution.MinOrderUsdt < 0 {
		return nil, fmt.Errorf("%w: negative min_order_usdt", core.ErrInvalidConfig)
	}
	return &Engine{cfg: cfg, registry: registry, sig: sig, log: log}, nil
}

// run-scoped state, one per Run call so the engine itself stays reusable.
type runState struct {
	mgr      *account.Manager
	windows  map[string]core.Series
	lastMark map[string]float64
	curve    []metrics.EquityPoint
	warmup      int
	candleMs    int64
	symbols     []string
	strat       strategy.Strategy
	intracandle bool
}

// Run executes the simulation over the input and returns the account,
// trades, equity curve and performance block. The loop is strictly
// single-threaded: output is a pure function of candles and config.
func (e *Engine) Run(input Input) (*Result, error) {
	if len(input.Candles) == 0 {
		return nil, fmt.Errorf("%w: no candle data", core.ErrInvalidConfig)
	}

	id := e.cfg.StrategyID
	if id == "" {
		id = "default"
	}
	strat, err := e.registry.Get(id)
	if err != nil {
		return nil, err
	}

	warmup := input.Warmup
	if warmup <= 0 {
		warmup = defaultWarmup(e.cfg.Strategy)
	}

	acc := core.NewAccount("backtest", e.cfg.Paper.InitialUsdt)
	st := &runState{
		mgr: account.NewManager(acc, e.cfg.Paper.FeeRate, e.cfg.Paper.SlippagePercent,
			e.cfg.Risk.SpreadBps, nil, e.log),
		windows:  make(map[string]core.Series, len(input.Candles)),
		lastMark: make(map[string]float64, len(input.Candles)),
		warmup:      warmup,
		candleMs:    candleDuration(input.Candles),
		strat:       strat,
		intracandle: input.Intracandle,
	}
	for sym := range input.Candles {
		st.symbols = append(st.symbols, sym)
	}
	sort.Strings(st.symbols)

	ticks := tickUnion(input.Candles)
	for i, t := range ticks {
		e.tick(st, input, t)
		if e.Progress != nil {
			e.Progress(i+1, len(ticks))
		}
	}

	// End of data: remaining positions close at their last observed mark.
	if len(ticks) > 0 {
		last := ticks[len(ticks)-1]
		for _, sym := range st.symbols {
			if acc.HasPosition(sym) {
				if _, err := st.mgr.Close(sym, st.lastMark[sym], core.ExitEndOfData, last); err != nil {
					e.log.WithError(err).WithField("symbol", sym).Warn("end-of-data close failed")
				}
			}
		}
		st.snapshotEquity(last)
	}

	perf := metrics.Compute(acc.Trades, st.curve, acc.InitialUsdt, acc.FundingPaidBySymbol)
	return &Result{
		Account:     acc,
		Trades:      acc.Trades,
		EquityCurve: st.curve,
		Performance: perf,
	}, nil
}

// tick processes one timestamp: advance windows, settle funding, run exit
// checks, then entries, then snapshot equity. Exits always precede entries
// within a tick.
func (e *Engine) tick(st *runState, input Input, t int64) {
	arrived := make(map[string]core.Candle)
	for _, sym := range st.symbols {
		if c, ok := candleAt(input.Candles[sym], t); ok {
			st.windows[sym] = pushCapped(st.windows[sym], c, st.warmup*2)
			st.lastMark[sym] = c.Close
			arrived[sym] = c
		}
	}

	if e.cfg.Futures {
		for _, sym := range st.symbols {
			if c, ok := arrived[sym]; ok && st.mgr.Account().HasPosition(sym) {
				st.mgr.AccrueFunding(sym, c.Close, t, input.Funding[sym], e.cfg.AvgFundingRatePer8h)
			}
		}
	}

	heldBefore := make(map[string]bool)
	for _, sym := range st.symbols {
		if c, ok := arrived[sym]; ok && st.mgr.Account().HasPosition(sym) {
			heldBefore[sym] = true
			e.checkExits(st, sym, c, t)
		}
	}

	for _, sym := range st.symbols {
		// A symbol whose position closed this tick sits out the entry
		// pass: one actionable signal per symbol per candle.
		if heldBefore[sym] && !st.mgr.Account().HasPosition(sym) {
			continue
		}
		if c, ok := arrived[sym]; ok {
			e.checkEntry(st, input, sym, c, t)
		}
	}

	st.snapshotEquity(t)
}

// checkExits runs the per-position exit cascade in spec order: strategy
// exit hook, trailing-stop advance, stop resolution, intra-candle priority.
func (e *Engine) checkExits(st *runState, sym string, c core.Candle, t int64) {
	acc := st.mgr.Account()
	pos := acc.Positions[sym]
	riskCfg := e.cfg.Risk

	ctx := &strategy.Context{
		Symbol:       sym,
		Klines:       st.windows[sym],
		Indicators:   indicator.Snapshot(st.windows[sym], e.cfg.Strategy),
		Config:       e.cfg,
		PositionSide: pos.Side,
		Log:          e.log,
	}

	if exiter, ok := st.strat.(strategy.Exiter); ok {
		if reason, fire := exiter.ShouldExit(pos, ctx); fire {
			if e.confirmAndClose(st, pos, c.Close, c.Close, reason, t, ctx, false) {
				return
			}
		}
	}

	risk.UpdateTrailingStop(pos, c.High, c.Low, riskCfg)

	if newStop, changed := risk.ResolveNewStopLoss(pos, c.Close, riskCfg, st.strat, ctx); changed {
		pos.StopLoss = newStop
	}

	if decision, fire := risk.CheckExit(pos, c, riskCfg, t, st.intracandle); fire {
		e.confirmAndClose(st, pos, decision.Price, c.Close, decision.Reason, t, ctx, true)
	}
}

// confirmAndClose routes an exit through the confirm hook and settles it.
// The confirm decision looks at the profit ratio at the current mark, not
// the trigger price: a stop whose trigger sits far above the market is
// exactly the flash-crash case the hook exists for. exact controls whether
// price is already the effective trigger price or a raw close needing the
// exit fill model. Returns true when the position was closed.
func (e *Engine) confirmAndClose(st *runState, pos *core.Position, price, mark float64, reason core.ExitReason, t int64, ctx *strategy.Context, exact bool) bool {
	profit := pos.ProfitRatio(mark)
	verdict := risk.ShouldConfirmExit(pos, reason, profit, e.cfg.Execution.MaxExitPriceDeviation, st.strat, ctx)
	if !verdict.Confirmed {
		e.log.WithFields(map[string]any{
			"symbol": pos.Symbol, "reason": reason, "veto": verdict.Reason,
		}).Debug("exit vetoed")
		return false
	}

	var trade core.Trade
	var err error
	if exact {
		trade, err = st.mgr.CloseAt(pos.Symbol, price, reason, t)
	} else {
		trade, err = st.mgr.Close(pos.Symbol, price, reason, t)
	}
	if err != nil {
		e.log.WithError(err).WithField("symbol", pos.Symbol).Warn("close failed")
		return false
	}

	if hook, ok := st.strat.(strategy.TradeClosedHook); ok {
		hook.OnTradeClosed(trade, ctx)
	}
	return true
}

// checkEntry runs the signal pipeline for one symbol and applies the
// decision: signal exits close the open position, entries size and open a
// new one subject to the account limits.
func (e *Engine) checkEntry(st *runState, input Input, sym string, c core.Candle, t int64) {
	acc := st.mgr.Account()
	window := st.windows[sym]
	if len(window) < st.warmup {
		return
	}

	var posSide core.Side
	if pos, ok := acc.Positions[sym]; ok {
		posSide = pos.Side
	}

	held := make(map[string]core.Series)
	for heldSym := range acc.Positions {
		if heldSym != sym {
			held[heldSym] = st.windows[heldSym]
		}
	}

	result := e.sig.ProcessSignal(signal.Request{
		Symbol:       sym,
		Klines:       window,
		Config:       e.cfg,
		PositionSide: posSide,
		HeldKlines:   held,
		RecentTrades: acc.RecentTradeRecords(),
		NowMs:        t,
		CandleMs:     st.candleMs,
	})

	if result.Rejected {
		return
	}

	switch result.Signal {
	case core.SignalSell, core.SignalCover:
		if pos, ok := acc.Positions[sym]; ok {
			ctx := &strategy.Context{
				Symbol: sym, Klines: window, Indicators: result.Indicators,
				Config: e.cfg, PositionSide: pos.Side, Log: e.log,
			}
			e.confirmAndClose(st, pos, c.Close, c.Close, core.ExitSignal, t, ctx, false)
		}

	case core.SignalBuy, core.SignalShort:
		e.openFromSignal(st, input, sym, c, t, result)
	}
}

func (e *Engine) openFromSignal(st *runState, input Input, sym string, c core.Candle, t int64, result core.EngineResult) {
	acc := st.mgr.Account()
	riskCfg := result.EffectiveRisk

	side := core.SideLong
	if result.Signal == core.SignalShort {
		side = core.SideShort
	}

	if !e.higherTimeframePass(input, sym, side, t) {
		return
	}

	if acc.HasPosition(sym) {
		e.maybeDCA(st, sym, c, t, result)
		return
	}

	if riskCfg.MaxPositions > 0 && len(acc.Positions) >= riskCfg.MaxPositions {
		return
	}
	if limit := riskCfg.DailyLossLimitPercent; limit > 0 {
		if acc.DailyLoss.Date == core.TimeFromMillis(t).Format("2006-01-02") &&
			acc.DailyLoss.Loss >= acc.InitialUsdt*limit/100 {
			return
		}
	}
	equity := acc.Equity(st.lastMark)
	if limit := riskCfg.MaxTotalLossPercent; limit > 0 &&
		equity <= acc.InitialUsdt*(1-limit/100) {
		return
	}

	size := equity * result.EffectivePositionRatio
	if size > acc.Usdt {
		size = acc.Usdt
	}
	if size < e.cfg.Execution.MinOrderUsdt || size <= 0 {
		return
	}

	pos, err := st.mgr.Open(sym, side, size, c.Close, t, riskCfg, e.cfg.StrategyID, nil)
	if err != nil {
		e.log.WithError(err).WithField("symbol", sym).Debug("entry skipped")
		return
	}
	e.log.WithFields(map[string]any{
		"symbol": sym, "side": side, "entry": pos.EntryPrice, "size": size,
	}).Debug("position opened")
}

// maybeDCA adds to an existing same-side position when
// max_position_per_symbol admits more than one entry.
func (e *Engine) maybeDCA(st *runState, sym string, c core.Candle, t int64, result core.EngineResult) {
	acc := st.mgr.Account()
	pos := acc.Positions[sym]

	wantSide := core.SideLong
	if result.Signal == core.SignalShort {
		wantSide = core.SideShort
	}
	maxPer := result.EffectiveRisk.MaxPositionPerSymbol
	if pos.Side != wantSide || maxPer <= 1 {
		return
	}
	if pos.Cost >= acc.InitialUsdt*result.EffectivePositionRatio*float64(maxPer) {
		return
	}

	size := acc.Equity(st.lastMark) * result.EffectivePositionRatio
	if size > acc.Usdt {
		size = acc.Usdt
	}
	if size < e.cfg.Execution.MinOrderUsdt || size <= 0 {
		return
	}
	if err := st.mgr.DCA(sym, size, c.Close, t); err != nil {
		e.log.WithError(err).WithField("symbol", sym).Debug("dca skipped")
	}
}

// higherTimeframePass applies the MTF filter: a buy requires the
// higher-timeframe fast EMA above the slow, a short the inverse; missing
// data passes.
func (e *Engine) higherTimeframePass(input Input, sym string, side core.Side, t int64) bool {
	series, ok := input.HigherTF[sym]
	if !ok || len(series) == 0 {
		return true
	}

	// Only candles closed at or before the tick are visible.
	idx := sort.Search(len(series), func(i int) bool { return series[i].OpenTime > t })
	visible := series[:idx]
	if len(visible) < e.cfg.Strategy.MA.Long+1 {
		return true
	}

	closes := visible.Closes()
	fast := indicator.EMA(closes, e.cfg.Strategy.MA.Short)
	slow := indicator.EMA(closes, e.cfg.Strategy.MA.Long)
	n := len(closes)

	if side == core.SideLong {
		return fast[n-1] > slow[n-1]
	}
	return fast[n-1] < slow[n-1]
}

func (st *runState) snapshotEquity(t int64) {
	st.curve = append(st.curve, metrics.EquityPoint{
		Time:   t,
		Equity: st.mgr.Account().Equity(st.lastMark),
	})
}
