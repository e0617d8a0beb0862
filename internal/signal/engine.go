// Package signal orchestrates one decision tick: indicators, strategy
// evaluation, regime gating, risk-reward, correlation and protection
// filters, producing a single EngineResult per symbol per candle.
package signal

import (
	"fmt"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/indicator"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/regime"
	"github.com/raykavin/marketcascade/internal/risk"
	"github.com/raykavin/marketcascade/internal/strategy"
)

// regimeRejectConfidence is the classifier confidence at which a
// breakout-watch filter hard-rejects entries.
const regimeRejectConfidence = 60

// Engine runs the signal pipeline. It is stateless across ticks: the same
// inputs always produce the same result, with recent trades and the state
// store threaded in explicitly.
type Engine struct {
	registry *strategy.Registry
	log      logger.Logger
}

// New builds an engine and validates the configured strategy id up front;
// an unknown id is a startup-time configuration error.
func New(registry *strategy.Registry, cfg *core.Config, log logger.Logger) (*Engine, error) {
	id := cfg.StrategyID
	if id == "" {
		id = "default"
	}
	if _, err := registry.Get(id); err != nil {
		return nil, fmt.Errorf("%w: strategy %q not registered", core.ErrInvalidConfig, id)
	}
	return &Engine{registry: registry, log: log}, nil
}

// Request carries the per-tick inputs of ProcessSignal beyond the candle
// window itself.
type Request struct {
	Symbol   string
	Klines   core.Series
	Config   *core.Config
	External core.ExternalContext

	// PositionSide is the side of the open position for Symbol, empty when
	// flat. It drives position-aware signal evaluation.
	PositionSide core.Side

	// HeldKlines maps each held symbol to its candle window, for the
	// correlation gate. Nil disables the gate.
	HeldKlines map[string]core.Series

	// RecentTrades feeds the protection manager. Nil skips protections.
	RecentTrades []core.TradeRecord

	NowMs    int64
	CandleMs int64

	State strategy.StateStore
}

// ProcessSignal runs the pipeline stages in order and returns the
// decision. Exits bypass the entry filter chain entirely.
func (e *Engine) ProcessSignal(req Request) core.EngineResult {
	cfg := req.Config

	ind := indicator.Snapshot(req.Klines, cfg.Strategy)
	if ind == nil {
		return core.Rejection(nil, "insufficient data")
	}

	ind.CVD += req.External.CVD
	ind.FundingRate = req.External.FundingRate
	ind.BtcDominance = req.External.BtcDominance
	ind.BtcDomChange = req.External.BtcDomChange

	id := cfg.StrategyID
	if id == "" {
		id = "default"
	}
	strat, err := e.registry.Get(id)
	if err != nil {
		return core.Rejection(ind, fmt.Sprintf("unknown strategy %q", id))
	}

	ctx := &strategy.Context{
		Symbol:       req.Symbol,
		Klines:       req.Klines,
		Indicators:   ind,
		Config:       cfg,
		PositionSide: req.PositionSide,
		State:        req.State,
		Log:          e.log,
	}

	raw := strat.PopulateSignal(ctx)

	result := core.EngineResult{
		Indicators:             ind,
		Signal:                 raw,
		EffectiveRisk:          cfg.Risk,
		EffectivePositionRatio: cfg.Risk.PositionRatio,
	}

	// Exits and non-signals skip the entry gates.
	if !raw.IsEntry() {
		return result
	}

	analysis := regime.Classify(req.Klines)
	result.Regime = &analysis

	if analysis.SignalFilter == core.FilterBreakout && analysis.Confidence >= regimeRejectConfidence {
		result.Rejected = true
		result.RejectionReason = fmt.Sprintf("regime filter: %s (confidence %.0f) admits exits only",
			analysis.Regime, analysis.Confidence)
		return result
	}
	if analysis.SignalFilter == core.FilterReducedSize {
		result.EffectivePositionRatio *= 0.5
	}
	if override, ok := cfg.RegimeOverrides[string(analysis.SignalFilter)]; ok {
		result.EffectiveRisk = override.Apply(result.EffectiveRisk)
	}

	if result.EffectiveRisk.MinRR > 0 {
		rr := risk.CheckRiskReward(req.Klines, raw, ind.Price, result.EffectiveRisk.MinRR, risk.DefaultRRLookback)
		if !rr.Passed {
			result.Rejected = true
			result.RejectionReason = fmt.Sprintf("risk-reward %.2f below minimum %.2f", rr.Ratio, result.EffectiveRisk.MinRR)
			return result
		}
	}

	if cfg.Risk.CorrelationFilter.Enabled && len(req.HeldKlines) > 0 {
		mult, offender := risk.BinaryGate(req.Klines, req.HeldKlines, cfg.Risk.CorrelationFilter.Threshold)
		if offender != "" {
			e.log.WithField("symbol", req.Symbol).WithField("correlated_with", offender).
				Debug("correlation gate halving position size")
		}
		result.EffectivePositionRatio *= mult
	}

	if cfg.Protections.Any() && req.RecentTrades != nil {
		verdict := risk.CheckProtections(cfg.Protections, req.Symbol, req.RecentTrades, req.NowMs, req.CandleMs)
		if !verdict.Allowed {
			result.Rejected = true
			result.RejectionReason = fmt.Sprintf("%s: %s", verdict.Rule, verdict.Reason)
			return result
		}
	}

	return result
}
