package monitor

import (
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/live"
	"github.com/raykavin/marketcascade/internal/paper"
)

// PaperDriver adapts the paper engine to the Driver interface.
type PaperDriver struct {
	Engine *paper.Engine
}

func (d *PaperDriver) Account() *core.Account { return d.Engine.Account() }

func (d *PaperDriver) HandleCandle(symbol string, window core.Series, c core.Candle, nowMs int64) {
	d.Engine.OnCandle(symbol, window, c, nowMs)
}

func (d *PaperDriver) Enter(symbol string, side core.Side, sizeUsdt, lastClose float64, nowMs int64, riskCfg core.RiskConfig, strategyID string, conditions []string) error {
	_, err := d.Engine.Enter(symbol, side, sizeUsdt, lastClose, nowMs, riskCfg, strategyID, conditions)
	return err
}

func (d *PaperDriver) ExitBySignal(symbol string, close float64, nowMs int64) {
	d.Engine.ExitBySignal(symbol, close, nowMs, nil)
}

// Housekeep is a no-op: the paper engine has no broker orders to sweep.
func (d *PaperDriver) Housekeep() {}

// LiveDriver adapts the live executor to the Driver interface.
type LiveDriver struct {
	Executor *live.Executor
}

func (d *LiveDriver) Account() *core.Account { return d.Executor.Account() }

func (d *LiveDriver) HandleCandle(symbol string, window core.Series, c core.Candle, nowMs int64) {
	d.Executor.OnCandle(symbol, window, c, nowMs)
}

func (d *LiveDriver) Enter(symbol string, side core.Side, sizeUsdt, lastClose float64, _ int64, riskCfg core.RiskConfig, strategyID string, conditions []string) error {
	_, err := d.Executor.Enter(symbol, side, sizeUsdt, lastClose, riskCfg, strategyID, conditions)
	return err
}

func (d *LiveDriver) ExitBySignal(symbol string, _ float64, _ int64) {
	d.Executor.ExitBySignal(symbol, core.ExitSignal)
}

// Housekeep sweeps order timeouts and synchronizes native stops.
func (d *LiveDriver) Housekeep() {
	d.Executor.CheckOrderTimeouts()
	d.Executor.SyncExchangeStopLosses()
}
