package account

import (
	"fmt"

	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
)

// ScenarioStore persists account snapshots per scenario. Implementations
// must tolerate a missing snapshot by returning (nil, nil).
type ScenarioStore interface {
	Save(acc *core.Account) error
	Load(scenarioID string) (*core.Account, error)
}

// Manager owns one scenario account and applies all position arithmetic:
// entries, exits, DCA, funding cash flows. The paper engine and the
// backtest engine both drive this type, which is what keeps their numbers
// identical under equal fees, slippage and spread.
type Manager struct {
	acc       *core.Account
	feeRate   float64
	slippage  float64
	spreadBps float64

	store ScenarioStore
	log   logger.Logger
}

// NewManager wraps an account with the given execution cost model. store
// may be nil for backtests that never persist.
func NewManager(acc *core.Account, feeRate, slippage, spreadBps float64, store ScenarioStore, log logger.Logger) *Manager {
	return &Manager{
		acc:       acc,
		feeRate:   feeRate,
		slippage:  slippage,
		spreadBps: spreadBps,
		store:     store,
		log:       log,
	}
}

// Account exposes the underlying account for read access.
func (m *Manager) Account() *core.Account { return m.acc }

// Equity returns account equity at the given marks.
func (m *Manager) Equity(marks map[string]float64) float64 { return m.acc.Equity(marks) }

// Open enters a new position with sizeUsdt of the account's free balance
// at the candle close, applying the fill model and entry fee. Stop and
// take-profit prices are derived from the effective entry so the position
// invariant holds post-slippage.
func (m *Manager) Open(symbol string, side core.Side, sizeUsdt, close float64, nowMs int64, riskCfg core.RiskConfig, strategyID string, conditions []string) (*core.Position, error) {
	if m.acc.HasPosition(symbol) {
		return nil, core.ErrPositionExists
	}
	if sizeUsdt > m.acc.Usdt {
		return nil, fmt.Errorf("%w: need %.2f, have %.2f", core.ErrInsufficientFunds, sizeUsdt, m.acc.Usdt)
	}

	entry := EntryFill(side, close, m.slippage, m.spreadBps)
	fee := sizeUsdt * m.feeRate
	net := sizeUsdt - fee

	pos := &core.Position{
		ScenarioID:       m.acc.ScenarioID,
		Symbol:           symbol,
		Side:             side,
		EntryPrice:       entry,
		EntryTime:        nowMs,
		Quantity:         net / entry,
		Cost:             sizeUsdt,
		LastFundingTs:    nowMs,
		StrategyID:       strategyID,
		SignalConditions: conditions,
	}
	if side == core.SideShort {
		pos.MarginUsdt = net
	}

	if riskCfg.StopLossPercent > 0 {
		if side == core.SideLong {
			pos.StopLoss = entry * (1 - riskCfg.StopLossPercent/100)
		} else {
			pos.StopLoss = entry * (1 + riskCfg.StopLossPercent/100)
		}
	}
	if riskCfg.TakeProfitPercent > 0 {
		if side == core.SideLong {
			pos.TakeProfit = entry * (1 + riskCfg.TakeProfitPercent/100)
		} else {
			pos.TakeProfit = entry * (1 - riskCfg.TakeProfitPercent/100)
		}
	}

	m.acc.Usdt -= sizeUsdt
	if err := m.acc.OpenPosition(pos); err != nil {
		m.acc.Usdt += sizeUsdt
		return nil, err
	}

	m.persist()
	return pos, nil
}

// DCA adds sizeUsdt to an existing position at the candle close, averaging
// the entry price over the combined quantity.
func (m *Manager) DCA(symbol string, sizeUsdt, close float64, nowMs int64) error {
	pos, ok := m.acc.Positions[symbol]
	if !ok {
		return core.ErrPositionNotFound
	}
	if sizeUsdt > m.acc.Usdt {
		return fmt.Errorf("%w: need %.2f, have %.2f", core.ErrInsufficientFunds, sizeUsdt, m.acc.Usdt)
	}

	entry := EntryFill(pos.Side, close, m.slippage, m.spreadBps)
	fee := sizeUsdt * m.feeRate
	addQty := (sizeUsdt - fee) / entry

	total := pos.Quantity + addQty
	pos.EntryPrice = (pos.EntryPrice*pos.Quantity + entry*addQty) / total
	pos.Quantity = total
	pos.Cost += sizeUsdt
	if pos.Side == core.SideShort {
		pos.MarginUsdt += sizeUsdt - fee
	}

	m.acc.Usdt -= sizeUsdt
	m.acc.UpdatedAt = core.TimeFromMillis(nowMs)
	m.persist()
	return nil
}

// CloseAt closes the position at an already-effective exit price (used
// when the trigger price is known exactly, e.g. a stop fill), applying the
// exit fee and recording the trade.
func (m *Manager) CloseAt(symbol string, exitPrice float64, reason core.ExitReason, nowMs int64) (core.Trade, error) {
	pos, ok := m.acc.Positions[symbol]
	if !ok {
		return core.Trade{}, core.ErrPositionNotFound
	}
	return m.settle(pos, exitPrice, reason, nowMs)
}

// Close closes the position at the candle close, applying the exit fill
// model first.
func (m *Manager) Close(symbol string, close float64, reason core.ExitReason, nowMs int64) (core.Trade, error) {
	pos, ok := m.acc.Positions[symbol]
	if !ok {
		return core.Trade{}, core.ErrPositionNotFound
	}
	exit := ExitFill(pos.Side, close, m.slippage, m.spreadBps)
	return m.settle(pos, exit, reason, nowMs)
}

func (m *Manager) settle(pos *core.Position, exitPrice float64, reason core.ExitReason, nowMs int64) (core.Trade, error) {
	var proceeds, pnl float64
	switch pos.Side {
	case core.SideLong:
		gross := pos.Quantity * exitPrice
		proceeds = gross - gross*m.feeRate
		pnl = proceeds - pos.Cost
	case core.SideShort:
		buyback := pos.Quantity * exitPrice
		fee := buyback * m.feeRate
		proceeds = pos.MarginUsdt + pos.Quantity*(pos.EntryPrice-exitPrice) - fee
		pnl = proceeds - pos.Cost
	}
	if proceeds < 0 {
		proceeds = 0
	}

	side := core.TradeSideSell
	if pos.Side == core.SideShort {
		side = core.TradeSideCover
	}

	trade := core.Trade{
		ScenarioID: pos.ScenarioID,
		Symbol:     pos.Symbol,
		Side:       side,
		EntryTime:  pos.EntryTime,
		ExitTime:   nowMs,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Quantity:   pos.Quantity,
		Cost:       pos.Cost,
		Proceeds:   proceeds,
		PnL:        pnl,
		ExitReason: reason,
		StrategyID: pos.StrategyID,
	}
	if pos.Cost > 0 {
		trade.PnLPercent = pnl / pos.Cost
	}

	m.acc.Usdt += proceeds
	if err := m.acc.ClosePosition(pos.Symbol, trade); err != nil {
		m.acc.Usdt -= proceeds
		return core.Trade{}, err
	}
	if pnl < 0 {
		m.acc.RecordDailyLoss(nowMs, -pnl)
	}

	m.persist()
	return trade, nil
}

// RemovePosition closes a position through CloseAt with the same settlement
// (proceeds, fees, daily loss, trade record). This is the force-exit path:
// the position must go even when the closing order failed, so the exit
// price may be notional.
func (m *Manager) RemovePosition(symbol string, exitPrice float64, reason core.ExitReason, nowMs int64) (core.Trade, error) {
	return m.CloseAt(symbol, exitPrice, reason, nowMs)
}

// ApplyFunding credits or debits a funding cash flow for symbol and tracks
// the per-symbol running total.
func (m *Manager) ApplyFunding(symbol string, cashFlow float64) {
	m.acc.Usdt += cashFlow
	if m.acc.Usdt < 0 {
		m.acc.Usdt = 0
	}
	m.acc.FundingPaidBySymbol[symbol] += -cashFlow
	if pos, ok := m.acc.Positions[symbol]; ok {
		pos.TotalFundingPaid += -cashFlow
	}
}

func (m *Manager) persist() {
	if m.store == nil {
		return
	}
	if err := m.store.Save(m.acc); err != nil {
		m.log.WithError(err).Warn("failed to persist account snapshot")
	}
}
