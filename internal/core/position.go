package core

// Side is the directional side of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// TradeSide is the action side of a closed trade.
type TradeSide string

const (
	TradeSideBuy   TradeSide = "buy"
	TradeSideSell  TradeSide = "sell"
	TradeSideShort TradeSide = "short"
	TradeSideCover TradeSide = "cover"
)

// ExitReason enumerates every way a position can be closed.
type ExitReason string

const (
	ExitSignal            ExitReason = "signal"
	ExitStopLoss          ExitReason = "stop_loss"
	ExitTakeProfit        ExitReason = "take_profit"
	ExitTrailingStop      ExitReason = "trailing_stop"
	ExitTimeStop          ExitReason = "time_stop"
	ExitROITable          ExitReason = "roi_table"
	ExitStagedTP          ExitReason = "staged_tp"
	ExitEndOfData         ExitReason = "end_of_data"
	ExitForceExit         ExitReason = "force_exit"
	ExitForceExitTimeout  ExitReason = "force_exit_timeout"
	ExitForceExitManual   ExitReason = "force_exit_manual"
)

// IsForceExit reports whether reason is one of the force-exit family that
// always bypasses the confirm-exit veto.
func (r ExitReason) IsForceExit() bool {
	return r == ExitForceExit || r == ExitForceExitTimeout || r == ExitForceExitManual
}

// TrailingStop tracks the high/low-water mark used to ratchet a trailing
// stop price.
type TrailingStop struct {
	Active       bool    `json:"active"`
	HighestPrice float64 `json:"highestPrice"`
	LowestPrice  float64 `json:"lowestPrice,omitempty"`
	StopPrice    float64 `json:"stopPrice"`
}

// Position is an open, live-tracked position in one symbol. An account owns
// at most one Position per symbol.
type Position struct {
	ScenarioID string `json:"scenarioId,omitempty"`
	Symbol     string `json:"symbol"`
	Side       Side   `json:"side"`

	EntryPrice float64 `json:"entryPrice"` // effective, post-slippage
	EntryTime  int64   `json:"entryTime"`
	Quantity   float64 `json:"quantity"`             // always > 0
	Cost       float64 `json:"cost"`                 // USDT debited on entry
	MarginUsdt float64 `json:"marginUsdt,omitempty"` // short only, net of fees

	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`

	TrailingStop          *TrailingStop `json:"trailingStop,omitempty"`
	TrailingStopActivated bool          `json:"trailingStopActivated,omitempty"`

	LastFundingTs    int64   `json:"lastFundingTs,omitempty"`
	TotalFundingPaid float64 `json:"totalFundingPaid,omitempty"`

	ExchangeSlOrderID string  `json:"exchangeSlOrderId,omitempty"`
	ExchangeSlPrice   float64 `json:"exchangeSlPrice,omitempty"`
	ExitTimeoutCount  int     `json:"exitTimeoutCount,omitempty"`

	SignalConditions []string `json:"signalConditions,omitempty"`
	StrategyID       string   `json:"strategyId,omitempty"`
}

// Valid checks the long/short stop/tp ordering invariant.
func (p Position) Valid() bool {
	if p.Quantity <= 0 || p.Quantity*p.EntryPrice <= 0 {
		return false
	}
	switch p.Side {
	case SideLong:
		return p.StopLoss < p.EntryPrice && p.EntryPrice < p.TakeProfit
	case SideShort:
		return p.TakeProfit < p.EntryPrice && p.EntryPrice < p.StopLoss
	default:
		return false
	}
}

// ProfitRatio returns unrealised PnL / cost at the given mark price.
func (p Position) ProfitRatio(mark float64) float64 {
	if p.Cost == 0 {
		return 0
	}
	var pnl float64
	switch p.Side {
	case SideLong:
		pnl = (mark - p.EntryPrice) * p.Quantity
	case SideShort:
		pnl = (p.EntryPrice - mark) * p.Quantity
	}
	return pnl / p.Cost
}

// HoldDurationMs returns how long the position has been open as of nowMs.
func (p Position) HoldDurationMs(nowMs int64) int64 { return nowMs - p.EntryTime }

// Trade is an immutable record of a closed position.
type Trade struct {
	ScenarioID string     `json:"scenarioId,omitempty" gorm:"index"`
	Symbol     string     `json:"symbol" gorm:"index"`
	Side       TradeSide  `json:"side"`
	EntryTime  int64      `json:"entryTime"`
	ExitTime   int64      `json:"exitTime"` // >= EntryTime
	EntryPrice float64    `json:"entryPrice"`
	ExitPrice  float64    `json:"exitPrice"`
	Quantity   float64    `json:"quantity"`
	Cost       float64    `json:"cost"`
	Proceeds   float64    `json:"proceeds"`
	PnL        float64    `json:"pnl"`
	PnLPercent float64    `json:"pnlPercent"` // PnL / Cost
	ExitReason ExitReason `json:"exitReason"`
	StrategyID string     `json:"strategyId,omitempty"`
}
