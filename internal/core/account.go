package core

import "time"

// DailyLoss tracks the realised loss accrued on a given UTC calendar date,
// reset whenever Date changes.
type DailyLoss struct {
	Date string  `json:"date"` // YYYY-MM-DD
	Loss float64 `json:"loss"` // >= 0
}

// Account is the broker-agnostic, single shared resource mutated by the
// backtest, paper and live loops. It owns its positions and its append-only
// trade list exclusively.
type Account struct {
	ScenarioID string `json:"scenarioId"`

	InitialUsdt float64 `json:"initialUsdt"`
	Usdt        float64 `json:"usdt"` // free balance, invariant: >= 0

	Positions map[string]*Position `json:"positions"` // unique by symbol
	Trades    []Trade              `json:"trades"`    // append-only

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	DailyLoss DailyLoss `json:"dailyLoss"`

	FundingPaidBySymbol map[string]float64 `json:"fundingPaidBySymbol"` // symbol -> signed USDT
}

// NewAccount constructs an empty account with the given starting balance.
func NewAccount(scenarioID string, initialUsdt float64) *Account {
	now := time.Now().UTC()
	return &Account{
		ScenarioID:          scenarioID,
		InitialUsdt:         initialUsdt,
		Usdt:                initialUsdt,
		Positions:           make(map[string]*Position),
		FundingPaidBySymbol: make(map[string]float64),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Equity returns Usdt plus the mark-to-market value of every open position,
// using the supplied last-price map (symbol -> mark price).
func (a *Account) Equity(marks map[string]float64) float64 {
	equity := a.Usdt
	for sym, pos := range a.Positions {
		mark, ok := marks[sym]
		if !ok {
			mark = pos.EntryPrice
		}
		equity += pos.Cost + pos.ProfitRatio(mark)*pos.Cost
	}
	return equity
}

// HasPosition reports whether the account currently holds a position in
// symbol.
func (a *Account) HasPosition(symbol string) bool {
	_, ok := a.Positions[symbol]
	return ok
}

// OpenPosition records a new position for symbol. Returns ErrPositionExists
// if one is already open (at most one open position per
// symbol).
func (a *Account) OpenPosition(pos *Position) error {
	if a.HasPosition(pos.Symbol) {
		return ErrPositionExists
	}
	a.Positions[pos.Symbol] = pos
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ClosePosition removes the position for symbol and appends the closing
// trade. Returns ErrPositionNotFound if none is open. This is the only
// ownership transfer point: once closed, a position never reappears.
func (a *Account) ClosePosition(symbol string, trade Trade) error {
	if !a.HasPosition(symbol) {
		return ErrPositionNotFound
	}
	delete(a.Positions, symbol)
	a.Trades = append(a.Trades, trade)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordDailyLoss accrues a realised loss against today's (UTC) counter,
// resetting the counter when the date rolls over.
func (a *Account) RecordDailyLoss(nowMs int64, loss float64) {
	if loss <= 0 {
		return
	}
	date := TimeFromMillis(nowMs).Format("2006-01-02")
	if a.DailyLoss.Date != date {
		a.DailyLoss = DailyLoss{Date: date}
	}
	a.DailyLoss.Loss += loss
}

// TradeRecord is the reduced view of a closed trade consumed by the
// protection manager.
type TradeRecord struct {
	Symbol      string
	ClosedAt    int64
	PnlRatio    float64
	WasStopLoss bool
}

// RecentTradeRecords converts the account's closed trades into
// protection-manager records, most recent last.
func (a *Account) RecentTradeRecords() []TradeRecord {
	out := make([]TradeRecord, 0, len(a.Trades))
	for _, t := range a.Trades {
		out = append(out, TradeRecord{
			Symbol:      t.Symbol,
			ClosedAt:    t.ExitTime,
			PnlRatio:    t.PnLPercent,
			WasStopLoss: t.ExitReason == ExitStopLoss,
		})
	}
	return out
}
