// Package account implements the broker-agnostic position/trade ledger
// shared by the backtest, paper and live engines, including the single
// fill-price model both simulated engines use so their arithmetic can
// never diverge.
package account

import "github.com/raykavin/marketcascade/internal/core"

// FillSide distinguishes the aggressing direction of a simulated fill.
type FillSide int

const (
	// FillBuy is a long entry or a short cover: price moves against the
	// buyer.
	FillBuy FillSide = iota
	// FillSell is a long exit or a short entry: price moves against the
	// seller.
	FillSell
)

// FillPrice applies slippage plus half the quoted spread to a close price.
// This is the only slippage model in the engine; no additive USD term is
// ever applied on top.
func FillPrice(side FillSide, close, slippage, spreadBps float64) float64 {
	adj := slippage + spreadBps/20000
	if side == FillBuy {
		return close * (1 + adj)
	}
	return close * (1 - adj)
}

// EntryFill returns the effective entry price for a new position.
func EntryFill(side core.Side, close, slippage, spreadBps float64) float64 {
	if side == core.SideLong {
		return FillPrice(FillBuy, close, slippage, spreadBps)
	}
	return FillPrice(FillSell, close, slippage, spreadBps)
}

// ExitFill returns the effective exit price when closing a position.
func ExitFill(side core.Side, close, slippage, spreadBps float64) float64 {
	if side == core.SideLong {
		return FillPrice(FillSell, close, slippage, spreadBps)
	}
	return FillPrice(FillBuy, close, slippage, spreadBps)
}
