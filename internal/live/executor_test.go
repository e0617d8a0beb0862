package live

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/raykavin/marketcascade/internal/account"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
	"github.com/raykavin/marketcascade/internal/strategy"
	"github.com/stretchr/testify/require"
)

// fakeBroker scripts broker behaviour per test.
type fakeBroker struct {
	nextID      int
	fillPrice   float64
	failMarket  bool
	deferFills  bool
	orders      map[string]*core.Order
	cancelled   []string
	marketCalls int
}

func newFakeBroker(fillPrice float64) *fakeBroker {
	return &fakeBroker{fillPrice: fillPrice, orders: make(map[string]*core.Order)}
}

func (b *fakeBroker) newOrder(symbol, side string, qty float64) (*core.Order, error) {
	b.marketCalls++
	if b.failMarket {
		return nil, errors.New("exchange unavailable")
	}
	b.nextID++
	order := &core.Order{
		ID:     fmt.Sprintf("%d", b.nextID),
		Symbol: symbol,
		Side:   side,
		Status: core.OrderStatusFilled,
		Fills:  []core.Fill{{Price: b.fillPrice, Qty: qty}},
	}
	if b.deferFills {
		order.Status = core.OrderStatusNew
		order.Fills = nil
	}
	b.orders[order.ID] = order
	return order, nil
}

func (b *fakeBroker) MarketBuy(_ context.Context, symbol string, quote float64) (*core.Order, error) {
	return b.newOrder(symbol, "BUY", quote/b.fillPrice)
}
func (b *fakeBroker) MarketBuyByQty(_ context.Context, symbol string, qty float64) (*core.Order, error) {
	return b.newOrder(symbol, "BUY", qty)
}
func (b *fakeBroker) MarketSell(_ context.Context, symbol string, qty float64) (*core.Order, error) {
	return b.newOrder(symbol, "SELL", qty)
}
func (b *fakeBroker) PlaceStopLossOrder(_ context.Context, symbol, side string, qty, trigger float64) (*core.Order, error) {
	b.nextID++
	order := &core.Order{
		ID: fmt.Sprintf("%d", b.nextID), Symbol: symbol, Side: side,
		Status: core.OrderStatusNew, Price: trigger,
	}
	b.orders[order.ID] = order
	return order, nil
}
func (b *fakeBroker) PlaceTakeProfitOrder(ctx context.Context, symbol, side string, qty, trigger float64) (*core.Order, error) {
	return b.PlaceStopLossOrder(ctx, symbol, side, qty, trigger)
}
func (b *fakeBroker) CancelOrder(_ context.Context, _, orderID string) error {
	b.cancelled = append(b.cancelled, orderID)
	if order, ok := b.orders[orderID]; ok {
		order.Status = core.OrderStatusCanceled
	}
	return nil
}
func (b *fakeBroker) GetOrder(_ context.Context, _, orderID string) (*core.Order, error) {
	order, ok := b.orders[orderID]
	if !ok {
		return nil, errors.New("order not found")
	}
	return order, nil
}
func (b *fakeBroker) GetUsdtBalance(context.Context) (float64, error) { return 10_000, nil }
func (b *fakeBroker) GetSymbolInfo(_ context.Context, symbol string) (*core.SymbolInfo, error) {
	return &core.SymbolInfo{Symbol: symbol, StepSize: 0.001}, nil
}
func (b *fakeBroker) GetOpenOrders(context.Context, string) ([]core.Order, error) { return nil, nil }
func (b *fakeBroker) GetFuturesPositions(context.Context) ([]core.FuturesPosition, error) {
	return nil, nil
}

var testRisk = core.RiskConfig{StopLossPercent: 5, TakeProfitPercent: 10}

func newTestExecutor(broker core.Broker) (*Executor, *account.Manager) {
	acc := core.NewAccount("live-test", 10_000)
	mgr := account.NewManager(acc, 0, 0, 0, nil, logger.Nop())
	cfg := &core.Config{
		Risk:      testRisk,
		Execution: core.ExecutionConfig{LimitOrderTimeoutSecs: 30, MaxExitPriceDeviation: 0.15},
	}
	e := NewExecutor(broker, mgr, cfg, strategy.NewDefault(), nil, logger.Nop())
	e.nowFn = func() int64 { return 1_000_000 }
	return e, mgr
}

func TestEnterPlacesNativeStop(t *testing.T) {
	broker := newFakeBroker(100)
	e, _ := newTestExecutor(broker)

	pos, err := e.Enter("BTCUSDT", core.SideLong, 1000, 100, testRisk, "default", nil)
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.NotEmpty(t, pos.ExchangeSlOrderID)
	require.InDelta(t, 95.0, pos.ExchangeSlPrice, 1e-9)
	require.Equal(t, "SELL", broker.orders[pos.ExchangeSlOrderID].Side)
}

func TestForceExitRemovesPosition(t *testing.T) {
	t.Run("with a working market order", func(t *testing.T) {
		broker := newFakeBroker(100)
		e, mgr := newTestExecutor(broker)
		_, err := e.Enter("BTCUSDT", core.SideLong, 1000, 100, testRisk, "default", nil)
		require.NoError(t, err)

		e.ForceExit("BTCUSDT", core.ExitForceExitManual)
		require.False(t, mgr.Account().HasPosition("BTCUSDT"))
		require.Len(t, mgr.Account().Trades, 1)
		require.Equal(t, core.ExitForceExitManual, mgr.Account().Trades[0].ExitReason)
	})

	t.Run("position is removed even when the market order fails", func(t *testing.T) {
		broker := newFakeBroker(100)
		e, mgr := newTestExecutor(broker)
		_, err := e.Enter("BTCUSDT", core.SideLong, 1000, 100, testRisk, "default", nil)
		require.NoError(t, err)

		broker.failMarket = true
		e.ForceExit("BTCUSDT", core.ExitForceExit)

		require.False(t, mgr.Account().HasPosition("BTCUSDT"))
		require.Len(t, mgr.Account().Trades, 1)
		require.Equal(t, core.ExitForceExit, mgr.Account().Trades[0].ExitReason)
	})
}

func TestExitTimeoutEscalation(t *testing.T) {
	broker := newFakeBroker(100)
	e, mgr := newTestExecutor(broker)
	_, err := e.Enter("BTCUSDT", core.SideLong, 1000, 100, testRisk, "default", nil)
	require.NoError(t, err)

	pos := mgr.Account().Positions["BTCUSDT"]
	pos.ExitTimeoutCount = 2 // two prior timeouts already recorded

	// The exit order hangs at the broker.
	broker.deferFills = true
	e.ExitBySignal("BTCUSDT", core.ExitSignal)
	require.True(t, mgr.Account().HasPosition("BTCUSDT"))

	// Sweep after the timeout: the counter reaches 3 and the force exit
	// fires exactly once.
	broker.deferFills = false
	marketCallsBefore := broker.marketCalls
	e.nowFn = func() int64 { return 1_000_000 + 31_000 }
	e.CheckOrderTimeouts()

	require.False(t, mgr.Account().HasPosition("BTCUSDT"))
	require.Len(t, mgr.Account().Trades, 1)
	require.Equal(t, core.ExitForceExitTimeout, mgr.Account().Trades[0].ExitReason)
	require.Equal(t, marketCallsBefore+1, broker.marketCalls)

	// A second sweep is a no-op.
	e.CheckOrderTimeouts()
	require.Len(t, mgr.Account().Trades, 1)
}

func TestEntryTimeoutDiscards(t *testing.T) {
	broker := newFakeBroker(100)
	e, mgr := newTestExecutor(broker)

	broker.deferFills = true
	pos, err := e.Enter("BTCUSDT", core.SideLong, 1000, 100, testRisk, "default", nil)
	require.NoError(t, err)
	require.Nil(t, pos)
	require.False(t, mgr.Account().HasPosition("BTCUSDT"))

	e.nowFn = func() int64 { return 1_000_000 + 31_000 }
	e.CheckOrderTimeouts()

	require.False(t, mgr.Account().HasPosition("BTCUSDT"))
	require.NotEmpty(t, broker.cancelled)
	require.Empty(t, e.pending)
}

func TestSyncExchangeStopLosses(t *testing.T) {
	t.Run("filled stop closes the position at the fill price", func(t *testing.T) {
		broker := newFakeBroker(100)
		e, mgr := newTestExecutor(broker)
		pos, err := e.Enter("BTCUSDT", core.SideLong, 1000, 100, testRisk, "default", nil)
		require.NoError(t, err)

		stopOrder := broker.orders[pos.ExchangeSlOrderID]
		stopOrder.Status = core.OrderStatusFilled
		stopOrder.Fills = []core.Fill{{Price: 94.8, Qty: pos.Quantity}}

		e.SyncExchangeStopLosses()

		require.False(t, mgr.Account().HasPosition("BTCUSDT"))
		require.Len(t, mgr.Account().Trades, 1)
		trade := mgr.Account().Trades[0]
		require.Equal(t, core.ExitStopLoss, trade.ExitReason)
		require.InDelta(t, 94.8, trade.ExitPrice, 1e-9)
	})

	t.Run("cancelled stop keeps the position and re-protects next sync", func(t *testing.T) {
		broker := newFakeBroker(100)
		e, mgr := newTestExecutor(broker)
		pos, err := e.Enter("BTCUSDT", core.SideLong, 1000, 100, testRisk, "default", nil)
		require.NoError(t, err)

		broker.orders[pos.ExchangeSlOrderID].Status = core.OrderStatusCanceled
		e.SyncExchangeStopLosses()

		require.True(t, mgr.Account().HasPosition("BTCUSDT"))
		require.Empty(t, pos.ExchangeSlOrderID)

		// The next sync replaces the missing protection.
		e.SyncExchangeStopLosses()
		require.NotEmpty(t, pos.ExchangeSlOrderID)
	})
}
