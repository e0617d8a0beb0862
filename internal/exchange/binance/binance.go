// Package binance implements the engine's Broker and Feeder interfaces
// over the go-binance spot and futures clients. Network failures surface
// as errors for the executor to classify; nothing here panics across the
// boundary.
package binance

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/raykavin/marketcascade/internal/core"
	"github.com/raykavin/marketcascade/internal/logger"
)

// Client wraps the spot client plus an optional futures client for
// position queries.
type Client struct {
	spot    *binance.Client
	futures *futures.Client
	log     logger.Logger

	stepSizes map[string]float64
}

// Option configures the client.
type Option func(*Client)

// WithTestnet points both clients at the Binance testnet.
func WithTestnet() Option {
	return func(*Client) {
		binance.UseTestnet = true
		futures.UseTestnet = true
	}
}

// New builds a client from API credentials.
func New(apiKey, secret string, log logger.Logger, opts ...Option) *Client {
	c := &Client{log: log, stepSizes: make(map[string]float64)}
	for _, opt := range opts {
		opt(c)
	}
	c.spot = binance.NewClient(apiKey, secret)
	c.futures = futures.NewClient(apiKey, secret)
	return c
}

// GetKlines implements core.Feeder: ascending closed candles, the
// still-forming one dropped.
func (c *Client) GetKlines(ctx context.Context, symbol, timeframe string, limit int) (core.Series, error) {
	data, err := c.spot.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, timeframe, err)
	}

	series := make(core.Series, 0, len(data))
	for i, k := range data {
		if i == len(data)-1 {
			break // the last candle is still open
		}
		series = append(series, convertKline(symbol, k))
	}
	return series, nil
}

func convertKline(symbol string, k *binance.Kline) core.Candle {
	candle := core.Candle{
		Symbol:    symbol,
		OpenTime:  k.OpenTime,
		CloseTime: k.CloseTime,
	}
	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)
	return candle
}

// MarketBuy spends quoteAmount USDT at market.
func (c *Client) MarketBuy(ctx context.Context, symbol string, quoteAmount float64) (*core.Order, error) {
	resp, err := c.spot.NewCreateOrderService().
		Symbol(symbol).
		Type(binance.OrderTypeMarket).
		Side(binance.SideTypeBuy).
		QuoteOrderQty(strconv.FormatFloat(quoteAmount, 'f', -1, 64)).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("market buy %s: %w", symbol, err)
	}
	return convertCreateResponse(resp), nil
}

// MarketBuyByQty buys an exact base quantity at market (short covers).
func (c *Client) MarketBuyByQty(ctx context.Context, symbol string, qty float64) (*core.Order, error) {
	resp, err := c.spot.NewCreateOrderService().
		Symbol(symbol).
		Type(binance.OrderTypeMarket).
		Side(binance.SideTypeBuy).
		Quantity(c.formatQty(symbol, qty)).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("market buy qty %s: %w", symbol, err)
	}
	return convertCreateResponse(resp), nil
}

// MarketSell sells an exact base quantity at market.
func (c *Client) MarketSell(ctx context.Context, symbol string, qty float64) (*core.Order, error) {
	resp, err := c.spot.NewCreateOrderService().
		Symbol(symbol).
		Type(binance.OrderTypeMarket).
		Side(binance.SideTypeSell).
		Quantity(c.formatQty(symbol, qty)).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("market sell %s: %w", symbol, err)
	}
	return convertCreateResponse(resp), nil
}

// PlaceStopLossOrder places an exchange-native stop order.
func (c *Client) PlaceStopLossOrder(ctx context.Context, symbol, side string, qty, triggerPrice float64) (*core.Order, error) {
	return c.placeTriggerOrder(ctx, symbol, side, qty, triggerPrice, binance.OrderTypeStopLoss)
}

// PlaceTakeProfitOrder places an exchange-native take-profit order.
func (c *Client) PlaceTakeProfitOrder(ctx context.Context, symbol, side string, qty, triggerPrice float64) (*core.Order, error) {
	return c.placeTriggerOrder(ctx, symbol, side, qty, triggerPrice, binance.OrderTypeTakeProfit)
}

func (c *Client) placeTriggerOrder(ctx context.Context, symbol, side string, qty, triggerPrice float64, orderType binance.OrderType) (*core.Order, error) {
	price := strconv.FormatFloat(triggerPrice, 'f', -1, 64)
	resp, err := c.spot.NewCreateOrderService().
		Symbol(symbol).
		Type(orderType).
		Side(binance.SideType(side)).
		Quantity(c.formatQty(symbol, qty)).
		StopPrice(price).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("place %s %s: %w", orderType, symbol, err)
	}
	return convertCreateResponse(resp), nil
}

// CancelOrder cancels an open order by id.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad order id %q: %w", orderID, err)
	}
	_, err = c.spot.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("cancel order %s/%s: %w", symbol, orderID, err)
	}
	return nil
}

// GetOrder fetches the broker-side order state.
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (*core.Order, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad order id %q: %w", orderID, err)
	}
	resp, err := c.spot.NewGetOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get order %s/%s: %w", symbol, orderID, err)
	}
	return convertOrder(resp), nil
}

// GetUsdtBalance returns the free USDT balance.
func (c *Client) GetUsdtBalance(ctx context.Context) (float64, error) {
	acc, err := c.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("get account: %w", err)
	}
	for _, b := range acc.Balances {
		if b.Asset == "USDT" {
			free, _ := strconv.ParseFloat(b.Free, 64)
			return free, nil
		}
	}
	return 0, nil
}

// GetSymbolInfo returns the trading rules the executor needs; step sizes
// are cached after the first exchange-info call.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*core.SymbolInfo, error) {
	if step, ok := c.stepSizes[symbol]; ok {
		return &core.SymbolInfo{Symbol: symbol, StepSize: step}, nil
	}

	info, err := c.spot.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("exchange info %s: %w", symbol, err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			if f["filterType"] == string(binance.SymbolFilterTypeLotSize) {
				step, _ := strconv.ParseFloat(fmt.Sprint(f["stepSize"]), 64)
				c.stepSizes[symbol] = step
				return &core.SymbolInfo{Symbol: symbol, StepSize: step}, nil
			}
		}
	}
	return nil, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

// GetOpenOrders lists open orders for a symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	resp, err := c.spot.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("open orders %s: %w", symbol, err)
	}
	out := make([]core.Order, 0, len(resp))
	for _, o := range resp {
		out = append(out, *convertOrder(o))
	}
	return out, nil
}

// GetFuturesPositions lists non-flat futures positions.
func (c *Client) GetFuturesPositions(ctx context.Context) ([]core.FuturesPosition, error) {
	risks, err := c.futures.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("futures positions: %w", err)
	}
	var out []core.FuturesPosition
	for _, r := range risks {
		amt, _ := strconv.ParseFloat(r.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		out = append(out, core.FuturesPosition{Symbol: r.Symbol, PositionAmt: amt, EntryPrice: entry})
	}
	return out, nil
}

func (c *Client) formatQty(symbol string, qty float64) string {
	if step, ok := c.stepSizes[symbol]; ok && step > 0 {
		steps := int64(qty / step)
		qty = float64(steps) * step
	}
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

func convertCreateResponse(resp *binance.CreateOrderResponse) *core.Order {
	out := &core.Order{
		ID:        strconv.FormatInt(resp.OrderID, 10),
		Symbol:    resp.Symbol,
		Side:      string(resp.Side),
		Status:    core.OrderStatus(resp.Status),
		CreatedAt: resp.TransactTime,
	}
	out.ExecutedQty, _ = strconv.ParseFloat(resp.ExecutedQuantity, 64)
	for _, f := range resp.Fills {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Quantity, 64)
		commission, _ := strconv.ParseFloat(f.Commission, 64)
		out.Fills = append(out.Fills, core.Fill{Price: price, Qty: qty, Commission: commission})
	}
	return out
}

func convertOrder(o *binance.Order) *core.Order {
	out := &core.Order{
		ID:        strconv.FormatInt(o.OrderID, 10),
		Symbol:    o.Symbol,
		Side:      string(o.Side),
		Status:    core.OrderStatus(o.Status),
		CreatedAt: o.Time,
	}
	out.Price, _ = strconv.ParseFloat(o.Price, 64)
	out.ExecutedQty, _ = strconv.ParseFloat(o.ExecutedQuantity, 64)

	// The order endpoint carries no per-fill detail; synthesize one fill
	// from the cumulative figures so AvgFillPrice keeps working.
	if out.ExecutedQty > 0 {
		quote, _ := strconv.ParseFloat(o.CummulativeQuoteQuantity, 64)
		if quote > 0 {
			out.Fills = []core.Fill{{Price: quote / out.ExecutedQty, Qty: out.ExecutedQty}}
		}
	}
	return out
}
