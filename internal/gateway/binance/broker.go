package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"talon/internal/gateway/exchange"
	"talon/internal/logger"
	"talon/internal/pkg/circuit"
	symbolpkg "talon/internal/pkg/symbol"
)

// 交易规则缓存的刷新周期。LOT_SIZE/PRICE_FILTER 很少变。
const filterCacheTTL = time.Hour

// ErrCircuitOpen 表示交易所接口处于熔断状态，调用方应跳过本轮。
var ErrCircuitOpen = errors.New("binance API circuit open")

type symbolFilters struct {
	stepSize decimal.Decimal
	tickSize decimal.Decimal
}

// Broker 实现 exchange.Broker，所有请求经过同一个熔断器。
// 下单数量与触发价按交易所的 LOT_SIZE/PRICE_FILTER 规则向下取整。
type Broker struct {
	cfg     Config
	client  *futures.Client
	breaker *circuit.Breaker

	filtersMu sync.Mutex
	filters   map[string]symbolFilters
	filtersAt time.Time
}

func NewBroker(cfg Config) (*Broker, error) {
	final := cfg.withDefaults()
	if strings.TrimSpace(final.APIKey) == "" || strings.TrimSpace(final.APISecret) == "" {
		return nil, errors.New("binance API key and secret are required")
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient, err := newHTTPClient(final)
	if err != nil {
		return nil, err
	}
	client.HTTPClient = httpClient

	b := &Broker{
		cfg:     final,
		client:  client,
		breaker: circuit.New("binance", final.BreakerThreshold, final.BreakerCooldown),
		filters: make(map[string]symbolFilters),
	}
	b.breaker.OnStateChange(func(name string, from, to circuit.State) {
		logger.Warnf("%s breaker %s -> %s", name, from, to)
	})
	return b, nil
}

// Breaker 暴露熔断器快照给状态接口。
func (b *Broker) Breaker() *circuit.Breaker { return b.breaker }

func (b *Broker) OpenPositions(ctx context.Context) ([]exchange.Position, error) {
	if !b.breaker.Allow() {
		return nil, ErrCircuitOpen
	}
	risks, err := b.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return nil, err
	}
	b.breaker.RecordSuccess()

	out := make([]exchange.Position, 0, len(risks))
	for _, r := range risks {
		if r == nil {
			continue
		}
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := "LONG"
		qty := amt
		if amt < 0 {
			side = "SHORT"
			qty = -amt
		}
		out = append(out, exchange.Position{
			Symbol:        r.Symbol,
			Side:          side,
			Quantity:      qty,
			EntryPrice:    parseFloat(r.EntryPrice),
			MarkPrice:     parseFloat(r.MarkPrice),
			UnrealizedPnL: parseFloat(r.UnRealizedProfit),
		})
	}
	return out, nil
}

func (b *Broker) AccountBalance(ctx context.Context) (exchange.Balance, error) {
	if !b.breaker.Allow() {
		return exchange.Balance{}, ErrCircuitOpen
	}
	balances, err := b.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return exchange.Balance{}, err
	}
	b.breaker.RecordSuccess()

	for _, bal := range balances {
		if bal == nil || bal.Asset != symbolpkg.DefaultQuoteCurrency {
			continue
		}
		return exchange.Balance{
			Asset:         bal.Asset,
			Total:         parseFloat(bal.Balance),
			Available:     parseFloat(bal.AvailableBalance),
			UnrealizedPnL: parseFloat(bal.CrossUnPnl),
			UpdatedAt:     time.Now(),
		}, nil
	}
	return exchange.Balance{}, fmt.Errorf("no %s balance in futures account", symbolpkg.DefaultQuoteCurrency)
}

func (b *Broker) PlaceMarketOrder(ctx context.Context, req exchange.MarketOrderRequest) (exchange.Order, error) {
	if !b.breaker.Allow() {
		return exchange.Order{}, ErrCircuitOpen
	}
	sym := symbolpkg.ToExchange(req.Symbol)
	qty, err := b.roundQuantity(ctx, sym, req.Quantity)
	if err != nil {
		return exchange.Order{}, err
	}

	svc := b.client.NewCreateOrderService().
		Symbol(sym).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return exchange.Order{}, err
	}
	b.breaker.RecordSuccess()

	return exchange.Order{
		ID:         res.OrderID,
		Symbol:     res.Symbol,
		Side:       string(res.Side),
		Type:       string(res.Type),
		Quantity:   parseFloat(res.ExecutedQuantity),
		AvgPrice:   parseFloat(res.AvgPrice),
		Status:     string(res.Status),
		ReduceOnly: req.ReduceOnly,
		CreatedAt:  time.Now(),
	}, nil
}

func (b *Broker) PlaceStopOrder(ctx context.Context, req exchange.StopOrderRequest) (exchange.Order, error) {
	if !b.breaker.Allow() {
		return exchange.Order{}, ErrCircuitOpen
	}
	sym := symbolpkg.ToExchange(req.Symbol)
	qty, err := b.roundQuantity(ctx, sym, req.Quantity)
	if err != nil {
		return exchange.Order{}, err
	}
	stopPrice, err := b.roundPrice(ctx, sym, req.StopPrice)
	if err != nil {
		return exchange.Order{}, err
	}

	svc := b.client.NewCreateOrderService().
		Symbol(sym).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderTypeStopMarket).
		Quantity(qty).
		StopPrice(stopPrice)
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return exchange.Order{}, err
	}
	b.breaker.RecordSuccess()

	return exchange.Order{
		ID:         res.OrderID,
		Symbol:     res.Symbol,
		Side:       string(res.Side),
		Type:       string(res.Type),
		Quantity:   parseFloat(res.OrigQuantity),
		StopPrice:  parseFloat(res.StopPrice),
		Status:     string(res.Status),
		ReduceOnly: req.ReduceOnly,
		CreatedAt:  time.Now(),
	}, nil
}

func (b *Broker) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	if !b.breaker.Allow() {
		return ErrCircuitOpen
	}
	_, err := b.client.NewCancelOrderService().
		Symbol(symbolpkg.ToExchange(symbol)).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		b.breaker.RecordFailure()
		return err
	}
	b.breaker.RecordSuccess()
	return nil
}

func (b *Broker) Close() error { return nil }

// roundQuantity 把数量按 LOT_SIZE 步长向下取整。向下保证不超过
// 风控批准的名义价值。
func (b *Broker) roundQuantity(ctx context.Context, sym string, quantity float64) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("quantity must be positive, got %v", quantity)
	}
	filters, err := b.symbolFilters(ctx, sym)
	if err != nil {
		return "", err
	}
	q := decimal.NewFromFloat(quantity)
	if filters.stepSize.IsPositive() {
		q = q.Div(filters.stepSize).Floor().Mul(filters.stepSize)
	}
	if q.IsZero() {
		return "", fmt.Errorf("quantity %v below LOT_SIZE step for %s", quantity, sym)
	}
	return q.String(), nil
}

// roundPrice 把触发价按 PRICE_FILTER 步长取整。
func (b *Broker) roundPrice(ctx context.Context, sym string, price float64) (string, error) {
	if price <= 0 {
		return "", fmt.Errorf("price must be positive, got %v", price)
	}
	filters, err := b.symbolFilters(ctx, sym)
	if err != nil {
		return "", err
	}
	p := decimal.NewFromFloat(price)
	if filters.tickSize.IsPositive() {
		p = p.Div(filters.tickSize).Floor().Mul(filters.tickSize)
	}
	return p.String(), nil
}

func (b *Broker) symbolFilters(ctx context.Context, sym string) (symbolFilters, error) {
	b.filtersMu.Lock()
	defer b.filtersMu.Unlock()

	if time.Since(b.filtersAt) < filterCacheTTL {
		if f, ok := b.filters[sym]; ok {
			return f, nil
		}
	}
	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		// 缓存里有旧值就先用旧值，规则极少变化。
		if f, ok := b.filters[sym]; ok {
			logger.Warnf("refreshing exchange info failed, using cached filters for %s: %v", sym, err)
			return f, nil
		}
		return symbolFilters{}, err
	}
	b.filters = make(map[string]symbolFilters, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		var f symbolFilters
		if lot := s.LotSizeFilter(); lot != nil {
			f.stepSize, _ = decimal.NewFromString(lot.StepSize)
		}
		if pf := s.PriceFilter(); pf != nil {
			f.tickSize, _ = decimal.NewFromString(pf.TickSize)
		}
		b.filters[s.Symbol] = f
	}
	b.filtersAt = time.Now()

	f, ok := b.filters[sym]
	if !ok {
		return symbolFilters{}, fmt.Errorf("symbol %s not listed on futures exchange", sym)
	}
	return f, nil
}
