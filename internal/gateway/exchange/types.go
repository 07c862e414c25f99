// Package exchange defines a common abstraction over futures exchange
// backends so the trading engine never talks to a concrete SDK directly.
package exchange

import (
	"context"
	"time"
)

// Position is a live position snapshot reported by the exchange.
// This report is the sole source of truth for position existence;
// locally persisted trade records are never authoritative over it.
type Position struct {
	Symbol        string    // exchange notation, e.g. "ETHUSDT"
	Side          string    // "LONG" or "SHORT"
	Quantity      float64   // contract quantity, always positive
	EntryPrice    float64   // average entry price
	MarkPrice     float64   // current mark price
	UnrealizedPnL float64   // in quote currency
	Leverage      float64
	OpenedAt      time.Time // zero if the exchange does not report it
}

// Notional returns the quote-currency value of the position.
func (p Position) Notional() float64 {
	price := p.MarkPrice
	if price == 0 {
		price = p.EntryPrice
	}
	return p.Quantity * price
}

// Balance is the futures account balance for the stake currency.
type Balance struct {
	Asset         string
	Total         float64
	Available     float64
	UnrealizedPnL float64
	UpdatedAt     time.Time
}

// Order is the exchange's view of a submitted order.
type Order struct {
	ID         int64
	Symbol     string
	Side       string // "BUY" or "SELL"
	Type       string // "MARKET" or "STOP_MARKET"
	Quantity   float64
	AvgPrice   float64 // fill price for market orders, 0 if unfilled
	StopPrice  float64
	Status     string
	ReduceOnly bool
	CreatedAt  time.Time
}

// MarketOrderRequest opens or closes a position at market price.
type MarketOrderRequest struct {
	Symbol     string
	Side       string // "BUY" or "SELL"
	Quantity   float64
	ReduceOnly bool
}

// StopOrderRequest places a protective stop-market order.
type StopOrderRequest struct {
	Symbol     string
	Side       string
	Quantity   float64
	StopPrice  float64
	ReduceOnly bool
}

// Broker is the execution adapter consumed by the trading engine.
type Broker interface {
	OpenPositions(ctx context.Context) ([]Position, error)
	AccountBalance(ctx context.Context) (Balance, error)
	PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (Order, error)
	PlaceStopOrder(ctx context.Context, req StopOrderRequest) (Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	Close() error
}
