package adapters

import (
	"context"
	"time"
)

// Position is one holding reported by the broker.
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      int     `json:"quantity"`
	AvgCost       float64 `json:"avg_cost"`
	MarketPrice   float64 `json:"market_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// UnrealizedPnLPct returns the fractional gain/loss against average cost.
func (p Position) UnrealizedPnLPct() float64 {
	if p.AvgCost <= 0 {
		return 0
	}
	return (p.MarketPrice - p.AvgCost) / p.AvgCost
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
)

// Terminal reports whether the status will not change again.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderRejected
}

type OrderRequest struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	Quantity int       `json:"quantity"`
}

type OrderState struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Side         OrderSide   `json:"side"`
	Quantity     int         `json:"quantity"`
	Status       OrderStatus `json:"status"`
	AvgFillPrice float64     `json:"avg_fill_price"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Broker is the execution collaborator: portfolio state, market data lookups
// and order routing. Implementations may block; all methods take a context.
type Broker interface {
	Positions(ctx context.Context) ([]Position, error)
	AvailableCash(ctx context.Context, currency string) (float64, error)
	Price(ctx context.Context, symbol string) (float64, error)
	IndexLevel(ctx context.Context, symbol string) (float64, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (string, error)
	OrderStatus(ctx context.Context, orderID string) (OrderState, error)
	Close() error
}

// AwaitOrder polls the broker at a fixed interval until the order reaches a
// terminal status or the context expires. The interval floor keeps polling
// from busy-spinning against a fast simulator.
func AwaitOrder(ctx context.Context, b Broker, orderID string, interval time.Duration) (OrderState, error) {
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := b.OrderStatus(ctx, orderID)
		if err != nil {
			return OrderState{}, err
		}
		if state.Status.Terminal() {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}
