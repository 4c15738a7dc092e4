package adapters

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vorschlag/trading-bot/internal/observ"
)

// PaperBroker is an in-memory Broker with simulated fills. Orders settle
// after a randomized latency with randomized slippage and every order and
// fill is journaled to the outbox.
type PaperBroker struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]*Position
	prices    map[string]float64
	indexes   map[string]float64
	orders    map[string]*OrderState
	closed    bool

	outbox *Outbox
	rng    *rand.Rand

	latencyMsMin   int
	latencyMsMax   int
	slippageBpsMin int
	slippageBpsMax int
}

func NewPaperBroker(cash float64, outbox *Outbox, latencyMsMin, latencyMsMax, slippageBpsMin, slippageBpsMax int) *PaperBroker {
	if latencyMsMax < latencyMsMin {
		latencyMsMax = latencyMsMin
	}
	if slippageBpsMax < slippageBpsMin {
		slippageBpsMax = slippageBpsMin
	}
	return &PaperBroker{
		cash:      cash,
		positions: map[string]*Position{},
		prices:    map[string]float64{},
		indexes:   map[string]float64{"VIX": 20.0},
		orders:    map[string]*OrderState{},
		outbox:    outbox,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),

		latencyMsMin:   latencyMsMin,
		latencyMsMax:   latencyMsMax,
		slippageBpsMin: slippageBpsMin,
		slippageBpsMax: slippageBpsMax,
	}
}

// SetPrice seeds or updates the simulated market price for a symbol.
func (b *PaperBroker) SetPrice(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[symbol] = price
	if pos, ok := b.positions[symbol]; ok {
		pos.MarketPrice = price
		pos.UnrealizedPnL = (price - pos.AvgCost) * float64(pos.Quantity)
	}
}

// SetIndexLevel seeds or updates a simulated index reading such as VIX.
func (b *PaperBroker) SetIndexLevel(symbol string, level float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indexes[symbol] = level
}

func (b *PaperBroker) Positions(ctx context.Context) ([]Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, NewConnectivityError("paper", "broker closed", nil)
	}
	out := make([]Position, 0, len(b.positions))
	for _, pos := range b.positions {
		out = append(out, *pos)
	}
	return out, nil
}

func (b *PaperBroker) AvailableCash(ctx context.Context, currency string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, NewConnectivityError("paper", "broker closed", nil)
	}
	return b.cash, nil
}

func (b *PaperBroker) Price(ctx context.Context, symbol string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, NewConnectivityError("paper", "broker closed", nil)
	}
	price, ok := b.prices[symbol]
	if !ok {
		return 0, NewProviderFault("paper", fmt.Sprintf("no price for %s", symbol), nil)
	}
	return price, nil
}

func (b *PaperBroker) IndexLevel(ctx context.Context, symbol string) (float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, NewConnectivityError("paper", "broker closed", nil)
	}
	level, ok := b.indexes[symbol]
	if !ok {
		return 0, NewProviderFault("paper", fmt.Sprintf("no index level for %s", symbol), nil)
	}
	return level, nil
}

func (b *PaperBroker) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	if req.Quantity <= 0 {
		return "", NewProviderFault("paper", "order quantity must be positive", nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", NewConnectivityError("paper", "broker closed", nil)
	}
	price, ok := b.prices[req.Symbol]
	if !ok {
		return "", NewProviderFault("paper", fmt.Sprintf("no price for %s", req.Symbol), nil)
	}

	now := time.Now().UTC()
	key := IdempotencyKey(req.Symbol, req.Side, req.Quantity, now)
	if b.outbox != nil {
		if dup, err := b.outbox.HasRecentOrder(key); err == nil && dup {
			observ.IncCounter("orders_deduped_total", map[string]string{"symbol": req.Symbol})
			return "", NewProviderFault("paper", "duplicate order inside dedupe window", nil)
		}
	}

	orderID := uuid.NewString()
	state := &OrderState{
		ID:        orderID,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Status:    OrderPending,
		UpdatedAt: now,
	}
	b.orders[orderID] = state

	if b.outbox != nil {
		if err := b.outbox.WriteOrder(OutboxOrder{
			ID:             orderID,
			Symbol:         req.Symbol,
			Side:           string(req.Side),
			Quantity:       req.Quantity,
			Timestamp:      now,
			Status:         string(OrderPending),
			IdempotencyKey: key,
		}); err != nil {
			observ.Log("outbox_write_error", map[string]any{"order_id": orderID, "error": err.Error()})
		}
	}

	latencyMs := b.latencyMsMin
	if b.latencyMsMax > b.latencyMsMin {
		latencyMs += b.rng.Intn(b.latencyMsMax - b.latencyMsMin + 1)
	}
	slippageBps := b.slippageBpsMin
	if b.slippageBpsMax > b.slippageBpsMin {
		slippageBps += b.rng.Intn(b.slippageBpsMax - b.slippageBpsMin + 1)
	}

	go b.settle(orderID, price, latencyMs, slippageBps)

	observ.Log("order_placed", map[string]any{
		"order_id": orderID,
		"symbol":   req.Symbol,
		"side":     string(req.Side),
		"quantity": req.Quantity,
	})
	observ.IncCounter("orders_placed_total", map[string]string{"side": string(req.Side)})

	return orderID, nil
}

// settle applies the fill after the simulated latency. Rejections happen here
// rather than at submit time so insufficient funds surface the way a live
// broker would report them.
func (b *PaperBroker) settle(orderID string, marketPrice float64, latencyMs, slippageBps int) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()

	state, ok := b.orders[orderID]
	if !ok || b.closed {
		return
	}

	fillPrice := marketPrice
	slippageMultiplier := 1.0 + float64(slippageBps)/10000.0
	switch state.Side {
	case SideBuy:
		fillPrice *= slippageMultiplier
	case SideSell:
		fillPrice /= slippageMultiplier
	}

	now := time.Now().UTC()
	cost := fillPrice * float64(state.Quantity)

	switch state.Side {
	case SideBuy:
		if cost > b.cash {
			state.Status = OrderRejected
			state.UpdatedAt = now
			observ.IncCounter("orders_rejected_total", map[string]string{"reason": "insufficient_cash"})
			return
		}
		b.cash -= cost
		pos, ok := b.positions[state.Symbol]
		if !ok {
			pos = &Position{Symbol: state.Symbol}
			b.positions[state.Symbol] = pos
		}
		total := pos.AvgCost*float64(pos.Quantity) + cost
		pos.Quantity += state.Quantity
		pos.AvgCost = total / float64(pos.Quantity)
		pos.MarketPrice = fillPrice
		pos.UnrealizedPnL = (fillPrice - pos.AvgCost) * float64(pos.Quantity)
	case SideSell:
		pos, ok := b.positions[state.Symbol]
		if !ok || pos.Quantity < state.Quantity {
			state.Status = OrderRejected
			state.UpdatedAt = now
			observ.IncCounter("orders_rejected_total", map[string]string{"reason": "insufficient_position"})
			return
		}
		b.cash += cost
		pos.Quantity -= state.Quantity
		if pos.Quantity == 0 {
			delete(b.positions, state.Symbol)
		} else {
			pos.MarketPrice = fillPrice
			pos.UnrealizedPnL = (fillPrice - pos.AvgCost) * float64(pos.Quantity)
		}
	}

	state.Status = OrderFilled
	state.AvgFillPrice = fillPrice
	state.UpdatedAt = now

	if b.outbox != nil {
		if err := b.outbox.WriteFill(OutboxFill{
			OrderID:     orderID,
			Symbol:      state.Symbol,
			Quantity:    state.Quantity,
			Price:       fillPrice,
			Side:        string(state.Side),
			Timestamp:   now,
			LatencyMs:   latencyMs,
			SlippageBps: slippageBps,
		}); err != nil {
			observ.Log("outbox_write_error", map[string]any{"order_id": orderID, "error": err.Error()})
		}
	}

	observ.Log("order_filled", map[string]any{
		"order_id":     orderID,
		"symbol":       state.Symbol,
		"fill_price":   fillPrice,
		"latency_ms":   latencyMs,
		"slippage_bps": slippageBps,
	})
	observ.IncCounter("orders_filled_total", map[string]string{"side": string(state.Side)})
}

func (b *PaperBroker) OrderStatus(ctx context.Context, orderID string) (OrderState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return OrderState{}, NewConnectivityError("paper", "broker closed", nil)
	}
	state, ok := b.orders[orderID]
	if !ok {
		return OrderState{}, NewProviderFault("paper", fmt.Sprintf("unknown order %s", orderID), nil)
	}
	return *state, nil
}

func (b *PaperBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
