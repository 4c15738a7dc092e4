package adapters

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OutboxOrder is the journaled form of an order request.
type OutboxOrder struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Quantity       int       `json:"quantity"`
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key"`
}

// OutboxFill is the journaled form of a simulated execution.
type OutboxFill struct {
	OrderID     string    `json:"order_id"`
	Symbol      string    `json:"symbol"`
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`
	Side        string    `json:"side"`
	Timestamp   time.Time `json:"timestamp"`
	LatencyMs   int       `json:"latency_ms"`
	SlippageBps int       `json:"slippage_bps"`
}

type outboxEntry struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Event time.Time       `json:"event"`
}

// Outbox is an append-only JSONL journal of paper orders and fills with a
// sliding idempotency window.
type Outbox struct {
	path         string
	dedupeWindow time.Duration
}

func NewOutbox(path string, dedupeWindow time.Duration) (*Outbox, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &Outbox{path: path, dedupeWindow: dedupeWindow}, nil
}

func (o *Outbox) WriteOrder(order OutboxOrder) error {
	return o.append("order", order)
}

func (o *Outbox) WriteFill(fill OutboxFill) error {
	return o.append("fill", fill)
}

func (o *Outbox) append(entryType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	line, err := json.Marshal(outboxEntry{Type: entryType, Data: raw, Event: time.Now().UTC()})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(string(line) + "\n")
	return err
}

// HasRecentOrder scans the journal for an order with the same idempotency key
// inside the dedupe window.
func (o *Outbox) HasRecentOrder(idempotencyKey string) (bool, error) {
	data, err := os.ReadFile(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	cutoff := time.Now().UTC().Add(-o.dedupeWindow)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var entry outboxEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Type != "order" || entry.Event.Before(cutoff) {
			continue
		}
		var order OutboxOrder
		if err := json.Unmarshal(entry.Data, &order); err != nil {
			continue
		}
		if order.IdempotencyKey == idempotencyKey {
			return true, nil
		}
	}
	return false, nil
}

// IdempotencyKey buckets an order to one minute so a retried cycle cannot
// double-submit the same trade.
func IdempotencyKey(symbol string, side OrderSide, quantity int, at time.Time) string {
	raw := fmt.Sprintf("%s|%s|%d|%s", symbol, side, quantity, at.UTC().Format("2006-01-02T15:04"))
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
