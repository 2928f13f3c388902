package backtest

import (
	"sync"

	"github.com/evdnx/gobacktest/models"
)

// Ledger is the in-memory order book for backtest mode. Orders keep their
// insertion order, which is also their matching priority; no price/time
// priority is modeled beyond FIFO.
type Ledger struct {
	mu     sync.Mutex
	orders []*models.Order
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Place appends the order as open and returns its positional reference.
// There are no funds or margin checks.
func (l *Ledger) Place(order models.Order) int {
	order.Open = true

	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = append(l.orders, &order)
	return len(l.orders) - 1
}

// CancelAll clears the ledger unconditionally.
func (l *Ledger) CancelAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = nil
}

// Query returns copies of the orders whose fields match every key/value pair
// of the equality filter (AND semantics; a field the order does not carry is
// a non-match). A nil or empty filter returns all orders.
func (l *Ledger) Query(filter map[string]interface{}) []models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Order, 0, len(l.orders))
	for _, order := range l.orders {
		if matchesFilter(*order, filter) {
			out = append(out, *order)
		}
	}
	return out
}

// open returns the currently-open orders, in priority order. Closed orders
// are filtered out before every tick scan.
func (l *Ledger) open() []*models.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*models.Order, 0, len(l.orders))
	for _, order := range l.orders {
		if order.Open {
			out = append(out, order)
		}
	}
	return out
}

// replace installs the survivor set after a tick scan.
func (l *Ledger) replace(survivors []*models.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders = survivors
}

func matchesFilter(order models.Order, filter map[string]interface{}) bool {
	for key, want := range filter {
		have, ok := order.FilterField(key)
		if !ok {
			return false
		}
		if !equalFilterValue(have, want) {
			return false
		}
	}
	return true
}

// equalFilterValue compares a field against a filter value, normalizing
// integer literals so filters decoded from JSON or written by hand both
// match float fields.
func equalFilterValue(have, want interface{}) bool {
	switch w := want.(type) {
	case int:
		want = float64(w)
	case int64:
		want = float64(w)
	case float32:
		want = float64(w)
	case models.OrderSide:
		want = string(w)
	case models.OrderType:
		want = string(w)
	}
	return have == want
}
