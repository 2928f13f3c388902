package models

// OrderSide represents the side of an order (buy or sell)
type OrderSide string

const (
	// OrderSideBuy represents a buy order
	OrderSideBuy OrderSide = "Buy"
	// OrderSideSell represents a sell order
	OrderSideSell OrderSide = "Sell"
)

// String returns the string representation of OrderSide
func (s OrderSide) String() string {
	return string(s)
}

// OrderType represents the type of an order, using the exchange's ordType
// vocabulary so filters written against the real API keep working.
type OrderType string

const (
	// OrderTypeMarket represents a market order
	OrderTypeMarket OrderType = "Market"
	// OrderTypeLimit represents a limit order
	OrderTypeLimit OrderType = "Limit"
	// OrderTypeStop represents a stop order
	OrderTypeStop OrderType = "Stop"
	// OrderTypeStopLimit represents a stop limit order
	OrderTypeStopLimit OrderType = "StopLimit"
	// OrderTypeMarketIfTouched represents a market-if-touched order
	OrderTypeMarketIfTouched OrderType = "MarketIfTouched"
	// OrderTypeLimitIfTouched represents a limit-if-touched order
	OrderTypeLimitIfTouched OrderType = "LimitIfTouched"
	// OrderTypeMarketWithLeftOverAsLimit represents a market order whose
	// unfilled remainder rests as a limit order
	OrderTypeMarketWithLeftOverAsLimit OrderType = "MarketWithLeftOverAsLimit"
	// OrderTypePegged represents a pegged order
	OrderTypePegged OrderType = "Pegged"
)

// String returns the string representation of OrderType
func (t OrderType) String() string {
	return string(t)
}

// Order represents an order in the backtest ledger. Identity is positional:
// the ledger keeps orders in insertion order and no external id is assigned.
type Order struct {
	Symbol   string    `json:"symbol"`
	Side     OrderSide `json:"side"`
	OrdType  OrderType `json:"ordType"`
	OrderQty float64   `json:"orderQty"`
	Price    *float64  `json:"price,omitempty"`
	Open     bool      `json:"open"`
}

// FilterField resolves an equality-filter key to the order's field value.
// The second return is false for keys the order does not carry, which a
// filter treats as a non-match.
func (o Order) FilterField(name string) (interface{}, bool) {
	switch name {
	case "symbol":
		return o.Symbol, true
	case "side":
		return string(o.Side), true
	case "ordType":
		return string(o.OrdType), true
	case "orderQty":
		return o.OrderQty, true
	case "price":
		if o.Price == nil {
			return nil, false
		}
		return *o.Price, true
	case "open":
		return o.Open, true
	default:
		return nil, false
	}
}

// WalletSummary mirrors the shape of the exchange wallet summary that live
// callers consume: a single balance plus realised PnL.
type WalletSummary struct {
	Balance     float64 `json:"walletBalance"`
	RealisedPnL float64 `json:"realisedPnl"`
}
