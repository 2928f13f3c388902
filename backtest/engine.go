package backtest

import (
	"context"
	"time"

	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/series"
	"github.com/evdnx/golog"
)

// Engine is the order-matching simulator. On each tick it pulls the
// combined tile for the step and scans it row by row, attempting to settle
// every open order against each row's market snapshot.
type Engine struct {
	builder *series.Builder
	ledger  *Ledger
	wallet  *Wallet
	logger  *golog.Logger
}

// NewEngine creates a matching engine over the tile builder, ledger and
// wallet.
func NewEngine(builder *series.Builder, ledger *Ledger, wallet *Wallet) *Engine {
	return &Engine{
		builder: builder,
		ledger:  ledger,
		wallet:  wallet,
		logger:  common.DefaultLogger(),
	}
}

// Tick settles open orders against the tile covering [from, to). Closed
// orders are dropped before the scan; the survivor set replaces the ledger
// afterwards, so orders neither filled nor cancelled stay open into the
// next tick. A per-order settlement rejection is logged and never aborts
// the tick; already-settled orders are not rolled back.
func (e *Engine) Tick(from, to time.Time) error {
	tile, err := e.builder.GetCombined(context.Background(), false, series.Window{From: from, To: to})
	if err != nil {
		return err
	}

	open := e.ledger.open()
	rejected := make(map[*models.Order]bool)

	for _, row := range tile {
		if len(open) == 0 {
			break
		}
		survivors := make([]*models.Order, 0, len(open))
		for _, order := range open {
			filled, err := e.settle(order, row)
			if err != nil {
				if !rejected[order] {
					rejected[order] = true
					e.logger.Warn("Order settlement rejected",
						golog.String("ordType", order.OrdType.String()),
						golog.String("symbol", order.Symbol),
						golog.String("error", err.Error()))
				}
				survivors = append(survivors, order)
				continue
			}
			if !filled {
				survivors = append(survivors, order)
			}
		}
		open = survivors
	}

	e.ledger.replace(open)
	return nil
}

// settle attempts to fill one order against one tile row. Market orders
// execute unconditionally at the row's quotes: a buy at the ask (the row's
// sell-side quote), a sell at the bid. Every other order type has no
// defined trigger semantics and is rejected per order, staying open until
// cancelled.
func (e *Engine) settle(order *models.Order, row models.Row) (bool, error) {
	if order.OrdType != models.OrderTypeMarket {
		return false, common.NewUnsupportedOrderTypeError(order.OrdType.String())
	}

	var priceField string
	if order.Side == models.OrderSideBuy {
		priceField = "sell"
	} else {
		priceField = "buy"
	}
	price, ok := row.Field(priceField)
	if !ok {
		// Row carries no quote for this side; the order waits for the
		// next row.
		return false, nil
	}

	e.wallet.settle(order.Side, order.OrderQty, price)
	order.Open = false

	e.logger.Info("Market order executed",
		golog.String("timestamp", row.Timestamp.Format(time.RFC3339Nano)),
		golog.String("side", order.Side.String()),
		golog.String("symbol", order.Symbol))
	return true, nil
}
