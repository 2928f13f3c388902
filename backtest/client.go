package backtest

import (
	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
)

// SimClient is the simulated order-management client. It exposes the same
// surface as the live client, so strategy code switched into backtest mode
// needs no changes.
type SimClient struct {
	ledger *Ledger
	wallet *Wallet
}

// NewSimClient creates a simulated client over the ledger and wallet that
// the matching engine settles against.
func NewSimClient(ledger *Ledger, wallet *Wallet) *SimClient {
	return &SimClient{
		ledger: ledger,
		wallet: wallet,
	}
}

// PlaceOrder appends the order to the ledger and returns its positional
// reference.
func (c *SimClient) PlaceOrder(order models.Order) (int, error) {
	if order.Symbol == "" {
		return 0, common.NewValidationError("missing_symbol", "order needs a symbol")
	}
	if order.Side != models.OrderSideBuy && order.Side != models.OrderSideSell {
		return 0, common.NewValidationError("bad_side", "order side must be Buy or Sell")
	}
	if order.OrderQty <= 0 {
		return 0, common.NewValidationError("bad_qty", "order quantity must be positive")
	}
	if order.OrdType == "" {
		order.OrdType = models.OrderTypeMarket
	}
	return c.ledger.Place(order), nil
}

// CancelAllOrders clears the ledger.
func (c *SimClient) CancelAllOrders() error {
	c.ledger.CancelAll()
	return nil
}

// QueryOrders returns orders matching the equality filter, all orders when
// the filter is empty.
func (c *SimClient) QueryOrders(filter map[string]interface{}) ([]models.Order, error) {
	return c.ledger.Query(filter), nil
}

// GetWalletSummary returns the simulated wallet state.
func (c *SimClient) GetWalletSummary() (models.WalletSummary, error) {
	return c.wallet.Summary(), nil
}
