package backtest

import (
	"sync"

	"github.com/evdnx/gobacktest/models"
)

// Wallet holds the simulated account balance. Only settled market orders
// mutate it; realised PnL stays a placeholder until position accounting is
// modeled.
type Wallet struct {
	mu          sync.Mutex
	balance     float64
	realisedPnL float64
}

// NewWallet creates a wallet with the given starting balance.
func NewWallet(initialBalance float64) *Wallet {
	return &Wallet{balance: initialBalance}
}

// settle applies one fill: buys debit qty*price, sells credit qty*price.
func (w *Wallet) settle(side models.OrderSide, qty, price float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if side == models.OrderSideBuy {
		w.balance -= qty * price
	} else {
		w.balance += qty * price
	}
}

// Summary returns the wallet in the exchange's wallet-summary shape.
func (w *Wallet) Summary() models.WalletSummary {
	w.mu.Lock()
	defer w.mu.Unlock()

	return models.WalletSummary{
		Balance:     w.balance,
		RealisedPnL: w.realisedPnL,
	}
}
