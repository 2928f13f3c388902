// Package gobacktest assembles the market-data cache engine, the query
// builder, and one of the two order-management clients into a single runtime.
// Strategy code talks to the TradingClient interface and the Builder, and
// never learns whether it is driving a live exchange session or a simulated
// replay.
package gobacktest

import (
	"time"

	"github.com/evdnx/gobacktest/backtest"
	"github.com/evdnx/gobacktest/cache"
	"github.com/evdnx/gobacktest/config"
	"github.com/evdnx/gobacktest/internal/logutil"
	"github.com/evdnx/gobacktest/live"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/series"
	"github.com/evdnx/gobacktest/source"
	"github.com/evdnx/gobacktest/store"
	"github.com/evdnx/golog"
	metrics "github.com/evdnx/gotrademetrics"
)

// TradingClient is the order-management surface shared by the live client
// and the simulated one. Mode selection happens once, in New.
type TradingClient interface {
	PlaceOrder(order models.Order) (int, error)
	CancelAllOrders() error
	QueryOrders(filter map[string]interface{}) ([]models.Order, error)
	GetWalletSummary() (models.WalletSummary, error)
}

// Runtime is the assembled engine: data queries on one side, order
// management on the other, and a clock that keeps them consistent.
type Runtime struct {
	cfg     *config.Config
	builder *series.Builder
	clock   *backtest.Clock
	trading TradingClient
	logger  *golog.Logger
}

// New wires a runtime from the configuration. Metrics may be nil. In
// backtest mode the run starts at cfg.Backtest.InitialTime and every
// non-frozen Now advances the simulation one timestep; in live mode the
// wall clock and the real exchange client are used.
func New(cfg *config.Config, m *metrics.Metrics) (*Runtime, error) {
	logger := logutil.Default()

	st, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	manager := cache.NewManager(st)

	policy := source.DefaultRetryPolicy()
	if cfg.Source.Retry.MaxAttempts > 0 {
		policy = source.RetryPolicy{
			MaxAttempts: cfg.Source.Retry.MaxAttempts,
			Delay:       cfg.Source.Retry.Delay,
		}
	}
	srcOpts := []source.ScrollOption{}
	if cfg.Source.ScrollWindow != "" {
		srcOpts = append(srcOpts, source.WithScrollWindow(cfg.Source.ScrollWindow))
	}
	if cfg.Source.PageSize > 0 {
		srcOpts = append(srcOpts, source.WithPageSize(cfg.Source.PageSize))
	}
	src := source.NewScrollSource(cfg.Source.BaseURL, policy, m, srcOpts...)

	var clock *backtest.Clock
	if cfg.Backtest.Enabled {
		clock = backtest.NewVirtualClock(cfg.Backtest.InitialTime, cfg.Backtest.Timestep)
	} else {
		clock = backtest.NewWallClock()
	}

	builder := series.NewBuilder(manager, src, cfg.Source.IndexPrefix, func() time.Time {
		return clock.Now(true)
	})

	rt := &Runtime{
		cfg:     cfg,
		builder: builder,
		clock:   clock,
		logger:  logger,
	}

	if cfg.Backtest.Enabled {
		ledger := backtest.NewLedger()
		wallet := backtest.NewWallet(cfg.Backtest.InitialBalance)
		engine := backtest.NewEngine(builder, ledger, wallet)
		clock.SetTicker(engine)
		rt.trading = backtest.NewSimClient(ledger, wallet)
		logger.Info("Runtime assembled in backtest mode",
			golog.String("initial_time", cfg.Backtest.InitialTime.UTC().Format(time.RFC3339)),
			golog.String("timestep", clock.Timestep().String()))
	} else {
		rt.trading = live.NewClient(cfg.Live.BaseURL, cfg.Live.APIKey, cfg.Live.APISecret, m)
		logger.Info("Runtime assembled in live mode",
			golog.String("trading_api", cfg.Live.BaseURL))
	}

	return rt, nil
}

// buildStore picks the partition store and optionally wipes stale
// partitions left over from a previous run.
func buildStore(cfg *config.Config) (store.Store, error) {
	var st store.Store
	if cfg.Cache.InMemory {
		st = store.NewMemoryStore()
	} else {
		prefix := cfg.Cache.Prefix
		if prefix == "" {
			prefix = cfg.Source.IndexPrefix
		}
		st = store.NewFSStore(cfg.Cache.Dir, prefix)
	}
	if cfg.Cache.CleanOnStart {
		if err := st.Wipe(); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// Builder returns the series builder for data queries.
func (r *Runtime) Builder() *series.Builder {
	return r.builder
}

// Trading returns the order-management client for the configured mode.
func (r *Runtime) Trading() TradingClient {
	return r.trading
}

// Now returns the engine's current time. In live mode it is the wall clock.
// In backtest mode a frozen read returns the pending simulation instant,
// while a non-frozen read also advances the run one timestep, settling any
// open orders against the data of the elapsed interval.
func (r *Runtime) Now(frozen bool) time.Time {
	return r.clock.Now(frozen)
}

// Err returns the first simulation tick failure, if any.
func (r *Runtime) Err() error {
	return r.clock.Err()
}
