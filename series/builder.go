// Package series builds derived views on top of the time-windowed cache:
// pass-through streams, OHLCV candles, and the combined tile consumed by the
// matching engine.
package series

import (
	"context"
	"fmt"
	"time"

	"github.com/evdnx/gobacktest/cache"
	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/source"
	"github.com/evdnx/gobacktest/store"
)

// Window selects a query interval: [From, To) explicitly, or the Duration
// anchored to whichever bound is set. A zero To with no Duration anchor
// means "now" as seen by the configured clock, matching the
// exchange-tracker convention.
type Window struct {
	From     time.Time
	To       time.Time
	Duration time.Duration
}

// resolve turns the window into concrete bounds. now is only consulted for
// open-ended windows, so tile fetches triggered from inside a simulation
// tick never read the clock again.
func (w Window) resolve(now func() time.Time) (time.Time, time.Time, error) {
	to := w.To
	if to.IsZero() {
		if !w.From.IsZero() && w.Duration > 0 {
			to = w.From.Add(w.Duration)
		} else {
			to = now()
		}
	}
	from := w.From
	if from.IsZero() {
		if w.Duration <= 0 {
			return time.Time{}, time.Time{}, common.NewValidationError("bad_window", "window needs either From or a positive Duration")
		}
		from = to.Add(-w.Duration)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, common.NewValidationError("bad_window", "window From must be before To")
	}
	return from.UTC(), to.UTC(), nil
}

// Builder exposes the named composite queries. All of them funnel through
// the cache manager with a stream-specific parameter fingerprint.
type Builder struct {
	manager     *cache.Manager
	src         source.RangeSource
	indexPrefix string
	now         func() time.Time
}

// NewBuilder creates a builder over the manager and range source. now
// supplies "current time" for open-ended windows; backtest runs pass the
// virtual clock's frozen read so window resolution never perturbs the
// simulation, live runs pass time.Now.
func NewBuilder(manager *cache.Manager, src source.RangeSource, indexPrefix string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{
		manager:     manager,
		src:         src,
		indexPrefix: indexPrefix,
		now:         now,
	}
}

// index builds the remote index name for a stream suffix.
func (b *Builder) index(suffix string) string {
	if b.indexPrefix == "" {
		return suffix
	}
	return b.indexPrefix + "." + suffix
}

// remote binds a range query against one remote index.
func (b *Builder) remote(suffix string) source.QueryFunc {
	index := b.index(suffix)
	return func(ctx context.Context, from, to time.Time) (models.Series, error) {
		return b.src.Query(ctx, index, from, to)
	}
}

// GetTickers returns buy/sell/mid/last quote rows for the window.
func (b *Builder) GetTickers(ctx context.Context, w Window) (models.Series, error) {
	from, to, err := w.resolve(b.now)
	if err != nil {
		return nil, err
	}
	return b.manager.Fetch(ctx, models.StreamTickers, "", b.remote("tickers"), from, to)
}

// GetVolumes returns pooled trade-volume rows for the window.
func (b *Builder) GetVolumes(ctx context.Context, w Window) (models.Series, error) {
	from, to, err := w.resolve(b.now)
	if err != nil {
		return nil, err
	}
	return b.manager.Fetch(ctx, models.StreamVolumes, "", b.remote("volumes"), from, to)
}

// GetInstruments returns raw instrument snapshot rows for the window.
func (b *Builder) GetInstruments(ctx context.Context, w Window) (models.Series, error) {
	from, to, err := w.resolve(b.now)
	if err != nil {
		return nil, err
	}
	return b.manager.Fetch(ctx, models.StreamInstruments, "", b.remote("instruments"), from, to)
}

// GetOrderBooks returns order-book rows at the given resolution level
// (0, 1 or 2). The level is part of the partition fingerprint, so books at
// different resolutions never share partitions.
func (b *Builder) GetOrderBooks(ctx context.Context, level int, w Window) (models.Series, error) {
	if level < 0 || level > 2 {
		return nil, common.NewValidationError("bad_level", fmt.Sprintf("orderbook level %d out of range", level))
	}
	from, to, err := w.resolve(b.now)
	if err != nil {
		return nil, err
	}
	paramKey := store.Fingerprint(map[string]string{"level": fmt.Sprintf("%d", level)})
	return b.manager.Fetch(ctx, models.StreamOrderBooks, paramKey,
		b.remote(fmt.Sprintf("orderbooks.l%d", level)), from, to)
}

// GetCandles returns OHLCV candles of the given period. Candles are derived
// from tickers (mid quote as price) and volumes, then cached as their own
// stream keyed by period. The period must evenly divide one hour: candles
// are assembled per hour partition, so a bucket spanning an hour boundary
// would be computed from a single partition's rows and come out wrong.
func (b *Builder) GetCandles(ctx context.Context, period time.Duration, w Window) ([]models.Candle, error) {
	if period <= 0 {
		return nil, common.NewValidationError("bad_period", "candle period must be positive")
	}
	if time.Hour%period != 0 {
		return nil, common.NewValidationError("bad_period",
			fmt.Sprintf("candle period %s must evenly divide one hour", period))
	}
	from, to, err := w.resolve(b.now)
	if err != nil {
		return nil, err
	}

	getter := func(ctx context.Context, from, to time.Time) (models.Series, error) {
		tickers, err := b.GetTickers(ctx, Window{From: from, To: to})
		if err != nil {
			return nil, err
		}
		volumes, err := b.GetVolumes(ctx, Window{From: from, To: to})
		if err != nil {
			return nil, err
		}
		aligned := models.Align(tickers.Rename("mid", "price"), volumes)
		return Resample(aligned, period), nil
	}

	paramKey := store.Fingerprint(map[string]string{"period": period.String()})
	rows, err := b.manager.Fetch(ctx, models.StreamCandles, paramKey, getter, from, to)
	if err != nil {
		return nil, err
	}

	candles := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		candles = append(candles, models.CandleFromRow(row))
	}
	return candles, nil
}

// GetCombined returns the wide ticker+orderbook+volume tile (optionally also
// instruments) keyed by timestamp: the tile the matching engine scans.
func (b *Builder) GetCombined(ctx context.Context, includeInstrument bool, w Window) (models.Series, error) {
	from, to, err := w.resolve(b.now)
	if err != nil {
		return nil, err
	}

	getter := func(ctx context.Context, from, to time.Time) (models.Series, error) {
		window := Window{From: from, To: to}
		books, err := b.GetOrderBooks(ctx, 0, window)
		if err != nil {
			return nil, err
		}
		tickers, err := b.GetTickers(ctx, window)
		if err != nil {
			return nil, err
		}
		volumes, err := b.GetVolumes(ctx, window)
		if err != nil {
			return nil, err
		}
		parts := []models.Series{books, tickers, volumes}
		if includeInstrument {
			instruments, err := b.GetInstruments(ctx, window)
			if err != nil {
				return nil, err
			}
			parts = append(parts, instruments)
		}
		return models.Align(parts...), nil
	}

	paramKey := ""
	if includeInstrument {
		paramKey = store.Fingerprint(map[string]string{"instrument": "true"})
	}
	return b.manager.Fetch(ctx, models.StreamCombined, paramKey, getter, from, to)
}
