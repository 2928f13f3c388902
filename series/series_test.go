package series_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/evdnx/gobacktest/cache"
	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/series"
	"github.com/evdnx/gobacktest/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2020, 3, 1, h, m, 0, 0, time.UTC)
}

// stubSource serves synthetic rows at :00 and :30 of every hour, with fields
// depending on the index suffix, and counts queries per index.
type stubSource struct {
	mu      sync.Mutex
	queries map[string]int
}

func newStubSource() *stubSource {
	return &stubSource{queries: make(map[string]int)}
}

func (s *stubSource) Query(ctx context.Context, index string, from, to time.Time) (models.Series, error) {
	s.mu.Lock()
	s.queries[index]++
	s.mu.Unlock()

	var rows models.Series
	for ts := from.Truncate(30 * time.Minute); ts.Before(to); ts = ts.Add(30 * time.Minute) {
		if ts.Before(from) {
			continue
		}
		fields := map[string]float64{}
		switch index {
		case "btcusd.bitmex.tickers":
			mid := 100.0
			if ts.Minute() == 30 {
				mid = 110.0
			}
			fields["buy"] = mid - 1
			fields["sell"] = mid + 1
			fields["mid"] = mid
		case "btcusd.bitmex.volumes":
			fields["volume"] = 5
			if ts.Minute() == 30 {
				fields["volume"] = 7
			}
		case "btcusd.bitmex.orderbooks.l0":
			fields["bidSize"] = 1
		case "btcusd.bitmex.instruments":
			fields["openInterest"] = 1000
		}
		rows = append(rows, models.Row{Timestamp: ts, Fields: fields})
	}
	return rows, nil
}

func (s *stubSource) count(index string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[index]
}

func newBuilder(src *stubSource, st store.Store) *series.Builder {
	return series.NewBuilder(cache.NewManager(st), src, "btcusd.bitmex", func() time.Time {
		return at(10, 0)
	})
}

func TestResampleOHLCV(t *testing.T) {
	rows := models.Series{
		{Timestamp: at(8, 0), Fields: map[string]float64{"price": 100, "volume": 2}},
		{Timestamp: at(8, 1), Fields: map[string]float64{"price": 104, "volume": 1}},
		{Timestamp: at(8, 2), Fields: map[string]float64{"price": 97}},
		{Timestamp: at(8, 3), Fields: map[string]float64{"price": 102, "volume": 4}},
		// Gap: nothing between 08:05 and 08:10.
		{Timestamp: at(8, 11), Fields: map[string]float64{"price": 90, "volume": 3}},
	}

	out := series.Resample(rows, 5*time.Minute)
	require.Len(t, out, 2)

	first := models.CandleFromRow(out[0])
	assert.True(t, first.OpenTime.Equal(at(8, 0)))
	assert.Equal(t, 100.0, first.Open)
	assert.Equal(t, 104.0, first.High)
	assert.Equal(t, 97.0, first.Low)
	assert.Equal(t, 102.0, first.Close)
	assert.Equal(t, 7.0, first.Volume)

	// Empty buckets are omitted, not forward-filled.
	second := models.CandleFromRow(out[1])
	assert.True(t, second.OpenTime.Equal(at(8, 10)))
	assert.Equal(t, 90.0, second.Open)
}

func TestResampleVolumeOnlyRows(t *testing.T) {
	rows := models.Series{
		{Timestamp: at(8, 0), Fields: map[string]float64{"volume": 2}},
		{Timestamp: at(8, 1), Fields: map[string]float64{"volume": 3}},
	}

	out := series.Resample(rows, 5*time.Minute)
	require.Len(t, out, 1)
	volume, ok := out[0].Field("volume")
	require.True(t, ok)
	assert.Equal(t, 5.0, volume)
	_, ok = out[0].Field("open")
	assert.False(t, ok)
}

func TestGetTickersCachesFullHours(t *testing.T) {
	src := newStubSource()
	builder := newBuilder(src, store.NewMemoryStore())

	rows, err := builder.GetTickers(context.Background(), series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, src.count("btcusd.bitmex.tickers"))

	_, err = builder.GetTickers(context.Background(), series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, src.count("btcusd.bitmex.tickers"))
}

func TestWindowDurationRelativeToNow(t *testing.T) {
	src := newStubSource()
	builder := newBuilder(src, store.NewMemoryStore())

	// The builder's now is pinned to 10:00, so a one-hour duration window
	// resolves to [09:00, 10:00).
	rows, err := builder.GetTickers(context.Background(), series.Window{Duration: time.Hour})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Timestamp.Equal(at(9, 0)))
	assert.True(t, rows[1].Timestamp.Equal(at(9, 30)))
}

func TestWindowDurationAnchoredToFrom(t *testing.T) {
	src := newStubSource()
	builder := newBuilder(src, store.NewMemoryStore())

	rows, err := builder.GetTickers(context.Background(), series.Window{From: at(8, 0), Duration: time.Hour})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Timestamp.Equal(at(8, 0)))
	assert.True(t, rows[1].Timestamp.Equal(at(8, 30)))
}

func TestWindowValidation(t *testing.T) {
	builder := newBuilder(newStubSource(), store.NewMemoryStore())

	_, err := builder.GetTickers(context.Background(), series.Window{})
	require.Error(t, err)
	assert.True(t, common.IsValidationError(err))

	_, err = builder.GetTickers(context.Background(), series.Window{From: at(9, 0), To: at(8, 0)})
	require.Error(t, err)
	assert.True(t, common.IsValidationError(err))
}

func TestGetOrderBooksLevels(t *testing.T) {
	src := newStubSource()
	builder := newBuilder(src, store.NewMemoryStore())

	rows, err := builder.GetOrderBooks(context.Background(), 0, series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, src.count("btcusd.bitmex.orderbooks.l0"))

	_, err = builder.GetOrderBooks(context.Background(), 3, series.Window{From: at(8, 0), To: at(9, 0)})
	require.Error(t, err)
	assert.True(t, common.IsValidationError(err))
}

func TestGetCandlesDerivesFromTickersAndVolumes(t *testing.T) {
	src := newStubSource()
	st := store.NewMemoryStore()
	builder := newBuilder(src, st)

	candles, err := builder.GetCandles(context.Background(), 15*time.Minute, series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	require.Len(t, candles, 2)

	// The 08:00 tick carries mid 100 and volume 5.
	assert.True(t, candles[0].OpenTime.Equal(at(8, 0)))
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 100.0, candles[0].Close)
	assert.Equal(t, 5.0, candles[0].Volume)

	assert.True(t, candles[1].OpenTime.Equal(at(8, 30)))
	assert.Equal(t, 110.0, candles[1].Open)
	assert.Equal(t, 7.0, candles[1].Volume)

	// Candles get their own partitions on top of the input streams.
	assert.Equal(t, 3, st.Len())

	// A different period is a different partition, not a stale readback.
	hourly, err := builder.GetCandles(context.Background(), time.Hour, series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	require.Len(t, hourly, 1)
	assert.Equal(t, 100.0, hourly[0].Open)
	assert.Equal(t, 110.0, hourly[0].Close)
	assert.Equal(t, 12.0, hourly[0].Volume)
}

func TestGetCandlesRejectsNonHourDividingPeriod(t *testing.T) {
	builder := newBuilder(newStubSource(), store.NewMemoryStore())

	// Candles are assembled per hour partition, so a bucket straddling an
	// hour boundary cannot be computed correctly.
	for _, period := range []time.Duration{90 * time.Minute, 25 * time.Minute, 2 * time.Hour} {
		_, err := builder.GetCandles(context.Background(), period, series.Window{From: at(8, 0), To: at(11, 0)})
		require.Error(t, err)
		assert.True(t, common.IsValidationError(err))
	}

	_, err := builder.GetCandles(context.Background(), 0, series.Window{From: at(8, 0), To: at(9, 0)})
	require.Error(t, err)
	assert.True(t, common.IsValidationError(err))
}

func TestGetCombinedAlignsStreams(t *testing.T) {
	src := newStubSource()
	st := store.NewMemoryStore()
	builder := newBuilder(src, st)

	rows, err := builder.GetCombined(context.Background(), false, series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	for _, name := range []string{"buy", "sell", "mid", "volume", "bidSize"} {
		_, ok := rows[0].Field(name)
		assert.True(t, ok, "combined row missing %s", name)
	}
	_, ok := rows[0].Field("openInterest")
	assert.False(t, ok)

	// Second call is fully cached.
	before := src.count("btcusd.bitmex.tickers")
	_, err = builder.GetCombined(context.Background(), false, series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	assert.Equal(t, before, src.count("btcusd.bitmex.tickers"))
}

func TestGetCombinedWithInstruments(t *testing.T) {
	src := newStubSource()
	builder := newBuilder(src, store.NewMemoryStore())

	rows, err := builder.GetCombined(context.Background(), true, series.Window{From: at(8, 0), To: at(9, 0)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	openInterest, ok := rows[0].Field("openInterest")
	require.True(t, ok)
	assert.Equal(t, 1000.0, openInterest)
}
