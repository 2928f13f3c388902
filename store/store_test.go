package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hour = time.Date(2020, 3, 1, 8, 0, 0, 0, time.UTC)

func sampleRows() models.Series {
	return models.Series{
		{
			Timestamp: hour.Add(90 * time.Millisecond),
			Fields:    map[string]float64{"buy": 8699.5, "sell": 8700.0},
		},
		{
			Timestamp: hour.Add(30 * time.Minute),
			Fields:    map[string]float64{"buy": 8701.0},
		},
	}
}

func TestFSStoreRoundTrip(t *testing.T) {
	st := store.NewFSStore(t.TempDir(), "btcusd.bitmex")

	rows := sampleRows()
	require.NoError(t, st.Put(models.StreamTickers, "", hour, rows))

	got, hit, err := st.Get(models.StreamTickers, "", hour)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)

	// Sub-second precision survives the round trip.
	assert.True(t, got[0].Timestamp.Equal(rows[0].Timestamp))
	assert.Equal(t, rows[0].Fields, got[0].Fields)

	// Absent fields stay absent rather than becoming zeros.
	_, ok := got[1].Field("sell")
	assert.False(t, ok)
}

func TestFSStoreMiss(t *testing.T) {
	st := store.NewFSStore(t.TempDir(), "btcusd.bitmex")

	rows, hit, err := st.Get(models.StreamTickers, "", hour)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, rows)
}

func TestFSStoreEmptyPartitionIsHit(t *testing.T) {
	st := store.NewFSStore(t.TempDir(), "btcusd.bitmex")

	require.NoError(t, st.Put(models.StreamVolumes, "", hour, nil))
	rows, hit, err := st.Get(models.StreamVolumes, "", hour)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Empty(t, rows)
}

func TestFSStoreCorruptPartition(t *testing.T) {
	dir := t.TempDir()
	st := store.NewFSStore(dir, "btcusd.bitmex")

	// A partition that exists but cannot be parsed must error loudly,
	// never read back as empty.
	path := filepath.Join(dir, "btcusd_bitmex", "tickers",
		"2020_03_01_08_2020_03_01_09.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("timestamp,buy\nnot-a-time,1\n"), 0o644))

	_, _, err := st.Get(models.StreamTickers, "", hour)
	require.Error(t, err)
	assert.True(t, common.IsCacheIntegrityError(err))
}

func TestFSStorePutIsIdempotent(t *testing.T) {
	st := store.NewFSStore(t.TempDir(), "btcusd.bitmex")

	rows := sampleRows()
	require.NoError(t, st.Put(models.StreamTickers, "", hour, rows))
	require.NoError(t, st.Put(models.StreamTickers, "", hour, rows))

	got, hit, err := st.Get(models.StreamTickers, "", hour)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Len(t, got, 2)
}

func TestFSStoreParamKeySeparatesPartitions(t *testing.T) {
	st := store.NewFSStore(t.TempDir(), "btcusd.bitmex")

	l0 := models.Series{{Timestamp: hour, Fields: map[string]float64{"depth": 0}}}
	l1 := models.Series{{Timestamp: hour, Fields: map[string]float64{"depth": 1}}}
	require.NoError(t, st.Put(models.StreamOrderBooks, "level=0", hour, l0))
	require.NoError(t, st.Put(models.StreamOrderBooks, "level=1", hour, l1))

	got, hit, err := st.Get(models.StreamOrderBooks, "level=1", hour)
	require.NoError(t, err)
	require.True(t, hit)
	depth, _ := got[0].Field("depth")
	assert.Equal(t, 1.0, depth)
}

func TestFSStoreWipe(t *testing.T) {
	st := store.NewFSStore(t.TempDir(), "btcusd.bitmex")

	require.NoError(t, st.Put(models.StreamTickers, "", hour, sampleRows()))
	require.NoError(t, st.Wipe())

	_, hit, err := st.Get(models.StreamTickers, "", hour)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryStoreCopiesOnGetAndPut(t *testing.T) {
	st := store.NewMemoryStore()

	rows := sampleRows()
	require.NoError(t, st.Put(models.StreamTickers, "", hour, rows))
	rows[0].Fields["buy"] = -1

	got, hit, err := st.Get(models.StreamTickers, "", hour)
	require.NoError(t, err)
	require.True(t, hit)
	buy, _ := got[0].Field("buy")
	assert.Equal(t, 8699.5, buy)

	got[0].Fields["buy"] = -2
	again, _, err := st.Get(models.StreamTickers, "", hour)
	require.NoError(t, err)
	buy, _ = again[0].Field("buy")
	assert.Equal(t, 8699.5, buy)
}

func TestMemoryStoreWipe(t *testing.T) {
	st := store.NewMemoryStore()

	require.NoError(t, st.Put(models.StreamTickers, "", hour, sampleRows()))
	assert.Equal(t, 1, st.Len())
	require.NoError(t, st.Wipe())
	assert.Equal(t, 0, st.Len())
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "", store.Fingerprint(nil))
	assert.Equal(t, "level=2", store.Fingerprint(map[string]string{"level": "2"}))

	// Key order is canonical regardless of map iteration.
	a := store.Fingerprint(map[string]string{"level": "2", "instrument": "true"})
	assert.Equal(t, "instrument=true_level=2", a)
}
