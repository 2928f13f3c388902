// Package cache implements the time-windowed cache manager: it decomposes a
// requested [from, to) interval into hour buckets, serves each bucket from
// the partition store or the range source, and assembles a gap-free,
// duplicate-free, chronologically ordered series.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/source"
	"github.com/evdnx/gobacktest/store"
	"github.com/evdnx/golog"
)

// Manager fills hour-aligned partitions on demand and serves assembled
// windows. Partitions are immutable once written; the only staleness
// mechanism is an explicit store wipe before first use.
type Manager struct {
	store  store.Store
	logger *golog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a manager over the given partition store.
func NewManager(st store.Store) *Manager {
	return &Manager{
		store:  st,
		logger: common.DefaultLogger(),
		locks:  make(map[string]*sync.Mutex),
	}
}

// bucketLock returns the mutex guarding one (stream, paramKey, hour) bucket,
// so two simultaneous misses on the same bucket fetch exactly once.
func (m *Manager) bucketLock(stream models.Stream, paramKey string, hour time.Time) *sync.Mutex {
	key := stream.String() + "\x00" + paramKey + "\x00" + hour.UTC().Format(time.RFC3339)

	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[key] = lock
	}
	return lock
}

// Fetch assembles the series covering [from, to) for one stream and
// parameter set. Full-hour buckets come from the store when present and are
// fetched and persisted on miss; the first bucket is trimmed to from when
// from is not hour-aligned; a trailing sub-hour segment is fetched fresh on
// every call and never persisted, so partition boundaries stay hour-aligned.
// A getter failure aborts the whole fetch with nothing committed for the
// failing bucket.
func (m *Manager) Fetch(ctx context.Context, stream models.Stream, paramKey string, getter source.QueryFunc, from, to time.Time) (models.Series, error) {
	if !from.Before(to) {
		return nil, common.NewValidationError("empty_window", "time_from must be before time_to")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	from = from.UTC()
	to = to.UTC()
	firstHour := from.Truncate(time.Hour)
	lastHour := to.Truncate(time.Hour)

	var assembled models.Series
	for hour := firstHour; hour.Before(lastHour); hour = hour.Add(time.Hour) {
		rows, err := m.bucket(ctx, stream, paramKey, getter, hour)
		if err != nil {
			return nil, err
		}
		if hour.Equal(firstHour) {
			rows = rows.TrimBefore(from)
		}
		assembled = append(assembled, rows...)
	}

	// Trailing partial segment: not hour-aligned, so caching it would
	// pollute partition boundaries on the next call.
	if lastHour.Before(to) {
		start := lastHour
		if start.Before(from) {
			start = from
		}
		rows, err := getter(ctx, start, to)
		if err != nil {
			return nil, err
		}
		assembled = append(assembled, rows...)
	}

	assembled.SortByTimestamp()
	return assembled.Dedupe(), nil
}

// bucket serves one full-hour partition, fetching and persisting on miss.
func (m *Manager) bucket(ctx context.Context, stream models.Stream, paramKey string, getter source.QueryFunc, hour time.Time) (models.Series, error) {
	lock := m.bucketLock(stream, paramKey, hour)
	lock.Lock()
	defer lock.Unlock()

	rows, hit, err := m.store.Get(stream, paramKey, hour)
	if err != nil {
		return nil, err
	}
	if hit {
		return rows, nil
	}

	rows, err = getter(ctx, hour, hour.Add(time.Hour))
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(stream, paramKey, hour, rows); err != nil {
		return nil, err
	}

	m.logger.Debug("Partition filled",
		golog.String("stream", stream.String()),
		golog.String("params", paramKey),
		golog.String("hour", hour.Format(time.RFC3339)),
		golog.Int("rows", len(rows)))
	return rows, nil
}
