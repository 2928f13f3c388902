// Package store persists hour-aligned cache partitions keyed by
// (stream, parameter fingerprint, hour start).
package store

import (
	"sort"
	"strings"
	"time"

	"github.com/evdnx/gobacktest/models"
)

// Store is the partition-store contract: write-once/read-many persistence of
// hour-aligned result sets. Get reports a miss through its second return;
// errors are reserved for partitions that exist but cannot be read. Put is
// idempotent (last write wins, content expected identical). There is no
// expiry and no eviction: capacity management happens through Wipe, invoked
// explicitly by the caller before first use.
type Store interface {
	Get(stream models.Stream, paramKey string, hourStart time.Time) (models.Series, bool, error)
	Put(stream models.Stream, paramKey string, hourStart time.Time, rows models.Series) error
	Wipe() error
}

// Fingerprint derives a deterministic parameter key from all non-time query
// parameters, so differently-parameterized queries on the same stream never
// collide. Keys are sorted to keep the encoding stable.
func Fingerprint(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	return strings.Join(parts, "_")
}

// partitionName builds the canonical partition file stem for one hour bucket.
func partitionName(hourStart time.Time, paramKey string) string {
	const hourFormat = "2006_01_02_15"
	name := hourStart.UTC().Format(hourFormat) + "_" + hourStart.Add(time.Hour).UTC().Format(hourFormat)
	if paramKey != "" {
		name += "_" + paramKey
	}
	return name
}
