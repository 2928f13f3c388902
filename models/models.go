package models

import (
	"sort"
	"time"
)

// Stream identifies a category of time-series market data. The value doubles
// as the cache subdirectory name and as the suffix of the remote index.
type Stream string

const (
	// StreamTickers carries buy/sell/mid/last quotes.
	StreamTickers Stream = "tickers"
	// StreamOrderBooks carries order-book snapshot rows; the resolution level
	// is a query parameter, not part of the stream name.
	StreamOrderBooks Stream = "orderbooks"
	// StreamVolumes carries trade volumes aggregated over a pooling window.
	StreamVolumes Stream = "volumes"
	// StreamInstruments carries raw instrument snapshot fields.
	StreamInstruments Stream = "instruments"
	// StreamCandles carries derived OHLCV rows.
	StreamCandles Stream = "candles"
	// StreamCombined carries the wide ticker+orderbook+volume tile.
	StreamCombined Stream = "all_data"
)

// String returns the string representation of the stream.
func (s Stream) String() string {
	return string(s)
}

// Row is a single time-series record: a timestamp plus named numeric fields.
// Streams differ only in which field names they populate, so partitions,
// tiles and derived series all share this shape.
type Row struct {
	Timestamp time.Time
	Fields    map[string]float64
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	fields := make(map[string]float64, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Row{Timestamp: r.Timestamp, Fields: fields}
}

// Field returns the named field value and whether it is present.
func (r Row) Field(name string) (float64, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Series is an ordered sequence of rows. The cache manager guarantees rows
// are strictly increasing by timestamp with no duplicates.
type Series []Row

// SortByTimestamp sorts the series chronologically in place.
func (s Series) SortByTimestamp() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Timestamp.Before(s[j].Timestamp)
	})
}

// TrimBefore returns the suffix of the series whose timestamps are >= cutoff.
// The series must already be sorted.
func (s Series) TrimBefore(cutoff time.Time) Series {
	i := sort.Search(len(s), func(i int) bool {
		return !s[i].Timestamp.Before(cutoff)
	})
	return s[i:]
}

// Dedupe removes rows that repeat the previous timestamp, keeping the first
// occurrence. The series must already be sorted.
func (s Series) Dedupe() Series {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, row := range s[1:] {
		if row.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// FieldNames returns the sorted union of field names across all rows.
func (s Series) FieldNames() []string {
	seen := make(map[string]struct{})
	for _, row := range s {
		for name := range row.Fields {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Align outer-joins any number of sorted series on timestamp into one wide
// series. Field names colliding across inputs keep the first series' value.
func Align(series ...Series) Series {
	merged := make(map[int64]Row)
	var order []int64
	for _, s := range series {
		for _, row := range s {
			key := row.Timestamp.UnixNano()
			existing, ok := merged[key]
			if !ok {
				merged[key] = row.Clone()
				order = append(order, key)
				continue
			}
			for name, value := range row.Fields {
				if _, taken := existing.Fields[name]; !taken {
					existing.Fields[name] = value
				}
			}
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make(Series, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	return out
}

// Rename renames a field across all rows, dropping the old name. Rows without
// the field are left untouched.
func (s Series) Rename(from, to string) Series {
	out := make(Series, 0, len(s))
	for _, row := range s {
		clone := row.Clone()
		if v, ok := clone.Fields[from]; ok {
			delete(clone.Fields, from)
			clone.Fields[to] = v
		}
		out = append(out, clone)
	}
	return out
}

// Candle represents OHLCV candle data derived from ticker and volume rows.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Row converts the candle back to the generic row shape used by the cache.
func (c Candle) Row() Row {
	return Row{
		Timestamp: c.OpenTime,
		Fields: map[string]float64{
			"open":   c.Open,
			"high":   c.High,
			"low":    c.Low,
			"close":  c.Close,
			"volume": c.Volume,
		},
	}
}

// CandleFromRow rebuilds a candle from a generic row.
func CandleFromRow(r Row) Candle {
	return Candle{
		OpenTime: r.Timestamp,
		Open:     r.Fields["open"],
		High:     r.Fields["high"],
		Low:      r.Fields["low"],
		Close:    r.Fields["close"],
		Volume:   r.Fields["volume"],
	}
}
