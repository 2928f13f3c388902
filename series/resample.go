package series

import (
	"time"

	"github.com/evdnx/gobacktest/models"
)

// bucketAgg accumulates one resampling bucket.
type bucketAgg struct {
	start     time.Time
	hasPrice  bool
	open      float64
	high      float64
	low       float64
	close     float64
	volume    float64
	hasVolume bool
}

func (b *bucketAgg) add(row models.Row) {
	if price, ok := row.Field("price"); ok {
		if !b.hasPrice {
			b.open, b.high, b.low = price, price, price
			b.hasPrice = true
		} else {
			if price > b.high {
				b.high = price
			}
			if price < b.low {
				b.low = price
			}
		}
		b.close = price
	}
	if volume, ok := row.Field("volume"); ok {
		b.volume += volume
		b.hasVolume = true
	}
}

func (b *bucketAgg) row() models.Row {
	fields := make(map[string]float64, 5)
	if b.hasPrice {
		fields["open"] = b.open
		fields["high"] = b.high
		fields["low"] = b.low
		fields["close"] = b.close
	}
	if b.hasVolume {
		fields["volume"] = b.volume
	}
	return models.Row{Timestamp: b.start, Fields: fields}
}

// Resample groups aligned price/volume rows into fixed-width buckets of
// length period, aggregating price as OHLC (open=first, high=max, low=min,
// close=last) and volume as sum. Buckets with no underlying rows are
// omitted: there is no forward fill. Input must be chronologically sorted;
// output buckets stay in strict chronological order.
func Resample(rows models.Series, period time.Duration) models.Series {
	if period <= 0 || len(rows) == 0 {
		return nil
	}

	var out models.Series
	var current *bucketAgg
	for _, row := range rows {
		start := row.Timestamp.Truncate(period)
		if current == nil || !current.start.Equal(start) {
			if current != nil {
				out = append(out, current.row())
			}
			current = &bucketAgg{start: start}
		}
		current.add(row)
	}
	if current != nil {
		out = append(out, current.row())
	}
	return out
}
