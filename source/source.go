// Package source implements the range-source boundary: a paginated,
// range-queryable remote index serving ordered time-series rows.
package source

import (
	"context"
	"time"

	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gohttpcl"
)

// RangeSource is the consumed contract of the remote time-series index:
// a range query over a named index returning rows ordered by timestamp.
type RangeSource interface {
	Query(ctx context.Context, index string, from, to time.Time) (models.Series, error)
}

// QueryFunc adapts a bound range query for the cache manager, which only
// ever varies the time window.
type QueryFunc func(ctx context.Context, from, to time.Time) (models.Series, error)

// RetryPolicy configures how transient connectivity failures are retried:
// a bounded number of attempts with a fixed delay between them.
type RetryPolicy struct {
	// MaxAttempts is the number of tries before the failure turns fatal
	MaxAttempts int

	// Delay is the fixed pause between attempts
	Delay time.Duration
}

// DefaultRetryPolicy returns the default policy: three attempts spaced one
// minute apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       time.Minute,
	}
}

// Options maps the policy onto the HTTP client's retry machinery. The delay
// is fixed, so the backoff strategy is constant rather than exponential.
func (p RetryPolicy) Options() []gohttpcl.Option {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Second
	}
	return []gohttpcl.Option{
		gohttpcl.WithMaxRetries(attempts - 1),
		gohttpcl.WithMinBackoff(delay),
		gohttpcl.WithMaxBackoff(delay),
		gohttpcl.WithBackoffStrategy(gohttpcl.BackoffConstant),
	}
}
