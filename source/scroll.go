package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gohttpcl"
	"github.com/evdnx/golog"
	metrics "github.com/evdnx/gotrademetrics"
)

const (
	defaultScrollWindow = "30m"
	defaultPageSize     = 1000
	defaultHTTPTimeout  = 2 * time.Minute
)

// timestampFormats are accepted on rows coming back from the index. The
// first is what the engine itself writes; the second is the legacy tracker
// format with a space separator.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
}

// ScrollSource queries the remote time-series index through its scroll
// cursor protocol: the initial search returns a page, a cursor id and a
// total count, and follow-up requests consume the cursor until the
// accumulated rows reach the total.
type ScrollSource struct {
	baseURL      string
	scrollWindow string
	pageSize     int
	httpTimeout  time.Duration
	httpClient   *gohttpcl.Client
	logger       *golog.Logger
}

// ScrollOption configures a ScrollSource.
type ScrollOption func(*ScrollSource)

// WithScrollWindow sets how long the remote keeps the cursor alive.
func WithScrollWindow(window string) ScrollOption {
	return func(s *ScrollSource) { s.scrollWindow = window }
}

// WithPageSize sets the number of rows requested per page.
func WithPageSize(size int) ScrollOption {
	return func(s *ScrollSource) { s.pageSize = size }
}

// WithHTTPTimeout sets the per-request timeout.
func WithHTTPTimeout(timeout time.Duration) ScrollOption {
	return func(s *ScrollSource) { s.httpTimeout = timeout }
}

// NewScrollSource creates a source for the index at baseURL. Transient
// connectivity failures are retried per the policy; metrics may be nil.
func NewScrollSource(baseURL string, policy RetryPolicy, m *metrics.Metrics, opts ...ScrollOption) *ScrollSource {
	s := &ScrollSource{
		baseURL:      baseURL,
		scrollWindow: defaultScrollWindow,
		pageSize:     defaultPageSize,
		httpTimeout:  defaultHTTPTimeout,
		logger:       common.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := append(policy.Options(), gohttpcl.WithTimeout(s.httpTimeout))
	if collector := NewHTTPMetricsCollector(m, "range_source"); collector != nil {
		clientOpts = append(clientOpts, gohttpcl.WithMetrics(collector))
	}
	s.httpClient = gohttpcl.New(clientOpts...)

	return s
}

// searchRequest is the initial range query sent to the index.
type searchRequest struct {
	Size  int            `json:"size"`
	Sort  string         `json:"sort"`
	Query rangeQueryBody `json:"query"`
}

type rangeQueryBody struct {
	Range struct {
		Timestamp struct {
			GTE string `json:"gte"`
			LT  string `json:"lt"`
		} `json:"timestamp"`
	} `json:"range"`
}

// scrollRequest consumes an open cursor.
type scrollRequest struct {
	Scroll   string `json:"scroll"`
	ScrollID string `json:"scroll_id"`
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total int `json:"total"`
		Hits  []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query fetches every row of index with from <= timestamp < to, following
// the scroll cursor until the reported total is reached. Once the HTTP
// client's retry budget is exhausted the error is fatal: the run cannot
// continue without its data source.
func (s *ScrollSource) Query(ctx context.Context, index string, from, to time.Time) (models.Series, error) {
	if !from.Before(to) {
		return nil, common.NewValidationError("empty_window", fmt.Sprintf("time_from %s is not before time_to %s", from, to))
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body := searchRequest{Size: s.pageSize, Sort: "_id"}
	body.Query.Range.Timestamp.GTE = from.UTC().Format(time.RFC3339Nano)
	body.Query.Range.Timestamp.LT = to.UTC().Format(time.RFC3339Nano)

	target := fmt.Sprintf("%s/%s/_search?scroll=%s", s.baseURL, index, s.scrollWindow)
	page, err := s.post(ctx, target, body)
	if err != nil {
		return nil, s.fatal(index, from, to, err)
	}

	rows := make(models.Series, 0, page.Hits.Total)
	rows = append(rows, s.parseHits(index, page)...)
	scrolled := len(page.Hits.Hits)
	total := page.Hits.Total
	scrollID := page.ScrollID

	for scrolled < total {
		next, err := s.post(ctx, fmt.Sprintf("%s/_search/scroll", s.baseURL), scrollRequest{
			Scroll:   s.scrollWindow,
			ScrollID: scrollID,
		})
		if err != nil {
			return nil, s.fatal(index, from, to, err)
		}
		if len(next.Hits.Hits) == 0 {
			// The cursor dried up before reaching the advertised total;
			// surface it rather than return a silently short series.
			return nil, s.fatal(index, from, to,
				fmt.Errorf("cursor exhausted after %d of %d rows", scrolled, total))
		}
		rows = append(rows, s.parseHits(index, next)...)
		scrolled += len(next.Hits.Hits)
		scrollID = next.ScrollID
	}

	rows.SortByTimestamp()
	return rows.Dedupe(), nil
}

// Bind returns a QueryFunc with the index fixed, for the cache manager.
func (s *ScrollSource) Bind(index string) QueryFunc {
	return func(ctx context.Context, from, to time.Time) (models.Series, error) {
		return s.Query(ctx, index, from, to)
	}
}

func (s *ScrollSource) post(ctx context.Context, target string, body interface{}) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Post(ctx, target, bytes.NewReader(payload), s.httpTimeout, nil,
		gohttpcl.WithHeader("Content-Type", "application/json"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("index returned HTTP %d: %s", resp.StatusCode, raw)
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, common.NewParsingError("malformed search response", err)
	}
	return &parsed, nil
}

// parseHits converts raw documents to rows. The timestamp field is required;
// non-numeric fields are dropped since rows carry numeric columns only.
func (s *ScrollSource) parseHits(index string, page *searchResponse) models.Series {
	rows := make(models.Series, 0, len(page.Hits.Hits))
	for _, hit := range page.Hits.Hits {
		ts, ok := parseTimestamp(hit.Source["timestamp"])
		if !ok {
			s.logger.Warn("Dropping document without usable timestamp",
				golog.String("index", index))
			continue
		}
		fields := make(map[string]float64, len(hit.Source))
		for name, value := range hit.Source {
			if name == "timestamp" {
				continue
			}
			if num, isNum := value.(float64); isNum {
				fields[name] = num
			}
		}
		rows = append(rows, models.Row{Timestamp: ts, Fields: fields})
	}
	return rows
}

func (s *ScrollSource) fatal(index string, from, to time.Time, err error) error {
	msg := fmt.Sprintf("range query failed for index %s [%s, %s)",
		index, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	s.logger.Error("Range source failure, retries exhausted",
		golog.String("index", index),
		golog.String("from", from.UTC().Format(time.RFC3339)),
		golog.String("to", to.UTC().Format(time.RFC3339)))
	return common.NewFatalSourceError(msg, err)
}

func parseTimestamp(raw interface{}) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		for _, format := range timestampFormats {
			if ts, err := time.Parse(format, v); err == nil {
				return ts.UTC(), true
			}
		}
	case float64:
		// Epoch milliseconds, the wire format of the legacy collector.
		return time.UnixMilli(int64(v)).UTC(), true
	}
	return time.Time{}, false
}
