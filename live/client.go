// Package live implements the thin order-management client against the real
// exchange REST API. It exists so mode selection happens at construction
// time: strategy code holds the shared trading interface and never learns
// whether orders go to the exchange or to the simulated ledger.
package live

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/evdnx/gobacktest/common"
	"github.com/evdnx/gobacktest/models"
	"github.com/evdnx/gobacktest/source"
	"github.com/evdnx/gohttpcl"
	metrics "github.com/evdnx/gotrademetrics"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	requestExpiry      = 10 * time.Second

	orderPath         = "/api/v1/order"
	cancelAllPath     = "/api/v1/order/all"
	walletSummaryPath = "/api/v1/user/walletSummary"
)

// Client places and queries orders on the exchange.
type Client struct {
	baseURL     string
	apiKey      string
	apiSecret   string
	httpTimeout time.Duration
	httpClient  *gohttpcl.Client

	placed int
}

// NewClient creates a live trading client. Metrics may be nil.
func NewClient(baseURL, apiKey, apiSecret string, m *metrics.Metrics) *Client {
	opts := []gohttpcl.Option{
		gohttpcl.WithMaxRetries(3),
		gohttpcl.WithMinBackoff(250 * time.Millisecond),
		gohttpcl.WithMaxBackoff(5 * time.Second),
		gohttpcl.WithBackoffFactor(2.0),
		gohttpcl.WithBackoffStrategy(gohttpcl.BackoffExponential),
		gohttpcl.WithTimeout(defaultHTTPTimeout),
	}
	if collector := source.NewHTTPMetricsCollector(m, "trading_api"); collector != nil {
		opts = append(opts, gohttpcl.WithMetrics(collector))
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		httpTimeout: defaultHTTPTimeout,
		httpClient:  gohttpcl.New(opts...),
	}
}

// PlaceOrder submits the order and returns a positional reference matching
// the simulated client's numbering.
func (c *Client) PlaceOrder(order models.Order) (int, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return 0, err
	}
	if _, err := c.doRequest(http.MethodPost, orderPath, "", payload); err != nil {
		return 0, err
	}
	ref := c.placed
	c.placed++
	return ref, nil
}

// CancelAllOrders cancels every open order on the exchange.
func (c *Client) CancelAllOrders() error {
	_, err := c.doRequest(http.MethodDelete, cancelAllPath, "", nil)
	return err
}

// QueryOrders returns orders matching the equality filter, which is passed
// through as the API's JSON filter parameter.
func (c *Client) QueryOrders(filter map[string]interface{}) ([]models.Order, error) {
	query := ""
	if len(filter) > 0 {
		encoded, err := json.Marshal(filter)
		if err != nil {
			return nil, err
		}
		query = "filter=" + url.QueryEscape(string(encoded))
	}

	raw, err := c.doRequest(http.MethodGet, orderPath, query, nil)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, common.NewParsingError("malformed order listing", err)
	}
	return orders, nil
}

// GetWalletSummary fetches the wallet summary and collapses the exchange's
// per-transact-type rows into the shared summary shape.
func (c *Client) GetWalletSummary() (models.WalletSummary, error) {
	raw, err := c.doRequest(http.MethodGet, walletSummaryPath, "", nil)
	if err != nil {
		return models.WalletSummary{}, err
	}

	var entries []struct {
		TransactType  string  `json:"transactType"`
		WalletBalance float64 `json:"walletBalance"`
		RealisedPnL   float64 `json:"realisedPnl"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return models.WalletSummary{}, common.NewParsingError("malformed wallet summary", err)
	}

	var summary models.WalletSummary
	for _, entry := range entries {
		switch entry.TransactType {
		case "Total":
			summary.Balance = entry.WalletBalance
		case "RealisedPNL":
			summary.RealisedPnL = entry.RealisedPnL
		}
	}
	return summary, nil
}

func (c *Client) doRequest(method, path, query string, body []byte) ([]byte, error) {
	target := c.baseURL + path
	signedPath := path
	if query != "" {
		target += "?" + query
		signedPath += "?" + query
	}

	expires := fmt.Sprintf("%d", time.Now().Add(requestExpiry).Unix())
	options := []gohttpcl.ReqOption{
		gohttpcl.WithHeader("Content-Type", "application/json"),
		gohttpcl.WithHeader("api-key", c.apiKey),
		gohttpcl.WithHeader("api-expires", expires),
		gohttpcl.WithHeader("api-signature", c.sign(method, signedPath, expires, body)),
	}

	ctx := context.Background()
	var (
		resp *http.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = c.httpClient.Get(ctx, target, c.httpTimeout, nil, options...)
	case http.MethodPost:
		resp, err = c.httpClient.Post(ctx, target, bytes.NewReader(body), c.httpTimeout, nil, options...)
	case http.MethodDelete:
		resp, err = c.httpClient.Delete(ctx, target, c.httpTimeout, nil, options...)
	default:
		return nil, fmt.Errorf("unsupported HTTP method %s", method)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, common.NewEngineError(common.ErrorTypeUnknown, fmt.Sprintf("http_%d", resp.StatusCode),
			string(payload), nil)
	}
	return payload, nil
}

// sign builds the exchange's HMAC SHA256 request signature over
// verb + path + expires + body.
func (c *Client) sign(method, path, expires string, body []byte) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write([]byte(expires))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
