package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	promconfig "github.com/prometheus/common/config"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

var ErrUnexpectedStatus = errors.New("unexpected status code")

// Fetcher retrieves a full ledger snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) ([]models.Alert, error)
}

type HTTPFetcher struct {
	client *http.Client
	url    string
}

func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		client: client,
		url:    strings.TrimRight(baseURL, "/") + "/alerts",
	}
}

// NewHTTPClient builds the polling client from a Prometheus-style HTTP client
// config, so auth, proxies and TLS can be set from the config file.
func NewHTTPClient(cfg promconfig.HTTPClientConfig, timeout time.Duration) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid http client config: %w", err)
	}
	client, err := promconfig.NewClientFromConfig(cfg, "accident-watch")
	if err != nil {
		return nil, fmt.Errorf("error creating http client: %w", err)
	}
	client.Timeout = timeout
	return client, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]models.Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d - status: %s", ErrUnexpectedStatus, resp.StatusCode, resp.Status)
	}

	var alerts []models.Alert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	return alerts, nil
}
