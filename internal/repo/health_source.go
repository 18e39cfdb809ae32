// Package repo holds HTTP clients for the external collaborators: the
// health-check source producing snapshots and the historical-learnings
// lookup service.
package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/utils"
)

// HealthSourceClient fetches HealthSnapshot records from the platform's
// health-check collaborator.
type HealthSourceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHealthSourceClient constructs a client for the configured endpoint.
func NewHealthSourceClient(baseURL string, timeout time.Duration) *HealthSourceClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HealthSourceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchLatest retrieves the most recent snapshot.
func (c *HealthSourceClient) FetchLatest(ctx context.Context) (models.HealthSnapshot, error) {
	var snapshot models.HealthSnapshot
	if err := c.getJSON(ctx, c.baseURL+"/api/v1/health/latest", &snapshot); err != nil {
		return models.HealthSnapshot{}, utils.NewAppError("health_source.fetch_latest", "fetch latest snapshot", err)
	}
	return snapshot, nil
}

// FetchHistory retrieves up to limit snapshots ordered oldest first.
func (c *HealthSourceClient) FetchHistory(ctx context.Context, limit int) ([]models.HealthSnapshot, error) {
	if limit <= 0 {
		limit = 48
	}
	var response struct {
		Snapshots []models.HealthSnapshot `json:"snapshots"`
	}
	endpoint := c.baseURL + "/api/v1/health/history?limit=" + strconv.Itoa(limit)
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, utils.NewAppError("health_source.fetch_history", "fetch snapshot history", err)
	}
	return response.Snapshots, nil
}

func (c *HealthSourceClient) getJSON(ctx context.Context, endpoint string, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("health source base URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health source returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
