package repo

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-heal/internal/cache"
	"github.com/sentinelstack/sentinel-heal/internal/models"
	"github.com/sentinelstack/sentinel-heal/internal/utils"
)

// LearningsClient queries the historical-learnings lookup collaborator.
// Results are cached; callers must tolerate empty results since this service
// may be unavailable.
type LearningsClient struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Provider
	searchTTL  time.Duration
}

// NewLearningsClient constructs a client. cacheProvider may be nil.
func NewLearningsClient(baseURL string, timeout time.Duration, cacheProvider cache.Provider, searchTTL time.Duration) *LearningsClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if searchTTL < 0 {
		searchTTL = 0
	}
	return &LearningsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		searchTTL:  searchTTL,
	}
}

// Search finds historical fixes similar to a description. Cache hits bypass
// the network entirely.
func (c *LearningsClient) Search(ctx context.Context, description string, limit int) ([]models.LearningRecord, error) {
	if c.baseURL == "" {
		return nil, errors.New("learnings base URL not configured")
	}
	if limit <= 0 {
		limit = 5
	}

	key := searchCacheKey(description, limit)
	if cached, err := c.cache.Get(ctx, key); err == nil {
		var records []models.LearningRecord
		if err := json.Unmarshal(cached, &records); err == nil {
			return records, nil
		}
	}

	payload := map[string]any{
		"description": description,
		"limit":       limit,
	}
	var response struct {
		Results []models.LearningRecord `json:"results"`
	}
	if err := c.postJSON(ctx, c.baseURL+"/api/v1/learnings/search", payload, &response); err != nil {
		return nil, utils.NewAppError("learnings.search", "similar-fix lookup failed", err)
	}

	if c.searchTTL > 0 {
		if body, err := json.Marshal(response.Results); err == nil {
			_ = c.cache.Set(ctx, key, body, c.searchTTL)
		}
	}
	return response.Results, nil
}

// StorePatterns persists mined root-cause patterns so future searches can
// find them.
func (c *LearningsClient) StorePatterns(ctx context.Context, patterns []models.RootCausePattern) error {
	if c.baseURL == "" {
		return nil
	}
	payload := map[string]any{"patterns": patterns}
	if err := c.postJSON(ctx, c.baseURL+"/api/v1/learnings/patterns", payload, nil); err != nil {
		return utils.NewAppError("learnings.store_patterns", "persist mined patterns", err)
	}
	return nil
}

func (c *LearningsClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("learnings service returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func searchCacheKey(description string, limit int) string {
	sum := sha1.Sum([]byte(description))
	return fmt.Sprintf("learnings:search:%x:%d", sum[:8], limit)
}
