// Package registry looks vendors up in a public exclusion/debarment
// registry. Lookups are cached with a TTL and rate limits are retried once
// with backoff, mirroring the registry's published usage guidance.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config drives registry client behaviour.
type Config struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
	Limit    int
}

// Exclusion captures the subset of registry data we need for scoring.
type Exclusion struct {
	Name           string
	Agency         string
	Classification string
	Active         bool
}

// LookupResult returns exclusions matching a vendor name query.
type LookupResult struct {
	Term       string
	Exclusions []Exclusion
	Checked    bool
}

// Client performs registry lookups with basic caching and rate limiting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limit      int
	cacheTTL   time.Duration
	cache      sync.Map // map[string]cacheEntry
}

type cacheEntry struct {
	at     time.Time
	result LookupResult
}

// ErrMissingCredentials is returned when the client cannot authenticate.
var ErrMissingCredentials = errors.New("registry client missing api key")

// NewClient constructs a registry client if configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.sam.gov/entity-information/v3/exclusions"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 25
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		limit:      limit,
		cacheTTL:   ttl,
	}, nil
}

// Lookup fetches exclusion records for the supplied vendor name.
func (c *Client) Lookup(ctx context.Context, vendor string) (LookupResult, error) {
	if c == nil {
		return LookupResult{}, errors.New("registry client is nil")
	}

	key := strings.ToLower(strings.TrimSpace(vendor))
	if key == "" {
		return LookupResult{}, nil
	}

	if entry, ok := c.cache.Load(key); ok {
		cached := entry.(cacheEntry)
		if time.Since(cached.at) < c.cacheTTL {
			return cached.result, nil
		}
		c.cache.Delete(key)
	}

	result, err := c.performRequest(ctx, key)
	if err != nil {
		return LookupResult{}, err
	}

	c.cache.Store(key, cacheEntry{at: time.Now(), result: result})
	return result, nil
}

func (c *Client) performRequest(ctx context.Context, vendor string) (LookupResult, error) {
	params := url.Values{}
	params.Set("legalBusinessName", vendor)
	params.Set("isActive", "true")
	params.Set("size", fmt.Sprintf("%d", c.limit))

	endpoint := c.baseURL
	if strings.Contains(endpoint, "?") {
		endpoint = endpoint + "&" + params.Encode()
	} else {
		endpoint = endpoint + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return LookupResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return LookupResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		// back off for 5 seconds and retry once
		select {
		case <-ctx.Done():
			return LookupResult{}, ctx.Err()
		case <-time.After(5 * time.Second):
		}
		resp.Body.Close()
		retryReq, retryErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if retryErr != nil {
			return LookupResult{}, retryErr
		}
		retryReq.Header = req.Header.Clone()
		resp, err = c.httpClient.Do(retryReq)
		if err != nil {
			return LookupResult{}, err
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return LookupResult{}, fmt.Errorf("registry api status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return LookupResult{}, fmt.Errorf("decode registry response: %w", err)
	}

	var exclusions []Exclusion
	for _, item := range payload.ExclusionDetails {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		exclusions = append(exclusions, Exclusion{
			Name:           name,
			Agency:         strings.TrimSpace(item.ExcludingAgency),
			Classification: strings.TrimSpace(item.ClassificationType),
			Active:         strings.EqualFold(strings.TrimSpace(item.IsActive), "active") || strings.EqualFold(strings.TrimSpace(item.IsActive), "true"),
		})
	}

	return LookupResult{Term: vendor, Exclusions: exclusions, Checked: true}, nil
}

type searchResponse struct {
	ExclusionDetails []exclusionDetail `json:"excludedEntity"`
}

type exclusionDetail struct {
	Name               string `json:"name"`
	ExcludingAgency    string `json:"excludingAgencyName"`
	ClassificationType string `json:"classificationType"`
	IsActive           string `json:"isActive"`
}
