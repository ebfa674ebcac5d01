// Package nvd looks up CVEs by keyword against the NVD CVE API 2.0.
//
// Lookups never fail: every outcome, including a missing API key or an
// unreachable service, is reported through Lookup.Status.
package nvd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// DefaultURL is the public NVD CVE endpoint.
const DefaultURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// Status describes how a lookup ended.
type Status string

const (
	StatusOK          Status = "ok"
	StatusDisabled    Status = "disabled"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// Match is one CVE returned for a keyword.
type Match struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// Lookup is the outcome of a keyword search. Matches is never nil.
type Lookup struct {
	Status  Status  `json:"status"`
	Matches []Match `json:"matches"`
	Error   string  `json:"error,omitempty"`
}

// Config configures a Client.
type Config struct {
	// APIKey is sent in the apiKey header. Empty disables lookups.
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client queries NVD and memoises results for its lifetime.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	cache map[string]Lookup
}

// New creates a Client from cfg, filling defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    hc,
		cache:   make(map[string]Lookup),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Search returns at most maxResults CVEs whose text mentions keyword.
func (c *Client) Search(ctx context.Context, keyword string, maxResults int) Lookup {
	if !c.Enabled() {
		return Lookup{Status: StatusDisabled, Matches: []Match{}}
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	key := keyword + "\x00" + strconv.Itoa(maxResults)
	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	result := c.fetch(ctx, keyword, maxResults)
	if result.Status == StatusOK {
		c.mu.Lock()
		c.cache[key] = result
		c.mu.Unlock()
	}
	return result
}

type response struct {
	Vulnerabilities []struct {
		CVE *struct {
			ID           string `json:"id"`
			Descriptions []struct {
				Lang  string `json:"lang"`
				Value string `json:"value"`
			} `json:"descriptions"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

func (c *Client) fetch(ctx context.Context, keyword string, maxResults int) Lookup {
	q := url.Values{}
	q.Set("keywordSearch", keyword)
	q.Set("resultsPerPage", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return failed(StatusError, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("CVE lookup failed", "keyword", keyword, "error", err)
		return failed(StatusUnavailable, fmt.Errorf("CVE API request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		slog.Warn("CVE API unavailable", "keyword", keyword, "status", resp.StatusCode)
		return failed(StatusUnavailable, fmt.Errorf("CVE API returned %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return failed(StatusError, fmt.Errorf("CVE API returned %s", resp.Status))
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return failed(StatusError, fmt.Errorf("decode CVE response: %w", err))
	}

	matches := make([]Match, 0, len(body.Vulnerabilities))
	for _, v := range body.Vulnerabilities {
		if v.CVE == nil {
			continue
		}
		m := Match{ID: v.CVE.ID}
		for _, d := range v.CVE.Descriptions {
			if d.Lang == "en" || m.Summary == "" {
				m.Summary = d.Value
			}
			if d.Lang == "en" {
				break
			}
		}
		matches = append(matches, m)
	}
	slog.Debug("CVE lookup", "keyword", keyword, "matches", len(matches))
	return Lookup{Status: StatusOK, Matches: matches}
}

func failed(status Status, err error) Lookup {
	return Lookup{Status: status, Matches: []Match{}, Error: err.Error()}
}
