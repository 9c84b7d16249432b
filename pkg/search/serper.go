package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexus-rd/nexus/pkg/domain"
)

// SerperClient implements the EvidenceSearcher interface against the
// Serper search API
type SerperClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxResults int
	breaker    *circuitBreaker
}

// SerperOptions configures the Serper client
type SerperOptions struct {
	MaxResults int           `json:"max_results"`
	Timeout    time.Duration `json:"timeout"`

	// FailureThreshold is the consecutive-failure count that opens the
	// circuit; BreakerCooldown is how long it stays open. Zero values
	// take the defaults.
	FailureThreshold int           `json:"failure_threshold,omitempty"`
	BreakerCooldown  time.Duration `json:"breaker_cooldown,omitempty"`
}

// serperRequest represents a request to the Serper API
type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
}

// serperResponse represents a response from the Serper API
type serperResponse struct {
	Organic []serperResult `json:"organic"`
}

// serperResult is one organic search hit
type serperResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// NewSerperClient creates a new Serper client
func NewSerperClient(baseURL, apiKey string, options *SerperOptions) *SerperClient {
	if options == nil {
		options = &SerperOptions{
			MaxResults: 5,
			Timeout:    30 * time.Second,
		}
	}
	if baseURL == "" {
		baseURL = "https://google.serper.dev"
	}

	return &SerperClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: options.Timeout,
		},
		maxResults: options.MaxResults,
		breaker:    newCircuitBreaker(options.FailureThreshold, options.BreakerCooldown),
	}
}

// Search performs an evidence lookup and scores each hit's authority
func (c *SerperClient) Search(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
	if !c.breaker.allow() {
		return nil, errCircuitOpen
	}

	if limit <= 0 || limit > c.maxResults {
		limit = c.maxResults
	}

	req := serperRequest{
		Query: query,
		Num:   limit,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		fmt.Sprintf("%s/search", c.baseURL),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.recordFailure()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.recordFailure()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("serper returned status %d: %s", resp.StatusCode, string(body))
	}

	var serperResp serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&serperResp); err != nil {
		c.breaker.recordFailure()
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	c.breaker.recordSuccess()

	sources := make([]domain.EvidenceSource, 0, len(serperResp.Organic))
	for i, result := range serperResp.Organic {
		if i >= limit {
			break
		}
		sources = append(sources, domain.EvidenceSource{
			Type:           ClassifySource(result.Link),
			Name:           result.Title,
			URL:            result.Link,
			AuthorityScore: AuthorityScore(result.Link),
			Excerpt:        result.Snippet,
		})
	}

	return sources, nil
}

// authorityDomains maps source categories to the domains that earn them.
// Patent offices and peer-reviewed archives outrank trade press, which
// outranks the open web.
var (
	highAuthorityDomains = []string{
		"patents.google.com", "uspto.gov", "epo.org", "wipo.int",
		"nature.com", "science.org", "ieee.org", "arxiv.org",
		"acm.org", "springer.com", "sciencedirect.com",
	}
	midAuthorityDomains = []string{
		"reuters.com", "bloomberg.com", "ft.com", "wsj.com",
		"mckinsey.com", "gartner.com", "idc.com", "statista.com",
		"techcrunch.com", "spectrum.ieee.org",
	}
)

// AuthorityScore assigns a 0-1 authority band from the source URL:
// 0.9 for patent offices and peer-reviewed archives, 0.7 for established
// industry press and analyst firms, 0.5 for everything else
func AuthorityScore(url string) float64 {
	lower := strings.ToLower(url)
	for _, d := range highAuthorityDomains {
		if strings.Contains(lower, d) {
			return 0.9
		}
	}
	for _, d := range midAuthorityDomains {
		if strings.Contains(lower, d) {
			return 0.7
		}
	}
	return 0.5
}

// ClassifySource labels a source URL with its evidence category
func ClassifySource(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "patent") || strings.Contains(lower, "uspto") ||
		strings.Contains(lower, "epo.org") || strings.Contains(lower, "wipo"):
		return "patent"
	case strings.Contains(lower, "arxiv") || strings.Contains(lower, "nature.com") ||
		strings.Contains(lower, "science.org") || strings.Contains(lower, "ieee") ||
		strings.Contains(lower, "acm.org") || strings.Contains(lower, "springer") ||
		strings.Contains(lower, "sciencedirect"):
		return "paper"
	default:
		return "web"
	}
}

// CheckHealth verifies the search API is reachable and the key is accepted
func (c *SerperClient) CheckHealth(ctx context.Context) error {
	_, err := c.Search(ctx, "connectivity check", 1)
	if err != nil {
		return fmt.Errorf("search health check failed: %w", err)
	}
	return nil
}
