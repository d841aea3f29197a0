// Package semantic is the client for the external similarity-search
// collaborator that indexes the procedure catalog.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/claimsure/resolver"
	"github.com/claimsure/claimsure-app/conf"
	"github.com/hashicorp/go-retryablehttp"
)

type Config struct {
	SearchURL string `conf:"SEMANTIC_SEARCH_URL" conf_default:"http://localhost:8010/search"`
	TimeoutMS int    `conf:"SEMANTIC_SEARCH_TIMEOUT_MS" conf_default:"2000"`
	RetryMax  int    `conf:"SEMANTIC_SEARCH_RETRY_MAX" conf_default:"2"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Ensure Client satisfies the resolver's searcher interface
var _ resolver.SemanticSearcher = &Client{}

type Client struct {
	searchURL  string
	httpClient *retryablehttp.Client
}

func NewClient(cfg *Config) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	httpClient.RetryWaitMin = 100 * time.Millisecond
	httpClient.RetryWaitMax = 500 * time.Millisecond
	httpClient.HTTPClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	httpClient.Logger = nil

	return &Client{searchURL: cfg.SearchURL, httpClient: httpClient}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchHit struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	ReferencePrice float64  `json:"reference_price"`
	Aliases        []string `json:"aliases,omitempty"`
	Distance       float64  `json:"distance"`
}

type searchResponse struct {
	Candidates []searchHit `json:"candidates"`
}

// TopK asks the collaborator for the k catalog entries nearest the query.
func (c *Client) TopK(ctx context.Context, query string, k int) ([]resolver.Candidate, error) {
	body, err := json.Marshal(searchRequest{Query: query, K: k})
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semantic search returned status %d", resp.StatusCode)
	}

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	candidates := make([]resolver.Candidate, 0, len(parsed.Candidates))
	for _, hit := range parsed.Candidates {
		candidates = append(candidates, resolver.Candidate{
			Entry: models.ProcedureCatalogEntry{
				Name:           hit.Name,
				Category:       hit.Category,
				ReferencePrice: hit.ReferencePrice,
				Aliases:        hit.Aliases,
			},
			Distance: hit.Distance,
		})
	}

	return candidates, nil
}
