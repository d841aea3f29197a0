// Package corporate is the client for the corporate work-accident decision
// collaborator and the payer-override orchestration built on top of it.
package corporate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/conf"
	"github.com/hashicorp/go-retryablehttp"
)

type Config struct {
	DecideURL     string `conf:"CORPORATE_AGENT_URL" conf_default:"http://localhost:8003/decide"`
	TimeoutMS     int    `conf:"CORPORATE_TIMEOUT_MS" conf_default:"3000"`
	RetryMax      int    `conf:"CORPORATE_RETRY_MAX" conf_default:"1"`
	FailsafePayer string `conf:"CORPORATE_FAILSAFE_PAYER" conf_default:"patient"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecideRequest is the minimal payload the corporate collaborator needs to
// judge a suspected work accident.
type DecideRequest struct {
	PolicyID     string                  `json:"policy_id,omitempty"`
	WorkAccident models.WorkAccidentFlag `json:"work_accident"`
	Patient      map[string]string       `json:"patient"`
	Context      map[string]string       `json:"context"`
}

type DecideClient interface {
	Decide(ctx context.Context, req DecideRequest) (*models.CorporateDecision, error)
}

// Ensure Client satisfies the interface
var _ DecideClient = &Client{}

type Client struct {
	decideURL  string
	httpClient *retryablehttp.Client
}

func NewClient(cfg *Config) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	httpClient.RetryWaitMin = 100 * time.Millisecond
	httpClient.RetryWaitMax = 500 * time.Millisecond
	httpClient.HTTPClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	httpClient.Logger = nil

	return &Client{decideURL: cfg.DecideURL, httpClient: httpClient}
}

func (c *Client) Decide(ctx context.Context, decideReq DecideRequest) (*models.CorporateDecision, error) {
	body, err := json.Marshal(decideReq)
	if err != nil {
		return nil, err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, c.decideURL, bytes.NewReader(body))
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
		return nil, fmt.Errorf("corporate decision returned status %d", resp.StatusCode)
	}

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decision models.CorporateDecision
	if err := json.Unmarshal(data, &decision); err != nil {
		return nil, err
	}

	return &decision, nil
}
