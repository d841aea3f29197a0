// Package client is the hospital-side submission transport: it delivers an
// approved claim to the adjudication endpoint under retry/backoff semantics
// with a stable idempotency key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/conf"
	"github.com/claimsure/claimsure-app/log"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
)

type Config struct {
	AdjudicateURL    string `conf:"INSURANCE_ADJUDICATE_URL" conf_default:"http://localhost:8002/api/v1/claims/adjudicate"`
	AttemptTimeoutMS int    `conf:"SUBMIT_ATTEMPT_TIMEOUT_MS" conf_default:"5000"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SubmissionEnvelope carries the transport-level identifiers for one
// attempt. The correlation id is regenerated per attempt; the idempotency
// key is stable across retries of the same claim content.
type SubmissionEnvelope struct {
	CorrelationID  string
	IdempotencyKey string
	AttemptCount   int
}

// ExhaustedError is returned once the whole backoff schedule has been
// consumed. It is a hard failure: the claim was not silently dropped and
// needs human intervention.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("claim submission failed after %d attempts: %s", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Waits applied between attempts; with the immediate first attempt this is
// the 0 / 0.5s / 1s / 2s schedule, four attempts total.
var retrySchedule = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}

type fixedSchedule struct {
	delays []time.Duration
	next   int
}

var _ backoff.BackOff = &fixedSchedule{}

func (b *fixedSchedule) NextBackOff() time.Duration {
	if b.next >= len(b.delays) {
		return backoff.Stop
	}
	d := b.delays[b.next]
	b.next++
	return d
}

func (b *fixedSchedule) Reset() {
	b.next = 0
}

type Client struct {
	adjudicateURL  string
	attemptTimeout time.Duration
	httpClient     *http.Client
	schedule       []time.Duration
	logger         logrus.FieldLogger
}

func NewClient(cfg *Config) *Client {
	timeout := time.Duration(cfg.AttemptTimeoutMS) * time.Millisecond
	return &Client{
		adjudicateURL:  cfg.AdjudicateURL,
		attemptTimeout: timeout,
		httpClient:     &http.Client{Timeout: timeout},
		schedule:       retrySchedule,
		logger:         log.Transport,
	}
}

// Submit pushes the claim to the adjudication boundary. The claimID, when
// supplied, keys the persisted decision for later retrieval. Submit either
// returns a completed decision or an ExhaustedError; it never drops a claim
// silently.
func (c *Client) Submit(ctx context.Context, claim *models.Claim, claimID string) (*models.AdjudicationResult, error) {
	body, err := json.Marshal(claim)
	if err != nil {
		return nil, err
	}

	envelope := SubmissionEnvelope{IdempotencyKey: models.IdempotencyKey(claim)}

	var result *models.AdjudicationResult
	operation := func() error {
		envelope.CorrelationID = uuid.NewRandom().String()
		envelope.AttemptCount++

		var attemptErr error
		result, attemptErr = c.send(ctx, body, claimID, envelope)
		if attemptErr != nil && c.logger != nil {
			c.logger.WithFields(logrus.Fields{
				"correlation_id":  envelope.CorrelationID,
				"idempotency_key": envelope.IdempotencyKey,
				"attempt":         envelope.AttemptCount,
			}).WithError(attemptErr).Warn("claim submission attempt failed")
		}
		return attemptErr
	}

	schedule := &fixedSchedule{delays: c.schedule}
	if err := backoff.Retry(operation, backoff.WithContext(schedule, ctx)); err != nil {
		return nil, &ExhaustedError{Attempts: envelope.AttemptCount, Err: err}
	}

	return result, nil
}

func (c *Client) send(ctx context.Context, body []byte, claimID string, envelope SubmissionEnvelope) (*models.AdjudicationResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.adjudicateURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", envelope.CorrelationID)
	req.Header.Set("X-Idempotency-Key", envelope.IdempotencyKey)
	if claimID != "" {
		req.Header.Set("X-Claim-Id", claimID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("adjudication endpoint returned status %d", resp.StatusCode)
	}

	var result models.AdjudicationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	return &result, nil
}
