package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/claimsure/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type stubEngine struct {
	result     *models.AdjudicationResult
	err        error
	calls      int
	writeUsage bool
}

func (s *stubEngine) Adjudicate(ctx context.Context, claim *models.Claim, writeUsage bool) (*models.AdjudicationResult, error) {
	s.calls++
	s.writeUsage = writeUsage
	return s.result, s.err
}

type memDecisionStore struct {
	byClaimID map[string]*models.Decision
	byKey     map[string]*models.Decision
	createErr error
}

func newMemDecisionStore() *memDecisionStore {
	return &memDecisionStore{
		byClaimID: make(map[string]*models.Decision),
		byKey:     make(map[string]*models.Decision),
	}
}

func (m *memDecisionStore) CreateDecision(ctx context.Context, decision models.Decision) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byKey[decision.IdempotencyKey]; ok {
		return repository.ErrDuplicateDecision
	}
	stored := decision
	m.byClaimID[decision.ClaimID] = &stored
	m.byKey[decision.IdempotencyKey] = &stored
	return nil
}

func (m *memDecisionStore) GetDecisionByClaimID(ctx context.Context, claimID string) (*models.Decision, error) {
	if d, ok := m.byClaimID[claimID]; ok {
		return d, nil
	}
	return nil, repository.ErrDecisionNotFound
}

func (m *memDecisionStore) GetDecisionByIdempotencyKey(ctx context.Context, key string) (*models.Decision, error) {
	if d, ok := m.byKey[key]; ok {
		return d, nil
	}
	return nil, repository.ErrDecisionNotFound
}

type APITestSuite struct {
	suite.Suite
	engine *stubEngine
	store  *memDecisionStore
	server *httptest.Server
}

func (s *APITestSuite) SetupTest() {
	s.engine = &stubEngine{result: &models.AdjudicationResult{
		PolicyID:     "POL-1001",
		Eligible:     true,
		Items:        []models.AdjudicatedItem{},
		TotalPayable: 600,
		Payer:        models.PayerPatient,
	}}
	s.store = newMemDecisionStore()
	s.server = httptest.NewServer(NewAPIRouter(NewAPI(s.engine, s.store, nil)))
}

func (s *APITestSuite) TearDownTest() {
	s.server.Close()
}

func validClaim() models.Claim {
	return models.Claim{
		FullName:      "Jane Doe",
		PatientSSN:    "123-45-6789",
		HospitalName:  "General Hospital",
		DateOfService: models.NewDate(2025, time.June, 1),
		Diagnosis:     "fracture",
		Lines:         []models.ClaimLine{{Name: "X-ray forearm", Billed: 300}},
	}
}

func validClaimBody() []byte {
	claim := validClaim()
	body, _ := json.Marshal(claim)
	return body
}

func (s *APITestSuite) postClaim(query string, body []byte, headers map[string]string) *http.Response {
	url := s.server.URL + "/api/v1/claims/adjudicate" + query
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	assert.NoError(s.T(), err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.server.Client().Do(req)
	assert.NoError(s.T(), err)
	return resp
}

func (s *APITestSuite) TestAdjudicateMalformedPayload() {
	resp := s.postClaim("", []byte("{not json"), nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
	assert.Zero(s.T(), s.engine.calls)
}

func (s *APITestSuite) TestAdjudicateValidationFailure() {
	claim := map[string]interface{}{
		"patient_ssn":     "123-45-6789",
		"hospital_name":   "General Hospital",
		"date_of_service": "2025-06-01",
		"diagnosis":       "fracture",
		"procedures":      []map[string]interface{}{{"name": "X-ray forearm", "billed": 300}},
	}
	body, _ := json.Marshal(claim)

	resp := s.postClaim("", body, nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusBadRequest, resp.StatusCode)
	assert.Zero(s.T(), s.engine.calls)
}

func (s *APITestSuite) TestAdjudicateDryRun() {
	resp := s.postClaim("", validClaimBody(), nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), 1, s.engine.calls)
	assert.False(s.T(), s.engine.writeUsage)
	assert.Empty(s.T(), s.store.byKey)

	var result models.AdjudicationResult
	assert.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(s.T(), 600.0, result.TotalPayable)
}

func (s *APITestSuite) TestAdjudicateWriteUsagePersistsDecision() {
	resp := s.postClaim("?write_usage=true", validClaimBody(), map[string]string{
		"X-Claim-Id": "claim-1",
	})
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.True(s.T(), s.engine.writeUsage)

	claim := validClaim()
	stored, err := s.store.GetDecisionByClaimID(context.Background(), "claim-1")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), models.IdempotencyKey(&claim), stored.IdempotencyKey)
	assert.Equal(s.T(), 600.0, stored.Result.TotalPayable)
}

func (s *APITestSuite) TestAdjudicateGeneratesClaimIDWhenAbsent() {
	resp := s.postClaim("?write_usage=true", validClaimBody(), nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Len(s.T(), s.store.byClaimID, 1)
	for claimID := range s.store.byClaimID {
		assert.NotEmpty(s.T(), claimID)
	}
}

func (s *APITestSuite) TestAdjudicateReplayShortCircuits() {
	claim := validClaim()
	key := models.IdempotencyKey(&claim)
	storedResult := models.AdjudicationResult{Eligible: true, TotalPayable: 123.45, Payer: models.PayerPatient}
	s.store.byKey[key] = &models.Decision{ClaimID: "claim-1", IdempotencyKey: key, Result: storedResult}

	resp := s.postClaim("?write_usage=true", validClaimBody(), nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Zero(s.T(), s.engine.calls)

	var result models.AdjudicationResult
	assert.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(s.T(), 123.45, result.TotalPayable)
}

func (s *APITestSuite) TestAdjudicateChangedContentIgnoresStaleKeyHeader() {
	// A decision exists for the original claim content. Resubmitting changed
	// content under the original key header must re-run the engine, not serve
	// the stale decision.
	original := validClaim()
	staleKey := models.IdempotencyKey(&original)
	s.store.byKey[staleKey] = &models.Decision{
		ClaimID:        "claim-1",
		IdempotencyKey: staleKey,
		Result:         models.AdjudicationResult{Eligible: true, TotalPayable: 300, Payer: models.PayerPatient},
	}

	changed := validClaim()
	changed.Lines[0].Billed = 900
	body, _ := json.Marshal(changed)

	resp := s.postClaim("?write_usage=true", body, map[string]string{
		"X-Idempotency-Key": staleKey,
	})
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), 1, s.engine.calls)

	var result models.AdjudicationResult
	assert.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(s.T(), 600.0, result.TotalPayable)

	stored, err := s.store.GetDecisionByIdempotencyKey(context.Background(), models.IdempotencyKey(&changed))
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), 600.0, stored.Result.TotalPayable)
}

func (s *APITestSuite) TestAdjudicateDryRunIgnoresStoredDecisions() {
	claim := validClaim()
	key := models.IdempotencyKey(&claim)
	s.store.byKey[key] = &models.Decision{Result: models.AdjudicationResult{TotalPayable: 1}}

	resp := s.postClaim("", validClaimBody(), nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)
	assert.Equal(s.T(), 1, s.engine.calls)
}

func (s *APITestSuite) TestAdjudicateEngineFailure() {
	s.engine.result = nil
	s.engine.err = errors.New("semantic search unavailable")

	resp := s.postClaim("", validClaimBody(), nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusBadGateway, resp.StatusCode)
}

func (s *APITestSuite) TestAdjudicatePersistFailureStillReturnsDecision() {
	s.store.createErr = errors.New("db down")

	resp := s.postClaim("?write_usage=true", validClaimBody(), nil)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result models.AdjudicationResult
	assert.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(s.T(), 600.0, result.TotalPayable)
}

func (s *APITestSuite) TestGetDecision() {
	s.store.byClaimID["claim-1"] = &models.Decision{
		ClaimID: "claim-1",
		Result:  models.AdjudicationResult{Eligible: true, TotalPayable: 600, Payer: models.PayerPatient},
	}

	resp, err := s.server.Client().Get(s.server.URL + "/api/v1/decisions/claim-1")
	assert.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var result models.AdjudicationResult
	assert.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(s.T(), 600.0, result.TotalPayable)
}

func (s *APITestSuite) TestGetDecisionNotFound() {
	resp, err := s.server.Client().Get(s.server.URL + "/api/v1/decisions/missing")
	assert.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusNotFound, resp.StatusCode)
}

func (s *APITestSuite) TestHealthCheck() {
	resp, err := s.server.Client().Get(s.server.URL + "/_health")
	assert.NoError(s.T(), err)
	defer resp.Body.Close()

	assert.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var status map[string]string
	assert.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(s.T(), "ok", status["api"])
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}
