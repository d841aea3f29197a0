package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	goerrors "errors"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/claimsure/repository"
	"github.com/claimsure/claimsure-app/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/pborman/uuid"
	"github.com/sirupsen/logrus"
)

// ClaimAdjudicator runs the rule engine for one claim.
type ClaimAdjudicator interface {
	Adjudicate(ctx context.Context, claim *models.Claim, writeUsage bool) (*models.AdjudicationResult, error)
}

// DecisionStore persists and retrieves adjudication outcomes.
type DecisionStore interface {
	CreateDecision(ctx context.Context, decision models.Decision) error
	GetDecisionByClaimID(ctx context.Context, claimID string) (*models.Decision, error)
	GetDecisionByIdempotencyKey(ctx context.Context, key string) (*models.Decision, error)
}

type API struct {
	Adjudicator ClaimAdjudicator
	Decisions   DecisionStore
	DB          *sql.DB

	validate *validator.Validate
}

func NewAPI(adjudicator ClaimAdjudicator, decisions DecisionStore, db *sql.DB) *API {
	return &API{
		Adjudicator: adjudicator,
		Decisions:   decisions,
		DB:          db,
		validate:    validator.New(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

// Adjudicate handles POST /api/v1/claims/adjudicate. Malformed or invalid
// claims are rejected here, before the rule engine. With ?write_usage=true
// the run consumes annual allowances and the decision is persisted; a
// replayed submission short-circuits to the stored decision without
// re-running the engine. The idempotency key is always derived from the
// claim content so changed content can never be served a stale decision;
// the X-Idempotency-Key header is advisory only.
func (a *API) Adjudicate(w http.ResponseWriter, r *http.Request) {
	var claim models.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid claim payload: "+err.Error())
		return
	}
	if err := a.validate.Struct(&claim); err != nil {
		renderError(w, r, http.StatusBadRequest, "claim failed validation: "+err.Error())
		return
	}

	writeUsage := r.URL.Query().Get("write_usage") == "true"

	idempotencyKey := models.IdempotencyKey(&claim)
	if header := r.Header.Get("X-Idempotency-Key"); header != "" && header != idempotencyKey {
		log.API.WithFields(logrus.Fields{
			"header_key":   header,
			"computed_key": idempotencyKey,
		}).Warn("idempotency key header does not match claim content; using computed key")
	}

	if writeUsage {
		stored, err := a.Decisions.GetDecisionByIdempotencyKey(r.Context(), idempotencyKey)
		if err == nil {
			log.API.WithField("idempotency_key", idempotencyKey).
				Info("duplicate submission short-circuited to stored decision")
			render.JSON(w, r, stored.Result)
			return
		}
		if !goerrors.Is(err, repository.ErrDecisionNotFound) {
			renderError(w, r, http.StatusInternalServerError, "decision lookup failed")
			return
		}
	}

	result, err := a.Adjudicator.Adjudicate(r.Context(), &claim, writeUsage)
	if err != nil {
		log.API.WithError(err).Error("adjudication failed")
		renderError(w, r, http.StatusBadGateway, "adjudication failed: "+err.Error())
		return
	}

	if writeUsage {
		claimID := r.Header.Get("X-Claim-Id")
		if claimID == "" {
			claimID = uuid.NewRandom().String()
		}

		err := a.Decisions.CreateDecision(r.Context(), models.Decision{
			ClaimID:        claimID,
			IdempotencyKey: idempotencyKey,
			Result:         *result,
		})
		if goerrors.Is(err, repository.ErrDuplicateDecision) {
			// Lost a race with a concurrent replay; the stored decision wins.
			if stored, lookupErr := a.Decisions.GetDecisionByIdempotencyKey(r.Context(), idempotencyKey); lookupErr == nil {
				render.JSON(w, r, stored.Result)
				return
			}
		} else if err != nil {
			// The decision stands; only the audit record is missing.
			log.API.WithError(err).Error("failed to persist decision")
		}
	}

	render.JSON(w, r, result)
}

// GetDecision handles GET /api/v1/decisions/{claimID}.
func (a *API) GetDecision(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")

	decision, err := a.Decisions.GetDecisionByClaimID(r.Context(), claimID)
	if err != nil {
		if goerrors.Is(err, repository.ErrDecisionNotFound) {
			renderError(w, r, http.StatusNotFound, "no decision found for claim "+claimID)
			return
		}
		renderError(w, r, http.StatusInternalServerError, "decision lookup failed")
		return
	}

	render.JSON(w, r, decision.Result)
}

// HealthCheck handles GET /_health.
func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"api": "ok"}

	if a.DB != nil {
		if err := a.DB.PingContext(r.Context()); err != nil {
			status["database"] = "error"
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, status)
			return
		}
		status["database"] = "ok"
	}

	render.JSON(w, r, status)
}
