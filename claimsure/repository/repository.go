// Package repository contains all of the methods needed to interact with
// the claimsure reference and decision data.
package repository

import (
	"context"
	"errors"

	"github.com/claimsure/claimsure-app/claimsure/models"
)

type Repository interface {
	policyRepository
	catalogRepository
	usageRepository
	decisionRepository
}

type policyRepository interface {
	// GetPolicyByPatientSSN returns ErrPolicyNotFound when no policy covers
	// the patient.
	GetPolicyByPatientSSN(ctx context.Context, ssn string) (*models.PolicyRecord, error)
}

type catalogRepository interface {
	GetProcedureCatalog(ctx context.Context) ([]*models.ProcedureCatalogEntry, error)

	// UpsertProcedure inserts or refreshes a catalog entry by canonical name.
	UpsertProcedure(ctx context.Context, entry models.ProcedureCatalogEntry) error
}

type usageRepository interface {
	// GetUsage returns 0 when no row exists for the key.
	GetUsage(ctx context.Context, ssn, category string, year int) (int, error)

	// ConsumeIfUnderLimit atomically increments the usage counter iff the
	// current count is below limit. It reports whether the unit was consumed
	// and the count the operation observed: the pre-increment count when
	// consumed, the current count when the gate held. The compare and the
	// increment are a single statement so concurrent adjudications on the
	// same key cannot lose updates.
	ConsumeIfUnderLimit(ctx context.Context, ssn, category string, year, limit int) (bool, int, error)

	// IncrementUsage adds delta unconditionally (backfills, corrections).
	IncrementUsage(ctx context.Context, ssn, category string, year, delta int) error
}

type decisionRepository interface {
	// CreateDecision persists an adjudication outcome. A duplicate
	// idempotency key returns ErrDuplicateDecision and leaves the stored
	// decision untouched.
	CreateDecision(ctx context.Context, decision models.Decision) error

	GetDecisionByClaimID(ctx context.Context, claimID string) (*models.Decision, error)

	GetDecisionByIdempotencyKey(ctx context.Context, key string) (*models.Decision, error)
}

var (
	ErrPolicyNotFound    = errors.New("no policy found for given patient")
	ErrDecisionNotFound  = errors.New("no decision found for given id")
	ErrDuplicateDecision = errors.New("decision already recorded for idempotency key")
)
