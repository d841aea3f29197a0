// Package adjudicator implements the claim adjudication rule engine:
// eligibility checks, tiered coverage, annual limit enforcement, and
// result aggregation.
package adjudicator

import (
	"context"
	"fmt"
	"math"

	goerrors "errors"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/claimsure/repository"
	"github.com/claimsure/claimsure-app/claimsure/resolver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	ReasonPolicyNotFound     = "Policy not found"
	ReasonMissingEligibility = "Missing eligibility period"
	ReasonOutOfEligibility   = "Out of eligibility window"
)

// PolicySource loads the patient's policy; read fresh on every adjudication.
type PolicySource interface {
	GetPolicyByPatientSSN(ctx context.Context, ssn string) (*models.PolicyRecord, error)
}

// ProcedureResolver maps a free-text line to a canonical catalog entry.
type ProcedureResolver interface {
	Resolve(ctx context.Context, freeText string) (*resolver.Match, error)
}

// UsageLedger is the only mutable shared state the engine touches. The gate
// against the annual limit and the increment must be one atomic operation
// that also reports the count it observed.
type UsageLedger interface {
	GetUsage(ctx context.Context, ssn, category string, year int) (int, error)
	ConsumeIfUnderLimit(ctx context.Context, ssn, category string, year, limit int) (bool, int, error)
}

// PayerOverride decides whether a corporation rather than the patient is
// liable; consulted once per claim when a work accident is suspected.
type PayerOverride interface {
	MaybeOverridePayer(ctx context.Context, claim *models.Claim, policyID string) (models.Payer, *models.CorporateMeta)
}

type Adjudicator struct {
	policies PolicySource
	resolver ProcedureResolver
	ledger   UsageLedger
	override PayerOverride
	logger   logrus.FieldLogger
}

func New(policies PolicySource, procedures ProcedureResolver, ledger UsageLedger,
	override PayerOverride, logger logrus.FieldLogger) *Adjudicator {
	return &Adjudicator{
		policies: policies,
		resolver: procedures,
		ledger:   ledger,
		override: override,
		logger:   logger,
	}
}

// Adjudicate produces the payment decision for one claim. When writeUsage is
// false the run is a preview and the usage ledger is never mutated. The
// returned result is always well formed for well-formed input; ineligible
// claims are reported through Reason, not an error.
func (a *Adjudicator) Adjudicate(ctx context.Context, claim *models.Claim, writeUsage bool) (*models.AdjudicationResult, error) {
	policy, err := a.policies.GetPolicyByPatientSSN(ctx, claim.PatientSSN)
	if err != nil {
		if goerrors.Is(err, repository.ErrPolicyNotFound) {
			return &models.AdjudicationResult{
				Eligible:      false,
				Reason:        ReasonPolicyNotFound,
				Items:         []models.AdjudicatedItem{},
				Payer:         models.PayerPatient,
				PrettyMessage: "No policy found for the given SSN.",
			}, nil
		}
		return nil, errors.Wrap(err, "policy lookup failed")
	}

	if policy.Eligibility == nil {
		return ineligible(policy.PolicyID, ReasonMissingEligibility,
			"Eligibility period is missing on the policy."), nil
	}
	if !policy.Eligibility.Contains(claim.DateOfService) {
		return ineligible(policy.PolicyID, ReasonOutOfEligibility,
			"Service date is outside policy eligibility window."), nil
	}

	year := claim.ServiceYear()

	var (
		items                 []models.AdjudicatedItem
		totalPayable          float64
		totalPatientOnAllowed float64
		totalBalanceBill      float64
		prettyLines           []string
	)

	// Lines are processed sequentially: a later line's limit check depends
	// on usage this claim's earlier lines may have just consumed.
	for _, line := range claim.Lines {
		match, err := a.resolver.Resolve(ctx, line.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot resolve procedure %q", line.Name)
		}

		allowed := math.Min(line.Billed, match.ReferencePrice)

		limit, limited := policy.AnnualLimit(match.Category)

		var used int
		limitReached := false
		if limited {
			if writeUsage {
				// Gate and increment in one atomic ledger operation; the
				// count it observed feeds the audit note.
				consumed, observed, err := a.ledger.ConsumeIfUnderLimit(ctx, claim.PatientSSN, match.Category, year, limit)
				if err != nil {
					return nil, errors.Wrap(err, "usage increment failed")
				}
				used = observed
				limitReached = !consumed
			} else {
				if used, err = a.ledger.GetUsage(ctx, claim.PatientSSN, match.Category, year); err != nil {
					return nil, errors.Wrap(err, "usage lookup failed")
				}
				limitReached = limit-used <= 0
			}
		}

		var payable float64
		var note string
		if limitReached {
			// Insurer pays $0 once the limit is hit; the patient owes the
			// entire allowed amount.
			payable = 0
			note = fmt.Sprintf("LIMIT REACHED for '%s'. Insurer pays $0; patient owes the allowed amount. (used=%d/%d)",
				match.Category, used, limit)
		} else {
			payable = TieredCoverage(allowed)
			if limited {
				note = fmt.Sprintf("Matched to '%s' (ref %g). Usage %d/%d this year.",
					match.CanonicalName, match.ReferencePrice, used, limit)
			} else {
				note = fmt.Sprintf("Matched to '%s' (ref %g).", match.CanonicalName, match.ReferencePrice)
			}
		}

		patientOnAllowed := math.Max(0, allowed-payable)
		balanceBill := math.Max(0, line.Billed-allowed)

		totalPayable += payable
		totalPatientOnAllowed += patientOnAllowed
		totalBalanceBill += balanceBill

		items = append(items, models.AdjudicatedItem{
			ClaimName:     line.Name,
			MatchedName:   match.CanonicalName,
			Category:      match.Category,
			Billed:        line.Billed,
			RefPrice:      match.ReferencePrice,
			AllowedAmount: allowed,
			PayableAmount: payable,
			Notes:         note + "\n" + match.Trace,
		})

		prettyLines = append(prettyLines, itemLines(line, match, allowed, payable,
			patientOnAllowed, balanceBill, used, limit, limited, limitReached)...)
	}

	result := &models.AdjudicationResult{
		PolicyID:      policy.PolicyID,
		Eligible:      true,
		Items:         items,
		TotalPayable:  round2(totalPayable),
		Payer:         models.PayerPatient,
		PrettyMessage: prettyMessage(claim, prettyLines, totalPayable, totalPatientOnAllowed, totalBalanceBill),
	}

	if a.override != nil {
		result.Payer, result.CorporateMeta = a.override.MaybeOverridePayer(ctx, claim, policy.PolicyID)
	}

	if a.logger != nil {
		a.logger.WithFields(logrus.Fields{
			"policy_id":     policy.PolicyID,
			"lines":         len(items),
			"total_payable": result.TotalPayable,
			"payer":         result.Payer,
			"write_usage":   writeUsage,
		}).Info("claim adjudicated")
	}

	return result, nil
}

func ineligible(policyID, reason, pretty string) *models.AdjudicationResult {
	return &models.AdjudicationResult{
		PolicyID:      policyID,
		Eligible:      false,
		Reason:        reason,
		Items:         []models.AdjudicatedItem{},
		Payer:         models.PayerPatient,
		PrettyMessage: pretty,
	}
}
