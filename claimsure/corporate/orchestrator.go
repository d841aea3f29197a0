package corporate

import (
	"context"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/sirupsen/logrus"
)

// Orchestrator consults the corporate collaborator when a claim carries a
// suspected work-accident flag and merges the verdict into a payer
// assignment. A collaborator failure never fails the adjudication: the
// configured fail-safe payer is applied and the error recorded in the
// corporate metadata. Defaulting to the patient on failure is business
// policy, configurable via CORPORATE_FAILSAFE_PAYER.
type Orchestrator struct {
	client   DecideClient
	failsafe models.Payer
	logger   logrus.FieldLogger
}

func NewOrchestrator(client DecideClient, failsafe models.Payer, logger logrus.FieldLogger) *Orchestrator {
	if failsafe == "" {
		failsafe = models.PayerPatient
	}
	return &Orchestrator{client: client, failsafe: failsafe, logger: logger}
}

func (o *Orchestrator) MaybeOverridePayer(ctx context.Context, claim *models.Claim, policyID string) (models.Payer, *models.CorporateMeta) {
	flag := claim.WorkAccident
	if flag == nil || !flag.Suspected {
		return models.PayerPatient, nil
	}

	decision, err := o.client.Decide(ctx, DecideRequest{
		PolicyID:     policyID,
		WorkAccident: *flag,
		Patient:      map[string]string{"ssn_last4": claim.SSNLast4(), "full_name": claim.FullName},
		Context:      map[string]string{"hospital": claim.HospitalName, "date_of_service": claim.DateOfService.String()},
	})
	if err != nil {
		if o.logger != nil {
			o.logger.WithError(err).Warn("corporate decision unavailable, applying fail-safe payer")
		}
		return o.failsafe, &models.CorporateMeta{Error: err.Error()}
	}

	payer := models.PayerPatient
	if decision.IsWorkAccident {
		payer = models.PayerCorporation
	}

	if o.logger != nil {
		o.logger.WithFields(logrus.Fields{
			"decision_id":      decision.DecisionID,
			"is_work_accident": decision.IsWorkAccident,
			"payer":            payer,
		}).Info("corporate decision merged")
	}

	return payer, &models.CorporateMeta{Decision: decision}
}
