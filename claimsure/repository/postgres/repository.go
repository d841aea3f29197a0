package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/claimsure/repository"
	"github.com/huandu/go-sqlbuilder"
)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	sqlFlavor = sqlbuilder.PostgreSQL
)

// Ensure Repository satisfies the interface
var _ repository.Repository = &Repository{}

type Repository struct {
	queryable
	executable
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db, db}
}

func NewRepositoryTx(tx *sql.Tx) *Repository {
	return &Repository{tx, tx}
}

func (r *Repository) GetPolicyByPatientSSN(ctx context.Context, ssn string) (*models.PolicyRecord, error) {
	sb := sqlFlavor.NewSelectBuilder().
		Select("policy_id", "patient_ssn", "active_from", "active_to", "limits", "coverage").
		From("policies")
	sb.Where(sb.Equal("patient_ssn", ssn))

	query, args := sb.Build()
	row := r.QueryRowContext(ctx, query, args...)

	var (
		policy               models.PolicyRecord
		activeFrom, activeTo sql.NullTime
		limits, coverage     []byte
	)
	err := row.Scan(&policy.PolicyID, &policy.PatientSSN, &activeFrom, &activeTo, &limits, &coverage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrPolicyNotFound
		}
		return nil, err
	}

	if activeFrom.Valid && activeTo.Valid {
		policy.Eligibility = &models.EligibilityWindow{
			ActiveFrom: models.Date{Time: activeFrom.Time},
			ActiveTo:   models.Date{Time: activeTo.Time},
		}
	}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &policy.Limits); err != nil {
			return nil, err
		}
	}
	policy.Coverage = coverage

	return &policy, nil
}

func (r *Repository) GetProcedureCatalog(ctx context.Context) ([]*models.ProcedureCatalogEntry, error) {
	sb := sqlFlavor.NewSelectBuilder().
		Select("name", "category", "reference_price", "COALESCE(aliases, '[]')").
		From("procedure_catalog")
	sb.OrderBy("name")

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ProcedureCatalogEntry
	for rows.Next() {
		var (
			entry   models.ProcedureCatalogEntry
			aliases []byte
		)
		if err := rows.Scan(&entry.Name, &entry.Category, &entry.ReferencePrice, &aliases); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(aliases, &entry.Aliases); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (r *Repository) UpsertProcedure(ctx context.Context, entry models.ProcedureCatalogEntry) error {
	aliases, err := json.Marshal(entry.Aliases)
	if err != nil {
		return err
	}

	query := `INSERT INTO procedure_catalog (name, category, reference_price, aliases)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			category = excluded.category,
			reference_price = excluded.reference_price,
			aliases = excluded.aliases`
	_, err = r.ExecContext(ctx, query, entry.Name, entry.Category, entry.ReferencePrice, aliases)
	return err
}

func (r *Repository) GetUsage(ctx context.Context, ssn, category string, year int) (int, error) {
	sb := sqlFlavor.NewSelectBuilder().Select("used_count").From("usage_records")
	sb.Where(sb.Equal("patient_ssn", ssn), sb.Equal("category", category), sb.Equal("year", year))

	query, args := sb.Build()
	var used int
	if err := r.QueryRowContext(ctx, query, args...).Scan(&used); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return used, nil
}

// ConsumeIfUnderLimit performs the limit compare and the increment in a
// single conditional upsert; concurrent callers on the same key serialize on
// the row and cannot lose updates or overshoot the limit. The returned count
// is the one the statement itself observed, so audit output cannot drift
// from the consume decision.
func (r *Repository) ConsumeIfUnderLimit(ctx context.Context, ssn, category string, year, limit int) (bool, int, error) {
	if limit <= 0 {
		return false, 0, nil
	}

	query := `INSERT INTO usage_records (patient_ssn, category, year, used_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (patient_ssn, category, year)
		DO UPDATE SET used_count = usage_records.used_count + 1
		WHERE usage_records.used_count < $4
		RETURNING used_count`

	var count int
	err := r.QueryRowContext(ctx, query, ssn, category, year, limit).Scan(&count)
	if err == nil {
		return true, count - 1, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, 0, err
	}

	// The gate held; read the current count for audit output only.
	used, err := r.GetUsage(ctx, ssn, category, year)
	if err != nil {
		return false, 0, err
	}
	return false, used, nil
}

func (r *Repository) IncrementUsage(ctx context.Context, ssn, category string, year, delta int) error {
	query := `INSERT INTO usage_records (patient_ssn, category, year, used_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_ssn, category, year)
		DO UPDATE SET used_count = usage_records.used_count + $4`
	_, err := r.ExecContext(ctx, query, ssn, category, year, delta)
	return err
}

func (r *Repository) CreateDecision(ctx context.Context, decision models.Decision) error {
	result, err := json.Marshal(decision.Result)
	if err != nil {
		return err
	}

	query := `INSERT INTO decisions (claim_id, idempotency_key, result)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	res, err := r.ExecContext(ctx, query, decision.ClaimID, decision.IdempotencyKey, result)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrDuplicateDecision
	}

	return nil
}

func (r *Repository) GetDecisionByClaimID(ctx context.Context, claimID string) (*models.Decision, error) {
	sb := r.decisionSelect()
	sb.Where(sb.Equal("claim_id", claimID))
	return r.scanDecision(ctx, sb)
}

func (r *Repository) GetDecisionByIdempotencyKey(ctx context.Context, key string) (*models.Decision, error) {
	sb := r.decisionSelect()
	sb.Where(sb.Equal("idempotency_key", key))
	return r.scanDecision(ctx, sb)
}

func (r *Repository) decisionSelect() *sqlbuilder.SelectBuilder {
	return sqlFlavor.NewSelectBuilder().
		Select("id", "claim_id", "idempotency_key", "result", "created_at").
		From("decisions")
}

func (r *Repository) scanDecision(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*models.Decision, error) {
	query, args := sb.Build()
	row := r.QueryRowContext(ctx, query, args...)

	var (
		decision models.Decision
		result   []byte
	)
	err := row.Scan(&decision.ID, &decision.ClaimID, &decision.IdempotencyKey, &result, &decision.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrDecisionNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(result, &decision.Result); err != nil {
		return nil, err
	}

	return &decision, nil
}
