// Package models contains the domain entities shared across the claimsure app.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date (no time component) serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(value string) (Date, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return fmt.Errorf("invalid date %q: %v", raw, err)
	}
	*d = parsed
	return nil
}

// ClaimLine is a single billed procedure on a claim. Name may be free text
// or a canonical catalog label.
type ClaimLine struct {
	Name   string  `json:"name" validate:"required"`
	Billed float64 `json:"billed" validate:"gte=0"`
}

// WorkAccidentFlag is attached by the hospital when a workplace injury is
// suspected; its presence triggers the corporate payer override.
type WorkAccidentFlag struct {
	Suspected       bool       `json:"suspected"`
	Narrative       string     `json:"narrative,omitempty"`
	Location        string     `json:"location,omitempty"`
	DuringWorkHours *bool      `json:"during_work_hours,omitempty"`
	SickLeaveDays   *int       `json:"sick_leave_days,omitempty"`
	HappenedAt      *time.Time `json:"happened_at,omitempty"`
}

// Claim is immutable once handed to the submission transport; the
// adjudicator never mutates the claim it receives.
type Claim struct {
	FullName      string            `json:"full_name" validate:"required"`
	PatientSSN    string            `json:"patient_ssn" validate:"required"`
	HospitalName  string            `json:"hospital_name" validate:"required"`
	DateOfService Date              `json:"date_of_service" validate:"required"`
	Diagnosis     string            `json:"diagnosis" validate:"required"`
	Lines         []ClaimLine       `json:"procedures" validate:"required,min=1,dive"`
	WorkAccident  *WorkAccidentFlag `json:"work_accident,omitempty"`
}

// ServiceYear is the year annual usage limits are tracked against.
func (c *Claim) ServiceYear() int {
	return c.DateOfService.Year()
}

// SSNLast4 is the only form of the SSN that may appear in any
// human-readable output.
func (c *Claim) SSNLast4() string {
	if len(c.PatientSSN) < 4 {
		return c.PatientSSN
	}
	return c.PatientSSN[len(c.PatientSSN)-4:]
}

// EligibilityWindow bounds policy coverage; both dates are inclusive.
type EligibilityWindow struct {
	ActiveFrom Date `json:"active_from"`
	ActiveTo   Date `json:"active_to"`
}

func (w *EligibilityWindow) Contains(d Date) bool {
	day := d.Truncate(24 * time.Hour)
	return !day.Before(w.ActiveFrom.Time) && !day.After(w.ActiveTo.Time)
}

// PolicyRecord is read-only reference data, loaded fresh per adjudication.
// Limits maps a procedure category to its annual cap; a missing category
// means unlimited.
type PolicyRecord struct {
	PolicyID    string             `json:"policy_id"`
	PatientSSN  string             `json:"patient_ssn"`
	Eligibility *EligibilityWindow `json:"eligibility,omitempty"`
	Limits      map[string]int     `json:"limits,omitempty"`
	Coverage    json.RawMessage    `json:"coverage,omitempty"`
}

// AnnualLimit returns the cap for a category and whether one exists.
func (p *PolicyRecord) AnnualLimit(category string) (int, bool) {
	limit, ok := p.Limits[category]
	return limit, ok
}

// ProcedureCatalogEntry is the authoritative name/category/price triple a
// free-text line resolves to.
type ProcedureCatalogEntry struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	ReferencePrice float64  `json:"reference_price"`
	Aliases        []string `json:"aliases,omitempty"`
}

// DocumentText is the flattened representation the semantic index is
// seeded with.
func (e *ProcedureCatalogEntry) DocumentText() string {
	return fmt.Sprintf("%s | category: %s | price: %g | aliases: %s",
		e.Name, e.Category, e.ReferencePrice, strings.Join(e.Aliases, ", "))
}

// UsageRecord tracks annual consumption; keyed by (patient, category, year).
// UsedCount only ever grows.
type UsageRecord struct {
	PatientSSN string `json:"patient_ssn"`
	Category   string `json:"category"`
	Year       int    `json:"year"`
	UsedCount  int    `json:"used_count"`
}

// AdjudicatedItem is the per-line outcome; produced once, never mutated.
type AdjudicatedItem struct {
	ClaimName     string  `json:"claim_name"`
	MatchedName   string  `json:"matched_name"`
	Category      string  `json:"category"`
	Billed        float64 `json:"billed"`
	RefPrice      float64 `json:"ref_price"`
	AllowedAmount float64 `json:"allowed_amount"`
	PayableAmount float64 `json:"payable_amount"`
	Notes         string  `json:"notes"`
}

type Payer string

const (
	PayerPatient     Payer = "patient"
	PayerCorporation Payer = "corporation"
)

// PolicyClause is one evaluated clause in a corporate work-accident verdict.
type PolicyClause struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Verdict string `json:"verdict"`
}

// CorporateDecision is the corporate collaborator's verdict on whether the
// incident qualifies as a work accident.
type CorporateDecision struct {
	DecisionID     string          `json:"decision_id"`
	IsWorkAccident bool            `json:"is_work_accident"`
	Reason         string          `json:"reason"`
	Confidence     float64         `json:"confidence,omitempty"`
	Evidence       json.RawMessage `json:"evidence,omitempty"`
	PolicyClauses  []PolicyClause  `json:"policy_clauses,omitempty"`
}

// CorporateMeta records the override outcome on the final decision. Error is
// set when the collaborator could not be reached and the fail-safe payer
// was applied.
type CorporateMeta struct {
	Decision *CorporateDecision `json:"decision,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// AdjudicationResult is the terminal, immutable output of one adjudication
// run. The caller always receives a well-formed result; ineligible claims
// carry a machine-readable Reason instead of an error.
type AdjudicationResult struct {
	PolicyID      string            `json:"policy_id,omitempty"`
	Eligible      bool              `json:"eligible"`
	Reason        string            `json:"reason,omitempty"`
	Items         []AdjudicatedItem `json:"items"`
	TotalPayable  float64           `json:"total_payable"`
	Payer         Payer             `json:"payer"`
	CorporateMeta *CorporateMeta    `json:"corporate_meta,omitempty"`
	PrettyMessage string            `json:"pretty_message"`
}

// Decision is a persisted adjudication outcome, retrievable by the claim id
// the hospital supplied. IdempotencyKey dedupes replayed submissions.
type Decision struct {
	ID             uint
	ClaimID        string
	IdempotencyKey string
	Result         AdjudicationResult
	CreatedAt      time.Time
}
