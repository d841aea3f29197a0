package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2025, time.March, 14)

	data, err := json.Marshal(d)
	assert.NoError(t, err)
	assert.Equal(t, `"2025-03-14"`, string(data))

	var parsed Date
	assert.NoError(t, json.Unmarshal(data, &parsed))
	assert.True(t, d.Equal(parsed.Time))
}

func TestDateUnmarshalRejectsGarbage(t *testing.T) {
	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"14/03/2025"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`42`), &d))
}

func TestEligibilityWindowInclusiveBounds(t *testing.T) {
	window := EligibilityWindow{
		ActiveFrom: NewDate(2025, time.January, 1),
		ActiveTo:   NewDate(2025, time.December, 31),
	}

	assert.False(t, window.Contains(NewDate(2024, time.December, 31)))
	assert.True(t, window.Contains(NewDate(2025, time.January, 1)))
	assert.True(t, window.Contains(NewDate(2025, time.June, 15)))
	assert.True(t, window.Contains(NewDate(2025, time.December, 31)))
	assert.False(t, window.Contains(NewDate(2026, time.January, 1)))
}

func TestClaimSSNLast4(t *testing.T) {
	claim := &Claim{PatientSSN: "123-45-6789"}
	assert.Equal(t, "6789", claim.SSNLast4())

	short := &Claim{PatientSSN: "89"}
	assert.Equal(t, "89", short.SSNLast4())
}

func TestPolicyAnnualLimit(t *testing.T) {
	policy := &PolicyRecord{Limits: map[string]int{"imaging": 2}}

	limit, ok := policy.AnnualLimit("imaging")
	assert.True(t, ok)
	assert.Equal(t, 2, limit)

	_, ok = policy.AnnualLimit("er_visit")
	assert.False(t, ok)
}

func TestCatalogEntryDocumentText(t *testing.T) {
	entry := &ProcedureCatalogEntry{
		Name:           "x_ray_forearm",
		Category:       "imaging",
		ReferencePrice: 250,
		Aliases:        []string{"X-ray forearm", "forearm xray"},
	}

	assert.Equal(t,
		"x_ray_forearm | category: imaging | price: 250 | aliases: X-ray forearm, forearm xray",
		entry.DocumentText())
}
