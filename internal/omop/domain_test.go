package omop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDomain(t *testing.T) {
	tests := []struct {
		in     string
		want   Domain
		wantOK bool
	}{
		{"Condition", Condition, true},
		{"Drug", Drug, true},
		{"Measurement", Measurement, true},
		{"Observation", Observation, true},
		{"Procedure", Procedure, true},
		{"Gender", Gender, true},
		{"Race", Race, true},
		{"Ethnicity", Ethnicity, true},
		{"Visit", DomainUnknown, false},
		{"condition", DomainUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDomain(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}

func TestDomainTablesAndColumns(t *testing.T) {
	tests := []struct {
		d      Domain
		table  string
		column string
		person bool
	}{
		{Condition, "condition_occurrence", "condition_concept_id", false},
		{Drug, "drug_exposure", "drug_concept_id", false},
		{Measurement, "measurement", "measurement_concept_id", false},
		{Observation, "observation", "observation_concept_id", false},
		{Procedure, "procedure_occurrence", "procedure_concept_id", false},
		{Gender, "person", "gender_concept_id", true},
		{Race, "person", "race_concept_id", true},
		{Ethnicity, "person", "ethnicity_concept_id", true},
	}
	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			assert.Equal(t, tt.table, tt.d.Table().Name)
			assert.Equal(t, tt.column, tt.d.ConceptColumn())
			assert.Equal(t, tt.person, tt.d.IsPerson())
		})
	}
}

func TestDistributionDomainsCoverEveryDomain(t *testing.T) {
	seen := map[Domain]bool{}
	for _, d := range DistributionDomains {
		seen[d] = true
	}
	for d := Condition; d <= Ethnicity; d++ {
		assert.True(t, seen[d], "missing %s", d)
	}
	assert.Len(t, DistributionDomains, 8)
}

func TestUnknownDomainPanics(t *testing.T) {
	assert.Panics(t, func() { DomainUnknown.Table() })
	assert.Panics(t, func() { DomainUnknown.ConceptColumn() })
}
