package omop

import "fmt"

// Domain is the OMOP domain a concept is classified under.
// Only the domains the engine can query are represented.
type Domain int

const (
	DomainUnknown Domain = iota
	Condition
	Drug
	Measurement
	Observation
	Procedure
	Gender
	Race
	Ethnicity
)

// FactTables are the clinical event tables a non-person rule is tested against.
// A concept may live in any of them depending on the vocabulary version.
var FactTables = []Domain{Condition, Drug, Measurement, Observation}

// DistributionDomains is the order the generic distribution walks the domains.
var DistributionDomains = []Domain{Condition, Ethnicity, Drug, Gender, Race, Measurement, Observation, Procedure}

// ParseDomain maps a concept.domain_id value onto a Domain.
func ParseDomain(s string) (Domain, bool) {
	switch s {
	case "Condition":
		return Condition, true
	case "Drug":
		return Drug, true
	case "Measurement":
		return Measurement, true
	case "Observation":
		return Observation, true
	case "Procedure":
		return Procedure, true
	case "Gender":
		return Gender, true
	case "Race":
		return Race, true
	case "Ethnicity":
		return Ethnicity, true
	}
	return DomainUnknown, false
}

func (d Domain) String() string {
	switch d {
	case Condition:
		return "Condition"
	case Drug:
		return "Drug"
	case Measurement:
		return "Measurement"
	case Observation:
		return "Observation"
	case Procedure:
		return "Procedure"
	case Gender:
		return "Gender"
	case Race:
		return "Race"
	case Ethnicity:
		return "Ethnicity"
	}
	return "Unknown"
}

// IsPerson reports whether concepts of this domain are stored on the person row itself.
func (d Domain) IsPerson() bool {
	switch d {
	case Gender, Race, Ethnicity:
		return true
	}
	return false
}

// Table returns the table holding facts of this domain.
// Panics on DomainUnknown: callers must resolve the domain first.
func (d Domain) Table() Table {
	switch d {
	case Condition:
		return ConditionOccurrence
	case Drug:
		return DrugExposure
	case Measurement:
		return MeasurementTable
	case Observation:
		return ObservationTable
	case Procedure:
		return ProcedureOccurrence
	case Gender, Race, Ethnicity:
		return Person
	}
	panic(fmt.Sprintf("omop: no table for domain %d", int(d)))
}

// ConceptColumn returns the column that carries this domain's concept id.
func (d Domain) ConceptColumn() string {
	switch d {
	case Gender:
		return "gender_concept_id"
	case Race:
		return "race_concept_id"
	case Ethnicity:
		return "ethnicity_concept_id"
	case Condition, Drug, Measurement, Observation, Procedure:
		return d.Table().ConceptID
	}
	panic(fmt.Sprintf("omop: no concept column for domain %d", int(d)))
}
