package omop

// Table describes the columns of an OMOP CDM table the engine reads.
// Empty column names mean the table has no such column.
type Table struct {
	Name        string
	PersonID    string
	ConceptID   string
	EventDate   string
	Value       string // value_as_number
	TypeConcept string // secondary modifier column
}

var (
	Person = Table{
		Name:     "person",
		PersonID: "person_id",
	}
	ConditionOccurrence = Table{
		Name:        "condition_occurrence",
		PersonID:    "person_id",
		ConceptID:   "condition_concept_id",
		EventDate:   "condition_start_date",
		TypeConcept: "condition_type_concept_id",
	}
	DrugExposure = Table{
		Name:      "drug_exposure",
		PersonID:  "person_id",
		ConceptID: "drug_concept_id",
		EventDate: "drug_exposure_start_date",
	}
	MeasurementTable = Table{
		Name:      "measurement",
		PersonID:  "person_id",
		ConceptID: "measurement_concept_id",
		EventDate: "measurement_date",
		Value:     "value_as_number",
	}
	ObservationTable = Table{
		Name:      "observation",
		PersonID:  "person_id",
		ConceptID: "observation_concept_id",
		EventDate: "observation_date",
		Value:     "value_as_number",
	}
	ProcedureOccurrence = Table{
		Name:      "procedure_occurrence",
		PersonID:  "person_id",
		ConceptID: "procedure_concept_id",
		EventDate: "procedure_date",
	}
	ConceptTable = Table{
		Name:      "concept",
		ConceptID: "concept_id",
	}
)

// Person columns used by rules and distributions.
const (
	BirthDatetime = "birth_datetime"
	ConceptName   = "concept_name"
	DomainID      = "domain_id"
)

// Concept is a row of the vocabulary concept table. Reference data, never written.
type Concept struct {
	ConceptID   int64
	DomainID    string
	ConceptName string
}
