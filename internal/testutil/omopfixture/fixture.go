// Package omopfixture builds a small OMOP CDM extract with known counts.
// The DDL and inserts are plain SQL accepted by both SQLite and PostgreSQL.
package omopfixture

import (
	"context"
	"fmt"
	"strings"
)

// Persons 1..99: 1..44 are male, 45..99 female.
const (
	Persons = 99
	Males   = 44
	Females = 55
)

// Concept ids present in the fixture.
const (
	Male               = 8507
	Female             = 8532
	White              = 8527
	Black              = 8516
	NotHispanic        = 38003564
	StrepThroat        = 28060   // condition, persons 1..30, 2020-03-01
	ViralPharyngitis   = 4112343 // condition, persons 25..50, 2021-06-01
	Acetaminophen      = 1127433 // drug, persons 40..60
	SystolicBP         = 3004249 // measurement, persons 1..20, value 100+2*id
	Smoker             = 4058286 // observation, persons 60..79
	Appendectomy       = 4230911 // procedure, persons 80..99
	EncounterDiagnosis = 32020   // condition type of StrepThroat for persons 1..10
	EHRRecord          = 32817   // condition type otherwise
)

var schema = []string{
	`CREATE TABLE concept (
		concept_id INTEGER PRIMARY KEY,
		concept_name VARCHAR(255),
		domain_id VARCHAR(20) NOT NULL
	)`,
	`CREATE TABLE person (
		person_id INTEGER PRIMARY KEY,
		gender_concept_id INTEGER NOT NULL,
		year_of_birth INTEGER NOT NULL,
		birth_datetime TIMESTAMP,
		race_concept_id INTEGER NOT NULL,
		ethnicity_concept_id INTEGER NOT NULL
	)`,
	`CREATE TABLE condition_occurrence (
		condition_occurrence_id INTEGER PRIMARY KEY,
		person_id INTEGER NOT NULL,
		condition_concept_id INTEGER NOT NULL,
		condition_start_date DATE NOT NULL,
		condition_type_concept_id INTEGER NOT NULL
	)`,
	`CREATE TABLE drug_exposure (
		drug_exposure_id INTEGER PRIMARY KEY,
		person_id INTEGER NOT NULL,
		drug_concept_id INTEGER NOT NULL,
		drug_exposure_start_date DATE NOT NULL
	)`,
	`CREATE TABLE measurement (
		measurement_id INTEGER PRIMARY KEY,
		person_id INTEGER NOT NULL,
		measurement_concept_id INTEGER NOT NULL,
		measurement_date DATE NOT NULL,
		value_as_number NUMERIC
	)`,
	`CREATE TABLE observation (
		observation_id INTEGER PRIMARY KEY,
		person_id INTEGER NOT NULL,
		observation_concept_id INTEGER NOT NULL,
		observation_date DATE NOT NULL,
		value_as_number NUMERIC
	)`,
	`CREATE TABLE procedure_occurrence (
		procedure_occurrence_id INTEGER PRIMARY KEY,
		person_id INTEGER NOT NULL,
		procedure_concept_id INTEGER NOT NULL,
		procedure_date DATE NOT NULL
	)`,
}

var concepts = []struct {
	id     int64
	name   string
	domain string
}{
	{Male, "MALE", "Gender"},
	{Female, "FEMALE", "Gender"},
	{White, "White", "Race"},
	{Black, "Black or African American", "Race"},
	{NotHispanic, "Not Hispanic or Latino", "Ethnicity"},
	{StrepThroat, "Streptococcal sore throat", "Condition"},
	{ViralPharyngitis, "Acute viral pharyngitis", "Condition"},
	{Acetaminophen, "Acetaminophen", "Drug"},
	{SystolicBP, "BP systolic", "Measurement"},
	{Smoker, "Smoker", "Observation"},
	{Appendectomy, "Appendectomy", "Procedure"},
	{EncounterDiagnosis, "EHR encounter diagnosis", "Type Concept"},
	{EHRRecord, "EHR", "Type Concept"},
}

// BirthYear of person id.
func BirthYear(id int) int { return 1950 + id%50 }

// Statements returns the DDL followed by the inserts.
func Statements() []string {
	stmts := append([]string{}, schema...)

	var rows []string
	for _, c := range concepts {
		rows = append(rows, fmt.Sprintf("(%d, '%s', '%s')", c.id, c.name, c.domain))
	}
	stmts = append(stmts, "INSERT INTO concept (concept_id, concept_name, domain_id) VALUES "+strings.Join(rows, ", "))

	rows = rows[:0]
	for id := 1; id <= Persons; id++ {
		gender, race := Female, Black
		if id <= Males {
			gender = Male
		}
		if id <= 70 {
			race = White
		}
		rows = append(rows, fmt.Sprintf("(%d, %d, %d, '%d-06-15 00:00:00', %d, %d)",
			id, gender, BirthYear(id), BirthYear(id), race, NotHispanic))
	}
	stmts = append(stmts, "INSERT INTO person (person_id, gender_concept_id, year_of_birth, birth_datetime, race_concept_id, ethnicity_concept_id) VALUES "+strings.Join(rows, ", "))

	rows = rows[:0]
	next := 1
	for id := 1; id <= 30; id++ {
		typ := EHRRecord
		if id <= 10 {
			typ = EncounterDiagnosis
		}
		rows = append(rows, fmt.Sprintf("(%d, %d, %d, '2020-03-01', %d)", next, id, StrepThroat, typ))
		next++
	}
	for id := 25; id <= 50; id++ {
		rows = append(rows, fmt.Sprintf("(%d, %d, %d, '2021-06-01', %d)", next, id, ViralPharyngitis, EHRRecord))
		next++
	}
	stmts = append(stmts, "INSERT INTO condition_occurrence (condition_occurrence_id, person_id, condition_concept_id, condition_start_date, condition_type_concept_id) VALUES "+strings.Join(rows, ", "))

	rows = rows[:0]
	for id := 40; id <= 60; id++ {
		rows = append(rows, fmt.Sprintf("(%d, %d, %d, '2019-01-10')", id, id, Acetaminophen))
	}
	stmts = append(stmts, "INSERT INTO drug_exposure (drug_exposure_id, person_id, drug_concept_id, drug_exposure_start_date) VALUES "+strings.Join(rows, ", "))

	rows = rows[:0]
	for id := 1; id <= 20; id++ {
		rows = append(rows, fmt.Sprintf("(%d, %d, %d, '2022-01-01', %d)", id, id, SystolicBP, 100+2*id))
	}
	stmts = append(stmts, "INSERT INTO measurement (measurement_id, person_id, measurement_concept_id, measurement_date, value_as_number) VALUES "+strings.Join(rows, ", "))

	rows = rows[:0]
	for id := 60; id <= 79; id++ {
		rows = append(rows, fmt.Sprintf("(%d, %d, %d, '2018-05-05', NULL)", id, id, Smoker))
	}
	stmts = append(stmts, "INSERT INTO observation (observation_id, person_id, observation_concept_id, observation_date, value_as_number) VALUES "+strings.Join(rows, ", "))

	rows = rows[:0]
	for id := 80; id <= 99; id++ {
		rows = append(rows, fmt.Sprintf("(%d, %d, %d, '2017-07-07')", id, id, Appendectomy))
	}
	stmts = append(stmts, "INSERT INTO procedure_occurrence (procedure_occurrence_id, person_id, procedure_concept_id, procedure_date) VALUES "+strings.Join(rows, ", "))

	return stmts
}

// Load runs every statement through exec.
func Load(ctx context.Context, exec func(ctx context.Context, stmt string) error) error {
	for _, s := range Statements() {
		if err := exec(ctx, s); err != nil {
			return fmt.Errorf("load fixture: %w", err)
		}
	}
	return nil
}
