package engine

import (
	"context"
	"testing"

	"feasibility-engine/internal/omop"
	"feasibility-engine/internal/querysql"
)

const benchCohort = `{"groups_oper": "AND", "groups": [
	{"rules_oper": "AND", "rules": [
		{"varname": "OMOP", "varcat": "Person", "oper": "=", "value": "8532"},
		{"varname": "OMOP", "varcat": "Condition", "oper": "=", "value": "28060", "time": "|50:AGE:Y"}
	]},
	{"rules_oper": "OR", "rules": [
		{"varname": "OMOP", "varcat": "Drug", "oper": "=", "value": "1127433"},
		{"varname": "OMOP=3004249", "varcat": "Measurement", "type": "NUM", "oper": "=", "value": "110|120"}
	]}
]}`

func BenchmarkAvailabilityStatement(b *testing.B) {
	c := mustCohort(b, benchCohort)
	concepts := conceptDomains{
		"8532":    omop.Gender,
		"28060":   omop.Condition,
		"1127433": omop.Drug,
		"3004249": omop.Measurement,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := availabilityStatement(querysql.Postgres, concepts, fixedNow, c, exactFilters); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExecuteAvailability(b *testing.B) {
	e, _ := newTestEngine(b)
	raw := availability(b, "OR", group("AND", rule("8532", "=")), group("OR", rule("28060", "="), rule("1127433", "=")))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Execute(ctx, raw, exactFilters); err != nil {
			b.Fatal(err)
		}
	}
}
