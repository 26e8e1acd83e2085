package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/querysql"
	"feasibility-engine/internal/rquest"
	"feasibility-engine/internal/storage"
)

// availabilityStatement compiles the cohort into its count statement.
func availabilityStatement(dialect querysql.Dialect, concepts conceptDomains, now time.Time, c rquest.Cohort, filters obfuscation.Filters) (string, []any, error) {
	b := predicateBuilder{dialect: dialect, concepts: concepts, now: now}
	sel, err := b.cohort(c, filters)
	if err != nil {
		return "", nil, err
	}
	return querysql.Compile(dialect, sel)
}

// countCohort resolves the cohort's concepts and counts its members on conn.
// A statement suppressed by HAVING returns no row and counts as zero.
func countCohort(ctx context.Context, conn storage.Conn, dialect querysql.Dialect, now time.Time, c rquest.Cohort, filters obfuscation.Filters) (int64, error) {
	concepts, err := resolveConcepts(ctx, conn, dialect, cohortConceptIDs(c))
	if err != nil {
		return 0, err
	}

	query, args, err := availabilityStatement(dialect, concepts, now, c, filters)
	if err != nil {
		return 0, err
	}
	log.Debug().Str("sql", query).Msg("availability")

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("count cohort: %w", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("scan cohort count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("count cohort: %w", err)
	}
	return obfuscation.Apply(count, filters), nil
}
