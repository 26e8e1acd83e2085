package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/omop"
	"feasibility-engine/internal/querysql"
	"feasibility-engine/internal/rquest"
	"feasibility-engine/internal/storage"
)

// genericDistributionQuery counts persons per concept of one domain, with the concept name.
func genericDistributionQuery(d omop.Domain, filters obfuscation.Filters) querysql.Select {
	t := d.Table()
	concept := omop.ConceptTable.Name
	conceptID := querysql.Col(concept, omop.ConceptTable.ConceptID)
	conceptName := querysql.Col(concept, omop.ConceptName)
	count := querysql.Count{Of: querysql.Col(t.Name, t.PersonID)}

	return querysql.Select{
		Columns: []querysql.Expr{countExpr(count, filters.SQLNearest()), conceptID, conceptName},
		From:    t.Name,
		Joins: []querysql.Join{{
			Table: concept,
			On:    querysql.Compare{Left: querysql.Col(t.Name, d.ConceptColumn()), Op: querysql.Eq, Right: conceptID},
		}},
		GroupBy: []querysql.Expr{conceptID, conceptName},
		Having:  suppression(count, filters.SQLThreshold()),
		OrderBy: []querysql.Expr{conceptID},
	}
}

// genericDistribution walks every distribution domain and emits one row per
// concept whose filtered count is not zero.
func genericDistribution(ctx context.Context, conn storage.Conn, dialect querysql.Dialect, collection string, filters obfuscation.Filters) (*table, error) {
	out := newTable(genericColumns)
	for _, d := range omop.DistributionDomains {
		query, args, err := querysql.Compile(dialect, genericDistributionQuery(d, filters))
		if err != nil {
			return nil, err
		}
		log.Debug().Str("domain", d.String()).Str("sql", query).Msg("code distribution")

		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("%s distribution: %w", d, err)
		}
		err = scanGeneric(rows, d, collection, filters, out)
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("%s distribution: %w", d, err)
		}
	}
	return out, nil
}

func scanGeneric(rows storage.Rows, d omop.Domain, collection string, filters obfuscation.Filters, out *table) error {
	for rows.Next() {
		var (
			count int64
			id    int64
			name  *string
		)
		if err := rows.Scan(&count, &id, &name); err != nil {
			return err
		}
		filtered := obfuscation.Apply(count, filters)
		if filtered == 0 {
			continue
		}
		descr := ""
		if name != nil {
			descr = *name
		}
		omopID := strconv.FormatInt(id, 10)
		out.add(map[string]string{
			"BIOBANK":    collection,
			"CODE":       "OMOP:" + omopID,
			"COUNT":      strconv.FormatInt(filtered, 10),
			"OMOP":       omopID,
			"OMOP_DESCR": descr,
			"CATEGORY":   d.String(),
		})
	}
	return rows.Err()
}

func demographicsQuery(filters obfuscation.Filters) querysql.Select {
	gender := querysql.Col(omop.Person.Name, omop.Gender.ConceptColumn())
	return querysql.Select{
		Columns: []querysql.Expr{countExpr(querysql.Count{}, filters.SQLNearest()), gender},
		From:    omop.Person.Name,
		GroupBy: []querysql.Expr{gender},
		Having:  suppression(querysql.Count{}, filters.SQLThreshold()),
		OrderBy: []querysql.Expr{gender},
	}
}

type genderCount struct {
	conceptID int64
	count     int64
}

// demographicsDistribution summarises persons by gender into a single SEX row.
func demographicsDistribution(ctx context.Context, conn storage.Conn, dialect querysql.Dialect, collection string, filters obfuscation.Filters) (*table, error) {
	query, args, err := querysql.Compile(dialect, demographicsQuery(filters))
	if err != nil {
		return nil, err
	}
	log.Debug().Str("sql", query).Msg("demographics distribution")

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("demographics distribution: %w", err)
	}
	var genders []genderCount
	for rows.Next() {
		var g genderCount
		if err := rows.Scan(&g.count, &g.conceptID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan gender count: %w", err)
		}
		genders = append(genders, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("demographics distribution: %w", err)
	}

	ids := make([]int64, len(genders))
	for i, g := range genders {
		ids[i] = g.conceptID
	}
	names, err := conceptNames(ctx, conn, dialect, ids)
	if err != nil {
		return nil, err
	}

	var (
		total int64
		alt   strings.Builder
	)
	alt.WriteString("^")
	for _, g := range genders {
		total += g.count
		label, ok := names[g.conceptID]
		if !ok {
			label = strconv.FormatInt(g.conceptID, 10)
		}
		fmt.Fprintf(&alt, "%s|%d^", label, obfuscation.Apply(g.count, filters))
	}

	out := newTable(demographicsColumns)
	out.add(map[string]string{
		"BIOBANK":      collection,
		"CODE":         "SEX",
		"DESCRIPTION":  "Sex",
		"COUNT":        strconv.FormatInt(obfuscation.Apply(total, filters), 10),
		"ALTERNATIVES": alt.String(),
		"DATASET":      "person",
		"CATEGORY":     "DEMOGRAPHICS",
	})
	return out, nil
}

func distributionTable(ctx context.Context, conn storage.Conn, dialect querysql.Dialect, q rquest.DistributionQuery, filters obfuscation.Filters) (*table, error) {
	switch q.Code {
	case rquest.Generic:
		return genericDistribution(ctx, conn, dialect, q.Collection, filters)
	case rquest.Demographics:
		return demographicsDistribution(ctx, conn, dialect, q.Collection, filters)
	}
	return nil, fmt.Errorf("unknown distribution code %q", q.Code)
}
