package engine

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/omop"
	"feasibility-engine/internal/querysql"
	"feasibility-engine/internal/rquest"
	"feasibility-engine/internal/storage"
)

// conceptDomains maps a concept id, in canonical decimal form, to the domain
// the warehouse vocabulary files it under. Built per query.
type conceptDomains map[string]omop.Domain

// lookup resolves the rule's concept. ok is false for values that are not
// concept ids, ids absent from the vocabulary and unsupported domains.
func (c conceptDomains) lookup(r rquest.Rule) (omop.Domain, int64, bool) {
	id, ok := r.ConceptID()
	if !ok {
		return omop.DomainUnknown, 0, false
	}
	d, ok := c[strconv.FormatInt(id, 10)]
	return d, id, ok
}

// cohortConceptIDs lists the distinct concept ids referenced by any rule, ascending.
func cohortConceptIDs(c rquest.Cohort) []int64 {
	var ids []int64
	for _, g := range c.Groups {
		for _, r := range g.Rules {
			if id, ok := r.ConceptID(); ok {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func conceptLookup(ids []int64) querysql.Select {
	values := make([]querysql.Expr, len(ids))
	for i, id := range ids {
		values[i] = querysql.Param{Value: id}
	}
	concept := omop.ConceptTable.Name
	return querysql.Select{
		Distinct: true,
		Columns: []querysql.Expr{
			querysql.Col(concept, omop.ConceptTable.ConceptID),
			querysql.Col(concept, omop.DomainID),
		},
		From:  concept,
		Where: []querysql.Predicate{querysql.InList{Expr: querysql.Col(concept, omop.ConceptTable.ConceptID), Values: values}},
	}
}

// resolveConcepts looks every id up in the concept table in one statement.
// Ids the vocabulary does not know are left out of the result.
func resolveConcepts(ctx context.Context, conn storage.Conn, d querysql.Dialect, ids []int64) (conceptDomains, error) {
	out := conceptDomains{}
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := querysql.Compile(d, conceptLookup(ids))
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve concepts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id       int64
			domainID string
		)
		if err := rows.Scan(&id, &domainID); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		domain, ok := omop.ParseDomain(domainID)
		if !ok {
			log.Debug().Int64("concept", id).Str("domain", domainID).Msg("concept domain not queryable")
			continue
		}
		out[strconv.FormatInt(id, 10)] = domain
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve concepts: %w", err)
	}
	return out, nil
}

// conceptNames returns concept_name by id for the given ids.
func conceptNames(ctx context.Context, conn storage.Conn, d querysql.Dialect, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	if len(ids) == 0 {
		return out, nil
	}
	sel := conceptLookup(ids)
	sel.Columns[1] = querysql.Col(omop.ConceptTable.Name, omop.ConceptName)

	query, args, err := querysql.Compile(d, sel)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("concept names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name *string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan concept name: %w", err)
		}
		if name != nil {
			out[id] = *name
		}
	}
	return out, rows.Err()
}
