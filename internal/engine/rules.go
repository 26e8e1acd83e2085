package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"feasibility-engine/internal/obfuscation"
	"feasibility-engine/internal/omop"
	"feasibility-engine/internal/querysql"
	"feasibility-engine/internal/rquest"
)

var personID = querysql.Col(omop.Person.Name, omop.Person.PersonID)

// rulePredicates is what one rule contributes to its group: conditions on the
// person row itself, and the per-table subqueries of which at least one must match.
type rulePredicates struct {
	person []querysql.Predicate
	tables []querysql.Predicate
}

// predicateBuilder turns a cohort into SQL IR. A value is built per solve and
// holds no state beyond its inputs.
type predicateBuilder struct {
	dialect  querysql.Dialect
	concepts conceptDomains
	now      time.Time
}

func compareOp(op rquest.Operator) querysql.Op {
	if op == rquest.OpNotEqual {
		return querysql.Ne
	}
	return querysql.Eq
}

func (b predicateBuilder) rule(r rquest.Rule) (rulePredicates, error) {
	if r.IsPersonAge() {
		log.Info().Msg("an unsupported rule for AGE was detected and ignored")
		return rulePredicates{}, nil
	}

	domain, id, ok := b.concepts.lookup(r)
	if !ok {
		return b.unresolved(r)
	}
	op := compareOp(r.Operator)

	if domain.IsPerson() {
		col := querysql.Col(omop.Person.Name, domain.ConceptColumn())
		return rulePredicates{
			person: []querysql.Predicate{querysql.Compare{Left: col, Op: op, Right: querysql.Param{Value: id}}},
		}, nil
	}

	return b.factTables(r, id, op)
}

// factTables builds one person subquery per fact table. Vocabularies move
// concepts between tables, so every fact table is searched.
func (b predicateBuilder) factTables(r rquest.Rule, id int64, op querysql.Op) (rulePredicates, error) {
	modifiers, err := parseModifiers(r.SecondaryModifiers)
	if err != nil {
		return rulePredicates{}, err
	}

	tables := make([]querysql.Predicate, 0, len(omop.FactTables))
	for _, d := range omop.FactTables {
		tables = append(tables, querysql.In{Expr: personID, Query: b.factQuery(d.Table(), r, id, op, modifiers)})
	}
	return rulePredicates{tables: tables}, nil
}

// unresolved handles a rule whose concept the vocabulary does not know.
// Person rules add nothing. Any other rule still searches the fact tables by
// its raw id, and a value that is not an id matches no one.
func (b predicateBuilder) unresolved(r rquest.Rule) (rulePredicates, error) {
	if r.Varcat == "Person" {
		log.Debug().Str("concept", r.Value).Msg("person concept not resolved, rule ignored")
		return rulePredicates{}, nil
	}
	id, ok := r.ConceptID()
	if !ok {
		log.Debug().Str("value", r.Value).Msg("rule value is not a concept id")
		return rulePredicates{tables: []querysql.Predicate{querysql.Or{}}}, nil
	}
	log.Debug().Int64("concept", id).Msg("concept not in vocabulary, searching fact tables by id")
	return b.factTables(r, id, compareOp(r.Operator))
}

func parseModifiers(values []string) ([]int64, error) {
	var out []int64
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("secondary modifier %q: %w", v, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// factQuery selects the persons with a matching event in t.
func (b predicateBuilder) factQuery(t omop.Table, r rquest.Rule, id int64, op querysql.Op, modifiers []int64) querysql.Select {
	sel := querysql.Select{
		Columns: []querysql.Expr{querysql.Col(t.Name, t.PersonID)},
		From:    t.Name,
	}
	sel.Where = append(sel.Where, querysql.Compare{
		Left:  querysql.Col(t.Name, t.ConceptID),
		Op:    op,
		Right: querysql.Param{Value: id},
	})

	if r.HasRange() && t.Value != "" {
		sel.Where = append(sel.Where, querysql.Between{
			Expr: querysql.Col(t.Name, t.Value),
			Low:  querysql.Param{Value: *r.MinValue},
			High: querysql.Param{Value: *r.MaxValue},
		})
	}

	if t.TypeConcept != "" && len(modifiers) > 0 {
		anyOf := make([]querysql.Predicate, 0, len(modifiers))
		for _, m := range modifiers {
			anyOf = append(anyOf, querysql.Equal(querysql.Col(t.Name, t.TypeConcept), m))
		}
		sel.Where = append(sel.Where, querysql.Or{Predicates: anyOf})
	}

	if rt := r.Time; rt != nil {
		switch rt.Category {
		case rquest.TimeAge:
			sel.Joins = append(sel.Joins, querysql.Join{
				Table: omop.Person.Name,
				On:    querysql.Compare{Left: personID, Op: querysql.Eq, Right: querysql.Col(t.Name, t.PersonID)},
			})
			age := querysql.Minus{
				Left:  querysql.YearOf{Expr: querysql.Col(t.Name, t.EventDate)},
				Right: querysql.YearOf{Expr: querysql.Col(omop.Person.Name, omop.BirthDatetime)},
			}
			cmp := querysql.Gt
			if rt.Direction == rquest.LessThan {
				cmp = querysql.Lt
			}
			sel.Where = append(sel.Where, querysql.Compare{Left: age, Op: cmp, Right: querysql.Param{Value: float64(rt.Magnitude)}})
		case rquest.TimeRelative:
			boundary := monthsBefore(b.now, rt.Magnitude)
			cmp := querysql.Le
			if rt.Direction == rquest.LessThan {
				cmp = querysql.Ge
			}
			sel.Where = append(sel.Where, querysql.Compare{
				Left:  querysql.Col(t.Name, t.EventDate),
				Op:    cmp,
				Right: querysql.Param{Value: b.dialect.DateParam(boundary)},
			})
		default:
			log.Debug().Str("category", string(rt.Category)).Msg("ignoring unknown time category")
		}
	}
	return sel
}

// monthsBefore steps back n calendar months, clamping to the last day of a
// shorter month (31 March minus one month is 28 or 29 February).
func monthsBefore(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// group builds "person_id IN (persons matching the group)".
func (b predicateBuilder) group(g rquest.Group) (querysql.Predicate, error) {
	var (
		person []querysql.Predicate
		rules  [][]querysql.Predicate
	)
	for _, r := range g.Rules {
		rp, err := b.rule(r)
		if err != nil {
			return nil, err
		}
		person = append(person, rp.person...)
		if len(rp.tables) > 0 {
			rules = append(rules, rp.tables)
		}
	}

	members := querysql.Select{
		Columns: []querysql.Expr{personID},
		From:    omop.Person.Name,
	}
	if g.Operator == rquest.And {
		members.Where = append(members.Where, person...)
		for _, tables := range rules {
			members.Where = append(members.Where, querysql.Or{Predicates: tables})
		}
	} else {
		anyOf := append([]querysql.Predicate{}, person...)
		for _, tables := range rules {
			anyOf = append(anyOf, tables...)
		}
		members.Where = []querysql.Predicate{querysql.Or{Predicates: anyOf}}
	}
	return querysql.In{Expr: personID, Query: members}, nil
}

// cohort builds the final count statement. Rounding and suppression are
// folded into the aggregate; Apply re-checks them on the fetched value.
func (b predicateBuilder) cohort(c rquest.Cohort, filters obfuscation.Filters) (querysql.Select, error) {
	groups := make([]querysql.Predicate, 0, len(c.Groups))
	for i, g := range c.Groups {
		p, err := b.group(g)
		if err != nil {
			return querysql.Select{}, fmt.Errorf("group %d: %w", i, err)
		}
		groups = append(groups, p)
	}

	sel := querysql.Select{
		Columns: []querysql.Expr{countExpr(querysql.Count{}, filters.SQLNearest())},
		From:    omop.Person.Name,
	}
	if c.Operator == rquest.Or {
		sel.Where = []querysql.Predicate{querysql.Or{Predicates: groups}}
	} else {
		sel.Where = groups
	}
	sel.Having = suppression(querysql.Count{}, filters.SQLThreshold())
	return sel, nil
}

func countExpr(count querysql.Count, nearest int64) querysql.Expr {
	if nearest > 0 {
		return querysql.RoundTo{Expr: count, Nearest: nearest}
	}
	return count
}

func suppression(count querysql.Count, threshold int64) querysql.Predicate {
	if threshold > 0 {
		return querysql.Compare{Left: count, Op: querysql.Gt, Right: querysql.Int{Value: threshold}}
	}
	return nil
}
