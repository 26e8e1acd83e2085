package querysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Compile renders sel as SQL for the dialect. Values are never interpolated:
// every Param becomes a placeholder and is returned in args, in placeholder order.
func Compile(d Dialect, sel Select) (string, []any, error) {
	if d == nil {
		return "", nil, errors.New("compile: nil dialect")
	}
	c := &compiler{dialect: d}
	sql, err := c.selectSQL(sel)
	if err != nil {
		return "", nil, err
	}
	return sql, c.args, nil
}

type compiler struct {
	dialect Dialect
	args    []any
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return c.dialect.Placeholder(len(c.args))
}

func (c *compiler) selectSQL(sel Select) (string, error) {
	if sel.From == "" {
		return "", errors.New("compile: select without FROM")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if sel.Distinct {
		b.WriteString("DISTINCT ")
	}
	if len(sel.Columns) == 0 {
		b.WriteString("*")
	} else {
		cols, err := c.exprList(sel.Columns)
		if err != nil {
			return "", fmt.Errorf("compile columns: %w", err)
		}
		b.WriteString(cols)
	}
	b.WriteString(" FROM ")
	b.WriteString(sel.From)

	for _, j := range sel.Joins {
		on, err := c.predicate(j.On)
		if err != nil {
			return "", fmt.Errorf("compile join %s: %w", j.Table, err)
		}
		b.WriteString(" JOIN ")
		b.WriteString(j.Table)
		b.WriteString(" ON ")
		b.WriteString(on)
	}

	if len(sel.Where) > 0 {
		parts := make([]string, 0, len(sel.Where))
		for _, p := range sel.Where {
			sql, err := c.predicate(p)
			if err != nil {
				return "", fmt.Errorf("compile where: %w", err)
			}
			parts = append(parts, sql)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(parts, " AND "))
	}

	if len(sel.GroupBy) > 0 {
		groups, err := c.exprList(sel.GroupBy)
		if err != nil {
			return "", fmt.Errorf("compile group by: %w", err)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(groups)
	}

	if sel.Having != nil {
		having, err := c.predicate(sel.Having)
		if err != nil {
			return "", fmt.Errorf("compile having: %w", err)
		}
		b.WriteString(" HAVING ")
		b.WriteString(having)
	}

	if len(sel.OrderBy) > 0 {
		order, err := c.exprList(sel.OrderBy)
		if err != nil {
			return "", fmt.Errorf("compile order by: %w", err)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}
	return b.String(), nil
}

func (c *compiler) exprList(exprs []Expr) (string, error) {
	parts := make([]string, 0, len(exprs))
	for _, e := range exprs {
		sql, err := c.expr(e)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return strings.Join(parts, ", "), nil
}

func (c *compiler) expr(e Expr) (string, error) {
	switch x := e.(type) {
	case Column:
		if x.Table == "" {
			return x.Name, nil
		}
		return x.Table + "." + x.Name, nil
	case Param:
		return c.bind(x.Value), nil
	case Int:
		return strconv.FormatInt(x.Value, 10), nil
	case YearOf:
		inner, err := c.expr(x.Expr)
		if err != nil {
			return "", err
		}
		return c.dialect.YearOf(inner), nil
	case Minus:
		left, err := c.expr(x.Left)
		if err != nil {
			return "", err
		}
		right, err := c.expr(x.Right)
		if err != nil {
			return "", err
		}
		return "(" + left + " - " + right + ")", nil
	case Count:
		if x.Of == nil {
			return "count(*)", nil
		}
		inner, err := c.expr(x.Of)
		if err != nil {
			return "", err
		}
		return "count(DISTINCT " + inner + ")", nil
	case RoundTo:
		inner, err := c.expr(x.Expr)
		if err != nil {
			return "", err
		}
		return c.dialect.RoundTo(inner, x.Nearest), nil
	case nil:
		return "", errors.New("nil expression")
	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (c *compiler) predicate(p Predicate) (string, error) {
	switch x := p.(type) {
	case Compare:
		switch x.Op {
		case Eq, Ne, Lt, Gt, Le, Ge:
		default:
			return "", fmt.Errorf("unsupported operator %q", string(x.Op))
		}
		left, err := c.expr(x.Left)
		if err != nil {
			return "", err
		}
		right, err := c.expr(x.Right)
		if err != nil {
			return "", err
		}
		return left + " " + string(x.Op) + " " + right, nil
	case Between:
		e, err := c.expr(x.Expr)
		if err != nil {
			return "", err
		}
		low, err := c.expr(x.Low)
		if err != nil {
			return "", err
		}
		high, err := c.expr(x.High)
		if err != nil {
			return "", err
		}
		return e + " BETWEEN " + low + " AND " + high, nil
	case In:
		e, err := c.expr(x.Expr)
		if err != nil {
			return "", err
		}
		sub, err := c.selectSQL(x.Query)
		if err != nil {
			return "", err
		}
		return e + " IN (" + sub + ")", nil
	case InList:
		if len(x.Values) == 0 {
			return "1 = 0", nil
		}
		e, err := c.expr(x.Expr)
		if err != nil {
			return "", err
		}
		values, err := c.exprList(x.Values)
		if err != nil {
			return "", err
		}
		return e + " IN (" + values + ")", nil
	case And:
		return c.junction(x.Predicates, " AND ", "1 = 1")
	case Or:
		return c.junction(x.Predicates, " OR ", "1 = 0")
	case nil:
		return "", errors.New("nil predicate")
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *compiler) junction(preds []Predicate, sep, empty string) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	if len(preds) == 1 {
		return c.predicate(preds[0])
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		sql, err := c.predicate(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}
