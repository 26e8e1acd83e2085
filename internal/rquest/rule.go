package rquest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operator is the comparison a rule applies to its concept.
type Operator string

const (
	OpEqual    Operator = "="
	OpNotEqual Operator = "!="
)

// TimeCategory selects how a rule's time window is interpreted.
type TimeCategory string

const (
	TimeAge      TimeCategory = "AGE"
	TimeRelative TimeCategory = "TIME"
)

// Direction of a relative window. The wire form "|N" reads "less than N",
// "N|" reads "more than N".
type Direction int

const (
	LessThan Direction = iota
	MoreThan
)

// RelativeTime is a parsed "left|right:CATEGORY:UNIT" window.
type RelativeTime struct {
	Direction Direction
	Magnitude int
	Category  TimeCategory
	Unit      string
}

// Rule is one atomic test of a group.
type Rule struct {
	Varname            string
	Varcat             string
	Type               string
	Operator           Operator
	Value              string
	MinValue           *float64
	MaxValue           *float64
	Time               *RelativeTime
	SecondaryModifiers []string
}

// ConceptID parses the rule value as an OMOP concept id.
func (r Rule) ConceptID() (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Value), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// HasRange reports whether both bounds of a numeric range are set.
func (r Rule) HasRange() bool {
	return r.MinValue != nil && r.MaxValue != nil
}

// IsPersonAge reports an age rule on the person itself, which the engine does not support.
func (r Rule) IsPersonAge() bool {
	return r.Varcat == "Person" && r.Varname == "AGE"
}

type wireRule struct {
	Varname           string       `json:"varname"`
	Varcat            string       `json:"varcat"`
	Type              string       `json:"type"`
	TypeAlt           string       `json:"type_"`
	Oper              string       `json:"oper"`
	Operator          string       `json:"operator"`
	Value             flexString   `json:"value"`
	MinValue          flexString   `json:"min_value"`
	MaxValue          flexString   `json:"max_value"`
	Time              string       `json:"time"`
	SecondaryModifier []flexString `json:"secondary_modifier"`
}

// UnmarshalJSON decodes a rule, accepting both the "oper" and "operator" keys
// and the NUM form {"varname": "OMOP=<id>", "value": "<min>|<max>"}.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: rule: %v", ErrMalformedQuery, err)
	}

	op := w.Oper
	if op == "" {
		op = w.Operator
	}
	operator, err := parseOperator(op)
	if err != nil {
		return err
	}

	if w.Type == "" {
		w.Type = w.TypeAlt
	}

	rule := Rule{
		Varname:  w.Varname,
		Varcat:   w.Varcat,
		Type:     w.Type,
		Operator: operator,
		Value:    string(w.Value),
	}

	if rule.MinValue, err = parseBound(w.MinValue); err != nil {
		return err
	}
	if rule.MaxValue, err = parseBound(w.MaxValue); err != nil {
		return err
	}

	if w.Type == "NUM" && !rule.HasRange() && strings.Contains(rule.Value, "|") {
		lo, hi, _ := strings.Cut(rule.Value, "|")
		if rule.MinValue, err = parseBound(flexString(lo)); err != nil {
			return err
		}
		if rule.MaxValue, err = parseBound(flexString(hi)); err != nil {
			return err
		}
		if _, id, ok := strings.Cut(w.Varname, "="); ok {
			rule.Value = id
		}
	}

	if rule.Time, err = ParseRelativeTime(w.Time); err != nil {
		return err
	}

	for _, m := range w.SecondaryModifier {
		rule.SecondaryModifiers = append(rule.SecondaryModifiers, string(m))
	}

	*r = rule
	return nil
}

func parseOperator(s string) (Operator, error) {
	switch strings.TrimSpace(s) {
	case "=", "==":
		return OpEqual, nil
	case "!=":
		return OpNotEqual, nil
	}
	return "", fmt.Errorf("%w: unknown rule operator %q", ErrMalformedQuery, s)
}

func parseBound(s flexString) (*float64, error) {
	if strings.TrimSpace(string(s)) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: numeric bound %q", ErrMalformedQuery, string(s))
	}
	return &f, nil
}

// ParseRelativeTime parses "left|right:CATEGORY:UNIT". An empty string, or a
// window with both bounds empty, yields nil.
func ParseRelativeTime(s string) (*RelativeTime, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: time %q", ErrMalformedQuery, s)
	}
	left, right, ok := strings.Cut(parts[0], "|")
	if !ok {
		return nil, fmt.Errorf("%w: time %q has no bound separator", ErrMalformedQuery, s)
	}
	if left == "" && right == "" {
		return nil, nil
	}

	rt := &RelativeTime{Category: TimeCategory(parts[1]), Unit: parts[2]}
	bound := left
	rt.Direction = MoreThan
	if left == "" {
		bound = right
		rt.Direction = LessThan
	}
	n, err := strconv.Atoi(strings.TrimSpace(bound))
	if err != nil {
		return nil, fmt.Errorf("%w: time %q magnitude", ErrMalformedQuery, s)
	}
	rt.Magnitude = n
	return rt, nil
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
