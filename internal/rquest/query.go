package rquest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Junction combines the children of a group or cohort.
type Junction string

const (
	And Junction = "AND"
	Or  Junction = "OR"
)

func parseJunction(s string) (Junction, error) {
	switch Junction(strings.ToUpper(strings.TrimSpace(s))) {
	case And:
		return And, nil
	case Or:
		return Or, nil
	}
	return "", fmt.Errorf("%w: unknown junction %q", ErrMalformedQuery, s)
}

// Group is a set of rules combined by one junction.
type Group struct {
	Rules    []Rule
	Operator Junction
}

func (g *Group) UnmarshalJSON(data []byte) error {
	var w struct {
		Rules         []Rule `json:"rules"`
		RulesOper     string `json:"rules_oper"`
		RulesOperator string `json:"rules_operator"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return malformed("group", err)
	}
	op := w.RulesOper
	if op == "" {
		op = w.RulesOperator
	}
	junction, err := parseJunction(op)
	if err != nil {
		return err
	}
	if len(w.Rules) == 0 {
		return fmt.Errorf("%w: group has no rules", ErrMalformedQuery)
	}
	*g = Group{Rules: w.Rules, Operator: junction}
	return nil
}

// Cohort is a set of groups combined by one junction.
type Cohort struct {
	Groups   []Group
	Operator Junction
}

func (c *Cohort) UnmarshalJSON(data []byte) error {
	var w struct {
		Groups         []Group `json:"groups"`
		GroupsOper     string  `json:"groups_oper"`
		GroupsOperator string  `json:"groups_operator"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return malformed("cohort", err)
	}
	op := w.GroupsOper
	if op == "" {
		op = w.GroupsOperator
	}
	junction, err := parseJunction(op)
	if err != nil {
		return err
	}
	if len(w.Groups) == 0 {
		return fmt.Errorf("%w: cohort has no groups", ErrMalformedQuery)
	}
	*c = Cohort{Groups: w.Groups, Operator: junction}
	return nil
}

// Query is either an AvailabilityQuery or a DistributionQuery.
type Query interface {
	QueryUUID() string
	CollectionID() string
	isQuery()
}

// AvailabilityQuery asks how many persons match a cohort.
type AvailabilityQuery struct {
	UUID            string
	Collection      string
	Owner           string
	ProtocolVersion string
	Cohort          Cohort
}

func (q AvailabilityQuery) QueryUUID() string    { return q.UUID }
func (q AvailabilityQuery) CollectionID() string { return q.Collection }
func (AvailabilityQuery) isQuery()               {}

// DistributionCode names the distribution analysis requested.
type DistributionCode string

const (
	Generic      DistributionCode = "GENERIC"
	Demographics DistributionCode = "DEMOGRAPHICS"
)

// FileName is the name of the result file produced for the code.
func (c DistributionCode) FileName() string {
	if c == Demographics {
		return "demographics.distribution"
	}
	return "code.distribution"
}

// DistributionQuery asks for a per-concept or demographic summary.
type DistributionQuery struct {
	UUID       string
	Collection string
	Owner      string
	Code       DistributionCode
	Analysis   string
}

func (q DistributionQuery) QueryUUID() string    { return q.UUID }
func (q DistributionQuery) CollectionID() string { return q.Collection }
func (DistributionQuery) isQuery()               {}

// DefaultProtocolVersion is reported when a query does not name one.
const DefaultProtocolVersion = "v2"

type wireQuery struct {
	UUID            string  `json:"uuid"`
	Collection      string  `json:"collection"`
	Owner           string  `json:"owner"`
	ProtocolVersion string  `json:"protocol_version"`
	Cohort          *Cohort `json:"cohort"`
	Code            string  `json:"code"`
	Analysis        *string `json:"analysis"`
}

// ParseQuery decodes a query document. Documents carrying an "analysis" key
// are distribution queries; the rest are availability queries.
func ParseQuery(data []byte) (Query, error) {
	var w wireQuery
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, malformed("query", err)
	}
	if w.UUID == "" {
		return nil, fmt.Errorf("%w: missing uuid", ErrMalformedQuery)
	}
	if w.Collection == "" {
		return nil, fmt.Errorf("%w: missing collection", ErrMalformedQuery)
	}

	if w.Analysis != nil {
		code, err := parseDistributionCode(w.Code)
		if err != nil {
			return nil, err
		}
		return DistributionQuery{
			UUID:       w.UUID,
			Collection: w.Collection,
			Owner:      w.Owner,
			Code:       code,
			Analysis:   *w.Analysis,
		}, nil
	}

	if w.Cohort == nil {
		return nil, fmt.Errorf("%w: missing cohort", ErrMalformedQuery)
	}
	version := w.ProtocolVersion
	if version == "" {
		version = DefaultProtocolVersion
	}
	return AvailabilityQuery{
		UUID:            w.UUID,
		Collection:      w.Collection,
		Owner:           w.Owner,
		ProtocolVersion: version,
		Cohort:          *w.Cohort,
	}, nil
}

const icdMainPrefix = "ICD-MAIN"

func parseDistributionCode(s string) (DistributionCode, error) {
	code := DistributionCode(strings.ToUpper(strings.TrimSpace(s)))
	switch {
	case code == Generic, code == Demographics:
		return code, nil
	case code == "":
		return "", fmt.Errorf("%w: missing distribution code", ErrMalformedQuery)
	case strings.HasPrefix(string(code), icdMainPrefix):
		return "", fmt.Errorf("%w: distribution code %q", ErrUnsupportedQuery, s)
	}
	// other codes are accepted here and fail when solved
	return code, nil
}

func malformed(what string, err error) error {
	if errors.Is(err, ErrMalformedQuery) || errors.Is(err, ErrUnsupportedQuery) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrMalformedQuery, what, err)
}
