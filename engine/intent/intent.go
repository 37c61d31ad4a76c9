// Package intent defines the structured representation of a natural-language
// question about the knowledge graph, and extracts it either through an LLM
// completion backend or through deterministic keyword heuristics.
package intent

import (
	"errors"
	"fmt"
)

// Operator is a constraint comparison operator.
type Operator string

const (
	OpEquals     Operator = "="
	OpNotEquals  Operator = "!="
	OpGreater    Operator = ">"
	OpGreaterEq  Operator = ">="
	OpLess       Operator = "<"
	OpLessEq     Operator = "<="
	OpContains   Operator = "CONTAINS"
	OpIn         Operator = "IN"
	OpStartsWith Operator = "STARTS_WITH"
	OpEndsWith   Operator = "ENDS_WITH"
)

// operatorFromString maps the operator vocabulary accepted from extraction
// output to the enum. Unrecognized strings default to equality.
func operatorFromString(s string) Operator {
	switch Operator(s) {
	case OpEquals, OpNotEquals, OpGreater, OpGreaterEq, OpLess, OpLessEq,
		OpContains, OpIn, OpStartsWith, OpEndsWith:
		return Operator(s)
	}
	switch s {
	case "==":
		return OpEquals
	case "<>":
		return OpNotEquals
	case "starts_with", "STARTS WITH":
		return OpStartsWith
	case "ends_with", "ENDS WITH":
		return OpEndsWith
	case "contains":
		return OpContains
	case "in":
		return OpIn
	}
	return OpEquals
}

// Cypher renders the operator in Cypher syntax.
func (o Operator) Cypher() string {
	switch o {
	case OpNotEquals:
		return "<>"
	case OpStartsWith:
		return "STARTS WITH"
	case OpEndsWith:
		return "ENDS WITH"
	default:
		return string(o)
	}
}

// Direction of a relationship traversal.
type Direction string

const (
	DirOut  Direction = "out"
	DirIn   Direction = "in"
	DirBoth Direction = "both"
)

func directionFromString(s string) Direction {
	switch Direction(s) {
	case DirOut, DirIn, DirBoth:
		return Direction(s)
	}
	switch s {
	case "outgoing", "->":
		return DirOut
	case "incoming", "<-":
		return DirIn
	}
	return DirBoth
}

// AggFunc is an aggregation function.
type AggFunc string

const (
	AggCount   AggFunc = "COUNT"
	AggSum     AggFunc = "SUM"
	AggAvg     AggFunc = "AVG"
	AggMin     AggFunc = "MIN"
	AggMax     AggFunc = "MAX"
	AggCollect AggFunc = "COLLECT"
)

func aggFromString(s string) (AggFunc, bool) {
	switch AggFunc(s) {
	case AggCount, AggSum, AggAvg, AggMin, AggMax, AggCollect:
		return AggFunc(s), true
	}
	switch s {
	case "count":
		return AggCount, true
	case "sum":
		return AggSum, true
	case "avg", "average":
		return AggAvg, true
	case "min":
		return AggMin, true
	case "max":
		return AggMax, true
	case "collect":
		return AggCollect, true
	}
	return "", false
}

// EntityRef is a named node pattern. Alias must be unique within one intent.
type EntityRef struct {
	Alias      string         `json:"alias"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

// RelationshipRef is a typed edge pattern, optionally variable-length.
type RelationshipRef struct {
	Type      string    `json:"type"`
	Direction Direction `json:"direction"`
	MinHops   int       `json:"min_hops"`
	MaxHops   int       `json:"max_hops"`
}

// PathPattern is one traversal step between two entities.
type PathPattern struct {
	Source EntityRef       `json:"source"`
	Rel    RelationshipRef `json:"relationship"`
	Target EntityRef       `json:"target"`
}

// Constraint is one AND-combined filter. OR/NOT composition is not modeled.
type Constraint struct {
	Field string   `json:"field"` // alias-qualified, e.g. "c.domain"
	Op    Operator `json:"operator"`
	Value any      `json:"value"`
}

// Aggregation is one aggregate output column.
type Aggregation struct {
	Func  AggFunc `json:"function"`
	Field string  `json:"field"`
	Alias string  `json:"alias"`
}

// OrderBy is one ordering clause.
type OrderBy struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// Method records how an intent was produced.
type Method string

const (
	MethodOracle   Method = "oracle"
	MethodFallback Method = "fallback"
)

// QueryIntent is the complete structured representation of a question.
// It is built once per query and immutable afterwards.
type QueryIntent struct {
	Entities      []EntityRef   `json:"entities"`
	Paths         []PathPattern `json:"paths,omitempty"`
	Constraints   []Constraint  `json:"constraints,omitempty"`
	Aggregations  []Aggregation `json:"aggregations,omitempty"`
	OrderBy       []OrderBy     `json:"order_by,omitempty"`
	ReturnFields  []string      `json:"return_fields,omitempty"`
	Limit         int           `json:"limit"`
	IsCount       bool          `json:"is_count_query"`
	IsAggregation bool          `json:"is_aggregation_query"`
	Method        Method        `json:"extraction_method"`
}

var (
	ErrNoEntities     = errors.New("intent has no entities")
	ErrDuplicateAlias = errors.New("duplicate entity alias")
	ErrUnknownAlias   = errors.New("reference to undeclared alias")
)

// Aliases returns every alias declared by entities or path endpoints,
// in declaration order without duplicates.
func (qi *QueryIntent) Aliases() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(a string) {
		if a != "" && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, e := range qi.Entities {
		add(e.Alias)
	}
	for _, p := range qi.Paths {
		add(p.Source.Alias)
		add(p.Target.Alias)
	}
	return out
}

// Validate enforces the intent invariants: at least one entity, unique
// entity aliases, and every alias referenced by constraints, return
// fields, or ordering declared somewhere.
func (qi *QueryIntent) Validate() error {
	if len(qi.Entities) == 0 && len(qi.Paths) == 0 {
		return ErrNoEntities
	}

	seen := make(map[string]bool)
	for _, e := range qi.Entities {
		if seen[e.Alias] {
			return fmt.Errorf("%w: %s", ErrDuplicateAlias, e.Alias)
		}
		seen[e.Alias] = true
	}

	declared := make(map[string]bool)
	for _, a := range qi.Aliases() {
		declared[a] = true
	}
	check := func(field string) error {
		if field == "" || field == "*" {
			return nil
		}
		alias := fieldAlias(field)
		if alias != "" && !declared[alias] {
			return fmt.Errorf("%w: %s", ErrUnknownAlias, alias)
		}
		return nil
	}
	for _, c := range qi.Constraints {
		if err := check(c.Field); err != nil {
			return err
		}
	}
	for _, f := range qi.ReturnFields {
		if err := check(f); err != nil {
			return err
		}
	}
	for _, o := range qi.OrderBy {
		if err := check(o.Field); err != nil {
			return err
		}
	}
	for _, a := range qi.Aggregations {
		if err := check(a.Field); err != nil {
			return err
		}
	}
	return nil
}

// fieldAlias returns the alias part of an "alias.property" reference, or
// the whole field when it is a bare alias.
func fieldAlias(field string) string {
	for i := 0; i < len(field); i++ {
		if field[i] == '.' {
			return field[:i]
		}
	}
	return field
}
