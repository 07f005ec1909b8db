// Package queryplan describes a parameterised retrieval without executing it.
package queryplan

import (
	"fmt"
	"strings"
)

const (
	MinComplexity = 1.0
	MaxComplexity = 5.0
	MaxEstimate   = 1000
)

type JoinKind string

const (
	InnerJoin JoinKind = "INNER JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
)

type Join struct {
	Kind  JoinKind
	Table string
	On    string
}

func (j Join) String() string {
	kind := j.Kind
	if kind == "" {
		kind = InnerJoin
	}
	return fmt.Sprintf("%s %s ON %s", kind, j.Table, j.On)
}

// Plan is the structured description of a query. An empty SQL means no
// retrieval is required and is a valid outcome.
type Plan struct {
	SelectFields    []string
	FromTable       string
	Joins           []Join
	WhereConditions []string
	Params          []any
	GroupBy         []string
	OrderBy         []string
	Limit           int
	Complexity      float64
	Explanation     string
	EstimatedRows   int
	IsMultiQuery    bool
	SQL             string
}

func (p Plan) HasSQL() bool {
	return p.SQL != ""
}

// HasJoin reports whether table is already joined.
func (p Plan) HasJoin(table string) bool {
	for _, j := range p.Joins {
		if j.Table == table {
			return true
		}
	}
	return false
}

// Bind appends value to Params and returns its positional placeholder.
func (p *Plan) Bind(value any) string {
	p.Params = append(p.Params, value)
	return fmt.Sprintf("$%d", len(p.Params))
}

// Where appends a boolean predicate.
func (p *Plan) Where(condition string) {
	p.WhereConditions = append(p.WhereConditions, condition)
}

// Render assembles SELECT, FROM, joins, WHERE, GROUP BY, ORDER BY and LIMIT.
// It returns "" when the plan has no table.
func (p Plan) Render() string {
	if p.FromTable == "" {
		return ""
	}
	var b strings.Builder
	fields := p.SelectFields
	if len(fields) == 0 {
		fields = []string{"*"}
	}
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(fields, ", "))
	b.WriteString(" FROM ")
	b.WriteString(p.FromTable)
	for _, j := range p.Joins {
		b.WriteString(" ")
		b.WriteString(j.String())
	}
	if len(p.WhereConditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(p.WhereConditions, " AND "))
	}
	if len(p.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(p.GroupBy, ", "))
	}
	if len(p.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(p.OrderBy, ", "))
	}
	if p.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", p.Limit)
	}
	return b.String()
}

// Score computes complexity and estimated rows from the plan structure.
func (p *Plan) Score() {
	raw := 1 +
		0.5*float64(len(p.Joins)) +
		0.2*float64(len(p.WhereConditions)) +
		0.3*float64(len(p.GroupBy)) +
		0.1*float64(len(p.OrderBy))
	p.Complexity = ClampComplexity(raw)

	n := len(p.Joins) + len(p.WhereConditions)
	if n < 1 {
		n = 1
	}
	p.EstimatedRows = min(10*n, MaxEstimate)
}

func ClampComplexity(v float64) float64 {
	if v < MinComplexity {
		return MinComplexity
	}
	if v > MaxComplexity {
		return MaxComplexity
	}
	return v
}

// Clone returns a copy that shares no slices with p.
func (p Plan) Clone() Plan {
	c := p
	c.SelectFields = append([]string(nil), p.SelectFields...)
	c.Joins = append([]Join(nil), p.Joins...)
	c.WhereConditions = append([]string(nil), p.WhereConditions...)
	c.Params = append([]any(nil), p.Params...)
	c.GroupBy = append([]string(nil), p.GroupBy...)
	c.OrderBy = append([]string(nil), p.OrderBy...)
	return c
}
