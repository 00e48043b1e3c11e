package optimizer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// OptimizedQuery represents an optimized query with execution plan
type OptimizedQuery struct {
	Original *parser.Query
	Plan     QueryPlan

	// Variables lists the WHERE clause variables in order of first
	// appearance; it is the projection of SELECT *.
	Variables []string

	// LimitHint is the number of complete answers after which evaluation
	// may stop. Zero disables eager termination.
	LimitHint int

	Recur *RecurPlan
}

// RecurPlan is the compiled closure clause of a SELECT.
type RecurPlan struct {
	From string
	To   string
	Plan QueryPlan
}

// QueryPlan is an algebra operator. The set of implementations is closed:
// *BGPPlan, *JoinPlan, *LeftJoinPlan, *UnionPlan, *GraphPlan and *EmptyPlan.
type QueryPlan interface {
	planNode()
}

// TriplePattern is a pattern position triple where any term may be an
// *rdf.Variable. LocalFilter, when set, is checked against each candidate
// match before a child binding is created.
type TriplePattern struct {
	Subject     rdf.Term
	Predicate   rdf.Term
	Object      rdf.Term
	LocalFilter parser.Expression
}

// Variables returns the distinct variable names of the pattern.
func (t *TriplePattern) Variables() []string {
	var names []string
	for _, term := range []rdf.Term{t.Subject, t.Predicate, t.Object} {
		if v, ok := term.(*rdf.Variable); ok && !slices.Contains(names, v.Name) {
			names = append(names, v.Name)
		}
	}
	return names
}

// BGPPlan is a basic graph pattern: a conjunction of triple patterns plus
// constraints checked on every complete leaf.
type BGPPlan struct {
	Patterns []*TriplePattern
	Filters  []parser.Expression

	// Rightmost marks a pattern whose complete leaves are complete answers
	// of the whole query.
	Rightmost bool
}

// JoinPlan probes Right once per solution of Left.
type JoinPlan struct {
	Left    QueryPlan
	Right   QueryPlan
	Filters []parser.Expression
}

// LeftJoinPlan is OPTIONAL: solutions of Left are kept when Right has no
// compatible extension.
type LeftJoinPlan struct {
	Left    QueryPlan
	Right   QueryPlan
	Filters []parser.Expression
}

// UnionPlan evaluates both sides against the same input bindings.
type UnionPlan struct {
	Left    QueryPlan
	Right   QueryPlan
	Filters []parser.Expression
}

// GraphPlan evaluates Input against the named graph Graph, which is an
// IRI or a variable.
type GraphPlan struct {
	Graph   rdf.Term
	Input   QueryPlan
	Filters []parser.Expression
}

// EmptyPlan is the empty group pattern; it yields its input bindings once.
type EmptyPlan struct{}

func (p *BGPPlan) planNode()      {}
func (p *JoinPlan) planNode()     {}
func (p *LeftJoinPlan) planNode() {}
func (p *UnionPlan) planNode()    {}
func (p *GraphPlan) planNode()    {}
func (p *EmptyPlan) planNode()    {}

// Format renders a plan as a compact S-expression, for logs and tests.
func Format(plan QueryPlan) string {
	var b strings.Builder
	format(&b, plan)
	return b.String()
}

func format(b *strings.Builder, plan QueryPlan) {
	switch p := plan.(type) {
	case *BGPPlan:
		b.WriteString("BGP(")
		for i, tp := range p.Patterns {
			if i > 0 {
				b.WriteString(" . ")
			}
			fmt.Fprintf(b, "%s %s %s", tp.Subject, tp.Predicate, tp.Object)
			if tp.LocalFilter != nil {
				b.WriteString(" [local]")
			}
		}
		b.WriteString(")")
		formatFilters(b, p.Filters)
		if p.Rightmost {
			b.WriteString("*")
		}
	case *JoinPlan:
		formatBinary(b, "Join", p.Left, p.Right, p.Filters)
	case *LeftJoinPlan:
		formatBinary(b, "LeftJoin", p.Left, p.Right, p.Filters)
	case *UnionPlan:
		formatBinary(b, "Union", p.Left, p.Right, p.Filters)
	case *GraphPlan:
		fmt.Fprintf(b, "Graph(%s, ", p.Graph)
		format(b, p.Input)
		b.WriteString(")")
		formatFilters(b, p.Filters)
	case *EmptyPlan:
		b.WriteString("Empty")
	}
}

func formatBinary(b *strings.Builder, name string, left, right QueryPlan, filters []parser.Expression) {
	b.WriteString(name)
	b.WriteString("(")
	format(b, left)
	b.WriteString(", ")
	format(b, right)
	b.WriteString(")")
	formatFilters(b, filters)
}

func formatFilters(b *strings.Builder, filters []parser.Expression) {
	if len(filters) > 0 {
		fmt.Fprintf(b, "{%d filters}", len(filters))
	}
}

// ContainsUnion reports whether a UNION occurs anywhere in plan.
func ContainsUnion(plan QueryPlan) bool {
	switch p := plan.(type) {
	case *UnionPlan:
		return true
	case *JoinPlan:
		return ContainsUnion(p.Left) || ContainsUnion(p.Right)
	case *LeftJoinPlan:
		return ContainsUnion(p.Left) || ContainsUnion(p.Right)
	case *GraphPlan:
		return ContainsUnion(p.Input)
	}
	return false
}

// hasOperatorFilters reports whether any filter is applied above the
// leaves of a BGP.
func hasOperatorFilters(plan QueryPlan) bool {
	switch p := plan.(type) {
	case *JoinPlan:
		return len(p.Filters) > 0 || hasOperatorFilters(p.Left) || hasOperatorFilters(p.Right)
	case *LeftJoinPlan:
		return len(p.Filters) > 0 || hasOperatorFilters(p.Left) || hasOperatorFilters(p.Right)
	case *UnionPlan:
		return len(p.Filters) > 0 || hasOperatorFilters(p.Left) || hasOperatorFilters(p.Right)
	case *GraphPlan:
		return len(p.Filters) > 0 || hasOperatorFilters(p.Input)
	}
	return false
}

// markRightmost flags the BGPs evaluated last on every path through plan.
func markRightmost(plan QueryPlan) {
	switch p := plan.(type) {
	case *BGPPlan:
		p.Rightmost = true
	case *JoinPlan:
		markRightmost(p.Right)
	case *LeftJoinPlan:
		markRightmost(p.Right)
	case *UnionPlan:
		markRightmost(p.Left)
		markRightmost(p.Right)
	case *GraphPlan:
		markRightmost(p.Input)
	case *EmptyPlan:
	}
}
