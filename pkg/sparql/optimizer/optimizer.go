// Package optimizer reduces the WHERE clause of a parsed query to an
// algebra plan of Join, LeftJoin, Union, Graph and basic graph patterns.
package optimizer

import (
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/aleksaelezovic/trigoql/internal/logging"
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// BlankVariablePrefix starts the name of the variable that stands for a
// blank node of the query pattern. SELECT * never projects these.
const BlankVariablePrefix = "_:"

// Optimizer turns parsed queries into algebra plans
type Optimizer struct {
	log *logrus.Entry
}

// NewOptimizer creates a new query optimizer
func NewOptimizer() *Optimizer {
	return &Optimizer{log: logging.Component("optimizer")}
}

// Optimize builds the plan of a parsed query. Structural errors such as a
// variable shared only by sibling OPTIONAL blocks are reported here, before
// anything is evaluated.
func (o *Optimizer) Optimize(query *parser.Query) (*OptimizedQuery, error) {
	where := query.Where
	if where == nil {
		where = &parser.GroupGraphPattern{}
	}
	if err := checkOptionalScopes(where); err != nil {
		return nil, err
	}

	plan, err := o.ReduceToAlgebra(where)
	if err != nil {
		return nil, err
	}

	optimized := &OptimizedQuery{
		Original:  query,
		Plan:      plan,
		Variables: GroupVariables(where),
	}

	if query.Select != nil && query.Select.Recur != nil {
		recur := query.Select.Recur
		if err := checkOptionalScopes(recur.Pattern); err != nil {
			return nil, err
		}
		recurPlan, err := o.ReduceToAlgebra(recur.Pattern)
		if err != nil {
			return nil, err
		}
		optimized.Recur = &RecurPlan{From: recur.From.Name, To: recur.To.Name, Plan: recurPlan}
	}

	optimized.LimitHint = limitHint(optimized)
	if optimized.LimitHint > 0 {
		markRightmost(plan)
	}

	o.log.WithFields(logrus.Fields{
		"form":       query.QueryType.String(),
		"plan":       Format(plan),
		"limit_hint": optimized.LimitHint,
	}).Debug("plan chosen")
	return optimized, nil
}

// ReduceToAlgebra left-folds the elements of a group into a plan. Filters
// apply to the whole group: they become constraints of the group's BGP when
// the group reduces to one, and operator filters otherwise.
func (o *Optimizer) ReduceToAlgebra(group *parser.GroupGraphPattern) (QueryPlan, error) {
	var acc QueryPlan
	var filters []parser.Expression

	for _, element := range group.Elements {
		switch el := element.(type) {
		case *parser.TriplesBlock:
			patterns := convertTriples(el.Triples)
			if bgp, ok := acc.(*BGPPlan); ok && len(bgp.Filters) == 0 {
				bgp.Patterns = append(bgp.Patterns, patterns...)
				continue
			}
			acc = join(acc, &BGPPlan{Patterns: patterns})

		case *parser.Filter:
			filters = append(filters, el.Expression)

		case *parser.OptionalPattern:
			right, err := o.ReduceToAlgebra(el.Pattern)
			if err != nil {
				return nil, err
			}
			// a leading OPTIONAL extends the empty solution
			if acc == nil {
				acc = &EmptyPlan{}
			}
			acc = &LeftJoinPlan{Left: acc, Right: right}

		case *parser.UnionPattern:
			var union QueryPlan
			for _, alt := range el.Alternatives {
				plan, err := o.ReduceToAlgebra(alt)
				if err != nil {
					return nil, err
				}
				if union == nil {
					union = plan
				} else {
					union = &UnionPlan{Left: union, Right: plan}
				}
			}
			acc = join(acc, union)

		case *parser.GraphGraphPattern:
			inner, err := o.ReduceToAlgebra(el.Pattern)
			if err != nil {
				return nil, err
			}
			acc = join(acc, &GraphPlan{Graph: el.Name.AsTerm(), Input: inner})

		case *parser.GroupGraphPattern:
			inner, err := o.ReduceToAlgebra(el)
			if err != nil {
				return nil, err
			}
			acc = join(acc, inner)

		default:
			return nil, sperrors.Errorf(sperrors.CodeQueryConstructUnsupported, "unsupported pattern element %T", element)
		}
	}

	if acc == nil {
		acc = &EmptyPlan{}
	}
	return attachFilters(acc, filters), nil
}

func join(left, right QueryPlan) QueryPlan {
	if left == nil {
		return right
	}
	return &JoinPlan{Left: left, Right: right}
}

// attachFilters adds the filters of a group to its reduced plan. A group of
// filters alone becomes a pattern-less BGP constrained by them.
func attachFilters(plan QueryPlan, filters []parser.Expression) QueryPlan {
	if len(filters) == 0 {
		return plan
	}
	switch p := plan.(type) {
	case *BGPPlan:
		p.Filters = append(p.Filters, filters...)
		pushDownFilters(p)
	case *EmptyPlan:
		return &BGPPlan{Filters: filters}
	case *JoinPlan:
		p.Filters = append(p.Filters, filters...)
	case *LeftJoinPlan:
		p.Filters = append(p.Filters, filters...)
	case *UnionPlan:
		p.Filters = append(p.Filters, filters...)
	case *GraphPlan:
		p.Filters = append(p.Filters, filters...)
	}
	return plan
}

// pushDownFilters moves every filter whose variables all occur in one
// triple pattern into that pattern's local filter, so it rejects matches
// before they are expanded further.
func pushDownFilters(bgp *BGPPlan) {
	var kept []parser.Expression
	for _, filter := range bgp.Filters {
		vars := parser.ExpressionVariables(filter)
		target := -1
		if len(vars) > 0 {
			for i, tp := range bgp.Patterns {
				if covers(tp.Variables(), vars) {
					target = i
					break
				}
			}
		}
		if target < 0 {
			kept = append(kept, filter)
			continue
		}
		tp := bgp.Patterns[target]
		if tp.LocalFilter == nil {
			tp.LocalFilter = filter
		} else {
			tp.LocalFilter = &parser.BinaryExpression{Left: tp.LocalFilter, Operator: parser.OpAnd, Right: filter}
		}
	}
	bgp.Filters = kept
}

func covers(have, want []string) bool {
	for _, name := range want {
		if !slices.Contains(have, name) {
			return false
		}
	}
	return true
}

func convertTriples(triples []*parser.TriplePattern) []*TriplePattern {
	patterns := make([]*TriplePattern, len(triples))
	for i, t := range triples {
		patterns[i] = &TriplePattern{
			Subject:   patternTerm(t.Subject),
			Predicate: patternTerm(t.Predicate),
			Object:    patternTerm(t.Object),
		}
	}
	return patterns
}

// patternTerm maps query blank nodes to variables; they match like
// variables but are never projected.
func patternTerm(tv parser.TermOrVariable) rdf.Term {
	if b, ok := tv.Term.(*rdf.BlankNode); ok {
		return rdf.NewVariable(BlankVariablePrefix + b.ID)
	}
	return tv.AsTerm()
}

// limitHint decides whether evaluation may stop after LIMIT complete
// answers. Anything that can drop or reorder answers after they are
// counted disables it.
func limitHint(q *OptimizedQuery) int {
	query := q.Original
	if hasOperatorFilters(q.Plan) {
		return 0
	}

	switch query.QueryType {
	case parser.QueryTypeAsk:
		return 1
	case parser.QueryTypeSelect, parser.QueryTypeConstruct:
	default:
		return 0
	}

	m := query.Modifiers
	if m.Limit == nil || *m.Limit <= 0 {
		return 0
	}
	if m.Offset != nil && *m.Offset != 0 {
		return 0
	}
	if len(m.OrderBy) > 0 || q.Recur != nil {
		return 0
	}
	if query.Select != nil && (query.Select.Distinct || query.Select.Reduced) {
		return 0
	}
	return *m.Limit
}

// checkOptionalScopes rejects a group in which a variable occurs in more
// than one sibling OPTIONAL block without occurring in the group's
// required part.
func checkOptionalScopes(group *parser.GroupGraphPattern) error {
	required := make(map[string]bool)
	seenIn := make(map[string]int)

	for _, element := range group.Elements {
		switch el := element.(type) {
		case *parser.OptionalPattern:
			for _, name := range GroupVariables(el.Pattern) {
				seenIn[name]++
			}
		case *parser.Filter:
		default:
			for _, name := range elementVariables(el) {
				required[name] = true
			}
		}
	}

	for _, element := range group.Elements {
		el, ok := element.(*parser.OptionalPattern)
		if !ok {
			continue
		}
		for _, name := range GroupVariables(el.Pattern) {
			if seenIn[name] > 1 && !required[name] {
				return sperrors.New(sperrors.CodeQueryStructureInvalid,
					"variable ?"+name+" is shared by sibling OPTIONAL blocks but not bound outside them",
					sperrors.FieldVariable(name))
			}
		}
	}

	for _, element := range group.Elements {
		for _, child := range childGroups(element) {
			if err := checkOptionalScopes(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func childGroups(element parser.PatternElement) []*parser.GroupGraphPattern {
	switch el := element.(type) {
	case *parser.OptionalPattern:
		return []*parser.GroupGraphPattern{el.Pattern}
	case *parser.UnionPattern:
		return el.Alternatives
	case *parser.GraphGraphPattern:
		return []*parser.GroupGraphPattern{el.Pattern}
	case *parser.GroupGraphPattern:
		return []*parser.GroupGraphPattern{el}
	}
	return nil
}

// GroupVariables returns the variables of a group pattern in order of first
// appearance, filters excluded.
func GroupVariables(group *parser.GroupGraphPattern) []string {
	var names []string
	for _, element := range group.Elements {
		for _, name := range elementVariables(element) {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names
}

func elementVariables(element parser.PatternElement) []string {
	var names []string
	add := func(more ...string) {
		for _, name := range more {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}

	switch el := element.(type) {
	case *parser.TriplesBlock:
		for _, t := range el.Triples {
			add(t.Variables()...)
		}
	case *parser.GraphGraphPattern:
		if el.Name.Variable != nil {
			add(el.Name.Variable.Name)
		}
		add(GroupVariables(el.Pattern)...)
	case *parser.OptionalPattern:
		add(GroupVariables(el.Pattern)...)
	case *parser.UnionPattern:
		for _, alt := range el.Alternatives {
			add(GroupVariables(alt)...)
		}
	case *parser.GroupGraphPattern:
		add(GroupVariables(el)...)
	case *parser.Filter:
	}
	return names
}
