package executor

import (
	"fmt"
	"sort"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// QueryResult is the outcome of evaluating an operator: a leaf holding one
// expansion tree, or the union of two results. A union is flattened only
// when its solutions are read.
type QueryResult interface {
	roots() []int
}

type leafResult struct {
	root int
}

type unionResult struct {
	left  QueryResult
	right QueryResult
}

func (r leafResult) roots() []int {
	return []int{r.root}
}

func (r unionResult) roots() []int {
	var ids []int
	if r.left != nil {
		ids = append(ids, r.left.roots()...)
	}
	if r.right != nil {
		ids = append(ids, r.right.roots()...)
	}
	return ids
}

// Result is the answer to a query. SELECT fills Vars and Rows, ASK fills
// Bool, CONSTRUCT and DESCRIBE fill Graph.
type Result struct {
	Form parser.QueryType
	Vars []string
	// Rows are aligned with Vars; unbound positions are nil.
	Rows  [][]rdf.Term
	Bool  bool
	Graph *rdf.Graph
}

// Values returns the single column of a one-variable selection.
func (r *Result) Values() []rdf.Term {
	if len(r.Vars) != 1 {
		return nil
	}
	values := make([]rdf.Term, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row[0]
	}
	return values
}

// Bindings returns the rows as binding sets, leaving out unbound variables.
func (r *Result) Bindings() []BindingSet {
	out := make([]BindingSet, len(r.Rows))
	for i, row := range r.Rows {
		b := make(BindingSet, len(r.Vars))
		for j, name := range r.Vars {
			if row[j] != nil {
				b[name] = row[j]
			}
		}
		out[i] = b
	}
	return out
}

// selection holds the solution modifiers of a query.
type selection struct {
	vars     []string
	distinct bool
	orderBy  []orderKey
	offset   int
	limit    int // negative means no limit
}

type orderKey struct {
	variable  string
	ascending bool
}

func newSelection(q *parser.Query, vars []string) (*selection, error) {
	sel := &selection{vars: vars, limit: -1}
	if q.Select != nil {
		sel.distinct = q.Select.Distinct || q.Select.Reduced
	}
	if q.Modifiers.Limit != nil {
		sel.limit = *q.Modifiers.Limit
	}
	if q.Modifiers.Offset != nil {
		sel.offset = *q.Modifiers.Offset
	}
	for _, cond := range q.Modifiers.OrderBy {
		v, ok := cond.Expression.(*parser.VariableExpression)
		if !ok {
			return nil, sperrors.New(sperrors.CodeQueryConstructUnsupported,
				"ORDER BY supports plain variables only")
		}
		sel.orderBy = append(sel.orderBy, orderKey{variable: v.Variable.Name, ascending: cond.Ascending})
	}
	return sel, nil
}

// order sorts full solutions by the ORDER BY keys. Ties keep their
// evaluation order.
func (s *selection) order(sols []BindingSet) {
	if len(s.orderBy) == 0 {
		return
	}
	sort.SliceStable(sols, func(i, j int) bool {
		for _, key := range s.orderBy {
			a, _ := sols[i].Get(key.variable)
			b, _ := sols[j].Get(key.variable)
			c := rdf.Compare(a, b)
			if c == 0 {
				continue
			}
			if key.ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

// slice applies OFFSET and LIMIT.
func (s *selection) slice(n int) (int, int) {
	start := min(s.offset, n)
	end := n
	if s.limit >= 0 {
		end = min(start+s.limit, n)
	}
	return start, end
}

// rows orders, projects, deduplicates and slices sols.
func (s *selection) rows(sols []BindingSet) [][]rdf.Term {
	s.order(sols)

	rows := make([][]rdf.Term, 0, len(sols))
	seen := make(map[string]struct{})
	for _, sol := range sols {
		row := sol.Row(s.vars)
		if s.distinct {
			key := rowKey(row)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		rows = append(rows, row)
	}

	start, end := s.slice(len(rows))
	return rows[start:end]
}

// construct instantiates template once per solution. Blank nodes of the
// template are fresh for every solution; triples left with an unbound
// variable or an illegal position are dropped.
func construct(template []*parser.TriplePattern, sols []BindingSet) *rdf.Graph {
	g := rdf.NewGraph()
	for i, sol := range sols {
		for _, tp := range template {
			s, ok1 := instantiate(tp.Subject, sol, i)
			p, ok2 := instantiate(tp.Predicate, sol, i)
			o, ok3 := instantiate(tp.Object, sol, i)
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			if t := rdf.NewTriple(s, p, o); t.IsValid() {
				g.Add(t)
			}
		}
	}
	return g
}

func instantiate(tv parser.TermOrVariable, sol BindingSet, n int) (rdf.Term, bool) {
	if tv.Variable != nil {
		return sol.Get(tv.Variable.Name)
	}
	if b, ok := tv.Term.(*rdf.BlankNode); ok {
		return rdf.NewBlankNode(fmt.Sprintf("%s_%d", b.ID, n)), true
	}
	return tv.Term, tv.Term != nil
}
