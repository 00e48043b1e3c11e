package executor

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/evaluator"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/optimizer"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// errEnoughAnswers stops evaluation once the eager limit is reached. It
// never leaves the executor.
var errEnoughAnswers = errors.New("executor: enough answers")

const noParent = -1

// expansionNode is one step of matching a pattern list. Nodes live in the
// arena of an evaluation and refer to each other by index.
type expansionNode struct {
	parent    int
	children  []int
	optionals []int

	bindings  BindingSet
	remaining []*optimizer.TriplePattern

	// clash marks a dead branch: no match, a failed constraint or a failed
	// operator filter.
	clash bool
	// bound is set on complete leaves with no unbound variable.
	bound bool
	// expanded is set once every match of the node was explored.
	expanded bool
	// optionalMatch is set when a LeftJoin probe of this node produced
	// proxies; they replace the node's own bindings. It is not cleared when
	// the proxies are later excluded, so the bare node never leaks back.
	optionalMatch bool
	// awaiting marks a join point whose probe has not run yet.
	awaiting bool
}

// evaluation is the state of one query run: the node arena, the eager
// limit counter and the cancellation context. It is never shared.
type evaluation struct {
	ctx   context.Context
	nodes []expansionNode
	eval  *evaluator.Evaluator
	log   *logrus.Entry

	limit   int
	answers int
	batch   bool
}

func newEvaluation(ctx context.Context, limit int, batch bool, log *logrus.Entry) *evaluation {
	return &evaluation{
		ctx:   ctx,
		eval:  evaluator.NewEvaluator(),
		log:   log,
		limit: limit,
		batch: batch,
	}
}

// scope is the store and graph a BGP is matched against. graph is nil for
// the default graph, a variable for any named graph, or a graph name.
// batch is set when the store may resolve whole pattern lists.
type scope struct {
	store TripleStoreAdapter
	graph rdf.Term
	batch BatchUnifier
}

// bgpRun carries the per-BGP parameters of an expansion.
type bgpRun struct {
	scope
	constraints []parser.Expression
	rightmost   bool
	unifier     BatchUnifier
}

func (ev *evaluation) newNode(parent int, bindings BindingSet, remaining []*optimizer.TriplePattern) int {
	ev.nodes = append(ev.nodes, expansionNode{
		parent:    parent,
		bindings:  bindings,
		remaining: remaining,
	})
	id := len(ev.nodes) - 1
	if parent != noParent {
		ev.nodes[parent].children = append(ev.nodes[parent].children, id)
	}
	return id
}

// checkpoint runs before every expansion step.
func (ev *evaluation) checkpoint() error {
	if ev.limit > 0 && ev.answers >= ev.limit {
		return errEnoughAnswers
	}
	return ev.ctx.Err()
}

// accept applies a constraint. A constraint that reads an unbound variable
// does not apply and passes; any other error rejects.
func (ev *evaluation) accept(expr parser.Expression, b BindingSet) bool {
	ok, err := ev.eval.Test(expr, b)
	if err != nil {
		return sperrors.IsUnbound(err)
	}
	return ok
}

func (ev *evaluation) acceptAll(exprs []parser.Expression, b BindingSet) bool {
	for _, expr := range exprs {
		if !ev.accept(expr, b) {
			return false
		}
	}
	return true
}

// expand matches the remaining patterns of a node depth first, creating
// one child per compatible match.
func (ev *evaluation) expand(id int, run *bgpRun) error {
	if err := ev.checkpoint(); err != nil {
		return err
	}
	if len(ev.nodes[id].remaining) == 0 {
		ev.complete(id, run)
		return nil
	}
	if run.unifier != nil && !ev.groundRemaining(id, run) {
		return ev.expandBatch(id, run)
	}

	bindings := ev.nodes[id].bindings
	tp := ev.nodes[id].remaining[0]
	rest := ev.nodes[id].remaining[1:]

	quads, err := matchAll(run.store, substitutePattern(tp, run.graph, bindings))
	if err != nil {
		return sperrors.Wrap(err, sperrors.CodeQueryEvaluateFailure, "match pattern")
	}

	for _, q := range quads {
		child, ok := bindQuad(bindings, tp, run.graph, q)
		if !ok {
			continue
		}
		if tp.LocalFilter != nil && !ev.accept(tp.LocalFilter, child) {
			continue
		}
		cid := ev.newNode(id, child, rest)
		if err := ev.expand(cid, run); err != nil {
			return err
		}
	}

	n := &ev.nodes[id]
	n.expanded = true
	if len(n.children) == 0 {
		n.clash = true
	}
	return nil
}

// expandBatch resolves all remaining patterns of a node in one store call.
func (ev *evaluation) expandBatch(id int, run *bgpRun) error {
	bindings := ev.nodes[id].bindings
	remaining := ev.nodes[id].remaining

	patterns := make([]*store.Pattern, len(remaining))
	for i, tp := range remaining {
		patterns[i] = substitutePattern(tp, run.graph, bindings)
	}
	results, err := batchAll(run.unifier, patterns)
	if err != nil {
		return sperrors.Wrap(err, sperrors.CodeQueryEvaluateFailure, "batch unify")
	}

	for _, b := range results {
		child, ok := mergeBatch(bindings, b)
		if !ok || !ev.localFiltersAccept(remaining, child) {
			continue
		}
		cid := ev.newNode(id, child, nil)
		if err := ev.expand(cid, run); err != nil {
			return err
		}
	}

	n := &ev.nodes[id]
	n.expanded = true
	if len(n.children) == 0 {
		n.clash = true
	}
	return nil
}

func (ev *evaluation) localFiltersAccept(patterns []*optimizer.TriplePattern, b BindingSet) bool {
	for _, tp := range patterns {
		if tp.LocalFilter != nil && !ev.accept(tp.LocalFilter, b) {
			return false
		}
	}
	return true
}

// groundRemaining reports whether no remaining pattern has a free
// variable; such lists gain nothing from batching.
func (ev *evaluation) groundRemaining(id int, run *bgpRun) bool {
	n := &ev.nodes[id]
	if g, ok := run.graph.(*rdf.Variable); ok && n.bindings[g.Name] == nil {
		return false
	}
	for _, tp := range n.remaining {
		for _, t := range []rdf.Term{tp.Subject, tp.Predicate, tp.Object} {
			if v, ok := t.(*rdf.Variable); ok && n.bindings[v.Name] == nil {
				return false
			}
		}
	}
	return true
}

// complete checks a leaf against the BGP constraints and counts it when it
// is a complete answer of the whole query.
func (ev *evaluation) complete(id int, run *bgpRun) {
	n := &ev.nodes[id]
	if !ev.acceptAll(run.constraints, n.bindings) {
		n.clash = true
	}
	n.bound = n.bindings.IsFullyBound()
	n.expanded = true
	if run.rightmost && n.bound && !n.clash {
		ev.answers++
		if ev.limit > 0 && ev.answers == ev.limit {
			ev.log.WithField("limit", ev.limit).Debug("eager limit reached")
		}
	}
}

// walk visits the solution points below id in depth-first order. A point
// is a complete, bound, live node that was not extended further: its
// bindings are one solution of the result it belongs to.
func (ev *evaluation) walk(id int, fn func(int)) {
	n := &ev.nodes[id]
	if n.clash || n.awaiting {
		return
	}
	if len(n.remaining) > 0 {
		for _, c := range n.children {
			ev.walk(c, fn)
		}
		return
	}
	if !n.expanded || !n.bound {
		return
	}
	if n.optionalMatch {
		for _, o := range n.optionals {
			ev.walk(o, fn)
		}
		return
	}
	if len(n.children) > 0 {
		for _, c := range n.children {
			ev.walk(c, fn)
		}
		return
	}
	fn(id)
}

// points lists the solution points of a result.
func (ev *evaluation) points(res QueryResult) []int {
	var ids []int
	if res == nil {
		return nil
	}
	for _, root := range res.roots() {
		ev.walk(root, func(id int) { ids = append(ids, id) })
	}
	return ids
}

// solutions returns the bindings of every solution point of res, in
// depth-first order.
func (ev *evaluation) solutions(res QueryResult) []BindingSet {
	var out []BindingSet
	if res == nil {
		return nil
	}
	for _, root := range res.roots() {
		ev.walk(root, func(id int) { out = append(out, ev.nodes[id].bindings) })
	}
	return out
}

// substitute replaces a bound variable with its value. Unbound variables
// stay and act as wildcards.
func substitute(t rdf.Term, b BindingSet) rdf.Term {
	if v, ok := t.(*rdf.Variable); ok {
		if val := b[v.Name]; val != nil {
			return val
		}
	}
	return t
}

func substitutePattern(tp *optimizer.TriplePattern, graph rdf.Term, b BindingSet) *store.Pattern {
	return &store.Pattern{
		Subject:   substitute(tp.Subject, b),
		Predicate: substitute(tp.Predicate, b),
		Object:    substitute(tp.Object, b),
		Graph:     substitute(graph, b),
	}
}

// bindQuad extends b with the variables of tp observed in q. A variable
// occurring twice in tp must observe the same term twice.
func bindQuad(b BindingSet, tp *optimizer.TriplePattern, graph rdf.Term, q *rdf.Quad) (BindingSet, bool) {
	child := b.Clone()
	slots := [4]rdf.Term{tp.Subject, tp.Predicate, tp.Object, graph}
	values := [4]rdf.Term{q.Subject, q.Predicate, q.Object, q.Graph}
	for i, slot := range slots {
		v, ok := slot.(*rdf.Variable)
		if !ok {
			continue
		}
		if prev := child[v.Name]; prev != nil && !prev.Equals(values[i]) {
			return nil, false
		}
		child[v.Name] = values[i]
	}
	return child, true
}

func mergeBatch(b BindingSet, batch *store.Binding) (BindingSet, bool) {
	child := b.Clone()
	for name, t := range batch.Vars {
		if prev := child[name]; prev != nil && !prev.Equals(t) {
			return nil, false
		}
		child[name] = t
	}
	return child, true
}
