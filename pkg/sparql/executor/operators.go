package executor

import (
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/optimizer"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// evaluate runs an algebra operator against seed. On errEnoughAnswers the
// partial result built so far is returned together with the error.
func (ev *evaluation) evaluate(plan optimizer.QueryPlan, seed BindingSet, sc scope) (QueryResult, error) {
	switch p := plan.(type) {
	case *optimizer.BGPPlan:
		return ev.evaluateBGP(p, seed, sc)
	case *optimizer.JoinPlan:
		return ev.evaluateProbe(p.Left, p.Right, p.Filters, false, seed, sc)
	case *optimizer.LeftJoinPlan:
		return ev.evaluateProbe(p.Left, p.Right, p.Filters, true, seed, sc)
	case *optimizer.UnionPlan:
		return ev.evaluateUnion(p, seed, sc)
	case *optimizer.GraphPlan:
		return ev.evaluateGraph(p, seed, sc)
	case *optimizer.EmptyPlan:
		return ev.evaluateEmpty(seed), nil
	default:
		return nil, sperrors.Errorf(sperrors.CodeQueryConstructUnsupported, "unsupported plan node %T", plan)
	}
}

// evaluateBGP builds one expansion tree rooted at seed, with every pattern
// variable not yet in seed known but unbound.
func (ev *evaluation) evaluateBGP(p *optimizer.BGPPlan, seed BindingSet, sc scope) (QueryResult, error) {
	bindings := seed.Clone()
	for _, tp := range p.Patterns {
		for _, name := range tp.Variables() {
			if _, ok := bindings[name]; !ok {
				bindings[name] = nil
			}
		}
	}
	if g, ok := sc.graph.(*rdf.Variable); ok && len(p.Patterns) > 0 {
		if _, ok := bindings[g.Name]; !ok {
			bindings[g.Name] = nil
		}
	}

	run := &bgpRun{scope: sc, constraints: p.Filters, rightmost: p.Rightmost}
	if ev.batch && sc.batch != nil {
		run.unifier = sc.batch
	}

	root := ev.newNode(noParent, bindings, p.Patterns)
	err := ev.expand(root, run)
	return leafResult{root: root}, err
}

func (ev *evaluation) evaluateEmpty(seed BindingSet) QueryResult {
	root := ev.newNode(noParent, seed.Clone(), nil)
	ev.complete(root, &bgpRun{})
	return leafResult{root: root}
}

// evaluateProbe is the nested-loop evaluation shared by Join and LeftJoin:
// right is evaluated once per solution point of left, seeded with the
// point's bindings. Join attaches the probe as children of the point,
// LeftJoin as optional subtrees.
func (ev *evaluation) evaluateProbe(leftPlan, rightPlan optimizer.QueryPlan, filters []parser.Expression, optional bool, seed BindingSet, sc scope) (QueryResult, error) {
	left, err := ev.evaluate(leftPlan, seed, sc)
	points := ev.points(left)
	for _, id := range points {
		ev.nodes[id].awaiting = true
	}
	if err != nil {
		return left, err
	}

	for _, id := range points {
		if err := ev.checkpoint(); err != nil {
			return left, err
		}
		ev.nodes[id].awaiting = false

		right, err := ev.evaluate(rightPlan, ev.nodes[id].bindings, sc)
		if right != nil {
			ev.attach(id, right, optional)
		}
		if err != nil {
			if optional && !ev.nodes[id].optionalMatch {
				ev.nodes[id].awaiting = true
			}
			return left, err
		}
	}

	ev.applyFilters(left, filters)
	return left, nil
}

func (ev *evaluation) attach(id int, right QueryResult, optional bool) {
	roots := right.roots()
	for _, r := range roots {
		ev.nodes[r].parent = id
	}
	if !optional {
		ev.nodes[id].children = append(ev.nodes[id].children, roots...)
		return
	}

	ev.nodes[id].optionals = append(ev.nodes[id].optionals, roots...)
	ev.nodes[id].optionalMatch = len(ev.points(right)) > 0
}

// evaluateUnion evaluates both sides against the same seed.
func (ev *evaluation) evaluateUnion(p *optimizer.UnionPlan, seed BindingSet, sc scope) (QueryResult, error) {
	left, err := ev.evaluate(p.Left, seed, sc)
	if err != nil {
		return unionResult{left: left}, err
	}
	right, err := ev.evaluate(p.Right, seed, sc)
	res := unionResult{left: left, right: right}
	if err != nil {
		return res, err
	}
	ev.applyFilters(res, p.Filters)
	return res, nil
}

// evaluateGraph re-scopes the input to a named graph. An unbound graph
// variable is bound by the matches of the input's patterns when every
// solution of the input passes through a pattern match; otherwise the
// input is evaluated once per named graph.
func (ev *evaluation) evaluateGraph(p *optimizer.GraphPlan, seed BindingSet, sc scope) (QueryResult, error) {
	g := substitute(p.Graph, seed)
	inner := scope{store: sc.store, graph: g, batch: sc.batch}

	v, unbound := g.(*rdf.Variable)
	if !unbound || bindsGraph(p.Input) {
		res, err := ev.evaluate(p.Input, seed, inner)
		if err != nil {
			return res, err
		}
		ev.applyFilters(res, p.Filters)
		return res, nil
	}

	lister, ok := sc.store.(GraphLister)
	if !ok {
		return ev.deadEnd(seed), nil
	}
	graphs, err := lister.NamedGraphs()
	if err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeQueryEvaluateFailure, "list named graphs")
	}

	var res QueryResult
	for _, name := range graphs {
		scoped := seed.Clone()
		scoped[v.Name] = name
		part, err := ev.evaluate(p.Input, scoped, scope{store: sc.store, graph: name, batch: sc.batch})
		if res == nil {
			res = part
		} else {
			res = unionResult{left: res, right: part}
		}
		if err != nil {
			return res, err
		}
	}
	if res == nil {
		return ev.deadEnd(seed), nil
	}
	ev.applyFilters(res, p.Filters)
	return res, nil
}

// deadEnd is a result without solutions.
func (ev *evaluation) deadEnd(seed BindingSet) QueryResult {
	root := ev.newNode(noParent, seed.Clone(), nil)
	n := &ev.nodes[root]
	n.expanded = true
	n.clash = true
	return leafResult{root: root}
}

// applyFilters removes the solutions of res rejected by an operator
// filter. It runs once the operator has been fully evaluated, so each
// point carries exactly the bindings of one solution of the operator.
func (ev *evaluation) applyFilters(res QueryResult, filters []parser.Expression) {
	if len(filters) == 0 {
		return
	}
	for _, id := range ev.points(res) {
		if !ev.acceptAll(filters, ev.nodes[id].bindings) {
			ev.nodes[id].clash = true
		}
	}
}

// bindsGraph reports whether every solution of plan, evaluated in a graph
// scope, contains a match of one of its own patterns. Optional parts and
// pattern-less branches can produce solutions that never touched the
// graph, and a nested GRAPH matches in another graph.
func bindsGraph(plan optimizer.QueryPlan) bool {
	switch p := plan.(type) {
	case *optimizer.BGPPlan:
		return len(p.Patterns) > 0
	case *optimizer.JoinPlan:
		return bindsGraph(p.Left) || (!hasPatterns(p.Left) && bindsGraph(p.Right))
	case *optimizer.LeftJoinPlan:
		return bindsGraph(p.Left)
	case *optimizer.UnionPlan:
		return bindsGraph(p.Left) && bindsGraph(p.Right)
	}
	return false
}

func hasPatterns(plan optimizer.QueryPlan) bool {
	switch p := plan.(type) {
	case *optimizer.BGPPlan:
		return len(p.Patterns) > 0
	case *optimizer.JoinPlan:
		return hasPatterns(p.Left) || hasPatterns(p.Right)
	case *optimizer.LeftJoinPlan:
		return hasPatterns(p.Left) || hasPatterns(p.Right)
	case *optimizer.UnionPlan:
		return hasPatterns(p.Left) || hasPatterns(p.Right)
	case *optimizer.GraphPlan:
		return hasPatterns(p.Input)
	}
	return false
}
