// Package executor evaluates SPARQL queries against a triple store.
//
// A query is reduced to an algebra plan by the optimizer and evaluated by
// expanding trees of partial bindings: every triple pattern match becomes a
// child node, incompatible matches are pruned, and Join and LeftJoin probe
// their right operand once per solution of their left operand. Solutions
// are read from the trees only when the query form asks for them.
package executor

import (
	"context"
	"errors"
	"maps"

	"github.com/sirupsen/logrus"

	"github.com/aleksaelezovic/trigoql/internal/logging"
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/optimizer"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// Executor runs queries against one store. It holds no per-query state and
// may be shared between goroutines as long as the store is not written to
// during a query.
type Executor struct {
	store     TripleStoreAdapter
	optimizer *optimizer.Optimizer
	opts      options
	log       *logrus.Entry
}

type options struct {
	initial      BindingSet
	namespaces   map[string]string
	batchUnify   bool
	eagerLimit   bool
	unionDefault bool
	describe     string
	loader       GraphLoader
}

// Option configures an Executor or a single query.
type Option func(*options)

// WithInitialBindings seeds evaluation with fixed variable values.
func WithInitialBindings(b map[string]rdf.Term) Option {
	return func(o *options) {
		o.initial = maps.Clone(BindingSet(b))
	}
}

// WithNamespaces adds prefixes available to queries without a PREFIX
// declaration.
func WithNamespaces(ns map[string]string) Option {
	return func(o *options) {
		merged := maps.Clone(o.namespaces)
		if merged == nil {
			merged = make(map[string]string, len(ns))
		}
		maps.Copy(merged, ns)
		o.namespaces = merged
	}
}

// WithBatchUnify toggles server-side batch unification for stores that
// support it. It is on by default.
func WithBatchUnify(enabled bool) Option {
	return func(o *options) { o.batchUnify = enabled }
}

// WithEagerLimit toggles stopping evaluation once LIMIT answers are found.
// It is on by default.
func WithEagerLimit(enabled bool) Option {
	return func(o *options) { o.eagerLimit = enabled }
}

// WithUnionDefaultGraph makes the default graph of queries without
// dataset clauses the union of all graphs of the store.
func WithUnionDefaultGraph(enabled bool) Option {
	return func(o *options) { o.unionDefault = enabled }
}

// WithDescribe selects the describe extension used by DESCRIBE.
func WithDescribe(uri string) Option {
	return func(o *options) { o.describe = uri }
}

// WithGraphLoader sets the loader that resolves FROM and FROM NAMED IRIs.
// The default loader reads file: IRIs.
func WithGraphLoader(l GraphLoader) Option {
	return func(o *options) { o.loader = l }
}

// NewExecutor creates a new query executor
func NewExecutor(store TripleStoreAdapter, opts ...Option) *Executor {
	o := options{
		batchUnify: true,
		eagerLimit: true,
		describe:   DescribeSubject,
		loader:     FileLoader{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor{
		store:     store,
		optimizer: optimizer.NewOptimizer(),
		opts:      o,
		log:       logging.Component("executor"),
	}
}

func (e *Executor) resolve(opts []Option) options {
	o := e.opts
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Query parses and executes a query string.
func (e *Executor) Query(ctx context.Context, query string, opts ...Option) (*Result, error) {
	o := e.resolve(opts)
	parsed, err := parser.Parse(query, o.namespaces)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, parsed, opts...)
}

// Execute evaluates a parsed query.
func (e *Executor) Execute(ctx context.Context, query *parser.Query, opts ...Option) (*Result, error) {
	o := e.resolve(opts)

	opt, err := e.optimizer.Optimize(query)
	if err != nil {
		return nil, err
	}

	vars := opt.Variables
	if query.Select != nil && query.Select.Variables != nil {
		vars = make([]string, len(query.Select.Variables))
		for i, v := range query.Select.Variables {
			vars[i] = v.Name
		}
	}
	sel, err := newSelection(query, vars)
	if err != nil {
		return nil, err
	}
	if err := checkGraphSlicing(query, opt); err != nil {
		return nil, err
	}

	view, err := newDatasetView(ctx, e.store, query.Dataset, o.loader, o.unionDefault)
	if err != nil {
		return nil, err
	}
	sc := scope{store: view, batch: view.batchUnifier()}

	limit := 0
	if o.eagerLimit {
		limit = opt.LimitHint
	}
	ev := newEvaluation(ctx, limit, o.batchUnify, e.log)

	res, err := ev.evaluate(opt.Plan, o.initial.Clone(), sc)
	switch {
	case errors.Is(err, errEnoughAnswers):
		e.log.WithField("answers", ev.answers).Debug("evaluation stopped at limit")
	case err != nil:
		return nil, sperrors.Wrap(err, sperrors.CodeQueryEvaluateFailure, "evaluate query")
	}
	sols := ev.solutions(res)

	e.log.WithFields(logrus.Fields{
		"form":      query.QueryType.String(),
		"nodes":     len(ev.nodes),
		"solutions": len(sols),
	}).Debug("query evaluated")

	result := &Result{Form: query.QueryType}
	switch query.QueryType {
	case parser.QueryTypeAsk:
		result.Bool = len(sols) > 0

	case parser.QueryTypeSelect:
		if opt.Recur != nil {
			sols, err = ev.closure(opt.Recur, sols, sc)
			if err != nil {
				return nil, sperrors.Wrap(err, sperrors.CodeQueryEvaluateFailure, "evaluate closure")
			}
		}
		result.Vars = vars
		result.Rows = sel.rows(sols)

	case parser.QueryTypeConstruct:
		sel.order(sols)
		start, end := sel.slice(len(sols))
		result.Graph = construct(query.Construct.Template, sols[start:end])

	case parser.QueryTypeDescribe:
		fn, err := lookupDescribe(o.describe)
		if err != nil {
			return nil, err
		}
		sel.order(sols)
		start, end := sel.slice(len(sols))
		resources := describedResources(query.Describe, opt.Variables, sols[start:end])
		if len(resources) == 0 {
			result.Graph = rdf.NewGraph()
			break
		}
		result.Graph, err = fn(ctx, view, resources)
		if err != nil {
			return nil, sperrors.Wrap(err, sperrors.CodeQueryEvaluateFailure, "describe resources")
		}
	}
	return result, nil
}

// checkGraphSlicing rejects LIMIT or OFFSET on graph forms whose pattern
// contains a UNION.
func checkGraphSlicing(query *parser.Query, opt *optimizer.OptimizedQuery) error {
	if query.QueryType != parser.QueryTypeConstruct && query.QueryType != parser.QueryTypeDescribe {
		return nil
	}
	if query.Modifiers.Limit == nil && query.Modifiers.Offset == nil {
		return nil
	}
	if !optimizer.ContainsUnion(opt.Plan) {
		return nil
	}
	return sperrors.Errorf(sperrors.CodeQueryConstructUnsupported,
		"LIMIT and OFFSET are not supported with UNION in %s", query.QueryType)
}

// describedResources collects the constants and variable values named by
// a DESCRIBE, without duplicates.
func describedResources(d *parser.DescribeQuery, whereVars []string, sols []BindingSet) []rdf.Term {
	var resources []rdf.Term
	seen := make(map[string]bool)
	add := func(t rdf.Term) {
		if t == nil || seen[t.String()] {
			return
		}
		seen[t.String()] = true
		resources = append(resources, t)
	}
	addVar := func(name string) {
		for _, sol := range sols {
			t, _ := sol.Get(name)
			add(t)
		}
	}

	if d == nil {
		return nil
	}
	for _, r := range d.Resources {
		if r.Variable != nil {
			addVar(r.Variable.Name)
		} else {
			add(r.Term)
		}
	}
	if d.Star {
		for _, name := range whereVars {
			addVar(name)
		}
	}
	return resources
}
