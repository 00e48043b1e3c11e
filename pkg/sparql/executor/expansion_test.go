package executor

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleksaelezovic/trigoql/internal/encoding"
	"github.com/aleksaelezovic/trigoql/internal/sqlstore"
	"github.com/aleksaelezovic/trigoql/internal/storage"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/optimizer"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

func openBadgerStore(t *testing.T) *store.TripleStore {
	t.Helper()
	st, err := storage.NewMemoryStorage()
	require.NoError(t, err)
	ts := store.NewTripleStore(st, encoding.NewTermEncoder(), encoding.NewTermDecoder())
	t.Cleanup(func() { _ = ts.Close() })
	return ts
}

// countingUnifier counts the batch calls made against a SQLite store.
type countingUnifier struct {
	*sqlstore.Store
	batches int
}

func (c *countingUnifier) BatchUnify(patterns []*store.Pattern) (store.BindingIterator, error) {
	c.batches++
	return c.Store.BatchUnify(patterns)
}

var equivalenceData = []*rdf.Quad{
	triple("a", "p1", iri("v1")),
	triple("a", "p2", iri("v2")),
	triple("b", "p1", iri("v3")),
	triple("c", "p1", iri("c")),
	triple("v1", "p3", rdf.NewLiteral("one")),
	triple("v3", "p3", rdf.NewIntegerLiteral(3)),
	inGraph("g1", "a", "p1", iri("v1")),
	inGraph("g1", "d", "p2", iri("v4")),
	inGraph("g2", "e", "p1", iri("v5")),
}

func TestBatchUnifyMatchesPatternExpansion(t *testing.T) {
	queries := []string{
		`SELECT * { ?s :p1 ?v1 . ?s :p2 ?v2 }`,
		`SELECT * { ?s :p1 ?v . ?v :p3 ?label }`,
		`SELECT * { ?s :p1 ?v OPTIONAL { ?s :p2 ?w } }`,
		`SELECT * { ?x :p1 ?x }`,
		`SELECT * { ?s ?p ?o FILTER(?o != :v1) }`,
		`SELECT * { GRAPH ?g { ?s ?p ?o } }`,
		`SELECT * { GRAPH ?g { ?s :p1 ?o . ?s2 :p2 ?o2 } }`,
		`SELECT * { { ?s :p1 ?o } UNION { ?s :p2 ?o } }`,
		`SELECT * { :a :p1 :v1 . :a :p2 ?o }`,
		`SELECT ?s { ?s :p1 ?v . ?v :p3 ?l FILTER(isLiteral(?l)) }`,
	}

	sql, err := sqlstore.Open(sqlstore.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sql.Close() })
	require.NoError(t, sql.InsertQuadsBatch(equivalenceData))
	unifier := &countingUnifier{Store: sql}

	reference := newTestExecutor(memStore(t, equivalenceData...))
	batched := newTestExecutor(unifier)
	unbatched := newTestExecutor(unifier, WithBatchUnify(false))

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			want := query(t, reference, q)

			before := unifier.batches
			got := query(t, unbatched, q)
			assert.Equal(t, before, unifier.batches, "batching disabled")
			assert.Equal(t, want.Vars, got.Vars)
			assert.ElementsMatch(t, want.Rows, got.Rows)

			got = query(t, batched, q)
			assert.Equal(t, want.Vars, got.Vars)
			assert.ElementsMatch(t, want.Rows, got.Rows)
		})
	}
	assert.Positive(t, unifier.batches)
}

func TestBatchUnifyNotUsedForDatasetClauses(t *testing.T) {
	sql, err := sqlstore.Open(sqlstore.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sql.Close() })
	require.NoError(t, sql.InsertQuadsBatch(equivalenceData))
	unifier := &countingUnifier{Store: sql}

	res := query(t, newTestExecutor(unifier), `SELECT ?s ?v FROM :g1 { ?s :p1 ?v . ?s ?p ?o }`)
	assert.Equal(t, 0, unifier.batches)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, []rdf.Term{iri("a"), iri("v1")}, res.Rows[0])
}

func testEvaluation() *evaluation {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return newEvaluation(context.Background(), 0, false, logrus.NewEntry(log))
}

func tp(s, p, o rdf.Term) *optimizer.TriplePattern {
	return &optimizer.TriplePattern{Subject: s, Predicate: p, Object: o}
}

func TestEvaluateBGPBuildsOneChildPerMatch(t *testing.T) {
	m := memStore(t,
		triple("a", "p", iri("x")),
		triple("a", "p", iri("y")),
		triple("b", "p", iri("z")),
	)
	ev := testEvaluation()
	s := rdf.NewVariable("s")
	o := rdf.NewVariable("o")

	res, err := ev.evaluate(&optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{tp(s, iri("p"), o)}},
		BindingSet{"s": iri("a")}, scope{store: m})
	require.NoError(t, err)

	roots := res.roots()
	require.Len(t, roots, 1)
	root := ev.nodes[roots[0]]
	assert.Equal(t, noParent, root.parent)
	assert.Len(t, root.children, 2)
	for _, c := range root.children {
		assert.Equal(t, roots[0], ev.nodes[c].parent)
		assert.True(t, ev.nodes[c].bound)
	}

	sols := ev.solutions(res)
	assert.ElementsMatch(t, []BindingSet{
		{"s": iri("a"), "o": iri("x")},
		{"s": iri("a"), "o": iri("y")},
	}, sols)
}

func TestEvaluateBGPClashOnNoMatch(t *testing.T) {
	ev := testEvaluation()
	res, err := ev.evaluate(&optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{
		tp(rdf.NewVariable("s"), iri("missing"), rdf.NewVariable("o")),
	}}, BindingSet{}, scope{store: memStore(t, triple("a", "p", iri("x")))})
	require.NoError(t, err)

	root := ev.nodes[res.roots()[0]]
	assert.True(t, root.clash)
	assert.True(t, root.expanded)
	assert.Empty(t, ev.solutions(res))
}

func TestJoinWithEmptyIsIdentity(t *testing.T) {
	m := memStore(t, triple("a", "p", iri("x")), triple("b", "p", iri("y")))
	bgp := &optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{
		tp(rdf.NewVariable("s"), iri("p"), rdf.NewVariable("o")),
	}}

	ev := testEvaluation()
	plain, err := ev.evaluate(bgp, BindingSet{}, scope{store: m})
	require.NoError(t, err)

	ev2 := testEvaluation()
	joined, err := ev2.evaluate(&optimizer.JoinPlan{Left: &optimizer.EmptyPlan{}, Right: bgp}, BindingSet{}, scope{store: m})
	require.NoError(t, err)

	assert.ElementsMatch(t, ev.solutions(plain), ev2.solutions(joined))
}

func TestLeftJoinMarksProxies(t *testing.T) {
	m := memStore(t,
		triple("a", "p1", iri("v1")),
		triple("b", "p1", iri("v2")),
		triple("a", "p2", iri("w")),
	)
	s := rdf.NewVariable("s")
	plan := &optimizer.LeftJoinPlan{
		Left:  &optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{tp(s, iri("p1"), rdf.NewVariable("v"))}},
		Right: &optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{tp(s, iri("p2"), rdf.NewVariable("w"))}},
	}

	ev := testEvaluation()
	res, err := ev.evaluate(plan, BindingSet{}, scope{store: m})
	require.NoError(t, err)

	var proxies, fallbacks int
	for _, id := range ev.points(res) {
		n := ev.nodes[id]
		if n.bindings["w"] != nil {
			proxies++
			assert.Equal(t, iri("a"), n.bindings["s"])
			assert.Empty(t, n.optionals)
		} else {
			fallbacks++
			assert.Equal(t, iri("b"), n.bindings["s"])
			assert.False(t, n.optionalMatch)
			assert.Len(t, n.optionals, 1)
		}
	}
	assert.Equal(t, 1, proxies)
	assert.Equal(t, 1, fallbacks)

	// the leaf for a is superseded by its proxy
	matched := 0
	for i := range ev.nodes {
		if ev.nodes[i].optionalMatch {
			matched++
			assert.Equal(t, iri("a"), ev.nodes[i].bindings["s"])
		}
	}
	assert.Equal(t, 1, matched)
}

func TestExcludedProxyDoesNotRestoreLeaf(t *testing.T) {
	m := memStore(t,
		triple("a", "p1", iri("v1")),
		triple("a", "p2", iri("w")),
	)
	s := rdf.NewVariable("s")
	plan := &optimizer.LeftJoinPlan{
		Left:  &optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{tp(s, iri("p1"), rdf.NewVariable("v"))}},
		Right: &optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{tp(s, iri("p2"), rdf.NewVariable("w"))}},
	}

	ev := testEvaluation()
	res, err := ev.evaluate(plan, BindingSet{}, scope{store: m})
	require.NoError(t, err)

	points := ev.points(res)
	require.Len(t, points, 1)
	ev.nodes[points[0]].clash = true

	assert.Empty(t, ev.points(res))
}

func TestUnionResultKeepsBothTrees(t *testing.T) {
	m := memStore(t, triple("a", "p1", iri("x")), triple("a", "p2", iri("y")))
	o := rdf.NewVariable("o")
	plan := &optimizer.UnionPlan{
		Left:  &optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{tp(iri("a"), iri("p1"), o)}},
		Right: &optimizer.BGPPlan{Patterns: []*optimizer.TriplePattern{tp(iri("a"), iri("p2"), o)}},
	}

	ev := testEvaluation()
	res, err := ev.evaluate(plan, BindingSet{}, scope{store: m})
	require.NoError(t, err)

	u, ok := res.(unionResult)
	require.True(t, ok)
	assert.Len(t, u.roots(), 2)
	assert.Equal(t, []BindingSet{{"o": iri("x")}, {"o": iri("y")}}, ev.solutions(res))
}

func TestBindQuadRepeatedVariable(t *testing.T) {
	x := rdf.NewVariable("x")
	pattern := tp(x, iri("p"), x)

	_, ok := bindQuad(BindingSet{}, pattern, nil, rdf.NewQuad(iri("a"), iri("p"), iri("b"), nil))
	assert.False(t, ok)

	b, ok := bindQuad(BindingSet{}, pattern, nil, rdf.NewQuad(iri("a"), iri("p"), iri("a"), nil))
	require.True(t, ok)
	assert.Equal(t, BindingSet{"x": iri("a")}, b)
}

func TestBindingSet(t *testing.T) {
	a := BindingSet{"x": iri("1"), "y": nil}
	b := BindingSet{"y": iri("2"), "z": iri("3")}
	c := BindingSet{"x": iri("other")}

	t.Run("compatible", func(t *testing.T) {
		assert.True(t, a.Compatible(b))
		assert.True(t, b.Compatible(a))
		assert.False(t, a.Compatible(c))
		assert.True(t, a.Compatible(BindingSet{}))
	})

	t.Run("merge", func(t *testing.T) {
		merged := a.Merge(b)
		assert.Equal(t, BindingSet{"x": iri("1"), "y": iri("2"), "z": iri("3")}, merged)
		assert.Equal(t, BindingSet{"x": iri("1"), "y": nil}, a, "receiver unchanged")
	})

	t.Run("fully bound", func(t *testing.T) {
		assert.False(t, a.IsFullyBound())
		assert.True(t, b.IsFullyBound())
		assert.True(t, BindingSet{}.IsFullyBound())
	})

	t.Run("get", func(t *testing.T) {
		_, ok := a.Get("y")
		assert.False(t, ok)
		_, ok = a.Get("missing")
		assert.False(t, ok)
		v, ok := a.Get("x")
		assert.True(t, ok)
		assert.Equal(t, iri("1"), v)
	})

	t.Run("project", func(t *testing.T) {
		assert.Equal(t, BindingSet{"z": iri("3"), "w": nil}, b.Project([]string{"z", "w"}))
		assert.Equal(t, b, b.Project(nil))
		assert.Equal(t, []rdf.Term{iri("3"), nil}, b.Row([]string{"z", "w"}))
	})

	t.Run("row key", func(t *testing.T) {
		assert.Equal(t, rowKey([]rdf.Term{iri("1"), nil}), rowKey([]rdf.Term{iri("1"), nil}))
		assert.NotEqual(t, rowKey([]rdf.Term{iri("1"), nil}), rowKey([]rdf.Term{nil, iri("1")}))
	})
}
