package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

func optimize(t *testing.T, query string) (*OptimizedQuery, error) {
	t.Helper()
	q, err := parser.Parse(query, map[string]string{"": "urn:x:"})
	require.NoError(t, err)
	return NewOptimizer().Optimize(q)
}

func mustOptimize(t *testing.T, query string) *OptimizedQuery {
	t.Helper()
	opt, err := optimize(t, query)
	require.NoError(t, err)
	return opt
}

func TestReduceToAlgebra(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "conjunction folds into one BGP",
			query: `SELECT * { ?s :p1 ?v1 . ?s :p2 ?v2 }`,
			want:  `BGP(?s <urn:x:p1> ?v1 . ?s <urn:x:p2> ?v2)`,
		},
		{
			name:  "optional",
			query: `SELECT * { ?s :p1 ?v1 OPTIONAL { ?s :p2 ?v2 } }`,
			want:  `LeftJoin(BGP(?s <urn:x:p1> ?v1), BGP(?s <urn:x:p2> ?v2))`,
		},
		{
			name:  "triples after optional are joined",
			query: `SELECT * { ?s :p1 ?v1 OPTIONAL { ?s :p2 ?v2 } ?s :p3 ?v3 }`,
			want:  `Join(LeftJoin(BGP(?s <urn:x:p1> ?v1), BGP(?s <urn:x:p2> ?v2)), BGP(?s <urn:x:p3> ?v3))`,
		},
		{
			name:  "union folds left",
			query: `SELECT * { { ?s :p1 ?v } UNION { ?s :p2 ?v } UNION { ?s :p3 ?v } }`,
			want:  `Union(Union(BGP(?s <urn:x:p1> ?v), BGP(?s <urn:x:p2> ?v)), BGP(?s <urn:x:p3> ?v))`,
		},
		{
			name:  "leading optional extends the empty pattern",
			query: `SELECT * { OPTIONAL { ?s :p ?o } }`,
			want:  `LeftJoin(Empty, BGP(?s <urn:x:p> ?o))`,
		},
		{
			name:  "filter only group",
			query: `SELECT * { FILTER(1 = 1) }`,
			want:  `BGP(){1 filters}`,
		},
		{
			name:  "empty group",
			query: `SELECT * { }`,
			want:  `Empty`,
		},
		{
			name:  "filter pushdown",
			query: `SELECT * { ?s :p ?o . ?o :q ?x FILTER(?x > 2) FILTER(?s != ?x) }`,
			want:  `BGP(?s <urn:x:p> ?o . ?o <urn:x:q> ?x [local]){1 filters}`,
		},
		{
			name:  "operator filter",
			query: `SELECT * { ?s :p ?o OPTIONAL { ?o :q ?x } FILTER(!BOUND(?x)) }`,
			want:  `LeftJoin(BGP(?s <urn:x:p> ?o), BGP(?o <urn:x:q> ?x)){1 filters}`,
		},
		{
			name:  "graph",
			query: `SELECT * { GRAPH ?g { ?s ?p ?o } }`,
			want:  `Graph(?g, BGP(?s ?p ?o))`,
		},
		{
			name:  "nested group",
			query: `SELECT * { ?s :p ?o { ?o :q ?x } }`,
			want:  `Join(BGP(?s <urn:x:p> ?o), BGP(?o <urn:x:q> ?x))`,
		},
		{
			name:  "blank nodes become variables",
			query: `SELECT * { _:b :p ?o }`,
			want:  `BGP(?_:b <urn:x:p> ?o)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opt := mustOptimize(t, tt.query)
			assert.Equal(t, tt.want, Format(opt.Plan))
		})
	}
}

func TestLocalFilterTarget(t *testing.T) {
	opt := mustOptimize(t, `SELECT * { ?s :p ?o . ?o :q ?x FILTER(?x > 2) }`)
	bgp := opt.Plan.(*BGPPlan)
	require.Len(t, bgp.Patterns, 2)
	assert.Nil(t, bgp.Patterns[0].LocalFilter)
	assert.NotNil(t, bgp.Patterns[1].LocalFilter)
	assert.Empty(t, bgp.Filters)
}

func TestVariables(t *testing.T) {
	opt := mustOptimize(t, `SELECT * { ?s :p ?o OPTIONAL { ?o :q ?x } GRAPH ?g { ?x ?y ?z } _:b :r ?s }`)
	assert.Equal(t, []string{"s", "o", "x", "g", "y", "z"}, opt.Variables)
}

func TestOptionalScopes(t *testing.T) {
	_, err := optimize(t, `SELECT * { ?s :p ?o OPTIONAL { ?s :a ?x } OPTIONAL { ?s :b ?x } }`)
	require.Error(t, err)
	assert.True(t, sperrors.IsStructure(err))
	assert.Equal(t, "x", sperrors.FieldsOf(err)["variable"])

	_, err = optimize(t, `SELECT * { { ?s :p ?o } UNION { OPTIONAL { ?s :a ?x } OPTIONAL { ?s :b ?x } } }`)
	assert.True(t, sperrors.IsStructure(err), "nested groups are checked")

	_, err = optimize(t, `SELECT * { ?s :p ?x OPTIONAL { ?s :a ?x } OPTIONAL { ?s :b ?x } }`)
	assert.NoError(t, err, "bound by the required part")

	_, err = optimize(t, `SELECT * { ?s :p ?o OPTIONAL { ?s :a ?x } OPTIONAL { ?s :b ?y } }`)
	assert.NoError(t, err)
}

func TestLimitHint(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"plain limit", `SELECT ?s { ?s :p ?o } LIMIT 5`, 5},
		{"zero offset", `SELECT ?s { ?s :p ?o } LIMIT 5 OFFSET 0`, 5},
		{"offset", `SELECT ?s { ?s :p ?o } LIMIT 5 OFFSET 1`, 0},
		{"limit zero", `SELECT ?s { ?s :p ?o } LIMIT 0`, 0},
		{"order by", `SELECT ?s { ?s :p ?o } ORDER BY ?s LIMIT 5`, 0},
		{"distinct", `SELECT DISTINCT ?s { ?s :p ?o } LIMIT 5`, 0},
		{"operator filter", `SELECT * { ?s :p ?o OPTIONAL { ?o :q ?x } FILTER(!BOUND(?x)) } LIMIT 5`, 0},
		{"bgp filter", `SELECT * { ?s :p ?o FILTER(?o != ?s) } LIMIT 5`, 5},
		{"recur", `SELECT ?a { :me :parent ?a } RECUR ?a TO ?c { ?c :parent ?a } LIMIT 5`, 0},
		{"ask", `ASK { ?s :p ?o }`, 1},
		{"construct", `CONSTRUCT { ?s :q ?o } WHERE { ?s :p ?o } LIMIT 3`, 3},
		{"no limit", `SELECT * { ?s :p ?o }`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustOptimize(t, tt.query).LimitHint)
		})
	}
}

func TestRightmostMarking(t *testing.T) {
	opt := mustOptimize(t, `SELECT * { ?s :p ?o { ?o :q ?x } } LIMIT 2`)
	assert.Equal(t, `Join(BGP(?s <urn:x:p> ?o), BGP(?o <urn:x:q> ?x)*)`, Format(opt.Plan))

	opt = mustOptimize(t, `SELECT * { { ?s :p ?o } UNION { ?s :q ?o } } LIMIT 2`)
	assert.Equal(t, `Union(BGP(?s <urn:x:p> ?o)*, BGP(?s <urn:x:q> ?o)*)`, Format(opt.Plan))

	opt = mustOptimize(t, `SELECT * { ?s :p ?o { ?o :q ?x } }`)
	assert.Equal(t, `Join(BGP(?s <urn:x:p> ?o), BGP(?o <urn:x:q> ?x))`, Format(opt.Plan), "no hint, no marks")
}

func TestRecurPlan(t *testing.T) {
	opt := mustOptimize(t, `SELECT ?a { :me :parent ?a } RECUR ?a TO ?c { ?c :parent ?a }`)
	require.NotNil(t, opt.Recur)
	assert.Equal(t, "a", opt.Recur.From)
	assert.Equal(t, "c", opt.Recur.To)
	assert.Equal(t, `BGP(?c <urn:x:parent> ?a)`, Format(opt.Recur.Plan))
}

func TestContainsUnion(t *testing.T) {
	assert.True(t, ContainsUnion(mustOptimize(t, `SELECT * { ?s :p ?o { { ?o :a ?x } UNION { ?o :b ?x } } }`).Plan))
	assert.False(t, ContainsUnion(mustOptimize(t, `SELECT * { ?s :p ?o OPTIONAL { ?o :a ?x } }`).Plan))
}

func TestOptimizerLogsAsComponent(t *testing.T) {
	assert.Equal(t, "optimizer", NewOptimizer().log.Data["component"])
}
