package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

func datasetStore(t *testing.T) *Executor {
	t.Helper()
	return newTestExecutor(memStore(t,
		triple("a", "p", iri("d1")),
		inGraph("g1", "a", "p", iri("x1")),
		inGraph("g1", "b", "p", iri("x2")),
		inGraph("g2", "a", "p", iri("x1")),
		inGraph("g2", "c", "p", iri("x3")),
	))
}

func TestDatasetClauses(t *testing.T) {
	e := datasetStore(t)

	tests := []struct {
		name  string
		query string
		want  [][]rdf.Term
	}{
		{
			name:  "store default graph",
			query: `SELECT ?s ?o { ?s :p ?o }`,
			want:  [][]rdf.Term{{iri("a"), iri("d1")}},
		},
		{
			name:  "from replaces the default graph",
			query: `SELECT ?s ?o FROM :g1 { ?s :p ?o }`,
			want:  [][]rdf.Term{{iri("a"), iri("x1")}, {iri("b"), iri("x2")}},
		},
		{
			name:  "from graphs are merged",
			query: `SELECT ?s ?o FROM :g1 FROM :g2 { ?s :p ?o }`,
			want:  [][]rdf.Term{{iri("a"), iri("x1")}, {iri("b"), iri("x2")}, {iri("c"), iri("x3")}},
		},
		{
			name:  "from named restricts graph variables",
			query: `SELECT ?g ?s FROM NAMED :g1 { GRAPH ?g { ?s :p ?o } }`,
			want:  [][]rdf.Term{{iri("g1"), iri("a")}, {iri("g1"), iri("b")}},
		},
		{
			name:  "from named leaves the default graph empty",
			query: `SELECT ?s FROM NAMED :g1 { ?s :p ?o }`,
			want:  nil,
		},
		{
			name:  "graph outside the named set",
			query: `SELECT ?s FROM NAMED :g1 { GRAPH :g2 { ?s :p ?o } }`,
			want:  nil,
		},
		{
			name:  "graph variable over all named graphs",
			query: `SELECT ?g ?o { GRAPH ?g { :a :p ?o } }`,
			want:  [][]rdf.Term{{iri("g1"), iri("x1")}, {iri("g2"), iri("x1")}},
		},
		{
			name:  "graph variable is shared by the patterns",
			query: `SELECT ?g ?s { GRAPH ?g { :a :p :x1 . ?s :p :x3 } }`,
			want:  [][]rdf.Term{{iri("g2"), iri("c")}},
		},
		{
			name:  "graph without patterns lists named graphs",
			query: `SELECT ?g { GRAPH ?g { } }`,
			want:  [][]rdf.Term{{iri("g1")}, {iri("g2")}},
		},
		{
			name:  "graph variable with only an optional part",
			query: `SELECT ?g ?s { GRAPH ?g { OPTIONAL { ?s :p :x2 } } }`,
			want:  [][]rdf.Term{{iri("g1"), iri("b")}, {iri("g2"), nil}},
		},
		{
			name:  "graph variable with an optional part that never matches",
			query: `SELECT ?g ?s { GRAPH ?g { OPTIONAL { ?s :zz ?o } } }`,
			want:  [][]rdf.Term{{iri("g1"), nil}, {iri("g2"), nil}},
		},
		{
			name:  "graph variable with an empty union branch",
			query: `SELECT ?g ?s { GRAPH ?g { { ?s :p :x3 } UNION { } } }`,
			want:  [][]rdf.Term{{iri("g1"), nil}, {iri("g2"), iri("c")}, {iri("g2"), nil}},
		},
		{
			name:  "graph variable bound by the required part",
			query: `SELECT ?g ?s { GRAPH ?g { ?s :p :x1 OPTIONAL { ?s :zz ?o } } }`,
			want:  [][]rdf.Term{{iri("g1"), iri("a")}, {iri("g2"), iri("a")}},
		},
		{
			name:  "graph without patterns in a restricted dataset",
			query: `SELECT ?g FROM NAMED :g2 { GRAPH ?g { } }`,
			want:  [][]rdf.Term{{iri("g2")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := query(t, e, tt.query)
			assert.ElementsMatch(t, tt.want, res.Rows)
		})
	}
}

func TestUnionDefaultGraph(t *testing.T) {
	e := datasetStore(t)

	res := query(t, e, `SELECT ?o { :a :p ?o }`, WithUnionDefaultGraph(true))
	assert.ElementsMatch(t, []rdf.Term{iri("d1"), iri("x1")}, res.Values())

	res = query(t, e, `SELECT ?o FROM :g2 { :a :p ?o }`, WithUnionDefaultGraph(true))
	assert.Equal(t, []rdf.Term{iri("x1")}, res.Values(), "dataset clauses take precedence")
}

func TestFileGraphs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.nt")
	require.NoError(t, os.WriteFile(path, []byte(
		"<http://example.org/f> <http://example.org/p> \"file\" .\n"+
			"<http://example.org/f> <http://example.org/p> \"quad\" <http://example.org/ignored> .\n",
	), 0o600))
	fileIRI := "file://" + path

	e := datasetStore(t)

	res := query(t, e, `SELECT ?o FROM <`+fileIRI+`> { :f :p ?o }`)
	assert.ElementsMatch(t, []rdf.Term{rdf.NewLiteral("file"), rdf.NewLiteral("quad")}, res.Values())

	res = query(t, e, `SELECT ?g ?o FROM NAMED <`+fileIRI+`> FROM NAMED :g1 { GRAPH ?g { ?s :p ?o } }`)
	assert.ElementsMatch(t, [][]rdf.Term{
		{rdf.NewNamedNode(fileIRI), rdf.NewLiteral("file")},
		{rdf.NewNamedNode(fileIRI), rdf.NewLiteral("quad")},
		{iri("g1"), iri("x1")},
		{iri("g1"), iri("x2")},
	}, res.Rows)

	_, err := e.Query(context.Background(), `SELECT * FROM <file://`+filepath.Join(dir, "missing.nt")+`> { ?s ?p ?o }`)
	require.Error(t, err)
	assert.Equal(t, sperrors.CodeQueryDatasetLoadFailure, sperrors.CodeOf(err))
	assert.Equal(t, "file://"+filepath.Join(dir, "missing.nt"), sperrors.FieldsOf(err)["graph"])
}

type staticLoader map[string][]*rdf.Triple

func (l staticLoader) LoadGraph(_ context.Context, iri string) ([]*rdf.Triple, bool, error) {
	triples, ok := l[iri]
	return triples, ok, nil
}

func TestCustomGraphLoader(t *testing.T) {
	loader := staticLoader{
		"urn:example:remote": {rdf.NewTriple(iri("r"), iri("p"), iri("remote"))},
	}
	e := newTestExecutor(memStore(t, inGraph("g1", "a", "p", iri("x1"))), WithGraphLoader(loader))

	res := query(t, e, `SELECT ?s ?o FROM <urn:example:remote> FROM :g1 { ?s :p ?o }`)
	assert.ElementsMatch(t, [][]rdf.Term{
		{iri("r"), iri("remote")},
		{iri("a"), iri("x1")},
	}, res.Rows)
}
