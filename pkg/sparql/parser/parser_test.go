package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

const ex = "http://example.org/"

func mustParse(t *testing.T, query string) *Query {
	t.Helper()
	q, err := Parse(query, map[string]string{"": ex})
	require.NoError(t, err)
	return q
}

func TestParseSelectBasic(t *testing.T) {
	q := mustParse(t, `SELECT ?s ?v1 WHERE { ?s :p1 ?v1 . ?s :p2 ?v2 }`)

	assert.Equal(t, QueryTypeSelect, q.QueryType)
	require.NotNil(t, q.Select)
	require.Len(t, q.Select.Variables, 2)
	assert.Equal(t, "s", q.Select.Variables[0].Name)

	require.Len(t, q.Where.Elements, 1, "consecutive triples share one block")
	block := q.Where.Elements[0].(*TriplesBlock)
	require.Len(t, block.Triples, 2)
	assert.True(t, block.Triples[1].Predicate.Term.Equals(rdf.NewNamedNode(ex+"p2")))
	assert.Equal(t, []string{"s", "v2"}, block.Triples[1].Variables())
}

func TestParseSelectStarDistinctModifiers(t *testing.T) {
	q := mustParse(t, `
		# comment before the query
		SELECT DISTINCT * { ?s ?p ?o }
		ORDER BY DESC(?o) ?s
		OFFSET 2 LIMIT 10`)

	assert.Nil(t, q.Select.Variables)
	assert.True(t, q.Select.Distinct)
	require.Len(t, q.Modifiers.OrderBy, 2)
	assert.False(t, q.Modifiers.OrderBy[0].Ascending)
	assert.True(t, q.Modifiers.OrderBy[1].Ascending)
	require.NotNil(t, q.Modifiers.Limit)
	require.NotNil(t, q.Modifiers.Offset)
	assert.Equal(t, 10, *q.Modifiers.Limit)
	assert.Equal(t, 2, *q.Modifiers.Offset)
}

func TestParseOrderByExpression(t *testing.T) {
	q := mustParse(t, `SELECT ?s { ?s :p ?o } ORDER BY STR(?o)`)
	require.Len(t, q.Modifiers.OrderBy, 1)
	call, ok := q.Modifiers.OrderBy[0].Expression.(*FunctionCallExpression)
	require.True(t, ok)
	assert.Equal(t, "STR", call.Function)
}

func TestParsePrologAndDataset(t *testing.T) {
	q, err := NewParser(`
		BASE <http://base.example/dir/>
		PREFIX foaf: <http://xmlns.com/foaf/0.1/>
		SELECT ?name
		FROM <data.nq>
		FROM NAMED <http://example.org/g1>
		WHERE { ?x foaf:name ?name ; a <Person> }`).Parse()
	require.NoError(t, err)

	assert.Equal(t, "http://base.example/dir/", q.Prolog.Base)
	assert.Equal(t, "http://xmlns.com/foaf/0.1/", q.Prolog.Prefixes["foaf"])

	require.Len(t, q.Dataset, 2)
	assert.Equal(t, "http://base.example/dir/data.nq", q.Dataset[0].IRI.IRI)
	assert.False(t, q.Dataset[0].Named)
	assert.True(t, q.Dataset[1].Named)

	block := q.Where.Elements[0].(*TriplesBlock)
	require.Len(t, block.Triples, 2)
	assert.True(t, block.Triples[1].Predicate.Term.Equals(rdf.RDFType))
	assert.True(t, block.Triples[1].Object.Term.Equals(rdf.NewNamedNode("http://base.example/dir/Person")))
}

func TestParseGroupElements(t *testing.T) {
	q := mustParse(t, `
		SELECT * WHERE {
			?s :p1 ?v1 .
			FILTER (?v1 > 3 && bound(?s))
			OPTIONAL { ?s :p2 ?v2 }
			{ ?s :p3 ?v3 } UNION { ?s :p4 ?v4 } UNION { ?s :p5 ?v5 }
			GRAPH ?g { ?s :p6 ?v6 }
			{ ?s :p7 ?v7 }
		}`)

	elems := q.Where.Elements
	require.Len(t, elems, 6)
	assert.IsType(t, &TriplesBlock{}, elems[0])
	assert.IsType(t, &Filter{}, elems[1])
	assert.IsType(t, &OptionalPattern{}, elems[2])

	union, ok := elems[3].(*UnionPattern)
	require.True(t, ok)
	assert.Len(t, union.Alternatives, 3)

	graph, ok := elems[4].(*GraphGraphPattern)
	require.True(t, ok)
	require.NotNil(t, graph.Name.Variable)
	assert.Equal(t, "g", graph.Name.Variable.Name)

	assert.IsType(t, &GroupGraphPattern{}, elems[5])

	and := elems[1].(*Filter).Expression.(*BinaryExpression)
	assert.Equal(t, OpAnd, and.Operator)
	assert.Equal(t, []string{"v1", "s"}, ExpressionVariables(and))
}

func TestParseTermShorthands(t *testing.T) {
	q := mustParse(t, `SELECT * {
		:a :p "chat"@FR, 'x\ty', """multi
line""", "5"^^<http://www.w3.org/2001/XMLSchema#integer> ;
		   :q 42, -1.5, 1e3, true ;
		   :r _:b1, [ :s ?z ] .
	}`)

	block := q.Where.Elements[0].(*TriplesBlock)
	var objects []rdf.Term
	for _, tp := range block.Triples {
		objects = append(objects, tp.Object.AsTerm())
	}
	require.Len(t, objects, 11)

	assert.True(t, objects[0].Equals(rdf.NewLiteralWithLanguage("chat", "fr")))
	assert.True(t, objects[1].Equals(rdf.NewLiteral("x\ty")))
	assert.True(t, objects[2].Equals(rdf.NewLiteral("multi\nline")))
	assert.True(t, objects[3].Equals(rdf.NewIntegerLiteral(5)))
	assert.True(t, objects[4].Equals(rdf.NewIntegerLiteral(42)))
	assert.True(t, objects[5].Equals(rdf.NewLiteralWithDatatype("-1.5", rdf.XSDDecimal)))
	assert.True(t, objects[6].Equals(rdf.NewLiteralWithDatatype("1e3", rdf.XSDDouble)))
	assert.True(t, objects[7].Equals(rdf.NewBooleanLiteral(true)))
	assert.True(t, objects[8].Equals(rdf.NewBlankNode("b1")))

	anon, ok := objects[9].(*rdf.BlankNode)
	require.True(t, ok)
	// the nested triple follows the triples of its subject
	assert.True(t, block.Triples[10].Subject.Term.Equals(anon))
	assert.Equal(t, "z", block.Triples[10].Object.Variable.Name)
}

func TestParseTrailingDotInPrefixedName(t *testing.T) {
	q := mustParse(t, `ASK { :a :p :b. }`)
	block := q.Where.Elements[0].(*TriplesBlock)
	assert.True(t, block.Triples[0].Object.Term.Equals(rdf.NewNamedNode(ex+"b")))
}

func TestParseAsk(t *testing.T) {
	q := mustParse(t, `ASK { :a :p1 :v1 }`)
	assert.Equal(t, QueryTypeAsk, q.QueryType)
	assert.Nil(t, q.Select)
	assert.NotNil(t, q.Where)
}

func TestParseConstruct(t *testing.T) {
	q := mustParse(t, `CONSTRUCT { ?s :knows ?o . ?o a :Person } WHERE { ?s :p1 ?o }`)
	require.NotNil(t, q.Construct)
	assert.Len(t, q.Construct.Template, 2)

	q = mustParse(t, `CONSTRUCT WHERE { ?s :p1 ?o }`)
	require.Len(t, q.Construct.Template, 1)
	assert.Equal(t, "o", q.Construct.Template[0].Object.Variable.Name)

	_, err := Parse(`CONSTRUCT WHERE { ?s :p ?o FILTER(?o) }`, map[string]string{"": ex})
	assert.Error(t, err)
}

func TestParseDescribe(t *testing.T) {
	q := mustParse(t, `DESCRIBE :a ?x WHERE { ?x :p :a }`)
	require.NotNil(t, q.Describe)
	require.Len(t, q.Describe.Resources, 2)
	assert.True(t, q.Describe.Resources[0].Term.Equals(rdf.NewNamedNode(ex+"a")))
	assert.Equal(t, "x", q.Describe.Resources[1].Variable.Name)

	q = mustParse(t, `DESCRIBE <http://example.org/a>`)
	assert.Nil(t, q.Where)
	assert.Len(t, q.Describe.Resources, 1)
}

func TestParseRecur(t *testing.T) {
	q := mustParse(t, `SELECT ?anc WHERE { :me :parent ?anc } RECUR ?anc TO ?child { ?child :parent ?anc } LIMIT 5`)
	require.NotNil(t, q.Select.Recur)
	assert.Equal(t, "anc", q.Select.Recur.From.Name)
	assert.Equal(t, "child", q.Select.Recur.To.Name)
	assert.Len(t, q.Select.Recur.Pattern.Elements, 1)
	assert.Equal(t, 5, *q.Modifiers.Limit)
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		check  func(t *testing.T, expr Expression)
	}{
		{"precedence", `(?a + ?b * 2 = 7)`, func(t *testing.T, expr Expression) {
			eq := expr.(*BinaryExpression)
			assert.Equal(t, OpEqual, eq.Operator)
			add := eq.Left.(*BinaryExpression)
			assert.Equal(t, OpAdd, add.Operator)
			assert.Equal(t, OpMultiply, add.Right.(*BinaryExpression).Operator)
		}},
		{"not in", `(?x NOT IN (1, 2))`, func(t *testing.T, expr Expression) {
			in := expr.(*InExpression)
			assert.True(t, in.Not)
			assert.Len(t, in.Values, 2)
		}},
		{"negation", `(!bound(?x))`, func(t *testing.T, expr Expression) {
			not := expr.(*UnaryExpression)
			assert.Equal(t, OpNot, not.Operator)
			assert.Equal(t, "BOUND", not.Operand.(*FunctionCallExpression).Function)
		}},
		{"bare call", `regex(?name, "^A", "i")`, func(t *testing.T, expr Expression) {
			call := expr.(*FunctionCallExpression)
			assert.Equal(t, "REGEX", call.Function)
			assert.Len(t, call.Arguments, 3)
		}},
		{"iri function", `(xsd:integer(?v) >= -3)`, func(t *testing.T, expr Expression) {
			ge := expr.(*BinaryExpression)
			call := ge.Left.(*FunctionCallExpression)
			assert.Equal(t, rdf.XSDInteger.IRI, call.Function)
			assert.Equal(t, OpSubtract, ge.Right.(*BinaryExpression).Operator)
		}},
		{"not equal", `(?a!=?b)`, func(t *testing.T, expr Expression) {
			assert.Equal(t, OpNotEqual, expr.(*BinaryExpression).Operator)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(`SELECT * { ?s ?p ?o FILTER `+tt.filter+` }`, map[string]string{
				"xsd": "http://www.w3.org/2001/XMLSchema#",
			})
			require.NoError(t, err)
			tt.check(t, q.Where.Elements[1].(*Filter).Expression)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"missing query form", `WHERE { ?s ?p ?o }`},
		{"unterminated group", `SELECT * { ?s ?p ?o`},
		{"undefined prefix", `SELECT * { ?s nope:p ?o }`},
		{"trailing input", `ASK { ?s ?p ?o } garbage`},
		{"projection expression", `SELECT (STR(?s) AS ?x) { ?s ?p ?o }`},
		{"group by", `SELECT ?s { ?s ?p ?o } GROUP BY ?s`},
		{"exists", `SELECT * { ?s ?p ?o FILTER NOT EXISTS { ?s :q ?o } }`},
		{"bind", `SELECT * { ?s ?p ?o BIND(1 AS ?x) }`},
		{"subquery", `SELECT * { { SELECT ?s { ?s ?p ?o } } }`},
		{"literal predicate", `SELECT * { ?s "p" ?o }`},
		{"recur without TO", `SELECT * { ?s :p ?o } RECUR ?o ?s { ?s :p ?o }`},
		{"unknown function", `SELECT * { ?s ?p ?o FILTER(frob(?o)) }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query, map[string]string{"": ex})
			require.Error(t, err)
			assert.Equal(t, sperrors.CodeQueryParseInvalidSyntax, sperrors.CodeOf(err))
		})
	}
}
