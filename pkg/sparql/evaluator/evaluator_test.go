package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

const ex = "http://example.org/"

// mapBindings is a plain map used as Bindings; a nil value is unbound.
type mapBindings map[string]rdf.Term

func (m mapBindings) Get(name string) (rdf.Term, bool) {
	t, ok := m[name]
	return t, ok && t != nil
}

// filterExpr parses expr as the only FILTER of a query.
func filterExpr(t *testing.T, expr string) parser.Expression {
	t.Helper()
	q, err := parser.Parse("SELECT * { ?s ?p ?o FILTER("+expr+") }", map[string]string{"": ex})
	require.NoError(t, err)
	for _, el := range q.Where.Elements {
		if f, ok := el.(*parser.Filter); ok {
			return f.Expression
		}
	}
	t.Fatalf("no filter in %q", expr)
	return nil
}

func testBindings() mapBindings {
	return mapBindings{
		"n":    rdf.NewIntegerLiteral(3),
		"d":    rdf.NewDecimalLiteral(1.5),
		"name": rdf.NewLiteral("Alice"),
		"fr":   rdf.NewLiteralWithLanguage("chat", "fr"),
		"iri":  rdf.NewNamedNode(ex + "alice"),
		"b":    rdf.NewBlankNode("b0"),
		"yes":  rdf.NewBooleanLiteral(true),
	}
}

func TestEvaluateValues(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want rdf.Term
	}{
		{"integer addition", "?n + 2", rdf.NewIntegerLiteral(5)},
		{"promotion to decimal", "?n * ?d", rdf.NewDecimalLiteral(4.5)},
		{"integer division", "7 / 2", rdf.NewDecimalLiteral(3.5)},
		{"unary minus", "-?n", rdf.NewIntegerLiteral(-3)},
		{"str of iri", "STR(?iri)", rdf.NewLiteral(ex + "alice")},
		{"lang", "LANG(?fr)", rdf.NewLiteral("fr")},
		{"datatype", "DATATYPE(?n)", rdf.XSDInteger},
		{"datatype of plain", "DATATYPE(?name)", rdf.XSDString},
		{"strlen counts runes", `STRLEN("héllo")`, rdf.NewIntegerLiteral(5)},
		{"substr", `SUBSTR("foobar", 4)`, rdf.NewLiteral("bar")},
		{"substr with length", `SUBSTR("foobar", 2, 3)`, rdf.NewLiteral("oob")},
		{"ucase keeps language", "UCASE(?fr)", rdf.NewLiteralWithLanguage("CHAT", "fr")},
		{"lcase", "LCASE(?name)", rdf.NewLiteral("alice")},
		{"concat", `CONCAT(?name, " & ", "Bob")`, rdf.NewLiteral("Alice & Bob")},
		{"abs", "ABS(-2)", rdf.NewIntegerLiteral(2)},
		{"ceil", "CEIL(?d)", rdf.NewDecimalLiteral(2)},
		{"floor", "FLOOR(?d)", rdf.NewDecimalLiteral(1)},
		{"round half up", "ROUND(?d)", rdf.NewDecimalLiteral(2)},
		{"integer cast", `<http://www.w3.org/2001/XMLSchema#integer>("42")`, rdf.NewIntegerLiteral(42)},
		{"string cast", "<http://www.w3.org/2001/XMLSchema#string>(?n)", rdf.NewLiteral("3")},
	}

	e := NewEvaluator()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(filterExpr(t, tc.expr), testBindings())
			require.NoError(t, err)
			assert.True(t, tc.want.Equals(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestTest(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"?n > 2", true},
		{"?n = 3.0", true},
		{"?n != 3", false},
		{"?d < ?n && ?n <= 3", true},
		{`?name < "Bob"`, true},
		{`?name = "Alice"`, true},
		{"?iri = :alice", true},
		{"?iri = :bob", false},
		{"?yes", true},
		{"!?yes", false},
		{`""`, false},
		{"0", false},
		{"isIRI(?iri) && isBlank(?b) && isLiteral(?name) && isNumeric(?d)", true},
		{"isNumeric(?name)", false},
		{"BOUND(?n)", true},
		{"BOUND(?missing)", false},
		{`CONTAINS(?name, "lic")`, true},
		{`STRSTARTS(?name, "Al")`, true},
		{`STRENDS(?name, "Al")`, false},
		{`REGEX(?name, "^a", "i")`, true},
		{`REGEX(?name, "^a")`, false},
		{`REGEX("a.c", ".", "q")`, true},
		{`REGEX("abc", "a b c", "x")`, true},
		{`LANGMATCHES(LANG(?fr), "FR")`, true},
		{`LANGMATCHES("fr-be", "fr")`, true},
		{`LANGMATCHES("fra", "fr")`, false},
		{`LANGMATCHES(LANG(?name), "*")`, false},
		{"sameTerm(?n, 3)", true},
		{"sameTerm(?n, 3.0)", false},
		{"?n IN (1, 2, 3)", true},
		{"?n NOT IN (1, 2)", true},
		{"?missing = 1 || ?n = 3", true},
		{"?missing = 1 && ?n = 4", false},
		{"?name = 1 || true", true},
	}

	e := NewEvaluator()
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := e.Test(filterExpr(t, tc.expr), testBindings())
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUnboundVariable(t *testing.T) {
	e := NewEvaluator()

	for _, expr := range []string{"?missing > 1", "?missing = 1 && ?other = 2", "STR(?missing)"} {
		_, err := e.Test(filterExpr(t, expr), testBindings())
		require.Error(t, err, expr)
		assert.True(t, sperrors.IsUnbound(err), expr)
	}

	_, err := e.Test(filterExpr(t, "?missing > 1"), testBindings())
	assert.Equal(t, "missing", sperrors.FieldsOf(err)["variable"])
}

func TestTypeMismatch(t *testing.T) {
	e := NewEvaluator()

	for _, expr := range []string{
		`?name > 3`,
		`?iri < ?name`,
		`?n / 0`,
		`?name + 1`,
		`?iri`,
		`STRLEN(?iri)`,
		`LANG(?iri)`,
		`ABS(?name)`,
		`REGEX(?name, "(")`,
		`CONTAINS(?fr, "x"@en)`,
		`<http://www.w3.org/2001/XMLSchema#integer>("abc")`,
	} {
		_, err := e.Test(filterExpr(t, expr), testBindings())
		require.Error(t, err, expr)
		assert.True(t, sperrors.IsTypeMismatch(err), expr)
		assert.False(t, sperrors.IsUnbound(err), expr)
	}
}

func TestEqualityOfUnknownDatatypes(t *testing.T) {
	e := NewEvaluator()
	b := mapBindings{
		"a": rdf.NewLiteralWithDatatype("x", rdf.NewNamedNode(ex+"t1")),
		"b": rdf.NewLiteralWithDatatype("x", rdf.NewNamedNode(ex+"t2")),
		"c": rdf.NewLiteralWithDatatype("x", rdf.NewNamedNode(ex+"t1")),
	}

	ok, err := e.Test(filterExpr(t, "?a = ?c"), b)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.Test(filterExpr(t, "?a = ?b"), b)
	assert.True(t, sperrors.IsTypeMismatch(err))
}

func TestMapBindingsNilIsUnbound(t *testing.T) {
	b := mapBindings{"x": nil}
	_, ok := b.Get("x")
	assert.False(t, ok)
}
