package rdf

import (
	"cmp"
	"strconv"
	"strings"
)

const xsdNS = "http://www.w3.org/2001/XMLSchema#"

var numericDatatypes = map[string]bool{
	xsdNS + "integer":            true,
	xsdNS + "decimal":            true,
	xsdNS + "double":             true,
	xsdNS + "float":              true,
	xsdNS + "int":                true,
	xsdNS + "long":               true,
	xsdNS + "short":              true,
	xsdNS + "byte":               true,
	xsdNS + "nonNegativeInteger": true,
	xsdNS + "nonPositiveInteger": true,
	xsdNS + "positiveInteger":    true,
	xsdNS + "negativeInteger":    true,
	xsdNS + "unsignedInt":        true,
	xsdNS + "unsignedLong":       true,
	xsdNS + "unsignedShort":      true,
	xsdNS + "unsignedByte":       true,
}

// IsNumericDatatype reports whether iri names an XSD numeric type.
func IsNumericDatatype(iri string) bool {
	return numericDatatypes[iri]
}

// NumericValue returns the value of a numeric literal.
func NumericValue(t Term) (float64, bool) {
	lit, ok := t.(*Literal)
	if !ok || lit.Datatype == nil || !numericDatatypes[lit.Datatype.IRI] {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(lit.Value), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// kindRank orders term kinds for sorting: unbound first, then blank
// nodes, IRIs and literals.
func kindRank(t Term) int {
	switch t.(type) {
	case nil:
		return 0
	case *BlankNode:
		return 1
	case *NamedNode:
		return 2
	case *Literal:
		return 3
	case *DefaultGraph:
		return 4
	case *Variable:
		return 5
	}
	return 6
}

// Compare gives the natural ordering used by ORDER BY. A nil term is
// unbound and sorts before everything else. Numeric literals sort before
// other literals and compare by value; ties and other literals compare by
// lexical form, then language, then datatype.
func Compare(a, b Term) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch x := a.(type) {
	case nil, *DefaultGraph:
		return 0
	case *BlankNode:
		return strings.Compare(x.ID, b.(*BlankNode).ID)
	case *NamedNode:
		return strings.Compare(x.IRI, b.(*NamedNode).IRI)
	case *Variable:
		return strings.Compare(x.Name, b.(*Variable).Name)
	case *Literal:
		y := b.(*Literal)
		xv, xnum := NumericValue(x)
		yv, ynum := NumericValue(y)
		if xnum != ynum {
			if xnum {
				return -1
			}
			return 1
		}
		if xnum {
			if c := cmp.Compare(xv, yv); c != 0 {
				return c
			}
		}
		if c := strings.Compare(x.Value, y.Value); c != 0 {
			return c
		}
		if c := strings.Compare(x.Language, y.Language); c != 0 {
			return c
		}
		return strings.Compare(x.DatatypeIRI(), y.DatatypeIRI())
	}
	return 0
}
