package results

import (
	"encoding/json"
	"io"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// SPARQL JSON Results Format
// https://www.w3.org/TR/sparql11-results-json/

// SPARQLResultsJSON is the document written for SELECT and ASK.
type SPARQLResultsJSON struct {
	Head    ResultHead      `json:"head"`
	Results *ResultBindings `json:"results,omitempty"`
	Boolean *bool           `json:"boolean,omitempty"`
}

type ResultHead struct {
	Vars []string `json:"vars"`
}

type ResultBindings struct {
	Bindings []map[string]BindingValue `json:"bindings"`
}

// BindingValue is one bound term. Unbound variables are left out of their
// row.
type BindingValue struct {
	Type     string  `json:"type"`
	Value    string  `json:"value"`
	Datatype *string `json:"datatype,omitempty"`
	XMLLang  *string `json:"xml:lang,omitempty"`
}

// WriteJSON writes a SELECT or ASK result as indented SPARQL JSON.
func WriteJSON(w io.Writer, res *executor.Result) error {
	doc := SPARQLResultsJSON{Head: ResultHead{Vars: []string{}}}

	if res.Form == parser.QueryTypeAsk {
		b := res.Bool
		doc.Boolean = &b
	} else {
		if res.Vars != nil {
			doc.Head.Vars = res.Vars
		}
		bindings := make([]map[string]BindingValue, 0, len(res.Rows))
		for _, row := range res.Rows {
			binding := make(map[string]BindingValue, len(row))
			for i, term := range row {
				if term != nil {
					binding[res.Vars[i]] = termToBindingValue(term)
				}
			}
			bindings = append(bindings, binding)
		}
		doc.Results = &ResultBindings{Bindings: bindings}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func termToBindingValue(term rdf.Term) BindingValue {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return BindingValue{Type: "uri", Value: t.IRI}
	case *rdf.BlankNode:
		return BindingValue{Type: "bnode", Value: t.ID}
	case *rdf.Literal:
		bv := BindingValue{Type: "literal", Value: t.Value}
		if t.Language != "" {
			lang := t.Language
			bv.XMLLang = &lang
		} else if dt := t.DatatypeIRI(); dt != rdf.XSDString.IRI {
			bv.Datatype = &dt
		}
		return bv
	default:
		return BindingValue{Type: "literal", Value: term.String()}
	}
}
