package results

import (
	"bufio"
	"encoding/xml"
	"io"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// SPARQL XML Results Format
// https://www.w3.org/TR/rdf-sparql-XMLres/

const xmlHeader = `<?xml version="1.0"?>
<sparql xmlns="http://www.w3.org/2005/sparql-results#">
`

// WriteXML writes a SELECT or ASK result as SPARQL XML. Bindings follow
// the order of the projected variables.
func WriteXML(w io.Writer, res *executor.Result) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(xmlHeader)

	if res.Form == parser.QueryTypeAsk {
		bw.WriteString("  <head/>\n  <boolean>")
		if res.Bool {
			bw.WriteString("true")
		} else {
			bw.WriteString("false")
		}
		bw.WriteString("</boolean>\n</sparql>\n")
		return bw.Flush()
	}

	bw.WriteString("  <head>\n")
	for _, name := range res.Vars {
		bw.WriteString(`    <variable name="`)
		escape(bw, name)
		bw.WriteString("\"/>\n")
	}
	bw.WriteString("  </head>\n  <results>\n")

	for _, row := range res.Rows {
		bw.WriteString("    <result>\n")
		for i, term := range row {
			if term == nil {
				continue
			}
			bw.WriteString(`      <binding name="`)
			escape(bw, res.Vars[i])
			bw.WriteString("\">")
			writeXMLTerm(bw, term)
			bw.WriteString("</binding>\n")
		}
		bw.WriteString("    </result>\n")
	}

	bw.WriteString("  </results>\n</sparql>\n")
	return bw.Flush()
}

func writeXMLTerm(bw *bufio.Writer, term rdf.Term) {
	switch t := term.(type) {
	case *rdf.NamedNode:
		bw.WriteString("<uri>")
		escape(bw, t.IRI)
		bw.WriteString("</uri>")
	case *rdf.BlankNode:
		bw.WriteString("<bnode>")
		escape(bw, t.ID)
		bw.WriteString("</bnode>")
	case *rdf.Literal:
		switch {
		case t.Language != "":
			bw.WriteString(`<literal xml:lang="`)
			escape(bw, t.Language)
			bw.WriteString(`">`)
		case t.DatatypeIRI() != rdf.XSDString.IRI:
			bw.WriteString(`<literal datatype="`)
			escape(bw, t.DatatypeIRI())
			bw.WriteString(`">`)
		default:
			bw.WriteString("<literal>")
		}
		escape(bw, t.Value)
		bw.WriteString("</literal>")
	default:
		bw.WriteString("<literal>")
		escape(bw, term.String())
		bw.WriteString("</literal>")
	}
}

// escape writes s as XML character data. Errors surface from Flush.
func escape(bw *bufio.Writer, s string) {
	_ = xml.EscapeText(bw, []byte(s))
}
