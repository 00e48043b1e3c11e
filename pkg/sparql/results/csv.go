package results

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// SPARQL CSV and TSV Results Formats
// https://www.w3.org/TR/sparql11-results-csv-tsv/

// WriteCSV writes a SELECT or ASK result as CSV. Terms lose their syntax:
// IRIs and literal values are written bare.
func WriteCSV(w io.Writer, res *executor.Result) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if res.Form == parser.QueryTypeAsk {
		if err := cw.Write([]string{"result"}); err != nil {
			return err
		}
		if err := cw.Write([]string{boolText(res.Bool)}); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	}

	if err := cw.Write(res.Vars); err != nil {
		return err
	}
	for _, row := range res.Rows {
		record := make([]string, len(row))
		for i, term := range row {
			if term != nil {
				record[i] = termToCSVValue(term)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func termToCSVValue(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return t.IRI
	case *rdf.BlankNode:
		return "_:" + t.ID
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}

// WriteTSV writes a SELECT or ASK result as TSV. Terms keep their
// N-Triples syntax, except numbers which are written bare.
func WriteTSV(w io.Writer, res *executor.Result) error {
	bw := bufio.NewWriter(w)

	if res.Form == parser.QueryTypeAsk {
		bw.WriteString("?result\n")
		bw.WriteString(boolText(res.Bool))
		bw.WriteByte('\n')
		return bw.Flush()
	}

	header := make([]string, len(res.Vars))
	for i, name := range res.Vars {
		header[i] = "?" + name
	}
	bw.WriteString(strings.Join(header, "\t"))
	bw.WriteByte('\n')

	for _, row := range res.Rows {
		for i, term := range row {
			if i > 0 {
				bw.WriteByte('\t')
			}
			if term != nil {
				bw.WriteString(termToTSVValue(term))
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func termToTSVValue(term rdf.Term) string {
	if l, ok := term.(*rdf.Literal); ok && l.Language == "" {
		switch l.DatatypeIRI() {
		case rdf.XSDInteger.IRI, rdf.XSDDecimal.IRI, rdf.XSDDouble.IRI:
			return l.Value
		}
	}
	return term.String()
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
