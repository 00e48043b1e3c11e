// Package results serializes query results: SPARQL JSON, XML, CSV and TSV
// for SELECT and ASK, N-Triples for CONSTRUCT and DESCRIBE, and an aligned
// text table for terminals.
package results

import (
	"io"
	"strings"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// Format names an output serialization.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatXML      Format = "xml"
	FormatCSV      Format = "csv"
	FormatTSV      Format = "tsv"
	FormatNTriples Format = "ntriples"
)

// Formats lists the accepted format names.
var Formats = []Format{FormatTable, FormatJSON, FormatXML, FormatCSV, FormatTSV, FormatNTriples}

// ParseFormat resolves a format name, ignoring case.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", sperrors.Errorf(sperrors.CodeQueryResultFormatUnsupported, "unknown result format %q", name)
}

// Write serializes res to w. Graph results are written as N-Triples in
// the table and ntriples formats; the tabular formats only accept SELECT
// and ASK results.
func Write(w io.Writer, res *executor.Result, f Format) error {
	switch res.Form {
	case parser.QueryTypeConstruct, parser.QueryTypeDescribe:
		if f != FormatNTriples && f != FormatTable {
			return unsupported(res, f)
		}
		return WriteNTriples(w, res.Graph)
	}

	switch f {
	case FormatTable:
		return WriteTable(w, res)
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatXML:
		return WriteXML(w, res)
	case FormatCSV:
		return WriteCSV(w, res)
	case FormatTSV:
		return WriteTSV(w, res)
	default:
		return unsupported(res, f)
	}
}

func unsupported(res *executor.Result, f Format) error {
	return sperrors.Errorf(sperrors.CodeQueryResultFormatUnsupported,
		"format %s cannot represent %s results", f, res.Form)
}
