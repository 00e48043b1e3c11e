package results

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// WriteTable writes a SELECT result as aligned columns followed by a row
// count, and an ASK result as a single word.
func WriteTable(w io.Writer, res *executor.Result) error {
	if res.Form == parser.QueryTypeAsk {
		_, err := fmt.Fprintln(w, boolText(res.Bool))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, name := range res.Vars {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, "?"+name)
	}
	fmt.Fprintln(tw)

	for _, row := range res.Rows {
		for i, term := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if term != nil {
				fmt.Fprint(tw, term.String())
			}
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "(%d %s)\n", len(res.Rows), plural(len(res.Rows), "row"))
	return err
}

// WriteNTriples writes a graph result. A nil graph writes nothing.
func WriteNTriples(w io.Writer, g *rdf.Graph) error {
	if g == nil {
		return nil
	}
	return rdf.WriteNTriples(w, g.Triples())
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
