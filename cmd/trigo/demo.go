package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/executor"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/results"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

const (
	foaf    = "http://xmlns.com/foaf/0.1/"
	exNS    = "http://example.org/"
	graph1  = exNS + "graph1"
	graph2  = exNS + "graph2"
	demoPfx = "PREFIX foaf: <" + foaf + ">\nPREFIX ex: <" + exNS + ">\n"
)

var demoQueries = []string{
	`SELECT ?person ?name ?age
WHERE {
  ?person foaf:name ?name .
  ?person foaf:age ?age .
}
ORDER BY ?age`,
	`SELECT ?name ?friend
WHERE {
  ?person foaf:name ?name .
  OPTIONAL { ?person foaf:knows ?friend }
}`,
	`SELECT ?g ?name
WHERE {
  GRAPH ?g { ex:alice foaf:name ?name }
}`,
	`SELECT ?reachable
WHERE { ex:alice foaf:knows ?reachable }
RECUR ?reachable TO ?via { ?via foaf:knows ?reachable }`,
	`CONSTRUCT { ?b ex:knownBy ?a }
WHERE { ?a foaf:knows ?b }`,
}

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run sample queries over a small in-memory dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd, a.executorOptions())
		},
	}
}

func demoData() []*rdf.Quad {
	alice := rdf.NewNamedNode(exNS + "alice")
	bob := rdf.NewNamedNode(exNS + "bob")
	carol := rdf.NewNamedNode(exNS + "carol")
	knows := rdf.NewNamedNode(foaf + "knows")
	name := rdf.NewNamedNode(foaf + "name")
	age := rdf.NewNamedNode(foaf + "age")
	g1 := rdf.NewNamedNode(graph1)
	g2 := rdf.NewNamedNode(graph2)
	def := rdf.NewDefaultGraph()

	return []*rdf.Quad{
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice"), def),
		rdf.NewQuad(alice, age, rdf.NewIntegerLiteral(30), def),
		rdf.NewQuad(alice, knows, bob, def),
		rdf.NewQuad(bob, name, rdf.NewLiteral("Bob"), def),
		rdf.NewQuad(bob, age, rdf.NewIntegerLiteral(25), def),
		rdf.NewQuad(bob, knows, carol, def),
		rdf.NewQuad(carol, name, rdf.NewLiteral("Carol"), def),
		rdf.NewQuad(carol, age, rdf.NewIntegerLiteral(28), def),

		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice in Graph1"), g1),
		rdf.NewQuad(bob, name, rdf.NewLiteral("Bob in Graph1"), g1),
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice in Graph2"), g2),
		rdf.NewQuad(carol, name, rdf.NewLiteral("Carol in Graph2"), g2),
	}
}

func runDemo(cmd *cobra.Command, opts []executor.Option) error {
	out := cmd.OutOrStdout()

	s := store.NewMemoryStore()
	defer s.Close()
	if err := s.InsertQuadsBatch(demoData()); err != nil {
		return err
	}
	n, err := s.Count()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d quads into an in-memory store.\n", n)

	exec := executor.NewExecutor(s, opts...)
	for _, q := range demoQueries {
		fmt.Fprintf(out, "\n%s\n\n", q)
		res, err := exec.Query(cmd.Context(), demoPfx+q)
		if err != nil {
			return err
		}
		if err := results.Write(out, res, results.FormatTable); err != nil {
			return err
		}
	}
	_, err = io.WriteString(out, "\n")
	return err
}
