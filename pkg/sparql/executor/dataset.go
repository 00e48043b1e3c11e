package executor

import (
	"context"
	"net/url"
	"os"
	"strings"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// GraphLoader resolves a dataset IRI to the triples of a graph. ok is false
// when the loader does not handle iri; the store's own graph of that name
// is used then.
type GraphLoader interface {
	LoadGraph(ctx context.Context, iri string) (triples []*rdf.Triple, ok bool, err error)
}

// FileLoader reads file: IRIs as N-Quads or N-Triples documents. Graph
// labels in the document are ignored: every statement belongs to the
// graph being loaded.
type FileLoader struct{}

func (FileLoader) LoadGraph(_ context.Context, iri string) ([]*rdf.Triple, bool, error) {
	if !strings.HasPrefix(iri, "file:") {
		return nil, false, nil
	}
	u, err := url.Parse(iri)
	if err != nil {
		return nil, true, err
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	data, err := os.ReadFile(path) // #nosec G304 - dataset files are named by the query author
	if err != nil {
		return nil, true, err
	}
	quads, err := rdf.NewNQuadsParser(string(data)).Parse()
	if err != nil {
		return nil, true, err
	}
	triples := make([]*rdf.Triple, len(quads))
	for i, q := range quads {
		triples[i] = q.Triple()
	}
	return triples, true, nil
}

// datasetView is the store as seen by one query. Without dataset clauses
// it is the base store, whose default graph is optionally widened to the
// union of all graphs. With clauses the dataset is exactly what they
// describe: FROM graphs merged into the default graph and FROM NAMED
// graphs as the only named graphs.
type datasetView struct {
	base         TripleStoreAdapter
	restricted   bool
	unionDefault bool
	from         []rdf.Term
	named        []rdf.Term

	// loaded holds graphs resolved by the graph loader, each stored under
	// its IRI as a named graph.
	loaded    *store.MemoryStore
	loadedSet map[string]bool
}

func newDatasetView(ctx context.Context, base TripleStoreAdapter, clauses []*parser.DatasetClause, loader GraphLoader, unionDefault bool) (*datasetView, error) {
	d := &datasetView{
		base:         base,
		restricted:   len(clauses) > 0,
		unionDefault: unionDefault && len(clauses) == 0,
		loadedSet:    make(map[string]bool),
	}

	for _, c := range clauses {
		if err := d.load(ctx, loader, c.IRI); err != nil {
			return nil, err
		}
		if c.Named {
			d.named = appendUnique(d.named, c.IRI)
		} else {
			d.from = appendUnique(d.from, c.IRI)
		}
	}
	return d, nil
}

func (d *datasetView) load(ctx context.Context, loader GraphLoader, iri *rdf.NamedNode) error {
	if loader == nil || d.loadedSet[iri.IRI] {
		return nil
	}
	triples, ok, err := loader.LoadGraph(ctx, iri.IRI)
	if err != nil {
		return sperrors.Wrap(err, sperrors.CodeQueryDatasetLoadFailure, "load dataset graph",
			sperrors.FieldGraph(iri.IRI))
	}
	if !ok {
		return nil
	}

	if d.loaded == nil {
		d.loaded = store.NewMemoryStore()
	}
	quads := make([]*rdf.Quad, 0, len(triples))
	for _, t := range triples {
		quads = append(quads, rdf.NewQuad(t.Subject, t.Predicate, t.Object, iri))
	}
	if err := d.loaded.InsertQuadsBatch(quads); err != nil {
		return sperrors.Wrap(err, sperrors.CodeQueryDatasetLoadFailure, "load dataset graph",
			sperrors.FieldGraph(iri.IRI))
	}
	d.loadedSet[iri.IRI] = true
	return nil
}

// source returns the store holding the named graph g.
func (d *datasetView) source(g rdf.Term) TripleStoreAdapter {
	if n, ok := g.(*rdf.NamedNode); ok && d.loadedSet[n.IRI] {
		return d.loaded
	}
	return d.base
}

func (d *datasetView) Match(p *store.Pattern) (store.QuadIterator, error) {
	switch {
	case store.IsDefaultGraph(p.Graph):
		switch {
		case d.restricted:
			return d.mergeGraphs(p, d.from)
		case d.unionDefault:
			return d.unionAll(p)
		default:
			return d.base.Match(p)
		}

	case rdf.IsVariable(p.Graph):
		if !d.restricted {
			return d.base.Match(p)
		}
		var quads []*rdf.Quad
		for _, g := range d.named {
			found, err := matchAll(d.source(g), withGraph(p, g))
			if err != nil {
				return nil, err
			}
			quads = append(quads, found...)
		}
		return store.NewSliceQuadIterator(quads), nil

	default:
		if d.restricted && !containsTerm(d.named, p.Graph) {
			return store.NewSliceQuadIterator(nil), nil
		}
		return d.source(p.Graph).Match(p)
	}
}

// mergeGraphs reads the pattern from each graph and returns the distinct
// triples as default graph quads.
func (d *datasetView) mergeGraphs(p *store.Pattern, graphs []rdf.Term) (store.QuadIterator, error) {
	seen := make(map[string]bool)
	var quads []*rdf.Quad
	for _, g := range graphs {
		found, err := matchAll(d.source(g), withGraph(p, g))
		if err != nil {
			return nil, err
		}
		quads = appendDefault(quads, found, seen)
	}
	return store.NewSliceQuadIterator(quads), nil
}

func (d *datasetView) unionAll(p *store.Pattern) (store.QuadIterator, error) {
	seen := make(map[string]bool)
	var quads []*rdf.Quad
	for _, g := range []rdf.Term{nil, rdf.NewVariable("graph")} {
		found, err := matchAll(d.base, withGraph(p, g))
		if err != nil {
			return nil, err
		}
		quads = appendDefault(quads, found, seen)
	}
	return store.NewSliceQuadIterator(quads), nil
}

// NamedGraphs lists the named graphs of the dataset.
func (d *datasetView) NamedGraphs() ([]rdf.Term, error) {
	if d.restricted {
		return d.named, nil
	}
	if lister, ok := d.base.(GraphLister); ok {
		return lister.NamedGraphs()
	}
	return nil, nil
}

// batchUnifier delegates to the base store only when the view does not
// change what a pattern matches.
func (d *datasetView) batchUnifier() BatchUnifier {
	if d.restricted || d.unionDefault {
		return nil
	}
	if b, ok := d.base.(BatchUnifier); ok && b.SupportsBatchUnify() {
		return b
	}
	return nil
}

func withGraph(p *store.Pattern, g rdf.Term) *store.Pattern {
	return &store.Pattern{Subject: p.Subject, Predicate: p.Predicate, Object: p.Object, Graph: g}
}

func appendDefault(quads, found []*rdf.Quad, seen map[string]bool) []*rdf.Quad {
	for _, q := range found {
		key := q.Triple().String()
		if seen[key] {
			continue
		}
		seen[key] = true
		quads = append(quads, rdf.NewQuad(q.Subject, q.Predicate, q.Object, rdf.NewDefaultGraph()))
	}
	return quads
}

func appendUnique(terms []rdf.Term, t rdf.Term) []rdf.Term {
	if containsTerm(terms, t) {
		return terms
	}
	return append(terms, t)
}

func containsTerm(terms []rdf.Term, t rdf.Term) bool {
	for _, u := range terms {
		if u.Equals(t) {
			return true
		}
	}
	return false
}
