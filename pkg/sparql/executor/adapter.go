package executor

import (
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// TripleStoreAdapter is the only capability the engine needs from a store:
// the quads matching a pattern. *store.TripleStore, *store.MemoryStore and
// *sqlstore.Store implement it.
type TripleStoreAdapter interface {
	Match(pattern *store.Pattern) (store.QuadIterator, error)
}

// BatchUnifier is implemented by stores that resolve a whole list of
// patterns server-side. The bindings produced must be the same multiset a
// pattern-by-pattern expansion yields.
type BatchUnifier interface {
	SupportsBatchUnify() bool
	BatchUnify(patterns []*store.Pattern) (store.BindingIterator, error)
}

// GraphLister is implemented by stores that can enumerate named graphs.
type GraphLister interface {
	NamedGraphs() ([]rdf.Term, error)
}

// matchAll reads every match of pattern before the caller recurses, so no
// store iterator stays open across expansion steps.
func matchAll(s TripleStoreAdapter, pattern *store.Pattern) ([]*rdf.Quad, error) {
	it, err := s.Match(pattern)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var quads []*rdf.Quad
	for it.Next() {
		q, err := it.Quad()
		if err != nil {
			return nil, err
		}
		quads = append(quads, q)
	}
	return quads, nil
}

func batchAll(b BatchUnifier, patterns []*store.Pattern) ([]*store.Binding, error) {
	it, err := b.BatchUnify(patterns)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var bindings []*store.Binding
	for it.Next() {
		bindings = append(bindings, it.Binding())
	}
	return bindings, it.Err()
}
