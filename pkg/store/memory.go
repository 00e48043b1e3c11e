package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// MemoryStore is an unindexed in-memory quad store. It backs graphs loaded
// for a single query and the "memory" storage backend.
type MemoryStore struct {
	mu    sync.RWMutex
	quads []*rdf.Quad
	index map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func quadKey(q *rdf.Quad) string {
	g := "<>"
	if !IsDefaultGraph(q.Graph) {
		g = q.Graph.String()
	}
	return q.Subject.String() + " " + q.Predicate.String() + " " + q.Object.String() + " " + g
}

// InsertQuadsBatch adds quads, ignoring duplicates.
func (m *MemoryStore) InsertQuadsBatch(quads []*rdf.Quad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range quads {
		if !q.Triple().IsValid() {
			return fmt.Errorf("invalid quad: %s", q)
		}
		if q.Graph == nil {
			q = rdf.NewQuad(q.Subject, q.Predicate, q.Object, rdf.NewDefaultGraph())
		}
		key := quadKey(q)
		if _, ok := m.index[key]; ok {
			continue
		}
		m.index[key] = len(m.quads)
		m.quads = append(m.quads, q)
	}
	return nil
}

// InsertQuad adds a single quad.
func (m *MemoryStore) InsertQuad(q *rdf.Quad) error {
	return m.InsertQuadsBatch([]*rdf.Quad{q})
}

// DeleteQuad removes a quad if present.
func (m *MemoryStore) DeleteQuad(q *rdf.Quad) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := quadKey(q)
	pos, ok := m.index[key]
	if !ok {
		return nil
	}
	last := len(m.quads) - 1
	if pos != last {
		m.quads[pos] = m.quads[last]
		m.index[quadKey(m.quads[pos])] = pos
	}
	m.quads = m.quads[:last]
	delete(m.index, key)
	return nil
}

// Count returns the number of quads.
func (m *MemoryStore) Count() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.quads)), nil
}

// NamedGraphs lists the named graphs in IRI order.
func (m *MemoryStore) NamedGraphs() ([]rdf.Term, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]rdf.Term)
	for _, q := range m.quads {
		if !IsDefaultGraph(q.Graph) {
			seen[q.Graph.String()] = q.Graph
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	graphs := make([]rdf.Term, len(keys))
	for i, k := range keys {
		graphs[i] = seen[k]
	}
	return graphs, nil
}

// Match scans every quad. The returned iterator holds a snapshot.
func (m *MemoryStore) Match(pattern *Pattern) (QuadIterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*rdf.Quad
	for _, q := range m.quads {
		if MatchesPattern(pattern, q) {
			matched = append(matched, q)
		}
	}
	return NewSliceQuadIterator(matched), nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
