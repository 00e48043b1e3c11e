package rdf

// Graph is an in-memory set of triples that keeps insertion order.
type Graph struct {
	triples []*Triple
	index   map[string]struct{}
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{index: make(map[string]struct{})}
}

// Add inserts a triple. It reports false when the triple was already present.
func (g *Graph) Add(t *Triple) bool {
	key := t.String()
	if _, ok := g.index[key]; ok {
		return false
	}
	g.index[key] = struct{}{}
	g.triples = append(g.triples, t)
	return true
}

// Contains reports whether the graph holds t.
func (g *Graph) Contains(t *Triple) bool {
	_, ok := g.index[t.String()]
	return ok
}

// Len returns the number of triples
func (g *Graph) Len() int {
	return len(g.triples)
}

// Triples returns the triples in insertion order. The slice must not be
// modified.
func (g *Graph) Triples() []*Triple {
	return g.triples
}

// Merge adds every triple of other.
func (g *Graph) Merge(other *Graph) {
	for _, t := range other.triples {
		g.Add(t)
	}
}
