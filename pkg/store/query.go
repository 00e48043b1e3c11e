package store

import (
	"bytes"
	"fmt"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// Pattern is a quad pattern. A nil or *rdf.Variable position matches any
// term. The graph position is interpreted differently:
//
//   - nil or *rdf.DefaultGraph: the default graph only
//   - *rdf.Variable: every named graph, never the default graph
//   - any other term: that named graph
type Pattern struct {
	Subject   rdf.Term
	Predicate rdf.Term
	Object    rdf.Term
	Graph     rdf.Term
}

// IsWildcard reports whether a pattern position matches any term.
func IsWildcard(t rdf.Term) bool {
	return t == nil || rdf.IsVariable(t)
}

// IsDefaultGraph reports whether a graph position addresses the default graph.
func IsDefaultGraph(g rdf.Term) bool {
	if g == nil {
		return true
	}
	_, ok := g.(*rdf.DefaultGraph)
	return ok
}

// Binding is one solution returned by a batch unification.
type Binding struct {
	Vars map[string]rdf.Term
}

// NewBinding creates a new empty binding
func NewBinding() *Binding {
	return &Binding{Vars: make(map[string]rdf.Term)}
}

// QuadIterator iterates over quads matching a pattern
type QuadIterator interface {
	Next() bool
	Quad() (*rdf.Quad, error)
	Close() error
}

// BindingIterator iterates over variable bindings
type BindingIterator interface {
	Next() bool
	Binding() *Binding
	Err() error
	Close() error
}

// SliceQuadIterator iterates over an in-memory list of quads.
type SliceQuadIterator struct {
	quads []*rdf.Quad
	pos   int
}

// NewSliceQuadIterator wraps quads in a QuadIterator.
func NewSliceQuadIterator(quads []*rdf.Quad) *SliceQuadIterator {
	return &SliceQuadIterator{quads: quads, pos: -1}
}

func (it *SliceQuadIterator) Next() bool {
	it.pos++
	return it.pos < len(it.quads)
}

func (it *SliceQuadIterator) Quad() (*rdf.Quad, error) {
	if it.pos < 0 || it.pos >= len(it.quads) {
		return nil, fmt.Errorf("iterator not positioned")
	}
	return it.quads[it.pos], nil
}

func (it *SliceQuadIterator) Close() error {
	return nil
}

// MatchesPattern reports whether q satisfies p under the graph rules of Pattern.
func MatchesPattern(p *Pattern, q *rdf.Quad) bool {
	if !IsWildcard(p.Subject) && !p.Subject.Equals(q.Subject) {
		return false
	}
	if !IsWildcard(p.Predicate) && !p.Predicate.Equals(q.Predicate) {
		return false
	}
	if !IsWildcard(p.Object) && !p.Object.Equals(q.Object) {
		return false
	}
	switch {
	case IsDefaultGraph(p.Graph):
		return IsDefaultGraph(q.Graph)
	case rdf.IsVariable(p.Graph):
		return !IsDefaultGraph(q.Graph)
	default:
		return p.Graph.Equals(q.Graph)
	}
}

// Match returns the quads matching pattern, scanning the index whose key
// order covers the longest run of bound positions.
func (s *TripleStore) Match(pattern *Pattern) (QuadIterator, error) {
	var bound [4]rdf.Term
	bound[posSubject] = groundOrNil(pattern.Subject)
	bound[posPredicate] = groundOrNil(pattern.Predicate)
	bound[posObject] = groundOrNil(pattern.Object)

	var candidates []Table
	anyNamed := false
	switch {
	case IsDefaultGraph(pattern.Graph):
		candidates = []Table{TableSPO, TablePOS, TableOSP}
	case rdf.IsVariable(pattern.Graph):
		candidates = []Table{TableSPOG, TablePOSG, TableOSPG}
		anyNamed = true
	default:
		bound[posGraph] = pattern.Graph
		candidates = []Table{TableGSPO, TableGPOS, TableGOSP}
	}

	var encoded [4]*EncodedTerm
	for i, t := range bound {
		if t == nil {
			continue
		}
		enc, _, err := s.encoder.EncodeTerm(t)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pattern term %v: %w", t, err)
		}
		encoded[i] = &enc
	}

	table := selectIndex(candidates, encoded)
	layout := indexLayouts[table]

	var prefix []byte
	for _, pos := range layout {
		if encoded[pos] == nil {
			break
		}
		prefix = append(prefix, encoded[pos][:]...)
	}

	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}
	it, err := txn.Scan(table, prefix, nil)
	if err != nil {
		_ = txn.Rollback() // #nosec G104 - rollback error less important than original error
		return nil, err
	}

	return &quadIterator{
		store:    s,
		txn:      txn,
		it:       it,
		layout:   layout,
		encoded:  encoded,
		anyNamed: anyNamed,
	}, nil
}

func groundOrNil(t rdf.Term) rdf.Term {
	if IsWildcard(t) {
		return nil
	}
	return t
}

// selectIndex picks the candidate whose layout starts with the most bound
// positions. Ties keep the earlier candidate.
func selectIndex(candidates []Table, encoded [4]*EncodedTerm) Table {
	best, bestLen := candidates[0], -1
	for _, table := range candidates {
		n := 0
		for _, pos := range indexLayouts[table] {
			if encoded[pos] == nil {
				break
			}
			n++
		}
		if n > bestLen {
			best, bestLen = table, n
		}
	}
	return best
}

// quadIterator decodes index keys into quads, skipping keys that do not
// satisfy bound positions outside the scanned prefix.
type quadIterator struct {
	store    *TripleStore
	txn      Transaction
	it       Iterator
	layout   []int
	encoded  [4]*EncodedTerm
	anyNamed bool
	current  [4]EncodedTerm
	closed   bool
}

func (qi *quadIterator) Next() bool {
	if qi.closed {
		return false
	}
	for qi.it.Next() {
		key := qi.it.Key()
		if len(key) != len(qi.layout)*EncodedTermSize {
			continue
		}
		for i, pos := range qi.layout {
			copy(qi.current[pos][:], key[i*EncodedTermSize:(i+1)*EncodedTermSize])
		}
		if qi.accept() {
			return true
		}
	}
	return false
}

func (qi *quadIterator) accept() bool {
	for pos, enc := range qi.encoded {
		if enc != nil && !bytes.Equal(enc[:], qi.current[pos][:]) {
			return false
		}
	}
	if qi.anyNamed && qi.current[posGraph] == qi.store.defaultGraph {
		return false
	}
	return true
}

func (qi *quadIterator) Quad() (*rdf.Quad, error) {
	if qi.closed {
		return nil, fmt.Errorf("iterator closed")
	}

	var terms [4]rdf.Term
	for pos := range terms {
		if pos == posGraph && len(qi.layout) == 3 {
			terms[pos] = rdf.NewDefaultGraph()
			continue
		}
		term, err := qi.store.decodeTerm(qi.txn, qi.current[pos])
		if err != nil {
			return nil, fmt.Errorf("failed to decode quad position %d: %w", pos, err)
		}
		terms[pos] = term
	}
	return rdf.NewQuad(terms[posSubject], terms[posPredicate], terms[posObject], terms[posGraph]), nil
}

func (qi *quadIterator) Close() error {
	if qi.closed {
		return nil
	}
	qi.closed = true
	_ = qi.it.Close() // #nosec G104 - iterator close error less critical than transaction rollback error
	return qi.txn.Rollback()
}

// decodeTerm decodes an encoded term, fetching its text from id2str when
// the encoding is a hash.
func (s *TripleStore) decodeTerm(txn Transaction, encoded EncodedTerm) (rdf.Term, error) {
	var stringValue *string
	if s.decoder.NeedsString(encoded) {
		str, err := txn.Get(TableID2Str, encoded[1:])
		if err != nil {
			return nil, fmt.Errorf("id2str lookup: %w", err)
		}
		v := string(str)
		stringValue = &v
	}
	return s.decoder.DecodeTerm(encoded, stringValue)
}
