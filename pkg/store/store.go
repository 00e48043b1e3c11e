package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// TripleStore manages the RDF quad store with 11 indexes
type TripleStore struct {
	storage      Storage
	encoder      TermEncoder
	decoder      TermDecoder
	defaultGraph EncodedTerm
}

// NewTripleStore creates a new triplestore
func NewTripleStore(storage Storage, encoder TermEncoder, decoder TermDecoder) *TripleStore {
	s := &TripleStore{
		storage: storage,
		encoder: encoder,
		decoder: decoder,
	}
	// the default graph never needs an id2str entry
	s.defaultGraph, _, _ = encoder.EncodeTerm(rdf.NewDefaultGraph())
	return s
}

// Close closes the triplestore
func (s *TripleStore) Close() error {
	return s.storage.Close()
}

// InsertQuad inserts a quad into the store
func (s *TripleStore) InsertQuad(quad *rdf.Quad) error {
	return s.InsertQuadsBatch([]*rdf.Quad{quad})
}

// InsertTriple inserts a triple into the default graph
func (s *TripleStore) InsertTriple(triple *rdf.Triple) error {
	return s.InsertQuad(rdf.NewQuad(triple.Subject, triple.Predicate, triple.Object, rdf.NewDefaultGraph()))
}

// InsertQuadsBatch inserts quads in a single transaction.
func (s *TripleStore) InsertQuadsBatch(quads []*rdf.Quad) error {
	txn, err := s.storage.Begin(true)
	if err != nil {
		return err
	}
	defer txn.Rollback() // #nosec G104 - no-op after commit

	for _, quad := range quads {
		if err := s.insertQuadInTxn(txn, quad); err != nil {
			return err
		}
	}
	return txn.Commit()
}

// quadKeys encodes the four positions of a quad.
func (s *TripleStore) quadKeys(quad *rdf.Quad) ([4]EncodedTerm, [4]*string, error) {
	var enc [4]EncodedTerm
	var strs [4]*string
	graph := quad.Graph
	if graph == nil {
		graph = rdf.NewDefaultGraph()
	}
	for i, term := range []rdf.Term{quad.Subject, quad.Predicate, quad.Object, graph} {
		e, str, err := s.encoder.EncodeTerm(term)
		if err != nil {
			return enc, strs, fmt.Errorf("failed to encode %v: %w", term, err)
		}
		enc[i], strs[i] = e, str
	}
	return enc, strs, nil
}

// indexKey lays out the quad positions in table's key order.
func (s *TripleStore) indexKey(table Table, enc [4]EncodedTerm) []byte {
	layout := indexLayouts[table]
	terms := make([]EncodedTerm, len(layout))
	for i, pos := range layout {
		terms[i] = enc[pos]
	}
	return s.encoder.EncodeQuadKey(terms...)
}

func (s *TripleStore) isDefault(enc EncodedTerm) bool {
	return enc == s.defaultGraph
}

// insertQuadInTxn inserts a quad within an existing transaction
func (s *TripleStore) insertQuadInTxn(txn Transaction, quad *rdf.Quad) error {
	if !quad.Triple().IsValid() {
		return fmt.Errorf("invalid quad: %s", quad)
	}
	enc, strs, err := s.quadKeys(quad)
	if err != nil {
		return err
	}

	for i := range enc {
		if err := s.storeString(txn, enc[i], strs[i]); err != nil {
			return err
		}
	}

	empty := []byte{}
	isDefault := s.isDefault(enc[posGraph])
	for table := TableSPO; table <= TableGOSP; table++ {
		if table <= TableOSP && !isDefault {
			continue
		}
		if err := txn.Set(table, s.indexKey(table, enc), empty); err != nil {
			return err
		}
	}

	if !isDefault {
		if err := txn.Set(TableGraphs, enc[posGraph][:], empty); err != nil {
			return err
		}
	}
	return nil
}

// storeString stores a string in the id2str table if provided
func (s *TripleStore) storeString(txn Transaction, encoded EncodedTerm, str *string) error {
	if str == nil {
		return nil
	}

	key := encoded[1:]
	value := []byte(*str)

	existing, err := txn.Get(TableID2Str, key)
	if err == nil && bytes.Equal(existing, value) {
		return nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return txn.Set(TableID2Str, key, value)
}

// DeleteQuad deletes a quad from the store. Strings in id2str and the
// graphs table are kept since other quads may reference them.
func (s *TripleStore) DeleteQuad(quad *rdf.Quad) error {
	enc, _, err := s.quadKeys(quad)
	if err != nil {
		return err
	}

	txn, err := s.storage.Begin(true)
	if err != nil {
		return err
	}
	defer txn.Rollback() // #nosec G104 - no-op after commit

	isDefault := s.isDefault(enc[posGraph])
	for table := TableSPO; table <= TableGOSP; table++ {
		if table <= TableOSP && !isDefault {
			continue
		}
		if err := txn.Delete(table, s.indexKey(table, enc)); err != nil {
			return err
		}
	}
	return txn.Commit()
}

// ContainsQuad checks if a quad exists in the store
func (s *TripleStore) ContainsQuad(quad *rdf.Quad) (bool, error) {
	enc, _, err := s.quadKeys(quad)
	if err != nil {
		return false, err
	}

	txn, err := s.storage.Begin(false)
	if err != nil {
		return false, err
	}
	defer txn.Rollback() // #nosec G104 - read-only

	_, err = txn.Get(TableSPOG, s.indexKey(TableSPOG, enc))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of quads in the store
func (s *TripleStore) Count() (int64, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return 0, err
	}
	defer txn.Rollback() // #nosec G104 - read-only

	it, err := txn.Scan(TableSPOG, nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	count := int64(0)
	for it.Next() {
		count++
	}
	return count, nil
}

// NamedGraphs lists the graphs that ever received a quad.
func (s *TripleStore) NamedGraphs() ([]rdf.Term, error) {
	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback() // #nosec G104 - read-only

	it, err := txn.Scan(TableGraphs, nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var graphs []rdf.Term
	for it.Next() {
		var enc EncodedTerm
		copy(enc[:], it.Key())
		g, err := s.decodeTerm(txn, enc)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}
