package store

import (
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// EncodedTermSize is a tag byte followed by 16 bytes of hash or inline data.
const EncodedTermSize = 17

// EncodedTerm is the fixed-size key segment a term occupies in every index.
type EncodedTerm [EncodedTermSize]byte

// TermEncoder handles encoding of RDF terms into a compact binary format
type TermEncoder interface {
	// EncodeTerm encodes a ground term. The returned string, when non-nil,
	// must be stored in the id2str table under the encoded payload.
	EncodeTerm(term rdf.Term) (EncodedTerm, *string, error)

	// EncodeQuadKey concatenates encoded terms into an index key.
	EncodeQuadKey(terms ...EncodedTerm) []byte
}

// TermDecoder handles decoding of RDF terms from binary format
type TermDecoder interface {
	// NeedsString reports whether decoding requires the id2str value.
	NeedsString(encoded EncodedTerm) bool

	DecodeTerm(encoded EncodedTerm, stringValue *string) (rdf.Term, error)
}
