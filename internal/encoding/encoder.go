package encoding

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/store"
	"github.com/zeebo/xxh3"
)

// MaxInlineStringSize is the longest plain string stored inside the key.
const MaxInlineStringSize = 16

// Tag is the first byte of an encoded term. Tags are part of the on-disk
// key format and must not be renumbered.
type Tag byte

const (
	TagNamedNode Tag = iota + 1
	TagBlankNode
	TagNumericBlankNode
	TagDefaultGraph
	TagInlineString
	TagString
	TagLangString
	TagInteger
	TagBoolean
	TagTypedLiteral
)

// typedSeparator joins a typed literal's lexical form and datatype IRI in
// the id2str table. IRIs cannot contain NUL.
const typedSeparator = "\x00"

// TermEncoder maps terms to 17-byte keys using 128-bit xxh3 hashes for
// anything that does not fit inline.
type TermEncoder struct{}

func NewTermEncoder() *TermEncoder {
	return &TermEncoder{}
}

// Hash128 computes a 128-bit xxhash3 hash of the input string
func (e *TermEncoder) Hash128(s string) [16]byte {
	hash := xxh3.HashString128(s)
	var result [16]byte
	binary.BigEndian.PutUint64(result[0:8], hash.Hi)
	binary.BigEndian.PutUint64(result[8:16], hash.Lo)
	return result
}

// EncodeTerm encodes a ground term. Variables cannot be encoded.
func (e *TermEncoder) EncodeTerm(term rdf.Term) (store.EncodedTerm, *string, error) {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return e.hashed(TagNamedNode, t.IRI), &t.IRI, nil
	case *rdf.BlankNode:
		return e.encodeBlankNode(t)
	case *rdf.Literal:
		return e.encodeLiteral(t)
	case *rdf.DefaultGraph:
		var encoded store.EncodedTerm
		encoded[0] = byte(TagDefaultGraph)
		return encoded, nil, nil
	default:
		return store.EncodedTerm{}, nil, fmt.Errorf("cannot encode term %v (%T)", term, term)
	}
}

func (e *TermEncoder) hashed(tag Tag, s string) store.EncodedTerm {
	var encoded store.EncodedTerm
	encoded[0] = byte(tag)
	hash := e.Hash128(s)
	copy(encoded[1:], hash[:])
	return encoded
}

func (e *TermEncoder) encodeBlankNode(node *rdf.BlankNode) (store.EncodedTerm, *string, error) {
	// canonical decimal labels round-trip through the inline form
	if num, err := strconv.ParseUint(node.ID, 10, 64); err == nil && strconv.FormatUint(num, 10) == node.ID {
		var encoded store.EncodedTerm
		encoded[0] = byte(TagNumericBlankNode)
		binary.BigEndian.PutUint64(encoded[1:9], num)
		return encoded, nil, nil
	}
	return e.hashed(TagBlankNode, node.ID), &node.ID, nil
}

func (e *TermEncoder) encodeLiteral(lit *rdf.Literal) (store.EncodedTerm, *string, error) {
	if lit.Language != "" {
		combined := lit.Value + "@" + lit.Language
		return e.hashed(TagLangString, combined), &combined, nil
	}

	switch lit.DatatypeIRI() {
	case rdf.XSDString.IRI:
		if len(lit.Value) <= MaxInlineStringSize && !strings.Contains(lit.Value, "\x00") {
			var encoded store.EncodedTerm
			encoded[0] = byte(TagInlineString)
			copy(encoded[1:], lit.Value)
			return encoded, nil, nil
		}
		return e.hashed(TagString, lit.Value), &lit.Value, nil

	case rdf.XSDInteger.IRI:
		if v, err := strconv.ParseInt(lit.Value, 10, 64); err == nil && strconv.FormatInt(v, 10) == lit.Value {
			var encoded store.EncodedTerm
			encoded[0] = byte(TagInteger)
			binary.BigEndian.PutUint64(encoded[1:9], uint64(v)) // #nosec G115 - bit pattern
			return encoded, nil, nil
		}

	case rdf.XSDBoolean.IRI:
		if lit.Value == "true" || lit.Value == "false" {
			var encoded store.EncodedTerm
			encoded[0] = byte(TagBoolean)
			if lit.Value == "true" {
				encoded[1] = 1
			}
			return encoded, nil, nil
		}
	}

	// Everything else keeps its exact lexical form and datatype.
	combined := lit.Value + typedSeparator + lit.Datatype.IRI
	return e.hashed(TagTypedLiteral, combined), &combined, nil
}

// EncodeQuadKey concatenates encoded terms into an index key
func (e *TermEncoder) EncodeQuadKey(terms ...store.EncodedTerm) []byte {
	result := make([]byte, 0, len(terms)*store.EncodedTermSize)
	for _, term := range terms {
		result = append(result, term[:]...)
	}
	return result
}

// TagOf extracts the tag from an encoded term
func TagOf(encoded store.EncodedTerm) Tag {
	return Tag(encoded[0])
}
