package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/store"
)

// TermDecoder handles decoding of RDF terms
type TermDecoder struct{}

// NewTermDecoder creates a new term decoder
func NewTermDecoder() *TermDecoder {
	return &TermDecoder{}
}

// NeedsString reports whether the term was hashed and its text lives in id2str.
func (d *TermDecoder) NeedsString(encoded store.EncodedTerm) bool {
	switch TagOf(encoded) {
	case TagNamedNode, TagBlankNode, TagString, TagLangString, TagTypedLiteral:
		return true
	}
	return false
}

// DecodeTerm decodes an encoded term back to an rdf.Term. Hashed terms
// need their id2str value in stringValue.
func (d *TermDecoder) DecodeTerm(encoded store.EncodedTerm, stringValue *string) (rdf.Term, error) {
	tag := TagOf(encoded)
	if d.NeedsString(encoded) && stringValue == nil {
		return nil, fmt.Errorf("missing id2str entry for term tag %d", tag)
	}

	switch tag {
	case TagNamedNode:
		return rdf.NewNamedNode(*stringValue), nil

	case TagBlankNode:
		return rdf.NewBlankNode(*stringValue), nil

	case TagNumericBlankNode:
		return rdf.NewBlankNode(strconv.FormatUint(binary.BigEndian.Uint64(encoded[1:9]), 10)), nil

	case TagDefaultGraph:
		return rdf.NewDefaultGraph(), nil

	case TagInlineString:
		data := encoded[1:]
		if i := bytes.IndexByte(data, 0); i >= 0 {
			data = data[:i]
		}
		return rdf.NewLiteral(string(data)), nil

	case TagString:
		return rdf.NewLiteral(*stringValue), nil

	case TagLangString:
		i := strings.LastIndexByte(*stringValue, '@')
		if i < 0 {
			return nil, fmt.Errorf("malformed language-tagged literal %q", *stringValue)
		}
		return rdf.NewLiteralWithLanguage((*stringValue)[:i], (*stringValue)[i+1:]), nil

	case TagInteger:
		return rdf.NewIntegerLiteral(int64(binary.BigEndian.Uint64(encoded[1:9]))), nil // #nosec G115 - bit pattern

	case TagBoolean:
		return rdf.NewBooleanLiteral(encoded[1] != 0), nil

	case TagTypedLiteral:
		value, datatype, ok := strings.Cut(*stringValue, typedSeparator)
		if !ok {
			return nil, fmt.Errorf("malformed typed literal %q", *stringValue)
		}
		return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(datatype)), nil

	default:
		return nil, fmt.Errorf("unknown term tag: %d", tag)
	}
}
