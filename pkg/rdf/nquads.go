package rdf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// NQuadsParser reads N-Quads. N-Triples input is accepted as well: a
// statement without a fourth term lands in the default graph.
type NQuadsParser struct {
	input  string
	pos    int
	length int
	line   int
}

// NewNQuadsParser creates a new N-Quads parser
func NewNQuadsParser(input string) *NQuadsParser {
	return &NQuadsParser{
		input:  input,
		length: len(input),
		line:   1,
	}
}

// Parse parses the whole document and returns its quads in order.
func (p *NQuadsParser) Parse() ([]*Quad, error) {
	var quads []*Quad
	for {
		p.skipWhitespaceAndComments()
		if p.pos >= p.length {
			return quads, nil
		}
		quad, err := p.parseQuad()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
		quads = append(quads, quad)
	}
}

// ParseTerm parses a single term written in N-Triples syntax, such as
// the output of Term.String.
func ParseTerm(s string) (Term, error) {
	if s == "DEFAULT" || s == "" {
		return NewDefaultGraph(), nil
	}
	p := NewNQuadsParser(s)
	t, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	p.skipWhitespaceAndComments()
	if p.pos != p.length {
		return nil, fmt.Errorf("trailing input after term %q", s)
	}
	return t, nil
}

// WriteNQuads writes quads one per line.
func WriteNQuads(w io.Writer, quads []*Quad) error {
	bw := bufio.NewWriter(w)
	for _, q := range quads {
		if _, err := bw.WriteString(q.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteNTriples writes triples one per line.
func WriteNTriples(w io.Writer, triples []*Triple) error {
	bw := bufio.NewWriter(w)
	for _, t := range triples {
		if _, err := bw.WriteString(t.String()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (p *NQuadsParser) skipWhitespaceAndComments() {
	for p.pos < p.length {
		switch p.input[p.pos] {
		case '\n':
			p.line++
			p.pos++
		case ' ', '\t', '\r':
			p.pos++
		case '#':
			for p.pos < p.length && p.input[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

// parseQuad parses: subject predicate object [graph] .
func (p *NQuadsParser) parseQuad() (*Quad, error) {
	subject, err := p.parseTerm()
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	if _, ok := subject.(*Literal); ok {
		return nil, fmt.Errorf("literal subject not allowed")
	}
	p.skipWhitespaceAndComments()

	predicate, err := p.parseTerm()
	if err != nil {
		return nil, fmt.Errorf("predicate: %w", err)
	}
	if _, ok := predicate.(*NamedNode); !ok {
		return nil, fmt.Errorf("predicate must be an IRI")
	}
	p.skipWhitespaceAndComments()

	object, err := p.parseTerm()
	if err != nil {
		return nil, fmt.Errorf("object: %w", err)
	}
	p.skipWhitespaceAndComments()

	var graph Term = NewDefaultGraph()
	if p.pos < p.length && (p.input[p.pos] == '<' || p.input[p.pos] == '_') {
		graph, err = p.parseTerm()
		if err != nil {
			return nil, fmt.Errorf("graph: %w", err)
		}
		p.skipWhitespaceAndComments()
	}

	if p.pos >= p.length || p.input[p.pos] != '.' {
		return nil, fmt.Errorf("expected '.' at end of statement")
	}
	p.pos++

	return NewQuad(subject, predicate, object, graph), nil
}

func (p *NQuadsParser) parseTerm() (Term, error) {
	if p.pos >= p.length {
		return nil, fmt.Errorf("unexpected end of input")
	}
	switch ch := p.input[p.pos]; ch {
	case '<':
		iri, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		return NewNamedNode(iri), nil
	case '_':
		return p.parseBlankNode()
	case '"':
		return p.parseLiteral()
	default:
		return nil, fmt.Errorf("unexpected character %q at offset %d", ch, p.pos)
	}
}

func (p *NQuadsParser) parseIRI() (string, error) {
	p.pos++ // '<'
	var b strings.Builder
	for p.pos < p.length && p.input[p.pos] != '>' {
		ch := p.input[p.pos]
		if ch == '\\' {
			r, err := p.parseUnicodeEscape()
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			continue
		}
		if ch <= 0x20 || strings.IndexByte("<\"{}|^`", ch) >= 0 {
			return "", fmt.Errorf("invalid character %q in IRI", ch)
		}
		b.WriteByte(ch)
		p.pos++
	}
	if p.pos >= p.length {
		return "", fmt.Errorf("unclosed IRI")
	}
	p.pos++ // '>'

	iri := b.String()
	if !strings.Contains(iri, ":") {
		return "", fmt.Errorf("relative IRI not allowed: %s", iri)
	}
	return iri, nil
}

func (p *NQuadsParser) parseBlankNode() (Term, error) {
	if !strings.HasPrefix(p.input[p.pos:], "_:") {
		return nil, fmt.Errorf("expected '_:' at start of blank node")
	}
	p.pos += 2
	start := p.pos
	for p.pos < p.length {
		ch := p.input[p.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '<' {
			break
		}
		// a trailing '.' terminates the statement, not the label
		if ch == '.' && (p.pos+1 >= p.length || isSpace(p.input[p.pos+1])) {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return nil, fmt.Errorf("empty blank node label")
	}
	return NewBlankNode(p.input[start:p.pos]), nil
}

func (p *NQuadsParser) parseLiteral() (Term, error) {
	p.pos++ // opening quote
	var value strings.Builder
	for {
		if p.pos >= p.length {
			return nil, fmt.Errorf("unclosed string literal")
		}
		ch := p.input[p.pos]
		if ch == '"' {
			p.pos++
			break
		}
		if ch != '\\' {
			value.WriteByte(ch)
			p.pos++
			continue
		}
		if p.pos+1 >= p.length {
			return nil, fmt.Errorf("unexpected end of input in escape sequence")
		}
		switch esc := p.input[p.pos+1]; esc {
		case 'u', 'U':
			r, err := p.parseUnicodeEscape()
			if err != nil {
				return nil, err
			}
			value.WriteRune(r)
			continue
		case 'n':
			value.WriteByte('\n')
		case 't':
			value.WriteByte('\t')
		case 'r':
			value.WriteByte('\r')
		case 'b':
			value.WriteByte('\b')
		case 'f':
			value.WriteByte('\f')
		case '"', '\\', '\'':
			value.WriteByte(esc)
		default:
			return nil, fmt.Errorf("invalid escape sequence \\%c", esc)
		}
		p.pos += 2
	}

	if p.pos < p.length && p.input[p.pos] == '@' {
		p.pos++
		start := p.pos
		for p.pos < p.length && (isAlnum(p.input[p.pos]) || p.input[p.pos] == '-') {
			p.pos++
		}
		if p.pos == start || !isAlpha(p.input[start]) {
			return nil, fmt.Errorf("invalid language tag")
		}
		return NewLiteralWithLanguage(value.String(), p.input[start:p.pos]), nil
	}
	if strings.HasPrefix(p.input[p.pos:], "^^") {
		p.pos += 2
		if p.pos >= p.length || p.input[p.pos] != '<' {
			return nil, fmt.Errorf("expected datatype IRI after '^^'")
		}
		dt, err := p.parseIRI()
		if err != nil {
			return nil, fmt.Errorf("datatype: %w", err)
		}
		return NewLiteralWithDatatype(value.String(), NewNamedNode(dt)), nil
	}
	return NewLiteral(value.String()), nil
}

// parseUnicodeEscape consumes \uXXXX or \UXXXXXXXX.
func (p *NQuadsParser) parseUnicodeEscape() (rune, error) {
	if p.pos+1 >= p.length {
		return 0, fmt.Errorf("unexpected end of input in escape")
	}
	digits := 0
	switch p.input[p.pos+1] {
	case 'u':
		digits = 4
	case 'U':
		digits = 8
	default:
		return 0, fmt.Errorf("invalid escape sequence at offset %d", p.pos)
	}
	start := p.pos + 2
	if start+digits > p.length {
		return 0, fmt.Errorf("incomplete unicode escape")
	}
	code, err := strconv.ParseUint(p.input[start:start+digits], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid unicode escape %q", p.input[start:start+digits])
	}
	p.pos = start + digits
	return rune(code), nil
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlnum(ch byte) bool {
	return isAlpha(ch) || (ch >= '0' && ch <= '9')
}
