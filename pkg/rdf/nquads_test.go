package rdf

import (
	"bytes"
	"testing"
)

func TestParseNQuads(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		wantErr  bool
	}{
		{
			name: "simple triple (N-Triples format)",
			input: `<http://example.org/s> <http://example.org/p> <http://example.org/o> .
`,
			expected: 1,
		},
		{
			name: "quad with named graph",
			input: `<http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/g> .
`,
			expected: 1,
		},
		{
			name: "literals and comments",
			input: `# leading comment
<http://example.org/s1> <http://example.org/p1> "literal1" .
<http://example.org/s2> <http://example.org/p2> "literal2"^^<http://www.w3.org/2001/XMLSchema#string> <http://example.org/g> .
<http://example.org/s3> <http://example.org/p3> "hello"@en .
`,
			expected: 3,
		},
		{
			name: "blank nodes",
			input: `_:b1 <http://example.org/p> "value" .
<http://example.org/s> <http://example.org/p> _:b2 _:graph .
`,
			expected: 2,
		},
		{
			name:    "literal subject",
			input:   `"s" <http://example.org/p> "o" .`,
			wantErr: true,
		},
		{
			name:    "missing dot",
			input:   `<http://example.org/s> <http://example.org/p> "o"`,
			wantErr: true,
		},
		{
			name:    "relative IRI",
			input:   `<s> <http://example.org/p> "o" .`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quads, err := NewNQuadsParser(tt.input).Parse()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(quads) != tt.expected {
				t.Errorf("expected %d quads, got %d", tt.expected, len(quads))
			}
		})
	}
}

func TestParseTerm_RoundTrip(t *testing.T) {
	terms := []Term{
		NewNamedNode("http://example.org/a"),
		NewBlankNode("b0"),
		NewLiteral("line\nbreak \"quoted\""),
		NewLiteralWithLanguage("bonjour", "fr-CA"),
		NewIntegerLiteral(-7),
	}

	for _, term := range terms {
		parsed, err := ParseTerm(term.String())
		if err != nil {
			t.Fatalf("ParseTerm(%s): %v", term, err)
		}
		if !parsed.Equals(term) {
			t.Errorf("round trip changed %s into %s", term, parsed)
		}
	}
}

func TestWriteNQuads(t *testing.T) {
	quads := []*Quad{
		NewQuad(NewNamedNode("http://s"), NewNamedNode("http://p"), NewLiteral("o"), NewDefaultGraph()),
		NewQuad(NewNamedNode("http://s"), NewNamedNode("http://p"), NewLiteral("o"), NewNamedNode("http://g")),
	}
	var buf bytes.Buffer
	if err := WriteNQuads(&buf, quads); err != nil {
		t.Fatal(err)
	}

	parsed, err := NewNQuadsParser(buf.String()).Parse()
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if len(parsed) != 2 || !parsed[1].Graph.Equals(NewNamedNode("http://g")) {
		t.Errorf("unexpected re-parsed quads: %v", parsed)
	}
}
