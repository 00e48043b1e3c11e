package parser

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// Parser parses SPARQL queries
type Parser struct {
	input     string
	pos       int
	length    int
	prefixes  map[string]string // Maps prefix to IRI
	baseURI   string            // Base URI for resolving relative IRIs
	anonCount int
}

// NewParser creates a new SPARQL parser
func NewParser(input string) *Parser {
	return &Parser{
		input:    input,
		pos:      0,
		length:   len(input),
		prefixes: make(map[string]string),
		baseURI:  "",
	}
}

// WithPrefixes predeclares namespaces; PREFIX declarations in the query
// override them.
func (p *Parser) WithPrefixes(namespaces map[string]string) *Parser {
	for prefix, iri := range namespaces {
		p.prefixes[prefix] = iri
	}
	return p
}

// Parse parses a SPARQL query
func (p *Parser) Parse() (*Query, error) {
	query, err := p.parseQuery()
	if err != nil {
		return nil, sperrors.Wrap(err, sperrors.CodeQueryParseInvalidSyntax, "parse query", sperrors.Field("offset", p.pos))
	}
	return query, nil
}

// Parse is a shorthand for NewParser(input).WithPrefixes(namespaces).Parse().
func Parse(input string, namespaces map[string]string) (*Query, error) {
	return NewParser(input).WithPrefixes(namespaces).Parse()
}

func (p *Parser) parseQuery() (*Query, error) {
	if err := p.parseProlog(); err != nil {
		return nil, err
	}

	queryType, err := p.parseQueryType()
	if err != nil {
		return nil, err
	}
	query := &Query{QueryType: queryType}

	switch queryType {
	case QueryTypeSelect:
		err = p.parseSelect(query)
	case QueryTypeAsk:
		err = p.parseAsk(query)
	case QueryTypeConstruct:
		err = p.parseConstruct(query)
	case QueryTypeDescribe:
		err = p.parseDescribe(query)
	}
	if err != nil {
		return nil, err
	}

	if err := p.parseSolutionModifiers(&query.Modifiers); err != nil {
		return nil, err
	}

	p.skipWhitespace()
	if p.pos < p.length {
		return nil, fmt.Errorf("unexpected input %q", p.excerpt())
	}

	prefixes := make(map[string]string, len(p.prefixes))
	for k, v := range p.prefixes {
		prefixes[k] = v
	}
	query.Prolog = &Prolog{Base: p.baseURI, Prefixes: prefixes}
	return query, nil
}

// parseProlog consumes BASE and PREFIX declarations
func (p *Parser) parseProlog() error {
	for {
		p.skipWhitespace()
		if p.matchKeyword("PREFIX") {
			if err := p.parsePrefixDecl(); err != nil {
				return err
			}
		} else if p.matchKeyword("BASE") {
			if err := p.parseBaseDecl(); err != nil {
				return err
			}
		} else {
			return nil
		}
	}
}

// parseQueryType determines the query type
func (p *Parser) parseQueryType() (QueryType, error) {
	p.skipWhitespace()

	if p.matchKeyword("SELECT") {
		return QueryTypeSelect, nil
	}
	if p.matchKeyword("CONSTRUCT") {
		return QueryTypeConstruct, nil
	}
	if p.matchKeyword("ASK") {
		return QueryTypeAsk, nil
	}
	if p.matchKeyword("DESCRIBE") {
		return QueryTypeDescribe, nil
	}

	return 0, fmt.Errorf("expected query type (SELECT, CONSTRUCT, ASK, DESCRIBE)")
}

// parseSelect parses the rest of a SELECT query
func (p *Parser) parseSelect(query *Query) error {
	sel := &SelectQuery{}

	// DISTINCT and REDUCED are mutually exclusive
	if p.matchKeyword("DISTINCT") {
		sel.Distinct = true
	} else if p.matchKeyword("REDUCED") {
		sel.Reduced = true
	}

	variables, err := p.parseProjection()
	if err != nil {
		return err
	}
	sel.Variables = variables

	if query.Dataset, err = p.parseDatasetClauses(); err != nil {
		return err
	}

	// WHERE keyword is optional
	p.matchKeyword("WHERE")
	if query.Where, err = p.parseGroupGraphPattern(); err != nil {
		return err
	}

	if p.matchKeyword("RECUR") {
		recur, err := p.parseRecur()
		if err != nil {
			return err
		}
		sel.Recur = recur
	}

	query.Select = sel
	return nil
}

// parseRecur parses ?from TO ?to { pattern }
func (p *Parser) parseRecur() (*RecurClause, error) {
	p.skipWhitespace()
	from, err := p.parseVariable()
	if err != nil {
		return nil, fmt.Errorf("RECUR: %w", err)
	}
	if !p.matchKeyword("TO") {
		return nil, fmt.Errorf("expected TO after RECUR ?%s", from.Name)
	}
	p.skipWhitespace()
	to, err := p.parseVariable()
	if err != nil {
		return nil, fmt.Errorf("RECUR: %w", err)
	}
	pattern, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	return &RecurClause{From: from, To: to, Pattern: pattern}, nil
}

// parseAsk parses the rest of an ASK query
func (p *Parser) parseAsk(query *Query) error {
	var err error
	if query.Dataset, err = p.parseDatasetClauses(); err != nil {
		return err
	}
	p.matchKeyword("WHERE")
	query.Where, err = p.parseGroupGraphPattern()
	return err
}

// parseConstruct parses the rest of a CONSTRUCT query
func (p *Parser) parseConstruct(query *Query) error {
	construct := &ConstructQuery{}
	query.Construct = construct

	p.skipWhitespace()
	if p.peek() == '{' {
		template, err := p.parseTriplesTemplate()
		if err != nil {
			return err
		}
		construct.Template = template

		if query.Dataset, err = p.parseDatasetClauses(); err != nil {
			return err
		}
		p.matchKeyword("WHERE")
		query.Where, err = p.parseGroupGraphPattern()
		return err
	}

	// CONSTRUCT WHERE { triples } uses the pattern as its own template
	var err error
	if query.Dataset, err = p.parseDatasetClauses(); err != nil {
		return err
	}
	if !p.matchKeyword("WHERE") {
		return fmt.Errorf("expected '{' to start CONSTRUCT template or WHERE keyword")
	}
	where, err := p.parseGroupGraphPattern()
	if err != nil {
		return err
	}
	for _, elem := range where.Elements {
		block, ok := elem.(*TriplesBlock)
		if !ok {
			return fmt.Errorf("CONSTRUCT WHERE may only contain triple patterns")
		}
		construct.Template = append(construct.Template, block.Triples...)
	}
	query.Where = where
	return nil
}

// parseDescribe parses the rest of a DESCRIBE query
func (p *Parser) parseDescribe(query *Query) error {
	describe := &DescribeQuery{}
	query.Describe = describe

	p.skipWhitespace()
	if p.peek() == '*' {
		p.advance()
		describe.Star = true
	} else {
		for {
			p.skipWhitespace()
			if p.pos >= p.length || p.peek() == '{' || p.peekKeyword("WHERE", "FROM", "ORDER", "LIMIT", "OFFSET") {
				break
			}
			resource, err := p.parseTermOrVariable()
			if err != nil {
				return err
			}
			if resource.Variable == nil {
				if _, ok := resource.Term.(*rdf.NamedNode); !ok {
					return fmt.Errorf("DESCRIBE expects IRIs or variables, got %s", resource.Term)
				}
			}
			describe.Resources = append(describe.Resources, *resource)
		}
		if len(describe.Resources) == 0 {
			return fmt.Errorf("expected at least one resource or * after DESCRIBE")
		}
	}

	var err error
	if query.Dataset, err = p.parseDatasetClauses(); err != nil {
		return err
	}

	p.skipWhitespace()
	if p.matchKeyword("WHERE") || p.peek() == '{' {
		if query.Where, err = p.parseGroupGraphPattern(); err != nil {
			return err
		}
	}
	if describe.Star && query.Where == nil {
		return fmt.Errorf("DESCRIBE * requires a WHERE clause")
	}
	return nil
}

// parseDatasetClauses parses FROM and FROM NAMED clauses
func (p *Parser) parseDatasetClauses() ([]*DatasetClause, error) {
	var clauses []*DatasetClause
	for p.matchKeyword("FROM") {
		named := p.matchKeyword("NAMED")
		p.skipWhitespace()
		iri, err := p.parseIRIRef()
		if err != nil {
			return nil, fmt.Errorf("FROM: %w", err)
		}
		clauses = append(clauses, &DatasetClause{IRI: rdf.NewNamedNode(iri), Named: named})
	}
	return clauses, nil
}

// parseProjection parses the projection (variables or *)
func (p *Parser) parseProjection() ([]*Variable, error) {
	p.skipWhitespace()

	if p.peek() == '*' {
		p.advance()
		return nil, nil // nil means SELECT *
	}

	var variables []*Variable
	for {
		p.skipWhitespace()
		ch := p.peek()
		if ch == '(' {
			return nil, fmt.Errorf("projection expressions are not supported")
		}
		if ch != '?' && ch != '$' {
			break
		}

		variable, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		variables = append(variables, variable)
	}

	if len(variables) == 0 {
		return nil, fmt.Errorf("expected at least one variable or *")
	}
	return variables, nil
}

// parseGroupGraphPattern parses { ... }, keeping elements in source order
func (p *Parser) parseGroupGraphPattern() (*GroupGraphPattern, error) {
	p.skipWhitespace()

	if p.peek() != '{' {
		return nil, fmt.Errorf("expected '{' to start graph pattern")
	}
	p.advance() // consume '{'

	group := &GroupGraphPattern{}
	for {
		p.skipWhitespace()

		switch {
		case p.pos >= p.length:
			return nil, fmt.Errorf("unterminated graph pattern")

		case p.peek() == '}':
			p.advance()
			return group, nil

		case p.peek() == '.':
			p.advance()

		case p.matchKeyword("GRAPH"):
			graph, err := p.parseGraphGraphPattern()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, graph)

		case p.matchKeyword("FILTER"):
			filter, err := p.parseFilter()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, filter)

		case p.matchKeyword("OPTIONAL"):
			pattern, err := p.parseGroupGraphPattern()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, &OptionalPattern{Pattern: pattern})

		case p.peekKeyword("MINUS", "BIND", "VALUES", "SERVICE"):
			return nil, fmt.Errorf("%s is not supported", strings.ToUpper(p.peekWord()))

		case p.peek() == '{':
			elem, err := p.parseGroupOrUnion()
			if err != nil {
				return nil, err
			}
			group.Elements = append(group.Elements, elem)

		default:
			triples, err := p.parseTriplesSameSubject()
			if err != nil {
				return nil, err
			}
			// consecutive triples share one block
			if n := len(group.Elements); n > 0 {
				if block, ok := group.Elements[n-1].(*TriplesBlock); ok {
					block.Triples = append(block.Triples, triples...)
					continue
				}
			}
			group.Elements = append(group.Elements, &TriplesBlock{Triples: triples})
		}
	}
}

// parseGroupOrUnion parses a nested group, possibly followed by UNION groups
func (p *Parser) parseGroupOrUnion() (PatternElement, error) {
	savedPos := p.pos
	p.advance() // skip '{'
	if p.matchKeyword("SELECT") {
		return nil, fmt.Errorf("subqueries are not supported")
	}
	p.pos = savedPos

	first, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	alternatives := []*GroupGraphPattern{first}
	for p.matchKeyword("UNION") {
		next, err := p.parseGroupGraphPattern()
		if err != nil {
			return nil, err
		}
		alternatives = append(alternatives, next)
	}
	if len(alternatives) == 1 {
		return first, nil
	}
	return &UnionPattern{Alternatives: alternatives}, nil
}

// parseGraphGraphPattern parses <iri> { ... } or ?var { ... } after GRAPH
func (p *Parser) parseGraphGraphPattern() (*GraphGraphPattern, error) {
	p.skipWhitespace()

	name, err := p.parseTermOrVariable()
	if err != nil {
		return nil, fmt.Errorf("GRAPH: %w", err)
	}
	if name.Variable == nil {
		if _, ok := name.Term.(*rdf.NamedNode); !ok {
			return nil, fmt.Errorf("expected IRI or variable after GRAPH, got %s", name.Term)
		}
	}

	pattern, err := p.parseGroupGraphPattern()
	if err != nil {
		return nil, err
	}
	return &GraphGraphPattern{Name: *name, Pattern: pattern}, nil
}

// parseTriplesTemplate parses { triples } of a CONSTRUCT template
func (p *Parser) parseTriplesTemplate() ([]*TriplePattern, error) {
	p.skipWhitespace()
	if p.peek() != '{' {
		return nil, fmt.Errorf("expected '{' to start CONSTRUCT template")
	}
	p.advance()

	var template []*TriplePattern
	for {
		p.skipWhitespace()
		switch {
		case p.pos >= p.length:
			return nil, fmt.Errorf("unterminated CONSTRUCT template")
		case p.peek() == '}':
			p.advance()
			return template, nil
		case p.peek() == '.':
			p.advance()
		default:
			triples, err := p.parseTriplesSameSubject()
			if err != nil {
				return nil, err
			}
			template = append(template, triples...)
		}
	}
}

// parseTriplesSameSubject parses triple patterns with property list
// shorthand (semicolon and comma) and blank node property lists.
//
//	?s ?p1 ?o1 ; ?p2 ?o2 .   (semicolon repeats subject)
//	?s ?p ?o1 , ?o2 .        (comma repeats subject and predicate)
//	[ :p ?o ] :q ?x .        (anonymous subject)
func (p *Parser) parseTriplesSameSubject() ([]*TriplePattern, error) {
	var nested []*TriplePattern

	p.skipWhitespace()
	startsWithList := p.peek() == '['
	subject, err := p.parseGraphNode(&nested)
	if err != nil {
		return nil, fmt.Errorf("failed to parse subject: %w", err)
	}

	p.skipWhitespace()
	if startsWithList && p.atPatternEnd() {
		// "[ :p :o ] ." stands on its own
		return nested, nil
	}

	triples, err := p.parsePropertyList(subject, &nested)
	if err != nil {
		return nil, err
	}
	return append(triples, nested...), nil
}

// parsePropertyList parses verb objectList ( ';' verb objectList )*
func (p *Parser) parsePropertyList(subject *TermOrVariable, nested *[]*TriplePattern) ([]*TriplePattern, error) {
	var triples []*TriplePattern
	for {
		p.skipWhitespace()
		predicate, err := p.parseVerb()
		if err != nil {
			return nil, fmt.Errorf("failed to parse predicate: %w", err)
		}

		for {
			p.skipWhitespace()
			object, err := p.parseGraphNode(nested)
			if err != nil {
				return nil, fmt.Errorf("failed to parse object: %w", err)
			}
			triples = append(triples, &TriplePattern{
				Subject:   *subject,
				Predicate: *predicate,
				Object:    *object,
			})

			p.skipWhitespace()
			if p.peek() != ',' {
				break
			}
			p.advance() // skip ','
		}

		if p.peek() != ';' {
			return triples, nil
		}
		// a run of semicolons may end the list
		for p.peek() == ';' {
			p.advance()
			p.skipWhitespace()
		}
		if p.atPatternEnd() {
			return triples, nil
		}
	}
}

func (p *Parser) atPatternEnd() bool {
	ch := p.peek()
	return ch == '.' || ch == '}' || ch == ']' || p.pos >= p.length
}

// parseVerb parses a predicate position, including the keyword 'a'
func (p *Parser) parseVerb() (*TermOrVariable, error) {
	if p.peek() == 'a' && !isNameChar(p.peekAt(1)) && p.peekAt(1) != ':' {
		p.advance() // consume 'a'
		return &TermOrVariable{Term: rdf.RDFType}, nil
	}
	verb, err := p.parseTermOrVariable()
	if err != nil {
		return nil, err
	}
	if verb.Variable == nil {
		if _, ok := verb.Term.(*rdf.NamedNode); !ok {
			return nil, fmt.Errorf("predicate must be an IRI or variable, got %s", verb.Term)
		}
	}
	return verb, nil
}

// parseGraphNode parses a subject or object, expanding [ ... ] into a fresh
// blank node plus the triples inside the brackets.
func (p *Parser) parseGraphNode(nested *[]*TriplePattern) (*TermOrVariable, error) {
	switch p.peek() {
	case '[':
		p.advance()
		node := &TermOrVariable{Term: p.freshBlankNode()}
		p.skipWhitespace()
		if p.peek() == ']' {
			p.advance()
			return node, nil
		}
		triples, err := p.parsePropertyList(node, nested)
		if err != nil {
			return nil, err
		}
		*nested = append(*nested, triples...)
		p.skipWhitespace()
		if p.peek() != ']' {
			return nil, fmt.Errorf("expected ']' to close blank node property list")
		}
		p.advance()
		return node, nil
	case '(':
		return nil, fmt.Errorf("RDF collections are not supported")
	}
	return p.parseTermOrVariable()
}

func (p *Parser) freshBlankNode() *rdf.BlankNode {
	p.anonCount++
	// '-' cannot start a user label, so generated ids never collide
	return rdf.NewBlankNode(fmt.Sprintf("genid-%d", p.anonCount))
}

// parseTermOrVariable parses either an RDF term or a variable
func (p *Parser) parseTermOrVariable() (*TermOrVariable, error) {
	p.skipWhitespace()

	ch := p.peek()
	switch {
	case ch == '?' || ch == '$':
		variable, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Variable: variable}, nil

	case ch == '<':
		iri, err := p.parseIRIRef()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Term: rdf.NewNamedNode(iri)}, nil

	case ch == '"' || ch == '\'':
		literal, err := p.parseRDFLiteral()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Term: literal}, nil

	case ch == '_' && p.peekAt(1) == ':':
		blankNode, err := p.parseBlankNode()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Term: blankNode}, nil

	case isDigit(ch) || ((ch == '-' || ch == '+' || ch == '.') && (isDigit(p.peekAt(1)) || p.peekAt(1) == '.')):
		literal, err := p.parseNumericLiteral()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Term: literal}, nil

	case p.peekKeyword("true"):
		p.matchKeyword("true")
		return &TermOrVariable{Term: rdf.NewBooleanLiteral(true)}, nil

	case p.peekKeyword("false"):
		p.matchKeyword("false")
		return &TermOrVariable{Term: rdf.NewBooleanLiteral(false)}, nil

	case ch == ':' || isNameStartChar(ch):
		iri, err := p.parsePrefixedName()
		if err != nil {
			return nil, err
		}
		return &TermOrVariable{Term: rdf.NewNamedNode(iri)}, nil
	}

	if p.pos >= p.length {
		return nil, fmt.Errorf("unexpected end of query")
	}
	return nil, fmt.Errorf("unexpected character: %c", ch)
}

// parseVariable parses a SPARQL variable
func (p *Parser) parseVariable() (*Variable, error) {
	if p.peek() != '?' && p.peek() != '$' {
		return nil, fmt.Errorf("expected variable starting with ? or $")
	}
	p.advance() // consume ? or $

	name := p.readWhile(func(ch byte) bool {
		return isNameStartChar(ch) || isDigit(ch)
	})
	if name == "" {
		return nil, fmt.Errorf("invalid variable name")
	}

	return &Variable{Name: name}, nil
}

// parseIRIRef parses <iri> resolved against BASE, or a prefixed name
func (p *Parser) parseIRIRef() (string, error) {
	if p.peek() != '<' {
		return p.parsePrefixedName()
	}
	p.advance()

	iri := p.readWhile(func(ch byte) bool {
		return ch != '>' && ch != ' ' && ch != '\n' && ch != '<'
	})

	if p.peek() != '>' {
		return "", fmt.Errorf("expected '>' to end IRI")
	}
	p.advance()

	return p.resolveIRI(iri), nil
}

// parseRDFLiteral parses a string with an optional language tag or datatype
func (p *Parser) parseRDFLiteral() (*rdf.Literal, error) {
	value, err := p.parseString()
	if err != nil {
		return nil, err
	}

	if p.peek() == '@' {
		p.advance()
		lang := p.readWhile(func(ch byte) bool {
			return isAlpha(ch) || isDigit(ch) || ch == '-'
		})
		if lang == "" {
			return nil, fmt.Errorf("empty language tag")
		}
		return rdf.NewLiteralWithLanguage(value, strings.ToLower(lang)), nil
	}

	if p.match("^^") {
		datatype, err := p.parseIRIRef()
		if err != nil {
			return nil, fmt.Errorf("datatype: %w", err)
		}
		if datatype == rdf.XSDString.IRI {
			return rdf.NewLiteral(value), nil
		}
		return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(datatype)), nil
	}

	return rdf.NewLiteral(value), nil
}

// parseString parses a single- or triple-quoted string and unescapes it
func (p *Parser) parseString() (string, error) {
	quote := p.peek()
	if quote != '"' && quote != '\'' {
		return "", fmt.Errorf("expected quote to start string literal")
	}

	long := p.peekAt(1) == quote && p.peekAt(2) == quote
	if long {
		p.pos += 3
	} else {
		p.advance()
	}

	var value strings.Builder
	for p.pos < p.length {
		ch := p.input[p.pos]
		switch {
		case long && ch == quote && p.peekAt(1) == quote && p.peekAt(2) == quote:
			p.pos += 3
			return value.String(), nil
		case !long && ch == quote:
			p.advance()
			return value.String(), nil
		case !long && (ch == '\n' || ch == '\r'):
			return "", fmt.Errorf("newline in string literal")
		case ch == '\\':
			r, err := p.parseEscape()
			if err != nil {
				return "", err
			}
			value.WriteRune(r)
		default:
			value.WriteByte(ch)
			p.advance()
		}
	}
	return "", fmt.Errorf("unterminated string literal")
}

func (p *Parser) parseEscape() (rune, error) {
	p.advance() // skip '\'
	ch := p.peek()
	p.advance()
	switch ch {
	case 't':
		return '\t', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case '"', '\'', '\\':
		return rune(ch), nil
	case 'u', 'U':
		size := 4
		if ch == 'U' {
			size = 8
		}
		if p.pos+size > p.length {
			return 0, fmt.Errorf("truncated unicode escape")
		}
		code, err := strconv.ParseUint(p.input[p.pos:p.pos+size], 16, 32)
		if err != nil || !utf8.ValidRune(rune(code)) {
			return 0, fmt.Errorf("invalid unicode escape \\%c%s", ch, p.input[p.pos:p.pos+size])
		}
		p.pos += size
		return rune(code), nil
	}
	return 0, fmt.Errorf("invalid escape sequence \\%c", ch)
}

// parseBlankNode parses a labelled blank node
func (p *Parser) parseBlankNode() (*rdf.BlankNode, error) {
	if !p.match("_:") {
		return nil, fmt.Errorf("expected '_:' to start blank node")
	}

	id := p.readWhile(func(ch byte) bool {
		return isAlpha(ch) || isDigit(ch) || ch == '_'
	})
	if id == "" {
		return nil, fmt.Errorf("empty blank node label")
	}

	return rdf.NewBlankNode(id), nil
}

// parseNumericLiteral parses an integer, decimal or double literal
func (p *Parser) parseNumericLiteral() (*rdf.Literal, error) {
	start := p.pos
	if p.peek() == '+' || p.peek() == '-' {
		p.advance()
	}
	p.readWhile(isDigit)

	datatype := rdf.XSDInteger
	// "5." ends a statement; a decimal point needs a digit after it
	if p.peek() == '.' && isDigit(p.peekAt(1)) {
		p.advance()
		p.readWhile(isDigit)
		datatype = rdf.XSDDecimal
	}
	if p.peek() == 'e' || p.peek() == 'E' {
		p.advance()
		if p.peek() == '+' || p.peek() == '-' {
			p.advance()
		}
		if p.readWhile(isDigit) == "" {
			return nil, fmt.Errorf("malformed exponent in %q", p.input[start:p.pos])
		}
		datatype = rdf.XSDDouble
	}

	numStr := p.input[start:p.pos]
	if numStr == "" || numStr == "+" || numStr == "-" {
		return nil, fmt.Errorf("expected number")
	}
	if datatype == rdf.XSDInteger {
		if _, err := strconv.ParseInt(numStr, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid integer %q", numStr)
		}
	}
	return rdf.NewLiteralWithDatatype(strings.TrimPrefix(numStr, "+"), datatype), nil
}

// parseFilter parses a FILTER constraint
func (p *Parser) parseFilter() (*Filter, error) {
	p.skipWhitespace()

	if p.peekKeyword("EXISTS", "NOT") {
		return nil, fmt.Errorf("EXISTS and NOT EXISTS are not supported")
	}

	// SPARQL allows both FILTER (expr) and FILTER funcCall(...)
	var expr Expression
	var err error
	if p.peek() == '(' {
		expr, err = p.parseBracketedExpression()
	} else {
		expr, err = p.parsePrimaryExpression()
		if _, ok := expr.(*FunctionCallExpression); err == nil && !ok {
			err = fmt.Errorf("FILTER expects a bracketed expression or a function call")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing FILTER expression: %w", err)
	}

	return &Filter{Expression: expr}, nil
}

// parseSolutionModifiers parses ORDER BY, LIMIT and OFFSET
func (p *Parser) parseSolutionModifiers(mods *SolutionModifiers) error {
	if p.peekKeyword("GROUP", "HAVING") {
		return fmt.Errorf("%s is not supported", strings.ToUpper(p.peekWord()))
	}

	if p.matchKeyword("ORDER") {
		if !p.matchKeyword("BY") {
			return fmt.Errorf("expected BY after ORDER")
		}
		orderBy, err := p.parseOrderBy()
		if err != nil {
			return err
		}
		mods.OrderBy = orderBy
	}

	// LIMIT and OFFSET may come in either order
	for i := 0; i < 2; i++ {
		if mods.Limit == nil && p.matchKeyword("LIMIT") {
			limit, err := p.parseInteger()
			if err != nil {
				return fmt.Errorf("LIMIT: %w", err)
			}
			mods.Limit = &limit
		} else if mods.Offset == nil && p.matchKeyword("OFFSET") {
			offset, err := p.parseInteger()
			if err != nil {
				return fmt.Errorf("OFFSET: %w", err)
			}
			mods.Offset = &offset
		}
	}
	return nil
}

// parseOrderBy parses ORDER BY conditions
func (p *Parser) parseOrderBy() ([]*OrderCondition, error) {
	var conditions []*OrderCondition

	for {
		p.skipWhitespace()

		var (
			expr Expression
			err  error
		)
		ascending := true
		switch {
		case p.matchKeyword("ASC"):
			expr, err = p.parseBracketedExpression()
		case p.matchKeyword("DESC"):
			ascending = false
			expr, err = p.parseBracketedExpression()
		case p.peek() == '?' || p.peek() == '$':
			var variable *Variable
			variable, err = p.parseVariable()
			expr = &VariableExpression{Variable: variable}
		case p.peek() == '(':
			expr, err = p.parseBracketedExpression()
		case isAlpha(p.peek()) && !p.peekKeyword("LIMIT", "OFFSET"):
			expr, err = p.parsePrimaryExpression()
		default:
			if len(conditions) == 0 {
				return nil, fmt.Errorf("expected ORDER BY condition")
			}
			return conditions, nil
		}
		if err != nil {
			return nil, err
		}

		conditions = append(conditions, &OrderCondition{Expression: expr, Ascending: ascending})
	}
}

// parseInteger parses a non-negative integer
func (p *Parser) parseInteger() (int, error) {
	p.skipWhitespace()

	numStr := p.readWhile(isDigit)
	if numStr == "" {
		return 0, fmt.Errorf("expected integer")
	}

	return strconv.Atoi(numStr)
}

// parsePrefixDecl parses and stores a PREFIX declaration (prefix: <iri>)
func (p *Parser) parsePrefixDecl() error {
	p.skipWhitespace()

	// prefix name can be empty for the default prefix
	prefix := p.readWhile(func(ch byte) bool { return ch != ':' && !isSpace(ch) })
	if p.peek() != ':' {
		return fmt.Errorf("expected ':' in PREFIX declaration")
	}
	p.advance() // skip ':'

	p.skipWhitespace()
	if p.peek() != '<' {
		return fmt.Errorf("expected '<' to start IRI in PREFIX declaration")
	}
	iri, err := p.parseIRIRef()
	if err != nil {
		return fmt.Errorf("PREFIX %s: %w", prefix, err)
	}

	p.prefixes[prefix] = iri
	return nil
}

// parseBaseDecl parses and stores a BASE declaration (<iri>)
func (p *Parser) parseBaseDecl() error {
	p.skipWhitespace()

	if p.peek() != '<' {
		return fmt.Errorf("expected '<' to start IRI in BASE declaration")
	}
	iri, err := p.parseIRIRef()
	if err != nil {
		return fmt.Errorf("BASE: %w", err)
	}

	p.baseURI = iri
	return nil
}

// parsePrefixedName parses a prefixed name (like :foo or prefix:foo) and expands it to a full IRI
func (p *Parser) parsePrefixedName() (string, error) {
	prefix := p.readWhile(func(ch byte) bool {
		return isNameChar(ch) || ch == '.'
	})

	if p.peek() != ':' {
		return "", fmt.Errorf("expected ':' in prefixed name %q", prefix)
	}
	p.advance() // skip ':'

	start := p.pos
	local := p.readWhile(func(ch byte) bool {
		return isNameChar(ch) || ch == '.' || ch == ':' || ch == '%'
	})
	// a trailing '.' terminates the triple
	for strings.HasSuffix(local, ".") {
		local = local[:len(local)-1]
	}
	p.pos = start + len(local)

	namespace, ok := p.prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("undefined prefix: '%s'", prefix)
	}

	return namespace + local, nil
}

// Helper methods

func (p *Parser) peek() byte {
	if p.pos >= p.length {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) peekAt(offset int) byte {
	if p.pos+offset >= p.length {
		return 0
	}
	return p.input[p.pos+offset]
}

func (p *Parser) advance() {
	if p.pos < p.length {
		p.pos++
	}
}

func (p *Parser) skipWhitespace() {
	for p.pos < p.length {
		ch := p.input[p.pos]

		if isSpace(ch) {
			p.pos++
			continue
		}

		// Skip comments (from # to end of line)
		if ch == '#' {
			for p.pos < p.length && p.input[p.pos] != '\n' && p.input[p.pos] != '\r' {
				p.pos++
			}
			continue
		}

		break
	}
}

func (p *Parser) readWhile(predicate func(byte) bool) string {
	start := p.pos
	for p.pos < p.length && predicate(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// peekKeyword reports whether one of the keywords comes next, without
// consuming it.
func (p *Parser) peekKeyword(keywords ...string) bool {
	p.skipWhitespace()
	for _, keyword := range keywords {
		end := p.pos + len(keyword)
		if end > p.length || !strings.EqualFold(p.input[p.pos:end], keyword) {
			continue
		}
		// "graph:x" is a prefixed name, not the GRAPH keyword
		if end < p.length && (isNameChar(p.input[end]) || p.input[end] == ':') {
			continue
		}
		return true
	}
	return false
}

// matchKeyword consumes keyword if it comes next (case-insensitive)
func (p *Parser) matchKeyword(keyword string) bool {
	if !p.peekKeyword(keyword) {
		return false
	}
	p.pos += len(keyword)
	return true
}

func (p *Parser) peekWord() string {
	end := p.pos
	for end < p.length && isNameChar(p.input[end]) {
		end++
	}
	return p.input[p.pos:end]
}

// match checks if the next characters match the given string and advances if they do
func (p *Parser) match(s string) bool {
	if !strings.HasPrefix(p.input[p.pos:], s) {
		return false
	}
	p.pos += len(s)
	return true
}

func (p *Parser) excerpt() string {
	end := p.pos + 20
	if end > p.length {
		end = p.length
	}
	return p.input[p.pos:end]
}

// resolveIRI resolves a potentially relative IRI against the BASE URI
func (p *Parser) resolveIRI(iri string) string {
	if p.baseURI == "" || isAbsoluteIRI(iri) {
		return iri
	}
	base, err := url.Parse(p.baseURI)
	if err != nil {
		return p.baseURI + iri
	}
	ref, err := url.Parse(iri)
	if err != nil {
		return p.baseURI + iri
	}
	return base.ResolveReference(ref).String()
}

// isAbsoluteIRI checks if an IRI is absolute (has a scheme)
func isAbsoluteIRI(iri string) bool {
	colonIdx := strings.Index(iri, ":")
	if colonIdx <= 0 {
		return false
	}
	for i := 0; i < colonIdx; i++ {
		c := iri[i]
		if !(isAlpha(c) || (isDigit(c) && i > 0) || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isNameStartChar(ch byte) bool {
	return isAlpha(ch) || ch == '_' || ch >= 0x80
}

func isNameChar(ch byte) bool {
	return isNameStartChar(ch) || isDigit(ch) || ch == '-'
}
