package parser

import (
	"fmt"
	"strings"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// builtins are the function names callable without a namespace.
var builtins = map[string]bool{
	"BOUND": true, "ISIRI": true, "ISURI": true, "ISBLANK": true, "ISLITERAL": true, "ISNUMERIC": true,
	"STR": true, "LANG": true, "DATATYPE": true, "STRLEN": true, "SUBSTR": true,
	"UCASE": true, "LCASE": true, "CONCAT": true, "CONTAINS": true, "STRSTARTS": true, "STRENDS": true,
	"REGEX": true, "LANGMATCHES": true, "SAMETERM": true,
	"ABS": true, "CEIL": true, "FLOOR": true, "ROUND": true,
}

// Expression parsing with operator precedence
// Grammar:
// Expression → LogicalOrExpression
// LogicalOrExpression → LogicalAndExpression ( '||' LogicalAndExpression )*
// LogicalAndExpression → ComparisonExpression ( '&&' ComparisonExpression )*
// ComparisonExpression → AdditiveExpression ( CompOp AdditiveExpression | [NOT] IN '(' list ')' )?
// AdditiveExpression → MultiplicativeExpression ( ('+' | '-') MultiplicativeExpression )*
// MultiplicativeExpression → UnaryExpression ( ('*' | '/') UnaryExpression )*
// UnaryExpression → ('!' | '-' | '+')? PrimaryExpression
// PrimaryExpression → Variable | Term | FunctionCall | '(' Expression ')'

// parseExpression parses a SPARQL expression (entry point)
func (p *Parser) parseExpression() (Expression, error) {
	return p.parseLogicalOrExpression()
}

// parseBracketedExpression parses '(' Expression ')'
func (p *Parser) parseBracketedExpression() (Expression, error) {
	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, fmt.Errorf("expected '('")
	}
	p.advance()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipWhitespace()
	if p.peek() != ')' {
		return nil, fmt.Errorf("expected ')' after expression")
	}
	p.advance()
	return expr, nil
}

// parseLogicalOrExpression parses logical OR (lowest precedence)
func (p *Parser) parseLogicalOrExpression() (Expression, error) {
	left, err := p.parseLogicalAndExpression()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		if !p.match("||") {
			return left, nil
		}
		right, err := p.parseLogicalAndExpression()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: OpOr, Right: right}
	}
}

// parseLogicalAndExpression parses logical AND
func (p *Parser) parseLogicalAndExpression() (Expression, error) {
	left, err := p.parseComparisonExpression()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		if !p.match("&&") {
			return left, nil
		}
		right, err := p.parseComparisonExpression()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: OpAnd, Right: right}
	}
}

// parseComparisonExpression parses comparison operators and IN/NOT IN
func (p *Parser) parseComparisonExpression() (Expression, error) {
	left, err := p.parseAdditiveExpression()
	if err != nil {
		return nil, err
	}

	p.skipWhitespace()

	savedPos := p.pos
	notIn := false
	switch {
	case p.matchKeyword("NOT"):
		if !p.matchKeyword("IN") {
			p.pos = savedPos
			return left, nil
		}
		notIn = true
	case p.matchKeyword("IN"):
	default:
		var op Operator
		switch {
		case p.match("<="):
			op = OpLessThanOrEqual
		case p.match(">="):
			op = OpGreaterThanOrEqual
		case p.match("!="):
			op = OpNotEqual
		case p.match("="):
			op = OpEqual
		case p.match("<"):
			op = OpLessThan
		case p.match(">"):
			op = OpGreaterThan
		default:
			return left, nil
		}

		right, err := p.parseAdditiveExpression()
		if err != nil {
			return nil, err
		}
		return &BinaryExpression{Left: left, Operator: op, Right: right}, nil
	}

	values, err := p.parseExpressionList()
	if err != nil {
		return nil, fmt.Errorf("IN: %w", err)
	}
	return &InExpression{Not: notIn, Expression: left, Values: values}, nil
}

// parseExpressionList parses '(' [Expression (',' Expression)*] ')'
func (p *Parser) parseExpressionList() ([]Expression, error) {
	p.skipWhitespace()
	if p.peek() != '(' {
		return nil, fmt.Errorf("expected '('")
	}
	p.advance()

	var values []Expression
	p.skipWhitespace()
	if p.peek() == ')' {
		p.advance()
		return values, nil
	}
	for {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		values = append(values, expr)

		p.skipWhitespace()
		switch p.peek() {
		case ',':
			p.advance()
		case ')':
			p.advance()
			return values, nil
		default:
			return nil, fmt.Errorf("expected ',' or ')' in argument list")
		}
	}
}

// parseAdditiveExpression parses addition and subtraction
func (p *Parser) parseAdditiveExpression() (Expression, error) {
	left, err := p.parseMultiplicativeExpression()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		var op Operator
		if p.match("+") {
			op = OpAdd
		} else if p.match("-") {
			op = OpSubtract
		} else {
			return left, nil
		}

		right, err := p.parseMultiplicativeExpression()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: op, Right: right}
	}
}

// parseMultiplicativeExpression parses multiplication and division
func (p *Parser) parseMultiplicativeExpression() (Expression, error) {
	left, err := p.parseUnaryExpression()
	if err != nil {
		return nil, err
	}

	for {
		p.skipWhitespace()
		var op Operator
		if p.match("*") {
			op = OpMultiply
		} else if p.match("/") {
			op = OpDivide
		} else {
			return left, nil
		}

		right, err := p.parseUnaryExpression()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpression{Left: left, Operator: op, Right: right}
	}
}

// parseUnaryExpression parses unary operators
func (p *Parser) parseUnaryExpression() (Expression, error) {
	p.skipWhitespace()

	// "!=" never starts an operand
	if p.peek() == '!' && p.peekAt(1) != '=' {
		p.advance()
		operand, err := p.parseUnaryExpression()
		if err != nil {
			return nil, err
		}
		return &UnaryExpression{Operator: OpNot, Operand: operand}, nil
	}

	if p.match("+") {
		return p.parseUnaryExpression()
	}

	if p.match("-") {
		operand, err := p.parseUnaryExpression()
		if err != nil {
			return nil, err
		}
		// Represent as 0 - operand
		return &BinaryExpression{
			Left:     &LiteralExpression{Literal: rdf.NewIntegerLiteral(0)},
			Operator: OpSubtract,
			Right:    operand,
		}, nil
	}

	return p.parsePrimaryExpression()
}

// parsePrimaryExpression parses primary expressions (variables, terms, functions, parentheses)
func (p *Parser) parsePrimaryExpression() (Expression, error) {
	p.skipWhitespace()

	if p.peekKeyword("EXISTS", "NOT") {
		return nil, fmt.Errorf("EXISTS and NOT EXISTS are not supported")
	}

	switch ch := p.peek(); {
	case ch == '(':
		return p.parseBracketedExpression()

	case ch == '?' || ch == '$':
		variable, err := p.parseVariable()
		if err != nil {
			return nil, err
		}
		return &VariableExpression{Variable: variable}, nil

	case isAlpha(ch) && !p.peekKeyword("true", "false"):
		// builtin call: a bare word directly followed by '('
		word := p.peekWord()
		after := p.pos + len(word)
		for after < p.length && isSpace(p.input[after]) {
			after++
		}
		if after < p.length && p.input[after] == '(' {
			name := strings.ToUpper(word)
			if !builtins[name] {
				return nil, fmt.Errorf("unknown function %s", word)
			}
			p.pos = after
			args, err := p.parseExpressionList()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return &FunctionCallExpression{Function: name, Arguments: args}, nil
		}
	}

	term, err := p.parseTermOrVariable()
	if err != nil {
		return nil, fmt.Errorf("expected expression: %w", err)
	}
	if term.Variable != nil {
		return &VariableExpression{Variable: term.Variable}, nil
	}

	// <iri>(args) and prefix:name(args) call IRI functions such as casts
	if iri, ok := term.Term.(*rdf.NamedNode); ok {
		p.skipWhitespace()
		if p.peek() == '(' {
			args, err := p.parseExpressionList()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iri.IRI, err)
			}
			return &FunctionCallExpression{Function: iri.IRI, Arguments: args}, nil
		}
	}

	return &LiteralExpression{Literal: term.Term}, nil
}
