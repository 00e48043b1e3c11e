package evaluator

import (
	"math"
	"strconv"
	"strings"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// evaluateBinaryExpression evaluates binary operations
func (e *Evaluator) evaluateBinaryExpression(expr *parser.BinaryExpression, binding Bindings) (rdf.Term, error) {
	// && and || tolerate an error on one side
	if expr.Operator == parser.OpAnd || expr.Operator == parser.OpOr {
		return e.evaluateLogical(expr, binding)
	}

	left, err := e.Evaluate(expr.Left, binding)
	if err != nil {
		return nil, err
	}

	right, err := e.Evaluate(expr.Right, binding)
	if err != nil {
		return nil, err
	}

	switch expr.Operator {
	// Comparison operators
	case parser.OpEqual:
		eq, err := e.termsEqualValue(left, right)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(eq), nil
	case parser.OpNotEqual:
		eq, err := e.termsEqualValue(left, right)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(!eq), nil
	case parser.OpLessThan:
		return e.evaluateComparison(left, right, func(c int) bool { return c < 0 })
	case parser.OpLessThanOrEqual:
		return e.evaluateComparison(left, right, func(c int) bool { return c <= 0 })
	case parser.OpGreaterThan:
		return e.evaluateComparison(left, right, func(c int) bool { return c > 0 })
	case parser.OpGreaterThanOrEqual:
		return e.evaluateComparison(left, right, func(c int) bool { return c >= 0 })

	// Arithmetic operators
	case parser.OpAdd, parser.OpSubtract, parser.OpMultiply, parser.OpDivide:
		return e.evaluateArithmetic(expr.Operator, left, right)

	default:
		return nil, mismatch("unsupported binary operator: %v", expr.Operator)
	}
}

// evaluateUnaryExpression evaluates unary operations
func (e *Evaluator) evaluateUnaryExpression(expr *parser.UnaryExpression, binding Bindings) (rdf.Term, error) {
	operand, err := e.Evaluate(expr.Operand, binding)
	if err != nil {
		return nil, err
	}

	switch expr.Operator {
	case parser.OpNot:
		ebv, err := e.effectiveBooleanValue(operand)
		if err != nil {
			return nil, err
		}
		return rdf.NewBooleanLiteral(!ebv), nil
	default:
		return nil, mismatch("unsupported unary operator: %v", expr.Operator)
	}
}

// Logical operators

// evaluateLogical implements the three-valued && and ||: a definite
// answer from one side wins over an error from the other.
func (e *Evaluator) evaluateLogical(expr *parser.BinaryExpression, binding Bindings) (rdf.Term, error) {
	leftEBV, leftErr := e.Test(expr.Left, binding)
	rightEBV, rightErr := e.Test(expr.Right, binding)

	decisive := expr.Operator == parser.OpOr // true decides ||, false decides &&
	if (leftErr == nil && leftEBV == decisive) || (rightErr == nil && rightEBV == decisive) {
		return rdf.NewBooleanLiteral(decisive), nil
	}
	if leftErr != nil && rightErr != nil {
		// unbound dominates so that the caller can still treat it as inapplicable
		if sperrors.IsUnbound(rightErr) {
			return nil, rightErr
		}
		return nil, leftErr
	}
	if leftErr != nil {
		return nil, leftErr
	}
	if rightErr != nil {
		return nil, rightErr
	}
	return rdf.NewBooleanLiteral(!decisive), nil
}

// EffectiveBooleanValue computes the EBV of a term (SPARQL 1.1, section 17.2.2)
func (e *Evaluator) EffectiveBooleanValue(term rdf.Term) (bool, error) {
	return e.effectiveBooleanValue(term)
}

func (e *Evaluator) effectiveBooleanValue(term rdf.Term) (bool, error) {
	lit, ok := term.(*rdf.Literal)
	if !ok {
		return false, mismatch("cannot compute EBV of %v", term)
	}

	datatype := lit.DatatypeIRI()
	switch {
	case datatype == rdf.XSDBoolean.IRI:
		return lit.Value == "true" || lit.Value == "1", nil

	case rdf.IsNumericDatatype(datatype):
		val, ok := rdf.NumericValue(lit)
		if !ok {
			return false, mismatch("invalid numeric literal %s", lit)
		}
		return val != 0 && !math.IsNaN(val), nil

	case datatype == rdf.XSDString.IRI || datatype == rdf.RDFLangString.IRI:
		return lit.Value != "", nil
	}

	return false, mismatch("cannot compute EBV of literal with datatype %s", datatype)
}

// Comparison operators

// termsEqualValue implements '=': numbers compare by value, other terms by
// RDF term equality. Literals of different unknown datatypes cannot be
// compared.
func (e *Evaluator) termsEqualValue(left, right rdf.Term) (bool, error) {
	leftNum, leftIsNum := rdf.NumericValue(left)
	rightNum, rightIsNum := rdf.NumericValue(right)
	if leftIsNum && rightIsNum {
		return leftNum == rightNum, nil
	}

	if left.Equals(right) {
		return true, nil
	}

	leftLit, lok := left.(*rdf.Literal)
	rightLit, rok := right.(*rdf.Literal)
	if lok && rok && leftLit.DatatypeIRI() != rightLit.DatatypeIRI() &&
		!isPlainOrKnown(leftLit) && !isPlainOrKnown(rightLit) {
		return false, mismatch("cannot compare %s and %s", leftLit.DatatypeIRI(), rightLit.DatatypeIRI())
	}
	return false, nil
}

func isPlainOrKnown(lit *rdf.Literal) bool {
	switch dt := lit.DatatypeIRI(); dt {
	case rdf.XSDString.IRI, rdf.RDFLangString.IRI, rdf.XSDBoolean.IRI, rdf.XSDDateTime.IRI:
		return true
	default:
		return rdf.IsNumericDatatype(dt)
	}
}

func (e *Evaluator) evaluateComparison(left, right rdf.Term, test func(int) bool) (rdf.Term, error) {
	cmp, err := e.compareTerms(left, right)
	if err != nil {
		return nil, err
	}
	return rdf.NewBooleanLiteral(test(cmp)), nil
}

// compareTerms compares two terms for ordering
// Returns: -1 if left < right, 0 if left == right, 1 if left > right
func (e *Evaluator) compareTerms(left, right rdf.Term) (int, error) {
	leftNum, leftIsNum := rdf.NumericValue(left)
	rightNum, rightIsNum := rdf.NumericValue(right)
	if leftIsNum && rightIsNum {
		switch {
		case leftNum < rightNum:
			return -1, nil
		case leftNum > rightNum:
			return 1, nil
		}
		return 0, nil
	}

	leftLit, lok := left.(*rdf.Literal)
	rightLit, rok := right.(*rdf.Literal)
	if !lok || !rok {
		return 0, mismatch("cannot order %v and %v", left, right)
	}

	ldt, rdt := leftLit.DatatypeIRI(), rightLit.DatatypeIRI()
	switch {
	case ldt == rdf.XSDString.IRI && rdt == rdf.XSDString.IRI,
		ldt == rdf.XSDDateTime.IRI && rdt == rdf.XSDDateTime.IRI,
		ldt == rdf.RDFLangString.IRI && rdt == rdf.RDFLangString.IRI && leftLit.Language == rightLit.Language:
		return strings.Compare(leftLit.Value, rightLit.Value), nil
	case ldt == rdf.XSDBoolean.IRI && rdt == rdf.XSDBoolean.IRI:
		lb, _ := strconv.ParseBool(leftLit.Value)
		rb, _ := strconv.ParseBool(rightLit.Value)
		switch {
		case lb == rb:
			return 0, nil
		case !lb:
			return -1, nil
		}
		return 1, nil
	}
	return 0, mismatch("cannot order %s and %s", ldt, rdt)
}

// Arithmetic operators

func (e *Evaluator) evaluateArithmetic(op parser.Operator, left, right rdf.Term) (rdf.Term, error) {
	leftVal, leftOk := rdf.NumericValue(left)
	rightVal, rightOk := rdf.NumericValue(right)
	if !leftOk || !rightOk {
		return nil, mismatch("arithmetic %v on non-numeric terms %v and %v", op, left, right)
	}

	var result float64
	switch op {
	case parser.OpAdd:
		result = leftVal + rightVal
	case parser.OpSubtract:
		result = leftVal - rightVal
	case parser.OpMultiply:
		result = leftVal * rightVal
	case parser.OpDivide:
		if rightVal == 0 {
			return nil, mismatch("division by zero")
		}
		result = leftVal / rightVal
		// integer division yields a decimal
		if numericRank(left) == 0 && numericRank(right) == 0 {
			return rdf.NewDecimalLiteral(result), nil
		}
	}
	return e.createNumericLiteral(result, left, right), nil
}

// numericRank orders the numeric type promotion: integer < decimal < float < double.
func numericRank(t rdf.Term) int {
	switch t.(*rdf.Literal).DatatypeIRI() {
	case rdf.XSDDouble.IRI:
		return 3
	case rdf.XSDFloat.IRI:
		return 2
	case rdf.XSDDecimal.IRI:
		return 1
	}
	return 0
}

// createNumericLiteral creates a literal of the promoted type of the operands
func (e *Evaluator) createNumericLiteral(value float64, left, right rdf.Term) rdf.Term {
	rank := max(numericRank(left), numericRank(right))
	switch rank {
	case 0:
		if value == math.Trunc(value) && !math.IsInf(value, 0) {
			return rdf.NewIntegerLiteral(int64(value))
		}
		return rdf.NewDecimalLiteral(value)
	case 1:
		return rdf.NewDecimalLiteral(value)
	}
	return rdf.NewDoubleLiteral(value)
}
