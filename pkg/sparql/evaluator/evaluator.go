// Package evaluator computes the value of FILTER and ORDER BY expressions
// against a single solution.
//
// Errors are coded: an expression that reads an unbound variable fails with
// query.filter.unbound, every other failure with query.filter.type_mismatch.
// Callers decide how each kind affects a solution.
package evaluator

import (
	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

// Bindings gives read access to the variables of one solution.
type Bindings interface {
	Get(name string) (rdf.Term, bool)
}

// Evaluator evaluates SPARQL expressions against bindings
type Evaluator struct{}

// NewEvaluator creates a new expression evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func mismatch(format string, args ...any) error {
	return sperrors.Errorf(sperrors.CodeQueryFilterTypeMismatch, format, args...)
}

// Test evaluates expr and reduces it to its effective boolean value.
func (e *Evaluator) Test(expr parser.Expression, binding Bindings) (bool, error) {
	term, err := e.Evaluate(expr, binding)
	if err != nil {
		return false, err
	}
	return e.effectiveBooleanValue(term)
}

// Evaluate evaluates an expression against a binding and returns the result term
func (e *Evaluator) Evaluate(expr parser.Expression, binding Bindings) (rdf.Term, error) {
	if expr == nil {
		return nil, mismatch("cannot evaluate nil expression")
	}

	switch ex := expr.(type) {
	case *parser.BinaryExpression:
		return e.evaluateBinaryExpression(ex, binding)
	case *parser.UnaryExpression:
		return e.evaluateUnaryExpression(ex, binding)
	case *parser.VariableExpression:
		return e.evaluateVariableExpression(ex, binding)
	case *parser.LiteralExpression:
		return ex.Literal, nil
	case *parser.FunctionCallExpression:
		return e.evaluateFunctionCall(ex, binding)
	case *parser.InExpression:
		return e.evaluateInExpression(ex, binding)
	default:
		return nil, mismatch("unsupported expression type: %T", expr)
	}
}

// evaluateVariableExpression evaluates a variable reference
func (e *Evaluator) evaluateVariableExpression(expr *parser.VariableExpression, binding Bindings) (rdf.Term, error) {
	value, exists := binding.Get(expr.Variable.Name)
	if !exists {
		return nil, sperrors.New(sperrors.CodeQueryFilterUnbound, "unbound variable ?"+expr.Variable.Name,
			sperrors.FieldVariable(expr.Variable.Name))
	}
	return value, nil
}

// evaluateInExpression evaluates IN or NOT IN operator
// x IN (e1, e2, ...) is equivalent to (x = e1) || (x = e2) || ...
func (e *Evaluator) evaluateInExpression(expr *parser.InExpression, binding Bindings) (rdf.Term, error) {
	leftValue, err := e.Evaluate(expr.Expression, binding)
	if err != nil {
		return nil, err
	}

	found := false
	var firstErr error
	for _, valueExpr := range expr.Values {
		rightValue, err := e.Evaluate(valueExpr, binding)
		if err == nil {
			found, err = e.termsEqualValue(leftValue, rightValue)
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if found {
			break
		}
	}

	// an error only matters when no member matched
	if !found && firstErr != nil {
		return nil, firstErr
	}
	return rdf.NewBooleanLiteral(found != expr.Not), nil
}
