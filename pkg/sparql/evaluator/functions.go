package evaluator

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
	"github.com/aleksaelezovic/trigoql/pkg/sparql/parser"
)

const xsdNamespace = "http://www.w3.org/2001/XMLSchema#"

// arity is the accepted argument count range of each builtin.
var arity = map[string][2]int{
	"BOUND": {1, 1}, "ISIRI": {1, 1}, "ISURI": {1, 1}, "ISBLANK": {1, 1}, "ISLITERAL": {1, 1}, "ISNUMERIC": {1, 1},
	"STR": {1, 1}, "LANG": {1, 1}, "DATATYPE": {1, 1}, "STRLEN": {1, 1}, "SUBSTR": {2, 3},
	"UCASE": {1, 1}, "LCASE": {1, 1}, "CONCAT": {0, math.MaxInt}, "CONTAINS": {2, 2},
	"STRSTARTS": {2, 2}, "STRENDS": {2, 2}, "REGEX": {2, 3}, "LANGMATCHES": {2, 2}, "SAMETERM": {2, 2},
	"ABS": {1, 1}, "CEIL": {1, 1}, "FLOOR": {1, 1}, "ROUND": {1, 1},
}

// evaluateFunctionCall evaluates a function call expression
func (e *Evaluator) evaluateFunctionCall(expr *parser.FunctionCallExpression, binding Bindings) (rdf.Term, error) {
	funcName := expr.Function

	if strings.HasPrefix(funcName, xsdNamespace) {
		return e.evaluateTypeCast(expr.Arguments, binding, funcName)
	}

	bounds, ok := arity[funcName]
	if !ok {
		return nil, mismatch("unsupported function: %s", funcName)
	}
	if n := len(expr.Arguments); n < bounds[0] || n > bounds[1] {
		return nil, mismatch("%s: wrong number of arguments (%d)", funcName, n)
	}

	// BOUND is special - it doesn't evaluate the argument
	if funcName == "BOUND" {
		varExpr, ok := expr.Arguments[0].(*parser.VariableExpression)
		if !ok {
			return nil, mismatch("BOUND requires a variable argument")
		}
		_, exists := binding.Get(varExpr.Variable.Name)
		return rdf.NewBooleanLiteral(exists), nil
	}

	args := make([]rdf.Term, len(expr.Arguments))
	for i, argExpr := range expr.Arguments {
		arg, err := e.Evaluate(argExpr, binding)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}

	switch funcName {
	// Type checking functions
	case "ISIRI", "ISURI":
		_, isIRI := args[0].(*rdf.NamedNode)
		return rdf.NewBooleanLiteral(isIRI), nil
	case "ISBLANK":
		_, isBlank := args[0].(*rdf.BlankNode)
		return rdf.NewBooleanLiteral(isBlank), nil
	case "ISLITERAL":
		_, isLiteral := args[0].(*rdf.Literal)
		return rdf.NewBooleanLiteral(isLiteral), nil
	case "ISNUMERIC":
		_, isNumeric := rdf.NumericValue(args[0])
		return rdf.NewBooleanLiteral(isNumeric), nil
	case "SAMETERM":
		return rdf.NewBooleanLiteral(args[0].Equals(args[1])), nil

	// Value extraction functions
	case "STR":
		return e.evaluateStr(args[0])
	case "LANG":
		lit, ok := args[0].(*rdf.Literal)
		if !ok {
			return nil, mismatch("LANG can only be applied to literals")
		}
		return rdf.NewLiteral(lit.Language), nil
	case "DATATYPE":
		lit, ok := args[0].(*rdf.Literal)
		if !ok {
			return nil, mismatch("DATATYPE can only be applied to literals")
		}
		return rdf.NewNamedNode(lit.DatatypeIRI()), nil

	// String functions
	case "STRLEN":
		lit, err := e.stringLiteral(args[0])
		if err != nil {
			return nil, err
		}
		return rdf.NewIntegerLiteral(int64(utf8.RuneCountInString(lit.Value))), nil
	case "SUBSTR":
		return e.evaluateSubStr(args)
	case "UCASE":
		return e.mapString(args[0], strings.ToUpper)
	case "LCASE":
		return e.mapString(args[0], strings.ToLower)
	case "CONCAT":
		return e.evaluateConcat(args)
	case "CONTAINS":
		return e.stringPredicate(args, strings.Contains)
	case "STRSTARTS":
		return e.stringPredicate(args, strings.HasPrefix)
	case "STRENDS":
		return e.stringPredicate(args, strings.HasSuffix)
	case "REGEX":
		return e.evaluateRegex(args)
	case "LANGMATCHES":
		return e.evaluateLangMatches(args)

	// Numeric functions
	case "ABS":
		return e.mapNumeric(args[0], math.Abs)
	case "CEIL":
		return e.mapNumeric(args[0], math.Ceil)
	case "FLOOR":
		return e.mapNumeric(args[0], math.Floor)
	case "ROUND":
		// SPARQL rounds halves towards positive infinity
		return e.mapNumeric(args[0], func(v float64) float64 { return math.Floor(v + 0.5) })
	}
	return nil, mismatch("unsupported function: %s", funcName)
}

func (e *Evaluator) evaluateStr(term rdf.Term) (rdf.Term, error) {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return rdf.NewLiteral(t.IRI), nil
	case *rdf.Literal:
		return rdf.NewLiteral(t.Value), nil
	default:
		return nil, mismatch("STR cannot be applied to %v", term)
	}
}

// stringLiteral accepts simple, xsd:string and language-tagged literals.
func (e *Evaluator) stringLiteral(term rdf.Term) (*rdf.Literal, error) {
	lit, ok := term.(*rdf.Literal)
	if !ok {
		return nil, mismatch("expected a string literal, got %v", term)
	}
	switch lit.DatatypeIRI() {
	case rdf.XSDString.IRI, rdf.RDFLangString.IRI:
		return lit, nil
	}
	return nil, mismatch("expected a string literal, got %s", lit)
}

// withValue keeps the language tag or datatype of lit.
func withValue(lit *rdf.Literal, value string) *rdf.Literal {
	return &rdf.Literal{Value: value, Language: lit.Language, Datatype: lit.Datatype}
}

func (e *Evaluator) mapString(term rdf.Term, fn func(string) string) (rdf.Term, error) {
	lit, err := e.stringLiteral(term)
	if err != nil {
		return nil, err
	}
	return withValue(lit, fn(lit.Value)), nil
}

func (e *Evaluator) stringPredicate(args []rdf.Term, fn func(s, sub string) bool) (rdf.Term, error) {
	arg1, err := e.stringLiteral(args[0])
	if err != nil {
		return nil, err
	}
	arg2, err := e.stringLiteral(args[1])
	if err != nil {
		return nil, err
	}
	if arg2.Language != "" && arg1.Language != arg2.Language {
		return nil, mismatch("incompatible language tags %q and %q", arg1.Language, arg2.Language)
	}
	return rdf.NewBooleanLiteral(fn(arg1.Value, arg2.Value)), nil
}

func (e *Evaluator) evaluateSubStr(args []rdf.Term) (rdf.Term, error) {
	lit, err := e.stringLiteral(args[0])
	if err != nil {
		return nil, err
	}
	start, ok := rdf.NumericValue(args[1])
	if !ok {
		return nil, mismatch("SUBSTR start position must be numeric")
	}

	// SPARQL uses 1-based character positions
	runes := []rune(lit.Value)
	from := int(math.Round(start))
	to := len(runes) + 1
	if len(args) == 3 {
		length, ok := rdf.NumericValue(args[2])
		if !ok {
			return nil, mismatch("SUBSTR length must be numeric")
		}
		to = from + int(math.Round(length))
	}
	from = max(from, 1)
	to = min(to, len(runes)+1)
	if from >= to {
		return withValue(lit, ""), nil
	}
	return withValue(lit, string(runes[from-1:to-1])), nil
}

func (e *Evaluator) evaluateConcat(args []rdf.Term) (rdf.Term, error) {
	var b strings.Builder
	lang := ""
	sameLang := true
	for i, arg := range args {
		lit, err := e.stringLiteral(arg)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			lang = lit.Language
		} else if lit.Language != lang {
			sameLang = false
		}
		b.WriteString(lit.Value)
	}
	if sameLang && lang != "" {
		return rdf.NewLiteralWithLanguage(b.String(), lang), nil
	}
	return rdf.NewLiteral(b.String()), nil
}

func (e *Evaluator) evaluateRegex(args []rdf.Term) (rdf.Term, error) {
	text, err := e.stringLiteral(args[0])
	if err != nil {
		return nil, err
	}
	pattern, err := e.stringLiteral(args[1])
	if err != nil {
		return nil, err
	}

	expr := pattern.Value
	if len(args) == 3 {
		flags, err := e.stringLiteral(args[2])
		if err != nil {
			return nil, err
		}
		// q quotes the pattern; i, m, s and x map onto Go flag groups
		var goFlags string
		for _, flag := range flags.Value {
			switch flag {
			case 'i', 'm', 's':
				goFlags += string(flag)
			case 'x':
				expr = stripRegexWhitespace(expr)
			case 'q':
				expr = regexp.QuoteMeta(expr)
			default:
				return nil, mismatch("unsupported REGEX flag: %c", flag)
			}
		}
		if goFlags != "" {
			expr = "(?" + goFlags + ")" + expr
		}
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, mismatch("invalid regex pattern %q: %v", pattern.Value, err)
	}
	return rdf.NewBooleanLiteral(re.MatchString(text.Value)), nil
}

func stripRegexWhitespace(expr string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, expr)
}

// evaluateLangMatches implements basic filtering: "*" matches any non-empty
// tag and "de" matches "de" and "de-CH" but not "deu".
func (e *Evaluator) evaluateLangMatches(args []rdf.Term) (rdf.Term, error) {
	tagLit, err := e.stringLiteral(args[0])
	if err != nil {
		return nil, err
	}
	rangeLit, err := e.stringLiteral(args[1])
	if err != nil {
		return nil, err
	}

	tag := strings.ToLower(tagLit.Value)
	langRange := strings.ToLower(rangeLit.Value)

	if langRange == "*" {
		return rdf.NewBooleanLiteral(tag != ""), nil
	}
	return rdf.NewBooleanLiteral(tag == langRange || strings.HasPrefix(tag, langRange+"-")), nil
}

func (e *Evaluator) mapNumeric(term rdf.Term, fn func(float64) float64) (rdf.Term, error) {
	val, ok := rdf.NumericValue(term)
	if !ok {
		return nil, mismatch("expected a numeric argument, got %v", term)
	}
	return e.createNumericLiteral(fn(val), term, term), nil
}

// evaluateTypeCast handles xsd:type(value) constructor functions
func (e *Evaluator) evaluateTypeCast(argExprs []parser.Expression, binding Bindings, datatypeIRI string) (rdf.Term, error) {
	if len(argExprs) != 1 {
		return nil, mismatch("type cast requires exactly 1 argument")
	}

	term, err := e.Evaluate(argExprs[0], binding)
	if err != nil {
		return nil, err
	}

	var value string
	switch t := term.(type) {
	case *rdf.Literal:
		value = strings.TrimSpace(t.Value)
	case *rdf.NamedNode:
		if datatypeIRI != rdf.XSDString.IRI {
			return nil, mismatch("cannot cast IRI to %s", datatypeIRI)
		}
		value = t.IRI
	default:
		return nil, mismatch("cannot cast %v to %s", term, datatypeIRI)
	}

	switch datatypeIRI {
	case rdf.XSDString.IRI:
		return rdf.NewLiteral(value), nil
	case rdf.XSDInteger.IRI:
		if num, ok := rdf.NumericValue(term); ok {
			return rdf.NewIntegerLiteral(int64(math.Trunc(num))), nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, mismatch("cannot cast %q to xsd:integer", value)
		}
		return rdf.NewIntegerLiteral(n), nil
	case rdf.XSDDecimal.IRI, rdf.XSDDouble.IRI, rdf.XSDFloat.IRI:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, mismatch("cannot cast %q to %s", value, datatypeIRI)
		}
		if datatypeIRI == rdf.XSDDecimal.IRI {
			return rdf.NewDecimalLiteral(f), nil
		}
		return rdf.NewLiteralWithDatatype(strconv.FormatFloat(f, 'g', -1, 64), rdf.NewNamedNode(datatypeIRI)), nil
	case rdf.XSDBoolean.IRI:
		if num, ok := rdf.NumericValue(term); ok {
			return rdf.NewBooleanLiteral(num != 0), nil
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, mismatch("cannot cast %q to xsd:boolean", value)
		}
		return rdf.NewBooleanLiteral(b), nil
	}

	// other datatypes keep the lexical form
	return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(datatypeIRI)), nil
}
