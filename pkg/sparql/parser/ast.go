package parser

import (
	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// Query represents a parsed SPARQL query
type Query struct {
	QueryType QueryType
	Prolog    *Prolog
	Dataset   []*DatasetClause   // FROM / FROM NAMED
	Where     *GroupGraphPattern // nil only for DESCRIBE without WHERE
	Modifiers SolutionModifiers

	Select    *SelectQuery
	Construct *ConstructQuery
	Describe  *DescribeQuery
}

// QueryType represents the form of a SPARQL query
type QueryType int

const (
	QueryTypeSelect QueryType = iota
	QueryTypeConstruct
	QueryTypeAsk
	QueryTypeDescribe
)

func (t QueryType) String() string {
	switch t {
	case QueryTypeSelect:
		return "SELECT"
	case QueryTypeConstruct:
		return "CONSTRUCT"
	case QueryTypeAsk:
		return "ASK"
	case QueryTypeDescribe:
		return "DESCRIBE"
	default:
		return "UNKNOWN"
	}
}

// Prolog holds the BASE and PREFIX declarations in effect for a query.
type Prolog struct {
	Base     string
	Prefixes map[string]string
}

// DatasetClause is a FROM <iri> or FROM NAMED <iri> clause.
type DatasetClause struct {
	IRI   *rdf.NamedNode
	Named bool
}

// SolutionModifiers are ORDER BY, LIMIT and OFFSET.
type SolutionModifiers struct {
	OrderBy []*OrderCondition
	Limit   *int
	Offset  *int
}

// SelectQuery holds the SELECT-specific parts of a query
type SelectQuery struct {
	Variables []*Variable // nil means SELECT *
	Distinct  bool
	Reduced   bool
	Recur     *RecurClause
}

// RecurClause computes a closure over the solutions of the main pattern:
// every new value of From seeds To in Pattern, and the solutions found are
// added until no new From values appear.
//
//	RECUR ?from TO ?to { pattern }
type RecurClause struct {
	From    *Variable
	To      *Variable
	Pattern *GroupGraphPattern
}

// ConstructQuery holds the CONSTRUCT template
type ConstructQuery struct {
	Template []*TriplePattern
}

// DescribeQuery holds the resources to describe. An empty list with Star
// set describes every variable of the WHERE clause.
type DescribeQuery struct {
	Resources []TermOrVariable
	Star      bool
}

// GroupGraphPattern is the content of { ... } in source order.
type GroupGraphPattern struct {
	Elements []PatternElement
}

// PatternElement is one element of a group graph pattern.
type PatternElement interface {
	patternElement()
}

// TriplesBlock is a run of consecutive triple patterns.
type TriplesBlock struct {
	Triples []*TriplePattern
}

// Filter represents a FILTER expression
type Filter struct {
	Expression Expression
}

// OptionalPattern is OPTIONAL { ... }.
type OptionalPattern struct {
	Pattern *GroupGraphPattern
}

// UnionPattern is { A } UNION { B } UNION ...; it always has at least two
// alternatives.
type UnionPattern struct {
	Alternatives []*GroupGraphPattern
}

// GraphGraphPattern is GRAPH <iri> { ... } or GRAPH ?g { ... }.
type GraphGraphPattern struct {
	Name    TermOrVariable
	Pattern *GroupGraphPattern
}

func (*TriplesBlock) patternElement()      {}
func (*Filter) patternElement()            {}
func (*OptionalPattern) patternElement()   {}
func (*UnionPattern) patternElement()      {}
func (*GraphGraphPattern) patternElement() {}
func (*GroupGraphPattern) patternElement() {}

// TriplePattern represents a triple pattern with possible variables
type TriplePattern struct {
	Subject   TermOrVariable
	Predicate TermOrVariable
	Object    TermOrVariable
}

// Variables returns the variable names of the pattern in s, p, o order,
// without duplicates.
func (t *TriplePattern) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, tv := range []TermOrVariable{t.Subject, t.Predicate, t.Object} {
		if tv.Variable != nil && !seen[tv.Variable.Name] {
			seen[tv.Variable.Name] = true
			names = append(names, tv.Variable.Name)
		}
	}
	return names
}

// TermOrVariable can be either an RDF term or a variable
type TermOrVariable struct {
	Term     rdf.Term
	Variable *Variable
}

// IsVariable returns true if this is a variable
func (t *TermOrVariable) IsVariable() bool {
	return t.Variable != nil
}

// AsTerm returns the term, or an *rdf.Variable for a variable.
func (t *TermOrVariable) AsTerm() rdf.Term {
	if t.Variable != nil {
		return rdf.NewVariable(t.Variable.Name)
	}
	return t.Term
}

// Variable represents a SPARQL variable
type Variable struct {
	Name string
}

// Expression represents a SPARQL expression
type Expression interface {
	expressionNode()
}

// BinaryExpression represents a binary operation
type BinaryExpression struct {
	Left     Expression
	Operator Operator
	Right    Expression
}

// UnaryExpression represents a unary operation
type UnaryExpression struct {
	Operator Operator
	Operand  Expression
}

// VariableExpression represents a variable in an expression
type VariableExpression struct {
	Variable *Variable
}

// LiteralExpression represents a constant term in an expression
type LiteralExpression struct {
	Literal rdf.Term
}

// FunctionCallExpression represents a builtin call (upper-cased name) or an
// IRI function such as an xsd cast (full IRI).
type FunctionCallExpression struct {
	Function  string
	Arguments []Expression
}

// InExpression is expr IN (...) or expr NOT IN (...)
type InExpression struct {
	Not        bool
	Expression Expression
	Values     []Expression
}

func (*BinaryExpression) expressionNode()       {}
func (*UnaryExpression) expressionNode()        {}
func (*VariableExpression) expressionNode()     {}
func (*LiteralExpression) expressionNode()      {}
func (*FunctionCallExpression) expressionNode() {}
func (*InExpression) expressionNode()           {}

// Operator represents an operator in expressions
type Operator int

const (
	// Logical operators
	OpAnd Operator = iota
	OpOr
	OpNot

	// Comparison operators
	OpEqual
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual

	// Arithmetic operators
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
)

var operatorNames = map[Operator]string{
	OpAnd: "&&", OpOr: "||", OpNot: "!",
	OpEqual: "=", OpNotEqual: "!=",
	OpLessThan: "<", OpLessThanOrEqual: "<=",
	OpGreaterThan: ">", OpGreaterThanOrEqual: ">=",
	OpAdd: "+", OpSubtract: "-", OpMultiply: "*", OpDivide: "/",
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return "?"
}

// OrderCondition represents an ORDER BY condition
type OrderCondition struct {
	Expression Expression
	Ascending  bool
}

// ExpressionVariables returns the distinct variable names referenced by expr.
func ExpressionVariables(expr Expression) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Expression)
	walk = func(e Expression) {
		switch ex := e.(type) {
		case *VariableExpression:
			if !seen[ex.Variable.Name] {
				seen[ex.Variable.Name] = true
				names = append(names, ex.Variable.Name)
			}
		case *BinaryExpression:
			walk(ex.Left)
			walk(ex.Right)
		case *UnaryExpression:
			walk(ex.Operand)
		case *FunctionCallExpression:
			for _, arg := range ex.Arguments {
				walk(arg)
			}
		case *InExpression:
			walk(ex.Expression)
			for _, v := range ex.Values {
				walk(v)
			}
		case *LiteralExpression:
		}
	}
	walk(expr)
	return names
}
