package policy

import "fmt"

// Expression is anything in the policy tree that evaluates to a Bag given a
// RequestContext: attribute designators and selectors, variable
// references, literals, and general boolean/function conditions. Its
// internals (how a concrete expression is represented and compiled) are
// deliberately opaque to this package — see ExpressionFactory.
type Expression interface {
	Evaluate(ctx *RequestContext) (Bag, error)
}

// MatchFunction decides whether a literal value matches a candidate bag
// member, the primitive a Match node applies across a bag (spec.md §4.1).
type MatchFunction func(literal, candidate AttributeValue) (bool, error)

// FunctionRegistry resolves a named match function. It is an external
// collaborator: this package only calls MatchFunction values it returns and
// never interprets function IDs itself.
type FunctionRegistry interface {
	MatchFunction(id string) (MatchFunction, bool)
}

// XPathCompiler is the compile-time collaborator an ExpressionFactory
// consults to compile AttributeSelector expressions and to track
// VariableDefinition visibility inside XPath expressions (spec.md §4.7).
// An ExpressionFactory that does not support XPath (e.g. one backed purely
// by CEL) reports IsXPathEnabled() == false and this interface is unused.
type XPathCompiler interface {
	// WithVariable returns a new XPathCompiler with id added to its visible
	// variable namespace, leaving the receiver unmodified.
	WithVariable(id string) XPathCompiler
}

// VariableDefinition pairs a variable ID with the (already compiled)
// Expression it's bound to, for publishing into a RequestContext at
// Policy-evaluation time and for XPath-namespace tracking at compile time.
type VariableDefinition struct {
	ID         string
	Expression Expression
}

// ExpressionFactory is the external collaborator responsible for compiling
// the opaque "expression source" of a Condition, AttributeValue,
// AttributeSelector, or AttributeAssignmentExpression into an Expression,
// and for managing VariableDefinition scope during tree construction
// (spec.md §4.7). Concrete implementations bind a specific expression
// language (this module's is CEL — see internal/adapter/outbound/cel).
type ExpressionFactory interface {
	// GetFunction resolves id through the factory's FunctionRegistry,
	// returning an error if the function is unknown.
	GetFunction(id string) (MatchFunction, error)

	// NewAttributeDesignator builds an Expression that reads one
	// categorized attribute out of the RequestContext's EvaluationContext.
	NewAttributeDesignator(cat AttributeCategory, attrID, issuer string, dataType DataType, mustBePresent bool) Expression

	// NewAttributeSelector builds an Expression that evaluates an XPath
	// expression against the request's content, if the factory supports
	// XPath; factories that don't return an Expression that selects
	// nothing: it fails when mustBePresent and evaluates to an empty bag
	// otherwise.
	NewAttributeSelector(cat AttributeCategory, xpath string, dataType DataType, mustBePresent bool, compiler XPathCompiler) Expression

	// NewVariableReference builds an Expression that looks up a
	// VariableDefinition's value from the RequestContext at evaluation
	// time. It fails to compile if id has no visible definition.
	NewVariableReference(id string) (Expression, error)

	// AddVariable registers def in the factory's compile-time namespace,
	// returning the previous definition for the same ID if one was
	// shadowed (spec.md §4.7: redefinition is legal, not an error, and the
	// prior definition must be restored on RemoveVariable).
	AddVariable(def VariableDefinition, compiler XPathCompiler) (*VariableDefinition, error)

	// RemoveVariable un-registers the current definition for id, restoring
	// whatever AddVariable returned as "previous" for it, if anything.
	RemoveVariable(id string, previous *VariableDefinition)

	// IsXPathEnabled reports whether NewAttributeSelector and
	// XPathCompiler are backed by a real XPath engine.
	IsXPathEnabled() bool

	// NewXPathCompiler returns a fresh, empty XPathCompiler.
	NewXPathCompiler() XPathCompiler

	// CompileCondition compiles a Rule Condition or an
	// AttributeAssignmentExpression's value expression from source text in
	// the factory's expression language into an Expression.
	CompileCondition(source string) (Expression, error)
}

// LiteralExpression is an Expression that always evaluates to the same
// fixed value, the form an AttributeValue literal takes once compiled.
type LiteralExpression struct {
	Value AttributeValue
}

// Evaluate returns the literal as a singleton bag.
func (l LiteralExpression) Evaluate(ctx *RequestContext) (Bag, error) {
	return SingletonBag(l.Value), nil
}

// ErrUnknownFunction is returned by a FunctionRegistry/ExpressionFactory
// when asked to resolve a function ID it does not recognize.
func ErrUnknownFunction(id string) error {
	return fmt.Errorf("policy: unknown function %q", id)
}

// ErrUnknownVariable is returned by ExpressionFactory.NewVariableReference
// when id has no visible VariableDefinition at the point of compilation.
func ErrUnknownVariable(id string) error {
	return fmt.Errorf("policy: unknown variable %q", id)
}
