package cel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gocel "github.com/google/cel-go/cel"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// Safety limits carried over unchanged from the teacher's CEL evaluator.
const (
	maxExpressionLength = 1024
	maxCostBudget       = 100_000
	maxNestingDepth     = 50
	evalTimeout         = 5 * time.Second
	interruptCheckFreq  = 100
)

// Factory is the CEL-backed policy.ExpressionFactory: it compiles Rule
// Conditions and AttributeAssignmentExpression value expressions as CEL
// text, builds AttributeDesignator expressions that read directly from the
// RequestContext (bypassing CEL entirely, since designators are a simple
// context lookup), and reports no XPath support (an AttributeSelector
// returns an error when MustBePresent and an empty bag otherwise).
//
// Factory itself holds no per-request state; its only mutable state is the
// compile-time variable namespace used for NewVariableReference/AddVariable
// bookkeeping (spec.md §4.7), guarded by mu.
type Factory struct {
	env      *gocel.Env
	registry policy.FunctionRegistry

	mu   sync.Mutex
	vars map[string]*policy.VariableDefinition
}

// NewFactory builds a Factory with a fresh CEL environment and the standard
// match-function registry.
func NewFactory() (*Factory, error) {
	env, err := newBaseEnvironment()
	if err != nil {
		return nil, fmt.Errorf("cel: building environment: %w", err)
	}
	return &Factory{
		env:      env,
		registry: NewFunctionRegistry(),
		vars:     make(map[string]*policy.VariableDefinition),
	}, nil
}

// GetFunction resolves a MatchFunction by ID through the factory's
// FunctionRegistry.
func (f *Factory) GetFunction(id string) (policy.MatchFunction, error) {
	fn, ok := f.registry.MatchFunction(id)
	if !ok {
		return nil, policy.ErrUnknownFunction(id)
	}
	return fn, nil
}

// NewAttributeDesignator returns an Expression that reads the named
// attribute straight out of the RequestContext's EvaluationContext.
func (f *Factory) NewAttributeDesignator(cat policy.AttributeCategory, attrID, issuer string, dataType policy.DataType, mustBePresent bool) policy.Expression {
	return &designatorExpression{
		guid: policy.AttributeGUID{
			Category:      cat,
			AttributeID:   attrID,
			Issuer:        issuer,
			MustBePresent: mustBePresent,
		},
		dataType: dataType,
	}
}

// NewAttributeSelector reports that this factory has no XPath engine: the
// returned Expression returns an error when mustBePresent, or evaluates to
// an empty bag otherwise.
func (f *Factory) NewAttributeSelector(cat policy.AttributeCategory, xpath string, dataType policy.DataType, mustBePresent bool, compiler policy.XPathCompiler) policy.Expression {
	return &unsupportedSelectorExpression{
		path:          xpath,
		dataType:      dataType,
		mustBePresent: mustBePresent,
	}
}

// NewVariableReference compiles a reference to a visible VariableDefinition.
func (f *Factory) NewVariableReference(id string) (policy.Expression, error) {
	f.mu.Lock()
	_, ok := f.vars[id]
	f.mu.Unlock()
	if !ok {
		return nil, policy.ErrUnknownVariable(id)
	}
	return &policy.VariableReferenceExpression{ID: id}, nil
}

// AddVariable registers def in the compile-time namespace, returning
// whatever definition it shadows so the caller can restore it later.
func (f *Factory) AddVariable(def policy.VariableDefinition, compiler policy.XPathCompiler) (*policy.VariableDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.vars[def.ID]
	d := def
	f.vars[def.ID] = &d
	return prev, nil
}

// RemoveVariable restores whatever definition AddVariable reported as
// shadowed (or clears the binding entirely if there was none).
func (f *Factory) RemoveVariable(id string, previous *policy.VariableDefinition) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if previous == nil {
		delete(f.vars, id)
		return
	}
	f.vars[id] = previous
}

// IsXPathEnabled always reports false: CEL has no XPath concept.
func (f *Factory) IsXPathEnabled() bool { return false }

// NewXPathCompiler returns a no-op compiler, since IsXPathEnabled is false
// and nothing consults it for compilation decisions.
func (f *Factory) NewXPathCompiler() policy.XPathCompiler {
	return noopXPathCompiler{}
}

// CompileCondition validates and compiles CEL expression text into a
// celExpression, applying the teacher's length/nesting/cost safety limits.
func (f *Factory) CompileCondition(source string) (policy.Expression, error) {
	if len(source) > maxExpressionLength {
		return nil, fmt.Errorf("cel: expression too long: %d characters (max %d)", len(source), maxExpressionLength)
	}
	if source == "" {
		return nil, errors.New("cel: expression is empty")
	}
	if err := validateNesting(source); err != nil {
		return nil, err
	}

	ast, issues := f.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel: compilation failed: %w", issues.Err())
	}
	prg, err := f.env.Program(ast,
		gocel.EvalOptions(gocel.OptOptimize),
		gocel.CostLimit(maxCostBudget),
		gocel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("cel: program creation failed: %w", err)
	}
	return &celExpression{program: prg}, nil
}

// validateNesting checks that expr does not exceed the maximum allowed
// parenthesis/bracket/brace nesting depth.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("cel: expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// designatorExpression reads one categorized attribute from the
// RequestContext, producing MissingAttribute errors per spec.md §7 when
// MustBePresent and absent.
type designatorExpression struct {
	guid     policy.AttributeGUID
	dataType policy.DataType
}

func (d *designatorExpression) Evaluate(ctx *policy.RequestContext) (policy.Bag, error) {
	bag, ok := ctx.EvaluationContext().GetAttribute(d.guid)
	if !ok {
		if d.guid.MustBePresent {
			return policy.Bag{}, missingAttributeError{guid: d.guid}
		}
		return policy.EmptyBag(d.dataType), nil
	}
	return bag, nil
}

type missingAttributeError struct {
	guid policy.AttributeGUID
}

func (e missingAttributeError) Error() string {
	return fmt.Sprintf("cel: missing required attribute %s/%s", e.guid.Category, e.guid.AttributeID)
}

// unsupportedSelectorExpression is returned for every AttributeSelector
// since this factory has no XPath engine wired.
type unsupportedSelectorExpression struct {
	path          string
	dataType      policy.DataType
	mustBePresent bool
}

func (s *unsupportedSelectorExpression) Evaluate(ctx *policy.RequestContext) (policy.Bag, error) {
	if s.mustBePresent {
		return policy.Bag{}, fmt.Errorf("cel: attribute selector %q unsupported: no XPath engine wired", s.path)
	}
	return policy.EmptyBag(s.dataType), nil
}

// celExpression wraps a compiled CEL program. Evaluate builds the
// four-category activation from the RequestContext and runs the program
// under the configured timeout, converting its result into a Bag.
type celExpression struct {
	program gocel.Program
}

func (c *celExpression) Evaluate(ctx *policy.RequestContext) (policy.Bag, error) {
	activation := buildActivation(ctx.EvaluationContext())

	goCtx := ctx.GoContext()
	if goCtx == nil {
		goCtx = context.Background()
	}
	evalCtx, cancel := context.WithTimeout(goCtx, evalTimeout)
	defer cancel()

	result, _, err := c.program.ContextEval(evalCtx, activation)
	if err != nil {
		return policy.Bag{}, fmt.Errorf("cel: evaluation failed: %w", err)
	}

	v := result.Value()
	if b, ok := v.(bool); ok {
		return policy.SingletonBag(policy.NewAttributeValue(policy.DataTypeBoolean, b)), nil
	}
	return policy.SingletonBag(policy.NewAttributeValue(policy.DataTypeString, v)), nil
}

// noopXPathCompiler is the inert XPathCompiler this factory hands out;
// since IsXPathEnabled is false nothing ever calls WithVariable on it in a
// way that changes behavior.
type noopXPathCompiler struct{}

func (noopXPathCompiler) WithVariable(id string) policy.XPathCompiler { return noopXPathCompiler{} }

var _ policy.ExpressionFactory = (*Factory)(nil)
