package yamlpolicy

import (
	"fmt"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// variableScope undoes a batch of Factory.AddVariable registrations on
// exit from the Policy/PolicySet construction scope that declared them
// (spec.md §4.7: "Variables are removed from the global expression
// factory's namespace on exit from the policy's construction scope").
// Releasing restores whatever definition each id shadowed, so an
// enclosing scope's own variable of the same id (legitimate nested
// shadowing, not a conflict) becomes visible again.
type variableScope struct {
	factory policy.ExpressionFactory
	ids     []string
	prevs   []*policy.VariableDefinition
}

func (s *variableScope) release() {
	if s == nil {
		return
	}
	for i := len(s.ids) - 1; i >= 0; i-- {
		s.factory.RemoveVariable(s.ids[i], s.prevs[i])
	}
}

// buildVariables registers doc's VariableDefinitions into b.Factory's
// namespace and returns a variableScope the caller must release once this
// element's construction (its own Rules, nested Policies/PolicySets,
// PolicyRefs, and obligation/advice expressions) is finished compiling.
//
// Two ids declared by the same Policy/PolicySet are a compile-time error
// (spec.md §4.7); a declaration that merely shadows a variable from an
// enclosing scope is not — AddVariable's returned shadowed definition is
// kept so release can restore it.
func (b *Builder) buildVariables(docs []VariableDoc) ([]policy.VariableDefinition, *variableScope, error) {
	defs := make([]policy.VariableDefinition, 0, len(docs))
	scope := &variableScope{factory: b.Factory}
	declared := make(map[string]bool, len(docs))
	for _, d := range docs {
		if declared[d.ID] {
			scope.release()
			return nil, nil, fmt.Errorf("yamlpolicy: variable %q declared more than once in the same policy scope", d.ID)
		}
		expr, err := b.Factory.CompileCondition(d.Expression)
		if err != nil {
			scope.release()
			return nil, nil, fmt.Errorf("yamlpolicy: variable %q: %w", d.ID, err)
		}
		def := policy.VariableDefinition{ID: d.ID, Expression: expr}
		prev, err := b.Factory.AddVariable(def, b.Factory.NewXPathCompiler())
		if err != nil {
			scope.release()
			return nil, nil, fmt.Errorf("yamlpolicy: variable %q: %w", d.ID, err)
		}
		declared[d.ID] = true
		scope.ids = append(scope.ids, d.ID)
		scope.prevs = append(scope.prevs, prev)
		defs = append(defs, def)
	}
	return defs, scope, nil
}

func (b *Builder) buildRule(doc RuleDoc) (*policy.Rule, error) {
	effect, ok := effectByName[doc.Effect]
	if !ok {
		return nil, fmt.Errorf("yamlpolicy: rule %q has unknown effect %q", doc.ID, doc.Effect)
	}
	target, err := b.buildTarget(doc.Target)
	if err != nil {
		return nil, fmt.Errorf("yamlpolicy: rule %q target: %w", doc.ID, err)
	}
	var condition policy.Expression
	if doc.Condition != "" {
		condition, err = b.Factory.CompileCondition(doc.Condition)
		if err != nil {
			return nil, fmt.Errorf("yamlpolicy: rule %q condition: %w", doc.ID, err)
		}
	}
	obligations, err := b.buildPepActions(doc.Obligations, true, effect)
	if err != nil {
		return nil, fmt.Errorf("yamlpolicy: rule %q obligations: %w", doc.ID, err)
	}
	advice, err := b.buildPepActions(doc.Advice, false, effect)
	if err != nil {
		return nil, fmt.Errorf("yamlpolicy: rule %q advice: %w", doc.ID, err)
	}
	return &policy.Rule{
		ID:                    doc.ID,
		Effect:                effect,
		Target:                target,
		Condition:             condition,
		ObligationExpressions: obligations,
		AdviceExpressions:     advice,
	}, nil
}

// buildPepActions builds the PepActionExpressions for one obligation/advice
// slot. isObligation fixes IsMandatory for the whole slot: XACML obligations
// are always mandatory and advice is never mandatory, regardless of what a
// document author sets on an individual PepActionDoc.
func (b *Builder) buildPepActions(docs []PepActionDoc, isObligation bool, effect policy.Effect) ([]*policy.PepActionExpression, error) {
	out := make([]*policy.PepActionExpression, 0, len(docs))
	for _, d := range docs {
		assignments := make([]policy.AttributeAssignmentExpression, 0, len(d.Assignments))
		for _, a := range d.Assignments {
			expr, err := b.Factory.CompileCondition(a.Expression)
			if err != nil {
				return nil, fmt.Errorf("assignment %q: %w", a.AttributeID, err)
			}
			assignments = append(assignments, policy.AttributeAssignmentExpression{
				AttributeID: a.AttributeID,
				Category:    categoryByName[a.Category],
				Issuer:      a.Issuer,
				Expression:  expr,
			})
		}
		out = append(out, &policy.PepActionExpression{
			ID:          d.ID,
			FulfillOn:   effect,
			IsMandatory: isObligation,
			Assignments: assignments,
		})
	}
	return out, nil
}

func (b *Builder) buildRef(doc PolicyRefDoc) (policy.Child, policy.PolicyRefsMetadata, error) {
	kind, err := elementKind(doc.Kind)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	constraints := policy.PolicyVersionPatterns{
		Exact:    policy.VersionPattern{Pattern: doc.Exact},
		Earliest: policy.VersionPattern{Pattern: doc.Earliest},
		Latest:   policy.VersionPattern{Pattern: doc.Latest},
	}
	var provider policy.PolicyProvider
	if doc.Dynamic {
		provider = b.DynamicRefs
	} else {
		provider = b.StaticRefs
	}
	ref, err := policy.NewPolicyRefEvaluator(b.GoContext, kind, doc.ID, constraints, provider, b.MaxChainDepth)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	meta, _ := ref.GetPolicyRefsMetadata()
	if doc.Dynamic {
		meta = policy.PolicyRefsMetadata{LongestPolicyRefChain: []string{doc.ID}}
	}
	return ref, meta, nil
}
