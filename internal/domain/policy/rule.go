package policy

// Rule is the leaf decision-producing element of the policy tree
// (spec.md §4.2): a Target (nil/empty means "applies to everything"), a
// Condition expression (nil means "always true"), the Effect it produces
// when both hold, and the obligation/advice expressions it may fire.
type Rule struct {
	ID                    string
	Effect                Effect
	Target                *Target
	Condition             Expression
	ObligationExpressions []*PepActionExpression
	AdviceExpressions     []*PepActionExpression
}

// Evaluate implements the Rule evaluation contract: Target, then
// Condition, then (on a concrete effect) its own obligations/advice.
// skipTarget is accepted for Child-interface uniformity but unused — rules
// are leaves, never subject to the only-one-applicable pre-check that
// motivates skipping a Target re-evaluation on Policy/PolicySet children.
func (r *Rule) Evaluate(ctx *RequestContext, skipTarget bool) DecisionResult {
	_ = skipTarget
	if matched, err := r.Target.Evaluate(ctx); err != nil {
		return DecisionResult{Decision: IndeterminateDecision(biasForEffect(r.Effect), SyntaxErrorStatus(err))}
	} else if !matched {
		return DecisionResult{Decision: NotApplicableDecision()}
	}

	if r.Condition != nil {
		condBag, err := r.Condition.Evaluate(ctx)
		if err != nil {
			return DecisionResult{Decision: IndeterminateDecision(biasForEffect(r.Effect), ProcessingErrorStatus(err))}
		}
		v, ok := condBag.First()
		if !ok {
			return DecisionResult{Decision: NotApplicableDecision()}
		}
		b, _ := v.Value.(bool)
		if !b {
			return DecisionResult{Decision: NotApplicableDecision()}
		}
	}

	effectDecision := DecisionTypeForEffect(r.Effect)
	exprs := r.ObligationExpressions
	actions, err := EvaluatePepActions(ctx, exprs, r.Effect)
	if err != nil {
		return DecisionResult{Decision: IndeterminateDecision(biasForEffect(r.Effect), ProcessingErrorStatus(err))}
	}
	advice, err := EvaluatePepActions(ctx, r.AdviceExpressions, r.Effect)
	if err != nil {
		return DecisionResult{Decision: IndeterminateDecision(biasForEffect(r.Effect), ProcessingErrorStatus(err))}
	}

	return DecisionResult{Decision: Decision{
		Type:       effectDecision,
		Status:     OkStatus(),
		PepActions: append(actions, advice...),
	}}
}

// IsApplicableByTarget reports whether the Rule's Target matches, ignoring
// its Condition. Used by the only-one-applicable combining algorithm
// (which, per XACML, only applies to Policy/PolicySet children — exposed
// here too for Child-interface completeness).
func (r *Rule) IsApplicableByTarget(ctx *RequestContext) (bool, error) {
	return r.Target.Evaluate(ctx)
}

var _ Child = (*Rule)(nil)
