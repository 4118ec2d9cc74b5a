package policy

// TopLevelPolicyElementEvaluator evaluates a Policy or PolicySet: Target,
// then local VariableDefinitions, then the combining algorithm over its
// children, then its own obligation/advice expressions bound to whichever
// effect the combining algorithm produced (spec.md §4.4). It is the single
// implementation backing both Policy and PolicySet — the two XACML element
// kinds differ only in their Metadata.Kind and in what their Children are
// (Rules vs. nested Policy/PolicySet/reference evaluators), which this
// type treats identically through the Child interface.
type TopLevelPolicyElementEvaluator struct {
	Metadata  PrimaryPolicyMetadata
	Target    *Target
	Variables []VariableDefinition
	Algorithm CombiningAlgorithm
	Children  []Child

	PermitObligations []*PepActionExpression
	DenyObligations   []*PepActionExpression
	PermitAdvice      []*PepActionExpression
	DenyAdvice        []*PepActionExpression

	cacheKey uint64
}

// NewTopLevelPolicyElementEvaluator constructs an evaluator and derives its
// memoization cache key from its metadata.
func NewTopLevelPolicyElementEvaluator(meta PrimaryPolicyMetadata, target *Target, vars []VariableDefinition, alg CombiningAlgorithm, children []Child, permitObligations, denyObligations, permitAdvice, denyAdvice []*PepActionExpression) *TopLevelPolicyElementEvaluator {
	return &TopLevelPolicyElementEvaluator{
		Metadata:          meta,
		Target:            target,
		Variables:         vars,
		Algorithm:         alg,
		Children:          children,
		PermitObligations: permitObligations,
		DenyObligations:   denyObligations,
		PermitAdvice:      permitAdvice,
		DenyAdvice:        denyAdvice,
		cacheKey:          CacheKey(meta),
	}
}

// Evaluate implements the element evaluation contract of spec.md §4.4:
//
//  1. Check the per-request memo for this element under skipTarget; return
//     the cached DecisionResult if present.
//  2. Unless skipTarget, evaluate Target; NotApplicable short-circuits here,
//     an Indeterminate Target is remembered and merged in step 5.
//  3. Evaluate local VariableDefinitions eagerly, in declaration order,
//     publishing each to the context; tear all of them down on every exit
//     path below.
//  4. Run the combining algorithm over Children with a fresh Collector.
//  5. Merge the combining result with a Target failure from step 2, per
//     the extended-indeterminate table.
//  6. If the merged result is Permit or Deny, evaluate this element's own
//     matching obligation/advice expressions and append them to the
//     Collector's actions for children whose own decision equals the
//     final one (XACML 3.0 §7.18); a failure here collapses the result
//     to Indeterminate with the combining algorithm's own bias. A final
//     result of Indeterminate or NotApplicable carries no obligations at
//     all.
//  7. If the final result is not NotApplicable, add this element's own
//     metadata to the applicable-policy list — except when the final
//     Indeterminate was produced by a local VariableDefinition failure,
//     which spec.md §4.4 step 3 carves out as not applicable.
//  8. Store the result in the memo slot checked in step 1, and return it.
func (p *TopLevelPolicyElementEvaluator) Evaluate(ctx *RequestContext, skipTarget bool) DecisionResult {
	if dr, ok := ctx.Memo(p.cacheKey, skipTarget); ok {
		return dr
	}

	var targetErr error
	if !skipTarget {
		matched, err := p.Target.Evaluate(ctx)
		if err != nil {
			targetErr = err
		} else if !matched {
			dr := DecisionResult{Decision: NotApplicableDecision()}
			ctx.StoreMemo(p.cacheKey, skipTarget, dr)
			return dr
		}
	}

	published, varErr := publishVariables(ctx, p.Variables)
	defer teardownVariables(ctx, published)

	var algDecision Decision
	collector := &Collector{}
	if varErr != nil {
		algDecision = IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(varErr))
	} else if ctx.Cancelled() {
		algDecision = IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCancelled))
	} else {
		algDecision = p.Algorithm.Combine(ctx, p.Children, collector)
	}

	final := mergeTargetIndeterminate(algDecision, targetErr)

	if final.Type == Permit || final.Type == Deny {
		actions, err := p.evaluateOwnActions(ctx, final.Type)
		if err != nil {
			final = IndeterminateDecision(biasFromDecision(algDecision), ProcessingErrorStatus(err))
		} else {
			final.PepActions = append(append([]PepAction{}, collector.Actions(final.Type)...), actions...)
		}
	}

	applicable := append([]PrimaryPolicyMetadata{}, collector.ApplicablePolicies...)
	if final.Type != NotApplicable && varErr == nil {
		applicable = append(applicable, p.Metadata)
	}

	dr := DecisionResult{Decision: final, ApplicablePolicies: applicable}
	ctx.StoreMemo(p.cacheKey, skipTarget, dr)
	return dr
}

// IsApplicableByTarget reports whether this element's Target matches,
// ignoring variables, children, and obligations entirely. Used by the
// only-one-applicable combining algorithm when this element is itself a
// child of another Policy/PolicySet.
func (p *TopLevelPolicyElementEvaluator) IsApplicableByTarget(ctx *RequestContext) (bool, error) {
	return p.Target.Evaluate(ctx)
}

// evaluateOwnActions gathers this element's own obligation/advice
// expressions matching the element's final effect.
func (p *TopLevelPolicyElementEvaluator) evaluateOwnActions(ctx *RequestContext, decided DecisionType) ([]PepAction, error) {
	var obligations, advice []*PepActionExpression
	var effect Effect
	if decided == Permit {
		obligations, advice, effect = p.PermitObligations, p.PermitAdvice, EffectPermit
	} else {
		obligations, advice, effect = p.DenyObligations, p.DenyAdvice, EffectDeny
	}
	ob, err := EvaluatePepActions(ctx, obligations, effect)
	if err != nil {
		return nil, err
	}
	ad, err := EvaluatePepActions(ctx, advice, effect)
	if err != nil {
		return nil, err
	}
	return append(ob, ad...), nil
}

// mergeTargetIndeterminate implements spec.md §4.4 step 5: combine a
// Target evaluation failure with the combining algorithm's own result.
func mergeTargetIndeterminate(algResult Decision, targetErr error) Decision {
	if targetErr == nil {
		return algResult
	}
	status := ProcessingErrorStatus(targetErr)
	switch algResult.Type {
	case NotApplicable:
		return Decision{Type: NotApplicable, Status: status}
	case Permit:
		return IndeterminateDecision(ExtIndP, status)
	case Deny:
		return IndeterminateDecision(ExtIndD, status)
	default: // Indeterminate
		return IndeterminateDecision(algResult.ExtInd, status)
	}
}

// biasFromDecision extracts the extended-indeterminate bias a decision
// implies: its own bias if already Indeterminate, or the bias matching its
// concrete effect otherwise.
func biasFromDecision(d Decision) ExtIndeterminate {
	switch d.Type {
	case Indeterminate:
		return d.ExtInd
	case Deny:
		return ExtIndD
	default:
		return ExtIndP
	}
}

var _ Child = (*TopLevelPolicyElementEvaluator)(nil)
