package policy

// DecisionResult is the full output of evaluating a Policy, PolicySet, or
// policy reference: a Decision plus the set of Policy/PolicySet elements
// that contributed to it (empty when the decision is NotApplicable). Rule
// evaluation produces a bare Decision — rules are never "applicable" in
// this bookkeeping sense.
type DecisionResult struct {
	Decision
	ApplicablePolicies []PrimaryPolicyMetadata
}

// Child is the interface every node a CombiningAlgorithm can combine must
// implement: Rule, TopLevelPolicyElementEvaluator, and PolicyRefEvaluator
// all satisfy it. skipTarget, when true, bypasses the node's own Target
// check (used when a caller — e.g. the only-one-applicable algorithm —
// already established applicability and does not want it re-evaluated or
// double-memoized).
type Child interface {
	Evaluate(ctx *RequestContext, skipTarget bool) DecisionResult
	IsApplicableByTarget(ctx *RequestContext) (bool, error)
}

// Collector accumulates the side effects a CombiningAlgorithm gathers while
// walking its children: fulfilled PEP actions, bucketed by the decision
// type that produced them, and applicable-policy metadata, in encounter
// order.
//
// Bucketing by decision type is required by XACML 3.0 §7.18: a
// combining algorithm's own obligations/advice are only those belonging
// to children whose individual decision equals the algorithm's final
// combined decision. A child evaluated to Permit while the algorithm as
// a whole ends in Deny (e.g. a permit-rule preceding the deny-rule that
// wins under deny-overrides) must not leak its obligations into the
// combined result.
type Collector struct {
	actionsByDecision  map[DecisionType][]PepAction
	ApplicablePolicies []PrimaryPolicyMetadata
}

// Absorb folds one child's DecisionResult into the collector.
func (c *Collector) Absorb(dr DecisionResult) {
	if len(dr.PepActions) > 0 {
		if c.actionsByDecision == nil {
			c.actionsByDecision = make(map[DecisionType][]PepAction)
		}
		c.actionsByDecision[dr.Type] = append(c.actionsByDecision[dr.Type], dr.PepActions...)
	}
	c.ApplicablePolicies = append(c.ApplicablePolicies, dr.ApplicablePolicies...)
}

// Actions returns the PEP actions contributed by children whose own
// decision equals want. Callers select want from the algorithm's final
// combined decision, never a decision type of their own choosing.
func (c *Collector) Actions(want DecisionType) []PepAction {
	return c.actionsByDecision[want]
}
