package policy

import "context"

// PolicyProvider resolves a PolicyIdReference or PolicySetIdReference to a
// concrete evaluator, and joins reference chains for cycle/depth detection
// (spec.md §4.5–§4.6). Two provider styles exist — a static provider
// resolves purely and once at construction time, a dynamic provider
// resolves per request and may change its answer between calls — both
// implement the same interface; PolicyRefEvaluator is told which style it
// is talking to via IsStatic.
type PolicyProvider interface {
	// Get resolves (kind, id) under constraints, returning the evaluator to
	// delegate to plus its PolicyRefsMetadata. chainHead is the reference
	// chain accumulated so far on the path to this reference; a provider
	// resolving a PolicySet reference must fail if joining chainHead with
	// the resolved element's own LongestPolicyRefChain would create a cycle
	// or exceed maxDepth (see JoinPolicyRefChains).
	Get(ctx context.Context, kind PolicyKind, id string, constraints PolicyVersionPatterns, chainHead []string, maxDepth int) (Child, PolicyRefsMetadata, error)

	// JoinPolicyRefChains joins head (the chain so far) with tail (the
	// resolved element's own longest chain), failing if any ID in tail
	// already appears in head (a cycle) or if the joined length exceeds
	// maxDepth. It returns the joined chain on success.
	JoinPolicyRefChains(head, tail []string, maxDepth int) ([]string, error)

	// IsStatic reports whether this provider resolves purely (same inputs
	// always produce the same evaluator, validated once at construction) or
	// dynamically (re-resolved, and re-checked for cycles, on every
	// request).
	IsStatic() bool
}

// DefaultJoinPolicyRefChains implements the cycle/depth check described on
// PolicyProvider.JoinPolicyRefChains; concrete providers can delegate to it
// from their own JoinPolicyRefChains method.
func DefaultJoinPolicyRefChains(head, tail []string, maxDepth int) ([]string, error) {
	seen := make(map[string]bool, len(head))
	for _, id := range head {
		seen[id] = true
	}
	for _, id := range tail {
		if seen[id] {
			return nil, &ErrReferenceChainCycle{PolicyID: id, Chain: append(append([]string(nil), head...), tail...)}
		}
	}
	joined := append(append([]string(nil), head...), tail...)
	if maxDepth > 0 && len(joined) > maxDepth {
		return nil, &ErrReferenceChainTooDeep{MaxDepth: maxDepth, Chain: joined}
	}
	return joined, nil
}
