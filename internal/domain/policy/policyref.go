package policy

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// PolicyRefEvaluator is the evaluator for a PolicyIdReference or
// PolicySetIdReference (spec.md §4.5). It delegates to whatever its
// PolicyProvider resolves, re-checking the reference chain for cycles and
// depth on every dynamic resolution — even a cached one — since a dynamic
// provider's answer is not guaranteed stable across requests. A static
// reference is resolved once, with cycle/depth already validated at
// construction time by the static provider, and never re-checks the chain
// at evaluation time.
type PolicyRefEvaluator struct {
	refKind     PolicyKind
	refID       string
	constraints PolicyVersionPatterns
	provider    PolicyProvider
	goCtx       context.Context

	// static resolution, set only when provider.IsStatic().
	static     Child
	staticMeta PolicyRefsMetadata
}

// NewPolicyRefEvaluator builds a reference evaluator. For a static
// provider, resolution happens immediately and any error (including a
// cycle detected while resolving) is returned here rather than deferred to
// evaluation time.
func NewPolicyRefEvaluator(goCtx context.Context, kind PolicyKind, id string, constraints PolicyVersionPatterns, provider PolicyProvider, maxDepth int) (*PolicyRefEvaluator, error) {
	r := &PolicyRefEvaluator{
		refKind:     kind,
		refID:       id,
		constraints: constraints,
		provider:    provider,
		goCtx:       goCtx,
	}
	if provider.IsStatic() {
		child, meta, err := provider.Get(goCtx, kind, id, constraints, nil, maxDepth)
		if err != nil {
			return nil, err
		}
		r.static = child
		r.staticMeta = meta
	}
	return r, nil
}

// refCacheKey derives the per-request dynamic-resolution cache key for
// this reference's identity triple.
func (r *PolicyRefEvaluator) refCacheKey() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(r.refKind.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(r.refID)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(fmt.Sprintf("%v", r.constraints))
	return d.Sum64()
}

// resolve returns the Child to delegate to along with its
// PolicyRefsMetadata, using and populating the request's dynamic-reference
// cache for a dynamic provider.
func (r *PolicyRefEvaluator) resolve(ctx *RequestContext) (Child, PolicyRefsMetadata, error) {
	if r.static != nil {
		return r.static, r.staticMeta, nil
	}
	key := r.refCacheKey()
	if child, meta, err, ok := ctx.DynamicRef(key); ok {
		return child, meta, err
	}
	child, meta, err := r.provider.Get(ctx.GoContext(), r.refKind, r.refID, r.constraints, ctx.Chain(), ctx.MaxChainDepth())
	ctx.StoreDynamicRef(key, child, meta, err)
	return child, meta, err
}

// Evaluate resolves the reference and delegates, extending the request's
// reference chain first when the referenced element is a PolicySet (only
// PolicySets can themselves contain further references in XACML — a
// PolicyIdReference always points to a reference-free leaf Policy).
func (r *PolicyRefEvaluator) Evaluate(ctx *RequestContext, skipTarget bool) DecisionResult {
	child, meta, err := r.resolve(ctx)
	if err != nil {
		return DecisionResult{Decision: IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(err))}
	}

	if r.static != nil || r.refKind != PolicySetElementKind {
		return child.Evaluate(ctx, skipTarget)
	}

	joined, joinErr := r.provider.JoinPolicyRefChains(ctx.Chain(), meta.LongestPolicyRefChain, ctx.MaxChainDepth())
	if joinErr != nil {
		return DecisionResult{Decision: IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(joinErr))}
	}

	var dr DecisionResult
	ctx.ExtendChain(joined, func() {
		dr = child.Evaluate(ctx, skipTarget)
	})
	return dr
}

// IsApplicableByTarget resolves the reference and delegates the Target
// test, without touching the reference chain (applicability testing alone
// does not descend into the referenced element's own children).
func (r *PolicyRefEvaluator) IsApplicableByTarget(ctx *RequestContext) (bool, error) {
	child, _, err := r.resolve(ctx)
	if err != nil {
		return false, err
	}
	return child.IsApplicableByTarget(ctx)
}

// RefPolicyType, RefPolicyID and VersionConstraints expose the reference's
// identity triple, e.g. for building interning keys during tree
// construction or for diagnostics.
func (r *PolicyRefEvaluator) RefPolicyType() PolicyKind                { return r.refKind }
func (r *PolicyRefEvaluator) RefPolicyID() string                      { return r.refID }
func (r *PolicyRefEvaluator) VersionConstraints() PolicyVersionPatterns { return r.constraints }

// GetPolicyVersion returns the resolved version for a static reference. For
// a dynamic reference it returns ok=false: resolution — and therefore the
// concrete version — is only known per request.
func (r *PolicyRefEvaluator) GetPolicyVersion() (PolicyVersion, bool) {
	if r.static == nil {
		return PolicyVersion{}, false
	}
	if len(r.staticMeta.RefPolicies) == 0 {
		return PolicyVersion{}, false
	}
	return r.staticMeta.RefPolicies[0].Version, true
}

// GetPolicyRefsMetadata returns the statically-resolved PolicyRefsMetadata,
// when available.
func (r *PolicyRefEvaluator) GetPolicyRefsMetadata() (PolicyRefsMetadata, bool) {
	if r.static == nil {
		return PolicyRefsMetadata{}, false
	}
	return r.staticMeta, true
}

var _ Child = (*PolicyRefEvaluator)(nil)
