package policy

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// EvaluationContext is the read-only view of one access request: the
// categorized attribute bags a Target, Match, or AttributeDesignator reads
// from. It is built once by the caller (from a decoded request) and shared,
// unmodified, across every evaluator touched while answering that request.
type EvaluationContext struct {
	attributes map[AttributeGUID]Bag
}

// NewEvaluationContext builds an EvaluationContext from a set of resolved
// attribute bags.
func NewEvaluationContext(attrs map[AttributeGUID]Bag) EvaluationContext {
	cp := make(map[AttributeGUID]Bag, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	return EvaluationContext{attributes: cp}
}

// All returns every attribute bag in the context, keyed by AttributeGUID.
// Used by expression-factory implementations that build a bulk activation
// (e.g. the CEL adapter) rather than looking attributes up one at a time.
func (e EvaluationContext) All() map[AttributeGUID]Bag {
	cp := make(map[AttributeGUID]Bag, len(e.attributes))
	for k, v := range e.attributes {
		cp[k] = v
	}
	return cp
}

// GetAttribute looks up the bag for guid, ignoring Issuer when guid.Issuer
// is empty (matches any issuer) and otherwise requiring an exact match.
func (e EvaluationContext) GetAttribute(guid AttributeGUID) (Bag, bool) {
	if guid.Issuer != "" {
		b, ok := e.attributes[guid]
		return b, ok
	}
	for k, v := range e.attributes {
		if k.Category == guid.Category && k.AttributeID == guid.AttributeID {
			return v, true
		}
	}
	return Bag{}, false
}

// memoSlots holds the two cached DecisionResults a TopLevelPolicyElementEvaluator
// may be evaluated under within a single request: with and without its own
// Target re-checked (spec.md §4.4's two-slot memo).
type memoSlots struct {
	withTarget    *DecisionResult
	withoutTarget *DecisionResult
}

// dynamicRefEntry caches one dynamic PolicyIdReference/PolicySetIdReference
// resolution for the lifetime of a single request.
type dynamicRefEntry struct {
	evaluator Child
	meta      PolicyRefsMetadata
	err       error
}

// RequestContext is the mutable per-request evaluation state: the
// read-only EvaluationContext, the memoization cache keyed per policy
// element, the dynamic-reference resolution cache, the current
// PolicySet-reference chain (for cycle/depth detection), the live local
// VariableDefinition bindings, and a cooperative cancellation flag.
//
// A RequestContext is not safe for concurrent use — it is scoped to exactly
// one Evaluate call tree.
type RequestContext struct {
	evalCtx       EvaluationContext
	goCtx         context.Context
	maxChainDepth int

	memo        map[uint64]*memoSlots
	dynamicRefs map[uint64]*dynamicRefEntry
	chain       []string
	variables   map[string]Bag

	memoHits   int
	memoMisses int

	cancelled atomic.Bool
}

// NewRequestContext creates a RequestContext bound to goCtx and evalCtx.
// maxChainDepth bounds how deep a PolicySet reference chain may grow before
// resolution fails with a processing error (spec.md §4.5).
func NewRequestContext(goCtx context.Context, evalCtx EvaluationContext, maxChainDepth int) *RequestContext {
	return &RequestContext{
		evalCtx:       evalCtx,
		goCtx:         goCtx,
		maxChainDepth: maxChainDepth,
		memo:          make(map[uint64]*memoSlots),
		dynamicRefs:   make(map[uint64]*dynamicRefEntry),
		variables:     make(map[string]Bag),
	}
}

// EvaluationContext returns the request's read-only attribute view.
func (c *RequestContext) EvaluationContext() EvaluationContext {
	return c.evalCtx
}

// GoContext returns the context.Context carrying the request deadline, used
// by the expression layer to bound condition evaluation.
func (c *RequestContext) GoContext() context.Context {
	return c.goCtx
}

// Cancel marks the request cancelled. Evaluators consult Cancelled() at
// natural recursion points (before each child an iterating combining
// algorithm evaluates, and before a Policy/PolicySet runs its combining
// algorithm) so a long combining-algorithm fan-out can bail out promptly.
func (c *RequestContext) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called or the bound
// context.Context has been cancelled.
func (c *RequestContext) Cancelled() bool {
	if c.cancelled.Load() {
		return true
	}
	if c.goCtx == nil {
		return false
	}
	select {
	case <-c.goCtx.Done():
		return true
	default:
		return false
	}
}

// CacheKey derives the memo/dynamic-ref cache key for a PrimaryPolicyMetadata,
// grounded on the teacher's xxhash-based cache-key derivation
// (internal/service/policy_service.go's computeCacheKey).
func CacheKey(m PrimaryPolicyMetadata) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(m.Kind.String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(m.ID)
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(m.Version.String())
	return d.Sum64()
}

// Memo returns the cached DecisionResult for key under the withTarget slot,
// if one has been stored.
func (c *RequestContext) Memo(key uint64, withTarget bool) (DecisionResult, bool) {
	slots, ok := c.memo[key]
	if !ok {
		c.memoMisses++
		return DecisionResult{}, false
	}
	var dr *DecisionResult
	if withTarget {
		dr = slots.withTarget
	} else {
		dr = slots.withoutTarget
	}
	if dr == nil {
		c.memoMisses++
		return DecisionResult{}, false
	}
	c.memoHits++
	return *dr, true
}

// MemoStats reports the number of memo hits and misses accumulated so far
// this request. Used by the orchestration service to report
// metrics.CacheHitsTotal/CacheMissesTotal after Evaluate returns.
func (c *RequestContext) MemoStats() (hits, misses int) {
	return c.memoHits, c.memoMisses
}

// StoreMemo records dr for key under the withTarget slot. Storing into an
// already-populated slot is a programmer error: it means the same element
// was entered twice, under the same skipTarget flag, within one evaluation
// tree, which the recursion-depth and reference-chain checks in this
// package are meant to make impossible.
func (c *RequestContext) StoreMemo(key uint64, withTarget bool, dr DecisionResult) {
	slots, ok := c.memo[key]
	if !ok {
		slots = &memoSlots{}
		c.memo[key] = slots
	}
	if withTarget {
		if slots.withTarget != nil {
			panic(fmt.Sprintf("policy: memo slot (withTarget) already set for cache key %d", key))
		}
		slots.withTarget = &dr
		return
	}
	if slots.withoutTarget != nil {
		panic(fmt.Sprintf("policy: memo slot (withoutTarget) already set for cache key %d", key))
	}
	slots.withoutTarget = &dr
}

// DynamicRef returns the cached resolution for a dynamic reference key, if
// one was stored earlier in this request.
func (c *RequestContext) DynamicRef(key uint64) (Child, PolicyRefsMetadata, error, bool) {
	e, ok := c.dynamicRefs[key]
	if !ok {
		return nil, PolicyRefsMetadata{}, nil, false
	}
	return e.evaluator, e.meta, e.err, true
}

// StoreDynamicRef caches a dynamic reference resolution (success or
// failure) for the rest of this request.
func (c *RequestContext) StoreDynamicRef(key uint64, evaluator Child, meta PolicyRefsMetadata, err error) {
	c.dynamicRefs[key] = &dynamicRefEntry{evaluator: evaluator, meta: meta, err: err}
}

// Chain returns the current PolicySet-reference chain: the IDs of
// PolicySets dynamically resolved so far on the path from the request root
// down to the current point.
func (c *RequestContext) Chain() []string {
	return append([]string(nil), c.chain...)
}

// MaxChainDepth returns the configured maximum reference-chain length.
func (c *RequestContext) MaxChainDepth() int {
	return c.maxChainDepth
}

// ExtendChain installs newChain, the already-joined chain, as the current
// request chain for the duration of fn, restoring the previous chain afterward regardless of how fn
// returns. PolicyRefEvaluator uses this to scope chain growth to the
// subtree being resolved.
func (c *RequestContext) ExtendChain(newChain []string, fn func()) {
	prev := c.chain
	c.chain = newChain
	defer func() { c.chain = prev }()
	fn()
}

// SetVariable publishes a VariableDefinition's evaluated value into the
// context, per §4.4 step 3 of the element evaluation contract. Overwriting
// an existing binding for the same ID is a programmer error: variable IDs
// are scoped to one Policy and torn down before the next sibling runs.
func (c *RequestContext) SetVariable(id string, b Bag) {
	if _, exists := c.variables[id]; exists {
		panic(fmt.Sprintf("policy: variable %q already bound in this request", id))
	}
	c.variables[id] = b
}

// GetVariable looks up a currently-live local variable binding.
func (c *RequestContext) GetVariable(id string) (Bag, bool) {
	b, ok := c.variables[id]
	return b, ok
}

// RemoveVariable tears down a variable binding. Safe to call even if the
// binding was never set (e.g. because evaluating its expression failed
// before SetVariable ran) — every exit path from a Policy's evaluation
// calls this unconditionally for each of its VariableDefinitions.
func (c *RequestContext) RemoveVariable(id string) {
	delete(c.variables, id)
}
