// Package staticprovider implements a policy.PolicyProvider that resolves
// PolicyIdReference/PolicySetIdReference purely and once, at tree
// construction time. It is grounded on the teacher's
// internal/adapter/outbound/memory policy store (a mutex-guarded map with
// copy-on-read semantics), adapted here to hold fully-built evaluator trees
// instead of flat rule records, plus a "currently building" guard that
// turns a static reference cycle into a construction-time error rather
// than a runtime one.
package staticprovider

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

type entry struct {
	version   policy.PolicyVersion
	evaluator policy.Child
	meta      policy.PolicyRefsMetadata
}

// Provider is a static policy.PolicyProvider: every entry is registered
// once, during tree construction, and never changes afterward.
type Provider struct {
	mu       sync.RWMutex
	entries  map[string][]entry
	building map[string]bool
}

// New returns an empty static provider.
func New() *Provider {
	return &Provider{
		entries:  make(map[string][]entry),
		building: make(map[string]bool),
	}
}

func buildKey(kind policy.PolicyKind, id string) string {
	return fmt.Sprintf("%s|%s", kind, id)
}

// BeginBuilding must be called by a tree builder before it starts
// constructing the evaluator for (kind, id), and FinishBuilding after. A
// nested BeginBuilding for the same (kind, id) while it is already being
// built means a static reference cycle, reported here rather than at
// evaluation time.
func (p *Provider) BeginBuilding(kind policy.PolicyKind, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := buildKey(kind, id)
	if p.building[key] {
		return fmt.Errorf("staticprovider: reference cycle detected while building %s", key)
	}
	p.building[key] = true
	return nil
}

// FinishBuilding registers the completed evaluator for (kind, id, version)
// and clears the building guard.
func (p *Provider) FinishBuilding(kind policy.PolicyKind, id string, version policy.PolicyVersion, evaluator policy.Child, meta policy.PolicyRefsMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := buildKey(kind, id)
	delete(p.building, key)
	p.entries[key] = append(p.entries[key], entry{version: version, evaluator: evaluator, meta: meta})
}

// Register is a convenience for leaf elements with no references of their
// own (no cycle risk, so no Begin/FinishBuilding ceremony needed).
func (p *Provider) Register(kind policy.PolicyKind, id string, version policy.PolicyVersion, evaluator policy.Child, meta policy.PolicyRefsMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := buildKey(kind, id)
	p.entries[key] = append(p.entries[key], entry{version: version, evaluator: evaluator, meta: meta})
}

// Get resolves (kind, id) under constraints to the highest matching
// version, breaking ties by declaration order (first registered wins) —
// an implementation choice, not a spec requirement.
func (p *Provider) Get(_ context.Context, kind policy.PolicyKind, id string, constraints policy.PolicyVersionPatterns, _ []string, _ int) (policy.Child, policy.PolicyRefsMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key := buildKey(kind, id)
	if p.building[key] {
		return nil, policy.PolicyRefsMetadata{}, fmt.Errorf("staticprovider: reference cycle detected resolving %s", key)
	}
	candidates := p.entries[key]
	var best *entry
	for i := range candidates {
		c := &candidates[i]
		if !constraints.Matches(c.version) {
			continue
		}
		if best == nil || c.version.Compare(best.version) > 0 {
			best = c
		}
	}
	if best == nil {
		return nil, policy.PolicyRefsMetadata{}, &policy.ErrPolicyNotFound{Kind: kind, ID: id, Constraints: constraints}
	}
	return best.evaluator, best.meta, nil
}

// JoinPolicyRefChains delegates to the shared default implementation; a
// static provider never calls it itself (cycles are caught by
// BeginBuilding), but it must still satisfy policy.PolicyProvider.
func (p *Provider) JoinPolicyRefChains(head, tail []string, maxDepth int) ([]string, error) {
	return policy.DefaultJoinPolicyRefChains(head, tail, maxDepth)
}

// IsStatic always returns true.
func (p *Provider) IsStatic() bool { return true }

var _ policy.PolicyProvider = (*Provider)(nil)
