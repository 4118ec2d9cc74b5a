// Package dynamicprovider implements a policy.PolicyProvider that resolves
// PolicyIdReference/PolicySetIdReference against a mutable table, re-read
// on every request, so a policy author can push a new version of a
// referenced Policy/PolicySet without rebuilding anything that references
// it. Grounded on the teacher's internal/adapter/outbound/memory policy
// store: a mutex-guarded map swapped wholesale on Reload, the same
// replace-the-whole-snapshot pattern internal/service/policy_service.go
// uses for its compiled-rule snapshot.
package dynamicprovider

import (
	"context"
	"sync"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// Entry is one registered Policy/PolicySet version available for dynamic
// resolution.
type Entry struct {
	Kind      policy.PolicyKind
	ID        string
	Version   policy.PolicyVersion
	Evaluator policy.Child
	Meta      policy.PolicyRefsMetadata
}

// Provider is a dynamic policy.PolicyProvider: Reload atomically replaces
// the entire resolvable set, and every Get call re-validates the
// reference chain through the caller (PolicyRefEvaluator), since a
// previously-cached resolution may now point at a different version.
type Provider struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// New returns an empty dynamic provider.
func New() *Provider {
	return &Provider{entries: make(map[string][]Entry)}
}

func key(kind policy.PolicyKind, id string) string {
	return kind.String() + "|" + id
}

// Reload atomically replaces the full set of resolvable entries.
func (p *Provider) Reload(entries []Entry) {
	grouped := make(map[string][]Entry, len(entries))
	for _, e := range entries {
		k := key(e.Kind, e.ID)
		grouped[k] = append(grouped[k], e)
	}
	p.mu.Lock()
	p.entries = grouped
	p.mu.Unlock()
}

// Get resolves (kind, id) under constraints to the highest matching
// version currently loaded, breaking ties by registration order within the
// most recent Reload call.
func (p *Provider) Get(_ context.Context, kind policy.PolicyKind, id string, constraints policy.PolicyVersionPatterns, _ []string, _ int) (policy.Child, policy.PolicyRefsMetadata, error) {
	p.mu.RLock()
	candidates := p.entries[key(kind, id)]
	p.mu.RUnlock()

	var best *Entry
	for i := range candidates {
		c := &candidates[i]
		if !constraints.Matches(c.Version) {
			continue
		}
		if best == nil || c.Version.Compare(best.Version) > 0 {
			best = c
		}
	}
	if best == nil {
		return nil, policy.PolicyRefsMetadata{}, &policy.ErrPolicyNotFound{Kind: kind, ID: id, Constraints: constraints}
	}
	return best.Evaluator, best.Meta, nil
}

// JoinPolicyRefChains delegates to the shared default cycle/depth check.
// PolicyRefEvaluator calls this on every resolution, cached or not, since a
// dynamic provider's answer can change between requests.
func (p *Provider) JoinPolicyRefChains(head, tail []string, maxDepth int) ([]string, error) {
	return policy.DefaultJoinPolicyRefChains(head, tail, maxDepth)
}

// IsStatic always returns false.
func (p *Provider) IsStatic() bool { return false }

var _ policy.PolicyProvider = (*Provider)(nil)
