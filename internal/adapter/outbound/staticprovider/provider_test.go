package staticprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

type stubChild struct{ id string }

func (s stubChild) Evaluate(_ *policy.RequestContext, _ bool) policy.DecisionResult {
	return policy.DecisionResult{Decision: policy.Decision{Type: policy.Permit, Status: policy.OkStatus()}}
}

func (s stubChild) IsApplicableByTarget(_ *policy.RequestContext) (bool, error) { return true, nil }

func TestProviderRegisterAndGet(t *testing.T) {
	p := New()
	p.Register(policy.PolicyElementKind, "p1", policy.ParsePolicyVersion("1.0"), stubChild{"v1"}, policy.PolicyRefsMetadata{})

	child, _, err := p.Get(context.Background(), policy.PolicyElementKind, "p1", policy.PolicyVersionPatterns{}, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.(stubChild).id != "v1" {
		t.Errorf("Get() = %v, want v1", child)
	}
}

func TestProviderGetNotFound(t *testing.T) {
	p := New()
	_, _, err := p.Get(context.Background(), policy.PolicyElementKind, "missing", policy.PolicyVersionPatterns{}, nil, 10)
	var notFound *policy.ErrPolicyNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrPolicyNotFound, got %v", err)
	}
}

func TestProviderGetPicksHighestMatchingVersion(t *testing.T) {
	p := New()
	p.Register(policy.PolicyElementKind, "p1", policy.ParsePolicyVersion("1.0"), stubChild{"v1.0"}, policy.PolicyRefsMetadata{})
	p.Register(policy.PolicyElementKind, "p1", policy.ParsePolicyVersion("2.0"), stubChild{"v2.0"}, policy.PolicyRefsMetadata{})
	p.Register(policy.PolicyElementKind, "p1", policy.ParsePolicyVersion("1.5"), stubChild{"v1.5"}, policy.PolicyRefsMetadata{})

	child, _, err := p.Get(context.Background(), policy.PolicyElementKind, "p1", policy.PolicyVersionPatterns{}, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.(stubChild).id != "v2.0" {
		t.Errorf("Get() = %v, want v2.0 (highest version)", child)
	}
}

func TestProviderGetHonorsVersionConstraint(t *testing.T) {
	p := New()
	p.Register(policy.PolicyElementKind, "p1", policy.ParsePolicyVersion("1.0"), stubChild{"v1.0"}, policy.PolicyRefsMetadata{})
	p.Register(policy.PolicyElementKind, "p1", policy.ParsePolicyVersion("2.0"), stubChild{"v2.0"}, policy.PolicyRefsMetadata{})

	constraints := policy.PolicyVersionPatterns{Exact: policy.VersionPattern{Pattern: "1.0"}}
	child, _, err := p.Get(context.Background(), policy.PolicyElementKind, "p1", constraints, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.(stubChild).id != "v1.0" {
		t.Errorf("Get() = %v, want v1.0", child)
	}
}

func TestProviderDistinguishesPolicyAndPolicySetKinds(t *testing.T) {
	p := New()
	p.Register(policy.PolicyElementKind, "shared", policy.ParsePolicyVersion("1.0"), stubChild{"policy"}, policy.PolicyRefsMetadata{})
	p.Register(policy.PolicySetElementKind, "shared", policy.ParsePolicyVersion("1.0"), stubChild{"policyset"}, policy.PolicyRefsMetadata{})

	child, _, err := p.Get(context.Background(), policy.PolicyElementKind, "shared", policy.PolicyVersionPatterns{}, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.(stubChild).id != "policy" {
		t.Errorf("Get(PolicyElementKind) = %v, want policy", child)
	}
}

func TestBeginFinishBuildingClearsGuard(t *testing.T) {
	p := New()
	if err := p.BeginBuilding(policy.PolicyElementKind, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.FinishBuilding(policy.PolicyElementKind, "p1", policy.ParsePolicyVersion("1.0"), stubChild{"v1"}, policy.PolicyRefsMetadata{})

	if err := p.BeginBuilding(policy.PolicyElementKind, "p1"); err != nil {
		t.Errorf("expected BeginBuilding to succeed again after FinishBuilding cleared the guard, got %v", err)
	}
}

func TestBeginBuildingDetectsCycle(t *testing.T) {
	p := New()
	if err := p.BeginBuilding(policy.PolicyElementKind, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.BeginBuilding(policy.PolicyElementKind, "p1"); err == nil {
		t.Error("expected cycle error on nested BeginBuilding for the same key")
	}
}

func TestGetDetectsCycleWhileBuilding(t *testing.T) {
	p := New()
	if err := p.BeginBuilding(policy.PolicyElementKind, "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _, err := p.Get(context.Background(), policy.PolicyElementKind, "p1", policy.PolicyVersionPatterns{}, nil, 10)
	if err == nil {
		t.Error("expected cycle error resolving a key still under construction")
	}
}

func TestProviderIsStatic(t *testing.T) {
	if !New().IsStatic() {
		t.Error("IsStatic() = false, want true")
	}
}

func TestProviderJoinPolicyRefChainsDelegatesToDefault(t *testing.T) {
	p := New()
	joined, err := p.JoinPolicyRefChains([]string{"a"}, []string{"b"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(joined) != 2 {
		t.Errorf("JoinPolicyRefChains() = %v, want len 2", joined)
	}
}
