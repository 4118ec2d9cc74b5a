package demo

import (
	"context"
	"testing"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

func evaluate(t *testing.T, scenario string) policy.DecisionResult {
	t.Helper()
	root, err := BuildRoot(10)
	if err != nil {
		t.Fatalf("BuildRoot() error = %v", err)
	}
	evalCtx, err := SampleRequest(scenario)
	if err != nil {
		t.Fatalf("SampleRequest(%s) error = %v", scenario, err)
	}
	ctx := policy.NewRequestContext(context.Background(), evalCtx, 10)
	return root.Evaluate(ctx, false)
}

func TestBuildRootCompilesEmbeddedPolicy(t *testing.T) {
	if _, err := BuildRoot(10); err != nil {
		t.Fatalf("BuildRoot() error = %v", err)
	}
}

func TestSampleRequestAdminIsPermitted(t *testing.T) {
	dr := evaluate(t, "admin")
	if dr.Type != policy.Permit {
		t.Fatalf("Evaluate(admin) = %v, want Permit", dr.Type)
	}
	found := false
	for _, a := range dr.PepActions {
		if a.ID == "log-admin-access" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected log-admin-access obligation, got %+v", dr.PepActions)
	}
}

func TestSampleRequestDeleteCriticalIsDenied(t *testing.T) {
	dr := evaluate(t, "delete-critical")
	if dr.Type != policy.Deny {
		t.Errorf("Evaluate(delete-critical) = %v, want Deny", dr.Type)
	}
}

func TestSampleRequestPlainFallsThroughToDefaultDeny(t *testing.T) {
	dr := evaluate(t, "plain")
	if dr.Type != policy.Deny {
		t.Errorf("Evaluate(plain) = %v, want Deny (default-deny rule)", dr.Type)
	}
}

func TestSampleRequestUnknownScenario(t *testing.T) {
	if _, err := SampleRequest("bogus"); err == nil {
		t.Error("expected error for unknown sample request name")
	}
}

func TestValidateDocumentAcceptsEmbeddedPolicy(t *testing.T) {
	if err := ValidateDocument(PolicyYAML); err != nil {
		t.Errorf("ValidateDocument(embedded policy) error = %v", err)
	}
}

func TestValidateDocumentRejectsUnknownAlgorithm(t *testing.T) {
	raw := []byte(`
kind: Policy
id: bad
version: "1.0"
combiningAlgorithm: urn:bogus
rules:
  - id: r1
    effect: Permit
`)
	if err := ValidateDocument(raw); err == nil {
		t.Error("expected error for document with unknown combining algorithm")
	}
}
