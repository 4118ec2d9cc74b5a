package yamlpolicy

import (
	"context"
	"testing"

	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/cel"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/dynamicprovider"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/staticprovider"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	factory, err := cel.NewFactory()
	if err != nil {
		t.Fatalf("cel.NewFactory() error = %v", err)
	}
	return &Builder{
		Factory:       factory,
		Algorithms:    policy.DefaultCombiningAlgRegistry(),
		StaticRefs:    staticprovider.New(),
		DynamicRefs:   dynamicprovider.New(),
		MaxChainDepth: 10,
		GoContext:     context.Background(),
	}
}

func adminSubjectDoc() *TargetDoc {
	return &TargetDoc{
		AnyOf: []AnyOfDoc{{
			AllOf: []MatchDoc{{
				Function: cel.FuncStringEqual,
				Value:    "admin",
				Designator: &DesignatorDoc{
					Category:      "subject",
					AttributeID:   "role",
					DataType:      "string",
					MustBePresent: true,
				},
			}},
		}},
	}
}

func evalCtxWithRole(role string) policy.EvaluationContext {
	return policy.NewEvaluationContext(map[policy.AttributeGUID]policy.Bag{
		{Category: policy.CategorySubject, AttributeID: "role"}: policy.SingletonBag(policy.NewAttributeValue(policy.DataTypeString, role)),
	})
}

func TestBuilderBuildsSimplePolicyPermit(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "Policy",
		ID:                 "p1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Target:             adminSubjectDoc(),
		Rules: []RuleDoc{
			{ID: "r1", Effect: "Permit"},
		},
	}

	child, _, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := policy.NewRequestContext(context.Background(), evalCtxWithRole("admin"), 10)
	dr := child.Evaluate(ctx, false)
	if dr.Type != policy.Permit {
		t.Errorf("Evaluate() = %v, want Permit", dr.Type)
	}
}

func TestBuilderBuildsNotApplicableWhenTargetFails(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "Policy",
		ID:                 "p1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Target:             adminSubjectDoc(),
		Rules: []RuleDoc{
			{ID: "r1", Effect: "Permit"},
		},
	}

	child, _, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := policy.NewRequestContext(context.Background(), evalCtxWithRole("guest"), 10)
	dr := child.Evaluate(ctx, false)
	if dr.Type != policy.NotApplicable {
		t.Errorf("Evaluate() = %v, want NotApplicable", dr.Type)
	}
}

func TestBuilderBuildsRuleWithConditionAndObligation(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "Policy",
		ID:                 "p1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Rules: []RuleDoc{
			{
				ID:        "r1",
				Effect:    "Permit",
				Condition: `subject.role == "admin"`,
				Obligations: []PepActionDoc{{
					ID: "notify",
					Assignments: []AssignmentDoc{{
						AttributeID: "message",
						Expression:  `"granted"`,
					}},
				}},
			},
		},
	}

	child, _, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := policy.NewRequestContext(context.Background(), evalCtxWithRole("admin"), 10)
	dr := child.Evaluate(ctx, false)
	if dr.Type != policy.Permit {
		t.Fatalf("Evaluate() = %v, want Permit", dr.Type)
	}
	found := false
	for _, a := range dr.PepActions {
		if a.ID == "notify" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected notify obligation among PepActions, got %+v", dr.PepActions)
	}
}

func TestBuilderBuildsPolicySetWithDenyOverrides(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "PolicySet",
		ID:                 "ps1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgDenyOverrides,
		Policies: []Document{
			{
				Kind:               "Policy",
				ID:                 "allow",
				Version:             "1.0",
				CombiningAlgorithm: policy.AlgFirstApplicable,
				Rules:              []RuleDoc{{ID: "r1", Effect: "Permit"}},
			},
			{
				Kind:               "Policy",
				ID:                 "deny",
				Version:             "1.0",
				CombiningAlgorithm: policy.AlgFirstApplicable,
				Rules:              []RuleDoc{{ID: "r2", Effect: "Deny"}},
			},
		},
	}

	child, _, err := b.Build(doc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := policy.NewRequestContext(context.Background(), policy.NewEvaluationContext(nil), 10)
	dr := child.Evaluate(ctx, false)
	if dr.Type != policy.Deny {
		t.Errorf("Evaluate() = %v, want Deny (deny-overrides beats the allow policy)", dr.Type)
	}
}

func TestBuilderBuildsStaticPolicyRef(t *testing.T) {
	b := newTestBuilder(t)

	target := Document{
		Kind:               "Policy",
		ID:                 "target-policy",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Rules:              []RuleDoc{{ID: "r1", Effect: "Permit"}},
	}
	if _, _, err := b.Build(target); err != nil {
		t.Fatalf("Build(target) error = %v", err)
	}

	referencing := Document{
		Kind:               "PolicySet",
		ID:                 "ps1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		PolicyRefs: []PolicyRefDoc{
			{Kind: "Policy", ID: "target-policy"},
		},
	}
	child, _, err := b.Build(referencing)
	if err != nil {
		t.Fatalf("Build(referencing) error = %v", err)
	}

	ctx := policy.NewRequestContext(context.Background(), policy.NewEvaluationContext(nil), 10)
	dr := child.Evaluate(ctx, false)
	if dr.Type != policy.Permit {
		t.Errorf("Evaluate() = %v, want Permit via static policy reference", dr.Type)
	}
}

func TestBuilderBuildsDynamicPolicyRef(t *testing.T) {
	b := newTestBuilder(t)

	target := Document{
		Kind:               "Policy",
		ID:                 "dyn-policy",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Rules:              []RuleDoc{{ID: "r1", Effect: "Deny"}},
	}
	targetChild, _, err := b.Build(target)
	if err != nil {
		t.Fatalf("Build(target) error = %v", err)
	}
	b.DynamicRefs.Reload([]dynamicprovider.Entry{
		{Kind: policy.PolicyElementKind, ID: "dyn-policy", Version: policy.ParsePolicyVersion("1.0"), Evaluator: targetChild},
	})

	referencing := Document{
		Kind:               "PolicySet",
		ID:                 "ps1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		PolicyRefs: []PolicyRefDoc{
			{Kind: "Policy", ID: "dyn-policy", Dynamic: true},
		},
	}
	child, _, err := b.Build(referencing)
	if err != nil {
		t.Fatalf("Build(referencing) error = %v", err)
	}

	ctx := policy.NewRequestContext(context.Background(), policy.NewEvaluationContext(nil), 10)
	dr := child.Evaluate(ctx, false)
	if dr.Type != policy.Deny {
		t.Errorf("Evaluate() = %v, want Deny via dynamic policy reference", dr.Type)
	}
}

func TestBuilderUnknownCombiningAlgorithm(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{Kind: "Policy", ID: "p1", Version: "1.0", CombiningAlgorithm: "urn:unknown"}
	if _, _, err := b.Build(doc); err == nil {
		t.Error("expected error for unknown combining algorithm")
	}
}

func TestBuilderUnknownElementKind(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{Kind: "Bogus", ID: "p1", Version: "1.0"}
	if _, _, err := b.Build(doc); err == nil {
		t.Error("expected error for unknown element kind")
	}
}

func TestBuilderMatchUnknownCategory(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "Policy",
		ID:                 "p1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Target: &TargetDoc{AnyOf: []AnyOfDoc{{AllOf: []MatchDoc{{
			Function:   cel.FuncStringEqual,
			Value:      "x",
			Designator: &DesignatorDoc{Category: "bogus-category", AttributeID: "a"},
		}}}}},
	}
	if _, _, err := b.Build(doc); err == nil {
		t.Error("expected error for unknown attribute category")
	}
}

func TestBuilderDuplicateVariableIDIsCompileTimeError(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "Policy",
		ID:                 "p1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Variables: []VariableDoc{
			{ID: "v1", Expression: "true"},
			{ID: "v1", Expression: "false"},
		},
	}
	if _, _, err := b.Build(doc); err == nil {
		t.Error("expected error for a variable id declared twice in the same policy scope")
	}
}

func TestBuilderVariablesAreRemovedFromFactoryOnExit(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "Policy",
		ID:                 "p1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Variables:           []VariableDoc{{ID: "v1", Expression: "true"}},
	}
	if _, _, err := b.Build(doc); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := b.Factory.NewVariableReference("v1"); err == nil {
		t.Error("expected v1 to be removed from the factory's namespace once Build returned")
	}
}

func TestBuilderNestedVariableShadowsAndRestoresEnclosing(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "PolicySet",
		ID:                 "set",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Variables:           []VariableDoc{{ID: "v1", Expression: "true"}},
		Policies: []Document{{
			Kind:               "Policy",
			ID:                 "nested",
			Version:             "1.0",
			CombiningAlgorithm: policy.AlgFirstApplicable,
			Variables:           []VariableDoc{{ID: "v1", Expression: "false"}},
		}},
	}
	if _, _, err := b.Build(doc); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := b.Factory.NewVariableReference("v1"); err == nil {
		t.Error("expected v1 to be fully unwound once the outer PolicySet finished building")
	}
}

func TestBuilderMatchUnknownFunction(t *testing.T) {
	b := newTestBuilder(t)
	doc := Document{
		Kind:               "Policy",
		ID:                 "p1",
		Version:             "1.0",
		CombiningAlgorithm: policy.AlgFirstApplicable,
		Target: &TargetDoc{AnyOf: []AnyOfDoc{{AllOf: []MatchDoc{{
			Function:   "urn:unknown-function",
			Value:      "x",
			Designator: &DesignatorDoc{Category: "subject", AttributeID: "a"},
		}}}}},
	}
	if _, _, err := b.Build(doc); err == nil {
		t.Error("expected error for unknown match function")
	}
}
