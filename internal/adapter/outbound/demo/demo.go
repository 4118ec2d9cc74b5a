// Package demo provides a small, fully-wired policy set and sample
// requests for the evaluate/validate-policy CLI commands — not a XACML
// document parser or a policy administration surface (both explicit
// non-goals), just enough fixture to exercise the evaluation core
// end-to-end without a host application.
package demo

import (
	_ "embed"
	"fmt"

	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/cel"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/dynamicprovider"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/staticprovider"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/yamlpolicy"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

//go:embed policy.yaml
var PolicyYAML []byte

// BuildRoot compiles PolicyYAML into a policy.Child ready to Evaluate,
// using a fresh CEL-backed ExpressionFactory and the in-memory static
// provider. maxChainDepth bounds policy-reference resolution.
func BuildRoot(maxChainDepth int) (policy.Child, error) {
	factory, err := cel.NewFactory()
	if err != nil {
		return nil, fmt.Errorf("demo: building expression factory: %w", err)
	}

	builder := &yamlpolicy.Builder{
		Factory:       factory,
		Algorithms:    policy.DefaultCombiningAlgRegistry(),
		StaticRefs:    staticprovider.New(),
		DynamicRefs:   dynamicprovider.New(),
		MaxChainDepth: maxChainDepth,
	}

	doc, err := yamlpolicy.ParseDocument(PolicyYAML)
	if err != nil {
		return nil, err
	}

	root, _, err := builder.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("demo: building policy tree: %w", err)
	}
	return root, nil
}

// ValidateDocument parses and compiles raw without returning a usable
// evaluator — used by the validate-policy command to surface syntax
// errors without requiring a full request to evaluate against.
func ValidateDocument(raw []byte) error {
	factory, err := cel.NewFactory()
	if err != nil {
		return fmt.Errorf("demo: building expression factory: %w", err)
	}
	builder := &yamlpolicy.Builder{
		Factory:       factory,
		Algorithms:    policy.DefaultCombiningAlgRegistry(),
		StaticRefs:    staticprovider.New(),
		DynamicRefs:   dynamicprovider.New(),
		MaxChainDepth: 10,
	}
	doc, err := yamlpolicy.ParseDocument(raw)
	if err != nil {
		return err
	}
	_, _, err = builder.Build(doc)
	return err
}

// SampleRequest builds an EvaluationContext for a named demo scenario:
// "admin" (subject role=admin, action=read), "delete-critical" (subject
// role=user, action=delete on a critical resource), or "plain" (subject
// role=user, action=read — falls through to the catch-all deny rule).
func SampleRequest(name string) (policy.EvaluationContext, error) {
	switch name {
	case "admin":
		return policy.NewEvaluationContext(map[policy.AttributeGUID]policy.Bag{
			{Category: policy.CategorySubject, AttributeID: "role"}: policy.SingletonBag(
				policy.NewAttributeValue(policy.DataTypeString, "admin")),
			{Category: policy.CategoryAction, AttributeID: "operation"}: policy.SingletonBag(
				policy.NewAttributeValue(policy.DataTypeString, "read")),
		}), nil
	case "delete-critical":
		return policy.NewEvaluationContext(map[policy.AttributeGUID]policy.Bag{
			{Category: policy.CategorySubject, AttributeID: "role"}: policy.SingletonBag(
				policy.NewAttributeValue(policy.DataTypeString, "user")),
			{Category: policy.CategoryAction, AttributeID: "operation"}: policy.SingletonBag(
				policy.NewAttributeValue(policy.DataTypeString, "delete")),
			{Category: policy.CategoryResource, AttributeID: "sensitivity"}: policy.SingletonBag(
				policy.NewAttributeValue(policy.DataTypeString, "critical")),
		}), nil
	case "plain":
		return policy.NewEvaluationContext(map[policy.AttributeGUID]policy.Bag{
			{Category: policy.CategorySubject, AttributeID: "role"}: policy.SingletonBag(
				policy.NewAttributeValue(policy.DataTypeString, "user")),
			{Category: policy.CategoryAction, AttributeID: "operation"}: policy.SingletonBag(
				policy.NewAttributeValue(policy.DataTypeString, "read")),
		}), nil
	default:
		return policy.EvaluationContext{}, fmt.Errorf("demo: unknown sample request %q (want admin, delete-critical, or plain)", name)
	}
}
