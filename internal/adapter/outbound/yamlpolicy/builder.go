package yamlpolicy

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/dynamicprovider"
	"github.com/Sentinel-Gate/Sentinelgate/internal/adapter/outbound/staticprovider"
	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

var categoryByName = map[string]policy.AttributeCategory{
	"subject":     policy.CategorySubject,
	"resource":    policy.CategoryResource,
	"action":      policy.CategoryAction,
	"environment": policy.CategoryEnvironment,
}

var dataTypeByName = map[string]policy.DataType{
	"string":   policy.DataTypeString,
	"boolean":  policy.DataTypeBoolean,
	"integer":  policy.DataTypeInteger,
	"double":   policy.DataTypeDouble,
	"dateTime": policy.DataTypeDateTime,
	"date":     policy.DataTypeDate,
	"anyURI":   policy.DataTypeAnyURI,
}

var effectByName = map[string]policy.Effect{
	"Permit": policy.EffectPermit,
	"Deny":   policy.EffectDeny,
}

// Builder turns parsed Document trees into policy.TopLevelPolicyElementEvaluator
// evaluators, wiring in an ExpressionFactory for Conditions/assignments, a
// CombiningAlgRegistry for algorithm lookup, and the static/dynamic
// providers used to resolve PolicyRefDoc entries.
type Builder struct {
	Factory       policy.ExpressionFactory
	Algorithms    *policy.CombiningAlgRegistry
	StaticRefs    *staticprovider.Provider
	DynamicRefs   *dynamicprovider.Provider
	MaxChainDepth int
	GoContext     context.Context
}

// ParseDocument unmarshals a single YAML document into a Document.
func ParseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("yamlpolicy: parsing document: %w", err)
	}
	return doc, nil
}

// Build compiles doc (and, for a PolicySet, every nested Document) into a
// policy.Child, registering every static element it creates with
// b.StaticRefs under its own (kind, id, version) so sibling PolicyRefDocs
// elsewhere in the tree can resolve it.
//
// doc's VariableDefinitions are registered into b.Factory's namespace for
// the duration of this call — visible to this element's own Rules, nested
// Policies/PolicySets, and obligation/advice expressions — and removed
// again before Build returns, restoring whatever an enclosing scope had
// defined for the same id (spec.md §4.7).
func (b *Builder) Build(doc Document) (policy.Child, policy.PolicyRefsMetadata, error) {
	kind, err := elementKind(doc.Kind)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	version := policy.ParsePolicyVersion(doc.Version)
	meta := policy.PrimaryPolicyMetadata{Kind: kind, ID: doc.ID, Version: version}

	if b.StaticRefs != nil {
		if err := b.StaticRefs.BeginBuilding(kind, doc.ID); err != nil {
			return nil, policy.PolicyRefsMetadata{}, err
		}
	}

	target, err := b.buildTarget(doc.Target)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	vars, varScope, err := b.buildVariables(doc.Variables)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	defer varScope.release()
	alg, ok := b.Algorithms.Get(doc.CombiningAlgorithm)
	if !ok {
		return nil, policy.PolicyRefsMetadata{}, fmt.Errorf("yamlpolicy: unknown combining algorithm %q", doc.CombiningAlgorithm)
	}

	var children []policy.Child
	var childMetas []policy.PolicyRefsMetadata

	for _, ruleDoc := range doc.Rules {
		r, err := b.buildRule(ruleDoc)
		if err != nil {
			return nil, policy.PolicyRefsMetadata{}, err
		}
		children = append(children, r)
	}
	for _, nested := range doc.Policies {
		child, childMeta, err := b.Build(nested)
		if err != nil {
			return nil, policy.PolicyRefsMetadata{}, err
		}
		children = append(children, child)
		childMetas = append(childMetas, childMeta)
	}
	for _, refDoc := range doc.PolicyRefs {
		child, childMeta, err := b.buildRef(refDoc)
		if err != nil {
			return nil, policy.PolicyRefsMetadata{}, err
		}
		children = append(children, child)
		childMetas = append(childMetas, childMeta)
	}

	permitObligations, err := b.buildPepActions(doc.PermitObligations, true, policy.EffectPermit)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	denyObligations, err := b.buildPepActions(doc.DenyObligations, true, policy.EffectDeny)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	permitAdvice, err := b.buildPepActions(doc.PermitAdvice, false, policy.EffectPermit)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}
	denyAdvice, err := b.buildPepActions(doc.DenyAdvice, false, policy.EffectDeny)
	if err != nil {
		return nil, policy.PolicyRefsMetadata{}, err
	}

	evaluator := policy.NewTopLevelPolicyElementEvaluator(meta, target, vars, alg, children, permitObligations, denyObligations, permitAdvice, denyAdvice)
	ownMeta := policy.MergeChildRefsMetadata(doc.ID, meta, childMetas)

	if b.StaticRefs != nil {
		b.StaticRefs.FinishBuilding(kind, doc.ID, version, evaluator, ownMeta)
	}
	return evaluator, ownMeta, nil
}

func elementKind(s string) (policy.PolicyKind, error) {
	switch s {
	case "Policy":
		return policy.PolicyElementKind, nil
	case "PolicySet":
		return policy.PolicySetElementKind, nil
	default:
		return 0, fmt.Errorf("yamlpolicy: unknown element kind %q", s)
	}
}

func (b *Builder) buildTarget(doc *TargetDoc) (*policy.Target, error) {
	if doc == nil {
		return &policy.Target{}, nil
	}
	t := &policy.Target{}
	for _, anyOfDoc := range doc.AnyOf {
		allOf := &policy.AllOf{}
		for _, matchDoc := range anyOfDoc.AllOf {
			m, err := b.buildMatch(matchDoc)
			if err != nil {
				return nil, err
			}
			allOf.Matches = append(allOf.Matches, m)
		}
		t.AnyOfs = append(t.AnyOfs, &policy.AnyOf{AllOfs: []*policy.AllOf{allOf}})
	}
	return t, nil
}

func (b *Builder) buildMatch(doc MatchDoc) (*policy.Match, error) {
	if doc.Designator == nil {
		return nil, fmt.Errorf("yamlpolicy: match %q missing designator", doc.Function)
	}
	dt := dataType(doc.Designator.DataType)
	if doc.ValueType != "" {
		dt = dataType(doc.ValueType)
	}
	cat, ok := categoryByName[doc.Designator.Category]
	if !ok {
		return nil, fmt.Errorf("yamlpolicy: unknown attribute category %q", doc.Designator.Category)
	}
	designator := b.Factory.NewAttributeDesignator(cat, doc.Designator.AttributeID, doc.Designator.Issuer, dataType(doc.Designator.DataType), doc.Designator.MustBePresent)
	registry, ok := b.Factory.(interface {
		GetFunction(string) (policy.MatchFunction, error)
	})
	if !ok {
		return nil, fmt.Errorf("yamlpolicy: expression factory does not expose a function registry")
	}
	if _, err := registry.GetFunction(doc.Function); err != nil {
		return nil, err
	}
	return &policy.Match{
		FunctionID: doc.Function,
		Literal:    policy.NewAttributeValue(dt, doc.Value),
		Bag:        designator,
		Registry:   functionRegistryAdapter{factory: b.Factory},
	}, nil
}

// functionRegistryAdapter exposes an ExpressionFactory's GetFunction through
// the policy.FunctionRegistry interface Match expects.
type functionRegistryAdapter struct {
	factory policy.ExpressionFactory
}

func (f functionRegistryAdapter) MatchFunction(id string) (policy.MatchFunction, bool) {
	fn, err := f.factory.GetFunction(id)
	if err != nil {
		return nil, false
	}
	return fn, true
}

func dataType(name string) policy.DataType {
	if dt, ok := dataTypeByName[name]; ok {
		return dt
	}
	return policy.DataTypeString
}
