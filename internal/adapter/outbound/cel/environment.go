// Package cel adapts google/cel-go into the policy package's
// ExpressionFactory and FunctionRegistry interfaces: Rule conditions and
// obligation/advice value expressions are authored as CEL expression text,
// evaluated against the four standard XACML attribute categories exposed
// as CEL map variables, with the teacher's cost/time/nesting safety limits
// carried over unchanged.
package cel

import (
	"net"
	"path/filepath"
	"regexp"

	gocel "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// categoryVariableNames maps a standard XACML attribute category to the CEL
// variable name its attributes are exposed under.
var categoryVariableNames = map[policy.AttributeCategory]string{
	policy.CategorySubject:     "subject",
	policy.CategoryResource:    "resource",
	policy.CategoryAction:      "action",
	policy.CategoryEnvironment: "environment",
}

// newBaseEnvironment builds the CEL environment shared by every compiled
// Condition/value expression: the four category maps, string/set
// extensions, and the custom matching functions.
func newBaseEnvironment() (*gocel.Env, error) {
	return gocel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		gocel.Variable("subject", gocel.MapType(gocel.StringType, gocel.DynType)),
		gocel.Variable("resource", gocel.MapType(gocel.StringType, gocel.DynType)),
		gocel.Variable("action", gocel.MapType(gocel.StringType, gocel.DynType)),
		gocel.Variable("environment", gocel.MapType(gocel.StringType, gocel.DynType)),

		// glob matches value against a filepath.Match-style pattern, the
		// generalized form of the teacher's tool-name glob matcher.
		gocel.Function("glob",
			gocel.Overload("glob_string_string",
				[]*gocel.Type{gocel.StringType, gocel.StringType},
				gocel.BoolType,
				gocel.BinaryBinding(func(pattern, value ref.Val) ref.Val {
					matched, _ := filepath.Match(pattern.Value().(string), value.Value().(string))
					return types.Bool(matched)
				}),
			),
		),

		// in_cidr reports whether an IP-address string falls within a CIDR
		// block, generalized from the teacher's dest_ip_in_cidr.
		gocel.Function("in_cidr",
			gocel.Overload("in_cidr_string_string",
				[]*gocel.Type{gocel.StringType, gocel.StringType},
				gocel.BoolType,
				gocel.BinaryBinding(func(ipVal, cidrVal ref.Val) ref.Val {
					ip := net.ParseIP(ipVal.Value().(string))
					if ip == nil {
						return types.Bool(false)
					}
					_, network, err := net.ParseCIDR(cidrVal.Value().(string))
					if err != nil {
						return types.Bool(false)
					}
					return types.Bool(network.Contains(ip))
				}),
			),
		),

		// regex_match is the CEL-text equivalent of the standard XACML
		// string-regexp-match function, usable inside Conditions as well as
		// through the FunctionRegistry for Match nodes (see functions.go).
		gocel.Function("regex_match",
			gocel.Overload("regex_match_string_string",
				[]*gocel.Type{gocel.StringType, gocel.StringType},
				gocel.BoolType,
				gocel.BinaryBinding(func(pattern, value ref.Val) ref.Val {
					matched, err := regexp.MatchString(pattern.Value().(string), value.Value().(string))
					if err != nil {
						return types.Bool(false)
					}
					return types.Bool(matched)
				}),
			),
		),

		// is_in and at_least_one_member_of are CEL-text equivalents of the
		// standard XACML bag functions (urn:...:function:*-is-in and
		// urn:...:function:at-least-one-member-of), registered as custom
		// functions the same way glob/in_cidr are above rather than through
		// the Match function registry, since Conditions address bags as CEL
		// lists rather than policy.Bag values.
		gocel.Function("is_in",
			gocel.Overload("is_in_dyn_list",
				[]*gocel.Type{gocel.DynType, gocel.ListType(gocel.DynType)},
				gocel.BoolType,
				gocel.BinaryBinding(func(value, list ref.Val) ref.Val {
					return types.Bool(listContains(list, value))
				}),
			),
		),
		gocel.Function("at_least_one_member_of",
			gocel.Overload("at_least_one_member_of_list_list",
				[]*gocel.Type{gocel.ListType(gocel.DynType), gocel.ListType(gocel.DynType)},
				gocel.BoolType,
				gocel.BinaryBinding(func(a, b ref.Val) ref.Val {
					lister, ok := a.(traits.Lister)
					if !ok {
						return types.Bool(false)
					}
					sz := int64(lister.Size().(types.Int))
					for i := int64(0); i < sz; i++ {
						if listContains(b, lister.Get(types.Int(i))) {
							return types.Bool(true)
						}
					}
					return types.Bool(false)
				}),
			),
		),

		// bag is the CEL-text equivalent of the standard XACML bag
		// constructor functions (urn:...:function:*-bag): it collects its
		// arguments into a single list the way a CEL list literal would,
		// but accepts a variable argument count the way XACML's bag
		// functions are defined, one overload per arity actually used by
		// Conditions in practice.
		gocel.Function("bag",
			gocel.Overload("bag_one", []*gocel.Type{gocel.DynType}, gocel.ListType(gocel.DynType),
				gocel.FunctionBinding(bagOf)),
			gocel.Overload("bag_two", []*gocel.Type{gocel.DynType, gocel.DynType}, gocel.ListType(gocel.DynType),
				gocel.FunctionBinding(bagOf)),
			gocel.Overload("bag_three", []*gocel.Type{gocel.DynType, gocel.DynType, gocel.DynType}, gocel.ListType(gocel.DynType),
				gocel.FunctionBinding(bagOf)),
			gocel.Overload("bag_four", []*gocel.Type{gocel.DynType, gocel.DynType, gocel.DynType, gocel.DynType}, gocel.ListType(gocel.DynType),
				gocel.FunctionBinding(bagOf)),
		),
	)
}

// bagOf collects its arguments into a CEL list value, backing every arity
// overload of the bag function above.
func bagOf(args ...ref.Val) ref.Val {
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a
	}
	return types.NewDynamicList(types.DefaultTypeAdapter, vals)
}

// listContains reports whether list (a CEL list value) contains an element
// equal to value.
func listContains(list, value ref.Val) bool {
	lister, ok := list.(traits.Lister)
	if !ok {
		return false
	}
	sz := int64(lister.Size().(types.Int))
	for i := int64(0); i < sz; i++ {
		if lister.Get(types.Int(i)).Equal(value) == types.True {
			return true
		}
	}
	return false
}

// buildActivation converts an EvaluationContext into the four category maps
// a compiled Condition expects. Each attribute ID maps to its first value
// when its bag holds exactly one value, or to a list when it holds more
// than one — matching how CEL text naturally expects to address both
// scalars and collections (e.g. `"admin" in subject.roles`).
func buildActivation(evalCtx policy.EvaluationContext) map[string]any {
	out := map[string]any{
		"subject":     map[string]any{},
		"resource":    map[string]any{},
		"action":      map[string]any{},
		"environment": map[string]any{},
	}
	for guid, bag := range evalCtx.All() {
		varName, ok := categoryVariableNames[guid.Category]
		if !ok {
			continue
		}
		m := out[varName].(map[string]any)
		m[guid.AttributeID] = bagToCELValue(bag)
	}
	return out
}

// bagToCELValue collapses a Bag into the most natural CEL-facing shape: a
// bare scalar for a single value, a list for multiple values, nil for none.
func bagToCELValue(b policy.Bag) any {
	switch len(b.Values) {
	case 0:
		return nil
	case 1:
		return b.Values[0].Value
	default:
		vals := make([]any, len(b.Values))
		for i, v := range b.Values {
			vals[i] = v.Value
		}
		return vals
	}
}
