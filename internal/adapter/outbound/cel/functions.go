package cel

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/policy"
)

// Standard XACML 3.0 match function identifiers this registry implements.
const (
	FuncStringEqual           = "urn:oasis:names:tc:xacml:1.0:function:string-equal"
	FuncStringEqualIgnoreCase = "urn:oasis:names:tc:xacml:3.0:function:string-equal-ignore-case"
	FuncAnyURIEqual           = "urn:oasis:names:tc:xacml:1.0:function:anyURI-equal"
	FuncIntegerEqual          = "urn:oasis:names:tc:xacml:1.0:function:integer-equal"
	FuncBooleanEqual          = "urn:oasis:names:tc:xacml:1.0:function:boolean-equal"
	FuncStringRegexpMatch     = "urn:oasis:names:tc:xacml:1.0:function:string-regexp-match"
	FuncStringGlobMatch       = "urn:oasis:names:tc:xacml:3.0:function:string-glob-match"
)

// registry is the default FunctionRegistry: a fixed set of standard XACML
// match functions implemented directly in Go rather than through CEL, since
// a Match's literal-vs-bag-member test is simple enough not to need an
// expression language of its own (spec.md §4.1 treats the function registry
// as an opaque collaborator; these are the functions this module's factory
// happens to provide).
type registry struct {
	funcs map[string]policy.MatchFunction
}

// NewFunctionRegistry returns a FunctionRegistry implementing the standard
// functions above.
func NewFunctionRegistry() policy.FunctionRegistry {
	r := &registry{funcs: make(map[string]policy.MatchFunction)}
	r.funcs[FuncStringEqual] = stringEqual
	r.funcs[FuncStringEqualIgnoreCase] = stringEqualIgnoreCase
	r.funcs[FuncAnyURIEqual] = stringEqual
	r.funcs[FuncIntegerEqual] = integerEqual
	r.funcs[FuncBooleanEqual] = booleanEqual
	r.funcs[FuncStringRegexpMatch] = stringRegexpMatch
	r.funcs[FuncStringGlobMatch] = stringGlobMatch
	return r
}

func (r *registry) MatchFunction(id string) (policy.MatchFunction, bool) {
	fn, ok := r.funcs[id]
	return fn, ok
}

func stringEqual(literal, candidate policy.AttributeValue) (bool, error) {
	a, ok1 := literal.Value.(string)
	b, ok2 := candidate.Value.(string)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("cel: string-equal requires string operands, got %T and %T", literal.Value, candidate.Value)
	}
	return a == b, nil
}

func stringEqualIgnoreCase(literal, candidate policy.AttributeValue) (bool, error) {
	a, ok1 := literal.Value.(string)
	b, ok2 := candidate.Value.(string)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("cel: string-equal-ignore-case requires string operands, got %T and %T", literal.Value, candidate.Value)
	}
	return strings.EqualFold(a, b), nil
}

func integerEqual(literal, candidate policy.AttributeValue) (bool, error) {
	a, ok1 := toInt64(literal.Value)
	b, ok2 := toInt64(candidate.Value)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("cel: integer-equal requires integer operands, got %T and %T", literal.Value, candidate.Value)
	}
	return a == b, nil
}

func booleanEqual(literal, candidate policy.AttributeValue) (bool, error) {
	a, ok1 := literal.Value.(bool)
	b, ok2 := candidate.Value.(bool)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("cel: boolean-equal requires boolean operands, got %T and %T", literal.Value, candidate.Value)
	}
	return a == b, nil
}

func stringRegexpMatch(literal, candidate policy.AttributeValue) (bool, error) {
	pattern, ok1 := literal.Value.(string)
	value, ok2 := candidate.Value.(string)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("cel: string-regexp-match requires string operands, got %T and %T", literal.Value, candidate.Value)
	}
	return regexp.MatchString(pattern, value)
}

func stringGlobMatch(literal, candidate policy.AttributeValue) (bool, error) {
	pattern, ok1 := literal.Value.(string)
	value, ok2 := candidate.Value.(string)
	if !ok1 || !ok2 {
		return false, fmt.Errorf("cel: string-glob-match requires string operands, got %T and %T", literal.Value, candidate.Value)
	}
	return filepath.Match(pattern, value)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
