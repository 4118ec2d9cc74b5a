// Package policy contains the core XACML 3.0 policy evaluation engine: the
// tree of immutable evaluators for PolicySet, Policy, Rule, Target, Match,
// obligation/advice expressions, variable definitions, and policy
// references, plus the mutable per-request context they evaluate against.
//
// Parsing of the XACML concrete syntax, policy discovery, the PEP
// integration layer, and the top-level PDP façade are external collaborators
// and are not part of this package; see ExpressionFactory, PolicyProvider,
// and FunctionRegistry for the interfaces this package requires of them.
package policy

// AttributeCategory identifies which bucket of a request an attribute lives
// in (e.g. subject, resource, action, environment). The core treats it as
// an opaque string so callers can use XACML's standard category URNs or
// their own.
type AttributeCategory string

// Standard XACML 3.0 attribute categories.
const (
	CategorySubject     AttributeCategory = "urn:oasis:names:tc:xacml:1.0:subject-category:access-subject"
	CategoryResource    AttributeCategory = "urn:oasis:names:tc:xacml:3.0:attribute-category:resource"
	CategoryAction      AttributeCategory = "urn:oasis:names:tc:xacml:3.0:attribute-category:action"
	CategoryEnvironment AttributeCategory = "urn:oasis:names:tc:xacml:3.0:attribute-category:environment"
)

// DataType identifies the XACML primitive type of an AttributeValue. The
// core does not interpret values beyond routing them to the expression
// layer; DataType is carried for diagnostics and for the function
// registry's own type checking.
type DataType string

// Standard XACML 3.0 data types the core recognizes by name.
const (
	DataTypeString   DataType = "http://www.w3.org/2001/XMLSchema#string"
	DataTypeBoolean  DataType = "http://www.w3.org/2001/XMLSchema#boolean"
	DataTypeInteger  DataType = "http://www.w3.org/2001/XMLSchema#integer"
	DataTypeDouble   DataType = "http://www.w3.org/2001/XMLSchema#double"
	DataTypeDateTime DataType = "http://www.w3.org/2001/XMLSchema#dateTime"
	DataTypeDate     DataType = "http://www.w3.org/2001/XMLSchema#date"
	DataTypeAnyURI   DataType = "http://www.w3.org/2001/XMLSchema#anyURI"
)

// AttributeValue is a single typed value: the atom of the value model.
// Value holds the native Go representation (string, bool, int64, float64,
// time.Time, ...) matching DataType; the core never inspects Value itself,
// it only moves values between designators, bags, and the expression layer.
type AttributeValue struct {
	DataType DataType
	Value    any
}

// NewAttributeValue constructs an AttributeValue, inferring nothing about
// the relationship between dt and v — the caller (expression factory or
// request decoder) is responsible for type consistency.
func NewAttributeValue(dt DataType, v any) AttributeValue {
	return AttributeValue{DataType: dt, Value: v}
}

// AttributeGUID addresses a single attribute within a categorized request:
// a (category, attribute-id, issuer) triple, the unit an AttributeDesignator
// resolves against. MustBePresent governs whether a missing match is a
// silent empty bag or a MissingAttribute error (spec.md §7).
type AttributeGUID struct {
	Category      AttributeCategory
	AttributeID   string
	Issuer        string // empty means "any issuer"
	MustBePresent bool
}

// Bag is a multiset of same-typed AttributeValues — the unit every
// Expression evaluates to, per spec.md §2.1 (scalars are bags of one).
type Bag struct {
	DataType DataType
	Values   []AttributeValue
}

// EmptyBag returns a Bag with no values of the given type.
func EmptyBag(dt DataType) Bag {
	return Bag{DataType: dt}
}

// SingletonBag wraps one value as a bag of one.
func SingletonBag(v AttributeValue) Bag {
	return Bag{DataType: v.DataType, Values: []AttributeValue{v}}
}

// IsEmpty reports whether the bag has no members.
func (b Bag) IsEmpty() bool {
	return len(b.Values) == 0
}

// First returns the first value in the bag, if any.
func (b Bag) First() (AttributeValue, bool) {
	if len(b.Values) == 0 {
		return AttributeValue{}, false
	}
	return b.Values[0], true
}

// Contains reports whether eq(v, candidate) holds for some candidate in the
// bag. eq is supplied by the caller (typically a MatchFunction) since value
// equality is a function-registry concern, not a core one.
func (b Bag) Contains(v AttributeValue, eq func(a, c AttributeValue) (bool, error)) (bool, error) {
	for _, c := range b.Values {
		ok, err := eq(v, c)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
