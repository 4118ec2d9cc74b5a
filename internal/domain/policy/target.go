package policy

// Match is the leaf of a Target: a function ID, a literal AttributeValue,
// and a bag-producing Expression (typically an AttributeDesignator or
// AttributeSelector). It evaluates to true if the function holds between
// the literal and any member of the bag (spec.md §4.1).
type Match struct {
	FunctionID string
	Literal    AttributeValue
	Bag        Expression
	Registry   FunctionRegistry
}

// Evaluate returns true/false, or a non-nil error meaning Indeterminate.
func (m *Match) Evaluate(ctx *RequestContext) (bool, error) {
	fn, ok := m.Registry.MatchFunction(m.FunctionID)
	if !ok {
		return false, ErrUnknownFunction(m.FunctionID)
	}
	bag, err := m.Bag.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return bag.Contains(m.Literal, fn)
}

// AllOf is a conjunction of Matches: true only if every Match is true,
// false as soon as one is false (short-circuiting the rest), and
// Indeterminate if no Match is false but at least one is Indeterminate.
type AllOf struct {
	Matches []*Match
}

// Evaluate implements the conjunction semantics above.
func (a *AllOf) Evaluate(ctx *RequestContext) (bool, error) {
	var firstErr error
	for _, m := range a.Matches {
		ok, err := m.Evaluate(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			return false, nil
		}
	}
	if firstErr != nil {
		return false, firstErr
	}
	return true, nil
}

// AnyOf is a disjunction of AllOf clauses: true as soon as one AllOf is
// true (short-circuiting the rest), false only if every AllOf is false,
// and Indeterminate if no AllOf is true but at least one is Indeterminate.
type AnyOf struct {
	AllOfs []*AllOf
}

// Evaluate implements the disjunction semantics above.
func (a *AnyOf) Evaluate(ctx *RequestContext) (bool, error) {
	var firstErr error
	for _, ao := range a.AllOfs {
		ok, err := ao.Evaluate(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	if firstErr != nil {
		return false, firstErr
	}
	return false, nil
}

// Target is a conjunction of AnyOf clauses, applied to Rule, Policy, and
// PolicySet alike. A Target with no AnyOf clauses always matches (the
// "applies to everything" target).
type Target struct {
	AnyOfs []*AnyOf
}

// Evaluate implements Target matching: AND across AnyOfs, so the first
// false AnyOf short-circuits to false, and an error from any AnyOf that
// isn't overridden by an explicit false propagates as Indeterminate.
func (t *Target) Evaluate(ctx *RequestContext) (bool, error) {
	if t == nil || len(t.AnyOfs) == 0 {
		return true, nil
	}
	var firstErr error
	for _, ao := range t.AnyOfs {
		ok, err := ao.Evaluate(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			return false, nil
		}
	}
	if firstErr != nil {
		return false, firstErr
	}
	return true, nil
}
