package policy

// denyOverridesAlg implements the deny-overrides family: Deny beats
// everything; otherwise an Indeterminate{DP} or a mix of Indeterminate{D}
// with a Permit/Indeterminate{P} also collapses to Indeterminate{DP};
// a lone Indeterminate{D} propagates as Indeterminate{D}; then Permit wins
// over a lone Indeterminate{P}; NotApplicable is the empty result
// (spec.md §4.4, XACML 3.0 Appendix C.2).
//
// The ordered-* variant registers under a different ID but uses identical
// logic, since this implementation always evaluates children strictly in
// declaration order regardless of algorithm variant.
type denyOverridesAlg struct{ id string }

func (a denyOverridesAlg) ID() string { return a.id }

func (a denyOverridesAlg) Combine(ctx *RequestContext, children []Child, collector *Collector) Decision {
	var sawDeny, sawIndDP, sawIndD, sawIndP, sawPermit bool
	for _, c := range children {
		if ctx.Cancelled() {
			return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCancelled))
		}
		dr := c.Evaluate(ctx, false)
		collector.Absorb(dr)
		switch dr.Type {
		case Deny:
			sawDeny = true
		case Permit:
			sawPermit = true
		case Indeterminate:
			switch dr.ExtInd {
			case ExtIndDP:
				sawIndDP = true
			case ExtIndD:
				sawIndD = true
			case ExtIndP:
				sawIndP = true
			}
		}
		if sawDeny {
			break
		}
	}
	switch {
	case sawDeny:
		return Decision{Type: Deny, Status: OkStatus()}
	case sawIndDP:
		return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCombinedIndeterminate))
	case sawIndD && (sawIndP || sawPermit):
		return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCombinedIndeterminate))
	case sawIndD:
		return IndeterminateDecision(ExtIndD, ProcessingErrorStatus(errCombinedIndeterminate))
	case sawPermit:
		return Decision{Type: Permit, Status: OkStatus()}
	case sawIndP:
		return IndeterminateDecision(ExtIndP, ProcessingErrorStatus(errCombinedIndeterminate))
	default:
		return NotApplicableDecision()
	}
}

// permitOverridesAlg is the mirror image of denyOverridesAlg with Permit
// and Deny swapped throughout.
type permitOverridesAlg struct{ id string }

func (a permitOverridesAlg) ID() string { return a.id }

func (a permitOverridesAlg) Combine(ctx *RequestContext, children []Child, collector *Collector) Decision {
	var sawPermit, sawIndDP, sawIndP, sawIndD, sawDeny bool
	for _, c := range children {
		if ctx.Cancelled() {
			return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCancelled))
		}
		dr := c.Evaluate(ctx, false)
		collector.Absorb(dr)
		switch dr.Type {
		case Permit:
			sawPermit = true
		case Deny:
			sawDeny = true
		case Indeterminate:
			switch dr.ExtInd {
			case ExtIndDP:
				sawIndDP = true
			case ExtIndP:
				sawIndP = true
			case ExtIndD:
				sawIndD = true
			}
		}
		if sawPermit {
			break
		}
	}
	switch {
	case sawPermit:
		return Decision{Type: Permit, Status: OkStatus()}
	case sawIndDP:
		return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCombinedIndeterminate))
	case sawIndP && (sawIndD || sawDeny):
		return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCombinedIndeterminate))
	case sawIndP:
		return IndeterminateDecision(ExtIndP, ProcessingErrorStatus(errCombinedIndeterminate))
	case sawDeny:
		return Decision{Type: Deny, Status: OkStatus()}
	case sawIndD:
		return IndeterminateDecision(ExtIndD, ProcessingErrorStatus(errCombinedIndeterminate))
	default:
		return NotApplicableDecision()
	}
}

// firstApplicableAlg returns the first child whose decision is not
// NotApplicable, including an Indeterminate one — "applicable" means
// "reached a verdict", not "reached a definite Permit/Deny".
type firstApplicableAlg struct{}

func (firstApplicableAlg) ID() string { return AlgFirstApplicable }

func (firstApplicableAlg) Combine(ctx *RequestContext, children []Child, collector *Collector) Decision {
	for _, c := range children {
		if ctx.Cancelled() {
			return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errCancelled))
		}
		dr := c.Evaluate(ctx, false)
		collector.Absorb(dr)
		if dr.Type != NotApplicable {
			return dr.Decision
		}
	}
	return NotApplicableDecision()
}

// onlyOneApplicableAlg requires exactly one child to be applicable by
// Target; it then evaluates that child with its Target check skipped
// (already established) and returns its decision unchanged. Zero
// applicable children is NotApplicable; more than one, or an error while
// testing applicability, is Indeterminate{DP}. This algorithm only makes
// structural sense over Policy/PolicySet children (spec.md §4.4), though
// nothing here prevents applying it to Rule children too.
type onlyOneApplicableAlg struct{}

func (onlyOneApplicableAlg) ID() string { return AlgOnlyOneApplicable }

func (onlyOneApplicableAlg) Combine(ctx *RequestContext, children []Child, collector *Collector) Decision {
	var match Child
	matchCount := 0
	sawError := false
	for _, c := range children {
		ok, err := c.IsApplicableByTarget(ctx)
		if err != nil {
			sawError = true
			continue
		}
		if ok {
			matchCount++
			match = c
		}
	}
	if sawError {
		return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(errAmbiguousApplicabilityTest))
	}
	switch {
	case matchCount == 0:
		return NotApplicableDecision()
	case matchCount > 1:
		return IndeterminateDecision(ExtIndDP, ProcessingErrorStatus(ErrAmbiguousApplicability))
	default:
		dr := match.Evaluate(ctx, true)
		collector.Absorb(dr)
		return dr.Decision
	}
}

// denyUnlessPermitAlg never produces Indeterminate or NotApplicable: any
// Permit wins, otherwise Deny. This is the XACML 3.0 "deny-biased" default
// algorithm, designed so every combination has a definite answer.
type denyUnlessPermitAlg struct{}

func (denyUnlessPermitAlg) ID() string { return AlgDenyUnlessPermit }

func (denyUnlessPermitAlg) Combine(ctx *RequestContext, children []Child, collector *Collector) Decision {
	for _, c := range children {
		if ctx.Cancelled() {
			return Decision{Type: Deny, Status: OkStatus()}
		}
		dr := c.Evaluate(ctx, false)
		collector.Absorb(dr)
		if dr.Type == Permit {
			return Decision{Type: Permit, Status: OkStatus()}
		}
	}
	return Decision{Type: Deny, Status: OkStatus()}
}

// permitUnlessDenyAlg is the permit-biased mirror of denyUnlessPermitAlg.
type permitUnlessDenyAlg struct{}

func (permitUnlessDenyAlg) ID() string { return AlgPermitUnlessDeny }

func (permitUnlessDenyAlg) Combine(ctx *RequestContext, children []Child, collector *Collector) Decision {
	for _, c := range children {
		if ctx.Cancelled() {
			return Decision{Type: Permit, Status: OkStatus()}
		}
		dr := c.Evaluate(ctx, false)
		collector.Absorb(dr)
		if dr.Type == Deny {
			return Decision{Type: Deny, Status: OkStatus()}
		}
	}
	return Decision{Type: Permit, Status: OkStatus()}
}
