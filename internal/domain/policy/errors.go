package policy

import "fmt"

// MissingAttributeStatus builds the Status returned when a
// MustBePresent AttributeDesignator/AttributeSelector finds nothing in the
// EvaluationContext.
func MissingAttributeStatus(guid AttributeGUID) Status {
	g := guid
	return Status{
		Code:            StatusMissingAttribute,
		Message:         fmt.Sprintf("missing required attribute %s/%s", guid.Category, guid.AttributeID),
		MissingAttrGUID: &g,
	}
}

// SyntaxErrorStatus wraps a malformed-expression/policy error.
func SyntaxErrorStatus(err error) Status {
	return Status{Code: StatusSyntaxError, Message: err.Error()}
}

// ProcessingErrorStatus wraps an evaluation-time failure: a condition
// timeout, a cost-limit trip, a reference-chain cycle/depth violation, or
// an obligation/advice expression that failed to evaluate.
func ProcessingErrorStatus(err error) Status {
	return Status{Code: StatusProcessingError, Message: err.Error()}
}

// StatusFromError classifies a generic error into a Status, defaulting to
// StatusProcessingError. Expression factories and providers that want a
// specific StatusCode should construct a Status directly instead of
// relying on this fallback.
func StatusFromError(err error) Status {
	if err == nil {
		return OkStatus()
	}
	return ProcessingErrorStatus(err)
}

// ErrReferenceChainCycle indicates a PolicySet reference chain would
// revisit a policy ID already on the current path.
type ErrReferenceChainCycle struct {
	PolicyID string
	Chain    []string
}

func (e *ErrReferenceChainCycle) Error() string {
	return fmt.Sprintf("policy: reference chain cycle detected at %q (chain: %v)", e.PolicyID, e.Chain)
}

// ErrReferenceChainTooDeep indicates a PolicySet reference chain exceeded
// the configured maximum depth.
type ErrReferenceChainTooDeep struct {
	MaxDepth int
	Chain    []string
}

func (e *ErrReferenceChainTooDeep) Error() string {
	return fmt.Sprintf("policy: reference chain exceeds max depth %d (chain: %v)", e.MaxDepth, e.Chain)
}

// ErrPolicyNotFound indicates a PolicyProvider could not resolve a
// referenced Policy/PolicySet ID under the given version constraints.
type ErrPolicyNotFound struct {
	Kind        PolicyKind
	ID          string
	Constraints PolicyVersionPatterns
}

func (e *ErrPolicyNotFound) Error() string {
	return fmt.Sprintf("policy: no %s found for id %q matching version constraints", e.Kind, e.ID)
}

// ErrAmbiguousApplicability indicates the only-one-applicable combining
// algorithm found more than one applicable child.
var ErrAmbiguousApplicability = fmt.Errorf("policy: more than one child applicable under only-one-applicable")

var (
	errCancelled                   = fmt.Errorf("policy: evaluation cancelled")
	errCombinedIndeterminate       = fmt.Errorf("policy: combining algorithm produced Indeterminate from child results")
	errAmbiguousApplicabilityTest  = fmt.Errorf("policy: error while testing child applicability under only-one-applicable")
)
