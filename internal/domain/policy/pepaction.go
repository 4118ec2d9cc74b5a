package policy

// AttributeAssignmentExpression is the unevaluated form of one
// AttributeAssignment: a (AttributeID, Category, Issuer) label plus the
// Expression that produces its value, per spec.md §4.3.
type AttributeAssignmentExpression struct {
	AttributeID string
	Category    AttributeCategory
	Issuer      string
	Expression  Expression
}

// PepActionExpression is the unevaluated form of one obligation or advice:
// an opaque ID, the Effect it fires on (FulfillOn), whether it is
// mandatory (an obligation) or optional (advice), and its assignment
// expressions. A Rule, Policy, or PolicySet evaluates the
// PepActionExpressions whose FulfillOn matches its own resulting Effect.
type PepActionExpression struct {
	ID          string
	FulfillOn   Effect
	IsMandatory bool
	Assignments []AttributeAssignmentExpression
}

// Evaluate resolves every assignment expression into a PepAction. The
// first assignment that fails to evaluate aborts the whole action: a
// partially-resolved obligation is not a meaningful result (spec.md §4.3).
func (p *PepActionExpression) Evaluate(ctx *RequestContext) (PepAction, error) {
	action := PepAction{
		ID:          p.ID,
		IsMandatory: p.IsMandatory,
		Assignments: make([]AttributeAssignment, 0, len(p.Assignments)),
	}
	for _, a := range p.Assignments {
		bag, err := a.Expression.Evaluate(ctx)
		if err != nil {
			return PepAction{}, err
		}
		v, _ := bag.First()
		action.Assignments = append(action.Assignments, AttributeAssignment{
			AttributeID: a.AttributeID,
			Category:    a.Category,
			Issuer:      a.Issuer,
			Value:       v,
		})
	}
	return action, nil
}

// EvaluatePepActions evaluates every PepActionExpression in exprs whose
// FulfillOn matches effect, in declaration order, stopping at the first
// error. This is the shared helper Rule and TopLevelPolicyElementEvaluator
// both use to gather their own obligations/advice once their effect is
// known.
func EvaluatePepActions(ctx *RequestContext, exprs []*PepActionExpression, effect Effect) ([]PepAction, error) {
	var actions []PepAction
	for _, e := range exprs {
		if e.FulfillOn != effect {
			continue
		}
		a, err := e.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}
