package policy

// VariableReferenceExpression is a ready-made Expression an ExpressionFactory
// can return from NewVariableReference: it reads the named binding straight
// out of the RequestContext, where the enclosing Policy's eager variable
// evaluation published it (spec.md §4.4 step 3), rather than re-evaluating
// the VariableDefinition's own Expression on every reference.
type VariableReferenceExpression struct {
	ID string
}

// Evaluate looks up the live binding for v.ID. It is an error to reference
// a variable outside the Policy scope that defines it — the binding simply
// won't be present, since it is torn down before control leaves that scope.
func (v *VariableReferenceExpression) Evaluate(ctx *RequestContext) (Bag, error) {
	b, ok := ctx.GetVariable(v.ID)
	if !ok {
		return Bag{}, ErrUnknownVariable(v.ID)
	}
	return b, nil
}

// publishVariables evaluates each VariableDefinition's Expression in
// declaration order and publishes the result into ctx, stopping at the
// first failure. It returns the list of IDs that were successfully
// published, so the caller can tear down exactly those on the way out.
func publishVariables(ctx *RequestContext, defs []VariableDefinition) ([]string, error) {
	published := make([]string, 0, len(defs))
	for _, d := range defs {
		b, err := d.Expression.Evaluate(ctx)
		if err != nil {
			return published, err
		}
		ctx.SetVariable(d.ID, b)
		published = append(published, d.ID)
	}
	return published, nil
}

// teardownVariables removes every published binding, per spec.md §4.4's
// requirement that local variable assignments are removed from the context
// on every exit path from the Policy that declared them.
func teardownVariables(ctx *RequestContext, published []string) {
	for _, id := range published {
		ctx.RemoveVariable(id)
	}
}
