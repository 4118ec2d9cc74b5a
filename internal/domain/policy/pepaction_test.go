package policy

import (
	"errors"
	"testing"
)

func TestPepActionExpressionEvaluate(t *testing.T) {
	p := &PepActionExpression{
		ID:          "log-access",
		FulfillOn:   EffectPermit,
		IsMandatory: true,
		Assignments: []AttributeAssignmentExpression{
			{AttributeID: "message", Category: CategoryAction, Expression: constExpr{bag: strBag("granted")}},
		},
	}
	action, err := p.Evaluate(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action.ID != "log-access" || !action.IsMandatory {
		t.Errorf("action = %+v", action)
	}
	if len(action.Assignments) != 1 || action.Assignments[0].Value.Value != "granted" {
		t.Errorf("Assignments = %+v", action.Assignments)
	}
}

func TestPepActionExpressionEvaluateAbortsOnFirstError(t *testing.T) {
	wantErr := errors.New("assignment failed")
	p := &PepActionExpression{
		ID: "broken",
		Assignments: []AttributeAssignmentExpression{
			{AttributeID: "a", Expression: constExpr{err: wantErr}},
			{AttributeID: "b", Expression: constExpr{bag: strBag("never reached")}},
		},
	}
	_, err := p.Evaluate(nil)
	if err != wantErr {
		t.Errorf("expected first assignment error to propagate, got %v", err)
	}
}

func TestEvaluatePepActionsFiltersByFulfillOn(t *testing.T) {
	exprs := []*PepActionExpression{
		{ID: "on-permit", FulfillOn: EffectPermit},
		{ID: "on-deny", FulfillOn: EffectDeny},
	}
	actions, err := EvaluatePepActions(nil, exprs, EffectPermit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(actions) != 1 || actions[0].ID != "on-permit" {
		t.Errorf("actions = %+v, want only on-permit", actions)
	}
}

func TestEvaluatePepActionsStopsOnError(t *testing.T) {
	wantErr := errors.New("boom")
	exprs := []*PepActionExpression{
		{ID: "bad", FulfillOn: EffectPermit, Assignments: []AttributeAssignmentExpression{
			{AttributeID: "a", Expression: constExpr{err: wantErr}},
		}},
	}
	_, err := EvaluatePepActions(nil, exprs, EffectPermit)
	if err != wantErr {
		t.Errorf("expected error to propagate, got %v", err)
	}
}
