package policy

import (
	"context"
	"errors"
	"testing"
)

// fakeProvider is a minimal PolicyProvider stub: static providers resolve
// once at construction via Get, dynamic ones re-resolve (and count calls)
// on every Get.
type fakeProvider struct {
	static    bool
	child     Child
	meta      PolicyRefsMetadata
	err       error
	getCalls  int
	joinErr   error
}

func (p *fakeProvider) Get(_ context.Context, _ PolicyKind, _ string, _ PolicyVersionPatterns, _ []string, _ int) (Child, PolicyRefsMetadata, error) {
	p.getCalls++
	return p.child, p.meta, p.err
}

func (p *fakeProvider) JoinPolicyRefChains(head, tail []string, maxDepth int) ([]string, error) {
	if p.joinErr != nil {
		return nil, p.joinErr
	}
	return DefaultJoinPolicyRefChains(head, tail, maxDepth)
}

func (p *fakeProvider) IsStatic() bool { return p.static }

func TestPolicyRefEvaluatorStaticResolvesOnce(t *testing.T) {
	provider := &fakeProvider{static: true, child: permitChild(), meta: PolicyRefsMetadata{RefPolicies: []PrimaryPolicyMetadata{testMetadata("ref1")}}}
	ref, err := NewPolicyRefEvaluator(context.Background(), PolicyElementKind, "ref1", PolicyVersionPatterns{}, provider, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.getCalls != 1 {
		t.Fatalf("expected static provider resolved once at construction, got %d calls", provider.getCalls)
	}

	dr := ref.Evaluate(newTestCtx(), false)
	if dr.Type != Permit {
		t.Errorf("Evaluate() = %v, want Permit", dr.Type)
	}
	if provider.getCalls != 1 {
		t.Errorf("expected static reference to never re-resolve, got %d calls", provider.getCalls)
	}

	v, ok := ref.GetPolicyVersion()
	if !ok {
		t.Fatal("expected GetPolicyVersion to succeed for static reference")
	}
	if v.String() != "1.0" {
		t.Errorf("GetPolicyVersion() = %v, want 1.0", v)
	}
}

func TestPolicyRefEvaluatorStaticConstructionError(t *testing.T) {
	wantErr := errors.New("cycle at construction")
	provider := &fakeProvider{static: true, err: wantErr}
	_, err := NewPolicyRefEvaluator(context.Background(), PolicyElementKind, "ref1", PolicyVersionPatterns{}, provider, 10)
	if err != wantErr {
		t.Fatalf("expected construction error to surface, got %v", err)
	}
}

func TestPolicyRefEvaluatorDynamicCachesPerRequest(t *testing.T) {
	provider := &fakeProvider{static: false, child: denyChild()}
	ref, err := NewPolicyRefEvaluator(context.Background(), PolicyElementKind, "ref1", PolicyVersionPatterns{}, provider, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.getCalls != 0 {
		t.Fatalf("expected dynamic provider not resolved at construction, got %d calls", provider.getCalls)
	}

	ctx := newTestCtx()
	dr1 := ref.Evaluate(ctx, false)
	dr2 := ref.Evaluate(ctx, false)
	if dr1.Type != Deny || dr2.Type != Deny {
		t.Errorf("Evaluate() = %v, %v, want Deny, Deny", dr1.Type, dr2.Type)
	}
	if provider.getCalls != 1 {
		t.Errorf("expected dynamic resolution cached within one request, got %d calls", provider.getCalls)
	}

	if _, ok := ref.GetPolicyVersion(); ok {
		t.Error("expected GetPolicyVersion to report false for a dynamic reference")
	}
}

func TestPolicyRefEvaluatorDynamicResolutionError(t *testing.T) {
	wantErr := errors.New("not found")
	provider := &fakeProvider{static: false, err: wantErr}
	ref, err := NewPolicyRefEvaluator(context.Background(), PolicyElementKind, "ref1", PolicyVersionPatterns{}, provider, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dr := ref.Evaluate(newTestCtx(), false)
	if dr.Type != Indeterminate || dr.ExtInd != ExtIndDP {
		t.Errorf("Evaluate() = %+v, want Indeterminate{DP}", dr.Decision)
	}
}

func TestPolicyRefEvaluatorPolicySetExtendsChain(t *testing.T) {
	provider := &fakeProvider{
		static: false,
		child:  permitChild(),
		meta:   PolicyRefsMetadata{LongestPolicyRefChain: []string{"nested"}},
	}
	ref, err := NewPolicyRefEvaluator(context.Background(), PolicySetElementKind, "nested", PolicyVersionPatterns{}, provider, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := newTestCtx()
	dr := ref.Evaluate(ctx, false)
	if dr.Type != Permit {
		t.Errorf("Evaluate() = %v, want Permit", dr.Type)
	}
	if len(ctx.Chain()) != 0 {
		t.Errorf("expected chain restored to empty after Evaluate returns, got %v", ctx.Chain())
	}
}

func TestPolicyRefEvaluatorJoinChainCycleIsIndeterminate(t *testing.T) {
	provider := &fakeProvider{
		static:  false,
		child:   permitChild(),
		meta:    PolicyRefsMetadata{LongestPolicyRefChain: []string{"a"}},
		joinErr: &ErrReferenceChainCycle{PolicyID: "a"},
	}
	ref, err := NewPolicyRefEvaluator(context.Background(), PolicySetElementKind, "a", PolicyVersionPatterns{}, provider, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dr := ref.Evaluate(newTestCtx(), false)
	if dr.Type != Indeterminate || dr.ExtInd != ExtIndDP {
		t.Errorf("Evaluate() = %+v, want Indeterminate{DP} on chain cycle", dr.Decision)
	}
}

func TestPolicyRefEvaluatorIsApplicableByTarget(t *testing.T) {
	provider := &fakeProvider{static: true, child: permitChild()}
	ref, err := NewPolicyRefEvaluator(context.Background(), PolicyElementKind, "ref1", PolicyVersionPatterns{}, provider, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, err := ref.IsApplicableByTarget(newTestCtx())
	if err != nil || !ok {
		t.Errorf("IsApplicableByTarget() = %v, %v, want true, nil", ok, err)
	}
}

func TestDefaultJoinPolicyRefChains(t *testing.T) {
	joined, err := DefaultJoinPolicyRefChains([]string{"a"}, []string{"b"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(joined) != 2 {
		t.Errorf("joined = %v, want len 2", joined)
	}

	_, err = DefaultJoinPolicyRefChains([]string{"a"}, []string{"a"}, 10)
	var cycleErr *ErrReferenceChainCycle
	if !errors.As(err, &cycleErr) {
		t.Errorf("expected ErrReferenceChainCycle, got %v", err)
	}

	_, err = DefaultJoinPolicyRefChains([]string{"a", "b"}, []string{"c"}, 2)
	var depthErr *ErrReferenceChainTooDeep
	if !errors.As(err, &depthErr) {
		t.Errorf("expected ErrReferenceChainTooDeep, got %v", err)
	}
}
