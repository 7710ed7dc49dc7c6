package handler

import "testing"

type stubScope struct{ vals map[string]interface{} }

func (s stubScope) Resolve(path string) (interface{}, error) { return s.vals[path], nil }

func alwaysTrue(scope Scope) (bool, error)  { return true, nil }
func alwaysFalse(scope Scope) (bool, error) { return false, nil }

func constBody(v interface{}) Body {
	return func(scope Scope) (interface{}, error) { return v, nil }
}

func TestLookupExactStateBeforeWildcard(t *testing.T) {
	r := NewRegistry()
	exact := &HandlerGroup{State: "growing", Attribute: "height", Substep: "step", Handlers: []Handler{{Condition: alwaysTrue, Body: constBody(1)}}}
	wild := &HandlerGroup{State: WildcardState, Attribute: "height", Substep: "step", Handlers: []Handler{{Condition: alwaysTrue, Body: constBody(2)}}}
	if err := r.Register(wild); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(exact); err != nil {
		t.Fatal(err)
	}
	r.Freeze()

	g, ok := r.Lookup("growing", "height", "step")
	if !ok || g != exact {
		t.Fatal("expected exact state match to win over wildcard")
	}
	g2, ok := r.Lookup("dormant", "height", "step")
	if !ok || g2 != wild {
		t.Fatal("expected wildcard fallback when state-specific group is absent")
	}
	_, ok = r.Lookup("dormant", "age", "step")
	if ok {
		t.Fatal("expected miss for unregistered attribute")
	}
}

func TestRegisterAfterFreezeFails(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	err := r.Register(&HandlerGroup{State: "a", Attribute: "b", Substep: "c"})
	if err == nil {
		t.Fatal("expected error registering into a frozen registry")
	}
}

func TestEvaluateFirstTrueConditionWins(t *testing.T) {
	g := &HandlerGroup{
		Handlers: []Handler{
			{Condition: alwaysFalse, Body: constBody("never")},
			{Condition: alwaysTrue, Body: constBody("this one")},
			{Condition: alwaysTrue, Body: constBody("not reached")},
		},
	}
	v, found, err := Evaluate(g, stubScope{})
	if err != nil || !found || v != "this one" {
		t.Fatalf("expected first true condition's body, got v=%v found=%v err=%v", v, found, err)
	}
}

func TestEvaluateNoMatchReturnsNotFound(t *testing.T) {
	g := &HandlerGroup{Handlers: []Handler{{Condition: alwaysFalse, Body: constBody("never")}}}
	_, found, err := Evaluate(g, stubScope{})
	if err != nil || found {
		t.Fatal("expected found=false when every condition is false")
	}
}

func TestCommonHandlersOrderedBySubstep(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&HandlerGroup{State: WildcardState, Attribute: "x", Substep: "step"})
	_ = r.Register(&HandlerGroup{State: WildcardState, Attribute: "x", Substep: "end"})
	_ = r.Register(&HandlerGroup{State: WildcardState, Attribute: "x", Substep: "init"})
	r.Freeze()

	groups := r.CommonHandlers("x")
	if len(groups) != 3 || groups[0].Substep != "end" || groups[1].Substep != "init" || groups[2].Substep != "step" {
		t.Fatalf("expected stable lexical ordering by substep, got %+v", groups)
	}
}
