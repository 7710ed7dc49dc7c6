package units

import "testing"

func TestEmptyIsDimensionless(t *testing.T) {
	if !EMPTY.IsEmpty() {
		t.Fatal("EMPTY should be dimensionless")
	}
	if COUNT != EMPTY {
		t.Fatal("COUNT must be the same interned object as EMPTY")
	}
}

func TestInterningByCanonicalForm(t *testing.T) {
	a := Of("m")
	b := Of("m")
	if a != b {
		t.Fatal("equal canonical forms must intern to the same object")
	}
	if a != METERS {
		t.Fatal("Of(\"m\") must intern to the pre-interned METERS constant")
	}
}

func TestCompatibility(t *testing.T) {
	m := Of("m")
	s := Of("s")
	if !m.CompatibleWith(m) {
		t.Fatal("a unit must be compatible with itself")
	}
	if m.CompatibleWith(s) {
		t.Fatal("m and s are not compatible")
	}
	if !m.CompatibleWith(EMPTY) || !EMPTY.CompatibleWith(m) {
		t.Fatal("EMPTY is compatible with everything")
	}
}

func TestMultiplyDivideCancel(t *testing.T) {
	m := Of("m")
	s := Of("s")
	mps := Multiply(m, Reverse(s)) // m * (1/s) == m/s
	direct := Of("m/s")
	if mps != direct {
		t.Fatalf("m*(1/s) should intern identically to m/s, got %q vs %q", mps, direct)
	}

	back := Divide(mps, Reverse(s))
	if back != m {
		t.Fatalf("(m/s)/(1/s) should cancel back to m, got %q", back)
	}
}

func TestReverseMultiplyCommutesByIdentity(t *testing.T) {
	a := Of("m")
	b := Of("s")
	ab := Multiply(a, b)
	ba := Multiply(b, a)
	if ab != ba {
		t.Fatal("multiply must be commutative up to canonical form")
	}
	if Reverse(ab) != Multiply(Reverse(a), Reverse(b)) {
		// not a spec requirement, just a consistency sanity check
		t.Fatal("reverse(a*b) should equal reverse(a)*reverse(b)")
	}
	if Reverse(Multiply(a, b)) != Divide(EMPTY, ab) {
		t.Fatalf("reverse(multiply(a,b)) should equal 1/(a*b)")
	}
}

func TestRaiseToPowerIdentities(t *testing.T) {
	m := Of("m")
	if RaiseToPower(m, 1) != m {
		t.Fatal("raise_to_power(u,1) must equal u")
	}
	if RaiseToPower(m, 0) != EMPTY {
		t.Fatal("raise_to_power(u,0) must equal EMPTY")
	}
	m2 := RaiseToPower(m, 2)
	if m2 != Multiply(m, m) {
		t.Fatal("raise_to_power(u,2) must equal u*u")
	}
	inv := RaiseToPower(m, -1)
	if inv != Reverse(m) {
		t.Fatal("raise_to_power(u,-1) must equal reverse(u)")
	}
}

func TestRoundTripParse(t *testing.T) {
	for _, s := range []string{"m", "m/s", "EMPTY"} {
		u := Of(s)
		if u.String() != Of(u.String()).String() {
			t.Fatalf("round trip failed for %q -> %q", s, u.String())
		}
	}
}
