package value

import (
	"testing"

	"github.com/schmidtdse/josh/units"
)

func TestCastUnitIdentity(t *testing.T) {
	v := Int64(5, units.Of("count"))
	out, err := CastUnit(v, v.Units())
	if err != nil {
		t.Fatalf("cast_unit(v, v.units) should never fail: %v", err)
	}
	eq, err := Equal(out, v)
	if err != nil || !eq {
		t.Fatalf("cast_unit(v, v.units) should equal v")
	}
}

func TestCastUnitMismatch(t *testing.T) {
	v := Int64(5, units.Of("m"))
	_, err := CastUnit(v, units.Of("s"))
	if err == nil {
		t.Fatal("expected UnitMismatch casting m to s")
	}
}

func TestWideningLattice(t *testing.T) {
	b := Bool(true, units.EMPTY)
	i, err := Widen(b, KindInt64)
	if err != nil || i.Int64() != 1 {
		t.Fatalf("bool widen to int64 should yield 1, got %v err=%v", i, err)
	}
	d, err := Widen(i, KindDecimal)
	if err != nil {
		t.Fatalf("int widen to decimal failed: %v", err)
	}
	f, _ := d.AsFloat64()
	if f != 1 {
		t.Fatalf("expected 1.0, got %v", f)
	}
}

func TestApplyAddSameUnits(t *testing.T) {
	a := Int64(1, units.Of("count"))
	b := Int64(2, units.Of("count"))
	out, err := Apply(OpAdd, a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Int64() != 3 {
		t.Fatalf("expected 3, got %v", out.Int64())
	}
}

func TestApplyDivideComposesUnits(t *testing.T) {
	m := DecimalFloat(2, units.Of("m"))
	s := DecimalFloat(3, units.Of("s"))
	out, err := Apply(OpDiv, m, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Units().String() != "m/s" {
		t.Fatalf("expected m/s, got %s", out.Units())
	}
}

func TestApplyAddIncompatibleUnitsFails(t *testing.T) {
	m := Int64(1, units.Of("m"))
	s := Int64(1, units.Of("s"))
	_, err := Apply(OpAdd, m, s)
	if err == nil {
		t.Fatal("expected UnitMismatch adding meters to seconds")
	}
}

func TestDistributionBroadcastScalar(t *testing.T) {
	u := units.Of("m")
	dist := Dist(NewDistribution([]Value{
		Int64(1, u), Int64(2, u), Int64(3, u),
	}, u))
	scalar := Int64(1, u)
	out, err := Apply(OpAdd, dist, scalar)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := out.Distribution()
	if d.Len() != 3 || d.At(0).Int64() != 2 || d.At(2).Int64() != 4 {
		t.Fatalf("broadcast add produced wrong distribution: %+v", d.Values())
	}
}

func TestDistributionSizeOneStats(t *testing.T) {
	u := units.Of("count")
	d := NewDistribution([]Value{DecimalFloat(7, u)}, u)
	mean, _ := d.Mean()
	min, _ := d.Min()
	max, _ := d.Max()
	median, _ := d.Median()
	std, _ := d.Std()
	if mean != 7 || min != 7 || max != 7 || median != 7 || std != 0 {
		t.Fatalf("size-1 distribution stats wrong: mean=%v min=%v max=%v median=%v std=%v", mean, min, max, median, std)
	}
}

func TestSliceLengthMismatch(t *testing.T) {
	u := units.Of("count")
	d := NewDistribution([]Value{Int64(1, u), Int64(2, u)}, u)
	_, err := Slice(d, []bool{true})
	if err == nil {
		t.Fatal("expected error on selection/distribution length mismatch")
	}
}

func TestIsBetweenInvertedRangeIsFalse(t *testing.T) {
	if IsBetween(5, 10, 1) {
		t.Fatal("is_between(a,b) with a > b must be false")
	}
}
