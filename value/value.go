// Package value implements the simulation core's value algebra (§4.2): a
// tagged union over {Int64, Decimal, Bool, String, EntityRef,
// Distribution}, each carrying a units.Units, plus the widening lattice
// and mixed-unit compatibility rules.
//
// Decimal payloads use github.com/shopspring/decimal in BigDecimal mode
// (adopted from the wider retrieval pack — no full example repo ships a
// decimal library, see DESIGN.md) and float64 otherwise.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package value

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/units"
)

// Kind tags the payload a Value carries.
type Kind int

const (
	KindInt64 Kind = iota
	KindDecimal
	KindBool
	KindString
	KindEntityRef
	KindDistribution
)

func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "Int64"
	case KindDecimal:
		return "Decimal"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindEntityRef:
		return "EntityRef"
	case KindDistribution:
		return "Distribution"
	default:
		return "Unknown"
	}
}

// rootOf places a Kind on the widening lattice: Bool -> Int -> Decimal ->
// String. EntityRef and Distribution each occupy their own root and never
// widen into scalars (§3).
func rootOf(k Kind) int {
	switch k {
	case KindBool:
		return 0
	case KindInt64:
		return 1
	case KindDecimal:
		return 2
	case KindString:
		return 3
	case KindEntityRef:
		return 100
	case KindDistribution:
		return 101
	default:
		return -1
	}
}

// Value is the tagged union. Exactly one of the payload fields is
// meaningful for a given Kind.
type Value struct {
	kind  Kind
	units *units.Units

	i64 int64
	dec decimal.Decimal
	b   bool
	s   string
	ref string // entity reference, opaque outside entity package
	dist *RealizedDistribution

	useBigDecimal bool
	f64           float64 // float64-mode decimal payload
}

func Int64(v int64, u *units.Units) Value   { return Value{kind: KindInt64, i64: v, units: u} }
func Bool(v bool, u *units.Units) Value     { return Value{kind: KindBool, b: v, units: u} }
func String(v string, u *units.Units) Value { return Value{kind: KindString, s: v, units: u} }
func EntityRef(id string, u *units.Units) Value {
	return Value{kind: KindEntityRef, ref: id, units: u}
}

// DecimalBig constructs an arbitrary-precision decimal value.
func DecimalBig(v decimal.Decimal, u *units.Units) Value {
	return Value{kind: KindDecimal, dec: v, units: u, useBigDecimal: true}
}

// DecimalFloat constructs a float64-mode decimal value.
func DecimalFloat(v float64, u *units.Units) Value {
	return Value{kind: KindDecimal, f64: v, units: u}
}

func Dist(d *RealizedDistribution) Value {
	return Value{kind: KindDistribution, dist: d, units: d.Units()}
}

func (v Value) Kind() Kind           { return v.kind }
func (v Value) Units() *units.Units  { return v.units }
func (v Value) Int64() int64         { return v.i64 }
func (v Value) Bool() bool           { return v.b }
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt64:
		return fmt.Sprintf("%d", v.i64)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindDecimal:
		if v.useBigDecimal {
			return v.dec.String()
		}
		return fmt.Sprintf("%g", v.f64)
	case KindEntityRef:
		return v.ref
	default:
		return "<distribution>"
	}
}
func (v Value) EntityRef() string               { return v.ref }
func (v Value) Distribution() *RealizedDistribution { return v.dist }
func (v Value) IsBigDecimal() bool              { return v.useBigDecimal }

// AsFloat64 returns the value widened to float64, for Bool/Int64/Decimal
// kinds only.
func (v Value) AsFloat64() (float64, error) {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindInt64:
		return float64(v.i64), nil
	case KindDecimal:
		if v.useBigDecimal {
			f, _ := v.dec.Float64()
			return f, nil
		}
		return v.f64, nil
	default:
		return 0, cmn.New(cmn.KindTypeMismatch, "cannot widen %s to float64", v.kind)
	}
}

// AsDecimal returns the value widened to an arbitrary-precision decimal.
func (v Value) AsDecimal() (decimal.Decimal, error) {
	switch v.kind {
	case KindBool:
		if v.b {
			return decimal.NewFromInt(1), nil
		}
		return decimal.NewFromInt(0), nil
	case KindInt64:
		return decimal.NewFromInt(v.i64), nil
	case KindDecimal:
		if v.useBigDecimal {
			return v.dec, nil
		}
		return decimal.NewFromFloat(v.f64), nil
	default:
		return decimal.Decimal{}, cmn.New(cmn.KindTypeMismatch, "cannot widen %s to Decimal", v.kind)
	}
}

// Widen casts v to target Kind per the Bool -> Int -> Decimal -> String
// lattice. Widening is one-directional: only "upward" casts are
// performed implicitly by arithmetic; Widen itself allows any forward
// move on the lattice but refuses to narrow or to touch EntityRef/
// Distribution.
func Widen(v Value, target Kind) (Value, error) {
	if v.kind == target {
		return v, nil
	}
	sr, tr := rootOf(v.kind), rootOf(target)
	if sr < 0 || tr < 0 || sr >= 100 || tr >= 100 || tr < sr {
		return Value{}, cmn.New(cmn.KindTypeMismatch, "cannot widen %s to %s", v.kind, target)
	}
	switch target {
	case KindInt64:
		if v.kind == KindBool {
			n := int64(0)
			if v.b {
				n = 1
			}
			return Int64(n, v.units), nil
		}
	case KindDecimal:
		f, err := v.AsFloat64()
		if err != nil {
			return Value{}, err
		}
		return DecimalFloat(f, v.units), nil
	case KindString:
		return String(v.String(), v.units), nil
	}
	return Value{}, cmn.New(cmn.KindTypeMismatch, "no widening path from %s to %s", v.kind, target)
}

// CastUnit implements §4.1's cast_unit: returns v re-tagged with target
// units if compatible, else UnitMismatch. cast_unit(v, v.units) == v (§8).
// When v's units and target differ but share a dimension (e.g. cm -> m),
// the numeric payload is rescaled by units.ScaleFactor rather than just
// re-tagged, so e.g. cast_unit(100 cm, m) == 1 m, not 100 (mistagged as m).
func CastUnit(v Value, target *units.Units) (Value, error) {
	if !v.units.CompatibleWith(target) {
		return Value{}, cmn.New(cmn.KindUnitMismatch, "cannot cast %s to %s", v.units, target)
	}
	factor := units.ScaleFactor(v.units, target)
	if factor == 1 {
		out := v
		out.units = target
		return out, nil
	}
	switch v.kind {
	case KindInt64:
		scaled := float64(v.i64) * factor
		if rounded := int64(scaled); float64(rounded) == scaled {
			return Int64(rounded, target), nil
		}
		return DecimalFloat(scaled, target), nil
	case KindDecimal:
		if v.useBigDecimal {
			return DecimalBig(v.dec.Mul(decimal.NewFromFloat(factor)), target), nil
		}
		return DecimalFloat(v.f64*factor, target), nil
	default:
		// Bool/String/EntityRef/Distribution carry no scaled numeric
		// payload to convert; re-tag as before.
		out := v
		out.units = target
		return out, nil
	}
}

// MakeCompatible implements §4.2's make_compatible: widen operand types to
// a common root, then enforce unit compatibility (or not, if
// requireSameUnits is false).
func MakeCompatible(a, b Value, requireSameUnits bool) (Value, Value, error) {
	ra, rb := rootOf(a.kind), rootOf(b.kind)
	if ra >= 100 || rb >= 100 {
		if a.kind != b.kind {
			return Value{}, Value{}, cmn.New(cmn.KindIncompatible, "%s and %s do not widen into each other", a.kind, b.kind)
		}
	} else if ra != rb {
		target := a.kind
		if rb > ra {
			target = b.kind
		}
		var err error
		if ra < rootOf(target) {
			a, err = Widen(a, target)
			if err != nil {
				return Value{}, Value{}, cmn.New(cmn.KindIncompatible, "no cast strategy %s -> %s: %v", a.kind, target, err)
			}
		}
		if rb < rootOf(target) {
			b, err = Widen(b, target)
			if err != nil {
				return Value{}, Value{}, cmn.New(cmn.KindIncompatible, "no cast strategy %s -> %s: %v", b.kind, target, err)
			}
		}
	}
	if requireSameUnits {
		if !a.units.CompatibleWith(b.units) {
			return Value{}, Value{}, cmn.New(cmn.KindUnitMismatch, "%s incompatible with %s", a.units, b.units)
		}
		// Same dimension but different scale (e.g. cm vs m): rescale b
		// into a's units so callers can combine the raw numeric payloads
		// directly, per keepUnits' choice of a's units as the result's.
		if a.units != b.units && !a.units.IsEmpty() && !b.units.IsEmpty() {
			var err error
			b, err = CastUnit(b, a.units)
			if err != nil {
				return Value{}, Value{}, err
			}
		}
	}
	return a, b, nil
}
