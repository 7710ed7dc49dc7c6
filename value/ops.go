package value

import (
	"sync"

	"github.com/OneOfOne/xxhash"
	"github.com/shopspring/decimal"

	"github.com/schmidtdse/josh/units"
)

// tuplePair is the cached (TypesTuple, UnitsTuple) result of a
// make_compatible call, linked bidirectionally to its reversed twin so
// swapped-operand calls hit the same cache entry (§4.2/§9).
type tuplePair struct {
	typesTuple [2]Kind
	unitsTuple [2]*units.Units
	reversed   *tuplePair
}

var tupleCache sync.Map // key -> *tuplePair

func tupleKey(a, b Value) uint64 {
	h := xxhash.New64()
	_, _ = h.WriteString(a.kind.String())
	_, _ = h.WriteString(a.units.String())
	_, _ = h.WriteString(b.kind.String())
	_, _ = h.WriteString(b.units.String())
	return h.Sum64()
}

// internTuple returns the cached tuple pair for (a, b), creating and
// cross-linking it with its reverse on first use.
func internTuple(a, b Value) *tuplePair {
	fwdKey := tupleKey(a, b)
	if v, ok := tupleCache.Load(fwdKey); ok {
		return v.(*tuplePair)
	}
	revKey := tupleKey(b, a)
	fwd := &tuplePair{typesTuple: [2]Kind{a.kind, b.kind}, unitsTuple: [2]*units.Units{a.units, b.units}}
	rev := &tuplePair{typesTuple: [2]Kind{b.kind, a.kind}, unitsTuple: [2]*units.Units{b.units, a.units}}
	fwd.reversed = rev
	rev.reversed = fwd
	tupleCache.Store(fwdKey, fwd)
	if revKey != fwdKey {
		tupleCache.Store(revKey, rev)
	}
	return fwd
}

// Op is a binary operator pair: the scalar op on the typed payload, and
// the corresponding unit operation (§4.2: "(op_type, op_units)").
type Op struct {
	Name    string
	ApplyOp func(a, b float64) float64
	Units   func(a, b *units.Units) *units.Units
	// SameUnitsRequired is true for +/- where operand units must match
	// (after EMPTY-compatibility), false for */÷ which compose units.
	SameUnitsRequired bool
}

var (
	OpAdd = Op{Name: "+", ApplyOp: func(a, b float64) float64 { return a + b }, Units: keepUnits, SameUnitsRequired: true}
	OpSub = Op{Name: "-", ApplyOp: func(a, b float64) float64 { return a - b }, Units: keepUnits, SameUnitsRequired: true}
	OpMul = Op{Name: "*", ApplyOp: func(a, b float64) float64 { return a * b }, Units: units.Multiply}
	OpDiv = Op{Name: "/", ApplyOp: func(a, b float64) float64 { return a / b }, Units: units.Divide}
)

func keepUnits(a, _ *units.Units) *units.Units { return a }

// Apply evaluates op over a and b, widening/unit-checking via
// MakeCompatible and internTuple first (§4.2).
func Apply(op Op, a, b Value) (Value, error) {
	internTuple(a, b) // populate the operand-pair cache regardless of outcome

	if a.kind == KindDistribution || b.kind == KindDistribution {
		return Broadcast(a, b, func(x, y Value) (Value, error) { return Apply(op, x, y) })
	}

	ca, cb, err := MakeCompatible(a, b, op.SameUnitsRequired)
	if err != nil {
		return Value{}, err
	}
	return applyScalar(op, ca, cb)
}

func applyScalar(op Op, a, b Value) (Value, error) {
	fa, err := a.AsFloat64()
	if err != nil {
		return Value{}, err
	}
	fb, err := b.AsFloat64()
	if err != nil {
		return Value{}, err
	}
	result := op.ApplyOp(fa, fb)
	u := op.Units(a.units, b.units)

	if a.kind == KindDecimal && a.useBigDecimal {
		da, _ := a.AsDecimal()
		db, _ := b.AsDecimal()
		var dr decimal.Decimal
		switch op.Name {
		case "+":
			dr = da.Add(db)
		case "-":
			dr = da.Sub(db)
		case "*":
			dr = da.Mul(db)
		case "/":
			dr = da.Div(db)
		default:
			dr = decimal.NewFromFloat(result)
		}
		return DecimalBig(dr, u), nil
	}
	if a.kind == KindInt64 && b.kind == KindInt64 && op.Name != "/" {
		return Int64(int64(result), u), nil
	}
	return DecimalFloat(result, u), nil
}

// Equal reports whether a and b are equal under value-algebra equality:
// same widened type, compatible units, and equal payload. Used by
// cast_unit(v, v.units) == v and similar round-trip checks.
func Equal(a, b Value) (bool, error) {
	ca, cb, err := MakeCompatible(a, b, true)
	if err != nil {
		return false, err
	}
	switch ca.kind {
	case KindBool:
		return ca.b == cb.b, nil
	case KindString:
		return ca.s == cb.s, nil
	case KindEntityRef:
		return ca.ref == cb.ref, nil
	case KindDistribution:
		da, db := ca.Distribution(), cb.Distribution()
		if da.Len() != db.Len() {
			return false, nil
		}
		for i := 0; i < da.Len(); i++ {
			eq, err := Equal(da.At(i), db.At(i))
			if err != nil || !eq {
				return eq, err
			}
		}
		return true, nil
	default:
		fa, err := ca.AsFloat64()
		if err != nil {
			return false, err
		}
		fb, err := cb.AsFloat64()
		if err != nil {
			return false, err
		}
		return fa == fb, nil
	}
}

// IsBetween implements §8's is_between(a,b) boundary law: with a > b the
// predicate is unsatisfiable (probability 0), never an error.
func IsBetween(x, lo, hi float64) bool {
	if lo > hi {
		return false
	}
	return x >= lo && x <= hi
}
