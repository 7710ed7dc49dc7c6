package value

import (
	"math"
	"sort"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/units"
)

// RealizedDistribution is a finite vector of like-typed, like-unit values
// (§3's Distribution, §4.2's RealizedDistribution).
type RealizedDistribution struct {
	values []Value
	u      *units.Units
}

// NewDistribution builds a RealizedDistribution; all values must share u.
func NewDistribution(values []Value, u *units.Units) *RealizedDistribution {
	return &RealizedDistribution{values: append([]Value(nil), values...), u: u}
}

func (d *RealizedDistribution) Units() *units.Units { return d.u }
func (d *RealizedDistribution) Len() int            { return len(d.values) }
func (d *RealizedDistribution) At(i int) Value      { return d.values[i] }
func (d *RealizedDistribution) Values() []Value      { return append([]Value(nil), d.values...) }

func (d *RealizedDistribution) floats() ([]float64, error) {
	out := make([]float64, len(d.values))
	for i, v := range d.values {
		f, err := v.AsFloat64()
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Mean, Min, Max, Median, Std implement the distribution statistics used
// by the query/metrics layer (C8) and tested directly by §8's boundary
// laws ("distribution of size 1").
func (d *RealizedDistribution) Mean() (float64, error) {
	fs, err := d.floats()
	if err != nil {
		return 0, err
	}
	if len(fs) == 0 {
		return 0, cmn.New(cmn.KindEmptyInput, "mean of empty distribution")
	}
	sum := 0.0
	for _, f := range fs {
		sum += f
	}
	return sum / float64(len(fs)), nil
}

func (d *RealizedDistribution) Min() (float64, error) { return extremum(d, true) }
func (d *RealizedDistribution) Max() (float64, error) { return extremum(d, false) }

func extremum(d *RealizedDistribution, min bool) (float64, error) {
	fs, err := d.floats()
	if err != nil {
		return 0, err
	}
	if len(fs) == 0 {
		return 0, cmn.New(cmn.KindEmptyInput, "extremum of empty distribution")
	}
	best := fs[0]
	for _, f := range fs[1:] {
		if (min && f < best) || (!min && f > best) {
			best = f
		}
	}
	return best, nil
}

func (d *RealizedDistribution) Median() (float64, error) {
	fs, err := d.floats()
	if err != nil {
		return 0, err
	}
	if len(fs) == 0 {
		return 0, cmn.New(cmn.KindEmptyInput, "median of empty distribution")
	}
	sorted := append([]float64(nil), fs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2], nil
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, nil
}

func (d *RealizedDistribution) Std() (float64, error) {
	fs, err := d.floats()
	if err != nil {
		return 0, err
	}
	if len(fs) == 0 {
		return 0, cmn.New(cmn.KindEmptyInput, "std of empty distribution")
	}
	if len(fs) == 1 {
		return 0, nil
	}
	mean, _ := d.Mean()
	var sumSq float64
	for _, f := range fs {
		diff := f - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(fs))), nil
}

// Slice returns the sub-distribution of values whose paired boolean
// selection is true (§4.2); fails when sizes differ.
func Slice(subject *RealizedDistribution, selections []bool) (*RealizedDistribution, error) {
	if subject.Len() != len(selections) {
		return nil, cmn.New(cmn.KindTypeMismatch, "slice: selection length %d != distribution length %d", len(selections), subject.Len())
	}
	out := make([]Value, 0, subject.Len())
	for i, sel := range selections {
		if sel {
			out = append(out, subject.values[i])
		}
	}
	return NewDistribution(out, subject.u), nil
}

// Broadcast applies op element-wise to the distribution, broadcasting a
// scalar operand when one side is not itself a distribution (§4.2).
func Broadcast(a, b Value, op func(a, b Value) (Value, error)) (Value, error) {
	ad, aIsDist := a.kind, false
	bd, bIsDist := b.kind, false
	_ = ad
	_ = bd
	aIsDist = a.kind == KindDistribution
	bIsDist = b.kind == KindDistribution

	switch {
	case aIsDist && bIsDist:
		da, db := a.Distribution(), b.Distribution()
		if da.Len() != db.Len() {
			return Value{}, cmn.New(cmn.KindTypeMismatch, "broadcast: distribution length mismatch %d != %d", da.Len(), db.Len())
		}
		out := make([]Value, da.Len())
		for i := range out {
			v, err := op(da.At(i), db.At(i))
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		var u *units.Units
		if len(out) > 0 {
			u = out[0].Units()
		} else {
			u = da.Units()
		}
		return Dist(NewDistribution(out, u)), nil
	case aIsDist:
		da := a.Distribution()
		out := make([]Value, da.Len())
		for i := range out {
			v, err := op(da.At(i), b)
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		var u *units.Units
		if len(out) > 0 {
			u = out[0].Units()
		} else {
			u = da.Units()
		}
		return Dist(NewDistribution(out, u)), nil
	case bIsDist:
		db := b.Distribution()
		out := make([]Value, db.Len())
		for i := range out {
			v, err := op(a, db.At(i))
			if err != nil {
				return Value{}, err
			}
			out[i] = v
		}
		var u *units.Units
		if len(out) > 0 {
			u = out[0].Units()
		} else {
			u = db.Units()
		}
		return Dist(NewDistribution(out, u)), nil
	default:
		return op(a, b)
	}
}
