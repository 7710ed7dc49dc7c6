// Package units implements the simulation core's units algebra (§4.1):
// construction from canonical strings or numerator/denominator multisets,
// interning so equal canonical forms are the same object, and the
// multiply/divide/raise_to_power/reverse operators.
//
// Grounded on cluster/map.go's Smap/Snode pattern: a small set of shared,
// interned, hash-keyed objects referenced by identity everywhere else in
// the program. Canonical-form hashing uses the teacher's own
// github.com/OneOfOne/xxhash dependency, the same library cluster/map.go
// uses for Snode.idDigest.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package units

import (
	"sort"
	"strings"
	"sync"

	"github.com/OneOfOne/xxhash"
)

// Units is an immutable, interned canonical unit expression: a sorted
// multiset of numerator base-unit symbols over a sorted multiset of
// denominator symbols. Two Units with equal canonical form are the same
// *Units object (see Of/FromMultisets/etc, all of which route through the
// shared intern table).
//
// Alongside the raw symbol canonical form, each Units also carries a
// dimensional canonical form (symbols mapped to their physical dimension,
// e.g. "cm" and "m" both map to "length") and a scale factor relative to
// that dimension's base representative. Compatibility is the dimensional
// form matching (not the raw symbol form); conversion between
// dimensionally-compatible-but-differently-scaled units (cm <-> m) uses
// the ratio of their scale factors — see ScaleFactor.
type Units struct {
	canonical  string
	num        []string
	den        []string
	compatWith compatSet

	dimCanonical string
	scale        float64
}

// compatSet memoizes which other canonical forms this Units is
// operation-compatible with beyond the universal EMPTY rule; in practice
// compatibility reduces to "equal dimensional form, or either is EMPTY,"
// so this is a precomputed bit rather than a map — kept as a struct field
// to match §4.1's "Compatibility is precomputed at interning" instruction.
type compatSet struct {
	isEmpty bool
}

// baseUnitInfo names the physical dimension a base symbol belongs to and
// its scale relative to that dimension's base representative (the symbol
// with scale 1). Symbols absent from this table are treated as their own
// single-member dimension with scale 1, preserving the old
// equal-symbol-or-EMPTY behavior for anything not listed here (e.g. "deg",
// "count", application-defined symbols).
type baseUnitInfo struct {
	dimension string
	scale     float64
}

var baseUnits = map[string]baseUnitInfo{
	"m":  {"length", 1},
	"cm": {"length", 0.01},
	"mm": {"length", 0.001},
	"km": {"length", 1000},
	"s":  {"time", 1},
	"ms": {"time", 0.001},
	"min": {"time", 60},
	"h":   {"time", 3600},
}

func infoFor(symbol string) baseUnitInfo {
	if info, ok := baseUnits[symbol]; ok {
		return info
	}
	return baseUnitInfo{dimension: symbol, scale: 1}
}

// dimensionalForm computes the dimension-canonical form and aggregate
// scale factor for a (num, den) symbol multiset, mirroring
// canonicalForm's sort/cancel shape but over dimensions instead of raw
// symbols (so e.g. "cm/m" cancels to dimensionless with scale 0.01).
func dimensionalForm(num, den []string) (dimCanonical string, scale float64) {
	scale = 1
	dimNum := make([]string, len(num))
	for i, s := range num {
		info := infoFor(s)
		dimNum[i] = info.dimension
		scale *= info.scale
	}
	dimDen := make([]string, len(den))
	for i, s := range den {
		info := infoFor(s)
		dimDen[i] = info.dimension
		scale /= info.scale
	}
	sort.Strings(dimNum)
	sort.Strings(dimDen)
	dimNum, dimDen = cancel(dimNum, dimDen)
	if len(dimNum) == 0 && len(dimDen) == 0 {
		return "EMPTY", scale
	}
	var b strings.Builder
	b.WriteString(strings.Join(dimNum, "*"))
	if len(dimDen) > 0 {
		if len(dimNum) == 0 {
			b.WriteString("1")
		}
		b.WriteString("/")
		b.WriteString(strings.Join(dimDen, "*"))
	}
	return b.String(), scale
}

// ScaleFactor returns the multiplicative factor f such that a value
// numerically expressed in from's units equals (value * f) expressed in
// to's units. Callers must confirm from.CompatibleWith(to) first; if
// either side is EMPTY the factor is 1 (EMPTY carries no dimensional
// information to convert against).
func ScaleFactor(from, to *Units) float64 {
	if from == to || from.IsEmpty() || to.IsEmpty() {
		return 1
	}
	return from.scale / to.scale
}

var (
	internMu sync.Mutex
	intern   sync.Map // canonical string -> *Units
	opCache  sync.Map // opKey -> *Units, for multiply/divide/reverse

	// EMPTY is the dimensionless canonical form. COUNT is a semantic
	// alias for EMPTY per §4.1 ("COUNT (= EMPTY by semantic rule)").
	EMPTY   *Units
	COUNT   *Units
	METERS  *Units
	DEGREES *Units
)

func init() {
	EMPTY = internCanonical("EMPTY", nil, nil)
	COUNT = EMPTY
	METERS = internCanonical("m", []string{"m"}, nil)
	DEGREES = internCanonical("deg", []string{"deg"}, nil)
}

func canonicalForm(num, den []string) (canonical string, sortedNum, sortedDen []string) {
	sortedNum = append([]string(nil), num...)
	sortedDen = append([]string(nil), den...)
	sort.Strings(sortedNum)
	sort.Strings(sortedDen)
	// Cancel common symbols between numerator and denominator multisets
	// so e.g. (m*s)/(s) canonicalizes identically to (m).
	sortedNum, sortedDen = cancel(sortedNum, sortedDen)
	if len(sortedNum) == 0 && len(sortedDen) == 0 {
		return "EMPTY", nil, nil
	}
	var b strings.Builder
	b.WriteString(strings.Join(sortedNum, "*"))
	if len(sortedDen) > 0 {
		if len(sortedNum) == 0 {
			b.WriteString("1")
		}
		b.WriteString("/")
		b.WriteString(strings.Join(sortedDen, "*"))
	}
	return b.String(), sortedNum, sortedDen
}

// cancel removes, pairwise, symbols common to both sorted multisets.
func cancel(num, den []string) ([]string, []string) {
	counts := make(map[string]int, len(den))
	for _, d := range den {
		counts[d]++
	}
	outNum := num[:0:0]
	for _, n := range num {
		if counts[n] > 0 {
			counts[n]--
			continue
		}
		outNum = append(outNum, n)
	}
	outDen := make([]string, 0, len(den))
	remaining := make(map[string]int, len(counts))
	for k, v := range counts {
		if v > 0 {
			remaining[k] = v
		}
	}
	for _, d := range den {
		if remaining[d] > 0 {
			outDen = append(outDen, d)
			remaining[d]--
		}
	}
	sort.Strings(outNum)
	sort.Strings(outDen)
	return outNum, outDen
}

func internCanonical(canonical string, num, den []string) *Units {
	if v, ok := intern.Load(canonical); ok {
		return v.(*Units)
	}
	internMu.Lock()
	defer internMu.Unlock()
	if v, ok := intern.Load(canonical); ok {
		return v.(*Units)
	}
	dimCanonical, scale := dimensionalForm(num, den)
	u := &Units{
		canonical:    canonical,
		num:          num,
		den:          den,
		compatWith:   compatSet{isEmpty: canonical == "EMPTY"},
		dimCanonical: dimCanonical,
		scale:        scale,
	}
	intern.Store(canonical, u)
	return u
}

// Of constructs (or retrieves the interned) Units from a canonical string
// such as "m", "m/s", or "count".
func Of(s string) *Units {
	if s == "" || s == "count" || s == "EMPTY" {
		return EMPTY
	}
	num, den := parse(s)
	canonical, sn, sd := canonicalForm(num, den)
	return internCanonical(canonical, sn, sd)
}

func parse(s string) (num, den []string) {
	parts := strings.SplitN(s, "/", 2)
	if parts[0] != "" && parts[0] != "1" {
		num = strings.Split(parts[0], "*")
	}
	if len(parts) == 2 && parts[1] != "" {
		den = strings.Split(parts[1], "*")
	}
	return
}

// FromMultisets constructs (or retrieves the interned) Units from explicit
// numerator/denominator multisets — factory form (b) of §4.1.
func FromMultisets(num, den []string) *Units {
	canonical, sn, sd := canonicalForm(num, den)
	return internCanonical(canonical, sn, sd)
}

// String returns the canonical form.
func (u *Units) String() string {
	if u == nil {
		return "EMPTY"
	}
	return u.canonical
}

// IsEmpty reports whether u is the dimensionless unit.
func (u *Units) IsEmpty() bool { return u == nil || u.compatWith.isEmpty }

// CompatibleWith implements §3's compatibility rule: same dimension, or
// either is EMPTY. "Same dimension" subsumes pointer equality (equal
// canonical forms share a dimensional form) and also covers units that
// differ only by a scale factor within one physical dimension, e.g. "cm"
// and "m" are both dimension "length" and therefore compatible even
// though they intern to different *Units.
func (u *Units) CompatibleWith(other *Units) bool {
	if u == other {
		return true
	}
	if u.IsEmpty() || other.IsEmpty() {
		return true
	}
	return u.dimCanonical == other.dimCanonical
}

func hashKey(parts ...string) uint64 {
	h := xxhash.New64()
	for _, p := range parts {
		_, _ = h.WriteString(p)
		_, _ = h.WriteString("\x00")
	}
	return h.Sum64()
}

// Multiply returns the interned product a*b, caching by (a,op,b) per
// §4.1's composite-key cache.
func Multiply(a, b *Units) *Units {
	return binaryOp(a, b, "*", func() *Units {
		num := append(append([]string(nil), a.num...), b.num...)
		den := append(append([]string(nil), a.den...), b.den...)
		return FromMultisets(num, den)
	})
}

// Divide returns the interned quotient a/b.
func Divide(a, b *Units) *Units {
	return binaryOp(a, b, "/", func() *Units {
		num := append(append([]string(nil), a.num...), b.den...)
		den := append(append([]string(nil), a.den...), b.num...)
		return FromMultisets(num, den)
	})
}

func binaryOp(a, b *Units, op string, compute func() *Units) *Units {
	key := hashKey(a.String(), op, b.String())
	if v, ok := opCache.Load(key); ok {
		return v.(*Units)
	}
	result := compute()
	opCache.Store(key, result)
	return result
}

// Reverse returns 1/u, i.e. numerator and denominator swapped.
// reverse(multiply(a,b)) == multiply(b,a) holds because both reduce to the
// same canonical form and are therefore the same interned object (§8).
func Reverse(u *Units) *Units {
	key := hashKey(u.String(), "reverse")
	if v, ok := opCache.Load(key); ok {
		return v.(*Units)
	}
	result := FromMultisets(u.den, u.num)
	opCache.Store(key, result)
	return result
}

// RaiseToPower implements raise_to_power(u, n): repeated multiply for
// n > 0, repeated divide (by u repeated) for n < 0, and the identities
// raise_to_power(u,1)==u, raise_to_power(u,0)==EMPTY from §8.
func RaiseToPower(u *Units, n int) *Units {
	if n == 0 {
		return EMPTY
	}
	if n == 1 {
		return u
	}
	abs := n
	if abs < 0 {
		abs = -abs
	}
	result := u
	for i := 1; i < abs; i++ {
		result = Multiply(result, u)
	}
	if n < 0 {
		return Reverse(result)
	}
	return result
}
