package geom

import (
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Located is anything the index can place by its geometry: typically a
// patch, but any entity with a fixed center works.
type Located interface {
	ID() string
	Geometry() *Shape
}

// offsetCache holds, per integer cell-radius, the (dx, dy) candidate
// offsets a circle of that radius can touch (§4.5's "Circle radius
// queries"). Bounded LRU: radius values are user/DSL controlled and
// unbounded in principle, so the cache must not grow without limit —
// unlike the teacher's global descriptor caches, which are small and
// one-time by construction.
var offsetCache, _ = lru.New[int, []offset](256)
var offsetMu sync.Mutex

type offset struct{ dx, dy int }

// offsetsForRadius returns the cached (or freshly computed) list of
// integer cell offsets whose buckets can intersect a circle of the given
// cell-radius, ceiling-rounded to the nearest whole cell so no candidate
// is missed.
func offsetsForRadius(radius float64) []offset {
	cellR := int(math.Ceil(radius))
	if cellR < 0 {
		cellR = 0
	}
	offsetMu.Lock()
	defer offsetMu.Unlock()
	if cached, ok := offsetCache.Get(cellR); ok {
		return cached
	}
	var offsets []offset
	for dx := -cellR; dx <= cellR; dx++ {
		for dy := -cellR; dy <= cellR; dy++ {
			// conservative: any cell whose bounding square could touch the
			// circle's bounding square is a candidate; exact confirmation
			// happens later via squareCircle.
			offsets = append(offsets, offset{dx, dy})
		}
	}
	offsetCache.Add(cellR, offsets)
	return offsets
}

// Index is the 2D bucket grid over patch centers (§4.5). Bucket width is
// fixed at one grid cell. Built lazily on first Lookup call for a
// timestep and immutable thereafter within that timestep.
type Index struct {
	mu      sync.Mutex
	items   []Located
	buckets map[[2]int][]Located
	built   bool
	uniform bool
}

// NewIndex wraps a fixed item set; the bucket structure is computed
// lazily by the first Lookup.
func NewIndex(items []Located) *Index {
	return &Index{items: items, uniform: true}
}

func bucketOf(s *Shape) [2]int {
	return [2]int{int(math.Floor(s.CenterX)), int(math.Floor(s.CenterY))}
}

func (ix *Index) ensureBuilt() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.built {
		return
	}
	ix.buckets = make(map[[2]int][]Located, len(ix.items))
	for _, it := range ix.items {
		g := it.Geometry()
		if g == nil {
			ix.uniform = false
			continue
		}
		b := bucketOf(g)
		ix.buckets[b] = append(ix.buckets[b], it)
	}
	ix.built = true
}

// Lookup returns every item whose geometry intersects shape. Falls back
// to a linear scan when the item set has no uniform grid placement
// (§4.5's "Fallback to linear scan if the patch set has no uniform
// grid"). Queries never fail; an empty geometry yields an empty result.
func (ix *Index) Lookup(shape *Shape) []Located {
	if shape == nil {
		return nil
	}
	ix.ensureBuilt()
	if !ix.uniform {
		return ix.linearScan(shape)
	}

	bx0 := int(math.Floor(shape.minX()))
	bx1 := int(math.Floor(shape.maxX()))
	by0 := int(math.Floor(shape.minY()))
	by1 := int(math.Floor(shape.maxY()))

	var candidateBuckets [][2]int
	if shape.Kind == KindCircle {
		center := bucketOf(shape)
		for _, off := range offsetsForRadius(shape.Radius()) {
			candidateBuckets = append(candidateBuckets, [2]int{center[0] + off.dx, center[1] + off.dy})
		}
	} else {
		for bx := bx0; bx <= bx1; bx++ {
			for by := by0; by <= by1; by++ {
				candidateBuckets = append(candidateBuckets, [2]int{bx, by})
			}
		}
	}

	seen := make(map[string]bool)
	var out []Located
	for _, b := range candidateBuckets {
		for _, it := range ix.buckets[b] {
			if seen[it.ID()] {
				continue
			}
			if Intersects(shape, it.Geometry()) {
				seen[it.ID()] = true
				out = append(out, it)
			}
		}
	}
	return out
}

func (ix *Index) linearScan(shape *Shape) []Located {
	var out []Located
	for _, it := range ix.items {
		if it.Geometry() != nil && Intersects(shape, it.Geometry()) {
			out = append(out, it)
		}
	}
	return out
}
