// Package geom implements the simulation core's shapes and 2D bucket
// spatial index (§4.5): point/square/circle intersection tests, circle
// radius-to-offset precomputation, and a lazily-built bucket grid over
// patch centers.
//
// Grounded on fs/content.go/fs/vmd.go's style of resolving a logical key
// to a physical location via deterministic, cached computation: here the
// "logical key" is a shape and the "location" is the set of buckets it
// overlaps.
/*
 * Copyright (c) 2024, Josh Project. All rights reserved.
 */
package geom

import "github.com/OneOfOne/xxhash"

// Kind identifies a shape's geometric form (§4.5).
type Kind int

const (
	KindPoint Kind = iota
	KindSquare
	KindCircle
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "Point"
	case KindSquare:
		return "Square"
	case KindCircle:
		return "Circle"
	default:
		return "Unknown"
	}
}

// Shape is {kind, center_x, center_y, width} in grid space (§4.5). For
// Square, width is the full side length; for Circle, width is the
// diameter (radius = width/2); for Point, width is ignored.
type Shape struct {
	Kind     Kind
	CenterX  float64
	CenterY  float64
	Width    float64

	hash     uint64
	hashSet  bool
}

// NewPoint, NewSquare, NewCircle construct shapes in grid space.
func NewPoint(x, y float64) *Shape            { return &Shape{Kind: KindPoint, CenterX: x, CenterY: y} }
func NewSquare(x, y, width float64) *Shape    { return &Shape{Kind: KindSquare, CenterX: x, CenterY: y, Width: width} }
func NewCircle(x, y, diameter float64) *Shape { return &Shape{Kind: KindCircle, CenterX: x, CenterY: y, Width: diameter} }

func (s *Shape) Radius() float64 { return s.Width / 2 }

// Hash is precomputed from the shape's numeric components (§4.5: "Hash
// pre-computed from numeric components"), memoized on first call.
func (s *Shape) Hash() uint64 {
	if s.hashSet {
		return s.hash
	}
	h := xxhash.New64()
	writeFloat(h, float64(s.Kind))
	writeFloat(h, s.CenterX)
	writeFloat(h, s.CenterY)
	writeFloat(h, s.Width)
	s.hash = h.Sum64()
	s.hashSet = true
	return s.hash
}

func writeFloat(h *xxhash.XXHash64, f float64) {
	bits := int64(f * 1e9)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> (8 * i))
	}
	_, _ = h.Write(buf)
}

func (s *Shape) minX() float64 {
	switch s.Kind {
	case KindSquare:
		return s.CenterX - s.Width/2
	case KindCircle:
		return s.CenterX - s.Radius()
	default:
		return s.CenterX
	}
}
func (s *Shape) maxX() float64 {
	switch s.Kind {
	case KindSquare:
		return s.CenterX + s.Width/2
	case KindCircle:
		return s.CenterX + s.Radius()
	default:
		return s.CenterX
	}
}
func (s *Shape) minY() float64 {
	switch s.Kind {
	case KindSquare:
		return s.CenterY - s.Width/2
	case KindCircle:
		return s.CenterY - s.Radius()
	default:
		return s.CenterY
	}
}
func (s *Shape) maxY() float64 {
	switch s.Kind {
	case KindSquare:
		return s.CenterY + s.Width/2
	case KindCircle:
		return s.CenterY + s.Radius()
	default:
		return s.CenterY
	}
}

// Intersects implements §4.5's shape-pair intersection table: square-square
// AABB overlap, circle-circle squared-distance comparison, square-circle
// closest-point-on-rectangle test, and point-shape as the symmetric
// reduction (a point is a zero-width square).
func Intersects(a, b *Shape) bool {
	switch {
	case a.Kind == KindSquare && b.Kind == KindSquare:
		return squareSquare(a, b)
	case a.Kind == KindCircle && b.Kind == KindCircle:
		return circleCircle(a, b)
	case a.Kind == KindSquare && b.Kind == KindCircle:
		return squareCircle(a, b)
	case a.Kind == KindCircle && b.Kind == KindSquare:
		return squareCircle(b, a)
	case a.Kind == KindPoint:
		return Intersects(pointAsSquare(a), b)
	case b.Kind == KindPoint:
		return Intersects(a, pointAsSquare(b))
	default:
		return false
	}
}

func pointAsSquare(p *Shape) *Shape { return NewSquare(p.CenterX, p.CenterY, 0) }

func squareSquare(a, b *Shape) bool {
	return a.minX() <= b.maxX() && a.maxX() >= b.minX() &&
		a.minY() <= b.maxY() && a.maxY() >= b.minY()
}

func circleCircle(a, b *Shape) bool {
	dx := a.CenterX - b.CenterX
	dy := a.CenterY - b.CenterY
	sumR := a.Radius() + b.Radius()
	return dx*dx+dy*dy <= sumR*sumR
}

func squareCircle(sq, c *Shape) bool {
	closestX := clamp(c.CenterX, sq.minX(), sq.maxX())
	closestY := clamp(c.CenterY, sq.minY(), sq.maxY())
	dx := c.CenterX - closestX
	dy := c.CenterY - closestY
	r := c.Radius()
	return dx*dx+dy*dy <= r*r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
