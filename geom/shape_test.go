package geom

import "testing"

func TestSquareSquareOverlap(t *testing.T) {
	a := NewSquare(0, 0, 2)
	b := NewSquare(1, 1, 2)
	if !Intersects(a, b) {
		t.Fatal("expected overlapping squares to intersect")
	}
	c := NewSquare(10, 10, 2)
	if Intersects(a, c) {
		t.Fatal("expected distant squares not to intersect")
	}
}

func TestCircleCircle(t *testing.T) {
	a := NewCircle(0, 0, 2) // radius 1
	b := NewCircle(1.5, 0, 2)
	if !Intersects(a, b) {
		t.Fatal("expected touching circles to intersect")
	}
	c := NewCircle(10, 0, 2)
	if Intersects(a, c) {
		t.Fatal("expected distant circles not to intersect")
	}
}

func TestSquareCircleClosestPoint(t *testing.T) {
	sq := NewSquare(0, 0, 2) // extents [-1,1]
	circ := NewCircle(2, 0, 1.0) // radius .5, center 2 -> closest point (1,0) at distance 1 > .5
	if Intersects(sq, circ) {
		t.Fatal("expected no intersection: gap of 1 > radius 0.5")
	}
	circ2 := NewCircle(1.4, 0, 1.2) // radius .6, distance to closest point (1,0) is .4 <= .6
	if !Intersects(sq, circ2) {
		t.Fatal("expected intersection via closest-point test")
	}
}

func TestCircleZeroRadiusMatchesOnlyCenterCell(t *testing.T) {
	g := NewCircle(5.5, 5.5, 0)
	sq := NewSquare(5.5, 5.5, 1)
	if !Intersects(g, sq) {
		t.Fatal("zero-radius circle should intersect the patch containing its center")
	}
	if Intersects(g, NewSquare(6.5, 5.5, 1)) {
		t.Fatal("zero-radius circle should not intersect a neighbouring patch")
	}
}

func TestPointReducesToSymmetricCase(t *testing.T) {
	p := NewPoint(0.5, 0.5)
	sq := NewSquare(0.5, 0.5, 1)
	if !Intersects(p, sq) {
		t.Fatal("point inside square should intersect")
	}
}

type fakePatch struct {
	id string
	g  *Shape
}

func (f *fakePatch) ID() string      { return f.id }
func (f *fakePatch) Geometry() *Shape { return f.g }

func TestIndexGridQueryMatchesSpecExample(t *testing.T) {
	var items []Located
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			id := string(rune('a'+x)) + string(rune('a'+y))
			items = append(items, &fakePatch{id: id, g: NewSquare(float64(x)+0.5, float64(y)+0.5, 1)})
		}
	}
	ix := NewIndex(items)
	circle := NewCircle(5, 5, 3) // radius 1.5
	got := ix.Lookup(circle)
	if len(got) != 16 {
		t.Fatalf("expected 16 patches (cells 3..6 x 3..6 overlap the disk), got %d", len(got))
	}
}

func TestIndexEmptyGeometryYieldsEmptyResult(t *testing.T) {
	ix := NewIndex(nil)
	if got := ix.Lookup(NewCircle(0, 0, 1)); len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestIndexFallsBackToLinearScanForNonUniformGeometry(t *testing.T) {
	items := []Located{
		&fakePatch{id: "a", g: nil},
		&fakePatch{id: "b", g: NewSquare(0, 0, 1)},
	}
	ix := NewIndex(items)
	got := ix.Lookup(NewSquare(0, 0, 1))
	if len(got) != 1 || got[0].ID() != "b" {
		t.Fatalf("expected linear-scan fallback to find patch b only, got %+v", got)
	}
}
