package geom

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Index build and lookup", func() {
	var (
		idx     *Index
		patches []Located
	)

	BeforeEach(func() {
		patches = nil
		for x := 0; x < 5; x++ {
			for y := 0; y < 5; y++ {
				patches = append(patches, &fakePatch{
					id: fakeID(x, y),
					g:  NewSquare(float64(x), float64(y), 1.0),
				})
			}
		}
		idx = NewIndex(patches)
	})

	It("finds every patch overlapping a centered circle", func() {
		hits := idx.Lookup(NewCircle(2, 2, 1.0))
		Expect(len(hits)).To(BeNumerically(">=", 1))
		for _, h := range hits {
			Expect(Intersects(NewCircle(2, 2, 1.0), h.Geometry())).To(BeTrue())
		}
		want := 0
		for _, p := range patches {
			if Intersects(NewCircle(2, 2, 1.0), p.Geometry()) {
				want++
			}
		}
		Expect(hits).To(HaveLen(want))
	})

	It("returns nothing for a query far outside the grid", func() {
		hits := idx.Lookup(NewCircle(500, 500, 1.0))
		Expect(hits).To(BeEmpty())
	})

	It("is idempotent across repeated lookups", func() {
		first := idx.Lookup(NewCircle(2, 2, 1.5))
		second := idx.Lookup(NewCircle(2, 2, 1.5))
		Expect(len(first)).To(Equal(len(second)))
	})
})

func fakeID(x, y int) string {
	return string(rune('a'+x)) + string(rune('a'+y))
}
