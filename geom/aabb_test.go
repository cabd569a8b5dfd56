package geom

import (
	"testing"

	"go.viam.com/test"
)

func TestAABBOverlaps(t *testing.T) {
	a := NewAABB(Point{X: 0, Y: 0, Z: 0}, Point{X: 1, Y: 1, Z: 1})
	b := NewAABB(Point{X: 0.5, Y: 0.5, Z: 0.5}, Point{X: 2, Y: 2, Z: 2})
	test.That(t, a.Overlaps(b), test.ShouldBeTrue)
	test.That(t, b.Overlaps(a), test.ShouldBeTrue)

	c := NewAABB(Point{X: 10, Y: 10, Z: 10}, Point{X: 11, Y: 11, Z: 11})
	test.That(t, a.Overlaps(c), test.ShouldBeFalse)

	// touching boundaries overlap
	d := NewAABB(Point{X: 1, Y: 1, Z: 1}, Point{X: 2, Y: 2, Z: 2})
	test.That(t, a.Overlaps(d), test.ShouldBeTrue)
}

func TestAABBUnion(t *testing.T) {
	a := NewAABB(Point{X: 0, Y: 0, Z: 0}, Point{X: 1, Y: 1, Z: 1})
	b := NewAABB(Point{X: -1, Y: 2, Z: 0.5}, Point{X: 0.5, Y: 3, Z: 4})
	u := a.Union(b)
	test.That(t, u.Min, test.ShouldResemble, Point{X: -1, Y: 0, Z: 0})
	test.That(t, u.Max, test.ShouldResemble, Point{X: 1, Y: 3, Z: 4})
}

func TestEmptyAABBIsUnionIdentity(t *testing.T) {
	e := EmptyAABB()
	a := NewAABB(Point{X: -2, Y: 3, Z: 5}, Point{X: 1, Y: 4, Z: 9})
	u := e.Union(a)
	test.That(t, u.Min, test.ShouldResemble, a.Min)
	test.That(t, u.Max, test.ShouldResemble, a.Max)
}
