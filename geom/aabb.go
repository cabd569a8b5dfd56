package geom

import "math"

// AABB is an axis-aligned bounding box defined by its min and max corners.
// After construction the invariant Min[i] <= Max[i] holds for every axis.
type AABB struct {
	Min Point
	Max Point
}

// EmptyAABB returns an AABB positioned so that unioning it with any other
// AABB yields that other AABB unchanged — the identity element for Union.
func EmptyAABB() AABB {
	return AABB{
		Min: Point{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64},
		Max: Point{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64},
	}
}

// NewAABB builds an AABB from two corners, without assuming which is min and
// which is max on each axis.
func NewAABB(a, b Point) AABB {
	return AABB{Min: CwiseMin(a, b), Max: CwiseMax(a, b)}
}

// Overlaps reports whether a and b share at least one point, i.e. no
// separating axis exists between them.
func (a AABB) Overlaps(b AABB) bool {
	return !(a.Min.X > b.Max.X || b.Min.X > a.Max.X ||
		a.Min.Y > b.Max.Y || b.Min.Y > a.Max.Y ||
		a.Min.Z > b.Max.Z || b.Min.Z > a.Max.Z)
}

// Union returns the smallest AABB containing both a and b.
func (a AABB) Union(b AABB) AABB {
	return AABB{Min: CwiseMin(a.Min, b.Min), Max: CwiseMax(a.Max, b.Max)}
}

// ExpandToInclude grows a, if necessary, so that it also contains p.
func (a AABB) ExpandToInclude(p Point) AABB {
	return AABB{Min: CwiseMin(a.Min, p), Max: CwiseMax(a.Max, p)}
}
