// Package geom holds the vector-math primitives the BVH and kd-tree packages
// build on. Point itself is owned by the caller's domain, not by us: we
// alias github.com/golang/geo's r3.Vector rather than inventing our own
// 3-float tuple, and add only the handful of component-wise operations the
// spatial-index algorithms need that r3 doesn't already provide.
package geom

import "github.com/golang/geo/r3"

// Point is an ordered triple of coordinates. It is a direct alias for
// r3.Vector so that callers already using golang/geo can pass their data in
// without conversion.
type Point = r3.Vector

// Zero is the additive identity Point.
var Zero = Point{}

// notFound is the process-wide sentinel returned when a kd-tree query finds
// nothing within its search radius. It is never mutated after init; callers
// that may legitimately hold a zero-valued point should prefer the (Point,
// bool) returning form of Query rather than comparing against this value.
var notFound = Point{}

// NotFound returns the sentinel Point used to report "nothing found".
func NotFound() Point {
	return notFound
}

// IsNotFound reports whether p is indistinguishable from the NotFound
// sentinel. Prefer the boolean return of KDTree.Query over this where
// possible, since a legitimate input point can equal the sentinel.
func IsNotFound(p Point) bool {
	return p == notFound
}

// Axis returns the coordinate of p on the given axis (0=X, 1=Y, 2=Z).
func Axis(p Point, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// CwiseMin returns the component-wise minimum of a and b.
func CwiseMin(a, b Point) Point {
	return Point{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
}

// CwiseMax returns the component-wise maximum of a and b.
func CwiseMax(a, b Point) Point {
	return Point{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
}

// Sub returns a - b.
func Sub(a, b Point) Point {
	return a.Sub(b)
}

// Add returns a + b.
func Add(a, b Point) Point {
	return a.Add(b)
}

// DivScalar returns p with every component divided by s.
func DivScalar(p Point, s float64) Point {
	return Point{X: p.X / s, Y: p.Y / s, Z: p.Z / s}
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b Point) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}
