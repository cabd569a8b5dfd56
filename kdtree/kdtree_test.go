package kdtree

import (
	"math"
	"testing"

	"go.viam.com/test"

	"github.com/hohehohe2/spatial/geom"
)

func TestNearestNeighbor(t *testing.T) {
	points := []geom.Point{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
	}
	tr, err := New(WithBucketSize(1))
	test.That(t, err, test.ShouldBeNil)
	tr.Construct(points)

	got, ok, err := tr.Query(geom.Point{X: 0.9, Y: 0.1, Z: 0.1}, 2.0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, geom.Point{X: 1, Y: 0, Z: 0})

	_, ok, err = tr.Query(geom.Point{X: 100, Y: 100, Z: 100}, 1.0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestAllIdenticalPoints(t *testing.T) {
	points := make([]geom.Point, 100)
	for i := range points {
		points[i] = geom.Point{X: 0, Y: 0, Z: 0}
	}
	tr, err := New()
	test.That(t, err, test.ShouldBeNil)
	tr.Construct(points)

	got, ok, err := tr.Query(geom.Point{X: 1, Y: 0, Z: 0}, 2.0, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, geom.Point{X: 0, Y: 0, Z: 0})
}

func TestEmptyTree(t *testing.T) {
	tr, err := New()
	test.That(t, err, test.ShouldBeNil)
	tr.Construct(nil)

	_, ok, err := tr.Query(geom.Point{}, 10, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestNegativeEpsIsRejected(t *testing.T) {
	tr, err := New()
	test.That(t, err, test.ShouldBeNil)
	tr.Construct([]geom.Point{{X: 0, Y: 0, Z: 0}})

	_, _, err = tr.Query(geom.Point{}, 1, -0.1)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestZeroBucketSizeRejected(t *testing.T) {
	_, err := New(WithBucketSize(0))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestBruteForceAgreement(t *testing.T) {
	points := []geom.Point{
		{X: 3.1, Y: -2.2, Z: 0.4},
		{X: -1.5, Y: 7.0, Z: 2.2},
		{X: 0.0, Y: 0.0, Z: 0.0},
		{X: 9.9, Y: 9.9, Z: 9.9},
		{X: -4.4, Y: -4.4, Z: -4.4},
		{X: 2.2, Y: 2.2, Z: 2.2},
		{X: -8.0, Y: 1.0, Z: 3.0},
		{X: 5.5, Y: -5.5, Z: 5.5},
	}
	tr, err := New(WithBucketSize(2))
	test.That(t, err, test.ShouldBeNil)
	tr.Construct(points)

	queryPoints := []geom.Point{
		{X: 0.1, Y: 0.1, Z: 0.1},
		{X: -3, Y: -3, Z: -3},
		{X: 100, Y: 100, Z: 100},
		{X: 4, Y: -4, Z: 4},
	}

	for _, q := range queryPoints {
		want := bruteForceNearest(points, q, math.Inf(1))
		got, ok, err := tr.Query(q, math.Inf(1), 0)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, geom.SquaredDistance(got, q), test.ShouldEqual, geom.SquaredDistance(want, q))
	}
}

func bruteForceNearest(points []geom.Point, q geom.Point, maxDist float64) geom.Point {
	best := geom.NotFound()
	bestD := maxDist * maxDist
	for _, p := range points {
		d := geom.SquaredDistance(p, q)
		if d < bestD {
			best = p
			bestD = d
		}
	}
	return best
}

func TestLeafBucketsPartitionAllPoints(t *testing.T) {
	points := []geom.Point{
		{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}, {X: -1, Y: -2, Z: -3},
		{X: 7, Y: 8, Z: 9}, {X: 0, Y: 0, Z: 0}, {X: -5, Y: 5, Z: -5},
	}
	tr, err := New(WithBucketSize(2))
	test.That(t, err, test.ShouldBeNil)
	tr.Construct(points)

	test.That(t, tr.buckets, test.ShouldHaveLength, len(points))

	seen := map[geom.Point]int{}
	for _, p := range tr.buckets {
		seen[p]++
	}
	for _, p := range points {
		test.That(t, seen[p] > 0, test.ShouldBeTrue)
		seen[p]--
	}
}

func TestInternalSplitInvariant(t *testing.T) {
	points := make([]geom.Point, 0, 64)
	for i := 0; i < 64; i++ {
		points = append(points, geom.Point{X: float64(i%7) - 3, Y: float64(i%5) - 2, Z: float64(i%3) - 1})
	}
	tr, err := New(WithBucketSize(4))
	test.That(t, err, test.ShouldBeNil)
	tr.Construct(points)

	for i, n := range tr.tree {
		if n.isLeaf() {
			continue
		}
		axis := n.axis()
		split := n.splitCoordinate()
		leftStart := i + 1
		rightStart := i + int(n.rightChildOffset())
		for _, p := range collectSubtreePoints(tr, leftStart) {
			test.That(t, geom.Axis(p, axis) <= split, test.ShouldBeTrue)
		}
		for _, p := range collectSubtreePoints(tr, rightStart) {
			test.That(t, geom.Axis(p, axis) >= split, test.ShouldBeTrue)
		}
	}
}

// TestSplitInvariantSurvivesFloat32RoundingValues exercises values that
// round down when truncated to float32 (3.3 in particular), to make sure
// the stored split coordinate matches the precision partitioning used to
// place points on either side of it.
func TestSplitInvariantSurvivesFloat32RoundingValues(t *testing.T) {
	points := []geom.Point{
		{X: 1.0, Y: 0, Z: 0},
		{X: 3.3, Y: 0, Z: 0},
		{X: 3.3, Y: 0, Z: 0},
		{X: 3.3, Y: 0, Z: 0},
	}
	tr, err := New(WithBucketSize(1))
	test.That(t, err, test.ShouldBeNil)
	tr.Construct(points)

	for i, n := range tr.tree {
		if n.isLeaf() {
			continue
		}
		axis := n.axis()
		split := n.splitCoordinate()
		for _, p := range collectSubtreePoints(tr, i+1) {
			test.That(t, geom.Axis(p, axis) <= split, test.ShouldBeTrue)
		}
		for _, p := range collectSubtreePoints(tr, i+int(n.rightChildOffset())) {
			test.That(t, geom.Axis(p, axis) >= split, test.ShouldBeTrue)
		}
	}
}

func collectSubtreePoints(tr *KDTree, index int) []geom.Point {
	n := tr.tree[index]
	if n.isLeaf() {
		start := n.bucketIndex()
		end := start + n.bucketSize()
		return tr.buckets[start:end]
	}
	var out []geom.Point
	out = append(out, collectSubtreePoints(tr, index+1)...)
	out = append(out, collectSubtreePoints(tr, index+int(n.rightChildOffset()))...)
	return out
}

// TestZeroValueQueryDoesNotPanic builds a KDTree as a bare struct literal,
// bypassing New (and its default recorder), to make sure Query doesn't
// dereference a nil Recorder.
func TestZeroValueQueryDoesNotPanic(t *testing.T) {
	var tr KDTree
	tr.Construct([]geom.Point{{X: 1, Y: 1, Z: 1}})

	got, ok, err := tr.Query(geom.Point{}, 10, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, got, test.ShouldResemble, geom.Point{X: 1, Y: 1, Z: 1})
}
