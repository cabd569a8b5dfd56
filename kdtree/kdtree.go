// Package kdtree implements a kd-tree over 3D points, laid out as a
// contiguous array of packed nodes in pre-order. Queries follow the
// incremental per-axis squared-distance update from Merry, Gain & Marais,
// "Accelerating kd-tree searches for all k-nearest neighbours" (EG 2013),
// which lets a 1-NN search prune subtrees without recomputing full bounding
// regions.
package kdtree

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hohehohe2/spatial/geom"
	"github.com/hohehohe2/spatial/internal/metrics"
)

// defaultBucketSize matches the original project's default leaf capacity.
const defaultBucketSize = 24

// KDTree owns a contiguous, pre-order array of packed nodes and a
// contiguous array of points referenced by leaf buckets. It copies its
// input points during Construct and never retains references to the
// caller's slice.
type KDTree struct {
	tree       []node
	buckets    []geom.Point
	bucketSize uint32

	logger   *zap.SugaredLogger
	recorder metrics.Recorder
}

// Option configures a KDTree at construction time.
type Option func(*KDTree)

// WithBucketSize overrides the default leaf capacity (24).
func WithBucketSize(bucketSize uint32) Option {
	return func(t *KDTree) { t.bucketSize = bucketSize }
}

// WithLogger attaches a logger used for debug-level construction
// diagnostics. A nil logger (the default) disables all logging.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(t *KDTree) { t.logger = logger }
}

// WithRecorder attaches a metrics recorder invoked around query calls. The
// default recorder is a no-op.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(t *KDTree) { t.recorder = recorder }
}

// New returns an unconstructed KDTree with the given options applied.
func New(opts ...Option) (*KDTree, error) {
	t := &KDTree{bucketSize: defaultBucketSize, recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(t)
	}
	if t.bucketSize == 0 {
		return nil, errors.New("bucketSize must be positive")
	}
	if t.bucketSize > maxPacked {
		return nil, errors.Errorf("bucketSize %d exceeds the maximum packable size %d", t.bucketSize, maxPacked)
	}
	return t, nil
}

// Construct builds the tree over points. The input slice is not mutated;
// points are copied into the tree's own bucket storage. A zero-value KDTree
// (built without New) uses the default bucket size.
func (t *KDTree) Construct(points []geom.Point) {
	t.Clear()
	if t.bucketSize == 0 {
		t.bucketSize = defaultBucketSize
	}
	if len(points) == 0 {
		return
	}

	refs := make([]geom.Point, len(points))
	copy(refs, points)

	t.buildRange(refs)

	if t.logger != nil {
		t.logger.Debugw("kdtree constructed", "points", len(points), "nodes", len(t.tree), "leaves", t.leafCount())
	}
}

// Clear empties the tree.
func (t *KDTree) Clear() {
	t.tree = nil
	t.buckets = nil
}

func (t *KDTree) leafCount() int {
	n := 0
	for _, nd := range t.tree {
		if nd.isLeaf() {
			n++
		}
	}
	return n
}

// buildRange appends the subtree for refs (a slice this call is free to
// reorder) to t.tree/t.buckets in pre-order, returning the index of the
// node it created.
func (t *KDTree) buildRange(refs []geom.Point) int {
	if uint32(len(refs)) <= t.bucketSize {
		bucketIndex := len(t.buckets)
		t.buckets = append(t.buckets, refs...)
		t.tree = append(t.tree, newLeafNode(uint32(bucketIndex), uint32(len(refs))))
		return len(t.tree) - 1
	}

	selfIndex := len(t.tree)
	t.tree = append(t.tree, node{})

	axis := findSplitAxis(refs)
	t.tree[selfIndex] = newInternalNode(uint32(axis))

	median := len(refs) / 2
	partitionByNthElement(refs, median, axis)
	t.tree[selfIndex].setSplitCoordinate(geom.Axis(refs[median], axis))

	// Left subtree is appended immediately after selfIndex.
	t.buildRange(refs[:median])
	// Median point goes to the right subtree.
	rightIndex := t.buildRange(refs[median:])

	// t.tree may have grown and reallocated during the recursive calls
	// above, so selfIndex must be re-resolved by index, never cached as a
	// pointer, before writing the right-child offset.
	t.tree[selfIndex].setRightChildOffset(uint32(rightIndex - selfIndex))

	return selfIndex
}

// findSplitAxis picks the axis with the largest extent over refs' bounding
// box.
func findSplitAxis(refs []geom.Point) int {
	lo, hi := refs[0], refs[0]
	for _, p := range refs[1:] {
		lo = geom.CwiseMin(lo, p)
		hi = geom.CwiseMax(hi, p)
	}
	extent := geom.Sub(hi, lo)
	if extent.X < extent.Y {
		if extent.Y < extent.Z {
			return 2
		}
		return 1
	}
	if extent.X < extent.Z {
		return 2
	}
	return 0
}

// partitionByNthElement reorders refs in place so that refs[median] holds
// the element that would be there in sorted order by axis, every element
// before it is <= it, and every element after it is >= it. Order within
// each side is unspecified: a Hoare-style quickselect, the same selection
// algorithm std::nth_element uses.
func partitionByNthElement(refs []geom.Point, median, axis int) {
	lo, hi := 0, len(refs)-1
	for lo < hi {
		p := partition(refs, lo, hi, axis)
		switch {
		case median < p:
			hi = p - 1
		case median > p:
			lo = p + 1
		default:
			return
		}
	}
}

// partition is a Lomuto partition of refs[lo:hi+1] on the given axis,
// pivoting on refs[hi], and returns the pivot's final index.
func partition(refs []geom.Point, lo, hi, axis int) int {
	pivot := geom.Axis(refs[hi], axis)
	i := lo
	for j := lo; j < hi; j++ {
		if geom.Axis(refs[j], axis) < pivot {
			refs[i], refs[j] = refs[j], refs[i]
			i++
		}
	}
	refs[i], refs[hi] = refs[hi], refs[i]
	return i
}

// Query finds the nearest neighbor of p strictly closer than maxDist (a
// point at exactly maxDist is not returned), using eps as an additive
// squared-distance slack for approximate pruning.
// Returns the nearest point and true, or the NotFound sentinel and false if
// nothing lies within maxDist.
func (t *KDTree) Query(p geom.Point, maxDist, eps float64) (geom.Point, bool, error) {
	if eps < 0 {
		return geom.NotFound(), false, errors.Errorf("eps must be non-negative, got %v", eps)
	}
	if len(t.tree) == 0 {
		return geom.NotFound(), false, nil
	}

	recorder := t.recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	stop := recorder.StartKDTreeQuery()
	defer stop()

	var result *geom.Point
	d2 := maxDist * maxDist
	t.find1NN(&result, p, 0, geom.Zero, 0, &d2, eps)

	if result == nil {
		return geom.NotFound(), false, nil
	}
	return *result, true, nil
}

// find1NN implements Algorithm 1 of Merry/Gain/Marais: a is the per-axis
// vector of squared contributions to the squared distance from p to the
// current subtree's region, d is their sum, and D is the current best
// squared distance found so far (shared across the whole recursion, along
// with result).
func (t *KDTree) find1NN(result **geom.Point, p geom.Point, nodeIndex int, a geom.Point, d float64, D *float64, eps float64) {
	n := t.tree[nodeIndex]

	if n.isLeaf() {
		start := n.bucketIndex()
		end := start + n.bucketSize()
		for i := start; i < end; i++ {
			sq := geom.SquaredDistance(t.buckets[i], p)
			if sq < *D {
				*D = sq
				pt := t.buckets[i]
				*result = &pt
			}
		}
		return
	}

	axis := n.axis()
	signedDist := geom.Axis(p, axis) - n.splitCoordinate()

	leftIndex := nodeIndex + 1
	rightIndex := nodeIndex + int(n.rightChildOffset())

	nearIndex, farIndex := leftIndex, rightIndex
	if signedDist > 0 {
		nearIndex, farIndex = rightIndex, leftIndex
	}

	t.find1NN(result, p, nearIndex, a, d, D, eps)

	u := signedDist * signedDist
	d = d - geom.Axis(a, axis) + u
	a = setAxis(a, axis, u)

	if d < *D+eps {
		t.find1NN(result, p, farIndex, a, d, D, eps)
	}
}

func setAxis(p geom.Point, axis int, v float64) geom.Point {
	switch axis {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	default:
		p.Z = v
	}
	return p
}

// QueryBatch runs Query for every point in points concurrently, showing
// (and exercising) that multiple threads may invoke Query on the same
// immutable KDTree at once. Results are returned in the same order as
// points.
func (t *KDTree) QueryBatch(points []geom.Point, maxDist, eps float64) ([]geom.Point, []bool, error) {
	results := make([]geom.Point, len(points))
	found := make([]bool, len(points))

	var g errgroup.Group
	for i, p := range points {
		i, p := i, p
		g.Go(func() error {
			r, ok, err := t.Query(p, maxDist, eps)
			if err != nil {
				return err
			}
			results[i] = r
			found[i] = ok
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, found, nil
}

// PrintTree writes a diagnostic dump of the packed node array and bucket
// contents to w.
func (t *KDTree) PrintTree(w io.Writer) error {
	_, err := io.WriteString(w, t.String())
	return err
}

// String renders the same diagnostic dump PrintTree writes.
func (t *KDTree) String() string {
	var sb strings.Builder
	for i, n := range t.tree {
		if n.isLeaf() {
			fmt.Fprintf(&sb, "%d: Leaf bucketIndex=%d bucketSize=%d\n", i, n.bucketIndex(), n.bucketSize())
		} else {
			fmt.Fprintf(&sb, "%d: Internal axis=%d coordinate=%v left=%d right=%d\n",
				i, n.axis(), n.splitCoordinate(), i+1, i+int(n.rightChildOffset()))
		}
	}
	sb.WriteString("\n")
	for _, p := range t.buckets {
		fmt.Fprintf(&sb, "%v\n", p)
	}
	return sb.String()
}
