// Package bvh implements a bounding volume hierarchy over a set of
// triangles, built from a Morton-code sort of triangle centroids and a
// recursive radix-style partition of the sorted sequence. The resulting
// tree supports fast AABB-overlap queries and is read-only (save for
// explicit AABB refits) after Construct returns.
package bvh

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hohehohe2/spatial/bitops"
	"github.com/hohehohe2/spatial/cellcode"
	"github.com/hohehohe2/spatial/geom"
	"github.com/hohehohe2/spatial/internal/metrics"
)

// BVH is a bounding volume hierarchy over triangles described by a caller-
// owned vertex array and a flat face index array. It owns its leaf and
// internal node arenas outright, but only borrows the vertex positions: the
// caller must not mutate them without calling Update, and must not mutate
// them at all while a query is in flight.
type BVH struct {
	root      Node
	leafs     []Leaf
	internals []Internal
	vertices  []geom.Point

	logger   *zap.SugaredLogger
	recorder metrics.Recorder
}

// Option configures a BVH at construction time.
type Option func(*BVH)

// WithLogger attaches a logger used for debug-level construction and query
// diagnostics. A nil logger (the default) disables all logging.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(b *BVH) { b.logger = logger }
}

// WithRecorder attaches a metrics recorder invoked around query calls. The
// default recorder is a no-op.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(b *BVH) { b.recorder = recorder }
}

// New returns an unconstructed BVH. Call Construct before using it.
func New(opts ...Option) *BVH {
	b := &BVH{recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Construct builds the BVH over vertices, indexed by faces (a flat sequence
// of triangle-vertex indices, three per triangle). It calls Update once the
// topology is built. A zero-length faces slice is a documented no-op: the
// resulting BVH has no root and every query returns no results.
//
// The caller must not mutate vertices while this BVH references them;
// reflect vertex motion by calling Update instead.
func (b *BVH) Construct(vertices []geom.Point, faces []uint32) error {
	if len(faces)%3 != 0 {
		return errors.Errorf("faces length %d is not a multiple of 3", len(faces))
	}

	numFaces := len(faces) / 3
	b.vertices = vertices
	b.root = nil
	b.leafs = nil
	b.internals = nil

	if numFaces == 0 {
		return nil
	}

	b.leafs = make([]Leaf, numFaces)
	// Exactly numFaces-1 internal nodes, as proven for any binary tree with
	// numFaces leaves; allocated up front so every node's address is stable
	// for the rest of construction.
	b.internals = make([]Internal, numFaces-1)

	centroids := make([]geom.Point, numFaces)
	bbox := geom.EmptyAABB()
	for i := 0; i < numFaces; i++ {
		v0 := vertices[faces[3*i]]
		v1 := vertices[faces[3*i+1]]
		v2 := vertices[faces[3*i+2]]
		c := geom.DivScalar(geom.Add(geom.Add(v0, v1), v2), 3)
		centroids[i] = c
		bbox = bbox.ExpandToInclude(c)
		b.leafs[i] = Leaf{VertexIDs: [3]uint32{faces[3*i], faces[3*i+1], faces[3*i+2]}}
	}

	calc := cellcode.NewCalculator(bbox)
	for i := range b.leafs {
		c := centroids[i]
		b.leafs[i].mortonCode = calc.Code32(c.X, c.Y, c.Z)
	}

	// Stability under equal codes is not required by the algorithm.
	sort.Slice(b.leafs, func(i, j int) bool { return b.leafs[i].mortonCode < b.leafs[j].mortonCode })

	if numFaces == 1 {
		b.root = &b.leafs[0]
		if b.logger != nil {
			b.logger.Debugw("bvh constructed", "faces", numFaces, "internals", 0)
		}
		return b.Update()
	}

	b.root = &b.internals[0]
	nextInternal := 1
	b.constructRange(&b.internals[0], 0, numFaces-1, &nextInternal)

	if b.logger != nil {
		b.logger.Debugw("bvh constructed", "faces", numFaces, "internals", len(b.internals))
	}

	return b.Update()
}

// constructRange recursively partitions the Morton-sorted leaf range
// [left, right] (inclusive) under internalNode, following the
// leading-zero-divergence split used by Karras-style LBVH construction.
func (b *BVH) constructRange(internalNode *Internal, left, right int, nextInternal *int) {
	var mid int
	if b.leafs[left].mortonCode == b.leafs[right].mortonCode {
		// Degenerate codes: split arbitrarily in half.
		mid = (left + right) / 2
	} else {
		rightZeros := bitops.CountLeadingZeros32(b.leafs[right].mortonCode)
		mid = left + 1
		for bitops.CountLeadingZeros32(b.leafs[mid].mortonCode) != rightZeros {
			mid++
		}
		mid--
	}

	if left == mid {
		internalNode.Left = &b.leafs[left]
	} else {
		child := &b.internals[*nextInternal]
		*nextInternal++
		internalNode.Left = child
		b.constructRange(child, left, mid, nextInternal)
	}

	if right == mid+1 {
		internalNode.Right = &b.leafs[right]
	} else {
		child := &b.internals[*nextInternal]
		*nextInternal++
		internalNode.Right = child
		b.constructRange(child, mid+1, right, nextInternal)
	}
}

// Update refits every node's AABB from the current (possibly mutated)
// vertex positions, without touching the tree topology. Call it again
// whenever the borrowed vertices move. Precondition: Construct was called
// at least once.
func (b *BVH) Update() error {
	if b.root == nil {
		return nil
	}

	for i := range b.internals {
		b.internals[i].bbox = geom.EmptyAABB()
	}

	for i := range b.leafs {
		l := &b.leafs[i]
		v0 := b.vertices[l.VertexIDs[0]]
		v1 := b.vertices[l.VertexIDs[1]]
		v2 := b.vertices[l.VertexIDs[2]]
		l.bbox = geom.AABB{Min: geom.CwiseMin(geom.CwiseMin(v0, v1), v2), Max: geom.CwiseMax(geom.CwiseMax(v0, v1), v2)}
	}

	// The build always allocates a parent before its descendants, so every
	// internal node's index is strictly less than any descendant internal
	// node's index; walking in reverse index order therefore visits
	// children before parents.
	for i := len(b.internals) - 1; i >= 0; i-- {
		n := &b.internals[i]
		n.bbox = n.Left.BBox().Union(n.Right.BBox())
	}

	return nil
}

// QueryAabbOverwrap appends every leaf whose bounding box overlaps testBbox
// to out, in left-to-right pre-order. Read-only: safe to call concurrently
// with other queries on the same BVH.
func (b *BVH) QueryAabbOverwrap(out []*Leaf, testBbox geom.AABB) []*Leaf {
	recorder := b.recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	stop := recorder.StartBVHQuery()
	defer stop()

	if b.root == nil {
		return out
	}

	stack := make([]Node, 0, 64)
	stack = append(stack, b.root)

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !n.BBox().Overlaps(testBbox) {
			continue
		}

		if n.IsLeaf() {
			out = append(out, n.(*Leaf))
			continue
		}

		in := n.(*Internal)
		// Push right first so left is popped (and visited) next.
		stack = append(stack, in.Right, in.Left)
	}

	return out
}

// QueryAabbOverwrapBatch runs QueryAabbOverwrap for every box in testBboxes
// concurrently, demonstrating (and exercising) the "safe to query
// concurrently on an immutable structure" contract: the BVH is never
// mutated by any of the goroutines. Results are returned in the same order
// as testBboxes.
func (b *BVH) QueryAabbOverwrapBatch(testBboxes []geom.AABB) ([][]*Leaf, error) {
	results := make([][]*Leaf, len(testBboxes))

	var g errgroup.Group
	for i, box := range testBboxes {
		i, box := i, box
		g.Go(func() error {
			results[i] = b.QueryAabbOverwrap(nil, box)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Print writes a diagnostic pre-order dump of the tree to w.
func (b *BVH) Print(w io.Writer) error {
	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the same diagnostic dump Print writes.
func (b *BVH) String() string {
	var sb strings.Builder
	if b.root == nil {
		return ""
	}

	stack := []Node{b.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		bbox := n.BBox()
		kind := "I"
		if n.IsLeaf() {
			kind = "L"
		}
		fmt.Fprintf(&sb, "---- %p %s min=%v max=%v", n, kind, bbox.Min, bbox.Max)

		if leaf, ok := n.(*Leaf); ok {
			fmt.Fprintf(&sb, " %d %d %d\n", leaf.VertexIDs[0], leaf.VertexIDs[1], leaf.VertexIDs[2])
		} else {
			in := n.(*Internal)
			fmt.Fprintf(&sb, " %p %p\n", in.Left, in.Right)
			stack = append(stack, in.Right, in.Left)
		}
	}

	return sb.String()
}
