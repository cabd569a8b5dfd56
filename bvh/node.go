package bvh

import "github.com/hohehohe2/spatial/geom"

// Node is the common shape shared by leaf and internal BVH nodes: every
// node carries a bounding box and can report whether it's a leaf. Go has no
// base-class pointer casting, so this is a small interface implemented by
// *Leaf and *Internal instead, letting traversal code branch on IsLeaf
// without an unsafe downcast.
type Node interface {
	BBox() geom.AABB
	IsLeaf() bool
}

// Leaf is a BVH leaf: one triangle, identified by its three vertex indices
// into the caller's borrowed vertex array. mortonCode is only meaningful
// during construction, to sort leaves before the recursive build; queries
// never look at it.
type Leaf struct {
	bbox       geom.AABB
	VertexIDs  [3]uint32
	mortonCode uint32
}

// BBox returns the leaf's bounding box.
func (l *Leaf) BBox() geom.AABB { return l.bbox }

// IsLeaf always reports true for *Leaf.
func (l *Leaf) IsLeaf() bool { return true }

// Internal is a BVH internal node: references to a left and right child,
// each itself either a *Leaf or an *Internal.
type Internal struct {
	bbox        geom.AABB
	Left, Right Node
}

// BBox returns the internal node's bounding box, valid once Update has run.
func (n *Internal) BBox() geom.AABB { return n.bbox }

// IsLeaf always reports false for *Internal.
func (n *Internal) IsLeaf() bool { return false }
