// Package cellcode maps a world-space position inside a fitted AABB to a
// quantized cell index per axis, then to a Morton code of those indices.
// It is the glue between raw triangle centroids and the Morton-sorted BVH
// build.
package cellcode

import (
	"github.com/hohehohe2/spatial/bitops"
	"github.com/hohehohe2/spatial/geom"
)

// cellDivisions is one less than the number of cells per axis (1023, not
// 1024) so the maximum cell id stays at or below 1023, safely inside 10
// bits.
const cellDivisions = 1023

// Calculator quantizes positions inside a fixed AABB into 3D Morton codes.
// Behavior for positions outside the configured AABB is undefined; the BVH
// only ever feeds it centroids known to lie inside the box it was reset
// with.
type Calculator struct {
	bboxMin  geom.Point
	cellSize geom.Point
}

// NewCalculator builds a Calculator for the given bounding box.
func NewCalculator(bbox geom.AABB) *Calculator {
	c := &Calculator{}
	c.Reset(bbox)
	return c
}

// Reset reconfigures the calculator for a new bounding box.
func (c *Calculator) Reset(bbox geom.AABB) {
	c.bboxMin = bbox.Min
	c.cellSize = geom.DivScalar(geom.Sub(bbox.Max, bbox.Min), cellDivisions)
}

// Code32 returns the Morton code of the cell containing (x, y, z).
func (c *Calculator) Code32(x, y, z float64) uint32 {
	cellX := uint32((x - c.bboxMin.X) / c.cellSize.X)
	cellY := uint32((y - c.bboxMin.Y) / c.cellSize.Y)
	cellZ := uint32((z - c.bboxMin.Z) / c.cellSize.Z)
	return bitops.MortonCode32(cellX, cellY, cellZ)
}
