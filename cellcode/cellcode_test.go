package cellcode

import (
	"testing"

	"go.viam.com/test"

	"github.com/hohehohe2/spatial/geom"
)

func TestCode32AxisOrder(t *testing.T) {
	bbox := geom.NewAABB(geom.Point{X: 0, Y: 0, Z: 0}, geom.Point{X: 1023, Y: 1023, Z: 1023})
	c := NewCalculator(bbox)

	test.That(t, c.Code32(0, 1, 0), test.ShouldEqual, uint32(1))
	test.That(t, c.Code32(1, 0, 0), test.ShouldEqual, uint32(2))
	test.That(t, c.Code32(0, 0, 1), test.ShouldEqual, uint32(4))
}

func TestCode32MaxCellIdFitsInBudget(t *testing.T) {
	bbox := geom.NewAABB(geom.Point{X: 0, Y: 0, Z: 0}, geom.Point{X: 1023, Y: 1023, Z: 1023})
	c := NewCalculator(bbox)

	// A position at the max corner quantizes to cell id 1023 on every axis,
	// never overflowing into the 11th bit.
	code := c.Code32(1023, 1023, 1023)
	test.That(t, code, test.ShouldEqual, uint32(0x3fffffff))
}

func TestReset(t *testing.T) {
	c := NewCalculator(geom.NewAABB(geom.Point{}, geom.Point{X: 1023, Y: 1023, Z: 1023}))
	c.Reset(geom.NewAABB(geom.Point{X: 10, Y: 10, Z: 10}, geom.Point{X: 10 + 1023, Y: 10 + 1023, Z: 10 + 1023}))
	test.That(t, c.Code32(10, 11, 10), test.ShouldEqual, uint32(1))
}
