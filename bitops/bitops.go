// Package bitops collects the bit-twiddling primitives the BVH build relies
// on: counting leading zeros for the Morton-code radix split, and
// bit-interleaving for the Morton codes themselves.
package bitops

// CountLeadingZeros32 returns the number of zero bits above the most
// significant 1-bit of x. Returns 32 for x == 0, and 0 when the high bit is
// set.
func CountLeadingZeros32(x uint32) uint32 {
	if x == 0 {
		return 32
	}

	var n uint32
	if x <= 0x0000ffff {
		n += 16
		x <<= 16
	}
	if x <= 0x00ffffff {
		n += 8
		x <<= 8
	}
	if x <= 0x0fffffff {
		n += 4
		x <<= 4
	}
	if x <= 0x3fffffff {
		n += 2
		x <<= 2
	}
	if x <= 0x7fffffff {
		n++
	}
	return n
}

// spreadBits10 takes the low 10 bits of x and spreads them out so that bit i
// of x ends up at bit 3*i of the result, leaving two zero bits between each
// original bit for the other two interleaved axes.
func spreadBits10(x uint32) uint32 {
	x &= 0x3ff
	x = (x | (x << 16)) & 0x030000FF
	x = (x | (x << 8)) & 0x0300F00F
	x = (x | (x << 4)) & 0x030C30C3
	x = (x | (x << 2)) & 0x09249249
	return x
}

// MortonCode32 interleaves the low 10 bits of x, y and z into a 30-bit
// Morton (Z-order) code. The axis order is intentionally non-standard: y
// occupies the lowest bit of every triplet, x the middle, z the highest.
// Scenes built under gravity tend to cluster along y, so placing y in the
// low bits maximizes code divergence between objects resting at similar
// heights. Preserve this bit order exactly: the BVH build sorts leaves by
// this code.
func MortonCode32(x, y, z uint32) uint32 {
	return spreadBits10(y) | spreadBits10(x)<<1 | spreadBits10(z)<<2
}

// MortonCode32XY is the 2D variant, interleaving 16-bit x/y components with
// y in the low bit.
func MortonCode32XY(x, y uint32) uint32 {
	return spreadBits16(y) | spreadBits16(x)<<1
}

func spreadBits16(x uint32) uint32 {
	x &= 0xffff
	x = (x | (x << 8)) & 0x00FF00FF
	x = (x | (x << 4)) & 0x0F0F0F0F
	x = (x | (x << 2)) & 0x33333333
	x = (x | (x << 1)) & 0x55555555
	return x
}
