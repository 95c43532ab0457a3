package pallet

// =============================================================================
// EQUIVALENCE - Physical pallets -> billable equivalent pallets
// =============================================================================

const (
	blockSize       = 26
	blockEquivalent = 33
)

// remainderEquivalent maps the pallets left over after full blocks of 26 to
// their billable count. It encodes a negotiated packing discount and is not
// derivable from a formula.
var remainderEquivalent = [blockSize]int{
	0, 2, 3, 4, 5, 7, 8, 9, 10, 12, 13, 14, 15,
	17, 18, 19, 20, 22, 23, 24, 25, 27, 28, 29, 30, 32,
}

// EquivalentUnits converts a physical 100x120 pallet count to equivalent
// pallets: 33 per full block of 26, the remainder via the lookup table.
// Negative counts are treated as zero.
func EquivalentUnits(physical int) int {
	if physical <= 0 {
		return 0
	}
	blocks := physical / blockSize
	return blocks*blockEquivalent + remainderEquivalent[physical%blockSize]
}

// Equivalent converts a physical count under the geometry's rule.
// Frozen and normal pallets follow the same rule.
func (g Geometry) Equivalent(physical int) int {
	if g == GeometryA {
		return EquivalentUnits(physical)
	}
	if physical < 0 {
		return 0
	}
	return physical
}
