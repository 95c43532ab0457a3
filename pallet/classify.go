package pallet

import (
	"strings"
	"unicode"
)

// =============================================================================
// CLASSIFICATION - Geometry and frozen flag
// =============================================================================

// Geometry is the billable pallet footprint.
type Geometry string

const (
	// GeometryA is the 100x120 footprint, billed through the equivalence table.
	GeometryA Geometry = "A"
	// GeometryB is the 80x120 footprint, billed 1:1.
	GeometryB Geometry = "B"
)

// Labels recognized on incoming records.
const (
	geometryALabel = "100X120"
)

var frozenMarkers = []string{"CONGELATO"}

// Classification is the billing identity of a record.
type Classification struct {
	Geometry Geometry
	Frozen   bool
}

// Bucket identifies one of the four disjoint billing buckets.
type Bucket int

const (
	BucketNormalA Bucket = iota
	BucketNormalB
	BucketFrozenA
	BucketFrozenB
)

// Bucket places the classification in exactly one bucket: a frozen pallet
// is billed as frozen only, never also as normal of its geometry.
func (c Classification) Bucket() Bucket {
	switch {
	case c.Frozen && c.Geometry == GeometryA:
		return BucketFrozenA
	case c.Frozen:
		return BucketFrozenB
	case c.Geometry == GeometryA:
		return BucketNormalA
	default:
		return BucketNormalB
	}
}

// Classify derives the classification from the stored geometry label and
// free-text note.
func Classify(label, note string) Classification {
	return Classification{Geometry: ParseGeometry(label), Frozen: IsFrozenNote(note)}
}

// ParseGeometry returns GeometryA iff the label is "100x120" ignoring case
// and whitespace. Any other label, including empty, is GeometryB.
func ParseGeometry(label string) Geometry {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, label)
	switch normalized {
	case geometryALabel:
		return GeometryA
	default:
		return GeometryB
	}
}

// IsFrozenNote reports whether the note carries a frozen marker.
func IsFrozenNote(note string) bool {
	upper := strings.ToUpper(note)
	for _, marker := range frozenMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// Counts holds physical pallets per bucket.
type Counts struct {
	NormalA int
	NormalB int
	FrozenA int
	FrozenB int
}

// Add puts n pallets in the bucket of c.
func (pc *Counts) Add(c Classification, n int) {
	switch c.Bucket() {
	case BucketNormalA:
		pc.NormalA += n
	case BucketNormalB:
		pc.NormalB += n
	case BucketFrozenA:
		pc.FrozenA += n
	case BucketFrozenB:
		pc.FrozenB += n
	}
}

// NormalEquivalent converts the normal buckets on the aggregate, so the
// sub-additive table is applied once to the total.
func (pc Counts) NormalEquivalent() int { return EquivalentUnits(pc.NormalA) + pc.NormalB }

// FrozenEquivalent converts the frozen buckets on the aggregate.
func (pc Counts) FrozenEquivalent() int { return EquivalentUnits(pc.FrozenA) + pc.FrozenB }

// Normal is the physical normal total.
func (pc Counts) Normal() int { return pc.NormalA + pc.NormalB }

// Frozen is the physical frozen total.
func (pc Counts) Frozen() int { return pc.FrozenA + pc.FrozenB }

// Total is the physical total across all buckets.
func (pc Counts) Total() int { return pc.Normal() + pc.Frozen() }
