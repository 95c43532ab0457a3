package pallet

import "github.com/warp/pallet-ledger/generic"

// StorageDetails is the stock on hand at a month's reference day.
type StorageDetails struct {
	Month     generic.MonthKey
	Reference generic.TimePoint

	NormalA          int
	NormalB          int
	EquivalentNormal int

	FrozenA          int
	FrozenB          int
	EquivalentFrozen int
}

// Normal is the physical normal stock.
func (d StorageDetails) Normal() int { return d.NormalA + d.NormalB }

// Frozen is the physical frozen stock.
func (d StorageDetails) Frozen() int { return d.FrozenA + d.FrozenB }

// StorageDetails reports the stock remaining at the month's last day, or at
// today when month is the current one. Equivalence is taken per record.
func (e *Engine) StorageDetails(snap Snapshot, month generic.MonthKey) StorageDetails {
	today := e.Today()
	ref := month.End()
	if month == today.MonthKey() {
		ref = today
	}

	out := StorageDetails{Month: month, Reference: ref}
	for _, r := range snap.Records {
		if r.EntryDate.IsZero() || r.EntryDate.After(ref) {
			continue
		}
		left := RemainingAt(r, ref)
		if left == 0 {
			continue
		}
		eq := r.Geometry.Equivalent(left)
		switch r.Classification().Bucket() {
		case BucketNormalA:
			out.NormalA += left
			out.EquivalentNormal += eq
		case BucketNormalB:
			out.NormalB += left
			out.EquivalentNormal += eq
		case BucketFrozenA:
			out.FrozenA += left
			out.EquivalentFrozen += eq
		case BucketFrozenB:
			out.FrozenB += left
			out.EquivalentFrozen += eq
		}
	}
	e.Logger.Debug().
		Str("month", month.String()).
		Str("reference", ref.String()).
		Int("normal", out.Normal()).
		Int("frozen", out.Frozen()).
		Msg("storage details computed")
	return out
}
