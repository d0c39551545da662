package pipeline

import (
	"github.com/runsascoded/jc-taxes/internal/geometry"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// OverlayResult carries the allocation fragments plus the paid total that
// found no census block at all. Parcel and census geometries are surveyed
// independently and never quite agree, so payment is split proportionally to
// overlapping footprint; what falls outside the census union is reported,
// not redistributed.
type OverlayResult struct {
	Fragments []types.OverlayFragment

	// UnallocatedPaid is the paid total from lots with no (or partial)
	// census coverage. Known approximation; surfaced so the operator can
	// judge its size.
	UnallocatedPaid float64
}

// Allocate intersects every lot against every census block it might touch
// and splits the lot's payment by area share. Assumes payment is uniformly
// distributed over the lot's footprint, a modeling choice rather than exact
// attribution.
func Allocate(lots []types.LotRecord, blocks []types.CensusBlock) (OverlayResult, error) {
	var res OverlayResult

	for _, lot := range lots {
		if lot.Planar == nil || lot.AreaSqFt <= 0 {
			res.UnallocatedPaid += lot.Paid
			continue
		}
		lotBound := lot.Planar.Bound()

		covered := 0.0
		for _, blk := range blocks {
			if blk.Planar == nil {
				continue
			}
			if !lotBound.Intersects(blk.Planar.Bound()) {
				continue
			}
			inter, err := geometry.Intersect(lot.Planar, blk.Planar)
			if err != nil {
				return res, err
			}
			area := geometry.Area(inter)
			if area <= 0 {
				continue
			}
			weight := area / lot.AreaSqFt
			res.Fragments = append(res.Fragments, types.OverlayFragment{
				LotKey:    lot.Key,
				CityBlock: lot.Block,
				GEOID:     blk.GEOID,
				Ward:      blk.Ward,
				Planar:    inter,
				AreaSqFt:  area,
				Weight:    weight,
				Paid:      lot.Paid * weight,
				Billed:    lot.Billed * weight,
			})
			covered += weight
		}
		if covered < 1 {
			res.UnallocatedPaid += lot.Paid * (1 - covered)
		}
	}
	return res, nil
}
