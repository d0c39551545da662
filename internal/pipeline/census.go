package pipeline

import (
	"github.com/runsascoded/jc-taxes/internal/types"
)

// CensusRow is one census block with its allocated totals. AreaSqFt counts
// only fragments that actually paid tax, so per-square-foot figures reflect
// the taxed footprint rather than parks and water.
type CensusRow struct {
	Block    types.CensusBlock
	Paid     float64
	Billed   float64
	AreaSqFt float64
}

// PaidPerSqFt divides with a zero guard: blocks with no taxed footprint
// report 0, never a fault.
func (r CensusRow) PaidPerSqFt() float64 {
	if r.AreaSqFt > 0 {
		return r.Paid / r.AreaSqFt
	}
	return 0
}

// PaidPerCapita returns paid/population and whether it is defined at all.
// Zero-population blocks have no per-capita figure at all, not a zero one.
func (r CensusRow) PaidPerCapita() (float64, bool) {
	if r.Block.Population > 0 {
		return r.Paid / float64(r.Block.Population), true
	}
	return 0, false
}

// AggregateCensus sums overlay fragments per GEOID and left-joins the full
// block registry, so blocks with nothing allocated still come out with
// zeros rather than disappearing from the map.
func AggregateCensus(frags []types.OverlayFragment, blocks []types.CensusBlock) []CensusRow {
	type sums struct{ paid, billed, area float64 }
	byGeoid := make(map[string]*sums, len(blocks))
	for _, f := range frags {
		s, ok := byGeoid[f.GEOID]
		if !ok {
			s = &sums{}
			byGeoid[f.GEOID] = s
		}
		s.paid += f.Paid
		s.billed += f.Billed
		if f.Paid > 0 {
			s.area += f.AreaSqFt
		}
	}

	rows := make([]CensusRow, 0, len(blocks))
	for _, blk := range blocks {
		row := CensusRow{Block: blk}
		if s, ok := byGeoid[blk.GEOID]; ok {
			row.Paid = s.paid
			row.Billed = s.billed
			row.AreaSqFt = s.area
		}
		rows = append(rows, row)
	}
	return rows
}
