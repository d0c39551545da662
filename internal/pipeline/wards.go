package pipeline

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/runsascoded/jc-taxes/internal/config"
	"github.com/runsascoded/jc-taxes/internal/geometry"
	"github.com/runsascoded/jc-taxes/internal/stateplane"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// WardRow is one ward's rollup plus its visualization geometries. Merged is
// the primary rendered shape; LotsFootprint and BlockOutline are map-toggle
// alternates; the registry boundary rides along untouched.
type WardRow struct {
	Ward       types.Ward
	Paid       float64
	Billed     float64
	Population int
	AreaSqFt   float64

	// Merged dissolves every lot fragment in the ward, closes street-width
	// gaps by buffering out and eroding back, and drops small interior
	// holes. WGS84.
	Merged orb.Geometry

	// LotsFootprint dissolves only the tax-paying fragments, simplified.
	LotsFootprint orb.Geometry

	// BlockOutline dissolves fragments per city block, collected into one
	// multipolygon per ward.
	BlockOutline orb.Geometry
}

// PaidPerSqFt mirrors the census-row zero guard.
func (r WardRow) PaidPerSqFt() float64 {
	if r.AreaSqFt > 0 {
		return r.Paid / r.AreaSqFt
	}
	return 0
}

// PaidPerCapita mirrors the census-row absent-when-unpopulated rule.
func (r WardRow) PaidPerCapita() (float64, bool) {
	if r.Population > 0 {
		return r.Paid / float64(r.Population), true
	}
	return 0, false
}

// AggregateWards rolls census rows up by ward and builds the three
// visualization geometries from the ward's overlay fragments.
func AggregateWards(rows []CensusRow, frags []types.OverlayFragment, wards []types.Ward, cfg config.Config) ([]WardRow, error) {
	out := make([]WardRow, 0, len(wards))
	for _, w := range wards {
		row := WardRow{Ward: w}
		for _, cr := range rows {
			if cr.Block.Ward != w.Ward {
				continue
			}
			row.Paid += cr.Paid
			row.Billed += cr.Billed
			row.Population += cr.Block.Population
			row.AreaSqFt += cr.AreaSqFt
		}

		var all, taxed []orb.Geometry
		byBlock := make(map[string][]orb.Geometry)
		blockOrder := make([]string, 0)
		for _, f := range frags {
			if f.Ward != w.Ward {
				continue
			}
			g := orb.Geometry(f.Planar)
			all = append(all, g)
			if f.Paid > 0 {
				taxed = append(taxed, g)
			}
			if _, seen := byBlock[f.CityBlock]; !seen {
				blockOrder = append(blockOrder, f.CityBlock)
			}
			byBlock[f.CityBlock] = append(byBlock[f.CityBlock], g)
		}

		merged, err := mergedBoundary(all, cfg)
		if err != nil {
			return nil, err
		}
		row.Merged = toDisplay(merged)

		footprint, err := geometry.Dissolve(taxed...)
		if err != nil {
			return nil, err
		}
		row.LotsFootprint = toDisplay(geometry.Simplify(footprint, cfg.SimplifyToleranceFt))

		sort.Strings(blockOrder)
		var blockShapes orb.MultiPolygon
		for _, bk := range blockOrder {
			shape, err := geometry.Dissolve(byBlock[bk]...)
			if err != nil {
				continue
			}
			blockShapes = append(blockShapes, shape...)
		}
		row.BlockOutline = toDisplay(blockShapes)

		out = append(out, row)
	}
	return out, nil
}

// mergedBoundary produces one contiguous ward outline from lot fragments:
// dissolve, buffer out, erode back (fusing shapes across street rights-of-
// way without net growth), simplify, then drop sub-threshold interior holes.
func mergedBoundary(parts []orb.Geometry, cfg config.Config) (orb.MultiPolygon, error) {
	dissolved, err := geometry.Dissolve(parts...)
	if err != nil {
		return nil, err
	}
	if len(dissolved) == 0 {
		return nil, nil
	}
	dilated, err := geometry.Dilate(dissolved, cfg.BufferDistanceFt)
	if err != nil {
		return nil, err
	}
	eroded, err := geometry.Erode(dilated, cfg.BufferDistanceFt)
	if err != nil {
		return nil, err
	}
	simplified, _ := geometry.Simplify(eroded, cfg.SimplifyToleranceFt).(orb.MultiPolygon)
	return geometry.DropSmallHoles(simplified, cfg.MinHoleAreaSqFt), nil
}

// toDisplay projects a planar geometry back to WGS84 for rendering.
func toDisplay(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	if mp, ok := g.(orb.MultiPolygon); ok && len(mp) == 0 {
		return nil
	}
	return project.Geometry(orb.Clone(g), stateplane.ToGeographic)
}
