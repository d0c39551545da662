package pipeline

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runsascoded/jc-taxes/internal/config"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// wardTestConfig shrinks the visualization parameters to match the tiny
// geometries used here; the city-scale defaults would swallow them whole.
func wardTestConfig() config.Config {
	cfg := config.Default()
	cfg.BufferDistanceFt = 1
	cfg.SimplifyToleranceFt = 0.1
	cfg.MinHoleAreaSqFt = 4
	return cfg
}

func TestAggregateWardsRollsUpCensusRows(t *testing.T) {
	wards := []types.Ward{
		{Ward: "C", CouncilPerson: "R. Boggiano"},
		{Ward: "E", CouncilPerson: "J. Solomon"},
	}
	rows := []CensusRow{
		{Block: types.CensusBlock{GEOID: "A", Ward: "C", Population: 100}, Paid: 500, Billed: 600, AreaSqFt: 50},
		{Block: types.CensusBlock{GEOID: "B", Ward: "C", Population: 200}, Paid: 1500, Billed: 1800, AreaSqFt: 150},
		{Block: types.CensusBlock{GEOID: "Z", Ward: "E", Population: 40}, Paid: 100, Billed: 100, AreaSqFt: 10},
	}

	got, err := AggregateWards(rows, nil, wards, wardTestConfig())
	require.NoError(t, err)
	require.Len(t, got, 2)

	c := got[0]
	assert.Equal(t, "C", c.Ward.Ward)
	assert.InDelta(t, 2000.0, c.Paid, 1e-9)
	assert.InDelta(t, 2400.0, c.Billed, 1e-9)
	assert.Equal(t, 300, c.Population)
	assert.InDelta(t, 200.0, c.AreaSqFt, 1e-9)
	assert.InDelta(t, 10.0, c.PaidPerSqFt(), 1e-9)
	pc, ok := c.PaidPerCapita()
	require.True(t, ok)
	assert.InDelta(t, 2000.0/300.0, pc, 1e-9)

	// Ward totals equal the sum of their constituent census rows.
	assert.InDelta(t, 100.0, got[1].Paid, 1e-9)
}

func TestAggregateWardsBuildsGeometries(t *testing.T) {
	wards := []types.Ward{{Ward: "C"}}
	frag := func(block string, paid float64, p orb.Polygon) types.OverlayFragment {
		return types.OverlayFragment{
			Ward:      "C",
			CityBlock: block,
			Paid:      paid,
			Planar:    orb.MultiPolygon{p},
			AreaSqFt:  100,
		}
	}
	// Two blocks across a 1-unit street gap; one fragment unpaid.
	frags := []types.OverlayFragment{
		frag("100", 500, sq(0, 0, 10, 10)),
		frag("101", 300, sq(11, 0, 21, 10)),
		frag("101", 0, sq(11, 10, 21, 20)),
	}

	got, err := AggregateWards(nil, frags, wards, wardTestConfig())
	require.NoError(t, err)
	require.Len(t, got, 1)
	row := got[0]

	// The close fuses shapes across the street into one merged part.
	merged, ok := row.Merged.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, merged, 1)

	// Lots footprint keeps only the paid fragments, so the two paid squares
	// stay separate parts and the unpaid one is gone.
	footprint, ok := row.LotsFootprint.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, footprint, 2)

	// Block outline carries one dissolved shape per city block: block 100 is
	// one square, block 101's two touching squares fuse into one part.
	outline, ok := row.BlockOutline.(orb.MultiPolygon)
	require.True(t, ok)
	assert.Len(t, outline, 2)
}

func TestAggregateWardsNoCoverage(t *testing.T) {
	wards := []types.Ward{{Ward: "F", Display: sq(0, 0, 1, 1)}}
	got, err := AggregateWards(nil, nil, wards, wardTestConfig())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Merged)
	assert.Zero(t, got[0].Paid)
	_, ok := got[0].PaidPerCapita()
	assert.False(t, ok)
}
