package pipeline

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runsascoded/jc-taxes/internal/types"
)

func TestAllocateSplitsByAreaShare(t *testing.T) {
	lots := []types.LotRecord{{
		Key: "100-5", Block: "100", Lot: "5",
		Planar: sq(0, 0, 10, 10), AreaSqFt: 100,
		Paid: 500, Billed: 600,
	}}
	blocks := []types.CensusBlock{
		{GEOID: "A", Ward: "C", Planar: sq(0, 0, 5, 10)},
		{GEOID: "B", Ward: "E", Planar: sq(5, 0, 10, 10)},
	}

	res, err := Allocate(lots, blocks)
	require.NoError(t, err)
	require.Len(t, res.Fragments, 2)
	assert.Zero(t, res.UnallocatedPaid)

	var paid, weight float64
	for _, f := range res.Fragments {
		assert.Equal(t, "100-5", f.LotKey)
		assert.Equal(t, "100", f.CityBlock)
		assert.InDelta(t, 0.5, f.Weight, 1e-9)
		assert.InDelta(t, 250.0, f.Paid, 1e-9)
		assert.InDelta(t, 300.0, f.Billed, 1e-9)
		paid += f.Paid
		weight += f.Weight
	}
	assert.InDelta(t, 500.0, paid, 1e-6)
	assert.InDelta(t, 1.0, weight, 1e-9)
}

func TestAllocateLotOutsideCensusGeography(t *testing.T) {
	lots := []types.LotRecord{{
		Key: "9-1", Planar: sq(1000, 1000, 1010, 1010), AreaSqFt: 100, Paid: 750,
	}}
	blocks := []types.CensusBlock{{GEOID: "A", Planar: sq(0, 0, 100, 100)}}

	res, err := Allocate(lots, blocks)
	require.NoError(t, err)
	assert.Empty(t, res.Fragments)
	assert.InDelta(t, 750.0, res.UnallocatedPaid, 1e-9)
}

func TestAllocatePartialCoverage(t *testing.T) {
	// Only the left quarter of the lot is inside census geography.
	lots := []types.LotRecord{{
		Key: "9-2", Planar: sq(0, 0, 20, 10), AreaSqFt: 200, Paid: 400,
	}}
	blocks := []types.CensusBlock{{GEOID: "A", Planar: sq(0, 0, 5, 10)}}

	res, err := Allocate(lots, blocks)
	require.NoError(t, err)
	require.Len(t, res.Fragments, 1)
	assert.InDelta(t, 0.25, res.Fragments[0].Weight, 1e-9)
	assert.InDelta(t, 100.0, res.Fragments[0].Paid, 1e-9)
	assert.InDelta(t, 300.0, res.UnallocatedPaid, 1e-6)
}

func TestAllocateFragmentationInvariance(t *testing.T) {
	// The same footprint paid the same total allocates identically whether
	// it arrives as one dissolved lot or several disjoint ones.
	blocks := []types.CensusBlock{
		{GEOID: "L", Planar: sq(0, 0, 15, 10)},
		{GEOID: "R", Planar: sq(15, 0, 30, 10)},
	}
	split := []types.LotRecord{
		{Key: "1-1", Planar: sq(0, 0, 10, 10), AreaSqFt: 100, Paid: 300},
		{Key: "1-2", Planar: sq(20, 0, 30, 10), AreaSqFt: 100, Paid: 300},
	}
	merged := []types.LotRecord{{
		Key:      "1-all",
		Planar:   orb.MultiPolygon{sq(0, 0, 10, 10), sq(20, 0, 30, 10)},
		AreaSqFt: 200,
		Paid:     600,
	}}

	sumByGeoid := func(recs []types.LotRecord) map[string]float64 {
		res, err := Allocate(recs, blocks)
		require.NoError(t, err)
		out := map[string]float64{}
		for _, f := range res.Fragments {
			out[f.GEOID] += f.Paid
		}
		return out
	}

	a := sumByGeoid(split)
	b := sumByGeoid(merged)
	for _, geoid := range []string{"L", "R"} {
		assert.InDelta(t, a[geoid], b[geoid], 1e-6)
	}
	assert.InDelta(t, 300.0, a["L"], 1e-6)
	assert.InDelta(t, 300.0, a["R"], 1e-6)
}
