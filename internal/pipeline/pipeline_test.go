package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runsascoded/jc-taxes/internal/config"
	"github.com/runsascoded/jc-taxes/internal/types"
)

func TestRunLotLevel(t *testing.T) {
	p := &Pipeline{Cfg: config.Default()}
	frags := []types.ParcelFragment{
		{Block: "100", Lot: "5", Qual: "C0001", HAdd: "MONTGOMERY ST", HNum: "25",
			Planar: sq(0, 0, 10, 10), Display: sq(0, 0, 10, 10), AreaSqFt: 100},
		{Block: "100", Lot: "5", Qual: "C0002",
			Planar: sq(5, 0, 15, 10), Display: sq(5, 0, 15, 10), AreaSqFt: 100},
	}
	pays := []types.Payment{
		{Block: "100", Lot: "5", Qualifier: "C0001", Year: 2024, Paid: 1000, Billed: 1100},
		{Block: "100", Lot: "5", Qualifier: "C0002", Year: 2024, Paid: 3000, Billed: 3300},
	}
	enr := types.Enrichment{ByLot: map[string]types.OwnerInfo{
		"100-5": {Owner: "ACME LLC", Address: "25 MONTGOMERY ST"},
	}}

	feats, err := p.Run(2024, LevelLot, frags, pays, enr)
	require.NoError(t, err)
	require.Len(t, feats, 1)

	props := feats[0].Properties
	assert.Equal(t, "100", props["block"])
	assert.Equal(t, "5", props["lot"])
	assert.Equal(t, 2024, props["year"])
	assert.InDelta(t, 4000.0, props["paid"].(float64), 1e-6)
	assert.InDelta(t, 4400.0, props["billed"].(float64), 1e-6)
	assert.InDelta(t, 150.0, props["area_sqft"].(float64), 1e-6)
	assert.InDelta(t, 4000.0/150.0, props["paid_per_sqft"].(float64), 1e-6)
	assert.Equal(t, "MONTGOMERY ST", props["hadd"])
	assert.Equal(t, "25", props["hnum"])
	assert.Equal(t, "ACME LLC", props["owner"])
	assert.NotNil(t, feats[0].Geometry)
}

func TestRunUnitLevelKeepsUnitsApart(t *testing.T) {
	p := &Pipeline{Cfg: config.Default()}
	frags := []types.ParcelFragment{
		{Block: "100", Lot: "5", Qual: "C0001", Planar: sq(0, 0, 10, 10), Display: sq(0, 0, 10, 10), AreaSqFt: 100},
		{Block: "100", Lot: "5", Qual: "C0002", Planar: sq(10, 0, 20, 10), Display: sq(10, 0, 20, 10), AreaSqFt: 100},
	}
	pays := []types.Payment{
		{Block: "100", Lot: "5", Qualifier: "C0001", Paid: 1000},
		{Block: "100", Lot: "5", Qualifier: "C0002", Paid: 3000},
	}

	feats, err := p.Run(2024, LevelUnit, frags, pays, types.Enrichment{})
	require.NoError(t, err)
	require.Len(t, feats, 2)
	quals := map[string]float64{}
	for _, f := range feats {
		quals[f.Properties["qual"].(string)] = f.Properties["paid"].(float64)
	}
	assert.InDelta(t, 1000.0, quals["C0001"], 1e-9)
	assert.InDelta(t, 3000.0, quals["C0002"], 1e-9)
}

func TestRunCensusLevel(t *testing.T) {
	p := &Pipeline{
		Cfg: config.Default(),
		Blocks: []types.CensusBlock{
			{GEOID: "340170001001000", Population: 50, Ward: "C",
				Planar: sq(0, 0, 5, 10), Display: sq(0, 0, 5, 10)},
			{GEOID: "340170001001001", Population: 0, Ward: "C",
				Planar: sq(5, 0, 10, 10), Display: sq(5, 0, 10, 10)},
		},
	}
	frags := []types.ParcelFragment{
		{Block: "100", Lot: "5", Planar: sq(0, 0, 10, 10), Display: sq(0, 0, 10, 10), AreaSqFt: 100},
	}
	pays := []types.Payment{{Block: "100", Lot: "5", Year: 2024, Paid: 500, Billed: 500}}

	feats, err := p.Run(2024, LevelCensus, frags, pays, types.Enrichment{})
	require.NoError(t, err)
	require.Len(t, feats, 2)

	byGeoid := map[string]map[string]interface{}{}
	for _, f := range feats {
		byGeoid[f.Properties["geoid"].(string)] = f.Properties
	}
	populated := byGeoid["340170001001000"]
	assert.InDelta(t, 250.0, populated["paid"].(float64), 1e-6)
	assert.InDelta(t, 5.0, populated["paid_per_capita"].(float64), 1e-6)

	// Zero-population block: per-capita key absent entirely.
	empty := byGeoid["340170001001001"]
	_, present := empty["paid_per_capita"]
	assert.False(t, present)
}

func TestRunCensusLevelNeedsRegistry(t *testing.T) {
	p := &Pipeline{Cfg: config.Default()}
	_, err := p.Run(2024, LevelCensus, nil, nil, types.Enrichment{})
	assert.Error(t, err)
}
