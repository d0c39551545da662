package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runsascoded/jc-taxes/internal/types"
)

func TestAggregateCensusSumsPerGeoid(t *testing.T) {
	blocks := []types.CensusBlock{
		{GEOID: "A", Population: 100, Ward: "C"},
		{GEOID: "B", Population: 0, Ward: "C"},
	}
	frags := []types.OverlayFragment{
		{GEOID: "A", Paid: 250, Billed: 300, AreaSqFt: 50},
		{GEOID: "A", Paid: 250, Billed: 300, AreaSqFt: 50},
	}

	rows := AggregateCensus(frags, blocks)
	require.Len(t, rows, 2)

	a := rows[0]
	assert.Equal(t, "A", a.Block.GEOID)
	assert.InDelta(t, 500.0, a.Paid, 1e-9)
	assert.InDelta(t, 600.0, a.Billed, 1e-9)
	assert.InDelta(t, 100.0, a.AreaSqFt, 1e-9)
	assert.InDelta(t, 5.0, a.PaidPerSqFt(), 1e-9)
	pc, ok := a.PaidPerCapita()
	require.True(t, ok)
	assert.InDelta(t, 5.0, pc, 1e-9)
}

func TestAggregateCensusKeepsEmptyBlocks(t *testing.T) {
	blocks := []types.CensusBlock{{GEOID: "Z", Population: 40}}
	rows := AggregateCensus(nil, blocks)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].Paid)
	assert.Zero(t, rows[0].AreaSqFt)
	assert.Zero(t, rows[0].PaidPerSqFt())
}

func TestAggregateCensusAreaCountsOnlyPaidFragments(t *testing.T) {
	blocks := []types.CensusBlock{{GEOID: "A"}}
	frags := []types.OverlayFragment{
		{GEOID: "A", Paid: 100, AreaSqFt: 40},
		// Unpaid footprint stays out of the per-square-foot denominator.
		{GEOID: "A", Paid: 0, AreaSqFt: 1000},
	}
	rows := AggregateCensus(frags, blocks)
	require.Len(t, rows, 1)
	assert.InDelta(t, 40.0, rows[0].AreaSqFt, 1e-9)
	assert.InDelta(t, 2.5, rows[0].PaidPerSqFt(), 1e-9)
}

func TestPaidPerCapitaAbsentWhenUnpopulated(t *testing.T) {
	row := CensusRow{Block: types.CensusBlock{Population: 0}, Paid: 100}
	_, ok := row.PaidPerCapita()
	assert.False(t, ok)
}
