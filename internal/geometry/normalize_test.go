package geometry

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runsascoded/jc-taxes/internal/config"
)

func TestNormalizePlanarInput(t *testing.T) {
	n := NewNormalizer(config.Default())

	// A 100x100 ft square at state-plane magnitudes.
	got, err := n.Normalize(RawParsed(square(620000, 680000, 620100, 680100)))
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, got.AreaSqFt, 1e-6)
	// Planar passes through untouched.
	assert.Equal(t, orb.Point{620000, 680000}, got.Planar.Bound().Min)
	// Display lands in WGS84 degrees near Jersey City.
	db := got.Display.Bound()
	assert.InDelta(t, -74.0, db.Min[0], 0.5)
	assert.InDelta(t, 40.7, db.Min[1], 0.5)
}

func TestNormalizeGeographicInput(t *testing.T) {
	n := NewNormalizer(config.Default())

	g := orb.Polygon{orb.Ring{
		{-74.044, 40.717}, {-74.043, 40.717}, {-74.043, 40.718},
		{-74.044, 40.718}, {-74.044, 40.717},
	}}
	got, err := n.Normalize(RawParsed(g))
	require.NoError(t, err)
	assert.Equal(t, g, got.Display)
	// Projected bound lands at state-plane magnitudes and area is positive
	// square feet (roughly 280 x 365 ft for this cell).
	assert.Greater(t, got.Planar.Bound().Min[0], 500000.0)
	assert.Greater(t, got.AreaSqFt, 50000.0)
	assert.Less(t, got.AreaSqFt, 200000.0)
}

func TestNormalizeAmbiguousCRS(t *testing.T) {
	n := NewNormalizer(config.Default())

	// Too big for degrees, below the planar threshold.
	_, err := n.Normalize(RawParsed(square(400, 400, 500, 500)))
	assert.ErrorIs(t, err, ErrAmbiguousCRS)
	assert.Equal(t, 1, n.SkippedAmbiguous)
	assert.Equal(t, 1, n.Skipped())
}

func TestNormalizeGeoJSONText(t *testing.T) {
	n := NewNormalizer(config.Default())

	raw := RawGeoJSON(`{"type":"Polygon","coordinates":[[[-74.044,40.717],[-74.043,40.717],[-74.043,40.718],[-74.044,40.718],[-74.044,40.717]]]}`)
	got, err := n.Normalize(raw)
	require.NoError(t, err)
	assert.Greater(t, got.AreaSqFt, 0.0)
}

func TestNormalizeBadGeoJSON(t *testing.T) {
	n := NewNormalizer(config.Default())

	_, err := n.Normalize(RawGeoJSON(`{"type":"Polygon","coordinates":`))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, GeoJSONText, pe.Encoding)
	assert.Equal(t, 1, n.SkippedParse)
}

func TestNormalizeBadWKB(t *testing.T) {
	n := NewNormalizer(config.Default())

	_, err := n.Normalize(RawWKB([]byte{0x01, 0x02, 0x03}))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, WellKnownBinary, pe.Encoding)
}

func TestNormalizeMissing(t *testing.T) {
	n := NewNormalizer(config.Default())

	for _, raw := range []Raw{{}, RawWKB(nil), RawGeoJSON(""), RawParsed(nil)} {
		_, err := n.Normalize(raw)
		assert.ErrorIs(t, err, ErrMissingGeometry)
	}
	assert.Equal(t, 4, n.SkippedMissing)
	assert.Equal(t, 4, n.Skipped())
}
