// Package geometry resolves raw parcel geometries into canonical form and
// provides the polygon operations (dissolve, overlay, buffer) the pipeline
// is built on. Everything downstream works with orb geometries; no code
// outside this package ever branches on source encoding.
package geometry

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/runsascoded/jc-taxes/internal/config"
	"github.com/runsascoded/jc-taxes/internal/stateplane"
)

// Encoding tags the one source encoding a Raw geometry arrived in.
type Encoding int

const (
	EncodingNone Encoding = iota
	WellKnownBinary
	GeoJSONText
	Parsed
)

func (e Encoding) String() string {
	switch e {
	case WellKnownBinary:
		return "wkb"
	case GeoJSONText:
		return "geojson"
	case Parsed:
		return "parsed"
	}
	return "none"
}

// Raw is a geometry as it arrives from a parcel source: WKB bytes out of the
// parquet-era exports, a GeoJSON string from the open-data CSV, or an
// already-parsed value. The variant is fixed at ingestion; Normalize resolves
// it exactly once.
type Raw struct {
	Encoding Encoding
	WKB      []byte
	Text     string
	Geometry orb.Geometry
}

// RawWKB wraps well-known-binary bytes.
func RawWKB(b []byte) Raw { return Raw{Encoding: WellKnownBinary, WKB: b} }

// RawGeoJSON wraps a GeoJSON-encoded geometry string.
func RawGeoJSON(s string) Raw { return Raw{Encoding: GeoJSONText, Text: s} }

// RawParsed wraps an already-parsed geometry.
func RawParsed(g orb.Geometry) Raw { return Raw{Encoding: Parsed, Geometry: g} }

// ErrMissingGeometry marks a record with no geometry at all. Skipped, counted,
// never fatal.
var ErrMissingGeometry = errors.New("no geometry present")

// ErrAmbiguousCRS marks a geometry whose coordinates are too large for
// degrees but too small for state-plane feet. The magnitude heuristic can't
// classify it, so it is flagged and skipped rather than guessed at.
var ErrAmbiguousCRS = errors.New("ambiguous coordinate reference system")

// ParseError wraps a decode failure for one record.
type ParseError struct {
	Encoding Encoding
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s geometry: %v", e.Encoding, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Normalized is the canonical pair every stage consumes: a WGS84 geometry for
// display and a state-plane geometry whose area is in square feet.
type Normalized struct {
	Display  orb.Geometry
	Planar   orb.Geometry
	AreaSqFt float64
}

// Normalizer resolves Raw geometries and keeps skip counts for the operator.
// Classification is a heuristic, not metadata: a bounding box whose minimum X
// clears PlanarMinX is assumed to already be projected feet, a box inside
// +/-180 x +/-90 is assumed geographic degrees, and anything in between is
// refused as ambiguous.
type Normalizer struct {
	planarMinX float64

	SkippedMissing   int
	SkippedParse     int
	SkippedAmbiguous int
}

// NewNormalizer builds a Normalizer from the engine config.
func NewNormalizer(cfg config.Config) *Normalizer {
	return &Normalizer{planarMinX: cfg.PlanarMinX}
}

// Normalize resolves one raw geometry. Errors are per-record: the caller
// skips and moves on. Skip counts accumulate on the Normalizer.
func (n *Normalizer) Normalize(raw Raw) (Normalized, error) {
	g, err := n.decode(raw)
	if err != nil {
		return Normalized{}, err
	}

	b := g.Bound()
	switch {
	case b.Min[0] > n.planarMinX:
		// Already projected feet.
		display := project.Geometry(orb.Clone(g), stateplane.ToGeographic)
		return Normalized{Display: display, Planar: g, AreaSqFt: planar.Area(g)}, nil
	case b.Min[0] >= -180 && b.Max[0] <= 180 && b.Min[1] >= -90 && b.Max[1] <= 90:
		pl := project.Geometry(orb.Clone(g), stateplane.ToPlanar)
		return Normalized{Display: g, Planar: pl, AreaSqFt: planar.Area(pl)}, nil
	default:
		n.SkippedAmbiguous++
		return Normalized{}, ErrAmbiguousCRS
	}
}

func (n *Normalizer) decode(raw Raw) (orb.Geometry, error) {
	switch raw.Encoding {
	case WellKnownBinary:
		if len(raw.WKB) == 0 {
			n.SkippedMissing++
			return nil, ErrMissingGeometry
		}
		g, err := wkb.Unmarshal(raw.WKB)
		if err != nil {
			n.SkippedParse++
			return nil, &ParseError{Encoding: WellKnownBinary, Err: err}
		}
		return g, nil
	case GeoJSONText:
		if raw.Text == "" {
			n.SkippedMissing++
			return nil, ErrMissingGeometry
		}
		gg, err := geojson.UnmarshalGeometry([]byte(raw.Text))
		if err != nil {
			n.SkippedParse++
			return nil, &ParseError{Encoding: GeoJSONText, Err: err}
		}
		return gg.Geometry(), nil
	case Parsed:
		if raw.Geometry == nil {
			n.SkippedMissing++
			return nil, ErrMissingGeometry
		}
		return raw.Geometry, nil
	default:
		n.SkippedMissing++
		return nil, ErrMissingGeometry
	}
}

// Skipped returns the total records dropped across all causes.
func (n *Normalizer) Skipped() int {
	return n.SkippedMissing + n.SkippedParse + n.SkippedAmbiguous
}
