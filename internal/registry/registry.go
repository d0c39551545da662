// Package registry loads the census-block and ward geographies the
// aggregators join against. Wards come from the city GeoJSON; blocks come
// either pre-joined (GEOID, POP100, ward) or raw from the Hudson County
// TIGER shapefile, in which case PrepareBlocks filters them to the city and
// assigns wards by centroid.
package registry

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/runsascoded/jc-taxes/internal/stateplane"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// LoadWards reads the ward boundary GeoJSON. The source layer abbreviates
// the council-person column to "council_pe"; both spellings are accepted.
func LoadWards(path string) ([]types.Ward, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	wards := make([]types.Ward, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		cp := propString(f.Properties, "council_person")
		if cp == "" {
			cp = propString(f.Properties, "council_pe")
		}
		wards = append(wards, types.Ward{
			Ward:          propString(f.Properties, "ward"),
			CouncilPerson: cp,
			Display:       f.Geometry,
			Planar:        project.Geometry(orb.Clone(f.Geometry), stateplane.ToPlanar),
		})
	}
	return wards, nil
}

// LoadBlocks reads a pre-joined census-block registry GeoJSON (the output of
// PrepareBlocks/WriteBlocks).
func LoadBlocks(path string) ([]types.CensusBlock, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}
	blocks := make([]types.CensusBlock, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		blocks = append(blocks, types.CensusBlock{
			GEOID:      propString(f.Properties, "GEOID"),
			Population: propInt(f.Properties, "POP100"),
			Ward:       propString(f.Properties, "ward"),
			Display:    f.Geometry,
			Planar:     project.Geometry(orb.Clone(f.Geometry), stateplane.ToPlanar),
		})
	}
	return blocks, nil
}

// LoadRawBlocks reads county census blocks with no ward assignment yet, from
// either a GeoJSON export or a TIGER shapefile.
func LoadRawBlocks(path string) ([]types.CensusBlock, error) {
	if strings.HasSuffix(strings.ToLower(path), ".shp") {
		return loadBlocksShapefile(path)
	}
	return LoadBlocks(path)
}

// loadBlocksShapefile reads census blocks from a TIGER/PL shapefile. GEOID
// and population live in the DBF attribute table; the decennial files name
// them GEOID/POP100 or GEOID20/POP20 depending on vintage.
func loadBlocksShapefile(path string) ([]types.CensusBlock, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()

	var blocks []types.CensusBlock
	for r.Next() {
		idx, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[f.String()] = r.ReadAttribute(idx, i)
		}

		geoid := firstAttr(attrs, "GEOID", "GEOID20", "GEOID10")
		pop, _ := strconv.Atoi(strings.TrimSpace(firstAttr(attrs, "POP100", "POP20", "POP10")))

		display := shpPolygonToOrb(poly)
		blocks = append(blocks, types.CensusBlock{
			GEOID:      geoid,
			Population: pop,
			Display:    display,
			Planar:     project.Geometry(orb.Clone(orb.Geometry(display)), stateplane.ToPlanar),
		})
	}
	return blocks, nil
}

// shpPolygonToOrb splits the flat shapefile point slice into rings and groups
// them by winding: clockwise rings open a new polygon, counter-clockwise
// rings are holes in the preceding one.
func shpPolygonToOrb(poly *shp.Polygon) orb.MultiPolygon {
	numParts := len(poly.Parts)
	var mp orb.MultiPolygon
	for partIdx := 0; partIdx < numParts; partIdx++ {
		start := poly.Parts[partIdx]
		end := int32(len(poly.Points))
		if partIdx+1 < numParts {
			end = poly.Parts[partIdx+1]
		}
		ring := make(orb.Ring, 0, int(end-start))
		for i := start; i < end; i++ {
			pt := poly.Points[i]
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		if len(ring) < 4 {
			continue
		}
		if signedArea(ring) < 0 || len(mp) == 0 {
			// Shapefile outer rings wind clockwise (negative shoelace).
			mp = append(mp, orb.Polygon{ring})
		} else {
			mp[len(mp)-1] = append(mp[len(mp)-1], ring)
		}
	}
	return mp
}

func signedArea(r orb.Ring) float64 {
	var s float64
	for i := 0; i+1 < len(r); i++ {
		s += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	return s / 2
}

// PrepareBlocks filters county blocks to the city (centroid inside any ward)
// and assigns each a ward by centroid containment, falling back to the
// nearest ward for the handful of blocks sitting exactly on a boundary.
// All tests run in the projected CRS.
func PrepareBlocks(blocks []types.CensusBlock, wards []types.Ward) []types.CensusBlock {
	out := make([]types.CensusBlock, 0, len(blocks))
	for _, b := range blocks {
		centroid, _ := planar.CentroidArea(b.Planar)
		ward, inside := wardAt(centroid, wards)
		if !inside {
			continue
		}
		b.Ward = ward
		out = append(out, b)
	}
	return out
}

// wardAt finds the ward containing the point, with a quick bbox reject per
// ward before the full containment test. A point no ward contains is kept
// only when it sits within a few feet of a ward boundary, the centroid of a
// block straddling the seam between two wards. Anything farther out belongs
// to a neighboring municipality and is dropped.
func wardAt(p orb.Point, wards []types.Ward) (string, bool) {
	for _, w := range wards {
		b := w.Planar.Bound()
		if p[0] < b.Min[0] || p[0] > b.Max[0] || p[1] < b.Min[1] || p[1] > b.Max[1] {
			continue
		}
		if containsPoint(w.Planar, p) {
			return w.Ward, true
		}
	}

	// Seam tolerance. Adjacent-city blocks sit well beyond this.
	const seamSnapFt = 10.0
	best, bestDist := "", math.MaxFloat64
	for _, w := range wards {
		if d := boundaryDistance(w.Planar, p); d < bestDist {
			best, bestDist = w.Ward, d
		}
	}
	if bestDist <= seamSnapFt {
		return best, true
	}
	return "", false
}

func containsPoint(g orb.Geometry, p orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(v, p)
	}
	return false
}

func boundaryDistance(g orb.Geometry, p orb.Point) float64 {
	min := math.MaxFloat64
	visit := func(ring orb.Ring) {
		for i := 0; i+1 < len(ring); i++ {
			if d := segmentDistance(ring[i], ring[i+1], p); d < min {
				min = d
			}
		}
	}
	switch v := g.(type) {
	case orb.Polygon:
		for _, r := range v {
			visit(r)
		}
	case orb.MultiPolygon:
		for _, poly := range v {
			for _, r := range poly {
				visit(r)
			}
		}
	}
	return min
}

func segmentDistance(a, b, p orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p[0]-a[0], p[1]-a[1])
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return math.Hypot(p[0]-(a[0]+t*dx), p[1]-(a[1]+t*dy))
}

// WriteBlocks persists a pre-joined block registry as GeoJSON for the
// pipeline to consume directly.
func WriteBlocks(path string, blocks []types.CensusBlock) error {
	fc := geojson.NewFeatureCollection()
	for _, b := range blocks {
		f := geojson.NewFeature(b.Display)
		f.Properties = geojson.Properties{
			"GEOID":  b.GEOID,
			"POP100": b.Population,
			"ward":   b.Ward,
		}
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

func firstAttr(attrs map[string]string, names ...string) string {
	for _, n := range names {
		if v, ok := attrs[n]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func propString(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func propInt(p geojson.Properties, key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}
