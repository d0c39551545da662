// Package output serializes aggregate rows into GeoJSON FeatureCollections.
package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one output row: a display geometry plus its properties.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]interface{}
}

// decimals fixes the rounding per numeric property: currency and ratios to
// cents, area to a tenth of a square foot.
var decimals = map[string]int{
	"paid":            2,
	"billed":          2,
	"area_sqft":       1,
	"paid_per_sqft":   2,
	"paid_per_capita": 2,
}

// Filename is deterministic per (year, level suffix):
// taxes-2024.geojson, taxes-2024-units.geojson, taxes-2024-wards.geojson, ...
func Filename(dir string, year int, suffix string) string {
	return filepath.Join(dir, fmt.Sprintf("taxes-%d%s.geojson", year, suffix))
}

// Write persists the features as one FeatureCollection, applying the
// rounding rules on the way out.
func Write(path string, feats []Feature) error {
	fc := geojson.NewFeatureCollection()
	for _, ft := range feats {
		f := geojson.NewFeature(ft.Geometry)
		props := make(geojson.Properties, len(ft.Properties))
		for k, v := range ft.Properties {
			if places, ok := decimals[k]; ok {
				if n, ok := v.(float64); ok {
					v = roundTo(n, places)
				}
			}
			props[k] = v
		}
		f.Properties = props
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal feature collection: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	return nil
}

// Read loads a FeatureCollection back; used by tests and downstream tooling.
func Read(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
