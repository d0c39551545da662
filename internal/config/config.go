// Package config carries the engine's tuning values: the planar-CRS
// classification threshold, the ward visualization-geometry parameters, and
// the omnibus payment table. These are hand-curated domain knowledge for
// Jersey City's geography, so they live in data (overridable from a JSON
// file) rather than in the pipeline code.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// OmnibusGroup names one source lot whose billed/paid totals cover several
// sibling lots (one tax certificate spanning an urban-renewal complex). The
// source's totals are split evenly across Lots, replacing whatever each lot
// had on its own.
type OmnibusGroup struct {
	Source string   `json:"source"`
	Lots   []string `json:"lots"`
}

// Config is passed by value into each pipeline stage; nothing mutates it
// after load.
type Config struct {
	// PlanarMinX is the bounding-box minimum-X above which a geometry is
	// assumed to already be in the projected (feet) CRS. Degrees never get
	// near this range; state-plane eastings never fall below it.
	PlanarMinX float64 `json:"planar_min_x"`

	// SimplifyToleranceFt trims vertices from ward display geometries.
	// ~5 ft is invisible at map zoom.
	SimplifyToleranceFt float64 `json:"simplify_tolerance_ft"`

	// BufferDistanceFt is the dilate-then-erode distance for the merged ward
	// boundary. ~50 ft spans a typical street right-of-way, so lots across a
	// street fuse into one shape.
	BufferDistanceFt float64 `json:"buffer_distance_ft"`

	// MinHoleAreaSqFt drops interior holes smaller than this from the merged
	// ward boundary (street-width artifacts); holes at or above it survive
	// (parks, reservoirs). 200,000 sqft is about five acres.
	MinHoleAreaSqFt float64 `json:"min_hole_area_sqft"`

	Omnibus []OmnibusGroup `json:"omnibus"`
}

// Default returns the Jersey City configuration.
func Default() Config {
	return Config{
		PlanarMinX:          1000,
		SimplifyToleranceFt: 5,
		BufferDistanceFt:    50,
		MinHoleAreaSqFt:     200000,
		Omnibus: []OmnibusGroup{
			// One certificate on 18702-29 covers the whole complex.
			{Source: "18702-29", Lots: []string{"18702-27", "18702-28", "18702-29"}},
		},
	}
}

// Load reads a JSON override file on top of the defaults. Only keys present
// in the file change; an omnibus array, if present, replaces the default
// table outright.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
