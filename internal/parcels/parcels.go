// Package parcels reads parcel fragment rows from the open-data exports and
// caches them in a sqlite store. CSV rows carry geometry as a GeoJSON string
// in the geo_shape column; the store keeps it as WKB, so both textual and
// binary arms of the normalizer see real traffic.
package parcels

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"

	"github.com/runsascoded/jc-taxes/internal/geometry"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// Row is one raw parcel record: identity columns plus an unresolved geometry.
type Row struct {
	Block string
	Lot   string
	Qual  string
	HAdd  string
	HNum  string
	Raw   geometry.Raw
}

// ReadCSV reads the open-data CSV export. Column lookup is by header name,
// so column order does not matter; the delimiter is detected from the header
// line (the city portal exports semicolons).
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	firstLine, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	comma := ','
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		comma = ';'
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{
			Block: get(rec, "block"),
			Lot:   get(rec, "lot"),
			Qual:  get(rec, "qual"),
			HAdd:  get(rec, "hadd"),
			HNum:  get(rec, "hnum"),
			Raw:   geometry.RawGeoJSON(get(rec, "geo_shape")),
		})
	}
	return rows, nil
}

// ReadGeoJSON reads parcels from a FeatureCollection export.
func ReadGeoJSON(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	rows := make([]Row, 0, len(fc.Features))
	for _, f := range fc.Features {
		rows = append(rows, Row{
			Block: propString(f.Properties, "block"),
			Lot:   propString(f.Properties, "lot"),
			Qual:  propString(f.Properties, "qual"),
			HAdd:  propString(f.Properties, "hadd"),
			HNum:  propString(f.Properties, "hnum"),
			Raw:   geometry.RawParsed(f.Geometry),
		})
	}
	return rows, nil
}

func propString(p geojson.Properties, key string) string {
	if s, ok := p[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

const schema = `
CREATE TABLE IF NOT EXISTS parcels (
	block TEXT NOT NULL,
	lot   TEXT NOT NULL,
	qual  TEXT NOT NULL DEFAULT '',
	hadd  TEXT NOT NULL DEFAULT '',
	hnum  TEXT NOT NULL DEFAULT '',
	geom  BLOB
);
CREATE INDEX IF NOT EXISTS idx_parcels_block_lot ON parcels(block, lot);
`

// Import parses each row's geometry and stores it as WKB in the sqlite file
// at dbPath. Unparseable rows are skipped and counted, never fatal.
func Import(ctx context.Context, rows []Row, dbPath string) (stored, skipped int, err error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return 0, 0, fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO parcels (block, lot, qual, hadd, hnum, geom) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return 0, 0, err
	}
	defer stmt.Close()

	for _, row := range rows {
		g, decodeErr := decodeRaw(row.Raw)
		if decodeErr != nil {
			skipped++
			continue
		}
		blob, mErr := wkb.Marshal(g)
		if mErr != nil {
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, row.Block, row.Lot, row.Qual, row.HAdd, row.HNum, blob); err != nil {
			tx.Rollback()
			return stored, skipped, err
		}
		stored++
	}
	if err := tx.Commit(); err != nil {
		return stored, skipped, err
	}
	if skipped > 0 {
		log.Printf("import-parcels: skipped %d rows with bad geometry", skipped)
	}
	return stored, skipped, nil
}

// decodeRaw parses a raw geometry without any CRS handling; Import only
// needs bytes it can round-trip through WKB.
func decodeRaw(raw geometry.Raw) (orb.Geometry, error) {
	switch raw.Encoding {
	case geometry.WellKnownBinary:
		if len(raw.WKB) == 0 {
			return nil, geometry.ErrMissingGeometry
		}
		return wkb.Unmarshal(raw.WKB)
	case geometry.GeoJSONText:
		if raw.Text == "" {
			return nil, geometry.ErrMissingGeometry
		}
		gg, err := geojson.UnmarshalGeometry([]byte(raw.Text))
		if err != nil {
			return nil, err
		}
		return gg.Geometry(), nil
	case geometry.Parsed:
		if raw.Geometry == nil {
			return nil, geometry.ErrMissingGeometry
		}
		return raw.Geometry, nil
	}
	return nil, geometry.ErrMissingGeometry
}

// Load reads parcel rows back out of the sqlite store, geometry still in WKB
// so the normalizer resolves it like any other source.
func Load(ctx context.Context, dbPath string) ([]Row, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("parcels database %s not found (run `jctax import-parcels` first)", dbPath)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	res, err := db.QueryContext(ctx, `SELECT block, lot, qual, hadd, hnum, geom FROM parcels`)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var rows []Row
	for res.Next() {
		var r Row
		var blob []byte
		if err := res.Scan(&r.Block, &r.Lot, &r.Qual, &r.HAdd, &r.HNum, &blob); err != nil {
			return nil, err
		}
		r.Raw = geometry.RawWKB(blob)
		rows = append(rows, r)
	}
	return rows, res.Err()
}

// Read loads parcel rows from a path, dispatching on extension: .csv,
// .geojson/.json, or the sqlite store.
func Read(ctx context.Context, path string) ([]Row, error) {
	switch {
	case strings.HasSuffix(path, ".csv"):
		return ReadCSV(path)
	case strings.HasSuffix(path, ".geojson"), strings.HasSuffix(path, ".json"):
		return ReadGeoJSON(path)
	default:
		return Load(ctx, path)
	}
}

// Normalize resolves raw rows into parcel fragments, dropping records the
// normalizer refuses. Skip totals stay on the normalizer for the caller to
// report.
func Normalize(rows []Row, n *geometry.Normalizer) []types.ParcelFragment {
	frags := make([]types.ParcelFragment, 0, len(rows))
	for _, row := range rows {
		norm, err := n.Normalize(row.Raw)
		if err != nil {
			continue
		}
		frags = append(frags, types.ParcelFragment{
			Block:    row.Block,
			Lot:      row.Lot,
			Qual:     row.Qual,
			HAdd:     row.HAdd,
			HNum:     row.HNum,
			Display:  norm.Display,
			Planar:   norm.Planar,
			AreaSqFt: norm.AreaSqFt,
		})
	}
	return frags
}
