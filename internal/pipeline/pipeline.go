package pipeline

import (
	"fmt"
	"log"

	"github.com/paulmach/orb/geojson"

	"github.com/runsascoded/jc-taxes/internal/config"
	"github.com/runsascoded/jc-taxes/internal/output"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// Pipeline is the one-shot batch transform for a (year, level) request. The
// registries are loaded once and read-only; every run consumes the complete
// output of the prior stage before the next starts.
type Pipeline struct {
	Cfg    config.Config
	Blocks []types.CensusBlock
	Wards  []types.Ward
}

// Run produces the aggregate features for one tax year at one level. The
// payment slice must already be filtered to the year; fragments must already
// be normalized.
func (p *Pipeline) Run(year int, level Level, frags []types.ParcelFragment, pays []types.Payment, enr types.Enrichment) ([]output.Feature, error) {
	sums := SumPayments(pays, level.paymentKey)
	if level.usesOmnibus() {
		ApplyOmnibus(sums, p.Cfg.Omnibus)
	}

	records, dropped := DissolveFragments(frags, level.fragmentKey)
	if dropped > 0 {
		log.Printf("dropped %d %s groups with failed dissolves", dropped, level)
	}
	JoinPayments(records, sums)

	switch level {
	case LevelUnit, LevelLot, LevelBlock:
		return parcelFeatures(records, frags, year, level, enr), nil
	case LevelCensus, LevelWard:
		// fall through below
	default:
		return nil, fmt.Errorf("unknown level %q", level)
	}

	if len(p.Blocks) == 0 {
		return nil, fmt.Errorf("census-block registry is empty; %s aggregation needs it", level)
	}

	overlay, err := Allocate(records, p.Blocks)
	if err != nil {
		return nil, fmt.Errorf("overlay allocation: %w", err)
	}
	if overlay.UnallocatedPaid > 0 {
		log.Printf("$%.2f paid falls outside census geography and is not allocated", overlay.UnallocatedPaid)
	}

	censusRows := AggregateCensus(overlay.Fragments, p.Blocks)
	if level == LevelCensus {
		return censusFeatures(censusRows, year), nil
	}

	wardRows, err := AggregateWards(censusRows, overlay.Fragments, p.Wards, p.Cfg)
	if err != nil {
		return nil, fmt.Errorf("ward aggregation: %w", err)
	}
	return wardFeatures(wardRows, year), nil
}

// parcelFeatures builds unit/lot/city-block rows straight from dissolved
// records.
func parcelFeatures(records []types.LotRecord, frags []types.ParcelFragment, year int, level Level, enr types.Enrichment) []output.Feature {
	// Qualifier by unit key, for unit-level properties.
	quals := make(map[string]string)
	if level == LevelUnit {
		for _, f := range frags {
			quals[f.UnitKey()] = f.Qual
		}
	}

	feats := make([]output.Feature, 0, len(records))
	for _, rec := range records {
		paidPerSqFt := 0.0
		if rec.AreaSqFt > 0 {
			paidPerSqFt = rec.Paid / rec.AreaSqFt
		}
		props := map[string]interface{}{
			"block":         rec.Block,
			"year":          year,
			"paid":          rec.Paid,
			"billed":        rec.Billed,
			"area_sqft":     rec.AreaSqFt,
			"paid_per_sqft": paidPerSqFt,
		}
		if level != LevelBlock {
			props["lot"] = rec.Lot
			if rec.HAdd != "" {
				props["hadd"] = rec.HAdd
			}
			if rec.HNum != "" {
				props["hnum"] = rec.HNum
			}
		}

		var info types.OwnerInfo
		var found bool
		switch level {
		case LevelUnit:
			props["qual"] = quals[rec.Key]
			info, found = enr.ByUnit[rec.Key]
			if !found {
				info, found = enr.ByLot[types.LotKey(rec.Block, rec.Lot)]
			}
		case LevelLot:
			info, found = enr.ByLot[rec.Key]
		}
		if found {
			if info.Owner != "" {
				props["owner"] = info.Owner
			}
			if info.Address != "" {
				props["addr"] = info.Address
			}
		}

		feats = append(feats, output.Feature{Geometry: rec.Display, Properties: props})
	}
	return feats
}

func censusFeatures(rows []CensusRow, year int) []output.Feature {
	feats := make([]output.Feature, 0, len(rows))
	for _, row := range rows {
		props := map[string]interface{}{
			"geoid":         row.Block.GEOID,
			"ward":          row.Block.Ward,
			"year":          year,
			"paid":          row.Paid,
			"billed":        row.Billed,
			"area_sqft":     row.AreaSqFt,
			"paid_per_sqft": row.PaidPerSqFt(),
			"population":    row.Block.Population,
		}
		if pc, ok := row.PaidPerCapita(); ok {
			props["paid_per_capita"] = pc
		}
		feats = append(feats, output.Feature{Geometry: row.Block.Display, Properties: props})
	}
	return feats
}

func wardFeatures(rows []WardRow, year int) []output.Feature {
	feats := make([]output.Feature, 0, len(rows))
	for _, row := range rows {
		props := map[string]interface{}{
			"ward":           row.Ward.Ward,
			"council_person": row.Ward.CouncilPerson,
			"year":           year,
			"paid":           row.Paid,
			"billed":         row.Billed,
			"area_sqft":      row.AreaSqFt,
			"paid_per_sqft":  row.PaidPerSqFt(),
			"population":     row.Population,
			"boundary":       geojson.NewGeometry(row.Ward.Display),
		}
		if pc, ok := row.PaidPerCapita(); ok {
			props["paid_per_capita"] = pc
		}
		if row.LotsFootprint != nil {
			props["lots"] = geojson.NewGeometry(row.LotsFootprint)
		}
		if row.BlockOutline != nil {
			props["blocks"] = geojson.NewGeometry(row.BlockOutline)
		}

		geom := row.Merged
		if geom == nil {
			// Wards with no parcel coverage at all still render their
			// registry boundary.
			geom = row.Ward.Display
		}
		feats = append(feats, output.Feature{Geometry: geom, Properties: props})
	}
	return feats
}
