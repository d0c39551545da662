package pipeline

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/runsascoded/jc-taxes/internal/config"
	"github.com/runsascoded/jc-taxes/internal/geometry"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// PaySum is the billed/paid total joined onto one dissolve key.
type PaySum struct {
	Paid   float64
	Billed float64
}

// SumPayments folds ledger rows into per-key totals. Multi-unit buildings
// contribute one row per unit; at lot granularity they sum here.
func SumPayments(pays []types.Payment, key func(types.Payment) string) map[string]PaySum {
	sums := make(map[string]PaySum)
	for _, p := range pays {
		k := key(p)
		s := sums[k]
		s.Paid += p.Paid
		s.Billed += p.Billed
		sums[k] = s
	}
	return sums
}

// ApplyOmnibus rewrites payment sums for each omnibus group: the source
// lot's totals are split evenly across every lot in the group, replacing
// whatever each had (and creating entries for lots with no payment of their
// own). It runs exactly once per pipeline run, before overlay allocation,
// and preserves each group's total.
func ApplyOmnibus(sums map[string]PaySum, groups []config.OmnibusGroup) {
	for _, g := range groups {
		if len(g.Lots) == 0 {
			continue
		}
		src, ok := sums[g.Source]
		if !ok {
			continue
		}
		share := PaySum{
			Paid:   src.Paid / float64(len(g.Lots)),
			Billed: src.Billed / float64(len(g.Lots)),
		}
		for _, lot := range g.Lots {
			sums[lot] = share
		}
	}
}

// DissolveFragments groups fragments by key and unions each group's
// geometry into one record. Single-fragment groups pass through without a
// union. Groups whose union fails are dropped and counted, never fatal.
func DissolveFragments(frags []types.ParcelFragment, key func(types.ParcelFragment) string) (records []types.LotRecord, dropped int) {
	groups := make(map[string][]types.ParcelFragment)
	order := make([]string, 0)
	for _, f := range frags {
		k := key(f)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], f)
	}
	sort.Strings(order)

	for _, k := range order {
		group := groups[k]
		first := group[0]
		rec := types.LotRecord{
			Key:   k,
			Block: first.Block,
			Lot:   first.Lot,
			HAdd:  first.HAdd,
			HNum:  first.HNum,
		}
		if len(group) == 1 {
			rec.Display = first.Display
			rec.Planar = first.Planar
			rec.AreaSqFt = first.AreaSqFt
		} else {
			planarParts := make([]orb.Geometry, len(group))
			displayParts := make([]orb.Geometry, len(group))
			for i, f := range group {
				planarParts[i] = f.Planar
				displayParts[i] = f.Display
			}
			planarUnion, err := geometry.Dissolve(planarParts...)
			if err != nil {
				dropped++
				continue
			}
			displayUnion, err := geometry.Dissolve(displayParts...)
			if err != nil {
				dropped++
				continue
			}
			rec.Planar = planarUnion
			rec.Display = displayUnion
			rec.AreaSqFt = geometry.Area(planarUnion)
		}
		records = append(records, rec)
	}
	return records, dropped
}

// JoinPayments attaches per-key payment sums to dissolved records. Keys with
// no ledger row default to zero; that is a join miss, not an error.
func JoinPayments(records []types.LotRecord, sums map[string]PaySum) {
	for i := range records {
		s := sums[records[i].Key]
		records[i].Paid = s.Paid
		records[i].Billed = s.Billed
	}
}
