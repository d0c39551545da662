// Package pipeline runs the batch transform from parcel fragments and
// payment rows to map-ready aggregate features, at any of five
// granularities. One parameterized path covers unit/lot/city-block output;
// census-block and ward levels continue through the overlay allocator.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/runsascoded/jc-taxes/internal/types"
)

// Level is the aggregation granularity of one run.
type Level string

const (
	LevelUnit   Level = "unit"
	LevelLot    Level = "lot"
	LevelBlock  Level = "block"
	LevelCensus Level = "census"
	LevelWard   Level = "ward"
)

// ParseLevel accepts the level names and their plural/hyphenated aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unit", "units":
		return LevelUnit, nil
	case "lot", "lots":
		return LevelLot, nil
	case "block", "blocks":
		return LevelBlock, nil
	case "census", "census-block", "census-blocks", "censusblock":
		return LevelCensus, nil
	case "ward", "wards":
		return LevelWard, nil
	}
	return "", fmt.Errorf("unknown aggregation level %q (want unit, lot, block, census, or ward)", s)
}

// Suffix is the output filename suffix; lot level is the unadorned default.
func (l Level) Suffix() string {
	switch l {
	case LevelUnit:
		return "-units"
	case LevelBlock:
		return "-blocks"
	case LevelCensus:
		return "-census"
	case LevelWard:
		return "-wards"
	}
	return ""
}

// fragmentKey is the dissolve key for parcel fragments at this level.
// Census and ward levels allocate from lot records, so they group by lot.
func (l Level) fragmentKey(f types.ParcelFragment) string {
	switch l {
	case LevelUnit:
		return f.UnitKey()
	case LevelBlock:
		return strings.TrimSpace(f.Block)
	default:
		return f.LotKey()
	}
}

// paymentKey is the matching join key for ledger rows.
func (l Level) paymentKey(p types.Payment) string {
	switch l {
	case LevelUnit:
		return p.UnitKey()
	case LevelBlock:
		return strings.TrimSpace(p.Block)
	default:
		return p.LotKey()
	}
}

// usesOmnibus reports whether the omnibus redistribution applies. It is
// keyed by lot, so it runs for lot granularity and for everything built on
// lot records (census, ward), never for unit or city-block output, where
// splitting one certificate across sibling lots would double count.
func (l Level) usesOmnibus() bool {
	switch l {
	case LevelLot, LevelCensus, LevelWard:
		return true
	}
	return false
}
