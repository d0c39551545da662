package types

import (
	"strings"

	"github.com/paulmach/orb"
)

// ParcelFragment is one geometry row from the parcels dataset. Condo buildings
// appear as several fragments sharing a block-lot, one per unit qualifier.
type ParcelFragment struct {
	Block string
	Lot   string
	Qual  string

	// House address fields from the open-data export.
	HAdd string
	HNum string

	Display  orb.Geometry // WGS84, for rendering
	Planar   orb.Geometry // NJ State Plane (US survey feet), for area math
	AreaSqFt float64
}

// LotKey returns the block-lot join key shared by all fragments of a lot.
func (f ParcelFragment) LotKey() string {
	return LotKey(f.Block, f.Lot)
}

// UnitKey returns the block-lot-qualifier key identifying a single unit.
func (f ParcelFragment) UnitKey() string {
	return UnitKey(f.Block, f.Lot, f.Qual)
}

// LotKey builds a block-lot join key.
func LotKey(block, lot string) string {
	return strings.TrimSpace(block) + "-" + strings.TrimSpace(lot)
}

// UnitKey builds a block-lot-qualifier join key. The qualifier is appended
// even when empty so parcel and payment keys line up either way.
func UnitKey(block, lot, qual string) string {
	return LotKey(block, lot) + "-" + strings.TrimSpace(qual)
}

// LotRecord is a tax-paying lot after its fragments have been dissolved.
type LotRecord struct {
	Key   string
	Block string
	Lot   string

	HAdd string
	HNum string

	Display  orb.Geometry
	Planar   orb.Geometry
	AreaSqFt float64

	Paid   float64
	Billed float64
}

// CensusBlock is one census geography unit from the pre-joined registry.
type CensusBlock struct {
	GEOID      string
	Population int
	Ward       string

	Display orb.Geometry
	Planar  orb.Geometry
}

// Ward is one of the city's administrative wards.
type Ward struct {
	Ward          string
	CouncilPerson string

	Display orb.Geometry
	Planar  orb.Geometry
}

// OverlayFragment is the polygonal intersection of one lot and one census
// block, carrying the lot's payment scaled by the overlap share.
type OverlayFragment struct {
	LotKey    string
	CityBlock string
	GEOID     string
	Ward      string

	Planar   orb.MultiPolygon
	AreaSqFt float64

	// Weight is intersection area over total lot area.
	Weight float64
	Paid   float64
	Billed float64
}

// Payment is one ledger row: what a block-lot-qualifier billed and paid in a
// tax year. Paid has already been flipped to a magnitude by the extractor.
type Payment struct {
	AccountNumber int64
	Block         string
	Lot           string
	Qualifier     string
	Year          int
	Billed        float64
	Paid          float64
}

// LotKey returns the payment's block-lot join key.
func (p Payment) LotKey() string {
	return LotKey(p.Block, p.Lot)
}

// UnitKey returns the payment's block-lot-qualifier join key.
func (p Payment) UnitKey() string {
	return UnitKey(p.Block, p.Lot, p.Qualifier)
}

// Enrichment holds optional address/owner strings keyed by block-lot and
// block-lot-qualifier. It decorates output properties and never feeds the
// allocation math.
type Enrichment struct {
	ByLot  map[string]OwnerInfo
	ByUnit map[string]OwnerInfo
}

// OwnerInfo is the owner/address pair stored per account.
type OwnerInfo struct {
	Owner   string
	Address string
}
