// jctax builds Jersey City property-tax GeoJSON aggregates from parcel
// geometry and scraped payment records.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/runsascoded/jc-taxes/internal/config"
	"github.com/runsascoded/jc-taxes/internal/database"
	"github.com/runsascoded/jc-taxes/internal/geometry"
	"github.com/runsascoded/jc-taxes/internal/ledger"
	"github.com/runsascoded/jc-taxes/internal/output"
	"github.com/runsascoded/jc-taxes/internal/parcels"
	"github.com/runsascoded/jc-taxes/internal/pipeline"
	"github.com/runsascoded/jc-taxes/internal/registry"
	"github.com/runsascoded/jc-taxes/internal/types"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "geojson":
		err = runGeoJSON(args)
	case "extract-payments":
		err = runExtractPayments(args)
	case "import-parcels":
		err = runImportParcels(args)
	case "prep-census":
		err = runPrepCensus(args)
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func printUsage() {
	fmt.Println("Usage: jctax <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  geojson           Generate aggregate GeoJSON for a tax year")
	fmt.Println("  extract-payments  Build the payments database from cached account JSON")
	fmt.Println("  import-parcels    Import the parcels export into the local store")
	fmt.Println("  prep-census       Filter county census blocks to JC and assign wards")
}

func runGeoJSON(args []string) error {
	fs := flag.NewFlagSet("geojson", flag.ExitOnError)
	year := fs.Int("year", 2024, "Tax year")
	levelName := fs.String("level", "lot", "Aggregation level: unit, lot, block, census, ward")
	dataDir := fs.String("data", "data", "Data directory")
	outDir := fs.String("out", filepath.Join("www", "public"), "Output directory")
	cfgPath := fs.String("config", "", "Engine config JSON (defaults are for JC)")
	source := fs.String("source", "sqlite", "Payment source: sqlite or oracle")
	parcelsPath := fs.String("parcels", "", "Parcels path (.csv, .geojson, or sqlite store; default data/parcels.db)")
	fs.Parse(args)

	level, err := pipeline.ParseLevel(*levelName)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}

	ctx := context.Background()
	start := time.Now()

	// Parcels
	pp := *parcelsPath
	if pp == "" {
		pp = filepath.Join(*dataDir, "parcels.db")
	}
	rows, err := parcels.Read(ctx, pp)
	if err != nil {
		return err
	}
	norm := geometry.NewNormalizer(cfg)
	frags := parcels.Normalize(rows, norm)
	log.Printf("Loaded %d parcel fragments from %s in %v (%d skipped: %d missing, %d unparseable, %d ambiguous CRS)",
		len(frags), pp, time.Since(start).Truncate(time.Millisecond),
		norm.Skipped(), norm.SkippedMissing, norm.SkippedParse, norm.SkippedAmbiguous)

	// Payments + enrichment
	pays, enr, err := loadPayments(ctx, *source, *dataDir, *year)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d payment records for %d", len(pays), *year)

	// Registries, only needed past lot/block level
	p := pipeline.Pipeline{Cfg: cfg}
	if level == pipeline.LevelCensus || level == pipeline.LevelWard {
		blocks, err := registry.LoadBlocks(filepath.Join(*dataDir, "census", "jc-blocks.geojson"))
		if err != nil {
			return err
		}
		wards, err := registry.LoadWards(filepath.Join(*dataDir, "census", "jc-wards.geojson"))
		if err != nil {
			return err
		}
		p.Blocks = blocks
		p.Wards = wards
		log.Printf("Loaded %d census blocks, %d wards", len(blocks), len(wards))
	}

	feats, err := p.Run(*year, level, frags, pays, enr)
	if err != nil {
		return err
	}

	path := output.Filename(*outDir, *year, level.Suffix())
	if err := output.Write(path, feats); err != nil {
		return err
	}
	log.Printf("Wrote %d features to %s in %v", len(feats), path, time.Since(start).Truncate(time.Millisecond))
	return nil
}

func loadPayments(ctx context.Context, source, dataDir string, year int) ([]types.Payment, types.Enrichment, error) {
	var enr types.Enrichment
	switch source {
	case "sqlite":
		db, err := ledger.Open(filepath.Join(dataDir, "payments.db"))
		if err != nil {
			return nil, enr, err
		}
		defer db.Close()
		pays, err := db.PaymentsForYear(ctx, year)
		if err != nil {
			return nil, enr, err
		}
		enr, err = db.Enrichment(ctx)
		if err != nil {
			return nil, enr, err
		}
		return pays, enr, nil
	case "oracle":
		cfg := database.LoadConfig()
		if cfg.Password == "" {
			fmt.Fprintf(os.Stderr, "Oracle password for %s: ", cfg.Username)
			pw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return nil, enr, err
			}
			cfg.Password = strings.TrimSpace(string(pw))
		}
		db, err := database.New(cfg)
		if err != nil {
			return nil, enr, err
		}
		defer db.Close()
		pays, err := db.YearPayments(ctx, year)
		if err != nil {
			return nil, enr, err
		}
		accts, err := db.Accounts(ctx)
		if err != nil {
			return nil, enr, err
		}
		enr = types.Enrichment{
			ByLot:  make(map[string]types.OwnerInfo),
			ByUnit: make(map[string]types.OwnerInfo),
		}
		for _, a := range accts {
			info := types.OwnerInfo{Owner: a.Owner, Address: a.Address}
			enr.ByUnit[types.UnitKey(a.Block, a.Lot, a.Qualifier)] = info
			lotKey := types.LotKey(a.Block, a.Lot)
			if _, ok := enr.ByLot[lotKey]; !ok {
				enr.ByLot[lotKey] = info
			}
		}
		return pays, enr, nil
	}
	return nil, enr, fmt.Errorf("unknown payment source %q", source)
}

func runExtractPayments(args []string) error {
	fs := flag.NewFlagSet("extract-payments", flag.ExitOnError)
	cacheDir := fs.String("cache", filepath.Join("data", "cache"), "Cache directory of account JSON files")
	out := fs.String("out", filepath.Join("data", "payments.db"), "Output sqlite database")
	fs.Parse(args)

	stats, err := ledger.Extract(context.Background(), *cacheDir, *out)
	if err != nil {
		return err
	}
	log.Printf("Done: %d files, %d accounts, %d payment rows, %d skipped", stats.Files, stats.Accounts, stats.Payments, stats.Skipped)
	return nil
}

func runImportParcels(args []string) error {
	fs := flag.NewFlagSet("import-parcels", flag.ExitOnError)
	in := fs.String("in", "", "Parcels export (.csv or .geojson)")
	out := fs.String("out", filepath.Join("data", "parcels.db"), "Output sqlite store")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("-in is required (download from the city open-data portal)")
	}
	ctx := context.Background()
	rows, err := parcels.Read(ctx, *in)
	if err != nil {
		return err
	}
	stored, skipped, err := parcels.Import(ctx, rows, *out)
	if err != nil {
		return err
	}
	log.Printf("Imported %d parcels to %s (%d skipped)", stored, *out, skipped)
	return nil
}

func runPrepCensus(args []string) error {
	fs := flag.NewFlagSet("prep-census", flag.ExitOnError)
	blocksPath := fs.String("blocks", filepath.Join("data", "census", "hudson-blocks-geo.geojson"), "County census blocks (.geojson or TIGER .shp)")
	wardsPath := fs.String("wards", filepath.Join("data", "census", "jc-wards.geojson"), "Ward boundaries GeoJSON")
	out := fs.String("out", filepath.Join("data", "census", "jc-blocks.geojson"), "Output pre-joined registry")
	fs.Parse(args)

	wards, err := registry.LoadWards(*wardsPath)
	if err != nil {
		return err
	}
	raw, err := registry.LoadRawBlocks(*blocksPath)
	if err != nil {
		return err
	}
	blocks := registry.PrepareBlocks(raw, wards)
	log.Printf("Filtered %d county blocks to %d city blocks", len(raw), len(blocks))

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		return err
	}
	if err := registry.WriteBlocks(*out, blocks); err != nil {
		return err
	}
	log.Printf("Wrote %s", *out)
	return nil
}
