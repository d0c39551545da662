package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/runsascoded/jc-taxes/internal/types"
)

// accountResponse mirrors the tax system's GetAccountDetails payload, pared
// down to the fields the extractor needs.
type accountResponse struct {
	Account struct {
		AccountNumber int64  `json:"AccountNumber"`
		Block         string `json:"Block"`
		Lot           string `json:"Lot"`
		Qualifier     string `json:"Qualifier"`
		OwnerName     string `json:"OwnerName"`
		Address       string `json:"Address"`
		Details       []struct {
			TaxYear int     `json:"TaxYear"`
			Billed  float64 `json:"Billed"`
			Paid    float64 `json:"Paid"`
		} `json:"Details"`
	} `json:"accountInquiryVM"`
}

// ExtractStats reports what an extraction run processed.
type ExtractStats struct {
	Files    int
	Accounts int
	Payments int
	Skipped  int
}

// Extract walks a cache directory of per-account JSON responses, aggregates
// each account's transaction details by tax year, and writes the result into
// the sqlite payments database at dbPath. Paid amounts carry a negative sign
// in the billing system; they are stored as magnitudes.
func Extract(ctx context.Context, cacheDir, dbPath string) (ExtractStats, error) {
	var stats ExtractStats

	paths, err := filepath.Glob(filepath.Join(cacheDir, "*.json"))
	if err != nil {
		return stats, err
	}
	if len(paths) == 0 {
		return stats, fmt.Errorf("no cached account files in %s", cacheDir)
	}
	log.Printf("Processing %d cached files...", len(paths))

	db, err := Create(dbPath)
	if err != nil {
		return stats, err
	}
	defer db.Close()

	var pays []types.Payment
	var accts []Account
	for i, path := range paths {
		if (i+1)%10000 == 0 {
			log.Printf("  %d/%d", i+1, len(paths))
		}
		stats.Files++

		data, err := os.ReadFile(path)
		if err != nil {
			stats.Skipped++
			continue
		}
		var resp accountResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			stats.Skipped++
			continue
		}
		a := resp.Account
		if len(a.Details) == 0 {
			stats.Skipped++
			continue
		}

		block := strings.TrimSpace(a.Block)
		lot := strings.TrimSpace(a.Lot)
		qual := strings.TrimSpace(a.Qualifier)

		byYear := make(map[int]*types.Payment)
		for _, d := range a.Details {
			if d.TaxYear == 0 {
				continue
			}
			p, ok := byYear[d.TaxYear]
			if !ok {
				p = &types.Payment{
					AccountNumber: a.AccountNumber,
					Block:         block,
					Lot:           lot,
					Qualifier:     qual,
					Year:          d.TaxYear,
				}
				byYear[d.TaxYear] = p
			}
			p.Billed += d.Billed
			p.Paid += d.Paid
		}

		years := make([]int, 0, len(byYear))
		for y := range byYear {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			p := byYear[y]
			p.Paid = math.Abs(p.Paid)
			pays = append(pays, *p)
		}

		accts = append(accts, Account{
			AccountNumber: a.AccountNumber,
			Block:         block,
			Lot:           lot,
			Qualifier:     qual,
			Owner:         strings.TrimSpace(a.OwnerName),
			Address:       strings.TrimSpace(a.Address),
		})
		stats.Accounts++
	}

	if err := db.InsertPayments(ctx, pays); err != nil {
		return stats, fmt.Errorf("insert payments: %w", err)
	}
	if err := db.InsertAccounts(ctx, accts); err != nil {
		return stats, fmt.Errorf("insert accounts: %w", err)
	}
	stats.Payments = len(pays)
	log.Printf("Extracted %d year-account records from %d accounts", stats.Payments, stats.Accounts)
	return stats, nil
}
