package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCacheFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestExtract(t *testing.T) {
	cacheDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "payments.db")

	// Two quarterly transactions in 2024 plus one in 2023. Paid comes in
	// negative from the billing system.
	writeCacheFile(t, cacheDir, "123456.json", `{
		"accountInquiryVM": {
			"AccountNumber": 123456,
			"Block": " 100", "Lot": "5 ", "Qualifier": "C0001",
			"OwnerName": "A. SMITH", "Address": "25 MONTGOMERY ST 1A",
			"Details": [
				{"TaxYear": 2024, "Billed": 550, "Paid": -500},
				{"TaxYear": 2024, "Billed": 550, "Paid": -500},
				{"TaxYear": 2023, "Billed": 1000, "Paid": -900}
			]
		}
	}`)
	// No transaction details at all: skipped.
	writeCacheFile(t, cacheDir, "999.json", `{"accountInquiryVM": {"AccountNumber": 999, "Details": []}}`)
	// Unparseable: skipped, not fatal.
	writeCacheFile(t, cacheDir, "bad.json", `{"accountInquiryVM":`)

	stats, err := Extract(context.Background(), cacheDir, dbPath)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.Equal(t, 1, stats.Accounts)
	assert.Equal(t, 2, stats.Payments)
	assert.Equal(t, 2, stats.Skipped)

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	pays, err := db.PaymentsForYear(context.Background(), 2024)
	require.NoError(t, err)
	require.Len(t, pays, 1)
	p := pays[0]
	assert.Equal(t, int64(123456), p.AccountNumber)
	// Identity fields come out trimmed.
	assert.Equal(t, "100", p.Block)
	assert.Equal(t, "5", p.Lot)
	assert.Equal(t, "C0001", p.Qualifier)
	// Quarterly rows sum per year and the paid sign flips to a magnitude.
	assert.InDelta(t, 1100.0, p.Billed, 1e-9)
	assert.InDelta(t, 1000.0, p.Paid, 1e-9)

	enr, err := db.Enrichment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A. SMITH", enr.ByUnit["100-5-C0001"].Owner)
}

func TestExtractEmptyCacheDir(t *testing.T) {
	_, err := Extract(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "payments.db"))
	assert.Error(t, err)
}
