// Package ledger stores and serves the per-account yearly payment rows the
// pipeline joins against. The original project kept these in parquet; here
// they live in a sqlite file built by Extract (or the Oracle source).
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/runsascoded/jc-taxes/internal/types"
)

// ErrNoDatabase means the payments database has not been built yet. This is
// the one fatal condition in the pipeline: there is nothing to aggregate.
var ErrNoDatabase = errors.New("payments database not found")

const schema = `
CREATE TABLE IF NOT EXISTS payments (
	account_number INTEGER,
	block          TEXT NOT NULL,
	lot            TEXT NOT NULL,
	qualifier      TEXT NOT NULL DEFAULT '',
	year           INTEGER NOT NULL,
	billed         REAL NOT NULL DEFAULT 0,
	paid           REAL NOT NULL DEFAULT 0,
	-- Accounts with no number in the source all decode to 0; keying on the
	-- parcel identity too keeps them from overwriting each other while
	-- re-extraction stays idempotent.
	PRIMARY KEY (account_number, block, lot, qualifier, year)
);
CREATE INDEX IF NOT EXISTS idx_payments_year ON payments(year);

CREATE TABLE IF NOT EXISTS accounts (
	account_number INTEGER PRIMARY KEY,
	block          TEXT NOT NULL,
	lot            TEXT NOT NULL,
	qualifier      TEXT NOT NULL DEFAULT '',
	owner_name     TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT ''
);
`

// Account is the per-account identity row used for owner/address enrichment.
type Account struct {
	AccountNumber int64
	Block         string
	Lot           string
	Qualifier     string
	Owner         string
	Address       string
}

// DB wraps the sqlite payments store.
type DB struct {
	db *sql.DB
}

// Open opens an existing payments database. A missing file is fatal-by-
// contract: the caller is told which step to run first.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s (run `jctax extract-payments` first)", ErrNoDatabase, path)
	}
	return open(path)
}

// Create opens (creating if needed) a payments database and ensures the
// schema exists.
func Create(path string) (*DB, error) {
	d, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := d.db.Exec(schema); err != nil {
		d.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return d, nil
}

func open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{db: db}, nil
}

// Close releases the underlying handle.
func (d *DB) Close() error { return d.db.Close() }

// InsertPayments writes payment rows in one transaction, replacing any
// existing row for the same account, parcel identity, and year.
func (d *DB) InsertPayments(ctx context.Context, pays []types.Payment) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO payments
		(account_number, block, lot, qualifier, year, billed, paid)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, p := range pays {
		if _, err := stmt.ExecContext(ctx, p.AccountNumber, p.Block, p.Lot, p.Qualifier, p.Year, p.Billed, p.Paid); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertAccounts writes account identity rows in one transaction.
func (d *DB) InsertAccounts(ctx context.Context, accts []Account) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO accounts
		(account_number, block, lot, qualifier, owner_name, address)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, a := range accts {
		if _, err := stmt.ExecContext(ctx, a.AccountNumber, a.Block, a.Lot, a.Qualifier, a.Owner, a.Address); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// PaymentsForYear returns all payment rows for one tax year.
func (d *DB) PaymentsForYear(ctx context.Context, year int) ([]types.Payment, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT account_number, block, lot, qualifier, year, billed, paid
		FROM payments WHERE year = ?`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pays []types.Payment
	for rows.Next() {
		var p types.Payment
		if err := rows.Scan(&p.AccountNumber, &p.Block, &p.Lot, &p.Qualifier, &p.Year, &p.Billed, &p.Paid); err != nil {
			return nil, err
		}
		pays = append(pays, p)
	}
	return pays, rows.Err()
}

// Enrichment builds the optional owner/address maps keyed by block-lot and
// block-lot-qualifier. Display decoration only; the allocation math never
// touches these.
func (d *DB) Enrichment(ctx context.Context) (types.Enrichment, error) {
	enr := types.Enrichment{
		ByLot:  make(map[string]types.OwnerInfo),
		ByUnit: make(map[string]types.OwnerInfo),
	}
	rows, err := d.db.QueryContext(ctx, `SELECT block, lot, qualifier, owner_name, address FROM accounts`)
	if err != nil {
		return enr, err
	}
	defer rows.Close()
	for rows.Next() {
		var block, lot, qual, owner, addr string
		if err := rows.Scan(&block, &lot, &qual, &owner, &addr); err != nil {
			return enr, err
		}
		info := types.OwnerInfo{Owner: owner, Address: addr}
		enr.ByUnit[types.UnitKey(block, lot, qual)] = info
		lotKey := types.LotKey(block, lot)
		if _, ok := enr.ByLot[lotKey]; !ok {
			enr.ByLot[lotKey] = info
		}
	}
	return enr, rows.Err()
}
