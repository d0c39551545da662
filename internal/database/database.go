// Package database is the optional Oracle source for account and payment
// rows, for operators with direct access to the tax system's backend instead
// of a scraped JSON cache.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/sijms/go-ora/v2"

	"github.com/runsascoded/jc-taxes/internal/ledger"
	"github.com/runsascoded/jc-taxes/internal/types"
)

// dsn builds a properly encoded connection string for Oracle Autonomous Database
func dsn(username, password, host, port, service string, walletLocation string) string {
	if walletLocation != "" {
		// Use wallet-based mTLS connection
		return fmt.Sprintf(
			"oracle://%s:%s@%s:%s/%s?ssl=true&wallet_location=%s",
			username, password, host, port, service, url.PathEscape(walletLocation))
	}

	// Fallback to standard connection without wallet
	return (&url.URL{
		Scheme:   "oracle",
		User:     url.UserPassword(username, password), // escapes automatically
		Host:     host + ":" + port,
		Path:     "/" + service, // keep full service name
		RawQuery: "ssl=true",    // ADB requires TCPS on 1522
	}).String()
}

// Config holds database connection configuration
type Config struct {
	Host           string
	Port           string
	Service        string
	Username       string
	Password       string
	WalletLocation string
}

// Database holds the database connection and configuration
type Database struct {
	db     *sql.DB
	config Config
}

// New creates a new database connection
func New(config Config) (*Database, error) {
	connStr := dsn(config.Username, config.Password, config.Host, config.Port, config.Service, config.WalletLocation)

	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		db:     db,
		config: config,
	}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// YearPayments returns billed/paid totals per account for one tax year. Paid
// carries the billing system's inverted sign; it comes back as a magnitude.
func (d *Database) YearPayments(ctx context.Context, year int) ([]types.Payment, error) {
	query := `
		SELECT a.ACCOUNT_NUMBER, a.BLOCK, a.LOT, a.QUALIFIER,
			SUM(t.BILLED), SUM(t.PAID)
		FROM TAX_ACCOUNTS a
		JOIN TAX_DETAILS t ON t.ACCOUNT_NUMBER = a.ACCOUNT_NUMBER
		WHERE t.TAX_YEAR = :1
		GROUP BY a.ACCOUNT_NUMBER, a.BLOCK, a.LOT, a.QUALIFIER
	`

	rows, err := d.db.QueryContext(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var pays []types.Payment
	for rows.Next() {
		var p types.Payment
		if err := rows.Scan(&p.AccountNumber, &p.Block, &p.Lot, &p.Qualifier, &p.Billed, &p.Paid); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Year = year
		p.Paid = math.Abs(p.Paid)
		pays = append(pays, p)
	}
	return pays, rows.Err()
}

// Accounts returns the account identity rows used for owner/address
// enrichment.
func (d *Database) Accounts(ctx context.Context) ([]ledger.Account, error) {
	query := `
		SELECT ACCOUNT_NUMBER, BLOCK, LOT, QUALIFIER, OWNER_NAME, ADDRESS
		FROM TAX_ACCOUNTS
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accts []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.AccountNumber, &a.Block, &a.Lot, &a.Qualifier, &a.Owner, &a.Address); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accts = append(accts, a)
	}
	return accts, rows.Err()
}

// LoadConfig loads database configuration from environment variables,
// reading a .env file first if one exists.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvOrDefault("DB_PORT", "1521"),
		Service:        getEnvOrDefault("DB_SERVICE", "XE"),
		Username:       getEnvOrDefault("DB_USERNAME", ""),
		Password:       getEnvOrDefault("DB_PASSWORD", ""),
		WalletLocation: getEnvOrDefault("DB_WALLET_LOCATION", ""),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
