package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// OpenDB creates and configures a connection pool for the given driver and DSN,
// verifies it with a ping and applies pending schema migrations.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	// 1. Open a new connection pool.
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s db: %w", driver, err)
	}

	// 2. Configure the connection pool settings.
	if driver == DriverSQLite {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY and keeps
		// in-memory databases alive for the life of the pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// 3. Ping the database to verify the connection.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s db: %w", driver, err)
	}

	// 4. Bring the schema up to date.
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("Database connection pool established successfully (%s)", driver)
	return db, nil
}
