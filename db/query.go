package db

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// Query is a read-only handle for hand-built SQL: goqu builds the statement,
// sqlx runs it on the same pool GORM uses.
type Query struct {
	DB      *sqlx.DB
	Dialect goqu.DialectWrapper
}

// NewQuery shares the GORM connection pool with sqlx.
func NewQuery(gdb *gorm.DB) (*Query, error) {
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	switch name := gdb.Dialector.Name(); name {
	case DriverPostgres:
		return &Query{DB: sqlx.NewDb(sqlDB, "pgx"), Dialect: goqu.Dialect("postgres")}, nil
	case DriverSQLite:
		return &Query{DB: sqlx.NewDb(sqlDB, "sqlite"), Dialect: goqu.Dialect("sqlite3")}, nil
	default:
		return nil, fmt.Errorf("no query dialect for %q", name)
	}
}

// DateLiteral renders a calendar date the way both Postgres and SQLite
// compare correctly against a date column.
func DateLiteral(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
