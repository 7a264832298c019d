// Package store is the SQL records sink: decisions, work orders, purchase
// orders, notifications and audit entries are written here for downstream
// consumers, alongside the outbox and operator accounts. The engine never
// reads its working state back from it.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	"maintcore/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	dialect Dialect
}

func Open(cfg *config.DatabaseConfig) (*DB, error) {
	var (
		sqlDB *sql.DB
		d     Dialect
		err   error
	)
	switch cfg.Driver {
	case "sqlite":
		d = sqliteDialect{}
		sqlDB, err = sql.Open("sqlite", sqliteDSN(cfg.SQLite.Path))
		if err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	case "postgres":
		d = postgresDialect{}
		sqlDB, err = sql.Open("pgx", postgresDSN(&cfg.Postgres))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}

	db := &DB{DB: sqlDB, dialect: d}
	if _, err := db.Exec(d.Schema()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate %s: %w", d.Name(), err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
}

func postgresDSN(cfg *config.PostgresConfig) string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)
}

func (db *DB) Dialect() Dialect { return db.dialect }

// Q adapts a query written for SQLite to the open database.
func (db *DB) Q(query string) string {
	if _, ok := db.dialect.(sqliteDialect); ok {
		return query
	}
	return rebind(strings.ReplaceAll(query, sqlNow, db.dialect.Now()), db.dialect)
}
