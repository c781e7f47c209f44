// Package sqldb binds database/sql connection pools to application scopes.
//
// Register installs two resources on a binder:
//
//	"db"   *sql.DB opened from the frame's database.* keys, closed on scope exit
//	"sqlx" *sqlx.DB wrapping the same frame's "db"
//
// Configuration keys:
//
//	database.driver          string, default "sqlite3"
//	database.dsn             string, required
//	database.max_open_conns  int, optional
//	database.foreign_keys    bool, default true; enables sqlite foreign keys
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rafbgarcia/appctx"
)

const (
	// Name is the resource name of the connection pool.
	Name = "db"
	// NameX is the resource name of the sqlx wrapper.
	NameX = "sqlx"

	KeyDriver       = "database.driver"
	KeyDSN          = "database.dsn"
	KeyMaxOpenConns = "database.max_open_conns"
	KeyForeignKeys  = "database.foreign_keys"

	defaultDriver = "sqlite3"
)

// Register installs the "db" and "sqlx" resources on b.
func Register(b *appctx.Binder) error {
	err := b.Register(Name, open,
		appctx.WithRequires(
			appctx.Require(KeyDSN, appctx.KindString),
			appctx.Optional(KeyDriver, appctx.KindString),
			appctx.Optional(KeyMaxOpenConns, appctx.KindInt),
			appctx.Optional(KeyForeignKeys, appctx.KindBool),
		),
		appctx.WithCloser(),
	)
	if err != nil {
		return err
	}
	// The pool belongs to "db"; the wrapper has nothing of its own to close.
	return b.Register(NameX, func(ctx context.Context, cfg appctx.Config) (any, error) {
		db, err := appctx.Resolve[*sql.DB](ctx, b, Name)
		if err != nil {
			return nil, err
		}
		return sqlx.NewDb(db, driverName(cfg)), nil
	})
}

func open(ctx context.Context, cfg appctx.Config) (any, error) {
	driver := driverName(cfg)
	dsn, _ := cfg.String(KeyDSN)
	if fk, ok := cfg.Bool(KeyForeignKeys); (!ok || fk) && driver == defaultDriver {
		dsn = withForeignKeys(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: open %s: %w", driver, err)
	}
	if n, ok := cfg.Int(KeyMaxOpenConns); ok && n > 0 {
		db.SetMaxOpenConns(int(n))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldb: ping %s: %w", driver, err)
	}
	return db, nil
}

// withForeignKeys asks go-sqlite3 to run PRAGMA foreign_keys on every new
// connection of the pool.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func driverName(cfg appctx.Config) string {
	if d, ok := cfg.String(KeyDriver); ok && d != "" {
		return d
	}
	return defaultDriver
}

// DB resolves the scope's connection pool.
func DB(ctx context.Context, b *appctx.Binder) (*sql.DB, error) {
	return appctx.Resolve[*sql.DB](ctx, b, Name)
}

// X resolves the scope's sqlx wrapper.
func X(ctx context.Context, b *appctx.Binder) (*sqlx.DB, error) {
	return appctx.Resolve[*sqlx.DB](ctx, b, NameX)
}
