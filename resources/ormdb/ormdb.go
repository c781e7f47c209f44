// Package ormdb binds a gorm handle to application scopes. The handle runs
// over the same frame's "db" pool and creates the registered models' tables
// the first time it is built in a frame, so code outside any scope cannot
// reach the tables at all.
package ormdb

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rafbgarcia/appctx"
	"github.com/rafbgarcia/appctx/resources/sqldb"
)

// Name is the resource name of the gorm handle.
const Name = "orm"

// KeyAutoMigrate disables table creation when set to false.
const KeyAutoMigrate = "orm.auto_migrate"

// Register installs the "orm" resource on b. models are migrated on first
// resolve in each frame. The "db" resource must be registered too.
func Register(b *appctx.Binder, models ...any) error {
	models = append([]any(nil), models...)
	return b.Register(Name, func(ctx context.Context, cfg appctx.Config) (any, error) {
		conn, err := appctx.Resolve[*sql.DB](ctx, b, sqldb.Name)
		if err != nil {
			return nil, err
		}
		db, err := gorm.Open(sqlite.New(sqlite.Config{Conn: conn}), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("ormdb: open: %w", err)
		}
		if migrate, ok := cfg.Bool(KeyAutoMigrate); (!ok || migrate) && len(models) > 0 {
			if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
				return nil, fmt.Errorf("ormdb: create tables: %w", err)
			}
		}
		return db, nil
	}, appctx.WithRequires(appctx.Optional(KeyAutoMigrate, appctx.KindBool)))
}

// DB resolves the scope's gorm handle bound to ctx.
func DB(ctx context.Context, b *appctx.Binder) (*gorm.DB, error) {
	db, err := appctx.Resolve[*gorm.DB](ctx, b, Name)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}
