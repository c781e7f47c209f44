package blog

import (
	"context"

	"github.com/rafbgarcia/appctx"
	"github.com/rafbgarcia/appctx/resources/ormdb"
	"github.com/rafbgarcia/appctx/resources/sqldb"
)

// Register installs the database resources the blog needs on app.
func Register(app *appctx.App) error {
	if err := sqldb.Register(app.Binder()); err != nil {
		return err
	}
	return ormdb.Register(app.Binder(), Models()...)
}

// InitDB opens an application scope and builds the "orm" resource in it,
// which creates the blog tables. There is no request to supply a scope
// here, so the script opens its own.
func InitDB(ctx context.Context, app *appctx.App) error {
	return app.Run(ctx, appctx.Config{}, func(ctx context.Context) error {
		_, err := ormdb.DB(ctx, app.Binder())
		return err
	})
}
