package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rafbgarcia/appctx"
	"github.com/rafbgarcia/appctx/internal/blog"
	"github.com/rafbgarcia/appctx/internal/configfile"
	"github.com/rafbgarcia/appctx/resources/sqldb"
)

// defaultConfig applies when no --config file is given.
func defaultConfig() appctx.Config {
	return appctx.MustConfig(map[string]any{
		sqldb.KeyDriver: "sqlite3",
		sqldb.KeyDSN:    "file:blog.db",
	})
}

func loadConfig(path string) (appctx.Config, error) {
	if path == "" {
		return defaultConfig(), nil
	}
	cfg, err := configfile.Load(path)
	if err != nil {
		return appctx.Config{}, err
	}
	return defaultConfig().Merge(cfg), nil
}

// newApp builds the blog application with its resources registered and the
// registry sealed.
func newApp(cfg appctx.Config, log *appctx.Logger) (*appctx.App, error) {
	app := appctx.NewApp(appctx.WithConfig(cfg), appctx.WithAppLogger(log))
	if err := blog.Register(app); err != nil {
		return nil, fmt.Errorf("register resources: %w", err)
	}
	app.Binder().Seal()
	return app, nil
}

func newLogger() *appctx.Logger {
	return appctx.NewLoggerWithHandler(slog.NewJSONHandler(os.Stderr, nil))
}

func runInitDB(ctx context.Context, path string, out io.Writer) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	app, err := newApp(cfg, newLogger())
	if err != nil {
		return err
	}
	if err := blog.InitDB(ctx, app); err != nil {
		return err
	}
	dsn, _ := cfg.String(sqldb.KeyDSN)
	fmt.Fprintf(out, "tables created in %s\n", dsn)
	return nil
}

func printJobs(out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(blog.Jobs)
}
