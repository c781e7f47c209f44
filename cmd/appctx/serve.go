package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafbgarcia/appctx"
	"github.com/rafbgarcia/appctx/internal/blog"
	"github.com/rafbgarcia/appctx/internal/configfile"
	"github.com/rafbgarcia/appctx/internal/watcher"
	"github.com/rafbgarcia/appctx/router"
)

func runServe(ctx context.Context, path, addr string) error {
	log := newLogger()
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	app, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	if path != "" {
		w := watcher.New(path, 100*time.Millisecond, func(ev watcher.Event) {
			reload(app, ev)
		})
		if err := w.Start(); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		defer w.Stop()
	}

	r := router.New(app)
	blog.Routes(r)

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// In-flight requests finish, and their scopes tear down, before exit.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server stopping")
	return server.Shutdown(shutdownCtx)
}

// reload swaps the app's base configuration. A file that fails to parse
// keeps the previous snapshot in place.
func reload(app *appctx.App, ev watcher.Event) {
	cfg, err := configfile.Load(ev.Path)
	if err != nil {
		app.Log().Error("config reload failed", "path", ev.Path, "op", ev.Op, "error", err)
		return
	}
	app.Reload(defaultConfig().Merge(cfg))
}
