package appctx

import (
	"context"
	"sync/atomic"
	"time"
)

// App holds application-level configuration initialized at startup and the
// binder resources are registered on. It never holds live resources itself:
// those belong to the frames opened through Enter and Run.
type App struct {
	config  atomic.Pointer[Config]
	binder  *Binder
	log     *Logger
	timeout time.Duration
}

// AppOption configures an App.
type AppOption func(*App)

// WithConfig sets the base configuration captured by every new scope.
func WithConfig(cfg Config) AppOption {
	return func(a *App) {
		a.config.Store(&cfg)
	}
}

// WithAppLogger sets the logger shared by the app and its binder.
func WithAppLogger(l *Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithScopeTeardownTimeout bounds each resource teardown in scopes opened
// by the app.
func WithScopeTeardownTimeout(d time.Duration) AppOption {
	return func(a *App) {
		a.timeout = d
	}
}

// NewApp creates an App with an empty base configuration.
func NewApp(opts ...AppOption) *App {
	a := &App{log: Discard()}
	empty := Config{}
	a.config.Store(&empty)
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.binder = NewBinder(WithLogger(a.log))
	return a
}

// Config returns the current base configuration snapshot.
func (a *App) Config() Config {
	return *a.config.Load()
}

// Reload swaps the base configuration. Scopes entered afterwards capture
// cfg; scopes already open keep the snapshot they were entered with.
func (a *App) Reload(cfg Config) {
	a.config.Store(&cfg)
	a.log.Info("configuration reloaded", "keys", cfg.Len())
}

// Binder returns the app's resource binder.
func (a *App) Binder() *Binder {
	return a.binder
}

// Log returns the app logger.
func (a *App) Log() *Logger {
	return a.log
}

// Register installs a resource factory on the app's binder.
func (a *App) Register(name string, factory Factory, opts ...RegisterOption) error {
	return a.binder.Register(name, factory, opts...)
}

// Resolve resolves name in the scope carried by ctx.
func (a *App) Resolve(ctx context.Context, name string) (any, error) {
	return a.binder.Resolve(ctx, name)
}

// Enter opens an application scope. The outermost scope on a goroutine
// starts from the app's base configuration; nested scopes start from their
// enclosing frame. overrides shadow either.
func (a *App) Enter(ctx context.Context, overrides Config) (context.Context, *Guard, error) {
	cfg := overrides
	if StackFrom(ctx).Len() == 0 {
		cfg = a.Config().Merge(overrides)
	}
	return Enter(ctx, a.binder, cfg, WithTeardownTimeout(a.timeout))
}

// Run runs fn inside an application scope, the way scripts and tests that
// live outside any request must.
func (a *App) Run(ctx context.Context, overrides Config, fn func(ctx context.Context) error) error {
	cfg := overrides
	if StackFrom(ctx).Len() == 0 {
		cfg = a.Config().Merge(overrides)
	}
	return Scope(ctx, a.binder, cfg, fn, WithTeardownTimeout(a.timeout))
}
