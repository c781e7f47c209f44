package appctx

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Factory builds a resource handle from a frame's configuration. ctx carries
// the calling goroutine's stack, so a factory may resolve other resources of
// the same frame.
type Factory func(ctx context.Context, cfg Config) (any, error)

// Teardown releases a handle built by a Factory. It may block; ctx carries
// the guard's teardown deadline.
type Teardown func(ctx context.Context, handle any) error

type registration struct {
	factory  Factory
	teardown Teardown
	fields   []Field
}

// RegisterOption configures a registration.
type RegisterOption func(*registration)

// WithTeardown sets the function that releases the resource on scope exit.
func WithTeardown(fn Teardown) RegisterOption {
	return func(r *registration) {
		r.teardown = fn
	}
}

// WithCloser is WithTeardown for handles with a Close() error method.
func WithCloser() RegisterOption {
	return WithTeardown(func(_ context.Context, handle any) error {
		if c, ok := handle.(interface{ Close() error }); ok {
			return c.Close()
		}
		return nil
	})
}

// WithRequires declares the configuration fields the factory reads. They are
// checked before the factory runs.
func WithRequires(fields ...Field) RegisterOption {
	return func(r *registration) {
		r.fields = append(r.fields, fields...)
	}
}

// BinderOption configures a Binder.
type BinderOption func(*Binder)

// WithLogger sets the binder's logger.
func WithLogger(l *Logger) BinderOption {
	return func(b *Binder) {
		if l != nil {
			b.log = l
		}
	}
}

// Binder maps resource names to factories and resolves them against the
// calling goroutine's active frame. The registration table is safe for
// concurrent reads; registrations belong to the initialization phase and
// are rejected once the binder is sealed.
type Binder struct {
	mu     sync.RWMutex
	regs   map[string]registration
	sealed bool
	log    *Logger
}

// NewBinder creates an empty Binder.
func NewBinder(opts ...BinderOption) *Binder {
	b := &Binder{
		regs: make(map[string]registration),
		log:  Discard(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Register installs or replaces the factory for name. Replacing an existing
// registration logs a warning.
func (b *Binder) Register(name string, factory Factory, opts ...RegisterOption) error {
	if name == "" {
		return fmt.Errorf("appctx: register: name must be provided")
	}
	if factory == nil {
		return fmt.Errorf("appctx: register %q: factory must not be nil", name)
	}
	reg := registration{factory: factory}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if err := validateFields(reg.fields); err != nil {
		return fmt.Errorf("appctx: register %q: %w", name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return fmt.Errorf("appctx: register %q: %w", name, ErrRegistrySealed)
	}
	if _, exists := b.regs[name]; exists {
		b.log.Warn("resource registration overwritten", "resource", name)
	}
	b.regs[name] = reg
	return nil
}

// Seal ends the registration phase.
func (b *Binder) Seal() {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
}

// Registered reports whether name has a factory.
func (b *Binder) Registered(name string) bool {
	_, ok := b.lookup(name)
	return ok
}

func (b *Binder) lookup(name string) (registration, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	reg, ok := b.regs[name]
	return reg, ok
}

// Resolve returns the handle bound to name in the active frame, creating it
// on first use. Concurrent callers on the same frame share one factory call.
func (b *Binder) Resolve(ctx context.Context, name string) (any, error) {
	frame, err := Current(ctx)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNoActiveContext
	}
	return b.resolveIn(ctx, frame, name)
}

// resolving is the chain of builds in progress on the calling path. It
// rides in the ctx handed to factories.
type resolving struct {
	frame  *Frame
	name   string
	parent *resolving
}

type resolvingKey struct{}

// cycle reports the path "a -> b -> a" when name is already being built in
// frame further up the calling path.
func cycle(ctx context.Context, frame *Frame, name string) (string, bool) {
	chain, _ := ctx.Value(resolvingKey{}).(*resolving)
	path := []string{name}
	for r := chain; r != nil; r = r.parent {
		if r.frame != frame {
			continue
		}
		path = append(path, r.name)
		if r.name == name {
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return strings.Join(path, " -> "), true
		}
	}
	return "", false
}

func (b *Binder) resolveIn(ctx context.Context, frame *Frame, name string) (any, error) {
	if path, ok := cycle(ctx, frame, name); ok {
		return nil, &ResourceFactoryError{Name: name, cause: fmt.Errorf("%w: %s", ErrResolveCycle, path)}
	}
	chain, _ := ctx.Value(resolvingKey{}).(*resolving)
	fctx := context.WithValue(ctx, resolvingKey{}, &resolving{frame: frame, name: name, parent: chain})

	h, err := frame.materialize(ctx, name, func() (binding, error) {
		reg, ok := b.lookup(name)
		if !ok {
			return binding{}, &ResourceFactoryError{Name: name, cause: ErrUnknownResource}
		}
		if err := frame.Config().check(reg.fields); err != nil {
			return binding{}, &ResourceFactoryError{Name: name, cause: err}
		}
		start := time.Now()
		h, err := callFactory(fctx, reg.factory, frame.Config())
		if err != nil {
			err = &ResourceFactoryError{Name: name, cause: err}
		}
		b.log.LogResolve(ctx, frame.ID(), name, time.Since(start), err)
		return binding{name: name, handle: h, teardown: reg.teardown}, err
	}, func(orphan binding) {
		// The guard never saw this handle.
		if terr := runTeardown(ctx, frame.ID(), orphan, defaultTeardownTimeout); terr != nil {
			b.log.LogTeardown(ctx, frame.ID(), name, terr)
		}
	})
	return h, err
}

func callFactory(ctx context.Context, factory Factory, cfg Config) (h any, err error) {
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("factory panicked: %v", r)
		}
	}()
	return factory(ctx, cfg)
}

// runTeardown releases b, bounded by timeout. The wait is bounded even when
// the teardown ignores its context.
func runTeardown(ctx context.Context, frameID string, b binding, timeout time.Duration) error {
	if b.teardown == nil {
		return nil
	}
	name := b.name
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- b.teardown(tctx, b.handle)
	}()

	select {
	case err := <-done:
		if err != nil {
			return &TeardownError{Name: name, FrameID: frameID, cause: err}
		}
		return nil
	case <-tctx.Done():
		return &TeardownError{Name: name, FrameID: frameID, cause: tctx.Err()}
	}
}

// Resolve is the typed form of Binder.Resolve.
func Resolve[T any](ctx context.Context, b *Binder, name string) (T, error) {
	var zero T
	h, err := b.Resolve(ctx, name)
	if err != nil {
		return zero, err
	}
	v, ok := h.(T)
	if !ok {
		return zero, &ResourceTypeError{
			Name: name,
			Want: reflect.TypeFor[T]().String(),
			Got:  fmt.Sprintf("%T", h),
		}
	}
	return v, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](ctx context.Context, b *Binder, name string) T {
	v, err := Resolve[T](ctx, b, name)
	if err != nil {
		panic(err)
	}
	return v
}
