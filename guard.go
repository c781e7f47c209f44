package appctx

import (
	"context"
	"errors"
	"time"
)

const defaultTeardownTimeout = 5 * time.Second

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithTeardownTimeout bounds each teardown call. Non-positive values keep
// the default of five seconds.
func WithTeardownTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// Guard owns one pushed frame. Exit tears down the frame's resources and
// pops it; Scope wraps Enter and Exit so every exit path releases.
type Guard struct {
	binder  *Binder
	stack   *Stack
	frame   *Frame
	timeout time.Duration
}

// Enter pushes a new frame onto the stack carried by ctx, creating the stack
// if ctx has none, and returns the context code inside the scope must use.
// The frame's configuration is the enclosing frame's configuration with cfg
// laid over it. Resources are never inherited from the enclosing frame.
func Enter(ctx context.Context, b *Binder, cfg Config, opts ...GuardOption) (context.Context, *Guard, error) {
	stack := StackFrom(ctx)
	if stack == nil {
		stack = NewStack()
		ctx = WithStack(ctx, stack)
	}

	base := Config{}
	if outer := stack.top(); outer != nil {
		base = outer.Config()
	}
	g := &Guard{
		binder:  b,
		stack:   stack,
		frame:   newFrame(base.Merge(cfg)),
		timeout: defaultTeardownTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if err := stack.Push(g.frame); err != nil {
		return ctx, nil, err
	}
	b.log.LogEnter(ctx, g.frame.ID(), stack.Len())
	return ctx, g, nil
}

// Frame returns the guarded frame.
func (g *Guard) Frame() *Frame { return g.frame }

// Exit tears down the frame's resources in reverse creation order and pops
// the frame. Teardown failures do not stop the remaining teardowns; they
// are joined into the returned error. Exiting a guard whose frame is not on
// top of the stack returns a *ScopeMismatchError and releases nothing.
func (g *Guard) Exit(ctx context.Context) error {
	if top := g.stack.top(); top != g.frame {
		err := &ScopeMismatchError{Want: g.frame.ID()}
		if top != nil {
			err.Got = top.ID()
		}
		return err
	}
	return g.release(ctx, g.frame)
}

// release tears down frame's resources and pops it. frame must be on top.
func (g *Guard) release(ctx context.Context, frame *Frame) error {
	bindings := frame.close()
	var errs []error
	for _, b := range bindings {
		if err := runTeardown(ctx, frame.ID(), b, g.timeout); err != nil {
			g.binder.log.LogTeardown(ctx, frame.ID(), b.name, err)
			errs = append(errs, err)
		}
	}
	if _, err := g.stack.Pop(frame); err != nil {
		errs = append(errs, err)
	}

	err := errors.Join(errs...)
	g.binder.log.LogExit(ctx, frame.ID(), len(bindings), err)
	return err
}

// unwind exits the guard after first releasing any frames that code inside
// the scope entered and never exited. Leftover frames are still reported as
// a *ScopeMismatchError, joined with any teardown errors.
func (g *Guard) unwind(ctx context.Context) error {
	leaked := g.stack.above(g.frame)
	if len(leaked) == 0 {
		return g.Exit(ctx)
	}
	errs := []error{&ScopeMismatchError{Want: g.frame.ID(), Got: leaked[0].ID()}}
	for _, f := range leaked {
		errs = append(errs, g.release(ctx, f))
	}
	errs = append(errs, g.Exit(ctx))
	return errors.Join(errs...)
}

// Scope runs fn inside a new frame built from cfg. The frame is torn down and
// popped on every exit path: normal return, error, panic, or runtime.Goexit.
// A panic is re-raised after teardown. Frames fn entered without exiting are
// released first. The result joins fn's error with any teardown errors.
func Scope(ctx context.Context, b *Binder, cfg Config, fn func(ctx context.Context) error, opts ...GuardOption) error {
	ctx, g, err := Enter(ctx, b, cfg, opts...)
	if err != nil {
		return err
	}

	returned := false
	defer func() {
		if returned {
			return
		}
		if xerr := g.unwind(ctx); xerr != nil {
			b.log.Error("scope exit after abort failed", "frame", g.frame.ID(), "error", xerr)
		}
	}()

	ferr := fn(ctx)
	returned = true
	return errors.Join(ferr, g.unwind(ctx))
}
