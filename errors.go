package appctx

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveContext is returned when a resource or frame is requested
	// while the calling goroutine has no scope open.
	ErrNoActiveContext = errors.New("appctx: working outside of application context")

	// ErrUnknownResource is returned when no factory is registered under a name.
	ErrUnknownResource = errors.New("appctx: unknown resource")

	// ErrRegistrySealed is returned by Register once the binder is sealed.
	ErrRegistrySealed = errors.New("appctx: registry is sealed")

	// ErrFrameClosed is returned when a frame is used after its teardown.
	ErrFrameClosed = errors.New("appctx: frame is torn down")

	// ErrFrameActive is returned when a frame is pushed a second time.
	ErrFrameActive = errors.New("appctx: frame is already active")

	// ErrResolveCycle is returned when a factory resolves, directly or
	// through other factories, the resource it is building.
	ErrResolveCycle = errors.New("appctx: resource resolves itself")
)

// ScopeMismatchError reports a pop or exit that does not match the top of
// the stack. It always indicates a defect in how scopes are nested.
type ScopeMismatchError struct {
	Want string // frame the caller claimed
	Got  string // frame actually on top, empty when the stack is empty
}

func (e *ScopeMismatchError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("appctx: scope mismatch: exiting %s on an empty stack", e.Want)
	}
	return fmt.Sprintf("appctx: scope mismatch: exiting %s but %s is on top", e.Want, e.Got)
}

// ResourceFactoryError wraps a failure raised while materializing a resource.
//
// The original error can be accessed via errors.Unwrap.
type ResourceFactoryError struct {
	Name  string
	cause error
}

func (e *ResourceFactoryError) Error() string {
	return fmt.Sprintf("appctx: resource %q: %v", e.Name, e.cause)
}

func (e *ResourceFactoryError) Unwrap() error { return e.cause }

// TeardownError reports a teardown function that failed or overran its
// deadline.
type TeardownError struct {
	Name    string
	FrameID string
	cause   error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("appctx: teardown %q in frame %s: %v", e.Name, e.FrameID, e.cause)
}

func (e *TeardownError) Unwrap() error { return e.cause }

// ConfigError reports a configuration value of an unsupported kind, or a
// value that does not satisfy a resource's declared fields.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("appctx: config %q: %s", e.Key, e.Reason)
}

// ResourceTypeError reports a resolved handle that is not of the type the
// caller asked for.
type ResourceTypeError struct {
	Name string
	Want string
	Got  string
}

func (e *ResourceTypeError) Error() string {
	return fmt.Sprintf("appctx: resource %q is %s, not %s", e.Name, e.Got, e.Want)
}
