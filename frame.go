package appctx

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// FrameState tracks a frame through Unpushed -> Active -> TornDown.
type FrameState uint8

const (
	FrameUnpushed FrameState = iota
	FrameActive
	FrameTornDown
)

func (s FrameState) String() string {
	switch s {
	case FrameUnpushed:
		return "unpushed"
	case FrameActive:
		return "active"
	case FrameTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// binding is a materialized handle together with the teardown captured when
// it was created.
type binding struct {
	name     string
	handle   any
	teardown Teardown
}

// Frame holds one scope's configuration and the resources resolved in it.
// The configuration never changes after construction; resources only grow
// while the frame is active.
type Frame struct {
	id     string
	config Config

	mu        sync.Mutex
	state     FrameState
	resources map[string]binding
	order     []string

	flights singleflight.Group
}

func newFrame(cfg Config) *Frame {
	return &Frame{
		id:        uuid.NewString(),
		config:    cfg,
		resources: make(map[string]binding),
	}
}

// ID returns the token identifying the guard that owns the frame.
func (f *Frame) ID() string { return f.id }

// Config returns the frame's configuration snapshot.
func (f *Frame) Config() Config { return f.config }

// State returns the frame's lifecycle state.
func (f *Frame) State() FrameState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Resources returns the names of materialized resources in creation order.
func (f *Frame) Resources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *Frame) activate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FrameUnpushed {
		return false
	}
	f.state = FrameActive
	return true
}

func (f *Frame) cached(name string) (any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FrameTornDown {
		return nil, false, ErrFrameClosed
	}
	b, ok := f.resources[name]
	return b.handle, ok, nil
}

// store records a handle once. It reports false when the frame was torn
// down while the factory ran; the caller then owns the orphaned handle.
func (f *Frame) store(b binding) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == FrameTornDown {
		return false
	}
	if _, exists := f.resources[b.name]; exists {
		return true
	}
	f.resources[b.name] = b
	f.order = append(f.order, b.name)
	return true
}

// materialize returns the cached handle for name or runs build exactly once
// per frame, sharing the in-flight result with concurrent callers.
// When the frame is torn down mid-flight the new binding is handed to orphan
// and callers get ErrFrameClosed.
func (f *Frame) materialize(ctx context.Context, name string, build func() (binding, error), orphan func(binding)) (any, error) {
	if h, ok, err := f.cached(name); err != nil || ok {
		return h, err
	}

	ch := f.flights.DoChan(name, func() (any, error) {
		// A previous flight may have stored the handle after our check.
		if h, ok, err := f.cached(name); err != nil || ok {
			return h, err
		}
		b, err := build()
		if err != nil {
			return nil, err
		}
		if !f.store(b) {
			orphan(b)
			return nil, ErrFrameClosed
		}
		return b.handle, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close marks the frame torn down and hands back its bindings in reverse
// creation order.
func (f *Frame) close() []binding {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = FrameTornDown
	out := make([]binding, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		out = append(out, f.resources[f.order[i]])
	}
	f.resources = nil
	return out
}
