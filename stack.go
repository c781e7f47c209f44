package appctx

import (
	"context"
	"fmt"
	"sync"
)

// Stack is the ordered set of frames owned by one goroutine. It travels in
// a context.Context; goroutines started inside a scope get their own stack
// through Fork rather than sharing the parent's.
type Stack struct {
	mu     sync.Mutex
	frames []*Frame
	// base frames are borrowed from a parent goroutine and are never popped.
	base int
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Push appends frame to the stack and marks it active. A frame can only be
// pushed once.
func (s *Stack) Push(frame *Frame) error {
	if !frame.activate() {
		if frame.State() == FrameTornDown {
			return fmt.Errorf("appctx: push frame %s: %w", frame.ID(), ErrFrameClosed)
		}
		return fmt.Errorf("appctx: push frame %s: %w", frame.ID(), ErrFrameActive)
	}
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	return nil
}

// Pop removes frame, which the caller claims is on top. Popping an empty
// stack, a borrowed base frame, or any frame other than the top fails with
// a *ScopeMismatchError and leaves the stack untouched.
func (s *Stack) Pop(frame *Frame) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) <= s.base {
		return nil, &ScopeMismatchError{Want: frame.ID()}
	}
	top := s.frames[len(s.frames)-1]
	if top != frame {
		return nil, &ScopeMismatchError{Want: frame.ID(), Got: top.ID()}
	}
	s.frames[len(s.frames)-1] = nil
	s.frames = s.frames[:len(s.frames)-1]
	return top, nil
}

// Current returns the top frame or ErrNoActiveContext.
func (s *Stack) Current() (*Frame, error) {
	if s == nil {
		return nil, ErrNoActiveContext
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, ErrNoActiveContext
	}
	return s.frames[len(s.frames)-1], nil
}

// Len returns the number of frames, borrowed ones included.
func (s *Stack) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *Stack) top() *Frame {
	f, _ := s.Current()
	return f
}

// above returns the frames pushed after frame, top first. It returns nil
// when frame is on top or not on the stack at all.
func (s *Stack) above(frame *Frame) []*Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.frames) - 1; i >= s.base; i-- {
		if s.frames[i] != frame {
			continue
		}
		out := make([]*Frame, 0, len(s.frames)-i-1)
		for j := len(s.frames) - 1; j > i; j-- {
			out = append(out, s.frames[j])
		}
		return out
	}
	return nil
}

type stackKey struct{}

// WithStack returns a copy of ctx carrying s.
func WithStack(ctx context.Context, s *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, s)
}

// StackFrom returns the stack carried by ctx, or nil.
func StackFrom(ctx context.Context) *Stack {
	s, _ := ctx.Value(stackKey{}).(*Stack)
	return s
}

// Current returns the active frame of the stack carried by ctx.
func Current(ctx context.Context) (*Frame, error) {
	return StackFrom(ctx).Current()
}

// Fork prepares ctx for use by a new goroutine. The returned context carries
// a fresh stack whose borrowed base is the caller's current frame, so the
// goroutine resolves against the same frame and can open its own nested
// scopes without touching the parent's stack. Without an active frame the
// forked stack is empty.
func Fork(ctx context.Context) context.Context {
	child := NewStack()
	if f := StackFrom(ctx).top(); f != nil {
		child.frames = []*Frame{f}
		child.base = 1
	}
	return WithStack(ctx, child)
}
