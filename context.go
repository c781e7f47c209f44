package appctx

import (
	"database/sql"
	"net/http"
)

// Context is the request-scoped framework context passed to route handlers.
// It is only valid inside the scope the Scoped middleware opened for the
// request.
type Context struct {
	Log     *Logger
	Request *http.Request

	binder *Binder
}

// NewContext creates a Context for r. Outside a Scoped handler chain the
// context has no binder and every resolve fails with ErrNoActiveContext.
func NewContext(r *http.Request) *Context {
	c := &Context{
		Log:     Discard(),
		Request: r,
	}
	if rs, ok := r.Context().Value(requestKey{}).(requestScope); ok {
		c.binder = rs.binder
		c.Log = rs.log.With("frame", rs.frameID)
	}
	return c
}

// Frame returns the request's active frame.
func (c *Context) Frame() (*Frame, error) {
	return Current(c.Request.Context())
}

// Binder returns the binder resources resolve through, nil outside a Scoped
// handler chain. Resolving through a nil binder fails with
// ErrNoActiveContext.
func (c *Context) Binder() *Binder {
	return c.binder
}

// Resolve resolves name in the request's scope.
func (c *Context) Resolve(name string) (any, error) {
	if c.binder == nil {
		return nil, ErrNoActiveContext
	}
	return c.binder.Resolve(c.Request.Context(), name)
}

// DB resolves the "db" resource as a connection pool.
func (c *Context) DB() (*sql.DB, error) {
	if c.binder == nil {
		return nil, ErrNoActiveContext
	}
	return Resolve[*sql.DB](c.Request.Context(), c.binder, "db")
}
