// Package router provides the HTTP router appctx applications mount their
// handlers on. It wraps chi, bridges chi URL params to Go's
// Request.PathValue(), and runs every route inside a request scope.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafbgarcia/appctx"
)

// Handler is a route handler receiving the request-scoped framework context.
type Handler func(w http.ResponseWriter, ctx *appctx.Context)

// Router is the HTTP router for appctx applications.
type Router struct {
	mux chi.Router
}

// New creates a Router that opens a request scope through app for every
// request. Extra middlewares run inside the scope.
func New(app *appctx.App, middlewares ...appctx.Middleware) *Router {
	mux := chi.NewRouter()
	mux.Use(appctx.Scoped(app))
	for _, mw := range middlewares {
		mux.Use(mw)
	}

	return &Router{mux: mux}
}

// Get registers a handler for GET requests at the given pattern.
func (r *Router) Get(pattern string, handler Handler) {
	r.mux.Get(pattern, adapt(handler))
}

// Post registers a handler for POST requests at the given pattern.
func (r *Router) Post(pattern string, handler Handler) {
	r.mux.Post(pattern, adapt(handler))
}

// Delete registers a handler for DELETE requests at the given pattern.
func (r *Router) Delete(pattern string, handler Handler) {
	r.mux.Delete(pattern, adapt(handler))
}

// Handle registers an http.Handler at the given pattern.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// adapt runs after chi has matched the route, so URL params are known here
// and not in mux-level middleware.
func adapt(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		// Bridge chi URL params to Go's Request.PathValue() so user handlers
		// can call ctx.Request.PathValue("id") regardless of the router.
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				req.SetPathValue(key, rctx.URLParams.Values[i])
			}
		}
		h(w, appctx.NewContext(req))
	}
}
