package appctx

import (
	"context"
	"net/http"
)

// Middleware is a standard Go HTTP middleware.
// It is a type alias so any func(http.Handler) http.Handler is compatible
// without casting.
type Middleware = func(http.Handler) http.Handler

type requestKey struct{}

type requestScope struct {
	binder  *Binder
	log     *Logger
	frameID string
}

// Scoped returns middleware that opens an application scope for every
// request and tears it down once the handler returns, including when the
// handler panics. Each request gets its own frame, so resources resolved by
// one request are never visible to another.
func Scoped(app *App) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, guard, err := app.Enter(r.Context(), Config{})
			if err != nil {
				app.log.Error("open request scope", "error", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			defer func() {
				if err := guard.Exit(ctx); err != nil {
					app.log.Error("close request scope", "path", r.URL.Path, "error", err)
				}
			}()

			ctx = contextWithRequestScope(ctx, requestScope{
				binder:  app.binder,
				log:     app.log,
				frameID: guard.Frame().ID(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithRequestScope(ctx context.Context, rs requestScope) context.Context {
	return context.WithValue(ctx, requestKey{}, rs)
}
