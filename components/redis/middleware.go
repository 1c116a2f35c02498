package redis

import (
	"context"
	"net/http"
)

type registryCtxKey struct{}

// WithRegistry returns a context carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryCtxKey{}, r)
}

func RegistryFromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(registryCtxKey{}).(*Registry)
	return r, ok && r != nil
}

// Middleware binds the registry to every request passing through it.
func (r *Registry) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(WithRegistry(req.Context(), r)))
		})
	}
}

// FromContext resolves id against the registry bound to ctx, falling back to
// the global registry.
func FromContext(ctx context.Context, id ID) (Client, error) {
	if r, ok := RegistryFromContext(ctx); ok {
		return r.Client(ctx, id)
	}
	return Get(ctx, id)
}

// FromRequest is FromContext for a request handler.
func FromRequest(req *http.Request, id ID) (Client, error) {
	return FromContext(req.Context(), id)
}
