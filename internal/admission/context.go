package admission

import "context"

type contextKey struct{}

// WithContext attaches rc to ctx for downstream handlers to read.
func WithContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext retrieves the RequestContext attached by the admission
// middleware. ok is false if no request ever passed admission (e.g. a
// route mounted outside the admission-gated subrouter).
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(contextKey{}).(RequestContext)
	return rc, ok
}
