package entitlements

import "context"

type ctxKey struct{}

// WithResolution caches an effective-tier resolution on the request context.
// The cache lives for one request only; nothing invalidates it because the
// next request resolves fresh.
func WithResolution(ctx context.Context, res Resolution) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, res)
}

// ResolutionFromContext returns the cached resolution for this request, if
// one was computed already.
func ResolutionFromContext(ctx context.Context) (Resolution, bool) {
	if ctx == nil {
		return Resolution{}, false
	}
	res, ok := ctx.Value(ctxKey{}).(Resolution)
	return res, ok
}
