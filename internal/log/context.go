package log

import "context"

type ctxKey struct{}

// WithContext returns a context carrying l. The request middleware stores a
// logger annotated with method, path, and request ID here.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored in ctx. Falls back to Nop so code
// reached outside a request (startup, sweeps) can log unconditionally.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
		return l
	}
	return Nop()
}
