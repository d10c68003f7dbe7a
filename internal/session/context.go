package session

import "context"

type contextKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// From returns the session attached to ctx, or nil.
func From(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// TokenFrom returns the bearer token of the session in ctx, or "".
func TokenFrom(ctx context.Context) string {
	if s := From(ctx); s != nil {
		return s.Token()
	}
	return ""
}
