package model

import (
	"context"
	"errors"
)

// RequestContext carries the identity and tracing information of one BFF
// request. It is built once by the transport middleware and is read-only
// afterwards.
type RequestContext struct {
	SessionID     string
	UserID        string
	Username      string
	CorrelationID string
	TraceID       string
	Locale        string
}

// Validate checks that the mandatory fields are present.
func (rc *RequestContext) Validate() error {
	if rc.SessionID == "" {
		return errors.New("SessionID is required")
	}
	return nil
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
