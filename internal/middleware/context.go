package middleware

import (
	"context"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "req_id"
	ctxKeyIsHTMX    ctxKey = "is_htmx"
	ctxKeySession   ctxKey = "session"
	ctxKeyLocaleFB  ctxKey = "locale_fallback"
	ctxKeyTabID     ctxKey = "tab_id"
)

// WithRequestID stores request id in context
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestID gets request id from context
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRequestID).(string)
	return v, ok
}

// WithHTMX marks request as HTMX
func WithHTMX(ctx context.Context, is bool) context.Context {
	return context.WithValue(ctx, ctxKeyIsHTMX, is)
}

// IsHTMX returns whether this is an htmx request
func IsHTMX(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyIsHTMX).(bool)
	return v
}

// WithTabID records the browser tab that issued the request.
func WithTabID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyTabID, id)
}

// TabID returns the tab id, or "" when the client sent none.
func TabID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTabID).(string)
	return v
}
