// Package reqcontext carries request-scoped values (tenant, request id)
// through the core the same way stem/pkg/context does for the teacher's
// HTTP layer, trimmed to what the resolution core itself reads.
package reqcontext

import "context"

type contextKey string

const (
	tenantIDKey  contextKey = "X-Tenant-Id"
	requestIDKey contextKey = "X-Request-Id"
)

// WithTenantID returns a context carrying tenantID.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantID returns the tenant id carried by ctx, or "" if none was set.
func TenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// WithRequestID returns a context carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id carried by ctx, or "" if none was set.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}
