// Package kit carries request-scoped values and the transport-neutral
// endpoint shape shared by the HTTP and MCP surfaces.
package kit

import "context"

type contextKey string

const (
	TransportKey contextKey = "kit_transport" // "http", "mcp"
	TraceIDKey   contextKey = "kit_trace_id"
	RunIDKey     contextKey = "kit_run_id"
)

func WithTransport(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, TransportKey, t)
}
func GetTransport(ctx context.Context) string {
	if v, ok := ctx.Value(TransportKey).(string); ok {
		return v
	}
	return "http"
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey, id)
}
func GetTraceID(ctx context.Context) string {
	v, _ := ctx.Value(TraceIDKey).(string)
	return v
}

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}
func GetRunID(ctx context.Context) string {
	v, _ := ctx.Value(RunIDKey).(string)
	return v
}
