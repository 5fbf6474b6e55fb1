package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/sitecap/idgen"
	"github.com/hazyhaar/sitecap/kit"
)

// TraceHeader carries the request trace ID in both directions.
const TraceHeader = "X-Trace-ID"

// maxTraceLen bounds a caller-supplied trace ID.
const maxTraceLen = 64

// TraceID tags each request with a trace ID: the caller's X-Trace-ID when it
// is well formed, a fresh one otherwise. The ID is echoed in the response,
// stored under kit.TraceIDKey, and bound to a per-request logger under
// LoggerKey. Capture runs log it next to their run ID.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if !validTrace(traceID) {
			traceID = idgen.TraceID()
		}

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithTransport(ctx, "http")
		w.Header().Set(TraceHeader, traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request", "remote_addr", r.RemoteAddr)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validTrace(id string) bool {
	if id == "" || len(id) > maxTraceLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// GetLogger returns the per-request logger, or slog.Default outside a request.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
