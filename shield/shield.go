// Package shield provides the HTTP middleware sitecap puts in front of its
// routes: request tracing, HEAD handling, security headers and panic recovery.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack("/", "/healthz") {
//	    r.Use(mw)
//	}
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultAPIStack returns the standard middleware stack for a JSON API.
// Middleware is ordered: TraceID → Recover → HeadToGet → SecurityHeaders.
// TraceID runs first so a recovered panic is logged with its trace ID.
// headPaths are the read-only routes that also answer HEAD.
func DefaultAPIStack(headPaths ...string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		TraceID,
		Recover,
		HeadToGet(headPaths...),
		SecurityHeaders(APIHeaders()),
	}
}
