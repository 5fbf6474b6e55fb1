package kit

import "context"

// Endpoint is a transport-neutral request handler.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares; the first one is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
