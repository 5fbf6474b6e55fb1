// CLAUDE:SUMMARY Toggleable request interception that aborts image, font and stylesheet fetches on the shared page.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Decision is the outcome of classifying one outgoing request.
type Decision int

const (
	Allow Decision = iota
	Abort
)

// InterceptionState is the filter's protocol-level state.
type InterceptionState int

const (
	Disabled InterceptionState = iota
	Enabled
)

func (s InterceptionState) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// blockedKinds are the resource kinds aborted while the filter is enabled.
var blockedKinds = map[string]bool{
	"image":      true,
	"font":       true,
	"stylesheet": true,
}

// Classify maps a resource kind to a decision using the default blocked
// kinds. Unknown or empty kinds are always allowed.
func Classify(kind string) Decision {
	return classify(blockedKinds, kind)
}

// Blocking returns a RequestHandler that aborts the given kinds instead of
// the defaults. An empty list blocks nothing.
func Blocking(kinds []string) RequestHandler {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[strings.ToLower(strings.TrimSpace(k))] = true
	}
	return func(kind string) Decision { return classify(set, kind) }
}

func classify(set map[string]bool, kind string) Decision {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" && set[kind] {
		return Abort
	}
	return Allow
}

// RequestHandler decides the fate of one request given its resource kind.
type RequestHandler func(kind string) Decision

// Interceptor is the protocol side of request interception. SetHandler(nil)
// deregisters the handler; requests seen without a handler proceed.
type Interceptor interface {
	SetHandler(h RequestHandler)
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// Filter is the Disabled/Enabled state machine around an Interceptor.
// Enable and Disable never fail the caller: errors are logged and the filter
// ends in a consistent state.
type Filter struct {
	mu       sync.Mutex
	ic       Interceptor
	state    InterceptionState
	classify RequestHandler
	logger   *slog.Logger
}

// NewFilter returns a Disabled filter over ic that blocks the default kinds.
func NewFilter(ic Interceptor, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{ic: ic, classify: Classify, logger: logger}
}

// Block replaces the blocked kinds. It takes effect on the next Enable.
func (f *Filter) Block(kinds []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classify = Blocking(kinds)
}

// State returns the current interception state.
func (f *Filter) State() InterceptionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Enable registers the classifying handler and turns interception on. If the
// protocol refuses, the handler is removed again and the filter stays Disabled.
func (f *Filter) Enable(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Enabled {
		return
	}

	f.ic.SetHandler(f.classify)
	if err := f.ic.Enable(ctx); err != nil {
		f.ic.SetHandler(nil)
		f.logger.Warn("browser: resource filter unavailable, continuing unfiltered", "error", err)
		return
	}
	f.state = Enabled
	f.logger.Debug("browser: resource filter enabled")
}

// Disable removes the handler first, then turns interception off. A no-op
// when already Disabled.
func (f *Filter) Disable(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Disabled {
		return
	}

	f.ic.SetHandler(nil)
	if err := f.ic.Disable(ctx); err != nil {
		f.logger.Warn("browser: resource filter disable", "error", err)
	}
	f.state = Disabled
	f.logger.Debug("browser: resource filter disabled")
}

// hijackInterceptor implements Interceptor with rod's hijack router.
type hijackInterceptor struct {
	page    *rod.Page
	handler atomic.Pointer[RequestHandler]
	router  *rod.HijackRouter
}

// NewHijackInterceptor returns an Interceptor bound to page.
func NewHijackInterceptor(page *rod.Page) Interceptor {
	return &hijackInterceptor{page: page}
}

func (h *hijackInterceptor) SetHandler(fn RequestHandler) {
	if fn == nil {
		h.handler.Store(nil)
		return
	}
	h.handler.Store(&fn)
}

func (h *hijackInterceptor) Enable(_ context.Context) error {
	if h.router != nil {
		return nil
	}
	// Bound to the page's own context: the router must outlive the request
	// that enabled it, or paused requests would never be released.
	router := h.page.HijackRequests()
	err := router.Add("*", "", func(hj *rod.Hijack) {
		if h.decide(hj) == Abort {
			hj.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		hj.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		_ = router.Stop()
		return err
	}
	h.router = router
	go router.Run()
	return nil
}

func (h *hijackInterceptor) Disable(ctx context.Context) error {
	if h.router == nil {
		return nil
	}
	router := h.router
	h.router = nil

	done := make(chan error, 1)
	go func() { done <- router.Stop() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Join(errors.New("browser: hijack stop timed out"), ctx.Err())
	}
}

// decide classifies hj, allowing on any failure to read the request kind.
func (h *hijackInterceptor) decide(hj *rod.Hijack) (d Decision) {
	fn := h.handler.Load()
	if fn == nil {
		return Allow
	}
	defer func() {
		if recover() != nil {
			d = Allow
		}
	}()
	return (*fn)(string(hj.Request.Type()))
}
