package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/sitecap/capture/internal/artifact"
	"github.com/hazyhaar/sitecap/capture/internal/netcap"
)

// Session is the one page and its control channel. Components borrow it for
// the duration of an operation; only Host closes it.
type Session struct {
	Page    *Page
	Channel *Channel
	Filter  *Filter
}

func newSession(b *rod.Browser, p *rod.Page, logger *slog.Logger) *Session {
	return &Session{
		Page:    &Page{page: p},
		Channel: &Channel{browser: b, page: p},
		Filter:  NewFilter(NewHijackInterceptor(p), logger),
	}
}

// Page adapts the shared rod page to the page-level operations used by the
// capture pipeline.
type Page struct {
	page *rod.Page
}

// Navigate loads url and waits for DOMContentLoaded, not the full load.
func (p *Page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

// Visible reports whether selector matches an element that is rendered.
func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, err
	}
	return el.Visible()
}

// Click performs a native left click on the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Eval runs js (a function expression) in the page and returns the result as
// a string. Non-string results are returned in their JSON form.
func (p *Page) Eval(ctx context.Context, js string, args ...any) (string, error) {
	res, err := p.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return res.Value.Str(), nil
}

// ArmResponse subscribes to Network.responseReceived on this page before
// returning. The returned wait blocks until a response satisfies match, or
// ctx ends.
func (p *Page) ArmResponse(ctx context.Context, match func(url string) bool) func() (netcap.Event, error) {
	var got *netcap.Event
	wait := p.page.Context(ctx).EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Response == nil || !match(e.Response.URL) {
			return false
		}
		ev := toEvent(e)
		got = &ev
		return true
	})

	return func() (netcap.Event, error) {
		wait()
		if got == nil {
			if err := ctx.Err(); err != nil {
				return netcap.Event{}, err
			}
			return netcap.Event{}, fmt.Errorf("browser: response stream ended")
		}
		return *got, nil
	}
}

// ResponseBody fetches a response body through the page session.
func (p *Page) ResponseBody(ctx context.Context, requestID string) (string, error) {
	return responseBody(p.page.Context(ctx), requestID)
}

// Cookies returns the cookies visible to the page's current URL.
func (p *Page) Cookies(ctx context.Context) ([]artifact.Cookie, error) {
	cookies, err := p.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	return toCookies(cookies), nil
}

// Channel is the raw CDP side of the session: cookie jar, cache, storage and
// the browser-wide event stream filtered to the page's session.
type Channel struct {
	browser *rod.Browser
	page    *rod.Page
}

// ClearCookies wipes the browser cookie jar.
func (c *Channel) ClearCookies(ctx context.Context) error {
	return proto.NetworkClearBrowserCookies{}.Call(c.page.Context(ctx))
}

// ClearCache wipes the HTTP cache.
func (c *Channel) ClearCache(ctx context.Context) error {
	return proto.NetworkClearBrowserCache{}.Call(c.page.Context(ctx))
}

// ClearOriginStorage wipes every storage type for origin.
func (c *Channel) ClearOriginStorage(ctx context.Context, origin string) error {
	return proto.StorageClearDataForOrigin{Origin: origin, StorageTypes: "all"}.Call(c.page.Context(ctx))
}

// AllCookies returns the whole cookie jar.
func (c *Channel) AllCookies(ctx context.Context) ([]artifact.Cookie, error) {
	cookies, err := c.browser.Context(ctx).GetCookies()
	if err != nil {
		return nil, err
	}
	return toCookies(cookies), nil
}

// OnResponse attaches handler to Network.responseReceived events of the
// page's session. The subscription is in place when OnResponse returns.
// Calling the returned detach function stops delivery; it is safe to call
// more than once.
func (c *Channel) OnResponse(handler func(netcap.Event)) (detach func()) {
	ctx, cancel := context.WithCancel(c.browser.GetContext())
	events := c.browser.Context(ctx).Event()
	sessionID := c.page.SessionID

	go func() {
		for msg := range events {
			if msg.SessionID != sessionID {
				continue
			}
			var e proto.NetworkResponseReceived
			if !msg.Load(&e) || e.Response == nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			handler(toEvent(&e))
		}
	}()

	return cancel
}

// ResponseBody fetches a response body through the control channel.
func (c *Channel) ResponseBody(ctx context.Context, requestID string) (string, error) {
	return responseBody(c.page.Context(ctx), requestID)
}

func responseBody(client *rod.Page, requestID string) (string, error) {
	res, err := proto.NetworkGetResponseBody{RequestID: proto.NetworkRequestID(requestID)}.Call(client)
	if err != nil {
		return "", err
	}
	if !res.Base64Encoded {
		return res.Body, nil
	}
	raw, err := base64.StdEncoding.DecodeString(res.Body)
	if err != nil {
		return "", fmt.Errorf("browser: decode body: %w", err)
	}
	return string(raw), nil
}

func toEvent(e *proto.NetworkResponseReceived) netcap.Event {
	headers := make(map[string]string, len(e.Response.Headers))
	for k, v := range e.Response.Headers {
		headers[k] = v.Str()
	}
	return netcap.Event{
		RequestID: string(e.RequestID),
		URL:       e.Response.URL,
		Status:    e.Response.Status,
		Headers:   headers,
	}
}

func toCookies(in []*proto.NetworkCookie) []artifact.Cookie {
	out := make([]artifact.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		var expires time.Time
		if !c.Session && c.Expires > 0 {
			expires = c.Expires.Time()
		}
		out = append(out, artifact.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
			Session:  c.Session,
		})
	}
	return out
}
