// CLAUDE:SUMMARY Resolves the anti-forgery token (headers, body templates, live DOM) and collects target-domain cookies with a page fallback.
// Package artifact extracts the session artifacts a capture returns: the
// anti-forgery token and the target site's cookies.
package artifact

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/sitecap/capture/internal/netcap"
)

// tokenHeaders is the header family carrying the token, lower-cased.
var tokenHeaders = []string{
	"requestverificationtoken",
	"x-requestverificationtoken",
	"__requestverificationtoken",
	"x-csrf-token",
	"x-xsrf-token",
}

// Embedding templates: the hidden form input wins over the meta tag.
const (
	inputTokenName = "__RequestVerificationToken"
	metaTokenName  = "csrf-token"
)

// domTokenJS reads the same two locations from the live document.
const domTokenJS = `() => {
	const input = document.querySelector('input[name="__RequestVerificationToken"]');
	if (input && input.value) return input.value;
	const meta = document.querySelector('meta[name="csrf-token"]');
	if (meta && meta.content) return meta.content;
	return '';
}`

// Lookup is one optional token source. ok=false means "not found here".
type Lookup func(ctx context.Context) (token string, ok bool)

// FirstOf returns the first non-empty result of lookups, in order.
func FirstOf(ctx context.Context, lookups ...Lookup) (string, bool) {
	for _, l := range lookups {
		if ctx.Err() != nil {
			return "", false
		}
		if tok, ok := l(ctx); ok && tok != "" {
			return tok, true
		}
	}
	return "", false
}

// HeaderToken looks for a token header, case-insensitively.
func HeaderToken(headers map[string]string) (string, bool) {
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}
	for _, name := range tokenHeaders {
		if v := strings.TrimSpace(lower[name]); v != "" {
			return v, true
		}
	}
	return "", false
}

// BodyToken tokenizes body as HTML and returns the hidden input's value,
// else the csrf-token meta content. Attribute order, quoting and character
// references are handled by the tokenizer.
func BodyToken(body string) (string, bool) {
	if body == "" {
		return "", false
	}
	var meta string
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return meta, meta != ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Input:
				if strings.EqualFold(attr(tok, "name"), inputTokenName) {
					if v := strings.TrimSpace(attr(tok, "value")); v != "" {
						return v, true
					}
				}
			case atom.Meta:
				if meta == "" && strings.EqualFold(attr(tok, "name"), metaTokenName) {
					meta = strings.TrimSpace(attr(tok, "content"))
				}
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// Evaluator runs a script in the live page.
type Evaluator interface {
	Eval(ctx context.Context, js string, args ...any) (string, error)
}

// ChannelCookies reads the full cookie jar over the control channel.
type ChannelCookies interface {
	AllCookies(ctx context.Context) ([]Cookie, error)
}

// PageCookies reads the cookies visible to the page.
type PageCookies interface {
	Cookies(ctx context.Context) ([]Cookie, error)
}

// Config configures an Extractor.
type Config struct {
	DOM     Evaluator
	Channel ChannelCookies
	Page    PageCookies

	// Domains are the target site's registrable domains.
	Domains []string

	// CallTimeout bounds each DOM or cookie call. Default: 5s.
	CallTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor derives the token and cookies after a capture.
type Extractor struct {
	cfg Config
}

// New creates an Extractor.
func New(cfg Config) *Extractor {
	cfg.defaults()
	return &Extractor{cfg: cfg}
}

// ExtractToken resolves the token: response headers, then response body,
// then the live DOM. It returns "" when every source comes up empty.
func (e *Extractor) ExtractToken(ctx context.Context, captured *netcap.Result) string {
	lookups := []Lookup{
		func(context.Context) (string, bool) {
			if captured == nil {
				return "", false
			}
			return HeaderToken(captured.Headers)
		},
		func(context.Context) (string, bool) {
			if captured == nil || captured.Body == nil {
				return "", false
			}
			return BodyToken(*captured.Body)
		},
		e.domToken,
	}
	tok, _ := FirstOf(ctx, lookups...)
	return tok
}

func (e *Extractor) domToken(ctx context.Context) (string, bool) {
	if e.cfg.DOM == nil {
		return "", false
	}
	pctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	v, err := e.cfg.DOM.Eval(pctx, domTokenJS)
	if err != nil {
		e.cfg.Logger.Debug("artifact: DOM token lookup failed", "error", err)
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
