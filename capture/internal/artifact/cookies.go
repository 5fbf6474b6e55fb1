package artifact

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Cookie is a read-only snapshot of one browser cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	HTTPOnly bool      `json:"httpOnly"`
	Secure   bool      `json:"secure"`
	SameSite string    `json:"sameSite,omitempty"`
	Session  bool      `json:"session"`
}

// MatchesDomain reports whether a cookie domain belongs to one of domains:
// equal to it, or a subdomain of it. A leading dot is ignored.
func MatchesDomain(cookieDomain string, domains []string) bool {
	cd := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cookieDomain), "."))
	if cd == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d == "" {
			continue
		}
		if cd == d || strings.HasSuffix(cd, "."+d) {
			return true
		}
	}
	return false
}

// FilterCookies keeps the cookies scoped to domains, preserving order.
func FilterCookies(in []Cookie, domains []string) []Cookie {
	out := make([]Cookie, 0, len(in))
	for _, c := range in {
		if MatchesDomain(c.Domain, domains) {
			out = append(out, c)
		}
	}
	return out
}

// CollectCookies reads the cookie jar over the control channel, falling back
// to the page accessor. It returns an empty, non-nil slice when both fail.
func (e *Extractor) CollectCookies(ctx context.Context) []Cookie {
	sources := []struct {
		name string
		read func(context.Context) ([]Cookie, error)
	}{
		{"channel", func(ctx context.Context) ([]Cookie, error) {
			if e.cfg.Channel == nil {
				return nil, errNoSource
			}
			return e.cfg.Channel.AllCookies(ctx)
		}},
		{"page", func(ctx context.Context) ([]Cookie, error) {
			if e.cfg.Page == nil {
				return nil, errNoSource
			}
			return e.cfg.Page.Cookies(ctx)
		}},
	}

	for _, s := range sources {
		cctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		all, err := s.read(cctx)
		cancel()
		if err != nil {
			e.cfg.Logger.Debug("artifact: cookie source failed", "source", s.name, "error", err)
			continue
		}
		return FilterCookies(all, e.cfg.Domains)
	}
	return []Cookie{}
}

var errNoSource = errors.New("artifact: source not configured")
