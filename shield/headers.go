package shield

import "net/http"

// HeaderConfig defines the security headers applied to every response.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
	CacheControl        string
}

// APIHeaders returns the header set for JSON endpoints: nothing may be
// framed, sniffed or cached, and no resource may be loaded.
func APIHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
		CacheControl:        "no-store",
	}
}

// SecurityHeaders returns middleware that sets the configured headers on
// every response. Empty fields are skipped.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	set := [][2]string{
		{"X-Content-Type-Options", cfg.XContentTypeOptions},
		{"X-Frame-Options", cfg.XFrameOptions},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Content-Security-Policy", cfg.CSP},
		{"Cache-Control", cfg.CacheControl},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, kv := range set {
				if kv[1] != "" {
					w.Header().Set(kv[0], kv[1])
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
