package shield

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/sitecap/kit"
)

func chain(h http.Handler) http.Handler {
	stack := DefaultAPIStack("/", "/healthz")
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestTraceID_SetsHeaderAndContext(t *testing.T) {
	var seen string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = kit.GetTraceID(r.Context())
		if GetLogger(r.Context()) == nil {
			t.Error("GetLogger: got nil")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	got := rec.Header().Get("X-Trace-ID")
	if got == "" || got != seen {
		t.Fatalf("trace id: header %q, context %q", got, seen)
	}
}

func TestRecover_PanicBecomes500(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/capture", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal error" || body["message"] != "boom" {
		t.Fatalf("body: got %v", body)
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet("/", "/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	for path, want := range map[string]string{
		"/":        http.MethodGet,
		"/healthz": http.MethodGet,
		"/capture": http.MethodHead,
	} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, path, nil))
		if method != want {
			t.Errorf("HEAD %s: handler saw %q, want %q", path, method, want)
		}
	}
}

func TestTraceID_HonorsCallerHeader(t *testing.T) {
	cases := map[string]bool{
		"sched-2026_10_18": true,
		"":                 false,
		"bad id":           false,
		"x\r\nSet-Cookie: a=b": false,
		strings.Repeat("a", maxTraceLen+1): false,
	}
	for in, kept := range cases {
		var seen string
		h := TraceID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = kit.GetTraceID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/capture", nil)
		if in != "" {
			req.Header.Set(TraceHeader, in)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := seen == in; got != kept {
			t.Errorf("trace %q: kept=%v, want %v (got %q)", in, got, kept, seen)
		}
		if seen == "" || rec.Header().Get(TraceHeader) != seen {
			t.Errorf("trace %q: header %q, context %q", in, rec.Header().Get(TraceHeader), seen)
		}
	}
}

func TestSecurityHeaders_API(t *testing.T) {
	h := SecurityHeaders(APIHeaders())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for k, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}
