package reset

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeChannel struct {
	calls   []string
	failOn  map[string]error
	panicOn string
	origin  string
}

func (f *fakeChannel) do(name string) error {
	f.calls = append(f.calls, name)
	if f.panicOn == name {
		panic("boom")
	}
	return f.failOn[name]
}

func (f *fakeChannel) ClearCookies(context.Context) error { return f.do("cookies") }
func (f *fakeChannel) ClearCache(context.Context) error   { return f.do("cache") }
func (f *fakeChannel) ClearOriginStorage(_ context.Context, origin string) error {
	f.origin = origin
	return f.do("origin_storage")
}

type fakeEval struct {
	scripts []string
	err     error
}

func (f *fakeEval) Eval(_ context.Context, js string, _ ...any) (string, error) {
	f.scripts = append(f.scripts, js)
	return "true", f.err
}

func TestReset_AllSteps(t *testing.T) {
	ch := &fakeChannel{}
	ev := &fakeEval{}
	r := New(ch, ev, 0, nil)

	rep := r.Reset(context.Background(), "https://site.test")
	if len(rep.Failed) != 0 {
		t.Fatalf("Failed: got %v", rep.Failed)
	}
	want := []string{"cookies", "cache", "origin_storage"}
	if strings.Join(ch.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls: got %v, want %v", ch.calls, want)
	}
	if ch.origin != "https://site.test" {
		t.Errorf("origin: got %q", ch.origin)
	}
	if len(ev.scripts) != 1 || !strings.Contains(ev.scripts[0], "localStorage.clear") {
		t.Fatal("page storage script not evaluated")
	}
}

func TestReset_FailuresDoNotAbort(t *testing.T) {
	ch := &fakeChannel{failOn: map[string]error{
		"cookies": errors.New("not allowed"),
		"cache":   errors.New("unsupported"),
	}}
	ev := &fakeEval{err: errors.New("execution context destroyed")}
	r := New(ch, ev, 0, nil)

	rep := r.Reset(context.Background(), "https://site.test")
	if len(ch.calls) != 3 || len(ev.scripts) != 1 {
		t.Fatalf("every step must run: channel=%v scripts=%d", ch.calls, len(ev.scripts))
	}
	want := "cookies,cache,page_storage"
	if strings.Join(rep.Failed, ",") != want {
		t.Fatalf("Failed: got %v, want %s", rep.Failed, want)
	}
}

func TestReset_PanicContained(t *testing.T) {
	ch := &fakeChannel{panicOn: "cache"}
	ev := &fakeEval{}
	r := New(ch, ev, 0, nil)

	rep := r.Reset(context.Background(), "https://site.test")
	if len(rep.Failed) != 1 || rep.Failed[0] != "cache" {
		t.Fatalf("Failed: got %v", rep.Failed)
	}
	if len(ev.scripts) != 1 {
		t.Fatal("steps after a panic must still run")
	}
}

func TestReset_EmptyOriginSkipsOriginStorage(t *testing.T) {
	ch := &fakeChannel{}
	r := New(ch, &fakeEval{}, 0, nil)
	r.Reset(context.Background(), "")
	for _, c := range ch.calls {
		if c == "origin_storage" {
			t.Fatal("origin storage cleared without an origin")
		}
	}
}
