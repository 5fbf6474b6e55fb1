package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestClassify_BlockedKinds(t *testing.T) {
	for _, kind := range []string{"image", "font", "stylesheet", "Image", "Stylesheet", " font "} {
		if got := Classify(kind); got != Abort {
			t.Errorf("Classify(%q): got %v, want Abort", kind, got)
		}
	}
}

func TestClassify_AllowedKinds(t *testing.T) {
	kinds := []string{"document", "script", "xhr", "fetch", "media", "websocket", "other", "ping", "", "???"}
	for _, kind := range kinds {
		if got := Classify(kind); got != Allow {
			t.Errorf("Classify(%q): got %v, want Allow", kind, got)
		}
	}
}

// fakeInterceptor records handler registration and protocol state.
type fakeInterceptor struct {
	mu         sync.Mutex
	handler    RequestHandler
	enabled    bool
	enableErr  error
	disableErr error
	calls      []string
}

func (f *fakeInterceptor) SetHandler(h RequestHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
	if h == nil {
		f.calls = append(f.calls, "unset")
	} else {
		f.calls = append(f.calls, "set")
	}
}

func (f *fakeInterceptor) Enable(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "enable")
	if f.enableErr != nil {
		return f.enableErr
	}
	f.enabled = true
	return nil
}

func (f *fakeInterceptor) Disable(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "disable")
	f.enabled = false
	return f.disableErr
}

func (f *fakeInterceptor) registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

func TestFilter_EnableDisable(t *testing.T) {
	ic := &fakeInterceptor{}
	f := NewFilter(ic, nil)
	ctx := context.Background()

	f.Enable(ctx)
	if f.State() != Enabled {
		t.Fatalf("state after Enable: got %v", f.State())
	}
	if !ic.registered() || !ic.enabled {
		t.Fatal("Enable should register the handler and enable interception")
	}
	if ic.handler("image") != Abort || ic.handler("script") != Allow {
		t.Error("registered handler does not classify")
	}

	f.Disable(ctx)
	if f.State() != Disabled {
		t.Fatalf("state after Disable: got %v", f.State())
	}
	if ic.registered() || ic.enabled {
		t.Fatal("Disable should leave no handler and interception off")
	}
}

func TestFilter_DisableUnsetsHandlerBeforeProtocol(t *testing.T) {
	ic := &fakeInterceptor{}
	f := NewFilter(ic, nil)
	f.Enable(context.Background())
	ic.calls = nil

	f.Disable(context.Background())
	if len(ic.calls) != 2 || ic.calls[0] != "unset" || ic.calls[1] != "disable" {
		t.Fatalf("disable order: got %v, want [unset disable]", ic.calls)
	}
}

func TestFilter_Interleavings(t *testing.T) {
	sequences := [][]string{
		{"e", "d"},
		{"e", "e", "d"},
		{"d", "d", "e", "d"},
		{"e", "d", "e", "d", "e", "e", "d", "d"},
		{"d"},
	}
	for _, seq := range sequences {
		ic := &fakeInterceptor{}
		f := NewFilter(ic, nil)
		for _, op := range seq {
			if op == "e" {
				f.Enable(context.Background())
			} else {
				f.Disable(context.Background())
			}
		}
		if f.State() != Disabled {
			t.Errorf("%v: state got %v, want Disabled", seq, f.State())
		}
		if ic.registered() {
			t.Errorf("%v: handler still registered", seq)
		}
		if ic.enabled {
			t.Errorf("%v: interception still enabled", seq)
		}
	}
}

func TestFilter_DisableWhenDisabledIsNoop(t *testing.T) {
	ic := &fakeInterceptor{}
	f := NewFilter(ic, nil)
	f.Disable(context.Background())
	if len(ic.calls) != 0 {
		t.Fatalf("calls: got %v, want none", ic.calls)
	}
}

func TestFilter_EnableFailureDegrades(t *testing.T) {
	ic := &fakeInterceptor{enableErr: errors.New("Fetch.enable not supported")}
	f := NewFilter(ic, nil)

	f.Enable(context.Background())
	if f.State() != Disabled {
		t.Fatalf("state: got %v, want Disabled", f.State())
	}
	if ic.registered() {
		t.Fatal("handler must be removed when enabling fails")
	}
}

func TestFilter_DisableErrorStillDisabled(t *testing.T) {
	ic := &fakeInterceptor{disableErr: errors.New("target closed")}
	f := NewFilter(ic, nil)
	f.Enable(context.Background())
	f.Disable(context.Background())
	if f.State() != Disabled || ic.registered() {
		t.Fatal("disable error must still leave the filter Disabled with no handler")
	}
}

func TestFilter_BlockReplacesKinds(t *testing.T) {
	ic := &fakeInterceptor{}
	f := NewFilter(ic, nil)
	f.Block([]string{"Media"})
	f.Enable(context.Background())

	if ic.handler("media") != Abort {
		t.Error("media should be aborted after Block")
	}
	if ic.handler("image") != Allow {
		t.Error("image should be allowed once the kinds are replaced")
	}
}

func TestBlocking_EmptyBlocksNothing(t *testing.T) {
	h := Blocking(nil)
	for _, kind := range []string{"image", "font", ""} {
		if h(kind) != Allow {
			t.Errorf("Blocking(nil)(%q): want Allow", kind)
		}
	}
}
