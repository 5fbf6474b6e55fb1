package interact

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePage struct {
	navErrs   []error // consumed one per Navigate call
	navCalls  int
	visibleAt int // Visible returns true from this call on (0 = never)
	visCalls  int
	clickErr  error
	clickHang bool // Click blocks until its context ends
	evalErr   error
	evals     []string
	clicks    int
}

func (p *fakePage) Navigate(context.Context, string) error {
	p.navCalls++
	if len(p.navErrs) == 0 {
		return nil
	}
	err := p.navErrs[0]
	p.navErrs = p.navErrs[1:]
	return err
}

func (p *fakePage) Visible(context.Context, string) (bool, error) {
	p.visCalls++
	return p.visibleAt > 0 && p.visCalls >= p.visibleAt, nil
}

func (p *fakePage) Click(ctx context.Context, _ string) error {
	p.clicks++
	if p.clickHang {
		<-ctx.Done()
		return ctx.Err()
	}
	return p.clickErr
}

func (p *fakePage) Eval(_ context.Context, js string, _ ...any) (string, error) {
	p.evals = append(p.evals, js)
	return "true", p.evalErr
}

var errDetached = errors.New("Navigation failed because frame was detached")

func TestNavigate_Success(t *testing.T) {
	p := &fakePage{}
	d := New(Config{Page: p})
	if err := d.Navigate(context.Background(), "https://site.test/"); err != nil {
		t.Fatal(err)
	}
	if p.navCalls != 1 {
		t.Fatalf("navCalls: got %d, want 1", p.navCalls)
	}
}

func TestNavigate_DetachedRetriedOnce(t *testing.T) {
	p := &fakePage{navErrs: []error{errDetached}}
	d := New(Config{Page: p})
	if err := d.Navigate(context.Background(), "https://site.test/"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if p.navCalls != 2 {
		t.Fatalf("navCalls: got %d, want 2", p.navCalls)
	}
}

func TestNavigate_DetachedTwiceFails(t *testing.T) {
	p := &fakePage{navErrs: []error{errDetached, errDetached, nil}}
	d := New(Config{Page: p})
	err := d.Navigate(context.Background(), "https://site.test/")
	if !errors.Is(err, ErrNavigation) {
		t.Fatalf("Navigate: got %v, want ErrNavigation", err)
	}
	if p.navCalls != 2 {
		t.Fatalf("navCalls: got %d, want exactly 2", p.navCalls)
	}
}

func TestNavigate_OtherErrorNotRetried(t *testing.T) {
	dnsErr := errors.New("net::ERR_NAME_NOT_RESOLVED")
	p := &fakePage{navErrs: []error{dnsErr}}
	d := New(Config{Page: p})
	err := d.Navigate(context.Background(), "https://nowhere.test/")
	if !errors.Is(err, ErrNavigation) || !errors.Is(err, dnsErr) {
		t.Fatalf("Navigate: got %v", err)
	}
	if p.navCalls != 1 {
		t.Fatalf("navCalls: got %d, want 1", p.navCalls)
	}
}

func TestWaitForControl_BecomesVisible(t *testing.T) {
	p := &fakePage{visibleAt: 3}
	d := New(Config{Page: p, PollInterval: time.Millisecond})
	if err := d.WaitForControl(context.Background(), "#tab"); err != nil {
		t.Fatal(err)
	}
	if p.visCalls != 3 {
		t.Errorf("visCalls: got %d, want 3", p.visCalls)
	}
}

func TestWaitForControl_Timeout(t *testing.T) {
	p := &fakePage{}
	d := New(Config{Page: p, ControlTimeout: 30 * time.Millisecond, PollInterval: 5 * time.Millisecond})
	start := time.Now()
	err := d.WaitForControl(context.Background(), "#tab")
	if !errors.Is(err, ErrControlNotFound) {
		t.Fatalf("WaitForControl: got %v, want ErrControlNotFound", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout not honoured")
	}
}

func TestActivate_NativeClick(t *testing.T) {
	p := &fakePage{}
	New(Config{Page: p}).Activate(context.Background(), "#tab")
	if p.clicks != 1 || len(p.evals) != 0 {
		t.Fatalf("clicks=%d evals=%d, want 1/0", p.clicks, len(p.evals))
	}
}

func TestActivate_FallbackToDOM(t *testing.T) {
	p := &fakePage{clickErr: errors.New("element covered")}
	New(Config{Page: p}).Activate(context.Background(), "#tab")
	if len(p.evals) != 1 || p.evals[0] != domClickJS {
		t.Fatalf("evals: got %v", p.evals)
	}
}

func TestActivate_BothFailSwallowed(t *testing.T) {
	p := &fakePage{clickErr: errors.New("covered"), evalErr: errors.New("no element")}
	New(Config{Page: p}).Activate(context.Background(), "#tab")
	if p.clicks != 1 || len(p.evals) != 1 {
		t.Fatalf("clicks=%d evals=%d", p.clicks, len(p.evals))
	}
}

func TestIsDetachedFrame(t *testing.T) {
	if !IsDetachedFrame(errors.New("Execution context was destroyed: frame got Detached")) {
		t.Error("detached message not recognised")
	}
	if IsDetachedFrame(errors.New("timeout")) || IsDetachedFrame(nil) {
		t.Error("false positive")
	}
}

func TestActivate_CoveredControlFallsBackWithinTimeout(t *testing.T) {
	p := &fakePage{clickHang: true}
	d := New(Config{Page: p, ClickTimeout: 50 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		d.Activate(context.WithoutCancel(context.Background()), "#tab")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Activate still blocked on a click that never completes")
	}
	if len(p.evals) != 1 || p.evals[0] != domClickJS {
		t.Fatalf("DOM fallback evals: got %d, want 1", len(p.evals))
	}
}

func TestActivate_ClickTimeoutDefaultsToControlTimeout(t *testing.T) {
	d := New(Config{Page: &fakePage{}, ControlTimeout: 3 * time.Second})
	if d.cfg.ClickTimeout != 3*time.Second {
		t.Fatalf("ClickTimeout: got %v, want 3s", d.cfg.ClickTimeout)
	}
}
