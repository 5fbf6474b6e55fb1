// CLAUDE:SUMMARY Navigates the shared page with a single detached-frame retry, waits for the tab control, clicks it natively or via DOM fallback.
// Package interact drives the one UI interaction the capture replays.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrNavigation is returned when the target page cannot be loaded.
var ErrNavigation = errors.New("interact: navigation failed")

// ErrControlNotFound is returned when the control never becomes visible.
var ErrControlNotFound = errors.New("interact: control not found")

// Page is the subset of page operations the driver needs.
type Page interface {
	// Navigate loads url and returns once DOMContentLoaded fired.
	Navigate(ctx context.Context, url string) error
	Visible(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Eval(ctx context.Context, js string, args ...any) (string, error)
}

// domClickJS clicks the first match; it throws when nothing matches so the
// caller sees a failure.
const domClickJS = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) throw new Error('no element for ' + sel);
	el.click();
	return true;
}`

// Config configures a Driver.
type Config struct {
	Page Page

	// NavigationTimeout bounds each navigation attempt. Default: 20s.
	NavigationTimeout time.Duration

	// ControlTimeout bounds WaitForControl. Default: 10s.
	ControlTimeout time.Duration

	// PollInterval is the WaitForControl polling period. Default: 100ms.
	PollInterval time.Duration

	// ClickTimeout bounds the native click and the DOM fallback, each.
	// Default: ControlTimeout.
	ClickTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 20 * time.Second
	}
	if c.ControlTimeout <= 0 {
		c.ControlTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ClickTimeout <= 0 {
		c.ClickTimeout = c.ControlTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Driver navigates and activates the control.
type Driver struct {
	cfg Config
}

// New creates a Driver.
func New(cfg Config) *Driver {
	cfg.defaults()
	return &Driver{cfg: cfg}
}

// Navigate loads url. A detached-frame failure is retried exactly once; any
// other failure, or a second detached-frame failure, wraps ErrNavigation.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	err := d.navigateOnce(ctx, url)
	if err == nil {
		return nil
	}
	if !IsDetachedFrame(err) || ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigation, url, err)
	}

	d.cfg.Logger.Warn("interact: frame detached during navigation, retrying", "url", url, "error", err)
	if err := d.navigateOnce(ctx, url); err != nil {
		return fmt.Errorf("%w: %s (after retry): %w", ErrNavigation, url, err)
	}
	return nil
}

func (d *Driver) navigateOnce(ctx context.Context, url string) error {
	nctx, cancel := context.WithTimeout(ctx, d.cfg.NavigationTimeout)
	defer cancel()
	return d.cfg.Page.Navigate(nctx, url)
}

// IsDetachedFrame reports whether err is the transient "frame was detached"
// failure browsers raise when a navigation races a frame swap.
func IsDetachedFrame(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "detached")
}

// WaitForControl polls until selector exists and is visible.
func (d *Driver) WaitForControl(ctx context.Context, selector string) error {
	wctx, cancel := context.WithTimeout(ctx, d.cfg.ControlTimeout)
	defer cancel()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := d.cfg.Page.Visible(wctx, selector)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-wctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: %s: %w", ErrControlNotFound, selector, lastErr)
			}
			return fmt.Errorf("%w: %s", ErrControlNotFound, selector)
		case <-ticker.C:
		}
	}
}

// Activate clicks selector natively, falling back to a DOM click. Failure of
// both is logged and swallowed: the capture wait that follows simply times out.
func (d *Driver) Activate(ctx context.Context, selector string) {
	cctx, cancel := context.WithTimeout(ctx, d.cfg.ClickTimeout)
	err := d.cfg.Page.Click(cctx, selector)
	cancel()
	if err == nil {
		return
	}
	d.cfg.Logger.Debug("interact: native click failed, using DOM click", "selector", selector, "error", err)

	ectx, cancel := context.WithTimeout(ctx, d.cfg.ClickTimeout)
	defer cancel()
	if _, derr := d.cfg.Page.Eval(ectx, domClickJS, selector); derr != nil {
		d.cfg.Logger.Warn("interact: control activation failed", "selector", selector,
			"click_error", err, "dom_error", derr)
	}
}
