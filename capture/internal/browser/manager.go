// CLAUDE:SUMMARY Owns the single headless Chrome process: tries candidate executables, connects via Rod, opens the one shared page, shuts down idempotently.
// Package browser manages the headless Chrome lifecycle for sitecap: launch
// from a list of candidate executables, connect via Rod, expose one page and
// a control channel bound to it, and tear everything down on shutdown.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// ErrLaunch is returned when no candidate executable yields a usable browser.
var ErrLaunch = errors.New("browser: launch failed")

// ErrClosed is returned by Start after Shutdown.
var ErrClosed = errors.New("browser: host is closed")

// wellKnownPaths are probed after the configured executable.
var wellKnownPaths = []string{
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/google-chrome",
	"/headless-shell/headless-shell",
}

// Config configures the browser host.
type Config struct {
	// ExecutablePath is tried first. Empty = only the probed locations.
	ExecutablePath string

	// Flags are extra Chrome switches, "name" or "name=value", leading dashes optional.
	Flags []string

	// Verbose forwards the browser's stdout/stderr to the process stderr.
	Verbose bool

	// Stealth creates the page through go-rod/stealth.
	Stealth bool

	// BlockResources are the resource kinds the session filter aborts.
	// Nil keeps the defaults.
	BlockResources []string

	// LaunchTimeout bounds the whole candidate walk. Default: 60s.
	LaunchTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Host owns one Chrome process and the one Session opened on it.
type Host struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	session *Session
	closed  bool

	// lookPath is swapped in tests.
	lookPath func() (string, bool)
	stat     func(string) error
}

// NewHost creates a Host. Call Start to launch Chrome.
func NewHost(cfg Config) *Host {
	cfg.defaults()
	return &Host{
		cfg:      cfg,
		lookPath: launcher.LookPath,
		stat: func(p string) error {
			_, err := os.Stat(p)
			return err
		},
	}
}

// Start launches Chrome, opens the shared page and enables network events on
// it. A second call returns the existing session.
func (h *Host) Start(ctx context.Context) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.session != nil {
		return h.session, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.LaunchTimeout)
	defer cancel()

	var errs []error
	for _, bin := range h.candidates() {
		b, l, err := h.launch(ctx, bin)
		if err != nil {
			h.cfg.Logger.Warn("browser: candidate failed", "path", displayPath(bin), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", displayPath(bin), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		s, err := h.openSession(b)
		if err != nil {
			b.Close()
			l.Kill()
			errs = append(errs, fmt.Errorf("%s: %w", displayPath(bin), err))
			continue
		}

		h.browser = b
		h.lnch = l
		h.session = s
		h.cfg.Logger.Info("browser: launched", "path", displayPath(bin), "stealth", h.cfg.Stealth)
		return s, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrLaunch, errors.Join(errs...))
}

// Session returns the active session, or nil before Start.
func (h *Host) Session() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// Shutdown closes the browser and the launcher. Idempotent; close errors are
// logged and swallowed so shutdown always completes.
func (h *Host) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	if h.browser != nil {
		b := h.browser
		done := make(chan error, 1)
		go func() { done <- b.Close() }()
		select {
		case err := <-done:
			if err != nil {
				h.cfg.Logger.Debug("browser: close", "error", err)
			}
		case <-time.After(5 * time.Second):
			h.cfg.Logger.Warn("browser: close timed out, killing process")
		}
		h.browser = nil
	}
	if h.lnch != nil {
		h.lnch.Kill()
		h.lnch.Cleanup()
		h.lnch = nil
	}
	h.session = nil
	h.cfg.Logger.Info("browser: shut down")
}

// candidates lists executables to try, configured path first, deduplicated.
// The empty string stands for the launcher's own browser resolution.
func (h *Host) candidates() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}

	if h.cfg.ExecutablePath != "" {
		add(h.cfg.ExecutablePath)
	}
	for _, p := range wellKnownPaths {
		if h.stat(p) == nil {
			add(p)
		}
	}
	if p, ok := h.lookPath(); ok {
		add(p)
	}
	add("")
	return out
}

func (h *Host) launch(ctx context.Context, bin string) (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage")
	if bin != "" {
		l = l.Bin(bin)
	}
	for _, raw := range h.cfg.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	if h.cfg.Verbose {
		l = l.Logger(os.Stderr)
	}

	type result struct {
		url string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := l.Launch()
		ch <- result{u, err}
	}()

	var wsURL string
	select {
	case r := <-ch:
		if r.err != nil {
			l.Kill()
			return nil, nil, r.err
		}
		wsURL = r.url
	case <-ctx.Done():
		l.Kill()
		return nil, nil, ctx.Err()
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return b, l, nil
}

func (h *Host) openSession(b *rod.Browser) (*Session, error) {
	var page *rod.Page
	var err error
	if h.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		page.Close()
		return nil, fmt.Errorf("enable network events: %w", err)
	}

	s := newSession(b, page, h.cfg.Logger)
	if h.cfg.BlockResources != nil {
		s.Filter.Block(h.cfg.BlockResources)
	}
	return s, nil
}

func displayPath(bin string) string {
	if bin == "" {
		return "<launcher default>"
	}
	return bin
}
