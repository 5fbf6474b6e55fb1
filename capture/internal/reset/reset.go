// CLAUDE:SUMMARY Best-effort wipe of cookies, cache, origin storage and in-page storage before each capture run.
// Package reset returns the shared page to a clean slate before each capture.
package reset

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Channel is the control-channel side of the reset.
type Channel interface {
	ClearCookies(ctx context.Context) error
	ClearCache(ctx context.Context) error
	ClearOriginStorage(ctx context.Context, origin string) error
}

// Evaluator runs a script in the page.
type Evaluator interface {
	Eval(ctx context.Context, js string, args ...any) (string, error)
}

// clearPageJS wipes Web Storage and expires every cookie visible to script,
// on the current path and on every parent domain. Each part is guarded so an
// unsupported API does not stop the rest.
const clearPageJS = `() => {
	try { window.localStorage && localStorage.clear(); } catch (e) {}
	try { window.sessionStorage && sessionStorage.clear(); } catch (e) {}
	try {
		const past = 'Thu, 01 Jan 1970 00:00:00 GMT';
		const host = location.hostname;
		const parts = host.split('.');
		const domains = [''];
		for (let i = 0; i < parts.length - 1; i++) {
			domains.push('; domain=.' + parts.slice(i).join('.'));
		}
		for (const c of document.cookie.split(';')) {
			const eq = c.indexOf('=');
			const name = (eq > -1 ? c.slice(0, eq) : c).trim();
			if (!name) continue;
			for (const d of domains) {
				document.cookie = name + '=; expires=' + past + '; path=/' + d;
			}
		}
	} catch (e) {}
	return true;
}`

// Step is one named clearing action.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Report lists the steps that failed during a reset.
type Report struct {
	Failed []string
}

// Resetter clears browser state for one origin.
type Resetter struct {
	channel     Channel
	page        Evaluator
	stepTimeout time.Duration
	logger      *slog.Logger
}

// New creates a Resetter. stepTimeout bounds each step; zero means 5s.
func New(channel Channel, page Evaluator, stepTimeout time.Duration, logger *slog.Logger) *Resetter {
	if stepTimeout <= 0 {
		stepTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resetter{channel: channel, page: page, stepTimeout: stepTimeout, logger: logger}
}

// Steps returns the ordered clearing actions for origin.
func (r *Resetter) Steps(origin string) []Step {
	return []Step{
		{Name: "cookies", Run: r.channel.ClearCookies},
		{Name: "cache", Run: r.channel.ClearCache},
		{Name: "origin_storage", Run: func(ctx context.Context) error {
			if origin == "" {
				return nil
			}
			return r.channel.ClearOriginStorage(ctx, origin)
		}},
		{Name: "page_storage", Run: func(ctx context.Context) error {
			_, err := r.page.Eval(ctx, clearPageJS)
			return err
		}},
	}
}

// Reset runs every step; a failing step is logged and skipped. It never
// returns an error.
func (r *Resetter) Reset(ctx context.Context, origin string) Report {
	var rep Report
	for _, s := range r.Steps(origin) {
		if err := r.run(ctx, s); err != nil {
			r.logger.Debug("reset: step failed", "step", s.Name, "origin", origin, "error", err)
			rep.Failed = append(rep.Failed, s.Name)
		}
	}
	return rep
}

func (r *Resetter) run(ctx context.Context, s Step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicError{p}
		}
	}()
	sctx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	defer cancel()
	return s.Run(sctx)
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("reset: step panicked: %v", p.v) }
