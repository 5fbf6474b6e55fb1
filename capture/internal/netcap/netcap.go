// CLAUDE:SUMMARY Captures the one network response whose URL contains a marker, page-level wait first, control-channel listener second, single resolution each.
// Package netcap observes exactly one network response whose URL contains a
// marker substring. Both listeners are armed before the triggering action;
// the two strategies then wait back to back inside one overall deadline: a
// page-level one-shot wait, then a control-channel listener.
// Each strategy resolves at most once and always releases its listener and
// timer, whichever of match or timeout comes first.
package netcap

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Strategy names which detection path produced a Result.
type Strategy string

const (
	StrategyPage    Strategy = "page"
	StrategyChannel Strategy = "channel"
)

// Event is one Network.responseReceived notification.
type Event struct {
	RequestID string
	URL       string
	Status    int
	Headers   map[string]string
}

// Result is the captured response. It is never mutated after construction.
type Result struct {
	URL      string
	Status   int
	Headers  map[string]string
	Body     *string
	Strategy Strategy
}

// HeaderKeys returns the response header names, sorted.
func (r *Result) HeaderKeys() []string {
	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PageSource is the high-level page response stream.
type PageSource interface {
	// ArmResponse subscribes before returning; wait then blocks until the
	// first response whose URL satisfies match, or until ctx ends. Events
	// emitted before ArmResponse are not seen.
	ArmResponse(ctx context.Context, match func(url string) bool) (wait func() (Event, error))
	ResponseBody(ctx context.Context, requestID string) (string, error)
}

// ChannelSource is the low-level control channel.
type ChannelSource interface {
	// OnResponse delivers every response event to handler until detach is called.
	OnResponse(handler func(Event)) (detach func())
	ResponseBody(ctx context.Context, requestID string) (string, error)
}

// Config configures a Capturer.
type Config struct {
	Page    PageSource
	Channel ChannelSource

	// PrimaryShare is the fraction of the overall deadline given to the page
	// strategy; the channel strategy gets what is left. Default: 2/3.
	PrimaryShare float64

	// BodyTimeout bounds each body fetch. Default: 5s.
	BodyTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PrimaryShare <= 0 || c.PrimaryShare >= 1 {
		c.PrimaryShare = 2.0 / 3.0
	}
	if c.BodyTimeout <= 0 {
		c.BodyTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Capturer runs the two detection strategies.
type Capturer struct {
	cfg Config
}

// New creates a Capturer. Either source may be nil, in which case that
// strategy is skipped.
func New(cfg Config) *Capturer {
	cfg.defaults()
	return &Capturer{cfg: cfg}
}

// Await arms both strategies and waits. Use Arm directly when the
// response is triggered by an action that must happen after subscribing.
func (c *Capturer) Await(ctx context.Context, marker string, timeout time.Duration) *Result {
	return c.Arm(ctx, marker, timeout).Wait()
}

// Pending is an armed capture: listeners are attached, timers not started.
type Pending struct {
	c       *Capturer
	ctx     context.Context
	marker  string
	timeout time.Duration

	pageWait   func() (Event, error)
	pageCancel context.CancelFunc

	claimed atomic.Bool
	matched chan Event
	detach  func()

	releaseOnce sync.Once
}

// Arm subscribes both strategies to responses whose URL contains marker.
// Nothing is armed for an empty marker or a non-positive timeout. The
// caller must call Wait or Release.
func (c *Capturer) Arm(ctx context.Context, marker string, timeout time.Duration) *Pending {
	p := &Pending{c: c, ctx: ctx, marker: marker, timeout: timeout}
	if marker == "" || timeout <= 0 {
		return p
	}
	match := func(url string) bool { return strings.Contains(url, marker) }

	if c.cfg.Page != nil {
		pctx, cancel := context.WithCancel(ctx)
		p.pageCancel = cancel
		p.pageWait = c.cfg.Page.ArmResponse(pctx, match)
	}

	if c.cfg.Channel != nil {
		p.matched = make(chan Event, 1)
		detach := c.cfg.Channel.OnResponse(func(ev Event) {
			if !match(ev.URL) {
				return
			}
			// Single resolution point: the first claimant wins, match or timer.
			if !p.claimed.CompareAndSwap(false, true) {
				return
			}
			p.matched <- ev
		})
		var once sync.Once
		p.detach = func() { once.Do(detach) }
	}
	return p
}

// Release detaches every listener. Idempotent; Wait calls it.
func (p *Pending) Release() {
	p.releaseOnce.Do(func() {
		if p.pageCancel != nil {
			p.pageCancel()
		}
		if p.detach != nil {
			p.detach()
		}
	})
}

// Wait returns the first matching response, or nil when nothing matched
// within the timeout. The timeout starts now, not at Arm. Timeouts are not
// errors.
func (p *Pending) Wait() *Result {
	defer p.Release()
	if p.pageWait == nil && p.matched == nil {
		return nil
	}
	deadline := time.Now().Add(p.timeout)
	log := p.c.cfg.Logger

	if p.pageWait != nil {
		window := time.Duration(float64(p.timeout) * p.c.cfg.PrimaryShare)
		if p.matched == nil {
			window = p.timeout
		}
		if r := p.waitPage(window); r != nil {
			return r
		}
		log.Debug("netcap: page strategy timed out", "marker", p.marker, "window", window)
	}

	if p.matched == nil || p.ctx.Err() != nil {
		return nil
	}
	remaining := max(time.Until(deadline), 0)
	r := p.waitChannel(remaining)
	if r == nil {
		log.Debug("netcap: channel strategy timed out", "marker", p.marker, "window", remaining)
	}
	return r
}

// waitPage is strategy A: the one-shot filtered wait on the page stream.
func (p *Pending) waitPage(window time.Duration) *Result {
	timer := time.AfterFunc(window, p.pageCancel)
	ev, err := p.pageWait()
	timer.Stop()
	p.pageCancel()
	if err != nil {
		return nil
	}
	return p.c.build(p.ctx, ev, p.c.cfg.Page.ResponseBody, StrategyPage)
}

// waitChannel is strategy B. The listener may already have claimed a match
// while strategy A was waiting; otherwise the timer races the listener on
// the same claim flag.
func (p *Pending) waitChannel(window time.Duration) *Result {
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case ev := <-p.matched:
		p.detach()
		return p.c.build(p.ctx, ev, p.c.cfg.Channel.ResponseBody, StrategyChannel)
	case <-timer.C:
	case <-p.ctx.Done():
	}

	if p.claimed.CompareAndSwap(false, true) {
		p.detach()
		return nil
	}
	// A match claimed the result just before the timer fired; it wins.
	ev := <-p.matched
	p.detach()
	return p.c.build(p.ctx, ev, p.c.cfg.Channel.ResponseBody, StrategyChannel)
}

func (c *Capturer) build(ctx context.Context, ev Event, body func(context.Context, string) (string, error), s Strategy) *Result {
	headers := make(map[string]string, len(ev.Headers))
	for k, v := range ev.Headers {
		headers[k] = v
	}
	r := &Result{
		URL:      ev.URL,
		Status:   ev.Status,
		Headers:  headers,
		Strategy: s,
	}

	if ev.RequestID != "" && ctx.Err() == nil {
		bctx, cancel := context.WithTimeout(ctx, c.cfg.BodyTimeout)
		text, err := body(bctx, ev.RequestID)
		cancel()
		if err != nil {
			c.cfg.Logger.Debug("netcap: body unavailable", "url", ev.URL, "strategy", s, "error", err)
		} else {
			r.Body = &text
		}
	}

	c.cfg.Logger.Info("netcap: response captured", "url", ev.URL, "status", ev.Status, "strategy", s)
	return r
}
