// CLAUDE:SUMMARY Owns the shared browser session and runs the capture pipeline one request at a time: reset, navigate, interact, await the marker response, extract token and cookies.
// Package capture replays one UI interaction against a target site in a
// long-lived headless browser and reports the marker response it triggers,
// the site's anti-forgery token and its cookies.
//
// Usage:
//
//	cfg, _ := capture.LoadConfig(os.Getenv)
//	svc := capture.New(cfg, logger)
//	if err := svc.Start(ctx); err != nil { ... }
//	defer svc.Close()
//	report, err := svc.Capture(ctx)
package capture

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/sitecap/capture/internal/artifact"
	"github.com/hazyhaar/sitecap/capture/internal/browser"
	"github.com/hazyhaar/sitecap/capture/internal/config"
	"github.com/hazyhaar/sitecap/capture/internal/interact"
	"github.com/hazyhaar/sitecap/capture/internal/netcap"
	"github.com/hazyhaar/sitecap/capture/internal/reset"
	"github.com/hazyhaar/sitecap/idgen"
	"github.com/hazyhaar/sitecap/kit"
)

// filterResumeTimeout bounds re-enabling the resource filter after a run.
const filterResumeTimeout = 5 * time.Second

// pageDriver is everything the pipeline needs from the shared page.
type pageDriver interface {
	interact.Page
	netcap.PageSource
	artifact.PageCookies
}

// controlChannel is everything the pipeline needs from the control channel.
type controlChannel interface {
	reset.Channel
	netcap.ChannelSource
	artifact.ChannelCookies
}

type resourceFilter interface {
	Enable(ctx context.Context)
	Disable(ctx context.Context)
}

// pipeline is the set of components bound to one session.
type pipeline struct {
	reset     *reset.Resetter
	driver    *interact.Driver
	filter    resourceFilter
	capturer  *netcap.Capturer
	extractor *artifact.Extractor
}

func newPipeline(cfg *config.Config, page pageDriver, channel controlChannel, filter resourceFilter, logger *slog.Logger) *pipeline {
	return &pipeline{
		reset: reset.New(channel, page, 0, logger),
		driver: interact.New(interact.Config{
			Page:              page,
			NavigationTimeout: cfg.Capture.NavigationTimeout,
			ControlTimeout:    cfg.Capture.ControlTimeout,
			Logger:            logger,
		}),
		filter: filter,
		capturer: netcap.New(netcap.Config{
			Page:    page,
			Channel: channel,
			Logger:  logger,
		}),
		extractor: artifact.New(artifact.Config{
			DOM:     page,
			Channel: channel,
			Page:    page,
			Domains: cfg.Target.CookieDomains,
			Logger:  logger,
		}),
	}
}

// Service is the capture service. Capture runs are serialized: a call made
// while another run holds the session fails fast with ErrBusy.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	host   *browser.Host

	run  sync.Mutex // held for the duration of one capture
	mu   sync.Mutex // guards pipe and keep
	pipe *pipeline
	keep *browser.KeepAlive

	hostname string
	now      func() time.Time
}

// New creates a Service. Call Start before Capture.
func New(cfg *Config, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	s := newService(cfg, logger)
	s.host = browser.NewHost(browser.Config{
		ExecutablePath: cfg.Browser.ExecutablePath,
		Flags:          cfg.Browser.Flags,
		Verbose:        cfg.Browser.Verbose,
		Stealth:        cfg.Browser.Stealth,
		LaunchTimeout:  cfg.Browser.LaunchTimeout,
		BlockResources: cfg.Browser.BlockResources,
		Logger:         s.logger,
	})
	return s
}

func newService(cfg *config.Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		hostname: host,
		now:      time.Now,
	}
}

// Start launches the browser, wires the pipeline to its session, turns the
// resource filter on and starts the keep-alive loop. Failure wraps ErrLaunch.
func (s *Service) Start(ctx context.Context) error {
	sess, err := s.host.Start(ctx)
	if err != nil {
		return err
	}
	s.attach(newPipeline(s.cfg, sess.Page, sess.Channel, sess.Filter, s.logger), sess.Page)
	s.logger.Info("capture: ready",
		"target", s.cfg.Target.URL,
		"marker", s.cfg.Target.ResponseMarker,
		"cookie_domains", s.cfg.Target.CookieDomains)
	return nil
}

func (s *Service) attach(p *pipeline, page browser.Evaluator) {
	fctx, cancel := context.WithTimeout(context.Background(), filterResumeTimeout)
	p.filter.Enable(fctx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipe = p
	if page != nil {
		s.keep = browser.StartKeepAlive(context.Background(), page, s.cfg.Browser.KeepAlive, s.logger)
	}
}

// Close stops the keep-alive loop and shuts the browser down. It always
// runs to completion and is safe to call more than once.
func (s *Service) Close() {
	s.mu.Lock()
	keep := s.keep
	s.keep = nil
	s.pipe = nil
	s.mu.Unlock()

	if keep != nil {
		keep.Stop()
	}
	if s.host != nil {
		s.host.Shutdown()
	}
}

// Health reports liveness. It has no side effects.
func (s *Service) Health() Health {
	return Health{OK: true, Timestamp: s.now().UTC(), Host: s.hostname}
}

// Capture runs the pipeline once. Only navigation and control lookup fail
// the run; every other step degrades to an empty value in the Report.
func (s *Service) Capture(ctx context.Context) (*Report, error) {
	if !s.run.TryLock() {
		return nil, ErrBusy
	}
	defer s.run.Unlock()

	s.mu.Lock()
	p := s.pipe
	s.mu.Unlock()
	if p == nil {
		return nil, ErrNotStarted
	}

	runID := idgen.RunID()
	ctx = kit.WithRunID(ctx, runID)
	log := s.logger.With("run_id", runID)
	if tid := kit.GetTraceID(ctx); tid != "" {
		log = log.With("trace_id", tid)
	}
	start := s.now()
	target := s.cfg.Target

	if rep := p.reset.Reset(ctx, s.cfg.Origin()); len(rep.Failed) > 0 {
		log.Debug("capture: reset incomplete", "failed", rep.Failed)
	}

	if err := p.driver.Navigate(ctx, target.URL); err != nil {
		log.Error("capture: navigation failed", "url", target.URL, "error", err)
		return nil, err
	}

	// The marker response is usually an asset the filter would abort, so the
	// filter stays off from the interaction until the capture resolves.
	suspend(ctx, p.filter)
	defer resume(ctx, p.filter)

	if err := p.driver.WaitForControl(ctx, target.ControlSelector); err != nil {
		log.Error("capture: control not found", "selector", target.ControlSelector, "error", err)
		return nil, err
	}

	// Listeners go up before the click: the response may arrive before
	// Activate returns.
	pending := p.capturer.Arm(ctx, target.ResponseMarker, s.cfg.Capture.MaxWait)
	p.driver.Activate(ctx, target.ControlSelector)
	result := pending.Wait()
	resume(ctx, p.filter)

	rep := &Report{
		RunID:     runID,
		Timestamp: s.now().UTC(),
		Cookies:   p.extractor.CollectCookies(ctx),
		Seen:      result != nil,
		Summary:   summarize(result),
	}
	if tok := p.extractor.ExtractToken(ctx, result); tok != "" {
		rep.Token = &tok
	}
	if result != nil {
		rep.Strategy = string(result.Strategy)
	}
	rep.DurationMs = s.now().Sub(start).Milliseconds()

	log.Info("capture: done",
		"seen", rep.Seen,
		"strategy", rep.Strategy,
		"cookies", len(rep.Cookies),
		"token", rep.Token != nil,
		"duration_ms", rep.DurationMs)
	return rep, nil
}

// suspend turns the filter off under its own deadline; the capture context
// itself may carry none.
func suspend(ctx context.Context, f resourceFilter) {
	fctx, cancel := context.WithTimeout(ctx, filterResumeTimeout)
	defer cancel()
	f.Disable(fctx)
}

// resume re-enables the filter on a context detached from the caller's, so
// a cancelled request still leaves the session filtered. Enable is a no-op
// when the filter is already on.
func resume(ctx context.Context, f resourceFilter) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), filterResumeTimeout)
	defer cancel()
	f.Enable(fctx)
}
