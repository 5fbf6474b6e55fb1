package browser

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Evaluator runs a script in the page.
type Evaluator interface {
	Eval(ctx context.Context, js string, args ...any) (string, error)
}

// KeepAlive periodically issues a no-op evaluation against the page so the
// browser does not tear down an idle target. Failures are logged at debug
// level and otherwise ignored; the page may be closed or mid-navigation.
type KeepAlive struct {
	page     Evaluator
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// StartKeepAlive launches the keep-alive loop. Stop it with Stop.
func StartKeepAlive(ctx context.Context, page Evaluator, interval time.Duration, logger *slog.Logger) *KeepAlive {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	k := &KeepAlive{
		page:     page,
		interval: interval,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go k.loop(ctx)
	return k
}

// Stop halts the loop and waits for it to exit. Idempotent.
func (k *KeepAlive) Stop() {
	k.stopOnce.Do(func() {
		k.cancel()
		<-k.done
	})
}

func (k *KeepAlive) loop(ctx context.Context) {
	defer close(k.done)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.ping(ctx)
		}
	}
}

func (k *KeepAlive) ping(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Debug("browser: keep-alive panic", "panic", r)
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, k.interval)
	defer cancel()
	if _, err := k.page.Eval(pctx, `() => 1`); err != nil {
		k.logger.Debug("browser: keep-alive failed", "error", err)
	}
}
