// CLAUDE:SUMMARY Entry point for the sitecap HTTP service: env config, headless browser launch, chi router with shield middleware, optional MCP over streamable HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/sitecap/capture"
	"github.com/hazyhaar/sitecap/shield"
)

func main() {
	// Logging.
	var lvl slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := capture.LoadConfig(os.Getenv)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := capture.New(cfg, logger)
	if err := svc.Start(ctx); err != nil {
		if errors.Is(err, capture.ErrLaunch) {
			slog.Error("no usable browser", "error", err)
		} else {
			slog.Error("start", "error", err)
		}
		svc.Close()
		os.Exit(1)
	}

	// Router.
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack("/", "/healthz") {
		r.Use(mw)
	}
	svc.Routes(r)

	// Optional MCP over streamable HTTP.
	if cfg.Listen.MCPHTTP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "sitecap",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return mcpSrv
		}, nil))
		slog.Info("MCP enabled", "path", "/mcp")
	}

	// HTTP server. WriteTimeout leaves room for a full capture run.
	srv := &http.Server{
		Addr:              ":" + cfg.Listen.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Capture.NavigationTimeout*2 + cfg.Capture.ControlTimeout + cfg.Capture.MaxWait + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Listen.Port, "target", cfg.Target.URL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		slog.Error("server error", "error", err)
		exitCode = 1
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	svc.Close()
	slog.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
