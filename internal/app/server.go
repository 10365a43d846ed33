package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start serves the challenge API in the background. The returned channel is
// closed on SIGINT, SIGTERM or SIGHUP, or when the server fails to listen.
func (a *App) Start() <-chan struct{} {
	ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)

		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen and serve http server", "error", err)
			a.cancel()
		}
	}()

	terminate := make(chan struct{})
	go func() {
		defer stop()
		<-ctx.Done()
		slog.Info("shutdown requested")
		close(terminate)
	}()

	return terminate
}

// Stop drains in-flight requests, then waits for challenge events still being
// published. Events pending when ctx expires are abandoned before the
// resources are closed.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}
	a.cancel()

	slog.InfoContext(ctx, "waiting for pending challenge events")
	done := make(chan error, 1)
	go func() { done <- a.goroutine.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			slog.ErrorContext(ctx, "challenge event publishing finished with errors", "error", err)
		}
	case <-ctx.Done():
		slog.WarnContext(ctx, "shutdown deadline reached with challenge events pending", "error", ctx.Err())
	}

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}

	slog.InfoContext(ctx, "application stopped")
}
