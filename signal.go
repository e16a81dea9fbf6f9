package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels when the `sync --watch`
// daemon receives SIGINT/SIGTERM, giving the in-flight audit/dispatch cycle
// a chance to finish its current batch and the operation queue a chance to
// drain before the process exits. A second signal forces an immediate exit
// for a hung reconciliation.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, draining sync queue before exit",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit without draining",
				slog.String("signal", sig.String()),
			)
			os.Exit(1)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}

// sighupChannel registers for and returns a channel delivering SIGHUP.
// Callers must signal.Stop(ch) when done listening.
func sighupChannel() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)

	return ch
}

// reloadOnSIGHUP runs fn every time the running process receives SIGHUP,
// letting `nodesync reload` (pidfile.go's sendSIGHUP) trigger an
// out-of-cycle audit on a running `sync --watch` daemon without restarting
// it. Stops when ctx is done.
func reloadOnSIGHUP(ctx context.Context, logger *slog.Logger, fn func()) {
	sigCh := sighupChannel()

	go func() {
		defer signal.Stop(sigCh)

		for {
			select {
			case <-sigCh:
				logger.Info("received SIGHUP, forcing immediate audit")
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()
}
