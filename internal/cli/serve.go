package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/peer"
	"github.com/roach88/savetray/internal/store"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run this peer's document store and write queue",
		Long: `Run a peer: serve its documents over HTTP and, while it holds coordinator
status, apply delegated writes one at a time.

The database is created if it doesn't exist. On restart the write sequence
resumes after the last logged commit.

Example:
  savetray serve --config ./gm.yaml
  savetray serve --self gm --coordinator gm --peer gm=http://127.0.0.1:7420 --db /tmp/gm.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default: config listen)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: config database)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	logger.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := commandContext(cmd)
	lastSeq, err := st.LastSeq(parentCtx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read commit log", err)
	}

	dir := peer.NewStaticDirectory(delegate.PeerRef(cfg.Self), delegate.PeerRef(cfg.Coordinator), cfg.PeerURLs())
	handler := delegate.NewHandler(dir, st,
		delegate.WithClock(delegate.NewClockAt(lastSeq)),
		delegate.WithHandlerLogger(logger),
	)
	loop := delegate.NewLoop(handler)
	srv := peer.NewServer(loop, st, dir, peer.WithServerLogger(logger))

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: shutdownTimeout,
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- httpServer.Serve(ln)
	}()

	logger.Info("peer started",
		"self", cfg.Self,
		"coordinator", cfg.Coordinator,
		"addr", ln.Addr().String(),
		"seq", lastSeq,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Peer %s listening on %s\n", cfg.Self, ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-serveDone:
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("write loop stopped", "error", err)
	}

	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", serveErr)
	}

	logger.Info("peer stopped gracefully", "seq", handler.Clock().Current())
	return nil
}
