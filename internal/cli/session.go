package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/savetray/internal/config"
	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/peer"
	"github.com/roach88/savetray/internal/tray"
)

// loadConfig reads the configuration file (or defaults) and applies the
// global flag overrides.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return config.Config{}, configError(err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("self") {
		cfg.Self = opts.Self
	}
	if flags.Changed("coordinator") {
		cfg.Coordinator = opts.Coordinator
	}
	for ref, u := range opts.Peers {
		cfg.Peers[ref] = u
	}

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, configError(err)
	}
	return cfg, nil
}

func configError(err error) error {
	if errors.Is(err, config.ErrInvalidConfig) {
		return WrapExitError(ExitCommandError, ErrCodeConfig+": invalid configuration", err)
	}
	return WrapExitError(ExitCommandError, ErrCodeConfig+": failed to load config", err)
}

// newLogger returns a text logger on w; --verbose enables debug records.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// session is a non-serving peer: it reads through its own peer's HTTP
// routes and ships writes to the coordinator.
type session struct {
	cfg     config.Config
	dir     *peer.StaticDirectory
	reader  *peer.HTTPLedgerReader
	service *tray.Service
}

func newSession(opts *RootOptions, cmd *cobra.Command, trayOpts ...tray.Option) (*session, error) {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}
	logger := newLogger(opts, cmd.ErrOrStderr())
	dir := peer.NewStaticDirectory(delegate.PeerRef(cfg.Self), delegate.PeerRef(cfg.Coordinator), cfg.PeerURLs())
	selfURL, ok := dir.URL(dir.Self())
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: no URL for peer %q", ErrCodeConfig, cfg.Self))
	}

	clientOpts := []peer.ClientOption{peer.WithClientLogger(logger)}
	reader := peer.NewHTTPLedgerReader(selfURL, dir.Self(), clientOpts...)
	requester := delegate.NewRequester(dir, peer.NewHTTPTransport(dir, clientOpts...),
		delegate.WithTimeout(cfg.RequestTimeout()),
		delegate.WithRequesterLogger(logger),
	)

	trayOpts = append([]tray.Option{
		tray.WithSlot(cfg.Namespace, cfg.Key),
		tray.WithLogger(logger),
	}, trayOpts...)

	return &session{
		cfg:     cfg,
		dir:     dir,
		reader:  reader,
		service: tray.NewService(reader, requester, trayOpts...),
	}, nil
}

// requireFile fails with a command error if path does not exist, so reads
// never create an empty database.
func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	return nil
}
