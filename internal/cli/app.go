package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/agora/internal/config"
	"github.com/roach88/agora/internal/debate"
	"github.com/roach88/agora/internal/index"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/refs"
	"github.com/roach88/agora/internal/schema"
)

// app is the set of components one command runs against.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	formatter *OutputFormatter
	catalog   *index.Index
	svc       *debate.Service
}

// openApp loads the configuration, applies the global flags and opens the
// store. With initialize set the store layout is created first; otherwise
// the store root must already exist.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command, initialize bool) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Root != "" {
		cfg.Root = opts.Root
	}

	logger, err := newLogger(cfg, opts.Verbose, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if !initialize {
		if _, err := os.Stat(cfg.Root); errors.Is(err, fs.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("no store at %s: run agora init", cfg.Root))
		}
	}

	store, err := objects.Open(cfg.Root,
		objects.WithMaxDepth(cfg.MaxDepth),
		objects.WithMaxBytes(cfg.MaxPayloadBytes),
		objects.WithLogger(logger),
	)
	if err != nil {
		return nil, storeError(err)
	}
	if initialize {
		if err := store.Initialize(ctx); err != nil {
			return nil, storeError(err)
		}
	}

	head, err := refs.New(cfg.Root, store, refs.WithLogger(logger))
	if err != nil {
		return nil, storeError(err)
	}

	validator, err := schema.New()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load record schemas", err)
	}

	catalog, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open catalog", err)
	}

	formatter.VerboseLog("Store: %s", store.Root())
	formatter.VerboseLog("Catalog: %s", cfg.IndexPath())

	return &app{
		cfg:       cfg,
		logger:    logger,
		formatter: formatter,
		catalog:   catalog,
		svc:       debate.New(store, head, catalog, validator, debate.WithLogger(logger)),
	}, nil
}

// Close releases the catalog.
func (a *app) Close() error {
	return a.catalog.Close()
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(cfg config.Config, verbose bool, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}

// withApp opens the store, runs fn and closes the store again.
func withApp(opts *RootOptions, cmd *cobra.Command, initialize bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts, cmd, initialize)
	if err != nil {
		return err
	}
	defer a.Close()
	return storeError(fn(ctx, a))
}
