package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arthur-debert/cookbook/catalog"
	"github.com/arthur-debert/cookbook/internal/config"
	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/storage"
)

// app carries what every command needs once the configuration is loaded
type app struct {
	viper  *viper.Viper
	out    io.Writer
	errOut io.Writer

	// Replaceable in tests
	open      func(ctx context.Context, cfg storage.Config) (*storage.Backends, error)
	setupLogs func(level slog.Level, toStderr bool, stderr io.Writer) (*slog.Logger, io.Closer, error)

	cfg      *config.Config
	logger   *slog.Logger
	logFile  io.Closer
	backends *storage.Backends
	registry *odm.Registry
	catalog  *catalog.Catalog
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		viper:     config.New(),
		out:       out,
		errOut:    errOut,
		open:      storage.Open,
		setupLogs: initLogging,
	}
}

// setup loads the configuration, starts logging and opens the stores
func (a *app) setup(cmd *cobra.Command) error {
	if path := a.viper.GetString("config"); path != "" {
		a.viper.SetConfigFile(path)
	}

	cfg, err := config.Load(a.viper, a.viper.GetString("env-file"))
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, _ := cfg.LogLevel()
	logger, logFile, err := a.setupLogs(level, cfg.Log.Stderr, a.errOut)
	if err != nil {
		return err
	}
	a.logger, a.logFile = logger, logFile

	backends, err := a.open(cmd.Context(), cfg.Storage())
	if err != nil {
		return err
	}
	a.backends = backends
	a.registry = odm.NewRegistry(backends.Remote, backends.Drafts,
		odm.WithLogger(logger),
		odm.WithCachePolicy(cfg.CachePolicy()),
	)
	a.catalog = catalog.Register(a.registry)

	a.logger.Debug("command started", "command", cmd.CommandPath(),
		"remote", cfg.Remote.Backend, "drafts", cfg.Drafts.Backend)
	return nil
}

func (a *app) teardown() error {
	var err error
	if a.backends != nil {
		err = a.backends.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
	return err
}

// model resolves the --collection flag
func (a *app) model(cmd *cobra.Command) (*odm.Model, error) {
	name, _ := cmd.Flags().GetString("collection")
	return a.registry.Lookup(name)
}
