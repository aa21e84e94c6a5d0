package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/internal/config"
	"github.com/hupe1980/hyperhist/observability"
	"github.com/hupe1980/hyperhist/persistence"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	configPath string
	storePath  string
	backend    string
	logLevel   string
	metricsOut string
	noColor    bool

	cfg     *config.Config
	logger  *hyperhist.Logger
	metrics *observability.PrometheusCollector
	store   *persistence.Store
}

// execute runs one invocation with args and releases the store and
// exports metrics afterwards, whether or not the command failed.
func execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, a := newRootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.teardown(ctx))
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "hyperhist",
		Short: "Build and inspect hyper-binning histograms",
		Long: `hyperhist builds N-dimensional histograms with adaptive binnings and
keeps them in a local directory, S3 or MinIO.

Settings are read from .hyperhist.yaml in the working directory or $HOME,
then from HYPERHIST_* environment variables, then from flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default .hyperhist.yaml)")
	flags.StringVar(&a.storePath, "store", "", "store directory or bucket prefix")
	flags.StringVar(&a.backend, "backend", "", "store backend: local, memory, s3 or minio")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics to this textfile on exit")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newBuildCommand(a),
		newInfoCommand(a),
		newDumpCommand(a),
		newMergeCommand(a),
		newSliceCommand(a),
		newCompactCommand(a),
		newProjectCommand(a),
		newRenderCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)

	return root, a
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
		cfg.Store.Prefix = a.storePath
	}
	if a.backend != "" {
		cfg.Store.Backend = a.backend
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsOut != "" {
		cfg.Metrics.Textfile = a.metricsOut
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	a.cfg = cfg

	if a.noColor {
		color.NoColor = true
	}

	level, _ := cfg.LogLevel()
	a.logger = newLogger(cmd.ErrOrStderr(), cfg.Log.Format, level)
	a.metrics = observability.NewPrometheusCollector()
	return nil
}

func newLogger(w io.Writer, format string, level slog.Level) *hyperhist.Logger {
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return hyperhist.NewLogger(slog.NewJSONHandler(w, hopts))
	}
	return hyperhist.NewLogger(slog.NewTextHandler(w, hopts))
}

func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	if a.cfg != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		} else {
			a.logger.DebugContext(ctx, "metrics written", "path", a.cfg.Metrics.Textfile)
		}
	}
	return errors.Join(errs...)
}

// openStore opens the configured store once per invocation.
func (a *app) openStore(ctx context.Context) (*persistence.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := openStore(ctx, a.cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// histogramOptions translates the configuration into histogram options.
func (a *app) histogramOptions(extra ...hyperhist.Option) []hyperhist.Option {
	mode := hyperhist.PreserveIntegral
	if a.cfg.Build.Compaction == "values" {
		mode = hyperhist.PreserveValues
	}
	residency := binning.MemoryResident
	if a.cfg.Store.Residency == "store" {
		residency = binning.StoreBacked
	}
	return append([]hyperhist.Option{
		hyperhist.WithLogger(a.logger),
		hyperhist.WithMetricsCollector(a.metrics),
		hyperhist.WithCompactionMode(mode),
		hyperhist.WithResidency(residency),
		hyperhist.WithKeepGenerations(a.cfg.Store.KeepGenerations),
	}, extra...)
}
