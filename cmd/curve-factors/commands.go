package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/curve-factors/internal/actuarial"
	"github.com/iwvelando/curve-factors/internal/config"
	"github.com/iwvelando/curve-factors/internal/server"
	"github.com/iwvelando/curve-factors/internal/store"
	"github.com/iwvelando/curve-factors/pkg/constants"
	"github.com/iwvelando/curve-factors/pkg/curve"
	"github.com/iwvelando/curve-factors/pkg/output"
	"github.com/iwvelando/curve-factors/pkg/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errReported marks a failure that has already been written to stderr.
var errReported = errors.New("batch failed")

// runFlags are the per-run overrides shared by build and validate.
type runFlags struct {
	factorPolicy   string
	coveragePolicy string
	curves         string
	requirements   string
	inflation      string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.factorPolicy, "factor-policy", "", "factor policy override: compounded, power")
	cmd.Flags().StringVar(&f.coveragePolicy, "coverage-policy", "", "coverage policy override: validate, fill")
	cmd.Flags().StringVar(&f.curves, "curves", "", "curve observations table")
	cmd.Flags().StringVar(&f.requirements, "requirements", "", "curve requirements table")
	cmd.Flags().StringVar(&f.inflation, "inflation", "", "inflation observations table")
}

func (f *runFlags) apply(conf *config.Configuration) {
	if f.factorPolicy != "" {
		conf.Engine.FactorPolicy = f.factorPolicy
	}
	if f.coveragePolicy != "" {
		conf.Engine.CoveragePolicy = f.coveragePolicy
	}
}

// run is the state a batch command works with once configuration is loaded.
type run struct {
	conf   *config.Configuration
	logger *zap.Logger
	opts   curve.Options
	inputs actuarial.Inputs
}

// prepareRun loads configuration and inputs. Flag paths are taken as given;
// paths from the configuration file resolve against its directory.
func prepareRun(cmd *cobra.Command, flags *runFlags) (*run, error) {
	conf, err := loadConfiguration(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := initializeLogger(conf.Logging, logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	paths := actuarial.InputPaths{
		CurveObservations:     conf.ResolvePath(conf.Inputs.CurveObservations),
		CurveRequirements:     conf.ResolvePath(conf.Inputs.CurveRequirements),
		InflationObservations: conf.ResolvePath(conf.Inputs.InflationObservations),
	}
	flags.apply(conf)
	if flags.curves != "" {
		paths.CurveObservations = flags.curves
	}
	if flags.requirements != "" {
		paths.CurveRequirements = flags.requirements
	}
	if flags.inflation != "" {
		paths.InflationObservations = flags.inflation
	}

	warnings, err := conf.ValidateConfiguration()
	for _, warning := range warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts, err := conf.CurveOptions()
	if err != nil {
		return nil, err
	}

	inputs, err := actuarial.ReadInputs(paths)
	if err != nil {
		return nil, err
	}

	return &run{conf: conf, logger: logger, opts: opts, inputs: inputs}, nil
}

// loadConfiguration reads --config. A missing default file falls back to
// built-in defaults and environment overrides.
func loadConfiguration(cmd *cobra.Command) (*config.Configuration, error) {
	path := configFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	conf, err := config.LoadConfiguration(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration at %s: %w", configFile, err)
	}
	return conf, nil
}

// exportTargets selects the sinks enabled in the export section.
func exportTargets(conf *config.Configuration) store.Targets {
	var targets store.Targets
	if pg := conf.Export.Postgres; pg.Enabled {
		targets.Postgres = &store.PostgresConfig{DSN: pg.DSN, Schema: pg.Schema}
	}
	if rd := conf.Export.Redis; rd.Enabled {
		targets.Redis = &store.RedisConfig{
			Addr:     rd.Addr,
			Password: rd.Password,
			DB:       rd.DB,
			Prefix:   rd.Prefix,
			TTL:      rd.TTL,
		}
	}
	return targets
}

// reportFailure writes a batch error as YAML and marks it reported.
func reportFailure(w io.Writer, logger *zap.Logger, err error, op string) error {
	logger.Error("batch failed",
		zap.String("op", op),
		zap.Error(err),
	)
	if writeErr := output.WriteFailureYAML(w, err); writeErr != nil {
		return errors.Join(err, writeErr)
	}
	return errReported
}

func newBuildCommand() *cobra.Command {
	var (
		flags        runFlags
		outputFormat string
		outputDir    string
		noExport     bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the curve factor and inflation index tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := prepareRun(cmd, &flags)
			if err != nil {
				return err
			}
			defer func() {
				_ = r.logger.Sync()
			}()

			format := r.conf.Output.Format
			if outputFormat != "" {
				format = outputFormat
			}
			if format == "" {
				format = constants.OutputFormatPretty
			}
			dir := r.conf.ResolvePath(r.conf.Output.Directory)
			if outputDir != "" {
				dir = outputDir
			}
			warning, err := validation.ValidateOutput(format, dir)
			if err != nil {
				return err
			}
			if warning != "" && (outputFormat != "" || outputDir != "") {
				r.logger.Warn("Configuration warning: "+warning,
					zap.String("op", "main.build"),
				)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := actuarial.BuildTables(ctx, r.logger, r.inputs, r.opts)
			if err != nil {
				return reportFailure(cmd.ErrOrStderr(), r.logger, err, "main.build")
			}

			switch format {
			case constants.OutputFormatPretty:
				output.PrettyFormat(cmd.OutOrStdout(), result)
			case constants.OutputFormatCSV:
				if dir == "" {
					dir = "."
				}
				written, err := output.CsvFormat(dir, result, r.conf.WriteOptions())
				if err != nil {
					return err
				}
				for _, path := range written {
					r.logger.Info("wrote table",
						zap.String("op", "main.build"),
						zap.String("path", path),
					)
				}
			}

			if noExport {
				return nil
			}
			return publish(ctx, r.logger, exportTargets(r.conf), result)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "type of output override: pretty, csv")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory the csv tables are written to")
	cmd.Flags().BoolVar(&noExport, "no-export", false, "skip the sinks enabled in the export section")
	return cmd
}

// publish hands a finished batch to every enabled sink.
func publish(ctx context.Context, logger *zap.Logger, targets store.Targets, result *actuarial.Result) error {
	if targets.Postgres == nil && targets.Redis == nil {
		return nil
	}
	sinks, err := store.Open(ctx, logger, targets)
	if err != nil {
		return fmt.Errorf("failed to open export sinks: %w", err)
	}
	defer func() {
		if err := store.CloseAll(sinks); err != nil {
			logger.Warn("failed to close export sinks",
				zap.String("op", "main.publish"),
				zap.Error(err),
			)
		}
	}()

	return store.PublishAll(ctx, logger, sinks, store.Batch{
		RunID:     result.RunID,
		Curves:    result.Curves.Rows,
		Inflation: result.Inflation.Rows,
	})
}

func newValidateCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check curve coverage without computing factors",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := prepareRun(cmd, &flags)
			if err != nil {
				return err
			}
			defer func() {
				_ = r.logger.Sync()
			}()

			report, err := actuarial.CheckCoverage(r.logger, r.inputs, r.opts)
			if err != nil {
				return reportFailure(cmd.ErrOrStderr(), r.logger, err, "main.validate")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cohorts: %d\n", report.Groups)
			fmt.Fprintf(out, "Observations: %d\n", report.Observations)
			fmt.Fprintf(out, "Dropped (no requirement): %d\n", report.DroppedUnmatched)
			for _, pair := range report.UnmatchedPairs {
				fmt.Fprintf(out, "  unmatched %s\n", pair.String())
			}
			fmt.Fprintf(out, "Dropped (beyond horizon): %d\n", report.DroppedBeyondHorizon)
			fmt.Fprintf(out, "Filled nodes: %d\n", report.FilledNodes)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newServeCommand() *cobra.Command {
	var (
		serverConfig string
		address      string
		uploadSize   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the curve factor HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(serverConfig)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Address = address
			}
			if uploadSize != "" {
				size, err := server.ParseSize(uploadSize)
				if err != nil {
					return err
				}
				cfg.SetUploadSizeBytes(size)
			}

			logger, err := initializeLogger(cfg.Logging, logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			settings := server.Settings{
				MaxUploadSize: cfg.UploadSizeBytes(),
				Version:       Version,
			}
			if cfg.EngineConfig != "" {
				conf, err := config.LoadConfiguration(cfg.EngineConfig)
				if err != nil {
					return err
				}
				if settings.Defaults, err = conf.CurveOptions(); err != nil {
					return err
				}
				settings.Precision = int32(conf.Output.Precision)

				if cfg.Publish {
					sinks, err := store.Open(ctx, logger, exportTargets(conf))
					if err != nil {
						return fmt.Errorf("failed to open export sinks: %w", err)
					}
					defer func() {
						_ = store.CloseAll(sinks)
					}()
					settings.Sinks = sinks
				}
			}

			return server.Serve(ctx, logger, cfg, server.NewHandler(logger, settings))
		},
	}

	cmd.Flags().StringVar(&serverConfig, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	cmd.Flags().StringVar(&uploadSize, "max-upload-size", "", "maximum request body size override, e.g. 8M")
	return cmd
}
