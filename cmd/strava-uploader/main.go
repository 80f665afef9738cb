package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/barrald/strava-uploader/pkg/bootstrap"
	"github.com/barrald/strava-uploader/pkg/disposition"
	"github.com/barrald/strava-uploader/pkg/infrastructure/sentry"
	"github.com/barrald/strava-uploader/pkg/report"
	"github.com/barrald/strava-uploader/pkg/source"
)

const serviceName = "strava-uploader"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configFile string
	dataRoot   string
	cardioFile string
	logLevel   string
	logFile    string
	backoff    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Import a cardio activity export into Strava",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "YAML config file overlaid on the environment")
	flags.StringVar(&opts.dataRoot, "data-root", "", "directory holding the export and track files (DATA_ROOT_DIR)")
	flags.StringVar(&opts.cardioFile, "cardio-file", "", "export file name within the data root (CARDIO_FILE)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	flags.StringVar(&opts.logFile, "log-file", "", "also append logs to this file (LOG_FILE)")
	flags.DurationVar(&opts.backoff, "backoff", 0, "sleep after a rate limit signal (RATE_LIMIT_BACKOFF)")

	root.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Upload tracks and create manual activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, opts)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the export and show the last run without calling Strava",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	})
	return root
}

func loadConfig(opts *options) (*bootstrap.Config, error) {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.configFile != "" {
		if err := cfg.MergeFile(opts.configFile); err != nil {
			return nil, err
		}
	}
	if opts.dataRoot != "" {
		cfg.DataRoot = opts.dataRoot
	}
	if opts.cardioFile != "" {
		cfg.CardioFile = opts.cardioFile
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}
	if opts.backoff > 0 {
		cfg.RateLimitBackoff = opts.backoff
	}
	return cfg, nil
}

func setup(cmd *cobra.Command, opts *options) (*bootstrap.Config, *slog.Logger, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog, err := bootstrap.NewLogger(serviceName, cfg.LogLevel, cfg.LogFile, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		sentry.Flush(2 * time.Second)
		_ = closeLog()
	}

	if err := sentry.Init(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
		Release:     version,
		ServerName:  serviceName,
	}, logger); err != nil {
		logger.Warn("Continuing without error tracking", "error", err)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration error", "error", err)
		cleanup()
		return nil, nil, nil, err
	}
	return cfg, logger, cleanup, nil
}

func runImport(cmd *cobra.Command, opts *options) error {
	cfg, logger, cleanup, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer cleanup()
	defer sentry.RecoverAndCapture(logger)

	fatal := func(err error, extra map[string]interface{}) error {
		logger.Error("Import failed", "error", err)
		sentry.CaptureException(err, extra, logger)
		return err
	}

	rows, err := source.Open(cfg.CardioPath())
	if err != nil {
		return fatal(err, nil)
	}
	defer rows.Close()
	logger.Info("Reading export", "file", cfg.CardioPath(), "distance_column", rows.DistanceMode().Column)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(ctx, cfg, logger)
	if err != nil {
		return fatal(err, nil)
	}
	defer svc.Close()

	summary, runErr := svc.NewImporter().Run(ctx, rows)

	// Reporting outlives an interrupted run.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := svc.Reporter.Report(reportCtx, summary); err != nil {
		logger.Warn("Run report incomplete", "error", err)
	}

	if runErr != nil {
		return fatal(runErr, map[string]interface{}{
			"run_id":  summary.RunID,
			"created": summary.Created,
		})
	}
	return nil
}

func runCheck(cmd *cobra.Command, opts *options) error {
	cfg, logger, cleanup, err := setup(cmd, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	rows, err := source.Open(cfg.CardioPath())
	if err != nil {
		logger.Error("Export check failed", "error", err)
		return err
	}
	defer rows.Close()
	files := disposition.NewManager(cfg.DataRoot, logger)

	var total, tracks, missing int
	for {
		rec, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		total++
		if !rec.HasTrack() {
			continue
		}
		tracks++
		if _, err := os.Stat(files.Path(rec.GPXFile)); err != nil {
			missing++
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "export:          %s\n", cfg.CardioPath())
	fmt.Fprintf(out, "distance column: %s\n", rows.DistanceMode().Column)
	fmt.Fprintf(out, "rows:            %d\n", total)
	fmt.Fprintf(out, "track files:     %d (%d missing)\n", tracks, missing)
	fmt.Fprintf(out, "last run:        %s\n", lastRun(cmd.Context(), cfg, logger))
	return nil
}

func lastRun(ctx context.Context, cfg *bootstrap.Config, logger *slog.Logger) string {
	store, closeStore, err := bootstrap.NewBlobStore(ctx, cfg, logger)
	if err != nil {
		return "unavailable"
	}
	if closeStore != nil {
		defer closeStore()
	}

	last, err := report.Latest(ctx, store, cfg.ReportBucket)
	if err != nil {
		logger.Warn("Could not read last run report", "error", err)
		return "unavailable"
	}
	if last == nil {
		return "none"
	}
	line := fmt.Sprintf("%s created %d", last.RunID, last.Created)
	if last.Aborted() {
		line += " (aborted: " + last.Error + ")"
	}
	return line
}
