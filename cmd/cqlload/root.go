package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/cqlload/internal/pipeline"
	"github.com/ajitpratap0/cqlload/pkg/config"
	jsoncodec "github.com/ajitpratap0/cqlload/pkg/json"
	"github.com/ajitpratap0/cqlload/pkg/logger"
	"github.com/ajitpratap0/cqlload/pkg/metrics"
	"github.com/ajitpratap0/cqlload/pkg/observability"
	"github.com/ajitpratap0/cqlload/pkg/source"
	"github.com/ajitpratap0/cqlload/pkg/store"
)

var version = "0.1.0"

func newRootCommand(stdout io.Writer) *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "cqlload",
		Short: "Bulk load JSON-lines or CSV files into a CQL table",
		Long: `cqlload reads a JSON-lines or CSV file from local disk, S3 or GCS and
inserts every record into one CQL table, in batches, with a bounded number
of batch writes in flight.

Every flag can also be set from the environment (see --help for names) or
from a YAML file given with --config.

Example:
  cqlload -s s3://bucket/users.json.gz --database-nodes 10.0.0.1,10.0.0.2 \
    --database-keyspace-name app --database-table users \
    --batch-size 200 --concurrent-batches 16`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Resolve(cfg, cmd.Flags(), viper.New()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runLoad(ctx, cfg, cmd.OutOrStdout())
		},
	}
	root.SetOut(stdout)
	config.RegisterFlags(root.Flags(), cfg)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cqlload v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	return root
}

// runReport is the machine-readable outcome printed to stdout.
type runReport struct {
	RunID  string `json:"run_id"`
	Source string `json:"source"`
	Table  string `json:"table"`
	pipeline.Summary
	ThroughputRPS float64 `json:"throughput_rps"`
	RSSBytes      uint64  `json:"rss_bytes,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// runLoad executes one load with a validated configuration and prints a
// runReport to out.
func runLoad(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID := uuid.NewString()
	ctx = logger.WithValue(ctx, logger.RunIDKey, runID)
	log := logger.WithContext(ctx)

	tracing, err := observability.InitTracing(cfg.TracingConfig(version))
	if err != nil {
		return err
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			log.Warn("failed to shutdown tracing", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	if addr := cfg.Observability.MetricsAddr; addr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, addr, prometheus.DefaultGatherer, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	opts := cfg.SourceOptions()
	opts.Logger = log
	src, err := source.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
	}()

	session, err := store.NewCQLSession(cfg.SessionConfig(), log)
	if err != nil {
		return err
	}
	defer session.Close()

	writer, err := store.NewWriter(session, cfg.WriterConfig(), log)
	if err != nil {
		return err
	}

	uploader, err := pipeline.NewUploader(src, writer, cfg.PipelineConfig(), collector, log)
	if err != nil {
		return err
	}

	summary, runErr := uploader.Run(ctx)

	report := runReport{
		RunID:         runID,
		Source:        cfg.Source.Path,
		Table:         cfg.Database.Keyspace + "." + cfg.Database.Table,
		Summary:       summary,
		ThroughputRPS: summary.ThroughputRPS(),
	}
	if rss, err := metrics.ProcessRSS(); err == nil {
		report.RSSBytes = rss
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}

	log.Info("run summary",
		zap.String("source", report.Source),
		zap.String("table", report.Table),
		zap.Object("summary", summary),
		zap.Uint64("rss_bytes", report.RSSBytes))

	if err := writeReport(out, report); err != nil {
		log.Warn("failed to write run report", zap.Error(err))
	}
	return runErr
}

func writeReport(out io.Writer, report runReport) error {
	data, err := jsoncodec.Marshal(report)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
