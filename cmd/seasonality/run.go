package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"seasonality-lab/internal/config"
	"seasonality-lab/internal/observability"
	"seasonality-lab/internal/pipeline"
	"seasonality-lab/internal/reporting"
	pgstore "seasonality-lab/internal/storage/postgres"
)

type runFlags struct {
	input         string
	configPath    string
	outputDir     string
	postgresDSN   string
	clickhouseDSN string
	pgMaxConns    int32
	metricsAddr   string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the seasonality engine once",
		Long: `Load interval counts from --input or the PostgreSQL interval table, then
classify, normalize, test, aggregate and fit trends. Results are written to
ClickHouse when --clickhouse-dsn is set and to CSV/markdown under --output-dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(g)
			if err != nil {
				return err
			}
			return runPipeline(cmd, logger, f)
		},
	}
	cmd.Flags().StringVar(&f.input, "input", "", "Interval count CSV (measure,site_id,interval_start,numerator,denominator)")
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML configuration file (defaults when empty)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "output", "Directory for CSV tables and REPORT.md (empty to disable)")
	cmd.Flags().StringVar(&f.postgresDSN, "postgres-dsn", envOr(envPostgresDSN, ""), "PostgreSQL connection string")
	cmd.Flags().StringVar(&f.clickhouseDSN, "clickhouse-dsn", envOr(envClickhouseDSN, ""), "ClickHouse connection string")
	cmd.Flags().Int32Var(&f.pgMaxConns, "postgres-max-conns", 4, "Maximum PostgreSQL pool connections")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	return cmd
}

func runPipeline(cmd *cobra.Command, logger *logrus.Logger, f *runFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"reference_season": cfg.ReferenceSeason,
		"config_hash":      cfg.Hash(),
	}).Info("configuration loaded")

	if f.metricsAddr != "" {
		go serveMetrics(logger, f.metricsAddr)
	}

	ctx, stop := signalContext(cmd.Context(), logger)
	defer stop()

	b, err := openBackends(ctx, logger, pgstore.PoolConfig{DSN: f.postgresDSN, MaxConns: f.pgMaxConns}, f.clickhouseDSN)
	if err != nil {
		return err
	}
	defer b.Close()

	src, err := b.source(f.input)
	if err != nil {
		return fmt.Errorf("%w: set --input or --postgres-dsn", err)
	}

	opts := pipeline.Options{
		Config:    cfg,
		Source:    src,
		OutputDir: f.outputDir,
		Logger:    logger,
		Metrics:   observability.DefaultMetrics,
	}
	b.wire(&opts)

	res, err := pipeline.New(opts).Run(ctx)
	if err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			return err
		}
		return fmt.Errorf("run failed: %w", err)
	}
	printRunSummary(cmd.OutOrStdout(), res)
	return nil
}

func printRunSummary(w io.Writer, res *pipeline.RunResult) {
	run := res.Run
	fmt.Fprintf(w, "run %s %s\n", run.RunID, run.Status)
	fmt.Fprintf(w, "  data version: %s\n", run.DataVersion)
	fmt.Fprintf(w, "  rows loaded:  %d (dropped %d, rejected %d)\n", run.RowsLoaded, run.RowsDropped, run.RowsRejected)
	fmt.Fprintf(w, "  intervals:    %d\n", run.Intervals)
	fmt.Fprintf(w, "  baselines:    %d\n", run.Baselines)
	fmt.Fprintf(w, "  tests:        %d\n", run.Tests)
	fmt.Fprintf(w, "  summaries:    %d\n", run.Summaries)
	fmt.Fprintf(w, "  trends:       %d\n", run.Trends)

	if lines := reporting.ExclusionLines(res.Ledger.Entries()); len(lines) > 0 {
		fmt.Fprintln(w, "exclusions:")
		for _, l := range lines {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	if len(res.Files) > 0 {
		fmt.Fprintln(w, "files:")
		for _, p := range res.Files {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func serveMetrics(logger logrus.FieldLogger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.WithField("addr", addr).Info("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("metrics server stopped")
	}
}
