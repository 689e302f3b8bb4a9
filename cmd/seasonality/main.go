// Command seasonality runs the healthcare seasonality engine.
//
// Subcommands:
//
//	run          load interval counts, normalize, test and report
//	migrate      apply PostgreSQL and ClickHouse migrations
//	simulate     write a synthetic interval-count CSV
//	sense-check  print national weekly and yearly totals for an input
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Environment variables consulted for flag defaults.
const (
	envPostgresDSN   = "SEASONALITY_POSTGRES_DSN"
	envClickhouseDSN = "SEASONALITY_CLICKHOUSE_DSN"
	envLogLevel      = "SEASONALITY_LOG_LEVEL"
)

// shutdownGrace bounds how long a cancelled run may take before a forced exit.
const shutdownGrace = 30 * time.Second

type globalFlags struct {
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "seasonality",
		Short: "Seasonal normalization and significance testing for weekly health counts",
		Long: `seasonality loads weekly per-site event counts, normalizes them against a
reference season, tests each season for a significant rise and writes
aggregate, variance, trend and yearly summaries.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", envOr(envLogLevel, "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(g),
		newMigrateCmd(g),
		newSimulateCmd(g),
		newSenseCheckCmd(g),
	)
	return root
}

// newLogger builds the process logger from the global flags.
func newLogger(g *globalFlags) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(g.logLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	switch g.logFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", g.logFormat)
	}
	return logger, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
// A second signal, or a run that outlives shutdownGrace, exits the process.
func signalContext(parent context.Context, logger logrus.FieldLogger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Warn("shutting down")
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Error("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(shutdownGrace):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
