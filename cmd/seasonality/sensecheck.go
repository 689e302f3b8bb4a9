package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"seasonality-lab/internal/ingestion"
	"seasonality-lab/internal/metrics"
	pgstore "seasonality-lab/internal/storage/postgres"
)

func newSenseCheckCmd(g *globalFlags) *cobra.Command {
	var (
		input       string
		postgresDSN string
		weekly      bool
	)
	cmd := &cobra.Command{
		Use:   "sense-check",
		Short: "Print national weekly and yearly totals per measure",
		Long: `Load interval counts without running the engine and print national yearly
totals per measure, and weekly totals with --weekly. Measures with no events
at all are reported as warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			b, err := openBackends(ctx, logger, pgstore.PoolConfig{DSN: postgresDSN, ApplicationName: "seasonality-lab sense-check", MaxConns: 2}, "")
			if err != nil {
				return err
			}
			defer b.Close()

			src, err := b.source(input)
			if err != nil {
				return fmt.Errorf("%w: set --input or --postgres-dsn", err)
			}
			return senseCheck(ctx, cmd.OutOrStdout(), logger, src, weekly)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Interval count CSV")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", envOr(envPostgresDSN, ""), "PostgreSQL connection string")
	cmd.Flags().BoolVar(&weekly, "weekly", false, "Also print national weekly totals")
	return cmd
}

// senseCheck prints national totals for src and warns about measures with no events.
func senseCheck(ctx context.Context, w io.Writer, logger logrus.FieldLogger, src ingestion.IntervalSource, weekly bool) error {
	loader := ingestion.NewLoader(ingestion.LoaderOptions{Logger: logger})
	res, err := loader.Load(ctx, src)
	if err != nil {
		return err
	}

	years := metrics.RollupNationalYears(metrics.RollupSiteYears(res.Rows))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "measure\tyear\tnumerator\tlist_size\trate_per_1000\tsites\tsites_zero")
	totals := make(map[string]int64)
	var order []string
	for _, y := range years {
		if _, ok := totals[y.Measure]; !ok {
			order = append(order, y.Measure)
		}
		totals[y.Measure] += y.Numerator
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.4f\t%d\t%d\n",
			y.Measure, y.Year, y.Numerator, y.ListSize, y.RatePer1000, y.Sites, y.SitesZero)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if weekly {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "measure\tinterval_start\tnumerator\tdenominator\trate_per_100k")
		for _, wk := range metrics.NationalWeekly(res.Rows) {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f\n",
				wk.Measure, wk.IntervalStart.Format("2006-01-02"), wk.Numerator, wk.Denominator, wk.RatePer100k)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, m := range order {
		if totals[m] == 0 {
			logger.WithField("measure", m).Warn("measure has no events in any year")
		}
	}
	return nil
}
