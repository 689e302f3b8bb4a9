package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"seasonality-lab/internal/simulate"
)

func newSimulateCmd(g *globalFlags) *cobra.Command {
	var (
		out   string
		start string
	)
	opts := simulate.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write a synthetic weekly interval-count CSV",
		Long: `Generate deterministic weekly counts for flu, ari and strep_a across the
requested sites and years, rounded to the disclosure base. The same seed
always produces the same file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(g)
			if err != nil {
				return err
			}
			if start != "" {
				t, err := time.Parse(time.DateOnly, start)
				if err != nil {
					return fmt.Errorf("start: %w", err)
				}
				opts.Start = t
			}

			rows, err := simulate.Generate(opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := simulate.WriteCSV(w, rows); err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{"rows": len(rows), "out": out}).Info("simulated data written")
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "-", "Output CSV path (- for stdout)")
	cmd.Flags().IntVar(&opts.Years, "years", opts.Years, "Number of years to generate")
	cmd.Flags().IntVar(&opts.Sites, "sites", opts.Sites, "Number of sites")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", opts.Seed, "Random seed")
	cmd.Flags().StringVar(&start, "start", "", "First interval start, a Monday (YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.DisclosureBase, "disclosure-base", opts.DisclosureBase, "Round counts to a multiple of this base")
	return cmd
}
