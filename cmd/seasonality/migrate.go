package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"seasonality-lab/internal/storage/migrations"
	pgstore "seasonality-lab/internal/storage/postgres"
)

func newMigrateCmd(g *globalFlags) *cobra.Command {
	var postgresDSN, clickhouseDSN string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(g)
			if err != nil {
				return err
			}
			if postgresDSN == "" && clickhouseDSN == "" {
				return errors.New("nothing to migrate: set --postgres-dsn or --clickhouse-dsn")
			}
			ctx := cmd.Context()

			if postgresDSN != "" {
				pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{DSN: postgresDSN, ApplicationName: "seasonality-lab migrate", MaxConns: 2})
				if err != nil {
					return fmt.Errorf("connect postgres: %w", err)
				}
				err = migrations.RunPostgresMigrations(ctx, pool)
				pool.Close()
				if err != nil {
					return fmt.Errorf("postgres migrations: %w", err)
				}
				logger.Info("postgres migrations applied")
			}

			if clickhouseDSN != "" {
				conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
				if err != nil {
					return fmt.Errorf("clickhouse migrations: %w", err)
				}
				conn.Close()
				logger.Info("clickhouse migrations applied")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", envOr(envPostgresDSN, ""), "PostgreSQL connection string")
	cmd.Flags().StringVar(&clickhouseDSN, "clickhouse-dsn", envOr(envClickhouseDSN, ""), "ClickHouse connection string")
	return cmd
}
