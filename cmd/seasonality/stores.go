package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"seasonality-lab/internal/ingestion"
	"seasonality-lab/internal/pipeline"
	chstore "seasonality-lab/internal/storage/clickhouse"
	pgstore "seasonality-lab/internal/storage/postgres"
)

// backends holds the open database handles for one command.
type backends struct {
	pg *pgstore.Pool
	ch *chstore.Conn
}

// openBackends connects to each database whose DSN is set.
func openBackends(ctx context.Context, logger logrus.FieldLogger, pg pgstore.PoolConfig, clickhouseDSN string) (*backends, error) {
	b := &backends{}
	if pg.DSN != "" {
		pool, err := pgstore.NewPool(ctx, pg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pg = pool
		logger.Info("connected to postgres")
	}
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		b.ch = conn
		logger.Info("connected to clickhouse")
	}
	return b, nil
}

func (b *backends) Close() {
	if b.pg != nil {
		b.pg.Close()
	}
	if b.ch != nil {
		b.ch.Close()
	}
}

// source picks the interval source: a CSV file wins over PostgreSQL.
func (b *backends) source(input string) (ingestion.IntervalSource, error) {
	switch {
	case input != "":
		return ingestion.NewCSVFileSource(input), nil
	case b.pg != nil:
		return ingestion.NewPostgresSource(b.pg), nil
	default:
		return nil, pipeline.ErrNoSource
	}
}

// wire fills the store fields of opts. Tables without a database backend,
// baselines included, stay in memory.
func (b *backends) wire(opts *pipeline.Options) {
	backend := "memory"
	if b.pg != nil {
		opts.IntervalStore = pgstore.NewIntervalCountStore(b.pg)
		opts.RunStore = pgstore.NewRunStore(b.pg)
		backend = "postgres"
	}
	if b.ch != nil {
		opts.NormalizedStore = chstore.NewNormalizedIntervalStore(b.ch)
		opts.SignificanceStore = chstore.NewSignificanceResultStore(b.ch)
		opts.AggregateStore = chstore.NewAggregateSummaryStore(b.ch)
		opts.TrendStore = chstore.NewTrendResultStore(b.ch)
		opts.NationalYearStore = chstore.NewNationalYearStore(b.ch)
		backend = "clickhouse"
	}
	opts.StoreBackend = backend
}
