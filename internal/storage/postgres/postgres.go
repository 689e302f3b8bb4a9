package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"seasonality-lab/internal/storage"
)

// DefaultApplicationName is reported to the server in pg_stat_activity.
const DefaultApplicationName = "seasonality-lab"

// PoolConfig configures a connection pool.
type PoolConfig struct {
	DSN             string
	ApplicationName string // defaults to DefaultApplicationName
	MaxConns        int32  // <= 0 keeps the DSN or pgxpool default
}

// Pool wraps pgxpool.Pool for the interval and run stores.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects and pings the server.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	config, err := parsePoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

func parsePoolConfig(cfg PoolConfig) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	name := cfg.ApplicationName
	if name == "" {
		name = DefaultApplicationName
	}
	// an application_name given in the DSN wins
	if _, ok := config.ConnConfig.RuntimeParams["application_name"]; !ok {
		config.ConnConfig.RuntimeParams["application_name"] = name
	}
	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}
	return config, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

const pgErrUniqueViolation = "23505"

// mapError translates driver errors to storage sentinels and wraps the rest
// with op.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation:
		return storage.ErrDuplicateKey
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
