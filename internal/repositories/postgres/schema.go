package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS network_nodes (
    seq        BIGSERIAL,
    name       TEXT PRIMARY KEY,
    label      TEXT NOT NULL,
    attributes JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS network_links (
    seq                  BIGSERIAL,
    id                   TEXT PRIMARY KEY,
    from_node            TEXT NOT NULL REFERENCES network_nodes(name) ON DELETE CASCADE,
    to_node              TEXT NOT NULL REFERENCES network_nodes(name) ON DELETE CASCADE,
    link_type            TEXT NOT NULL DEFAULT 'CONNECTED_TO',
    cost                 DOUBLE PRECISION NOT NULL,
    start_date           TIMESTAMPTZ NOT NULL,
    end_date             TIMESTAMPTZ NOT NULL,
    payment_type         TEXT NOT NULL,
    restricted_merchants TEXT[] NOT NULL DEFAULT '{}',
    operated_by          TEXT NOT NULL DEFAULT '',
    order_count          TEXT[] NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS network_links_from_idx ON network_links (from_node);

CREATE TABLE IF NOT EXISTS simulation_results (
    id          TEXT PRIMARY KEY,
    tracking_no TEXT NOT NULL,
    cost_factor TEXT NOT NULL,
    conditions  TEXT NOT NULL DEFAULT '',
    path        TEXT NOT NULL DEFAULT '',
    total_cost  DOUBLE PRECISION NOT NULL,
    status      TEXT NOT NULL,
    planned_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS simulation_results_tracking_idx ON simulation_results (tracking_no);
`

// EnsureSchema creates the routing tables when they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Connect opens a pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("verify postgres connection: %w", err)
	}
	return pool, nil
}
