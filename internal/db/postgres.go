package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/kandev/taskboard/internal/db/dialect"
)

const (
	defaultPostgresMaxConns = 25
	defaultPostgresMinConns = 5
	postgresConnLifetime    = 30 * time.Minute
	postgresPingTimeout     = 5 * time.Second
)

// OpenPostgres opens dsn through the pgx database/sql driver and checks
// that the server answers. Non-positive pool sizes use the defaults.
// Reads and writes share the returned pool.
func OpenPostgres(ctx context.Context, dsn string, maxConns, minConns int) (*Pool, error) {
	conn, err := sqlx.Open(dialect.PGX, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	if maxConns <= 0 {
		maxConns = defaultPostgresMaxConns
	}
	if minConns <= 0 || minConns > maxConns {
		minConns = min(defaultPostgresMinConns, maxConns)
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(minConns)
	conn.SetConnMaxLifetime(postgresConnLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	return &Pool{writer: conn, reader: conn}, nil
}
