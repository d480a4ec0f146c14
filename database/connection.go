package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

const (
	applicationName = "colorgame"
	pingTimeout     = 5 * time.Second

	// minPoolConns keeps a connection ready for the settlement path of each bucket
	minPoolConns = 3
)

// DB is the shared pgx pool. Repositories run on it directly or on a
// transaction begun from it.
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens the pool and checks the server answers. Every session
// runs in UTC so round end times compare with stored timestamps.
func NewConnection(ctx context.Context, databaseURL string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"
	if poolConfig.MinConns < minPoolConns {
		poolConfig.MinConns = minPoolConns
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		log.WithField("pid", conn.PgConn().PID()).Debug("Opened database connection")
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(log.Fields{
		"maxConns": poolConfig.MaxConns,
		"minConns": poolConfig.MinConns,
	}).Info("Connected to database")

	return &DB{Pool: pool}, nil
}

// Close releases every pooled connection
func (db *DB) Close() {
	db.Pool.Close()
}
