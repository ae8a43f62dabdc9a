// Package database opens and configures the Postgres connection pool used by
// the storage layer, and probes for pgvector support at startup.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/jmoiron/sqlx"

	"github.com/conclave-mcp/orchestrator/internal/config"
	"github.com/conclave-mcp/orchestrator/internal/platform/migrations"
)

// Pool wraps a sqlx.DB configured per the resolved Config.
type Pool struct {
	*sqlx.DB

	// VectorAvailable reports whether the pgvector extension is installed,
	// probed after migrations run. Migration 0005 creates the extension, so
	// Open returns a migration error before the probe when pgvector is not
	// available. Nothing in the server reads this field to disable RAG.
	VectorAvailable bool
}

// Open connects to Postgres, configures pool bounds, and applies migrations.
func Open(ctx context.Context, cfg *config.Config) (*Pool, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	configurePool(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	sx := sqlx.NewDb(db, "postgres")

	if err := migrations.Apply(ctx, db); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	vectorOK := probeVectorExtension(ctx, sx)

	return &Pool{DB: sx, VectorAvailable: vectorOK}, nil
}

func configurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBPoolMax > 0 {
		db.SetMaxOpenConns(cfg.DBPoolMax)
	}
	if cfg.DBPoolMin > 0 {
		db.SetMaxIdleConns(cfg.DBPoolMin)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
}

func probeVectorExtension(ctx context.Context, db *sqlx.DB) bool {
	var count int
	err := db.GetContext(ctx, &count, `SELECT count(*) FROM pg_extension WHERE extname = 'vector'`)
	return err == nil && count > 0
}

// Close releases the underlying connection pool.
func (p *Pool) Close() error {
	if p == nil || p.DB == nil {
		return nil
	}
	return p.DB.Close()
}
