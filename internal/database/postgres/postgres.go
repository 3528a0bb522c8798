// Package postgres implements the EncodingStore on PostgreSQL with pgvector.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/database"
)

func init() {
	database.RegisterBackend(database.BackendPostgres, func(ctx context.Context, cfg *config.Config, dim int) (database.EncodingStore, error) {
		pool, err := Open(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		return NewPersonRepository(pool, dim), nil
	})
}

// Pool wraps the sql.DB holding missing_persons rows.
type Pool struct {
	db *sql.DB
}

const pingTimeout = 10 * time.Second

// NewPool connects to cfg.URL and waits for the server to answer a ping.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{db: db}, nil
}

// Open connects and brings the schema up to date. The pgvector extension
// is created by the first migration, so Open fails on servers without it.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate missing_persons schema: %w", err)
	}
	return pool, nil
}

func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query missing_persons: %w", err)
	}
	return rows, nil
}
