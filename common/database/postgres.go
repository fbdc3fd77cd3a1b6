package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fluxia/common/config"

	_ "github.com/lib/pq"
)

// NewPostgresDB opens a pooled PostgreSQL connection and verifies it with a ping.
func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close closes db when it is non-nil.
func Close(db *sql.DB) error {
	if db != nil {
		return db.Close()
	}
	return nil
}
