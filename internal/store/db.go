// Package store is the durable Postgres-backed persistence layer for
// scanned transactions, validator swaps, and the routing-contract catalogue.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// Config holds the connection parameters for the store, trimmed from the
// teacher's DatabaseConfig (unchanged field names, so config.yaml keys
// carry over unmodified).
type Config struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxLifetime  string `mapstructure:"max_lifetime"`
}

// Store wraps a *sql.DB with the queries this domain needs.
type Store struct {
	*sql.DB
	logger zerolog.Logger
}

// Open connects to Postgres, tunes the pool, and verifies connectivity.
func Open(cfg *Config, logger zerolog.Logger) (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime != "" {
		if lifetime, err := time.ParseDuration(cfg.MaxLifetime); err == nil {
			db.SetConnMaxLifetime(lifetime)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Database).
		Msg("database connection established")

	return &Store{DB: db, logger: logger.With().Str("component", "store").Logger()}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.logger.Info().Msg("closing database connection")
	return s.DB.Close()
}

// HealthCheck pings the database with a short timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
