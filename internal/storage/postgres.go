// Package storage implements the PostgreSQL persistence layer: diagnostic
// blobs written on staged-ledger hash mismatches and ledger checkpoints.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDBConnection = errors.New("database connection error")
)

// PostgresStore implements persistent storage using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Config holds database configuration.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "ledger",
		Password: "",
		Database: "ledger",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS diagnostics (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			blob BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			root_hash BYTEA PRIMARY KEY,
			accounts BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveDiagnostic stores a diagnostic blob under a kind tag.
func (s *PostgresStore) SaveDiagnostic(ctx context.Context, kind string, blob []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO diagnostics (kind, blob) VALUES ($1, $2)`, kind, blob)
	return err
}

// SaveCheckpoint stores the serialised account set of a ledger root,
// replacing any previous checkpoint for the same root.
func (s *PostgresStore) SaveCheckpoint(ctx context.Context, rootHash, accounts []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (root_hash, accounts) VALUES ($1, $2)
		ON CONFLICT (root_hash) DO UPDATE SET accounts = EXCLUDED.accounts
	`, rootHash, accounts)
	return err
}

// LoadCheckpoint returns the account blob stored for a root.
func (s *PostgresStore) LoadCheckpoint(ctx context.Context, rootHash []byte) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT accounts FROM checkpoints WHERE root_hash = $1`, rootHash).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
