package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

const deploymentDimensionsKey = "embedding_dimensions"

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed implementation of the storage ports.
type Store struct {
	db         *sql.DB
	dimensions int
}

// NewStore connects to dsn, applies pending migrations and pins the
// deployment embedding dimension.
func NewStore(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres DSN is required", domain.ErrInvalidInput)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := s.pinDimensions(ctx, dimensions); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dimensions returns the deployment vector size, 0 if none is recorded yet.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StatusStore returns a DocumentStatusStore backed by this store.
func (s *Store) StatusStore() driven.DocumentStatusStore {
	return &statusStore{store: s}
}

// ChunkStore returns a ChunkStore backed by this store.
func (s *Store) ChunkStore() driven.ChunkStore {
	return &chunkStore{store: s}
}

// SearchOperation returns a SearchOperation backed by this store.
func (s *Store) SearchOperation() driven.SearchOperation {
	return &searchOperation{store: s}
}

// migrate applies pending migrations. The postgres driver holds an advisory
// lock so concurrent processes migrate once.
func (s *Store) migrate() error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	target, err := migratepg.WithInstance(s.db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", target)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) pinDimensions(ctx context.Context, dimensions int) error {
	var stored string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM deployment WHERE key = $1", deploymentDimensionsKey).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if dimensions <= 0 {
			return nil
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO deployment (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING",
			deploymentDimensionsKey, strconv.Itoa(dimensions)); err != nil {
			return fmt.Errorf("recording embedding dimensions: %w", err)
		}
		// Another process may have won the insert; re-read to be sure.
		return s.pinDimensions(ctx, dimensions)
	case err != nil:
		return fmt.Errorf("reading embedding dimensions: %w", err)
	}

	recorded, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parsing recorded embedding dimensions %q: %w", stored, err)
	}
	if dimensions > 0 && dimensions != recorded {
		return fmt.Errorf("%w: database stores %d-dimensional vectors, configuration uses %d",
			domain.ErrDimensionMismatch, recorded, dimensions)
	}
	s.dimensions = recorded
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
