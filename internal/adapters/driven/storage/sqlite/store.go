package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "pagewise.db"

const (
	dsnPragmas    = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	dimensionsKey = "embedding_dimensions"
)

// Store keeps documents, chunks and vectors in one SQLite file.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int
}

// NewStore opens or creates dataDir/pagewise.db, migrates it to the latest
// schema and pins the vector size. dimensions of zero adopts whatever size
// the database already recorded.
func NewStore(dataDir string, dimensions int) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("%w: sqlite data directory is required", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.init(dimensions); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(dimensions int) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	target, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return fmt.Errorf("preparing migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrating %s: %w", s.path, err)
	}
	return s.pinDimensions(dimensions)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the pinned vector size, or 0 before any is recorded.
func (s *Store) Dimensions() int {
	return s.dimensions
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) StatusStore() driven.DocumentStatusStore { return &statusStore{store: s} }

func (s *Store) ChunkStore() driven.ChunkStore { return &chunkStore{store: s} }

func (s *Store) SearchOperation() driven.SearchOperation { return &searchOperation{store: s} }

// pinDimensions records the vector size the first time one is known and
// rejects any other size afterwards.
func (s *Store) pinDimensions(dimensions int) error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM deployment WHERE key = ?", dimensionsKey).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		if dimensions > 0 {
			if _, err := s.db.Exec("INSERT INTO deployment (key, value) VALUES (?, ?)",
				dimensionsKey, strconv.Itoa(dimensions)); err != nil {
				return fmt.Errorf("recording embedding dimensions: %w", err)
			}
			s.dimensions = dimensions
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading embedding dimensions: %w", err)
	}

	recorded, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("parsing recorded embedding dimensions %q: %w", stored, err)
	}
	if dimensions > 0 && dimensions != recorded {
		return fmt.Errorf("%w: %s holds %d-dimensional vectors, configured model produces %d",
			domain.ErrDimensionMismatch, s.path, recorded, dimensions)
	}
	s.dimensions = recorded
	return nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
