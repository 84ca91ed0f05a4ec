package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a compare-and-set lost against a concurrent writer.
	ErrConflict = errors.New("concurrent modification")
	// ErrDuplicate is returned when a uniqueness constraint would be violated.
	ErrDuplicate = errors.New("already exists")
	// ErrNotPromotable is returned when a dream cannot become a cocoon.
	ErrNotPromotable = errors.New("dream cannot be promoted")
	// ErrAlreadyMinted is returned when a cocoon already carries its mint artifact.
	ErrAlreadyMinted = errors.New("cocoon artifact already minted")
)

// DBFile is the database file name inside the data directory.
const DBFile = "cocoon.db"

// Store is the SQLite-backed repository for dreams, cocoons, tokens, the stage
// log and notifications.
type Store struct {
	db      *sql.DB
	dataDir string

	// Now stamps records the store creates itself.
	Now func() time.Time
}

// Open opens (or creates) the database in dataDir and runs migrations.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite3", "file:"+dbPath+dsnPragmas+"&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	if _, err := db.Exec(Triggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("create triggers: %w", err)
	}

	return &Store{db: db, dataDir: dataDir, Now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the base data directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) stamp() string {
	return Stamp(s.Now())
}

// Stamp formats t the way every timestamp column is stored.
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

type rowScanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
