package params

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/database"
	"github.com/nerrad567/onroad-manager/migrations"
)

// SQLiteStore is a persisted partition backed by one SQLite file.
// It is safe for concurrent use.
type SQLiteStore struct {
	db    *database.DB
	table *KeyTable
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *database.DB, table *KeyTable) *SQLiteStore {
	return &SQLiteStore{db: db, table: table}
}

// OpenSQLite opens the partition file, applies the schema and returns the store.
//
// Parameters:
//   - ctx: Context for the migration
//   - cfg: Partition location and SQLite settings
//   - table: Key table the store enforces
//
// Returns:
//   - *SQLiteStore: Ready partition; Close it when done
//   - error: If the file cannot be opened or migrated
func OpenSQLite(ctx context.Context, cfg database.Config, table *KeyTable) (*SQLiteStore, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating %s: %w", cfg.Path, err)
	}
	return NewSQLiteStore(db, table), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the partition file path.
func (s *SQLiteStore) Path() string {
	return s.db.Path()
}

// Backup writes a consistent copy of the partition to dst.
func (s *SQLiteStore) Backup(ctx context.Context, dst string) error {
	return s.db.BackupTo(ctx, dst)
}

// Table returns the key table the store enforces.
func (s *SQLiteStore) Table() *KeyTable { return s.table }

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.table.Check(key); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM params WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, true, nil
}

func (s *SQLiteStore) GetBool(ctx context.Context, key string) (bool, error) {
	b, _, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return decodeBool(b), nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.table.Check(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO params (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) PutBool(ctx context.Context, key string, value bool) error {
	return s.Put(ctx, key, encodeBool(value))
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.table.Check(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM params WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context, scope Scope) error {
	keys := s.table.KeysWith(scope)
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	query := "DELETE FROM params WHERE key IN (" + placeholders + ")" //nolint:gosec // Placeholders only
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing %s: %w", scope, err)
	}
	return nil
}

func (s *SQLiteStore) Snapshot(ctx context.Context) (View, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM params")
	if err != nil {
		return View{}, fmt.Errorf("reading params: %w", err)
	}
	defer rows.Close()

	values := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return View{}, fmt.Errorf("scanning params row: %w", err)
		}
		if value == nil {
			value = []byte{}
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return View{}, fmt.Errorf("iterating params: %w", err)
	}
	return View{values: values}, nil
}
