package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "params.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(dir string) Config
		wantErr bool
	}{
		{
			name: "wal mode",
			cfg: func(dir string) Config {
				return Config{Path: filepath.Join(dir, "a.db"), WALMode: true, BusyTimeout: 1}
			},
		},
		{
			name: "rollback journal",
			cfg: func(dir string) Config {
				return Config{Path: filepath.Join(dir, "b.db")}
			},
		},
		{
			name: "creates nested directory",
			cfg: func(dir string) Config {
				return Config{Path: filepath.Join(dir, "x", "y", "c.db"), WALMode: true}
			},
		},
		{
			name:    "empty path",
			cfg:     func(string) Config { return Config{} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg(t.TempDir())
			db, err := Open(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer db.Close() //nolint:errcheck // Test cleanup

			if db.Path() != cfg.Path {
				t.Errorf("Path() = %q, want %q", db.Path(), cfg.Path)
			}
			if _, err := os.Stat(filepath.Dir(cfg.Path)); err != nil {
				t.Errorf("directory not created: %v", err)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClose(t *testing.T) {
	db := openTestDB(t)
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() after Close() expected error")
	}

	var nilDB *DB
	if err := nilDB.Close(); err != nil {
		t.Errorf("nil Close() = %v, want nil", err)
	}
}

func TestBackupTo(t *testing.T) {
	db := openTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO kv VALUES ('IsMetric', '1')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "backups", "toggles.db")
	if err := db.BackupTo(ctx, dst); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}
	// A second backup replaces the first.
	if err := db.BackupTo(ctx, dst); err != nil {
		t.Fatalf("second BackupTo() error = %v", err)
	}

	copyDB, err := Open(Config{Path: dst})
	if err != nil {
		t.Fatalf("Open(backup) error = %v", err)
	}
	defer copyDB.Close() //nolint:errcheck // Test cleanup

	var v string
	if err := copyDB.QueryRowContext(ctx, "SELECT v FROM kv WHERE k = 'IsMetric'").Scan(&v); err != nil {
		t.Fatalf("query backup: %v", err)
	}
	if v != "1" {
		t.Errorf("backup value = %q, want 1", v)
	}
}
