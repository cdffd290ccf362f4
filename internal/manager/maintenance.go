package manager

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nerrad567/onroad-manager/internal/infrastructure/config"
	"github.com/nerrad567/onroad-manager/internal/infrastructure/logging"
)

// clockPollInterval is how often the wall clock is checked at boot.
const clockPollInterval = time.Second

// backupStamp names backup files; it sorts chronologically.
const backupStamp = "20060102T150405"

// Backup file prefixes inside the backup directory.
const (
	configBackupPrefix  = "config_"
	togglesBackupPrefix = "toggles_"
)

// ToggleBackuper writes a consistent copy of the toggle partition.
type ToggleBackuper interface {
	Backup(ctx context.Context, dst string) error
}

// Maintenance is the background housekeeping started at bootstrap.
//
// It waits for a trusted wall clock, then runs its steps in order. The first
// failing step ends the run; the error wraps ErrTransientMaintenance and is
// only logged.
type Maintenance struct {
	cfg     config.MaintenanceConfig
	floor   time.Time
	toggles ToggleBackuper
	logger  *logging.Logger

	now      func() time.Time
	interval time.Duration
}

// NewMaintenance creates the housekeeping task.
//
// Parameters:
//   - cfg: Maintenance settings
//   - floor: Earliest wall-clock time considered valid
//   - toggles: Partition copied by the toggle backup; nil skips that step
//   - logger: Logger for step results
//
// Returns:
//   - *Maintenance: Task ready to Run
func NewMaintenance(cfg config.MaintenanceConfig, floor time.Time, toggles ToggleBackuper, logger *logging.Logger) *Maintenance {
	return &Maintenance{
		cfg:      cfg,
		floor:    floor,
		toggles:  toggles,
		logger:   logger.With("component", "maintenance"),
		now:      time.Now,
		interval: clockPollInterval,
	}
}

// Run waits for the clock and performs every step.
// It returns ctx.Err() if cancelled while waiting.
func (m *Maintenance) Run(ctx context.Context) error {
	if err := m.waitForClock(ctx); err != nil {
		return err
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"delete deprecated models", m.deleteDeprecatedModels},
		{"back up configuration", m.backupConfig},
		{"back up toggles", m.backupToggles},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrTransientMaintenance, step.name, err)
			m.logger.Warn("maintenance aborted", "step", step.name, "error", err)
			return err
		}
		m.logger.Debug("maintenance step done", "step", step.name)
	}
	m.logger.Info("maintenance complete")
	return nil
}

func (m *Maintenance) waitForClock(ctx context.Context) error {
	for m.now().Before(m.floor) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.interval):
		}
	}
	return nil
}

// deleteDeprecatedModels removes model files whose name, without extension,
// is listed as deprecated.
func (m *Maintenance) deleteDeprecatedModels(_ context.Context) error {
	if m.cfg.ModelsDir == "" || len(m.cfg.DeprecatedModels) == 0 {
		return nil
	}
	entries, err := os.ReadDir(m.cfg.ModelsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !slices.Contains(m.cfg.DeprecatedModels, base) {
			continue
		}
		if err := os.Remove(filepath.Join(m.cfg.ModelsDir, e.Name())); err != nil {
			return err
		}
		m.logger.Info("deleted deprecated model", "file", e.Name())
	}
	return nil
}

// backupConfig archives the install tree as a gzipped tarball.
func (m *Maintenance) backupConfig(ctx context.Context) error {
	if m.cfg.InstallDir == "" || m.cfg.BackupDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(m.cfg.BackupDir, configBackupPrefix+m.now().UTC().Format(backupStamp)+".tar.gz")
	if err := writeTarball(ctx, m.cfg.InstallDir, dst, m.cfg.BackupDir); err != nil {
		os.Remove(dst) //nolint:errcheck // Partial archive; the step error is what matters
		return err
	}
	return m.prune(configBackupPrefix)
}

func (m *Maintenance) backupToggles(ctx context.Context) error {
	if m.toggles == nil || m.cfg.BackupDir == "" {
		return nil
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(m.cfg.BackupDir, togglesBackupPrefix+m.now().UTC().Format(backupStamp)+".db")
	if err := m.toggles.Backup(ctx, dst); err != nil {
		return err
	}
	return m.prune(togglesBackupPrefix)
}

// prune keeps the newest MaxBackups files with prefix.
func (m *Maintenance) prune(prefix string) error {
	if m.cfg.MaxBackups <= 0 {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(m.cfg.BackupDir, prefix+"*"))
	if err != nil {
		return err
	}
	if len(matches) <= m.cfg.MaxBackups {
		return nil
	}
	slices.Sort(matches)
	for _, old := range matches[:len(matches)-m.cfg.MaxBackups] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}

// writeTarball archives the regular files and directories under src into
// dst, leaving out the skip directory.
func writeTarball(ctx context.Context, src, dst, skip string) (err error) {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() && path == skip {
			return filepath.SkipDir
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(tw, in)
		return err
	})
	if walkErr != nil {
		return walkErr
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
