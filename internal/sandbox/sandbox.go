package sandbox

import (
	"fmt"
	"log/slog"
	"os"
)

// Manager brackets a run with a full copy of the project tree. At most one
// backup exists at a time, at a fixed sibling path, so its presence on disk
// is itself the signal that a run is in flight.
type Manager struct {
	projectDir string
	backupDir  string
	logger     *slog.Logger
}

func New(projectDir, backupDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{projectDir: projectDir, backupDir: backupDir, logger: logger}
}

// Backup replaces any previous backup with a fresh copy of the project tree.
// Callers must not start the loop when it fails.
func (m *Manager) Backup() error {
	if err := os.RemoveAll(m.backupDir); err != nil {
		return fmt.Errorf("failed to remove stale backup: %w", err)
	}
	if err := copyTree(m.projectDir, m.backupDir); err != nil {
		// A partial backup must not look restorable.
		os.RemoveAll(m.backupDir)
		return fmt.Errorf("failed to back up project: %w", err)
	}
	m.logger.Info("project backed up", "project", m.projectDir, "backup", m.backupDir)
	return nil
}

// Restore discards the working tree and puts the backup in its place. It is
// a no-op when no backup exists.
func (m *Manager) Restore() error {
	if !m.hasBackup() {
		return nil
	}
	if err := os.RemoveAll(m.projectDir); err != nil {
		return fmt.Errorf("failed to clear project dir: %w", err)
	}
	if err := copyTree(m.backupDir, m.projectDir); err != nil {
		return fmt.Errorf("failed to restore project: %w", err)
	}
	m.logger.Info("project restored", "project", m.projectDir)
	return nil
}

// Cleanup deletes the backup. It must run even when Restore errored.
func (m *Manager) Cleanup() error {
	if !m.hasBackup() {
		return nil
	}
	if err := os.RemoveAll(m.backupDir); err != nil {
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	m.logger.Info("backup removed", "backup", m.backupDir)
	return nil
}

func (m *Manager) hasBackup() bool {
	info, err := os.Stat(m.backupDir)
	return err == nil && info.IsDir()
}

func copyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	return os.CopyFS(dst, os.DirFS(src))
}
