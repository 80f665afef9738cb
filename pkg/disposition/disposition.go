// Package disposition moves processed track files out of the data root.
package disposition

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Disposition is the terminal filesystem state of a track file.
type Disposition string

const (
	Archived Disposition = "archived"
	Skipped  Disposition = "skipped"
)

const (
	OutputDir  = "uploader-output"
	archiveDir = "archive"
	skipDir    = "skipped"
)

// Manager moves files from the data root into the archive and skip
// directories. Directories are created on first use and never removed.
type Manager struct {
	root   string
	logger *slog.Logger
}

func NewManager(root string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		root:   root,
		logger: logger.With("component", "disposition"),
	}
}

// ArchiveDir returns the directory archived files are moved into.
func (m *Manager) ArchiveDir() string {
	return filepath.Join(m.root, OutputDir, archiveDir)
}

// SkipDir returns the directory skipped files are moved into.
func (m *Manager) SkipDir() string {
	return filepath.Join(m.root, OutputDir, skipDir)
}

// Path resolves a file reference from the export against the data root.
func (m *Manager) Path(ref string) string {
	return filepath.Join(m.root, ref)
}

// Archive moves ref into the archive directory.
func (m *Manager) Archive(ref string) (Disposition, error) {
	return Archived, m.move(ref, m.ArchiveDir())
}

// Skip moves ref into the skip directory.
func (m *Manager) Skip(ref string) (Disposition, error) {
	return Skipped, m.move(ref, m.SkipDir())
}

// move renames ref into dir. A source that is already gone or a destination
// that already exists is a warning, not an error, so a file is moved at most
// once.
func (m *Manager) move(ref, dir string) error {
	src := m.Path(ref)
	dst := filepath.Join(dir, filepath.Base(ref))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	if _, err := os.Stat(dst); err == nil {
		m.logger.Warn("File already moved, leaving it in place", "file", ref, "destination", dst)
		return nil
	}

	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("File to move no longer exists", "file", ref)
		return nil
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s to %s: %w", src, dir, err)
	}
	m.logger.Debug("Moved file", "file", ref, "destination", dst)
	return nil
}
