// Package atomicfile provides crash-safe file writes: temp file + rename,
// with an optional backup-before-write step.
//
// Grounded on original_source's amplifier_foundation/io/files.py
// (_write_atomic, write_with_backup).
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write atomically replaces path's contents using a temp file in the same
// directory followed by a rename, so readers never observe a partial write.
func Write(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicfile: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: chmod temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: rename to %s: %w", path, err)
	}
	return nil
}

// WriteWithBackup copies the existing file at path to path+backupSuffix
// (best effort; failures are ignored) before writing atomically.
func WriteWithBackup(path string, content []byte, backupSuffix string, perm os.FileMode) error {
	if backupSuffix == "" {
		backupSuffix = ".backup"
	}
	if existing, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(path+backupSuffix, existing, perm)
	}
	return Write(path, content, perm)
}
