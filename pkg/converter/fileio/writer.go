// Package fileio provides the atomic file replacement strategy used when
// writing converted content back to disk. Content is staged in a temporary
// file in the destination directory and moved into place with a rename, so a
// crash mid-write never leaves a half-converted file behind.
package fileio

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// BackupSuffix is appended to the source path to form the backup file name.
const BackupSuffix = "~"

// tempPattern names the staging files created next to the destination.
const tempPattern = ".eolconv-*.tmp"

var (
	// ErrDestinationExists indicates that a new-file destination already exists.
	// Existing files are never overwritten in new-file mode.
	ErrDestinationExists = errors.New("destination file already exists")

	// ErrBackupFailed indicates that the pre-write backup copy could not be
	// created. The original file is left untouched when this is returned.
	ErrBackupFailed = errors.New("failed to create backup file")

	// ErrWriteFailed indicates a failure staging or placing the output file.
	ErrWriteFailed = errors.New("failed to write output file")
)

// rename is swapped in tests to observe the commit step.
var rename = os.Rename

// ReplaceOptions controls an in-place replacement.
type ReplaceOptions struct {
	// Backup copies the original to "<source>~" before the rename.
	Backup bool
	// KeepDate restores the original modification time on the new content.
	KeepDate bool
	// ModTime is the original modification time, used when KeepDate is set.
	ModTime time.Time
	// Perm is the original file mode, applied to the staged file.
	Perm fs.FileMode
}

// NewFileOptions controls writing to a separate destination path.
type NewFileOptions struct {
	// Perm is the mode for the created file.
	Perm fs.FileMode
	// KeepDate stamps the destination with ModTime instead of the write time.
	KeepDate bool
	// ModTime is the source modification time, used when KeepDate is set.
	ModTime time.Time
}

// FileWriter places converted content on disk.
type FileWriter interface {
	// Replace atomically replaces source with data.
	Replace(source string, data []byte, opts ReplaceOptions) error
	// WriteNew creates dest with data, refusing to overwrite an existing file.
	WriteNew(dest string, data []byte, opts NewFileOptions) error
}

// BackupPath returns the backup file path for a source path.
func BackupPath(source string) string {
	return source + BackupSuffix
}

// atomicWriter is the production FileWriter.
type atomicWriter struct {
	logger *slog.Logger
}

// NewAtomicWriter creates the default FileWriter.
func NewAtomicWriter(loggerHandler slog.Handler) FileWriter {
	return &atomicWriter{
		logger: slog.New(loggerHandler).With(slog.String("component", "filewriter")),
	}
}

// Replace stages data in a temporary file beside source, applies the source's
// permissions, optionally copies the original to its backup path, and commits
// with a rename. On any staging error the original file is untouched.
func (w *atomicWriter) Replace(source string, data []byte, opts ReplaceOptions) error {
	dir := filepath.Dir(source)
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("%w: creating temp file in %s: %w", ErrWriteFailed, dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// Best effort: the temp file only survives an error path.
		os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrWriteFailed, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %w", ErrWriteFailed, tmpPath, err)
	}

	if opts.Perm != 0 {
		if err := os.Chmod(tmpPath, opts.Perm); err != nil {
			return fmt.Errorf("%w: setting permissions on %s: %w", ErrWriteFailed, tmpPath, err)
		}
	}
	if opts.KeepDate && !opts.ModTime.IsZero() {
		if err := os.Chtimes(tmpPath, opts.ModTime, opts.ModTime); err != nil {
			return fmt.Errorf("%w: restoring times on %s: %w", ErrWriteFailed, tmpPath, err)
		}
	}

	if opts.Backup {
		backupPath := BackupPath(source)
		if err := copyFile(source, backupPath, opts.Perm); err != nil {
			return fmt.Errorf("%w: copying %s to %s: %w", ErrBackupFailed, source, backupPath, err)
		}
		w.logger.Debug("Backup created", slog.String("path", backupPath))
	}

	if err := rename(tmpPath, source); err != nil {
		return fmt.Errorf("%w: renaming %s to %s: %w", ErrWriteFailed, tmpPath, source, err)
	}
	w.logger.Debug("File replaced", slog.String("path", source), slog.Int("bytes", len(data)))
	return nil
}

// WriteNew creates dest exclusively and writes data to it. An existing
// destination returns ErrDestinationExists.
func (w *atomicWriter) WriteNew(dest string, data []byte, opts NewFileOptions) error {
	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dest)
		}
		return fmt.Errorf("%w: creating %s: %w", ErrWriteFailed, dest, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("%w: writing %s: %w", ErrWriteFailed, dest, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: closing %s: %w", ErrWriteFailed, dest, err)
	}

	if opts.KeepDate && !opts.ModTime.IsZero() {
		if err := os.Chtimes(dest, opts.ModTime, opts.ModTime); err != nil {
			return fmt.Errorf("%w: restoring times on %s: %w", ErrWriteFailed, dest, err)
		}
	}
	w.logger.Debug("File written", slog.String("path", dest), slog.Int("bytes", len(data)))
	return nil
}

// copyFile copies src to dst, truncating dst if it exists. A stale backup from
// an earlier run is overwritten rather than preserved.
func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
