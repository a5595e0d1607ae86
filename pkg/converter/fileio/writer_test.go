package fileio

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardWriter(t *testing.T) FileWriter {
	t.Helper()
	return NewAtomicWriter(slog.NewTextHandler(io.Discard, nil))
}

func writeFixture(t *testing.T, dir, name string, content []byte, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, perm))
	return path
}

func TestReplace_RewritesContent(t *testing.T) {
	dir := t.TempDir()
	source := writeFixture(t, dir, "a.txt", []byte("old\r\n"), 0o644)

	err := discardWriter(t).Replace(source, []byte("new\n"), ReplaceOptions{Perm: 0o644})
	require.NoError(t, err)

	got, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, []byte("new\n"), got)
}

func TestReplace_PreservesPermissions(t *testing.T) {
	dir := t.TempDir()
	source := writeFixture(t, dir, "script.sh", []byte("run\r\n"), 0o755)

	err := discardWriter(t).Replace(source, []byte("run\n"), ReplaceOptions{Perm: 0o755})
	require.NoError(t, err)

	info, err := os.Stat(source)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestReplace_Backup(t *testing.T) {
	dir := t.TempDir()
	original := []byte("original\r\n")
	source := writeFixture(t, dir, "a.txt", original, 0o644)

	err := discardWriter(t).Replace(source, []byte("converted\n"), ReplaceOptions{Backup: true, Perm: 0o644})
	require.NoError(t, err)

	backup, err := os.ReadFile(BackupPath(source))
	require.NoError(t, err)
	assert.Equal(t, original, backup, "backup must hold the pre-conversion bytes")

	got, err := os.ReadFile(source)
	require.NoError(t, err)
	assert.Equal(t, []byte("converted\n"), got)
}

func TestReplace_BackupOverwritesStaleBackup(t *testing.T) {
	dir := t.TempDir()
	source := writeFixture(t, dir, "a.txt", []byte("current\r\n"), 0o644)
	writeFixture(t, dir, "a.txt~", []byte("from an earlier run"), 0o644)

	err := discardWriter(t).Replace(source, []byte("current\n"), ReplaceOptions{Backup: true, Perm: 0o644})
	require.NoError(t, err)

	backup, err := os.ReadFile(BackupPath(source))
	require.NoError(t, err)
	assert.Equal(t, []byte("current\r\n"), backup)
}

func TestReplace_KeepDate(t *testing.T) {
	dir := t.TempDir()
	source := writeFixture(t, dir, "a.txt", []byte("x\r\n"), 0o644)
	modTime := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(source, modTime, modTime))

	err := discardWriter(t).Replace(source, []byte("x\n"), ReplaceOptions{KeepDate: true, ModTime: modTime, Perm: 0o644})
	require.NoError(t, err)

	info, err := os.Stat(source)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(modTime), "modification time should survive the rewrite")
}

func TestReplace_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	source := writeFixture(t, dir, "a.txt", []byte("x\r\n"), 0o644)

	require.NoError(t, discardWriter(t).Replace(source, []byte("x\n"), ReplaceOptions{Perm: 0o644}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Name())
}

func TestReplace_RenameFailureLeavesSourceIntact(t *testing.T) {
	dir := t.TempDir()
	original := []byte("untouched\r\n")
	source := writeFixture(t, dir, "a.txt", original, 0o644)

	renameErr := errors.New("rename blocked")
	restore := rename
	rename = func(oldpath, newpath string) error { return renameErr }
	defer func() { rename = restore }()

	err := discardWriter(t).Replace(source, []byte("never lands\n"), ReplaceOptions{Perm: 0o644})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWriteFailed)

	got, readErr := os.ReadFile(source)
	require.NoError(t, readErr)
	assert.Equal(t, original, got, "a failed commit must not modify the source")
}

func TestWriteNew_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	err := discardWriter(t).WriteNew(dest, []byte("fresh\n"), NewFileOptions{Perm: 0o644})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh\n"), got)
}

func TestWriteNew_RefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	dest := writeFixture(t, dir, "out.txt", []byte("precious"), 0o644)

	err := discardWriter(t).WriteNew(dest, []byte("overwrite attempt"), NewFileOptions{Perm: 0o644})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDestinationExists)

	got, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, []byte("precious"), got)
}

func TestWriteNew_KeepDate(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	modTime := time.Date(2019, 1, 2, 3, 4, 5, 0, time.UTC)

	err := discardWriter(t).WriteNew(dest, []byte("x\n"), NewFileOptions{Perm: 0o644, KeepDate: true, ModTime: modTime})
	require.NoError(t, err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(modTime))
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "/tmp/file.txt~", BackupPath("/tmp/file.txt"))
}
