// Package testutil provides mock implementations for interfaces defined in
// the eol-converter core library (pkg/converter and subpackages), plus small
// filesystem fixtures. The mocks isolate components for unit testing.
package testutil

import (
	"time"

	"github.com/stackvity/eol-converter/pkg/converter"
	"github.com/stackvity/eol-converter/pkg/converter/fileio"
	"github.com/stretchr/testify/mock"
)

// MockCacheManager provides a mock implementation of the cache.CacheManager
// interface. Configure expectations using testify/mock methods
// (e.g., .On("Check", ...).Return(...)).
type MockCacheManager struct {
	mock.Mock
}

// Load mocks the Load method.
func (m *MockCacheManager) Load(cachePath string) error {
	args := m.Called(cachePath)
	return args.Error(0)
}

// Check mocks the Check method.
func (m *MockCacheManager) Check(filePath string, modTime time.Time, contentHash string, configHash string) (isHit bool, outputHash string) {
	args := m.Called(filePath, modTime, contentHash, configHash)
	isHit, _ = args.Get(0).(bool)
	outputHash, _ = args.Get(1).(string)
	return
}

// Update mocks the Update method.
func (m *MockCacheManager) Update(filePath string, modTime time.Time, sourceHash string, configHash string, outputHash string) error {
	args := m.Called(filePath, modTime, sourceHash, configHash, outputHash)
	return args.Error(0)
}

// Persist mocks the Persist method.
func (m *MockCacheManager) Persist(cachePath string) error {
	args := m.Called(cachePath)
	return args.Error(0)
}

// MockGitClient provides a mock implementation of the converter.GitClient
// interface.
type MockGitClient struct {
	mock.Mock
}

// GetChangedFiles mocks the GetChangedFiles method.
func (m *MockGitClient) GetChangedFiles(repoPath, mode string, ref string) (files []string, err error) {
	args := m.Called(repoPath, mode, ref)
	files, _ = args.Get(0).([]string)
	err = args.Error(1)
	return
}

// MockHooks provides a mock implementation of the converter.Hooks interface.
// Hook methods are invoked concurrently by engine workers; tests that record
// extra state on this mock must guard it themselves.
type MockHooks struct {
	mock.Mock
}

// OnFileDiscovered mocks the OnFileDiscovered method.
func (m *MockHooks) OnFileDiscovered(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

// OnFileStatusUpdate mocks the OnFileStatusUpdate method.
func (m *MockHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	args := m.Called(path, status, message, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(report converter.Report) error {
	args := m.Called(report)
	return args.Error(0)
}

// MockFileWriter provides a mock implementation of the fileio.FileWriter
// interface for asserting write behavior without touching the filesystem.
type MockFileWriter struct {
	mock.Mock
}

// Replace mocks the Replace method.
func (m *MockFileWriter) Replace(source string, data []byte, opts fileio.ReplaceOptions) error {
	args := m.Called(source, data, opts)
	return args.Error(0)
}

// WriteNew mocks the WriteNew method.
func (m *MockFileWriter) WriteNew(dest string, data []byte, opts fileio.NewFileOptions) error {
	args := m.Called(dest, data, opts)
	return args.Error(0)
}
